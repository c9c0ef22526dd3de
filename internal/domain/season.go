package domain

import "time"

// Season phases. The 17-day cycle runs 14 days of regular season,
// playoffs on day 15, then two offseason days before the next cycle.
const (
	PhaseRegularSeason = "regular_season"
	PhasePlayoffs      = "playoffs"
	PhaseOffseason     = "offseason"
)

// Season cycle constants
const (
	SeasonCycleDays   = 17
	RegularSeasonDays = 14
	PlayoffDay        = 15
)

// Season represents one 17-day league cycle. Only one season is active at a time.
type Season struct {
	ID         int64     `json:"id"`
	Number     int       `json:"number"`
	StartDate  time.Time `json:"start_date"`
	CurrentDay int       `json:"current_day"` // 1..17
	Phase      string    `json:"phase"`
}

// Division tiers run 1 (highest) through 8.
const (
	MinDivision = 1
	MaxDivision = 8
)

// SubdivisionNames is the greek-letter sequence used to name subdivisions
// within a division, in fill order.
var SubdivisionNames = []string{
	"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta",
	"iota", "kappa", "lambda", "mu",
}

// SubdivisionSize is the team count a subdivision must reach before a full
// schedule is generated for it.
const SubdivisionSize = 8
