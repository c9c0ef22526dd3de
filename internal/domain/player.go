package domain

import "time"

// Player races
const (
	RaceHuman  = "human"
	RaceSylvan = "sylvan"
	RaceGryll  = "gryll"
	RaceLumina = "lumina"
	RaceUmbra  = "umbra"
)

// Field roles. A legal on-field squad is 1 passer, 2 runners, 3 blockers.
const (
	RolePasser  = "passer"
	RoleRunner  = "runner"
	RoleBlocker = "blocker"
)

// SquadSize is the number of players each team fields at once.
const SquadSize = 6

// RoleSquadCounts maps each role to its on-field slot count.
var RoleSquadCounts = map[string]int{
	RolePasser:  1,
	RoleRunner:  2,
	RoleBlocker: 3,
}

// Player is a rostered athlete. Attributes are 1..40.
type Player struct {
	ID         int64     `json:"id"`
	TeamID     int64     `json:"team_id"`
	Name       string    `json:"name"`
	Race       string    `json:"race"`
	Role       string    `json:"role"`
	Power      int       `json:"power"`
	Speed      int       `json:"speed"`
	Agility    int       `json:"agility"`
	Throwing   int       `json:"throwing"`
	Catching   int       `json:"catching"`
	Stamina    int       `json:"stamina"` // max stamina pool
	Leadership int       `json:"leadership"`
	CreatedAt  time.Time `json:"created_at"`
}

// raceAttributeBonus returns a small additive modifier a race contributes to
// event rolls. Kept coarse on purpose; fine balance lives in the attributes.
func raceAttributeBonus(race string) float64 {
	switch race {
	case RaceSylvan:
		return 1.5 // quick
	case RaceGryll:
		return 1.0 // tough
	case RaceLumina:
		return 0.5
	case RaceUmbra:
		return 0.75
	default:
		return 0
	}
}

// OffenseRating is a player's composite attacking weight for event rolls.
func (p *Player) OffenseRating() float64 {
	base := float64(p.Speed+p.Agility+p.Throwing+p.Catching) / 4.0
	return base + raceAttributeBonus(p.Race)
}

// DefenseRating is a player's composite defensive weight for event rolls.
func (p *Player) DefenseRating() float64 {
	base := float64(p.Power+p.Speed+p.Agility) / 3.0
	return base + raceAttributeBonus(p.Race)
}

// PlayerMatchLine is a player's per-match summary for display.
type PlayerMatchLine struct {
	PlayerID      int64  `json:"player_id"`
	Name          string `json:"name"`
	Race          string `json:"race"`
	Role          string `json:"role"`
	Scores        int    `json:"scores"`
	Tackles       int    `json:"tackles"`
	Passes        int    `json:"passes"`
	Interceptions int    `json:"interceptions"`
	SecondsPlayed int    `json:"seconds_played"`
}
