package domain

import "time"

// Game statuses. No transition ever returns to an earlier status.
const (
	GameScheduled  = "scheduled"
	GameInProgress = "in_progress"
	GameCompleted  = "completed"
)

// Match types
const (
	MatchLeague     = "league"
	MatchExhibition = "exhibition"
	MatchTournament = "tournament"
)

// Match durations in simulated game seconds.
const (
	LeagueDurationSeconds     = 2400
	ExhibitionDurationSeconds = 1800
)

// DurationForType returns the simulated match length for a match type.
// Tournament games run league length.
func DurationForType(matchType string) int {
	if matchType == MatchExhibition {
		return ExhibitionDurationSeconds
	}
	return LeagueDurationSeconds
}

// Game represents one scheduled or completed fixture.
type Game struct {
	ID          int64      `json:"id"`
	HomeTeamID  int64      `json:"home_team_id"`
	AwayTeamID  int64      `json:"away_team_id"`
	Division    int        `json:"division"`
	Subdivision string     `json:"subdivision"`
	GameDate    time.Time  `json:"game_date"`
	MatchType   string     `json:"match_type"`
	Status      string     `json:"status"`
	HomeScore   *int       `json:"home_score,omitempty"` // nil until completion
	AwayScore   *int       `json:"away_score,omitempty"`
	MVPPlayerID *int64     `json:"mvp_player_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GameSummary is a fixture with team names resolved for display.
type GameSummary struct {
	Game
	HomeTeamName string `json:"home_team_name"`
	AwayTeamName string `json:"away_team_name"`
}
