package domain

import "time"

// Match event types produced by the simulation engine.
const (
	EventKickoff      = "kickoff"
	EventPass         = "pass"
	EventScore        = "score"
	EventTackle       = "tackle"
	EventInterception = "interception"
	EventInjury       = "injury"
	EventSubstitution = "substitution"
	EventHalftime     = "halftime"
	EventFinal        = "final"
)

// GameEvent is one entry in a match's ordered event log. ClockSeconds values
// are monotonically non-decreasing within a match.
type GameEvent struct {
	ID           string `json:"id"` // uuid
	ClockSeconds int    `json:"clock_seconds"`
	Type         string `json:"type"`
	TeamID       int64  `json:"team_id,omitempty"`
	PlayerID     int64  `json:"player_id,omitempty"`
	TargetID     int64  `json:"target_id,omitempty"` // receiver, victim, or incoming sub
	Text         string `json:"text"`                // commentary line
}

// Event is the envelope broadcast to WebSocket clients via the relay.
type Event struct {
	Type      string      `json:"event"`
	GameID    int64       `json:"game_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Broadcast envelope types
const (
	EventTypeMatchStart = "match_start"
	EventTypeMatchTick  = "match_tick"
	EventTypeMatchEnd   = "match_end"
)

// TickUpdate is the per-tick payload pushed to connected viewers.
type TickUpdate struct {
	ClockSeconds int         `json:"clock_seconds"`
	Phase        string      `json:"phase"`
	HomeScore    int         `json:"home_score"`
	AwayScore    int         `json:"away_score"`
	Events       []GameEvent `json:"events,omitempty"` // events generated this tick only
}

// MatchEndUpdate is the final payload for a completed match.
type MatchEndUpdate struct {
	HomeScore   int               `json:"home_score"`
	AwayScore   int               `json:"away_score"`
	MVPPlayerID int64             `json:"mvp_player_id,omitempty"`
	MVPName     string            `json:"mvp_name,omitempty"`
	PlayerLines []PlayerMatchLine `json:"player_lines,omitempty"`
}
