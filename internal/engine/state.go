// Package engine advances live Duskball matches tick by tick: the game
// clock, the weighted event model, stamina-driven substitution, and the
// persisted snapshots that let a match survive a process restart.
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/emrys/duskball/internal/domain"
)

// Match phases
const (
	PhaseFirstHalf  = "first_half"
	PhaseHalftime   = "halftime"
	PhaseSecondHalf = "second_half"
	PhaseCompleted  = "completed"
)

const snapshotVersion = 1

// MatchTime tracks one player's field minutes. SecondsPlayed accrues every
// tick the player is on the field; it is never assumed from match length.
type MatchTime struct {
	TimeEntered   int  `json:"time_entered"` // clock seconds at last entry
	Playing       bool `json:"playing"`
	SecondsPlayed int  `json:"seconds_played"`
	Injured       bool `json:"injured,omitempty"`
}

// State is the full live state of one match. It is owned exclusively by the
// match's Runner while live and serialized wholesale into the game's
// simulation log for recovery.
type State struct {
	Version           int                          `json:"version"`
	GameID            int64                        `json:"game_id"`
	MatchType         string                       `json:"match_type"`
	Duration          int                          `json:"duration_seconds"`
	ClockSeconds      int                          `json:"clock_seconds"`
	Phase             string                       `json:"phase"`
	HomeScore         int                          `json:"home_score"`
	AwayScore         int                          `json:"away_score"`
	HalftimeTicksLeft int                          `json:"halftime_ticks_left,omitempty"`
	Events            []domain.GameEvent           `json:"game_events"`
	PlayerTime        map[int64]*MatchTime         `json:"player_time"`
	Stamina           map[int64]float64            `json:"stamina"`
	Bench             map[int64]map[string][]int64 `json:"bench"` // team -> role -> FIFO queue
}

// NewState builds the kickoff state for a match: the first players in
// roster order fill each role's on-field slots, the rest form that role's
// bench queue in roster order.
func NewState(game domain.Game, homeRoster, awayRoster []domain.Player) (*State, error) {
	s := &State{
		Version:    snapshotVersion,
		GameID:     game.ID,
		MatchType:  game.MatchType,
		Duration:   domain.DurationForType(game.MatchType),
		Phase:      PhaseFirstHalf,
		PlayerTime: make(map[int64]*MatchTime),
		Stamina:    make(map[int64]float64),
		Bench:      make(map[int64]map[string][]int64),
	}

	for _, side := range []struct {
		teamID int64
		roster []domain.Player
	}{
		{game.HomeTeamID, homeRoster},
		{game.AwayTeamID, awayRoster},
	} {
		if err := s.fieldSquad(side.teamID, side.roster); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *State) fieldSquad(teamID int64, roster []domain.Player) error {
	fielded := make(map[string]int)
	bench := make(map[string][]int64)

	for _, p := range roster {
		s.Stamina[p.ID] = 100
		if fielded[p.Role] < domain.RoleSquadCounts[p.Role] {
			fielded[p.Role]++
			s.PlayerTime[p.ID] = &MatchTime{TimeEntered: 0, Playing: true}
		} else {
			s.PlayerTime[p.ID] = &MatchTime{}
			bench[p.Role] = append(bench[p.Role], p.ID)
		}
	}

	for role, want := range domain.RoleSquadCounts {
		if fielded[role] != want {
			return fmt.Errorf("engine: team %d fields %d %ss, need %d", teamID, fielded[role], role, want)
		}
	}
	s.Bench[teamID] = bench
	return nil
}

// PlayingCount returns how many of the given players are currently on the field.
func (s *State) PlayingCount(playerIDs []int64) int {
	n := 0
	for _, id := range playerIDs {
		if mt, ok := s.PlayerTime[id]; ok && mt.Playing {
			n++
		}
	}
	return n
}

// appendEvent adds an event to the ordered log, enforcing the monotone
// clock invariant.
func (s *State) appendEvent(ev domain.GameEvent) {
	if n := len(s.Events); n > 0 && ev.ClockSeconds < s.Events[n-1].ClockSeconds {
		ev.ClockSeconds = s.Events[n-1].ClockSeconds
	}
	s.Events = append(s.Events, ev)
}

// Snapshot serializes the state for persistence.
func (s *State) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// FromSnapshot reconstructs a State from a persisted snapshot.
func FromSnapshot(blob []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("engine: decoding snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("engine: unsupported snapshot version %d", s.Version)
	}
	if s.PlayerTime == nil || s.Stamina == nil || s.Bench == nil {
		return nil, fmt.Errorf("engine: snapshot missing player state")
	}
	return &s, nil
}
