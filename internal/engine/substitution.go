package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/emrys/duskball/internal/domain"
)

// Role-specific stamina thresholds: when an on-field player's effective
// stamina drops below their role's floor, the next eligible bench player of
// the same role is pulled in.
var subThresholds = map[string]float64{
	domain.RolePasser:  35,
	domain.RoleRunner:  30,
	domain.RoleBlocker: 25,
}

// benchReentryMargin keeps a just-substituted player from bouncing straight
// back onto the field at the same threshold.
const benchReentryMargin = 10

// staminaCostPerSecond is a player's stamina drain for each second actually
// played. Higher stamina attributes drain slower.
func staminaCostPerSecond(p domain.Player) float64 {
	cost := 0.05 - float64(p.Stamina)/40.0*0.03
	if cost < 0.015 {
		cost = 0.015
	}
	return cost
}

// checkSubstitutions swaps out any on-field player for a side whose stamina
// has crossed their role threshold (or who is injured), pulling the bench
// queue in FIFO order. The outgoing player stops accruing field time
// immediately and rejoins the back of their role's queue. Candidates are
// walked in roster order so a seeded match substitutes identically on every
// run, even when two same-role players cross the threshold on one tick.
func (s *State) checkSubstitutions(side Side, clock int) []domain.GameEvent {
	teamID := side.Team.ID
	names := make(map[int64]string, len(side.Roster))
	for _, p := range side.Roster {
		names[p.ID] = p.Name
	}

	var events []domain.GameEvent
	for _, p := range side.Roster {
		mt, ok := s.PlayerTime[p.ID]
		if !ok || !mt.Playing {
			continue
		}
		if !mt.Injured && s.Stamina[p.ID] >= subThresholds[p.Role] {
			continue
		}

		inID, ok := s.takeFromBench(teamID, p.Role, mt.Injured)
		if !ok {
			continue // nobody fit to replace them; they gut it out
		}

		mt.Playing = false
		in := s.PlayerTime[inID]
		in.Playing = true
		in.TimeEntered = clock
		if !mt.Injured {
			s.Bench[teamID][p.Role] = append(s.Bench[teamID][p.Role], p.ID)
		}

		events = append(events, domain.GameEvent{
			ID:           uuid.NewString(),
			ClockSeconds: clock,
			Type:         domain.EventSubstitution,
			TeamID:       teamID,
			PlayerID:     p.ID,
			TargetID:     inID,
			Text:         fmt.Sprintf("%s comes off for %s", p.Name, names[inID]),
		})
	}
	return events
}

// takeFromBench pops the first eligible player from a role's queue. For a
// routine stamina swap the replacement must have meaningful stamina left;
// an injury swap takes whoever is next and able.
func (s *State) takeFromBench(teamID int64, role string, injurySwap bool) (int64, bool) {
	queue := s.Bench[teamID][role]
	for i, id := range queue {
		if s.PlayerTime[id].Injured {
			continue
		}
		if !injurySwap && s.Stamina[id] < subThresholds[role]+benchReentryMargin {
			continue
		}
		s.Bench[teamID][role] = append(append([]int64{}, queue[:i]...), queue[i+1:]...)
		return id, true
	}
	return 0, false
}
