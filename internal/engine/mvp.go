package engine

import (
	"sort"

	"github.com/emrys/duskball/internal/domain"
)

// mvpEventWeights scores each recorded event type toward the match MVP.
var mvpEventWeights = map[string]int{
	domain.EventScore:        10,
	domain.EventInterception: 6,
	domain.EventTackle:       4,
	domain.EventPass:         2,
}

// MVP returns the player with the highest weighted event contribution,
// tie-broken by total seconds played descending. Returns 0 when no player
// recorded a contribution.
func (s *State) MVP() int64 {
	scores := make(map[int64]int)
	for _, ev := range s.Events {
		w, ok := mvpEventWeights[ev.Type]
		if !ok || ev.PlayerID == 0 {
			continue
		}
		scores[ev.PlayerID] += w
	}

	var best int64
	bestScore := 0
	for id, score := range scores {
		if score > bestScore {
			best, bestScore = id, score
			continue
		}
		if score == bestScore && best != 0 {
			bt, bok := s.PlayerTime[best]
			ct, cok := s.PlayerTime[id]
			if bok && cok && ct.SecondsPlayed > bt.SecondsPlayed {
				best = id
			}
		}
	}
	return best
}

// PlayerLines tallies every player's contributions from the event log into
// per-match stat lines, sorted by player ID. Players who never took the
// field and recorded nothing are omitted.
func (s *State) PlayerLines(players map[int64]domain.Player) []domain.PlayerMatchLine {
	byID := make(map[int64]*domain.PlayerMatchLine)
	line := func(id int64) *domain.PlayerMatchLine {
		if l, ok := byID[id]; ok {
			return l
		}
		p := players[id]
		l := &domain.PlayerMatchLine{PlayerID: id, Name: p.Name, Race: p.Race, Role: p.Role}
		byID[id] = l
		return l
	}

	for id, mt := range s.PlayerTime {
		if mt.SecondsPlayed > 0 {
			line(id).SecondsPlayed = mt.SecondsPlayed
		}
	}
	for _, ev := range s.Events {
		if ev.PlayerID == 0 {
			continue
		}
		switch ev.Type {
		case domain.EventScore:
			line(ev.PlayerID).Scores++
		case domain.EventTackle:
			line(ev.PlayerID).Tackles++
		case domain.EventPass:
			line(ev.PlayerID).Passes++
		case domain.EventInterception:
			line(ev.PlayerID).Interceptions++
		}
	}

	lines := make([]domain.PlayerMatchLine, 0, len(byID))
	for _, l := range byID {
		lines = append(lines, *l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].PlayerID < lines[j].PlayerID })
	return lines
}
