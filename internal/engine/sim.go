package engine

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/emrys/duskball/internal/domain"
)

// eventChancePerTick is the probability any play event fires on a given tick.
const eventChancePerTick = 0.35

// Relative weights for which play fires when one does.
var eventWeights = []struct {
	eventType string
	weight    int
}{
	{domain.EventPass, 42},
	{domain.EventTackle, 24},
	{domain.EventScore, 16},
	{domain.EventInterception, 12},
	{domain.EventInjury, 6},
}

// Side bundles a team with its roster and the match modifier computed once
// at kickoff from camaraderie, (for the hosts) stadium atmosphere, and the
// team's equipment, consumable, and staff effects. The underlying rows are
// not re-fetched during the match.
type Side struct {
	Team     domain.Team
	Roster   []domain.Player
	Modifier float64
}

// NewSide caches a team's match modifier. Atmosphere only lifts the home
// side; modifier effects apply wherever the team plays.
func NewSide(team domain.Team, roster []domain.Player, mods []domain.TeamModifier, isHome bool) Side {
	mod := 1 + (team.Camaraderie-50)/500
	if isHome {
		mod += (team.Atmosphere - 50) / 1000
	}
	for _, m := range mods {
		mod += m.Value
	}
	return Side{Team: team, Roster: roster, Modifier: mod}
}

// onField returns a side's currently playing players.
func (s *State) onField(side Side) []domain.Player {
	out := make([]domain.Player, 0, domain.SquadSize)
	for _, p := range side.Roster {
		if mt, ok := s.PlayerTime[p.ID]; ok && mt.Playing {
			out = append(out, p)
		}
	}
	return out
}

func squadOffense(players []domain.Player, mod float64) float64 {
	total := 0.0
	for i := range players {
		total += players[i].OffenseRating()
	}
	return total * mod
}

func squadDefense(players []domain.Player, mod float64) float64 {
	total := 0.0
	for i := range players {
		total += players[i].DefenseRating()
	}
	return total * mod
}

// weightedPick selects a player with probability proportional to weightFn.
func weightedPick(rng *rand.Rand, players []domain.Player, weightFn func(domain.Player) float64) domain.Player {
	total := 0.0
	for _, p := range players {
		total += weightFn(p)
	}
	if total <= 0 {
		return players[rng.Intn(len(players))]
	}
	roll := rng.Float64() * total
	for _, p := range players {
		roll -= weightFn(p)
		if roll < 0 {
			return p
		}
	}
	return players[len(players)-1]
}

// rollTickEvent evaluates the weighted probability model for one tick and
// returns the resulting event, if any. Score events have already been
// applied to the match score when returned.
func (r *Runner) rollTickEvent() *domain.GameEvent {
	if r.rng.Float64() >= eventChancePerTick {
		return nil
	}

	attackers := r.state.onField(r.home)
	defenders := r.state.onField(r.away)
	attackSide, defendSide := r.home, r.away

	// Which side has the ball this play, weighted by squad offense.
	homeOff := squadOffense(attackers, r.home.Modifier)
	awayOff := squadOffense(r.state.onField(r.away), r.away.Modifier)
	if r.rng.Float64()*(homeOff+awayOff) >= homeOff {
		attackers, defenders = defenders, attackers
		attackSide, defendSide = r.away, r.home
	}
	if len(attackers) == 0 || len(defenders) == 0 {
		return nil
	}

	total := 0
	for _, w := range eventWeights {
		total += w.weight
	}
	roll := r.rng.Intn(total)
	eventType := eventWeights[0].eventType
	for _, w := range eventWeights {
		roll -= w.weight
		if roll < 0 {
			eventType = w.eventType
			break
		}
	}

	clockFrac := float64(r.state.ClockSeconds) / float64(r.state.Duration)
	ev := domain.GameEvent{
		ID:           uuid.NewString(),
		ClockSeconds: r.state.ClockSeconds,
	}

	switch eventType {
	case domain.EventScore:
		actor := weightedPick(r.rng, attackers, func(p domain.Player) float64 {
			w := p.OffenseRating()
			if p.Role == domain.RoleRunner {
				w *= 1.5
			}
			return w
		})
		att := squadOffense(attackers, attackSide.Modifier)
		def := squadDefense(defenders, defendSide.Modifier)
		if r.rng.Float64() >= att/(att+def) {
			// Attempt broken up; record the stop instead.
			stopper := weightedPick(r.rng, defenders, func(p domain.Player) float64 { return p.DefenseRating() })
			ev.Type = domain.EventTackle
			ev.TeamID = defendSide.Team.ID
			ev.PlayerID = stopper.ID
			ev.TargetID = actor.ID
			ev.Text = commentaryFor(r.rng, domain.EventTackle, stopper, &actor, clockFrac)
			return &ev
		}
		if attackSide.Team.ID == r.game.HomeTeamID {
			r.state.HomeScore++
		} else {
			r.state.AwayScore++
		}
		ev.Type = domain.EventScore
		ev.TeamID = attackSide.Team.ID
		ev.PlayerID = actor.ID
		ev.Text = commentaryFor(r.rng, domain.EventScore, actor, nil, clockFrac)

	case domain.EventPass:
		passer := weightedPick(r.rng, attackers, func(p domain.Player) float64 {
			w := float64(p.Throwing)
			if p.Role == domain.RolePasser {
				w *= 3
			}
			return w
		})
		receiver := weightedPick(r.rng, attackers, func(p domain.Player) float64 {
			if p.ID == passer.ID {
				return 0
			}
			return float64(p.Catching)
		})
		ev.Type = domain.EventPass
		ev.TeamID = attackSide.Team.ID
		ev.PlayerID = passer.ID
		ev.TargetID = receiver.ID
		ev.Text = commentaryFor(r.rng, domain.EventPass, passer, &receiver, clockFrac)

	case domain.EventTackle:
		tackler := weightedPick(r.rng, defenders, func(p domain.Player) float64 {
			w := p.DefenseRating()
			if p.Role == domain.RoleBlocker {
				w *= 2
			}
			return w
		})
		carrier := weightedPick(r.rng, attackers, func(p domain.Player) float64 { return p.OffenseRating() })
		ev.Type = domain.EventTackle
		ev.TeamID = defendSide.Team.ID
		ev.PlayerID = tackler.ID
		ev.TargetID = carrier.ID
		ev.Text = commentaryFor(r.rng, domain.EventTackle, tackler, &carrier, clockFrac)

	case domain.EventInterception:
		picker := weightedPick(r.rng, defenders, func(p domain.Player) float64 {
			return float64(p.Catching) + float64(p.Agility)
		})
		ev.Type = domain.EventInterception
		ev.TeamID = defendSide.Team.ID
		ev.PlayerID = picker.ID
		ev.Text = commentaryFor(r.rng, domain.EventInterception, picker, nil, clockFrac)

	case domain.EventInjury:
		// Either side can lose a player; fatigue makes it likelier.
		pool := append(append([]domain.Player{}, attackers...), defenders...)
		victim := weightedPick(r.rng, pool, func(p domain.Player) float64 {
			return 1 + (100-r.state.Stamina[p.ID])/50
		})
		mt := r.state.PlayerTime[victim.ID]
		mt.Injured = true
		ev.Type = domain.EventInjury
		ev.TeamID = victim.TeamID
		ev.PlayerID = victim.ID
		ev.Text = commentaryFor(r.rng, domain.EventInjury, victim, nil, clockFrac)
	}

	return &ev
}
