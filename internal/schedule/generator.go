// Package schedule produces conflict-free round-robin fixture lists for a
// subdivision, assigning games to the fixed daily kickoff slots.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/emrys/duskball/internal/clock"
	"github.com/emrys/duskball/internal/domain"
)

// ErrOddTeamCount is returned when a subdivision holds an odd number of
// teams. Odd groups are a configuration error, never silently padded.
var ErrOddTeamCount = errors.New("schedule: team count must be even")

// ErrNoTeams is returned for an empty team list.
var ErrNoTeams = errors.New("schedule: no teams to schedule")

// Options controls fixture generation for one subdivision.
type Options struct {
	StartDay    int // game day the first round lands on (1-indexed)
	SeasonStart time.Time
	Location    *time.Location
	Slots       []clock.Slot
	MatchType   string // defaults to league
}

func (o Options) matchType() string {
	if o.MatchType == "" {
		return domain.MatchLeague
	}
	return o.MatchType
}

// pairing is one matchup inside a round, already oriented home/away.
type pairing struct {
	home, away int // indexes into the team slice
}

// rounds builds the full round-robin rotation using the circle method:
// team 0 stays fixed while the remaining n-1 rotate around it, yielding
// n-1 rounds of n/2 pairings with no team repeated within a round and
// every unordered pair appearing exactly once. Random pairing is not an
// option here: it can emit duplicate matchups.
//
// Orientation rule: the lower rotation index hosts when the index sum is
// even, otherwise the higher. Over a full rotation this puts every even
// index at (n-2)/2 home games and every odd index at n/2, so each team's
// home/away counts differ by exactly one.
func rounds(n int) [][]pairing {
	m := n - 1
	out := make([][]pairing, 0, m)
	for r := 0; r < m; r++ {
		arr := make([]int, n)
		arr[0] = 0
		for i := 1; i < n; i++ {
			arr[i] = 1 + (i-1+r)%m
		}
		round := make([]pairing, 0, n/2)
		for i := 0; i < n/2; i++ {
			a, b := arr[i], arr[n-1-i]
			if a > b {
				a, b = b, a
			}
			if (a+b)%2 == 0 {
				round = append(round, pairing{home: a, away: b})
			} else {
				round = append(round, pairing{home: b, away: a})
			}
		}
		out = append(out, round)
	}
	return out
}

// Generate produces the full round-robin fixture list for a subdivision:
// n-1 rounds, one round per game day, n/2 games per day placed into the
// configured kickoff slots in pairing order.
func Generate(teams []domain.Team, opts Options) ([]domain.Game, error) {
	if err := validate(teams, opts); err != nil {
		return nil, err
	}
	return emit(teams, rounds(len(teams)), opts), nil
}

// GenerateShortened produces a truncated schedule for a subdivision that
// filled on fillDay, after the normal day-1 generation. The day budget is
// the regular-season days left before the playoff cutoff (15 - fillDay),
// floored at one round so every team plays at least once. When the budget
// is smaller than a full rotation the later rounds are skipped; when it is
// larger the rotation wraps from its start, so the earliest-generated
// pairings repeat first and no pairing repeats more than once.
func GenerateShortened(teams []domain.Team, fillDay int, opts Options) ([]domain.Game, error) {
	if err := validate(teams, opts); err != nil {
		return nil, err
	}
	if fillDay < 1 || fillDay > domain.RegularSeasonDays {
		return nil, fmt.Errorf("schedule: fill day %d outside regular season", fillDay)
	}

	n := len(teams)
	budget := domain.PlayoffDay - fillDay
	if budget < 1 {
		budget = 1
	}
	full := rounds(n)
	if budget > 2*len(full) {
		budget = 2 * len(full) // one repeat per pairing at most
	}

	sched := make([][]pairing, 0, budget)
	for r := 0; r < budget; r++ {
		sched = append(sched, full[r%len(full)])
	}

	opts.StartDay = fillDay
	return emit(teams, sched, opts), nil
}

func validate(teams []domain.Team, opts Options) error {
	if len(teams) == 0 {
		return ErrNoTeams
	}
	if len(teams)%2 != 0 {
		return fmt.Errorf("%w: got %d", ErrOddTeamCount, len(teams))
	}
	if len(opts.Slots) == 0 {
		return errors.New("schedule: no kickoff slots configured")
	}
	if opts.Location == nil {
		return errors.New("schedule: no timezone location configured")
	}
	if opts.StartDay < 1 {
		return fmt.Errorf("schedule: start day %d must be >= 1", opts.StartDay)
	}
	return nil
}

func emit(teams []domain.Team, sched [][]pairing, opts Options) []domain.Game {
	games := make([]domain.Game, 0, len(sched)*len(sched[0]))
	for r, round := range sched {
		day := opts.StartDay + r
		slots := clock.SlotTimes(day, opts.SeasonStart, opts.Location, opts.Slots)
		for i, p := range round {
			home, away := teams[p.home], teams[p.away]
			games = append(games, domain.Game{
				HomeTeamID:  home.ID,
				AwayTeamID:  away.ID,
				Division:    home.Division,
				Subdivision: home.Subdivision,
				GameDate:    slots[i%len(slots)],
				MatchType:   opts.matchType(),
				Status:      domain.GameScheduled,
			})
		}
	}
	return games
}
