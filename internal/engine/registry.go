package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/emrys/duskball/internal/domain"
	"github.com/emrys/duskball/internal/metrics"
	"github.com/emrys/duskball/internal/storage"
)

// RegistryStore is the storage surface the live-match registry needs.
type RegistryStore interface {
	ResultStore
	GameByID(ctx context.Context, id int64) (*domain.Game, error)
	CreateGame(ctx context.Context, g *domain.Game) error
	MarkGameInProgress(ctx context.Context, id int64) (bool, error)
	InProgressGames(ctx context.Context) ([]domain.Game, error)
	LoadSnapshot(ctx context.Context, gameID int64) ([]byte, error)
	GetTeamByID(ctx context.Context, id int64) (*domain.Team, error)
	PlayersByTeam(ctx context.Context, teamID int64) ([]domain.Player, error)
	TeamModifiers(ctx context.Context, teamID int64) ([]domain.TeamModifier, error)
	ConsumeModifiers(ctx context.Context, teamID int64) (int64, error)
}

// ErrAlreadyLive is returned when a start is requested for a match that
// already has a runner.
var ErrAlreadyLive = errors.New("engine: match already live")

// ErrNotStartable is returned when a game is not in the scheduled state.
var ErrNotStartable = errors.New("engine: game is not startable")

// Registry is the live-match store: it owns every running match's Runner,
// starts new ones, recovers in-progress ones after a restart, and drains
// them all on shutdown. Each match runs its own goroutine; matches never
// block one another.
type Registry struct {
	store RegistryStore
	bcast Broadcaster
	cfg   Config

	mu      sync.RWMutex
	runners map[int64]*Runner
}

// NewRegistry creates an empty registry.
func NewRegistry(store RegistryStore, bcast Broadcaster, cfg Config) *Registry {
	return &Registry{
		store:   store,
		bcast:   bcast,
		cfg:     cfg,
		runners: make(map[int64]*Runner),
	}
}

// Get returns the runner for a live match.
func (g *Registry) Get(gameID int64) (*Runner, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runners[gameID]
	return r, ok
}

// Live returns the IDs of every running match, in no particular order.
func (g *Registry) Live() []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]int64, 0, len(g.runners))
	for id := range g.runners {
		ids = append(ids, id)
	}
	return ids
}

// LiveCount returns how many matches are currently running.
func (g *Registry) LiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runners)
}

// StartMatch transitions a scheduled game to in-progress and launches its
// tick loop.
func (g *Registry) StartMatch(ctx context.Context, gameID int64) (*Runner, error) {
	if _, live := g.Get(gameID); live {
		return nil, ErrAlreadyLive
	}

	game, err := g.store.GameByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading game %d: %w", gameID, err)
	}

	started, err := g.store.MarkGameInProgress(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("starting game %d: %w", gameID, err)
	}
	if !started {
		return nil, fmt.Errorf("%w: game %d is %s", ErrNotStartable, gameID, game.Status)
	}
	game.Status = domain.GameInProgress

	runner, err := g.buildRunner(ctx, game, nil)
	if err != nil {
		return nil, err
	}
	g.spendConsumables(ctx, game)
	g.launch(ctx, runner)
	log.Printf("Match %d started: team %d vs team %d", game.ID, game.HomeTeamID, game.AwayTeamID)
	return runner, nil
}

// StartExhibition creates and immediately starts an exhibition match.
// Exhibition results never touch league aggregates.
func (g *Registry) StartExhibition(ctx context.Context, homeTeamID, awayTeamID int64) (*Runner, error) {
	if homeTeamID == awayTeamID {
		return nil, errors.New("engine: a team cannot play itself")
	}
	home, err := g.store.GetTeamByID(ctx, homeTeamID)
	if err != nil {
		return nil, fmt.Errorf("loading home team %d: %w", homeTeamID, err)
	}
	game := &domain.Game{
		HomeTeamID:  homeTeamID,
		AwayTeamID:  awayTeamID,
		Division:    home.Division,
		Subdivision: home.Subdivision,
		GameDate:    time.Now().UTC(),
		MatchType:   domain.MatchExhibition,
	}
	if err := g.store.CreateGame(ctx, game); err != nil {
		return nil, err
	}
	if _, err := g.store.MarkGameInProgress(ctx, game.ID); err != nil {
		return nil, err
	}
	game.Status = domain.GameInProgress

	runner, err := g.buildRunner(ctx, game, nil)
	if err != nil {
		return nil, err
	}
	g.spendConsumables(ctx, game)
	g.launch(ctx, runner)
	log.Printf("Exhibition %d started: team %d vs team %d", game.ID, homeTeamID, awayTeamID)
	return runner, nil
}

// RecoverAll rebuilds runners for every game left in-progress by a previous
// process. Games without a usable snapshot are closed out with their last
// known (empty) state instead of being left live forever.
func (g *Registry) RecoverAll(ctx context.Context) error {
	games, err := g.store.InProgressGames(ctx)
	if err != nil {
		return fmt.Errorf("listing in-progress games: %w", err)
	}

	for i := range games {
		game := games[i]
		blob, err := g.store.LoadSnapshot(ctx, game.ID)
		if errors.Is(err, storage.ErrNoSnapshot) {
			log.Printf("Match %d has no snapshot; completing with no score", game.ID)
			metrics.ForcedCompletions.Inc()
			if err := g.store.CompleteGame(ctx, game.ID, 0, 0, 0, time.Now().UTC()); err != nil {
				log.Printf("Match %d: closing snapshotless game: %v", game.ID, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("loading snapshot for game %d: %w", game.ID, err)
		}

		runner, err := g.buildRunner(ctx, &game, blob)
		if err != nil {
			log.Printf("Match %d: recovery failed, force-completing: %v", game.ID, err)
			metrics.ForcedCompletions.Inc()
			if err := g.store.CompleteGame(ctx, game.ID, 0, 0, 0, time.Now().UTC()); err != nil {
				log.Printf("Match %d: closing unrecoverable game: %v", game.ID, err)
			}
			continue
		}
		g.launch(ctx, runner)
		log.Printf("Match %d recovered and resumed", game.ID)
	}
	return nil
}

// DrainAll force-completes every live match and waits for their final
// snapshots, bounded by the timeout.
func (g *Registry) DrainAll(timeout time.Duration) {
	g.mu.RLock()
	running := make([]*Runner, 0, len(g.runners))
	for _, r := range g.runners {
		running = append(running, r)
	}
	g.mu.RUnlock()

	if len(running) == 0 {
		return
	}
	log.Printf("Draining %d live matches...", len(running))

	for _, r := range running {
		r.Stop()
	}
	deadline := time.After(timeout)
	for _, r := range running {
		select {
		case <-r.Done():
		case <-deadline:
			log.Printf("Match %d did not drain before the deadline", r.GameID())
			return
		}
	}
}

func (g *Registry) buildRunner(ctx context.Context, game *domain.Game, snapshot []byte) (*Runner, error) {
	homeTeam, err := g.store.GetTeamByID(ctx, game.HomeTeamID)
	if err != nil {
		return nil, fmt.Errorf("loading home team %d: %w", game.HomeTeamID, err)
	}
	awayTeam, err := g.store.GetTeamByID(ctx, game.AwayTeamID)
	if err != nil {
		return nil, fmt.Errorf("loading away team %d: %w", game.AwayTeamID, err)
	}
	homeRoster, err := g.store.PlayersByTeam(ctx, game.HomeTeamID)
	if err != nil {
		return nil, fmt.Errorf("loading home roster: %w", err)
	}
	awayRoster, err := g.store.PlayersByTeam(ctx, game.AwayTeamID)
	if err != nil {
		return nil, fmt.Errorf("loading away roster: %w", err)
	}
	homeMods, err := g.store.TeamModifiers(ctx, game.HomeTeamID)
	if err != nil {
		return nil, fmt.Errorf("loading home modifiers: %w", err)
	}
	awayMods, err := g.store.TeamModifiers(ctx, game.AwayTeamID)
	if err != nil {
		return nil, fmt.Errorf("loading away modifiers: %w", err)
	}

	home := NewSide(*homeTeam, homeRoster, homeMods, true)
	away := NewSide(*awayTeam, awayRoster, awayMods, false)
	if snapshot != nil {
		return ResumeRunner(*game, home, away, g.store, g.bcast, g.cfg, snapshot)
	}
	return NewRunner(*game, home, away, g.store, g.bcast, g.cfg)
}

// spendConsumables burns both teams' single-use modifiers once their match
// modifier has been cached into the runner's sides. Resumed matches never
// reach here, so nothing is spent twice.
func (g *Registry) spendConsumables(ctx context.Context, game *domain.Game) {
	for _, teamID := range []int64{game.HomeTeamID, game.AwayTeamID} {
		if _, err := g.store.ConsumeModifiers(ctx, teamID); err != nil {
			log.Printf("Match %d: spending consumables for team %d: %v", game.ID, teamID, err)
		}
	}
}

func (g *Registry) launch(ctx context.Context, r *Runner) {
	r.SetOnDone(func(gameID int64) {
		g.mu.Lock()
		delete(g.runners, gameID)
		g.mu.Unlock()
	})
	g.mu.Lock()
	g.runners[r.GameID()] = r
	g.mu.Unlock()
	go r.Run(ctx)
}
