package automation

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/emrys/duskball/internal/config"
	"github.com/emrys/duskball/internal/domain"
	"github.com/emrys/duskball/internal/engine"
	"github.com/emrys/duskball/internal/storage"
)

func newTestScheduler(t *testing.T) (*Scheduler, *storage.Store, *engine.Registry, *config.Config) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := engine.NewRegistry(store, nil, engine.Config{TickInterval: time.Hour, Seed: 1})
	t.Cleanup(func() { registry.DrainAll(5 * time.Second) })

	cfg := config.Default()
	cfg.Automation.StartMatches = true
	cfg.Automation.AdvanceDay = true

	s, err := New(cfg, store, registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, store, registry, cfg
}

func seedMatchup(t *testing.T, store *storage.Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, 2)
	for i := 0; i < 2; i++ {
		team := &domain.Team{
			Name:        fmt.Sprintf("Nightspire Club %d", i+1),
			Division:    3,
			Subdivision: "beta",
			Camaraderie: 50,
			Atmosphere:  50,
		}
		if err := store.UpsertTeam(ctx, team); err != nil {
			t.Fatalf("seeding team: %v", err)
		}
		roles := []string{"passer", "runner", "runner", "blocker", "blocker", "blocker"}
		for j, role := range roles {
			p := &domain.Player{
				TeamID: team.ID, Name: fmt.Sprintf("Player %d-%d", i, j),
				Race: domain.RaceHuman, Role: role,
				Power: 20, Speed: 20, Agility: 20, Throwing: 20, Catching: 20, Stamina: 20,
			}
			if err := store.CreatePlayer(ctx, p); err != nil {
				t.Fatalf("seeding player: %v", err)
			}
		}
		ids = append(ids, team.ID)
	}
	return ids[0], ids[1]
}

// windowTime returns a wall time on the given day offset at the given local
// hour in the scheduler's timezone.
func windowTime(s *Scheduler, dayOffset, hour int) time.Time {
	base := time.Now().In(s.loc).AddDate(0, 0, dayOffset)
	return time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, s.loc)
}

func TestTickStartsDueGamesInsideWindow(t *testing.T) {
	s, store, registry, _ := newTestScheduler(t)
	ctx := context.Background()
	home, away := seedMatchup(t, store)

	now := windowTime(s, 0, 17)
	if _, err := store.CreateSeason(ctx, 1, now.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("creating season: %v", err)
	}
	game := &domain.Game{
		HomeTeamID: home, AwayTeamID: away,
		Division: 3, Subdivision: "beta",
		GameDate:  now.Add(-10 * time.Minute),
		MatchType: domain.MatchLeague,
	}
	if err := store.CreateGame(ctx, game); err != nil {
		t.Fatalf("creating game: %v", err)
	}

	s.tick(ctx, now)

	if _, live := registry.Get(game.ID); !live {
		t.Fatal("due game was not started")
	}

	// A second pass must not double-start it.
	s.tick(ctx, now)
	if registry.LiveCount() != 1 {
		t.Fatalf("LiveCount = %d after second tick, want 1", registry.LiveCount())
	}
}

func TestTickHoldsGamesOutsideWindow(t *testing.T) {
	s, store, registry, _ := newTestScheduler(t)
	ctx := context.Background()
	home, away := seedMatchup(t, store)

	closed := windowTime(s, 0, 9) // well before the 16:00 open
	if _, err := store.CreateSeason(ctx, 1, closed.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("creating season: %v", err)
	}
	game := &domain.Game{
		HomeTeamID: home, AwayTeamID: away,
		Division: 3, Subdivision: "beta",
		GameDate:  closed.Add(-2 * time.Hour),
		MatchType: domain.MatchLeague,
	}
	if err := store.CreateGame(ctx, game); err != nil {
		t.Fatalf("creating game: %v", err)
	}

	s.tick(ctx, closed)
	if registry.LiveCount() != 0 {
		t.Fatal("game started outside the simulation window")
	}

	s.tick(ctx, windowTime(s, 0, 16))
	if _, live := registry.Get(game.ID); !live {
		t.Fatal("game not started once the window opened")
	}
}

func TestTickRespectsAutomationToggles(t *testing.T) {
	s, store, registry, cfg := newTestScheduler(t)
	cfg.Automation.StartMatches = false
	ctx := context.Background()
	home, away := seedMatchup(t, store)

	now := windowTime(s, 0, 17)
	if _, err := store.CreateSeason(ctx, 1, now.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("creating season: %v", err)
	}
	game := &domain.Game{
		HomeTeamID: home, AwayTeamID: away,
		Division: 3, Subdivision: "beta",
		GameDate:  now.Add(-time.Hour),
		MatchType: domain.MatchLeague,
	}
	if err := store.CreateGame(ctx, game); err != nil {
		t.Fatalf("creating game: %v", err)
	}

	s.tick(ctx, now)
	if registry.LiveCount() != 0 {
		t.Fatal("match started with start_matches disabled")
	}
}

func TestTickAdvancesSeasonDay(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	now := time.Now()
	season, err := store.CreateSeason(ctx, 1, now.AddDate(0, 0, -3))
	if err != nil {
		t.Fatalf("creating season: %v", err)
	}
	if season.CurrentDay != 1 {
		t.Fatalf("new season starts on day %d, want 1", season.CurrentDay)
	}

	s.tick(ctx, now)

	got, err := store.ActiveSeason(ctx)
	if err != nil {
		t.Fatalf("reloading season: %v", err)
	}
	if got.CurrentDay != 4 {
		t.Fatalf("season on day %d, want 4", got.CurrentDay)
	}
	if got.Phase != domain.PhaseRegularSeason {
		t.Fatalf("phase = %s, want %s", got.Phase, domain.PhaseRegularSeason)
	}
}

func TestTickAdvancesIntoPlayoffs(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	now := time.Now()
	if _, err := store.CreateSeason(ctx, 1, now.AddDate(0, 0, -(domain.PlayoffDay-1))); err != nil {
		t.Fatalf("creating season: %v", err)
	}

	s.tick(ctx, now)
	got, err := store.ActiveSeason(ctx)
	if err != nil {
		t.Fatalf("reloading season: %v", err)
	}
	if got.CurrentDay != domain.PlayoffDay || got.Phase != domain.PhasePlayoffs {
		t.Fatalf("season = day %d phase %s, want day %d playoffs", got.CurrentDay, got.Phase, domain.PlayoffDay)
	}
}
