// Package automation runs the timer-driven league loops: starting due
// matches inside the daily simulation window and advancing the season day.
package automation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/emrys/duskball/internal/clock"
	"github.com/emrys/duskball/internal/config"
	"github.com/emrys/duskball/internal/engine"
	"github.com/emrys/duskball/internal/storage"
)

// Scheduler polls the database on a timer and drives the league forward.
// It never simulates anything itself; matches run in the engine's registry.
type Scheduler struct {
	cfg      *config.Config
	store    *storage.Store
	registry *engine.Registry
	loc      *time.Location

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a scheduler. The configured timezone must resolve.
func New(cfg *config.Config, store *storage.Store, registry *engine.Registry) (*Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		registry: registry,
		loc:      loc,
		done:     make(chan struct{}),
	}, nil
}

// Start begins the poll loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.pollLoop(ctx)
}

// Stop stops the poll loop and waits for it to exit.
func (s *Scheduler) Stop() {
	log.Println("Scheduler: stopping...")
	close(s.done)
	s.wg.Wait()
	log.Println("Scheduler: shutdown complete")
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Automation.PollInterval)
	defer ticker.Stop()

	// Initial pass so a restart inside the window picks up due games
	// immediately.
	s.tick(ctx, time.Now())

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

// tick runs one automation pass at the given wall time.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if s.cfg.Automation.AdvanceDay {
		s.advanceDay(ctx, now)
	}
	if s.cfg.Automation.StartMatches {
		s.startDueGames(ctx, now)
	}
}

// advanceDay keeps the stored season day in step with the calendar.
func (s *Scheduler) advanceDay(ctx context.Context, now time.Time) {
	season, err := s.store.ActiveSeason(ctx)
	if err != nil {
		log.Printf("Scheduler: loading active season: %v", err)
		return
	}
	if season == nil {
		return
	}

	day := clock.DayInCycle(now, season.StartDate)
	if day == season.CurrentDay {
		return
	}
	phase := clock.PhaseForDay(day)
	if err := s.store.AdvanceSeasonDay(ctx, season.ID, day, phase); err != nil {
		log.Printf("Scheduler: advancing season to day %d: %v", day, err)
		return
	}
	log.Printf("Season %d advanced to day %d (%s)", season.Number, day, phase)
}

// startDueGames launches every scheduled game whose kickoff has passed, but
// only while the daily simulation window is open. Games that come due
// overnight wait for the next window.
func (s *Scheduler) startDueGames(ctx context.Context, now time.Time) {
	if !s.cfg.Window().Contains(now, s.loc) {
		return
	}

	due, err := s.store.DueGames(ctx, now)
	if err != nil {
		log.Printf("Scheduler: listing due games: %v", err)
		return
	}

	for _, game := range due {
		_, err := s.registry.StartMatch(ctx, game.ID)
		switch {
		case errors.Is(err, engine.ErrAlreadyLive), errors.Is(err, engine.ErrNotStartable):
			// Raced with a manual start; nothing to do.
		case err != nil:
			log.Printf("Scheduler: starting game %d: %v", game.ID, err)
		}
	}
}

// Recover restarts any matches left live by a previous process and closes
// out games whose snapshots are gone. Called once before the poll loop.
func (s *Scheduler) Recover(ctx context.Context) error {
	return s.registry.RecoverAll(ctx)
}
