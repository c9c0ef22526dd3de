package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/emrys/duskball/internal/domain"
	"github.com/emrys/duskball/internal/metrics"
)

// ResultStore is the slice of the storage layer a match runner needs.
type ResultStore interface {
	SaveSnapshot(ctx context.Context, gameID int64, blob []byte) error
	CompleteGame(ctx context.Context, id int64, homeScore, awayScore int, mvpPlayerID int64, completedAt time.Time) error
	ApplyMatchResult(ctx context.Context, winnerID, loserID int64, winnerPoints, loserPoints int) error
	ApplyMatchDraw(ctx context.Context, homeID, awayID int64) error
}

// Broadcaster pushes live updates toward connected viewers. Best effort;
// the engine never blocks on delivery.
type Broadcaster interface {
	Publish(event domain.Event)
}

// Config controls a runner's pacing.
type Config struct {
	TickInterval   time.Duration // real time between ticks
	SecondsPerTick int           // simulated seconds each tick advances
	HalftimeTicks  int           // ticks the clock holds at the midpoint
	Seed           int64         // 0 seeds from the wall clock
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = 3 * time.Second
	}
	if c.SecondsPerTick <= 0 {
		c.SecondsPerTick = 10
	}
	if c.HalftimeTicks <= 0 {
		c.HalftimeTicks = 5
	}
}

const winPoints = 3

// Runner owns one live match: its state, its tick loop, and its snapshot
// writes. All state mutation happens on the tick goroutine; concurrent
// readers go through the mutex-guarded accessors.
type Runner struct {
	cfg     Config
	game    domain.Game
	home    Side
	away    Side
	players map[int64]domain.Player
	store   ResultStore
	bcast   Broadcaster
	rng     *rand.Rand

	mu        sync.Mutex
	state     *State
	completed bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	onDone   func(gameID int64)
	resumed  bool
}

// NewRunner builds a runner for a match at kickoff.
func NewRunner(game domain.Game, home, away Side, store ResultStore, bcast Broadcaster, cfg Config) (*Runner, error) {
	state, err := NewState(game, home.Roster, away.Roster)
	if err != nil {
		return nil, err
	}
	return newRunner(game, home, away, store, bcast, cfg, state, false), nil
}

// ResumeRunner rebuilds a runner from a persisted snapshot so the clock
// picks up where it stopped instead of resetting to zero.
func ResumeRunner(game domain.Game, home, away Side, store ResultStore, bcast Broadcaster, cfg Config, snapshot []byte) (*Runner, error) {
	state, err := FromSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	if state.GameID != game.ID {
		return nil, fmt.Errorf("engine: snapshot belongs to game %d, not %d", state.GameID, game.ID)
	}
	return newRunner(game, home, away, store, bcast, cfg, state, true), nil
}

func newRunner(game domain.Game, home, away Side, store ResultStore, bcast Broadcaster, cfg Config, state *State, resumed bool) *Runner {
	cfg.applyDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	players := make(map[int64]domain.Player, len(home.Roster)+len(away.Roster))
	for _, p := range home.Roster {
		players[p.ID] = p
	}
	for _, p := range away.Roster {
		players[p.ID] = p
	}
	return &Runner{
		cfg:     cfg,
		game:    game,
		home:    home,
		away:    away,
		players: players,
		store:   store,
		bcast:   bcast,
		rng:     rand.New(rand.NewSource(seed)),
		state:   state,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		resumed: resumed,
	}
}

// GameID returns the match this runner owns.
func (r *Runner) GameID() int64 { return r.game.ID }

// SetOnDone registers a callback fired once when the runner finishes.
func (r *Runner) SetOnDone(fn func(gameID int64)) { r.onDone = fn }

// Done is closed when the runner has fully finished.
func (r *Runner) Done() <-chan struct{} { return r.doneCh }

// StateSnapshot returns the current serialized live state.
func (r *Runner) StateSnapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}

// Score returns the current clock and score.
func (r *Runner) Score() (clock, home, away int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.ClockSeconds, r.state.HomeScore, r.state.AwayScore
}

// Stop force-completes the match: the tick loop stops scheduling, a final
// snapshot is persisted, and the game is marked completed with the current
// scores. Safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Run drives the match to completion. It blocks until the match completes
// or is force-completed, so callers start it on its own goroutine.
func (r *Runner) Run(ctx context.Context) {
	metrics.LiveMatches.Inc()
	defer metrics.LiveMatches.Dec()
	defer close(r.doneCh)
	defer func() {
		if r.onDone != nil {
			r.onDone(r.game.ID)
		}
	}()

	if !r.resumed {
		r.announceKickoff(ctx)
	} else {
		log.Printf("Match %d resumed from snapshot at %ds", r.game.ID, r.state.ClockSeconds)
	}

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.complete(context.Background(), true, "shutdown")
			return
		case <-r.stopCh:
			r.complete(context.Background(), true, "force-completed")
			return
		case <-ticker.C:
			finished, err := r.tick(ctx)
			if err != nil {
				// The loop itself failed; never leave the match stuck live.
				log.Printf("Match %d: tick loop failed, force-completing: %v", r.game.ID, err)
				r.complete(ctx, true, "tick loop failure")
				return
			}
			if finished {
				r.complete(ctx, false, "")
				return
			}
		}
	}
}

func (r *Runner) announceKickoff(ctx context.Context) {
	r.mu.Lock()
	ev := domain.GameEvent{
		ID:   uuid.NewString(),
		Type: domain.EventKickoff,
		Text: fmt.Sprintf("%s host %s under the dome lights", r.home.Team.Name, r.away.Team.Name),
	}
	r.state.appendEvent(ev)
	blob, _ := r.state.Snapshot()
	r.mu.Unlock()

	r.persistSnapshot(ctx, blob)
	r.publish(domain.Event{
		Type:      domain.EventTypeMatchStart,
		GameID:    r.game.ID,
		Timestamp: time.Now().UTC(),
		Data:      domain.TickUpdate{Phase: PhaseFirstHalf, Events: []domain.GameEvent{ev}},
	})
}

// tick advances the match by one step and persists the updated state.
// The returned error reports an unrecoverable loop failure.
func (r *Runner) tick(ctx context.Context) (finished bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tick panic: %v", rec)
		}
	}()

	r.mu.Lock()
	events, finished := r.advance()
	update := domain.TickUpdate{
		ClockSeconds: r.state.ClockSeconds,
		Phase:        r.state.Phase,
		HomeScore:    r.state.HomeScore,
		AwayScore:    r.state.AwayScore,
		Events:       events,
	}
	blob, snapErr := r.state.Snapshot()
	r.mu.Unlock()

	if snapErr != nil {
		log.Printf("Match %d: encoding snapshot: %v", r.game.ID, snapErr)
	} else {
		r.persistSnapshot(ctx, blob)
	}

	r.publish(domain.Event{
		Type:      domain.EventTypeMatchTick,
		GameID:    r.game.ID,
		Timestamp: time.Now().UTC(),
		Data:      update,
	})
	return finished, nil
}

// advance is the synchronous per-tick state update. Callers hold the mutex.
func (r *Runner) advance() ([]domain.GameEvent, bool) {
	metrics.TicksTotal.Inc()
	s := r.state

	if s.Phase == PhaseHalftime {
		s.HalftimeTicksLeft--
		if s.HalftimeTicksLeft <= 0 {
			s.Phase = PhaseSecondHalf
		}
		return nil, false
	}
	if s.Phase == PhaseCompleted {
		return nil, true
	}

	prev := s.ClockSeconds
	s.ClockSeconds += r.cfg.SecondsPerTick
	if s.ClockSeconds > s.Duration {
		s.ClockSeconds = s.Duration
	}
	elapsed := s.ClockSeconds - prev

	// Field time and stamina accrue only for players actually on the field,
	// from actual seconds played.
	for id, mt := range s.PlayerTime {
		if !mt.Playing {
			continue
		}
		mt.SecondsPlayed += elapsed
		p := r.players[id]
		s.Stamina[id] -= staminaCostPerSecond(p) * float64(elapsed)
		if s.Stamina[id] < 0 {
			s.Stamina[id] = 0
		}
	}

	var events []domain.GameEvent
	for _, side := range []Side{r.home, r.away} {
		for _, ev := range s.checkSubstitutions(side, s.ClockSeconds) {
			s.appendEvent(ev)
			events = append(events, ev)
			metrics.EventsTotal.WithLabelValues(ev.Type).Inc()
		}
	}

	if s.Phase == PhaseFirstHalf && s.ClockSeconds >= s.Duration/2 {
		s.Phase = PhaseHalftime
		s.HalftimeTicksLeft = r.cfg.HalftimeTicks
		ev := domain.GameEvent{
			ID:           uuid.NewString(),
			ClockSeconds: s.ClockSeconds,
			Type:         domain.EventHalftime,
			Text:         "Halftime under the dome",
		}
		s.appendEvent(ev)
		events = append(events, ev)
		metrics.EventsTotal.WithLabelValues(ev.Type).Inc()
		return events, false
	}

	if ev := r.rollTickEventSafe(); ev != nil {
		s.appendEvent(*ev)
		events = append(events, *ev)
		metrics.EventsTotal.WithLabelValues(ev.Type).Inc()
	}

	if s.ClockSeconds >= s.Duration {
		events = append(events, r.finalize())
		return events, true
	}
	return events, false
}

// rollTickEventSafe isolates a single event evaluation: if it panics, the
// event is skipped and the tick continues.
func (r *Runner) rollTickEventSafe() (ev *domain.GameEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.EventFailures.Inc()
			log.Printf("Match %d: event evaluation failed, skipping: %v", r.game.ID, rec)
			ev = nil
		}
	}()
	return r.rollTickEvent()
}

// finalize closes out the state at full time. Callers hold the mutex.
func (r *Runner) finalize() domain.GameEvent {
	s := r.state
	s.Phase = PhaseCompleted
	for _, mt := range s.PlayerTime {
		mt.Playing = false
	}
	ev := domain.GameEvent{
		ID:           uuid.NewString(),
		ClockSeconds: s.ClockSeconds,
		Type:         domain.EventFinal,
		Text: fmt.Sprintf("Full time: %s %d, %s %d",
			r.home.Team.Name, s.HomeScore, r.away.Team.Name, s.AwayScore),
	}
	s.appendEvent(ev)
	metrics.EventsTotal.WithLabelValues(ev.Type).Inc()
	return ev
}

// complete persists the final snapshot and match result exactly once.
func (r *Runner) complete(ctx context.Context, forced bool, reason string) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	if r.state.Phase != PhaseCompleted {
		r.finalize()
	}
	home, away := r.state.HomeScore, r.state.AwayScore
	mvp := r.state.MVP()
	lines := r.state.PlayerLines(r.players)
	blob, _ := r.state.Snapshot()
	r.mu.Unlock()

	if forced {
		metrics.ForcedCompletions.Inc()
		log.Printf("Match %d force-completed (%s) at %d-%d", r.game.ID, reason, home, away)
	}

	if blob != nil {
		r.persistSnapshot(ctx, blob)
	}
	if err := r.store.CompleteGame(ctx, r.game.ID, home, away, mvp, time.Now().UTC()); err != nil {
		log.Printf("Match %d: recording completion: %v", r.game.ID, err)
	}
	if r.game.MatchType != domain.MatchExhibition {
		r.applyResult(ctx, home, away)
	}

	var mvpName string
	if p, ok := r.players[mvp]; ok {
		mvpName = p.Name
	}
	r.publish(domain.Event{
		Type:      domain.EventTypeMatchEnd,
		GameID:    r.game.ID,
		Timestamp: time.Now().UTC(),
		Data: domain.MatchEndUpdate{
			HomeScore:   home,
			AwayScore:   away,
			MVPPlayerID: mvp,
			MVPName:     mvpName,
			PlayerLines: lines,
		},
	})
	log.Printf("Match %d completed: %s %d, %s %d", r.game.ID, r.home.Team.Name, home, r.away.Team.Name, away)
}

// applyResult updates league aggregates; exhibition games never touch them.
func (r *Runner) applyResult(ctx context.Context, home, away int) {
	var err error
	switch {
	case home > away:
		err = r.store.ApplyMatchResult(ctx, r.game.HomeTeamID, r.game.AwayTeamID, winPoints, 0)
	case away > home:
		err = r.store.ApplyMatchResult(ctx, r.game.AwayTeamID, r.game.HomeTeamID, winPoints, 0)
	default:
		err = r.store.ApplyMatchDraw(ctx, r.game.HomeTeamID, r.game.AwayTeamID)
	}
	if err != nil {
		log.Printf("Match %d: applying result: %v", r.game.ID, err)
	}
}

// persistSnapshot writes the snapshot with bounded retry. If every attempt
// fails the match keeps running; recovery fidelity is degraded and the
// failure is surfaced through the persist-failure counter.
func (r *Runner) persistSnapshot(ctx context.Context, blob []byte) {
	policy := backoff.WithContext(backoff.WithMaxRetries(snapshotBackoff(), 3), ctx)
	err := backoff.Retry(func() error {
		return r.store.SaveSnapshot(ctx, r.game.ID, blob)
	}, policy)
	if err != nil {
		metrics.PersistFailures.Inc()
		log.Printf("Match %d: snapshot persist failed after retries: %v", r.game.ID, err)
	}
}

func snapshotBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

func (r *Runner) publish(ev domain.Event) {
	if r.bcast == nil {
		return
	}
	r.bcast.Publish(ev)
}
