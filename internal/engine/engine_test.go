package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emrys/duskball/internal/domain"
)

func testPlayer(id, teamID int64, race, role string) domain.Player {
	return domain.Player{
		ID:       id,
		TeamID:   teamID,
		Name:     fmt.Sprintf("Player %d", id),
		Race:     race,
		Role:     role,
		Power:    20,
		Speed:    20,
		Agility:  20,
		Throwing: 20,
		Catching: 20,
		Stamina:  20,
	}
}

// testRoster builds a nine-player roster: a full squad plus one bench
// player per role.
func testRoster(teamID, base int64) []domain.Player {
	roles := []string{
		domain.RolePasser, domain.RoleRunner, domain.RoleRunner,
		domain.RoleBlocker, domain.RoleBlocker, domain.RoleBlocker,
		domain.RolePasser, domain.RoleRunner, domain.RoleBlocker,
	}
	races := []string{
		domain.RaceHuman, domain.RaceSylvan, domain.RaceGryll,
		domain.RaceLumina, domain.RaceUmbra, domain.RaceHuman,
		domain.RaceSylvan, domain.RaceGryll, domain.RaceHuman,
	}
	roster := make([]domain.Player, len(roles))
	for i := range roles {
		roster[i] = testPlayer(base+int64(i)+1, teamID, races[i], roles[i])
	}
	return roster
}

func testMatch(matchType string) (domain.Game, Side, Side) {
	game := domain.Game{
		ID:         42,
		HomeTeamID: 1,
		AwayTeamID: 2,
		MatchType:  matchType,
		Status:     domain.GameInProgress,
	}
	home := NewSide(domain.Team{ID: 1, Name: "Emberfall Wardens", Camaraderie: 50, Atmosphere: 50}, testRoster(1, 100), nil, true)
	away := NewSide(domain.Team{ID: 2, Name: "Gloomharbor Tide", Camaraderie: 50, Atmosphere: 50}, testRoster(2, 200), nil, false)
	return game, home, away
}

type fakeResultStore struct {
	mu            sync.Mutex
	snapshots     [][]byte
	failSaves     int
	saveErr       error
	completions   int
	finalHome     int
	finalAway     int
	finalMVP      int64
	results       []string // "winner:loser" or "draw:home:away"
	drawRecorded  bool
	resultApplied bool
}

func (f *fakeResultStore) SaveSnapshot(ctx context.Context, gameID int64, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves > 0 {
		f.failSaves--
		if f.saveErr != nil {
			return f.saveErr
		}
		return errors.New("disk full")
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	f.snapshots = append(f.snapshots, cp)
	return nil
}

func (f *fakeResultStore) CompleteGame(ctx context.Context, id int64, homeScore, awayScore int, mvpPlayerID int64, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions++
	f.finalHome, f.finalAway, f.finalMVP = homeScore, awayScore, mvpPlayerID
	return nil
}

func (f *fakeResultStore) ApplyMatchResult(ctx context.Context, winnerID, loserID int64, winnerPoints, loserPoints int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultApplied = true
	f.results = append(f.results, fmt.Sprintf("%d:%d:%d", winnerID, loserID, winnerPoints))
	return nil
}

func (f *fakeResultStore) ApplyMatchDraw(ctx context.Context, homeID, awayID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drawRecorded = true
	return nil
}

func (f *fakeResultStore) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeBroadcaster) Publish(ev domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeBroadcaster) byType(eventType string) []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, ev := range f.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestNewSideFoldsModifiersIntoMatchModifier(t *testing.T) {
	team := domain.Team{ID: 1, Camaraderie: 60, Atmosphere: 70}
	mods := []domain.TeamModifier{
		{Kind: domain.ModifierEquipment, Name: "reinforced pads", Value: 0.05},
		{Kind: domain.ModifierConsumable, Name: "vigor tonic", Value: 0.02},
		{Kind: domain.ModifierStaff, Name: "strict dietician", Value: -0.01},
	}

	home := NewSide(team, nil, mods, true)
	want := 1 + (60-50)/500.0 + (70-50)/1000.0 + 0.06
	if diff := home.Modifier - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("home modifier = %v, want %v", home.Modifier, want)
	}

	// Away sides get the same item effects but no atmosphere lift.
	away := NewSide(team, nil, mods, false)
	want -= (70 - 50) / 1000.0
	if diff := away.Modifier - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("away modifier = %v, want %v", away.Modifier, want)
	}
}

func TestNewStateFieldsLegalSquads(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	state, err := NewState(game, home.Roster, away.Roster)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	for _, side := range []Side{home, away} {
		playing := 0
		byRole := make(map[string]int)
		for _, p := range side.Roster {
			if state.PlayerTime[p.ID].Playing {
				playing++
				byRole[p.Role]++
			}
			if state.Stamina[p.ID] != 100 {
				t.Fatalf("player %d starts at stamina %v, want 100", p.ID, state.Stamina[p.ID])
			}
		}
		if playing != domain.SquadSize {
			t.Fatalf("team %d fields %d players, want %d", side.Team.ID, playing, domain.SquadSize)
		}
		for role, want := range domain.RoleSquadCounts {
			if byRole[role] != want {
				t.Fatalf("team %d fields %d %ss, want %d", side.Team.ID, byRole[role], role, want)
			}
		}
		// One bench player per role, queued in roster order.
		for role := range domain.RoleSquadCounts {
			if got := len(state.Bench[side.Team.ID][role]); got != 1 {
				t.Fatalf("team %d bench has %d %ss, want 1", side.Team.ID, got, role)
			}
		}
	}
}

func TestNewStateRejectsShortRoster(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	// Drop the only passers from the home roster.
	var roster []domain.Player
	for _, p := range home.Roster {
		if p.Role != domain.RolePasser {
			roster = append(roster, p)
		}
	}
	if _, err := NewState(game, roster, away.Roster); err == nil {
		t.Fatal("expected error for roster with no passer")
	}
}

func TestFieldTimeAndStaminaAccrual(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	r, err := NewRunner(game, home, away, &fakeResultStore{}, nil, Config{
		TickInterval:   time.Hour, // loop never runs; advance is driven directly
		SecondsPerTick: 10,
		Seed:           7,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	const ticks = 20
	for i := 0; i < ticks; i++ {
		if _, finished := r.advance(); finished {
			t.Fatal("match finished far too early")
		}
	}

	if r.state.ClockSeconds != ticks*10 {
		t.Fatalf("clock = %d, want %d", r.state.ClockSeconds, ticks*10)
	}

	// Six players per team are on the field at all times, so each team's
	// accrued seconds must equal six times the elapsed clock.
	for _, side := range []Side{home, away} {
		total := 0
		for _, p := range side.Roster {
			total += r.state.PlayerTime[p.ID].SecondsPlayed
		}
		if want := domain.SquadSize * r.state.ClockSeconds; total != want {
			t.Fatalf("team %d accrued %d seconds, want %d", side.Team.ID, total, want)
		}
	}

	// Stamina only drains for players who actually took the field.
	for _, p := range append(home.Roster, away.Roster...) {
		mt := r.state.PlayerTime[p.ID]
		if mt.SecondsPlayed == 0 && r.state.Stamina[p.ID] != 100 {
			t.Fatalf("bench player %d lost stamina without playing", p.ID)
		}
		if mt.SecondsPlayed > 0 && r.state.Stamina[p.ID] >= 100 {
			t.Fatalf("fielded player %d did not lose stamina", p.ID)
		}
	}
}

func TestSubstitutionOnThresholdCrossing(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	state, err := NewState(game, home.Roster, away.Roster)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	// Home runner 102 drops below the runner threshold.
	state.Stamina[102] = subThresholds[domain.RoleRunner] - 1
	benchRunner := state.Bench[1][domain.RoleRunner][0]

	events := state.checkSubstitutions(home, 600)
	if len(events) != 1 {
		t.Fatalf("got %d substitution events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != domain.EventSubstitution || ev.PlayerID != 102 || ev.TargetID != benchRunner {
		t.Fatalf("unexpected substitution event: %+v", ev)
	}
	if state.PlayerTime[102].Playing {
		t.Fatal("outgoing player still marked playing")
	}
	in := state.PlayerTime[benchRunner]
	if !in.Playing || in.TimeEntered != 600 {
		t.Fatalf("incoming player state = %+v, want playing from 600", in)
	}
	// Outgoing player rejoins the back of the runner queue.
	queue := state.Bench[1][domain.RoleRunner]
	if len(queue) != 1 || queue[0] != 102 {
		t.Fatalf("runner bench = %v, want [102]", queue)
	}
}

func TestSubstitutionOrderFollowsRoster(t *testing.T) {
	// Two runners cross the threshold on the same tick but only one fit
	// bench runner exists: the earlier roster slot always comes off first,
	// on every run.
	for i := 0; i < 25; i++ {
		game, home, away := testMatch(domain.MatchLeague)
		state, err := NewState(game, home.Roster, away.Roster)
		if err != nil {
			t.Fatalf("NewState: %v", err)
		}
		benchRunner := state.Bench[1][domain.RoleRunner][0]
		state.Stamina[102] = subThresholds[domain.RoleRunner] - 1
		state.Stamina[103] = subThresholds[domain.RoleRunner] - 1

		events := state.checkSubstitutions(home, 450)
		if len(events) != 1 {
			t.Fatalf("run %d: got %d substitution events, want 1", i, len(events))
		}
		if events[0].PlayerID != 102 || events[0].TargetID != benchRunner {
			t.Fatalf("run %d: substituted %d for %d, want %d for %d",
				i, events[0].TargetID, events[0].PlayerID, benchRunner, int64(102))
		}
		if !state.PlayerTime[103].Playing {
			t.Fatalf("run %d: player 103 left the field with no replacement", i)
		}
	}
}

func TestSubstitutedPlayerStopsAccruing(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	r, err := NewRunner(game, home, away, &fakeResultStore{}, nil, Config{
		TickInterval:   time.Hour,
		SecondsPerTick: 10,
		Seed:           7,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	r.state.Stamina[102] = subThresholds[domain.RoleRunner] - 1
	r.advance() // depletes once more, then swaps 102 out
	played := r.state.PlayerTime[102].SecondsPlayed

	r.advance()
	r.advance()
	if got := r.state.PlayerTime[102].SecondsPlayed; got != played {
		t.Fatalf("benched player kept accruing: %d -> %d", played, got)
	}
}

func TestInjuredPlayerDoesNotRejoinQueue(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	state, err := NewState(game, home.Roster, away.Roster)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	state.PlayerTime[102].Injured = true
	events := state.checkSubstitutions(home, 300)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	for _, id := range state.Bench[1][domain.RoleRunner] {
		if id == 102 {
			t.Fatal("injured player re-queued on the bench")
		}
	}
}

func TestTakeFromBenchSkipsUnfitReplacements(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	state, err := NewState(game, home.Roster, away.Roster)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	benchRunner := state.Bench[1][domain.RoleRunner][0]

	// Too tired for a routine swap, fine for an injury swap.
	state.Stamina[benchRunner] = subThresholds[domain.RoleRunner] + benchReentryMargin - 1

	if _, ok := state.takeFromBench(1, domain.RoleRunner, false); ok {
		t.Fatal("routine swap pulled a replacement below the re-entry margin")
	}
	id, ok := state.takeFromBench(1, domain.RoleRunner, true)
	if !ok || id != benchRunner {
		t.Fatalf("injury swap = (%d, %v), want (%d, true)", id, ok, benchRunner)
	}

	// Injured bench players are never pulled.
	state.Bench[1][domain.RoleRunner] = []int64{benchRunner}
	state.PlayerTime[benchRunner].Injured = true
	if _, ok := state.takeFromBench(1, domain.RoleRunner, true); ok {
		t.Fatal("injury swap pulled an injured replacement")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	r, err := NewRunner(game, home, away, &fakeResultStore{}, nil, Config{
		TickInterval:   time.Hour,
		SecondsPerTick: 10,
		Seed:           99,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	for i := 0; i < 30; i++ {
		r.advance()
	}

	blob, err := r.state.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	got, err := FromSnapshot(blob)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}

	if got.GameID != r.state.GameID || got.ClockSeconds != r.state.ClockSeconds {
		t.Fatalf("clock mismatch: got %d@%d, want %d@%d", got.GameID, got.ClockSeconds, r.state.GameID, r.state.ClockSeconds)
	}
	if got.HomeScore != r.state.HomeScore || got.AwayScore != r.state.AwayScore {
		t.Fatal("scores did not survive the round trip")
	}
	if got.Phase != r.state.Phase || len(got.Events) != len(r.state.Events) {
		t.Fatalf("phase/events mismatch: %s/%d vs %s/%d", got.Phase, len(got.Events), r.state.Phase, len(r.state.Events))
	}
	for id, st := range r.state.Stamina {
		if got.Stamina[id] != st {
			t.Fatalf("stamina for player %d: got %v, want %v", id, got.Stamina[id], st)
		}
	}
	for id, mt := range r.state.PlayerTime {
		if gmt := got.PlayerTime[id]; gmt == nil || *gmt != *mt {
			t.Fatalf("match time for player %d did not survive the round trip", id)
		}
	}
}

func TestFromSnapshotRejectsBadBlobs(t *testing.T) {
	if _, err := FromSnapshot([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
	if _, err := FromSnapshot([]byte(`{"version":99}`)); err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if _, err := FromSnapshot([]byte(`{"version":1}`)); err == nil {
		t.Fatal("expected error for snapshot missing player state")
	}
}

func TestResumeRunnerRejectsForeignSnapshot(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	state, err := NewState(game, home.Roster, away.Roster)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	state.GameID = 7777
	blob, _ := state.Snapshot()

	if _, err := ResumeRunner(game, home, away, &fakeResultStore{}, nil, Config{}, blob); err == nil {
		t.Fatal("expected error resuming a snapshot from another game")
	}
}

func TestFullMatchEventClockIsMonotone(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	r, err := NewRunner(game, home, away, &fakeResultStore{}, nil, Config{
		TickInterval:   time.Hour,
		SecondsPerTick: 10,
		HalftimeTicks:  3,
		Seed:           1234,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	finished := false
	for i := 0; i < 10000 && !finished; i++ {
		_, finished = r.advance()
	}
	if !finished {
		t.Fatal("match never finished")
	}

	if r.state.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want %s", r.state.Phase, PhaseCompleted)
	}
	if r.state.ClockSeconds != domain.LeagueDurationSeconds {
		t.Fatalf("clock ended at %d, want %d", r.state.ClockSeconds, domain.LeagueDurationSeconds)
	}
	for i := 1; i < len(r.state.Events); i++ {
		if r.state.Events[i].ClockSeconds < r.state.Events[i-1].ClockSeconds {
			t.Fatalf("event %d clock %d precedes event %d clock %d",
				i, r.state.Events[i].ClockSeconds, i-1, r.state.Events[i-1].ClockSeconds)
		}
	}
	last := r.state.Events[len(r.state.Events)-1]
	if last.Type != domain.EventFinal {
		t.Fatalf("last event type = %s, want %s", last.Type, domain.EventFinal)
	}
	sawHalftime := false
	for _, ev := range r.state.Events {
		if ev.Type == domain.EventHalftime {
			sawHalftime = true
		}
	}
	if !sawHalftime {
		t.Fatal("no halftime event recorded")
	}
	for id, mt := range r.state.PlayerTime {
		if mt.Playing {
			t.Fatalf("player %d still marked playing after full time", id)
		}
	}
}

func TestHalftimeHoldsClock(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	r, err := NewRunner(game, home, away, &fakeResultStore{}, nil, Config{
		TickInterval:   time.Hour,
		SecondsPerTick: domain.LeagueDurationSeconds / 2, // reach the midpoint in one tick
		HalftimeTicks:  3,
		Seed:           5,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	r.advance()
	if r.state.Phase != PhaseHalftime {
		t.Fatalf("phase = %s, want %s", r.state.Phase, PhaseHalftime)
	}
	held := r.state.ClockSeconds

	for i := 0; i < 2; i++ {
		r.advance()
		if r.state.Phase != PhaseHalftime {
			t.Fatalf("halftime ended after %d ticks, want 3", i+1)
		}
		if r.state.ClockSeconds != held {
			t.Fatalf("clock moved during halftime: %d -> %d", held, r.state.ClockSeconds)
		}
	}
	r.advance()
	if r.state.Phase != PhaseSecondHalf {
		t.Fatalf("phase = %s after halftime, want %s", r.state.Phase, PhaseSecondHalf)
	}
}

func TestRunCompletesLeagueMatchAndAppliesResult(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	store := &fakeResultStore{}
	bcast := &fakeBroadcaster{}
	r, err := NewRunner(game, home, away, store, bcast, Config{
		TickInterval:   time.Millisecond,
		SecondsPerTick: 300,
		HalftimeTicks:  1,
		Seed:           31,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	go r.Run(context.Background())
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("match did not complete in time")
	}

	if store.completions != 1 {
		t.Fatalf("CompleteGame called %d times, want 1", store.completions)
	}
	_, homeScore, awayScore := r.Score()
	if store.finalHome != homeScore || store.finalAway != awayScore {
		t.Fatalf("stored score %d-%d, runner reports %d-%d", store.finalHome, store.finalAway, homeScore, awayScore)
	}
	switch {
	case homeScore == awayScore:
		if !store.drawRecorded || store.resultApplied {
			t.Fatal("draw not recorded as a draw")
		}
	default:
		if store.drawRecorded || !store.resultApplied {
			t.Fatalf("decisive match %d-%d not recorded as a result", homeScore, awayScore)
		}
	}

	if got := bcast.byType(domain.EventTypeMatchStart); len(got) != 1 {
		t.Fatalf("got %d match_start events, want 1", len(got))
	}
	ends := bcast.byType(domain.EventTypeMatchEnd)
	if len(ends) != 1 {
		t.Fatalf("got %d match_end events, want 1", len(ends))
	}
	update, ok := ends[0].Data.(domain.MatchEndUpdate)
	if !ok {
		t.Fatalf("match_end payload is %T, want MatchEndUpdate", ends[0].Data)
	}
	if update.HomeScore != homeScore || update.AwayScore != awayScore {
		t.Fatalf("match_end score %d-%d, runner reports %d-%d", update.HomeScore, update.AwayScore, homeScore, awayScore)
	}
	if len(update.PlayerLines) == 0 {
		t.Fatal("match_end carries no player stat lines")
	}
	for i := 1; i < len(update.PlayerLines); i++ {
		if update.PlayerLines[i].PlayerID <= update.PlayerLines[i-1].PlayerID {
			t.Fatal("player stat lines are not in ID order")
		}
	}
	if len(bcast.byType(domain.EventTypeMatchTick)) == 0 {
		t.Fatal("no tick events broadcast")
	}
	if store.snapshotCount() == 0 {
		t.Fatal("no snapshots persisted")
	}
}

func TestRunExhibitionNeverTouchesStandings(t *testing.T) {
	game, home, away := testMatch(domain.MatchExhibition)
	store := &fakeResultStore{}
	r, err := NewRunner(game, home, away, store, nil, Config{
		TickInterval:   time.Millisecond,
		SecondsPerTick: 450,
		HalftimeTicks:  1,
		Seed:           8,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	go r.Run(context.Background())
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("match did not complete in time")
	}

	if store.completions != 1 {
		t.Fatalf("CompleteGame called %d times, want 1", store.completions)
	}
	if store.resultApplied || store.drawRecorded {
		t.Fatal("exhibition result leaked into league aggregates")
	}
}

func TestStopForceCompletes(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	store := &fakeResultStore{}
	bcast := &fakeBroadcaster{}
	r, err := NewRunner(game, home, away, store, bcast, Config{
		TickInterval: time.Hour, // no natural progress
		Seed:         3,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	go r.Run(context.Background())
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	r.Stop() // idempotent

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}

	if store.completions != 1 {
		t.Fatalf("CompleteGame called %d times, want 1", store.completions)
	}
	if r.state.Phase != PhaseCompleted {
		t.Fatalf("phase = %s after force-complete, want %s", r.state.Phase, PhaseCompleted)
	}
	if got := bcast.byType(domain.EventTypeMatchEnd); len(got) != 1 {
		t.Fatalf("got %d match_end events, want 1", len(got))
	}
}

func TestPersistSnapshotRetriesTransientFailures(t *testing.T) {
	game, home, away := testMatch(domain.MatchLeague)
	store := &fakeResultStore{failSaves: 2}
	r, err := NewRunner(game, home, away, store, nil, Config{Seed: 1})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	r.persistSnapshot(context.Background(), []byte(`{"version":1}`))
	if store.snapshotCount() != 1 {
		t.Fatalf("snapshot persisted %d times after retries, want 1", store.snapshotCount())
	}
}

func TestMVPWeightsAndTieBreak(t *testing.T) {
	s := &State{
		PlayerTime: map[int64]*MatchTime{
			1: {SecondsPlayed: 1200},
			2: {SecondsPlayed: 2400},
			3: {SecondsPlayed: 600},
		},
	}
	// Player 1: one score (10). Player 2: one interception + two passes (10).
	// Player 3: one tackle (4).
	s.Events = []domain.GameEvent{
		{Type: domain.EventScore, PlayerID: 1},
		{Type: domain.EventInterception, PlayerID: 2},
		{Type: domain.EventPass, PlayerID: 2},
		{Type: domain.EventPass, PlayerID: 2},
		{Type: domain.EventTackle, PlayerID: 3},
		{Type: domain.EventInjury, PlayerID: 3}, // injuries never score MVP points
	}
	if got := s.MVP(); got != 2 {
		t.Fatalf("MVP = %d, want 2 (tie broken on field time)", got)
	}

	empty := &State{PlayerTime: map[int64]*MatchTime{}}
	if got := empty.MVP(); got != 0 {
		t.Fatalf("MVP of eventless match = %d, want 0", got)
	}
}

func TestPlayerLinesTallyEventsInIDOrder(t *testing.T) {
	players := map[int64]domain.Player{
		1: testPlayer(1, 1, domain.RaceHuman, domain.RoleRunner),
		2: testPlayer(2, 1, domain.RaceSylvan, domain.RolePasser),
		3: testPlayer(3, 2, domain.RaceGryll, domain.RoleBlocker),
		4: testPlayer(4, 2, domain.RaceHuman, domain.RoleBlocker),
	}
	s := &State{
		PlayerTime: map[int64]*MatchTime{
			1: {SecondsPlayed: 1200},
			2: {SecondsPlayed: 900},
			3: {SecondsPlayed: 2400},
			4: {}, // never played, no events: omitted
		},
		Events: []domain.GameEvent{
			{Type: domain.EventScore, PlayerID: 1},
			{Type: domain.EventScore, PlayerID: 1},
			{Type: domain.EventPass, PlayerID: 2, TargetID: 1},
			{Type: domain.EventTackle, PlayerID: 3},
			{Type: domain.EventInterception, PlayerID: 3},
			{Type: domain.EventInjury, PlayerID: 3},   // injuries are not a stat
			{Type: domain.EventHalftime, PlayerID: 0}, // no actor
		},
	}

	lines := s.PlayerLines(players)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i := 1; i < len(lines); i++ {
		if lines[i].PlayerID <= lines[i-1].PlayerID {
			t.Fatalf("lines out of ID order: %d before %d", lines[i-1].PlayerID, lines[i].PlayerID)
		}
	}
	if l := lines[0]; l.PlayerID != 1 || l.Scores != 2 || l.SecondsPlayed != 1200 || l.Role != domain.RoleRunner {
		t.Fatalf("line for player 1 = %+v", l)
	}
	if l := lines[1]; l.Passes != 1 || l.Name == "" {
		t.Fatalf("line for player 2 = %+v", l)
	}
	if l := lines[2]; l.Tackles != 1 || l.Interceptions != 1 || l.Scores != 0 {
		t.Fatalf("line for player 3 = %+v", l)
	}
}

func TestCommentaryRespectsTemplateGates(t *testing.T) {
	human := testPlayer(1, 1, domain.RaceHuman, domain.RoleRunner)
	gryll := testPlayer(2, 1, domain.RaceGryll, domain.RoleBlocker)

	for seed := int64(0); seed < 64; seed++ {
		rng := rand.New(rand.NewSource(seed))

		// Race-gated lines never fire for the wrong race.
		line := commentaryFor(rng, domain.EventScore, human, nil, 0.1)
		if strings.Contains(line, "bulldozes") || strings.Contains(line, "wind through leaves") {
			t.Fatalf("seed %d: race-gated line for a human actor: %q", seed, line)
		}
		// Late-game lines never fire early.
		if strings.Contains(line, "clock running down") {
			t.Fatalf("seed %d: late-game line at clock fraction 0.1: %q", seed, line)
		}
		// Two-name templates never fire without a target.
		tackle := commentaryFor(rng, domain.EventTackle, gryll, nil, 0.1)
		if strings.Contains(tackle, "%!s(MISSING)") {
			t.Fatalf("seed %d: two-name template chosen without a target: %q", seed, tackle)
		}
		if !strings.Contains(line, human.Name) {
			t.Fatalf("seed %d: line does not name the actor: %q", seed, line)
		}
	}

	// Unknown event types fall back to a neutral line.
	rng := rand.New(rand.NewSource(1))
	if line := commentaryFor(rng, "confetti", human, nil, 0.5); !strings.Contains(line, human.Name) {
		t.Fatalf("fallback line does not name the actor: %q", line)
	}
}

func TestCommentaryIsDeterministicPerSeed(t *testing.T) {
	p := testPlayer(1, 1, domain.RaceSylvan, domain.RoleRunner)
	a := commentaryFor(rand.New(rand.NewSource(77)), domain.EventScore, p, nil, 0.5)
	b := commentaryFor(rand.New(rand.NewSource(77)), domain.EventScore, p, nil, 0.5)
	if a != b {
		t.Fatalf("same seed produced different lines: %q vs %q", a, b)
	}
}

func TestAppendEventClampsClock(t *testing.T) {
	s := &State{}
	s.appendEvent(domain.GameEvent{ClockSeconds: 100, Type: domain.EventPass})
	s.appendEvent(domain.GameEvent{ClockSeconds: 40, Type: domain.EventTackle})
	if s.Events[1].ClockSeconds != 100 {
		t.Fatalf("out-of-order event clock = %d, want clamped to 100", s.Events[1].ClockSeconds)
	}
}
