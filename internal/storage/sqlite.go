package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/emrys/duskball/internal/domain"
	_ "modernc.org/sqlite"
)

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string.
// The Z suffix ensures the Go sqlite driver parses it back as UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// ErrNoSnapshot is returned by LoadSnapshot when a game has no persisted
// live-state snapshot or is not in progress.
var ErrNoSnapshot = errors.New("storage: no live snapshot")

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Season methods ---

// CreateSeason inserts a new season starting at the given date.
func (s *Store) CreateSeason(ctx context.Context, number int, start time.Time) (*domain.Season, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO seasons (number, start_date, current_day, phase)
		VALUES (?, ?, 1, ?)
	`, number, formatTimestamp(start), domain.PhaseRegularSeason)
	if err != nil {
		return nil, fmt.Errorf("creating season %d: %w", number, err)
	}
	id, _ := result.LastInsertId()
	return &domain.Season{ID: id, Number: number, StartDate: start.UTC(), CurrentDay: 1, Phase: domain.PhaseRegularSeason}, nil
}

// ActiveSeason returns the most recent season, or nil if none exists.
func (s *Store) ActiveSeason(ctx context.Context) (*domain.Season, error) {
	var season domain.Season
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, start_date, current_day, phase FROM seasons
		ORDER BY number DESC LIMIT 1
	`).Scan(&season.ID, &season.Number, &season.StartDate, &season.CurrentDay, &season.Phase)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// AdvanceSeasonDay sets the season's current day and phase.
func (s *Store) AdvanceSeasonDay(ctx context.Context, seasonID int64, day int, phase string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE seasons SET current_day = ?, phase = ? WHERE id = ?
	`, day, phase, seasonID)
	return err
}

// --- Team methods ---

// UpsertTeam creates or updates a team by name.
func (s *Store) UpsertTeam(ctx context.Context, team *domain.Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (name, division, subdivision, camaraderie, atmosphere)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			division = excluded.division,
			subdivision = excluded.subdivision
	`, team.Name, team.Division, team.Subdivision, defaultRating(team.Camaraderie), defaultRating(team.Atmosphere))
	if err != nil {
		return err
	}

	// Always query for the ID (LastInsertId unreliable with ON CONFLICT)
	return s.db.QueryRowContext(ctx, "SELECT id FROM teams WHERE name = ?", team.Name).Scan(&team.ID)
}

func defaultRating(v float64) float64 {
	if v == 0 {
		return 50
	}
	return v
}

// GetTeamByID returns a team by ID
func (s *Store) GetTeamByID(ctx context.Context, id int64) (*domain.Team, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, division, subdivision, wins, losses, points, camaraderie, atmosphere, created_at
		FROM teams WHERE id = ?
	`, id)
	return scanTeam(row)
}

// TeamsBySubdivision returns the teams in one subdivision, in ID order.
func (s *Store) TeamsBySubdivision(ctx context.Context, division int, subdivision string) ([]domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, division, subdivision, wins, losses, points, camaraderie, atmosphere, created_at
		FROM teams WHERE division = ? AND subdivision = ? ORDER BY id
	`, division, subdivision)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTeams(rows)
}

// AllTeams returns every team ordered by division then subdivision.
func (s *Store) AllTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, division, subdivision, wins, losses, points, camaraderie, atmosphere, created_at
		FROM teams ORDER BY division, subdivision, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTeams(rows)
}

// Standings returns the subdivision table ordered by points, then wins.
func (s *Store) Standings(ctx context.Context, division int, subdivision string) ([]domain.StandingsEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, division, subdivision, wins, losses, points
		FROM teams WHERE division = ? AND subdivision = ?
		ORDER BY points DESC, wins DESC, name
	`, division, subdivision)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.StandingsEntry
	rank := 0
	for rows.Next() {
		rank++
		e := domain.StandingsEntry{Rank: rank}
		if err := rows.Scan(&e.TeamID, &e.Name, &e.Division, &e.Subdivision, &e.Wins, &e.Losses, &e.Points); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ApplyMatchResult applies a completed match to both teams' aggregates in one
// transaction. Increments are expressed in SQL so two completions touching
// the same team can never race a read-modify-write.
func (s *Store) ApplyMatchResult(ctx context.Context, winnerID, loserID int64, winnerPoints, loserPoints int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET wins = wins + 1, points = points + ? WHERE id = ?
	`, winnerPoints, winnerID); err != nil {
		return fmt.Errorf("updating winner %d: %w", winnerID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET losses = losses + 1, points = points + ? WHERE id = ?
	`, loserPoints, loserID); err != nil {
		return fmt.Errorf("updating loser %d: %w", loserID, err)
	}

	return tx.Commit()
}

// ApplyMatchDraw credits both teams a single point for a drawn match.
func (s *Store) ApplyMatchDraw(ctx context.Context, homeID, awayID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE teams SET points = points + 1 WHERE id IN (?, ?)
	`, homeID, awayID)
	return err
}

// --- Player methods ---

// CreatePlayer inserts a player onto a team's roster.
func (s *Store) CreatePlayer(ctx context.Context, p *domain.Player) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO players (team_id, name, race, role, power, speed, agility, throwing, catching, stamina, leadership)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.TeamID, p.Name, p.Race, p.Role, p.Power, p.Speed, p.Agility, p.Throwing, p.Catching, p.Stamina, p.Leadership)
	if err != nil {
		return fmt.Errorf("creating player %q: %w", p.Name, err)
	}
	p.ID, _ = result.LastInsertId()
	return nil
}

// PlayersByTeam returns a team's roster in ID order.
func (s *Store) PlayersByTeam(ctx context.Context, teamID int64) ([]domain.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, name, race, role, power, speed, agility, throwing, catching, stamina, leadership, created_at
		FROM players WHERE team_id = ? ORDER BY id
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlayers(rows)
}

// --- Team modifier methods ---

// CreateTeamModifier records an equipment, consumable, or staff effect.
func (s *Store) CreateTeamModifier(ctx context.Context, m *domain.TeamModifier) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO team_modifiers (team_id, kind, name, value)
		VALUES (?, ?, ?, ?)
	`, m.TeamID, m.Kind, m.Name, m.Value)
	if err != nil {
		return fmt.Errorf("creating modifier %q: %w", m.Name, err)
	}
	m.ID, _ = result.LastInsertId()
	return nil
}

// TeamModifiers returns a team's active modifiers in ID order.
func (s *Store) TeamModifiers(ctx context.Context, teamID int64) ([]domain.TeamModifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, kind, name, value, created_at
		FROM team_modifiers WHERE team_id = ? ORDER BY id
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mods []domain.TeamModifier
	for rows.Next() {
		var m domain.TeamModifier
		if err := rows.Scan(&m.ID, &m.TeamID, &m.Kind, &m.Name, &m.Value, &m.CreatedAt); err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

// ConsumeModifiers deletes a team's consumable modifiers, returning how many
// were spent. Equipment and staff effects are untouched.
func (s *Store) ConsumeModifiers(ctx context.Context, teamID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM team_modifiers WHERE team_id = ? AND kind = ?
	`, teamID, domain.ModifierConsumable)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- Game methods ---

// CreateGames bulk-inserts fixtures in a single transaction.
func (s *Store) CreateGames(ctx context.Context, games []domain.Game) error {
	if len(games) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO games (home_team_id, away_team_id, division, subdivision, game_date, match_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range games {
		status := g.Status
		if status == "" {
			status = domain.GameScheduled
		}
		if _, err := stmt.ExecContext(ctx, g.HomeTeamID, g.AwayTeamID, g.Division, g.Subdivision,
			formatTimestamp(g.GameDate), g.MatchType, status); err != nil {
			return fmt.Errorf("inserting fixture %d vs %d: %w", g.HomeTeamID, g.AwayTeamID, err)
		}
	}

	return tx.Commit()
}

// CreateGame inserts a single fixture and populates its ID.
func (s *Store) CreateGame(ctx context.Context, g *domain.Game) error {
	status := g.Status
	if status == "" {
		status = domain.GameScheduled
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO games (home_team_id, away_team_id, division, subdivision, game_date, match_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.HomeTeamID, g.AwayTeamID, g.Division, g.Subdivision, formatTimestamp(g.GameDate), g.MatchType, status)
	if err != nil {
		return fmt.Errorf("inserting game %d vs %d: %w", g.HomeTeamID, g.AwayTeamID, err)
	}
	g.ID, _ = result.LastInsertId()
	g.Status = status
	return nil
}

// DeleteScheduledGames removes all still-scheduled games for a subdivision,
// returning the number cleared. Completed and in-progress games are kept.
func (s *Store) DeleteScheduledGames(ctx context.Context, division int, subdivision string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM games WHERE division = ? AND subdivision = ? AND status = ?
	`, division, subdivision, domain.GameScheduled)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GameByID returns a game by ID
func (s *Store) GameByID(ctx context.Context, id int64) (*domain.Game, error) {
	row := s.db.QueryRowContext(ctx, gameSelect+` WHERE id = ?`, id)
	return scanGame(row)
}

// DueGames returns scheduled games whose kickoff time has passed.
func (s *Store) DueGames(ctx context.Context, now time.Time) ([]domain.Game, error) {
	rows, err := s.db.QueryContext(ctx, gameSelect+`
		WHERE status = ? AND game_date <= ? ORDER BY game_date
	`, domain.GameScheduled, formatTimestamp(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGames(rows)
}

// InProgressGames returns games currently marked live.
func (s *Store) InProgressGames(ctx context.Context) ([]domain.Game, error) {
	rows, err := s.db.QueryContext(ctx, gameSelect+`
		WHERE status = ? ORDER BY game_date
	`, domain.GameInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGames(rows)
}

// GamesBySubdivision returns a subdivision's fixtures in kickoff order with
// both team names resolved.
func (s *Store) GamesBySubdivision(ctx context.Context, division int, subdivision string) ([]domain.GameSummary, error) {
	rows, err := s.db.QueryContext(ctx, gameSummarySelect+`
		WHERE g.division = ? AND g.subdivision = ? ORDER BY g.game_date
	`, division, subdivision)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGameSummaries(rows)
}

// RecentGames returns the most recently completed games with both team
// names resolved.
func (s *Store) RecentGames(ctx context.Context, limit int) ([]domain.GameSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, gameSummarySelect+`
		WHERE g.status = ? ORDER BY g.completed_at DESC LIMIT ?
	`, domain.GameCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGameSummaries(rows)
}

// MarkGameInProgress transitions a scheduled game to in_progress. Returns
// false if the game was not in the scheduled state (already started or done).
func (s *Store) MarkGameInProgress(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE games SET status = ? WHERE id = ? AND status = ?
	`, domain.GameInProgress, id, domain.GameScheduled)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// CompleteGame finalizes a game's scores and MVP. The simulation log is
// kept as the completed match's event record; LoadSnapshot stops serving
// it once the status leaves in_progress.
func (s *Store) CompleteGame(ctx context.Context, id int64, homeScore, awayScore int, mvpPlayerID int64, completedAt time.Time) error {
	var mvp interface{}
	if mvpPlayerID > 0 {
		mvp = mvpPlayerID
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE games SET status = ?, home_score = ?, away_score = ?, mvp_player_id = ?, completed_at = ?
		WHERE id = ? AND status != ?
	`, domain.GameCompleted, homeScore, awayScore, mvp, formatTimestamp(completedAt), id, domain.GameCompleted)
	return err
}

// --- Snapshot methods ---

// SaveSnapshot overwrites a game's live-state snapshot. Idempotent: the
// latest write wins, there is no append history.
func (s *Store) SaveSnapshot(ctx context.Context, gameID int64, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE games SET simulation_log = ? WHERE id = ?
	`, string(blob), gameID)
	return err
}

// LoadSnapshot returns a game's persisted live state. ErrNoSnapshot is
// returned when the game is not in progress or no snapshot was written,
// signaling the caller to treat the game as not live.
func (s *Store) LoadSnapshot(ctx context.Context, gameID int64) ([]byte, error) {
	var status string
	var blob sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT status, simulation_log FROM games WHERE id = ?
	`, gameID).Scan(&status, &blob)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	if status != domain.GameInProgress || !blob.Valid || blob.String == "" {
		return nil, ErrNoSnapshot
	}
	return []byte(blob.String), nil
}
