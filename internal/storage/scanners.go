package storage

import (
	"database/sql"

	"github.com/emrys/duskball/internal/domain"
)

const gameSelect = `
	SELECT id, home_team_id, away_team_id, division, subdivision, game_date,
	       match_type, status, home_score, away_score, mvp_player_id, completed_at, created_at
	FROM games`

// gameSummarySelect joins both team names onto each fixture for listings.
const gameSummarySelect = `
	SELECT g.id, g.home_team_id, g.away_team_id, g.division, g.subdivision, g.game_date,
	       g.match_type, g.status, g.home_score, g.away_score, g.mvp_player_id, g.completed_at, g.created_at,
	       h.name, a.name
	FROM games g
	JOIN teams h ON h.id = g.home_team_id
	JOIN teams a ON a.id = g.away_team_id`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGameRow(sc rowScanner) (*domain.Game, error) {
	var g domain.Game
	var homeScore, awayScore, mvp sql.NullInt64
	var completedAt sql.NullTime
	if err := sc.Scan(&g.ID, &g.HomeTeamID, &g.AwayTeamID, &g.Division, &g.Subdivision, &g.GameDate,
		&g.MatchType, &g.Status, &homeScore, &awayScore, &mvp, &completedAt, &g.CreatedAt); err != nil {
		return nil, err
	}
	if homeScore.Valid {
		v := int(homeScore.Int64)
		g.HomeScore = &v
	}
	if awayScore.Valid {
		v := int(awayScore.Int64)
		g.AwayScore = &v
	}
	if mvp.Valid {
		g.MVPPlayerID = &mvp.Int64
	}
	if completedAt.Valid {
		g.CompletedAt = &completedAt.Time
	}
	return &g, nil
}

func scanGame(row *sql.Row) (*domain.Game, error) {
	return scanGameRow(row)
}

func scanGames(rows *sql.Rows) ([]domain.Game, error) {
	var games []domain.Game
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func scanGameSummaries(rows *sql.Rows) ([]domain.GameSummary, error) {
	var games []domain.GameSummary
	for rows.Next() {
		var g domain.GameSummary
		var homeScore, awayScore, mvp sql.NullInt64
		var completedAt sql.NullTime
		if err := rows.Scan(&g.ID, &g.HomeTeamID, &g.AwayTeamID, &g.Division, &g.Subdivision, &g.GameDate,
			&g.MatchType, &g.Status, &homeScore, &awayScore, &mvp, &completedAt, &g.CreatedAt,
			&g.HomeTeamName, &g.AwayTeamName); err != nil {
			return nil, err
		}
		if homeScore.Valid {
			v := int(homeScore.Int64)
			g.HomeScore = &v
		}
		if awayScore.Valid {
			v := int(awayScore.Int64)
			g.AwayScore = &v
		}
		if mvp.Valid {
			g.MVPPlayerID = &mvp.Int64
		}
		if completedAt.Valid {
			g.CompletedAt = &completedAt.Time
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func scanTeamRow(sc rowScanner) (*domain.Team, error) {
	var t domain.Team
	if err := sc.Scan(&t.ID, &t.Name, &t.Division, &t.Subdivision, &t.Wins, &t.Losses, &t.Points,
		&t.Camaraderie, &t.Atmosphere, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTeam(row *sql.Row) (*domain.Team, error) {
	return scanTeamRow(row)
}

func scanTeams(rows *sql.Rows) ([]domain.Team, error) {
	var teams []domain.Team
	for rows.Next() {
		t, err := scanTeamRow(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

func scanPlayers(rows *sql.Rows) ([]domain.Player, error) {
	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.Race, &p.Role, &p.Power, &p.Speed, &p.Agility,
			&p.Throwing, &p.Catching, &p.Stamina, &p.Leadership, &p.CreatedAt); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
