package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/emrys/duskball/internal/clock"
	"github.com/emrys/duskball/internal/domain"
	"github.com/emrys/duskball/internal/engine"
	"github.com/emrys/duskball/internal/schedule"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseID parses an ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	idStr := req.PathValue(param)
	return strconv.ParseInt(idStr, 10, 64)
}

// parseLimit reads a limit query parameter with a default and a ceiling.
func parseLimit(req *http.Request, def, max int) int {
	limit := def
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// handleGetSeason returns the active season with its live day and phase.
func (r *Router) handleGetSeason(w http.ResponseWriter, req *http.Request) {
	season, err := r.store.ActiveSeason(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if season == nil {
		writeError(w, http.StatusNotFound, "no active season")
		return
	}

	loc, err := r.cfg.Location()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now()
	day := clock.DayInCycle(now, season.StartDate)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"season":      season,
		"day":         day,
		"phase":       clock.PhaseForDay(day),
		"window_open": r.cfg.Window().Contains(now, loc),
	})
}

// handleCreateSeason opens a new season cycle.
func (r *Router) handleCreateSeason(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Number    int    `json:"number"`
		StartDate string `json:"start_date"` // RFC 3339; defaults to now
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Number <= 0 {
		writeError(w, http.StatusBadRequest, "season number must be positive")
		return
	}

	start := time.Now().UTC()
	if body.StartDate != "" {
		parsed, err := time.Parse(time.RFC3339, body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be RFC 3339")
			return
		}
		start = parsed.UTC()
	}

	season, err := r.store.CreateSeason(req.Context(), body.Number, start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, season)
}

// handleAdvanceDay moves the active season forward one day, wrapping the
// 17-day cycle.
func (r *Router) handleAdvanceDay(w http.ResponseWriter, req *http.Request) {
	season, err := r.store.ActiveSeason(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if season == nil {
		writeError(w, http.StatusNotFound, "no active season")
		return
	}

	day := season.CurrentDay%domain.SeasonCycleDays + 1
	phase := clock.PhaseForDay(day)
	if err := r.store.AdvanceSeasonDay(req.Context(), season.ID, day, phase); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	season.CurrentDay = day
	season.Phase = phase
	writeJSON(w, http.StatusOK, season)
}

// handleGetTeams returns teams, optionally filtered to one subdivision.
func (r *Router) handleGetTeams(w http.ResponseWriter, req *http.Request) {
	division, subdivision, ok, err := subdivisionQuery(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var teams []domain.Team
	if ok {
		teams, err = r.store.TeamsBySubdivision(req.Context(), division, subdivision)
	} else {
		teams, err = r.store.AllTeams(req.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// handleCreateTeam registers a team in its division and subdivision.
func (r *Router) handleCreateTeam(w http.ResponseWriter, req *http.Request) {
	var team domain.Team
	if err := json.NewDecoder(req.Body).Decode(&team); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateTeam(&team); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.store.UpsertTeam(req.Context(), &team); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// handleGetTeam returns a team with its roster.
func (r *Router) handleGetTeam(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	team, err := r.store.GetTeamByID(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	roster, err := r.store.PlayersByTeam(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	mods, err := r.store.TeamModifiers(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	team.Roster = roster
	team.Modifiers = mods
	writeJSON(w, http.StatusOK, team)
}

// handleAddPlayer adds a player to a team's roster.
func (r *Router) handleAddPlayer(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if _, err := r.store.GetTeamByID(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}

	var player domain.Player
	if err := json.NewDecoder(req.Body).Decode(&player); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	player.TeamID = id
	if err := validatePlayer(&player); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.store.CreatePlayer(req.Context(), &player); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

// handleAddModifier attaches an equipment, consumable, or staff effect to a
// team. The effect is folded into the team's match modifier at the next
// kickoff; consumables are spent by that kickoff.
func (r *Router) handleAddModifier(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if _, err := r.store.GetTeamByID(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}

	var mod domain.TeamModifier
	if err := json.NewDecoder(req.Body).Decode(&mod); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mod.TeamID = id
	if err := validateModifier(&mod); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.store.CreateTeamModifier(req.Context(), &mod); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, mod)
}

// handleGetStandings returns one subdivision's table.
func (r *Router) handleGetStandings(w http.ResponseWriter, req *http.Request) {
	division, subdivision, ok, err := subdivisionQuery(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "division and subdivision are required")
		return
	}

	standings, err := r.store.Standings(req.Context(), division, subdivision)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

// handleGetGames returns fixtures for a subdivision, or recent games when no
// filter is given.
func (r *Router) handleGetGames(w http.ResponseWriter, req *http.Request) {
	division, subdivision, ok, err := subdivisionQuery(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var games []domain.GameSummary
	if ok {
		games, err = r.store.GamesBySubdivision(req.Context(), division, subdivision)
	} else {
		games, err = r.store.RecentGames(req.Context(), parseLimit(req, 50, 200))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// handleGetGame returns a single fixture.
func (r *Router) handleGetGame(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	game, err := r.store.GameByID(req.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// handleGenerateSchedule builds and stores a subdivision's round-robin
// fixtures. A fill_day later than day 1 produces the shortened late-signup
// slate instead of the full double slate.
func (r *Router) handleGenerateSchedule(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Division    int    `json:"division"`
		Subdivision string `json:"subdivision"`
		StartDay    int    `json:"start_day"`
		FillDay     int    `json:"fill_day"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateSubdivision(body.Division, body.Subdivision); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	season, err := r.store.ActiveSeason(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if season == nil {
		writeError(w, http.StatusConflict, "no active season to schedule into")
		return
	}

	teams, err := r.store.TeamsBySubdivision(req.Context(), body.Division, body.Subdivision)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	loc, err := r.cfg.Location()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slots, err := r.cfg.Slots()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	opts := schedule.Options{
		StartDay:    body.StartDay,
		SeasonStart: season.StartDate,
		Location:    loc,
		Slots:       slots,
	}
	if opts.StartDay == 0 {
		opts.StartDay = 1
	}

	var games []domain.Game
	if body.FillDay > 1 {
		games, err = schedule.GenerateShortened(teams, body.FillDay, opts)
	} else {
		games, err = schedule.Generate(teams, opts)
	}
	if err != nil {
		if errors.Is(err, schedule.ErrOddTeamCount) || errors.Is(err, schedule.ErrNoTeams) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := schedule.Apply(req.Context(), r.store, body.Division, body.Subdivision, games); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"games_created": len(games),
		"division":      body.Division,
		"subdivision":   body.Subdivision,
	})
}

// handleStartGame starts a scheduled fixture's live simulation.
func (r *Router) handleStartGame(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	runner, err := r.registry.StartMatch(req.Context(), id)
	switch {
	case errors.Is(err, engine.ErrAlreadyLive), errors.Is(err, engine.ErrNotStartable):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"game_id": runner.GameID(),
		"status":  domain.GameInProgress,
	})
}

// handleForceComplete force-completes a live match at its current score.
func (r *Router) handleForceComplete(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	runner, ok := r.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "match is not live")
		return
	}
	runner.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "completing"})
}

// handleStartExhibition creates and starts an instant exhibition match.
func (r *Router) handleStartExhibition(w http.ResponseWriter, req *http.Request) {
	var body struct {
		HomeTeamID int64 `json:"home_team_id"`
		AwayTeamID int64 `json:"away_team_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.HomeTeamID == 0 || body.AwayTeamID == 0 {
		writeError(w, http.StatusBadRequest, "home_team_id and away_team_id are required")
		return
	}

	runner, err := r.registry.StartExhibition(req.Context(), body.HomeTeamID, body.AwayTeamID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"game_id":    runner.GameID(),
		"match_type": domain.MatchExhibition,
		"status":     domain.GameInProgress,
	})
}

// handleGetLiveMatches lists the matches currently simulating.
func (r *Router) handleGetLiveMatches(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"live": r.registry.Live(),
	})
}

// handleGetLiveMatch returns a live match's full current state.
func (r *Router) handleGetLiveMatch(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	runner, ok := r.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "match is not live")
		return
	}
	blob, err := runner.StateSnapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// handleHealth reports service liveness.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"live_matches": r.registry.LiveCount(),
		"ws_clients":   r.wsHub.ClientCount(),
	})
}

// subdivisionQuery reads the optional division+subdivision query pair. Both
// must be present together.
func subdivisionQuery(req *http.Request) (int, string, bool, error) {
	divStr := req.URL.Query().Get("division")
	subdivision := req.URL.Query().Get("subdivision")
	if divStr == "" && subdivision == "" {
		return 0, "", false, nil
	}
	if divStr == "" || subdivision == "" {
		return 0, "", false, errors.New("division and subdivision must be given together")
	}
	division, err := strconv.Atoi(divStr)
	if err != nil {
		return 0, "", false, errors.New("division must be a number")
	}
	if err := validateSubdivision(division, subdivision); err != nil {
		return 0, "", false, err
	}
	return division, subdivision, true, nil
}
