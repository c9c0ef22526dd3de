package api

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emrys/duskball/internal/config"
	"github.com/emrys/duskball/internal/domain"
	"github.com/emrys/duskball/internal/engine"
	"github.com/emrys/duskball/internal/storage"
)

// UpdateSource is where the router gets live match updates from; in
// production this is the in-process relay.
type UpdateSource interface {
	Subscribe(fn func(domain.Event)) (*nats.Subscription, error)
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux       *http.ServeMux
	store     *storage.Store
	registry  *engine.Registry
	cfg       *config.Config
	updates   UpdateSource
	wsHub     *WebSocketHub
	staticDir string
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, registry *engine.Registry, updates UpdateSource, cfg *config.Config) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		store:     store,
		registry:  registry,
		cfg:       cfg,
		updates:   updates,
		wsHub:     NewWebSocketHub(),
		staticDir: cfg.Server.StaticDir,
	}

	// Season routes
	r.mux.HandleFunc("GET /api/season", r.handleGetSeason)
	r.mux.HandleFunc("POST /api/seasons", r.handleCreateSeason)
	r.mux.HandleFunc("POST /api/season/advance", r.handleAdvanceDay)

	// Team routes
	r.mux.HandleFunc("GET /api/teams", r.handleGetTeams)
	r.mux.HandleFunc("POST /api/teams", r.handleCreateTeam)
	r.mux.HandleFunc("GET /api/teams/{id}", r.handleGetTeam)
	r.mux.HandleFunc("POST /api/teams/{id}/players", r.handleAddPlayer)
	r.mux.HandleFunc("POST /api/teams/{id}/modifiers", r.handleAddModifier)

	r.mux.HandleFunc("GET /api/standings", r.handleGetStandings)

	// Fixture routes
	r.mux.HandleFunc("GET /api/games", r.handleGetGames)
	r.mux.HandleFunc("GET /api/games/{id}", r.handleGetGame)
	r.mux.HandleFunc("POST /api/schedule", r.handleGenerateSchedule)

	// Live match routes
	r.mux.HandleFunc("POST /api/games/{id}/start", r.handleStartGame)
	r.mux.HandleFunc("POST /api/games/{id}/complete", r.handleForceComplete)
	r.mux.HandleFunc("POST /api/exhibitions", r.handleStartExhibition)
	r.mux.HandleFunc("GET /api/live", r.handleGetLiveMatches)
	r.mux.HandleFunc("GET /api/live/{id}", r.handleGetLiveMatch)

	// WebSocket endpoints
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)
	r.mux.HandleFunc("GET /ws/matches/{id}", r.handleMatchWebSocket)

	// Health check and metrics
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Static files - only serve if staticDir is configured
	if r.staticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartWebSocketHub starts the hub and bridges relay updates into it.
func (r *Router) StartWebSocketHub() {
	go r.wsHub.Run()

	if r.updates == nil {
		return
	}
	if _, err := r.updates.Subscribe(r.wsHub.Broadcast); err != nil {
		log.Printf("Subscribing WebSocket hub to match updates: %v", err)
	}
}

// handleStatic serves static files from the configured directory
// For SPA support, serves index.html for any path that doesn't match a file
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}

	fullPath := filepath.Join(r.staticDir, path)

	// Security: ensure the path is within staticDir
	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		// SPA fallback: serve index.html for unknown paths
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	if contentType := getContentType(fullPath); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, req, fullPath)
}

// getContentType returns the content type for a file based on extension
func getContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	default:
		return ""
	}
}
