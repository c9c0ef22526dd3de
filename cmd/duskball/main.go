// duskball - fantasy arena league server and tools
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/emrys/duskball/internal/api"
	"github.com/emrys/duskball/internal/automation"
	"github.com/emrys/duskball/internal/config"
	"github.com/emrys/duskball/internal/engine"
	"github.com/emrys/duskball/internal/relay"
	"github.com/emrys/duskball/internal/storage"
	flag "github.com/spf13/pflag"
)

var version = "dev"

const defaultConfigPath = "/etc/duskball/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "season":
		cmdSeason(os.Args[2:])
	case "standings":
		cmdStandings(os.Args[2:])
	case "matches":
		cmdMatches(os.Args[2:])
	case "teams":
		cmdTeams(os.Args[2:])
	case "schedule":
		cmdSchedule(os.Args[2:])
	case "version":
		fmt.Printf("duskball %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: duskball <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Start the league server")
	fmt.Println("  season                              Show the active season")
	fmt.Println("  season start --number N             Open a new season")
	fmt.Println("  season advance                      Advance the season one day")
	fmt.Println("  standings --division N --subdivision NAME")
	fmt.Println("                                      Show a subdivision table")
	fmt.Println("  matches [--recent N]                Show recent games (default: 20)")
	fmt.Println("  teams                               List registered teams")
	fmt.Println("  schedule --division N --subdivision NAME [--fill-day D]")
	fmt.Println("                                      Generate fixtures for a subdivision")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/duskball/config.yml)")
	fmt.Println("  --url <url>        Base URL of the duskball server (default: derived from config)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  duskball serve --config /etc/duskball/config.yml")
	fmt.Println("  duskball season start --number 1")
	fmt.Println("  duskball schedule --division 3 --subdivision beta")
	fmt.Println("  duskball standings --division 3 --subdivision beta")
	fmt.Println("  duskball matches --recent 50")
}

// cmdServe starts the league server
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	// Determine config path; fall back to built-in defaults when no file
	// exists, so a fresh checkout runs without any setup.
	cfg, err := loadServeConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Duskball %s starting...", version)

	// Initialize storage
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized at %s", cfg.Database.Path)

	// Start the in-process update relay
	rel, err := relay.New()
	if err != nil {
		log.Fatalf("Failed to start update relay: %v", err)
	}
	defer rel.Close()

	// Create the match registry
	registry := engine.NewRegistry(store, rel, engine.Config{
		TickInterval:   cfg.Season.TickInterval,
		SecondsPerTick: cfg.Season.SecondsPerTick,
		HalftimeTicks:  cfg.Season.HalftimeTicks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resume matches interrupted by a previous shutdown before the
	// automation loop starts handing out new ones.
	scheduler, err := automation.New(cfg, store, registry)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := scheduler.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover in-progress matches: %v", err)
	}
	scheduler.Start(ctx)
	log.Printf("Scheduler started, polling every %v", cfg.Automation.PollInterval)

	// Create HTTP router
	router := api.NewRouter(store, registry, rel, cfg)
	router.StartWebSocketHub()
	if cfg.Server.StaticDir != "" {
		log.Printf("Serving static files from %s", cfg.Server.StaticDir)
	}

	// Start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for signal or error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	}

	// Sequential shutdown: stop taking requests, stop the automation loop,
	// then drain live matches so their final snapshots land before the
	// relay and database close.
	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	scheduler.Stop()

	log.Println("Draining live matches...")
	registry.DrainAll(30 * time.Second)

	cancel()
	log.Println("Shutdown complete")
}

// loadServeConfig loads the serve config from the given path, the default
// path, or built-in defaults, in that order.
func loadServeConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	log.Printf("No config file at %s, using built-in defaults", defaultConfigPath)
	return config.Default(), nil
}

// CLI helper variable, set by loadCLIConfigFromFlags
var baseURL = "http://localhost:8090"

// loadCLIConfigFromFlags derives the server URL from config and flags
func loadCLIConfigFromFlags(configPath, url string) {
	if url != "" {
		baseURL = url
		return
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath != defaultConfigPath {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", configPath, err)
		}
		return
	}
	baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
}

// cmdSeason shows the active season or dispatches start/advance
func cmdSeason(args []string) {
	if len(args) > 0 && (args[0] == "start" || args[0] == "advance") {
		subCmd := args[0]
		args = args[1:]
		switch subCmd {
		case "start":
			cmdSeasonStart(args)
		case "advance":
			cmdSeasonAdvance(args)
		}
		return
	}

	fs := flag.NewFlagSet("season", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the duskball server")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var response map[string]interface{}
	if err := getJSON("/api/season", &response); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	season, ok := response["season"].(map[string]interface{})
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unexpected response format\n")
		os.Exit(1)
	}
	number := int(season["number"].(float64))
	day := int(response["day"].(float64))
	phase := response["phase"].(string)
	fmt.Printf("Season %d, day %d (%s)\n", number, day, phase)
	if open, ok := response["window_open"].(bool); ok {
		if open {
			fmt.Println("Simulation window: open")
		} else {
			fmt.Println("Simulation window: closed")
		}
	}
}

func cmdSeasonStart(args []string) {
	fs := flag.NewFlagSet("season start", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the duskball server")
	number := fs.Int("number", 0, "season number")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	if *number <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --number is required and must be positive\n")
		os.Exit(1)
	}

	var season map[string]interface{}
	if err := postJSON("/api/seasons", map[string]interface{}{"number": *number}, &season); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Season %d opened on day 1\n", *number)
}

func cmdSeasonAdvance(args []string) {
	fs := flag.NewFlagSet("season advance", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the duskball server")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var season map[string]interface{}
	if err := postJSON("/api/season/advance", nil, &season); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	day := int(season["current_day"].(float64))
	phase := season["phase"].(string)
	fmt.Printf("Season advanced to day %d (%s)\n", day, phase)
}

func cmdStandings(args []string) {
	fs := flag.NewFlagSet("standings", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the duskball server")
	division := fs.Int("division", 0, "division tier")
	subdivision := fs.String("subdivision", "", "subdivision name")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	if *division == 0 || *subdivision == "" {
		fmt.Fprintf(os.Stderr, "Error: --division and --subdivision are required\n")
		os.Exit(1)
	}

	var entries []map[string]interface{}
	path := fmt.Sprintf("/api/standings?division=%d&subdivision=%s", *division, *subdivision)
	if err := getJSON(path, &entries); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tTEAM\tW\tL\tPTS")
	fmt.Fprintln(w, "----\t----\t-\t-\t---")

	for _, entry := range entries {
		rank := int(entry["rank"].(float64))
		name := entry["name"].(string)
		wins := int(entry["wins"].(float64))
		losses := int(entry["losses"].(float64))
		points := int(entry["points"].(float64))
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", rank, name, wins, losses, points)
	}

	w.Flush()
}

func cmdMatches(args []string) {
	fs := flag.NewFlagSet("matches", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the duskball server")
	limit := fs.Int("recent", 20, "number of recent games to show")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var games []map[string]interface{}
	if err := getJSON(fmt.Sprintf("/api/games?limit=%d", *limit), &games); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHOME\tAWAY\tTYPE\tKICKOFF\tSTATUS\tSCORE")
	fmt.Fprintln(w, "--\t----\t----\t----\t-------\t------\t-----")

	for _, game := range games {
		id := int64(game["id"].(float64))
		home := stringField(game, "home_team_name")
		away := stringField(game, "away_team_name")
		matchType := stringField(game, "match_type")
		status := stringField(game, "status")

		kickoff := "-"
		if s, ok := game["game_date"].(string); ok {
			kickoff = formatTime(s)
		}

		score := "-"
		if hs, ok := game["home_score"].(float64); ok {
			if as, ok := game["away_score"].(float64); ok {
				score = fmt.Sprintf("%d-%d", int(hs), int(as))
			}
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", id, home, away, matchType, kickoff, status, score)
	}

	w.Flush()
}

func cmdTeams(args []string) {
	fs := flag.NewFlagSet("teams", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the duskball server")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var teams []map[string]interface{}
	if err := getJSON("/api/teams", &teams); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIVISION\tSUBDIVISION\tW\tL\tPTS")
	fmt.Fprintln(w, "--\t----\t--------\t-----------\t-\t-\t---")

	for _, team := range teams {
		id := int64(team["id"].(float64))
		name := team["name"].(string)
		division := int(team["division"].(float64))
		subdivision := team["subdivision"].(string)
		wins := int(team["wins"].(float64))
		losses := int(team["losses"].(float64))
		points := int(team["points"].(float64))
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%d\t%d\n", id, name, division, subdivision, wins, losses, points)
	}

	w.Flush()
}

func cmdSchedule(args []string) {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the duskball server")
	division := fs.Int("division", 0, "division tier")
	subdivision := fs.String("subdivision", "", "subdivision name")
	fillDay := fs.Int("fill-day", 1, "game day the subdivision filled on (shortens late schedules)")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	if *division == 0 || *subdivision == "" {
		fmt.Fprintf(os.Stderr, "Error: --division and --subdivision are required\n")
		os.Exit(1)
	}

	var result map[string]interface{}
	body := map[string]interface{}{
		"division":    *division,
		"subdivision": *subdivision,
		"fill_day":    *fillDay,
	}
	if err := postJSON("/api/schedule", body, &result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	created := int(result["games_created"].(float64))
	fmt.Printf("Schedule generated: %d games for division %d %s\n", created, *division, *subdivision)
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return "-"
}

func getJSON(path string, target interface{}) error {
	url := baseURL + path
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func postJSON(path string, payload, target interface{}) error {
	url := baseURL + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := http.Post(url, "application/json", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func formatTime(isoTime string) string {
	// Simple formatting - just show time portion
	if idx := strings.Index(isoTime, "T"); idx != -1 {
		t := isoTime[idx+1:]
		if dotIdx := strings.Index(t, "."); dotIdx != -1 {
			t = t[:dotIdx]
		}
		if zIdx := strings.Index(t, "Z"); zIdx != -1 {
			t = t[:zIdx]
		}
		return isoTime[:idx] + " " + t
	}
	return isoTime
}
