package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emrys/duskball/internal/clock"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Season     SeasonConfig     `yaml:"season"`
	Automation AutomationConfig `yaml:"automation"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
	StaticDir  string `yaml:"static_dir"` // dashboard assets; empty disables
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SeasonConfig holds calendar, window, and simulation pacing settings
type SeasonConfig struct {
	Timezone        string        `yaml:"timezone"`
	WindowOpenHour  int           `yaml:"window_open_hour"`
	WindowCloseHour int           `yaml:"window_close_hour"`
	SlotTimes       []string      `yaml:"slot_times"` // "HH:MM" local kickoff slots
	TickInterval    time.Duration `yaml:"tick_interval"`
	SecondsPerTick  int           `yaml:"seconds_per_tick"`
	HalftimeTicks   int           `yaml:"halftime_ticks"`
}

// AutomationConfig toggles the timer-driven loops
type AutomationConfig struct {
	StartMatches bool          `yaml:"start_matches"`
	AdvanceDay   bool          `yaml:"advance_day"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Season.Timezone, err)
	}
	if _, err := cfg.Slots(); err != nil {
		return nil, err
	}
	if cfg.Season.WindowOpenHour >= cfg.Season.WindowCloseHour {
		return nil, fmt.Errorf("simulation window open hour %d must be before close hour %d",
			cfg.Season.WindowOpenHour, cfg.Season.WindowCloseHour)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8090
	}
	if c.Database.Path == "" {
		c.Database.Path = "/var/lib/duskball/duskball.db"
	}
	if c.Season.Timezone == "" {
		c.Season.Timezone = "America/New_York"
	}
	if c.Season.WindowOpenHour == 0 && c.Season.WindowCloseHour == 0 {
		c.Season.WindowOpenHour = 16
		c.Season.WindowCloseHour = 22
	}
	if len(c.Season.SlotTimes) == 0 {
		c.Season.SlotTimes = []string{"16:00", "16:15", "16:30", "16:45"}
	}
	if c.Season.TickInterval == 0 {
		c.Season.TickInterval = 3 * time.Second
	}
	if c.Season.SecondsPerTick == 0 {
		c.Season.SecondsPerTick = 10
	}
	if c.Season.HalftimeTicks == 0 {
		c.Season.HalftimeTicks = 5
	}
	if c.Automation.PollInterval == 0 {
		c.Automation.PollInterval = time.Minute
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Season.Timezone)
}

// Window returns the configured daily simulation window.
func (c *Config) Window() clock.Window {
	return clock.Window{OpenHour: c.Season.WindowOpenHour, CloseHour: c.Season.WindowCloseHour}
}

// Slots parses the configured kickoff slot times.
func (c *Config) Slots() ([]clock.Slot, error) {
	slots := make([]clock.Slot, 0, len(c.Season.SlotTimes))
	for _, s := range c.Season.SlotTimes {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("invalid slot time %q: %w", s, err)
		}
		slots = append(slots, clock.Slot{Hour: t.Hour(), Minute: t.Minute()})
	}
	return slots, nil
}
