// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package config loads and validates Curatarr configuration via Koanf v2
// with layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Tautulli   TautulliConfig   `koanf:"tautulli"`
	JobRunner  JobRunnerConfig  `koanf:"jobrunner"`
	Automation AutomationConfig `koanf:"automation"`
	Database   DatabaseConfig   `koanf:"database"`
	State      StateConfig      `koanf:"state"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// TautulliConfig configures the media-server client. Tautulli fronts the
// Plex server and exposes the activity and recently-added feeds.
type TautulliConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond caps outbound API calls. Zero disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// JobRunnerConfig configures the automation job runner endpoint.
type JobRunnerConfig struct {
	URL     string        `koanf:"url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// AutomationConfig holds the polling-engine knobs. All durations and
// thresholds are independently overridable from the environment.
type AutomationConfig struct {
	// PollInterval drives the now-playing tick.
	PollInterval time.Duration `koanf:"poll_interval"`

	// RecentlyAddedInterval is the slower cadence for library polling.
	RecentlyAddedInterval time.Duration `koanf:"recently_added_interval"`

	// RecentlyAddedLimit bounds how many items one library poll fetches.
	RecentlyAddedLimit int `koanf:"recently_added_limit"`

	// RecommendThreshold is the watch ratio at which a recommendation
	// refresh becomes eligible.
	RecommendThreshold float64 `koanf:"recommend_threshold"`

	// TasteThreshold is the watch ratio at which a taste-signal job
	// becomes eligible.
	TasteThreshold float64 `koanf:"taste_threshold"`

	// ForceBothThreshold makes both session job kinds eligible once
	// crossed, regardless of their individual thresholds.
	ForceBothThreshold float64 `koanf:"force_both_threshold"`

	// MinDuration suppresses evaluation for very short items (trailers,
	// previews).
	MinDuration time.Duration `koanf:"min_duration"`

	// CooldownWindow is the minimum spacing between job starts per user.
	CooldownWindow time.Duration `koanf:"cooldown_window"`

	// LibraryDebounceWindow coalesces recently-added bursts into a single
	// event.
	LibraryDebounceWindow time.Duration `koanf:"library_debounce_window"`

	// MaxAttempts bounds retries of a failed job run.
	MaxAttempts int `koanf:"max_attempts"`

	// SessionTTL is the idle age after which ledger entries are swept.
	SessionTTL time.Duration `koanf:"session_ttl"`

	// FutureSkewLimit rejects recently-added timestamps further than this
	// into the future as clock-drift garbage.
	FutureSkewLimit time.Duration `koanf:"future_skew_limit"`

	// LibraryJobUserID is the platform user that owns library-refresh runs.
	LibraryJobUserID int `koanf:"library_job_user_id"`
}

// DatabaseConfig configures the DuckDB event-history store.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// StateConfig configures the BadgerDB settings/state store.
type StateConfig struct {
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence. Tests only.
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig configures the HTTP status API.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Tautulli: TautulliConfig{
			URL:               "",
			APIKey:            "",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 4,
		},
		JobRunner: JobRunnerConfig{
			URL:     "",
			Token:   "",
			Timeout: 5 * time.Minute,
		},
		Automation: AutomationConfig{
			PollInterval:          15 * time.Second,
			RecentlyAddedInterval: 2 * time.Minute,
			RecentlyAddedLimit:    50,
			RecommendThreshold:    0.55,
			TasteThreshold:        0.70,
			ForceBothThreshold:    0.85,
			MinDuration:           5 * time.Minute,
			CooldownWindow:        10 * time.Minute,
			LibraryDebounceWindow: 5 * time.Minute,
			MaxAttempts:           3,
			SessionTTL:            6 * time.Hour,
			FutureSkewLimit:       24 * time.Hour,
			LibraryJobUserID:      0,
		},
		Database: DatabaseConfig{
			Path: "/data/curatarr.duckdb",
		},
		State: StateConfig{
			Path:     "/data/state",
			InMemory: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8585,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
