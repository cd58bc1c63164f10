// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateTautulli(); err != nil {
		return err
	}
	if err := c.validateJobRunner(); err != nil {
		return err
	}
	if err := c.validateAutomation(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTautulli() error {
	if c.Tautulli.URL == "" {
		return fmt.Errorf("TAUTULLI_URL is required")
	}
	if err := validateHTTPURL(c.Tautulli.URL, "TAUTULLI_URL"); err != nil {
		return err
	}
	if c.Tautulli.APIKey == "" {
		return fmt.Errorf("TAUTULLI_API_KEY is required")
	}
	if c.Tautulli.Timeout <= 0 {
		return fmt.Errorf("TAUTULLI_TIMEOUT must be positive, got %v", c.Tautulli.Timeout)
	}
	if c.Tautulli.RequestsPerSecond < 0 {
		return fmt.Errorf("TAUTULLI_REQUESTS_PER_SEC must not be negative, got %v", c.Tautulli.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validateJobRunner() error {
	if c.JobRunner.URL == "" {
		return fmt.Errorf("JOB_RUNNER_URL is required")
	}
	if err := validateHTTPURL(c.JobRunner.URL, "JOB_RUNNER_URL"); err != nil {
		return err
	}
	if c.JobRunner.Timeout <= 0 {
		return fmt.Errorf("JOB_RUNNER_TIMEOUT must be positive, got %v", c.JobRunner.Timeout)
	}
	return nil
}

func (c *Config) validateAutomation() error {
	a := c.Automation

	if a.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s, got %v", a.PollInterval)
	}
	if a.RecentlyAddedInterval < a.PollInterval {
		return fmt.Errorf("RECENTLY_ADDED_INTERVAL (%v) must not be shorter than POLL_INTERVAL (%v)",
			a.RecentlyAddedInterval, a.PollInterval)
	}
	if a.RecentlyAddedLimit <= 0 {
		return fmt.Errorf("RECENTLY_ADDED_LIMIT must be positive, got %d", a.RecentlyAddedLimit)
	}

	for name, v := range map[string]float64{
		"RECOMMEND_THRESHOLD":  a.RecommendThreshold,
		"TASTE_THRESHOLD":      a.TasteThreshold,
		"FORCE_BOTH_THRESHOLD": a.ForceBothThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}
	if a.ForceBothThreshold < a.RecommendThreshold && a.ForceBothThreshold < a.TasteThreshold {
		return fmt.Errorf("FORCE_BOTH_THRESHOLD (%v) below both per-kind thresholds makes them unreachable",
			a.ForceBothThreshold)
	}

	if a.MinDuration < 0 {
		return fmt.Errorf("MIN_DURATION must not be negative, got %v", a.MinDuration)
	}
	if a.CooldownWindow <= 0 {
		return fmt.Errorf("COOLDOWN_WINDOW must be positive, got %v", a.CooldownWindow)
	}
	if a.LibraryDebounceWindow < 0 {
		return fmt.Errorf("LIBRARY_DEBOUNCE_WINDOW must not be negative, got %v", a.LibraryDebounceWindow)
	}
	if a.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", a.MaxAttempts)
	}
	if a.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %v", a.SessionTTL)
	}
	if a.FutureSkewLimit <= 0 {
		return fmt.Errorf("FUTURE_SKEW_LIMIT must be positive, got %v", a.FutureSkewLimit)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT %q must be json or console", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a value parses as an http(s) URL with a host.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
