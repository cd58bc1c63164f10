// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package mediaserver provides the Tautulli-backed media server client: the
// two read feeds the automation engine polls, normalized into plain records.
//
// Resilience follows the Tautulli API's behavior: automatic exponential
// backoff on HTTP 429 (honoring Retry-After), an outbound token-bucket rate
// limiter, and an optional circuit breaker wrapper for sustained outages.
// Both feeds failing is never fatal to a poll tick; the engine treats it as
// "no data this tick".
package mediaserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/models"
)

// Client supplies the two read operations the engine polls. Both may fail
// transiently; callers must treat failures as "no data this tick".
type Client interface {
	// ListNowPlaying returns all current playback sessions.
	ListNowPlaying(ctx context.Context) ([]models.Session, error)

	// ListRecentlyAdded returns the most recent library additions, newest
	// first, up to limit.
	ListRecentlyAdded(ctx context.Context, limit int) ([]models.RecentItem, error)
}

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// TautulliClient talks to Tautulli's /api/v2 endpoint.
type TautulliClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter

	maxRetries     int
	retryBaseDelay time.Duration
}

// NewTautulliClient creates a client from configuration. A zero
// RequestsPerSecond disables the outbound limiter.
func NewTautulliClient(cfg *config.TautulliConfig) *TautulliClient {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &TautulliClient{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:        limiter,
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// ListNowPlaying fetches get_activity and normalizes every session.
func (c *TautulliClient) ListNowPlaying(ctx context.Context) ([]models.Session, error) {
	var envelope activityEnvelope
	if err := c.makeRequest(ctx, "get_activity", nil, &envelope); err != nil {
		return nil, err
	}
	if err := checkResult(envelope.Response.baseResponse, "get_activity"); err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(envelope.Response.Data.Sessions))
	for _, s := range envelope.Response.Data.Sessions {
		sessions = append(sessions, normalizeSession(s))
	}
	return sessions, nil
}

// ListRecentlyAdded fetches get_recently_added with the given count.
func (c *TautulliClient) ListRecentlyAdded(ctx context.Context, limit int) ([]models.RecentItem, error) {
	params := url.Values{}
	params.Set("count", strconv.Itoa(limit))

	var envelope recentlyAddedEnvelope
	if err := c.makeRequest(ctx, "get_recently_added", params, &envelope); err != nil {
		return nil, err
	}
	if err := checkResult(envelope.Response.baseResponse, "get_recently_added"); err != nil {
		return nil, err
	}

	items := make([]models.RecentItem, 0, len(envelope.Response.Data.RecentlyAdded))
	for _, i := range envelope.Response.Data.RecentlyAdded {
		items = append(items, normalizeRecentItem(i))
	}
	return items, nil
}

// Ping verifies connectivity to the Tautulli API.
func (c *TautulliClient) Ping(ctx context.Context) error {
	var envelope struct {
		Response struct {
			baseResponse
		} `json:"response"`
	}
	if err := c.makeRequest(ctx, "arnold", nil, &envelope); err != nil {
		return fmt.Errorf("failed to ping Tautulli: %w", err)
	}
	return nil
}

// makeRequest handles the common API boilerplate: URL construction with the
// API key, the rate limiter, 429 backoff, status checking, and JSON decode.
func (c *TautulliClient) makeRequest(ctx context.Context, cmd string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return fmt.Errorf("failed to make %s request: %w", cmd, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s request failed with status %d: %s", cmd, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}
	return nil
}

// doRequestWithRateLimit performs an HTTP request with automatic HTTP 429
// handling: exponential backoff (1s, 2s, 4s, 8s, 16s), honoring Retry-After
// when present. Backoff waits are cancellable through the context.
func (c *TautulliClient) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// checkResult validates the Tautulli response wrapper.
func checkResult(base baseResponse, cmd string) error {
	if base.Result == "success" {
		return nil
	}
	msg := "unknown error"
	if base.Message != nil {
		msg = *base.Message
	}
	return fmt.Errorf("%s request failed: %s", cmd, msg)
}

// readBodyForError reads up to maxErrorBodySize of a response body for error
// reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
