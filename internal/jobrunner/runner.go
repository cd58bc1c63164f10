// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package jobrunner is the client side of the automation job runner: an
// opaque service that executes a named job for a user with a JSON input
// payload and returns a run identifier.
//
// The engine guarantees at-most-once dispatch per logical eligibility event;
// the runner is not expected to deduplicate.
package jobrunner

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// Runner executes automation jobs. Implementations must be safe for
// concurrent use; a call may be long-running and is bounded only by the
// context and the client timeout.
type Runner interface {
	Run(ctx context.Context, kind models.JobKind, userID int, input []byte) (RunID, error)
}

// RunID identifies one accepted job run.
type RunID string

// runRequest is the wire shape posted to the runner.
type runRequest struct {
	Job    models.JobKind  `json:"job"`
	UserID int             `json:"user_id"`
	Input  json.RawMessage `json:"input,omitempty"`
}

// runResponse is the wire shape of an accepted run.
type runResponse struct {
	RunID string `json:"run_id"`
	Error string `json:"error,omitempty"`
}

// HTTPRunner posts job runs to the runner's /api/v1/run endpoint.
type HTTPRunner struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPRunner creates a runner client from configuration.
func NewHTTPRunner(cfg *config.JobRunnerConfig) *HTTPRunner {
	return &HTTPRunner{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Run dispatches one job and blocks until the runner accepts or rejects it.
func (r *HTTPRunner) Run(ctx context.Context, kind models.JobKind, userID int, input []byte) (RunID, error) {
	start := time.Now()
	defer func() {
		metrics.JobRunDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(runRequest{Job: kind, UserID: userID, Input: input})
	if err != nil {
		return "", fmt.Errorf("failed to encode run request: %w", err)
	}

	reqURL := r.baseURL + "/api/v1/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("job runner request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded runResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode run response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg := decoded.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("job runner rejected %s for user %d: %s", kind, userID, msg)
	}

	if decoded.RunID == "" {
		return "", fmt.Errorf("job runner returned empty run id for %s", kind)
	}
	return RunID(decoded.RunID), nil
}
