// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package jobrunner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/models"
)

func newTestRunner(t *testing.T, handler http.HandlerFunc) (*HTTPRunner, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	runner := NewHTTPRunner(&config.JobRunnerConfig{
		URL:     server.URL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
	})
	return runner, server
}

func TestHTTPRunner_Run(t *testing.T) {
	var captured runRequest

	runner, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/run" {
			t.Errorf("path = %q, want /api/v1/run", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(runResponse{RunID: "run-42"})
	})

	input, _ := json.Marshal(models.JobInput{SeedRating: "1234", SeedTitle: "Heat"})
	runID, err := runner.Run(context.Background(), models.JobRecommend, 7, input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if runID != "run-42" {
		t.Errorf("runID = %q, want run-42", runID)
	}

	if captured.Job != models.JobRecommend {
		t.Errorf("job = %q, want %q", captured.Job, models.JobRecommend)
	}
	if captured.UserID != 7 {
		t.Errorf("user_id = %d, want 7", captured.UserID)
	}
	var decoded models.JobInput
	if err := json.Unmarshal(captured.Input, &decoded); err != nil {
		t.Fatalf("failed to decode input payload: %v", err)
	}
	if decoded.SeedTitle != "Heat" {
		t.Errorf("seed title = %q, want Heat", decoded.SeedTitle)
	}
}

func TestHTTPRunner_Run_Rejected(t *testing.T) {
	runner, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(runResponse{Error: "user has no taste profile"})
	})

	_, err := runner.Run(context.Background(), models.JobTaste, 7, nil)
	if err == nil {
		t.Fatal("expected error for rejected run")
	}
	if got := err.Error(); !strings.Contains(got, "user has no taste profile") {
		t.Errorf("error %q missing runner message", got)
	}
}

func TestHTTPRunner_Run_EmptyRunID(t *testing.T) {
	runner, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(runResponse{})
	})

	_, err := runner.Run(context.Background(), models.JobRecommend, 7, nil)
	if err == nil {
		t.Fatal("expected error for empty run id")
	}
}

type stubRunner struct {
	err   error
	calls int
}

func (s *stubRunner) Run(ctx context.Context, kind models.JobKind, userID int, input []byte) (RunID, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "run-1", nil
}

func TestCircuitBreakerRunner_PassThrough(t *testing.T) {
	stub := &stubRunner{}
	cb := NewCircuitBreakerRunner(stub, "jobrunner-test-pass")

	runID, err := cb.Run(context.Background(), models.JobRecommend, 1, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if runID != "run-1" {
		t.Errorf("runID = %q, want run-1", runID)
	}
}

func TestCircuitBreakerRunner_OpensAfterSustainedFailures(t *testing.T) {
	stub := &stubRunner{err: errors.New("runner down")}
	cb := NewCircuitBreakerRunner(stub, "jobrunner-test-open")

	for i := 0; i < 10; i++ {
		if _, err := cb.Run(context.Background(), models.JobTaste, 1, nil); err == nil {
			t.Fatalf("request %d: expected error", i)
		}
	}

	_, err := cb.Run(context.Background(), models.JobTaste, 1, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if stub.calls != 10 {
		t.Errorf("underlying calls = %d, want 10", stub.calls)
	}
}
