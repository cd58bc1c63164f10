// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package jobrunner

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// CircuitBreakerRunner wraps a Runner with a breaker so a failing job runner
// does not keep eating retry budget: runs refused by the breaker fail fast
// and stay in the queue for the next poll cycle.
type CircuitBreakerRunner struct {
	runner Runner
	cb     *gobreaker.CircuitBreaker[RunID]
}

// ErrCircuitOpen is returned while the breaker refuses job dispatch.
var ErrCircuitOpen = errors.New("job runner circuit breaker open")

// NewCircuitBreakerRunner wraps runner with a breaker that opens at a 60%
// failure rate over at least 10 requests.
func NewCircuitBreakerRunner(runner Runner, name string) *CircuitBreakerRunner {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[RunID](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &CircuitBreakerRunner{runner: runner, cb: cb}
}

// Run implements Runner through the breaker.
func (r *CircuitBreakerRunner) Run(ctx context.Context, kind models.JobKind, userID int, input []byte) (RunID, error) {
	runID, err := r.cb.Execute(func() (RunID, error) {
		return r.runner.Run(ctx, kind, userID, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrCircuitOpen
		}
		return "", err
	}
	return runID, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
