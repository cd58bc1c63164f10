// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package mediaserver

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// CircuitBreakerClient wraps a Client with the circuit breaker pattern so a
// dead or overloaded Tautulli stops consuming each tick's budget.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests should exercise the wrapped client directly rather than waiting out
// breaker state transitions.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
}

// ErrCircuitOpen is returned while the breaker refuses requests.
var ErrCircuitOpen = errors.New("media server circuit breaker open")

// NewCircuitBreakerClient wraps client with a breaker that opens at a 60%
// failure rate over at least 10 requests and probes again after 2 minutes.
func NewCircuitBreakerClient(client Client, name string) *CircuitBreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
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
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb}
}

// ListNowPlaying implements Client through the breaker.
func (c *CircuitBreakerClient) ListNowPlaying(ctx context.Context) ([]models.Session, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.ListNowPlaying(ctx)
	})
	if err != nil {
		return nil, wrapBreakerErr(err)
	}
	return result.([]models.Session), nil
}

// ListRecentlyAdded implements Client through the breaker.
func (c *CircuitBreakerClient) ListRecentlyAdded(ctx context.Context, limit int) ([]models.RecentItem, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.ListRecentlyAdded(ctx, limit)
	})
	if err != nil {
		return nil, wrapBreakerErr(err)
	}
	return result.([]models.RecentItem), nil
}

// wrapBreakerErr maps gobreaker's open-state error to the package sentinel.
func wrapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
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
