// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package metrics provides Prometheus instrumentation for the polling
// engine, the media-server client, and the job queue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll loop

	PollTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curatarr_poll_ticks_total",
			Help: "Total number of completed poll ticks",
		},
	)

	PollTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curatarr_poll_ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still in flight",
		},
	)

	PollTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curatarr_poll_tick_duration_seconds",
			Help:    "Duration of one full poll tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_fetch_errors_total",
			Help: "Transient media-server fetch failures by feed",
		},
		[]string{"feed"}, // "now_playing", "recently_added"
	)

	// Session lifecycle

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_session_transitions_total",
			Help: "Session transitions produced by the snapshot differ",
		},
		[]string{"transition"}, // "started", "progressed", "ended"
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curatarr_active_sessions",
			Help: "Sessions currently tracked by the snapshot store",
		},
	)

	LedgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curatarr_ledger_entries",
			Help: "Composite entries currently held by the idempotency ledger",
		},
	)

	LedgerSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curatarr_ledger_sweeps_total",
			Help: "Expired ledger entries removed by the TTL sweep",
		},
	)

	// Job dispatch

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_job_runs_total",
			Help: "Job run outcomes by kind and result",
		},
		[]string{"kind", "result"}, // result: "success", "failed", "queued", "retried", "discarded", "terminal"
	)

	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curatarr_job_run_duration_seconds",
			Help:    "Duration of job-runner calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curatarr_queue_depth",
			Help: "Pending collection runs across all user queues",
		},
	)

	EligibilitySkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_eligibility_skips_total",
			Help: "Requests rejected before dispatch, by reason code",
		},
		[]string{"reason"},
	)

	// Recently-added watcher

	LibraryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_library_events_total",
			Help: "Debounced library.added events by granularity",
		},
		[]string{"granularity"},
	)

	LibraryItemsSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curatarr_library_items_seen_total",
			Help: "New recently-added items observed past the watermark",
		},
	)

	// Resilience

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curatarr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	EventsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curatarr_events_persisted_total",
			Help: "Automation events written to the history store by type",
		},
		[]string{"event"},
	)
)
