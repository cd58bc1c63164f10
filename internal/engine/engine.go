// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package engine implements the polling-driven automation core: it samples
// now-playing sessions and recently-added items from the media server, turns
// the samples into session and library state machines, and dispatches
// at-most-once job runs through an idempotency ledger, per-user cooldown
// queues with bounded retries, and a debounced recently-added watcher.
//
// One timer drives discrete, non-overlapping poll ticks. Within a tick the
// order is fixed: drain queues, poll recently-added (on its slower cadence),
// poll now-playing, diff and dispatch, sweep the ledger.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/jobrunner"
	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/mediaserver"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
	"github.com/tomtom215/curatarr/internal/store"
)

// Settings is the read surface of the settings store the engine consults
// every evaluation pass, so flag and threshold changes apply on the next
// tick without a restart.
type Settings interface {
	GetFlags(userID int) store.Flags
	GetThresholds() store.Thresholds
	IsLibraryExcluded(sectionID int) bool
}

// StatePersister stores the durable engine state across restarts.
type StatePersister interface {
	SaveEngineState(state *models.EngineState) error
	LoadEngineState() (*models.EngineState, error)
}

// EventRecorder receives every derived automation event. Write-only from
// the engine's perspective; recording failures are logged, never fatal.
type EventRecorder interface {
	Record(ctx context.Context, event models.AutomationEvent) error
}

// Engine is the poll-loop orchestrator. Create with New; drive with Serve
// (suture-compatible) or call Tick directly in tests.
type Engine struct {
	cfg      config.AutomationConfig
	client   mediaserver.Client
	runner   jobrunner.Runner
	settings Settings
	state    StatePersister
	recorder EventRecorder
	ledger   *Ledger

	// ticking enforces the no-overlapping-ticks rule.
	ticking atomic.Bool

	// now is replaceable in tests.
	now func() time.Time

	mu              sync.Mutex
	snapshots       map[string]Snapshot
	cooldowns       map[int]time.Time
	queues          map[int][]models.QueuedRun
	watermark       time.Time
	burst           *pendingBurst
	lastLibraryPoll time.Time
	lastLibraryFire time.Time
	ticksCompleted  uint64
	lastTick        time.Time
}

// New wires an engine and restores its durable state. A zero restored
// watermark means cold start: the first recently-added poll initializes it
// without firing.
func New(cfg config.AutomationConfig, client mediaserver.Client, runner jobrunner.Runner, settings Settings, state StatePersister, recorder EventRecorder) (*Engine, error) {
	persisted, err := state.LoadEngineState()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		client:    client,
		runner:    runner,
		settings:  settings,
		state:     state,
		recorder:  recorder,
		ledger:    NewLedger(),
		now:       time.Now,
		snapshots: make(map[string]Snapshot),
		cooldowns: persisted.Cooldowns,
		queues:    persisted.Queues,
		watermark: persisted.Watermark,
	}
	e.updateQueueDepth()

	logging.Info().
		Time("watermark", e.watermark).
		Int("queued_users", len(e.queues)).
		Dur("poll_interval", cfg.PollInterval).
		Msg("Automation engine initialized")
	return e, nil
}

// Serve runs the poll loop until the context is cancelled. It ticks once
// immediately so a restart does not wait a full interval to resume.
func (e *Engine) Serve(ctx context.Context) error {
	e.Tick(ctx)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Automation engine stopping")
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle. A tick that fires while the previous one is
// still in flight is skipped entirely. Panics are contained at the tick
// boundary so the loop survives to the next timer fire.
func (e *Engine) Tick(ctx context.Context) {
	if !e.ticking.CompareAndSwap(false, true) {
		metrics.PollTicksSkipped.Inc()
		logging.Warn().Msg("Skipping overlapping poll tick")
		return
	}
	defer e.ticking.Store(false)

	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("Poll tick panicked")
		}
		metrics.PollTickDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.PollTicks.Inc()

	e.drainQueues(ctx)
	e.pollRecentlyAdded(ctx)
	e.pollNowPlaying(ctx)
	e.ledger.Sweep(e.cfg.SessionTTL, e.now())
	e.persistState()

	e.mu.Lock()
	e.ticksCompleted++
	e.lastTick = start
	e.mu.Unlock()
}

// persistState writes the watermark, cooldowns, and queues so they survive
// a restart. Failure is logged; the in-memory state remains authoritative.
func (e *Engine) persistState() {
	e.mu.Lock()
	state := &models.EngineState{
		Watermark: e.watermark,
		Cooldowns: copyCooldowns(e.cooldowns),
		Queues:    copyQueues(e.queues),
	}
	e.mu.Unlock()

	if err := e.state.SaveEngineState(state); err != nil {
		logging.Err(err).Msg("Failed to persist engine state")
	}
}

// record hands an event to the recorder. Recording is best-effort.
func (e *Engine) record(ctx context.Context, event models.AutomationEvent) {
	if err := e.recorder.Record(ctx, event); err != nil {
		logging.Err(err).Str("event", string(event.Type)).Msg("Failed to record automation event")
	}
}

// Stats is a point-in-time view of engine internals for the status API.
type Stats struct {
	LastTick        time.Time `json:"last_tick"`
	TicksCompleted  uint64    `json:"ticks_completed"`
	ActiveSessions  int       `json:"active_sessions"`
	LedgerEntries   int       `json:"ledger_entries"`
	QueueDepth      int       `json:"queue_depth"`
	UsersOnCooldown int       `json:"users_on_cooldown"`
	Watermark       time.Time `json:"watermark"`
}

// Stats snapshots engine internals.
func (e *Engine) Stats() Stats {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	depth := 0
	for _, q := range e.queues {
		depth += len(q)
	}
	onCooldown := 0
	for _, expiry := range e.cooldowns {
		if now.Before(expiry) {
			onCooldown++
		}
	}
	return Stats{
		LastTick:        e.lastTick,
		TicksCompleted:  e.ticksCompleted,
		ActiveSessions:  len(e.snapshots),
		LedgerEntries:   e.ledger.Len(),
		QueueDepth:      depth,
		UsersOnCooldown: onCooldown,
		Watermark:       e.watermark,
	}
}

// updateQueueDepth refreshes the queue depth gauge. Caller need not hold
// the engine mutex.
func (e *Engine) updateQueueDepth() {
	e.mu.Lock()
	depth := 0
	for _, q := range e.queues {
		depth += len(q)
	}
	e.mu.Unlock()
	metrics.QueueDepth.Set(float64(depth))
}

func copyCooldowns(in map[int]time.Time) map[int]time.Time {
	out := make(map[int]time.Time, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyQueues(in map[int][]models.QueuedRun) map[int][]models.QueuedRun {
	out := make(map[int][]models.QueuedRun, len(in))
	for k, v := range in {
		out[k] = append([]models.QueuedRun(nil), v...)
	}
	return out
}
