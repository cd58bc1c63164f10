// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package engine

import (
	"context"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// runOrQueue dispatches the requested kinds for one user under the cooldown
// rule: inside an active cooldown everything is queued; otherwise the first
// kind runs immediately and the rest are queued, and the cooldown starts at
// once regardless of how the immediate run turns out. At most one job run
// starts per user per cooldown window.
func (e *Engine) runOrQueue(ctx context.Context, userID int, kinds []models.JobKind, input json.RawMessage, ledgerID string) []models.RunOutcome {
	now := e.now()
	outcomes := make([]models.RunOutcome, 0, len(kinds))

	e.mu.Lock()
	if now.Before(e.cooldowns[userID]) {
		for _, kind := range kinds {
			e.enqueueLocked(userID, kind, input, ledgerID, 1, now)
			outcomes = append(outcomes, models.RunOutcome{Kind: kind, Status: models.JobStatusQueued, Attempt: 1})
		}
		e.mu.Unlock()
		e.updateQueueDepth()
		return outcomes
	}

	e.cooldowns[userID] = now.Add(e.cfg.CooldownWindow)
	for _, kind := range kinds[1:] {
		e.enqueueLocked(userID, kind, input, ledgerID, 1, now)
	}
	e.mu.Unlock()
	e.updateQueueDepth()

	outcomes = append(outcomes, e.runImmediate(ctx, userID, kinds[0], input, ledgerID, 1))
	for _, kind := range kinds[1:] {
		outcomes = append(outcomes, models.RunOutcome{Kind: kind, Status: models.JobStatusQueued, Attempt: 1})
	}
	return outcomes
}

// enqueueLocked appends a pending run and marks its ledger slot queued.
// Caller holds e.mu.
func (e *Engine) enqueueLocked(userID int, kind models.JobKind, input json.RawMessage, ledgerID string, attempt int, now time.Time) {
	e.queues[userID] = append(e.queues[userID], models.QueuedRun{
		Kind:       kind,
		UserID:     userID,
		Input:      input,
		LedgerID:   ledgerID,
		Attempt:    attempt,
		EnqueuedAt: now,
	})
	e.ledger.SetStatus(ledgerID, kind, models.JobStatusQueued, now)
}

// runImmediate executes one job run synchronously and resolves its ledger
// slot. A failure below the attempt bound goes back on the queue with
// attempt+1; at the bound it is terminal.
func (e *Engine) runImmediate(ctx context.Context, userID int, kind models.JobKind, input json.RawMessage, ledgerID string, attempt int) models.RunOutcome {
	e.ledger.SetStatus(ledgerID, kind, models.JobStatusRunning, e.now())

	runID, err := e.runner.Run(ctx, kind, userID, input)
	if err == nil {
		e.ledger.SetStatus(ledgerID, kind, models.JobStatusSuccess, e.now())
		metrics.JobRuns.WithLabelValues(string(kind), "success").Inc()
		logging.Info().
			Str("kind", string(kind)).
			Int("user_id", userID).
			Str("run_id", string(runID)).
			Int("attempt", attempt).
			Msg("Job run succeeded")
		return models.RunOutcome{Kind: kind, Status: models.JobStatusSuccess, RunID: string(runID), Attempt: attempt}
	}

	metrics.JobRuns.WithLabelValues(string(kind), "failure").Inc()
	next := attempt + 1
	if next <= e.cfg.MaxAttempts {
		now := e.now()
		e.mu.Lock()
		e.enqueueLocked(userID, kind, input, ledgerID, next, now)
		e.mu.Unlock()
		e.updateQueueDepth()
		logging.Warn().
			Err(err).
			Str("kind", string(kind)).
			Int("user_id", userID).
			Int("next_attempt", next).
			Msg("Job run failed, re-queued")
		return models.RunOutcome{Kind: kind, Status: models.JobStatusQueued, Attempt: next, Error: err.Error()}
	}

	e.ledger.SetStatus(ledgerID, kind, models.JobStatusFailed, e.now())
	logging.Error().
		Err(err).
		Str("kind", string(kind)).
		Int("user_id", userID).
		Int("attempt", attempt).
		Msg("Job run failed terminally")
	return models.RunOutcome{Kind: kind, Status: models.JobStatusFailed, Attempt: attempt, Error: err.Error()}
}

// drainQueues executes due queued runs, one job start per user per cooldown
// window. Entries whose ledger slot resolved elsewhere are discarded
// silently; entries whose feature was disabled after enqueue are dropped
// with a skip record. Per-user queues are independent: a stalled user never
// blocks another.
func (e *Engine) drainQueues(ctx context.Context) {
	e.mu.Lock()
	userIDs := make([]int, 0, len(e.queues))
	for userID := range e.queues {
		userIDs = append(userIDs, userID)
	}
	e.mu.Unlock()
	sort.Ints(userIDs)

	for _, userID := range userIDs {
		e.drainUser(ctx, userID)
	}
	e.updateQueueDepth()
}

func (e *Engine) drainUser(ctx context.Context, userID int) {
	var runs []models.RunOutcome
	var skipped []models.SkipOutcome

	for {
		now := e.now()
		e.mu.Lock()
		queue := e.queues[userID]
		if len(queue) == 0 || now.Before(e.cooldowns[userID]) {
			e.mu.Unlock()
			break
		}
		run := queue[0]
		if len(queue) == 1 {
			delete(e.queues, userID)
		} else {
			e.queues[userID] = queue[1:]
		}
		e.mu.Unlock()

		// Another path may have resolved this slot since enqueue.
		status := e.ledger.Status(run.LedgerID, run.Kind)
		if status == models.JobStatusSuccess || status == models.JobStatusRunning {
			continue
		}

		if !e.settings.GetFlags(userID).Enabled(run.Kind) {
			e.ledger.SetStatus(run.LedgerID, run.Kind, models.JobStatusIdle, now)
			skipped = append(skipped, models.SkipOutcome{Kind: run.Kind, Reason: models.SkipFeatureDisabled})
			metrics.EligibilitySkips.WithLabelValues(models.SkipFeatureDisabled).Inc()
			continue
		}

		e.mu.Lock()
		e.cooldowns[userID] = now.Add(e.cfg.CooldownWindow)
		e.mu.Unlock()
		runs = append(runs, e.runImmediate(ctx, userID, run.Kind, run.Input, run.LedgerID, run.Attempt))
	}

	if len(runs) == 0 && len(skipped) == 0 {
		return
	}
	event := models.NewAutomationEvent(models.EventQueueDrained)
	event.UserID = userID
	event.Runs = runs
	event.Skipped = skipped
	e.record(ctx, event)
}
