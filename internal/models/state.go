// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// QueuedRun is one deferred job dispatch waiting in a per-user queue, either
// because the user was inside a cooldown window or because an earlier run
// failed and is being retried.
type QueuedRun struct {
	Kind     JobKind         `json:"kind"`
	UserID   int             `json:"user_id"`
	Input    json.RawMessage `json:"input,omitempty"`
	LedgerID string          `json:"ledger_id,omitempty"`

	// Attempt counts dispatches so far. A run re-enqueued after failure
	// carries attempt+1; the engine stops retrying at its attempt bound.
	Attempt int `json:"attempt"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// EngineState is the durable slice of engine memory that must survive a
// restart: the recently-added watermark, per-user cooldown marks, and the
// deferred-run queues. Session snapshots are deliberately not persisted;
// they are rebuilt from the next now-playing poll.
type EngineState struct {
	Watermark time.Time           `json:"watermark"`
	Cooldowns map[int]time.Time   `json:"cooldowns,omitempty"`
	Queues    map[int][]QueuedRun `json:"queues,omitempty"`
	SavedAt   time.Time           `json:"saved_at"`
}
