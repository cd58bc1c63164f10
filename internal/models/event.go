// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a derived automation event.
type EventType string

const (
	// EventWatchThreshold is emitted when a playback session makes one or
	// more job kinds eligible (or is skipped with a reason).
	EventWatchThreshold EventType = "watch.threshold"

	// EventLibraryAdded is emitted once per debounced recently-added burst.
	EventLibraryAdded EventType = "library.added"

	// EventQueueDrained is emitted when queued runs are executed, retried,
	// or terminally failed by the drain loop.
	EventQueueDrained EventType = "queue.drained"
)

// Granularity describes the aggregation level of a library.added event.
type Granularity string

const (
	GranularityEpisode Granularity = "episode"
	GranularitySeason  Granularity = "season"
	GranularityShow    Granularity = "show"
	GranularityItem    Granularity = "item"
)

// Skip reason codes. These are reported, never retried.
const (
	SkipFeatureDisabled  = "feature-disabled"
	SkipLibraryExcluded  = "library-excluded"
	SkipAlreadyTriggered = "already-triggered"
	SkipBelowMinDuration = "below-min-duration"
)

// RunOutcome records what happened to one requested job run.
type RunOutcome struct {
	Kind    JobKind   `json:"kind"`
	Status  JobStatus `json:"status"`
	RunID   string    `json:"run_id,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// SkipOutcome records a request that was rejected by configuration or the
// idempotency ledger rather than dispatched.
type SkipOutcome struct {
	Kind   JobKind `json:"kind,omitempty"`
	Reason string  `json:"reason"`
}

// AutomationEvent is the structured record the engine hands to the event
// logger for every derived event. Write-only from the engine's perspective.
type AutomationEvent struct {
	EventID     string        `json:"event_id"`
	Type        EventType     `json:"event"`
	Timestamp   time.Time     `json:"timestamp"`
	MediaKind   MediaKind     `json:"media_kind,omitempty"`
	SeedTitle   string        `json:"seed_title,omitempty"`
	UserID      int           `json:"user_id,omitempty"`
	UserTitle   string        `json:"user_title,omitempty"`
	Granularity Granularity   `json:"granularity,omitempty"`
	ItemCount   int           `json:"item_count,omitempty"`
	Runs        []RunOutcome  `json:"runs,omitempty"`
	Skipped     []SkipOutcome `json:"skipped,omitempty"`
	Errors      []string      `json:"errors,omitempty"`
}

// NewAutomationEvent creates an event with a unique ID and UTC timestamp.
func NewAutomationEvent(t EventType) AutomationEvent {
	return AutomationEvent{
		EventID:   uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}
