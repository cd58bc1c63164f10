// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package models

import "github.com/goccy/go-json"

// JobKind identifies an automation job the engine can dispatch. The set is
// closed: thresholds, feature flags, and ledger slots are all keyed by it.
type JobKind string

const (
	// JobRecommend rebuilds the curated recommendation collection around a
	// freshly watched seed item.
	JobRecommend JobKind = "recommend-refresh"

	// JobTaste records a taste signal from a completed watch, feeding the
	// change-of-taste collection.
	JobTaste JobKind = "taste-signal"

	// JobLibraryRefresh reconciles curated collections after new content
	// lands in a library.
	JobLibraryRefresh JobKind = "library-refresh"
)

// SessionJobKinds are the kinds evaluated against watch-progress thresholds,
// in dispatch order. JobLibraryRefresh is driven by the recently-added
// watcher instead.
var SessionJobKinds = []JobKind{JobRecommend, JobTaste}

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobRecommend, JobTaste, JobLibraryRefresh:
		return true
	}
	return false
}

// JobStatus is the idempotency-ledger state of one job kind for one
// session+item composite.
type JobStatus string

const (
	JobStatusIdle    JobStatus = "idle"
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// Schedulable reports whether a kind in this status may be (re)scheduled.
// Success is terminal; queued and running are in flight.
func (s JobStatus) Schedulable() bool {
	return s == JobStatusIdle || s == JobStatusFailed
}

// InFlight reports whether the status represents work that has been handed
// to the queue or the runner and not yet resolved.
func (s JobStatus) InFlight() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// JobInput is the JSON payload handed to the Job Runner. Seed fields
// describe the item that made the job eligible.
type JobInput struct {
	SeedTitle  string    `json:"seed_title"`
	SeedRating string    `json:"seed_rating_key,omitempty"`
	MediaKind  MediaKind `json:"media_kind"`
	ShowTitle  string    `json:"show_title,omitempty"`
	SeasonNum  int       `json:"season_num,omitempty"`
	EpisodeNum int       `json:"episode_num,omitempty"`
	ItemCount  int       `json:"item_count,omitempty"`
	WatchRatio float64   `json:"watch_ratio,omitempty"`
}

// Marshal serializes the input payload.
func (in JobInput) Marshal() ([]byte, error) {
	return json.Marshal(in)
}
