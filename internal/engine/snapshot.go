// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package engine

import (
	"sort"
	"time"

	"github.com/tomtom215/curatarr/internal/models"
)

// TransitionKind classifies what happened to a session between two polls.
type TransitionKind string

const (
	TransitionStarted    TransitionKind = "started"
	TransitionProgressed TransitionKind = "progressed"
	TransitionEnded      TransitionKind = "ended"
)

// Snapshot is the engine's accumulated view of one playback session across
// polls. MaxOffsetMS is the longest known position; it never regresses even
// when the server reports a rewind. Triggered marks job kinds whose
// eligibility already fired for this session.
type Snapshot struct {
	Session models.Session

	FirstSeen     time.Time
	LastSeen      time.Time
	FirstOffsetMS int64
	MaxOffsetMS   int64

	Triggered   map[models.JobKind]bool
	TriggeredAt map[models.JobKind]time.Time
}

// Transition is one observed session lifecycle step. The Snapshot carries
// the post-merge state for started/progressed and the final state for ended.
type Transition struct {
	Kind     TransitionKind
	Snapshot Snapshot
}

// newSnapshot seeds a snapshot from the first observation of a session key.
func newSnapshot(s models.Session, now time.Time) Snapshot {
	return Snapshot{
		Session:       s,
		FirstSeen:     now,
		LastSeen:      now,
		FirstOffsetMS: s.ViewOffsetMS,
		MaxOffsetMS:   s.ViewOffsetMS,
		Triggered:     make(map[models.JobKind]bool),
		TriggeredAt:   make(map[models.JobKind]time.Time),
	}
}

// mergeSnapshot folds a fresh sample into an existing snapshot, returning a
// new value. First-seen and first-offset are preserved; the max offset only
// advances.
func mergeSnapshot(old Snapshot, s models.Session, now time.Time) Snapshot {
	next := old
	next.Session = s
	next.LastSeen = now
	if s.ViewOffsetMS > next.MaxOffsetMS {
		next.MaxOffsetMS = s.ViewOffsetMS
	}
	return next
}

// diffSessions compares the previous tick's snapshots with a fresh sample
// and produces the next snapshot map plus ordered transitions.
//
// A session key that persists but now carries a different rating key is an
// item change: the old snapshot ends before the new one starts, so per-item
// lifecycles stay monotonic. Ended transitions for vanished keys come first,
// in key order, then started/progressed in sample order.
func diffSessions(prev map[string]Snapshot, fresh []models.Session, now time.Time) (map[string]Snapshot, []Transition) {
	next := make(map[string]Snapshot, len(fresh))
	transitions := make([]Transition, 0, len(fresh)+len(prev))

	freshByKey := make(map[string]models.Session, len(fresh))
	for _, s := range fresh {
		freshByKey[s.SessionKey] = s
	}

	prevKeys := make([]string, 0, len(prev))
	for key := range prev {
		prevKeys = append(prevKeys, key)
	}
	sort.Strings(prevKeys)

	for _, key := range prevKeys {
		old := prev[key]
		s, present := freshByKey[key]
		if !present || s.RatingKey != old.Session.RatingKey {
			transitions = append(transitions, Transition{Kind: TransitionEnded, Snapshot: old})
		}
	}

	for _, s := range fresh {
		old, existed := prev[s.SessionKey]
		switch {
		case existed && s.RatingKey == old.Session.RatingKey:
			merged := mergeSnapshot(old, s, now)
			next[s.SessionKey] = merged
			transitions = append(transitions, Transition{Kind: TransitionProgressed, Snapshot: merged})
		default:
			// New key, or the same key switched items.
			started := newSnapshot(s, now)
			next[s.SessionKey] = started
			transitions = append(transitions, Transition{Kind: TransitionStarted, Snapshot: started})
		}
	}

	return next, transitions
}
