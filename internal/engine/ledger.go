// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// CompositeID builds the ledger key for one (user, media kind, item,
// session) tuple. Two sessions of the same item by the same user get
// independent ledger entries.
func CompositeID(userID int, kind models.MediaKind, ratingKey, sessionKey string) string {
	return fmt.Sprintf("%d:%s:%s:%s", userID, kind, ratingKey, sessionKey)
}

// LedgerEntry tracks the per-kind dispatch status for one composite ID,
// plus the maximum watch ratio ever observed for it.
type LedgerEntry struct {
	Status    map[models.JobKind]models.JobStatus
	CreatedAt time.Time
	LastSeen  time.Time
	MaxRatio  float64
}

// Ledger is the idempotency store preventing duplicate job dispatch for a
// session+item composite. It outlives the session snapshot: a snapshot may
// be replaced mid-watch while the ledger entry persists until the TTL sweep.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*LedgerEntry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*LedgerEntry)}
}

// GetOrCreate returns the entry for id, creating it with every job kind
// idle when absent.
func (l *Ledger) GetOrCreate(id string, now time.Time) *LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getOrCreateLocked(id, now)
}

func (l *Ledger) getOrCreateLocked(id string, now time.Time) *LedgerEntry {
	if e, ok := l.entries[id]; ok {
		e.LastSeen = now
		return e
	}
	e := &LedgerEntry{
		Status:    make(map[models.JobKind]models.JobStatus),
		CreatedAt: now,
		LastSeen:  now,
	}
	l.entries[id] = e
	metrics.LedgerEntries.Set(float64(len(l.entries)))
	return e
}

// Touch stamps last-seen and folds in an observed watch ratio without
// creating an entry.
func (l *Ledger) Touch(id string, ratio float64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return
	}
	e.LastSeen = now
	if ratio > e.MaxRatio {
		e.MaxRatio = ratio
	}
}

// CanSchedule reports whether kind may be (re)scheduled for id: true from
// idle or failed, false while queued or running, false forever after
// success.
func (l *Ledger) CanSchedule(id string, kind models.JobKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return true
	}
	s, ok := e.Status[kind]
	if !ok {
		return true
	}
	return s.Schedulable()
}

// Status returns the current status of kind for id, idle when unknown.
func (l *Ledger) Status(id string, kind models.JobKind) models.JobStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return models.JobStatusIdle
	}
	if s, ok := e.Status[kind]; ok {
		return s
	}
	return models.JobStatusIdle
}

// SetStatus transitions kind for id and stamps last-seen, creating the
// entry if needed so a status is never lost.
func (l *Ledger) SetStatus(id string, kind models.JobKind, status models.JobStatus, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.getOrCreateLocked(id, now)
	e.Status[kind] = status
	e.LastSeen = now
}

// Sweep evicts entries idle for longer than ttl, skipping any with a kind
// still queued or running. Returns the number evicted.
func (l *Ledger) Sweep(ttl time.Duration, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for id, e := range l.entries {
		if now.Sub(e.LastSeen) <= ttl {
			continue
		}
		inFlight := false
		for _, s := range e.Status {
			if s.InFlight() {
				inFlight = true
				break
			}
		}
		if inFlight {
			continue
		}
		delete(l.entries, id)
		evicted++
	}

	if evicted > 0 {
		metrics.LedgerEntries.Set(float64(len(l.entries)))
	}
	metrics.LedgerSweeps.Inc()
	return evicted
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
