// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package engine

import (
	"testing"
	"time"

	"github.com/tomtom215/curatarr/internal/models"
)

func TestCompositeID(t *testing.T) {
	got := CompositeID(7, models.MediaKindMovie, "100", "s1")
	if got != "7:movie:100:s1" {
		t.Errorf("CompositeID = %q", got)
	}
}

func TestLedger_ScheduleLifecycle(t *testing.T) {
	l := NewLedger()
	now := time.Now()
	id := CompositeID(7, models.MediaKindMovie, "100", "s1")

	if !l.CanSchedule(id, models.JobRecommend) {
		t.Fatal("unknown id should be schedulable")
	}

	l.GetOrCreate(id, now)
	if !l.CanSchedule(id, models.JobRecommend) {
		t.Fatal("idle kind should be schedulable")
	}

	l.SetStatus(id, models.JobRecommend, models.JobStatusQueued, now)
	if l.CanSchedule(id, models.JobRecommend) {
		t.Error("queued kind must not be schedulable")
	}

	l.SetStatus(id, models.JobRecommend, models.JobStatusRunning, now)
	if l.CanSchedule(id, models.JobRecommend) {
		t.Error("running kind must not be schedulable")
	}

	l.SetStatus(id, models.JobRecommend, models.JobStatusFailed, now)
	if !l.CanSchedule(id, models.JobRecommend) {
		t.Error("failed kind should be schedulable again")
	}

	l.SetStatus(id, models.JobRecommend, models.JobStatusSuccess, now)
	if l.CanSchedule(id, models.JobRecommend) {
		t.Error("success is terminal")
	}

	// Other kinds are independent.
	if !l.CanSchedule(id, models.JobTaste) {
		t.Error("taste kind should remain schedulable")
	}
}

func TestLedger_SweepRespectsTTLAndInFlight(t *testing.T) {
	l := NewLedger()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 6 * time.Hour

	l.SetStatus("stale", models.JobRecommend, models.JobStatusSuccess, base)
	l.SetStatus("inflight", models.JobRecommend, models.JobStatusQueued, base)
	l.SetStatus("recent", models.JobRecommend, models.JobStatusSuccess, base.Add(5*time.Hour))

	evicted := l.Sweep(ttl, base.Add(7*time.Hour))
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if l.Status("stale", models.JobRecommend) != models.JobStatusIdle {
		t.Error("stale entry should be gone")
	}
	if l.Status("inflight", models.JobRecommend) != models.JobStatusQueued {
		t.Error("in-flight entry must never be evicted")
	}
	if l.Status("recent", models.JobRecommend) != models.JobStatusSuccess {
		t.Error("recent entry should survive")
	}
}

func TestLedger_TouchTracksMaxRatio(t *testing.T) {
	l := NewLedger()
	now := time.Now()

	e := l.GetOrCreate("id", now)
	l.Touch("id", 0.4, now)
	l.Touch("id", 0.7, now)
	l.Touch("id", 0.5, now)

	if e.MaxRatio != 0.7 {
		t.Errorf("max ratio = %v, want 0.7", e.MaxRatio)
	}
}
