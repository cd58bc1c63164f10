// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestParseMediaKind(t *testing.T) {
	tests := []struct {
		input string
		want  MediaKind
	}{
		{"movie", MediaKindMovie},
		{"episode", MediaKindEpisode},
		{"track", MediaKindOther},
		{"clip", MediaKindOther},
		{"", MediaKindOther},
	}

	for _, tt := range tests {
		if got := ParseMediaKind(tt.input); got != tt.want {
			t.Errorf("ParseMediaKind(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestMediaKind_Evaluable(t *testing.T) {
	if !MediaKindMovie.Evaluable() || !MediaKindEpisode.Evaluable() {
		t.Error("Expected movie and episode to be evaluable")
	}
	if MediaKindOther.Evaluable() {
		t.Error("Expected other media kinds to be ignored")
	}
}

func TestJobStatus_Transitions(t *testing.T) {
	schedulable := []JobStatus{JobStatusIdle, JobStatusFailed}
	for _, s := range schedulable {
		if !s.Schedulable() {
			t.Errorf("Expected %s to be schedulable", s)
		}
	}

	blocked := []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusSuccess}
	for _, s := range blocked {
		if s.Schedulable() {
			t.Errorf("Expected %s to block scheduling", s)
		}
	}

	if !JobStatusQueued.InFlight() || !JobStatusRunning.InFlight() {
		t.Error("Expected queued and running to count as in flight")
	}
	if JobStatusSuccess.InFlight() || JobStatusFailed.InFlight() {
		t.Error("Expected terminal statuses to not count as in flight")
	}
}

func TestRecentItem_EffectiveTimestamp(t *testing.T) {
	added := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)

	item := RecentItem{AddedAt: added, UpdatedAt: updated}
	if got := item.EffectiveTimestamp(); !got.Equal(added) {
		t.Errorf("Expected added-at to win, got %v", got)
	}

	item = RecentItem{UpdatedAt: updated}
	if got := item.EffectiveTimestamp(); !got.Equal(updated) {
		t.Errorf("Expected updated-at fallback, got %v", got)
	}
}

func TestNewAutomationEvent(t *testing.T) {
	ev := NewAutomationEvent(EventWatchThreshold)
	if ev.EventID == "" {
		t.Error("Expected generated event ID")
	}
	if ev.Type != EventWatchThreshold {
		t.Errorf("Expected type %s, got %s", EventWatchThreshold, ev.Type)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Expected timestamp set")
	}
}

func TestAutomationEvent_JSONShape(t *testing.T) {
	ev := NewAutomationEvent(EventLibraryAdded)
	ev.MediaKind = MediaKindEpisode
	ev.SeedTitle = "Severance"
	ev.Granularity = GranularitySeason
	ev.ItemCount = 12
	ev.Runs = []RunOutcome{{Kind: JobLibraryRefresh, Status: JobStatusSuccess, RunID: "r-1"}}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["event"] != string(EventLibraryAdded) {
		t.Errorf("Expected event field %q, got %v", EventLibraryAdded, decoded["event"])
	}
	if decoded["granularity"] != string(GranularitySeason) {
		t.Errorf("Expected granularity field, got %v", decoded["granularity"])
	}
}
