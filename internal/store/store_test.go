// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package store

import (
	"testing"
	"time"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/models"
)

func testAutomationConfig() *config.AutomationConfig {
	return &config.AutomationConfig{
		RecommendThreshold: 0.55,
		TasteThreshold:     0.70,
		ForceBothThreshold: 0.85,
		MinDuration:        5 * time.Minute,
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&config.StateConfig{InMemory: true}, testAutomationConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SeedsSettingsFromConfig(t *testing.T) {
	s := openTestStore(t)

	th := s.GetThresholds()
	if got := th.Low[models.JobRecommend]; got != 0.55 {
		t.Errorf("recommend threshold = %v, want 0.55", got)
	}
	if got := th.Low[models.JobTaste]; got != 0.70 {
		t.Errorf("taste threshold = %v, want 0.70", got)
	}
	if th.ForceBoth != 0.85 {
		t.Errorf("force-both = %v, want 0.85", th.ForceBoth)
	}
	if th.MinDuration != 5*time.Minute {
		t.Errorf("min duration = %v, want 5m", th.MinDuration)
	}

	flags := s.GetFlags(42)
	for _, kind := range models.SessionJobKinds {
		if !flags.Enabled(kind) {
			t.Errorf("kind %s should default to enabled", kind)
		}
	}
}

func TestStore_SettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	auto := testAutomationConfig()

	s, err := Open(&config.StateConfig{Path: dir}, auto)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	doc := s.GetSettings()
	doc.UserFlags = map[int]Flags{
		7: {models.JobRecommend: false, models.JobTaste: true},
	}
	doc.ExcludedSections = []int{3, 9}
	doc.Thresholds.ForceBoth = 0.9
	if err := s.UpdateSettings(doc); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen against the same directory: the document must survive, not be
	// reseeded from config.
	s2, err := Open(&config.StateConfig{Path: dir}, auto)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	if s2.GetFlags(7).Enabled(models.JobRecommend) {
		t.Error("user 7 recommend flag should persist as disabled")
	}
	if !s2.GetFlags(7).Enabled(models.JobTaste) {
		t.Error("user 7 taste flag should persist as enabled")
	}
	if !s2.GetFlags(8).Enabled(models.JobRecommend) {
		t.Error("user without override should fall back to defaults")
	}
	if !s2.IsLibraryExcluded(9) {
		t.Error("section 9 should be excluded")
	}
	if s2.IsLibraryExcluded(4) {
		t.Error("section 4 should not be excluded")
	}
	if got := s2.GetThresholds().ForceBoth; got != 0.9 {
		t.Errorf("force-both = %v, want 0.9", got)
	}
}

func TestStore_GetSettingsReturnsCopy(t *testing.T) {
	s := openTestStore(t)

	doc := s.GetSettings()
	doc.DefaultFlags[models.JobRecommend] = false
	doc.ExcludedSections = append(doc.ExcludedSections, 1)

	if !s.GetFlags(1).Enabled(models.JobRecommend) {
		t.Error("mutating a returned copy must not change the store")
	}
	if s.IsLibraryExcluded(1) {
		t.Error("mutating a returned copy must not change exclusions")
	}
}

func TestStore_EngineStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	auto := testAutomationConfig()

	s, err := Open(&config.StateConfig{Path: dir}, auto)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	mark := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &models.EngineState{
		Watermark: mark,
		Cooldowns: map[int]time.Time{7: mark.Add(-time.Minute)},
		Queues: map[int][]models.QueuedRun{
			7: {{Kind: models.JobTaste, UserID: 7, Attempt: 1, LedgerID: "7:movie:100:abc"}},
		},
	}
	if err := s.SaveEngineState(state); err != nil {
		t.Fatalf("SaveEngineState failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := Open(&config.StateConfig{Path: dir}, auto)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	loaded, err := s2.LoadEngineState()
	if err != nil {
		t.Fatalf("LoadEngineState failed: %v", err)
	}
	if !loaded.Watermark.Equal(mark) {
		t.Errorf("watermark = %v, want %v", loaded.Watermark, mark)
	}
	runs := loaded.Queues[7]
	if len(runs) != 1 {
		t.Fatalf("queue length = %d, want 1", len(runs))
	}
	if runs[0].Kind != models.JobTaste || runs[0].Attempt != 1 {
		t.Errorf("queued run = %+v", runs[0])
	}
	if loaded.SavedAt.IsZero() {
		t.Error("SavedAt should be stamped on save")
	}
}

func TestStore_LoadEngineState_FirstRun(t *testing.T) {
	s := openTestStore(t)

	state, err := s.LoadEngineState()
	if err != nil {
		t.Fatalf("LoadEngineState failed: %v", err)
	}
	if !state.Watermark.IsZero() {
		t.Errorf("cold-start watermark = %v, want zero", state.Watermark)
	}
	if state.Cooldowns == nil || state.Queues == nil {
		t.Error("maps should be initialized on first run")
	}
}

func TestStore_ClosedOperationsFail(t *testing.T) {
	s, err := Open(&config.StateConfig{InMemory: true}, testAutomationConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := s.SaveEngineState(&models.EngineState{}); err != ErrStoreClosed {
		t.Errorf("SaveEngineState error = %v, want ErrStoreClosed", err)
	}
	if _, err := s.LoadEngineState(); err != ErrStoreClosed {
		t.Errorf("LoadEngineState error = %v, want ErrStoreClosed", err)
	}
	if err := s.UpdateSettings(SettingsDocument{}); err != ErrStoreClosed {
		t.Errorf("UpdateSettings error = %v, want ErrStoreClosed", err)
	}
}
