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

func session(key, ratingKey string, offsetMS int64) models.Session {
	return models.Session{
		SessionKey:   key,
		RatingKey:    ratingKey,
		MediaKind:    models.MediaKindMovie,
		Title:        "Heat",
		UserID:       7,
		UserTitle:    "alice",
		DurationMS:   1_200_000,
		ViewOffsetMS: offsetMS,
	}
}

func TestDiffSessions_StartProgressEnd(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	prev := map[string]Snapshot{}
	next, trans := diffSessions(prev, []models.Session{session("s1", "100", 10_000)}, t0)
	if len(trans) != 1 || trans[0].Kind != TransitionStarted {
		t.Fatalf("transitions = %+v, want one started", trans)
	}
	sn := next["s1"]
	if sn.FirstOffsetMS != 10_000 || sn.MaxOffsetMS != 10_000 {
		t.Errorf("seeded offsets = %d/%d, want 10000/10000", sn.FirstOffsetMS, sn.MaxOffsetMS)
	}

	t1 := t0.Add(15 * time.Second)
	next, trans = diffSessions(next, []models.Session{session("s1", "100", 40_000)}, t1)
	if len(trans) != 1 || trans[0].Kind != TransitionProgressed {
		t.Fatalf("transitions = %+v, want one progressed", trans)
	}
	sn = next["s1"]
	if !sn.FirstSeen.Equal(t0) {
		t.Errorf("first-seen = %v, want preserved %v", sn.FirstSeen, t0)
	}
	if sn.MaxOffsetMS != 40_000 {
		t.Errorf("max offset = %d, want 40000", sn.MaxOffsetMS)
	}

	next, trans = diffSessions(next, nil, t1.Add(15*time.Second))
	if len(trans) != 1 || trans[0].Kind != TransitionEnded {
		t.Fatalf("transitions = %+v, want one ended", trans)
	}
	if len(next) != 0 {
		t.Errorf("snapshot map should be empty, has %d", len(next))
	}
}

func TestDiffSessions_OffsetNeverRegresses(t *testing.T) {
	t0 := time.Now()
	next, _ := diffSessions(nil, []models.Session{session("s1", "100", 500_000)}, t0)
	next, _ = diffSessions(next, []models.Session{session("s1", "100", 30_000)}, t0.Add(15*time.Second))

	sn := next["s1"]
	if sn.MaxOffsetMS != 500_000 {
		t.Errorf("max offset = %d, want 500000 after a rewind", sn.MaxOffsetMS)
	}
	if sn.Session.ViewOffsetMS != 30_000 {
		t.Errorf("live offset = %d, want the fresh sample's 30000", sn.Session.ViewOffsetMS)
	}
}

func TestDiffSessions_ItemChangeEndsBeforeStart(t *testing.T) {
	t0 := time.Now()
	next, _ := diffSessions(nil, []models.Session{session("s1", "100", 10_000)}, t0)

	_, trans := diffSessions(next, []models.Session{session("s1", "200", 0)}, t0.Add(15*time.Second))
	if len(trans) != 2 {
		t.Fatalf("transitions = %d, want 2", len(trans))
	}
	if trans[0].Kind != TransitionEnded || trans[0].Snapshot.Session.RatingKey != "100" {
		t.Errorf("first transition = %s/%s, want ended for item 100", trans[0].Kind, trans[0].Snapshot.Session.RatingKey)
	}
	if trans[1].Kind != TransitionStarted || trans[1].Snapshot.Session.RatingKey != "200" {
		t.Errorf("second transition = %s/%s, want started for item 200", trans[1].Kind, trans[1].Snapshot.Session.RatingKey)
	}
}

func TestDiffSessions_TriggeredFlagsSurviveMerge(t *testing.T) {
	t0 := time.Now()
	next, _ := diffSessions(nil, []models.Session{session("s1", "100", 10_000)}, t0)

	sn := next["s1"]
	sn.Triggered[models.JobRecommend] = true

	next, _ = diffSessions(next, []models.Session{session("s1", "100", 20_000)}, t0.Add(15*time.Second))
	if !next["s1"].Triggered[models.JobRecommend] {
		t.Error("triggered flag should survive a merge")
	}
}
