// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package engine

import (
	"context"
	"strconv"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// pollNowPlaying samples live sessions, diffs them against the previous
// tick, and feeds every transition to the evaluator. A fetch failure means
// no data this tick: snapshots are kept untouched so sessions are not
// spuriously ended.
func (e *Engine) pollNowPlaying(ctx context.Context) {
	sessions, err := e.client.ListNowPlaying(ctx)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("now_playing").Inc()
		logging.Err(err).Msg("Failed to fetch now-playing sessions")
		return
	}

	now := e.now()
	e.mu.Lock()
	next, transitions := diffSessions(e.snapshots, sessions, now)
	e.snapshots = next
	e.mu.Unlock()
	metrics.ActiveSessions.Set(float64(len(next)))

	for _, t := range transitions {
		metrics.SessionTransitions.WithLabelValues(string(t.Kind)).Inc()
		e.evaluateTransition(ctx, t)
	}
}

// evaluateTransition applies the watch-progress thresholds to one session
// transition. Kinds whose eligibility has already fired for this session
// are never re-requested, so ratio oscillation across ticks cannot trigger
// a job twice. Skips are reported with a reason code, not retried.
func (e *Engine) evaluateTransition(ctx context.Context, t Transition) {
	sn := t.Snapshot
	s := sn.Session

	if !s.MediaKind.Evaluable() {
		return
	}
	ratio, ok := watchRatio(s.DurationMS, sn.MaxOffsetMS)
	if !ok {
		return
	}

	now := e.now()
	cid := CompositeID(s.UserID, s.MediaKind, s.RatingKey, s.SessionKey)
	e.ledger.Touch(cid, ratio, now)

	th := e.settings.GetThresholds()
	var newly []models.JobKind
	for _, kind := range eligibleKinds(ratio, th) {
		if !sn.Triggered[kind] {
			newly = append(newly, kind)
		}
	}
	if len(newly) == 0 {
		return
	}
	for _, kind := range newly {
		sn.Triggered[kind] = true
		sn.TriggeredAt[kind] = now
	}

	event := models.NewAutomationEvent(models.EventWatchThreshold)
	event.MediaKind = s.MediaKind
	event.SeedTitle = s.Title
	event.UserID = s.UserID
	event.UserTitle = s.UserTitle

	if th.MinDuration > 0 && s.DurationMS < th.MinDuration.Milliseconds() {
		for _, kind := range newly {
			event.Skipped = append(event.Skipped, models.SkipOutcome{Kind: kind, Reason: models.SkipBelowMinDuration})
			metrics.EligibilitySkips.WithLabelValues(models.SkipBelowMinDuration).Inc()
		}
		e.record(ctx, event)
		return
	}

	if sectionID, err := strconv.Atoi(s.SectionID); err == nil && e.settings.IsLibraryExcluded(sectionID) {
		for _, kind := range newly {
			event.Skipped = append(event.Skipped, models.SkipOutcome{Kind: kind, Reason: models.SkipLibraryExcluded})
			metrics.EligibilitySkips.WithLabelValues(models.SkipLibraryExcluded).Inc()
		}
		e.record(ctx, event)
		return
	}

	flags := e.settings.GetFlags(s.UserID)
	var requested []models.JobKind
	for _, kind := range newly {
		switch {
		case !flags.Enabled(kind):
			event.Skipped = append(event.Skipped, models.SkipOutcome{Kind: kind, Reason: models.SkipFeatureDisabled})
			metrics.EligibilitySkips.WithLabelValues(models.SkipFeatureDisabled).Inc()
		case !e.ledger.CanSchedule(cid, kind):
			event.Skipped = append(event.Skipped, models.SkipOutcome{Kind: kind, Reason: models.SkipAlreadyTriggered})
			metrics.EligibilitySkips.WithLabelValues(models.SkipAlreadyTriggered).Inc()
		default:
			requested = append(requested, kind)
		}
	}

	if len(requested) > 0 {
		input := models.JobInput{
			SeedTitle:  s.Title,
			SeedRating: s.RatingKey,
			MediaKind:  s.MediaKind,
			ShowTitle:  s.ShowTitle,
			SeasonNum:  s.SeasonNum,
			EpisodeNum: s.EpisodeNum,
			WatchRatio: ratio,
		}
		payload, err := input.Marshal()
		if err != nil {
			logging.Err(err).Str("composite_id", cid).Msg("Failed to encode job input")
			event.Errors = append(event.Errors, err.Error())
		} else {
			logging.Info().
				Str("composite_id", cid).
				Str("title", s.Title).
				Float64("ratio", ratio).
				Int("kinds", len(requested)).
				Msg("Watch threshold crossed")
			event.Runs = e.runOrQueue(ctx, s.UserID, requested, payload, cid)
		}
	}

	e.record(ctx, event)
}
