// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// pendingBurst accumulates newly added items until the debounce window
// allows a single aggregated event to fire.
type pendingBurst struct {
	newest       models.RecentItem
	newestTS     time.Time
	count        int
	episodeCount int
	shows        map[string]struct{}
	seasons      map[string]struct{}
	startedAt    time.Time
}

func newPendingBurst(now time.Time) *pendingBurst {
	return &pendingBurst{
		shows:     make(map[string]struct{}),
		seasons:   make(map[string]struct{}),
		startedAt: now,
	}
}

func (b *pendingBurst) add(item models.RecentItem, ts time.Time) {
	b.count++
	if ts.After(b.newestTS) {
		b.newest = item
		b.newestTS = ts
	}
	if item.MediaKind == models.MediaKindEpisode {
		b.episodeCount++
		b.shows[item.ShowTitle] = struct{}{}
		b.seasons[fmt.Sprintf("%s|%d", item.ShowTitle, item.SeasonNum)] = struct{}{}
	}
}

// granularity picks the aggregation level: one episode reports at episode
// level, episodes of a single season at season level, episodes of a single
// show across seasons at show level, anything else at item level. A whole
// season import therefore fires one event, not one per episode.
func (b *pendingBurst) granularity() models.Granularity {
	if b.count == 0 || b.episodeCount != b.count {
		return models.GranularityItem
	}
	switch {
	case b.count == 1:
		return models.GranularityEpisode
	case len(b.seasons) == 1:
		return models.GranularitySeason
	case len(b.shows) == 1:
		return models.GranularityShow
	default:
		return models.GranularityItem
	}
}

// pollRecentlyAdded runs the library watcher on its own slower cadence:
// fetch recently-added items, detect those strictly newer than the
// watermark, debounce bursts, and fire at most one aggregated event once
// the debounce window since the previous event has elapsed.
//
// Cold start (zero watermark) initializes the watermark to the newest valid
// timestamp and fires nothing, so history is never replayed.
func (e *Engine) pollRecentlyAdded(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	due := e.lastLibraryPoll.IsZero() || now.Sub(e.lastLibraryPoll) >= e.cfg.RecentlyAddedInterval
	if due {
		e.lastLibraryPoll = now
	}
	e.mu.Unlock()

	if !due {
		e.fireBurstIfReady(ctx)
		return
	}

	items, err := e.client.ListRecentlyAdded(ctx, e.cfg.RecentlyAddedLimit)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("recently_added").Inc()
		logging.Err(err).Msg("Failed to fetch recently-added items")
		e.fireBurstIfReady(ctx)
		return
	}
	metrics.LibraryItemsSeen.Add(float64(len(items)))

	skewLimit := now.Add(e.cfg.FutureSkewLimit)

	e.mu.Lock()
	var maxSeen time.Time
	type newItem struct {
		item models.RecentItem
		ts   time.Time
	}
	var fresh []newItem
	for _, item := range items {
		if sectionID, err := strconv.Atoi(item.SectionID); err == nil && e.settings.IsLibraryExcluded(sectionID) {
			continue
		}
		ts := item.EffectiveTimestamp()
		if ts.IsZero() {
			continue
		}
		if ts.After(skewLimit) {
			logging.Warn().
				Str("title", item.Title).
				Time("added_at", ts).
				Msg("Rejecting recently-added timestamp beyond skew limit")
			continue
		}
		if ts.After(maxSeen) {
			maxSeen = ts
		}
		if !e.watermark.IsZero() && ts.After(e.watermark) {
			fresh = append(fresh, newItem{item: item, ts: ts})
		}
	}

	coldStart := e.watermark.IsZero()
	if maxSeen.After(e.watermark) {
		e.watermark = maxSeen
	}
	if coldStart {
		e.mu.Unlock()
		if !maxSeen.IsZero() {
			logging.Info().Time("watermark", maxSeen).Msg("Recently-added watermark initialized")
		}
		return
	}

	for _, n := range fresh {
		if e.burst == nil {
			e.burst = newPendingBurst(now)
		}
		e.burst.add(n.item, n.ts)
	}
	e.mu.Unlock()

	e.fireBurstIfReady(ctx)
}

// fireBurstIfReady emits the pending burst as one aggregated library event
// when the debounce window since the last fired event has elapsed.
func (e *Engine) fireBurstIfReady(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	b := e.burst
	if b == nil || (!e.lastLibraryFire.IsZero() && now.Sub(e.lastLibraryFire) < e.cfg.LibraryDebounceWindow) {
		e.mu.Unlock()
		return
	}
	e.burst = nil
	e.lastLibraryFire = now
	e.mu.Unlock()

	gran := b.granularity()
	metrics.LibraryEvents.WithLabelValues(string(gran)).Inc()

	seedTitle := b.newest.Title
	if gran == models.GranularitySeason || gran == models.GranularityShow {
		seedTitle = b.newest.ShowTitle
	}

	event := models.NewAutomationEvent(models.EventLibraryAdded)
	event.MediaKind = b.newest.MediaKind
	event.SeedTitle = seedTitle
	event.Granularity = gran
	event.ItemCount = b.count

	logging.Info().
		Str("granularity", string(gran)).
		Str("title", seedTitle).
		Int("items", b.count).
		Msg("Library addition detected")

	userID := e.cfg.LibraryJobUserID
	if !e.settings.GetFlags(userID).Enabled(models.JobLibraryRefresh) {
		event.Skipped = append(event.Skipped, models.SkipOutcome{Kind: models.JobLibraryRefresh, Reason: models.SkipFeatureDisabled})
		metrics.EligibilitySkips.WithLabelValues(models.SkipFeatureDisabled).Inc()
		e.record(ctx, event)
		return
	}

	input := models.JobInput{
		SeedTitle:  seedTitle,
		SeedRating: b.newest.RatingKey,
		MediaKind:  b.newest.MediaKind,
		ShowTitle:  b.newest.ShowTitle,
		SeasonNum:  b.newest.SeasonNum,
		ItemCount:  b.count,
	}
	payload, err := input.Marshal()
	if err != nil {
		logging.Err(err).Msg("Failed to encode library job input")
		event.Errors = append(event.Errors, err.Error())
		e.record(ctx, event)
		return
	}

	ledgerID := "library:" + event.EventID
	event.UserID = userID
	event.Runs = e.runOrQueue(ctx, userID, []models.JobKind{models.JobLibraryRefresh}, payload, ledgerID)
	e.record(ctx, event)
}
