// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package engine

import (
	"github.com/tomtom215/curatarr/internal/models"
	"github.com/tomtom215/curatarr/internal/store"
)

// watchRatio converts an offset/duration pair into a watch ratio clamped to
// [0, 1]. The second return is false when no decision can be made: missing
// or non-positive duration, or a non-positive offset.
func watchRatio(durationMS, offsetMS int64) (float64, bool) {
	if durationMS <= 0 || offsetMS <= 0 {
		return 0, false
	}
	ratio := float64(offsetMS) / float64(durationMS)
	if ratio > 1 {
		ratio = 1
	}
	return ratio, true
}

// eligibleKinds returns the session job kinds whose threshold the ratio has
// crossed. Crossing the force-both threshold makes every kind eligible
// regardless of its individual low threshold.
func eligibleKinds(ratio float64, th store.Thresholds) []models.JobKind {
	if th.ForceBoth > 0 && ratio >= th.ForceBoth {
		kinds := make([]models.JobKind, len(models.SessionJobKinds))
		copy(kinds, models.SessionJobKinds)
		return kinds
	}

	var kinds []models.JobKind
	for _, kind := range models.SessionJobKinds {
		low, ok := th.Low[kind]
		if !ok || low <= 0 {
			continue
		}
		if ratio >= low {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
