// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package mediaserver

import (
	"strconv"
	"time"

	"github.com/tomtom215/curatarr/internal/models"
)

// baseResponse is the common Tautulli API response wrapper. Every command
// reply nests its payload under response with a result/message pair.
type baseResponse struct {
	Result  string  `json:"result"`
	Message *string `json:"message,omitempty"`
}

// activityEnvelope is the get_activity reply.
type activityEnvelope struct {
	Response struct {
		baseResponse
		Data activityData `json:"data"`
	} `json:"response"`
}

type activityData struct {
	StreamCount string            `json:"stream_count"`
	Sessions    []activitySession `json:"sessions"`
}

// activitySession is the subset of Tautulli's session record the engine
// consumes. Numeric fields that Tautulli serializes as strings stay strings
// here and are converted during normalization.
type activitySession struct {
	SessionKey       string `json:"session_key"`
	MediaType        string `json:"media_type"`
	RatingKey        string `json:"rating_key"`
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparent_title"`
	MediaIndex       string `json:"media_index"`        // Episode number
	ParentMediaIndex string `json:"parent_media_index"` // Season number
	SectionID        string `json:"section_id"`
	User             string `json:"user"`
	UserID           int    `json:"user_id"`
	FriendlyName     string `json:"friendly_name"`
	State            string `json:"state"`
	ViewOffset       int64  `json:"view_offset"`
	Duration         int64  `json:"duration"`
}

// recentlyAddedEnvelope is the get_recently_added reply.
type recentlyAddedEnvelope struct {
	Response struct {
		baseResponse
		Data recentlyAddedData `json:"data"`
	} `json:"response"`
}

type recentlyAddedData struct {
	RecentlyAdded []recentlyAddedItem `json:"recently_added"`
}

type recentlyAddedItem struct {
	RatingKey        string `json:"rating_key"`
	MediaType        string `json:"media_type"`
	Title            string `json:"title"`
	ParentTitle      string `json:"parent_title"`
	GrandparentTitle string `json:"grandparent_title"`
	MediaIndex       string `json:"media_index"`
	ParentMediaIndex string `json:"parent_media_index"`
	SectionID        int    `json:"section_id"`
	AddedAt          int64  `json:"added_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

// normalizeSession converts a Tautulli session record into the engine's
// canonical shape.
func normalizeSession(s activitySession) models.Session {
	userTitle := s.FriendlyName
	if userTitle == "" {
		userTitle = s.User
	}

	return models.Session{
		SessionKey:   s.SessionKey,
		RatingKey:    s.RatingKey,
		MediaKind:    models.ParseMediaKind(s.MediaType),
		Title:        s.Title,
		ShowTitle:    s.GrandparentTitle,
		SeasonNum:    atoiOrZero(s.ParentMediaIndex),
		EpisodeNum:   atoiOrZero(s.MediaIndex),
		SectionID:    s.SectionID,
		UserID:       s.UserID,
		UserTitle:    userTitle,
		DurationMS:   s.Duration,
		ViewOffsetMS: s.ViewOffset,
	}
}

// normalizeRecentItem converts a recently-added record. Zero added_at stays
// a zero time so the watcher can fall back to updated_at.
func normalizeRecentItem(i recentlyAddedItem) models.RecentItem {
	item := models.RecentItem{
		RatingKey:  i.RatingKey,
		MediaKind:  models.ParseMediaKind(i.MediaType),
		Title:      i.Title,
		ShowTitle:  i.GrandparentTitle,
		SeasonNum:  atoiOrZero(i.ParentMediaIndex),
		EpisodeNum: atoiOrZero(i.MediaIndex),
		SectionID:  strconv.Itoa(i.SectionID),
	}
	if i.AddedAt > 0 {
		item.AddedAt = time.Unix(i.AddedAt, 0).UTC()
	}
	if i.UpdatedAt > 0 {
		item.UpdatedAt = time.Unix(i.UpdatedAt, 0).UTC()
	}
	return item
}

// atoiOrZero parses Tautulli's stringly-typed index fields.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
