// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package models defines the canonical record types exchanged between the
// media-server client, the automation engine, and the event log. These are
// normalized shapes; wire formats live with their clients.
package models

import "time"

// MediaKind classifies a playback item. Only movies and episodes participate
// in threshold evaluation; everything else is observed but ignored.
type MediaKind string

const (
	MediaKindMovie   MediaKind = "movie"
	MediaKindEpisode MediaKind = "episode"
	MediaKindOther   MediaKind = "other"
)

// ParseMediaKind normalizes a media-server media type string.
func ParseMediaKind(s string) MediaKind {
	switch s {
	case "movie":
		return MediaKindMovie
	case "episode":
		return MediaKindEpisode
	default:
		return MediaKindOther
	}
}

// Evaluable reports whether sessions of this kind are subject to
// watch-progress evaluation.
func (k MediaKind) Evaluable() bool {
	return k == MediaKindMovie || k == MediaKindEpisode
}

// Session is one live playback stream as observed in a single poll sample.
// SessionKey is the server-assigned identifier for the stream; RatingKey is
// the stable item identifier. Durations and offsets are in milliseconds.
type Session struct {
	SessionKey   string    `json:"session_key"`
	RatingKey    string    `json:"rating_key"`
	MediaKind    MediaKind `json:"media_kind"`
	Title        string    `json:"title"`
	ShowTitle    string    `json:"show_title,omitempty"`
	SeasonNum    int       `json:"season_num,omitempty"`
	EpisodeNum   int       `json:"episode_num,omitempty"`
	SectionID    string    `json:"section_id,omitempty"`
	UserID       int       `json:"user_id"`
	UserTitle    string    `json:"user_title"`
	DurationMS   int64     `json:"duration_ms"`
	ViewOffsetMS int64     `json:"view_offset_ms"`
}

// RecentItem is one library addition as observed in a recently-added sample.
type RecentItem struct {
	RatingKey  string    `json:"rating_key"`
	MediaKind  MediaKind `json:"media_kind"`
	Title      string    `json:"title"`
	ShowTitle  string    `json:"show_title,omitempty"`
	SeasonNum  int       `json:"season_num,omitempty"`
	EpisodeNum int       `json:"episode_num,omitempty"`
	SectionID  string    `json:"section_id,omitempty"`
	AddedAt    time.Time `json:"added_at"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// EffectiveTimestamp returns the timestamp used for watermark comparison:
// added-at when present, otherwise updated-at.
func (i RecentItem) EffectiveTimestamp() time.Time {
	if !i.AddedAt.IsZero() {
		return i.AddedAt
	}
	return i.UpdatedAt
}
