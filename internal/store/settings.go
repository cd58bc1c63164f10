// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package store

import (
	"time"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/models"
)

// Flags maps a job kind to its enabled state for one user.
type Flags map[models.JobKind]bool

// Enabled reports whether kind is switched on, defaulting to false for
// kinds absent from the map.
func (f Flags) Enabled(kind models.JobKind) bool {
	return f[kind]
}

// Thresholds are the watch-progress knobs evaluated each tick.
type Thresholds struct {
	// Low is the per-kind eligibility ratio in (0, 1].
	Low map[models.JobKind]float64 `json:"low" validate:"required,dive,gt=0,lte=1"`

	// ForceBoth makes every session kind eligible once crossed.
	ForceBoth float64 `json:"force_both" validate:"gt=0,lte=1"`

	// MinDuration suppresses evaluation of short items entirely.
	MinDuration time.Duration `json:"min_duration" validate:"gte=0"`
}

// SettingsDocument is the persisted settings tree. Defaults apply to users
// without an explicit override.
type SettingsDocument struct {
	DefaultFlags Flags         `json:"default_flags" validate:"required"`
	UserFlags    map[int]Flags `json:"user_flags,omitempty"`
	Thresholds   Thresholds    `json:"thresholds" validate:"required"`

	// ExcludedSections lists library section IDs the engine ignores for
	// both session evaluation and recently-added watching.
	ExcludedSections []int `json:"excluded_sections,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// defaultSettings builds the first-run document from automation config:
// every session kind enabled for everyone, thresholds copied verbatim.
func defaultSettings(auto *config.AutomationConfig) *SettingsDocument {
	flags := Flags{
		models.JobRecommend:      true,
		models.JobTaste:          true,
		models.JobLibraryRefresh: true,
	}
	return &SettingsDocument{
		DefaultFlags: flags,
		Thresholds: Thresholds{
			Low: map[models.JobKind]float64{
				models.JobRecommend: auto.RecommendThreshold,
				models.JobTaste:     auto.TasteThreshold,
			},
			ForceBoth:   auto.ForceBothThreshold,
			MinDuration: auto.MinDuration,
		},
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *Store) loadSettings() (*SettingsDocument, error) {
	var doc SettingsDocument
	found, err := s.get(keySettings, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

func (s *Store) persistSettings(doc *SettingsDocument) error {
	return s.set(keySettings, doc)
}

// GetFlags returns the effective flags for a user: the explicit override if
// one exists, the defaults otherwise. The returned map must not be mutated.
func (s *Store) GetFlags(userID int) Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.settings.UserFlags[userID]; ok {
		return f
	}
	return s.settings.DefaultFlags
}

// GetThresholds returns the current threshold set.
func (s *Store) GetThresholds() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Thresholds
}

// IsLibraryExcluded reports whether a library section is excluded from
// automation.
func (s *Store) IsLibraryExcluded(sectionID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.settings.ExcludedSections {
		if id == sectionID {
			return true
		}
	}
	return false
}

// GetSettings returns a deep copy of the current document for the API.
func (s *Store) GetSettings() SettingsDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySettings(s.settings)
}

// UpdateSettings replaces the settings document, persisting it before the
// in-memory copy is swapped so a crash never loses an acknowledged update.
func (s *Store) UpdateSettings(doc SettingsDocument) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	doc.UpdatedAt = time.Now().UTC()

	if err := s.persistSettings(&doc); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = &doc
	s.mu.Unlock()

	logging.Info().
		Int("user_overrides", len(doc.UserFlags)).
		Int("excluded_sections", len(doc.ExcludedSections)).
		Msg("Settings updated")
	return nil
}

func copySettings(doc *SettingsDocument) SettingsDocument {
	out := *doc
	out.DefaultFlags = copyFlags(doc.DefaultFlags)
	if doc.UserFlags != nil {
		out.UserFlags = make(map[int]Flags, len(doc.UserFlags))
		for id, f := range doc.UserFlags {
			out.UserFlags[id] = copyFlags(f)
		}
	}
	out.Thresholds.Low = make(map[models.JobKind]float64, len(doc.Thresholds.Low))
	for k, v := range doc.Thresholds.Low {
		out.Thresholds.Low[k] = v
	}
	out.ExcludedSections = append([]int(nil), doc.ExcludedSections...)
	return out
}

func copyFlags(f Flags) Flags {
	out := make(Flags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
