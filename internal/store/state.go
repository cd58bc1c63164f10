// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package store

import (
	"time"

	"github.com/tomtom215/curatarr/internal/models"
)

// SaveEngineState persists the durable engine memory. Called at the end of
// every tick that changed the watermark, cooldowns, or queues.
func (s *Store) SaveEngineState(state *models.EngineState) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	state.SavedAt = time.Now().UTC()
	return s.set(keyEngineState, state)
}

// LoadEngineState returns the persisted engine state, or an empty state on
// first run. A cold start therefore has a zero watermark, which the
// recently-added watcher treats as "initialize without firing".
func (s *Store) LoadEngineState() (*models.EngineState, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	var state models.EngineState
	found, err := s.get(keyEngineState, &state)
	if err != nil {
		return nil, err
	}
	if !found {
		return &models.EngineState{
			Cooldowns: make(map[int]time.Time),
			Queues:    make(map[int][]models.QueuedRun),
		}, nil
	}
	if state.Cooldowns == nil {
		state.Cooldowns = make(map[int]time.Time)
	}
	if state.Queues == nil {
		state.Queues = make(map[int][]models.QueuedRun)
	}
	return &state, nil
}
