// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/store"
)

// Error codes returned in the standard error envelope.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// validate is a reusable validator instance; validator.Validate is
// safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}
	respondJSON(w, status, &APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// handleHealth reports process liveness.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data:    map[string]string{"status": "ok"},
	})
}

// handleReady reports readiness: the engine must have completed at least
// one poll tick before the instance is considered ready to answer
// meaningful status queries.
func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	stats := rt.engine.Stats()
	if stats.TicksCompleted == 0 {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"engine has not completed a poll tick yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":    "ready",
			"last_tick": stats.LastTick,
		},
	})
}

// handleStatus returns the engine's point-in-time counters.
func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data:    rt.engine.Stats(),
	})
}

// handleEvents returns the most recent automation events, newest first.
// Accepts ?limit=N, clamped to [1, 500], default 50.
func (rt *Router) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", defaultEventLimit)
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := rt.events.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to read event history", err)
		return
	}
	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"events": events,
			"count":  len(events),
		},
	})
}

// handleGetSettings returns the current settings document.
func (rt *Router) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	doc := rt.settings.GetSettings()
	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data:    doc,
	})
}

// handlePutSettings replaces the settings document. The whole document is
// validated before anything is persisted so a rejected update leaves the
// previous settings untouched.
func (rt *Router) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var doc store.SettingsDocument
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"invalid settings payload: "+err.Error(), nil)
		return
	}

	if err := validate.Struct(&doc); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed,
			"settings validation failed: "+err.Error(), nil)
		return
	}
	if msg := validateSettings(&doc); msg != "" {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, msg, nil)
		return
	}

	if err := rt.settings.UpdateSettings(doc); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to persist settings", err)
		return
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data:    rt.settings.GetSettings(),
	})
}

// validateSettings covers the constraints struct tags cannot express:
// job-kind keys must name known kinds, and section IDs must be positive.
func validateSettings(doc *store.SettingsDocument) string {
	for kind := range doc.DefaultFlags {
		if !kind.Valid() {
			return "unknown job kind in default_flags: " + string(kind)
		}
	}
	for userID, flags := range doc.UserFlags {
		if userID <= 0 {
			return "user_flags keys must be positive user IDs"
		}
		for kind := range flags {
			if !kind.Valid() {
				return "unknown job kind in user_flags: " + string(kind)
			}
		}
	}
	for kind := range doc.Thresholds.Low {
		if !kind.Valid() {
			return "unknown job kind in thresholds.low: " + string(kind)
		}
	}
	for _, id := range doc.ExcludedSections {
		if id <= 0 {
			return "excluded_sections entries must be positive section IDs"
		}
	}
	if doc.Thresholds.MinDuration < 0 || doc.Thresholds.MinDuration > 24*time.Hour {
		return "thresholds.min_duration must be between 0 and 24h"
	}
	return ""
}
