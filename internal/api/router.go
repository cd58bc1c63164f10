// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package api provides the read-mostly HTTP surface: health, metrics,
// engine status, automation-event history, and the settings document.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/engine"
	"github.com/tomtom215/curatarr/internal/models"
	"github.com/tomtom215/curatarr/internal/store"
)

// EngineStats exposes the engine's point-in-time view.
type EngineStats interface {
	Stats() engine.Stats
}

// EventReader reads persisted automation events.
type EventReader interface {
	Recent(ctx context.Context, limit int) ([]models.AutomationEvent, error)
}

// SettingsStore reads and replaces the settings document.
type SettingsStore interface {
	GetSettings() store.SettingsDocument
	UpdateSettings(doc store.SettingsDocument) error
}

// Router builds the HTTP handler tree.
type Router struct {
	cfg      *config.ServerConfig
	engine   EngineStats
	events   EventReader
	settings SettingsStore
}

// NewRouter creates a router over the given components.
func NewRouter(cfg *config.ServerConfig, eng EngineStats, events EventReader, settings SettingsStore) *Router {
	return &Router{cfg: cfg, engine: eng, events: events, settings: settings}
}

// Handler assembles the chi route tree with the global middleware stack.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", rt.handleHealth)
	r.Get("/readyz", rt.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		reqs := rt.cfg.RateLimitReqs
		if reqs <= 0 {
			reqs = 100
		}
		window := rt.cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.Limit(reqs, window, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Get("/status", rt.handleStatus)
		r.Get("/events", rt.handleEvents)
		r.Get("/settings", rt.handleGetSettings)
		r.Put("/settings", rt.handlePutSettings)
	})

	return r
}
