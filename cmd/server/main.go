// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package main is the entry point for the Curatarr server.
//
// Curatarr watches a Tautulli-fronted Plex server and turns playback
// progress and library additions into curation jobs: recommendation
// refreshes when a user finishes something, taste-profile updates at a
// higher watch threshold, and collection reconciliation when new content
// lands in a library.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered env/file/defaults via Koanf v2
//  2. Stores: BadgerDB for settings and engine state, DuckDB for the
//     automation-event history
//  3. Clients: Tautulli and the job-runner endpoint, each wrapped in a
//     circuit breaker
//  4. Engine: the poll loop that diffs sessions, evaluates thresholds,
//     and dispatches jobs
//  5. HTTP server: health, metrics, status, events, settings
//
// Everything long-running sits under a suture supervisor tree so a
// panicking or failing component is restarted without taking the
// process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config.yaml, built-in defaults.
// The minimum viable configuration is the Tautulli URL and API key plus
// the job-runner URL:
//
//	export TAUTULLI_URL=http://localhost:8181
//	export TAUTULLI_API_KEY=your-api-key
//	export JOB_RUNNER_URL=http://localhost:8380
//	./curatarr
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the supervisor
// tree is cancelled, in-flight HTTP requests get a drain window, and the
// stores are closed after the tree has stopped.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/curatarr/internal/api"
	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/engine"
	"github.com/tomtom215/curatarr/internal/eventlog"
	"github.com/tomtom215/curatarr/internal/jobrunner"
	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/mediaserver"
	"github.com/tomtom215/curatarr/internal/store"
	"github.com/tomtom215/curatarr/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("tautulli_url", cfg.Tautulli.URL).
		Str("jobrunner_url", cfg.JobRunner.URL).
		Str("state_path", cfg.State.Path).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Curatarr")

	// Settings and engine state live in BadgerDB so queued runs and the
	// recently-added watermark survive restarts.
	st, err := store.Open(&cfg.State, &cfg.Automation)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing state store")
		}
	}()

	// Automation-event history lives in DuckDB, fed by the bus consumer.
	events, err := eventlog.OpenEventStore(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event store")
	}
	defer func() {
		if err := events.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()

	bus := eventlog.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	recorder := eventlog.NewBusRecorder(bus)
	consumer := eventlog.NewConsumer(bus, events)

	// Both outbound dependencies get circuit breakers so a flapping
	// Tautulli or job runner degrades to skipped polls and queued runs
	// instead of hammering a dead endpoint.
	client := mediaserver.NewCircuitBreakerClient(
		mediaserver.NewTautulliClient(&cfg.Tautulli), "tautulli")
	runner := jobrunner.NewCircuitBreakerRunner(
		jobrunner.NewHTTPRunner(&cfg.JobRunner), "jobrunner")

	eng, err := engine.New(cfg.Automation, client, runner, st, st, recorder)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create automation engine")
	}

	router := api.NewRouter(&cfg.Server, eng, events, st)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility.
	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDataService(&supervisor.NamedService{Name: "event-consumer", Server: consumer})
	tree.AddAutomationService(&supervisor.NamedService{Name: "automation-engine", Server: eng})
	tree.AddAPIService(&supervisor.HTTPServerService{Server: server, ShutdownTimeout: 10 * time.Second})
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel; it closes when the supervisor has stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
