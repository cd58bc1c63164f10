// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Service wrappers adapting Curatarr components to the suture.Service
// interface. Each wrapper's Serve blocks until the context is cancelled;
// suture restarts it on unexpected return.
package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/curatarr/internal/logging"
)

// ContextServer is anything that runs until its context is cancelled. The
// engine and the event consumer both satisfy it.
type ContextServer interface {
	Serve(ctx context.Context) error
}

// ServiceFunc adapts a Serve-shaped function to suture.Service.
type ServiceFunc func(ctx context.Context) error

// Serve implements suture.Service.
func (f ServiceFunc) Serve(ctx context.Context) error {
	return f(ctx)
}

// NamedService wraps a ContextServer with a name for supervisor logs.
type NamedService struct {
	Name   string
	Server ContextServer
}

// Serve implements suture.Service. Context cancellation is a normal stop.
func (s *NamedService) Serve(ctx context.Context) error {
	logging.Info().Str("service", s.Name).Msg("Service starting")
	err := s.Server.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Err(err).Str("service", s.Name).Msg("Service exited")
		return err
	}
	logging.Info().Str("service", s.Name).Msg("Service stopped")
	return err
}

func (s *NamedService) String() string {
	return s.Name
}

// HTTPServerService adapts net/http.Server's Start/Stop lifecycle to the
// suture Serve(ctx) shape.
type HTTPServerService struct {
	Server          *http.Server
	ShutdownTimeout time.Duration
}

// Serve implements suture.Service. ListenAndServe runs in a goroutine; on
// context cancellation the server is shut down gracefully within the
// timeout.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.Server.Addr).Msg("HTTP server listening")
		errCh <- s.Server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		timeout := s.ShutdownTimeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			logging.Err(err).Msg("HTTP server shutdown failed")
			return err
		}
		logging.Info().Msg("HTTP server stopped")
		return ctx.Err()
	}
}

func (s *HTTPServerService) String() string {
	return "http-server"
}
