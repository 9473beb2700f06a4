// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Service wrappers that adapt Fleetwatch components to the suture.Service
// interface. Each wrapper translates a component's own lifecycle into the
// context-aware Serve pattern and names the service for supervisor logs.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ContextHub matches *websocket.Hub's RunWithContext method. The interface
// keeps this package free of a websocket import.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the WebSocket hub as a supervised service.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates a WebSocket hub service wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service. RunWithContext already follows the
// suture pattern: it returns ctx.Err() on shutdown after closing all
// clients.
func (h *HubService) Serve(ctx context.Context) error {
	return h.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (h *HubService) String() string {
	return h.name
}

// StartStopper matches *scheduler.Scheduler's lifecycle methods.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// SweepService wraps the sweep scheduler as a supervised service.
type SweepService struct {
	scheduler StartStopper
	name      string
}

// NewSweepService creates a sweep scheduler service wrapper.
func NewSweepService(scheduler StartStopper) *SweepService {
	return &SweepService{
		scheduler: scheduler,
		name:      "sweep-scheduler",
	}
}

// Serve implements suture.Service: start the scheduler, block until the
// context is canceled, then stop it gracefully.
func (s *SweepService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweep scheduler: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("failed to stop sweep scheduler: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *SweepService) String() string {
	return s.name
}

// HTTPServer matches *http.Server's lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService wraps an HTTP server as a supervised service, translating the
// blocking ListenAndServe pattern into suture's context-aware Serve.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPService creates an HTTP server service wrapper. shutdownTimeout
// bounds how long active connections may linger during graceful shutdown.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. http.ErrServerClosed is converted to nil
// since it is expected on shutdown.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (h *HTTPService) String() string {
	return h.name
}
