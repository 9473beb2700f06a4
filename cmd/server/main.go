// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package main is the entry point for the Fleetwatch server.
//
// Fleetwatch monitors a fleet of Android POS terminals: terminals POST
// heartbeats with battery, network, storage and transaction telemetry; the
// server maintains materialized terminal state, raises deduplicated alerts,
// estimates uptime from heartbeat density and pushes live updates to
// dashboards over WebSocket.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config.yaml and environment (Koanf v2)
//  2. Database: DuckDB with a single writer connection
//  3. WebSocket hub: real-time fan-out to dashboard clients
//  4. Reconciler: heartbeat ingest pipeline and fleet read models
//  5. Scheduler: offline and uptime reconciliation sweeps
//  6. HTTP server: REST API, health probes, /ws and /metrics
//
// All long-running components run under a Suture supervisor tree, so a
// crashing sweep or hub is restarted without taking down the HTTP server.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables (HTTP_PORT, DUCKDB_PATH,
// OFFLINE_THRESHOLD, ...), config.yaml, built-in defaults.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests within the configured
// timeout, stops the sweeps and checkpoints the database.
//
// # Example Usage
//
//	export HTTP_PORT=8080
//	export DUCKDB_PATH=/var/lib/fleetwatch/fleet.duckdb
//	./fleetwatch
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

	"github.com/fleetwatch/fleetwatch/internal/alerts"
	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/reconciler"
	"github.com/fleetwatch/fleetwatch/internal/scheduler"
	"github.com/fleetwatch/fleetwatch/internal/supervisor"
	"github.com/fleetwatch/fleetwatch/internal/uptime"
	ws "github.com/fleetwatch/fleetwatch/internal/websocket"
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
		Str("db_path", cfg.Database.Path).
		Int("port", cfg.Server.Port).
		Dur("offline_threshold", cfg.Scheduler.OfflineThreshold).
		Msg("Starting Fleetwatch")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The hub must exist before the reconciler so ingest can broadcast.
	hub := ws.NewHub()

	fleet := reconciler.New(db, alerts.New(db), uptime.New(db), hub)

	sched := scheduler.New(fleet, scheduler.Config{
		OfflineSweepInterval: cfg.Scheduler.OfflineSweepInterval,
		OfflineThreshold:     cfg.Scheduler.OfflineThreshold,
		UptimeSweepInterval:  cfg.Scheduler.UptimeSweepInterval,
	})

	handler := api.NewHandler(fleet, db, hub, cfg)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Bridge zerolog to slog for sutureslog compatibility
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(supervisor.NewHubService(hub))
	tree.AddJobService(supervisor.NewSweepService(sched))
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Fleetwatch stopped gracefully")
}
