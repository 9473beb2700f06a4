// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package scheduler drives the periodic reconciliation sweeps: marking
// silent terminals offline and recomputing persisted 24h uptime. A failed
// tick is logged and counted but never stops the loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
)

// Sweep job names used in logs and metrics.
const (
	jobOffline = "offline"
	jobUptime  = "uptime"
)

// sweepTimeout bounds a single tick so a stuck query cannot wedge the loop.
const sweepTimeout = time.Minute

// Fleet is the reconciliation surface the sweeps drive. Implemented by
// reconciler.Service.
type Fleet interface {
	SweepOffline(ctx context.Context, threshold time.Duration) (int, error)
	RecomputeUptime(ctx context.Context) error
}

// Config holds the sweep intervals.
type Config struct {
	// OfflineSweepInterval is how often to scan for silent terminals.
	OfflineSweepInterval time.Duration

	// OfflineThreshold is how long a terminal may stay silent before it is
	// marked offline.
	OfflineThreshold time.Duration

	// UptimeSweepInterval is how often to recompute persisted 24h uptime.
	UptimeSweepInterval time.Duration
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		OfflineSweepInterval: 2 * time.Minute,
		OfflineThreshold:     10 * time.Minute,
		UptimeSweepInterval:  5 * time.Minute,
	}
}

// Scheduler runs the reconciliation sweeps on their configured intervals.
type Scheduler struct {
	fleet  Fleet
	logger zerolog.Logger
	config Config

	// Runtime state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a sweep scheduler.
func New(fleet Fleet, config Config) *Scheduler {
	if config.OfflineSweepInterval <= 0 {
		config.OfflineSweepInterval = 2 * time.Minute
	}
	if config.OfflineThreshold <= 0 {
		config.OfflineThreshold = 10 * time.Minute
	}
	if config.UptimeSweepInterval <= 0 {
		config.UptimeSweepInterval = 5 * time.Minute
	}

	return &Scheduler{
		fleet:  fleet,
		logger: logging.With().Str("component", "sweep-scheduler").Logger(),
		config: config,
	}
}

// Start begins the sweep loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Dur("offline_sweep_interval", s.config.OfflineSweepInterval).
		Dur("offline_threshold", s.config.OfflineThreshold).
		Dur("uptime_sweep_interval", s.config.UptimeSweepInterval).
		Msg("Starting reconciliation sweeps")

	go s.run(ctx)
	return nil
}

// Stop stops the sweep loop and waits for it to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Reconciliation sweeps stopped")
	return nil
}

// run is the main sweep loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	offlineTicker := time.NewTicker(s.config.OfflineSweepInterval)
	defer offlineTicker.Stop()
	uptimeTicker := time.NewTicker(s.config.UptimeSweepInterval)
	defer uptimeTicker.Stop()

	// Run both sweeps immediately on start so a restarted server converges
	// without waiting a full interval.
	s.runOfflineSweep(ctx)
	s.runUptimeSweep(ctx)

	for {
		select {
		case <-offlineTicker.C:
			s.runOfflineSweep(ctx)
		case <-uptimeTicker.C:
			s.runUptimeSweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runOfflineSweep executes one offline detection tick.
func (s *Scheduler) runOfflineSweep(ctx context.Context) {
	start := time.Now()
	tickCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	transitioned, err := s.fleet.SweepOffline(tickCtx, s.config.OfflineThreshold)
	metrics.RecordSweep(jobOffline, err, time.Since(start))
	if err != nil {
		s.logger.Error().Err(err).Msg("Offline sweep failed")
		return
	}

	if transitioned > 0 {
		s.logger.Info().
			Int("transitioned", transitioned).
			Dur("duration", time.Since(start)).
			Msg("Offline sweep completed")
	} else {
		s.logger.Debug().Msg("Offline sweep found no silent terminals")
	}
}

// runUptimeSweep executes one uptime recompute tick.
func (s *Scheduler) runUptimeSweep(ctx context.Context) {
	start := time.Now()
	tickCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	err := s.fleet.RecomputeUptime(tickCtx)
	metrics.RecordSweep(jobUptime, err, time.Since(start))
	if err != nil {
		s.logger.Error().Err(err).Msg("Uptime sweep failed")
		return
	}

	s.logger.Debug().Dur("duration", time.Since(start)).Msg("Uptime sweep completed")
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
