// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package reconciler coordinates the heartbeat ingest pipeline and the
// fleet-level read models. Ingest is a single transaction covering the
// terminal upsert, the heartbeat record, the hourly transaction bucket and
// alert evaluation; broadcasts happen only after commit.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/alerts"
	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/uptime"
)

// Broadcaster pushes fleet state changes to dashboard subscribers.
// Implemented by websocket.Hub; fan-out is best-effort and must never fail
// the operation that triggered it.
type Broadcaster interface {
	BroadcastTerminalUpdate(terminal *models.Terminal)
	BroadcastNewAlert(alert *models.Alert)
	BroadcastAlertResolved(alert *models.Alert)
}

// Service owns the ingest pipeline and the fleet read models.
type Service struct {
	db          *database.DB
	engine      *alerts.Engine
	estimator   *uptime.Estimator
	broadcaster Broadcaster
}

// New creates a reconciler service.
func New(db *database.DB, engine *alerts.Engine, estimator *uptime.Estimator, broadcaster Broadcaster) *Service {
	return &Service{
		db:          db,
		engine:      engine,
		estimator:   estimator,
		broadcaster: broadcaster,
	}
}

// terminalCode derives the candidate terminal code from a device identifier.
// The store extends the code when two device IDs share the same prefix.
func terminalCode(deviceID string) string {
	prefix := deviceID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "POS-" + prefix
}

// IngestHeartbeat processes one telemetry sample atomically: the terminal
// row is upserted and brought online, the heartbeat is recorded, the
// transaction count is folded into the hourly bucket and the alerting rules
// are evaluated. The refreshed terminal and any newly raised alerts are
// broadcast after the transaction commits.
func (s *Service) IngestHeartbeat(ctx context.Context, req *models.HeartbeatRequest) (*models.Terminal, error) {
	start := time.Now()

	hb := &models.Heartbeat{
		DeviceID:          req.DeviceID,
		Timestamp:         time.UnixMilli(req.Timestamp).UTC(),
		BatteryLevel:      *req.BatteryLevel,
		BatteryCharging:   *req.BatteryCharging,
		NetworkType:       req.NetworkType,
		SignalStrength:    req.SignalStrength,
		StorageAvailable:  *req.StorageAvailable,
		AppVersion:        req.AppVersion,
		AndroidVersion:    req.AndroidVersion,
		Model:             req.Model,
		TransactionsCount: req.TransactionsCount,
		CreatedAt:         start.UTC(),
	}

	var (
		terminal models.Terminal
		created  []models.Alert
	)
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := tx.UpsertTerminalFromHeartbeat(ctx, terminalCode(req.DeviceID), hb, req.Location, start); err != nil {
			return err
		}
		if err := tx.InsertHeartbeat(ctx, hb); err != nil {
			return err
		}
		if err := tx.MergeHourlyBucket(ctx, hb.Timestamp, req.TransactionsCount); err != nil {
			return err
		}

		var err error
		created, err = s.engine.Evaluate(ctx, tx, req, req.Location)
		if err != nil {
			return err
		}

		terminal, err = tx.GetTerminalByDeviceID(ctx, req.DeviceID)
		return err
	})
	metrics.HeartbeatIngestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HeartbeatIngestErrors.Inc()
		return nil, fmt.Errorf("heartbeat ingest failed for %s: %w", req.DeviceID, err)
	}
	metrics.HeartbeatsIngested.Inc()

	s.broadcaster.BroadcastTerminalUpdate(&terminal)
	for i := range created {
		metrics.AlertsCreated.WithLabelValues(created[i].AlertType, created[i].Severity).Inc()
		s.broadcaster.BroadcastNewAlert(&created[i])
		logging.Warn().
			Str("device_id", created[i].DeviceID).
			Str("alert_type", created[i].AlertType).
			Str("severity", created[i].Severity).
			Msg("alert raised")
	}

	return &terminal, nil
}

// GetTerminal fetches a terminal by terminal code, falling back to device
// identifier so both forms work in the API path parameter.
func (s *Service) GetTerminal(ctx context.Context, id string) (models.Terminal, error) {
	t, err := s.db.GetTerminalByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return s.db.GetTerminalByDeviceID(ctx, id)
	}
	return t, err
}

// ListTerminals returns all terminals, optionally filtered by status.
func (s *Service) ListTerminals(ctx context.Context, status *string) ([]models.Terminal, error) {
	return s.db.ListTerminals(ctx, status)
}

// UpdateLocation updates a terminal's location and broadcasts the refreshed
// record.
func (s *Service) UpdateLocation(ctx context.Context, id string, location *string) (models.Terminal, error) {
	terminal, err := s.db.UpdateTerminalLocation(ctx, id, location)
	if err != nil {
		return models.Terminal{}, err
	}
	s.broadcaster.BroadcastTerminalUpdate(&terminal)
	return terminal, nil
}

// FleetStats assembles the point-in-time fleet snapshot: stored counters
// plus the live last-hour uptime estimate.
func (s *Service) FleetStats(ctx context.Context) (models.FleetStats, error) {
	counters, err := s.db.GetFleetCounters(ctx)
	if err != nil {
		return models.FleetStats{}, err
	}

	lastHour, err := s.estimator.LastHourAverage(ctx, time.Now())
	if err != nil {
		return models.FleetStats{}, err
	}

	return models.FleetStats{
		TotalTerminals:         counters.TotalTerminals,
		Online:                 counters.Online,
		Offline:                counters.TotalTerminals - counters.Online,
		ActiveAlerts:           counters.UnresolvedAlerts,
		AvgUptimePercentage:    counters.AvgStoredUptime,
		TotalTransactionsToday: counters.TotalTransactions,
		UptimeLastHour:         lastHour,
	}, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (s *Service) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	return s.engine.List(ctx, filter)
}

// ListActiveAlerts returns all unresolved alerts, newest first.
func (s *Service) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	return s.engine.ListActive(ctx)
}

// ResolveAlert marks an alert resolved and broadcasts the transition.
// Unknown or already-resolved alerts surface database.ErrNotFound.
func (s *Service) ResolveAlert(ctx context.Context, id int64) (models.Alert, error) {
	alert, err := s.engine.Resolve(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}
	metrics.AlertsResolved.Inc()
	s.broadcaster.BroadcastAlertResolved(&alert)
	return alert, nil
}

// SweepOffline marks terminals silent for longer than threshold as offline
// and broadcasts each transition. Returns the number of terminals that
// actually changed state.
func (s *Service) SweepOffline(ctx context.Context, threshold time.Duration) (int, error) {
	transitioned, err := s.db.MarkOfflineTerminals(ctx, time.Now().Add(-threshold))
	if err != nil {
		return 0, err
	}

	for i := range transitioned {
		s.broadcaster.BroadcastTerminalUpdate(&transitioned[i])
		logging.Info().
			Str("device_id", transitioned[i].DeviceID).
			Msg("terminal marked offline")
	}
	if len(transitioned) > 0 {
		metrics.TerminalsMarkedOffline.Add(float64(len(transitioned)))
	}

	return len(transitioned), nil
}

// RecomputeUptime refreshes the persisted 24h uptime of every terminal.
func (s *Service) RecomputeUptime(ctx context.Context) error {
	return s.estimator.RecomputeAll(ctx, time.Now())
}
