// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

// InsertHeartbeat stores an immutable telemetry sample. Timestamp is the
// client-reported sampling instant; CreatedAt is server receive time.
func (t *Tx) InsertHeartbeat(ctx context.Context, hb *models.Heartbeat) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO heartbeats (
			device_id, timestamp, battery_level, battery_charging, network_type,
			signal_strength, storage_available, app_version, android_version,
			model, transactions_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hb.DeviceID, hb.Timestamp.UTC(), hb.BatteryLevel, hb.BatteryCharging,
		hb.NetworkType, hb.SignalStrength, hb.StorageAvailable, hb.AppVersion,
		hb.AndroidVersion, hb.Model, hb.TransactionsCount, hb.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert heartbeat: %w", err)
	}
	return nil
}

// CountHeartbeats counts samples for a device in [from, to). When
// inclusiveEnd is true the window is [from, to] instead; the last-hour
// snapshot uses the inclusive form.
func (db *DB) CountHeartbeats(ctx context.Context, deviceID string, from, to time.Time, inclusiveEnd bool) (int, error) {
	defer metrics.ObserveDBQuery("count_heartbeats", time.Now())

	op := "<"
	if inclusiveEnd {
		op = "<="
	}
	query := "SELECT COUNT(*) FROM heartbeats WHERE device_id = ? AND timestamp >= ? AND timestamp " + op + " ?"

	var count int
	err := db.conn.QueryRowContext(ctx, query, deviceID, from.UTC(), to.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count heartbeats: %w", err)
	}
	return count, nil
}

// CountHeartbeatsSince counts samples for a device from a lower bound with
// no upper bound. The persisted 24h recompute uses this shape.
func (db *DB) CountHeartbeatsSince(ctx context.Context, deviceID string, from time.Time) (int, error) {
	defer metrics.ObserveDBQuery("count_heartbeats", time.Now())

	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM heartbeats WHERE device_id = ? AND timestamp >= ?",
		deviceID, from.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count heartbeats: %w", err)
	}
	return count, nil
}
