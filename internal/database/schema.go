// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

const (
	schemaTimeout     = 30 * time.Second
	checkpointTimeout = 30 * time.Second
)

// createTables creates the schema if it does not exist. All timestamps are
// stored in UTC.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS heartbeats_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS alerts_id_seq`,

		`CREATE TABLE IF NOT EXISTS terminals (
			id VARCHAR PRIMARY KEY,
			device_id VARCHAR NOT NULL UNIQUE,
			location VARCHAR,
			status VARCHAR NOT NULL,
			battery_level INTEGER,
			battery_charging BOOLEAN NOT NULL DEFAULT false,
			network_type VARCHAR,
			signal_strength INTEGER,
			model VARCHAR,
			android_version VARCHAR,
			app_version VARCHAR,
			storage_available BIGINT,
			last_seen TIMESTAMP,
			total_transactions INTEGER NOT NULL DEFAULT 0,
			uptime_percentage_24h DOUBLE NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS heartbeats (
			id BIGINT PRIMARY KEY DEFAULT nextval('heartbeats_id_seq'),
			device_id VARCHAR NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			battery_level INTEGER NOT NULL,
			battery_charging BOOLEAN NOT NULL,
			network_type VARCHAR NOT NULL,
			signal_strength INTEGER,
			storage_available BIGINT NOT NULL,
			app_version VARCHAR NOT NULL,
			android_version VARCHAR NOT NULL,
			model VARCHAR NOT NULL,
			transactions_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGINT PRIMARY KEY DEFAULT nextval('alerts_id_seq'),
			device_id VARCHAR NOT NULL,
			alert_type VARCHAR NOT NULL,
			severity VARCHAR NOT NULL,
			message VARCHAR NOT NULL,
			location VARCHAR,
			resolved BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS transactions_by_hour (
			hour TIMESTAMP PRIMARY KEY,
			total_transactions INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS app_versions (
			version VARCHAR PRIMARY KEY,
			is_deprecated BOOLEAN NOT NULL DEFAULT false,
			released_at TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// createIndexes creates secondary indexes for the hot query paths: heartbeat
// counting by device and window, alert dedup lookups and staleness sweeps.
func (db *DB) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_heartbeats_device_ts ON heartbeats (device_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_device_type ON alerts (device_id, alert_type, resolved)`,
		`CREATE INDEX IF NOT EXISTS idx_terminals_last_seen ON terminals (last_seen)`,
		`CREATE INDEX IF NOT EXISTS idx_terminals_status ON terminals (status)`,
	}

	for _, stmt := range indexes {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// seedVersionRegistry inserts the known app releases used to flag deprecated
// versions in the distribution chart. Existing rows are left untouched so
// operators can curate the registry at runtime.
func (db *DB) seedVersionRegistry() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	now := time.Now().UTC()
	seed := []models.AppVersion{
		{Version: "1.0.0", IsDeprecated: true, ReleasedAt: now},
		{Version: "1.1.0", IsDeprecated: true, ReleasedAt: now},
		{Version: "1.2.0", ReleasedAt: now},
		{Version: "2.0.0", ReleasedAt: now},
		{Version: "2.1.0", ReleasedAt: now},
	}

	for _, v := range seed {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO app_versions (version, is_deprecated, released_at)
			 VALUES (?, ?, ?) ON CONFLICT (version) DO NOTHING`,
			v.Version, v.IsDeprecated, v.ReleasedAt)
		if err != nil {
			return fmt.Errorf("failed to seed version registry: %w", err)
		}
	}

	return nil
}
