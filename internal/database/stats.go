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

// FleetCounters holds the aggregates the stats endpoint derives from the
// terminals and alerts tables in one pass.
type FleetCounters struct {
	TotalTerminals    int
	Online            int
	UnresolvedAlerts  int
	AvgStoredUptime   float64
	TotalTransactions int
}

// GetFleetCounters returns terminal counts, the open alert count, the mean
// persisted 24h uptime and the fleet-wide transaction total. Averages and
// sums are 0 when the fleet is empty.
func (db *DB) GetFleetCounters(ctx context.Context) (FleetCounters, error) {
	defer metrics.ObserveDBQuery("fleet_counters", time.Now())

	var c FleetCounters

	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(uptime_percentage_24h), 0),
			COALESCE(SUM(total_transactions), 0)
		FROM terminals`,
		models.StatusOnline).Scan(&c.TotalTerminals, &c.Online, &c.AvgStoredUptime, &c.TotalTransactions)
	if err != nil {
		return FleetCounters{}, fmt.Errorf("failed to read fleet counters: %w", err)
	}

	c.UnresolvedAlerts, err = db.CountUnresolvedAlerts(ctx)
	if err != nil {
		return FleetCounters{}, err
	}

	return c, nil
}

// GetVersionCounts groups terminals by app version, largest group first.
// Terminals without a reported version count under "Unknown". The deprecated
// flag is cross-referenced from the version registry.
func (db *DB) GetVersionCounts(ctx context.Context) ([]models.VersionDistribution, error) {
	defer metrics.ObserveDBQuery("version_counts", time.Now())

	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			COALESCE(t.app_version, 'Unknown') AS version,
			COUNT(*) AS cnt,
			COALESCE(MAX(CASE WHEN av.is_deprecated THEN 1 ELSE 0 END), 0) = 1
		FROM terminals t
		LEFT JOIN app_versions av ON av.version = COALESCE(t.app_version, 'Unknown')
		GROUP BY 1
		ORDER BY cnt DESC, version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query version counts: %w", err)
	}
	defer closeWithLog(rows, "version count rows")

	var versions []models.VersionDistribution
	for rows.Next() {
		var v models.VersionDistribution
		if err := rows.Scan(&v.Version, &v.Count, &v.IsDeprecated); err != nil {
			return nil, fmt.Errorf("failed to scan version count: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("version count iteration failed: %w", err)
	}

	return versions, nil
}
