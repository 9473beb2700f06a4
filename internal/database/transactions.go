// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MergeHourlyBucket accumulates a heartbeat's transaction count into the
// bucket for the hour containing the client-reported timestamp.
func (t *Tx) MergeHourlyBucket(ctx context.Context, timestamp time.Time, count int) error {
	hour := timestamp.UTC().Truncate(time.Hour)

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions_by_hour (hour, total_transactions, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (hour) DO UPDATE SET
			total_transactions = transactions_by_hour.total_transactions + excluded.total_transactions`,
		hour, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to merge hourly bucket: %w", err)
	}
	return nil
}

// GetHourlyBucketCount returns the transaction total for the bucket starting
// at hour, or 0 if no bucket exists.
func (db *DB) GetHourlyBucketCount(ctx context.Context, hour time.Time) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT total_transactions FROM transactions_by_hour WHERE hour = ?",
		hour.UTC().Truncate(time.Hour)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read hourly bucket: %w", err)
	}
	return count, nil
}
