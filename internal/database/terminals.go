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

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

// terminalColumns is the select list shared by all terminal queries. Keep it
// in sync with scanTerminal.
const terminalColumns = `id, device_id, location, status, battery_level, battery_charging,
	network_type, signal_strength, model, android_version, app_version,
	last_seen, total_transactions, uptime_percentage_24h, created_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTerminal maps one row of terminalColumns to a models.Terminal.
func scanTerminal(s scanner) (models.Terminal, error) {
	var (
		t              models.Terminal
		location       sql.NullString
		batteryLevel   sql.NullInt32
		networkType    sql.NullString
		signalStrength sql.NullInt32
		model          sql.NullString
		androidVersion sql.NullString
		appVersion     sql.NullString
		lastSeen       sql.NullTime
	)

	err := s.Scan(&t.ID, &t.DeviceID, &location, &t.Status, &batteryLevel,
		&t.BatteryCharging, &networkType, &signalStrength, &model,
		&androidVersion, &appVersion, &lastSeen, &t.TotalTransactions,
		&t.UptimePercentage24h, &t.CreatedAt)
	if err != nil {
		return models.Terminal{}, err
	}

	if location.Valid {
		t.Location = &location.String
	}
	if batteryLevel.Valid {
		v := int(batteryLevel.Int32)
		t.BatteryLevel = &v
	}
	if networkType.Valid {
		t.NetworkType = &networkType.String
	}
	if signalStrength.Valid {
		v := int(signalStrength.Int32)
		t.SignalStrength = &v
	}
	if model.Valid {
		t.Model = &model.String
	}
	if androidVersion.Valid {
		t.AndroidVersion = &androidVersion.String
	}
	if appVersion.Valid {
		t.AppVersion = &appVersion.String
	}
	if lastSeen.Valid {
		ts := lastSeen.Time.UTC()
		t.LastSeen = &ts
	}
	t.CreatedAt = t.CreatedAt.UTC()

	return t, nil
}

// getTerminalBy fetches a single terminal by the given column.
func getTerminalBy(ctx context.Context, q dbtx, column, value string) (models.Terminal, error) {
	//nolint:gosec // column is a compile-time constant, never user input
	query := fmt.Sprintf("SELECT %s FROM terminals WHERE %s = ?", terminalColumns, column)

	t, err := scanTerminal(q.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Terminal{}, ErrNotFound
	}
	if err != nil {
		return models.Terminal{}, fmt.Errorf("failed to query terminal: %w", err)
	}
	return t, nil
}

// GetTerminalByID fetches a terminal by its terminal code.
func (db *DB) GetTerminalByID(ctx context.Context, id string) (models.Terminal, error) {
	return getTerminalBy(ctx, db.conn, "id", id)
}

// GetTerminalByDeviceID fetches a terminal by its device identifier.
func (db *DB) GetTerminalByDeviceID(ctx context.Context, deviceID string) (models.Terminal, error) {
	return getTerminalBy(ctx, db.conn, "device_id", deviceID)
}

// GetTerminalByDeviceID fetches a terminal within the transaction, seeing
// uncommitted writes from the same transaction.
func (t *Tx) GetTerminalByDeviceID(ctx context.Context, deviceID string) (models.Terminal, error) {
	return getTerminalBy(ctx, t.tx, "device_id", deviceID)
}

// ListTerminals returns all terminals, optionally filtered by status.
func (db *DB) ListTerminals(ctx context.Context, status *string) ([]models.Terminal, error) {
	defer metrics.ObserveDBQuery("list_terminals", time.Now())

	query := "SELECT " + terminalColumns + " FROM terminals"
	var args []any
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminals: %w", err)
	}
	defer closeWithLog(rows, "terminals rows")

	terminals := []models.Terminal{}
	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan terminal: %w", err)
		}
		terminals = append(terminals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("terminal row iteration failed: %w", err)
	}

	return terminals, nil
}

// terminalCodeTaken reports whether a terminal row already uses the code.
func (t *Tx) terminalCodeTaken(ctx context.Context, code string) (bool, error) {
	var taken bool
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM terminals WHERE id = ?", code).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check terminal code: %w", err)
	}
	return taken, nil
}

// availableTerminalCode returns candidate unless another device already holds
// it. On collision the device-ID prefix in the code is extended until the
// codes diverge; a device ID that is a strict prefix of another falls back to
// a numeric suffix.
func (t *Tx) availableTerminalCode(ctx context.Context, candidate, deviceID string) (string, error) {
	code := candidate
	for n := len(candidate) - len("POS-"); ; {
		taken, err := t.terminalCodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		if n >= len(deviceID) {
			break
		}
		n += 4
		if n > len(deviceID) {
			n = len(deviceID)
		}
		code = "POS-" + deviceID[:n]
	}

	for i := 2; ; i++ {
		code := fmt.Sprintf("POS-%s-%d", deviceID, i)
		taken, err := t.terminalCodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
}

// UpsertTerminalFromHeartbeat materializes the heartbeat into the terminal
// row: the terminal comes back online, last_seen moves to server time, and
// the transaction total is overwritten with the reported value. terminalID is
// a candidate code; when another device already holds it the stored code is
// disambiguated, so every device identifier maps to exactly one terminal.
func (t *Tx) UpsertTerminalFromHeartbeat(ctx context.Context, terminalID string, hb *models.Heartbeat, location *string, now time.Time) error {
	now = now.UTC()

	var exists bool
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM terminals WHERE device_id = ?", hb.DeviceID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check terminal existence: %w", err)
	}

	if !exists {
		code, err := t.availableTerminalCode(ctx, terminalID, hb.DeviceID)
		if err != nil {
			return err
		}
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO terminals (
				id, device_id, location, status, battery_level, battery_charging,
				network_type, signal_strength, model, android_version, app_version,
				storage_available, last_seen, total_transactions, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			code, hb.DeviceID, location, models.StatusOnline,
			hb.BatteryLevel, hb.BatteryCharging, hb.NetworkType, hb.SignalStrength,
			hb.Model, hb.AndroidVersion, hb.AppVersion, hb.StorageAvailable,
			now, hb.TransactionsCount, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert terminal: %w", err)
		}
		return nil
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE terminals SET
			status = ?, location = ?, battery_level = ?, battery_charging = ?,
			network_type = ?, signal_strength = ?, model = ?, android_version = ?,
			app_version = ?, storage_available = ?, last_seen = ?,
			total_transactions = ?, updated_at = ?
		WHERE device_id = ?`,
		models.StatusOnline, location, hb.BatteryLevel, hb.BatteryCharging,
		hb.NetworkType, hb.SignalStrength, hb.Model, hb.AndroidVersion,
		hb.AppVersion, hb.StorageAvailable, now, hb.TransactionsCount, now,
		hb.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to update terminal: %w", err)
	}
	return nil
}

// UpdateTerminalLocation updates a terminal's location and returns the
// refreshed record. Returns ErrNotFound if the terminal does not exist.
func (db *DB) UpdateTerminalLocation(ctx context.Context, id string, location *string) (models.Terminal, error) {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE terminals SET location = ?, updated_at = ? WHERE id = ?",
		location, time.Now().UTC(), id)
	if err != nil {
		return models.Terminal{}, fmt.Errorf("failed to update terminal location: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return models.Terminal{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return models.Terminal{}, ErrNotFound
	}

	return db.GetTerminalByID(ctx, id)
}

// MarkOfflineTerminals marks every terminal whose last heartbeat predates
// cutoff as offline and returns the terminals that actually transitioned
// from online, so the caller can broadcast the state changes.
func (db *DB) MarkOfflineTerminals(ctx context.Context, cutoff time.Time) ([]models.Terminal, error) {
	defer metrics.ObserveDBQuery("mark_offline_terminals", time.Now())

	var transitioned []models.Terminal

	err := db.WithTx(ctx, func(tx *Tx) error {
		rows, err := tx.tx.QueryContext(ctx,
			"SELECT "+terminalColumns+" FROM terminals WHERE last_seen < ? AND status = ? ORDER BY id",
			cutoff.UTC(), models.StatusOnline)
		if err != nil {
			return fmt.Errorf("failed to query stale terminals: %w", err)
		}
		defer closeWithLog(rows, "stale terminal rows")

		for rows.Next() {
			t, err := scanTerminal(rows)
			if err != nil {
				return fmt.Errorf("failed to scan stale terminal: %w", err)
			}
			t.Status = models.StatusOffline
			transitioned = append(transitioned, t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("stale terminal iteration failed: %w", err)
		}

		_, err = tx.tx.ExecContext(ctx,
			"UPDATE terminals SET status = ?, updated_at = ? WHERE last_seen < ?",
			models.StatusOffline, time.Now().UTC(), cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to mark terminals offline: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transitioned, nil
}

// SetUptimePercentage persists the recomputed 24h uptime for a terminal.
func (db *DB) SetUptimePercentage(ctx context.Context, deviceID string, pct float64) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE terminals SET uptime_percentage_24h = ?, updated_at = ? WHERE device_id = ?",
		pct, time.Now().UTC(), deviceID)
	if err != nil {
		return fmt.Errorf("failed to set uptime percentage: %w", err)
	}
	return nil
}

// TerminalActivity is the minimal projection the uptime estimator needs.
type TerminalActivity struct {
	DeviceID  string
	CreatedAt time.Time
}

// ListTerminalActivity returns device IDs with their registration instants.
func (db *DB) ListTerminalActivity(ctx context.Context) ([]TerminalActivity, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT device_id, created_at FROM terminals ORDER BY device_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal activity: %w", err)
	}
	defer closeWithLog(rows, "terminal activity rows")

	var activity []TerminalActivity
	for rows.Next() {
		var a TerminalActivity
		if err := rows.Scan(&a.DeviceID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan terminal activity: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		activity = append(activity, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("terminal activity iteration failed: %w", err)
	}

	return activity, nil
}
