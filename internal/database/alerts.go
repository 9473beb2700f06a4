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

const alertColumns = `id, device_id, alert_type, severity, message, location,
	resolved, created_at, resolved_at`

// scanAlert maps one row of alertColumns to a models.Alert.
func scanAlert(s scanner) (models.Alert, error) {
	var (
		a          models.Alert
		location   sql.NullString
		resolvedAt sql.NullTime
	)

	err := s.Scan(&a.ID, &a.DeviceID, &a.AlertType, &a.Severity, &a.Message,
		&location, &a.Resolved, &a.CreatedAt, &resolvedAt)
	if err != nil {
		return models.Alert{}, err
	}

	if location.Valid {
		a.Location = &location.String
	}
	if resolvedAt.Valid {
		ts := resolvedAt.Time.UTC()
		a.ResolvedAt = &ts
	}
	a.CreatedAt = a.CreatedAt.UTC()

	return a, nil
}

// CreateAlertIfAbsent raises an alert unless an unresolved alert of the same
// type already exists for the device. The check and the insert are a single
// statement, so concurrent ingests for the same device cannot both fire.
// Returns the created alert, or nil if one was already open.
func (t *Tx) CreateAlertIfAbsent(ctx context.Context, deviceID, alertType, severity, message string, location *string) (*models.Alert, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO alerts (device_id, alert_type, severity, message, location, resolved, created_at)
		SELECT ?, ?, ?, ?, ?, false, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM alerts WHERE device_id = ? AND alert_type = ? AND resolved = false
		)`,
		deviceID, alertType, severity, message, location, time.Now().UTC(),
		deviceID, alertType)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	alert, err := scanAlert(t.tx.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE device_id = ? AND alert_type = ? AND resolved = false",
		deviceID, alertType))
	if err != nil {
		return nil, fmt.Errorf("failed to read created alert: %w", err)
	}
	return &alert, nil
}

// ListAlerts returns alerts newest first. All set filter fields must match.
func (db *DB) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	defer metrics.ObserveDBQuery("list_alerts", time.Now())

	query := "SELECT " + alertColumns + " FROM alerts"
	var (
		conds []string
		args  []any
	)
	if filter.Severity != nil {
		conds = append(conds, "severity = ?")
		args = append(args, *filter.Severity)
	}
	if filter.Resolved != nil {
		conds = append(conds, "resolved = ?")
		args = append(args, *filter.Resolved)
	}
	if filter.DeviceID != nil {
		conds = append(conds, "device_id = ?")
		args = append(args, *filter.DeviceID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer closeWithLog(rows, "alert rows")

	alerts := []models.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alert row iteration failed: %w", err)
	}

	return alerts, nil
}

// ResolveAlert marks an alert resolved. Resolution is one-way: resolving an
// unknown or already-resolved alert returns ErrNotFound.
func (db *DB) ResolveAlert(ctx context.Context, id int64) (models.Alert, error) {
	defer metrics.ObserveDBQuery("resolve_alert", time.Now())

	result, err := db.conn.ExecContext(ctx,
		"UPDATE alerts SET resolved = true, resolved_at = ? WHERE id = ? AND resolved = false",
		time.Now().UTC(), id)
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to resolve alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return models.Alert{}, ErrNotFound
	}

	alert, err := scanAlert(db.conn.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Alert{}, ErrNotFound
	}
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to read resolved alert: %w", err)
	}
	return alert, nil
}

// CountUnresolvedAlerts returns the number of open alerts across the fleet.
func (db *DB) CountUnresolvedAlerts(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alerts WHERE resolved = false").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved alerts: %w", err)
	}
	return count, nil
}
