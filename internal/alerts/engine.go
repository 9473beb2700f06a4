// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package alerts evaluates heartbeat telemetry against the fleet's alerting
// rules and manages alert lifecycle. Every firing condition is
// create-if-absent: at most one unresolved alert per (device, type) pair.
package alerts

import (
	"context"
	"fmt"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// Thresholds for the alerting rules.
const (
	batteryCriticalBelow  = 10
	batteryLowBelow       = 20
	storageLowBelowGiB    = 1
	signalWeakBelowDBm    = -90
	failedLoginsTolerated = 3
)

// Creator raises an alert unless an unresolved alert of the same type is
// already open for the device. Implemented by database.Tx so evaluation
// participates in the ingest transaction.
type Creator interface {
	CreateAlertIfAbsent(ctx context.Context, deviceID, alertType, severity, message string, location *string) (*models.Alert, error)
}

// Store is the alert persistence surface outside the ingest transaction.
type Store interface {
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	ResolveAlert(ctx context.Context, id int64) (models.Alert, error)
}

// Engine owns the alerting rules.
type Engine struct {
	store Store
}

// New creates an alert engine backed by the given store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// rule is one firing condition derived from a heartbeat.
type rule struct {
	alertType string
	severity  string
	message   string
	fires     bool
}

// evaluateRules derives the firing conditions from a heartbeat. Battery
// critical suppresses battery low so a dying terminal raises one alert, not
// two.
func evaluateRules(req *models.HeartbeatRequest) []rule {
	battery := *req.BatteryLevel
	charging := *req.BatteryCharging
	storageGiB := *req.StorageAvailable / (1 << 30)

	rules := []rule{
		{
			alertType: models.AlertBatteryCritical,
			severity:  models.SeverityCritical,
			message:   fmt.Sprintf("Critical battery level (%d%%) - imminent shutdown possible", battery),
			fires:     battery < batteryCriticalBelow && !charging,
		},
		{
			alertType: models.AlertBatteryLow,
			severity:  models.SeverityWarning,
			message:   fmt.Sprintf("Low battery (%d%%)", battery),
			fires:     battery >= batteryCriticalBelow && battery < batteryLowBelow && !charging,
		},
		{
			alertType: models.AlertStorageLow,
			severity:  models.SeverityWarning,
			message:   fmt.Sprintf("Low storage space (%dGB free)", storageGiB),
			fires:     storageGiB < storageLowBelowGiB,
		},
		{
			alertType: models.AlertUnauthorizedAccess,
			severity:  models.SeverityCritical,
			message:   fmt.Sprintf("Detected %d failed login attempts", req.FailedLoginAttempts),
			fires:     req.FailedLoginAttempts > failedLoginsTolerated,
		},
	}

	if req.SignalStrength != nil {
		rules = append(rules, rule{
			alertType: models.AlertNetworkIssues,
			severity:  models.SeverityWarning,
			message:   fmt.Sprintf("Weak signal detected (%d dBm)", *req.SignalStrength),
			fires:     *req.SignalStrength < signalWeakBelowDBm,
		})
	}

	return rules
}

// Evaluate checks a heartbeat against all rules and raises the alerts that
// fire, deduplicated against open alerts. Returns the alerts actually
// created so the caller can broadcast them after commit.
func (e *Engine) Evaluate(ctx context.Context, c Creator, req *models.HeartbeatRequest, location *string) ([]models.Alert, error) {
	var created []models.Alert
	for _, r := range evaluateRules(req) {
		if !r.fires {
			continue
		}
		alert, err := c.CreateAlertIfAbsent(ctx, req.DeviceID, r.alertType, r.severity, r.message, location)
		if err != nil {
			return nil, fmt.Errorf("failed to raise %s alert: %w", r.alertType, err)
		}
		if alert != nil {
			created = append(created, *alert)
		}
	}
	return created, nil
}

// List returns alerts matching the filter, newest first.
func (e *Engine) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	return e.store.ListAlerts(ctx, filter)
}

// ListActive returns all unresolved alerts, newest first.
func (e *Engine) ListActive(ctx context.Context) ([]models.Alert, error) {
	resolved := false
	return e.store.ListAlerts(ctx, models.AlertFilter{Resolved: &resolved})
}

// Resolve marks an alert resolved. Resolution is one-way: unknown or
// already-resolved alerts surface database.ErrNotFound.
func (e *Engine) Resolve(ctx context.Context, id int64) (models.Alert, error) {
	return e.store.ResolveAlert(ctx, id)
}
