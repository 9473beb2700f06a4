// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

func createTestAlert(t *testing.T, db *DB, deviceID, alertType, severity string) *models.Alert {
	t.Helper()

	var created *models.Alert
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		created, err = tx.CreateAlertIfAbsent(context.Background(),
			deviceID, alertType, severity, "test alert", nil)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to create test alert: %v", err)
	}
	return created
}

func TestCreateAlertIfAbsentDedup(t *testing.T) {
	db := setupTestDB(t)

	first := createTestAlert(t, db, "device00000000a1", models.AlertBatteryLow, models.SeverityWarning)
	if first == nil {
		t.Fatal("expected first alert to be created")
	}
	if first.ID == 0 {
		t.Error("expected alert to have an assigned ID")
	}
	if first.Resolved {
		t.Error("expected new alert to be unresolved")
	}

	// Same type while unresolved: no new alert.
	second := createTestAlert(t, db, "device00000000a1", models.AlertBatteryLow, models.SeverityWarning)
	if second != nil {
		t.Errorf("expected dedup to suppress second alert, got %+v", second)
	}

	// Different type for the same device fires independently.
	other := createTestAlert(t, db, "device00000000a1", models.AlertStorageLow, models.SeverityWarning)
	if other == nil {
		t.Error("expected different alert type to fire")
	}

	// Same type for a different device fires independently.
	otherDevice := createTestAlert(t, db, "device00000000b2", models.AlertBatteryLow, models.SeverityWarning)
	if otherDevice == nil {
		t.Error("expected same type on another device to fire")
	}
}

func TestResolveAlertOneWay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created := createTestAlert(t, db, "device00000000a1", models.AlertBatteryCritical, models.SeverityCritical)
	if created == nil {
		t.Fatal("expected alert to be created")
	}

	resolved, err := db.ResolveAlert(ctx, created.ID)
	if err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}
	if !resolved.Resolved {
		t.Error("expected alert marked resolved")
	}
	if resolved.ResolvedAt == nil {
		t.Error("expected resolvedAt set")
	}

	// Second resolve reports not found.
	if _, err := db.ResolveAlert(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second resolve, got %v", err)
	}

	// Unknown ID reports not found.
	if _, err := db.ResolveAlert(ctx, 99999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown alert, got %v", err)
	}

	// After resolution the same alert type may fire again.
	again := createTestAlert(t, db, "device00000000a1", models.AlertBatteryCritical, models.SeverityCritical)
	if again == nil {
		t.Error("expected alert type to re-fire after resolution")
	}
}

func TestListAlertsFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a1 := createTestAlert(t, db, "device00000000a1", models.AlertBatteryLow, models.SeverityWarning)
	createTestAlert(t, db, "device00000000a1", models.AlertUnauthorizedAccess, models.SeverityCritical)
	createTestAlert(t, db, "device00000000b2", models.AlertBatteryLow, models.SeverityWarning)

	if _, err := db.ResolveAlert(ctx, a1.ID); err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}

	all, err := db.ListAlerts(ctx, models.AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(all))
	}
	// Newest first.
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Error("expected alerts ordered newest first")
		}
	}

	unresolvedOnly := false
	severity := models.SeverityWarning
	device := "device00000000b2"

	got, err := db.ListAlerts(ctx, models.AlertFilter{Resolved: &unresolvedOnly})
	if err != nil {
		t.Fatalf("ListAlerts(resolved=false) failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 unresolved alerts, got %d", len(got))
	}

	got, err = db.ListAlerts(ctx, models.AlertFilter{
		Severity: &severity,
		Resolved: &unresolvedOnly,
		DeviceID: &device,
	})
	if err != nil {
		t.Fatalf("ListAlerts(conjunctive) failed: %v", err)
	}
	if len(got) != 1 || got[0].DeviceID != device {
		t.Errorf("expected exactly the device b2 warning alert, got %+v", got)
	}
}

func TestCountUnresolvedAlerts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	count, err := db.CountUnresolvedAlerts(ctx)
	if err != nil {
		t.Fatalf("CountUnresolvedAlerts failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 alerts in empty store, got %d", count)
	}

	a := createTestAlert(t, db, "device00000000a1", models.AlertNetworkIssues, models.SeverityWarning)
	createTestAlert(t, db, "device00000000b2", models.AlertNetworkIssues, models.SeverityWarning)

	if _, err := db.ResolveAlert(ctx, a.ID); err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}

	count, err = db.CountUnresolvedAlerts(ctx)
	if err != nil {
		t.Fatalf("CountUnresolvedAlerts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 unresolved alert, got %d", count)
	}
}
