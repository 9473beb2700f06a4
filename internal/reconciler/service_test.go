// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package reconciler

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/alerts"
	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/uptime"
)

//nolint:gochecknoinits // silence logs for the whole package test run
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// testDBSemaphore serializes DuckDB usage across tests. Concurrent CGO
// calls from parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// fakeBroadcaster records broadcast events in order.
type fakeBroadcaster struct {
	terminalUpdates []models.Terminal
	newAlerts       []models.Alert
	resolvedAlerts  []models.Alert
}

func (f *fakeBroadcaster) BroadcastTerminalUpdate(t *models.Terminal) {
	f.terminalUpdates = append(f.terminalUpdates, *t)
}

func (f *fakeBroadcaster) BroadcastNewAlert(a *models.Alert) {
	f.newAlerts = append(f.newAlerts, *a)
}

func (f *fakeBroadcaster) BroadcastAlertResolved(a *models.Alert) {
	f.resolvedAlerts = append(f.resolvedAlerts, *a)
}

func newTestService(t *testing.T) (*Service, *fakeBroadcaster, *database.DB) {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}
	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	broadcaster := &fakeBroadcaster{}
	svc := New(db, alerts.New(db), uptime.New(db), broadcaster)
	return svc, broadcaster, db
}

// healthyRequest builds a heartbeat request that raises no alerts.
func healthyRequest(deviceID string) *models.HeartbeatRequest {
	battery := 85
	charging := false
	storage := int64(8 << 30)
	return &models.HeartbeatRequest{
		DeviceID:          deviceID,
		Timestamp:         time.Now().UnixMilli(),
		BatteryLevel:      &battery,
		BatteryCharging:   &charging,
		NetworkType:       "WIFI",
		StorageAvailable:  &storage,
		AppVersion:        "2.1.0",
		AndroidVersion:    "13",
		Model:             "PAX A920",
		TransactionsCount: 3,
	}
}

func TestIngestHeartbeatCreatesTerminal(t *testing.T) {
	svc, broadcaster, _ := newTestService(t)
	ctx := context.Background()

	req := healthyRequest("abcdef1234567890")
	loc := "Store 42"
	req.Location = &loc

	terminal, err := svc.IngestHeartbeat(ctx, req)
	if err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}

	if terminal.ID != "POS-abcdef12" {
		t.Errorf("expected terminal code POS-abcdef12, got %s", terminal.ID)
	}
	if terminal.Status != models.StatusOnline {
		t.Errorf("expected online status, got %s", terminal.Status)
	}
	if terminal.TotalTransactions != 3 {
		t.Errorf("expected 3 transactions, got %d", terminal.TotalTransactions)
	}
	if terminal.Location == nil || *terminal.Location != "Store 42" {
		t.Errorf("expected location Store 42, got %v", terminal.Location)
	}
	if terminal.LastSeen == nil {
		t.Error("expected last seen to be set")
	}

	if len(broadcaster.terminalUpdates) != 1 {
		t.Fatalf("expected one terminal update broadcast, got %d", len(broadcaster.terminalUpdates))
	}
	if broadcaster.terminalUpdates[0].DeviceID != req.DeviceID {
		t.Errorf("broadcast carried wrong terminal: %s", broadcaster.terminalUpdates[0].DeviceID)
	}
}

func TestIngestHeartbeatShortDeviceID(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := healthyRequest("abc")
	terminal, err := svc.IngestHeartbeat(context.Background(), req)
	if err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}
	if terminal.ID != "POS-abc" {
		t.Errorf("expected terminal code POS-abc, got %s", terminal.ID)
	}
}

func TestIngestHeartbeatSharedDevicePrefix(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Two devices sharing the first 8 characters must both materialize,
	// each under its own terminal code.
	first, err := svc.IngestHeartbeat(ctx, healthyRequest("device00000000a1"))
	if err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}
	second, err := svc.IngestHeartbeat(ctx, healthyRequest("device00000000b2"))
	if err != nil {
		t.Fatalf("second IngestHeartbeat failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct terminal codes, both got %s", first.ID)
	}

	terminals, err := svc.ListTerminals(ctx, nil)
	if err != nil {
		t.Fatalf("ListTerminals failed: %v", err)
	}
	if len(terminals) != 2 {
		t.Errorf("expected one terminal per device, got %d", len(terminals))
	}
}

func TestIngestHeartbeatBroadcastsNewAlertsOnce(t *testing.T) {
	svc, broadcaster, _ := newTestService(t)
	ctx := context.Background()

	req := healthyRequest("abcdef1234567890")
	lowBattery := 15
	req.BatteryLevel = &lowBattery

	if _, err := svc.IngestHeartbeat(ctx, req); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}
	if len(broadcaster.newAlerts) != 1 {
		t.Fatalf("expected one alert broadcast, got %d", len(broadcaster.newAlerts))
	}
	if broadcaster.newAlerts[0].AlertType != models.AlertBatteryLow {
		t.Errorf("expected %s, got %s", models.AlertBatteryLow, broadcaster.newAlerts[0].AlertType)
	}

	// Same condition again: the open alert suppresses a duplicate.
	if _, err := svc.IngestHeartbeat(ctx, req); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}
	if len(broadcaster.newAlerts) != 1 {
		t.Errorf("expected no duplicate alert broadcast, got %d", len(broadcaster.newAlerts))
	}
}

func TestGetTerminalByCodeOrDeviceID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.IngestHeartbeat(ctx, healthyRequest("abcdef1234567890")); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}

	byCode, err := svc.GetTerminal(ctx, "POS-abcdef12")
	if err != nil {
		t.Fatalf("GetTerminal by code failed: %v", err)
	}
	byDevice, err := svc.GetTerminal(ctx, "abcdef1234567890")
	if err != nil {
		t.Fatalf("GetTerminal by device id failed: %v", err)
	}
	if byCode.ID != byDevice.ID {
		t.Errorf("lookups disagree: %s vs %s", byCode.ID, byDevice.ID)
	}

	if _, err := svc.GetTerminal(ctx, "no-such-terminal"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateLocationBroadcasts(t *testing.T) {
	svc, broadcaster, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.IngestHeartbeat(ctx, healthyRequest("abcdef1234567890")); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}
	updates := len(broadcaster.terminalUpdates)

	loc := "Warehouse 7"
	terminal, err := svc.UpdateLocation(ctx, "POS-abcdef12", &loc)
	if err != nil {
		t.Fatalf("UpdateLocation failed: %v", err)
	}
	if terminal.Location == nil || *terminal.Location != "Warehouse 7" {
		t.Errorf("expected location Warehouse 7, got %v", terminal.Location)
	}
	if len(broadcaster.terminalUpdates) != updates+1 {
		t.Errorf("expected a terminal update broadcast after location change")
	}

	if _, err := svc.UpdateLocation(ctx, "POS-missing1", &loc); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFleetStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first := healthyRequest("abcdef1234567890")
	if _, err := svc.IngestHeartbeat(ctx, first); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}
	second := healthyRequest("fedcba0987654321")
	lowBattery := 15
	second.BatteryLevel = &lowBattery
	second.TransactionsCount = 7
	if _, err := svc.IngestHeartbeat(ctx, second); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}

	stats, err := svc.FleetStats(ctx)
	if err != nil {
		t.Fatalf("FleetStats failed: %v", err)
	}

	if stats.TotalTerminals != 2 {
		t.Errorf("expected 2 terminals, got %d", stats.TotalTerminals)
	}
	if stats.Online != 2 || stats.Offline != 0 {
		t.Errorf("expected 2 online / 0 offline, got %d/%d", stats.Online, stats.Offline)
	}
	if stats.ActiveAlerts != 1 {
		t.Errorf("expected 1 active alert, got %d", stats.ActiveAlerts)
	}
	if stats.TotalTransactionsToday != 10 {
		t.Errorf("expected 10 transactions, got %d", stats.TotalTransactionsToday)
	}
	// Both terminals registered seconds ago: too young for the last-hour
	// estimate, which therefore reads 0.
	if stats.UptimeLastHour != 0 {
		t.Errorf("expected 0 last-hour uptime for a newborn fleet, got %f", stats.UptimeLastHour)
	}
}

func TestTransactionSeries(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req := healthyRequest("abcdef1234567890")
	req.TransactionsCount = 5
	if _, err := svc.IngestHeartbeat(ctx, req); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}

	series, err := svc.TransactionSeries(ctx)
	if err != nil {
		t.Fatalf("TransactionSeries failed: %v", err)
	}
	if len(series) != transactionChartHours {
		t.Fatalf("expected %d points, got %d", transactionChartHours, len(series))
	}

	total := 0
	for _, p := range series {
		total += p.Count
	}
	if total != 5 {
		t.Errorf("expected 5 transactions across the chart, got %d", total)
	}
}

func TestVersionDistribution(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	empty, err := svc.VersionDistribution(ctx)
	if err != nil {
		t.Fatalf("VersionDistribution failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty distribution for empty fleet, got %d", len(empty))
	}

	for _, deviceID := range []string{"abcdef1234567890", "fedcba0987654321"} {
		if _, err := svc.IngestHeartbeat(ctx, healthyRequest(deviceID)); err != nil {
			t.Fatalf("IngestHeartbeat failed: %v", err)
		}
	}
	old := healthyRequest("0123456789abcdef")
	old.AppVersion = "1.0.0"
	if _, err := svc.IngestHeartbeat(ctx, old); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}

	versions, err := svc.VersionDistribution(ctx)
	if err != nil {
		t.Fatalf("VersionDistribution failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 version groups, got %d", len(versions))
	}
	if versions[0].Version != "2.1.0" || versions[0].Count != 2 {
		t.Errorf("expected 2.1.0 with 2 terminals first, got %s/%d", versions[0].Version, versions[0].Count)
	}
	if want := 100.0 * 2 / 3; math.Abs(versions[0].Percentage-want) > 1e-9 {
		t.Errorf("expected %f%%, got %f%%", want, versions[0].Percentage)
	}
	if !versions[1].IsDeprecated {
		t.Error("expected 1.0.0 to be flagged deprecated")
	}
}

func TestSweepOffline(t *testing.T) {
	svc, broadcaster, db := newTestService(t)
	ctx := context.Background()

	if _, err := svc.IngestHeartbeat(ctx, healthyRequest("abcdef1234567890")); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}
	updates := len(broadcaster.terminalUpdates)

	// Age the heartbeat past the threshold.
	_, err := db.Conn().ExecContext(ctx,
		"UPDATE terminals SET last_seen = ? WHERE device_id = ?",
		time.Now().UTC().Add(-20*time.Minute), "abcdef1234567890")
	if err != nil {
		t.Fatalf("failed to age terminal: %v", err)
	}

	transitioned, err := svc.SweepOffline(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("SweepOffline failed: %v", err)
	}
	if transitioned != 1 {
		t.Fatalf("expected 1 transitioned terminal, got %d", transitioned)
	}
	if len(broadcaster.terminalUpdates) != updates+1 {
		t.Errorf("expected a broadcast for the offline transition")
	}
	if got := broadcaster.terminalUpdates[updates].Status; got != models.StatusOffline {
		t.Errorf("expected offline broadcast, got %s", got)
	}

	terminal, err := svc.GetTerminal(ctx, "abcdef1234567890")
	if err != nil {
		t.Fatalf("GetTerminal failed: %v", err)
	}
	if terminal.Status != models.StatusOffline {
		t.Errorf("expected terminal offline, got %s", terminal.Status)
	}

	// A second sweep finds nothing to transition.
	transitioned, err = svc.SweepOffline(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("SweepOffline failed: %v", err)
	}
	if transitioned != 0 {
		t.Errorf("expected no transitions on repeat sweep, got %d", transitioned)
	}
}

func TestResolveAlert(t *testing.T) {
	svc, broadcaster, _ := newTestService(t)
	ctx := context.Background()

	req := healthyRequest("abcdef1234567890")
	lowBattery := 15
	req.BatteryLevel = &lowBattery
	if _, err := svc.IngestHeartbeat(ctx, req); err != nil {
		t.Fatalf("IngestHeartbeat failed: %v", err)
	}

	active, err := svc.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one active alert, got %d", len(active))
	}

	resolved, err := svc.ResolveAlert(ctx, active[0].ID)
	if err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedAt == nil {
		t.Error("expected alert marked resolved with timestamp")
	}
	if len(broadcaster.resolvedAlerts) != 1 {
		t.Errorf("expected a resolved broadcast, got %d", len(broadcaster.resolvedAlerts))
	}

	// Resolution is one-way.
	if _, err := svc.ResolveAlert(ctx, active[0].ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second resolve, got %v", err)
	}

	remaining, err := svc.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no active alerts, got %d", len(remaining))
	}
}
