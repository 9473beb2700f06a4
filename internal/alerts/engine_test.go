// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package alerts

import (
	"context"
	"strings"
	"testing"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// recordingCreator records raised alerts and simulates dedup per
// (device, type) pair.
type recordingCreator struct {
	raised []models.Alert
	open   map[string]bool
	nextID int64
}

func newRecordingCreator() *recordingCreator {
	return &recordingCreator{open: map[string]bool{}}
}

func (r *recordingCreator) CreateAlertIfAbsent(_ context.Context, deviceID, alertType, severity, message string, location *string) (*models.Alert, error) {
	key := deviceID + "/" + alertType
	if r.open[key] {
		return nil, nil
	}
	r.open[key] = true
	r.nextID++
	alert := models.Alert{
		ID:        r.nextID,
		DeviceID:  deviceID,
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		Location:  location,
	}
	r.raised = append(r.raised, alert)
	return &alert, nil
}

func heartbeatRequest(battery int, charging bool, storage int64, signal *int, failedLogins int) *models.HeartbeatRequest {
	return &models.HeartbeatRequest{
		DeviceID:            "device00000000a1",
		Timestamp:           1767100000000,
		BatteryLevel:        &battery,
		BatteryCharging:     &charging,
		NetworkType:         "WIFI",
		SignalStrength:      signal,
		StorageAvailable:    &storage,
		AppVersion:          "2.1.0",
		AndroidVersion:      "13",
		Model:               "PAX A920",
		FailedLoginAttempts: failedLogins,
	}
}

func intPtr(v int) *int { return &v }

func TestEvaluateRules(t *testing.T) {
	t.Parallel()

	healthyStorage := int64(8 << 30)

	tests := []struct {
		name      string
		req       *models.HeartbeatRequest
		wantTypes []string
	}{
		{
			name:      "healthy heartbeat raises nothing",
			req:       heartbeatRequest(85, false, healthyStorage, intPtr(-60), 0),
			wantTypes: nil,
		},
		{
			name:      "battery low",
			req:       heartbeatRequest(15, false, healthyStorage, nil, 0),
			wantTypes: []string{models.AlertBatteryLow},
		},
		{
			name:      "battery critical suppresses battery low",
			req:       heartbeatRequest(5, false, healthyStorage, nil, 0),
			wantTypes: []string{models.AlertBatteryCritical},
		},
		{
			name:      "charging suppresses battery alerts",
			req:       heartbeatRequest(5, true, healthyStorage, nil, 0),
			wantTypes: nil,
		},
		{
			name:      "battery at threshold does not fire",
			req:       heartbeatRequest(20, false, healthyStorage, nil, 0),
			wantTypes: nil,
		},
		{
			name:      "storage low",
			req:       heartbeatRequest(85, false, 512<<20, nil, 0),
			wantTypes: []string{models.AlertStorageLow},
		},
		{
			name:      "storage at exactly one gigabyte does not fire",
			req:       heartbeatRequest(85, false, 1<<30, nil, 0),
			wantTypes: nil,
		},
		{
			name:      "weak signal",
			req:       heartbeatRequest(85, false, healthyStorage, intPtr(-95), 0),
			wantTypes: []string{models.AlertNetworkIssues},
		},
		{
			name:      "signal at threshold does not fire",
			req:       heartbeatRequest(85, false, healthyStorage, intPtr(-90), 0),
			wantTypes: nil,
		},
		{
			name:      "missing signal is not a network issue",
			req:       heartbeatRequest(85, false, healthyStorage, nil, 0),
			wantTypes: nil,
		},
		{
			name:      "failed logins above tolerance",
			req:       heartbeatRequest(85, false, healthyStorage, nil, 4),
			wantTypes: []string{models.AlertUnauthorizedAccess},
		},
		{
			name:      "failed logins at tolerance do not fire",
			req:       heartbeatRequest(85, false, healthyStorage, nil, 3),
			wantTypes: nil,
		},
		{
			name: "multiple conditions fire together",
			req:  heartbeatRequest(5, false, 100<<20, intPtr(-100), 10),
			wantTypes: []string{
				models.AlertBatteryCritical,
				models.AlertStorageLow,
				models.AlertUnauthorizedAccess,
				models.AlertNetworkIssues,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			creator := newRecordingCreator()
			created, err := New(nil).Evaluate(context.Background(), creator, tt.req, nil)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			var gotTypes []string
			for _, a := range created {
				gotTypes = append(gotTypes, a.AlertType)
			}
			if len(gotTypes) != len(tt.wantTypes) {
				t.Fatalf("expected alerts %v, got %v", tt.wantTypes, gotTypes)
			}
			for i, want := range tt.wantTypes {
				if gotTypes[i] != want {
					t.Errorf("alert %d: expected %s, got %s", i, want, gotTypes[i])
				}
			}
		})
	}
}

func TestEvaluateMessagesCarryMeasuredValues(t *testing.T) {
	t.Parallel()

	creator := newRecordingCreator()
	req := heartbeatRequest(7, false, 100<<20, intPtr(-101), 6)
	created, err := New(nil).Evaluate(context.Background(), creator, req, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	byType := map[string]models.Alert{}
	for _, a := range created {
		byType[a.AlertType] = a
	}

	if msg := byType[models.AlertBatteryCritical].Message; !strings.Contains(msg, "7%") {
		t.Errorf("expected battery level in message, got %q", msg)
	}
	if msg := byType[models.AlertStorageLow].Message; !strings.Contains(msg, "0GB") {
		t.Errorf("expected free space in message, got %q", msg)
	}
	if msg := byType[models.AlertNetworkIssues].Message; !strings.Contains(msg, "-101 dBm") {
		t.Errorf("expected signal strength in message, got %q", msg)
	}
	if msg := byType[models.AlertUnauthorizedAccess].Message; !strings.Contains(msg, "6 failed") {
		t.Errorf("expected attempt count in message, got %q", msg)
	}
}

func TestEvaluateDedupAcrossHeartbeats(t *testing.T) {
	t.Parallel()

	creator := newRecordingCreator()
	engine := New(nil)
	req := heartbeatRequest(15, false, 8<<30, nil, 0)

	first, err := engine.Evaluate(context.Background(), creator, req, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one alert on first heartbeat, got %d", len(first))
	}

	second, err := engine.Evaluate(context.Background(), creator, req, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("expected no new alerts while one is open, got %d", len(second))
	}
}

func TestEvaluatePropagatesLocation(t *testing.T) {
	t.Parallel()

	creator := newRecordingCreator()
	loc := "Store 42"
	req := heartbeatRequest(15, false, 8<<30, nil, 0)

	created, err := New(nil).Evaluate(context.Background(), creator, req, &loc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected one alert, got %d", len(created))
	}
	if created[0].Location == nil || *created[0].Location != "Store 42" {
		t.Errorf("expected location propagated, got %v", created[0].Location)
	}
}
