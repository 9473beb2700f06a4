// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

//nolint:gochecknoinits // silence logs for the whole package test run
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// testDBSemaphore serializes DuckDB usage across tests. Concurrent CGO
// calls from parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory test database. The semaphore is held
// for the entire test lifecycle and released via t.Cleanup, so only one test
// has an active DuckDB connection at a time.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return db
}

// ingestTestHeartbeat runs the terminal upsert + heartbeat insert in one
// transaction, mirroring the ingest path.
func ingestTestHeartbeat(t *testing.T, db *DB, hb *models.Heartbeat, location *string) {
	t.Helper()

	terminalID := "POS-" + hb.DeviceID[:8]
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		if err := tx.UpsertTerminalFromHeartbeat(context.Background(), terminalID, hb, location, time.Now()); err != nil {
			return err
		}
		return tx.InsertHeartbeat(context.Background(), hb)
	})
	if err != nil {
		t.Fatalf("Failed to ingest test heartbeat: %v", err)
	}
}

// testHeartbeat builds a plausible heartbeat for the given device.
func testHeartbeat(deviceID string, ts time.Time) *models.Heartbeat {
	return &models.Heartbeat{
		DeviceID:          deviceID,
		Timestamp:         ts,
		BatteryLevel:      85,
		BatteryCharging:   false,
		NetworkType:       "WIFI",
		StorageAvailable:  8 << 30,
		AppVersion:        "2.1.0",
		AndroidVersion:    "13",
		Model:             "PAX A920",
		TransactionsCount: 3,
		CreatedAt:         time.Now().UTC(),
	}
}

func TestNewAndPing(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestQueryDurationObserved(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.ListTerminals(context.Background(), nil); err != nil {
		t.Fatalf("ListTerminals failed: %v", err)
	}

	if n := testutil.CollectAndCount(metrics.DBQueryDuration); n == 0 {
		t.Error("expected query duration histogram to have observations")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	hb := testHeartbeat("abcdef1234567890", time.Now())
	wantErr := context.Canceled
	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertTerminalFromHeartbeat(ctx, "POS-abcdef12", hb, nil, time.Now()); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("expected error from WithTx")
	}

	if _, err := db.GetTerminalByDeviceID(ctx, hb.DeviceID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after rollback, got %v", err)
	}
}
