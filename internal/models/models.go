// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package models defines the domain types shared across Fleetwatch:
// terminals, heartbeats, alerts, fleet statistics and chart points.
package models

import "time"

// Terminal status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Alert types.
const (
	AlertBatteryLow         = "BATTERY_LOW"
	AlertBatteryCritical    = "BATTERY_CRITICAL"
	AlertTerminalOffline    = "TERMINAL_OFFLINE"
	AlertStorageLow         = "STORAGE_LOW"
	AlertNetworkIssues      = "NETWORK_ISSUES"
	AlertUnauthorizedAccess = "UNAUTHORIZED_ACCESS"
)

// Alert severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// Terminal is the materialized state of a POS terminal, updated on every
// heartbeat and by the reconciliation sweeps.
type Terminal struct {
	ID                  string     `json:"id"`
	DeviceID            string     `json:"deviceId"`
	Location            *string    `json:"location"`
	Status              string     `json:"status"`
	BatteryLevel        *int       `json:"batteryLevel"`
	BatteryCharging     bool       `json:"batteryCharging"`
	NetworkType         *string    `json:"networkType"`
	SignalStrength      *int       `json:"signalStrength"`
	Model               *string    `json:"model"`
	AndroidVersion      *string    `json:"androidVersion"`
	AppVersion          *string    `json:"appVersion"`
	LastSeen            *time.Time `json:"lastSeen"`
	TotalTransactions   int        `json:"totalTransactions"`
	UptimePercentage24h float64    `json:"uptimePercentage24h"`
	CreatedAt           time.Time  `json:"-"`
}

// Heartbeat is an immutable telemetry sample reported by a terminal.
// Timestamp is the client-reported sampling instant; CreatedAt is when the
// server stored the record.
type Heartbeat struct {
	ID                int64     `json:"id"`
	DeviceID          string    `json:"deviceId"`
	Timestamp         time.Time `json:"timestamp"`
	BatteryLevel      int       `json:"batteryLevel"`
	BatteryCharging   bool      `json:"batteryCharging"`
	NetworkType       string    `json:"networkType"`
	SignalStrength    *int      `json:"signalStrength"`
	StorageAvailable  int64     `json:"storageAvailable"`
	AppVersion        string    `json:"appVersion"`
	AndroidVersion    string    `json:"androidVersion"`
	Model             string    `json:"model"`
	TransactionsCount int       `json:"transactionsCount"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Alert is an operational alert raised against a terminal. Resolution is a
// one-way transition.
type Alert struct {
	ID         int64      `json:"id"`
	DeviceID   string     `json:"deviceId"`
	AlertType  string     `json:"alertType"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Location   *string    `json:"location"`
	Resolved   bool       `json:"resolved"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// FleetStats is a point-in-time aggregate snapshot of the fleet.
type FleetStats struct {
	TotalTerminals         int     `json:"totalTerminals"`
	Online                 int     `json:"online"`
	Offline                int     `json:"offline"`
	ActiveAlerts           int     `json:"activeAlerts"`
	AvgUptimePercentage    float64 `json:"avgUptimePercentage"`
	TotalTransactionsToday int     `json:"totalTransactionsToday"`
	UptimeLastHour         float64 `json:"uptimeLastHour"`
}

// UptimeDataPoint is one hourly bucket of the 24h fleet uptime chart.
type UptimeDataPoint struct {
	Time   string  `json:"time"`
	Uptime float64 `json:"uptime"`
}

// TransactionDataPoint is one hourly bucket of the transaction volume chart.
type TransactionDataPoint struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// VersionDistribution is one app version's share of the fleet.
type VersionDistribution struct {
	Version      string  `json:"version"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
	IsDeprecated bool    `json:"isDeprecated"`
}

// AppVersion is an entry in the version registry used to flag deprecated
// releases in the versions chart.
type AppVersion struct {
	Version      string    `json:"version"`
	IsDeprecated bool      `json:"isDeprecated"`
	ReleasedAt   time.Time `json:"releasedAt"`
}
