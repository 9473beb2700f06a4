// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package models

// HeartbeatRequest is the payload terminals POST on every sampling cycle.
// Pointer fields distinguish "absent" from a legitimate zero value
// (battery at 0%, charging false, empty storage).
type HeartbeatRequest struct {
	DeviceID            string  `json:"deviceId" validate:"required"`
	Timestamp           int64   `json:"timestamp" validate:"required"`
	BatteryLevel        *int    `json:"batteryLevel" validate:"required,min=0,max=100"`
	BatteryCharging     *bool   `json:"batteryCharging" validate:"required"`
	NetworkType         string  `json:"networkType" validate:"required"`
	SignalStrength      *int    `json:"signalStrength"`
	StorageAvailable    *int64  `json:"storageAvailable" validate:"required,min=0"`
	AppVersion          string  `json:"appVersion" validate:"required"`
	AndroidVersion      string  `json:"androidVersion" validate:"required"`
	Model               string  `json:"model" validate:"required"`
	TransactionsCount   int     `json:"transactionsCount" validate:"min=0"`
	FailedLoginAttempts int     `json:"failedLoginAttempts" validate:"min=0"`
	Location            *string `json:"location"`
}

// UpdateTerminalRequest updates mutable terminal metadata.
type UpdateTerminalRequest struct {
	Location *string `json:"location"`
}

// AlertFilter narrows alert listings. All set fields must match
// (conjunctive).
type AlertFilter struct {
	Severity *string
	Resolved *bool
	DeviceID *string
}
