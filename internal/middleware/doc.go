// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package middleware provides chi-compatible HTTP middleware for the
// Fleetwatch API: request ID propagation, Prometheus instrumentation and
// response compression.
//
// CORS and rate limiting use the go-chi ecosystem directly (go-chi/cors,
// go-chi/httprate) and are wired in the api package's router.
package middleware
