// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package metrics provides Prometheus instrumentation for the heartbeat
// ingest path, the alert engine, the reconciliation sweeps and the
// WebSocket fan-out.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	HeartbeatsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_heartbeats_ingested_total",
			Help: "Total number of heartbeats successfully ingested",
		},
	)

	HeartbeatIngestErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_heartbeat_ingest_errors_total",
			Help: "Total number of heartbeat ingests that failed",
		},
	)

	HeartbeatIngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_heartbeat_ingest_duration_seconds",
			Help:    "Duration of the atomic heartbeat ingest transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Alert metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_created_total",
			Help: "Total number of alerts raised, by type and severity",
		},
		[]string{"alert_type", "severity"},
	)

	AlertsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_resolved_total",
			Help: "Total number of alerts resolved",
		},
	)

	// Sweep metrics
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_sweep_runs_total",
			Help: "Total number of reconciliation sweep ticks, by job and outcome",
		},
		[]string{"job", "outcome"}, // job: offline, uptime; outcome: success, error
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_sweep_duration_seconds",
			Help:    "Duration of reconciliation sweep ticks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	TerminalsMarkedOffline = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_terminals_marked_offline_total",
			Help: "Total number of terminals transitioned to offline by the sweep",
		},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetwatch_websocket_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages queued to clients, by type",
		},
		[]string{"type"},
	)

	WebSocketMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_websocket_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped, by reason",
		},
		[]string{"reason"}, // slow_client, channel_full
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_api_requests_total",
			Help: "Total number of API requests, by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(endpoint, method string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// ObserveDBQuery records one database operation's duration. Use with defer:
//
//	defer metrics.ObserveDBQuery("list_terminals", time.Now())
func ObserveDBQuery(operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordSweep records one sweep tick.
func RecordSweep(job string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	SweepRuns.WithLabelValues(job, outcome).Inc()
	SweepDuration.WithLabelValues(job).Observe(duration.Seconds())
}
