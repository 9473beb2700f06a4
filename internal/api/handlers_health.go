// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package api

import (
	"net/http"
	"time"
)

// Health returns the overall service health: degraded when the database is
// unreachable, healthy otherwise.
//
//	GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.GetClientCount()
	}

	rw.Success(map[string]interface{}{
		"status":            status,
		"databaseConnected": dbConnected,
		"websocketClients":  clients,
		"uptime":            time.Since(h.startTime).Seconds(),
	})
}

// HealthLive is the liveness probe: 200 whenever the process is serving,
// regardless of dependencies.
//
//	GET /health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	rw.Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the readiness probe: 200 only when the database answers,
// 503 otherwise so load balancers stop routing traffic here.
//
//	GET /health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.db == nil || h.db.Ping(r.Context()) != nil {
		rw.ServiceUnavailable("database not reachable")
		return
	}

	rw.Success(map[string]interface{}{"ready": true})
}
