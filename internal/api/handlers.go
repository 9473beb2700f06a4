// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/reconciler"
	"github.com/fleetwatch/fleetwatch/internal/validation"
	ws "github.com/fleetwatch/fleetwatch/internal/websocket"
)

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	fleet     *reconciler.Service
	db        *database.DB
	hub       *ws.Hub
	config    *config.Config
	startTime time.Time
}

// NewHandler creates a new API handler.
func NewHandler(fleet *reconciler.Service, db *database.DB, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		fleet:     fleet,
		db:        db,
		hub:       hub,
		config:    cfg,
		startTime: time.Now(),
	}
}

// Heartbeat ingests one telemetry sample from a terminal. The full ingest
// (terminal upsert, heartbeat record, transaction bucket, alert evaluation)
// is atomic; the refreshed terminal is returned.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return
	}

	terminal, err := h.fleet.IngestHeartbeat(r.Context(), &req)
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("device_id", req.DeviceID).
			Msg("heartbeat ingest failed")
		rw.DatabaseError(err)
		return
	}

	rw.Success(terminal)
}

// respondFetchError maps service errors to the envelope: missing records
// become 404, everything else is a database failure.
func respondFetchError(rw *ResponseWriter, err error, notFoundMessage string) {
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound(notFoundMessage)
		return
	}
	rw.DatabaseError(err)
}
