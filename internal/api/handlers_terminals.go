// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// ListTerminals returns every terminal, optionally filtered by status.
//
//	GET /api/terminals?status=online
func (h *Handler) ListTerminals(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var status *string
	if s := r.URL.Query().Get("status"); s != "" {
		if s != models.StatusOnline && s != models.StatusOffline {
			rw.BadRequest("status must be online or offline")
			return
		}
		status = &s
	}

	terminals, err := h.fleet.ListTerminals(r.Context(), status)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(terminals)
}

// GetTerminal returns one terminal. The path parameter accepts either the
// terminal code or the raw device identifier.
//
//	GET /api/terminals/{id}
func (h *Handler) GetTerminal(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if id == "" {
		rw.BadRequest("terminal id is required")
		return
	}

	terminal, err := h.fleet.GetTerminal(r.Context(), id)
	if err != nil {
		respondFetchError(rw, err, "terminal not found")
		return
	}

	rw.Success(terminal)
}

// UpdateTerminal updates mutable terminal metadata (currently location).
//
//	PUT /api/terminals/{id}
func (h *Handler) UpdateTerminal(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if id == "" {
		rw.BadRequest("terminal id is required")
		return
	}

	var req models.UpdateTerminalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}

	terminal, err := h.fleet.UpdateLocation(r.Context(), id, req.Location)
	if err != nil {
		respondFetchError(rw, err, "terminal not found")
		return
	}

	rw.Success(terminal)
}
