// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// ListAlerts returns alerts matching the query filters, newest first.
// All present filters must match.
//
//	GET /api/alerts?severity=CRITICAL&resolved=false&deviceId=abc
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, ok := parseAlertFilter(rw, r)
	if !ok {
		return
	}

	alerts, err := h.fleet.ListAlerts(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(alerts)
}

// ListActiveAlerts returns all unresolved alerts, newest first.
//
//	GET /api/alerts/active
func (h *Handler) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	alerts, err := h.fleet.ListActiveAlerts(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(alerts)
}

// ResolveAlert marks an alert resolved. Resolution is one-way: resolving an
// unknown or already-resolved alert returns 404.
//
//	POST /api/alerts/{id}/resolve
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("alert id must be an integer")
		return
	}

	alert, err := h.fleet.ResolveAlert(r.Context(), id)
	if err != nil {
		respondFetchError(rw, err, "alert not found or already resolved")
		return
	}

	rw.Success(alert)
}

// parseAlertFilter extracts the optional alert filters from the query
// string. Returns false after writing a 400 if a filter is malformed.
func parseAlertFilter(rw *ResponseWriter, r *http.Request) (models.AlertFilter, bool) {
	var filter models.AlertFilter

	q := r.URL.Query()
	if severity := q.Get("severity"); severity != "" {
		switch severity {
		case models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
			filter.Severity = &severity
		default:
			rw.BadRequest("severity must be INFO, WARNING or CRITICAL")
			return models.AlertFilter{}, false
		}
	}
	if resolvedStr := q.Get("resolved"); resolvedStr != "" {
		resolved, err := strconv.ParseBool(resolvedStr)
		if err != nil {
			rw.BadRequest("resolved must be a boolean")
			return models.AlertFilter{}, false
		}
		filter.Resolved = &resolved
	}
	if deviceID := q.Get("deviceId"); deviceID != "" {
		filter.DeviceID = &deviceID
	}

	return filter, true
}
