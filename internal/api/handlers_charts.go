// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package api

import "net/http"

// FleetStats returns the point-in-time fleet snapshot.
//
//	GET /api/stats
func (h *Handler) FleetStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.fleet.FleetStats(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(stats)
}

// UptimeChart returns the 24h fleet uptime series, one point per hour,
// oldest first.
//
//	GET /api/charts/uptime
func (h *Handler) UptimeChart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	series, err := h.fleet.UptimeSeries(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(series)
}

// TransactionChart returns transaction volume for the last nine clock
// hours, oldest first.
//
//	GET /api/charts/transactions
func (h *Handler) TransactionChart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	series, err := h.fleet.TransactionSeries(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(series)
}

// VersionChart returns each app version's share of the fleet, largest
// group first.
//
//	GET /api/charts/versions
func (h *Handler) VersionChart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	versions, err := h.fleet.VersionDistribution(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(versions)
}
