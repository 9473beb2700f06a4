// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package middleware

import (
	"net/http"

	"github.com/fleetwatch/fleetwatch/internal/logging"
)

// RequestID returns a middleware that assigns each request a unique ID.
// An incoming X-Request-ID header (from an upstream proxy) is honored;
// otherwise a new UUID is generated. The ID is echoed in the response
// header and stored in the request context so handlers and the logging
// package can correlate entries.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
