// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetwatch/fleetwatch/internal/middleware"
)

// Endpoint-specific rate limits. The heartbeat path carries the whole
// fleet's telemetry and gets a higher ceiling than interactive reads;
// health checks stay permissive for monitoring tools.
var (
	rateLimitIngest = rateLimitSpec{Requests: 600, Window: time.Minute}
	rateLimitHealth = rateLimitSpec{Requests: 1000, Window: time.Minute}
)

type rateLimitSpec struct {
	Requests int
	Window   time.Duration
}

// NewRouter builds the chi router with the full middleware stack and all
// Fleetwatch routes.
//
// The WebSocket upgrade and /metrics skip the Prometheus and gzip
// wrappers: neither implements http.Hijacker, and scrapes should not
// count against the API rate limit.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.corsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		// REST endpoints get metrics and compression; the WebSocket upgrade
		// below stays outside this group.
		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics())
			r.Use(middleware.Gzip())

			r.With(h.rateLimit(rateLimitIngest)).Post("/heartbeat", h.Heartbeat)

			r.Group(func(r chi.Router) {
				r.Use(h.defaultRateLimit())

				r.Route("/terminals", func(r chi.Router) {
					r.Get("/", h.ListTerminals)
					r.Get("/{id}", h.GetTerminal)
					r.Put("/{id}", h.UpdateTerminal)
				})

				r.Route("/alerts", func(r chi.Router) {
					r.Get("/", h.ListAlerts)
					r.Get("/active", h.ListActiveAlerts)
					r.Post("/{id}/resolve", h.ResolveAlert)
				})

				r.Get("/stats", h.FleetStats)

				r.Route("/charts", func(r chi.Router) {
					r.Get("/uptime", h.UptimeChart)
					r.Get("/transactions", h.TransactionChart)
					r.Get("/versions", h.VersionChart)
				})
			})

			r.Route("/health", func(r chi.Router) {
				r.Use(h.rateLimit(rateLimitHealth))
				r.Get("/", h.Health)
				r.Get("/live", h.HealthLive)
				r.Get("/ready", h.HealthReady)
			})
		})

		r.Get("/ws", h.WebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// corsHandler builds the CORS middleware from the configured origin
// allowlist. An empty list denies cross-origin requests by default.
func (h *Handler) corsHandler() func(http.Handler) http.Handler {
	var origins []string
	if h.config != nil {
		origins = h.config.Security.CORSOrigins
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

// defaultRateLimit applies the configured per-IP API rate limit.
func (h *Handler) defaultRateLimit() func(http.Handler) http.Handler {
	spec := rateLimitSpec{Requests: 100, Window: time.Minute}
	if h.config != nil && h.config.Security.RateLimitReqs > 0 {
		spec.Requests = h.config.Security.RateLimitReqs
		spec.Window = h.config.Security.RateLimitWindow
	}
	return h.rateLimit(spec)
}

// rateLimit builds a per-IP limiter that answers over-limit requests with
// the standard error envelope. Returns a no-op when limiting is disabled.
func (h *Handler) rateLimit(spec rateLimitSpec) func(http.Handler) http.Handler {
	if h.config != nil && h.config.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		spec.Requests,
		spec.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).TooManyRequests("rate limit exceeded")
		}),
	)
}
