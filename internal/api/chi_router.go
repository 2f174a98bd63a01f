// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ephemera/internal/auth"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/middleware"
)

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	config        *config.Config
}

// NewRouter creates a Router. A nil chiMw uses the security section of cfg.
func NewRouter(handler *Handler, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&handler.config.Security))
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
		config:        handler.config,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	// ========================
	// Health and Metrics
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(auth.SecurityHeaders)
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Authentication
	// ========================
	if router.config.Security.DevTokenIssuer && !router.config.IsProduction() {
		logging.Warn().Msg("Development token issuer enabled at POST /api/v1/auth/token")
		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitAuth())
			r.Use(auth.SecurityHeaders)
			r.Post("/token", h.IssueToken)
		})
	}

	// ========================
	// Image Messages
	// ========================
	r.Route("/messages", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(auth.SecurityHeaders)
		r.Use(h.auth.Authenticate)

		r.With(router.chiMiddleware.RateLimitSend()).Post("/send-image", h.SendImage)
		r.Route("/image", func(r chi.Router) {
			r.Get("/stats", h.ImageStats) // before /{id} so "stats" is not an id
			r.Get("/{id}", h.GetImage)
			r.Get("/{id}/thumbnail", h.GetThumbnail)
			r.Post("/{id}/viewed", h.MarkImageViewed)
		})
	})

	// ========================
	// Push Registration
	// ========================
	r.Route("/api/v1/push-token", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(auth.SecurityHeaders)
		r.Use(h.auth.Authenticate)
		r.Post("/", h.RegisterPushToken)
		r.Delete("/", h.UnregisterPushToken)
	})

	// ========================
	// WebSocket
	// ========================
	// The handler authenticates the handshake itself so a rejected upgrade still gets
	// the JSON envelope.
	r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", h.WebSocket)

	return r
}
