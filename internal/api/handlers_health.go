// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/ephemera/internal/store"
)

// healthProbeID is looked up to check the store answers. It is never a valid message id.
const healthProbeID = "__health_probe__"

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status        string  `json:"status"`
	StoreBackend  string  `json:"store_backend"`
	StoreHealthy  bool    `json:"store_healthy"`
	Sessions      int     `json:"sessions"`
	Participants  int     `json:"participants"`
	PendingTimers int     `json:"pending_timers"`
	Uptime        float64 `json:"uptime"`
}

// Health reports store reachability, connected sessions and armed destruction timers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	healthy := h.storeHealthy(r.Context())

	status := HealthStatus{
		Status:       "healthy",
		StoreBackend: h.store.Backend(),
		StoreHealthy: healthy,
		Sessions:     h.hub.GetClientCount(),
		Participants: h.hub.ParticipantCount(),
		Uptime:       time.Since(h.startTime).Seconds(),
	}
	if !healthy {
		status.Status = "degraded"
	}
	if h.scheduler != nil {
		status.PendingTimers = h.scheduler.Pending()
	}

	NewResponseWriter(w, r).Success(status)
}

// HealthLive is the liveness probe. It succeeds while the process serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the readiness probe. It returns 503 while the store is unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.storeHealthy(r.Context()) {
		rw.ServiceUnavailable("Store unavailable")
		return
	}
	rw.Success(map[string]interface{}{
		"ready_to_serve": true,
		"store_backend":  h.store.Backend(),
	})
}

func (h *Handler) storeHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := h.store.Get(ctx, healthProbeID)
	return err == nil || errors.Is(err, store.ErrNotFound)
}
