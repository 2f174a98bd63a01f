// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// statsInterval is how often the hub logs its session counts.
const statsInterval = 5 * time.Minute

// Hub is the session registry: participant id to the set of live clients.
// A participant may hold several sessions (devices); every one receives each event.
//
// Registration is synchronous, so an event sent after Register returns reaches the
// new client. Sends never block: a client whose buffer is full is disconnected.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	closed   bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
	}
}

// Register adds c under its participant. It returns false once the hub has shut down.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	set, ok := h.sessions[c.participantID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[c.participantID] = set
	}
	set[c] = struct{}{}
	sessions := len(set)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().
		Str("participant_id", c.participantID).
		Uint64("client_id", c.id).
		Int("participant_sessions", sessions).
		Msg("websocket client connected")
	return true
}

// Unregister removes c and closes its send buffer. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	if removed {
		logging.Info().
			Str("participant_id", c.participantID).
			Uint64("client_id", c.id).
			Msg("websocket client disconnected")
	}
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(c *Client) bool {
	set, ok := h.sessions[c.participantID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.sessions, c.participantID)
	}
	close(c.send)
	metrics.WSConnections.Dec()
	return true
}

// SendTo encodes ev once and delivers it to every session of participantID.
// It returns the number of sessions the event was queued for.
func (h *Hub) SendTo(participantID string, ev Event) int {
	frame, err := Encode(ev)
	if err != nil {
		logging.Error().Err(err).Str("event_type", ev.EventType()).Msg("failed to encode websocket event")
		return 0
	}
	n := h.SendFrame(participantID, frame)
	if n > 0 {
		metrics.WSEventsSent.WithLabelValues(ev.EventType()).Add(float64(n))
	}
	return n
}

// SendFrame delivers an already encoded frame to every session of participantID.
func (h *Hub) SendFrame(participantID string, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.sessions[participantID]
	if len(set) == 0 {
		return 0
	}

	// Deterministic fan-out order by client ID.
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	delivered := 0
	for _, c := range clients {
		select {
		case c.send <- frame:
			delivered++
		default:
			metrics.WSEventsDropped.Inc()
			logging.Warn().
				Str("participant_id", participantID).
				Uint64("client_id", c.id).
				Msg("websocket send buffer full, disconnecting client")
			h.removeLocked(c)
		}
	}
	return delivered
}

// IsOnline reports whether participantID has at least one live session.
func (h *Hub) IsOnline(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[participantID]) > 0
}

// SessionCount returns the number of live sessions for participantID.
func (h *Hub) SessionCount(participantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[participantID])
}

// GetClientCount returns the total number of live sessions.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// ParticipantCount returns the number of participants with a live session.
func (h *Hub) ParticipantCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// RunWithContext blocks until ctx is canceled, then closes every session.
// It is designed for use with suture supervision. After it returns the hub
// refuses new registrations.
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case <-ticker.C:
			logging.Debug().
				Int("sessions", h.GetClientCount()).
				Int("participants", h.ParticipantCount()).
				Msg("websocket hub stats")
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String names the service for the supervisor.
func (h *Hub) String() string {
	return "websocket-hub"
}

// logGracefulShutdown closes all clients and logs the shutdown.
// ctx.Err() is not logged as an error because cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every session in client ID order.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	var clients []*Client
	for _, set := range h.sessions {
		for c := range set {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		h.removeLocked(c)
	}
	return len(clients)
}
