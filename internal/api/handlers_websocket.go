// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"net/http"

	"github.com/tomtom215/ephemera/internal/auth"
	"github.com/tomtom215/ephemera/internal/logging"
	ws "github.com/tomtom215/ephemera/internal/websocket"
)

// WebSocket authenticates the handshake and upgrades it to a duplex session.
// A missing or invalid token is rejected with 401 before the upgrade.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Verify(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="ephemera"`)
		NewResponseWriter(w, r).Unauthorized("Authentication required")
		return
	}
	participantID := claims.ParticipantID()

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}

	ctx := logging.ContextWithParticipant(auth.WithClaims(r.Context(), claims), participantID)
	client := ws.NewClient(ctx, h.hub, conn, participantID, h.dispatcher, h.config.WebSocket)
	if !client.Start() {
		logging.Ctx(ctx).Warn().Msg("WebSocket connection rejected: hub shut down")
	}
}
