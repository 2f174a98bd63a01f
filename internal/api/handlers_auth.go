// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/ephemera/internal/auth"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/validation"
)

// TokenRequest is the body of POST /api/v1/auth/token.
type TokenRequest struct {
	ParticipantID string `json:"participantId" validate:"required,participant"`
	Name          string `json:"name" validate:"max=128"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken issues a bearer token for any participant. It stands in for the
// identity service in development and is never routed in production.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req TokenRequest
	if err := decodeJSON(w, r, maxJSONBodyBytes, &req); err != nil {
		rw.BadRequest(bodyErrorMessage(err))
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError("Request validation failed", verr.Details())
		return
	}

	token, err := h.jwtManager.GenerateToken(req.ParticipantID, req.Name)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to issue token")
		rw.InternalError("Failed to issue token")
		return
	}

	logging.Ctx(r.Context()).Info().Str("participant_id", req.ParticipantID).Msg("Development token issued")
	rw.Success(TokenResponse{Token: token, ExpiresAt: time.Now().Add(h.jwtManager.TTL())})
}

// PushTokenRequest is the body of the push-token endpoints.
type PushTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// RegisterPushToken remembers a device token for the caller's offline push.
func (h *Handler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	h.pushToken(w, r, h.tokens.Register)
}

// UnregisterPushToken forgets a device token.
func (h *Handler) UnregisterPushToken(w http.ResponseWriter, r *http.Request) {
	h.pushToken(w, r, h.tokens.Unregister)
}

func (h *Handler) pushToken(w http.ResponseWriter, r *http.Request, apply func(participantID, token string)) {
	rw := NewResponseWriter(w, r)

	var req PushTokenRequest
	if err := decodeJSON(w, r, maxJSONBodyBytes, &req); err != nil {
		rw.BadRequest(bodyErrorMessage(err))
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError("Request validation failed", verr.Details())
		return
	}

	apply(auth.ParticipantFromContext(r.Context()), req.Token)
	rw.NoContent()
}
