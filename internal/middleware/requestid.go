// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/ephemera/internal/logging"
)

// RequestIDHeader is echoed on every response and quoted in error envelopes.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds upstream ids copied into logs and responses.
const maxRequestIDLength = 128

// RequestID tags each request with an id and a fresh correlation id in the
// logging context. An upstream id is reused when it is short enough.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		ctx = logging.ContextWithNewCorrelationID(ctx)
		next(w, r.WithContext(ctx))
	}
}
