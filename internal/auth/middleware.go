// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/audit"
	"github.com/tomtom215/ephemera/internal/logging"
)

type contextKey string

// ClaimsContextKey holds the *Claims of an authenticated request.
const ClaimsContextKey contextKey = "claims"

// TokenCookieName and TokenQueryParam are the non-header token locations.
// Browsers cannot set headers on a websocket upgrade, so the query parameter exists
// for them.
const (
	TokenCookieName = "token"
	TokenQueryParam = "token"
)

var (
	errMissingToken  = errors.New("unauthorized: missing token")
	errInvalidHeader = errors.New("unauthorized: invalid authorization header")
)

// Middleware authenticates requests with bearer tokens.
type Middleware struct {
	jwtManager *JWTManager
	audit      *audit.Logger
}

// NewMiddleware creates authentication middleware. auditLog may be nil.
func NewMiddleware(jwtManager *JWTManager, auditLog *audit.Logger) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
		audit:      auditLog,
	}
}

// Authenticate rejects requests without a valid token and stores the claims in the
// request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Verify(r)
		if err != nil {
			writeUnauthorized(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Verify extracts and validates the token of r. Failures are logged and audited.
func (m *Middleware) Verify(r *http.Request) (*Claims, error) {
	token, err := TokenFromRequest(r)
	if err == nil {
		var claims *Claims
		if claims, err = m.jwtManager.ValidateToken(token); err == nil {
			return claims, nil
		}
	}

	logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
	m.audit.LogAuthFailure(r.Context(), audit.SourceFromRequest(r), err.Error())
	return nil, err
}

// TokenFromRequest reads the token from the Authorization header, then the token
// query parameter, then the token cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errInvalidHeader
		}
		return token, nil
	}
	if token := r.URL.Query().Get(TokenQueryParam); token != "" {
		return token, nil
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", errMissingToken
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// ParticipantFromContext returns the authenticated participant, or "".
func ParticipantFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.ParticipantID()
	}
	return ""
}

// SecurityHeaders adds security headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")

		// HSTS only if using HTTPS
		if r.Header.Get("X-Forwarded-Proto") == "https" || r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

type unauthorizedBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// writeUnauthorized writes the API error envelope with code UNAUTHORIZED.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	var body unauthorizedBody
	body.Error.Code = "UNAUTHORIZED"
	body.Error.Message = "Unauthorized"
	if errors.Is(err, errMissingToken) || errors.Is(err, errInvalidHeader) {
		body.Error.Message = err.Error()
	}
	body.Error.RequestID = logging.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ephemera"`)
	w.WriteHeader(http.StatusUnauthorized)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		logging.Ctx(r.Context()).Error().Err(encErr).Msg("Failed to encode unauthorized response")
	}
}
