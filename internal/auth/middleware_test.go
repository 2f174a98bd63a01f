// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/audit"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		setup   func(r *http.Request)
		want    string
		wantErr bool
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc", false},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc", false},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "", true},
		{"empty bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") }, "", true},
		{"query param", func(r *http.Request) { r.URL.RawQuery = "token=qqq" }, "qqq", false},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "ccc"}) }, "ccc", false},
		{
			"header wins over query",
			func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer hhh")
				r.URL.RawQuery = "token=qqq"
			},
			"hhh", false,
		},
		{"missing", func(*http.Request) {}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.setup(r)
			got, err := TokenFromRequest(r)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("TokenFromRequest() = %q, %v; want %q, err=%v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func newTestMiddleware(t *testing.T) (*Middleware, *JWTManager, *audit.Logger, *audit.MemoryStore) {
	t.Helper()
	manager := newTestManager(t)
	events := audit.NewMemoryStore(10)
	al := audit.NewLogger(events, config.AuditConfig{Enabled: true, MinLevel: "info"})
	t.Cleanup(func() { _ = al.Close() })
	return NewMiddleware(manager, al), manager, al, events
}

func TestAuthenticate(t *testing.T) {
	mw, manager, _, _ := newTestMiddleware(t)
	token, err := manager.GenerateToken("bob", "")
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ParticipantFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/image/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen != "bob" {
		t.Errorf("participant = %q, want bob", seen)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	mw, _, al, events := newTestMiddleware(t)
	called := false
	handler := mw.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	for _, header := range []string{"", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/image/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want 401", header, rec.Code)
		}
		if !strings.Contains(rec.Header().Get("WWW-Authenticate"), "Bearer") {
			t.Errorf("%q: missing WWW-Authenticate", header)
		}
		var body unauthorizedBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Success || body.Error.Code != "UNAUTHORIZED" {
			t.Errorf("%q: body = %s", header, rec.Body.String())
		}
	}
	if called {
		t.Error("next handler ran for unauthenticated request")
	}

	_ = al.Close()
	n, _ := events.Count(context.Background(), audit.QueryFilter{Types: []audit.EventType{audit.EventTypeAuthFailure}})
	if n != 2 {
		t.Errorf("audit auth failures = %d, want 2", n)
	}
}

func TestClaimsFromContext(t *testing.T) {
	t.Parallel()
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Error("empty context reported claims")
	}
	if got := ParticipantFromContext(context.Background()); got != "" {
		t.Errorf("ParticipantFromContext() = %q", got)
	}

	claims := &Claims{}
	claims.Subject = "alice"
	ctx := WithClaims(context.Background(), claims)
	if got := ParticipantFromContext(ctx); got != "alice" {
		t.Errorf("ParticipantFromContext() = %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	for _, h := range []string{"Content-Security-Policy", "X-Frame-Options", "X-Content-Type-Options", "Strict-Transport-Security", "Cache-Control"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}
