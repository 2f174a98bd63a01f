// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/audit"
	"github.com/tomtom215/ephemera/internal/auth"
	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/lifecycle"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/notifier"
	"github.com/tomtom215/ephemera/internal/push"
	"github.com/tomtom215/ephemera/internal/scheduler"
	"github.com/tomtom215/ephemera/internal/store"
	ws "github.com/tomtom215/ephemera/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

// testEnv is a full server over an in-memory store and a fake clock.
type testEnv struct {
	router http.Handler
	server *httptest.Server
	ctl    *lifecycle.Controller
	clock  *clock.Fake
	hub    *ws.Hub
	jwt    *auth.JWTManager
	tokens *push.TokenRegistry
	events *audit.MemoryStore
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "development"},
		Security: config.SecurityConfig{
			JWTSecret:         strings.Repeat("k", auth.MinSecretLength),
			CORSOrigins:       []string{"https://app.example"},
			RateLimitReqs:     1000,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: true,
			DevTokenIssuer:    true,
		},
		Lifecycle: config.LifecycleConfig{
			DefaultTTLSeconds: 5,
			MaxTTLSeconds:     3600,
			GraceMultiplier:   10,
			MaxPayloadBytes:   1 << 20,
		},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	fc := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore(fc)
	sched := scheduler.New(fc)
	hub := ws.NewHub()
	tokens := push.NewTokenRegistry()
	events := audit.NewMemoryStore(100)
	auditLog := audit.NewLogger(events, config.AuditConfig{Enabled: true, MinLevel: "info"})

	ctl, err := lifecycle.New(lifecycle.Config{
		Store:     st,
		Notifier:  notifier.New(notifier.Config{Sessions: hub, Pusher: push.Disabled{}, Tokens: tokens}),
		Scheduler: sched,
		Audit:     auditLog,
		Clock:     fc,
		Policy:    cfg.Lifecycle,
	})
	if err != nil {
		t.Fatalf("lifecycle.New() error = %v", err)
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	handler, err := NewHandler(HandlerConfig{
		Controller: ctl,
		Hub:        hub,
		Store:      st,
		Scheduler:  sched,
		Tokens:     tokens,
		JWT:        jwtManager,
		Auth:       auth.NewMiddleware(jwtManager, auditLog),
		Config:     cfg,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	router := NewRouter(handler, nil).SetupChi()
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		sched.Stop()
		_ = auditLog.Close()
	})

	return &testEnv{
		router: router,
		server: server,
		ctl:    ctl,
		clock:  fc,
		hub:    hub,
		jwt:    jwtManager,
		tokens: tokens,
		events: events,
	}
}

func (e *testEnv) token(t *testing.T, participantID string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(participantID, participantID)
	if err != nil {
		t.Fatalf("GenerateToken(%q) error = %v", participantID, err)
	}
	return token
}

// do sends a request as participantID ("" for anonymous) and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, participantID string, body interface{}) (int, APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			data, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			raw = string(data)
		}
		reader = bytes.NewBufferString(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if participantID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, participantID))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope APIResponse
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
	return resp.StatusCode, envelope
}

// dataInto re-decodes an envelope's data into v.
func dataInto(t *testing.T, envelope APIResponse, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal data %s: %v", raw, err)
	}
}

func errorCode(envelope APIResponse) string {
	if envelope.Error == nil {
		return ""
	}
	return envelope.Error.Code
}
