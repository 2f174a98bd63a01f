// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

func testNotification() Notification {
	return Notification{
		MessageID:    "m1",
		SenderID:     "alice",
		RecipientID:  "bob",
		PayloadKind:  "text",
		TTLSeconds:   5,
		Preview:      "New ephemeral message",
		Timestamp:    time.Now(),
		DeviceTokens: []string{"tok"},
	}
}

func TestNotificationHasNoContentField(t *testing.T) {
	data, err := json.Marshal(testNotification())
	if err != nil {
		t.Fatal(err)
	}
	for _, forbidden := range []string{"ciphertext", "content", "sessionKey"} {
		if strings.Contains(string(data), forbidden) {
			t.Errorf("notification JSON contains %q: %s", forbidden, data)
		}
	}
}

func TestWebhookPusher(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Notification
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var n Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, n)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p, err := NewWebhookPusher(config.PushConfig{WebhookURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Push(context.Background(), testNotification()); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].MessageID != "m1" || received[0].DeviceTokens[0] != "tok" {
		t.Errorf("received = %+v", received)
	}
}

func TestWebhookPusherGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := NewWebhookPusher(config.PushConfig{WebhookURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Push(context.Background(), testNotification()); err == nil {
		t.Error("expected error for 502")
	}
}

func TestWebhookPusherRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewWebhookPusher(config.PushConfig{WebhookURL: srv.URL, RatePerSecond: 0.001, Burst: 2})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := p.Push(ctx, testNotification()); err != nil {
			t.Fatalf("push %d error = %v", i, err)
		}
	}
	if err := p.Push(ctx, testNotification()); !errors.Is(err, ErrRateLimited) {
		t.Errorf("third push error = %v, want ErrRateLimited", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		mode    string
		url     string
		name    string
		wantErr bool
	}{
		{"", "", ModeLog, false},
		{ModeLog, "", ModeLog, false},
		{ModeDisabled, "", ModeDisabled, false},
		{ModeWebhook, "http://push.internal/notify", ModeWebhook, false},
		{ModeWebhook, "", "", true},
		{"carrier-pigeon", "", "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.mode, tt.url), func(t *testing.T) {
			p, err := New(config.PushConfig{Mode: tt.mode, WebhookURL: tt.url})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.name)
			}
		})
	}
}

func TestTokenRegistry(t *testing.T) {
	r := NewTokenRegistry()
	r.Register("bob", "b")
	r.Register("bob", "a")
	r.Register("bob", "a")

	if got := r.Tokens("bob"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Tokens() = %v", got)
	}
	if r.Tokens("nobody") != nil {
		t.Error("Tokens(nobody) not nil")
	}

	r.Unregister("bob", "a")
	r.Unregister("bob", "b")
	if r.Tokens("bob") != nil {
		t.Error("tokens remain after unregister")
	}
}

func TestTokenRegistryBounded(t *testing.T) {
	r := NewTokenRegistry()
	for i := 0; i < MaxTokensPerParticipant+5; i++ {
		r.Register("bob", fmt.Sprintf("tok-%02d", i))
	}
	if n := len(r.Tokens("bob")); n != MaxTokensPerParticipant {
		t.Errorf("len(Tokens) = %d, want %d", n, MaxTokensPerParticipant)
	}
}
