// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ephemera/internal/breaker"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/metrics"
)

// ErrRateLimited means the outbound push rate was exceeded and the notification dropped.
var ErrRateLimited = errors.New("push rate limit exceeded")

// WebhookPusher POSTs each Notification as JSON to a push gateway.
type WebhookPusher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookPusher creates a WebhookPusher from cfg.
func NewWebhookPusher(cfg config.PushConfig) (*WebhookPusher, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("push webhook requires a url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 50
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}

	return &WebhookPusher{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		breaker: breaker.New[struct{}](breaker.DefaultConfig("push-webhook")),
	}, nil
}

// Name implements Pusher.
func (p *WebhookPusher) Name() string { return ModeWebhook }

// Push implements Pusher. Notifications over the configured rate are dropped
// rather than queued; push is best effort.
func (p *WebhookPusher) Push(ctx context.Context, n Notification) error {
	if !p.limiter.Allow() {
		metrics.PushDeliveries.WithLabelValues(ModeWebhook, "rate_limited").Inc()
		return ErrRateLimited
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal push notification: %w", err)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.post(ctx, body)
	})
	switch {
	case breaker.IsOpen(err):
		metrics.PushDeliveries.WithLabelValues(ModeWebhook, "circuit_open").Inc()
		return fmt.Errorf("push webhook: %w", err)
	case err != nil:
		metrics.PushDeliveries.WithLabelValues(ModeWebhook, "failure").Inc()
		return fmt.Errorf("push webhook: %w", err)
	}
	metrics.PushDeliveries.WithLabelValues(ModeWebhook, "success").Inc()
	return nil
}

func (p *WebhookPusher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}
