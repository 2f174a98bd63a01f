// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package push hands new-message notifications for offline recipients to an
// external push delivery service.
//
// A Notification carries metadata only. It has no field that could hold message
// content, so ciphertext can never reach a push provider.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
)

// Push modes accepted in configuration.
const (
	ModeLog      = "log"
	ModeWebhook  = "webhook"
	ModeDisabled = "disabled"
)

// Notification is the metadata handed to the offline push collaborator.
type Notification struct {
	MessageID    string    `json:"messageId"`
	SenderID     string    `json:"senderId"`
	RecipientID  string    `json:"recipientId"`
	PayloadKind  string    `json:"payloadKind"`
	TTLSeconds   int       `json:"ttlSeconds"`
	Preview      string    `json:"preview"`
	Timestamp    time.Time `json:"timestamp"`
	DeviceTokens []string  `json:"deviceTokens,omitempty"`
}

// Pusher delivers a Notification to a recipient's devices.
type Pusher interface {
	Push(ctx context.Context, n Notification) error
	Name() string
}

// LogPusher records notifications in the log instead of delivering them.
type LogPusher struct{}

// Push implements Pusher.
func (LogPusher) Push(ctx context.Context, n Notification) error {
	logging.Ctx(ctx).Info().
		Str("message_id", n.MessageID).
		Str("recipient_id", n.RecipientID).
		Str("payload_kind", n.PayloadKind).
		Int("device_tokens", len(n.DeviceTokens)).
		Msg("Offline push notification")
	metrics.PushDeliveries.WithLabelValues(ModeLog, "success").Inc()
	return nil
}

// Name implements Pusher.
func (LogPusher) Name() string { return ModeLog }

// Disabled drops every notification.
type Disabled struct{}

// Push implements Pusher.
func (Disabled) Push(context.Context, Notification) error {
	metrics.PushDeliveries.WithLabelValues(ModeDisabled, "skipped").Inc()
	return nil
}

// Name implements Pusher.
func (Disabled) Name() string { return ModeDisabled }

// New builds the Pusher selected by cfg.
func New(cfg config.PushConfig) (Pusher, error) {
	switch cfg.Mode {
	case ModeLog, "":
		return LogPusher{}, nil
	case ModeDisabled:
		return Disabled{}, nil
	case ModeWebhook:
		return NewWebhookPusher(cfg)
	default:
		return nil, fmt.Errorf("unknown push mode %q", cfg.Mode)
	}
}
