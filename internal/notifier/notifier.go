// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package notifier fans lifecycle events out to every live session of the sender
// and recipient, and hands metadata-only notifications to the offline push
// collaborator when the recipient has no session.
//
// Delivery is fire-and-forget. No Notify method blocks on a socket or on the push
// provider, and none returns an error: a lost event never fails the operation that
// caused it.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/models"
	"github.com/tomtom215/ephemera/internal/push"
	"github.com/tomtom215/ephemera/internal/websocket"
)

// DefaultPreview is the notification text used when none is configured.
const DefaultPreview = "New ephemeral message"

const pushTimeout = 10 * time.Second

// Sessions is the local session registry.
type Sessions interface {
	SendTo(participantID string, ev websocket.Event) int
	IsOnline(participantID string) bool
}

// Relay forwards events to sessions held by other instances.
type Relay interface {
	Publish(ctx context.Context, participantID string, ev websocket.Event) error
}

// Config wires a Notifier. Relay, Pusher and Tokens are optional.
type Config struct {
	Sessions Sessions
	Relay    Relay
	Pusher   push.Pusher
	Tokens   *push.TokenRegistry

	// Preview is the generic text shown in notifications. It never depends on content.
	Preview string
}

// Notifier delivers lifecycle events.
type Notifier struct {
	sessions Sessions
	relay    Relay
	pusher   push.Pusher
	tokens   *push.TokenRegistry
	preview  string

	wg sync.WaitGroup
}

// New creates a Notifier.
func New(cfg Config) *Notifier {
	preview := cfg.Preview
	if preview == "" {
		preview = DefaultPreview
	}
	return &Notifier{
		sessions: cfg.Sessions,
		relay:    cfg.Relay,
		pusher:   cfg.Pusher,
		tokens:   cfg.Tokens,
		preview:  preview,
	}
}

// Preview returns the configured notification text.
func (n *Notifier) Preview() string {
	return n.preview
}

// NotifyNew tells the recipient a message is waiting. The event carries metadata and
// auxiliary data only. When the recipient has no session on this instance the
// notification is also handed to the push collaborator.
func (n *Notifier) NotifyNew(ctx context.Context, msg *models.Message) {
	ev := websocket.NewMessageNotification{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		Timestamp:   msg.CreatedAt.UnixMilli(),
		PayloadKind: string(msg.PayloadKind),
		TTLSeconds:  msg.TTLSeconds,
		Preview:     n.preview,
		Auxiliary:   msg.Auxiliary,
	}
	if n.deliver(ctx, msg.RecipientID, ev) > 0 {
		return
	}
	n.pushOffline(ctx, push.Notification{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		PayloadKind: string(msg.PayloadKind),
		TTLSeconds:  msg.TTLSeconds,
		Preview:     n.preview,
		Timestamp:   msg.CreatedAt,
	})
}

// NotifySent acknowledges a send to every session of the sender.
func (n *Notifier) NotifySent(ctx context.Context, senderID, messageID string, at time.Time) {
	n.deliver(ctx, senderID, websocket.MessageSent{MessageID: messageID, Timestamp: at.UnixMilli()})
}

// NotifyOpened tells the sender the recipient opened a message.
func (n *Notifier) NotifyOpened(ctx context.Context, senderID, messageID string, openedAt time.Time) {
	n.deliver(ctx, senderID, websocket.MessageOpened{MessageID: messageID, OpenedAt: openedAt.UnixMilli()})
}

// NotifyRead tells the sender the recipient displayed a message.
func (n *Notifier) NotifyRead(ctx context.Context, senderID, messageID string, readAt time.Time) {
	n.deliver(ctx, senderID, websocket.MessageRead{MessageID: messageID, ReadAt: readAt.UnixMilli()})
}

// NotifyDestroyed tells both parties a message is gone. A participant messaging
// themselves receives the event once.
func (n *Notifier) NotifyDestroyed(ctx context.Context, senderID, recipientID, messageID string, destroyedAt time.Time) {
	ev := websocket.MessageDestroyed{MessageID: messageID, DestroyedAt: destroyedAt.UnixMilli()}
	n.deliver(ctx, recipientID, ev)
	if senderID != recipientID {
		n.deliver(ctx, senderID, ev)
	}
}

// Wait blocks until in-flight push deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// deliver sends ev to local sessions and, when a relay is configured, to sessions on
// other instances. It returns the number of local sessions reached.
func (n *Notifier) deliver(ctx context.Context, participantID string, ev websocket.Event) int {
	delivered := 0
	if n.sessions != nil {
		delivered = n.sessions.SendTo(participantID, ev)
	}
	if n.relay != nil {
		if err := n.relay.Publish(ctx, participantID, ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("participant_id", participantID).
				Str("event_type", ev.EventType()).
				Msg("Failed to relay event to other instances")
		}
	}
	return delivered
}

func (n *Notifier) pushOffline(ctx context.Context, note push.Notification) {
	if n.pusher == nil {
		return
	}
	if n.tokens != nil {
		note.DeviceTokens = n.tokens.Tokens(note.RecipientID)
	}

	// Push runs after the send returns, so it gets its own deadline.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := n.pusher.Push(pctx, note); err != nil {
			logging.Ctx(pctx).Warn().Err(err).
				Str("message_id", note.MessageID).
				Str("pusher", n.pusher.Name()).
				Msg("Offline push failed")
		}
	}()
}
