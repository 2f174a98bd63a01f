// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"context"
	"errors"

	"github.com/tomtom215/ephemera/internal/lifecycle"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/models"
	ws "github.com/tomtom215/ephemera/internal/websocket"
)

// Dispatcher turns inbound websocket events into lifecycle operations. Content and
// error replies go to the requesting session only; everything else reaches the
// parties through the notifier.
type Dispatcher struct {
	controller *lifecycle.Controller
}

// NewDispatcher creates a Dispatcher over controller.
func NewDispatcher(controller *lifecycle.Controller) *Dispatcher {
	return &Dispatcher{controller: controller}
}

// HandleEvent implements websocket.Handler.
func (d *Dispatcher) HandleEvent(ctx context.Context, c *ws.Client, ev ws.Inbound) {
	caller := c.ParticipantID()

	switch e := ev.(type) {
	case ws.SendMessage:
		d.send(ctx, c, e)

	case ws.OpenMessage:
		res, err := d.controller.Open(ctx, e.MessageID, caller)
		if err != nil {
			d.replyError(ctx, c, e.MessageID, err)
			return
		}
		c.Send(ws.MessageContent{
			MessageID:   res.MessageID,
			SenderID:    res.SenderID,
			Content:     string(res.Ciphertext),
			SessionKey:  string(res.SessionKeyBlob),
			PayloadKind: string(res.PayloadKind),
			Timestamp:   res.ClientTimestamp,
			TTLSeconds:  res.TTLSeconds,
			OpenedAt:    unixMilli(res.OpenedAt),
		})

	case ws.DestroyMessage:
		if err := d.controller.Destroy(ctx, e.MessageID, caller); err != nil {
			d.replyError(ctx, c, e.MessageID, err)
		}

	case ws.ReadMessage:
		if err := d.controller.MarkRead(ctx, e.MessageID, caller); err != nil {
			d.replyError(ctx, c, e.MessageID, err)
		}

	case ws.AckMessage:
		if err := d.controller.Acknowledge(ctx, e.MessageID, caller); err != nil {
			d.replyError(ctx, c, e.MessageID, err)
		}

	case ws.Ping:
		c.Send(ws.Pong{})

	default:
		c.Send(ws.MessageError{ErrorBody: ws.ErrorBody{Error: "unsupported event"}})
	}
}

func (d *Dispatcher) send(ctx context.Context, c *ws.Client, e ws.SendMessage) {
	kind := models.PayloadKind(e.PayloadKind)
	if kind == "" {
		kind = models.PayloadText
	}

	// message_sent reaches the sender through the notifier, on every session.
	_, err := d.controller.Send(ctx, lifecycle.SendRequest{
		SenderID:        c.ParticipantID(),
		RecipientID:     e.RecipientID,
		PayloadKind:     kind,
		Ciphertext:      []byte(e.Payload),
		TTLSeconds:      d.controller.ResolveTTL(e.TTLSeconds),
		ClientTimestamp: e.Timestamp,
	})
	if err != nil {
		d.replyError(ctx, c, "", err)
	}
}

// replyError maps a lifecycle error to its tagged websocket reply.
func (d *Dispatcher) replyError(ctx context.Context, c *ws.Client, messageID string, err error) {
	body := ws.ErrorBody{MessageID: messageID}

	switch lifecycle.KindOf(err) {
	case lifecycle.ErrNotFound:
		body.Error = "message not found or already destroyed"
		c.Send(ws.MessageNotFound{ErrorBody: body})
	case lifecycle.ErrAccessDenied:
		body.Error = "access denied"
		c.Send(ws.MessageAccessDenied{ErrorBody: body})
	case lifecycle.ErrAlreadyOpened:
		body.Error = "message already opened"
		c.Send(ws.MessageAlreadyOpened{ErrorBody: body})
	case lifecycle.ErrValidation:
		body.Error = validationText(err)
		c.Send(ws.MessageError{ErrorBody: body})
	default:
		logging.Ctx(ctx).Error().Err(err).Str("message_id", messageID).Msg("Websocket event failed")
		body.Error = "internal error"
		c.Send(ws.MessageError{ErrorBody: body})
	}
}

// validationText returns the cause of a validation error without the kind prefix.
func validationText(err error) string {
	var lerr *lifecycle.Error
	if errors.As(err, &lerr) && lerr.Err != nil {
		return lerr.Err.Error()
	}
	return err.Error()
}
