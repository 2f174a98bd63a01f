// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package websocket

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/models"
)

// Event type names as they appear in the frame "type" field.
const (
	// Client to server
	TypeSendMessage    = "send_message"
	TypeOpenMessage    = "open_message"
	TypeDestroyMessage = "destroy_message"
	TypeReadMessage    = "message_read"
	TypeAckMessage     = "message_ack"
	TypePing           = "ping"

	// Server to client
	TypeNewMessageNotification = "new_message_notification"
	TypeMessageSent            = "message_sent"
	TypeMessageContent         = "message_content"
	TypeMessageOpened          = "message_opened"
	TypeMessageRead            = "message_read"
	TypeMessageDestroyed       = "message_destroyed"
	TypeMessageNotFound        = "message_not_found"
	TypeMessageAccessDenied    = "message_access_denied"
	TypeMessageAlreadyOpened   = "message_already_opened"
	TypeMessageError           = "message_error"
	TypePong                   = "pong"
)

// Decode errors
var (
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrMalformedFrame = errors.New("malformed event frame")
)

// Event is one of the closed set of frame payloads defined in this file.
type Event interface {
	EventType() string
	event()
}

// Inbound is an Event a client may send.
type Inbound interface {
	Event
	inbound()
}

// Frame is the wire envelope: {"type": "...", "data": {...}}.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// --- Client to server ---

// SendMessage asks the server to deliver a text message. A nil TTLSeconds takes the
// server default; an explicit zero is rejected.
type SendMessage struct {
	RecipientID string `json:"recipientId"`
	Payload     string `json:"payload"`
	PayloadKind string `json:"payloadKind"`
	Timestamp   int64  `json:"timestamp"`
	TTLSeconds  *int   `json:"ttlSeconds,omitempty"`
}

// OpenMessage asks for a message's content.
type OpenMessage struct {
	MessageID string `json:"messageId"`
}

// DestroyMessage asks for early destruction.
type DestroyMessage struct {
	MessageID string `json:"messageId"`
}

// ReadMessage reports that opened content was displayed. The server forwards it to
// the sender as MessageRead.
type ReadMessage struct {
	MessageID string `json:"messageId"`
}

// AckMessage acknowledges a new_message_notification.
type AckMessage struct {
	MessageID string `json:"messageId"`
}

// Ping is an application-level keepalive.
type Ping struct{}

// --- Server to client ---

// NewMessageNotification tells a recipient a message is waiting. It never carries content.
type NewMessageNotification struct {
	MessageID   string            `json:"messageId"`
	SenderID    string            `json:"senderId"`
	Timestamp   int64             `json:"timestamp"`
	PayloadKind string            `json:"payloadKind"`
	TTLSeconds  int               `json:"ttlSeconds"`
	Preview     string            `json:"preview"`
	Auxiliary   *models.Auxiliary `json:"auxiliary,omitempty"`
}

// MessageSent acknowledges a send to the sender.
type MessageSent struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

// MessageContent delivers opened content to the opener.
type MessageContent struct {
	MessageID   string `json:"messageId"`
	SenderID    string `json:"senderId"`
	Content     string `json:"content"`
	SessionKey  string `json:"sessionKey,omitempty"`
	PayloadKind string `json:"payloadKind"`
	Timestamp   int64  `json:"timestamp"`
	TTLSeconds  int    `json:"ttlSeconds"`
	OpenedAt    int64  `json:"openedAt"`
}

// MessageOpened tells the sender the recipient opened a message.
type MessageOpened struct {
	MessageID string `json:"messageId"`
	OpenedAt  int64  `json:"openedAt"`
}

// MessageRead tells the sender the recipient displayed a message.
type MessageRead struct {
	MessageID string `json:"messageId"`
	ReadAt    int64  `json:"readAt"`
}

// MessageDestroyed tells both parties a message is gone.
type MessageDestroyed struct {
	MessageID   string `json:"messageId"`
	DestroyedAt int64  `json:"destroyedAt"`
}

// ErrorBody is shared by the error replies.
type ErrorBody struct {
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MessageNotFound replies to a request for an absent message.
type MessageNotFound struct{ ErrorBody }

// MessageAccessDenied replies to a request from someone other than the recipient.
type MessageAccessDenied struct{ ErrorBody }

// MessageAlreadyOpened replies to an open that lost the race.
type MessageAlreadyOpened struct{ ErrorBody }

// MessageError replies to an invalid request or an internal failure.
type MessageError struct{ ErrorBody }

// Pong answers Ping.
type Pong struct{}

func (SendMessage) EventType() string            { return TypeSendMessage }
func (OpenMessage) EventType() string            { return TypeOpenMessage }
func (DestroyMessage) EventType() string         { return TypeDestroyMessage }
func (ReadMessage) EventType() string            { return TypeReadMessage }
func (AckMessage) EventType() string             { return TypeAckMessage }
func (Ping) EventType() string                   { return TypePing }
func (NewMessageNotification) EventType() string { return TypeNewMessageNotification }
func (MessageSent) EventType() string            { return TypeMessageSent }
func (MessageContent) EventType() string         { return TypeMessageContent }
func (MessageOpened) EventType() string          { return TypeMessageOpened }
func (MessageRead) EventType() string            { return TypeMessageRead }
func (MessageDestroyed) EventType() string       { return TypeMessageDestroyed }
func (MessageNotFound) EventType() string        { return TypeMessageNotFound }
func (MessageAccessDenied) EventType() string    { return TypeMessageAccessDenied }
func (MessageAlreadyOpened) EventType() string   { return TypeMessageAlreadyOpened }
func (MessageError) EventType() string           { return TypeMessageError }
func (Pong) EventType() string                   { return TypePong }

func (SendMessage) event()            {}
func (OpenMessage) event()            {}
func (DestroyMessage) event()         {}
func (ReadMessage) event()            {}
func (AckMessage) event()             {}
func (Ping) event()                   {}
func (NewMessageNotification) event() {}
func (MessageSent) event()            {}
func (MessageContent) event()         {}
func (MessageOpened) event()          {}
func (MessageRead) event()            {}
func (MessageDestroyed) event()       {}
func (MessageNotFound) event()        {}
func (MessageAccessDenied) event()    {}
func (MessageAlreadyOpened) event()   {}
func (MessageError) event()           {}
func (Pong) event()                   {}

func (SendMessage) inbound()    {}
func (OpenMessage) inbound()    {}
func (DestroyMessage) inbound() {}
func (ReadMessage) inbound()    {}
func (AckMessage) inbound()     {}
func (Ping) inbound()           {}

// Encode wraps e in a Frame and marshals it.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.EventType(), err)
	}
	return json.Marshal(Frame{Type: e.EventType(), Data: data})
}

// DecodeInbound parses a frame sent by a client.
//
// message_read is both a client request and a server notification with different
// bodies; inbound it decodes as ReadMessage.
func DecodeInbound(raw []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var ev Inbound
	switch f.Type {
	case TypeSendMessage:
		ev = &SendMessage{}
	case TypeOpenMessage:
		ev = &OpenMessage{}
	case TypeDestroyMessage:
		ev = &DestroyMessage{}
	case TypeReadMessage:
		ev = &ReadMessage{}
	case TypeAckMessage:
		ev = &AckMessage{}
	case TypePing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Type)
	}

	if err := decodeData(f, ev); err != nil {
		return nil, err
	}
	return deref(ev).(Inbound), nil
}

// DecodeOutbound parses a frame sent by the server. It is used by the relay and by
// clients written in Go.
func DecodeOutbound(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var ev Event
	switch f.Type {
	case TypeNewMessageNotification:
		ev = &NewMessageNotification{}
	case TypeMessageSent:
		ev = &MessageSent{}
	case TypeMessageContent:
		ev = &MessageContent{}
	case TypeMessageOpened:
		ev = &MessageOpened{}
	case TypeMessageRead:
		ev = &MessageRead{}
	case TypeMessageDestroyed:
		ev = &MessageDestroyed{}
	case TypeMessageNotFound:
		ev = &MessageNotFound{}
	case TypeMessageAccessDenied:
		ev = &MessageAccessDenied{}
	case TypeMessageAlreadyOpened:
		ev = &MessageAlreadyOpened{}
	case TypeMessageError:
		ev = &MessageError{}
	case TypePong:
		return Pong{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Type)
	}

	if err := decodeData(f, ev); err != nil {
		return nil, err
	}
	return deref(ev), nil
}

func decodeData(f Frame, target any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedFrame, f.Type)
	}
	if err := json.Unmarshal(f.Data, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedFrame, f.Type, err)
	}
	return nil
}

// deref turns the decode target back into a value so callers switch on value types.
func deref(ev Event) Event {
	var out Event
	switch e := ev.(type) {
	case *SendMessage:
		out = *e
	case *OpenMessage:
		out = *e
	case *DestroyMessage:
		out = *e
	case *ReadMessage:
		out = *e
	case *AckMessage:
		out = *e
	case *NewMessageNotification:
		out = *e
	case *MessageSent:
		out = *e
	case *MessageContent:
		out = *e
	case *MessageOpened:
		out = *e
	case *MessageRead:
		out = *e
	case *MessageDestroyed:
		out = *e
	case *MessageNotFound:
		out = *e
	case *MessageAccessDenied:
		out = *e
	case *MessageAlreadyOpened:
		out = *e
	case *MessageError:
		out = *e
	default:
		return ev
	}
	return out
}
