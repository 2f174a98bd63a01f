// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package websocket

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/models"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "send_message",
			raw:  `{"type":"send_message","data":{"recipientId":"bob","payload":"c1ph3r","payloadKind":"text","timestamp":1700000000000}}`,
			want: SendMessage{RecipientID: "bob", Payload: "c1ph3r", PayloadKind: "text", Timestamp: 1700000000000},
		},
		{
			name: "open_message",
			raw:  `{"type":"open_message","data":{"messageId":"m1"}}`,
			want: OpenMessage{MessageID: "m1"},
		},
		{
			name: "destroy_message",
			raw:  `{"type":"destroy_message","data":{"messageId":"m1"}}`,
			want: DestroyMessage{MessageID: "m1"},
		},
		{
			name: "message_read",
			raw:  `{"type":"message_read","data":{"messageId":"m1"}}`,
			want: ReadMessage{MessageID: "m1"},
		},
		{
			name: "message_ack",
			raw:  `{"type":"message_ack","data":{"messageId":"m1"}}`,
			want: AckMessage{MessageID: "m1"},
		},
		{
			name: "ping without data",
			raw:  `{"type":"ping"}`,
			want: Ping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeInbound() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeInbound() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeSendMessageTTL(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"type":"send_message","data":{"recipientId":"bob","payload":"x","payloadKind":"text","ttlSeconds":5}}`))
	if err != nil {
		t.Fatal(err)
	}
	send := ev.(SendMessage)
	if send.TTLSeconds == nil || *send.TTLSeconds != 5 {
		t.Errorf("TTLSeconds = %v, want 5", send.TTLSeconds)
	}

	ev, err = DecodeInbound([]byte(`{"type":"send_message","data":{"recipientId":"bob","payload":"x","payloadKind":"text","ttlSeconds":0}}`))
	if err != nil {
		t.Fatal(err)
	}
	if ttl := ev.(SendMessage).TTLSeconds; ttl == nil || *ttl != 0 {
		t.Errorf("explicit zero TTL decoded as %v", ttl)
	}
}

func TestDecodeInboundErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, ErrMalformedFrame},
		{"unknown type", `{"type":"launch_missiles","data":{}}`, ErrUnknownEvent},
		{"server-only type", `{"type":"message_content","data":{"messageId":"m1"}}`, ErrUnknownEvent},
		{"missing data", `{"type":"open_message"}`, ErrMalformedFrame},
		{"wrong field type", `{"type":"open_message","data":{"messageId":42}}`, ErrMalformedFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeInbound([]byte(tt.raw)); !errors.Is(err, tt.want) {
				t.Errorf("DecodeInbound() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeFrameShape(t *testing.T) {
	raw, err := Encode(MessageDestroyed{MessageID: "m1", DestroyedAt: 1700000005000})
	if err != nil {
		t.Fatal(err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	if generic["type"] != TypeMessageDestroyed {
		t.Errorf("type = %v", generic["type"])
	}
	data, ok := generic["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %T", generic["data"])
	}
	if data["messageId"] != "m1" || data["destroyedAt"] != float64(1700000005000) {
		t.Errorf("data = %v", data)
	}
}

func TestOutboundRoundTrip(t *testing.T) {
	events := []Event{
		NewMessageNotification{MessageID: "m1", SenderID: "alice", Timestamp: 1, PayloadKind: "image", TTLSeconds: 5, Preview: "New ephemeral message", Auxiliary: &models.Auxiliary{Width: 4}},
		MessageSent{MessageID: "m1", Timestamp: 1},
		MessageContent{MessageID: "m1", Content: "c", PayloadKind: "text", Timestamp: 1, TTLSeconds: 5, OpenedAt: 2},
		MessageOpened{MessageID: "m1", OpenedAt: 2},
		MessageRead{MessageID: "m1", ReadAt: 3},
		MessageDestroyed{MessageID: "m1", DestroyedAt: 4},
		MessageNotFound{ErrorBody{MessageID: "m1"}},
		MessageAccessDenied{ErrorBody{MessageID: "m1", Error: "access denied"}},
		MessageAlreadyOpened{ErrorBody{MessageID: "m1"}},
		MessageError{ErrorBody{Error: "boom"}},
		Pong{},
	}

	for _, ev := range events {
		t.Run(ev.EventType(), func(t *testing.T) {
			raw, err := Encode(ev)
			if err != nil {
				t.Fatal(err)
			}
			got, err := DecodeOutbound(raw)
			if err != nil {
				t.Fatalf("DecodeOutbound() error = %v", err)
			}
			if got.EventType() != ev.EventType() {
				t.Errorf("type = %s, want %s", got.EventType(), ev.EventType())
			}
		})
	}
}

func TestNotificationNeverCarriesContent(t *testing.T) {
	raw, err := Encode(NewMessageNotification{MessageID: "m1", SenderID: "alice", Preview: "New ephemeral message"})
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"content"`, `"payload"`, `"ciphertext"`, `"sessionKey"`} {
		if strings.Contains(string(raw), field) {
			t.Errorf("notification frame contains %s: %s", field, raw)
		}
	}
}

func TestErrorBodyFlattened(t *testing.T) {
	raw, err := Encode(MessageNotFound{ErrorBody{MessageID: "m1", Error: "message not found"}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"message_not_found","data":{"messageId":"m1","error":"message not found"}}`
	if string(raw) != want {
		t.Errorf("Encode() = %s, want %s", raw, want)
	}
}
