// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package websocket is the real-time duplex channel between participants and the
server, built on gorilla/websocket with a hub-client architecture.

Key Components:

  - Hub: session registry keyed by participant id. A participant may hold several
    sessions (one per device); fan-out reaches all of them.
  - Client: one authenticated connection with a read and a write goroutine.
  - Event: the closed set of frame payloads in events.go.

Architecture:

	┌──────────────────────────────┐
	│ Hub                          │
	│  alice → {Client1, Client2}  │ ← SendTo("alice", ev) reaches both
	│  bob   → {Client3}           │
	└──────────────────────────────┘

Each client has two goroutines:
  - readPump: decodes inbound frames and hands them to the Handler, in order
  - writePump: writes queued frames and pings the peer

Frames:

Every frame is {"type": "<event>", "data": {...}}. Client to server events are
send_message, open_message, destroy_message, message_read, message_ack and ping.
Server to client events are new_message_notification, message_sent,
message_content, message_opened, message_read, message_destroyed, pong and the
error replies message_not_found, message_access_denied, message_already_opened
and message_error. Timestamps are unix milliseconds.

A new_message_notification never carries ciphertext; content only travels in
message_content, and only to the session that opened the message.

Backpressure:

Sends never block the caller. A session whose buffer is full is disconnected and
must reconnect.
*/
package websocket
