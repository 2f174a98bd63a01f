// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package audit records security-relevant events: denied access to messages,
// failed authentication and explicit destruction requests.
//
// # Event Types
//
//   - access.denied: a caller who is not the recipient tried to open, read,
//     destroy or inspect a message
//   - auth.failure: a bearer token was missing, malformed or expired
//   - message.destroyed: a recipient destroyed a message before its TTL elapsed
//
// Events never carry message content. The target of a message event is the
// message ID only.
//
// # Architecture
//
// The audit log uses a producer-consumer pattern:
//
//	Logger.Log() -> Event Buffer (chan) -> Async Writer -> Store
//	                     |                      |
//	                 Non-blocking           Background goroutine
//
// Log never blocks the caller. When the buffer is full the event is dropped and
// counted in ephemera_audit_events_dropped_total.
//
// # Storage
//
// MemoryStore keeps the most recent events in a bounded ring. Audit records are
// process-local and are lost on restart.
package audit
