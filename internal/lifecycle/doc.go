// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package lifecycle implements the message state machine: send, open, read and
destroy.

# States

	created ──► notified ──► opened ──► destroyed
	   │                                    ▲
	   └────────── grace expiry ────────────┘ (silent)

A message is stored with a grace window of ttlSeconds multiplied by the configured
grace multiplier. The first successful Open moves it to opened through the store's
compare-and-set, replaces its expiry with ttlSeconds and arms a destruction timer.
Concurrent opens race on that compare-and-set and exactly one wins.

When the timer fires, or the recipient calls Destroy, the record is deleted and
both parties receive message_destroyed once. Messages that expire without being
opened disappear without a broadcast.

# Access

Every operation on an existing message runs Authorize first: only the recipient
may open, read, destroy or inspect a message. Denials are logged and written to
the audit log.

# Restarts

Destruction timers live in memory. After a restart the store's own expiry still
removes opened messages on time, but no message_destroyed is sent for them.

# Errors

All errors match one of ErrValidation, ErrNotFound, ErrAccessDenied,
ErrAlreadyOpened or ErrInternal. Use KindOf to map them to transport responses.
*/
package lifecycle
