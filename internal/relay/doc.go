// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package relay carries lifecycle events between server instances.

When several instances run behind a load balancer, a participant's sessions may be
connected to an instance other than the one handling the operation. Every event
the notifier delivers locally is also published to a NATS subject through
Watermill. Each instance subscribes to the subject and hands frames for its own
sessions to the websocket hub.

	instance A                         instance B
	notifier ─► hub (local sessions)
	        └─► relay.Publish ─► NATS ─► relay.Serve ─► hub.SendFrame

Messages carry the publishing instance's origin. An instance ignores its own
messages and drops repeated message UUIDs seen within the last five minutes.
Publishing runs behind a circuit breaker so a NATS outage never stalls lifecycle
operations; local delivery is unaffected.

Offline push is decided per instance: an instance with no local session for the
recipient pushes even if another instance has one.
*/
package relay
