// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package main is the entry point for the Ephemera server.

Ephemera relays end-to-end encrypted messages that are readable exactly once. A
message waits in the ephemeral store until its recipient opens it, is destroyed a
few seconds after that, and disappears on its own if nobody ever opens it. The
server never sees plaintext.

# Application Architecture

	RootSupervisor ("ephemera")
	├── DataSupervisor ("data-layer")
	│   ├── Store sweeper
	│   └── Destruction scheduler
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub
	│   └── NATS relay (optional, NATS_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment variables
 2. Logging: zerolog with JSON or console output
 3. Store: in-memory or BadgerDB
 4. Directory, push and audit collaborators
 5. WebSocket hub, relay and notifier
 6. Lifecycle controller
 7. Authentication and HTTP router
 8. Supervisor tree

# Configuration

Commonly set variables:

	JWT_SECRET           32+ character HMAC secret (required)
	HTTP_PORT            listen port (default 8460)
	ENVIRONMENT          development or production
	STORE_BACKEND        memory or badger
	STORE_PATH           badger directory, empty for in-memory badger
	DEFAULT_TTL_SECONDS  countdown after open when a send omits it (default 5)
	NATS_ENABLED         relay lifecycle events between instances
	NATS_EMBEDDED        run an embedded NATS server
	PUSH_MODE            log, webhook or disabled
	DIRECTORY_MODE       open, static or http
	DEV_TOKEN_ISSUER     expose POST /api/v1/auth/token (refused in production)

# Example Usage

Single development instance:

	export JWT_SECRET=$(openssl rand -base64 32)
	export DEV_TOKEN_ISSUER=true
	export LOG_FORMAT=console
	./ephemera

Two instances sharing an embedded NATS server on the first:

	NATS_ENABLED=true NATS_EMBEDDED=true HTTP_PORT=8460 ./ephemera
	NATS_ENABLED=true NATS_URL=nats://127.0.0.1:4222 HTTP_PORT=8461 ./ephemera

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains in-flight
requests, the hub closes every session, pending destruction timers are released
and the store is closed.
*/
package main
