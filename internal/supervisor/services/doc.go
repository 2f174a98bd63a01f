// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package services adapts components whose lifecycle is not already a
suture.Service.

HTTPServerService translates ListenAndServe and Shutdown into Serve, draining
in-flight requests within a timeout.

RelayService runs the relay subscriber, returns subscription failures so suture
restarts it, and closes the NATS connection on shutdown.

The websocket hub, destruction scheduler and store sweeper implement
suture.Service themselves and are added to the tree directly.
*/
package services
