// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package api provides the HTTP and websocket surface of Ephemera.

Routes:

	GET  /api/v1/health[/live|/ready]           health probes
	GET  /metrics                               Prometheus metrics
	POST /api/v1/auth/token                     development token issuer (never in production)
	POST /messages/send-image                   store an encrypted image for its recipient
	GET  /messages/image/stats                  caller's live image statistics
	GET  /messages/image/{id}                   open an image (recipient only, once)
	GET  /messages/image/{id}/thumbnail         auxiliary data, does not open
	POST /messages/image/{id}/viewed            open without returning content
	POST /api/v1/push-token                     register a device token (DELETE to remove)
	GET  /ws                                    duplex session

Everything but health, metrics and the token issuer requires a bearer token, taken
from the Authorization header, the token query parameter or the token cookie.

Responses use the APIResponse envelope. Lifecycle errors map to status codes:

	not found       404 NOT_FOUND
	access denied   403 FORBIDDEN
	already opened  410 ALREADY_OPENED
	validation      400 VALIDATION_FAILED
	internal        500 INTERNAL_ERROR

Websocket frames are {"type": "...", "data": {...}} and are handled by Dispatcher.
Replies to a request (message_content and the error events) go to the session that
asked; lifecycle notifications reach every session of each party.
*/
package api
