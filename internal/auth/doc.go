// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package auth authenticates participants with HS256 JWT bearer tokens.

The token subject is the participant identifier. Every HTTP route except health,
metrics and the development token issuer requires a token, and websocket upgrades
are authenticated with the same token before the connection is accepted.

Token lookup order:

  - Authorization: Bearer <token>
  - ?token=<token> (websocket clients in browsers)
  - token cookie

Failed authentications are written to the audit log with the client address.

Usage:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	mw := auth.NewMiddleware(jwtManager, auditLogger)
	r.With(mw.Authenticate).Get("/messages/image/{id}", h.GetImage)

	// In a handler
	participantID := auth.ParticipantFromContext(r.Context())
*/
package auth
