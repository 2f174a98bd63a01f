// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package middleware provides HTTP middleware shared by every route.

Key Components:

  - RequestID: UUID-based request tracking, feeding request_id and correlation_id
    into the logging context
  - PrometheusMetrics: request count, latency and in-flight gauges labelled by chi
    route pattern

Both are written as http.HandlerFunc decorators and adapted to chi in the api
package:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

PrometheusMetrics passes Hijack through so websocket upgrades can be measured too.
*/
package middleware
