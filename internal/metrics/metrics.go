// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package metrics holds the Prometheus instruments for Ephemera.
//
// Instruments are registered on the default registry through promauto and
// served at /metrics. Labels never carry message or participant identifiers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lifecycle Metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_messages_sent_total",
			Help: "Total number of messages accepted for delivery",
		},
		[]string{"kind"}, // text, image
	)

	MessageOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_message_opens_total",
			Help: "Total number of open attempts by outcome",
		},
		[]string{"kind", "outcome"}, // success, not_found, access_denied, already_opened, error
	)

	MessagesDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_messages_destroyed_total",
			Help: "Total number of destroyed broadcasts by trigger",
		},
		[]string{"trigger"}, // explicit, timer
	)

	OpenToDestroySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ephemera_open_to_destroy_seconds",
			Help:    "Time between a message being opened and its destroyed broadcast",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 300, 3600},
		},
	)

	// Store Metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_store_operations_total",
			Help: "Total number of ephemeral store operations",
		},
		[]string{"backend", "operation", "outcome"},
	)

	StoreCASRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ephemera_store_cas_retries_total",
			Help: "Transaction conflicts retried during compare-and-set open",
		},
	)

	StoreSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_store_swept_total",
			Help: "Expired records purged by the store sweeper",
		},
		[]string{"backend"},
	)

	// Scheduler Metrics
	ScheduledDestructions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ephemera_scheduled_destructions",
			Help: "Current number of pending destruction timers",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ephemera_websocket_connections",
			Help: "Current number of active WebSocket sessions",
		},
	)

	WSEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_websocket_events_sent_total",
			Help: "Total number of events queued to sessions",
		},
		[]string{"type"},
	)

	WSEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_websocket_events_received_total",
			Help: "Total number of events received from sessions",
		},
		[]string{"type"},
	)

	WSEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ephemera_websocket_events_dropped_total",
			Help: "Events dropped because a session's send buffer was full",
		},
	)

	// Offline Push Metrics
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_push_deliveries_total",
			Help: "Offline push hand-offs by outcome",
		},
		[]string{"pusher", "outcome"},
	)

	// Relay Metrics
	RelayPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_relay_published_total",
			Help: "Lifecycle events published to the cross-instance relay",
		},
		[]string{"outcome"}, // success, failure, breaker_open
	)

	RelayReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_relay_received_total",
			Help: "Lifecycle events received from the cross-instance relay",
		},
		[]string{"outcome"}, // delivered, own_origin, duplicate, invalid
	)

	// Directory Metrics
	DirectoryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_directory_lookups_total",
			Help: "Recipient directory lookups by source and result",
		},
		[]string{"source", "result"}, // source: cache, backend; result: found, missing, error
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ephemera_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Audit Metrics
	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ephemera_audit_events_dropped_total",
			Help: "Security audit events dropped because the buffer was full",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemera_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ephemera_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ephemera_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStoreOperation counts one store operation.
func RecordStoreOperation(backend, operation, outcome string) {
	StoreOperations.WithLabelValues(backend, operation, outcome).Inc()
}

// RecordOpen counts an open attempt.
func RecordOpen(kind, outcome string) {
	MessageOpens.WithLabelValues(kind, outcome).Inc()
}

// RecordDestroyed counts a destroyed broadcast and, when the open time is known,
// observes the open-to-destroy latency.
func RecordDestroyed(trigger string, openedAt *time.Time, now time.Time) {
	MessagesDestroyed.WithLabelValues(trigger).Inc()
	if openedAt != nil {
		OpenToDestroySeconds.Observe(now.Sub(*openedAt).Seconds())
	}
}
