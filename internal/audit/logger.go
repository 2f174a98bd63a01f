// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package audit

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
)

const defaultBufferSize = 1000

// Logger is the asynchronous audit logging service.
type Logger struct {
	enabled     bool
	minLevel    Severity
	logToStdout bool

	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// NewLogger creates an audit logger writing to store and starts its writer goroutine.
func NewLogger(store Store, cfg config.AuditConfig) *Logger {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	l := &Logger{
		enabled:     cfg.Enabled,
		minLevel:    ParseSeverity(cfg.MinLevel),
		logToStdout: cfg.LogToStdout,
		store:       store,
		eventChan:   make(chan *Event, size),
		stopChan:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

// asyncWriter processes events from the buffer.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	if l.logToStdout {
		data, err := json.Marshal(event)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to marshal audit event")
		} else {
			logging.Info().RawJSON("audit", data).Str("audit_type", string(event.Type)).Msg("Audit event")
		}
	}

	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Msg("Failed to save audit event")
		}
	}
}

// Log records an audit event without blocking. A nil Logger discards events.
func (l *Logger) Log(event *Event) {
	if l == nil || !l.enabled || l.closed.Load() {
		return
	}
	if severityOrder[event.Severity] < severityOrder[l.minLevel] {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case l.eventChan <- event:
	default:
		metrics.AuditEventsDropped.Inc()
		logging.Warn().Str("event_id", event.ID).Msg("Audit event buffer full, dropping event")
	}
}

// Close stops the writer after draining buffered events. Events logged after
// Close are dropped.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		close(l.stopChan)
	})
	l.wg.Wait()
	return nil
}

// LogAccessDenied records that callerID tried to act on a message addressed to someone else.
func (l *Logger) LogAccessDenied(ctx context.Context, callerID, messageID, action string) {
	l.Log(&Event{
		Type:     EventTypeAccessDenied,
		Severity: SeverityWarning,
		Outcome:  OutcomeFailure,
		Actor:    participantActor(callerID),
		Action:   action,
		Target: &Target{
			ID:   messageID,
			Type: "message",
		},
		Description:   "Access denied: " + action + " by non-recipient",
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		RequestID:     logging.RequestIDFromContext(ctx),
	})
}

// LogAuthFailure records a rejected bearer token.
func (l *Logger) LogAuthFailure(ctx context.Context, source Source, reason string) {
	l.Log(&Event{
		Type:        EventTypeAuthFailure,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       Actor{ID: "anonymous", Type: "participant"},
		Source:      source,
		Action:      "authenticate",
		Description: "Authentication failed",
		Metadata:    mustJSON(map[string]string{"reason": reason}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogMessageDestroyed records an explicit destroy by the recipient.
func (l *Logger) LogMessageDestroyed(ctx context.Context, callerID, messageID string) {
	l.Log(&Event{
		Type:     EventTypeMessageDestroyed,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Actor:    participantActor(callerID),
		Action:   "destroy",
		Target: &Target{
			ID:   messageID,
			Type: "message",
		},
		Description:   "Message destroyed by recipient",
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		RequestID:     logging.RequestIDFromContext(ctx),
	})
}

// mustJSON converts a value to JSON, returning empty object on error.
func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func participantActor(id string) Actor {
	return Actor{ID: id, Type: "participant"}
}

// SourceFromRequest creates a Source from an HTTP request.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip = xff
	} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip = xri
	}

	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
