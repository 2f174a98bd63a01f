// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ephemera/internal/breaker"
	"github.com/tomtom215/ephemera/internal/cache"
	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
	"github.com/tomtom215/ephemera/internal/websocket"
)

// Metadata keys set on every relayed message.
const (
	MetadataOrigin      = "origin"
	MetadataParticipant = "participant"
	MetadataEventType   = "event_type"
)

const (
	dedupCapacity = 50000
	dedupTTL      = 5 * time.Minute
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("relay is closed")

// FrameSink delivers encoded frames to local sessions.
type FrameSink interface {
	SendFrame(participantID string, frame []byte) int
}

// envelope is the relayed payload.
type envelope struct {
	Participant string          `json:"participant"`
	Frame       json.RawMessage `json:"frame"`
}

// Config wires a Relay.
type Config struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topic      string

	// Origin identifies this instance. Messages carrying it are not delivered again.
	Origin string

	Sink    FrameSink
	Breaker breaker.Config
	Clock   clock.Clock

	// closers are released by Close after the publisher and subscriber.
	closers []func()
}

// Relay forwards lifecycle events to sessions connected to other instances.
type Relay struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	origin     string
	sink       FrameSink
	breaker    *gobreaker.CircuitBreaker[struct{}]
	seen       *cache.LRU[struct{}]
	closers    []func()

	mu     sync.RWMutex
	closed bool
}

// New creates a Relay over an existing publisher and subscriber.
func New(cfg Config) (*Relay, error) {
	if cfg.Publisher == nil || cfg.Subscriber == nil {
		return nil, errors.New("relay: publisher and subscriber are required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("relay: sink is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("relay: topic is required")
	}
	if cfg.Origin == "" {
		cfg.Origin = uuid.NewString()
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = breaker.DefaultConfig("relay-publish")
	}

	return &Relay{
		publisher:  cfg.Publisher,
		subscriber: cfg.Subscriber,
		topic:      cfg.Topic,
		origin:     cfg.Origin,
		sink:       cfg.Sink,
		breaker:    breaker.New[struct{}](cfg.Breaker),
		seen:       cache.NewLRU[struct{}](dedupCapacity, dedupTTL, cfg.Clock),
		closers:    cfg.closers,
	}, nil
}

// Origin returns this instance's identifier.
func (r *Relay) Origin() string {
	return r.origin
}

// Publish sends ev for participantID to the other instances.
func (r *Relay) Publish(ctx context.Context, participantID string, ev websocket.Event) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	frame, err := websocket.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	payload, err := json.Marshal(envelope{Participant: participantID, Frame: frame})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(MetadataOrigin, r.origin)
	msg.Metadata.Set(MetadataParticipant, participantID)
	msg.Metadata.Set(MetadataEventType, ev.EventType())
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set("correlation_id", cid)
	}

	_, err = r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, r.publisher.Publish(r.topic, msg)
	})
	switch {
	case err == nil:
		metrics.RelayPublished.WithLabelValues("success").Inc()
	case breaker.IsOpen(err):
		metrics.RelayPublished.WithLabelValues("breaker_open").Inc()
	default:
		metrics.RelayPublished.WithLabelValues("failure").Inc()
	}
	return err
}

// Serve consumes relayed events until ctx is cancelled.
func (r *Relay) Serve(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}
	logging.Info().Str("topic", r.topic).Str("origin", r.origin).Msg("Relay subscriber started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.handle(msg)
			msg.Ack()
		}
	}
}

// handle delivers one relayed message locally. Own-origin and repeated messages are
// skipped.
func (r *Relay) handle(msg *message.Message) {
	if msg.Metadata.Get(MetadataOrigin) == r.origin {
		metrics.RelayReceived.WithLabelValues("own_origin").Inc()
		return
	}
	if r.seen.Seen(msg.UUID) {
		metrics.RelayReceived.WithLabelValues("duplicate").Inc()
		return
	}

	var env envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil || env.Participant == "" || len(env.Frame) == 0 {
		metrics.RelayReceived.WithLabelValues("invalid").Inc()
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed relay message")
		return
	}

	r.sink.SendFrame(env.Participant, env.Frame)
	metrics.RelayReceived.WithLabelValues("delivered").Inc()
}

// Close shuts down the publisher and subscriber.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := errors.Join(r.publisher.Close(), r.subscriber.Close())
	for _, c := range r.closers {
		c()
	}
	return err
}

// String implements fmt.Stringer for supervisor logging.
func (r *Relay) String() string {
	return "relay"
}
