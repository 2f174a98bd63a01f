// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/ephemera/internal/logging"
)

// RelayRunner is the lifecycle of *relay.Relay.
type RelayRunner interface {
	Serve(ctx context.Context) error
	Close() error
}

// RelayService runs the cross-instance relay under suture.
//
// A subscription failure is returned so suture restarts the subscriber with
// backoff. On shutdown the relay, its NATS connection and any embedded server are
// closed within shutdownTimeout.
type RelayService struct {
	relay           RelayRunner
	shutdownTimeout time.Duration
	name            string
}

// NewRelayService wraps relay with a 10s shutdown timeout.
func NewRelayService(relay RelayRunner) *RelayService {
	return NewRelayServiceWithTimeout(relay, 10*time.Second)
}

// NewRelayServiceWithTimeout wraps relay. A non-positive timeout means 10s.
func NewRelayServiceWithTimeout(relay RelayRunner, shutdownTimeout time.Duration) *RelayService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &RelayService{
		relay:           relay,
		shutdownTimeout: shutdownTimeout,
		name:            "relay",
	}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	err := s.relay.Serve(ctx)
	if ctx.Err() == nil {
		if err == nil {
			return errors.New("relay subscription ended")
		}
		return fmt.Errorf("relay failed: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.relay.Close() }()

	select {
	case cerr := <-done:
		if cerr != nil {
			logging.Warn().Err(cerr).Msg("Relay close reported an error")
		}
	case <-time.After(s.shutdownTimeout):
		logging.Warn().Dur("timeout", s.shutdownTimeout).Msg("Relay close timed out")
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *RelayService) String() string {
	return s.name
}
