// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package relay

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/ephemera/internal/breaker"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
)

// NewNATS connects a Relay to NATS core pub/sub, starting an embedded server first
// when cfg.EmbeddedServer is set. Relayed events are live notifications, so
// JetStream persistence is disabled: an instance that is down misses them.
func NewNATS(cfg config.NATSConfig, origin string, sink FrameSink) (*Relay, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	url := cfg.URL
	var closers []func()
	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(cfg.Port)
		if err != nil {
			return nil, err
		}
		url = srv.ClientURL()
		closers = append(closers, srv.Shutdown)
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("ephemera-" + origin),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		runClosers(closers)
		return nil, fmt.Errorf("create relay publisher: %w", err)
	}

	// No queue group: every instance must see every event.
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     5 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		runClosers(closers)
		return nil, fmt.Errorf("create relay subscriber: %w", err)
	}

	return New(Config{
		Publisher:  pub,
		Subscriber: sub,
		Topic:      cfg.Subject,
		Origin:     origin,
		Sink:       sink,
		Breaker: breaker.Config{
			Name:             "relay-publish",
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          cfg.BreakerTimeout,
			Interval:         time.Minute,
		},
		closers: closers,
	})
}

func runClosers(closers []func()) {
	for _, c := range closers {
		c()
	}
}
