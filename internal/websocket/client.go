// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
)

// Default connection settings, used when a config value is zero.
const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 16 << 20 // ciphertext frames for images
	defaultSendBuffer     = 256
)

// clientIDCounter gives clients monotonically increasing IDs so fan-out order is deterministic.
var clientIDCounter atomic.Uint64

// Handler processes inbound events. It runs on the client's read goroutine, so
// events from one connection are handled in the order they arrived.
type Handler interface {
	HandleEvent(ctx context.Context, c *Client, ev Inbound)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, c *Client, ev Inbound)

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, c *Client, ev Inbound) {
	f(ctx, c, ev)
}

// Client is one authenticated websocket session, the middleman between the
// connection and the hub.
type Client struct {
	id            uint64
	participantID string
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	handler       Handler
	ctx           context.Context

	writeWait      time.Duration
	pongWait       time.Duration
	maxMessageSize int64
}

// NewClient creates a session for participantID. Values in ctx (request ID, log fields)
// are passed to the handler with every event; its cancellation is not.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, participantID string, handler Handler, cfg config.WebSocketConfig) *Client {
	c := &Client{
		id:             clientIDCounter.Add(1),
		participantID:  participantID,
		hub:            hub,
		conn:           conn,
		handler:        handler,
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		maxMessageSize: cfg.MaxMessageSize,
	}
	if c.writeWait <= 0 {
		c.writeWait = defaultWriteWait
	}
	if c.pongWait <= 0 {
		c.pongWait = defaultPongWait
	}
	if c.maxMessageSize <= 0 {
		c.maxMessageSize = defaultMaxMessageSize
	}
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	c.send = make(chan []byte, buffer)

	if ctx == nil {
		ctx = context.Background()
	}
	// The upgrade request's context ends when the handler returns; the session outlives it.
	ctx = context.WithoutCancel(ctx)
	c.ctx = logging.ContextWithParticipant(logging.ContextWithNewCorrelationID(ctx), participantID)
	return c
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// ParticipantID returns the authenticated participant owning the session.
func (c *Client) ParticipantID() string {
	return c.participantID
}

// Send queues ev for this session only. It returns false if the session is gone or
// its buffer is full.
func (c *Client) Send(ev Event) bool {
	frame, err := Encode(ev)
	if err != nil {
		logging.Ctx(c.ctx).Error().Err(err).Str("event_type", ev.EventType()).Msg("failed to encode websocket event")
		return false
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.sessions[c.participantID][c]; !ok {
		return false
	}
	select {
	case c.send <- frame:
		metrics.WSEventsSent.WithLabelValues(ev.EventType()).Inc()
		return true
	default:
		metrics.WSEventsDropped.Inc()
		return false
	}
}

// Start registers the client and begins reading and writing. It returns false when
// the hub has shut down, in which case the connection is closed.
func (c *Client) Start() bool {
	if !c.hub.Register(c) {
		_ = c.conn.Close()
		return false
	}
	go c.writePump()
	go c.readPump()
	return true
}

// readPump pumps frames from the connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		logging.Ctx(c.ctx).Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Ctx(c.ctx).Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}

		ev, err := DecodeInbound(raw)
		if err != nil {
			metrics.WSEventsReceived.WithLabelValues("invalid").Inc()
			logging.Ctx(c.ctx).Debug().Err(err).Msg("rejected websocket frame")
			c.Send(MessageError{ErrorBody{Error: decodeErrorText(err)}})
			continue
		}
		metrics.WSEventsReceived.WithLabelValues(ev.EventType()).Inc()

		if c.handler != nil {
			c.handler.HandleEvent(c.ctx, c, ev)
		}
	}
}

// writePump pumps frames from the send buffer to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker((c.pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				logging.Ctx(c.ctx).Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Ctx(c.ctx).Debug().Err(err).Msg("failed to write websocket frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func decodeErrorText(err error) string {
	if errors.Is(err, ErrUnknownEvent) {
		return "unknown event type"
	}
	return "malformed event"
}
