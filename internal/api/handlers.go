// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/ephemera/internal/auth"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/lifecycle"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/push"
	"github.com/tomtom215/ephemera/internal/scheduler"
	"github.com/tomtom215/ephemera/internal/store"
	ws "github.com/tomtom215/ephemera/internal/websocket"
)

// maxJSONBodyBytes bounds request bodies that carry no payload.
const maxJSONBodyBytes = 64 << 10

// HandlerConfig wires a Handler. Controller, Hub, Store and JWT are required.
type HandlerConfig struct {
	Controller *lifecycle.Controller
	Hub        *ws.Hub
	Store      store.Store
	Scheduler  *scheduler.Scheduler
	Tokens     *push.TokenRegistry
	JWT        *auth.JWTManager
	Auth       *auth.Middleware
	Config     *config.Config
}

// Handler serves the HTTP and websocket endpoints.
type Handler struct {
	controller *lifecycle.Controller
	hub        *ws.Hub
	store      store.Store
	scheduler  *scheduler.Scheduler
	tokens     *push.TokenRegistry
	jwtManager *auth.JWTManager
	auth       *auth.Middleware
	config     *config.Config
	dispatcher *Dispatcher
	startTime  time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	switch {
	case cfg.Controller == nil:
		return nil, errors.New("api: controller is required")
	case cfg.Hub == nil:
		return nil, errors.New("api: websocket hub is required")
	case cfg.Store == nil:
		return nil, errors.New("api: store is required")
	case cfg.JWT == nil:
		return nil, errors.New("api: JWT manager is required")
	}
	if cfg.Config == nil {
		cfg.Config = &config.Config{}
	}
	if cfg.Tokens == nil {
		cfg.Tokens = push.NewTokenRegistry()
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.NewMiddleware(cfg.JWT, nil)
	}

	return &Handler{
		controller: cfg.Controller,
		hub:        cfg.Hub,
		store:      cfg.Store,
		scheduler:  cfg.Scheduler,
		tokens:     cfg.Tokens,
		jwtManager: cfg.JWT,
		auth:       cfg.Auth,
		config:     cfg.Config,
		dispatcher: NewDispatcher(cfg.Controller),
		startTime:  time.Now(),
	}, nil
}

// getUpgrader creates a WebSocket upgrader with origin checking and a handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates websocket connection origins against the CORS
// allow list. Native clients send no Origin and are admitted on their token alone.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Ctx(r.Context()).Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// decodeJSON reads a JSON body of at most limit bytes into v. The body is read in
// full first: the stream decoder reports a truncated read as a bare EOF.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// bodyErrorMessage describes a decodeJSON failure to the client.
func bodyErrorMessage(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "Request body too large"
	}
	return "Invalid request body"
}

// unixMilli converts t to unix milliseconds, with the zero time as 0.
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
