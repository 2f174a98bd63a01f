// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ephemera/internal/api"
	"github.com/tomtom215/ephemera/internal/audit"
	"github.com/tomtom215/ephemera/internal/auth"
	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/directory"
	"github.com/tomtom215/ephemera/internal/lifecycle"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/notifier"
	"github.com/tomtom215/ephemera/internal/push"
	"github.com/tomtom215/ephemera/internal/relay"
	"github.com/tomtom215/ephemera/internal/scheduler"
	"github.com/tomtom215/ephemera/internal/store"
	"github.com/tomtom215/ephemera/internal/supervisor"
	"github.com/tomtom215/ephemera/internal/supervisor/services"
	ws "github.com/tomtom215/ephemera/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	logging.Info().
		Str("instance_id", instanceID).
		Str("environment", cfg.Server.Environment).
		Str("store_backend", cfg.Store.Backend).
		Bool("relay_enabled", cfg.NATS.Enabled).
		Msg("Starting Ephemera with supervisor tree")

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*). Set explicit origins in production.")
	}

	clk := clock.Real()

	st, err := store.New(cfg.Store, clk)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open message store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing message store")
		}
	}()
	logging.Info().Str("backend", st.Backend()).Msg("Message store ready")

	if cfg.Store.Backend == store.TypeMemory {
		logging.Warn().Msg("Memory store selected: pending messages are lost on restart (STORE_BACKEND=badger to keep them)")
	}

	dir, err := directory.New(cfg.Directory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize participant directory")
	}

	pusher, err := push.New(cfg.Push)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize push delivery")
	}
	tokens := push.NewTokenRegistry()
	logging.Info().Str("mode", pusher.Name()).Msg("Offline push configured")

	auditLog := audit.NewLogger(audit.NewMemoryStore(cfg.Audit.Retain), cfg.Audit)
	defer func() {
		if err := auditLog.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit log")
		}
	}()

	hub := ws.NewHub()
	sched := scheduler.New(clk)

	notifierCfg := notifier.Config{
		Sessions: hub,
		Pusher:   pusher,
		Tokens:   tokens,
		Preview:  cfg.Lifecycle.NotificationPreview,
	}

	// Relay is only set when enabled: a typed nil would look present to the notifier.
	var relaySvc *services.RelayService
	if cfg.NATS.Enabled {
		r, err := relay.NewNATS(cfg.NATS, instanceID, hub)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize NATS relay")
		}
		notifierCfg.Relay = r
		relaySvc = services.NewRelayService(r)
		logging.Info().Str("subject", cfg.NATS.Subject).Bool("embedded", cfg.NATS.EmbeddedServer).Msg("NATS relay enabled")
	}
	notify := notifier.New(notifierCfg)

	controller, err := lifecycle.New(lifecycle.Config{
		Store:     st,
		Notifier:  notify,
		Scheduler: sched,
		Directory: dir,
		Audit:     auditLog,
		Clock:     clk,
		Policy:    cfg.Lifecycle,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize lifecycle controller")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	handler, err := api.NewHandler(api.HandlerConfig{
		Controller: controller,
		Hub:        hub,
		Store:      st,
		Scheduler:  sched,
		Tokens:     tokens,
		JWT:        jwtManager,
		Auth:       auth.NewMiddleware(jwtManager, auditLog),
		Config:     cfg,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create API handler")
	}
	router := api.NewRouter(handler, nil)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridges zerolog to slog for sutureslog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	components := supervisor.Components{
		Sweeper:   store.NewSweeper(st, cfg.Store.SweepInterval),
		Scheduler: sched,
		Hub:       hub,
		HTTP:      services.NewHTTPServerService(server, 10*time.Second),
	}
	if relaySvc != nil {
		components.Relay = relaySvc
	}
	added := tree.AddComponents(components)
	logging.Info().Int("services", added).Str("addr", server.Addr).Msg("Supervisor tree assembled")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	// The channel carries exactly one value and is never closed.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// Offline pushes already started are allowed to finish.
	notify.Wait()

	logging.Info().Msg("Ephemera stopped gracefully")
}
