// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package supervisor runs Ephemera's long-lived components under a suture v4 tree.

	ephemera (root)
	├── data-layer       store sweeper, destruction scheduler
	├── messaging-layer  websocket hub, cross-instance relay
	└── api-layer        HTTP server

Each layer restarts its own services with backoff. Supervisor events are logged
through sutureslog using the slog bridge from the logging package.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddComponents(supervisor.Components{
		Sweeper:   store.NewSweeper(st, cfg.Store.SweepInterval),
		Scheduler: sched,
		Hub:       hub,
		Relay:     services.NewRelayService(r),
		HTTP:      services.NewHTTPServerService(srv, cfg.Server.Timeout),
	})
	return tree.Serve(ctx)

Canceling ctx stops every service. The HTTP server drains in-flight requests, the
hub closes every session and the scheduler releases its timers. Messages held by
the memory backend do not survive a process restart.
*/
package supervisor
