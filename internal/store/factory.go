// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/logging"
)

// Backend type names accepted in configuration.
const (
	TypeMemory = backendMemory
	TypeBadger = backendBadger
)

// New creates the Store selected by cfg.
func New(cfg config.StoreConfig, clk clock.Clock) (Store, error) {
	switch cfg.Backend {
	case TypeMemory, "":
		return NewMemoryStore(clk), nil
	case TypeBadger:
		s, err := OpenBadgerStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Sweeper periodically purges expired records. It implements suture.Service.
type Sweeper struct {
	store    Store
	interval time.Duration
}

// NewSweeper creates a Sweeper running every interval.
func NewSweeper(s Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: s, interval: interval}
}

// Serve runs until ctx is canceled.
func (w *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := w.store.Sweep(ctx)
			if err != nil {
				logging.Error().Err(err).Str("backend", w.store.Backend()).Msg("Store sweep failed")
				continue
			}
			if removed > 0 {
				logging.Debug().Int("removed", removed).Str("backend", w.store.Backend()).Msg("Store sweep completed")
			}
		}
	}
}

// String names the service for the supervisor.
func (w *Sweeper) String() string {
	return "store-sweeper-" + w.store.Backend()
}
