// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package directory

import (
	"context"
	"time"

	"github.com/tomtom215/ephemera/internal/cache"
	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/metrics"
)

// negativeTTLDivisor shortens the lifetime of "missing" answers so newly
// registered users become reachable quickly.
const negativeTTLDivisor = 10

// Cached puts a TTL LRU in front of another Directory. Errors are never cached.
type Cached struct {
	next    Directory
	entries *cache.LRU[bool]
	ttl     time.Duration
}

// NewCached wraps next. A nil clk uses the real clock.
func NewCached(next Directory, size int, ttl time.Duration, clk clock.Clock) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		next:    next,
		entries: cache.NewLRU[bool](size, ttl, clk),
		ttl:     ttl,
	}
}

// Exists implements Directory.
func (c *Cached) Exists(ctx context.Context, participantID string) (bool, error) {
	if found, ok := c.entries.Get(participantID); ok {
		metrics.DirectoryLookups.WithLabelValues("cache", resultLabel(found, nil)).Inc()
		return found, nil
	}

	found, err := c.next.Exists(ctx, participantID)
	if err != nil {
		return false, err
	}
	if found {
		c.entries.Add(participantID, true)
	} else {
		c.entries.AddWithTTL(participantID, false, c.ttl/negativeTTLDivisor)
	}
	return found, nil
}
