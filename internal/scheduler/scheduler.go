// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package scheduler holds one cancellable destruction timer per opened message.
//
// A timer is armed when a message is opened and fires ttlSeconds later. An explicit
// destroy cancels it so the destroyed broadcast is sent exactly once. Timers are
// process-local: a restart loses them, and the store's own expiry still removes
// the record.
//
// Callbacks run on the clock's timer goroutine (or synchronously inside
// clock.Fake.Advance in tests) and never while the scheduler lock is held.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
)

type entry struct {
	gen   uint64
	timer *clock.Timer
}

// Scheduler tracks pending destruction timers keyed by message id.
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	pending map[string]*entry
	nextGen uint64
	stopped bool
}

// New creates a Scheduler. A nil clk uses the real clock.
func New(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{
		clock:   clk,
		pending: make(map[string]*entry),
	}
}

// Handle identifies one scheduled action. It stays valid after the id is rescheduled,
// but then refers to the replaced action and Cancel returns false.
type Handle struct {
	s   *Scheduler
	id  string
	gen uint64
}

// Cancel stops this action if it is still pending.
func (h *Handle) Cancel() bool {
	if h == nil || h.s == nil {
		return false
	}
	return h.s.cancel(h.id, h.gen)
}

// ID returns the message id the action belongs to.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Schedule runs fn once after the given delay. Scheduling an id that already has a
// pending action replaces it. After Stop, Schedule does nothing and returns a handle
// whose Cancel reports false.
func (s *Scheduler) Schedule(id string, after time.Duration, fn func()) *Handle {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		logging.Debug().Str("message_id", id).Msg("Scheduler stopped, destruction timer not armed")
		return &Handle{}
	}
	previous := s.pending[id]
	s.nextGen++
	e := &entry{gen: s.nextGen}
	s.pending[id] = e
	metrics.ScheduledDestructions.Set(float64(len(s.pending)))
	s.mu.Unlock()

	if previous != nil && previous.timer != nil {
		previous.timer.Stop()
	}

	// AfterFunc may run the callback before returning, so it is called unlocked.
	t := s.clock.AfterFunc(after, func() {
		if !s.claim(id, e.gen) {
			return
		}
		fn()
	})

	s.mu.Lock()
	if cur, ok := s.pending[id]; ok && cur == e {
		e.timer = t
	}
	s.mu.Unlock()

	return &Handle{s: s, id: id, gen: e.gen}
}

// claim removes the entry for id if gen is still current. Only a successful claim
// may run the action.
func (s *Scheduler) claim(id string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[id]
	if !ok || e.gen != gen {
		return false
	}
	delete(s.pending, id)
	metrics.ScheduledDestructions.Set(float64(len(s.pending)))
	return true
}

// Cancel stops the pending action for id. It returns false when nothing was pending,
// including when the action has already started running.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	e, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
		metrics.ScheduledDestructions.Set(float64(len(s.pending)))
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	return true
}

func (s *Scheduler) cancel(id string, gen uint64) bool {
	s.mu.Lock()
	e, ok := s.pending[id]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, id)
	metrics.ScheduledDestructions.Set(float64(len(s.pending)))
	s.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	return true
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// IsPending reports whether id has an armed timer.
func (s *Scheduler) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// Stop cancels every pending timer and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	pending := s.pending
	s.pending = make(map[string]*entry)
	metrics.ScheduledDestructions.Set(0)
	s.mu.Unlock()

	for _, e := range pending {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	if len(pending) > 0 {
		logging.Info().Int("cancelled", len(pending)).Msg("Destruction scheduler stopped with pending timers")
	}
}

// Serve blocks until ctx is done and then stops the scheduler. It lets the
// scheduler run as a supervised service so shutdown releases every timer.
func (s *Scheduler) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// String names the service for the supervisor.
func (s *Scheduler) String() string {
	return "destruction-scheduler"
}
