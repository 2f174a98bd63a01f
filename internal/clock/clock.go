// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package clock abstracts wall-clock time so expiry and destruction timing can be
// driven deterministically in tests.
//
// Production code uses Real(). Tests use NewFake and move time with Advance:
//
//	fc := clock.NewFake(time.Unix(0, 0))
//	fc.AfterFunc(5*time.Second, destroy)
//	fc.Advance(5 * time.Second) // destroy runs synchronously here
package clock

import (
	"time"
)

// Clock is the time source used by the store, scheduler and lifecycle controller.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer can cancel the call.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks every d on Ticker.C. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending single-shot callback.
type Timer struct {
	stop func() bool
}

// Stop cancels the callback. It returns false if the callback already ran or was stopped.
func (t *Timer) Stop() bool {
	return t.stop()
}

// Ticker delivers periodic ticks on C.
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() {
	t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
