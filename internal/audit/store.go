// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package audit

import (
	"context"
	"slices"
	"sync"
)

// DefaultRetain is the ring size used when none is configured.
const DefaultRetain = 10000

// MemoryStore implements Store as a bounded ring of the most recent events.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewMemoryStore creates a store that keeps the last retain events.
func NewMemoryStore(retain int) *MemoryStore {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &MemoryStore{events: make([]Event, retain)}
}

// Save stores an event, overwriting the oldest when the ring is full.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[s.next] = *event
	s.next++
	if s.next == len(s.events) {
		s.next = 0
		s.full = true
	}
	return nil
}

// Query returns matching events, newest first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Event
	s.eachNewestFirst(func(e *Event) bool {
		if matchesFilter(e, &filter) {
			results = append(results, *e)
		}
		return filter.Limit <= 0 || len(results) < filter.Limit
	})
	return results, nil
}

// Count returns the number of events matching the filter, ignoring its limit.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	s.eachNewestFirst(func(e *Event) bool {
		if matchesFilter(e, &filter) {
			count++
		}
		return true
	})
	return count, nil
}

// Len returns the number of events held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.events)
	}
	return s.next
}

// eachNewestFirst walks the ring backwards from the last write. Caller holds mu.
func (s *MemoryStore) eachNewestFirst(fn func(*Event) bool) {
	n := s.next
	if s.full {
		n = len(s.events)
	}
	for i := 0; i < n; i++ {
		idx := (s.next - 1 - i + len(s.events)) % len(s.events)
		if !fn(&s.events[idx]) {
			return
		}
	}
}

func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 && !slices.Contains(filter.Types, event.Type) {
		return false
	}
	if filter.ActorID != "" && event.Actor.ID != filter.ActorID {
		return false
	}
	if filter.TargetID != "" {
		if event.Target == nil || event.Target.ID != filter.TargetID {
			return false
		}
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}
