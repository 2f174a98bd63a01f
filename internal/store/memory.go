// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/metrics"
	"github.com/tomtom215/ephemera/internal/models"
)

const backendMemory = "memory"

type memoryEntry struct {
	msg       *models.Message
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired entries are invisible immediately and
// physically removed by Sweep. Records are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]*memoryEntry
	closed  bool
}

// NewMemoryStore creates a MemoryStore using clk for expiry. A nil clk uses the real clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{
		clock:   clk,
		entries: make(map[string]*memoryEntry),
	}
}

// Backend returns "memory".
func (s *MemoryStore) Backend() string {
	return backendMemory
}

// liveLocked returns the entry for id if present and unexpired. Must hold s.mu.
func (s *MemoryStore) liveLocked(id string) (*memoryEntry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, id)
		return nil, false
	}
	return e, true
}

// PutWithExpiry stores a copy of msg.
func (s *MemoryStore) PutWithExpiry(_ context.Context, msg *models.Message, expiry time.Duration) error {
	if err := checkPut(msg, expiry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.entries[msg.ID] = &memoryEntry{
		msg:       msg.Clone(),
		expiresAt: s.clock.Now().Add(expiry),
	}
	metrics.RecordStoreOperation(backendMemory, "put", "success")
	return nil
}

// Get returns a copy of the live record.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	e, ok := s.liveLocked(id)
	if !ok {
		return nil, ErrNotFound
	}
	return e.msg.Clone(), nil
}

// CompareAndSetOpened performs the open transition under the store mutex.
func (s *MemoryStore) CompareAndSetOpened(_ context.Context, id, callerID string, openedAt time.Time, newExpiry time.Duration) (*models.Message, CASResult, error) {
	if newExpiry <= 0 {
		return nil, CASNotFound, ErrInvalidExpiry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, CASNotFound, ErrClosed
	}

	result := CASSuccess
	defer func() { metrics.RecordStoreOperation(backendMemory, "cas", result.String()) }()

	e, ok := s.liveLocked(id)
	switch {
	case !ok:
		result = CASNotFound
		return nil, result, nil
	case e.msg.RecipientID != callerID:
		result = CASDenied
		return nil, result, nil
	case !e.msg.State.Openable():
		result = CASConflict
		return nil, result, nil
	}

	t := openedAt
	e.msg.State = models.StateOpened
	e.msg.OpenedAt = &t
	e.expiresAt = s.clock.Now().Add(newExpiry)
	return e.msg.Clone(), result, nil
}

// MarkNotified moves a created record to notified.
func (s *MemoryStore) MarkNotified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	e, ok := s.liveLocked(id)
	if !ok {
		return ErrNotFound
	}
	if e.msg.State == models.StateCreated {
		e.msg.State = models.StateNotified
	}
	return nil
}

// Delete removes the record for id.
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	_, existed := s.liveLocked(id)
	delete(s.entries, id)
	metrics.RecordStoreOperation(backendMemory, "delete", "success")
	return existed, nil
}

// ForEach iterates over copies of the live records. fn runs without the lock held.
func (s *MemoryStore) ForEach(ctx context.Context, fn func(*models.Message) bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	now := s.clock.Now()
	snapshot := make([]*models.Message, 0, len(s.entries))
	for _, e := range s.entries {
		if now.Before(e.expiresAt) {
			snapshot = append(snapshot, e.msg.Clone())
		}
	}
	s.mu.Unlock()

	for _, m := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(m) {
			return nil
		}
	}
	return nil
}

// Sweep removes expired entries.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	now := s.clock.Now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	metrics.StoreSwept.WithLabelValues(backendMemory).Add(float64(removed))
	return removed, nil
}

// Len returns the number of entries held, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close drops every record.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
