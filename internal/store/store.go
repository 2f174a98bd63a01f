// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package store implements the ephemeral message store: a key-value store with
// per-entry expiry that is the single source of truth for whether a message exists
// and whether it has been opened.
//
// The open race is resolved here and only here. CompareAndSetOpened performs the
// created|notified -> opened transition as one atomic store operation, so exactly one
// caller wins even when handlers run in different goroutines.
//
// Two backends are provided:
//   - MemoryStore: a mutex-guarded map with lazy expiry and a periodic sweep
//   - BadgerStore: BadgerDB entries written WithTTL inside optimistic transactions
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/ephemera/internal/models"
)

// Store errors
var (
	// ErrNotFound means the record never existed, expired, or was deleted.
	ErrNotFound = errors.New("message not found")

	// ErrClosed means the store has been closed.
	ErrClosed = errors.New("message store is closed")

	// ErrInvalidExpiry means a non-positive expiry was supplied.
	ErrInvalidExpiry = errors.New("expiry must be positive")

	// ErrInvalidRecord means a record is missing its identifier.
	ErrInvalidRecord = errors.New("message record requires an id")
)

// CASResult is the outcome of CompareAndSetOpened.
type CASResult int

const (
	// CASSuccess means the caller performed the open transition.
	CASSuccess CASResult = iota

	// CASConflict means the message was already opened.
	CASConflict

	// CASNotFound means no live record exists for the id.
	CASNotFound

	// CASDenied means the caller is not the recipient.
	CASDenied
)

// String returns the metric label for r.
func (r CASResult) String() string {
	switch r {
	case CASSuccess:
		return "success"
	case CASConflict:
		return "conflict"
	case CASNotFound:
		return "not_found"
	case CASDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Store is the ephemeral message store.
type Store interface {
	// PutWithExpiry writes msg, replacing any existing record, expiring after expiry.
	PutWithExpiry(ctx context.Context, msg *models.Message, expiry time.Duration) error

	// Get returns a copy of the live record or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Message, error)

	// CompareAndSetOpened atomically moves a created or notified message to opened,
	// sets OpenedAt and replaces its expiry with newExpiry. On CASSuccess the returned
	// message is the updated record. On any other result the message is nil.
	CompareAndSetOpened(ctx context.Context, id, callerID string, openedAt time.Time, newExpiry time.Duration) (*models.Message, CASResult, error)

	// MarkNotified moves a created message to notified, keeping its remaining expiry.
	// It is a no-op for any other state and returns ErrNotFound for absent records.
	MarkNotified(ctx context.Context, id string) error

	// Delete removes the record. existed reports whether a live record was removed.
	Delete(ctx context.Context, id string) (existed bool, err error)

	// ForEach calls fn with a copy of every live record until fn returns false.
	ForEach(ctx context.Context, fn func(*models.Message) bool) error

	// Sweep purges expired records and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	// Backend names the implementation for logs and metrics.
	Backend() string

	Close() error
}

// checkPut validates arguments shared by every backend's PutWithExpiry.
func checkPut(msg *models.Message, expiry time.Duration) error {
	if msg == nil || msg.ID == "" {
		return ErrInvalidRecord
	}
	if expiry <= 0 {
		return ErrInvalidExpiry
	}
	return nil
}
