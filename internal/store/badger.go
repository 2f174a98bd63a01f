// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
	"github.com/tomtom215/ephemera/internal/models"
)

const (
	backendBadger = "badger"

	// badgerKeyPrefix namespaces message records in a shared database.
	badgerKeyPrefix = "msg:"

	// maxTxnAttempts bounds retries after badger.ErrConflict.
	maxTxnAttempts = 8

	// valueLogGCRatio is the discard ratio passed to RunValueLogGC.
	valueLogGCRatio = 0.5
)

// BadgerStore is a Store backed by BadgerDB. Expiry is enforced by badger itself
// (entries are written WithTTL), so expired records vanish even across restarts.
// Badger TTLs have one-second resolution.
//
// Every mutation runs in a single optimistic transaction. When two transactions race on
// the same key, badger rejects the later commit with ErrConflict; the loser retries,
// re-reads the winner's write and resolves accordingly.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
	prefix []byte
	closed bool
	mu     sync.RWMutex
}

// NewBadgerStore wraps an existing database. The database is not closed by Close.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, prefix: []byte(badgerKeyPrefix)}
}

// OpenBadgerStore opens a database at path (in-memory when path is empty) owned by the store.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for messages: %w", err)
	}
	s := NewBadgerStore(db)
	s.ownsDB = true
	return s, nil
}

// Backend returns "badger".
func (s *BadgerStore) Backend() string {
	return backendBadger
}

// DB exposes the underlying database for value log GC scheduling.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerStore) makeKey(id string) []byte {
	key := make([]byte, 0, len(s.prefix)+len(id))
	key = append(key, s.prefix...)
	return append(key, id...)
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		metrics.StoreCASRetries.Inc()
	}
	return err
}

func decodeMessage(item *badger.Item) (*models.Message, error) {
	var msg models.Message
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	}); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// PutWithExpiry writes msg with a badger TTL.
func (s *BadgerStore) PutWithExpiry(ctx context.Context, msg *models.Message, expiry time.Duration) error {
	if err := checkPut(msg, expiry); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := s.makeKey(msg.ID)
	err = s.update(ctx, func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(expiry))
	})
	if err != nil {
		metrics.RecordStoreOperation(backendBadger, "put", "failure")
		return fmt.Errorf("put message: %w", err)
	}
	metrics.RecordStoreOperation(backendBadger, "put", "success")
	return nil
}

// Get reads the live record.
func (s *BadgerStore) Get(_ context.Context, id string) (*models.Message, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var msg *models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get message: %w", err)
		}
		msg, err = decodeMessage(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// CompareAndSetOpened reads, checks and rewrites the record in one transaction.
func (s *BadgerStore) CompareAndSetOpened(ctx context.Context, id, callerID string, openedAt time.Time, newExpiry time.Duration) (*models.Message, CASResult, error) {
	if newExpiry <= 0 {
		return nil, CASNotFound, ErrInvalidExpiry
	}
	if err := s.checkOpen(); err != nil {
		return nil, CASNotFound, err
	}

	key := s.makeKey(id)
	var (
		result  CASResult
		updated *models.Message
	)

	err := s.update(ctx, func(txn *badger.Txn) error {
		updated = nil
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			result = CASNotFound
			return nil
		}
		if err != nil {
			return err
		}

		msg, err := decodeMessage(item)
		if err != nil {
			return err
		}
		if msg.RecipientID != callerID {
			result = CASDenied
			return nil
		}
		if !msg.State.Openable() {
			result = CASConflict
			return nil
		}

		t := openedAt
		msg.State = models.StateOpened
		msg.OpenedAt = &t
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := txn.SetEntry(badger.NewEntry(key, data).WithTTL(newExpiry)); err != nil {
			return err
		}
		result = CASSuccess
		updated = msg
		return nil
	})
	if err != nil {
		metrics.RecordStoreOperation(backendBadger, "cas", "failure")
		return nil, CASNotFound, fmt.Errorf("compare-and-set open: %w", err)
	}

	metrics.RecordStoreOperation(backendBadger, "cas", result.String())
	if result != CASSuccess {
		return nil, result, nil
	}
	return updated, result, nil
}

// MarkNotified rewrites a created record as notified, preserving its badger expiry.
func (s *BadgerStore) MarkNotified(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	key := s.makeKey(id)
	return s.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		msg, err := decodeMessage(item)
		if err != nil {
			return err
		}
		if msg.State != models.StateCreated {
			return nil
		}
		msg.State = models.StateNotified

		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		e := badger.NewEntry(key, data)
		e.ExpiresAt = item.ExpiresAt()
		return txn.SetEntry(e)
	})
}

// Delete removes the record.
func (s *BadgerStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	key := s.makeKey(id)
	var existed bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			existed = false
			return nil
		case err != nil:
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		metrics.RecordStoreOperation(backendBadger, "delete", "failure")
		return false, fmt.Errorf("delete message: %w", err)
	}
	metrics.RecordStoreOperation(backendBadger, "delete", "success")
	return existed, nil
}

// ForEach iterates over live records under the message prefix.
func (s *BadgerStore) ForEach(ctx context.Context, fn func(*models.Message) bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg, err := decodeMessage(it.Item())
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping undecodable message record")
				continue
			}
			if !fn(msg) {
				return nil
			}
		}
		return nil
	})
}

// Sweep runs value log garbage collection. Expired keys are already invisible to
// readers and are dropped by badger compaction, so Sweep reports zero records.
func (s *BadgerStore) Sweep(_ context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if s.db.Opts().InMemory {
		return 0, nil
	}

	for {
		err := s.db.RunValueLogGC(valueLogGCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("value log gc: %w", err)
		}
	}
}

// Close marks the store closed and closes the database if the store opened it.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
