// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/models"
)

func newFakeMemoryStore() (*MemoryStore, *clock.Fake) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewMemoryStore(fc), fc
}

func TestMemoryStoreExpiry(t *testing.T) {
	s, fc := newFakeMemoryStore()
	ctx := context.Background()

	if err := s.PutWithExpiry(ctx, newTestMessage("m1"), 50*time.Second); err != nil {
		t.Fatal(err)
	}

	fc.Advance(49 * time.Second)
	if _, err := s.Get(ctx, "m1"); err != nil {
		t.Fatalf("Get before expiry error = %v", err)
	}

	fc.Advance(time.Second)
	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get at expiry error = %v, want ErrNotFound", err)
	}
	if _, res, _ := s.CompareAndSetOpened(ctx, "m1", "bob", fc.Now(), 5*time.Second); res != CASNotFound {
		t.Errorf("CAS after expiry = %v, want CASNotFound", res)
	}
}

func TestMemoryStoreCASShortensExpiry(t *testing.T) {
	s, fc := newFakeMemoryStore()
	ctx := context.Background()

	if err := s.PutWithExpiry(ctx, newTestMessage("m1"), 50*time.Second); err != nil {
		t.Fatal(err)
	}
	fc.Advance(10 * time.Second)

	if _, res, _ := s.CompareAndSetOpened(ctx, "m1", "bob", fc.Now(), 5*time.Second); res != CASSuccess {
		t.Fatalf("CAS res = %v", res)
	}

	fc.Advance(4 * time.Second)
	if _, err := s.Get(ctx, "m1"); err != nil {
		t.Fatalf("Get within post-open ttl error = %v", err)
	}
	fc.Advance(time.Second)
	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after post-open ttl error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreMarkNotifiedKeepsExpiry(t *testing.T) {
	s, fc := newFakeMemoryStore()
	ctx := context.Background()

	if err := s.PutWithExpiry(ctx, newTestMessage("m1"), 20*time.Second); err != nil {
		t.Fatal(err)
	}
	fc.Advance(15 * time.Second)
	if err := s.MarkNotified(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	fc.Advance(5 * time.Second)
	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkNotified extended expiry: err = %v", err)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	s, fc := newFakeMemoryStore()
	ctx := context.Background()

	_ = s.PutWithExpiry(ctx, newTestMessage("short"), time.Second)
	_ = s.PutWithExpiry(ctx, newTestMessage("long"), time.Hour)
	fc.Advance(2 * time.Second)

	removed, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s, _ := newFakeMemoryStore()
	ctx := context.Background()

	msg := newTestMessage("m1")
	_ = s.PutWithExpiry(ctx, msg, time.Minute)
	msg.Ciphertext[0] = 'X'

	got, _ := s.Get(ctx, "m1")
	got.State = models.StateDestroyed

	again, _ := s.Get(ctx, "m1")
	if again.Ciphertext[0] == 'X' {
		t.Error("store shares caller's ciphertext slice")
	}
	if again.State != models.StateCreated {
		t.Error("mutating a returned record changed the store")
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		backend string
		wantErr bool
	}{
		{"memory", config.StoreConfig{Backend: "memory"}, "memory", false},
		{"empty defaults to memory", config.StoreConfig{}, "memory", false},
		{"badger in-memory", config.StoreConfig{Backend: "badger"}, "badger", false},
		{"badger on disk", config.StoreConfig{Backend: "badger", Path: t.TempDir()}, "badger", false},
		{"unknown", config.StoreConfig{Backend: "redis"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer s.Close()
			if s.Backend() != tt.backend {
				t.Errorf("Backend() = %q, want %q", s.Backend(), tt.backend)
			}
		})
	}
}
