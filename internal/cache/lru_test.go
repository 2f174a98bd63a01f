// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package cache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/ephemera/internal/clock"
)

func newFakeLRU(capacity int, ttl time.Duration) (*LRU[bool], *clock.Fake) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return NewLRU[bool](capacity, ttl, fc), fc
}

func TestLRU_BasicOperations(t *testing.T) {
	c, _ := newFakeLRU(3, time.Minute)
	c.Add("a", true)
	c.Add("b", false)

	if v, ok := c.Get("a"); !ok || !v {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v {
		t.Errorf("Get(b) = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) found")
	}
	if !c.Remove("a") || c.Remove("a") {
		t.Error("Remove did not report presence correctly")
	}

	hits, misses, size := c.Stats()
	if hits != 2 || misses != 1 || size != 1 {
		t.Errorf("Stats() = %d, %d, %d", hits, misses, size)
	}
}

func TestLRU_Eviction(t *testing.T) {
	c, _ := newFakeLRU(3, time.Minute)
	c.Add("a", true)
	c.Add("b", true)
	c.Add("c", true)

	c.Get("a")
	c.Add("d", true)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to be present", k)
		}
	}
}

func TestLRU_TTL(t *testing.T) {
	c, fc := newFakeLRU(10, time.Minute)
	c.Add("a", true)
	c.AddWithTTL("short", true, time.Second)

	fc.Advance(time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("short entry survived its ttl")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a expired early")
	}

	fc.Advance(time.Minute)
	if removed := c.CleanupExpired(); removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestLRU_Seen(t *testing.T) {
	c, fc := newFakeLRU(10, time.Second)
	if c.Seen("evt") {
		t.Fatal("first Seen() = true")
	}
	if !c.Seen("evt") {
		t.Fatal("second Seen() = false")
	}
	fc.Advance(time.Second)
	if c.Seen("evt") {
		t.Error("Seen() = true after ttl")
	}
}

func TestLRU_SeenConcurrent(t *testing.T) {
	c := NewLRU[struct{}](1000, time.Minute, nil)
	var (
		wg    sync.WaitGroup
		fresh atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen("same") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	if fresh.Load() != 1 {
		t.Errorf("fresh = %d, want 1", fresh.Load())
	}
}

func TestLRU_LoadOrStore(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	c := NewLRU[string](10, time.Minute, fc)

	if v, loaded := c.LoadOrStore("m1", "bob"); loaded || v != "bob" {
		t.Errorf("first LoadOrStore = %q, %v", v, loaded)
	}
	if v, loaded := c.LoadOrStore("m1", "carol"); !loaded || v != "bob" {
		t.Errorf("second LoadOrStore = %q, %v, want the stored value", v, loaded)
	}

	fc.Advance(time.Minute)
	if v, loaded := c.LoadOrStore("m1", "carol"); loaded || v != "carol" {
		t.Errorf("LoadOrStore after expiry = %q, %v", v, loaded)
	}
}

func TestLRU_Defaults(t *testing.T) {
	c := NewLRU[int](0, 0, nil)
	for i := 0; i < 10001; i++ {
		c.Add(strconv.Itoa(i), i)
	}
	if c.Len() != 10000 {
		t.Errorf("Len() = %d, want default capacity 10000", c.Len())
	}
	if _, ok := c.Get("0"); ok {
		t.Error("oldest entry not evicted")
	}
}
