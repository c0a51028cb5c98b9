package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetSet(t *testing.T) {
	c := NewMemoryCache[string](4)
	c.Set("a", "1", 0)

	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Fatalf("expected hit with '1', got %q ok=%v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache[int](4).WithClock(clock.Now)
	c.Set("k", 7, 30*time.Minute)

	clock.Advance(29 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected entry to be live before TTL")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire at TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be removed, len=%d", c.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewMemoryCache[int](2)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a") // a is now most recently used
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if c.Len() != 2 {
		t.Errorf("expected len 2, got %d", c.Len())
	}
}

func TestEvict(t *testing.T) {
	c := NewMemoryCache[int](2)
	c.Set("a", 1, 0)
	c.Evict("a")
	c.Evict("never-set")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be gone")
	}
}

func TestSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache[int](8).WithClock(clock.Now)
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	c.Set("forever", 3, 0)

	clock.Advance(time.Minute)
	if removed := c.Sweep(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 left, got %d", c.Len())
	}
}

func TestStartSweeperRemovesExpired(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewMemoryCache[int](8)
	c.Set("short", 1, 10*time.Millisecond)
	c.Set("forever", 2, 0)
	c.StartSweeper(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expired entry not swept, %d entries left", c.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartSweeperIgnoresNonPositiveInterval(t *testing.T) {
	c := NewMemoryCache[int](8)
	c.StartSweeper(context.Background(), 0)
	c.StartSweeper(context.Background(), -time.Second)
	c.Set("a", 1, time.Hour)
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewMemoryCache[int](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%32)
				c.Set(key, i, time.Minute)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > c.Capacity() {
		t.Errorf("cache exceeded capacity: %d > %d", c.Len(), c.Capacity())
	}
}
