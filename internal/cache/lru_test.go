package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUCache_TTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](2, time.Hour).WithClock(clk.now)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	clk.t = clk.t.Add(61 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be removed on Get, size=%d", c.Size())
	}
}

func TestLRUCache_SetFromKeepsAge(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](4, 24*time.Hour).WithClock(clk.now)

	c.SetFrom("old", 1, clk.t.Add(-25*time.Hour))
	c.SetFrom("recent", 2, clk.t.Add(-time.Hour))

	if _, ok := c.Get("old"); ok {
		t.Error("entry born 25h ago should already be expired")
	}
	if v, ok := c.Get("recent"); !ok || v != 2 {
		t.Errorf("Get(recent) = %d, %v", v, ok)
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive")
	}
}

func TestManager_CleanAll(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](4, time.Minute).WithClock(clk.now)
	c.Set("x", 1)
	c.Set("y", 2)

	m := NewManager(nil)
	m.Register(c)
	clk.t = clk.t.Add(2 * time.Minute)

	if n := m.CleanAll(); n != 2 {
		t.Errorf("CleanAll = %d, want 2", n)
	}
	m.Stop()
	m.Stop()
}
