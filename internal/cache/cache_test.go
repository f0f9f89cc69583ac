package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(t *testing.T, size int) (*Cache[int], *clock) {
	t.Helper()
	c := New[int](size, time.Minute)
	t.Cleanup(c.Close)
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestGetSet(t *testing.T) {
	c, _ := newTestCache(t, 10)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
}

func TestExpiration(t *testing.T) {
	c, clk := newTestCache(t, 10)

	c.Set("a", 1)
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", 2)
	clk.t = clk.t.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should still be valid")
	}

	stats := c.Stats()
	if stats["expired"] != 1 || stats["valid"] != 1 {
		t.Errorf("stats = %v", stats)
	}
	c.removeExpired()
	if stats := c.Stats(); stats["total"] != 1 {
		t.Errorf("after cleanup stats = %v", stats)
	}
}

func TestEviction(t *testing.T) {
	c, clk := newTestCache(t, 2)

	c.Set("a", 1)
	clk.t = clk.t.Add(time.Second)
	c.Set("b", 2)
	clk.t = clk.t.Add(time.Second)
	// replacing an existing key does not evict
	c.Set("b", 3)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a evicted by an update")
	}

	c.Set("c", 4)
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry a should be evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s missing", key)
		}
	}

	c.Clear()
	if stats := c.Stats(); stats["total"] != 0 {
		t.Errorf("after Clear stats = %v", stats)
	}
}
