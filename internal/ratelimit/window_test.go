package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(limit, window)
	l.now = clk.Now
	return l, clk
}

func TestLimiter_BudgetWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !l.Allow("conn-1|signal:ice") {
			t.Fatalf("event %d should fit the budget", i)
		}
	}
	if l.Allow("conn-1|signal:ice") {
		t.Fatalf("fourth event in window should be rejected")
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	l, clk := newTestLimiter(2, time.Second)

	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatalf("expected rejection at limit")
	}

	clk.Advance(time.Second)
	if !l.Allow("k") {
		t.Fatalf("expected fresh window after expiry")
	}
}

func TestLimiter_SourcesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)

	if !l.Allow("a") {
		t.Fatalf("first event for a")
	}
	if !l.Allow("b") {
		t.Fatalf("a's budget must not affect b")
	}
	if l.Allow("a") {
		t.Fatalf("a is over budget")
	}
}

func TestLimiter_DisabledWhenLimitZero(t *testing.T) {
	l, _ := newTestLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatalf("disabled limiter must always allow")
		}
	}
}

func TestLimiter_PruneExpiredCounters(t *testing.T) {
	l, clk := newTestLimiter(5, time.Second)
	for i := 0; i < 10; i++ {
		l.Allow(string(rune('a' + i)))
	}
	clk.Advance(2 * time.Second)
	l.Allow("fresh")

	l.mu.Lock()
	n := len(l.sources)
	l.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected expired counters pruned, have %d", n)
	}
}

func TestLimiter_Forget(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)
	l.Allow("k")
	l.Forget("k")
	if !l.Allow("k") {
		t.Fatalf("forgotten key should start a fresh window")
	}
}
