// Package ratelimit provides fixed-window counters keyed by an opaque
// source string. State is in-memory only; loss on restart fails open.
package ratelimit

import (
	"sync"
	"time"
)

type counter struct {
	count       int
	windowStart time.Time
}

// Limiter counts events per source key over a fixed window. It is safe
// for concurrent use; there is no coordination beyond the internal lock.
type Limiter struct {
	mu      sync.Mutex
	sources map[string]*counter
	limit   int
	window  time.Duration
	now     func() time.Time

	lastPrune time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		sources: make(map[string]*counter),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records one event for key and reports whether it fits the
// window budget. A limit <= 0 disables the limiter entirely.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	c, ok := l.sources[key]
	if !ok || now.Sub(c.windowStart) >= l.window {
		l.sources[key] = &counter{count: 1, windowStart: now}
		return true
	}
	if c.count >= l.limit {
		return false
	}
	c.count++
	return true
}

// Forget drops all counters for key, typically on disconnect.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.sources, key)
	l.mu.Unlock()
}

// pruneLocked drops expired counters. Runs at most once per window to
// keep Allow O(1) in the common case.
func (l *Limiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	l.lastPrune = now
	for key, c := range l.sources {
		if now.Sub(c.windowStart) >= l.window {
			delete(l.sources, key)
		}
	}
}
