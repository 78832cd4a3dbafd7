// Package ratelimit provides fixed-window admission control for inbound
// delivery attempts, keyed by the identity resolver's output.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow and DefaultMax implement the documented policy of at most
	// 100 requests per minute per key.
	DefaultWindow = 60 * time.Second
	DefaultMax    = 100
)

// entry tracks one key's window. Each entry carries its own lock so distinct
// keys never contend.
type entry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// Limiter admits or rejects requests per key using fixed-window counting.
type Limiter struct {
	window  time.Duration
	max     int
	now     func() time.Time
	entries sync.Map // key -> *entry
}

// New creates a Limiter. A nil clock defaults to time.Now.
func New(window time.Duration, max int, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		window: window,
		max:    max,
		now:    now,
	}
}

// NewDefault creates a Limiter with the standard 100-per-minute policy.
func NewDefault() *Limiter {
	return New(DefaultWindow, DefaultMax, nil)
}

// Allow admits a request for key. On rejection the second return is the time
// remaining in the current window, the client's retry-after hint.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	v, _ := l.entries.LoadOrStore(key, &entry{})
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	if now.Sub(e.windowStart) >= l.window {
		e.windowStart = now
		e.count = 0
	}

	if e.count >= l.max {
		retryAfter := e.windowStart.Add(l.window).Sub(now)
		return false, retryAfter
	}

	e.count++
	return true, 0
}

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Max returns the configured per-window maximum.
func (l *Limiter) Max() int {
	return l.max
}

// Sweep drops entries whose window has fully expired. Optional housekeeping;
// correctness does not depend on it.
func (l *Limiter) Sweep() {
	now := l.now()
	l.entries.Range(func(key, v interface{}) bool {
		e := v.(*entry)
		e.mu.Lock()
		expired := now.Sub(e.windowStart) >= l.window
		e.mu.Unlock()
		if expired {
			l.entries.Delete(key)
		}
		return true
	})
}
