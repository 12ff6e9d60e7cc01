// Package ratelimit implements a keyed fixed-window request limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Default window parameters.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 100
)

type window struct {
	count     int
	resetTime time.Time
}

// Limiter admits at most maxRequests per key within each fixed window.
// A key's window starts with its first request and is replaced, not slid,
// once the reset time has passed.
type Limiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	windows     map[string]*window
	clockNow    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.clockNow = now
	}
}

// New creates a limiter. Non-positive arguments fall back to the defaults.
func New(d time.Duration, maxRequests int, opts ...Option) *Limiter {
	if d <= 0 {
		d = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	l := &Limiter{
		window:      d,
		maxRequests: maxRequests,
		windows:     make(map[string]*window),
		clockNow:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for key and reports whether it is admitted.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clockNow()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetTime) {
		l.windows[key] = &window{count: 1, resetTime: now.Add(l.window)}
		return true
	}
	if w.count >= l.maxRequests {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests key may still make in its current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.clockNow().After(w.resetTime) {
		return l.maxRequests
	}
	return max(0, l.maxRequests-w.count)
}

// ResetTime returns when key's current window ends, or now+window when key
// has no window yet.
func (l *Limiter) ResetTime(key string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w, ok := l.windows[key]; ok {
		return w.resetTime
	}
	return l.clockNow().Add(l.window)
}

// Prune drops expired windows and returns how many were removed.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clockNow()
	removed := 0
	for key, w := range l.windows {
		if now.After(w.resetTime) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// MaxRequests returns the per-window capacity.
func (l *Limiter) MaxRequests() int {
	return l.maxRequests
}
