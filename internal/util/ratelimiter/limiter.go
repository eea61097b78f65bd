package ratelimiter

import (
	"sync"
	"time"
)

// Clock returns the current time
type Clock func() time.Time

// Limiter allows one action per interval and is safe for concurrent use.
// Progress reporters hold one Limiter per worker so each worker is throttled
// against its own last emission.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	now         Clock
	lastAllowed time.Time
}

// New creates a rate limiter on the wall clock
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, time.Now)
}

// NewWithClock creates a rate limiter that reads time from now.
// A zero interval allows every call.
func NewWithClock(interval time.Duration, now Clock) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		interval: interval,
		now:      now,
	}
}

// Allow reports whether an action may run now.
// Returns true (and records the time) if allowed, or false with the
// remaining wait.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastAllowed.IsZero() {
		l.lastAllowed = now
		return true, 0
	}

	since := now.Sub(l.lastAllowed)
	if since >= l.interval {
		l.lastAllowed = now
		return true, 0
	}

	return false, l.interval - since
}

// Mark records an action that ran regardless of the limit
func (l *Limiter) Mark() {
	l.mu.Lock()
	l.lastAllowed = l.now()
	l.mu.Unlock()
}
