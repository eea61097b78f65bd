package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
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

func TestLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		advances []time.Duration // clock advance before each Allow() call
		want     []bool
	}{
		{
			name:     "first call always allowed",
			interval: 100 * time.Millisecond,
			advances: []time.Duration{0},
			want:     []bool{true},
		},
		{
			name:     "second call immediately after is blocked",
			interval: 100 * time.Millisecond,
			advances: []time.Duration{0, 0},
			want:     []bool{true, false},
		},
		{
			name:     "call exactly at interval is allowed",
			interval: 100 * time.Millisecond,
			advances: []time.Duration{0, 100 * time.Millisecond},
			want:     []bool{true, true},
		},
		{
			name:     "call just before interval is blocked",
			interval: 20 * time.Millisecond,
			advances: []time.Duration{0, 19 * time.Millisecond, time.Millisecond},
			want:     []bool{true, false, true},
		},
		{
			name:     "zero interval allows everything",
			interval: 0,
			advances: []time.Duration{0, 0, 0},
			want:     []bool{true, true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			limiter := NewWithClock(tt.interval, clock.Now)

			for i, adv := range tt.advances {
				clock.Advance(adv)

				allowed, waitTime := limiter.Allow()
				if allowed != tt.want[i] {
					t.Errorf("call %d: Allow() = %v, want %v", i, allowed, tt.want[i])
				}
				if !allowed && waitTime <= 0 {
					t.Errorf("call %d: blocked but waitTime = %v, want > 0", i, waitTime)
				}
				if allowed && waitTime != 0 {
					t.Errorf("call %d: allowed but waitTime = %v, want 0", i, waitTime)
				}
			}
		})
	}
}

func TestLimiter_Mark(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(100*time.Millisecond, clock.Now)

	limiter.Mark()
	if allowed, wait := limiter.Allow(); allowed || wait != 100*time.Millisecond {
		t.Errorf("Allow() after Mark = (%v, %v), want (false, 100ms)", allowed, wait)
	}

	clock.Advance(100 * time.Millisecond)
	if allowed, _ := limiter.Allow(); !allowed {
		t.Error("Allow() after interval should succeed")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow(); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 1 {
		t.Errorf("concurrent calls: %d allowed, want exactly 1", allowedCount)
	}
}
