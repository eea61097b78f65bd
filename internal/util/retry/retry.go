// Package retry provides a reusable retry policy with pluggable backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
)

// BackoffFunc returns the delay before the attempt following attempt n (1-based)
type BackoffFunc func(attempt int) time.Duration

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Linear returns base * attempt
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// DefaultMaxRetryAfter caps a server Retry-After when a Policy sets no cap
const DefaultMaxRetryAfter = 30 * time.Second

// Policy bounds attempts and spaces them with Backoff
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// Backoff computes the wait after a failed attempt
	Backoff BackoffFunc

	// MaxRetryAfter caps a server supplied Retry-After; zero means
	// DefaultMaxRetryAfter
	MaxRetryAfter time.Duration

	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep SleepFunc

	// OnRetry is called before each wait, if set
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy is 3 attempts with 500ms * attempt between them
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		Backoff:       Linear(500 * time.Millisecond),
		MaxRetryAfter: DefaultMaxRetryAfter,
	}
}

// Do runs fn until it succeeds, returns a permanent error, the context ends,
// or attempts run out. fn receives the 1-based attempt number.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = Linear(500 * time.Millisecond)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	maxRetryAfter := p.MaxRetryAfter
	if maxRetryAfter <= 0 {
		maxRetryAfter = DefaultMaxRetryAfter
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := backoff(attempt)
		if after, ok := domain.GetRetryAfter(err); ok {
			if after > maxRetryAfter {
				after = maxRetryAfter
			}
			if after > delay {
				delay = after
			}
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
