package httpclient

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// idleTimeoutBody cancels the request when no read completes within timeout.
// The timer restarts on every Read.
type idleTimeoutBody struct {
	body     io.ReadCloser
	timeout  time.Duration
	timer    *time.Timer
	cancel   func()
	timedOut atomic.Bool
}

func newIdleTimeoutBody(body io.ReadCloser, timeout time.Duration, cancel func()) *idleTimeoutBody {
	b := &idleTimeoutBody{
		body:    body,
		timeout: timeout,
		cancel:  cancel,
	}
	b.timer = time.AfterFunc(timeout, func() {
		b.timedOut.Store(true)
		cancel()
	})
	return b
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil && err != io.EOF && b.timedOut.Load() {
		return n, fmt.Errorf("no data received for %s: %w", b.timeout, err)
	}
	if err == nil {
		b.timer.Reset(b.timeout)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	err := b.body.Close()
	b.cancel()
	return err
}
