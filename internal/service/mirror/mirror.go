// Package mirror measures download mirrors and picks the fastest one.
package mirror

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vertextoedge/artifact-fetcher/internal/domain"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
	"go.uber.org/zap"
)

// SampleEnd is the last byte of the speed test sample (about 5 MB)
const SampleEnd int64 = 5242875

// Failed is the rate reported for a mirror that could not be measured
const Failed float64 = -1

// Selector runs speed tests against mirrors
type Selector struct {
	client port.SourceClient
	logger *zap.Logger
	now    func() time.Time
}

// NewSelector creates a new Selector
func NewSelector(client port.SourceClient, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{client: client, logger: logger, now: time.Now}
}

// Speedtest downloads the first ~5 MB of url and returns bytes per second.
// Any failure yields Failed rather than an error.
func (s *Selector) Speedtest(ctx context.Context, url string) float64 {
	start := s.now()

	body, err := s.client.GetRange(ctx, url, 0, SampleEnd)
	if err != nil {
		s.logger.Debug("speed test request failed", zap.String("url", url), zap.Error(err))
		return Failed
	}
	defer body.Close()

	n, err := io.Copy(io.Discard, body)
	if err != nil {
		s.logger.Debug("speed test read failed", zap.String("url", url), zap.Error(err))
		return Failed
	}

	elapsed := s.now().Sub(start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	rate := float64(n) / elapsed.Seconds()

	s.logger.Debug("speed test finished",
		zap.String("url", url),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", elapsed),
		zap.String("rate", humanize.IBytes(uint64(rate))+"/s"))
	return rate
}

// Result is the outcome of one mirror speed test
type Result struct {
	URL  string
	Rate float64 // bytes per second, Failed when unreachable
}

// Fastest tests each url in order and returns the fastest reachable one
// together with every measurement.
func (s *Selector) Fastest(ctx context.Context, urls []string) (string, []Result, error) {
	if len(urls) == 0 {
		return "", nil, fmt.Errorf("%w: no mirrors given", domain.ErrInvalidInput)
	}

	results := make([]Result, 0, len(urls))
	best, bestRate := "", 0.0
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return "", results, err
		}

		rate := s.Speedtest(ctx, u)
		results = append(results, Result{URL: u, Rate: rate})
		if rate > bestRate {
			best, bestRate = u, rate
		}
	}

	if best == "" {
		return "", results, domain.ErrNoMirrorAvailable
	}

	s.logger.Info("selected mirror",
		zap.String("url", best),
		zap.String("rate", humanize.IBytes(uint64(bestRate))+"/s"))
	return best, results, nil
}
