package domain

import (
	"fmt"
	"time"
)

// Strategy selects how a transfer moves bytes
type Strategy string

const (
	// StrategySingleStream copies one plain GET response into the destination
	StrategySingleStream Strategy = "single_stream"

	// StrategySegmented fetches disjoint byte ranges in parallel
	StrategySegmented Strategy = "segmented"
)

// TransferRequest describes one download invocation.
// It must not be modified once the transfer starts.
type TransferRequest struct {
	// URL is the source location
	URL string

	// DestPath is the local destination; created or truncated at start
	DestPath string

	// Segments is the desired segment count, 0 selects the default
	Segments int
}

// Validate checks the request is usable
func (r TransferRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if r.DestPath == "" {
		return fmt.Errorf("%w: destination path is required", ErrInvalidInput)
	}
	if r.Segments < 0 {
		return fmt.Errorf("%w: segments must not be negative", ErrInvalidInput)
	}
	return nil
}

// ProbeResult is what a metadata-only request learned about a resource
type ProbeResult struct {
	SupportsRange bool
	TotalSize     int64 // 0 when unknown
	ResolvedURL   string
}

// Segment is a contiguous byte range owned by exactly one worker.
// End is inclusive.
type Segment struct {
	Index int
	Start int64
	End   int64
}

// Len returns the number of bytes covered by the segment
func (s Segment) Len() int64 {
	return s.End - s.Start + 1
}

// RangeHeader returns the HTTP Range header value for the segment
func (s Segment) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", s.Start, s.End)
}

// TransferPlan is derived once per transfer and never mutated afterwards
type TransferPlan struct {
	Strategy      Strategy
	TotalSize     int64
	SupportsRange bool
	ResolvedURL   string
	Segments      []Segment
}

// Segmented reports whether the plan uses parallel range requests
func (p *TransferPlan) Segmented() bool {
	return p.Strategy == StrategySegmented
}

// TransferResult is produced once, on success
type TransferResult struct {
	// BytesWritten is the total bytes written to the destination
	BytesWritten int64

	// Elapsed is the wall time from probe to finalize
	Elapsed time.Duration

	// Strategy is the path the transfer took
	Strategy Strategy

	// Segments is the number of segments fetched (1 for single stream)
	Segments int

	// ResolvedURL is the post-redirect URL actually fetched
	ResolvedURL string
}

// BytesPerSecond returns the average transfer rate
func (r *TransferResult) BytesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.BytesWritten) / r.Elapsed.Seconds()
}
