package fetcher

import (
	"runtime"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
)

const (
	// MinSegmentedSize is the smallest resource fetched in segments
	MinSegmentedSize int64 = 1 << 20

	// MinSegments and MaxSegments bound the parallel range requests per transfer
	MinSegments = 2
	MaxSegments = 8
)

// ClampSegments bounds n to [MinSegments, MaxSegments]
func ClampSegments(n int) int {
	if n < MinSegments {
		return MinSegments
	}
	if n > MaxSegments {
		return MaxSegments
	}
	return n
}

// DefaultSegments is the CPU count clamped to the segment bounds
func DefaultSegments() int {
	return ClampSegments(runtime.NumCPU())
}

// Plan decides the transfer strategy from a probe result.
// requested of 0 selects DefaultSegments; other values are clamped.
func Plan(probe *domain.ProbeResult, requested int) *domain.TransferPlan {
	plan := &domain.TransferPlan{
		Strategy:      domain.StrategySingleStream,
		TotalSize:     probe.TotalSize,
		SupportsRange: probe.SupportsRange,
		ResolvedURL:   probe.ResolvedURL,
	}

	// Unknown (0) or small sizes stream
	if probe.TotalSize < MinSegmentedSize {
		return plan
	}
	if !probe.SupportsRange {
		return plan
	}

	count := DefaultSegments()
	if requested != 0 {
		count = ClampSegments(requested)
	}

	plan.Strategy = domain.StrategySegmented
	plan.Segments = SplitSegments(probe.TotalSize, count)
	return plan
}

// SplitSegments divides [0, total) into count equal-width ranges.
// The last range absorbs the remainder. count is reduced to total when
// there are fewer bytes than segments.
func SplitSegments(total int64, count int) []domain.Segment {
	if total <= 0 || count <= 0 {
		return nil
	}
	if int64(count) > total {
		count = int(total)
	}

	width := total / int64(count)
	segments := make([]domain.Segment, count)
	for i := range segments {
		start := int64(i) * width
		end := start + width - 1
		if i == count-1 {
			end = total - 1
		}
		segments[i] = domain.Segment{Index: i, Start: start, End: end}
	}
	return segments
}
