package fetcher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vertextoedge/artifact-fetcher/internal/port"
	"github.com/vertextoedge/artifact-fetcher/internal/util/ratelimiter"
)

// Aggregator sums bytes from every worker of one transfer into a single
// cumulative counter and forwards it to an observer.
//
// Workers add to the counter lock-free. Emission reads the counter under a
// mutex, so the observer sees non-decreasing values and is never called
// concurrently.
type Aggregator struct {
	counter atomic.Int64

	mu       sync.Mutex
	observer port.ProgressObserver
	emitted  bool
	last     int64

	interval time.Duration
	clock    ratelimiter.Clock
}

// NewAggregator creates an aggregator whose reporters emit at most once per
// interval each. A nil observer discards progress.
func NewAggregator(observer port.ProgressObserver, interval time.Duration, clock ratelimiter.Clock) *Aggregator {
	if observer == nil {
		observer = port.NopProgress
	}
	if clock == nil {
		clock = time.Now
	}
	return &Aggregator{
		observer: observer,
		interval: interval,
		clock:    clock,
	}
}

// Reporter returns a throttled reporter for one worker
func (a *Aggregator) Reporter() *Reporter {
	return &Reporter{
		agg:     a,
		limiter: ratelimiter.NewWithClock(a.interval, a.clock),
	}
}

// Total returns the cumulative byte count
func (a *Aggregator) Total() int64 {
	return a.counter.Load()
}

// Finish emits the final count if it has not been emitted yet
func (a *Aggregator) Finish() {
	a.emit()
}

func (a *Aggregator) emit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := a.counter.Load()
	if a.emitted && v <= a.last {
		return
	}
	a.emitted = true
	a.last = v
	a.observer.OnProgress(v)
}

// Reporter is one worker's view of an Aggregator
type Reporter struct {
	agg     *Aggregator
	limiter *ratelimiter.Limiter
}

// Add credits n bytes and emits if this worker's interval has passed
func (r *Reporter) Add(n int64) {
	if n <= 0 {
		return
	}
	r.agg.counter.Add(n)
	if ok, _ := r.limiter.Allow(); ok {
		r.agg.emit()
	}
}

// Flush emits the current count regardless of the interval
func (r *Reporter) Flush() {
	r.limiter.Mark()
	r.agg.emit()
}
