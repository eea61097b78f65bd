// Package fetcher downloads a remote resource into a local file, in parallel
// byte ranges when the server allows it and as one stream otherwise.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vertextoedge/artifact-fetcher/internal/domain"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
	"github.com/vertextoedge/artifact-fetcher/internal/util/ratelimiter"
	"github.com/vertextoedge/artifact-fetcher/internal/util/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tune a Fetcher. Zero values select defaults.
type Options struct {
	// Segments is used when a request does not set its own count
	Segments int

	// Retry is the per-segment retry policy
	Retry retry.Policy

	// SegmentInterval and StreamInterval throttle progress per worker
	SegmentInterval time.Duration
	StreamInterval  time.Duration

	// Clock drives progress throttling
	Clock ratelimiter.Clock

	// StreamBlockSize is the single-stream copy block size
	StreamBlockSize int
}

// DefaultOptions returns the default fetcher options
func DefaultOptions() Options {
	return Options{
		Retry:           retry.DefaultPolicy(),
		SegmentInterval: 100 * time.Millisecond,
		StreamInterval:  20 * time.Millisecond,
		Clock:           time.Now,
		StreamBlockSize: StreamBlockSize,
	}
}

// Fetcher runs transfers
type Fetcher struct {
	client port.SourceClient
	fs     port.FileSystem
	space  port.SpaceChecker
	logger *zap.Logger
	opts   Options
}

// New creates a new Fetcher
func New(client port.SourceClient, fs port.FileSystem, logger *zap.Logger, opts Options) *Fetcher {
	def := DefaultOptions()
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if opts.Retry.Backoff == nil {
		opts.Retry.Backoff = def.Retry.Backoff
	}
	if opts.SegmentInterval <= 0 {
		opts.SegmentInterval = def.SegmentInterval
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = def.StreamInterval
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.StreamBlockSize <= 0 {
		opts.StreamBlockSize = def.StreamBlockSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		client: client,
		fs:     fs,
		logger: logger,
		opts:   opts,
	}
}

// WithSpaceChecker makes Download refuse transfers that do not fit on disk
func (f *Fetcher) WithSpaceChecker(sc port.SpaceChecker) *Fetcher {
	f.space = sc
	return f
}

// Probe issues a metadata-only request for url
func (f *Fetcher) Probe(ctx context.Context, url string) (*domain.ProbeResult, error) {
	result, err := f.client.Head(ctx, url)
	if err != nil {
		return nil, domain.NewTransferError(domain.StageProbe, classify(err), url, err)
	}
	return result, nil
}

// probeOrFallback never fails: a failed probe reads as "no range support"
func (f *Fetcher) probeOrFallback(ctx context.Context, url string) *domain.ProbeResult {
	result, err := f.Probe(ctx, url)
	if err != nil {
		f.logger.Warn("probe failed, using single stream",
			zap.String("url", url),
			zap.Error(err))
		return &domain.ProbeResult{ResolvedURL: url}
	}
	if result.ResolvedURL == "" {
		result.ResolvedURL = url
	}
	return result
}

// Download fetches req.URL into req.DestPath. The destination is created or
// truncated; on failure it is left in place for the caller to remove.
func (f *Fetcher) Download(ctx context.Context, req domain.TransferRequest, observer port.ProgressObserver) (*domain.TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	probe := f.probeOrFallback(ctx, req.URL)

	requested := req.Segments
	if requested == 0 {
		requested = f.opts.Segments
	}
	plan := Plan(probe, requested)

	f.logger.Info("starting transfer",
		zap.String("url", req.URL),
		zap.String("resolved_url", plan.ResolvedURL),
		zap.String("dest", req.DestPath),
		zap.String("strategy", string(plan.Strategy)),
		zap.Int("segments", len(plan.Segments)),
		zap.String("size", humanize.IBytes(uint64(plan.TotalSize))))

	if err := f.checkSpace(req, plan); err != nil {
		return nil, err
	}

	if moved, err := f.fs.PrepareTarget(req.DestPath); err != nil {
		return nil, domain.NewTransferError(domain.StagePlan, domain.KindIO, req.URL, err)
	} else if moved != "" {
		f.logger.Info("moved running executable aside", zap.String("backup", moved))
	}

	out, err := f.fs.Create(req.DestPath)
	if err != nil {
		return nil, domain.NewTransferError(domain.StagePlan, domain.KindIO, req.URL, err)
	}

	var (
		written  int64
		segments int
	)
	if plan.Segmented() {
		agg := NewAggregator(observer, f.opts.SegmentInterval, f.opts.Clock)
		err = f.runSegments(ctx, plan, out, agg)
		written = plan.TotalSize
		segments = len(plan.Segments)
		agg.Finish()
	} else {
		agg := NewAggregator(observer, f.opts.StreamInterval, f.opts.Clock)
		written, err = streamCopy(ctx, f.client, plan.ResolvedURL, 0, 0, out, agg.Reporter(), f.opts.StreamBlockSize)
		segments = 1
		agg.Finish()
	}
	if err != nil {
		out.Abort()
		f.logger.Error("transfer failed",
			zap.String("url", req.URL),
			zap.String("dest", req.DestPath),
			zap.Error(err))
		return nil, err
	}

	if err := out.Finalize(); err != nil {
		return nil, domain.NewTransferError(domain.StageFinalize, domain.KindIO, req.URL, err)
	}

	result := &domain.TransferResult{
		BytesWritten: written,
		Elapsed:      time.Since(start),
		Strategy:     plan.Strategy,
		Segments:     segments,
		ResolvedURL:  plan.ResolvedURL,
	}

	f.logger.Info("transfer completed",
		zap.String("url", req.URL),
		zap.String("dest", req.DestPath),
		zap.Int64("bytes", result.BytesWritten),
		zap.Duration("elapsed", result.Elapsed),
		zap.String("rate", humanize.IBytes(uint64(result.BytesPerSecond()))+"/s"))

	return result, nil
}

// runSegments fetches every segment concurrently. The first fatal segment
// failure cancels the others.
func (f *Fetcher) runSegments(ctx context.Context, plan *domain.TransferPlan, out port.OutputFile, agg *Aggregator) error {
	worker := &segmentWorker{
		client: f.client,
		out:    out,
		url:    plan.ResolvedURL,
		policy: f.opts.Retry,
		logger: f.logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, seg := range plan.Segments {
		seg := seg
		rep := agg.Reporter()
		g.Go(func() error {
			return worker.run(gctx, seg, rep)
		})
	}
	return g.Wait()
}

func (f *Fetcher) checkSpace(req domain.TransferRequest, plan *domain.TransferPlan) error {
	if f.space == nil || plan.TotalSize <= 0 {
		return nil
	}

	res, err := f.space.CheckSpace(req.DestPath, plan.TotalSize)
	if err != nil {
		// Unknown free space is not a reason to refuse
		f.logger.Warn("failed to check disk space", zap.String("dest", req.DestPath), zap.Error(err))
		return nil
	}
	if !res.HasSpace {
		return domain.NewTransferError(domain.StagePlan, domain.KindIO, req.URL,
			fmt.Errorf("insufficient disk space: need %s, available %s",
				humanize.IBytes(uint64(res.RequiredBytes)), humanize.IBytes(res.AvailableBytes)))
	}
	return nil
}
