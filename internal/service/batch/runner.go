// Package batch fetches the artifacts of a manifest one after another.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
	"github.com/vertextoedge/artifact-fetcher/internal/service/mirror"
)

// Downloader runs one transfer
type Downloader interface {
	Download(ctx context.Context, req domain.TransferRequest, observer port.ProgressObserver) (*domain.TransferResult, error)
}

// Verifier checks a file against an expected digest
type Verifier interface {
	Check(path, expected string) (bool, error)
	Verify(path, expected string) error
}

// MirrorSelector picks the fastest of several sources
type MirrorSelector interface {
	Fastest(ctx context.Context, urls []string) (string, []mirror.Result, error)
}

// OutcomeStatus is the result of one artifact
type OutcomeStatus string

const (
	OutcomeSkipped OutcomeStatus = "skipped" // already present and verified
	OutcomeFetched OutcomeStatus = "fetched"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome reports what happened to one artifact
type Outcome struct {
	Name         string
	URL          string
	Dest         string
	TransferID   string
	Status       OutcomeStatus
	BytesWritten int64
	Elapsed      time.Duration
	Err          error
}

// Runner processes manifests
type Runner struct {
	fetcher  Downloader
	verifier Verifier
	fs       port.FileSystem
	mirrors  MirrorSelector
	history  port.TransferRepository
	logger   *zap.Logger

	// Progress returns the observer for one artifact; nil discards progress
	Progress func(a Artifact) port.ProgressObserver

	newID func() string
}

// NewRunner creates a new Runner
func NewRunner(fetcher Downloader, verifier Verifier, fs port.FileSystem, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		fetcher:  fetcher,
		verifier: verifier,
		fs:       fs,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// WithMirrors enables mirror selection for artifacts with mirrors
func (r *Runner) WithMirrors(m MirrorSelector) *Runner {
	r.mirrors = m
	return r
}

// WithHistory records every transfer in repo
func (r *Runner) WithHistory(repo port.TransferRepository) *Runner {
	r.history = repo
	return r
}

// Run fetches every artifact in order. It stops at the first failure unless
// the manifest sets continue_on_error, in which case all failures are joined.
func (r *Runner) Run(ctx context.Context, m *Manifest) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(m.Artifacts))
	var errs []error

	for _, a := range m.Artifacts {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		out := r.RunArtifact(ctx, a)
		outcomes = append(outcomes, out)

		if out.Status == OutcomeFailed {
			err := fmt.Errorf("artifact %s: %w", out.Name, out.Err)
			if !m.ContinueOnError {
				return outcomes, err
			}
			errs = append(errs, err)
		}
	}

	return outcomes, errors.Join(errs...)
}

// RunArtifact fetches and verifies one artifact. A failure after the
// destination was opened removes it; a file that was never touched is kept.
func (r *Runner) RunArtifact(ctx context.Context, a Artifact) Outcome {
	out := Outcome{Name: a.DisplayName(), URL: a.URL, Dest: a.Dest}
	log := r.logger.With(zap.String("artifact", out.Name), zap.String("dest", a.Dest))

	if r.alreadyValid(a, log) {
		out.Status = OutcomeSkipped
		return out
	}

	url, err := r.pickSource(ctx, a, log)
	if err != nil {
		out.Status = OutcomeFailed
		out.Err = err
		return out
	}
	out.URL = url

	rec := &domain.TransferRecord{
		ID:             r.newID(),
		URL:            url,
		DestPath:       a.Dest,
		Status:         domain.TransferStatusRunning,
		ExpectedDigest: a.SHA256,
		CreatedAt:      time.Now(),
	}
	out.TransferID = rec.ID
	log = log.With(zap.String("transfer_id", rec.ID))
	r.record(log, "create", func() error { return r.history.CreateTransfer(rec) })

	var observer port.ProgressObserver
	if r.Progress != nil {
		observer = r.Progress(a)
	}

	result, err := r.fetcher.Download(ctx, domain.TransferRequest{URL: url, DestPath: a.Dest, Segments: a.Segments}, observer)
	if err != nil {
		if openedDest(err) {
			r.discard(a.Dest, log)
		}
		rec.MarkFailed(err)
		r.record(log, "fail", func() error { return r.history.FailTransfer(rec) })
		out.Status = OutcomeFailed
		out.Err = err
		return out
	}

	rec.MarkCompleted(result)
	r.record(log, "complete", func() error { return r.history.CompleteTransfer(rec) })
	out.BytesWritten = result.BytesWritten
	out.Elapsed = result.Elapsed

	if a.SHA256 != "" {
		if err := r.verifier.Verify(a.Dest, a.SHA256); err != nil {
			log.Error("artifact failed verification", zap.Error(err))
			r.discard(a.Dest, log)
			if domain.IsIntegrity(err) {
				r.record(log, "verify", func() error { return r.history.MarkVerified(rec.ID, false) })
			}
			out.Status = OutcomeFailed
			out.Err = err
			return out
		}
		r.record(log, "verify", func() error { return r.history.MarkVerified(rec.ID, true) })
	}

	out.Status = OutcomeFetched
	log.Info("artifact fetched",
		zap.Int64("bytes", result.BytesWritten),
		zap.Duration("elapsed", result.Elapsed))
	return out
}

// alreadyValid reports whether dest exists and matches the expected digest
func (r *Runner) alreadyValid(a Artifact, log *zap.Logger) bool {
	if a.SHA256 == "" || !r.fs.FileExists(a.Dest) {
		return false
	}

	ok, err := r.verifier.Check(a.Dest, a.SHA256)
	if err != nil {
		log.Warn("failed to check existing artifact", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	fields := []zap.Field{}
	if r.history != nil {
		if prev, err := r.history.FindVerified(a.Dest, a.SHA256); err == nil && prev != nil {
			fields = append(fields, zap.String("verified_by", prev.ID))
		}
	}
	log.Info("artifact already present, skipping", fields...)
	return true
}

// pickSource returns the fastest source, or the primary URL when selection
// is disabled or every mirror failed
func (r *Runner) pickSource(ctx context.Context, a Artifact, log *zap.Logger) (string, error) {
	sources := a.Sources()
	if len(sources) == 0 {
		return "", fmt.Errorf("%w: artifact has no source", domain.ErrInvalidInput)
	}
	if r.mirrors == nil || len(sources) < 2 {
		return sources[0], nil
	}

	best, _, err := r.mirrors.Fastest(ctx, sources)
	if err == nil {
		return best, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	log.Warn("mirror selection failed, using first source", zap.Error(err))
	return sources[0], nil
}

// openedDest reports whether a failed download got far enough to create or
// truncate the destination. Validation and plan failures happen before it.
func openedDest(err error) bool {
	switch domain.StageOf(err) {
	case domain.StageSegment, domain.StageStream, domain.StageFinalize:
		return true
	default:
		return false
	}
}

func (r *Runner) discard(path string, log *zap.Logger) {
	if err := r.fs.DeleteFile(path); err != nil {
		log.Warn("failed to remove partial file", zap.Error(err))
	}
}

// record runs a history write; history is best effort
func (r *Runner) record(log *zap.Logger, op string, fn func() error) {
	if r.history == nil {
		return
	}
	if err := fn(); err != nil {
		log.Warn("failed to record transfer history", zap.String("op", op), zap.Error(err))
	}
}
