package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
	"github.com/vertextoedge/artifact-fetcher/internal/util/retry"
	"go.uber.org/zap"
)

// segmentReadSize is the network read size while filling a segment buffer
const segmentReadSize = 64 * 1024

// segmentWorker fetches one byte range into memory and writes it to the
// shared output with a single positional write.
type segmentWorker struct {
	client port.SourceClient
	out    port.OutputFile
	url    string
	policy retry.Policy
	logger *zap.Logger
}

func (w *segmentWorker) run(ctx context.Context, seg domain.Segment, rep *Reporter) error {
	// credited is the high-water mark of bytes already reported for this
	// segment; a retried attempt only reports bytes beyond it.
	var credited int64

	err := w.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		w.logger.Debug("fetching segment",
			zap.Int("segment", seg.Index),
			zap.Int("attempt", attempt),
			zap.String("range", seg.RangeHeader()))

		buf, err := w.fetch(ctx, seg, rep, &credited)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("segment attempt failed",
					zap.Int("segment", seg.Index),
					zap.Int("attempt", attempt),
					zap.Error(err))
			}
			return err
		}

		// Disk problems do not resolve within a transfer
		if _, err := w.out.WriteAt(buf, seg.Start); err != nil {
			return retry.Permanent(domain.NewSegmentError(seg.Index, domain.KindIO, w.url, err))
		}
		return nil
	})
	rep.Flush()

	if err == nil {
		return nil
	}

	var te *domain.TransferError
	if errors.As(err, &te) {
		return err
	}
	return domain.NewSegmentError(seg.Index, classify(err), w.url, err)
}

// fetch reads the whole range into a buffer sized to the segment
func (w *segmentWorker) fetch(ctx context.Context, seg domain.Segment, rep *Reporter, credited *int64) ([]byte, error) {
	body, err := w.client.GetRange(ctx, w.url, seg.Start, seg.End)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	buf := make([]byte, seg.Len())
	var read int64
	for read < int64(len(buf)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := read + segmentReadSize
		if end > int64(len(buf)) {
			end = int64(len(buf))
		}
		n, rerr := body.Read(buf[read:end])
		read += int64(n)
		if read > *credited {
			rep.Add(read - *credited)
			*credited = read
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}

	if read < int64(len(buf)) {
		return nil, fmt.Errorf("%w: got %d of %d bytes", domain.ErrShortBody, read, len(buf))
	}
	return buf, nil
}

// classify maps a network failure to an error kind
func classify(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, domain.ErrUnexpectedStatus),
		errors.Is(err, domain.ErrRangeIgnored),
		errors.Is(err, domain.ErrShortBody):
		return domain.KindProtocol
	default:
		return domain.KindTransport
	}
}
