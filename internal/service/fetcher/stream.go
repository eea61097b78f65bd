package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
)

// StreamBlockSize is the copy block size of the single-stream path
const StreamBlockSize = 256 * 1024

// streamCopy performs one plain GET and copies the body sequentially into
// out. A non-zero offset or size requests that range instead. There is no
// retry; the first failure aborts the transfer.
func streamCopy(ctx context.Context, client port.SourceClient, url string, offset, size int64,
	out port.OutputFile, rep *Reporter, blockSize int) (int64, error) {

	var (
		body     io.ReadCloser
		expected int64 = -1
		err      error
	)
	if offset == 0 && size == 0 {
		body, expected, err = client.Get(ctx, url)
	} else {
		if size <= 0 {
			return 0, domain.NewTransferError(domain.StageStream, domain.KindProtocol, url,
				fmt.Errorf("%w: partial fetch needs a size", domain.ErrInvalidInput))
		}
		body, err = client.GetRange(ctx, url, offset, offset+size-1)
		expected = size
	}
	if err != nil {
		return 0, domain.NewTransferError(domain.StageStream, classify(err), url, err)
	}
	defer body.Close()

	if blockSize <= 0 {
		blockSize = StreamBlockSize
	}
	buf := make([]byte, blockSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, domain.NewTransferError(domain.StageStream, domain.KindTransport, url, err)
		}

		n, rerr := io.ReadFull(body, buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, domain.NewTransferError(domain.StageStream, domain.KindIO, url, werr)
			}
			written += int64(n)
			rep.Add(int64(n))
		}

		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return written, domain.NewTransferError(domain.StageStream, domain.KindTransport, url, rerr)
		}
	}
	rep.Flush()

	if expected >= 0 && written < expected {
		return written, domain.NewTransferError(domain.StageStream, domain.KindProtocol, url,
			fmt.Errorf("%w: got %d of %d bytes", domain.ErrShortBody, written, expected))
	}
	return written, nil
}
