package port

import (
	"context"
	"io"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
)

// SourceClient fetches remote resources over HTTP
type SourceClient interface {
	// Head probes url without transferring a body and follows redirects
	Head(ctx context.Context, url string) (*domain.ProbeResult, error)

	// GetRange requests bytes [start, end] and requires a 206 response
	GetRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error)

	// Get requests the whole resource and requires a 200 response.
	// The returned size is -1 when the server did not send Content-Length.
	Get(ctx context.Context, url string) (io.ReadCloser, int64, error)
}
