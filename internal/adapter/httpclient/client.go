package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "artifact-fetcher/1.0"

// Config contains client configuration
type Config struct {
	ConnectTimeout      time.Duration // dial timeout
	ReadTimeout         time.Duration // response header and idle body read timeout
	UserAgent           string
	MaxIdleConnsPerHost int
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:      5 * time.Second,
		ReadTimeout:         30 * time.Second,
		UserAgent:           DefaultUserAgent,
		MaxIdleConnsPerHost: 16,
	}
}

// Client is the HTTP client shared by every component of a process.
// It is constructed once and passed by reference.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	readTimeout time.Duration
}

// Ensure Client implements port.SourceClient
var _ port.SourceClient = (*Client)(nil)

// New creates a new Client
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		// Connection pooling
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.ConnectTimeout,

		// Disable compression for binary files; Content-Length must match bytes on disk
		DisableCompression: true,

		// Response header timeout (not total download timeout)
		ResponseHeaderTimeout: cfg.ReadTimeout,

		ForceAttemptHTTP2: true,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   0, // No timeout for downloads
		},
		userAgent:   cfg.UserAgent,
		readTimeout: cfg.ReadTimeout,
	}
}

// Head probes url. Redirects are followed and the final URL is returned
// so later requests skip them.
func (c *Client) Head(ctx context.Context, url string) (*domain.ProbeResult, error) {
	resp, err := c.do(ctx, http.MethodHead, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	result := &domain.ProbeResult{
		SupportsRange: strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes"),
		ResolvedURL:   url,
	}
	if resp.ContentLength > 0 {
		result.TotalSize = resp.ContentLength
	}
	if resp.Request != nil && resp.Request.URL != nil {
		result.ResolvedURL = resp.Request.URL.String()
	}

	return result, nil
}

// GetRange requests bytes [start, end] of url. A 200 response means the
// server ignored the Range header and is reported as ErrRangeIgnored. A 206
// must carry a Content-Range that starts at start and ends no later than end.
func (c *Client) GetRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: invalid range %d-%d", domain.ErrInvalidInput, start, end)
	}

	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.do(ctx, http.MethodGet, url, fmt.Sprintf("bytes=%d-%d", start, end))
	if err != nil {
		cancel()
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if err := checkContentRange(resp.Header.Get("Content-Range"), start, end); err != nil {
			resp.Body.Close()
			cancel()
			return nil, err
		}
		return newIdleTimeoutBody(resp.Body, c.readTimeout, cancel), nil
	case http.StatusOK:
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: %w", domain.ErrRangeIgnored, statusError(resp))
	default:
		resp.Body.Close()
		cancel()
		return nil, statusError(resp)
	}
}

// Get requests the whole resource
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.do(ctx, http.MethodGet, url, "")
	if err != nil {
		cancel()
		return nil, 0, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, 0, statusError(resp)
	}

	return newIdleTimeoutBody(resp.Body, c.readTimeout, cancel), resp.ContentLength, nil
}

// do performs an HTTP request with an optional Range header
func (c *Client) do(ctx context.Context, method, url, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrInvalidInput, err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// statusError converts an unexpected response into a domain error.
// 429 and 503 are retryable and honor Retry-After.
func statusError(resp *http.Response) error {
	se := &domain.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return domain.NewRetryableError(se, parseRetryAfter(resp.Header.Get("Retry-After")))
	}
	return se
}

// parseRetryAfter accepts delay-seconds or an HTTP date
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// checkContentRange rejects a partial response for a different range than
// the one requested
func checkContentRange(header string, start, end int64) error {
	gotStart, gotEnd, _, err := parseContentRange(header)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnexpectedStatus, err)
	}
	if gotStart != start || gotEnd > end {
		return fmt.Errorf("%w: content range %d-%d does not match requested %d-%d",
			domain.ErrUnexpectedStatus, gotStart, gotEnd, start, end)
	}
	return nil
}

// parseContentRange parses "bytes start-end/total". Total is -1 when the
// server sends "*".
func parseContentRange(header string) (start, end, total int64, err error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", header)
	}
	rng, size, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", header)
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", header)
	}

	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}
	if end, err = strconv.ParseInt(last, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}
	if end < start {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range %q", header)
	}

	if size == "*" {
		return start, end, -1, nil
	}
	if total, err = strconv.ParseInt(size, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
	}
	return start, end, total, nil
}
