package domain

import (
	"errors"
	"fmt"
	"time"
)

// Common domain errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// Protocol errors
	ErrUnexpectedStatus = errors.New("unexpected http status")
	ErrRangeIgnored     = errors.New("server ignored range request")
	ErrShortBody        = errors.New("response body shorter than expected")

	// Integrity errors
	ErrDigestMismatch       = errors.New("digest mismatch")
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

	// Batch errors
	ErrNoMirrorAvailable = errors.New("no mirror responded")
)

// Stage identifies where in the transfer pipeline an error happened
type Stage string

const (
	StageProbe    Stage = "probe"
	StagePlan     Stage = "plan"
	StageSegment  Stage = "segment"
	StageStream   Stage = "stream"
	StageFinalize Stage = "finalize"
	StageVerify   Stage = "verify"
)

// ErrorKind classifies the cause of a failure
type ErrorKind string

const (
	// KindTransport is a connection, DNS or timeout failure
	KindTransport ErrorKind = "transport"

	// KindProtocol is an unexpected HTTP status or malformed response
	KindProtocol ErrorKind = "protocol"

	// KindIO is a local create, seek, write or flush failure
	KindIO ErrorKind = "io"

	// KindIntegrity is a digest mismatch after a completed transfer
	KindIntegrity ErrorKind = "integrity"
)

// TransferError is the single structured error a failed transfer surfaces.
type TransferError struct {
	Stage   Stage
	Segment int // segment index, -1 when not segment specific
	URL     string
	Kind    ErrorKind
	Err     error
}

// Error returns the error message
func (e *TransferError) Error() string {
	where := string(e.Stage)
	if e.Stage == StageSegment && e.Segment >= 0 {
		where = fmt.Sprintf("segment %d", e.Segment)
	}
	msg := fmt.Sprintf("transfer %s failed (%s)", where, e.Kind)
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError creates a transfer error that is not tied to a segment
func NewTransferError(stage Stage, kind ErrorKind, url string, err error) *TransferError {
	return &TransferError{Stage: stage, Segment: -1, URL: url, Kind: kind, Err: err}
}

// NewSegmentError creates a transfer error for a failed segment
func NewSegmentError(index int, kind ErrorKind, url string, err error) *TransferError {
	return &TransferError{Stage: StageSegment, Segment: index, URL: url, Kind: kind, Err: err}
}

// StageOf returns the failing stage of a transfer error, or "" for other errors
func StageOf(err error) Stage {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Stage
	}
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return StageVerify
	}
	return ""
}

// KindOf returns the error kind of a transfer error, or "" for other errors
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return KindIntegrity
	}
	return ""
}

// IsIO returns true if the error is a local I/O failure
func IsIO(err error) bool {
	return KindOf(err) == KindIO
}

// IntegrityError reports a digest mismatch. The transfer itself succeeded;
// the content is untrusted.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

// Error returns the error message
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("file %s hash mismatch: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Unwrap returns ErrDigestMismatch
func (e *IntegrityError) Unwrap() error {
	return ErrDigestMismatch
}

// IsIntegrity returns true if the error is a digest mismatch
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// StatusError carries an unexpected HTTP status code
type StatusError struct {
	StatusCode int
	Status     string
}

// Error returns the error message
func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status: %s", e.Status)
	}
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// Unwrap returns ErrUnexpectedStatus
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// RetryableError represents an error that should trigger a retry.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetRetryAfter returns the retry duration if the error is retryable
func GetRetryAfter(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}
