package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTransferError_Error(t *testing.T) {
	underlying := errors.New("connection reset")

	tests := []struct {
		name string
		err  *TransferError
		want string
	}{
		{
			name: "segment with url",
			err:  NewSegmentError(3, KindTransport, "https://example.com/a.bin", underlying),
			want: "transfer segment 3 failed (transport) for https://example.com/a.bin: connection reset",
		},
		{
			name: "finalize without url",
			err:  NewTransferError(StageFinalize, KindIO, "", underlying),
			want: "transfer finalize failed (io): connection reset",
		},
		{
			name: "no underlying error",
			err:  NewTransferError(StageStream, KindProtocol, "https://example.com", nil),
			want: "transfer stream failed (protocol) for https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransferError_Unwrap(t *testing.T) {
	se := &StatusError{StatusCode: 200, Status: "200 OK"}
	te := NewSegmentError(0, KindProtocol, "u", fmt.Errorf("attempt 3: %w", se))

	if !errors.Is(te, ErrUnexpectedStatus) {
		t.Error("TransferError should unwrap to ErrUnexpectedStatus")
	}

	var got *StatusError
	if !errors.As(te, &got) || got.StatusCode != 200 {
		t.Errorf("errors.As(StatusError) = %v, want status 200", got)
	}
}

func TestStageOfAndKindOf(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantStage Stage
		wantKind  ErrorKind
	}{
		{
			name:      "transfer error",
			err:       NewTransferError(StageProbe, KindTransport, "u", errors.New("dns")),
			wantStage: StageProbe,
			wantKind:  KindTransport,
		},
		{
			name:      "wrapped transfer error",
			err:       fmt.Errorf("fetch: %w", NewSegmentError(1, KindIO, "u", errors.New("disk full"))),
			wantStage: StageSegment,
			wantKind:  KindIO,
		},
		{
			name:      "integrity error",
			err:       &IntegrityError{Path: "a", Expected: "00", Actual: "11"},
			wantStage: StageVerify,
			wantKind:  KindIntegrity,
		},
		{
			name:      "regular error",
			err:       errors.New("regular"),
			wantStage: "",
			wantKind:  "",
		},
		{
			name:      "nil error",
			err:       nil,
			wantStage: "",
			wantKind:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StageOf(tt.err); got != tt.wantStage {
				t.Errorf("StageOf() = %q, want %q", got, tt.wantStage)
			}
			if got := KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestIntegrityError(t *testing.T) {
	ie := &IntegrityError{Path: "pkg.msix", Expected: "abc", Actual: "def"}

	if !errors.Is(ie, ErrDigestMismatch) {
		t.Error("IntegrityError should unwrap to ErrDigestMismatch")
	}
	if !IsIntegrity(fmt.Errorf("verify: %w", ie)) {
		t.Error("wrapped IntegrityError should be detected")
	}
	if IsIntegrity(NewTransferError(StageStream, KindIO, "", errors.New("x"))) {
		t.Error("TransferError must not be reported as integrity failure")
	}
	if IsIO(ie) {
		t.Error("IntegrityError must not be reported as I/O failure")
	}
}

func TestRetryableError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "with underlying error",
			err:  errors.New("connection timeout"),
			want: "connection timeout",
		},
		{
			name: "nil error",
			err:  nil,
			want: "retryable error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := NewRetryableError(tt.err, time.Second)
			if got := re.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "retryable error",
			err:  NewRetryableError(errors.New("err"), time.Second),
			want: true,
		},
		{
			name: "wrapped retryable error",
			err:  fmt.Errorf("wrapped: %w", NewRetryableError(errors.New("err"), time.Second)),
			want: true,
		},
		{
			name: "regular error",
			err:  errors.New("regular error"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetRetryAfter(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantDuration time.Duration
		wantOk       bool
	}{
		{
			name:         "retryable error",
			err:          NewRetryableError(errors.New("err"), 5*time.Second),
			wantDuration: 5 * time.Second,
			wantOk:       true,
		},
		{
			name:         "wrapped retryable error",
			err:          fmt.Errorf("wrapped: %w", NewRetryableError(errors.New("err"), 30*time.Second)),
			wantDuration: 30 * time.Second,
			wantOk:       true,
		},
		{
			name:         "regular error",
			err:          errors.New("regular error"),
			wantDuration: 0,
			wantOk:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			duration, ok := GetRetryAfter(tt.err)
			if duration != tt.wantDuration || ok != tt.wantOk {
				t.Errorf("GetRetryAfter() = (%v, %v), want (%v, %v)",
					duration, ok, tt.wantDuration, tt.wantOk)
			}
		})
	}
}
