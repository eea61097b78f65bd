package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTransferRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     TransferRequest
		wantErr bool
	}{
		{"valid", TransferRequest{URL: "https://example.com/a", DestPath: "/tmp/a"}, false},
		{"valid with segments", TransferRequest{URL: "u", DestPath: "d", Segments: 4}, false},
		{"missing url", TransferRequest{DestPath: "d"}, true},
		{"missing dest", TransferRequest{URL: "u"}, true},
		{"negative segments", TransferRequest{URL: "u", DestPath: "d", Segments: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSegment(t *testing.T) {
	s := Segment{Index: 1, Start: 100, End: 199}
	if s.Len() != 100 {
		t.Errorf("Len() = %d, want 100", s.Len())
	}
	if got := s.RangeHeader(); got != "bytes=100-199" {
		t.Errorf("RangeHeader() = %q, want %q", got, "bytes=100-199")
	}
}

func TestTransferRecord_Lifecycle(t *testing.T) {
	rec := &TransferRecord{ID: "x", Status: TransferStatusRunning}
	if rec.IsTerminal() {
		t.Fatal("running record should not be terminal")
	}

	rec.MarkFailed(NewSegmentError(2, KindTransport, "u", errors.New("reset")))
	if rec.Status != TransferStatusFailed || rec.FailedStage != string(StageSegment) {
		t.Errorf("after MarkFailed: status=%q stage=%q", rec.Status, rec.FailedStage)
	}
	if rec.CompletedAt == nil || !rec.IsTerminal() {
		t.Error("failed record should be terminal with completion time")
	}

	rec.MarkCompleted(&TransferResult{
		BytesWritten: 1024,
		Elapsed:      time.Second,
		Strategy:     StrategySegmented,
		Segments:     4,
		ResolvedURL:  "https://cdn.example.com/a",
	})
	if rec.Status != TransferStatusCompleted || rec.LastError != "" || rec.FailedStage != "" {
		t.Errorf("after MarkCompleted: status=%q err=%q stage=%q", rec.Status, rec.LastError, rec.FailedStage)
	}
	if rec.BytesWritten != 1024 || rec.Segments != 4 {
		t.Errorf("after MarkCompleted: bytes=%d segments=%d", rec.BytesWritten, rec.Segments)
	}
}

func TestTransferResult_BytesPerSecond(t *testing.T) {
	r := &TransferResult{BytesWritten: 2048, Elapsed: 2 * time.Second}
	if got := r.BytesPerSecond(); got != 1024 {
		t.Errorf("BytesPerSecond() = %v, want 1024", got)
	}
	zero := &TransferResult{BytesWritten: 10}
	if got := zero.BytesPerSecond(); got != 0 {
		t.Errorf("BytesPerSecond() with zero elapsed = %v, want 0", got)
	}
}
