package domain

import "time"

// Transfer status constants
const (
	TransferStatusRunning   = "running"
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
)

// TransferRecord is one row of transfer history.
// History is informational only; a transfer never resumes from it.
type TransferRecord struct {
	ID          string
	URL         string
	ResolvedURL string
	DestPath    string

	// Outcome
	Status       string
	Strategy     Strategy
	Segments     int
	BytesWritten int64
	Elapsed      time.Duration
	FailedStage  string
	LastError    string

	// Integrity
	ExpectedDigest string
	Verified       bool

	// Timestamps
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// MarkCompleted records a successful transfer result
func (r *TransferRecord) MarkCompleted(result *TransferResult) {
	now := time.Now()
	r.Status = TransferStatusCompleted
	r.ResolvedURL = result.ResolvedURL
	r.Strategy = result.Strategy
	r.Segments = result.Segments
	r.BytesWritten = result.BytesWritten
	r.Elapsed = result.Elapsed
	r.FailedStage = ""
	r.LastError = ""
	r.CompletedAt = &now
}

// MarkFailed records a failed transfer
func (r *TransferRecord) MarkFailed(err error) {
	now := time.Now()
	r.Status = TransferStatusFailed
	r.FailedStage = string(StageOf(err))
	if err != nil {
		r.LastError = err.Error()
	}
	r.CompletedAt = &now
}

// IsTerminal returns true once the transfer completed or failed
func (r *TransferRecord) IsTerminal() bool {
	return r.Status == TransferStatusCompleted || r.Status == TransferStatusFailed
}

// HistoryStats summarises transfer history
type HistoryStats struct {
	CompletedCount int
	FailedCount    int
	RunningCount   int
	TotalBytes     int64
}
