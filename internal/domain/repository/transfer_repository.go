package repository

import (
	"time"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
)

// TransferRepository defines the interface for transfer history operations
type TransferRepository interface {
	// CreateTransfer inserts a running transfer record
	CreateTransfer(rec *domain.TransferRecord) error

	// CompleteTransfer stores the outcome of a successful transfer
	CompleteTransfer(rec *domain.TransferRecord) error

	// FailTransfer stores the failing stage and error of a transfer
	FailTransfer(rec *domain.TransferRecord) error

	// MarkVerified records the integrity check result for a transfer
	MarkVerified(id string, verified bool) error

	// GetTransfer retrieves a transfer by ID
	// Returns domain.ErrNotFound if it does not exist
	GetTransfer(id string) (*domain.TransferRecord, error)

	// ListTransfers returns the most recent transfers first
	ListTransfers(limit int) ([]*domain.TransferRecord, error)

	// FindVerified returns the latest verified transfer of dest with the given digest
	// Returns nil if there is none
	FindVerified(destPath, digest string) (*domain.TransferRecord, error)

	// GetHistoryStats returns aggregate history statistics
	GetHistoryStats() (*domain.HistoryStats, error)

	// FailStaleTransfers marks running transfers started before cutoff as
	// failed; they belong to a process that exited without finishing
	FailStaleTransfers(cutoff time.Time) (int, error)

	// DeleteTransfersBefore removes finished transfers created before cutoff
	DeleteTransfersBefore(cutoff time.Time) (int, error)
}
