package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
)

const transferColumns = `
	id, url, resolved_url, dest_path, strategy, segments, bytes_written,
	elapsed_ms, status, failed_stage, last_error, expected_digest, verified,
	created_at, completed_at`

// CreateTransfer inserts a running transfer record
func (s *Store) CreateTransfer(rec *domain.TransferRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = domain.TransferStatusRunning
	}

	query := `
		INSERT INTO transfers (id, url, dest_path, status, expected_digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.ID, rec.URL, rec.DestPath, rec.Status, nullString(strings.ToLower(rec.ExpectedDigest)), rec.CreatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// CompleteTransfer stores the outcome of a successful transfer
func (s *Store) CompleteTransfer(rec *domain.TransferRecord) error {
	query := `
		UPDATE transfers
		SET status = ?,
			resolved_url = ?,
			strategy = ?,
			segments = ?,
			bytes_written = ?,
			elapsed_ms = ?,
			failed_stage = NULL,
			last_error = NULL,
			completed_at = ?
		WHERE id = ?
	`

	return s.execOne(query,
		domain.TransferStatusCompleted, nullString(rec.ResolvedURL), string(rec.Strategy),
		rec.Segments, rec.BytesWritten, rec.Elapsed.Milliseconds(), completedAt(rec), rec.ID)
}

// FailTransfer stores the failing stage and error of a transfer
func (s *Store) FailTransfer(rec *domain.TransferRecord) error {
	query := `
		UPDATE transfers
		SET status = ?,
			failed_stage = ?,
			last_error = ?,
			completed_at = ?
		WHERE id = ?
	`

	return s.execOne(query,
		domain.TransferStatusFailed, nullString(rec.FailedStage), nullString(rec.LastError),
		completedAt(rec), rec.ID)
}

// MarkVerified records the integrity check result for a transfer
func (s *Store) MarkVerified(id string, verified bool) error {
	return s.execOne(`UPDATE transfers SET verified = ? WHERE id = ?`, verified, id)
}

// GetTransfer retrieves a transfer by ID
func (s *Store) GetTransfer(id string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = ?`

	rec, err := scanTransfer(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTransfers returns the most recent transfers first
func (s *Store) ListTransfers(limit int) ([]*domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + transferColumns + `
		FROM transfers
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindVerified returns the latest verified transfer of dest with the given digest
func (s *Store) FindVerified(destPath, digest string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfers
		WHERE dest_path = ? AND expected_digest = ? AND verified = TRUE AND status = ?
		ORDER BY completed_at DESC
		LIMIT 1`

	rec, err := scanTransfer(s.db.QueryRow(query, destPath, strings.ToLower(digest), domain.TransferStatusCompleted))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetHistoryStats returns aggregate history statistics
func (s *Store) GetHistoryStats() (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	query := `
		SELECT status, COUNT(*), COALESCE(SUM(bytes_written), 0)
		FROM transfers
		GROUP BY status
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		var bytes int64
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return nil, err
		}

		switch status {
		case domain.TransferStatusCompleted:
			stats.CompletedCount = count
			stats.TotalBytes = bytes
		case domain.TransferStatusFailed:
			stats.FailedCount = count
		case domain.TransferStatusRunning:
			stats.RunningCount = count
		}
	}

	return stats, rows.Err()
}

// FailStaleTransfers marks abandoned running transfers as failed
func (s *Store) FailStaleTransfers(cutoff time.Time) (int, error) {
	query := `
		UPDATE transfers
		SET status = ?,
			last_error = 'abandoned',
			completed_at = ?
		WHERE status = ? AND created_at < ?
	`

	result, err := s.db.Exec(query,
		domain.TransferStatusFailed, time.Now().UTC(), domain.TransferStatusRunning, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// DeleteTransfersBefore removes finished transfers created before cutoff
func (s *Store) DeleteTransfersBefore(cutoff time.Time) (int, error) {
	result, err := s.db.Exec(`DELETE FROM transfers WHERE status != ? AND created_at < ?`,
		domain.TransferStatusRunning, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// execOne runs an update that must touch exactly one row
func (s *Store) execOne(query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTransfer scans a single transfer row
func scanTransfer(row rowScanner) (*domain.TransferRecord, error) {
	rec := &domain.TransferRecord{}
	var resolvedURL, strategy, failedStage, lastError, digest sql.NullString
	var elapsedMS int64
	var completed sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.URL, &resolvedURL, &rec.DestPath, &strategy, &rec.Segments,
		&rec.BytesWritten, &elapsedMS, &rec.Status, &failedStage, &lastError,
		&digest, &rec.Verified, &rec.CreatedAt, &completed,
	)
	if err != nil {
		return nil, err
	}

	rec.ResolvedURL = resolvedURL.String
	rec.Strategy = domain.Strategy(strategy.String)
	rec.FailedStage = failedStage.String
	rec.LastError = lastError.String
	rec.ExpectedDigest = digest.String
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if completed.Valid {
		rec.CompletedAt = &completed.Time
	}

	return rec, nil
}

func completedAt(rec *domain.TransferRecord) time.Time {
	if rec.CompletedAt != nil {
		return rec.CompletedAt.UTC()
	}
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueConstraintError checks if the error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key")
}
