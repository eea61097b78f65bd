package port

import (
	"io"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// OutputFile is the single destination handle shared by every worker of one transfer
type OutputFile interface {
	// WriteAt seeks to offset and writes p as one atomic pair.
	// Concurrent callers never interleave their seek and write.
	WriteAt(p []byte, offset int64) (int, error)

	// Write appends sequentially; used by the single-stream path only
	io.Writer

	// Finalize flushes buffered data, syncs and closes the file
	Finalize() error

	// Abort closes the file without syncing; content is left as is
	Abort() error
}

// FileSystem defines the interface for filesystem operations
type FileSystem interface {
	// PrepareTarget ensures the destination directory exists.
	// If the target is the running executable it is moved aside first and
	// the moved path is returned.
	PrepareTarget(path string) (string, error)

	// Create creates or truncates path and returns a shared output handle
	Create(path string) (OutputFile, error)

	// Open opens an existing file for reading
	Open(path string) (io.ReadCloser, error)

	// DeleteFile removes a file; a missing file is not an error
	DeleteFile(path string) error

	// FileExists checks if a file exists
	FileExists(path string) bool

	// GetFileSize returns the size of a file
	GetFileSize(path string) (int64, error)

	// GetDiskUsage returns disk usage statistics for the volume holding dir
	GetDiskUsage(dir string) (*DiskUsage, error)
}
