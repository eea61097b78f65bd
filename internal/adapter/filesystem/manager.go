package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vertextoedge/artifact-fetcher/internal/port"
)

// DefaultBufferSize is the sequential write block size of the single-stream path
const DefaultBufferSize = 256 * 1024

// Manager handles local filesystem operations
type Manager struct {
	bufferSize int

	// executable returns the running binary path; swapped in tests
	executable func() (string, error)
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager() *Manager {
	return NewManagerWithBufferSize(DefaultBufferSize)
}

// NewManagerWithBufferSize creates a new filesystem manager with custom buffer size
func NewManagerWithBufferSize(bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Manager{
		bufferSize: bufferSize,
		executable: os.Executable,
	}
}

// PrepareTarget ensures the parent directory of path exists.
// When path is the running executable (self update) the executable is
// renamed to <name>.instbak so the new file can take its place.
func (m *Manager) PrepareTarget(path string) (string, error) {
	var moved string

	if exe, err := m.executable(); err == nil && sameFile(exe, path) {
		backup := trimExt(exe) + ".instbak"
		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to remove old backup: %w", err)
		}
		if err := os.Rename(exe, backup); err != nil {
			return "", fmt.Errorf("failed to rename current executable: %w", err)
		}
		moved = backup
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return moved, fmt.Errorf("failed to create parent dir: %w", err)
	}

	return moved, nil
}

// Create creates or truncates path and returns a shared output handle
func (m *Manager) Create(path string) (port.OutputFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create target file: %w", err)
	}
	return NewSharedOutput(f, m.bufferSize), nil
}

// Open opens an existing file for reading
func (m *Manager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// DeleteFile removes a file
func (m *Manager) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// FileExists checks if a file exists
func (m *Manager) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GetFileSize returns the size of a file
func (m *Manager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}
