package filesystem

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/vertextoedge/artifact-fetcher/internal/port"
)

// SpaceManager checks the destination volume before a transfer starts
type SpaceManager struct {
	fs port.FileSystem

	// reserve is kept free on top of the transfer size
	reserve uint64
}

// Ensure SpaceManager implements port.SpaceChecker
var _ port.SpaceChecker = (*SpaceManager)(nil)

// NewSpaceManager creates a new SpaceManager
func NewSpaceManager(fs port.FileSystem, reserveBytes uint64) *SpaceManager {
	return &SpaceManager{fs: fs, reserve: reserveBytes}
}

// CheckSpace checks if the volume holding destPath can take size more bytes
func (sm *SpaceManager) CheckSpace(destPath string, size int64) (*port.SpaceCheckResult, error) {
	result := &port.SpaceCheckResult{RequiredBytes: size}

	usage, err := sm.diskUsage(filepath.Dir(destPath))
	if err != nil {
		return nil, err
	}
	result.AvailableBytes = usage.Free
	result.DiskUsedPct = usage.UsedPct

	if size <= 0 {
		result.HasSpace = true
		return result, nil
	}

	result.HasSpace = uint64(size)+sm.reserve <= usage.Free
	return result, nil
}

// diskUsage stats dir, or its nearest existing ancestor when dir has not
// been created yet
func (sm *SpaceManager) diskUsage(dir string) (*port.DiskUsage, error) {
	for {
		usage, err := sm.fs.GetDiskUsage(dir)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return usage, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, err
		}
		dir = parent
	}
}
