package port

// SpaceCheckResult contains detailed space availability information
type SpaceCheckResult struct {
	HasSpace       bool
	RequiredBytes  int64
	AvailableBytes uint64
	DiskUsedPct    float64
}

// SpaceChecker defines the interface for destination space checks
type SpaceChecker interface {
	// CheckSpace checks if the volume holding destPath can hold size more bytes
	CheckSpace(destPath string, size int64) (*SpaceCheckResult, error)
}
