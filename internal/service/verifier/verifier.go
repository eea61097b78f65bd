// Package verifier checks downloaded files against expected digests.
package verifier

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
	"github.com/vertextoedge/artifact-fetcher/internal/port"
)

// Algorithm names a digest algorithm
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// hashBufferSize is the read size while hashing
const hashBufferSize = 256 * 1024

// Verifier hashes files through a FileSystem
type Verifier struct {
	fs port.FileSystem
}

// New creates a new Verifier
func New(fs port.FileSystem) *Verifier {
	return &Verifier{fs: fs}
}

// AlgorithmFor infers the algorithm from the hex length of a digest
func AlgorithmFor(digest string) (Algorithm, error) {
	switch len(normalize(digest)) {
	case sha256.Size * 2:
		return SHA256, nil
	case sha512.Size * 2:
		return SHA512, nil
	default:
		return "", fmt.Errorf("%w: digest of length %d", domain.ErrUnsupportedAlgorithm, len(normalize(digest)))
	}
}

// Digest streams path through alg and returns the lowercase hex digest
func (v *Verifier) Digest(path string, alg Algorithm) (string, error) {
	h, err := newHash(alg)
	if err != nil {
		return "", err
	}

	f, err := v.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.CopyBuffer(h, f, make([]byte, hashBufferSize)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify returns an *domain.IntegrityError when path does not hash to expected.
// Comparison is case-insensitive.
func (v *Verifier) Verify(path, expected string) error {
	alg, err := AlgorithmFor(expected)
	if err != nil {
		return err
	}

	actual, err := v.Digest(path, alg)
	if err != nil {
		return err
	}

	want := normalize(expected)
	if actual != want {
		return &domain.IntegrityError{Path: path, Expected: want, Actual: actual}
	}
	return nil
}

// Check reports whether path matches expected. Only failures to read or
// hash the file are returned as errors.
func (v *Verifier) Check(path, expected string) (bool, error) {
	err := v.Verify(path, expected)
	if err == nil {
		return true, nil
	}
	var ie *domain.IntegrityError
	if errors.As(err, &ie) {
		return false, nil
	}
	return false, err
}

func newHash(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, alg)
	}
}

func normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}
