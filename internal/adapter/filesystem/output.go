package filesystem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// SharedOutput is one destination file handle shared by all workers of a
// transfer. The mutex covers every seek+write pair and is never held
// across network I/O.
type SharedOutput struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	closed bool
}

// NewSharedOutput wraps an open file
func NewSharedOutput(f *os.File, bufferSize int) *SharedOutput {
	return &SharedOutput{
		file: f,
		buf:  bufio.NewWriterSize(f, bufferSize),
	}
}

// WriteAt seeks to offset and writes p under the lock
func (o *SharedOutput) WriteAt(p []byte, offset int64) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, os.ErrClosed
	}
	if _, err := o.file.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek to %d: %w", offset, err)
	}
	n, err := o.file.Write(p)
	if err != nil {
		return n, fmt.Errorf("write at %d: %w", offset, err)
	}
	return n, nil
}

// Write appends p through the block buffer
func (o *SharedOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, os.ErrClosed
	}
	return o.buf.Write(p)
}

// Finalize flushes, syncs and closes the file
func (o *SharedOutput) Finalize() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	if err := o.buf.Flush(); err != nil {
		o.file.Close()
		return fmt.Errorf("failed to flush target file: %w", err)
	}
	if err := o.file.Sync(); err != nil {
		o.file.Close()
		return fmt.Errorf("failed to sync target file: %w", err)
	}
	if err := o.file.Close(); err != nil {
		return fmt.Errorf("failed to close target file: %w", err)
	}
	return nil
}

// Abort closes the file without flushing buffered data
func (o *SharedOutput) Abort() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	return o.file.Close()
}
