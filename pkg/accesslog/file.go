package accesslog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileBackend appends Common Log Format lines to a file. Writes go through
// a bufio.Writer flushed on every entry; the buffer only smooths multi-line
// bursts inside one Write call.
type FileBackend struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// NewFileBackend opens (or creates) the log file for appending.
func NewFileBackend(path string) (*FileBackend, error) {
	b := &FileBackend{path: path}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) open() error {
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open access log %q: %w", b.path, err)
	}
	b.file = f
	b.w = bufio.NewWriter(f)
	return nil
}

// Write appends one entry.
func (b *FileBackend) Write(ctx context.Context, e *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.w.WriteString(e.CommonLogLine() + "\n"); err != nil {
		return err
	}
	return b.w.Flush()
}

// Rotate renames the current file with a timestamp suffix and reopens a
// fresh one at the original path. Rotation is atomic with respect to Write.
func (b *FileBackend) Rotate() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.w.Flush(); err != nil {
		return err
	}
	if err := b.file.Close(); err != nil {
		return err
	}

	rotated := fmt.Sprintf("%s.%s", b.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(b.path, rotated); err != nil {
		// The reopen below recreates the file either way; report the rename.
		_ = b.open()
		return fmt.Errorf("failed to rotate access log: %w", err)
	}
	return b.open()
}

// Close flushes and closes the file.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.w.Flush(); err != nil {
		b.file.Close()
		return err
	}
	return b.file.Close()
}
