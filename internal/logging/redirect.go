// Package logging provides console-output capture with size-based,
// line-boundary-aligned rotation for sub-service redirect files.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RedirectWriter streams a monitored child's console output to a file,
// rotating it by size without ever splitting a line across two files.
type RedirectWriter struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	size        int64
	rotateFiles int
	rotateBytes int64
}

// OpenRedirectWriter opens (creating if missing) the redirect file for
// append, recording its current size at open as the baseline for
// rotation accounting.
func OpenRedirectWriter(path string, rotateFiles int, rotateBytes int64) (*RedirectWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating redirect log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening redirect log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat redirect log: %w", err)
	}

	return &RedirectWriter{
		path:        path,
		file:        f,
		size:        info.Size(),
		rotateFiles: rotateFiles,
		rotateBytes: rotateBytes,
	}, nil
}

// Write appends p. If rotation is enabled and the projected size would
// exceed the threshold, it writes p up to and including its last line
// terminator (LF or CR), rotates, and writes the rest into the fresh
// file. Rotation always happens at that terminator, so no single line is ever
// split across the rotated-from and rotated-to files (spec property 7).
// When p has no terminator at all, the chunk is written whole and
// rotation is deferred to a subsequent chunk that does carry one.
func (w *RedirectWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rotationEnabled := w.rotateFiles > 0 && w.rotateBytes > 0
	if !rotationEnabled || w.size+int64(len(p)) <= w.rotateBytes {
		n, err := w.file.Write(p)
		w.size += int64(n)
		return n, err
	}

	return w.writeWithRotation(p)
}

func (w *RedirectWriter) writeWithRotation(p []byte) (int, error) {
	idx := lastLineTerminator(p)
	if idx < 0 {
		n, err := w.file.Write(p)
		w.size += int64(n)
		return n, err
	}

	prefix, suffix := p[:idx+1], p[idx+1:]
	written := 0

	if len(prefix) > 0 {
		n, err := w.file.Write(prefix)
		w.size += int64(n)
		written += n
		if err != nil {
			return written, err
		}
	}

	if err := w.rotate(); err != nil {
		return written, err
	}

	if len(suffix) > 0 {
		n, err := w.file.Write(suffix)
		w.size += int64(n)
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// lastLineTerminator returns the index of the last LF or CR in p, or -1.
func lastLineTerminator(p []byte) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '\n' || p[i] == '\r' {
			return i
		}
	}
	return -1
}

// rotate closes the current file, shifts backups, and opens a fresh one.
// Order mirrors spec §4.4 exactly: delete the oldest eligible backup
// first, then shift the rest up, then demote the live file to ".1".
func (w *RedirectWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing redirect log for rotation: %w", err)
	}

	n := w.rotateFiles
	oldest := fmt.Sprintf("%s.%d", w.path, n-1)
	_ = os.Remove(oldest)

	for k := n - 2; k >= 1; k-- {
		from := fmt.Sprintf("%s.%d", w.path, k)
		to := fmt.Sprintf("%s.%d", w.path, k+1)
		_ = os.Rename(from, to)
	}

	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("demoting redirect log: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopening redirect log: %w", err)
	}
	w.file = f
	w.size = 0
	return nil
}

// Size returns the tracked size of the current redirect file.
func (w *RedirectWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close flushes and closes the underlying file.
func (w *RedirectWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
