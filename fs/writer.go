// Package fs provides atomic file output for rendered documents.
package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Ensure AtomicWriter implements io.Writer at compile time.
var _ io.Writer = (*AtomicWriter)(nil)

// AtomicWriter writes to a temporary file next to its target and moves it
// into place on Commit. Readers never see a partially written target.
type AtomicWriter struct {
	path string
	tmp  *os.File
	done bool
}

// NewAtomicWriter creates the temporary file for path. The target's
// directory is created if needed.
func NewAtomicWriter(path string) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &AtomicWriter{path: path, tmp: tmp}, nil
}

// Write appends p to the temporary file.
func (w *AtomicWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.tmp.Write(p)
}

// Commit flushes the temporary file and renames it over the target.
func (w *AtomicWriter) Commit() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true

	if err := w.tmp.Sync(); err != nil {
		return errors.Join(err, w.cleanup())
	}
	if err := w.tmp.Close(); err != nil {
		return errors.Join(err, os.Remove(w.tmp.Name()))
	}
	if err := os.Chmod(w.tmp.Name(), 0644); err != nil {
		return errors.Join(err, os.Remove(w.tmp.Name()))
	}
	if err := os.Rename(w.tmp.Name(), w.path); err != nil {
		return errors.Join(err, os.Remove(w.tmp.Name()))
	}
	return nil
}

// Abort discards the temporary file and leaves the target untouched. It is
// a no-op after Commit.
func (w *AtomicWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.cleanup()
}

func (w *AtomicWriter) cleanup() error {
	_ = w.tmp.Close()
	return os.Remove(w.tmp.Name())
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	w, err := NewAtomicWriter(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Join(err, w.Abort())
	}
	return w.Commit()
}
