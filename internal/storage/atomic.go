package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriter writes a file through a temp file in the same directory and
// renames it over the target on Commit. Readers only ever observe the old or
// the new contents, never a partial write.
type AtomicWriter struct {
	path    string
	tmpPath string
	perm    os.FileMode
	file    *os.File
}

// NewAtomicWriter creates a writer for atomic updates of path. The final
// file gets mode perm.
func NewAtomicWriter(path string, perm os.FileMode) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".mlbstreamer-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &AtomicWriter{
		path:    path,
		tmpPath: tmpFile.Name(),
		perm:    perm,
		file:    tmpFile,
	}, nil
}

// Write writes data to the temporary file.
func (w *AtomicWriter) Write(p []byte) (n int, err error) {
	return w.file.Write(p)
}

// Commit syncs the temporary file and renames it over the target.
func (w *AtomicWriter) Commit() error {
	if err := w.file.Chmod(w.perm); err != nil {
		w.Abort()
		return fmt.Errorf("chmod: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Abort discards the temporary file without committing.
func (w *AtomicWriter) Abort() error {
	w.file.Close()
	return os.Remove(w.tmpPath)
}

// WriteFile replaces path with data in one rename.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	w, err := NewAtomicWriter(path, perm)
	if err != nil {
		return &StorageError{Op: "write", Entity: "file", ID: path, Err: err}
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return &StorageError{Op: "write", Entity: "file", ID: path, Err: err}
	}
	if err := w.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "file", ID: path, Err: err}
	}
	return nil
}
