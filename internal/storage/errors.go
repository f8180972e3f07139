// Package storage holds the low-level file primitives shared by the
// credential store and the response cache.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageCorrupt indicates a persisted file could not be decoded.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and entity context.
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("read", "write", "lock", "remove").
	Op string
	// Entity is the kind of thing being stored ("session", "cookies", "cache").
	Entity string
	// ID is the file path or key if applicable.
	ID string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }
