package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"mlbstreamer/internal/storage"
)

const (
	fileSchemaVersion = 1
	lockTimeout       = 5 * time.Second
)

// FileStore keeps the cache in one JSON file. Every write re-reads the file
// under an advisory lock, applies the change and replaces the file whole, so
// concurrent runs never interleave partial writes.
type FileStore struct {
	path    string
	lock    *storage.FileLock
	mu      sync.RWMutex
	entries map[string]Entry
	closed  bool
}

type fileData struct {
	Version   int              `json:"version"`
	UpdatedAt time.Time        `json:"updated_at"`
	Entries   map[string]Entry `json:"entries"`
}

// NewFileStore opens (or lazily creates) the cache file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		lock: storage.NewFileLock(path),
	}
	entries, err := s.read()
	if err != nil {
		return nil, err
	}
	s.entries = entries
	return s, nil
}

func (s *FileStore) read() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Entry{}, nil
		}
		return nil, &storage.StorageError{Op: "read", Entity: "cache", ID: s.path, Err: err}
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil || fd.Version != fileSchemaVersion {
		// A cache is disposable; start over rather than fail the run.
		return map[string]Entry{}, nil
	}
	if fd.Entries == nil {
		fd.Entries = map[string]Entry{}
	}
	return fd.Entries, nil
}

func (s *FileStore) write(entries map[string]Entry) error {
	data, err := json.Marshal(fileData{
		Version:   fileSchemaVersion,
		UpdatedAt: time.Now().UTC(),
		Entries:   entries,
	})
	if err != nil {
		return &storage.StorageError{Op: "write", Entity: "cache", ID: s.path, Err: err}
	}
	return storage.WriteFile(s.path, data, 0600)
}

// update applies fn to the on-disk entries under the file lock.
func (s *FileStore) update(fn func(map[string]Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.lock.Lock(lockTimeout); err != nil {
		return err
	}
	defer s.lock.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	fn(entries)
	if err := s.write(entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, url string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := s.entries[url]
	return e, ok, nil
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, url string, entry Entry) error {
	return s.update(func(entries map[string]Entry) {
		entries[url] = entry
	})
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, url string) error {
	return s.update(func(entries map[string]Entry) {
		delete(entries, url)
	})
}

// Purge implements Store.
func (s *FileStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	err := s.update(func(entries map[string]Entry) {
		for url, e := range entries {
			if e.LastSeen.Before(cutoff) {
				delete(entries, url)
				n++
			}
		}
	})
	return n, err
}

// Len reports the number of entries currently loaded.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
