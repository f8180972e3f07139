// Package cache stores provider response bodies keyed by URL.
//
// Callers choose an expiry per call site from three tiers by how volatile
// the data is. An entry is served only while it is younger than the duration
// asked for by the current call; otherwise it is refetched and overwritten.
// There is only ever one entry per URL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mlbstreamer/internal/logger"
)

// Expiry tiers.
const (
	Short  = 60 * time.Second
	Medium = 24 * time.Hour
	Long   = 30 * 24 * time.Hour
)

// Entry is one cached response.
type Entry struct {
	Response []byte    `json:"response"`
	LastSeen time.Time `json:"last_seen"`
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for url. ok is false when there is none.
	Get(ctx context.Context, url string) (entry Entry, ok bool, err error)
	// Put stores entry under url, replacing any previous entry.
	Put(ctx context.Context, url string, entry Entry) error
	// Delete removes the entry for url, if any.
	Delete(ctx context.Context, url string) error
	// Purge deletes entries last seen before cutoff and reports how many.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
	// Close releases any resources held by the store.
	Close() error
}

// FetchFunc produces a fresh response body.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cache fronts a Store with the get-or-fetch policy.
type Cache struct {
	store Store
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the stored response for url if it is younger than
// duration, otherwise calls fetch and stores its result. With useCache false
// the store is neither read nor written.
//
// Store failures are logged and degrade to an uncached fetch; fetch errors
// are returned and nothing is stored.
func (c *Cache) GetOrFetch(ctx context.Context, url string, fetch FetchFunc, duration time.Duration, useCache bool) ([]byte, error) {
	if c == nil || !useCache {
		return fetch(ctx)
	}

	log := logger.GetLogger().WithField("url", url)
	entry, ok, err := c.store.Get(ctx, url)
	if err != nil {
		log.WithError(err).Warn("cache read failed")
	} else if ok && c.now().Sub(entry.LastSeen) < duration {
		log.Trace("cache hit")
		return entry.Response, nil
	}

	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(ctx, url, Entry{Response: body, LastSeen: c.now()}); err != nil {
		log.WithError(err).Warn("cache write failed")
	}
	return body, nil
}

// Invalidate drops the entry for url so the next GetOrFetch refetches it.
// Use it when a fetched body turns out to be unusable.
func (c *Cache) Invalidate(ctx context.Context, url string) error {
	if c == nil {
		return nil
	}
	if err := c.store.Delete(ctx, url); err != nil {
		return fmt.Errorf("invalidate %s: %w", url, err)
	}
	return nil
}

// Purge removes every entry older than the Long tier.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	if c == nil {
		return 0, nil
	}
	n, err := c.store.Purge(ctx, c.now().Add(-Long))
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	if n > 0 {
		logger.GetLogger().WithField("purged", n).Debug("purged stale cache entries")
	}
	return n, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.store.Close()
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache: store closed")
