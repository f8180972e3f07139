package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	ctx := context.Background()
	seen := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

	s1, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, "u1", Entry{Response: []byte("body"), LastSeen: seen}))
	require.NoError(t, s1.Close())

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	e, ok, err := s2.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "body", string(e.Response))
	assert.True(t, seen.Equal(e.LastSeen))
}

func TestFileStore_MergesWritesFromOtherHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	ctx := context.Background()
	now := time.Now()

	a, err := NewFileStore(path)
	require.NoError(t, err)
	b, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, a.Put(ctx, "a", Entry{Response: []byte("1"), LastSeen: now}))
	require.NoError(t, b.Put(ctx, "b", Entry{Response: []byte("2"), LastSeen: now}))

	_, ok, _ := b.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, b.Len())
}

func TestFileStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestFileStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "u", Entry{LastSeen: time.Now()}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_ClosedRejectsUse(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Get(context.Background(), "u")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(context.Background(), "u", Entry{}), ErrClosed)
}
