package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("MLBSTREAMER_TEST_REDIS")
	if addr == "" {
		t.Skip("MLBSTREAMER_TEST_REDIS not set")
	}
	ctx := context.Background()
	s, err := DialRedis(ctx, addr, 0)
	require.NoError(t, err)
	s.prefix = "mlbstreamer:test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		s.Purge(ctx, time.Now().Add(time.Hour))
		s.Close()
	})
	return s
}

func TestRedisStore_RoundTripAndPurge(t *testing.T) {
	s := redisStore(t)
	ctx := context.Background()
	old := time.Now().Add(-40 * 24 * time.Hour).Truncate(time.Millisecond)
	fresh := time.Now().Truncate(time.Millisecond)

	require.NoError(t, s.Put(ctx, "old", Entry{Response: []byte("o"), LastSeen: old}))
	require.NoError(t, s.Put(ctx, "fresh", Entry{Response: []byte("f"), LastSeen: fresh}))

	e, ok, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f", string(e.Response))
	assert.True(t, fresh.Equal(e.LastSeen))

	n, err := s.Purge(ctx, time.Now().Add(-Long))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Delete(t *testing.T) {
	s := redisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "u1", Entry{Response: []byte("x"), LastSeen: time.Now()}))
	require.NoError(t, s.Delete(ctx, "u1"))

	_, ok, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}
