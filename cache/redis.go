package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "mlbstreamer:cache:"

// RedisStore keeps entries as Redis hashes {response, last_seen}. Keys also
// carry a Long-tier TTL so Redis evicts them even if Purge never runs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisStore(client, ""), nil
}

func (s *RedisStore) key(url string) string {
	return s.prefix + url
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, url string) (Entry, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.key(url)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	if len(vals) == 0 {
		return Entry{}, false, nil
	}
	ms, err := strconv.ParseInt(vals["last_seen"], 10, 64)
	if err != nil {
		return Entry{}, false, nil
	}
	return Entry{
		Response: []byte(vals["response"]),
		LastSeen: time.UnixMilli(ms).UTC(),
	}, true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, url string, entry Entry) error {
	key := s.key(url)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"response", entry.Response,
		"last_seen", entry.LastSeen.UnixMilli(),
	)
	pipe.Expire(ctx, key, Long)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, url string) error {
	return s.client.Del(ctx, s.key(url)).Err()
}

// Purge implements Store.
func (s *RedisStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.HGet(ctx, key, "last_seen").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return n, err
		}
		ms, perr := strconv.ParseInt(raw, 10, 64)
		if perr == nil && !time.UnixMilli(ms).Before(cutoff) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
