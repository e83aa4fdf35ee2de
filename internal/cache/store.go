package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is a cached payload plus the moment it was written. The write
// timestamp is what lets the fallback path report how old a stale value is.
type Entry struct {
	Payload   []byte
	WrittenAt time.Time
}

// Store is the last-known-good payload store keyed by (namespace, key).
type Store interface {
	// Get returns the entry, or (nil, nil) on a miss.
	Get(ctx context.Context, namespace, key string) (*Entry, error)
	// Set overwrites the entry and its write timestamp.
	Set(ctx context.Context, namespace, key string, payload []byte, ttl time.Duration) error
}

// RedisStore keeps payloads in Redis under "cor:<ns>:<key>" with a sibling
// "cor:<ns>:<key>:ts" holding the write timestamp, both sharing one TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func makeKey(namespace, key string) string {
	return fmt.Sprintf("cor:%s:%s", namespace, key)
}

func makeTimestampKey(namespace, key string) string {
	return makeKey(namespace, key) + ":ts"
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) (*Entry, error) {
	payload, err := s.rdb.Get(ctx, makeKey(namespace, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s:%s: %w", namespace, key, err)
	}

	entry := &Entry{Payload: payload}
	if ts, err := s.rdb.Get(ctx, makeTimestampKey(namespace, key)).Result(); err == nil {
		if at, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			entry.WrittenAt = at
		}
	}
	return entry, nil
}

func (s *RedisStore) Set(ctx context.Context, namespace, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, makeKey(namespace, key), payload, ttl)
	pipe.Set(ctx, makeTimestampKey(namespace, key), now, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set %s:%s: %w", namespace, key, err)
	}
	return nil
}
