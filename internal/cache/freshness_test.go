package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

type memoryStore struct {
	entries map[string]*Entry
	ttls    map[string]time.Duration
	failSet bool
	failGet bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries: make(map[string]*Entry),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *memoryStore) Get(_ context.Context, namespace, key string) (*Entry, error) {
	if m.failGet {
		return nil, errors.New("store down")
	}
	return m.entries[namespace+"/"+key], nil
}

func (m *memoryStore) Set(_ context.Context, namespace, key string, payload []byte, ttl time.Duration) error {
	if m.failSet {
		return errors.New("store down")
	}
	m.entries[namespace+"/"+key] = &Entry{Payload: payload, WrittenAt: time.Now()}
	m.ttls[namespace+"/"+key] = ttl
	return nil
}

func TestFetchOrFallback_FreshFetchRefreshesCache(t *testing.T) {
	store := newMemoryStore()
	f := NewFreshness(store)

	payload, info, err := f.FetchOrFallback(context.Background(), "weather", "now", 60*time.Second,
		func(ctx context.Context) ([]byte, error) {
			return []byte(`{"temp":27}`), nil
		})

	require.NoError(t, err)
	assert.Equal(t, `{"temp":27}`, string(payload))
	assert.False(t, info.Stale)
	assert.Zero(t, info.AgeSeconds)

	stored := store.entries["weather/now"]
	require.NotNil(t, stored)
	assert.Equal(t, `{"temp":27}`, string(stored.Payload))
	assert.Equal(t, 120*time.Second, store.ttls["weather/now"], "entries outlive the TTL by 2x for stale serving")
}

func TestFetchOrFallback_FailedFetchServesStaleWithAge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newMemoryStore()
	cachedAt := clock.Now().Add(-130 * time.Second)
	store.entries["weather/now"] = &Entry{Payload: []byte(`{"temp":24}`), WrittenAt: cachedAt}

	f := NewFreshnessWithClock(store, clock)

	payload, info, err := f.FetchOrFallback(context.Background(), "weather", "now", 60*time.Second,
		func(ctx context.Context) ([]byte, error) {
			return nil, errors.New("upstream timeout")
		})

	require.NoError(t, err)
	assert.Equal(t, `{"temp":24}`, string(payload))
	assert.True(t, info.Stale)
	assert.InDelta(t, 130, info.AgeSeconds, 0.5)
	require.NotNil(t, info.CachedAt)
	assert.True(t, info.CachedAt.Equal(cachedAt))
}

func TestFetchOrFallback_FailedFetchEmptyCacheIsSourceUnavailable(t *testing.T) {
	f := NewFreshness(newMemoryStore())

	_, _, err := f.FetchOrFallback(context.Background(), "radar", "latest", time.Minute,
		func(ctx context.Context) ([]byte, error) {
			return nil, errors.New("dns failure")
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSourceUnavailable)
}

func TestFetchOrFallback_CacheWriteFailureDoesNotFailRequest(t *testing.T) {
	store := newMemoryStore()
	store.failSet = true
	f := NewFreshness(store)

	payload, info, err := f.FetchOrFallback(context.Background(), "incidents", "open", time.Minute,
		func(ctx context.Context) ([]byte, error) {
			return []byte(`[]`), nil
		})

	require.NoError(t, err)
	assert.Equal(t, `[]`, string(payload))
	assert.False(t, info.Stale)
}

func TestFetchOrFallback_CacheReadFailureIsSourceUnavailable(t *testing.T) {
	store := newMemoryStore()
	store.failGet = true
	f := NewFreshness(store)

	_, _, err := f.FetchOrFallback(context.Background(), "weather", "now", time.Minute,
		func(ctx context.Context) ([]byte, error) {
			return nil, errors.New("upstream 500")
		})

	assert.ErrorIs(t, err, apperr.ErrSourceUnavailable)
}
