package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

// FetchFunc pulls a fresh payload from an upstream provider.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Info describes how a payload was obtained.
type Info struct {
	Stale      bool       `json:"stale"`
	AgeSeconds float64    `json:"age_seconds"`
	CachedAt   *time.Time `json:"cached_at,omitempty"`
}

// Freshness implements fetch-first with cached fallback: a successful fetch
// refreshes the cache, a failed fetch serves the last known payload marked
// stale, and a failed fetch with an empty cache is a source-unavailable error.
type Freshness struct {
	store Store
	clock clockwork.Clock
}

func NewFreshness(store Store) *Freshness {
	return &Freshness{store: store, clock: clockwork.NewRealClock()}
}

// NewFreshnessWithClock is for tests that need to control time.
func NewFreshnessWithClock(store Store, clock clockwork.Clock) *Freshness {
	return &Freshness{store: store, clock: clock}
}

// FetchOrFallback attempts fetch and falls back to the cache on failure.
// Entries are stored for twice the TTL so a value outliving its freshness
// window is still available to serve stale.
func (f *Freshness) FetchOrFallback(ctx context.Context, namespace, key string, ttl time.Duration, fetch FetchFunc) ([]byte, *Info, error) {
	payload, fetchErr := fetch(ctx)
	if fetchErr == nil {
		if err := f.store.Set(ctx, namespace, key, payload, 2*ttl); err != nil {
			log.Printf("[cache] write failed for %s:%s: %v", namespace, key, err)
		}
		return payload, &Info{Stale: false}, nil
	}

	log.Printf("[cache] fetch failed for %s:%s, trying fallback: %v", namespace, key, fetchErr)

	entry, err := f.store.Get(ctx, namespace, key)
	if err != nil {
		log.Printf("[cache] read failed for %s:%s: %v", namespace, key, err)
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("%s/%s: %w", namespace, key, apperr.ErrSourceUnavailable)
	}

	info := &Info{Stale: true}
	if !entry.WrittenAt.IsZero() {
		at := entry.WrittenAt
		info.CachedAt = &at
		info.AgeSeconds = f.clock.Now().Sub(at).Seconds()
		if info.AgeSeconds < 0 {
			info.AgeSeconds = 0
		}
	}
	return entry.Payload, info, nil
}
