package cachemanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// ReadThroughCache wraps a fetch function behind the memory and disk tiers.
// A hit is behaviorally indistinguishable from a fresh call except for
// recency. shouldSkipCache bypasses both tiers entirely (used by --no-cache).
type ReadThroughCache[K ~string, V any, I any] struct {
	memory          CacheManager[K, V]
	disk            CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
}

// NewReadThroughCache builds a read-through cache. disk may be nil when only
// the in-process tier is wanted (tests, ephemeral invocations).
func NewReadThroughCache[K ~string, V any, I any](
	memory CacheManager[K, V],
	disk CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		memory:          memory,
		disk:            disk,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

// Get returns the cached value for key or fetches, caching the result in
// both tiers with the given TTL. A memory miss falling through to a disk hit
// repopulates the memory tier.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.memory.Get(ctx, key); ok {
		return value, nil
	}
	if r.disk != nil {
		if value, ok := r.disk.Get(ctx, key); ok {
			r.memory.Set(ctx, key, value, ttl)
			return value, nil
		}
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}

	r.memory.Set(ctx, key, value, ttl)
	if r.disk != nil {
		r.disk.Set(ctx, key, value, ttl)
	}
	return value, nil
}

// NormalizedKey derives a stable cache key from a source id and a parameter
// map. Parameters are serialized in sorted key order so callers supplying
// equivalent maps always land on the same entry.
func NormalizedKey(sourceID string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := struct {
		Source string      `json:"source"`
		Params [][2]string `json:"params"`
	}{Source: sourceID}
	for _, k := range keys {
		canonical.Params = append(canonical.Params, [2]string{k, params[k]})
	}

	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
