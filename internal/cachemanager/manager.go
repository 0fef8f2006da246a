// Package cachemanager provides the caching tiers used by the research
// services: an in-memory TTL cache for repeated calls within a process and a
// disk tier under the cache directory so reruns across processes stay cheap.
// Keys are normalized so parameter ordering never produces spurious misses.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is the contract shared by the memory and disk tiers.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
