package cachemanager

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tiangong-ai/greenlit/internal/log"
)

// diskEntry wraps a cached payload with its expiry metadata.
type diskEntry struct {
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// DiskCacheManager persists entries as JSON files under a directory, one
// subtree per use case. A single process owns the cache directory for the
// duration of a run, so plain read-then-write semantics suffice.
type DiskCacheManager[K ~string, V any] struct {
	dir     string
	useCase string
}

// NewDiskCacheManager creates the disk tier rooted at dir/useCase.
func NewDiskCacheManager[K ~string, V any](dir, useCase string) (*DiskCacheManager[K, V], error) {
	root := filepath.Join(dir, useCase)
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, err
	}
	return &DiskCacheManager[K, V]{dir: root, useCase: useCase}, nil
}

func (c *DiskCacheManager[K, V]) path(key K) string {
	return filepath.Join(c.dir, string(key)+".json")
}

// Get reads and decodes an entry, treating expired or corrupt files as
// misses. Corrupt files are removed so they cannot shadow future writes.
func (c *DiskCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zero V

	data, err := os.ReadFile(c.path(key)) //nolint:gosec // G304: path is derived from a hashed cache key
	if err != nil {
		return zero, false
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn(log.CatCache, "dropping corrupt cache entry", "use_case", c.useCase, "key", key)
		_ = os.Remove(c.path(key))
		return zero, false
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		return zero, false
	}

	var value V
	if err := json.Unmarshal(entry.Payload, &value); err != nil {
		log.Warn(log.CatCache, "dropping undecodable cache payload", "use_case", c.useCase, "key", key)
		_ = os.Remove(c.path(key))
		return zero, false
	}

	log.Debug(log.CatCache, "disk cache hit", "use_case", c.useCase, "key", key)
	return value, true
}

// GetStale reads an entry ignoring expiry. Degraded-mode fallbacks prefer an
// outdated payload over none; the returned age lets callers report staleness.
func (c *DiskCacheManager[K, V]) GetStale(ctx context.Context, key K) (V, time.Time, bool) {
	var zero V

	data, err := os.ReadFile(c.path(key)) //nolint:gosec // G304: path is derived from a hashed cache key
	if err != nil {
		return zero, time.Time{}, false
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return zero, time.Time{}, false
	}
	var value V
	if err := json.Unmarshal(entry.Payload, &value); err != nil {
		return zero, time.Time{}, false
	}
	return value, entry.StoredAt, true
}

// Set encodes and writes an entry. Failures are logged, not returned: the
// cache is an optimization and a failed write must not fail the call.
func (c *DiskCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.ErrorErr(log.CatCache, "encoding cache payload", err, "use_case", c.useCase, "key", key)
		return
	}
	entry := diskEntry{StoredAt: time.Now(), Payload: payload}
	// Zero means no expiry; a negative ttl yields an already-expired entry,
	// readable only through GetStale.
	if ttl != 0 {
		entry.ExpiresAt = entry.StoredAt.Add(ttl)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.ErrorErr(log.CatCache, "encoding cache entry", err, "use_case", c.useCase, "key", key)
		return
	}
	if err := os.WriteFile(c.path(key), data, 0600); err != nil {
		log.ErrorErr(log.CatCache, "writing cache entry", err, "use_case", c.useCase, "key", key)
	}
}

// Delete removes entries by key.
func (c *DiskCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	for _, key := range keys {
		if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Flush removes the whole use-case subtree and recreates it.
func (c *DiskCacheManager[K, V]) Flush(ctx context.Context) error {
	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0750)
}
