// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resultcache persists one ResolutionResult per identifier. Entries
// never expire; a cached failure is replaced only when the caller asks for
// a retry or deletes it.
package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/findit/internal/kvstore"
	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/pkg/types"
)

// ErrNotFound is returned by Get when nothing is cached for the key.
var ErrNotFound = errors.New("no cached result")

// Cache stores results keyed by normalized identifier.
type Cache struct {
	store   *kvstore.Store
	metrics *observability.Metrics
}

// Open opens the cache database at path.
func Open(path string, metrics *observability.Metrics) (*Cache, error) {
	store, err := kvstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}
	return New(store, metrics), nil
}

// New wraps an open store.
func New(store *kvstore.Store, metrics *observability.Metrics) *Cache {
	return &Cache{store: store, metrics: metrics}
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Get returns the cached result for key. CreatedAt and UpdatedAt come from
// the row, not from the stored document.
func (c *Cache) Get(ctx context.Context, key string) (types.ResolutionResult, error) {
	entry, err := c.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		c.metrics.ObserveCache("result", false)
		return types.ResolutionResult{}, ErrNotFound
	}
	if err != nil {
		return types.ResolutionResult{}, err
	}
	c.metrics.ObserveCache("result", true)
	return decode(entry)
}

// Put replaces the result under key and returns it as a later Get will.
func (c *Cache) Put(ctx context.Context, key string, r types.ResolutionResult) (types.ResolutionResult, error) {
	r.CreatedAt, r.UpdatedAt = time.Time{}, time.Time{}
	data, err := json.Marshal(r)
	if err != nil {
		return types.ResolutionResult{}, fmt.Errorf("encoding result for %s: %w", key, err)
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return types.ResolutionResult{}, err
	}
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		return types.ResolutionResult{}, fmt.Errorf("reading back %s: %w", key, err)
	}
	return decode(entry)
}

// Delete removes the entry for key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	return c.store.Clear(ctx)
}

// List returns every cached result ordered by key.
func (c *Cache) List(ctx context.Context) ([]types.ResolutionResult, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]types.ResolutionResult, 0, len(keys))
	for _, k := range keys {
		entry, err := c.store.Get(ctx, k)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue // deleted by another process since Keys
		}
		if err != nil {
			return nil, err
		}
		r, err := decode(entry)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func decode(entry kvstore.Entry) (types.ResolutionResult, error) {
	var r types.ResolutionResult
	if err := json.Unmarshal(entry.Value, &r); err != nil {
		return types.ResolutionResult{}, fmt.Errorf("decoding cached result %s: %w", entry.Key, err)
	}
	r.CreatedAt = entry.CreatedAt
	r.UpdatedAt = entry.UpdatedAt
	return r, nil
}
