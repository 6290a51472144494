package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
)

// CacheStore holds serialized values in named namespaces. A miss is not an error: Get reports it with ok=false, so an empty value is distinguishable from no entry.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, name, key string, val []byte) error
	Purge(ctx context.Context, name, key string) error
}

// GetJSON reads and decodes a cached value. A cached JSON null comes back as (nil, true, nil), which callers use to remember that there is nothing to load.
//
// Entries which fail to decode are purged and reported as a miss along with the decode error.
func GetJSON[T any](ctx context.Context, cs CacheStore, name, key string) (*T, bool, error) {
	raw, ok, err := cs.Get(ctx, name, key)
	if err != nil {
		lookupCount.WithLabelValues(name, "error").Inc()
		return nil, false, err
	}
	if !ok {
		lookupCount.WithLabelValues(name, "miss").Inc()
		return nil, false, nil
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		lookupCount.WithLabelValues(name, "corrupt").Inc()
		_ = cs.Purge(ctx, name, key)
		return nil, false, fmt.Errorf("decoding cached %s/%s: %w", name, key, err)
	}
	lookupCount.WithLabelValues(name, "hit").Inc()
	return v, true, nil
}

// SetJSON encodes and caches v. A nil v is cached as JSON null.
func SetJSON[T any](ctx context.Context, cs CacheStore, name, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return cs.Set(ctx, name, key, raw)
}
