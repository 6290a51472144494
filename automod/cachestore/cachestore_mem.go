package cachestore

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memKey struct {
	name string
	key  string
}

// MemCacheStore is an in-process LRU with a fixed TTL for every entry, for single-instance deployments without redis.
type MemCacheStore struct {
	data *expirable.LRU[memKey, []byte]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		data: expirable.NewLRU[memKey, []byte](capacity, nil, ttl),
	}
}

// Get returns a copy; callers may modify it.
func (s *MemCacheStore) Get(ctx context.Context, name, key string) ([]byte, bool, error) {
	v, ok := s.data.Get(memKey{name, key})
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val []byte) error {
	s.data.Add(memKey{name, key}, slices.Clone(val))
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.data.Remove(memKey{name, key})
	return nil
}

// Len counts entries across every namespace, including expired ones not yet swept.
func (s *MemCacheStore) Len() int {
	return s.data.Len()
}
