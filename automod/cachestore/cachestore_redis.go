package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "automod/cache/"

// RedisCacheStore shares cached values between daemon instances, with a small in-process TinyLFU layer in front of redis.
//
// The local layer is per instance: a Purge on one instance leaves other instances' local copies until their local TTL runs out, so keep LocalTTL short.
type RedisCacheStore struct {
	data   *cache.Cache
	prefix string
	ttl    time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

type RedisOptions struct {
	// key prefix in redis; DefaultRedisPrefix if empty
	Prefix string
	// redis entry lifetime
	TTL time.Duration
	// in-process layer lifetime; zero disables the local layer
	LocalTTL  time.Duration
	LocalSize int
}

func NewRedisCacheStore(rdb *redis.Client, opts RedisOptions) *RedisCacheStore {
	copts := &cache.Options{Redis: rdb}
	if opts.LocalTTL > 0 {
		size := opts.LocalSize
		if size <= 0 {
			size = 10_000
		}
		copts.LocalCache = cache.NewTinyLFU(size, opts.LocalTTL)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCacheStore{
		data:   cache.New(copts),
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisCacheStore) redisKey(name, key string) string {
	return s.prefix + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) ([]byte, bool, error) {
	var val []byte
	err := s.data.Get(ctx, s.redisKey(name, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val []byte) error {
	return s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.redisKey(name, key),
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.data.Delete(ctx, s.redisKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
