package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "automod/"

var _ CountStore = (*RedisCountStore)(nil)

// RedisCountStore shares counters between daemon instances. Plain counters are INCR keys; distinct counters are HyperLogLogs, so they are approximate at large cardinalities.
type RedisCountStore struct {
	Client *redis.Client
	// key namespace; DefaultRedisPrefix if empty
	Prefix string
	Clock  func() time.Time
}

func NewRedisCountStoreFromClient(rdb *redis.Client) *RedisCountStore {
	return &RedisCountStore{
		Client: rdb,
		Prefix: DefaultRedisPrefix,
	}
}

func (s *RedisCountStore) key(kind, bucket string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return prefix + kind + "/" + bucket
}

// bumpAll applies op to the bucket of every period in one MULTI/EXEC, so a counter never exists without its expiry.
func (s *RedisCountStore) bumpAll(ctx context.Context, kind, name, bucket string, op func(pipe redis.Pipeliner, key string)) error {
	now := clockOrNow(s.Clock)
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range periods {
			key := s.key(kind, periodBucket(name, bucket, p.name, now))
			op(pipe, key)
			if p.keep > 0 {
				pipe.Expire(ctx, key, p.keep)
			}
		}
		return nil
	})
	return err
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	key := s.key("count", periodBucket(name, val, period, clockOrNow(s.Clock)))
	c, err := s.Client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {
	return s.bumpAll(ctx, "count", name, val, func(pipe redis.Pipeliner, key string) {
		pipe.Incr(ctx, key)
	})
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	key := s.key("distinct", periodBucket(name, bucket, period, clockOrNow(s.Clock)))
	c, err := s.Client.PFCount(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int(c), nil
}

func (s *RedisCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	return s.bumpAll(ctx, "distinct", name, bucket, func(pipe redis.Pipeliner, key string) {
		pipe.PFAdd(ctx, key, val)
	})
}
