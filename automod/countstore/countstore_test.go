package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	testCountStoreBasics(t, NewMemCountStore())
}

func TestRedisCountStoreBasics(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	testCountStoreBasics(t, NewRedisCountStoreFromClient(rdb))
}

func testCountStoreBasics(t *testing.T, cs CountStore) {
	assert := assert.New(t)
	ctx := context.Background()

	c, err := cs.GetCount(ctx, "automod-decision", "guild1/ban", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "automod-decision", "guild1/ban"))
	assert.NoError(cs.Increment(ctx, "automod-decision", "guild1/ban"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "automod-decision", "guild1/ban", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	c, err = cs.GetCountDistinct(ctx, "automod-offenders", "guild2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.IncrementDistinct(ctx, "automod-offenders", "guild2", "one"))
	assert.NoError(cs.IncrementDistinct(ctx, "automod-offenders", "guild2", "one"))
	assert.NoError(cs.IncrementDistinct(ctx, "automod-offenders", "guild2", "one"))
	c, err = cs.GetCountDistinct(ctx, "automod-offenders", "guild2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)

	assert.NoError(cs.IncrementDistinct(ctx, "automod-offenders", "guild2", "two"))
	assert.NoError(cs.IncrementDistinct(ctx, "automod-offenders", "guild2", "three"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCountDistinct(ctx, "automod-offenders", "guild2", period)
		assert.NoError(err)
		assert.Equal(3, c)
	}
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "automod-decision", "guild1/ban", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)

	// Increment two different values from four different goroutines.
	// Read from two more (don't assert values; just that there's no error,
	// and no race (run this with `-race`!).
	// A short sleep ensures the scheduler is yielded to, so that order is decently random,
	// and reads are interleaved with writes.
	var wg sync.WaitGroup
	fnInc := func(name, val string, times int) {
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			assert.NoError(cs.IncrementDistinct(ctx, name, name, val))
			time.Sleep(time.Nanosecond)
		}
		wg.Done()
	}
	fnRead := func(name, val string, times int) {
		for i := 0; i < times; i++ {
			_, err := cs.GetCount(ctx, name, val, PeriodTotal)
			assert.NoError(err)
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(4)
	go fnInc("automod-decision", "guild1/ban", 10)
	go fnInc("automod-decision", "guild1/ban", 10)
	go fnRead("automod-decision", "guild1/ban", 10)
	go fnInc("automod-offenders", "guild2", 6)
	go fnInc("automod-offenders", "guild2", 6)
	go fnRead("automod-offenders", "guild2", 6)
	wg.Wait()

	// One final read for each value after all writer routines are collected.
	// This one should match a fixed value of the sum of all writes.
	c, err = cs.GetCount(ctx, "automod-decision", "guild1/ban", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "automod-offenders", "guild2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)

	// And what of distinct counts?  Those should be 1.
	c, err = cs.GetCountDistinct(ctx, "automod-decision", "automod-decision", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = cs.GetCountDistinct(ctx, "automod-offenders", "automod-offenders", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testPeriodRollover(t *testing.T, cs CountStore, clock *fakeClock) {
	assert := assert.New(t)
	ctx := context.Background()

	assert.NoError(cs.Increment(ctx, "automod-decision", "guild1/kick"))
	assert.NoError(cs.IncrementDistinct(ctx, "automod-offenders", "guild1", "u1"))

	// next hour, same day
	clock.Advance(time.Hour)
	assert.NoError(cs.Increment(ctx, "automod-decision", "guild1/kick"))
	assert.NoError(cs.IncrementDistinct(ctx, "automod-offenders", "guild1", "u2"))

	expect := map[string]int{PeriodHour: 1, PeriodDay: 2, PeriodTotal: 2}
	for period, n := range expect {
		c, err := cs.GetCount(ctx, "automod-decision", "guild1/kick", period)
		assert.NoError(err)
		assert.Equal(n, c, period)
		c, err = cs.GetCountDistinct(ctx, "automod-offenders", "guild1", period)
		assert.NoError(err)
		assert.Equal(n, c, period)
	}

	// next day
	clock.Advance(24 * time.Hour)
	for period, n := range map[string]int{PeriodHour: 0, PeriodDay: 0, PeriodTotal: 2} {
		c, err := cs.GetCount(ctx, "automod-decision", "guild1/kick", period)
		assert.NoError(err)
		assert.Equal(n, c, period)
	}
}

func TestMemCountStoreRollover(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)}
	cs := NewMemCountStore()
	cs.Clock = clock.Now
	testPeriodRollover(t, cs, clock)

	// old hour and day buckets are dropped on the next write
	assert.Equal(t, 8, cs.size())
	clock.Advance(72 * time.Hour)
	assert.NoError(t, cs.Increment(context.Background(), "automod-decision", "guild1/kick"))
	// both totals, plus the new hour and day counters
	assert.Equal(t, 4, cs.size())
	c, err := cs.GetCount(context.Background(), "automod-decision", "guild1/kick", PeriodTotal)
	assert.NoError(t, err)
	assert.Equal(t, 3, c)
}

func TestRedisCountStoreRollover(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)}
	cs := NewRedisCountStoreFromClient(rdb)
	cs.Clock = clock.Now
	testPeriodRollover(t, cs, clock)
}

func TestRedisCountStoreKeys(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cs := NewRedisCountStoreFromClient(rdb)
	cs.Prefix = "staging/"
	cs.Clock = func() time.Time { return time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC) }
	assert.NoError(cs.Increment(ctx, "automod-decision", "guild1/ban"))

	assert.True(mr.Exists("staging/count/automod-decision/guild1/ban"))
	assert.Equal(time.Duration(0), mr.TTL("staging/count/automod-decision/guild1/ban"))
	assert.Equal(2*time.Hour, mr.TTL("staging/count/automod-decision/guild1/ban/2024-03-01T10"))
	assert.Equal(48*time.Hour, mr.TTL("staging/count/automod-decision/guild1/ban/2024-03-01"))

	// hour buckets expire on their own
	mr.FastForward(3 * time.Hour)
	assert.False(mr.Exists("staging/count/automod-decision/guild1/ban/2024-03-01T10"))
	assert.True(mr.Exists("staging/count/automod-decision/guild1/ban/2024-03-01"))
}
