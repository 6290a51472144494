package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"

	"github.com/stretchr/testify/assert"
)

type reversals struct {
	mu  sync.Mutex
	got []store.ScheduledAction
}

func (r *reversals) record(ctx context.Context, sa store.ScheduledAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, sa)
	return nil
}

func (r *reversals) list() []store.ScheduledAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.ScheduledAction{}, r.got...)
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(st store.Store, now *time.Time) (*Scheduler, *reversals) {
	rev := &reversals{}
	s := NewScheduler(st, rev.record, nil)
	s.Clock = func() time.Time { return *now }
	return s, rev
}

func TestScheduleDedupe(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := epoch
	s, rev := newTestScheduler(store.NewMemStore(), &now)

	id1, err := s.Schedule(ctx, "u1", "g1", action.Ban, now.Add(time.Hour), "temp ban")
	assert.NoError(err)
	id2, err := s.Schedule(ctx, "u1", "g1", action.Ban, now.Add(2*time.Hour), "temp ban")
	assert.NoError(err)
	assert.Equal(id1, id2)
	// an earlier expiry never shortens the pending entry
	id3, err := s.Schedule(ctx, "u1", "g1", action.Ban, now.Add(time.Minute), "temp ban")
	assert.NoError(err)
	assert.Equal(id1, id3)

	pending := s.Pending()
	if assert.Len(pending, 1) {
		assert.True(pending[0].ExpiresAt.Equal(epoch.Add(2 * time.Hour)))
	}

	// different action is a different key
	other, err := s.Schedule(ctx, "u1", "g1", action.Timeout, now.Add(time.Minute), "")
	assert.NoError(err)
	assert.NotEqual(id1, other)

	now = epoch.Add(time.Hour)
	assert.Equal(1, s.fireDue(ctx))
	now = epoch.Add(3 * time.Hour)
	assert.Equal(1, s.fireDue(ctx))
	assert.Equal(0, s.fireDue(ctx))

	got := rev.list()
	if assert.Len(got, 2) {
		assert.Equal(action.Timeout, got[0].Action)
		assert.Equal(action.Ban, got[1].Action)
		assert.Equal(id1, got[1].ID)
		assert.True(got[1].Fired)
	}
	assert.Empty(s.Pending())

	_, err = s.Schedule(ctx, "", "g1", action.Ban, now, "")
	assert.Error(err)
}

func TestCancel(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := epoch
	s, rev := newTestScheduler(store.NewMemStore(), &now)

	id, err := s.Schedule(ctx, "u1", "g1", action.Timeout, now.Add(time.Minute), "")
	assert.NoError(err)
	res, err := s.Cancel(ctx, id)
	assert.NoError(err)
	assert.Equal(Cancelled, res)

	now = epoch.Add(time.Hour)
	assert.Equal(0, s.fireDue(ctx))
	assert.Empty(rev.list())

	res, err = s.Cancel(ctx, id)
	assert.NoError(err)
	assert.Equal(NotFound, res)

	id, err = s.Schedule(ctx, "u2", "g1", action.Timeout, now.Add(time.Minute), "")
	assert.NoError(err)
	now = now.Add(time.Minute)
	assert.Equal(1, s.fireDue(ctx))
	res, err = s.Cancel(ctx, id)
	assert.NoError(err)
	assert.Equal(AlreadyFired, res)
	assert.Equal("already_fired", res.String())
}

func TestRestoreAfterRestart(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := store.NewMemStore()
	now := epoch

	first, firstRev := newTestScheduler(st, &now)
	id, err := first.Schedule(ctx, "u1", "g1", action.Ban, now.Add(time.Hour), "")
	assert.NoError(err)

	// process restarts before expiry; the overdue entry fires on the first pass
	now = epoch.Add(2 * time.Hour)
	second, secondRev := newTestScheduler(st, &now)
	n, err := second.Restore(ctx)
	assert.NoError(err)
	assert.Equal(1, n)
	assert.Equal(1, second.fireDue(ctx))

	// the old instance sees the fired flag and skips it
	assert.Equal(0, first.fireDue(ctx))

	assert.Empty(firstRev.list())
	if assert.Len(secondRev.list(), 1) {
		assert.Equal(id, secondRev.list()[0].ID)
	}

	third, _ := newTestScheduler(st, &now)
	n, err = third.Restore(ctx)
	assert.NoError(err)
	assert.Equal(0, n)
}

func TestRestoreDedupe(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := store.NewMemStore()
	now := epoch

	assert.NoError(st.SaveScheduledAction(ctx, &store.ScheduledAction{ID: "a", UserID: "u1", GuildID: "g1", Action: action.Ban, ExpiresAt: now.Add(time.Hour)}))
	assert.NoError(st.SaveScheduledAction(ctx, &store.ScheduledAction{ID: "b", UserID: "u1", GuildID: "g1", Action: action.Ban, ExpiresAt: now.Add(2 * time.Hour)}))

	s, rev := newTestScheduler(st, &now)
	n, err := s.Restore(ctx)
	assert.NoError(err)
	assert.Equal(1, n)
	pending := s.Pending()
	if assert.Len(pending, 1) {
		assert.Equal("b", pending[0].ID)
	}
	_, err = st.GetScheduledAction(ctx, "a")
	assert.ErrorIs(err, store.ErrNotFound)

	now = epoch.Add(3 * time.Hour)
	assert.Equal(1, s.fireDue(ctx))
	assert.Len(rev.list(), 1)
}

type flakyStore struct {
	*store.MemStore
	broken atomic.Bool
}

func (s *flakyStore) MarkFired(ctx context.Context, id string) (bool, error) {
	if s.broken.Load() {
		return false, errors.New("database unavailable")
	}
	return s.MemStore.MarkFired(ctx, id)
}

func TestMarkFiredFailureRetries(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := &flakyStore{MemStore: store.NewMemStore()}
	now := epoch
	s, rev := newTestScheduler(st, &now)
	s.RetryDelay = time.Minute

	_, err := s.Schedule(ctx, "u1", "g1", action.Timeout, now.Add(time.Minute), "")
	assert.NoError(err)

	st.broken.Store(true)
	now = epoch.Add(time.Minute)
	assert.Equal(0, s.fireDue(ctx))
	assert.True(s.Degraded())
	assert.Empty(rev.list())
	assert.Len(s.Pending(), 1)

	st.broken.Store(false)
	// not retried before the delay
	now = now.Add(30 * time.Second)
	assert.Equal(0, s.fireDue(ctx))
	now = now.Add(30 * time.Second)
	assert.Equal(1, s.fireDue(ctx))
	assert.False(s.Degraded())
	assert.Len(rev.list(), 1)
}

func TestRunLoop(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan store.ScheduledAction, 1)
	s := NewScheduler(store.NewMemStore(), func(ctx context.Context, sa store.ScheduledAction) error {
		fired <- sa
		return nil
	}, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	id, err := s.Schedule(ctx, "u1", "g1", action.Timeout, time.Now().Add(20*time.Millisecond), "")
	assert.NoError(err)

	select {
	case sa := <-fired:
		assert.Equal(id, sa.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("reversal never fired")
	}

	cancel()
	assert.NoError(<-done)
}

func TestReversalPanicIsRecovered(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := epoch
	s := NewScheduler(store.NewMemStore(), func(ctx context.Context, sa store.ScheduledAction) error {
		panic("adapter exploded")
	}, nil)
	s.Clock = func() time.Time { return now }

	_, err := s.Schedule(ctx, "u1", "g1", action.Timeout, now, "")
	assert.NoError(err)
	assert.Equal(1, s.fireDue(ctx))
}

// blockingStore holds MarkFired until released, so a request can arrive while an entry is firing.
type blockingStore struct {
	*store.MemStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) MarkFired(ctx context.Context, id string) (bool, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.MemStore.MarkFired(ctx, id)
}

func TestDuplicateScheduleWhileFiring(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := &blockingStore{
		MemStore: store.NewMemStore(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	now := epoch
	s, rev := newTestScheduler(st, &now)

	expires := epoch.Add(time.Hour)
	id, err := s.Schedule(ctx, "u1", "g1", action.Ban, expires, "temp ban")
	assert.NoError(err)

	now = expires
	done := make(chan int, 1)
	go func() { done <- s.fireDue(ctx) }()
	<-st.entered

	dup, err := s.Schedule(ctx, "u1", "g1", action.Ban, expires, "temp ban")
	assert.NoError(err)
	assert.Equal(id, dup)
	assert.Empty(s.Pending())

	close(st.release)
	assert.Equal(1, <-done)
	assert.Equal(0, s.fireDue(ctx))
	assert.Len(rev.list(), 1)
}

func TestDuplicateScheduleAfterFire(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := epoch
	s, rev := newTestScheduler(store.NewMemStore(), &now)

	expires := epoch.Add(time.Hour)
	id, err := s.Schedule(ctx, "u1", "g1", action.Ban, expires, "temp ban")
	assert.NoError(err)
	now = expires
	assert.Equal(1, s.fireDue(ctx))

	// a replayed request for the same ban is absorbed
	dup, err := s.Schedule(ctx, "u1", "g1", action.Ban, expires, "temp ban")
	assert.NoError(err)
	assert.Equal(id, dup)
	assert.Empty(s.Pending())
	assert.Equal(0, s.fireDue(ctx))
	assert.Len(rev.list(), 1)

	// a new, longer ban is a separate entry
	next, err := s.Schedule(ctx, "u1", "g1", action.Ban, expires.Add(time.Hour), "temp ban")
	assert.NoError(err)
	assert.NotEqual(id, next)
	now = expires.Add(time.Hour)
	assert.Equal(1, s.fireDue(ctx))
	assert.Len(rev.list(), 2)
}

// firingStore marks the entry fired just before the conditional delete runs.
type firingStore struct {
	*store.MemStore
}

func (s *firingStore) CancelScheduledAction(ctx context.Context, id string) (bool, error) {
	if _, err := s.MemStore.MarkFired(ctx, id); err != nil {
		return false, err
	}
	return s.MemStore.CancelScheduledAction(ctx, id)
}

func TestCancelLosesRaceWithFire(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := epoch
	s, _ := newTestScheduler(&firingStore{MemStore: store.NewMemStore()}, &now)

	id, err := s.Schedule(ctx, "u1", "g1", action.Timeout, now.Add(time.Minute), "")
	assert.NoError(err)
	res, err := s.Cancel(ctx, id)
	assert.NoError(err)
	assert.Equal(AlreadyFired, res)
}
