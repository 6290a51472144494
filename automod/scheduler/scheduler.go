// Package scheduler tracks time-bounded moderation actions (timeouts, temporary bans) and emits a reversal when each one expires.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ReversalFunc is called once for each expired action, after it has been durably marked as fired.
type ReversalFunc func(ctx context.Context, sa store.ScheduledAction) error

type CancelResult int

const (
	NotFound CancelResult = iota
	Cancelled
	// the action had already fired; cancelling was a no-op
	AlreadyFired
)

func (r CancelResult) String() string {
	switch r {
	case Cancelled:
		return "cancelled"
	case AlreadyFired:
		return "already_fired"
	default:
		return "not_found"
	}
}

const (
	DefaultRetryDelay = 30 * time.Second
	// longest the loop sleeps with nothing due
	idleWait = time.Minute

	// fired entries remembered for absorbing late duplicate requests
	recentFiredSize = 10_000
	recentFiredTTL  = 24 * time.Hour
)

type Scheduler struct {
	Store  store.Store
	Logger *slog.Logger
	// called for each expired action; may be nil
	OnExpire ReversalFunc
	// delay before retrying an entry whose fired flag could not be persisted
	RetryDelay time.Duration
	Clock      func() time.Time

	mu    sync.Mutex
	queue itemHeap
	byID  map[string]*item
	// pending entry per (guild, user, action)
	byKey map[string]*item
	// entries popped from the queue whose fired flag is being written, by key
	firing map[string]*item
	recent *expirable.LRU[string, store.ScheduledAction]
	wake   chan struct{}
	// true while the store is rejecting fired-flag updates
	degraded bool
}

func NewScheduler(st store.Store, onExpire ReversalFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Store:      st,
		Logger:     logger.With("component", "scheduler"),
		OnExpire:   onExpire,
		RetryDelay: DefaultRetryDelay,
		Clock:      time.Now,
		byID:       make(map[string]*item),
		byKey:      make(map[string]*item),
		firing:     make(map[string]*item),
		recent:     expirable.NewLRU[string, store.ScheduledAction](recentFiredSize, nil, recentFiredTTL),
		wake:       make(chan struct{}, 1),
	}
}

func dedupeKey(userID, guildID string, act action.Action) string {
	return guildID + "/" + userID + "/" + act.String()
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// must hold s.mu
func (s *Scheduler) push(it *item) {
	heap.Push(&s.queue, it)
	s.byID[it.sa.ID] = it
	key := dedupeKey(it.sa.UserID, it.sa.GuildID, it.sa.Action)
	if _, ok := s.byKey[key]; !ok {
		s.byKey[key] = it
	}
	pendingGauge.Set(float64(s.queue.Len()))
}

// must hold s.mu
func (s *Scheduler) remove(it *item) {
	if it.index >= 0 {
		heap.Remove(&s.queue, it.index)
	}
	delete(s.byID, it.sa.ID)
	key := dedupeKey(it.sa.UserID, it.sa.GuildID, it.sa.Action)
	if s.byKey[key] == it {
		delete(s.byKey, key)
	}
	pendingGauge.Set(float64(s.queue.Len()))
}

// Schedule registers a reversal for a time-bounded action. If the same action is already pending for the user in the guild, that entry is reused and its expiry extended to the later of the two, so the reversal fires once. A request no later than an entry that is firing or has recently fired returns that entry's ID and schedules nothing.
//
// The entry is persisted before Schedule returns. On a storage error nothing is scheduled.
func (s *Scheduler) Schedule(ctx context.Context, userID, guildID string, act action.Action, expiresAt time.Time, reason string) (string, error) {
	if userID == "" || guildID == "" {
		return "", fmt.Errorf("scheduling action: user and guild are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupeKey(userID, guildID, act)
	if existing, ok := s.byKey[key]; ok {
		if expiresAt.After(existing.sa.ExpiresAt) {
			updated := existing.sa
			updated.ExpiresAt = expiresAt
			if err := s.Store.SaveScheduledAction(ctx, &updated); err != nil {
				return "", fmt.Errorf("extending scheduled action: %w", err)
			}
			existing.sa = updated
			existing.due = expiresAt
			heap.Fix(&s.queue, existing.index)
			s.notify()
		}
		scheduleDedupeCount.Inc()
		return existing.sa.ID, nil
	}
	if f, ok := s.firing[key]; ok && !expiresAt.After(f.sa.ExpiresAt) {
		scheduleDedupeCount.Inc()
		return f.sa.ID, nil
	}
	if last, ok := s.recent.Get(key); ok && !expiresAt.After(last.ExpiresAt) {
		scheduleDedupeCount.Inc()
		return last.ID, nil
	}

	sa := store.ScheduledAction{
		ID:        uuid.NewString(),
		UserID:    userID,
		GuildID:   guildID,
		Action:    act,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
		Reason:    reason,
	}
	if err := s.Store.SaveScheduledAction(ctx, &sa); err != nil {
		return "", fmt.Errorf("persisting scheduled action: %w", err)
	}
	s.push(&item{sa: sa, due: expiresAt})
	scheduleCount.WithLabelValues(act.String()).Inc()
	s.notify()
	s.Logger.Info("scheduled action reversal", "guild", guildID, "user", userID, "action", act.String(), "expires", expiresAt, "id", sa.ID)
	return sa.ID, nil
}

// Cancel removes a pending entry so that it never fires. The store decides the race with a concurrent fire: whichever of the fired flag and the delete lands first wins.
func (s *Scheduler) Cancel(ctx context.Context, id string) (CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.Store.CancelScheduledAction(ctx, id)
	if err != nil {
		return NotFound, fmt.Errorf("cancelling scheduled action: %w", err)
	}
	if ok {
		if it, found := s.byID[id]; found {
			s.remove(it)
		}
		return Cancelled, nil
	}

	sa, err := s.Store.GetScheduledAction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return NotFound, fmt.Errorf("loading scheduled action: %w", err)
	}
	if sa.Fired {
		return AlreadyFired, nil
	}
	return NotFound, fmt.Errorf("scheduled action %s changed while cancelling", id)
}

// Restore loads every unfired entry from the store, typically at startup. Entries already past their expiry fire on the next pass of the loop. When several stored entries share a (user, guild, action) key, only the one expiring last is kept.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	pending, err := s.Store.LoadPendingScheduledActions(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading pending scheduled actions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, sa := range pending {
		if _, ok := s.byID[sa.ID]; ok {
			continue
		}
		key := dedupeKey(sa.UserID, sa.GuildID, sa.Action)
		if existing, ok := s.byKey[key]; ok {
			keep, drop := existing.sa, sa
			if sa.ExpiresAt.After(existing.sa.ExpiresAt) {
				keep, drop = sa, existing.sa
			}
			if err := s.Store.DeleteScheduledAction(ctx, drop.ID); err != nil {
				s.Logger.Warn("failed to delete duplicate scheduled action", "id", drop.ID, "err", err)
			}
			if keep.ID == existing.sa.ID {
				continue
			}
			s.remove(existing)
		} else {
			restored++
		}
		s.push(&item{sa: sa, due: sa.ExpiresAt})
	}
	s.notify()
	s.Logger.Info("restored scheduled actions", "count", restored)
	return restored, nil
}

// Pending returns a snapshot of entries awaiting expiry, soonest first.
func (s *Scheduler) Pending() []store.ScheduledAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ScheduledAction, 0, len(s.queue))
	for _, it := range s.queue {
		out = append(out, it.sa)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}

// Degraded reports whether the last attempt to persist a fired flag failed.
func (s *Scheduler) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Run processes expirations until ctx is cancelled. Only one Run loop should be active per Scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()
	for {
		s.fireDue(ctx)

		wait := s.nextWait()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-s.wake:
		}
	}
}

func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		return idleWait
	}
	wait := s.queue[0].due.Sub(s.now())
	if wait < 0 {
		return 0
	}
	if wait > idleWait {
		return idleWait
	}
	return wait
}

// pops everything due at now. Each popped entry holds its key in s.firing until settle is called.
func (s *Scheduler) popDue(now time.Time) []*item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*item
	for s.queue.Len() > 0 && !s.queue[0].due.After(now) {
		it := s.queue[0]
		s.remove(it)
		s.firing[dedupeKey(it.sa.UserID, it.sa.GuildID, it.sa.Action)] = it
		due = append(due, it)
	}
	return due
}

// settle releases the firing reservation once the fired flag is resolved. fired entries are remembered so that late duplicates are absorbed.
func (s *Scheduler) settle(it *item, fired bool) {
	key := dedupeKey(it.sa.UserID, it.sa.GuildID, it.sa.Action)
	if s.firing[key] == it {
		delete(s.firing, key)
	}
	if fired {
		s.recent.Add(key, it.sa)
	}
}

// fireDue marks and reverses every due entry, returning the number of reversals emitted.
func (s *Scheduler) fireDue(ctx context.Context) int {
	now := s.now()
	fired := 0
	for _, it := range s.popDue(now) {
		ok, err := s.Store.MarkFired(ctx, it.sa.ID)
		if err != nil {
			s.Logger.Error("failed to mark scheduled action fired, will retry", "id", it.sa.ID, "err", err)
			storeErrorCount.Inc()
			s.mu.Lock()
			s.degraded = true
			s.settle(it, false)
			s.retry(ctx, it, now.Add(s.RetryDelay))
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		s.degraded = false
		s.settle(it, ok)
		s.mu.Unlock()
		if !ok {
			s.Logger.Warn("scheduled action already fired or cancelled, skipping", "id", it.sa.ID)
			duplicateFireCount.Inc()
			continue
		}

		sa := it.sa
		sa.Fired = true
		firedCount.WithLabelValues(sa.Action.String()).Inc()
		fired++
		s.Logger.Info("scheduled action expired", "guild", sa.GuildID, "user", sa.UserID, "action", sa.Action.String(), "id", sa.ID)
		if s.OnExpire == nil {
			continue
		}
		if err := s.callReversal(ctx, sa); err != nil {
			s.Logger.Error("reversal failed", "id", sa.ID, "guild", sa.GuildID, "user", sa.UserID, "err", err)
			reversalErrorCount.Inc()
		}
	}
	return fired
}

// retry re-queues an entry whose fired flag could not be written, unless a later entry for the same key was scheduled meanwhile. Must hold s.mu.
func (s *Scheduler) retry(ctx context.Context, it *item, due time.Time) {
	key := dedupeKey(it.sa.UserID, it.sa.GuildID, it.sa.Action)
	if newer, ok := s.byKey[key]; ok && newer != it {
		if _, err := s.Store.CancelScheduledAction(ctx, it.sa.ID); err != nil {
			s.Logger.Warn("failed to drop superseded scheduled action", "id", it.sa.ID, "err", err)
		}
		return
	}
	it.due = due
	s.push(it)
}

func (s *Scheduler) callReversal(ctx context.Context, sa store.ScheduledAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reversal panic: %v", r)
		}
	}()
	return s.OnExpire(ctx, sa)
}
