// Package tracker maintains per-user, per-guild violation history and the windowed counters used for escalation.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/util"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Violation describes one policy violation to be recorded.
type Violation struct {
	UserID   string
	GuildID  string
	Kind     string
	Severity int
	At       time.Time
}

// Outcome is the state after recording a violation.
type Outcome struct {
	State  store.ViolationState
	Record store.ViolationRecord
	// true if the store failed and in-memory state was used
	Degraded bool
}

// ResolveFunc computes the action assigned to a violation, given the updated state. It runs while the user's state is locked.
type ResolveFunc func(st store.ViolationState) action.Action

const (
	// users whose unsaved writes are held while storage is failing
	unsavedCapacity = 10_000
	unsavedTTL      = 24 * time.Hour
	// oldest unsaved records beyond this are dropped per user
	maxUnsavedRecords = 100

	// last known state of recently active users, read when the store fails
	knownCapacity = 50_000
	knownTTL      = 24 * time.Hour
)

// unsaved holds writes for one user which the store rejected. Guarded by the tracker's per-key lock.
type unsaved struct {
	state   *store.ViolationState
	records []store.ViolationRecord
	// a reset made while the store's copy could not be read; applied to that copy once it can
	resetAt time.Time
}

func (u *unsaved) empty() bool {
	return u.state == nil && len(u.records) == 0 && u.resetAt.IsZero()
}

// Tracker records violations through a store.Store. Writes the store rejects are held in a bounded in-memory buffer until the store accepts them again. While the store fails, counting continues from the held writes or the last state seen for the user.
type Tracker struct {
	Store  store.Store
	Logger *slog.Logger
	// defaults to time.Now; used by the read surface
	Clock func() time.Time

	pending  *expirable.LRU[string, *unsaved]
	known    *expirable.LRU[string, store.ViolationState]
	locks    *util.KeyedMutex
	degraded atomic.Bool
}

func NewTracker(st store.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tracker")
	onEvict := func(key string, u *unsaved) {
		if !u.empty() {
			unsavedDropCount.Inc()
			logger.Warn("dropping unsaved violation state", "key", key, "records", len(u.records))
		}
	}
	return &Tracker{
		Store:   st,
		Logger:  logger,
		Clock:   time.Now,
		pending: expirable.NewLRU[string, *unsaved](unsavedCapacity, onEvict, unsavedTTL),
		known:   expirable.NewLRU[string, store.ViolationState](knownCapacity, nil, knownTTL),
		locks:   util.NewKeyedMutex(),
	}
}

// Degraded reports whether the most recent operation could not reach the store.
func (t *Tracker) Degraded() bool {
	return t.degraded.Load()
}

func (t *Tracker) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now()
}

func (t *Tracker) storageFailed(op string, err error) {
	t.Logger.Warn("violation storage failed, holding writes in memory", "op", op, "err", err)
	storageErrorCount.WithLabelValues(op).Inc()
	t.degraded.Store(true)
}

// must hold the key lock
func (t *Tracker) unsavedFor(key string) *unsaved {
	u, ok := t.pending.Get(key)
	if !ok {
		u = &unsaved{}
		t.pending.Add(key, u)
		unsavedUsers.Set(float64(t.pending.Len()))
	}
	return u
}

func (t *Tracker) forget(key string) {
	t.pending.Remove(key)
	unsavedUsers.Set(float64(t.pending.Len()))
}

// flush writes held records and state to the store. Returns false if the store failed again; whatever could not be written stays held. Must hold the key lock.
func (t *Tracker) flush(ctx context.Context, key string, u *unsaved) bool {
	for len(u.records) > 0 {
		if err := t.Store.SaveViolation(ctx, &u.records[0]); err != nil {
			t.storageFailed("flush_violation", err)
			return false
		}
		u.records = u.records[1:]
	}
	if u.state != nil {
		if err := t.Store.SaveViolationState(ctx, u.state); err != nil {
			t.storageFailed("flush_state", err)
			return false
		}
		u.state = nil
	}
	t.forget(key)
	t.Logger.Info("flushed unsaved violation state", "key", key)
	return true
}

// loadState returns the newest known state, or nil if the user has none. If the store is reachable, writes it missed are flushed first. The bool is true when the store could not be used. Must hold the key lock.
func (t *Tracker) loadState(ctx context.Context, userID, guildID string) (*store.ViolationState, bool) {
	key := util.UserGuildKey(userID, guildID)
	u, held := t.pending.Get(key)

	st, err := t.Store.LoadViolationState(ctx, userID, guildID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		t.storageFailed("load_state", err)
		if held && u.state != nil {
			cp := *u.state
			return &cp, true
		}
		if last, ok := t.known.Get(key); ok {
			return &last, true
		}
		return nil, true
	}
	if !held {
		if st != nil {
			t.known.Add(key, *st)
		}
		return st, false
	}
	// held writes were made after the store's copy; prefer them on ties
	switch {
	case u.state != nil && (st == nil || !u.state.UpdatedAt.Before(st.UpdatedAt)):
		cp := *u.state
		st = &cp
	case !u.resetAt.IsZero() && st != nil && !u.resetAt.Before(st.UpdatedAt):
		clearWindow(st)
		st.UpdatedAt = u.resetAt
		cp := *st
		u.state = &cp
	default:
		u.state = nil
	}
	u.resetAt = time.Time{}
	if st != nil {
		t.known.Add(key, *st)
	}
	return st, !t.flush(ctx, key, u)
}

// must hold the key lock
func (t *Tracker) saveState(ctx context.Context, st *store.ViolationState) bool {
	st.UpdatedAt = t.now()
	key := util.UserGuildKey(st.UserID, st.GuildID)
	t.known.Add(key, *st)
	if err := t.Store.SaveViolationState(ctx, st); err != nil {
		t.storageFailed("save_state", err)
		cp := *st
		t.unsavedFor(key).state = &cp
		return true
	}
	if u, ok := t.pending.Get(key); ok {
		u.state = nil
		u.resetAt = time.Time{}
		if u.empty() {
			t.forget(key)
		}
	}
	return false
}

// must hold the key lock
func (t *Tracker) saveRecord(ctx context.Context, rec *store.ViolationRecord) bool {
	if err := t.Store.SaveViolation(ctx, rec); err != nil {
		t.storageFailed("save_violation", err)
		u := t.unsavedFor(util.UserGuildKey(rec.UserID, rec.GuildID))
		u.records = append(u.records, *rec)
		if over := len(u.records) - maxUnsavedRecords; over > 0 {
			u.records = slices.Delete(u.records, 0, over)
		}
		return true
	}
	return false
}

// RecordViolation appends a violation to the audit trail and updates the window counters.
//
// A window opens at the first violation. A violation arriving window or later after the window start opens a new window. A non-positive window never rolls over.
func (t *Tracker) RecordViolation(ctx context.Context, userID, guildID, kind string, severity int, window time.Duration) (*Outcome, error) {
	return t.Record(ctx, Violation{
		UserID:   userID,
		GuildID:  guildID,
		Kind:     kind,
		Severity: severity,
		At:       t.now(),
	}, window, nil)
}

// Record is like RecordViolation, with resolve computing the action assigned to this violation from the updated counters. The assigned action is stored on the record, and the state's LastAction never decreases.
func (t *Tracker) Record(ctx context.Context, v Violation, window time.Duration, resolve ResolveFunc) (*Outcome, error) {
	if v.UserID == "" || v.GuildID == "" {
		return nil, fmt.Errorf("recording violation: user and guild are required")
	}
	if v.At.IsZero() {
		v.At = t.now()
	}

	unlock := t.locks.Lock(util.UserGuildKey(v.UserID, v.GuildID))
	defer unlock()

	prev, degraded := t.loadState(ctx, v.UserID, v.GuildID)
	st := store.ViolationState{
		UserID:  v.UserID,
		GuildID: v.GuildID,
	}
	if prev != nil {
		st = *prev
	}

	if st.WindowStart.IsZero() || (window > 0 && v.At.Sub(st.WindowStart) >= window) {
		st.WindowStart = v.At
		st.WindowCount = 0
	}
	st.WindowCount++
	st.TotalCount++
	if v.At.After(st.LastViolation) {
		st.LastViolation = v.At
	}

	assigned := action.None
	if resolve != nil {
		assigned = resolve(st)
	}
	st.LastAction = action.Max(st.LastAction, assigned)
	if action.IsWarning(assigned) {
		st.WarningCount++
	}

	rec := store.ViolationRecord{
		ID:        uuid.NewString(),
		UserID:    v.UserID,
		GuildID:   v.GuildID,
		Timestamp: v.At,
		Kind:      v.Kind,
		Severity:  v.Severity,
		Action:    assigned,
	}
	if t.saveRecord(ctx, &rec) {
		degraded = true
	}
	if t.saveState(ctx, &st) {
		degraded = true
	}
	if !degraded {
		t.degraded.Store(false)
	}
	violationCount.WithLabelValues(v.Kind).Inc()

	return &Outcome{
		State:    st,
		Record:   rec,
		Degraded: degraded,
	}, nil
}

func windowCount(st *store.ViolationState, window time.Duration, now time.Time) int {
	if st == nil || st.WindowStart.IsZero() {
		return 0
	}
	if window > 0 && now.Sub(st.WindowStart) >= window {
		return 0
	}
	return st.WindowCount
}

// GetViolationCount returns the number of violations in the user's current window, or zero once the window has elapsed.
func (t *Tracker) GetViolationCount(ctx context.Context, userID, guildID string, window time.Duration) int {
	unlock := t.locks.Lock(util.UserGuildKey(userID, guildID))
	defer unlock()

	st, degraded := t.loadState(ctx, userID, guildID)
	if !degraded {
		t.degraded.Store(false)
	}
	return windowCount(st, window, t.now())
}

// State returns the user's escalation state, or store.ErrNotFound.
func (t *Tracker) State(ctx context.Context, userID, guildID string) (*store.ViolationState, error) {
	unlock := t.locks.Lock(util.UserGuildKey(userID, guildID))
	defer unlock()

	st, degraded := t.loadState(ctx, userID, guildID)
	if !degraded {
		t.degraded.Store(false)
	}
	if st == nil {
		return nil, store.ErrNotFound
	}
	return st, nil
}

func clearWindow(st *store.ViolationState) {
	st.WarningCount = 0
	st.WindowCount = 0
	st.WindowStart = time.Time{}
	st.LastAction = action.None
}

// ResetViolations clears the user's counters and last action. The audit trail and lifetime total are kept. A reset made while the store is unreachable is applied to the stored state once the store recovers.
func (t *Tracker) ResetViolations(ctx context.Context, userID, guildID string) error {
	key := util.UserGuildKey(userID, guildID)
	unlock := t.locks.Lock(key)
	defer unlock()

	st, degraded := t.loadState(ctx, userID, guildID)
	if st == nil {
		if degraded {
			t.unsavedFor(key).resetAt = t.now()
			t.Logger.Info("violations reset deferred until storage recovers", "guild", guildID, "user", userID)
			return nil
		}
		t.degraded.Store(false)
		return nil
	}
	clearWindow(st)
	if t.saveState(ctx, st) {
		degraded = true
	}
	if !degraded {
		t.degraded.Store(false)
	}
	t.Logger.Info("violations reset", "guild", guildID, "user", userID)
	return nil
}

// ListViolations returns the user's audit trail, newest first. Records the store has not accepted yet are included; if the store fails, only those are returned.
func (t *Tracker) ListViolations(ctx context.Context, userID, guildID string, limit int) ([]store.ViolationRecord, error) {
	key := util.UserGuildKey(userID, guildID)
	unlock := t.locks.Lock(key)
	defer unlock()

	out, err := t.Store.ListViolations(ctx, userID, guildID, limit)
	if err != nil {
		t.storageFailed("list_violations", err)
		out = nil
	} else {
		t.degraded.Store(false)
	}
	if u, ok := t.pending.Get(key); ok && len(u.records) > 0 {
		out = append(out, u.records...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}
