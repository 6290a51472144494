package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemStore keeps everything in process memory. It is used in tests, for ephemeral deployments, and as the tracker's fallback when persistent storage fails.
type MemStore struct {
	mu         sync.Mutex
	violations map[string][]ViolationRecord
	states     map[string]ViolationState
	scheduled  map[string]ScheduledAction
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		violations: make(map[string][]ViolationRecord),
		states:     make(map[string]ViolationState),
		scheduled:  make(map[string]ScheduledAction),
	}
}

func memKey(userID, guildID string) string {
	return guildID + "/" + userID
}

func (s *MemStore) SaveViolation(ctx context.Context, rec *ViolationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memKey(rec.UserID, rec.GuildID)
	s.violations[k] = append(s.violations[k], *rec)
	return nil
}

func (s *MemStore) ListViolations(ctx context.Context, userID, guildID string, limit int) ([]ViolationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.violations[memKey(userID, guildID)])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) LoadViolationState(ctx context.Context, userID, guildID string) (*ViolationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[memKey(userID, guildID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *MemStore) SaveViolationState(ctx context.Context, st *ViolationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[memKey(st.UserID, st.GuildID)] = *st
	return nil
}

func (s *MemStore) SaveScheduledAction(ctx context.Context, sa *ScheduledAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[sa.ID] = *sa
	return nil
}

func (s *MemStore) GetScheduledAction(ctx context.Context, id string) (*ScheduledAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa, ok := s.scheduled[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sa, nil
}

func (s *MemStore) LoadPendingScheduledActions(ctx context.Context) ([]ScheduledAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScheduledAction
	for _, sa := range s.scheduled {
		if !sa.Fired {
			out = append(out, sa)
		}
	}
	sortPending(out)
	return out, nil
}

func (s *MemStore) MarkFired(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa, ok := s.scheduled[id]
	if !ok || sa.Fired {
		return false, nil
	}
	sa.Fired = true
	s.scheduled[id] = sa
	return true, nil
}

func (s *MemStore) DeleteScheduledAction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, id)
	return nil
}

func (s *MemStore) CancelScheduledAction(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa, ok := s.scheduled[id]
	if !ok || sa.Fired {
		return false, nil
	}
	delete(s.scheduled, id)
	return true, nil
}

func (s *MemStore) Close() error {
	return nil
}

func sortPending(l []ScheduledAction) {
	sort.Slice(l, func(i, j int) bool {
		if l[i].ExpiresAt.Equal(l[j].ExpiresAt) {
			return l[i].ID < l[j].ID
		}
		return l[i].ExpiresAt.Before(l[j].ExpiresAt)
	})
}
