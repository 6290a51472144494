package countstore

import (
	"context"
	"sync"
	"time"
)

// MemCountStore keeps counters in process. Hour and day buckets are dropped once past their retention.
type MemCountStore struct {
	Clock func() time.Time

	mu       sync.Mutex
	counts   map[string]int
	distinct map[string]map[string]bool
	// retention deadline of each period bucket, for both maps
	expires   map[string]time.Time
	lastSweep time.Time
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts:   make(map[string]int),
		distinct: make(map[string]map[string]bool),
		expires:  make(map[string]time.Time),
	}
}

func (s *MemCountStore) live(key string, now time.Time) bool {
	exp, ok := s.expires[key]
	return !ok || now.Before(exp)
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	now := clockOrNow(s.Clock)
	s.mu.Lock()
	defer s.mu.Unlock()
	k := periodBucket(name, val, period, now)
	if !s.live("c/"+k, now) {
		return 0, nil
	}
	return s.counts[k], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	now := clockOrNow(s.Clock)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)
	for _, p := range periods {
		k := periodBucket(name, val, p.name, now)
		if !s.live("c/"+k, now) {
			delete(s.counts, k)
		}
		s.counts[k]++
		if p.keep > 0 {
			s.expires["c/"+k] = now.Add(p.keep)
		}
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	now := clockOrNow(s.Clock)
	s.mu.Lock()
	defer s.mu.Unlock()
	k := periodBucket(name, bucket, period, now)
	if !s.live("d/"+k, now) {
		return 0, nil
	}
	return len(s.distinct[k]), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	now := clockOrNow(s.Clock)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)
	for _, p := range periods {
		k := periodBucket(name, bucket, p.name, now)
		m, ok := s.distinct[k]
		if !ok || !s.live("d/"+k, now) {
			m = make(map[string]bool)
			s.distinct[k] = m
		}
		m[val] = true
		if p.keep > 0 {
			s.expires["d/"+k] = now.Add(p.keep)
		}
	}
	return nil
}

// drops expired buckets, at most once an hour
func (s *MemCountStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < time.Hour {
		return
	}
	s.lastSweep = now
	for k, exp := range s.expires {
		if now.Before(exp) {
			continue
		}
		delete(s.expires, k)
		switch k[:2] {
		case "c/":
			delete(s.counts, k[2:])
		case "d/":
			delete(s.distinct, k[2:])
		}
	}
}

// buckets currently held, live or not yet swept
func (s *MemCountStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counts) + len(s.distinct)
}
