package history

import (
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is the short-term context kept for one message.
type Entry struct {
	At       time.Time
	Hash     string
	Mentions int
}

type userHistory struct {
	mu      sync.Mutex
	entries []Entry
}

// Store holds recent message context per (guild, user), in process memory. Entries older than the retention period are dropped, and idle users are evicted.
type Store struct {
	users      *expirable.LRU[string, *userHistory]
	retention  time.Duration
	maxEntries int
}

// NewStore creates a history store for up to capacity users, keeping at most maxEntries per user for the retention period.
func NewStore(capacity, maxEntries int, retention time.Duration) *Store {
	return &Store{
		users:      expirable.NewLRU[string, *userHistory](capacity, nil, retention),
		retention:  retention,
		maxEntries: maxEntries,
	}
}

func key(guildID, userID string) string {
	return guildID + "/" + userID
}

// Recent returns a copy of the user's entries newer than the retention period, oldest first.
func (s *Store) Recent(guildID, userID string, now time.Time) []Entry {
	h, ok := s.users.Get(key(guildID, userID))
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(now.Add(-s.retention))
	return slices.Clone(h.entries)
}

// Append records a message and restarts the user's idle timer. Callers serialize appends for the same user.
func (s *Store) Append(guildID, userID string, e Entry) {
	k := key(guildID, userID)
	h, ok := s.users.Get(k)
	if !ok {
		h = &userHistory{}
	}
	h.mu.Lock()
	h.prune(e.At.Add(-s.retention))
	h.entries = append(h.entries, e)
	if over := len(h.entries) - s.maxEntries; s.maxEntries > 0 && over > 0 {
		h.entries = slices.Delete(h.entries, 0, over)
	}
	h.mu.Unlock()
	s.users.Add(k, h)
}

func (s *Store) Forget(guildID, userID string) {
	s.users.Remove(key(guildID, userID))
}

func (h *userHistory) prune(cutoff time.Time) {
	i := 0
	for i < len(h.entries) && h.entries[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.entries = slices.Delete(h.entries, 0, i)
	}
}

// Within returns the entries less than window older than now. Entries must be oldest first.
func Within(entries []Entry, now time.Time, window time.Duration) []Entry {
	for i, e := range entries {
		if now.Sub(e.At) < window {
			return entries[i:]
		}
	}
	return nil
}
