package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore persists to an embedded pebble key-value database.
//
// Key layout:
//
//	v/<guild>/<user>/<unix nanos, zero padded>/<id>  violation record
//	s/<guild>/<user>                                 violation state
//	a/<id>                                           scheduled action
//
// Values are JSON. User, guild, and record IDs must not contain "/".
type PebbleStore struct {
	db *pebble.DB
	// serializes read-modify-write of scheduled actions
	mu sync.Mutex
}

var _ Store = (*PebbleStore)(nil)

func NewPebbleStore(path string) (*PebbleStore, error) {
	return OpenPebbleStore(path, &pebble.Options{})
}

func OpenPebbleStore(path string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func violationPrefix(userID, guildID string) []byte {
	return []byte("v/" + guildID + "/" + userID + "/")
}

func violationKey(rec *ViolationRecord) []byte {
	return []byte(fmt.Sprintf("v/%s/%s/%020d/%s", rec.GuildID, rec.UserID, rec.Timestamp.UnixNano(), rec.ID))
}

func stateKey(userID, guildID string) []byte {
	return []byte("s/" + guildID + "/" + userID)
}

func scheduledKey(id string) []byte {
	return []byte("a/" + id)
}

// smallest key greater than every key with the given prefix
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) putJSON(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(key, b, pebble.Sync)
}

func (s *PebbleStore) getJSON(key []byte, v any) error {
	b, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(b, v)
}

func (s *PebbleStore) SaveViolation(ctx context.Context, rec *ViolationRecord) error {
	return s.putJSON(violationKey(rec), rec)
}

func (s *PebbleStore) ListViolations(ctx context.Context, userID, guildID string, limit int) ([]ViolationRecord, error) {
	prefix := violationPrefix(userID, guildID)
	iter, err := s.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ViolationRecord
	for iter.Last(); iter.Valid(); iter.Prev() {
		if limit > 0 && len(out) >= limit {
			break
		}
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		var rec ViolationRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return nil, fmt.Errorf("decoding violation %s: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *PebbleStore) LoadViolationState(ctx context.Context, userID, guildID string) (*ViolationState, error) {
	var st ViolationState
	if err := s.getJSON(stateKey(userID, guildID), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PebbleStore) SaveViolationState(ctx context.Context, st *ViolationState) error {
	return s.putJSON(stateKey(st.UserID, st.GuildID), st)
}

func (s *PebbleStore) SaveScheduledAction(ctx context.Context, sa *ScheduledAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(scheduledKey(sa.ID), sa)
}

func (s *PebbleStore) GetScheduledAction(ctx context.Context, id string) (*ScheduledAction, error) {
	var sa ScheduledAction
	if err := s.getJSON(scheduledKey(id), &sa); err != nil {
		return nil, err
	}
	return &sa, nil
}

func (s *PebbleStore) LoadPendingScheduledActions(ctx context.Context) ([]ScheduledAction, error) {
	prefix := []byte("a/")
	iter, err := s.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ScheduledAction
	for iter.First(); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		var sa ScheduledAction
		if err := json.Unmarshal(val, &sa); err != nil {
			return nil, fmt.Errorf("decoding scheduled action %s: %w", iter.Key(), err)
		}
		if !sa.Fired {
			out = append(out, sa)
		}
	}
	sortPending(out)
	return out, nil
}

func (s *PebbleStore) MarkFired(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sa ScheduledAction
	err := s.getJSON(scheduledKey(id), &sa)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sa.Fired {
		return false, nil
	}
	sa.Fired = true
	if err := s.putJSON(scheduledKey(id), &sa); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PebbleStore) DeleteScheduledAction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete(scheduledKey(id), pebble.Sync)
}

func (s *PebbleStore) CancelScheduledAction(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sa ScheduledAction
	err := s.getJSON(scheduledKey(id), &sa)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sa.Fired {
		return false, nil
	}
	if err := s.db.Delete(scheduledKey(id), pebble.Sync); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
