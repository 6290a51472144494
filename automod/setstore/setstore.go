package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	// hosts of known URL shortener services
	SetURLShorteners = "url-shorteners"
	// domains blocked in every guild
	SetBlockedDomains = "blocked-domains"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	// full contents of a set; used for suffix (subdomain) matching
	Members(ctx context.Context, name string) ([]string, error)
}

var defaultShorteners = []string{
	"bit.ly",
	"cutt.ly",
	"goo.gl",
	"is.gd",
	"ow.ly",
	"rb.gy",
	"rebrand.ly",
	"shorturl.at",
	"t.co",
	"t.ly",
	"tiny.cc",
	"tinyurl.com",
	"v.gd",
}

type MemSetStore struct {
	mu   sync.RWMutex
	Sets map[string]map[string]bool
}

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

// NewDefaultSetStore returns a store pre-populated with built-in sets (eg, URL shorteners).
func NewDefaultSetStore() *MemSetStore {
	s := NewMemSetStore()
	s.Add(SetURLShorteners, defaultShorteners...)
	return s
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	return set[val], nil
}

func (s *MemSetStore) Members(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.Sets[name]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out, nil
}

// Add merges values (lower-cased) in to the named set, creating it if needed.
func (s *MemSetStore) Add(name string, vals ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Sets[name]
	if !ok {
		m = make(map[string]bool, len(vals))
		s.Sets[name] = m
	}
	for _, v := range vals {
		m[strings.ToLower(strings.TrimSpace(v))] = true
	}
}

// LoadFromFileJSON reads a JSON object of set name to list of values. Sets in the file replace existing sets of the same name.
func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return err
	}

	for name, l := range sets {
		m := make(map[string]bool, len(l))
		for _, val := range l {
			m[strings.ToLower(strings.TrimSpace(val))] = true
		}
		s.mu.Lock()
		s.Sets[name] = m
		s.mu.Unlock()
	}
	return nil
}
