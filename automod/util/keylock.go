package util

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex provides one mutex per key, so unrelated keys never contend. Entries are removed once no goroutine holds or waits on them.
type KeyedMutex struct {
	locks *xsync.MapOf[string, *refMutex]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: xsync.NewMapOf[string, *refMutex](),
	}
}

// Lock blocks until the key is held, and returns the matching unlock function.
func (km *KeyedMutex) Lock(key string) func() {
	l, _ := km.locks.Compute(key, func(old *refMutex, loaded bool) (*refMutex, bool) {
		if !loaded {
			old = &refMutex{}
		}
		old.refs++
		return old, false
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		km.locks.Compute(key, func(old *refMutex, loaded bool) (*refMutex, bool) {
			if !loaded {
				return old, true
			}
			old.refs--
			return old, old.refs <= 0
		})
	}
}

// number of keys currently held or waited on
func (km *KeyedMutex) Len() int {
	return km.locks.Size()
}

// Key for state scoped to one user in one guild.
func UserGuildKey(userID, guildID string) string {
	return guildID + "/" + userID
}
