package engine

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyedLocks serializes work per key while distinct keys proceed in
// parallel. Entries are refcounted and removed when the last holder
// releases, so the map only ever holds keys with in-flight work. The live
// entity id set is unbounded, the lock table is not.
type keyedLocks struct {
	entries *xsync.MapOf[string, *lockEntry]
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: xsync.NewMapOf[string, *lockEntry]()}
}

// Lock blocks until the key is exclusively held and returns the release
// function.
func (l *keyedLocks) Lock(key string) func() {
	var entry *lockEntry
	l.entries.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			old = &lockEntry{}
		}
		old.refs++
		entry = old
		return old, false
	})
	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.entries.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
			if !loaded {
				return nil, true
			}
			old.refs--
			return old, old.refs == 0
		})
	}
}
