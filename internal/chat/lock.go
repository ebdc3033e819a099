package chat

import "sync"

// keyedLock serializes mutations per conversation id so a concurrent send
// and mark-read on the same conversation cannot lose a counter update.
// Entries are reference-counted and dropped once unused.
type keyedLock struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[int64]*lockEntry)}
}

// Lock acquires the lock for the id and returns its release func.
func (l *keyedLock) Lock(id int64) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
