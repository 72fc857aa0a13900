package writeback

import "sync"

// keyedMutex provides per-key mutual exclusion. Entries are created on
// demand and reclaimed once uncontended, so unrelated invoice keys never
// serialize against each other.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: map[string]*keyEntry{}}
}

// Lock blocks until the key's section is free.
func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.ch <- struct{}{}
}

// Unlock releases the key's section, dropping the entry when nobody else
// is waiting on it.
func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("writeback: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	<-e.ch
}
