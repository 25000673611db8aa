package tracker

import "sync"

// keyedMutex serializes operations per key while letting different keys
// proceed concurrently. Locks are created on first use and never reclaimed;
// the key space here is ticker symbols, which stays small.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock locks the mutex for the given key, creating it if needed.
func (k *keyedMutex) Lock(key string) {
	k.get(key).Lock()
}

// Unlock unlocks the mutex for the given key.
func (k *keyedMutex) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
