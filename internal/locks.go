package internal

import (
	"sync"
)

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// LockManager hands out one mutex per key, so work on the same key (a
// checkout session, an agent) is serialized while different keys proceed in
// parallel. An entry lives while someone holds or waits for it and is
// dropped on the last release.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock for the given key and returns the function that
// releases it. The release function is safe to call more than once.
func (lm *LockManager) Lock(key string) func() {
	lm.mu.Lock()
	l, ok := lm.locks[key]
	if !ok {
		l = &keyLock{}
		lm.locks[key] = l
	}
	l.refs++
	lm.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if l.refs--; l.refs == 0 {
				delete(lm.locks, key)
			}
		})
	}
}
