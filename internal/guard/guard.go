// Package guard provides mutual exclusion scoped to a key, so that callers
// working on different keys never contend.
package guard

import (
	"context"
	"sync"
)

type KeyedMutex[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

type entry struct {
	sem chan struct{}
	// holder plus waiters, guarded by KeyedMutex.mu
	refs int
}

func New[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{
		entries: make(map[K]*entry),
	}
}

// Lock blocks until the critical section for key is free or ctx is done.
// Blocked callers are admitted in arrival order. The returned unlock func is
// safe to call more than once.
func (m *KeyedMutex[K]) Lock(ctx context.Context, key K) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := m.acquire(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}

	return unlock, nil
}

// Len returns the number of keys currently held or waited on.
func (m *KeyedMutex[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

func (m *KeyedMutex[K]) acquire(key K) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++

	return e
}

func (m *KeyedMutex[K]) release(key K, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
