package keylock

import (
	"context"
	"sync"
)

// Set hands out exclusive locks keyed by an arbitrary string. A lock exists
// only while at least one goroutine holds or waits on its key, so an idle set
// costs nothing regardless of how many keys have passed through it.
type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewSet builds an empty lock set.
func NewSet() *Set {
	return &Set{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx is done. On success it
// returns a release func that must be called exactly once. On failure the
// ctx error is returned and no lock is held.
func (s *Set) Acquire(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refs++
	s.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() { s.release(key, e) }, nil
	case <-ctx.Done():
		s.drop(key, e)
		return nil, ctx.Err()
	}
}

// TryAcquire attempts the lock without blocking. The second return value
// reports whether the lock was obtained.
func (s *Set) TryAcquire(key string) (func(), bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refs++
	s.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() { s.release(key, e) }, true
	default:
		s.drop(key, e)
		return nil, false
	}
}

func (s *Set) release(key string, e *entry) {
	<-e.sem
	s.drop(key, e)
}

func (s *Set) drop(key string, e *entry) {
	s.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
	}
	s.mu.Unlock()
}
