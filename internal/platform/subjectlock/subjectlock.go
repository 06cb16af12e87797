// Package subjectlock serialises mutations per subject (one user's identity
// workflow, one asset's workflows) without contention across subjects.
package subjectlock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive scope for key. Lock blocks until the scope is
// free or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Memory is an in-process keyed lock. Each key gets a one-slot semaphore that
// is dropped when its last waiter leaves, so idle subjects cost nothing.
type Memory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*slot)}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.release(key, s)
		})
	}, nil
}

func (m *Memory) release(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// size reports tracked keys; used by tests.
func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
