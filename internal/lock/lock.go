// Package lock serializes work per key, in process or across instances through Redis.
package lock

import (
	"context"
	"sync"

	"github.com/mroshb/pair_quiz/pkg/errors"
)

// Locker hands out exclusive per-key locks. The returned unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func timeoutError(key string, err error) error {
	return errors.Wrap(err, errors.ErrCodeConflict, "request for "+key+" is already in progress")
}

// MemoryLocker is a keyed mutex for single-instance deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryLock)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &memoryLock{ch: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-m.ch
				l.release(key, m)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, m)
		return nil, timeoutError(key, ctx.Err())
	}
}

func (l *MemoryLocker) release(key string, m *memoryLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}
