// Package lock provides per-room mutual exclusion for reservation commits.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Local serialises work per room inside a single process. Waiters give up
// when their context is done.
type Local struct {
	mu    sync.Mutex
	rooms map[string]*slot
}

type slot struct {
	held chan struct{}
	refs int
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{rooms: make(map[string]*slot)}
}

// Acquire blocks until roomID is free or ctx is done.
func (l *Local) Acquire(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.rooms[roomID]
	if !ok {
		s = &slot{held: make(chan struct{}, 1)}
		l.rooms[roomID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.held <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.held
				l.unref(roomID, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(roomID, s)
		return nil, fmt.Errorf("lock room %s: %w", roomID, ctx.Err())
	}
}

func (l *Local) unref(roomID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.rooms, roomID)
	}
}
