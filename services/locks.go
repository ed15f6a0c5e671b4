package services

import (
	"sync"
)

// matchLocks hands out one mutex per live match so concurrent actions on
// the same match serialize without stalling unrelated matches. Entries
// are refcounted and dropped when the last holder releases.
type matchLocks struct {
	mu      sync.Mutex
	entries map[string]*matchLock
}

type matchLock struct {
	sync.Mutex
	refs int
}

func newMatchLocks() *matchLocks {
	return &matchLocks{entries: make(map[string]*matchLock)}
}

// Acquire blocks until the caller holds the match's critical section and
// returns the release func.
func (l *matchLocks) Acquire(matchID string) func() {
	l.mu.Lock()
	e, ok := l.entries[matchID]
	if !ok {
		e = &matchLock{}
		l.entries[matchID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, matchID)
		}
		l.mu.Unlock()
	}
}
