package api

import "sync"

// saveLocks serializes writers per (player, save name). A game save is
// logically single-writer: two concurrent turns against the same save
// would both compute from the same base state and silently overwrite each
// other, so the second must wait for the first.
type saveLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSaveLocks() *saveLocks {
	return &saveLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for a save key, creating it on first use. Locks
// are never removed; the key space is bounded by the number of saves.
func (s *saveLocks) get(player, saveName string) *sync.Mutex {
	key := player + "\x00" + saveName

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
