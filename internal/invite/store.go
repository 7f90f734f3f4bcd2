package invite

import "sync"

// Store holds the last-known snapshot of invite use counters.
// It is replaced wholesale, never merged.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{snapshot: NewSnapshot(nil)}
}

// Replace installs a snapshot built from a fresh listing. It returns the
// snapshot that was in effect before along with the one installed.
func (s *Store) Replace(records []Record) (previous, current Snapshot) {
	next := NewSnapshot(records)

	s.mu.Lock()
	defer s.mu.Unlock()

	previous = s.snapshot
	s.snapshot = next
	return previous, next
}

// Current returns the stored snapshot
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}
