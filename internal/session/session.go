package session

import (
	"sync"
	"time"
)

// CookieName is the cookie carrying the stable session identifier the
// cooldown is keyed on.
const CookieName = "contact_session"

// Store maps a session identifier to the time of its last accepted
// submission. Entries are written only after a successful dispatch.
type Store interface {
	LastSubmit(id string) (time.Time, bool)
	RecordSubmit(id string, at time.Time)
	// Prune drops markers older than maxAge and reports how many remain.
	Prune(now time.Time, maxAge time.Duration) int
}

// MemoryStore is the in-process session-cooldown map. Each entry is
// independent, so a single mutex around the map is all the
// serialization needed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (s *MemoryStore) LastSubmit(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.entries[id]
	return at, ok
}

func (s *MemoryStore) RecordSubmit(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = at
}

func (s *MemoryStore) Prune(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.entries {
		if now.Sub(at) > maxAge {
			delete(s.entries, id)
		}
	}
	return len(s.entries)
}
