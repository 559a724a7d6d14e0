package ratelimit

import (
	"sync"
	"time"
)

// MemoryStore keeps the ledger in a process-local map. Suitable for a
// single-instance deployment; without a shared store, multi-instance
// rate limiting is best-effort.
type MemoryStore struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	buckets map[string][]int64
}

// NewMemoryStore creates an in-memory ledger with the given sliding
// window and per-IP quota.
func NewMemoryStore(window time.Duration, max int) *MemoryStore {
	return &MemoryStore{
		window:  window,
		max:     max,
		buckets: make(map[string][]int64),
	}
}

func (s *MemoryStore) Hit(ip string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Unix() - int64(s.window.Seconds())
	bucket := pruneBucket(s.buckets[ip], cutoff)

	if len(bucket) >= s.max {
		s.buckets[ip] = bucket
		return true, nil
	}

	s.buckets[ip] = append(bucket, now.Unix())
	return false, nil
}

func (s *MemoryStore) Prune(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Unix() - int64(s.window.Seconds())
	remaining := 0
	for ip, bucket := range s.buckets {
		bucket = pruneBucket(bucket, cutoff)
		if len(bucket) == 0 {
			delete(s.buckets, ip)
			continue
		}
		s.buckets[ip] = bucket
		remaining += len(bucket)
	}
	return remaining, nil
}

func (s *MemoryStore) Close() error { return nil }
