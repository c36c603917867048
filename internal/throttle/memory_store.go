package throttle

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	hits         int64
	windowEnd    time.Time
	blockedUntil time.Time
}

// MemoryStore is a single-process Store used in tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, limit int, blockDuration time.Duration) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if ok && now.Before(e.blockedUntil) {
		return Record{IsBlocked: true, TimeToBlockExpire: e.blockedUntil.Sub(now)}, nil
	}
	if !ok || now.After(e.windowEnd) {
		e = &memoryEntry{windowEnd: now.Add(window)}
		s.entries[key] = e
	}

	e.hits++
	rec := Record{
		TotalHits:    e.hits,
		TimeToExpire: e.windowEnd.Sub(now),
	}
	if e.hits > int64(limit) {
		e.blockedUntil = now.Add(blockDuration)
		rec.IsBlocked = true
		rec.TimeToBlockExpire = blockDuration
	}
	return rec, nil
}
