package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStorer keeps sessions in process memory. Sessions are lost on exit;
// it backs the one-shot CLI and the tests.
type MemoryStorer struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt int64
}

// NewMemoryStorer creates an empty in-memory store.
func NewMemoryStorer() *MemoryStorer {
	return &MemoryStorer{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStorer) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || expired(entry.expiresAt, s.now()) {
		return nil, ErrNotFound{Key: key}
	}
	return slices.Clone(entry.value), nil
}

func (s *MemoryStorer) Put(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{
		value:     slices.Clone(value),
		expiresAt: unixOrZero(expiresAt),
	}
	return nil
}

func (s *MemoryStorer) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Prune removes every expired entry and returns how many were deleted.
func (s *MemoryStorer) Prune(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, entry := range s.entries {
		if expired(entry.expiresAt, now) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStorer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStorer) Close() error {
	return nil
}
