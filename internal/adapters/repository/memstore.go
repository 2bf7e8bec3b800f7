package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Id assignment and insert happen under
// one lock.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

func (s *MemoryStore) Create(_ context.Context, rec Record) (int64, error) {
	defer observe(BackendMemory, "create", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	rec.ID = id
	s.records[id] = rec
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Record, error) {
	defer observe(BackendMemory, "get", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) (Record, error) {
	defer observe(BackendMemory, "delete", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	delete(s.records, id)
	return rec, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	defer observe(BackendMemory, "sweep", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
