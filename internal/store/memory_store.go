package store

import (
	"sync"

	"pairlink/internal/domain"
)

// MemoryStore keeps records in process memory only.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]T
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: make(map[string]T)}
}

func (s *MemoryStore[T]) Set(key string, value T) error {
	s.mu.Lock()
	s.records[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore[T]) Get(key string) (T, bool, error) {
	s.mu.RLock()
	v, ok := s.records[key]
	s.mu.RUnlock()
	return v, ok, nil
}

func (s *MemoryStore[T]) GetAll() ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.records), nil
}

func (s *MemoryStore[T]) Delete(key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

var (
	_ domain.PairingStore  = (*MemoryStore[domain.Pairing])(nil)
	_ domain.ProposalStore = (*MemoryStore[domain.Proposal])(nil)
	_ domain.SessionStore  = (*MemoryStore[domain.Session])(nil)
)
