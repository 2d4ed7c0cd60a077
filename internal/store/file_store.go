package store

import (
	"path/filepath"
	"sort"
	"sync"

	"pairlink/internal/domain"
)

const (
	pairingsFile  = "pairings.json"
	proposalsFile = "proposals.json"
	sessionsFile  = "sessions.json"
)

// JSONFileStore persists records of one kind as a single JSON object keyed
// by topic or id.
type JSONFileStore[T any] struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileStore returns a store backed by dir/name.
func NewJSONFileStore[T any](dir, name string) *JSONFileStore[T] {
	return &JSONFileStore[T]{path: filepath.Join(dir, name)}
}

// NewPairingFileStore returns the pairing store rooted at dir.
func NewPairingFileStore(dir string) *JSONFileStore[domain.Pairing] {
	return NewJSONFileStore[domain.Pairing](dir, pairingsFile)
}

// NewProposalFileStore returns the proposal store rooted at dir.
func NewProposalFileStore(dir string) *JSONFileStore[domain.Proposal] {
	return NewJSONFileStore[domain.Proposal](dir, proposalsFile)
}

// NewSessionFileStore returns the session store rooted at dir.
func NewSessionFileStore(dir string) *JSONFileStore[domain.Session] {
	return NewJSONFileStore[domain.Session](dir, sessionsFile)
}

// Set stores or replaces the record under key.
func (s *JSONFileStore[T]) Set(key string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := loadRecords[T](s.path)
	if err != nil {
		return err
	}
	m[key] = value
	return saveRecords(s.path, m)
}

// Get returns the record under key and whether it was present.
func (s *JSONFileStore[T]) Get(key string) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	m, err := loadRecords[T](s.path)
	if err != nil {
		return zero, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// GetAll returns every record, ordered by key.
func (s *JSONFileStore[T]) GetAll() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := loadRecords[T](s.path)
	if err != nil {
		return nil, err
	}
	return sortedValues(m), nil
}

// Delete removes the record under key. Deleting a missing key is not an error.
func (s *JSONFileStore[T]) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := loadRecords[T](s.path)
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return saveRecords(s.path, m)
}

func sortedValues[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// Compile-time assertions that the file stores implement the domain interfaces.
var (
	_ domain.PairingStore  = (*JSONFileStore[domain.Pairing])(nil)
	_ domain.ProposalStore = (*JSONFileStore[domain.Proposal])(nil)
	_ domain.SessionStore  = (*JSONFileStore[domain.Session])(nil)
)
