package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps the directory in process memory. It favors clarity
// over performance and doubles as the reference implementation for tests.
// The single mutex makes every operation, including Bind, atomic.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record // keyed by normalized FullName
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[NormalizeName(name)]; ok {
		return rec, nil
	}
	return Record{}, ErrNotFound
}

func (s *InMemoryStore) FindByIdentity(_ context.Context, identity string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.BoundIdentity == identity && identity != "" {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *InMemoryStore) Insert(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.FullName = NormalizeName(rec.FullName)
	if _, exists := s.records[rec.FullName]; exists {
		return Record{}, ErrDuplicateName
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records[rec.FullName] = rec
	return rec, nil
}

func (s *InMemoryStore) Bind(_ context.Context, name, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeName(name)
	rec, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	if rec.Bound() {
		return ErrAlreadyBound
	}
	rec.BoundIdentity = identity
	s.records[key] = rec
	return nil
}

func (s *InMemoryStore) Unbind(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeName(name)
	rec, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	rec.BoundIdentity = ""
	s.records[key] = rec
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeName(name)
	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}
