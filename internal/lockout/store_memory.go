package lockout

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count       int
	windowStart time.Time
	lockedUntil time.Time
}

// InMemoryStore tracks attempt counters per identifier. Expired windows are
// reset lazily on access; the identifier population is bounded by actual
// candidates, so no background sweep is needed.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   func() time.Time // injected for testability, defaults to time.Now
}

type MemoryOption func(*InMemoryStore)

func WithClock(clock func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]*entry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) IncrFailure(_ context.Context, identifier string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e, ok := s.entries[identifier]
	if !ok || now.Sub(e.windowStart) > window {
		e = &entry{windowStart: now, lockedUntil: e.lockedUntilOrZero()}
		s.entries[identifier] = e
	}
	e.count++
	return e.count, nil
}

func (e *entry) lockedUntilOrZero() time.Time {
	if e == nil {
		return time.Time{}
	}
	return e.lockedUntil
}

func (s *InMemoryStore) Lock(_ context.Context, identifier string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[identifier]
	if !ok {
		e = &entry{windowStart: s.clock()}
		s.entries[identifier] = e
	}
	e.lockedUntil = s.clock().Add(ttl)
	return nil
}

func (s *InMemoryStore) IsLocked(_ context.Context, identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[identifier]
	if !ok {
		return false, nil
	}
	return s.clock().Before(e.lockedUntil), nil
}

func (s *InMemoryStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, identifier)
	return nil
}
