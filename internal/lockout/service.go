// Package lockout throttles failed verification attempts. The phone suffix
// is a four-digit secret, so repeated mismatches from one candidate are
// treated as guessing and answered with a cooldown.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Store is pure I/O over attempt counters; the lock policy lives here in
// the service.
type Store interface {
	// IncrFailure bumps the failure counter for the identifier inside the
	// rolling window and returns the new count.
	IncrFailure(ctx context.Context, identifier string, window time.Duration) (int, error)

	// Lock marks the identifier locked for the given duration.
	Lock(ctx context.Context, identifier string, ttl time.Duration) error

	// IsLocked reports whether the identifier is currently locked.
	IsLocked(ctx context.Context, identifier string) (bool, error)

	// Clear drops the counter and any lock for the identifier.
	Clear(ctx context.Context, identifier string) error
}

// Config carries the lockout policy knobs.
type Config struct {
	MaxFailures int
	Window      time.Duration
	Cooldown    time.Duration
}

// DefaultConfig allows five suffix mismatches per ten minutes before a
// ten-minute cooldown.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Window:      10 * time.Minute,
		Cooldown:    10 * time.Minute,
	}
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	svc := &Service{
		store:  store,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Allowed reports whether the identifier may attempt verification. Store
// failures err on the side of allowing: lockout is hardening, not the
// source of truth for access.
func (s *Service) Allowed(ctx context.Context, identifier string) bool {
	locked, err := s.store.IsLocked(ctx, identifier)
	if err != nil {
		s.logger.Error("lockout check failed, allowing attempt", "error", err)
		return true
	}
	return !locked
}

// Failure records one failed attempt and applies the cooldown once the
// threshold is crossed. Returns true when the identifier is now locked.
func (s *Service) Failure(ctx context.Context, identifier string) bool {
	count, err := s.store.IncrFailure(ctx, identifier, s.config.Window)
	if err != nil {
		s.logger.Error("record verification failure failed", "error", err)
		return false
	}
	if count < s.config.MaxFailures {
		return false
	}
	if err := s.store.Lock(ctx, identifier, s.config.Cooldown); err != nil {
		s.logger.Error("apply lockout failed", "error", err)
		return false
	}
	s.logger.Warn("candidate locked out after repeated failures",
		"identity", identifier,
		"failures", count,
		"cooldown", s.config.Cooldown,
	)
	return true
}

// Success clears the identifier's counters after a verified attempt.
func (s *Service) Success(ctx context.Context, identifier string) {
	if err := s.store.Clear(ctx, identifier); err != nil {
		s.logger.Error("clear lockout state failed", "error", err)
	}
}
