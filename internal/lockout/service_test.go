package lockout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// brokenStore fails every operation; the service must fail open.
type brokenStore struct{}

func (brokenStore) IncrFailure(context.Context, string, time.Duration) (int, error) {
	return 0, errors.New("store down")
}
func (brokenStore) Lock(context.Context, string, time.Duration) error { return errors.New("store down") }
func (brokenStore) IsLocked(context.Context, string) (bool, error)    { return false, errors.New("store down") }
func (brokenStore) Clear(context.Context, string) error               { return errors.New("store down") }

type LockoutSuite struct {
	suite.Suite
	now     time.Time
	store   *InMemoryStore
	service *Service
}

func TestLockoutSuite(t *testing.T) {
	suite.Run(t, new(LockoutSuite))
}

func (s *LockoutSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(WithClock(func() time.Time { return s.now }))

	var err error
	s.service, err = New(s.store, WithConfig(Config{
		MaxFailures: 3,
		Window:      10 * time.Minute,
		Cooldown:    10 * time.Minute,
	}))
	s.Require().NoError(err)
}

func (s *LockoutSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *LockoutSuite) TestLocksAtThreshold() {
	ctx := context.Background()

	s.False(s.service.Failure(ctx, "7"))
	s.False(s.service.Failure(ctx, "7"))
	s.True(s.service.Allowed(ctx, "7"), "below the threshold attempts stay open")

	s.True(s.service.Failure(ctx, "7"), "third failure crosses the threshold")
	s.False(s.service.Allowed(ctx, "7"))
}

func (s *LockoutSuite) TestCooldownExpires() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.service.Failure(ctx, "7")
	}
	s.False(s.service.Allowed(ctx, "7"))

	s.advance(10*time.Minute + time.Second)
	s.True(s.service.Allowed(ctx, "7"))
}

func (s *LockoutSuite) TestWindowResetsCounter() {
	ctx := context.Background()
	s.service.Failure(ctx, "7")
	s.service.Failure(ctx, "7")

	// The window rolls over before the third mistake, so it counts as the
	// first of a fresh window.
	s.advance(11 * time.Minute)
	s.False(s.service.Failure(ctx, "7"))
	s.True(s.service.Allowed(ctx, "7"))
}

func (s *LockoutSuite) TestSuccessClearsState() {
	ctx := context.Background()
	s.service.Failure(ctx, "7")
	s.service.Failure(ctx, "7")

	s.service.Success(ctx, "7")

	s.False(s.service.Failure(ctx, "7"), "counter restarts after a verified attempt")
	s.True(s.service.Allowed(ctx, "7"))
}

func (s *LockoutSuite) TestIdentifiersAreIndependent() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.service.Failure(ctx, "7")
	}

	s.False(s.service.Allowed(ctx, "7"))
	s.True(s.service.Allowed(ctx, "8"))
}

func (s *LockoutSuite) TestFailsOpenOnStoreErrors() {
	service, err := New(brokenStore{})
	s.Require().NoError(err)

	ctx := context.Background()
	s.True(service.Allowed(ctx, "7"), "a broken counter store must not block verification")
	s.False(service.Failure(ctx, "7"))
	service.Success(ctx, "7")
}

func (s *LockoutSuite) TestNilStoreRejected() {
	_, err := New(nil)
	s.Error(err)
}
