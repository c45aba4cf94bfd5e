//go:build integration

package lockout_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatebot/internal/lockout"
	"gatebot/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *lockout.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, &RedisStoreSuite{redis: containers.NewRedisContainer(t)})
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = lockout.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) TestFailureCounter() {
	ctx := context.Background()

	count, err := s.store.IncrFailure(ctx, "7", time.Minute)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.IncrFailure(ctx, "7", time.Minute)
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.IncrFailure(ctx, "8", time.Minute)
	s.Require().NoError(err)
	s.Equal(1, count, "counters are per identifier")
}

func (s *RedisStoreSuite) TestWindowExpiry() {
	ctx := context.Background()

	_, err := s.store.IncrFailure(ctx, "7", time.Second)
	s.Require().NoError(err)

	time.Sleep(1200 * time.Millisecond)

	count, err := s.store.IncrFailure(ctx, "7", time.Second)
	s.Require().NoError(err)
	s.Equal(1, count, "an expired window starts counting from scratch")
}

func (s *RedisStoreSuite) TestLockAndExpiry() {
	ctx := context.Background()

	locked, err := s.store.IsLocked(ctx, "7")
	s.Require().NoError(err)
	s.False(locked)

	s.Require().NoError(s.store.Lock(ctx, "7", time.Second))

	locked, err = s.store.IsLocked(ctx, "7")
	s.Require().NoError(err)
	s.True(locked)

	time.Sleep(1200 * time.Millisecond)

	locked, err = s.store.IsLocked(ctx, "7")
	s.Require().NoError(err)
	s.False(locked, "the cooldown lifts itself via TTL")
}

func (s *RedisStoreSuite) TestClear() {
	ctx := context.Background()

	_, err := s.store.IncrFailure(ctx, "7", time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Lock(ctx, "7", time.Minute))

	s.Require().NoError(s.store.Clear(ctx, "7"))

	locked, err := s.store.IsLocked(ctx, "7")
	s.Require().NoError(err)
	s.False(locked)

	count, err := s.store.IncrFailure(ctx, "7", time.Minute)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *RedisStoreSuite) TestServiceOverRedis() {
	ctx := context.Background()
	service, err := lockout.New(s.store, lockout.WithConfig(lockout.Config{
		MaxFailures: 2,
		Window:      time.Minute,
		Cooldown:    time.Minute,
	}))
	s.Require().NoError(err)

	s.True(service.Allowed(ctx, "7"))
	s.False(service.Failure(ctx, "7"))
	s.True(service.Failure(ctx, "7"))
	s.False(service.Allowed(ctx, "7"))

	service.Success(ctx, "7")
	s.True(service.Allowed(ctx, "7"))
}
