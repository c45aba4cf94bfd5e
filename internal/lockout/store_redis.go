package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failureKeyPrefix = "gatebot:lockout:failures:"
	lockKeyPrefix    = "gatebot:lockout:lock:"
)

// RedisStore keeps attempt counters in Redis so lockouts survive restarts
// and are shared when more than one bot instance runs against the group.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IncrFailure(ctx context.Context, identifier string, window time.Duration) (int, error) {
	key := failureKeyPrefix + identifier
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr failure counter: %w", err)
	}
	// First failure opens the window; later failures ride the existing TTL.
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("set failure window: %w", err)
		}
	}
	return int(count), nil
}

func (s *RedisStore) Lock(ctx context.Context, identifier string, ttl time.Duration) error {
	if err := s.client.Set(ctx, lockKeyPrefix+identifier, "1", ttl).Err(); err != nil {
		return fmt.Errorf("set lockout: %w", err)
	}
	return nil
}

func (s *RedisStore) IsLocked(ctx context.Context, identifier string) (bool, error) {
	_, err := s.client.Get(ctx, lockKeyPrefix+identifier).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("check lockout: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, failureKeyPrefix+identifier, lockKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("clear lockout state: %w", err)
	}
	return nil
}
