package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshGuard serializes token refreshes across consumer processes so a
// burst of expired-token deliveries produces one token request, not many.
type RefreshGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := g.client.SetNX(ctx, key, time.Now().UnixNano(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return acquired, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis Del failed: %w", err)
	}
	return nil
}

// NoopGuard never blocks a refresh. Used when Redis is not configured;
// the store's version check still prevents lost token writes.
type NoopGuard struct{}

func (NoopGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (NoopGuard) Release(ctx context.Context, key string) error {
	return nil
}
