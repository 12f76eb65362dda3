package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
	}
}

func (l *RedisRateLimiter) Incr(ctx context.Context, key string) (int64, error) {
	return l.client.Incr(ctx, key).Result()
}

func (l *RedisRateLimiter) Expire(ctx context.Context, key string, window time.Duration) error {
	return l.client.Expire(ctx, key, window).Err()
}
