package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists the client's auth session between commands.
// Get returns "" and no error for a missing key.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
	}
}

func (s *RedisSessionStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *RedisSessionStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	cmd := s.client.Set(ctx, key, value, ttl)
	return cmd.Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	cmd := s.client.Del(ctx, key)
	return cmd.Err()
}

func (s *RedisSessionStore) Shutdown(ctx context.Context) error {
	return s.client.Close()
}
