package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is an optional shared backend for deployments where several
// terminals work against one store (pending receipts picked up on any
// device). Keys are namespaced per terminal identity by the caller.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisConfig configures the shared backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces all keys, e.g. "okuma:depo1:".
	Prefix string
}

// NewRedis connects to the shared store and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Redis{client: client, prefix: cfg.Prefix}, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get implements KV.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements KV. Values have no TTL: pending receipts live until the
// operator removes or submits them.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove implements KV.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

var _ KV = (*Redis)(nil)
