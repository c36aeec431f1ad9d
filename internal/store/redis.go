package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"thumbcache/internal/logging"
)

const redisTimeout = 5 * time.Second

// RedisOptions configures a RedisBackend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisBackend stores values as plain Redis strings without TTL.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 10 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logging.Error("failed to close redis client after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: redis %s: %w", ErrBackendUnavailable, opts.Addr, err)
	}

	logging.Info("Thumbnail cache connected to redis at %s (db %d)", opts.Addr, opts.DB)
	return &RedisBackend{client: client}, nil
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Get(ctx context.Context, key string) (value string, found bool, err error) {
	start := time.Now()
	defer func() { observeOp(r.Name(), "get", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	value, err = r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { observeOp(r.Name(), "set", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { observeOp(r.Name(), "delete", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	return r.client.Del(ctx, key).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
