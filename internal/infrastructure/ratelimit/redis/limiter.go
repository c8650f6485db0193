package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultMaxAttempts = 5
	defaultWindow      = time.Hour
)

// counter is the subset of *redis.Client the limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AttemptLimiter allows maxAttempts calls per key within a fixed window that
// starts at the first attempt.
type AttemptLimiter struct {
	client      counter
	maxAttempts int64
	window      time.Duration
}

func NewAttemptLimiter(client counter, maxAttempts int, window time.Duration) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &AttemptLimiter{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (l *AttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	attempts, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("increment attempts: %w", err)
	}
	if attempts == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("set attempts window: %w", err)
		}
	}
	return attempts <= l.maxAttempts, nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}
