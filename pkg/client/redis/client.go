package redis

import (
	"context"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
	"zentry/internal/config"
)

const (
	pingTimeout     = 5 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
)

type Client interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient connects and pings, retrying with exponential backoff up to
// sc.MaxAttempts times.
func NewClient(ctx context.Context, sc config.StorageRedis, log *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", sc.Host, sc.Port),
		Password: sc.Password,
		DB:       sc.DB,
	})

	ping := func() error {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}

	attempts := sc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(initialInterval),
				backoff.WithMaxInterval(maxInterval),
			),
			uint64(attempts-1),
		),
		ctx,
	)

	err := backoff.RetryNotify(ping, strategy, func(err error, d time.Duration) {
		log.Warn("redis not reachable, retrying",
			slog.String("addr", client.Options().Addr),
			slog.String("error", err.Error()),
			slog.Duration("next_attempt_in", d))
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", attempts, err)
	}

	return client, nil
}
