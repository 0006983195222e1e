package redis

import (
	"context"
	"errors"
	"fmt"
	redis2 "github.com/redis/go-redis/v9"
	"zentry/internal/storage"
	"zentry/pkg/client/redis"
)

type repositoryRedis struct {
	Client redis.Client
	key    string
}

// NewRepositoryRedis keeps the session fields in one hash so a group of
// fields is written by a single HSET.
func NewRepositoryRedis(client redis.Client, namespace string) storage.Storage {
	return &repositoryRedis{Client: client, key: fmt.Sprintf("session:%s", namespace)}
}

func (r *repositoryRedis) Get(ctx context.Context, field string) (string, bool, error) {
	val, err := r.Client.HGet(ctx, r.key, field).Result()
	if errors.Is(err, redis2.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis.Get %s: %w", field, err)
	}
	return val, true, nil
}

func (r *repositoryRedis) Set(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}

	if err := r.Client.HSet(ctx, r.key, args...).Err(); err != nil {
		return fmt.Errorf("redis.Set: %w", err)
	}
	return nil
}

func (r *repositoryRedis) Clear(ctx context.Context) error {
	if err := r.Client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis.Clear: %w", err)
	}
	return nil
}
