package storage

import (
	"context"
)

// Storage is the durable key-value namespace holding the session fields.
// Set must not return before every value in the map is committed.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, values map[string]string) error
	Clear(ctx context.Context) error
}
