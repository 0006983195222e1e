package memory

import (
	"context"
	"sync"
	"zentry/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage keeps the session in process memory. Nothing survives a restart.
type Storage struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *Storage {
	return &Storage{values: make(map[string]string)}
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Storage) Set(_ context.Context, values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values = make(map[string]string)
	return nil
}
