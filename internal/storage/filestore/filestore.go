package filestore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"io"
	"os"
	"path/filepath"
	"sync"
	"zentry/internal/storage"
)

var ErrCorrupted = errors.New("credential file is corrupted or the secret is wrong")

const keyInfo = "zentry-credential-store"

var _ storage.Storage = (*Storage)(nil)

// Storage persists the session as a single JSON document. With a secret the
// document is sealed with XChaCha20-Poly1305 under a key derived by HKDF.
// Every write goes to a temp file that is synced and renamed over the old one.
type Storage struct {
	path   string
	key    []byte
	values map[string]string
	lock   sync.RWMutex
}

// Open loads path if it exists. An empty secret stores plain JSON.
func Open(path, secret string) (*Storage, error) {
	const op = "filestore.Open"

	s := &Storage{path: path, values: make(map[string]string)}
	if secret != "" {
		key, err := deriveKey(secret)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.key = key
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	if s.key != nil {
		if data, err = s.open(data); err != nil {
			return err
		}
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return ErrCorrupted
	}
	s.values = values
	return nil
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Storage) Set(_ context.Context, values map[string]string) error {
	const op = "filestore.Set"

	s.lock.Lock()
	defer s.lock.Unlock()

	next := make(map[string]string, len(s.values)+len(values))
	for k, v := range s.values {
		next[k] = v
	}
	for k, v := range values {
		next[k] = v
	}

	if err := s.write(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.values = next
	return nil
}

func (s *Storage) Clear(_ context.Context) error {
	const op = "filestore.Clear"

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.values = make(map[string]string)
	return nil
}

func (s *Storage) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if s.key != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *Storage) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, []byte(keyInfo)), nil
}

func (s *Storage) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrCorrupted
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(keyInfo))
	if err != nil {
		return nil, ErrCorrupted
	}
	return plain, nil
}
