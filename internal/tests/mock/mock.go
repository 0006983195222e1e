package mock

import (
	"context"
	"github.com/stretchr/testify/mock"
	"sync"
	"sync/atomic"
	"time"
	"zentry/internal/model"
)

// ===================== STORAGE MOCK =====================

type MockStorage struct {
	mock.Mock
}

func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

func (m *MockStorage) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStorage) Set(ctx context.Context, values map[string]string) error {
	args := m.Called(ctx, values)
	return args.Error(0)
}

func (m *MockStorage) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ===================== PROVIDER MOCK =====================

type MockProvider struct {
	mock.Mock
}

func NewProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Login(ctx context.Context, userName, password string) (*model.TokenPair, error) {
	args := m.Called(ctx, userName, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenPair), args.Error(1)
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenPair), args.Error(1)
}

func (m *MockProvider) Logout(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

// ===================== RESETTER MOCK =====================

type MockResetter struct {
	mock.Mock
}

func NewMockResetter() *MockResetter {
	return &MockResetter{}
}

func (m *MockResetter) Reset() {
	m.Called()
}

// ===================== REFRESHER FAKE =====================

// CountingRefresher hands out numbered token pairs and counts its calls.
// Delay holds every call open, which lets tests pile requests up behind
// the refresh lock.
type CountingRefresher struct {
	Delay time.Duration
	Err   error

	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

func (r *CountingRefresher) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	n := r.calls.Add(1)

	r.mu.Lock()
	r.seen = append(r.seen, refreshToken)
	r.mu.Unlock()

	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}
	if r.Err != nil {
		return nil, r.Err
	}

	suffix := string(rune('1' + n))
	return &model.TokenPair{
		AccessToken:  "A" + suffix,
		RefreshToken: "R" + suffix,
	}, nil
}

func (r *CountingRefresher) Calls() int {
	return int(r.calls.Load())
}

func (r *CountingRefresher) Seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}
