package session

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"sync"
	"testing"
	"zentry/internal/model"
	"zentry/internal/storage/memory"
	mocks "zentry/internal/tests/mock"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(memory.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func loginPair() model.TokenPair {
	return model.TokenPair{
		AccessToken:  "a1",
		RefreshToken: "r1",
		UserID:       "u1",
		Role:         "lecturer",
		ExpiresIn:    3600,
	}
}

func TestStore_EmptyAtFirstRun(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Record{}, rec)
	assert.False(t, s.IsLoggedIn(ctx))
	assert.False(t, s.HasValidTokens(ctx))

	_, ok, err := s.Get(ctx, FieldAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SaveLogin(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveLogin(ctx, loginPair()))

	assert.True(t, s.IsLoggedIn(ctx))
	assert.True(t, s.HasValidTokens(ctx))

	rec, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Record{
		AccessToken:  "a1",
		RefreshToken: "r1",
		UserID:       "u1",
		Role:         "lecturer",
		LoggedIn:     true,
	}, rec)

	st := s.State(ctx)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, model.RoleTeacher, st.Role)
	assert.True(t, st.IsTeacher())
	assert.False(t, st.IsStudent())
}

func TestStore_SetTokensKeepsUserInfo(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveLogin(ctx, loginPair()))

	require.NoError(t, s.SetTokens(ctx, "a2", "r2"))

	access, err := s.AccessToken(ctx)
	require.NoError(t, err)
	refresh, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	userID, err := s.UserID(ctx)
	require.NoError(t, err)
	role, err := s.Role(ctx)
	require.NoError(t, err)

	assert.Equal(t, "a2", access)
	assert.Equal(t, "r2", refresh)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "lecturer", role)
}

func TestStore_RejectsEmptyTokens(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.ErrorIs(t, s.SetTokens(ctx, "a1", ""), ErrEmptyToken)
	require.ErrorIs(t, s.SaveLogin(ctx, model.TokenPair{RefreshToken: "r1"}), ErrEmptyToken)
	assert.False(t, s.IsLoggedIn(ctx))
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveLogin(ctx, loginPair()))
	require.NoError(t, s.SetRememberMe(ctx, true))

	require.NoError(t, s.Clear(ctx))

	assert.False(t, s.IsLoggedIn(ctx))
	rec, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Record{}, rec)

	remember, err := s.RememberMe(ctx)
	require.NoError(t, err)
	assert.False(t, remember)
}

func TestStore_LoggedInNeedsFlagAndTokens(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := NewStore(backend, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, backend.Set(ctx, map[string]string{
		string(FieldAccessToken):  "a1",
		string(FieldRefreshToken): "r1",
	}))
	assert.False(t, s.IsLoggedIn(ctx), "flag not set")
	assert.True(t, s.HasValidTokens(ctx))

	require.NoError(t, backend.Set(ctx, map[string]string{
		string(FieldLoggedIn):    "true",
		string(FieldAccessToken): "",
	}))
	assert.False(t, s.IsLoggedIn(ctx), "access token missing")
	assert.False(t, s.HasValidTokens(ctx))
}

func TestStore_RememberMe(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	remember, err := s.RememberMe(ctx)
	require.NoError(t, err)
	assert.False(t, remember)

	require.NoError(t, s.SetRememberMe(ctx, true))
	remember, err = s.RememberMe(ctx)
	require.NoError(t, err)
	assert.True(t, remember)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	states, cancel := s.Subscribe(4)
	defer cancel()

	require.NoError(t, s.SaveLogin(ctx, loginPair()))
	require.NoError(t, s.SetTokens(ctx, "a2", "r2"))
	require.NoError(t, s.SetRememberMe(ctx, true))
	require.NoError(t, s.Clear(ctx))

	first := <-states
	assert.True(t, first.LoggedIn)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, model.RoleTeacher, first.Role)

	second := <-states
	assert.False(t, second.LoggedIn)

	select {
	case st := <-states:
		t.Fatalf("unexpected transition %+v", st)
	default:
	}

	cancel()
	_, open := <-states
	assert.False(t, open)
}

func TestStore_StorageErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	backend := mocks.NewMockStorage()
	backend.On("Get", mock.Anything, mock.Anything).Return("", false, boom)
	backend.On("Set", mock.Anything, mock.Anything).Return(boom)

	s := NewStore(backend, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := s.AccessToken(ctx)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.SetTokens(ctx, "a", "r"), boom)
	assert.False(t, s.IsLoggedIn(ctx))
	assert.Equal(t, State{}, s.State(ctx))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveLogin(ctx, loginPair()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.SetTokens(ctx, "a2", "r2")
		}()
		go func() {
			defer wg.Done()
			assert.True(t, s.HasValidTokens(ctx))
		}()
	}
	wg.Wait()

	access, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", access)
}

func TestStore_GenerationGuardsTokenWrites(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveLogin(ctx, loginPair()))

	gen := s.Generation()
	require.NoError(t, s.SetTokensAt(ctx, gen, "a2", "r2"))
	assert.Equal(t, gen, s.Generation(), "a token rewrite keeps the session")

	require.NoError(t, s.Clear(ctx))
	err := s.SetTokensAt(ctx, gen, "a3", "r3")
	assert.ErrorIs(t, err, ErrSessionChanged)
	assert.False(t, s.IsLoggedIn(ctx))
	assert.False(t, s.HasValidTokens(ctx))
}

func TestStore_ClearAtSparesNewLogin(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveLogin(ctx, loginPair()))
	gen := s.Generation()

	require.NoError(t, s.SaveLogin(ctx, loginPair()))
	assert.ErrorIs(t, s.ClearAt(ctx, gen), ErrSessionChanged)
	assert.True(t, s.IsLoggedIn(ctx))

	require.NoError(t, s.ClearAt(ctx, s.Generation()))
	assert.False(t, s.IsLoggedIn(ctx))
}
