package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"zentry/internal/model"
	"zentry/internal/storage"
)

// Field is a fixed key of the persisted session namespace.
type Field string

const (
	FieldAccessToken  Field = "access_token"
	FieldRefreshToken Field = "refresh_token"
	FieldUserID       Field = "user_id"
	FieldRole         Field = "user_role"
	FieldLoggedIn     Field = "is_logged_in"
	FieldRememberMe   Field = "remember_me"
)

var (
	ErrEmptyToken     = errors.New("access and refresh tokens must both be set")
	ErrSessionChanged = errors.New("session changed since generation was read")
)

// Store is the credential store. Reads run concurrently; writes are
// serialized and committed to the backing storage before they return.
type Store struct {
	storage storage.Storage
	log     *slog.Logger
	lock    sync.RWMutex
	// gen changes on every login and every clear. Guarded by lock.
	gen uint64

	subsMu sync.Mutex
	subs   map[int]chan State
	nextID int
}

func NewStore(storage storage.Storage, log *slog.Logger) *Store {
	return &Store{
		storage: storage,
		log:     log,
		subs:    make(map[int]chan State),
	}
}

// Get returns the raw value of a field; ok is false when it is absent.
func (s *Store) Get(ctx context.Context, field Field) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.get(ctx, field)
}

func (s *Store) get(ctx context.Context, field Field) (string, bool, error) {
	v, ok, err := s.storage.Get(ctx, string(field))
	if err != nil {
		return "", false, fmt.Errorf("session.Get %s: %w", field, err)
	}
	if v == "" {
		return "", false, nil
	}
	return v, ok, nil
}

func (s *Store) getString(ctx context.Context, field Field) (string, error) {
	v, _, err := s.Get(ctx, field)
	return v, err
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.getString(ctx, FieldAccessToken)
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.getString(ctx, FieldRefreshToken)
}

func (s *Store) UserID(ctx context.Context) (string, error) {
	return s.getString(ctx, FieldUserID)
}

// Role returns the role as the server sent it.
func (s *Store) Role(ctx context.Context) (string, error) {
	return s.getString(ctx, FieldRole)
}

func (s *Store) RememberMe(ctx context.Context) (bool, error) {
	v, _, err := s.Get(ctx, FieldRememberMe)
	if err != nil {
		return false, err
	}
	return parseBool(v), nil
}

// SetTokens stores a new token pair and raises the logged-in flag. User id
// and role are left as they are.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	if access == "" || refresh == "" {
		return ErrEmptyToken
	}
	return s.write(ctx, map[Field]string{
		FieldAccessToken:  access,
		FieldRefreshToken: refresh,
		FieldLoggedIn:     strconv.FormatBool(true),
	})
}

// Generation identifies the current session. A token pair obtained under
// one generation must not be written into another.
func (s *Store) Generation() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.gen
}

// SetTokensAt is SetTokens that fails with ErrSessionChanged when the
// session was cleared or replaced after gen was read.
func (s *Store) SetTokensAt(ctx context.Context, gen uint64, access, refresh string) error {
	if access == "" || refresh == "" {
		return ErrEmptyToken
	}
	return s.commit(ctx, map[Field]string{
		FieldAccessToken:  access,
		FieldRefreshToken: refresh,
		FieldLoggedIn:     strconv.FormatBool(true),
	}, &gen, false)
}

func (s *Store) SetUserInfo(ctx context.Context, userID, role string) error {
	return s.write(ctx, map[Field]string{
		FieldUserID: userID,
		FieldRole:   role,
	})
}

// SaveLogin writes tokens, user info and the logged-in flag as one commit.
func (s *Store) SaveLogin(ctx context.Context, pair model.TokenPair) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return ErrEmptyToken
	}
	return s.commit(ctx, map[Field]string{
		FieldAccessToken:  pair.AccessToken,
		FieldRefreshToken: pair.RefreshToken,
		FieldUserID:       pair.UserID,
		FieldRole:         pair.Role,
		FieldLoggedIn:     strconv.FormatBool(true),
	}, nil, true)
}

func (s *Store) SetRememberMe(ctx context.Context, remember bool) error {
	return s.write(ctx, map[Field]string{FieldRememberMe: strconv.FormatBool(remember)})
}

// Clear drops every field, remember-me included.
func (s *Store) Clear(ctx context.Context) error {
	return s.clear(ctx, nil)
}

// ClearAt clears only while the session is still at gen.
func (s *Store) ClearAt(ctx context.Context, gen uint64) error {
	return s.clear(ctx, &gen)
}

func (s *Store) clear(ctx context.Context, gen *uint64) error {
	s.lock.Lock()
	if gen != nil && *gen != s.gen {
		s.lock.Unlock()
		return fmt.Errorf("session.Clear: %w", ErrSessionChanged)
	}
	s.gen++
	before := s.stateLocked(ctx)
	err := s.storage.Clear(ctx)
	after := s.stateLocked(ctx)
	s.lock.Unlock()

	if err != nil {
		return fmt.Errorf("session.Clear: %w", err)
	}
	s.publish(before, after)
	return nil
}

// IsLoggedIn reads the flag and both tokens from storage on every call.
func (s *Store) IsLoggedIn(ctx context.Context) bool {
	rec, err := s.Snapshot(ctx)
	if err != nil {
		s.log.Warn("failed to read session", slog.String("error", err.Error()))
		return false
	}
	return rec.IsLoggedIn()
}

// HasValidTokens reports whether both tokens are present, whatever the flag says.
func (s *Store) HasValidTokens(ctx context.Context) bool {
	rec, err := s.Snapshot(ctx)
	if err != nil {
		s.log.Warn("failed to read session", slog.String("error", err.Error()))
		return false
	}
	return rec.HasTokens()
}

func (s *Store) Snapshot(ctx context.Context) (model.Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.snapshotLocked(ctx)
}

func (s *Store) snapshotLocked(ctx context.Context) (model.Record, error) {
	var rec model.Record
	targets := []struct {
		field Field
		dst   *string
	}{
		{FieldAccessToken, &rec.AccessToken},
		{FieldRefreshToken, &rec.RefreshToken},
		{FieldUserID, &rec.UserID},
		{FieldRole, &rec.Role},
	}
	for _, t := range targets {
		v, _, err := s.get(ctx, t.field)
		if err != nil {
			return model.Record{}, err
		}
		*t.dst = v
	}

	loggedIn, _, err := s.get(ctx, FieldLoggedIn)
	if err != nil {
		return model.Record{}, err
	}
	remember, _, err := s.get(ctx, FieldRememberMe)
	if err != nil {
		return model.Record{}, err
	}
	rec.LoggedIn = parseBool(loggedIn)
	rec.RememberMe = parseBool(remember)
	return rec, nil
}

func (s *Store) write(ctx context.Context, fields map[Field]string) error {
	return s.commit(ctx, fields, nil, false)
}

// commit writes fields in one Set. A non-nil gen must match the current
// generation; newSession starts a new one.
func (s *Store) commit(ctx context.Context, fields map[Field]string, gen *uint64, newSession bool) error {
	values := make(map[string]string, len(fields))
	for f, v := range fields {
		values[string(f)] = v
	}

	s.lock.Lock()
	if gen != nil && *gen != s.gen {
		s.lock.Unlock()
		return fmt.Errorf("session.Set: %w", ErrSessionChanged)
	}
	if newSession {
		s.gen++
	}
	before := s.stateLocked(ctx)
	err := s.storage.Set(ctx, values)
	after := s.stateLocked(ctx)
	s.lock.Unlock()

	if err != nil {
		return fmt.Errorf("session.Set: %w", err)
	}
	s.publish(before, after)
	return nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
