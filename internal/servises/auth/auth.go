package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"zentry/internal/metrics"
	"zentry/internal/model"
	"zentry/internal/provider"
	"zentry/internal/session"
)

const (
	loginSuccess = "success"
	loginFailure = "failure"
	loginRole    = "unrecognized_role"
)

var ErrMissingCredentials = errors.New("user name and password are required")

type Provider interface {
	Login(ctx context.Context, userName, password string) (*model.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

// Resetter drops whatever the network client cached for the old session.
type Resetter interface {
	Reset()
}

type Auth struct {
	provider Provider
	store    *session.Store
	client   Resetter
	log      *slog.Logger
}

func NewServer(provider Provider, store *session.Store, client Resetter, log *slog.Logger) *Auth {
	return &Auth{
		provider: provider,
		store:    store,
		client:   client,
		log:      log,
	}
}

// Login authenticates against the server and stores the new session. A
// rejected login returns a *provider.LoginError carrying the message to show.
func (a *Auth) Login(ctx context.Context, userName, password string) (*model.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op), slog.String("user_name", userName))

	if strings.TrimSpace(userName) == "" || password == "" {
		metrics.LoginTotal.WithLabelValues(loginFailure).Inc()
		return nil, &provider.LoginError{
			Message: "Please enter user name and password",
			Err:     ErrMissingCredentials,
		}
	}

	pair, err := a.provider.Login(ctx, userName, password)
	if err != nil {
		log.Warn("login failed", slog.String("error", err.Error()))
		metrics.LoginTotal.WithLabelValues(loginFailure).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !model.ParseRole(pair.Role).Valid() {
		log.Warn("server returned an unknown role, logging out", slog.String("role", pair.Role))
		metrics.LoginTotal.WithLabelValues(loginRole).Inc()
		if err := a.forget(ctx, "unrecognized_role"); err != nil {
			log.Error("failed to clear session", slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("%s: %q: %w", op, pair.Role, model.ErrUnrecognizedRole)
	}

	if err := a.store.SaveLogin(ctx, *pair); err != nil {
		log.Error("failed to save session", slog.String("error", err.Error()))
		metrics.LoginTotal.WithLabelValues(loginFailure).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in",
		slog.String("user_id", pair.UserID),
		slog.String("role", model.ParseRole(pair.Role).String()))
	metrics.LoginTotal.WithLabelValues(loginSuccess).Inc()

	return pair, nil
}

// Logout always ends the local session. The server is told on a best-effort
// basis; only a failure to wipe local storage is returned.
func (a *Auth) Logout(ctx context.Context) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	access, err := a.store.AccessToken(ctx)
	if err != nil {
		log.Warn("failed to read access token", slog.String("error", err.Error()))
	}
	if access != "" {
		if err := a.provider.Logout(ctx, access); err != nil {
			log.Warn("server logout failed", slog.String("error", err.Error()))
		}
	}

	if err := a.forget(ctx, "logout"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out")
	return nil
}

// Restore resumes a stored session when the user asked to be remembered.
// Anything else ends up logged out.
func (a *Auth) Restore(ctx context.Context) (session.State, error) {
	const op = "auth.Restore"

	log := a.log.With(slog.String("op", op))

	remember, err := a.store.RememberMe(ctx)
	if err != nil {
		return session.State{}, fmt.Errorf("%s: %w", op, err)
	}

	state := a.store.State(ctx)
	if state.LoggedIn && remember {
		if !state.Role.Valid() {
			if err := a.forget(ctx, "unrecognized_role"); err != nil {
				log.Error("failed to clear session", slog.String("error", err.Error()))
			}
			return session.State{}, fmt.Errorf("%s: %w", op, model.ErrUnrecognizedRole)
		}
		log.Info("session restored", slog.String("user_id", state.UserID))
		return state, nil
	}

	if err := a.forget(ctx, "not_remembered"); err != nil {
		return session.State{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("no session to restore")
	return session.State{}, nil
}

func (a *Auth) SetRememberMe(ctx context.Context, remember bool) error {
	const op = "auth.SetRememberMe"

	if err := a.store.SetRememberMe(ctx, remember); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *Auth) RememberMe(ctx context.Context) bool {
	remember, err := a.store.RememberMe(ctx)
	if err != nil {
		a.log.Warn("failed to read remember-me flag", slog.String("error", err.Error()))
		return false
	}
	return remember
}

// CurrentRole is RoleUnrecognized while logged out.
func (a *Auth) CurrentRole(ctx context.Context) model.Role {
	return a.store.State(ctx).Role
}

func (a *Auth) IsLoggedIn(ctx context.Context) bool {
	return a.store.IsLoggedIn(ctx)
}

func (a *Auth) forget(ctx context.Context, reason string) error {
	defer a.client.Reset()

	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	metrics.SessionClearsTotal.WithLabelValues(reason).Inc()
	return nil
}
