package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"zentry/internal/metrics"
	"zentry/internal/model"
	"zentry/internal/session"
)

const (
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	Generation() uint64
	SetTokensAt(ctx context.Context, gen uint64, access, refresh string) error
	ClearAt(ctx context.Context, gen uint64) error
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
}

// AuthTransport attaches the stored access token to every request and, when
// the server answers 401, refreshes the token pair once and retries once.
// All requests going through one AuthTransport share a single refresh lock,
// so a burst of 401s costs one refresh call.
type AuthTransport struct {
	base      http.RoundTripper
	store     TokenStore
	refresher Refresher
	log       *slog.Logger

	mu sync.Mutex
}

// NewAuthTransport wraps base. refresher must not send its own calls through
// the returned transport.
func NewAuthTransport(base http.RoundTripper, store TokenStore, refresher Refresher, log *slog.Logger) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{
		base:      base,
		store:     store,
		refresher: refresher,
		log:       log,
	}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	const op = "network.RoundTrip"

	tried, err := t.store.AccessToken(req.Context())
	if err != nil {
		closeRequestBody(req)
		return nil, fmt.Errorf("%s: read access token: %w", op, err)
	}
	if tried == "" {
		return t.base.RoundTrip(req)
	}

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	first, err := authorize(req, tried, getBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := t.base.RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	metrics.UnauthorizedTotal.Inc()

	token, ok := t.recoverUnauthorized(req, tried)
	if !ok {
		return resp, nil
	}
	drain(resp)

	retry, err := authorize(req, token, getBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t.base.RoundTrip(retry)
}

// recoverUnauthorized runs under the refresh lock and returns the token to
// retry with. ok is false when the original 401 should be returned as is.
func (t *AuthTransport) recoverUnauthorized(req *http.Request, tried string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Other waiters depend on this refresh; the caller going away must not abort it.
	ctx := context.WithoutCancel(req.Context())
	log := t.log.With(slog.String("method", req.Method), slog.String("url", req.URL.Redacted()))

	// A logout or a new login while the refresh is in flight moves the
	// generation on; the refreshed pair then belongs to a dead session.
	gen := t.store.Generation()

	current, err := t.store.AccessToken(ctx)
	if err != nil {
		log.Error("failed to re-read access token", slog.String("error", err.Error()))
		metrics.RefreshTotal.WithLabelValues(metrics.RefreshSkipped).Inc()
		return "", false
	}
	if current == "" {
		log.Debug("session was cleared while the request was in flight")
		metrics.RefreshTotal.WithLabelValues(metrics.RefreshSkipped).Inc()
		return "", false
	}
	if current != tried {
		log.Debug("token already refreshed by a concurrent request")
		metrics.RefreshTotal.WithLabelValues(metrics.RefreshPiggyback).Inc()
		return current, true
	}

	refreshToken, err := t.store.RefreshToken(ctx)
	if err != nil || refreshToken == "" {
		log.Warn("no refresh token available, passing 401 through")
		metrics.RefreshTotal.WithLabelValues(metrics.RefreshSkipped).Inc()
		return "", false
	}

	pair, err := t.refresh(ctx, refreshToken)
	if err == nil && (pair == nil || pair.AccessToken == "") {
		err = errors.New("refresh returned no access token")
	}
	if err != nil {
		log.Warn("token refresh failed, clearing session", slog.String("error", err.Error()))
		metrics.RefreshTotal.WithLabelValues(metrics.RefreshFailure).Inc()
		t.clear(ctx, log, gen, "refresh_failed")
		return "", false
	}

	newRefresh := pair.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	if err := t.store.SetTokensAt(ctx, gen, pair.AccessToken, newRefresh); err != nil {
		if errors.Is(err, session.ErrSessionChanged) {
			log.Info("session ended during refresh, dropping refreshed tokens")
			metrics.RefreshTotal.WithLabelValues(metrics.RefreshSkipped).Inc()
			return "", false
		}
		// The server already rotated the old pair, so the stored one is dead.
		log.Error("failed to persist refreshed tokens, clearing session", slog.String("error", err.Error()))
		metrics.RefreshTotal.WithLabelValues(metrics.RefreshFailure).Inc()
		t.clear(ctx, log, gen, "persist_failed")
		return "", false
	}

	log.Info("token refreshed")
	metrics.RefreshTotal.WithLabelValues(metrics.RefreshSuccess).Inc()
	return pair.AccessToken, true
}

// clear wipes the session unless it already moved on to another generation.
func (t *AuthTransport) clear(ctx context.Context, log *slog.Logger, gen uint64, reason string) {
	err := t.store.ClearAt(ctx, gen)
	switch {
	case errors.Is(err, session.ErrSessionChanged):
		log.Debug("session already replaced, nothing to clear")
	case err != nil:
		log.Error("failed to clear session", slog.String("error", err.Error()))
	default:
		metrics.SessionClearsTotal.WithLabelValues(reason).Inc()
	}
}

// refresh turns a panicking refresher into an error.
func (t *AuthTransport) refresh(ctx context.Context, refreshToken string) (pair *model.TokenPair, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	return t.refresher.Refresh(ctx, refreshToken)
}

// Reset drops pooled connections so the next session starts clean.
func (t *AuthTransport) Reset() {
	type idleCloser interface{ CloseIdleConnections() }
	if c, ok := t.base.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

func (t *AuthTransport) CloseIdleConnections() {
	t.Reset()
}

func authorize(req *http.Request, token string, getBody func() (io.ReadCloser, error)) (*http.Request, error) {
	r := req.Clone(req.Context())
	r.Header.Set(HeaderAuthorization, BearerPrefix+token)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		r.Body = body
		r.GetBody = getBody
	}
	return r, nil
}

// replayableBody returns a way to produce the request body again for the
// retry. Bodies without GetBody are buffered.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		req.Body.Close()
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
