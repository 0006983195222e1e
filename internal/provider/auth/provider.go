package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"zentry/internal/config"
	"zentry/internal/model"
	"zentry/internal/provider"
)

const maxBodySize = 1 << 20

type Provider interface {
	Login(ctx context.Context, userName, password string) (*model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

type authProvider struct {
	api    config.APIConfig
	client *http.Client
	log    *slog.Logger
}

// NewAuthProvider talks to the authentication endpoints. client must be a
// plain client: running refresh through the authenticating transport would
// intercept the refresh call itself.
func NewAuthProvider(api config.APIConfig, client *http.Client, log *slog.Logger) Provider {
	return &authProvider{
		api:    api,
		client: client,
		log:    log,
	}
}

func (p *authProvider) Login(ctx context.Context, userName, password string) (*model.TokenPair, error) {
	const op = "provider.Login"
	url := p.api.Endpoint(p.api.LoginPath)

	p.log.Debug("calling login endpoint",
		slog.String("url", url),
		slog.String("user_name", userName))

	status, body, err := p.post(ctx, url, model.LoginRequest{UserName: userName, Password: password}, "")
	if err != nil {
		p.log.Error("login request failed",
			slog.String("error", err.Error()),
			slog.String("url", url))
		return nil, &provider.LoginError{
			Message: provider.DefaultNetworkMessage,
			Err:     fmt.Errorf("%s: %w: %w", op, provider.ErrNetworkFailure, err),
		}
	}

	if status < 200 || status > 299 {
		msg := extractMessage(body)
		if msg == "" {
			msg = provider.DefaultLoginMessage
		}

		p.log.Warn("login rejected",
			slog.Int("status", status),
			slog.String("message", msg))

		kind := provider.ErrInvalidCredentials
		if status >= 500 {
			kind = provider.ErrNetworkFailure
		}
		return nil, &provider.LoginError{
			Message: msg,
			Status:  status,
			Err:     fmt.Errorf("%s: %w (status %d)", op, kind, status),
		}
	}

	var pair model.TokenPair
	if err := json.Unmarshal(body, &pair); err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		p.log.Error("login response is not a token pair",
			slog.Int("status", status),
			slog.Int("body_length", len(body)))
		return nil, &provider.LoginError{
			Message: provider.DefaultNetworkMessage,
			Status:  status,
			Err:     fmt.Errorf("%s: %w", op, provider.ErrMalformedResponse),
		}
	}

	p.log.Debug("login completed",
		slog.String("user_id", pair.UserID),
		slog.String("role", pair.Role))

	return &pair, nil
}

// Refresh exchanges a refresh token for a new pair. Every failure comes back
// as an error wrapping provider.ErrRefreshExhausted.
func (p *authProvider) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	const op = "provider.Refresh"
	url := p.api.Endpoint(p.api.RefreshPath)

	p.log.Debug("refreshing token", slog.String("url", url))

	status, body, err := p.post(ctx, url, model.RefreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		p.log.Error("refresh request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w: %w", op, provider.ErrRefreshExhausted, provider.ErrNetworkFailure, err)
	}

	if status < 200 || status > 299 {
		p.log.Warn("token refresh rejected",
			slog.Int("status", status),
			slog.String("message", extractMessage(body)))
		return nil, fmt.Errorf("%s: %w (status %d)", op, provider.ErrRefreshExhausted, status)
	}

	var resp model.RefreshResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.log.Error("failed to decode refresh response", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w: %w", op, provider.ErrRefreshExhausted, provider.ErrMalformedResponse, err)
	}

	pair := resp.Normalize()
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w: %w: no access token", op, provider.ErrRefreshExhausted, provider.ErrMalformedResponse)
	}
	if pair.RefreshToken == "" {
		// non-rotating server
		pair.RefreshToken = refreshToken
	}

	p.log.Debug("token refreshed successfully")
	return &pair, nil
}

// Logout asks the server to invalidate the session. It is a no-op when no
// logout path is configured.
func (p *authProvider) Logout(ctx context.Context, accessToken string) error {
	const op = "provider.Logout"

	if p.api.LogoutPath == "" {
		return nil
	}
	url := p.api.Endpoint(p.api.LogoutPath)

	status, _, err := p.post(ctx, url, nil, accessToken)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, provider.ErrNetworkFailure, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%s: status %d", op, status)
	}
	return nil
}

func (p *authProvider) post(ctx context.Context, url string, payload any, bearer string) (int, []byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// extractMessage pulls a readable message out of an error body: a known
// JSON field first, otherwise the body text itself.
func extractMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var errResp model.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, m := range []string{errResp.Message, errResp.ErrorDescription, errResp.Error} {
			if m = strings.TrimSpace(m); m != "" {
				return m
			}
		}
		return ""
	}

	var quoted string
	if err := json.Unmarshal(body, &quoted); err == nil {
		text = strings.TrimSpace(quoted)
	} else if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") || strings.HasPrefix(text, "<") {
		return ""
	}
	const maxLen = 200
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}
