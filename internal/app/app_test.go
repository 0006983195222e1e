package app

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"zentry/internal/config"
	"zentry/internal/model"
)

func newTestConfig(t *testing.T, sc config.StorageConfig) *config.Config {
	t.Helper()

	return &config.Config{
		Env: "local",
		API: config.APIConfig{
			BaseURL:     "http://127.0.0.1:1",
			LoginPath:   "/api/authentication/login",
			RefreshPath: "/api/authentication/refresh",
		},
		Storage: sc,
	}
}

func TestNew_StorageBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		sc   config.StorageConfig
	}{
		{name: "memory", sc: config.StorageConfig{Type: config.StorageTypeMemory}},
		{
			name: "file",
			sc: config.StorageConfig{
				Type: config.StorageTypeFile,
				File: config.StorageFile{Path: filepath.Join(t.TempDir(), "prefs.json"), Secret: "s3cret"},
			},
		},
		{
			name: "redis",
			sc: config.StorageConfig{
				Type: config.StorageTypeRedis,
				Redis: config.StorageRedis{
					Host:        mr.Host(),
					Port:        mr.Port(),
					Namespace:   "app_test",
					MaxAttempts: 1,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			log := slog.New(slog.NewTextHandler(io.Discard, nil))

			a, err := New(ctx, newTestConfig(t, tt.sc), log)
			require.NoError(t, err)
			defer a.Close(ctx)

			require.NoError(t, a.Store.SaveLogin(ctx, model.TokenPair{
				AccessToken:  "a1",
				RefreshToken: "r1",
				UserID:       "u1",
				Role:         "student",
			}))
			assert.True(t, a.Auth.IsLoggedIn(ctx))
			assert.Equal(t, model.RoleStudent, a.Auth.CurrentRole(ctx))
			assert.Nil(t, a.Metrics)
		})
	}
}

func TestNew_UnknownStorage(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(context.Background(), newTestConfig(t, config.StorageConfig{Type: "sqlite"}), log)
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestNew_MetricsEnabled(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := newTestConfig(t, config.StorageConfig{Type: config.StorageTypeMemory})
	cfg.Metrics = config.MetricsConfig{Enabled: true, Port: 0, Path: "/metrics"}

	a, err := New(ctx, cfg, log)
	require.NoError(t, err)
	assert.NotNil(t, a.Metrics)
	assert.NoError(t, a.Close(ctx))
}
