package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"zentry/internal/config"
	"zentry/internal/metrics"
	"zentry/internal/network"
	authProvider "zentry/internal/provider/auth"
	redis2 "zentry/internal/redis"
	"zentry/internal/servises/auth"
	"zentry/internal/session"
	"zentry/internal/storage"
	"zentry/internal/storage/filestore"
	"zentry/internal/storage/memory"
	"zentry/pkg/client/redis"
)

type App struct {
	Auth      *auth.Auth
	Store     *session.Store
	Client    *http.Client
	Transport *network.AuthTransport
	Metrics   *metrics.Server

	api     config.APIConfig
	log     *slog.Logger
	closers []func() error
}

// New opens the configured storage backend and wires the pipeline on top.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	st, closer, err := newStorage(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := NewWithStorage(cfg, st, log)
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, log)
	}

	return a, nil
}

// NewWithStorage wires everything over an already opened backend.
func NewWithStorage(cfg *config.Config, st storage.Storage, log *slog.Logger) *App {
	store := session.NewStore(st, log.With(slog.String("component", "session")))

	plain := network.NewPlainClient(cfg.API, log.With(slog.String("client", "plain")))
	provider := authProvider.NewAuthProvider(cfg.API, plain, log.With(slog.String("component", "provider")))

	client, transport := network.NewAuthClient(cfg.API, store, provider, log.With(slog.String("client", "auth")))

	service := auth.NewServer(provider, store, transport, log.With(slog.String("component", "auth")))

	return &App{
		Auth:      service,
		Store:     store,
		Client:    client,
		Transport: transport,
		api:       cfg.API,
		log:       log,
		closers: []func() error{
			func() error {
				plain.CloseIdleConnections()
				client.CloseIdleConnections()
				return nil
			},
		},
	}
}

// Do sends an authenticated request to a path under the API base URL.
func (a *App) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	const op = "app.Do"

	req, err := http.NewRequestWithContext(ctx, method, a.api.Endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Metrics != nil {
		if err := a.Metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newStorage(ctx context.Context, sc config.StorageConfig, log *slog.Logger) (storage.Storage, func() error, error) {
	switch sc.Type {
	case config.StorageTypeMemory:
		return memory.New(), nil, nil
	case config.StorageTypeFile:
		if sc.File.Secret == "" {
			log.Warn("storage secret is empty, credentials are stored unencrypted", slog.String("path", sc.File.Path))
		}
		st, err := filestore.Open(sc.File.Path, sc.File.Secret)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case config.StorageTypeRedis:
		client, err := redis.NewClient(ctx, sc.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return redis2.NewRepositoryRedis(client, sc.Redis.Namespace), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", sc.Type)
	}
}
