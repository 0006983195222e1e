package suite

import (
	"context"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"testing"
	"time"
	"zentry/internal/app"
	"zentry/internal/config"
	"zentry/internal/storage/memory"
	"zentry/internal/tests/stub"
)

const (
	UserName    = "test@example.com"
	Password    = "password"
	StudentName = "student@example.com"
)

// Suite is the client wired against an in-process backend.
type Suite struct {
	*testing.T

	App     *app.App
	Backend *stub.Server
	Config  *config.Config

	// Ids of the seeded accounts.
	TeacherID string
	StudentID string
}

func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	backend := stub.New()
	teacherID := backend.AddUser(UserName, Password, "lecturer")
	studentID := backend.AddUser(StudentName, Password, "student")

	cfg := &config.Config{
		Env: "local",
		API: config.APIConfig{
			BaseURL:        backend.URL,
			LoginPath:      stub.LoginPath,
			RefreshPath:    stub.RefreshPath,
			LogoutPath:     stub.LogoutPath,
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    5 * time.Second,
		},
		Storage: config.StorageConfig{Type: config.StorageTypeMemory},
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	application := app.NewWithStorage(cfg, memory.New(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	s := &Suite{
		T:         t,
		App:       application,
		Backend:   backend,
		Config:    cfg,
		TeacherID: teacherID,
		StudentID: studentID,
	}

	t.Cleanup(func() {
		cancel()
		require.NoError(t, application.Close(context.Background()))
		backend.Close()
	})

	return ctx, s
}

// Login signs the seeded teacher in.
func (s *Suite) Login(ctx context.Context) {
	s.Helper()

	_, err := s.App.Auth.Login(ctx, UserName, Password)
	require.NoError(s.T, err)
}
