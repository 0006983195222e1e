package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"zentry/internal/app"
	"zentry/internal/area"
	"zentry/internal/config"
	"zentry/internal/model"
	"zentry/internal/provider"
	"zentry/internal/token"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const appName = "zentry"

var (
	getPath  = flag.String("get", "", "send an authenticated GET to this API path")
	doLogout = flag.Bool("logout", false, "log out and wipe stored credentials")
)

func main() {

	_ = godotenv.Load(".env")

	cfg := config.GetConfig()
	log := setupSlog(cfg.Env)

	displayAppname(appName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if application.Metrics != nil {
		application.Metrics.Start()
	}

	code := 0
	if err := run(ctx, cfg, application); err != nil {
		var loginErr *provider.LoginError
		if errors.As(err, &loginErr) {
			fmt.Fprintln(os.Stderr, loginErr.Message)
		}
		log.Error("command failed", slog.String("error", err.Error()))
		code = 1
	}

	if application.Metrics != nil && code == 0 {
		log.Info("serving metrics until interrupted")
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Close(shutdownCtx); err != nil {
		log.Warn("shutdown", slog.String("error", err.Error()))
	}
	log.Info("Gracefully stopped")

	if code != 0 {
		cancel()
		stop()
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config, application *app.App) error {
	if *doLogout {
		if err := application.Auth.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	}

	state, err := application.Auth.Restore(ctx)
	if err != nil && !errors.Is(err, model.ErrUnrecognizedRole) {
		return err
	}

	if !state.LoggedIn {
		creds := cfg.Credentials
		if creds.UserName == "" {
			return errors.New("no stored session and no credentials configured")
		}
		if _, err := application.Auth.Login(ctx, creds.UserName, creds.Password); err != nil {
			return err
		}
		if err := application.Auth.SetRememberMe(ctx, creds.RememberMe); err != nil {
			return err
		}
		state = application.Store.State(ctx)
	}

	userArea, err := area.ForRole(state.Role)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", state.UserID, state.Role)
	fmt.Printf("Area: %s [%s]\n", userArea.Name, strings.Join(userArea.Menu, ", "))

	if access, err := application.Store.AccessToken(ctx); err == nil {
		if exp, ok := token.ExpiresAt(access); ok {
			fmt.Printf("Access token expires at %s\n", exp.Local().Format(time.RFC1123))
		}
	}

	if *getPath != "" {
		return get(ctx, application, *getPath)
	}
	return nil
}

func get(ctx context.Context, application *app.App, path string) error {
	resp, err := application.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Println(resp.Status)
	_, err = io.Copy(os.Stdout, resp.Body)
	fmt.Println()
	return err
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func setupSlog(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
