package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/plated-app/plated-api/internal/app"
	"github.com/plated-app/plated-api/internal/config"
	"github.com/plated-app/plated-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/plated-app/plated-api/internal/infrastructure/jwt"
	transporthttp "github.com/plated-app/plated-api/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("build application", "err", err)
		os.Exit(1)
	}

	// Create DynamoDB tables if they don't exist.
	dynamo.Bootstrap(ctx, a.Dynamo, cfg.DynamoTables)

	deps := &transporthttp.Deps{
		Profiles:      a.Profiles,
		Verification:  a.Verification,
		Conversations: a.Conversations,
		Notifications: a.Notifications,
		Devices:       a.Devices,
		Posts:         a.Posts,
		Gatherer:      a.Registry,
	}
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		deps.Tokens = p
	} else {
		slog.Warn("JWT provider not available, authenticated routes will answer 401", "err", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
