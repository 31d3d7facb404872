// Package server собирает HTTP API авторитетного хранилища: маршруты, middleware и жизненный цикл.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/minesync/internal/server/handlers"
	"github.com/iudanet/minesync/internal/server/middleware"
	"github.com/iudanet/minesync/internal/server/storage"
	"github.com/iudanet/minesync/internal/validation"
)

// Store хранилище сервера с проверкой доступности
type Store interface {
	storage.Storage
	handlers.Pinger
}

// Tokens выпускает и проверяет токены сессии
type Tokens interface {
	handlers.TokenIssuer
	middleware.TokenValidator
}

// Config параметры HTTP API
type Config struct {
	Store   Store
	Tokens  Tokens
	Limiter middleware.Limiter // nil отключает ограничение частоты
	Logger  *slog.Logger
	Version string
	Limits  validation.Limits
}

// NewRouter создает http.Handler со всеми маршрутами API
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger

	authHandler := handlers.NewAuthHandler(logger, cfg.Store, cfg.Tokens)
	healthHandler := handlers.NewHealthHandler(logger, cfg.Store, cfg.Version)
	userHandler := handlers.NewUserHandler(logger, cfg.Store, cfg.Limits.MaxBalanceChange)
	stakeHandler := handlers.NewStakeHandler(logger, cfg.Store, cfg.Limits)
	gameHandler := handlers.NewGameHandler(logger, cfg.Store)
	securityHandler := handlers.NewSecurityHandler(logger, cfg.Store)

	auth := middleware.AuthMiddleware(logger, cfg.Tokens)
	protected := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}

	mux := http.NewServeMux()

	// Публичные маршруты
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/v1/auth/token", authHandler.IssueToken)

	// Защищенные маршруты
	mux.Handle("GET /api/v1/users/me", protected(userHandler.GetMe))
	mux.Handle("PUT /api/v1/users/me/balance", protected(userHandler.UpdateBalance))

	mux.Handle("GET /api/v1/stakes", protected(stakeHandler.List))
	mux.Handle("POST /api/v1/stakes", protected(stakeHandler.Create))
	mux.Handle("PATCH /api/v1/stakes/{id}", protected(stakeHandler.Update))
	mux.Handle("POST /api/v1/stakes/{id}/claim", protected(stakeHandler.Claim))

	mux.Handle("GET /api/v1/synergy", protected(gameHandler.GetSynergy))
	mux.Handle("PUT /api/v1/synergy", protected(gameHandler.PutSynergy))
	mux.Handle("GET /api/v1/game-data", protected(gameHandler.GetGameData))
	mux.Handle("PUT /api/v1/game-data", protected(gameHandler.PutGameData))

	mux.Handle("GET /api/v1/security-events", protected(securityHandler.List))
	mux.Handle("POST /api/v1/security-events", protected(securityHandler.Record))

	var h http.Handler = mux
	if cfg.Limiter != nil {
		h = middleware.RateLimitMiddleware(cfg.Limiter, logger)(h)
	}
	h = middleware.LoggingMiddleware(logger, "/health", "/metrics")(h)
	h = middleware.RecoveryMiddleware(logger)(h)

	return h
}

// ShutdownTimeout время на завершение активных запросов
const ShutdownTimeout = 10 * time.Second

// Run обслуживает handler на addr до отмены ctx, затем корректно останавливается
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
