package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/ratelimit"
	"github.com/iudanet/minesync/internal/server"
	"github.com/iudanet/minesync/internal/server/jwt"
	"github.com/iudanet/minesync/internal/server/storage/sqlite"
	"github.com/iudanet/minesync/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// EnvJWTSecret переменная окружения с секретом подписи токенов
const EnvJWTSecret = "MINESYNC_JWT_SECRET"

// minJWTSecretLen минимальная длина секрета JWT
const minJWTSecretLen = 32

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "minesync.db", "Path to SQLite database")
	logLevel := flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	maxBalanceChange := flag.Float64("max-balance-change", validation.DefaultLimits().MaxBalanceChange, "Maximum allowed balance change per request")
	rateLimit := flag.Int("rate-limit", 300, "Requests per minute per client IP and route (0 disables)")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Access token lifetime")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	secret := os.Getenv(EnvJWTSecret)
	if len(secret) < minJWTSecretLen {
		logger.Error("JWT secret is missing or too short", "env", EnvJWTSecret, "min_len", minJWTSecretLen)
		os.Exit(1)
	}

	if *maxBalanceChange <= 0 {
		logger.Error("max-balance-change must be positive", "value", *maxBalanceChange)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *addr, *dbPath, secret, *tokenTTL, *maxBalanceChange, *rateLimit); err != nil {
		logger.Error("Server stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, addr, dbPath, secret string, tokenTTL time.Duration, maxBalanceChange float64, rateLimit int) error {
	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	limits := validation.DefaultLimits()
	limits.MaxBalanceChange = maxBalanceChange

	cfg := server.Config{
		Store:   store,
		Tokens:  jwt.NewService(secret, tokenTTL),
		Logger:  logger,
		Version: Version,
		Limits:  limits,
	}

	if rateLimit > 0 {
		limiter := ratelimit.New(rateLimit, ratelimit.DefaultWindow, clock.Real{}, logger)
		go limiter.Run(ctx, ratelimit.DefaultWindow)
		cfg.Limiter = limiter
	}

	logger.Info("minesync server starting",
		"version", Version,
		"addr", addr,
		"db", dbPath,
		"max_balance_change", maxBalanceChange,
		"rate_limit", rateLimit)

	return server.Run(ctx, addr, server.NewRouter(cfg), logger)
}

func printVersion() {
	fmt.Printf("minesync server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
