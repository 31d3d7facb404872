package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/minesync/internal/client/api"
	"github.com/iudanet/minesync/internal/client/auth"
	"github.com/iudanet/minesync/internal/client/iocli"
	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/client/security"
	"github.com/iudanet/minesync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/minesync/internal/client/sync"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/config"
	"github.com/iudanet/minesync/internal/ratelimit"
)

// app локальное хранилище и API клиент одной команды.
// session создается только для команд, работающих с экономикой игрока.
type app struct {
	io      iocli.IO
	logger  *slog.Logger
	local   *boltdb.Storage
	client  *api.Client
	auth    *auth.Service
	session *clientsync.Session
	queue   *queue.Queue
	clock   clock.Clock
	cfg     config.Config
	userID  string
}

// openApp открывает локальную БД и создает API клиент
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	local, err := boltdb.New(ctx, opts.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	client := api.NewClient(opts.cfg.ServerURL)
	clk := clock.Real{}

	return &app{
		io:     opts.IO,
		logger: opts.logger,
		local:  local,
		client: client,
		auth:   auth.NewService(client, local, opts.cfg.ServerURL, clk, opts.logger),
		clock:  clk,
		cfg:    opts.cfg,
	}, nil
}

// openSession открывает приложение, восстанавливает сессию сервера
// и собирает очередь и сессию синхронизации игрока
func openSession(ctx context.Context, opts *RootOptions) (*app, error) {
	a, err := openApp(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := a.initSession(ctx); err != nil {
		_ = a.local.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) initSession(ctx context.Context) error {
	session, err := a.auth.Current(ctx)
	if err != nil {
		return err
	}
	a.userID = session.UserID
	a.client.SetSession(session.UserID, session.AccessToken)

	if err := a.promptSecret(); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	signer, err := a.cfg.Signer()
	if err != nil {
		return err
	}

	recorder := security.NewRecorder(a.client, a.logger)
	limiter := ratelimit.New(a.cfg.RateLimit.MaxOperationsPerMinute, a.cfg.RateLimit.Window, a.clock, a.logger)
	limits := a.cfg.ValidationLimits()

	q, err := queue.New(ctx, a.userID, queue.Config{Limits: limits, MaxQueueSize: a.cfg.Queue.MaxSize},
		a.local, limiter, signer, recorder, a.clock, a.logger)
	if err != nil {
		return fmt.Errorf("failed to restore offline queue: %w", err)
	}

	syncSession, err := clientsync.NewSession(ctx, a.userID, clientsync.SessionConfig{
		Processor: clientsync.ProcessorConfig{
			Limits:                      limits,
			SuspiciousWindow:            a.cfg.Security.SuspiciousWindow,
			BatchSize:                   a.cfg.Queue.BatchSize,
			MaxRetryAttempts:            a.cfg.Queue.MaxRetryAttempts,
			SuspiciousActivityThreshold: a.cfg.Security.SuspiciousActivityThreshold,
		},
		SyncInterval:      a.cfg.Sync.Interval,
		ReconcileInterval: a.cfg.Sync.ReconcileInterval,
		AutoSave:          a.cfg.Sync.AutoSave,
	}, clientsync.SessionDeps{
		Queue:    q,
		Remote:   a.client,
		Local:    a.local,
		Signer:   signer,
		Recorder: recorder,
		Limiter:  limiter,
		Clock:    a.clock,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	a.queue = q
	a.session = syncSession
	return nil
}

// promptSecret запрашивает секрет подписи, если он не задан в конфиге или окружении
func (a *app) promptSecret() error {
	if !a.cfg.Security.SigningEnabled || a.cfg.Security.SigningSecret != "" {
		return nil
	}

	secret, err := a.io.ReadPassword("Signing secret: ")
	if err != nil {
		return fmt.Errorf("failed to read signing secret: %w", err)
	}
	a.cfg.Security.SigningSecret = secret
	return nil
}

// load загружает снапшот и проверяет связь с сервером
func (a *app) load(ctx context.Context) (*clientsync.LoadResult, error) {
	result, err := a.session.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.probe(ctx)
	return result, nil
}

// probe проверяет доступность сервера и переключает состояние связи
func (a *app) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := a.client.Health(ctx)
	if err != nil {
		a.logger.Debug("Server unreachable", "error", err)
	}
	a.session.SetOnline(ctx, err == nil)
	return err == nil
}

// Close завершает сессию (последняя отправка очереди, сохранение) и закрывает БД
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.session != nil {
		if err := a.session.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.local.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close local database: %w", err))
	}
	return errors.Join(errs...)
}

// withSession выполняет fn в открытой сессии и закрывает ее
func withSession(ctx context.Context, opts *RootOptions, fn func(*app) error) (err error) {
	a, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}()
	return fn(a)
}
