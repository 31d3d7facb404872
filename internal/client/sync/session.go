package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/client/storage"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/crypto"
	"github.com/iudanet/minesync/internal/models"
)

// Интервалы таймеров по умолчанию
const (
	DefaultSyncInterval        = 30 * time.Second
	DefaultReconcileInterval   = 5 * time.Minute
	DefaultRateLimitGCInterval = time.Minute
)

// SessionConfig параметры сессии
type SessionConfig struct {
	Processor           ProcessorConfig
	SyncInterval        time.Duration
	ReconcileInterval   time.Duration
	RateLimitGCInterval time.Duration
	AutoSave            bool
}

// RateLimitGC периодически чистит окна rate limiter
type RateLimitGC interface {
	Run(ctx context.Context, interval time.Duration)
}

// SessionDeps зависимости сессии
type SessionDeps struct {
	Queue    *queue.Queue
	Remote   remote.Store
	Local    storage.LocalStore
	Signer   crypto.Signer
	Recorder queue.SecurityRecorder
	Limiter  RateLimitGC // может быть nil
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Session связывает очередь, процессор, загрузчик и сверку для одного игрока
// и владеет их таймерами
type Session struct {
	queue      *queue.Queue
	remote     remote.Store
	cache      *SnapshotCache
	state      *StateTracker
	processor  *Processor
	loader     *Loader
	reconciler *Reconciler
	limiter    RateLimitGC
	clock      clock.Clock
	logger     *slog.Logger
	cancel     context.CancelFunc
	userID     string
	snapshot   models.Snapshot
	cfg        SessionConfig
	wg         sync.WaitGroup
	mu         sync.Mutex
	loaded     bool
	closed     bool
}

// NewSession собирает сессию пользователя
func NewSession(ctx context.Context, userID string, cfg SessionConfig, deps SessionDeps) (*Session, error) {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultReconcileInterval
	}
	if cfg.RateLimitGCInterval <= 0 {
		cfg.RateLimitGCInterval = DefaultRateLimitGCInterval
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	state, err := NewStateTracker(ctx, userID, deps.Local, cfg.AutoSave, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init sync state: %w", err)
	}

	cache := NewSnapshotCache(userID, deps.Local, deps.Logger)
	processor := NewProcessor(userID, cfg.Processor, deps.Queue, deps.Remote, deps.Signer, deps.Recorder, state, deps.Clock, deps.Logger)

	return &Session{
		queue:      deps.Queue,
		remote:     deps.Remote,
		cache:      cache,
		state:      state,
		processor:  processor,
		loader:     NewLoader(userID, cache, deps.Remote, deps.Recorder, deps.Clock, deps.Logger),
		reconciler: NewReconciler(userID, processor.cfg.Limits.MaxBalanceChange, deps.Remote, cache, deps.Recorder, deps.Clock, deps.Logger),
		limiter:    deps.Limiter,
		clock:      deps.Clock,
		logger:     deps.Logger,
		userID:     userID,
		cfg:        cfg,
	}, nil
}

// UserID возвращает владельца сессии
func (s *Session) UserID() string {
	return s.userID
}

// Load загружает снапшот через Loader и делает его текущим
func (s *Session) Load(ctx context.Context) (*LoadResult, error) {
	result, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = result.Snapshot.Clone()
	s.loaded = true
	s.mu.Unlock()

	return result, nil
}

// Snapshot возвращает копию текущего снапшота
func (s *Session) Snapshot() (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return models.Snapshot{}, ErrNotLoaded
	}
	return s.snapshot.Clone(), nil
}

// Mutate применяет fn к текущему снапшоту (тик симуляции), обновляет
// LastUpdate и сохраняет результат в локальный кэш
func (s *Session) Mutate(ctx context.Context, fn func(*models.Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}

	next := s.snapshot.Clone()
	fn(&next)
	return s.commitLocked(ctx, next)
}

// commitLocked делает next текущим снапшотом. Вызывается под s.mu.
func (s *Session) commitLocked(ctx context.Context, next models.Snapshot) error {
	next.LastUpdate = s.clock.Now().UnixMilli()
	if err := s.cache.Save(ctx, next); err != nil {
		return err
	}
	s.snapshot = next
	return nil
}

// SetOnline меняет состояние связи. При восстановлении связи запускает
// обработку очереди в фоне.
func (s *Session) SetOnline(ctx context.Context, online bool) {
	restored := s.state.SetOnline(online)
	s.logger.Info("Connectivity changed", "user_id", s.userID, "online", online)

	if restored {
		s.goDrain(ctx)
	}
}

// Flush обрабатывает очередь немедленно
func (s *Session) Flush(ctx context.Context) (*DrainResult, error) {
	return s.processor.Drain(ctx)
}

// Reconcile сверяет текущий снапшот с удаленным хранилищем
func (s *Session) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}

	next := s.snapshot.Clone()
	result, err := s.reconciler.Reconcile(ctx, &next)
	if err != nil {
		return result, err
	}
	if len(result.Corrected) > 0 {
		s.snapshot = next
	}
	return result, nil
}

// Save сохраняет текущий снапшот локально и, если есть связь, удаленно.
// Ошибка удаленной записи только логируется.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	snap := s.snapshot.Clone()
	loaded := s.loaded
	s.mu.Unlock()

	if !loaded {
		return ErrNotLoaded
	}

	if err := s.cache.Save(ctx, snap); err != nil {
		return err
	}

	if !s.state.IsOnline() {
		return nil
	}

	if err := s.remote.UpsertGameData(ctx, s.userID, snap); err != nil {
		s.logger.Warn("Failed to save snapshot remotely", "user_id", s.userID, "error", err)
	}
	return nil
}

// State возвращает состояние синхронизации для отображения
func (s *Session) State() models.SyncState {
	st := s.state.Snapshot()
	st.PendingOperations = s.queue.Pending()
	return st
}

// SetAutoSave включает или выключает автосохранение
func (s *Session) SetAutoSave(ctx context.Context, enabled bool) error {
	return s.state.SetAutoSave(ctx, enabled)
}

// ClearErrors очищает ошибки синхронизации
func (s *Session) ClearErrors(ctx context.Context) error {
	return s.state.ClearErrors(ctx)
}

// Start запускает таймеры синхронизации, сверки и очистки rate limiter.
// Таймеры останавливаются в Close.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil || s.closed {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.loop(ctx, s.cfg.SyncInterval, s.syncTick)
	go s.loop(ctx, s.cfg.ReconcileInterval, s.reconcileTick)

	if s.limiter != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.limiter.Run(ctx, s.cfg.RateLimitGCInterval)
		}()
	}

	s.logger.Info("Session started",
		"user_id", s.userID,
		"sync_interval", s.cfg.SyncInterval,
		"reconcile_interval", s.cfg.ReconcileInterval)
}

// Close останавливает таймеры, дожидается текущих проходов, выполняет
// последнюю обработку очереди и сохраняет снапшот
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	if s.state.IsOnline() && s.queue.Len() > 0 {
		if _, err := s.processor.Drain(ctx); err != nil {
			s.logger.Warn("Final flush failed", "user_id", s.userID, "error", err)
		}
	}

	if err := s.Save(ctx); err != nil && !errors.Is(err, ErrNotLoaded) {
		return fmt.Errorf("failed to save snapshot on close: %w", err)
	}

	s.logger.Info("Session closed", "user_id", s.userID, "pending", s.queue.Len())
	return nil
}

func (s *Session) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// syncTick периодическая обработка очереди и автосохранение
func (s *Session) syncTick(ctx context.Context) {
	if !s.state.IsOnline() {
		return
	}

	s.drain(ctx)

	if s.state.AutoSaveEnabled() {
		if err := s.Save(ctx); err != nil && !errors.Is(err, ErrNotLoaded) {
			s.logger.Warn("Auto-save failed", "user_id", s.userID, "error", err)
		}
	}
}

func (s *Session) reconcileTick(ctx context.Context) {
	if !s.state.IsOnline() {
		return
	}

	if _, err := s.Reconcile(ctx); err != nil && !errors.Is(err, ErrNotLoaded) {
		s.logger.Warn("Reconciliation failed", "user_id", s.userID, "error", err)
	}
}

// goDrain запускает обработку очереди в фоне; Close ее дожидается
func (s *Session) goDrain(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.drain(context.WithoutCancel(ctx))
	}()
}

func (s *Session) drain(ctx context.Context) {
	_, err := s.processor.Drain(ctx)
	switch {
	case err == nil, errors.Is(err, ErrOffline), errors.Is(err, ErrSyncInProgress):
	default:
		s.logger.Warn("Queue drain failed", "user_id", s.userID, "error", err)
	}
}
