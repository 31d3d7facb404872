package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/client/storage"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/metrics"
	"github.com/iudanet/minesync/internal/models"
)

// Source источник загруженного снапшота
type Source string

// Возможные источники
const (
	SourceLocal   Source = "local"
	SourceRemote  Source = "remote"
	SourceDefault Source = "default"
)

// LoadResult итог загрузки
type LoadResult struct {
	Source   Source
	Snapshot models.Snapshot
	// IntegrityViolation локальный снапшот не прошел проверку хеша и был сброшен
	IntegrityViolation bool
}

// Loader читает снапшот одновременно из локального кэша и удаленного хранилища
// и выбирает более свежий целиком (last-write-wins по времени обновления).
type Loader struct {
	cache    *SnapshotCache
	remote   remote.Store
	recorder queue.SecurityRecorder
	clock    clock.Clock
	logger   *slog.Logger
	userID   string
}

// NewLoader создает загрузчик
func NewLoader(userID string, cache *SnapshotCache, store remote.Store, recorder queue.SecurityRecorder, clk clock.Clock, logger *slog.Logger) *Loader {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Loader{
		cache:    cache,
		remote:   store,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
		userID:   userID,
	}
}

// Load возвращает актуальный снапшот и записывает его в локальный кэш.
//
// Оба есть: побеждает строго более поздний, при равенстве удаленный.
// Есть один: он. Нет ни одного: DefaultSnapshot. Ошибки удаленного хранилища
// (offline) трактуются как отсутствие удаленного снапшота.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	var (
		local       *models.Snapshot
		remoteSnap  *models.RemoteSnapshot
		integrityEr *IntegrityError
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := l.cache.Load(gctx)
		switch {
		case err == nil:
			local = snap
		case errors.Is(err, storage.ErrNotFound):
		case errors.As(err, &integrityEr):
		default:
			l.logger.Warn("Failed to read cached snapshot", "user_id", l.userID, "error", err)
		}
		return nil
	})

	g.Go(func() error {
		snap, err := l.remote.GetGameData(gctx, l.userID)
		switch {
		case err == nil:
			remoteSnap = snap
		case errors.Is(err, remote.ErrNotFound):
		default:
			l.logger.Warn("Remote snapshot unavailable, using local", "user_id", l.userID, "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &LoadResult{}

	if integrityEr != nil {
		result.IntegrityViolation = true
		l.handleIntegrityViolation(ctx, integrityEr)
	}

	switch {
	case local != nil && remoteSnap != nil:
		if local.LastUpdate > remoteSnap.LastUpdated {
			result.Source, result.Snapshot = SourceLocal, *local
		} else {
			result.Source, result.Snapshot = SourceRemote, fromRemote(remoteSnap)
		}
	case remoteSnap != nil:
		result.Source, result.Snapshot = SourceRemote, fromRemote(remoteSnap)
	case local != nil:
		result.Source, result.Snapshot = SourceLocal, *local
	default:
		result.Source, result.Snapshot = SourceDefault, models.DefaultSnapshot()
	}

	normalize(&result.Snapshot)
	metrics.SnapshotLoads.WithLabelValues(string(result.Source)).Inc()

	if err := l.cache.Save(ctx, result.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to write back snapshot: %w", err)
	}

	l.logger.Info("Snapshot loaded",
		"user_id", l.userID,
		"source", result.Source,
		"last_update", result.Snapshot.LastUpdate,
		"balance", result.Snapshot.Balance)

	return result, nil
}

// handleIntegrityViolation сбрасывает кэш в безопасное состояние и пишет событие
func (l *Loader) handleIntegrityViolation(ctx context.Context, ierr *IntegrityError) {
	metrics.IntegrityViolations.Inc()
	l.logger.Error("Cached snapshot failed integrity check, resetting",
		"user_id", l.userID,
		"expected", ierr.Expected,
		"actual", ierr.Actual)

	if err := l.cache.Save(ctx, models.DefaultSnapshot()); err != nil {
		l.logger.Warn("Failed to reset cached snapshot", "user_id", l.userID, "error", err)
	}

	if l.recorder == nil {
		return
	}

	l.recorder.Record(ctx, models.NewSecurityEvent(l.userID, models.EventIntegrityViolation, models.SeverityHigh, map[string]any{
		"expected_hash": ierr.Expected,
		"actual_hash":   ierr.Actual,
	}, l.clock.Now()))
}

// fromRemote берет снапшот удаленного хранилища с отметкой времени сервера
func fromRemote(r *models.RemoteSnapshot) models.Snapshot {
	snap := r.Snapshot.Clone()
	if r.LastUpdated > snap.LastUpdate {
		snap.LastUpdate = r.LastUpdated
	}
	return snap
}

// normalize заполняет nil коллекции пустыми
func normalize(s *models.Snapshot) {
	if s.Synergy == nil {
		s.Synergy = models.Synergy{}
	}
	if s.Stakes == nil {
		s.Stakes = []models.Stake{}
	}
}
