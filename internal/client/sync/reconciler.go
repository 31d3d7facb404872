package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/metrics"
	"github.com/iudanet/minesync/internal/models"
)

// Поля, которые исправляет сверка
const (
	FieldBalance     = "balance"
	FieldTotalEarned = "total_earned"
)

// ReconcileResult итог сверки
type ReconcileResult struct {
	Corrected []string // исправленные поля
	Skipped   bool     // удаленных данных нет или нет связи
}

// Reconciler сверяет числовые поля локального снапшота с авторитетными
// и перезаписывает локальные при расхождении больше MaxBalanceChange
type Reconciler struct {
	remote    remote.Store
	cache     *SnapshotCache
	recorder  queue.SecurityRecorder
	clock     clock.Clock
	logger    *slog.Logger
	userID    string
	tolerance float64
}

// NewReconciler создает сверку. tolerance обычно равен MaxBalanceChange.
func NewReconciler(userID string, tolerance float64, store remote.Store, cache *SnapshotCache, recorder queue.SecurityRecorder, clk clock.Clock, logger *slog.Logger) *Reconciler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Reconciler{
		remote:    store,
		cache:     cache,
		recorder:  recorder,
		clock:     clk,
		logger:    logger,
		userID:    userID,
		tolerance: tolerance,
	}
}

// Reconcile сверяет snap с удаленным хранилищем и исправляет его на месте.
// Исправленный снапшот сохраняется в кэш.
func (r *Reconciler) Reconcile(ctx context.Context, snap *models.Snapshot) (*ReconcileResult, error) {
	user, err := r.remote.GetUser(ctx, r.userID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) || remote.IsRetryable(err) {
			r.logger.Debug("Reconciliation skipped", "user_id", r.userID, "reason", err)
			return &ReconcileResult{Skipped: true}, nil
		}
		return nil, fmt.Errorf("failed to read remote user: %w", err)
	}

	result := &ReconcileResult{}

	if r.diverges(snap.Balance, user.Balance) {
		r.report(ctx, models.EventSuspiciousBalance, FieldBalance, snap.Balance, user.Balance)
		snap.Balance = user.Balance
		result.Corrected = append(result.Corrected, FieldBalance)
	}

	if r.diverges(snap.TotalEarned, user.TotalEarned) {
		r.report(ctx, models.EventDataDiscrepancy, FieldTotalEarned, snap.TotalEarned, user.TotalEarned)
		snap.TotalEarned = user.TotalEarned
		result.Corrected = append(result.Corrected, FieldTotalEarned)
	}

	if len(result.Corrected) == 0 {
		return result, nil
	}

	if err := r.cache.Save(ctx, *snap); err != nil {
		return result, fmt.Errorf("failed to save reconciled snapshot: %w", err)
	}

	return result, nil
}

func (r *Reconciler) diverges(local, remoteValue float64) bool {
	return math.Abs(remoteValue-local) > r.tolerance
}

func (r *Reconciler) report(ctx context.Context, eventType, field string, local, remoteValue float64) {
	metrics.ReconcileCorrections.WithLabelValues(field).Inc()
	r.logger.Warn("Local value diverged from remote, overwriting",
		"user_id", r.userID,
		"field", field,
		"local", local,
		"remote", remoteValue)

	if r.recorder == nil {
		return
	}

	r.recorder.Record(ctx, models.NewSecurityEvent(r.userID, eventType, models.SeverityHigh, map[string]any{
		"field":        field,
		"local_value":  local,
		"remote_value": remoteValue,
	}, r.clock.Now()))
}
