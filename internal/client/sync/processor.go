package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/crypto"
	"github.com/iudanet/minesync/internal/metrics"
	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/validation"
)

// Значения по умолчанию процессора
const (
	DefaultBatchSize                   = 10
	DefaultMaxRetryAttempts            = 3
	DefaultSuspiciousActivityThreshold = 5
	DefaultSuspiciousWindow            = time.Hour
)

// ProcessorConfig параметры обработки очереди
type ProcessorConfig struct {
	Limits                      validation.Limits
	SuspiciousWindow            time.Duration
	BatchSize                   int
	MaxRetryAttempts            int
	SuspiciousActivityThreshold int
}

// OperationQueue очередь, которую разбирает процессор
type OperationQueue interface {
	Batch(n int) []models.Operation
	Remove(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) (int, error)
	Len() int
}

// DrainResult итог одного прохода
type DrainResult struct {
	Succeeded int
	Retried   int
	Dropped   int // исчерпали попытки
	Rejected  int // отклонены удаленным хранилищем без повтора
	Blocked   int // заблокированы из-за подозрительной активности
	Invalid   int // не прошли проверку подписи
	Remaining int
}

// Processed возвращает количество операций, покинувших очередь
func (r *DrainResult) Processed() int {
	return r.Succeeded + r.Dropped + r.Rejected + r.Blocked + r.Invalid
}

// Processor разбирает offline очередь пользователя в удаленное хранилище
type Processor struct {
	queue    OperationQueue
	remote   remote.Store
	signer   crypto.Signer
	recorder queue.SecurityRecorder
	state    *StateTracker
	clock    clock.Clock
	logger   *slog.Logger
	userID   string
	cfg      ProcessorConfig
}

// NewProcessor создает процессор очереди
func NewProcessor(
	userID string,
	cfg ProcessorConfig,
	q OperationQueue,
	store remote.Store,
	signer crypto.Signer,
	recorder queue.SecurityRecorder,
	state *StateTracker,
	clk clock.Clock,
	logger *slog.Logger,
) *Processor {
	if cfg.Limits.MaxBalanceChange <= 0 {
		cfg.Limits = validation.DefaultLimits()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if cfg.SuspiciousActivityThreshold <= 0 {
		cfg.SuspiciousActivityThreshold = DefaultSuspiciousActivityThreshold
	}
	if cfg.SuspiciousWindow <= 0 {
		cfg.SuspiciousWindow = DefaultSuspiciousWindow
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &Processor{
		queue:    q,
		remote:   store,
		signer:   signer,
		recorder: recorder,
		state:    state,
		clock:    clk,
		logger:   logger,
		userID:   userID,
		cfg:      cfg,
	}
}

// Drain обрабатывает до BatchSize операций с наименьшим seq.
// Операция, оставленная для повтора, останавливает проход: более поздние
// операции не обгоняют ее.
//
// Возвращает ErrOffline без связи и ErrSyncInProgress если проход уже идет.
// Если журнал безопасности недоступен или сессия не авторизована, проход
// прерывается без расхода попыток.
func (p *Processor) Drain(ctx context.Context) (*DrainResult, error) {
	if !p.state.IsOnline() {
		return nil, ErrOffline
	}
	if !p.state.beginSync() {
		return nil, ErrSyncInProgress
	}
	defer p.state.endSync()

	start := p.clock.Now()
	defer func() {
		metrics.DrainDuration.Observe(p.clock.Now().Sub(start).Seconds())
	}()

	result := &DrainResult{}
	batch := p.queue.Batch(p.cfg.BatchSize)

	if len(batch) > 0 {
		blocked, err := p.suspicious(ctx)
		if err != nil {
			result.Remaining = p.queue.Len()
			return result, fmt.Errorf("failed to check suspicious activity: %w", err)
		}

		p.logger.Info("Processing offline queue",
			"user_id", p.userID,
			"batch", len(batch),
			"blocked", blocked)

		for i := range batch {
			if err := ctx.Err(); err != nil {
				result.Remaining = p.queue.Len()
				return result, err
			}

			kept, err := p.processOne(ctx, &batch[i], blocked, result)
			if err != nil {
				result.Remaining = p.queue.Len()
				return result, err
			}
			if kept {
				// Операция ждет повтора в голове очереди, следующие применяются только после нее
				break
			}
		}
	}

	result.Remaining = p.queue.Len()

	if err := p.state.MarkSynced(ctx, p.clock.Now().UnixMilli()); err != nil {
		p.logger.Warn("Failed to persist sync time", "user_id", p.userID, "error", err)
	}

	if len(batch) > 0 {
		p.logger.Info("Offline queue processed",
			"user_id", p.userID,
			"succeeded", result.Succeeded,
			"retried", result.Retried,
			"dropped", result.Dropped,
			"rejected", result.Rejected,
			"blocked", result.Blocked,
			"invalid", result.Invalid,
			"remaining", result.Remaining)
	}

	return result, nil
}

// suspicious сообщает, превышен ли порог событий high/critical за окно
func (p *Processor) suspicious(ctx context.Context) (bool, error) {
	since := p.clock.Now().Add(-p.cfg.SuspiciousWindow)

	events, err := p.remote.ListSecurityEvents(ctx, p.userID, since, models.SeverityHigh)
	if err != nil {
		return false, err
	}

	return len(events) >= p.cfg.SuspiciousActivityThreshold, nil
}

// processOne обрабатывает одну операцию.
// kept означает, что операция осталась в очереди для повтора.
// Ошибка возвращается только когда весь проход нужно прервать.
func (p *Processor) processOne(ctx context.Context, op *models.Operation, blocked bool, result *DrainResult) (kept bool, err error) {
	log := p.logger.With("user_id", p.userID, "op_id", op.ID, "type", op.Type)

	if op.UserID != p.userID || !p.signer.Verify(op, p.userID, op.Signature) {
		invalid := fmt.Errorf("%w: %s %s", ErrInvalidSignature, op.Type, op.ID)
		log.Warn("Discarding operation", "error", invalid, "signature", op.Signature.Kind.String())
		p.record(ctx, models.EventInvalidSignature, models.SeverityHigh, op, map[string]any{
			"signature_kind": op.Signature.Kind.String(),
		})
		p.syncError(ctx, invalid)
		result.Invalid++
		p.count(op, metrics.ResultInvalid)
		return false, p.remove(ctx, op)
	}

	if blocked {
		log.Warn("Operation blocked due to suspicious activity")
		p.record(ctx, models.EventOperationBlocked, models.SeverityMedium, op, map[string]any{
			"threshold": p.cfg.SuspiciousActivityThreshold,
		})
		result.Blocked++
		p.count(op, metrics.ResultBlocked)
		return false, p.remove(ctx, op)
	}

	err = p.dispatch(ctx, op)
	switch {
	case err == nil:
		log.Debug("Operation applied")
		result.Succeeded++
		p.count(op, metrics.ResultSuccess)
		return false, p.remove(ctx, op)

	case errors.Is(err, remote.ErrUnauthorized), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Операция остается в очереди, попытка не засчитывается
		return true, fmt.Errorf("operation %s: %w", op.ID, err)

	case errors.Is(err, ErrBalanceDivergence):
		return false, p.reject(ctx, op, err, models.EventBalanceDivergence, models.SeverityHigh, result)

	case errors.Is(err, remote.ErrRejected):
		return false, p.reject(ctx, op, err, models.EventOperationRejected, models.SeverityMedium, result)

	default:
		// Недоступность, ErrNotFound (например, стейк еще не создан
		// предыдущей операцией) и прочие ошибки лечатся повтором
		return p.retry(ctx, op, err, result)
	}
}

// reject удаляет операцию, отклоненную по бизнес-правилам, без повтора
func (p *Processor) reject(ctx context.Context, op *models.Operation, cause error, eventType string, severity models.Severity, result *DrainResult) error {
	p.logger.Warn("Operation rejected", "user_id", p.userID, "op_id", op.ID, "type", op.Type, "error", cause)
	p.record(ctx, eventType, severity, op, map[string]any{"error": cause.Error()})
	p.syncError(ctx, fmt.Errorf("%s %s rejected: %w", op.Type, op.ID, cause))

	result.Rejected++
	p.count(op, metrics.ResultRejected)
	return p.remove(ctx, op)
}

// retry засчитывает неудачную попытку и удаляет операцию по исчерпании лимита.
// kept означает, что операция осталась в очереди.
func (p *Processor) retry(ctx context.Context, op *models.Operation, cause error, result *DrainResult) (kept bool, err error) {
	count, err := p.queue.MarkFailed(ctx, op.ID)
	if err != nil {
		return true, fmt.Errorf("failed to mark operation %s: %w", op.ID, err)
	}

	if count < p.cfg.MaxRetryAttempts {
		p.logger.Info("Operation will be retried",
			"user_id", p.userID,
			"op_id", op.ID,
			"retry_count", count,
			"error", cause)
		result.Retried++
		p.count(op, metrics.ResultRetry)
		return true, nil
	}

	failure := fmt.Errorf("%w: %s %s after %d attempts: %v", ErrPermanentFailure, op.Type, op.ID, count, cause)
	p.logger.Error("Operation dropped", "user_id", p.userID, "op_id", op.ID, "error", failure)

	p.syncError(ctx, failure)
	p.record(ctx, models.EventPermanentSyncFailure, models.SeverityMedium, op, map[string]any{
		"attempts": count,
		"error":    cause.Error(),
	})

	result.Dropped++
	p.count(op, metrics.ResultDropped)
	return false, p.remove(ctx, op)
}

func (p *Processor) syncError(ctx context.Context, failure error) {
	if err := p.state.AddSyncError(ctx, failure.Error()); err != nil {
		p.logger.Warn("Failed to persist sync error", "user_id", p.userID, "error", err)
	}
}

func (p *Processor) remove(ctx context.Context, op *models.Operation) error {
	if err := p.queue.Remove(ctx, op.ID); err != nil {
		return fmt.Errorf("failed to remove operation %s: %w", op.ID, err)
	}
	return nil
}

func (p *Processor) count(op *models.Operation, result string) {
	metrics.OperationsProcessed.WithLabelValues(string(op.Type), result).Inc()
}

func (p *Processor) record(ctx context.Context, eventType string, severity models.Severity, op *models.Operation, details map[string]any) {
	if p.recorder == nil {
		return
	}

	if details == nil {
		details = map[string]any{}
	}
	details["operation_id"] = op.ID
	details["operation_type"] = string(op.Type)
	details["retry_count"] = op.RetryCount

	p.recorder.Record(ctx, models.NewSecurityEvent(p.userID, eventType, severity, details, p.clock.Now()))
}
