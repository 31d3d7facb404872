// Package queue реализует персистентную очередь отложенных мутаций игрока.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/minesync/internal/client/storage"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/crypto"
	"github.com/iudanet/minesync/internal/metrics"
	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/validation"
)

// DefaultMaxQueueSize размер очереди по умолчанию
const DefaultMaxQueueSize = 100

// Limiter допускает операции по ключу (пользователь, тип операции)
type Limiter interface {
	Allow(subject, action string) bool
}

// Config параметры очереди
type Config struct {
	Limits       validation.Limits
	MaxQueueSize int
}

// Draft операция до постановки в очередь
type Draft struct {
	Payload any // структура *Payload из models или json.RawMessage
	Type    models.OperationType
}

// EnqueueResult результат постановки в очередь
type EnqueueResult struct {
	ID      string
	Evicted int // сколько самых старых операций вытеснено
}

// persisted формат очереди в локальном хранилище
type persisted struct {
	Operations []models.Operation `json:"operations"`
	Seq        int64              `json:"seq"`
}

// Queue offline очередь одного пользователя.
// Каждое изменение целиком сохраняется в LocalStore под ключом offline_queue_<userId>.
type Queue struct {
	store    storage.LocalStore
	limiter  Limiter
	signer   crypto.Signer
	recorder SecurityRecorder
	clock    clock.Clock
	seq      *clock.Sequence
	logger   *slog.Logger
	userID   string
	key      string
	ops      []models.Operation
	cfg      Config
	mu       sync.Mutex
}

// New создает очередь и восстанавливает ее содержимое из store
func New(
	ctx context.Context,
	userID string,
	cfg Config,
	store storage.LocalStore,
	limiter Limiter,
	signer crypto.Signer,
	recorder SecurityRecorder,
	clk clock.Clock,
	logger *slog.Logger,
) (*Queue, error) {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if clk == nil {
		clk = clock.Real{}
	}

	q := &Queue{
		store:    store,
		limiter:  limiter,
		signer:   signer,
		recorder: recorder,
		clock:    clk,
		seq:      clock.NewSequence(),
		logger:   logger,
		userID:   userID,
		key:      storage.Key(storage.PrefixQueue, userID),
		cfg:      cfg,
	}

	if err := q.restore(ctx); err != nil {
		return nil, err
	}

	return q, nil
}

// restore читает сохраненную очередь
func (q *Queue) restore(ctx context.Context) error {
	data, err := q.store.Get(ctx, q.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read queue: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		// Испорченную очередь не восстанавливаем, но и не падаем
		q.logger.Error("Stored queue is corrupted, starting empty",
			"user_id", q.userID,
			"error", err)
		return nil
	}

	q.ops = p.Operations
	q.seq.Observe(p.Seq)
	for i := range q.ops {
		q.seq.Observe(q.ops[i].Seq)
	}

	q.logger.Debug("Queue restored", "user_id", q.userID, "pending", len(q.ops))
	return nil
}

// Enqueue проверяет, подписывает и добавляет операцию в конец очереди.
//
// Возвращает ErrRateLimited если лимит исчерпан и *ValidationError если тело
// операции не прошло доменную проверку. В обоих случаях операция не создается.
func (q *Queue) Enqueue(ctx context.Context, d Draft) (EnqueueResult, error) {
	if !d.Type.Valid() {
		return EnqueueResult{}, &ValidationError{Type: d.Type, Err: validation.ErrInvalidPayload}
	}

	if q.limiter != nil && !q.limiter.Allow(q.userID, string(d.Type)) {
		metrics.QueueRefused.WithLabelValues("rate_limited").Inc()
		q.logger.Warn("Operation rate limited",
			"user_id", q.userID,
			"type", d.Type,
			"severity", models.SeverityLow)
		if q.recorder != nil {
			q.recorder.Record(ctx, models.NewSecurityEvent(q.userID, models.EventRateLimitExceeded, models.SeverityLow, map[string]any{
				"operation_type": string(d.Type),
			}, q.clock.Now()))
		}
		return EnqueueResult{}, ErrRateLimited
	}

	payload, err := encodePayload(d.Payload)
	if err != nil {
		return EnqueueResult{}, &ValidationError{Type: d.Type, Err: fmt.Errorf("%w: %v", validation.ErrInvalidPayload, err)}
	}

	if err := validation.ValidateOperation(d.Type, payload, q.cfg.Limits); err != nil {
		metrics.QueueRefused.WithLabelValues("invalid").Inc()
		q.recordValidationFailure(ctx, d.Type, payload, err)
		return EnqueueResult{}, &ValidationError{Type: d.Type, Err: err}
	}

	now := q.clock.Now()
	op := models.Operation{
		ID:        uuid.NewString(),
		Type:      d.Type,
		UserID:    q.userID,
		Payload:   payload,
		Timestamp: now.UnixMilli(),
	}

	sig, err := q.signer.Sign(&op, q.userID)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("failed to sign operation: %w", err)
	}
	op.Signature = sig

	q.mu.Lock()
	defer q.mu.Unlock()

	op.Seq = q.seq.Next()

	prev := q.ops
	next := make([]models.Operation, 0, len(prev)+1)
	next = append(next, prev...)
	next = append(next, op)

	evicted := 0
	if over := len(next) - q.cfg.MaxQueueSize; over > 0 {
		evicted = over
		next = next[over:]
	}

	if err := q.persistLocked(ctx, next); err != nil {
		return EnqueueResult{}, err
	}
	q.ops = next

	metrics.QueueEnqueued.WithLabelValues(string(op.Type)).Inc()
	if evicted > 0 {
		metrics.QueueEvicted.Add(float64(evicted))
		q.logger.Warn("Queue full, oldest operations evicted",
			"user_id", q.userID,
			"evicted", evicted,
			"max_queue_size", q.cfg.MaxQueueSize)
	}

	q.logger.Debug("Operation enqueued",
		"user_id", q.userID,
		"op_id", op.ID,
		"type", op.Type,
		"seq", op.Seq)

	return EnqueueResult{ID: op.ID, Evicted: evicted}, nil
}

// recordValidationFailure пишет событие безопасности об отклоненной операции
func (q *Queue) recordValidationFailure(ctx context.Context, opType models.OperationType, payload json.RawMessage, err error) {
	eventType := models.EventInvalidPayload
	severity := models.SeverityMedium
	if errors.Is(err, validation.ErrBalanceChangeTooLarge) {
		eventType = models.EventSuspiciousBalance
		severity = models.SeverityHigh
	}

	q.logger.Warn("Operation rejected by validation",
		"user_id", q.userID,
		"type", opType,
		"error", err)

	if q.recorder == nil {
		return
	}

	q.recorder.Record(ctx, models.NewSecurityEvent(q.userID, eventType, severity, map[string]any{
		"operation_type": string(opType),
		"payload":        string(payload),
		"error":          err.Error(),
	}, q.clock.Now()))
}

// Batch возвращает до n операций с наименьшим seq
func (q *Queue) Batch(n int) []models.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || n > len(q.ops) {
		n = len(q.ops)
	}

	out := make([]models.Operation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, q.ops[i].Clone())
	}
	return out
}

// Remove удаляет операцию. Отсутствие операции не ошибка.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return nil
	}

	next := make([]models.Operation, 0, len(q.ops)-1)
	next = append(next, q.ops[:idx]...)
	next = append(next, q.ops[idx+1:]...)

	if err := q.persistLocked(ctx, next); err != nil {
		return err
	}
	q.ops = next
	return nil
}

// MarkFailed увеличивает RetryCount операции и возвращает новое значение.
// Позиция в очереди (seq) не меняется.
func (q *Queue) MarkFailed(ctx context.Context, id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return 0, ErrOperationNotFound
	}

	next := make([]models.Operation, len(q.ops))
	copy(next, q.ops)
	next[idx].RetryCount++

	if err := q.persistLocked(ctx, next); err != nil {
		return 0, err
	}
	q.ops = next
	return next[idx].RetryCount, nil
}

// Pending возвращает копию всех ожидающих операций в порядке seq
func (q *Queue) Pending() []models.Operation {
	return q.Batch(0)
}

// Len возвращает количество ожидающих операций
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Clear удаляет все операции
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.persistLocked(ctx, nil); err != nil {
		return err
	}
	q.ops = nil
	return nil
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.ops {
		if q.ops[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked сохраняет ops целиком. Вызывается под q.mu.
func (q *Queue) persistLocked(ctx context.Context, ops []models.Operation) error {
	if ops == nil {
		ops = []models.Operation{}
	}

	data, err := json.Marshal(persisted{Operations: ops, Seq: q.seq.Current()})
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	if err := q.store.Set(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	return nil
}

func encodePayload(p any) (json.RawMessage, error) {
	switch v := p.(type) {
	case nil:
		return nil, errors.New("payload is nil")
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}
