package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/models"
)

// Действия хоста над экономикой игрока. Каждое действие ставит операцию в
// очередь и только после этого применяется к текущему снапшоту, поэтому
// отклоненная операция не меняет локальное состояние.

// Deposit изменяет баланс на delta. Положительная delta увеличивает и total earned.
func (s *Session) Deposit(ctx context.Context, delta float64) (queue.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return queue.EnqueueResult{}, ErrNotLoaded
	}

	next := s.snapshot.Clone()
	next.Balance += delta
	if delta > 0 {
		next.TotalEarned += delta
	}
	if next.Balance < 0 {
		return queue.EnqueueResult{}, fmt.Errorf("%w: balance %.2f, delta %.2f", ErrInsufficientBalance, s.snapshot.Balance, delta)
	}

	return s.applyLocked(ctx, next, queue.Draft{
		Type: models.OpUserDataUpdate,
		Payload: models.UserDataUpdatePayload{
			Balance:     next.Balance,
			TotalEarned: next.TotalEarned,
			Delta:       delta,
		},
	})
}

// CreateStake списывает amount с баланса и открывает стейк.
// Удаленное хранилище списывает сумму при вставке стейка.
func (s *Session) CreateStake(ctx context.Context, amount, rate float64, lockDays int) (string, queue.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return "", queue.EnqueueResult{}, ErrNotLoaded
	}
	if amount > s.snapshot.Balance {
		return "", queue.EnqueueResult{}, fmt.Errorf("%w: balance %.2f, stake %.2f", ErrInsufficientBalance, s.snapshot.Balance, amount)
	}

	stakeID := uuid.NewString()
	next := s.snapshot.Clone()
	next.Balance -= amount
	next.Stakes = append(next.Stakes, models.Stake{
		ID:        stakeID,
		Status:    models.StakeActive,
		Amount:    amount,
		Rate:      rate,
		StartedAt: s.clock.Now().UnixMilli(),
		LockDays:  lockDays,
	})

	res, err := s.applyLocked(ctx, next, queue.Draft{
		Type: models.OpStakeCreate,
		Payload: models.StakeCreatePayload{
			StakeID:  stakeID,
			Amount:   amount,
			Rate:     rate,
			LockDays: lockDays,
		},
	})
	if err != nil {
		return "", res, err
	}
	return stakeID, res, nil
}

// ClaimReward переводит amount со стейка на баланс
func (s *Session) ClaimReward(ctx context.Context, stakeID string, amount float64) (queue.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return queue.EnqueueResult{}, ErrNotLoaded
	}

	next := s.snapshot.Clone()
	idx := next.FindStake(stakeID)
	if idx < 0 {
		return queue.EnqueueResult{}, fmt.Errorf("%w: %s", ErrStakeNotFound, stakeID)
	}

	stake := &next.Stakes[idx]
	if stake.Status != models.StakeActive {
		return queue.EnqueueResult{}, fmt.Errorf("stake %s is %s", stakeID, stake.Status)
	}

	now := s.clock.Now().UnixMilli()
	stake.ClaimedTotal += amount
	stake.AccumulatedRewards = max(0, stake.AccumulatedRewards-amount)
	stake.LastClaimAt = now
	next.Balance += amount
	next.TotalEarned += amount

	return s.applyLocked(ctx, next, queue.Draft{
		Type:    models.OpRewardClaim,
		Payload: models.RewardClaimPayload{StakeID: stakeID, Amount: amount},
	})
}

// UpdateStake меняет накопленные награды и/или статус стейка
func (s *Session) UpdateStake(ctx context.Context, stakeID string, rewards *float64, status models.StakeStatus) (queue.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return queue.EnqueueResult{}, ErrNotLoaded
	}

	next := s.snapshot.Clone()
	idx := next.FindStake(stakeID)
	if idx < 0 {
		return queue.EnqueueResult{}, fmt.Errorf("%w: %s", ErrStakeNotFound, stakeID)
	}

	if rewards != nil {
		next.Stakes[idx].AccumulatedRewards = *rewards
	}
	if status != "" {
		next.Stakes[idx].Status = status
	}

	return s.applyLocked(ctx, next, queue.Draft{
		Type: models.OpStakeUpdate,
		Payload: models.StakeUpdatePayload{
			StakeID:            stakeID,
			AccumulatedRewards: rewards,
			Status:             status,
		},
	})
}

// SetSynergy устанавливает множитель синергии name
func (s *Session) SetSynergy(ctx context.Context, name string, multiplier float64) (queue.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return queue.EnqueueResult{}, ErrNotLoaded
	}

	next := s.snapshot.Clone()
	if next.Synergy == nil {
		next.Synergy = models.Synergy{}
	}
	next.Synergy[name] = multiplier

	return s.applyLocked(ctx, next, queue.Draft{
		Type:    models.OpSynergyUpdate,
		Payload: models.SynergyUpdatePayload{Synergy: next.Synergy},
	})
}

// applyLocked ставит операцию в очередь и при успехе фиксирует next.
// Вызывается под s.mu.
func (s *Session) applyLocked(ctx context.Context, next models.Snapshot, d queue.Draft) (queue.EnqueueResult, error) {
	res, err := s.queue.Enqueue(ctx, d)
	if err != nil {
		return res, err
	}

	if err := s.commitLocked(ctx, next); err != nil {
		return res, fmt.Errorf("operation %s queued but snapshot not cached: %w", res.ID, err)
	}
	return res, nil
}
