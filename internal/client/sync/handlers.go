package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/models"
)

// dispatch применяет операцию к удаленному хранилищу обработчиком ее типа
func (p *Processor) dispatch(ctx context.Context, op *models.Operation) error {
	switch op.Type {
	case models.OpStakeCreate:
		return p.handleStakeCreate(ctx, op)
	case models.OpStakeUpdate:
		return p.handleStakeUpdate(ctx, op)
	case models.OpRewardClaim:
		return p.handleRewardClaim(ctx, op)
	case models.OpUserDataUpdate:
		return p.handleUserDataUpdate(ctx, op)
	case models.OpSynergyUpdate:
		return p.handleSynergyUpdate(ctx, op)
	default:
		return fmt.Errorf("%w: unknown operation type %q", remote.ErrRejected, op.Type)
	}
}

func (p *Processor) handleStakeCreate(ctx context.Context, op *models.Operation) error {
	var payload models.StakeCreatePayload
	if err := decodePayload(op, &payload); err != nil {
		return err
	}

	stake := models.Stake{
		ID:        payload.StakeID,
		Status:    models.StakeActive,
		Amount:    payload.Amount,
		Rate:      payload.Rate,
		StartedAt: op.Timestamp,
		LockDays:  payload.LockDays,
	}

	return p.remote.InsertStake(ctx, p.userID, stake, op.ID)
}

func (p *Processor) handleStakeUpdate(ctx context.Context, op *models.Operation) error {
	var payload models.StakeUpdatePayload
	if err := decodePayload(op, &payload); err != nil {
		return err
	}

	return p.remote.UpdateStake(ctx, p.userID, payload, op.ID)
}

func (p *Processor) handleRewardClaim(ctx context.Context, op *models.Operation) error {
	var payload models.RewardClaimPayload
	if err := decodePayload(op, &payload); err != nil {
		return err
	}

	return p.remote.ClaimReward(ctx, p.userID, payload.StakeID, payload.Amount, op.Timestamp, op.ID)
}

// handleUserDataUpdate перечитывает удаленный баланс непосредственно перед записью
// и отклоняет обновление, уходящее от него дальше MaxBalanceChange
func (p *Processor) handleUserDataUpdate(ctx context.Context, op *models.Operation) error {
	var payload models.UserDataUpdatePayload
	if err := decodePayload(op, &payload); err != nil {
		return err
	}

	var current float64
	user, err := p.remote.GetUser(ctx, p.userID)
	switch {
	case err == nil:
		current = user.Balance
	case errors.Is(err, remote.ErrNotFound):
		// Первая запись нового пользователя
	default:
		return err
	}

	if diff := math.Abs(payload.Balance - current); diff > p.cfg.Limits.MaxBalanceChange {
		return fmt.Errorf("%w: new %.2f, remote %.2f, limit %.2f",
			ErrBalanceDivergence, payload.Balance, current, p.cfg.Limits.MaxBalanceChange)
	}

	return p.remote.UpdateUserBalance(ctx, p.userID, payload.Balance, payload.TotalEarned, op.ID)
}

func (p *Processor) handleSynergyUpdate(ctx context.Context, op *models.Operation) error {
	var payload models.SynergyUpdatePayload
	if err := decodePayload(op, &payload); err != nil {
		return err
	}

	return p.remote.UpsertSynergy(ctx, p.userID, payload.Synergy, op.ID)
}

// decodePayload разбирает тело операции. Испорченное тело не лечится повтором.
func decodePayload(op *models.Operation, out any) error {
	if err := json.Unmarshal(op.Payload, out); err != nil {
		return fmt.Errorf("%w: malformed %s payload: %v", remote.ErrRejected, op.Type, err)
	}
	return nil
}
