package storage

import (
	"context"

	"github.com/iudanet/minesync/internal/models"
)

// ClaimResult балансы пользователя после получения награды
type ClaimResult struct {
	Balance     float64
	TotalEarned float64
}

// StakeStorage defines interface for stakes persistence.
// Every mutating method is idempotent by opID.
type StakeStorage interface {
	// InsertStake creates stake and debits its amount from the user balance.
	// Returns ErrStakeExists, ErrInsufficientBalance.
	InsertStake(ctx context.Context, userID string, stake models.Stake, opID string) error

	// UpdateStake applies partial update, nil fields are left untouched.
	// Returns ErrStakeNotFound.
	UpdateStake(ctx context.Context, userID string, update models.StakeUpdatePayload, opID string) error

	// ClaimReward moves amount from stake rewards to the user balance in one transaction.
	// Returns ErrStakeNotFound, ErrStakeNotActive, ErrInvalidAmount.
	ClaimReward(ctx context.Context, userID, stakeID string, amount float64, claimedAt int64, maxAmount float64, opID string) (*ClaimResult, error)

	// ListStakes returns user stakes ordered by started_at
	ListStakes(ctx context.Context, userID string) ([]models.Stake, error)
}
