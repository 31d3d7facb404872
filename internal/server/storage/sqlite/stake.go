package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/server/storage"
)

const stakeColumns = `id, status, amount, rate, accumulated_rewards, claimed_total, started_at, last_claim_at, lock_days`

// InsertStake creates stake and debits its amount from the user balance
func (s *Storage) InsertStake(ctx context.Context, userID string, stake models.Stake, opID string) error {
	_, err := s.withOperation(ctx, userID, opID, func(tx *sql.Tx) error {
		if err := s.ensureUserTx(ctx, tx, userID); err != nil {
			return err
		}

		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM stakes WHERE id = ?`, stake.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check stake: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", storage.ErrStakeExists, stake.ID)
		}

		var balance float64
		if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
			return fmt.Errorf("failed to get balance: %w", err)
		}
		if stake.Amount > balance {
			return fmt.Errorf("%w: need %.2f, have %.2f", storage.ErrInsufficientBalance, stake.Amount, balance)
		}

		status := stake.Status
		if status == "" {
			status = models.StakeActive
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO stakes (id, user_id, status, amount, rate, accumulated_rewards, claimed_total, started_at, last_claim_at, lock_days)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stake.ID, userID, string(status), stake.Amount, stake.Rate,
			stake.AccumulatedRewards, stake.ClaimedTotal, stake.StartedAt, stake.LastClaimAt, stake.LockDays,
		)
		if err != nil {
			return fmt.Errorf("failed to insert stake: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET balance = balance - ?, last_active = ? WHERE id = ?`,
			stake.Amount, s.now().UnixMilli(), userID,
		)
		if err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		return nil
	})
	return err
}

// UpdateStake applies partial update to the user stake
func (s *Storage) UpdateStake(ctx context.Context, userID string, update models.StakeUpdatePayload, opID string) error {
	_, err := s.withOperation(ctx, userID, opID, func(tx *sql.Tx) error {
		stake, err := getStakeTx(ctx, tx, userID, update.StakeID)
		if err != nil {
			return err
		}

		if update.AccumulatedRewards != nil {
			stake.AccumulatedRewards = *update.AccumulatedRewards
		}
		if update.LastClaimAt != nil {
			stake.LastClaimAt = *update.LastClaimAt
		}
		if update.Status != "" {
			stake.Status = update.Status
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE stakes SET accumulated_rewards = ?, last_claim_at = ?, status = ? WHERE id = ? AND user_id = ?`,
			stake.AccumulatedRewards, stake.LastClaimAt, string(stake.Status), stake.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to update stake: %w", err)
		}
		return nil
	})
	return err
}

// ClaimReward moves amount from stake rewards to the user balance
func (s *Storage) ClaimReward(ctx context.Context, userID, stakeID string, amount float64, claimedAt int64, maxAmount float64, opID string) (*storage.ClaimResult, error) {
	if amount <= 0 || (maxAmount > 0 && amount > maxAmount) {
		return nil, fmt.Errorf("%w: %.2f", storage.ErrInvalidAmount, amount)
	}

	_, err := s.withOperation(ctx, userID, opID, func(tx *sql.Tx) error {
		stake, err := getStakeTx(ctx, tx, userID, stakeID)
		if err != nil {
			return err
		}
		if stake.Status != models.StakeActive {
			return fmt.Errorf("%w: %s is %s", storage.ErrStakeNotActive, stakeID, stake.Status)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE stakes
			SET claimed_total = claimed_total + ?, accumulated_rewards = ?, last_claim_at = ?
			WHERE id = ? AND user_id = ?`,
			amount, math.Max(0, stake.AccumulatedRewards-amount), claimedAt, stakeID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to update stake: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET balance = balance + ?, total_earned = total_earned + ?, last_active = ? WHERE id = ?`,
			amount, amount, s.now().UnixMilli(), userID,
		)
		if err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &storage.ClaimResult{Balance: user.Balance, TotalEarned: user.TotalEarned}, nil
}

// ListStakes returns user stakes ordered by started_at
func (s *Storage) ListStakes(ctx context.Context, userID string) ([]models.Stake, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE user_id = ? ORDER BY started_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stakes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	stakes := make([]models.Stake, 0)
	for rows.Next() {
		stake, err := scanStake(rows)
		if err != nil {
			return nil, err
		}
		stakes = append(stakes, *stake)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stakes: %w", err)
	}

	return stakes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStake(row rowScanner) (*models.Stake, error) {
	var (
		stake  models.Stake
		status string
	)
	err := row.Scan(
		&stake.ID,
		&status,
		&stake.Amount,
		&stake.Rate,
		&stake.AccumulatedRewards,
		&stake.ClaimedTotal,
		&stake.StartedAt,
		&stake.LastClaimAt,
		&stake.LockDays,
	)
	if err != nil {
		return nil, err
	}
	stake.Status = models.StakeStatus(status)
	return &stake, nil
}

func getStakeTx(ctx context.Context, tx *sql.Tx, userID, stakeID string) (*models.Stake, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE id = ? AND user_id = ?`, stakeID, userID)
	stake, err := scanStake(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", storage.ErrStakeNotFound, stakeID)
		}
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}
	return stake, nil
}
