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

// EnsureUser creates user with zero balance if it doesn't exist
func (s *Storage) EnsureUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, balance, total_earned, last_active, created_at) VALUES (?, 0, 0, 0, ?)`,
		userID, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves user by ID
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	query := `
		SELECT id, balance, total_earned, last_active
		FROM users
		WHERE id = ?
	`

	user := &models.UserAccount{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Balance,
		&user.TotalEarned,
		&user.LastActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdateBalance overwrites balance and total_earned of the user
func (s *Storage) UpdateBalance(ctx context.Context, userID string, balance, totalEarned, maxChange float64, opID string) error {
	_, err := s.withOperation(ctx, userID, opID, func(tx *sql.Tx) error {
		if err := s.ensureUserTx(ctx, tx, userID); err != nil {
			return err
		}

		var current float64
		if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&current); err != nil {
			return fmt.Errorf("failed to get balance: %w", err)
		}

		// Сервер не доверяет клиенту: большие скачки баланса отклоняются
		if maxChange > 0 && math.Abs(balance-current) > maxChange {
			return fmt.Errorf("%w: %.2f -> %.2f", storage.ErrBalanceChangeTooLarge, current, balance)
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE users SET balance = ?, total_earned = ?, last_active = ? WHERE id = ?`,
			balance, totalEarned, s.now().UnixMilli(), userID,
		)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		return nil
	})
	return err
}
