package storage

import (
	"context"

	"github.com/iudanet/minesync/internal/models"
)

// UserStorage defines interface for user balances persistence
type UserStorage interface {
	// EnsureUser creates user with zero balance if it doesn't exist
	EnsureUser(ctx context.Context, userID string) error

	// GetUser retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUser(ctx context.Context, userID string) (*models.UserAccount, error)

	// UpdateBalance overwrites balance and total_earned.
	// Returns ErrBalanceChangeTooLarge if |balance - current| > maxChange (maxChange <= 0 disables the check).
	// Replayed opID is a no-op.
	UpdateBalance(ctx context.Context, userID string, balance, totalEarned, maxChange float64, opID string) error
}
