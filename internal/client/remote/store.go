// Package remote описывает авторитетное удаленное хранилище экономики игрока.
package remote

import (
	"context"
	"time"

	"github.com/iudanet/minesync/internal/models"
)

// Store defines the authoritative remote store used by the sync engine.
//
// Mutating calls take the operation id as an idempotency key: replaying
// an already applied operation is a successful no-op.
type Store interface {
	// GetUser returns authoritative numeric fields.
	// Returns ErrNotFound if the user has no row yet
	GetUser(ctx context.Context, userID string) (*models.UserAccount, error)

	// UpdateUserBalance writes absolute balance and total earned
	UpdateUserBalance(ctx context.Context, userID string, balance, totalEarned float64, opID string) error

	// InsertStake creates a stake
	InsertStake(ctx context.Context, userID string, stake models.Stake, opID string) error

	// UpdateStake applies non-nil fields of the update
	UpdateStake(ctx context.Context, userID string, update models.StakeUpdatePayload, opID string) error

	// ClaimReward runs the server side reward-claim procedure
	ClaimReward(ctx context.Context, userID, stakeID string, amount float64, claimedAt int64, opID string) error

	// UpsertSynergy replaces synergy multipliers
	UpsertSynergy(ctx context.Context, userID string, synergy models.Synergy, opID string) error

	// GetGameData returns the stored snapshot.
	// Returns ErrNotFound if nothing has been saved
	GetGameData(ctx context.Context, userID string) (*models.RemoteSnapshot, error)

	// UpsertGameData overwrites the stored snapshot (last writer wins)
	UpsertGameData(ctx context.Context, userID string, snapshot models.Snapshot) error

	// RecordSecurityEvent appends to the security log
	RecordSecurityEvent(ctx context.Context, event models.SecurityEvent) error

	// ListSecurityEvents returns events of the user not older than since
	// with severity at least minSeverity
	ListSecurityEvents(ctx context.Context, userID string, since time.Time, minSeverity models.Severity) ([]models.SecurityEvent, error)
}
