package storage

import (
	"context"

	"github.com/iudanet/minesync/internal/models"
)

// GameDataStorage defines interface for snapshot and synergy persistence
type GameDataStorage interface {
	// GetGameData returns raw snapshot JSON and its last_updated (unix ms).
	// Returns ErrGameDataNotFound.
	GetGameData(ctx context.Context, userID string) ([]byte, int64, error)

	// UpsertGameData replaces the snapshot (whole-object last-writer-wins)
	UpsertGameData(ctx context.Context, userID string, data []byte, lastUpdated int64) error

	// GetSynergy returns synergy multipliers, empty map if none
	GetSynergy(ctx context.Context, userID string) (models.Synergy, error)

	// UpsertSynergy replaces all multipliers of the user
	UpsertSynergy(ctx context.Context, userID string, synergy models.Synergy, opID string) error
}

// SecurityEventStorage defines interface for the security audit log
type SecurityEventStorage interface {
	// SaveSecurityEvent appends event to the log
	SaveSecurityEvent(ctx context.Context, event models.SecurityEvent) error

	// ListSecurityEvents returns user events with timestamp >= since and severity >= minSeverity
	// (empty minSeverity means all), ordered by timestamp
	ListSecurityEvents(ctx context.Context, userID string, since int64, minSeverity models.Severity) ([]models.SecurityEvent, error)
}

// Storage объединяет все хранилища сервера
type Storage interface {
	UserStorage
	StakeStorage
	GameDataStorage
	SecurityEventStorage
}
