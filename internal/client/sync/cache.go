package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/iudanet/minesync/internal/client/storage"
	"github.com/iudanet/minesync/internal/crypto"
	"github.com/iudanet/minesync/internal/models"
)

// cacheEnvelope формат снапшота в локальном хранилище
type cacheEnvelope struct {
	Snapshot models.Snapshot `json:"snapshot"`
	Hash     string          `json:"hash"`
}

// SnapshotCache хранит снапшот пользователя локально вместе с SHA-256
// канонической формы. Загрузка проверяет хеш.
type SnapshotCache struct {
	store  storage.LocalStore
	logger *slog.Logger
	key    string
}

// NewSnapshotCache создает кэш снапшотов пользователя
func NewSnapshotCache(userID string, store storage.LocalStore, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{
		store:  store,
		logger: logger,
		key:    storage.Key(storage.PrefixGameData, userID),
	}
}

// Load читает снапшот.
// Возвращает storage.ErrNotFound если снапшота нет и *IntegrityError если хеш не совпал.
func (c *SnapshotCache) Load(ctx context.Context) (*models.Snapshot, error) {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &IntegrityError{Expected: "", Actual: "unreadable: " + err.Error()}
	}

	actual, err := crypto.HashData(env.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to hash cached snapshot: %w", err)
	}

	if !crypto.ValidateHash(env.Snapshot, env.Hash) {
		return nil, &IntegrityError{Expected: env.Hash, Actual: actual}
	}

	return &env.Snapshot, nil
}

// Save записывает снапшот с пересчитанным хешем
func (c *SnapshotCache) Save(ctx context.Context, snap models.Snapshot) error {
	hash, err := crypto.HashData(snap)
	if err != nil {
		return fmt.Errorf("failed to hash snapshot: %w", err)
	}

	data, err := json.Marshal(cacheEnvelope{Snapshot: snap, Hash: hash})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.store.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	c.logger.Debug("Snapshot cached", "key", c.key, "last_update", snap.LastUpdate)
	return nil
}
