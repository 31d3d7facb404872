package storage

import (
	"context"
)

// Префиксы ключей локального хранилища. Полный ключ: "<prefix>_<userId>".
const (
	PrefixGameData  = "game_data"
	PrefixQueue     = "offline_queue"
	PrefixSyncState = "sync_state"
)

// Key собирает ключ локального хранилища для пользователя
func Key(prefix, userID string) string {
	return prefix + "_" + userID
}

// LocalStore defines the local persistent key/value store used as the fast cache.
// Values are opaque blobs; quota errors are propagated as-is.
type LocalStore interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key doesn't exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value under key
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error
	Remove(ctx context.Context, key string) error
}
