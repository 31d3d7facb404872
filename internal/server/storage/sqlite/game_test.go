package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/server/storage"
)

func TestGameDataStorage_Upsert(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, _, err := s.GetGameData(ctx, "player_1")
	assert.ErrorIs(t, err, storage.ErrGameDataNotFound)

	require.NoError(t, s.UpsertGameData(ctx, "player_1", []byte(`{"balance":1}`), 1000))
	require.NoError(t, s.UpsertGameData(ctx, "player_1", []byte(`{"balance":2}`), 2000))

	data, lastUpdated, err := s.GetGameData(ctx, "player_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":2}`, string(data))
	assert.Equal(t, int64(2000), lastUpdated)
}

func TestGameDataStorage_UpsertStampsMissingTime(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.UpsertGameData(ctx, "player_1", []byte(`{}`), 0))

	_, lastUpdated, err := s.GetGameData(ctx, "player_1")
	require.NoError(t, err)
	assert.Positive(t, lastUpdated)
}

func TestGameDataStorage_Synergy(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	empty, err := s.GetSynergy(ctx, "player_1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.UpsertSynergy(ctx, "player_1", models.Synergy{"drill": 1.5, "cart": 1.2}, "op-1"))
	require.NoError(t, s.UpsertSynergy(ctx, "player_1", models.Synergy{"drill": 2}, "op-2"))

	// Повтор старой операции не возвращает удаленные множители
	require.NoError(t, s.UpsertSynergy(ctx, "player_1", models.Synergy{"drill": 1.5, "cart": 1.2}, "op-1"))

	got, err := s.GetSynergy(ctx, "player_1")
	require.NoError(t, err)
	assert.Equal(t, models.Synergy{"drill": 2}, got)
}
