package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/server/storage"
)

// GetGameData returns raw snapshot JSON and its last_updated
func (s *Storage) GetGameData(ctx context.Context, userID string) ([]byte, int64, error) {
	var (
		data        string
		lastUpdated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT game_data, last_updated FROM user_game_data WHERE user_id = ?`, userID,
	).Scan(&data, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, storage.ErrGameDataNotFound
		}
		return nil, 0, fmt.Errorf("failed to get game data: %w", err)
	}

	return []byte(data), lastUpdated, nil
}

// UpsertGameData replaces the snapshot of the user.
// lastUpdated <= 0 is replaced with current time.
func (s *Storage) UpsertGameData(ctx context.Context, userID string, data []byte, lastUpdated int64) error {
	if lastUpdated <= 0 {
		lastUpdated = s.now().UnixMilli()
	}

	_, err := s.withOperation(ctx, userID, "", func(tx *sql.Tx) error {
		if err := s.ensureUserTx(ctx, tx, userID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_game_data (user_id, game_data, last_updated)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				game_data = excluded.game_data,
				last_updated = excluded.last_updated`,
			userID, string(data), lastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert game data: %w", err)
		}
		return nil
	})
	return err
}

// GetSynergy returns synergy multipliers of the user
func (s *Storage) GetSynergy(ctx context.Context, userID string) (models.Synergy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, multiplier FROM user_synergy WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query synergy: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	synergy := make(models.Synergy)
	for rows.Next() {
		var (
			name string
			mult float64
		)
		if err := rows.Scan(&name, &mult); err != nil {
			return nil, fmt.Errorf("failed to scan synergy: %w", err)
		}
		synergy[name] = mult
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate synergy: %w", err)
	}

	return synergy, nil
}

// UpsertSynergy replaces all multipliers of the user
func (s *Storage) UpsertSynergy(ctx context.Context, userID string, synergy models.Synergy, opID string) error {
	_, err := s.withOperation(ctx, userID, opID, func(tx *sql.Tx) error {
		if err := s.ensureUserTx(ctx, tx, userID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_synergy WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear synergy: %w", err)
		}

		for name, mult := range synergy {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO user_synergy (user_id, name, multiplier) VALUES (?, ?, ?)`,
				userID, name, mult,
			)
			if err != nil {
				return fmt.Errorf("failed to insert synergy %s: %w", name, err)
			}
		}
		return nil
	})
	return err
}
