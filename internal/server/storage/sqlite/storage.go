package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/minesync/internal/server/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage represents SQLite storage implementation of storage.Storage
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Storage = (*Storage)(nil)

// New creates a new SQLite storage instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настраиваем connection pool
	// SQLite с WAL mode может поддерживать несколько читателей, но только одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Включаем WAL mode и другие оптимизации
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	st := &Storage{db: db, now: time.Now}

	// Запускаем миграции
	if err := st.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return st, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	// Устанавливаем dialect для SQLite
	goose.SetDialect("sqlite3")

	// Устанавливаем источник миграций из embedded FS
	goose.SetBaseFS(embedMigrations)

	// Запускаем миграции
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}

// withOperation выполняет fn в транзакции вместе с записью ключа идемпотентности.
// Ключ действует в пределах пользователя: если opID этого пользователя уже
// обработан, fn не вызывается и возвращается replayed=true.
// Пустой opID отключает дедупликацию.
func (s *Storage) withOperation(ctx context.Context, userID, opID string, fn func(tx *sql.Tx) error) (replayed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if opID != "" {
		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM processed_operations WHERE user_id = ? AND op_id = ?`, userID, opID,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("failed to check operation: %w", err)
		}
		if exists > 0 {
			if err = tx.Commit(); err != nil {
				return false, fmt.Errorf("failed to commit transaction: %w", err)
			}
			return true, nil
		}
	}

	if err = fn(tx); err != nil {
		return false, err
	}

	if opID != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO processed_operations (op_id, user_id, processed_at) VALUES (?, ?, ?)`,
			opID, userID, s.now().UnixMilli(),
		)
		if err != nil {
			return false, fmt.Errorf("failed to record operation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return false, nil
}

// ensureUserTx создает пользователя с нулевым балансом внутри транзакции
func (s *Storage) ensureUserTx(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, balance, total_earned, last_active, created_at) VALUES (?, 0, 0, 0, ?)`,
		userID, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// Ping проверяет соединение с БД
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
