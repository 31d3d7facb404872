package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/iudanet/minesync/internal/client/storage"
	"github.com/iudanet/minesync/internal/models"
)

// maxSyncErrors сколько последних ошибок синхронизации храним
const maxSyncErrors = 50

// persistedState часть состояния, переживающая перезапуск клиента
type persistedState struct {
	SyncErrors      []string `json:"sync_errors"`
	LastSyncTime    int64    `json:"last_sync_time"`
	AutoSaveEnabled bool     `json:"auto_save_enabled"`
}

// StateTracker хранит состояние синхронизации сессии.
// lastSyncTime, syncErrors и autoSave сохраняются под ключом sync_state_<userId>.
type StateTracker struct {
	store      storage.LocalStore
	logger     *slog.Logger
	key        string
	syncErrors []string
	lastSync   int64
	autoSave   bool
	isSyncing  atomic.Bool
	isOnline   atomic.Bool
	mu         sync.Mutex
}

// NewStateTracker создает трекер и загружает сохраненное состояние
func NewStateTracker(ctx context.Context, userID string, store storage.LocalStore, autoSave bool, logger *slog.Logger) (*StateTracker, error) {
	t := &StateTracker{
		store:    store,
		logger:   logger,
		key:      storage.Key(storage.PrefixSyncState, userID),
		autoSave: autoSave,
	}

	data, err := store.Get(ctx, t.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Warn("Stored sync state is corrupted, resetting", "user_id", userID, "error", err)
		return t, nil
	}

	t.syncErrors = p.SyncErrors
	t.lastSync = p.LastSyncTime
	t.autoSave = p.AutoSaveEnabled

	return t, nil
}

// IsOnline сообщает о наличии связи
func (t *StateTracker) IsOnline() bool {
	return t.isOnline.Load()
}

// SetOnline меняет флаг связи и сообщает, был ли это переход offline -> online
func (t *StateTracker) SetOnline(online bool) bool {
	prev := t.isOnline.Swap(online)
	return online && !prev
}

// IsSyncing сообщает, выполняется ли проход процессора
func (t *StateTracker) IsSyncing() bool {
	return t.isSyncing.Load()
}

// beginSync захватывает право на проход процессора
func (t *StateTracker) beginSync() bool {
	return t.isSyncing.CompareAndSwap(false, true)
}

func (t *StateTracker) endSync() {
	t.isSyncing.Store(false)
}

// AutoSaveEnabled сообщает, включено ли автосохранение
func (t *StateTracker) AutoSaveEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.autoSave
}

// SetAutoSave включает или выключает автосохранение
func (t *StateTracker) SetAutoSave(ctx context.Context, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.autoSave = enabled
	return t.persistLocked(ctx)
}

// MarkSynced запоминает время успешного прохода (unix ms)
func (t *StateTracker) MarkSynced(ctx context.Context, at int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSync = at
	return t.persistLocked(ctx)
}

// AddSyncError добавляет сообщение о невосстановимой ошибке синхронизации
func (t *StateTracker) AddSyncError(ctx context.Context, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.syncErrors = append(t.syncErrors, msg)
	if over := len(t.syncErrors) - maxSyncErrors; over > 0 {
		t.syncErrors = append([]string(nil), t.syncErrors[over:]...)
	}
	return t.persistLocked(ctx)
}

// ClearErrors очищает список ошибок синхронизации
func (t *StateTracker) ClearErrors(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.syncErrors = nil
	return t.persistLocked(ctx)
}

// Snapshot возвращает копию состояния. PendingOperations заполняет вызывающий.
func (t *StateTracker) Snapshot() models.SyncState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return models.SyncState{
		SyncErrors:      append([]string(nil), t.syncErrors...),
		LastSyncTime:    t.lastSync,
		IsOnline:        t.IsOnline(),
		IsSyncing:       t.IsSyncing(),
		AutoSaveEnabled: t.autoSave,
	}
}

func (t *StateTracker) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(persistedState{
		SyncErrors:      t.syncErrors,
		LastSyncTime:    t.lastSync,
		AutoSaveEnabled: t.autoSave,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	if err := t.store.Set(ctx, t.key, data); err != nil {
		return fmt.Errorf("failed to persist sync state: %w", err)
	}
	return nil
}
