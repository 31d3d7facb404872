package models

// SyncState состояние синхронизации сессии для отображения хостом
type SyncState struct {
	PendingOperations []Operation `json:"pending_operations"`
	SyncErrors        []string    `json:"sync_errors"`
	LastSyncTime      int64       `json:"last_sync_time"` // unix ms, 0 если синхронизации не было
	IsOnline          bool        `json:"is_online"`
	IsSyncing         bool        `json:"is_syncing"`
	AutoSaveEnabled   bool        `json:"auto_save_enabled"`
}
