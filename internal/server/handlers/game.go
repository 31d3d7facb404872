package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/server/storage"
	"github.com/iudanet/minesync/internal/validation"
	"github.com/iudanet/minesync/pkg/api"
)

// GameHandler обрабатывает запросы к снапшоту и синергии
type GameHandler struct {
	games storage.GameDataStorage
	base
}

// NewGameHandler создает handler игровых данных
func NewGameHandler(logger *slog.Logger, games storage.GameDataStorage) *GameHandler {
	return &GameHandler{
		base:  base{logger: logger},
		games: games,
	}
}

// GetGameData обрабатывает GET /api/v1/game-data
func (h *GameHandler) GetGameData(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	data, lastUpdated, err := h.games.GetGameData(r.Context(), userID)
	if err != nil {
		h.storageError(w, r, "get game data", err)
		return
	}

	h.sendJSON(w, api.GameData{GameData: data, LastUpdated: lastUpdated}, http.StatusOK)
}

// PutGameData обрабатывает PUT /api/v1/game-data
// Снапшот заменяется целиком (last-writer-wins).
func (h *GameHandler) PutGameData(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.GameData
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Проверяем, что это действительно снапшот, а не произвольный JSON
	var snap models.Snapshot
	if len(req.GameData) == 0 || json.Unmarshal(req.GameData, &snap) != nil {
		h.sendError(w, "game_data must be a snapshot object", http.StatusBadRequest)
		return
	}

	if err := h.games.UpsertGameData(r.Context(), userID, req.GameData, req.LastUpdated); err != nil {
		h.storageError(w, r, "upsert game data", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSynergy обрабатывает GET /api/v1/synergy
func (h *GameHandler) GetSynergy(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	synergy, err := h.games.GetSynergy(r.Context(), userID)
	if err != nil {
		h.storageError(w, r, "get synergy", err)
		return
	}

	h.sendJSON(w, api.SynergyRequest{Synergy: synergy}, http.StatusOK)
}

// PutSynergy обрабатывает PUT /api/v1/synergy
func (h *GameHandler) PutSynergy(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.SynergyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	synergy := models.Synergy(req.Synergy)
	if err := validation.ValidateSynergy(synergy); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.games.UpsertSynergy(r.Context(), userID, synergy, idempotencyKey(r)); err != nil {
		h.storageError(w, r, "upsert synergy", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
