package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/minesync/internal/server/storage"
	"github.com/iudanet/minesync/pkg/api"
)

// UserHandler обрабатывает запросы к балансу пользователя
type UserHandler struct {
	users storage.UserStorage
	base
	maxBalanceChange float64
}

// NewUserHandler создает handler; maxBalanceChange <= 0 отключает проверку скачков баланса
func NewUserHandler(logger *slog.Logger, users storage.UserStorage, maxBalanceChange float64) *UserHandler {
	return &UserHandler{
		base:             base{logger: logger},
		users:            users,
		maxBalanceChange: maxBalanceChange,
	}
}

// GetMe обрабатывает GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		h.storageError(w, r, "get user", err)
		return
	}

	h.sendJSON(w, api.UserResponse{
		ID:          user.ID,
		Balance:     user.Balance,
		TotalEarned: user.TotalEarned,
		LastActive:  user.LastActive,
	}, http.StatusOK)
}

// UpdateBalance обрабатывает PUT /api/v1/users/me/balance
// Изменение больше maxBalanceChange отклоняется с 409.
func (h *UserHandler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.BalanceUpdateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Balance < 0 || req.TotalEarned < 0 {
		h.sendError(w, "balance must be non-negative", http.StatusBadRequest)
		return
	}

	err := h.users.UpdateBalance(r.Context(), userID, req.Balance, req.TotalEarned, h.maxBalanceChange, idempotencyKey(r))
	if err != nil {
		h.storageError(w, r, "update balance", err)
		return
	}

	h.logger.DebugContext(r.Context(), "balance updated",
		slog.String("user_id", userID),
		slog.Float64("balance", req.Balance))
	w.WriteHeader(http.StatusNoContent)
}
