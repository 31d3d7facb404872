package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/server/storage"
	"github.com/iudanet/minesync/internal/validation"
	"github.com/iudanet/minesync/pkg/api"
)

// StakeHandler обрабатывает запросы стейкинга
type StakeHandler struct {
	stakes storage.StakeStorage
	base
	limits validation.Limits
}

// NewStakeHandler создает handler стейкинга; limits ограничивают суммы и ставки
func NewStakeHandler(logger *slog.Logger, stakes storage.StakeStorage, limits validation.Limits) *StakeHandler {
	return &StakeHandler{
		base:   base{logger: logger},
		stakes: stakes,
		limits: limits,
	}
}

// List обрабатывает GET /api/v1/stakes
func (h *StakeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	stakes, err := h.stakes.ListStakes(r.Context(), userID)
	if err != nil {
		h.storageError(w, r, "list stakes", err)
		return
	}

	resp := make([]api.StakeResponse, 0, len(stakes))
	for _, s := range stakes {
		resp = append(resp, stakeResponse(s))
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// Create обрабатывает POST /api/v1/stakes
func (h *StakeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.StakeCreateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Та же проверка, что и на клиенте при постановке в очередь
	payload := models.StakeCreatePayload{
		StakeID:  req.ID,
		Amount:   req.Amount,
		Rate:     req.Rate,
		LockDays: req.LockDays,
	}
	if err := validation.ValidateStakeCreate(payload, h.limits); err != nil {
		h.logger.WarnContext(r.Context(), "invalid stake", slog.String("user_id", userID), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stake := models.Stake{
		ID:        req.ID,
		Status:    models.StakeActive,
		Amount:    req.Amount,
		Rate:      req.Rate,
		StartedAt: req.StartedAt,
		LockDays:  req.LockDays,
	}
	if err := h.stakes.InsertStake(r.Context(), userID, stake, idempotencyKey(r)); err != nil {
		h.storageError(w, r, "insert stake", err)
		return
	}

	h.logger.InfoContext(r.Context(), "stake created",
		slog.String("user_id", userID),
		slog.String("stake_id", req.ID),
		slog.Float64("amount", req.Amount))
	h.sendJSON(w, stakeResponse(stake), http.StatusCreated)
}

// Update обрабатывает PATCH /api/v1/stakes/{id}
func (h *StakeHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.StakeUpdateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	update := models.StakeUpdatePayload{
		StakeID:            r.PathValue("id"),
		AccumulatedRewards: req.AccumulatedRewards,
		LastClaimAt:        req.LastClaimAt,
		Status:             models.StakeStatus(req.Status),
	}
	if err := validation.ValidateStakeUpdate(update); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.stakes.UpdateStake(r.Context(), userID, update, idempotencyKey(r)); err != nil {
		h.storageError(w, r, "update stake", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Claim обрабатывает POST /api/v1/stakes/{id}/claim
// Начисление проходит одной транзакцией на сервере.
func (h *StakeHandler) Claim(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.RewardClaimRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stakeID := r.PathValue("id")
	res, err := h.stakes.ClaimReward(r.Context(), userID, stakeID, req.Amount, req.ClaimedAt,
		h.limits.MaxBalanceChange, idempotencyKey(r))
	if err != nil {
		h.storageError(w, r, "claim reward", err)
		return
	}

	h.logger.InfoContext(r.Context(), "reward claimed",
		slog.String("user_id", userID),
		slog.String("stake_id", stakeID),
		slog.Float64("amount", req.Amount))
	h.sendJSON(w, api.RewardClaimResponse{Balance: res.Balance, TotalEarned: res.TotalEarned}, http.StatusOK)
}

func stakeResponse(s models.Stake) api.StakeResponse {
	return api.StakeResponse{
		ID:                 s.ID,
		Status:             string(s.Status),
		Amount:             s.Amount,
		Rate:               s.Rate,
		AccumulatedRewards: s.AccumulatedRewards,
		ClaimedTotal:       s.ClaimedTotal,
		StartedAt:          s.StartedAt,
		LastClaimAt:        s.LastClaimAt,
		LockDays:           s.LockDays,
	}
}
