package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/minesync/internal/server/storage"
	"github.com/iudanet/minesync/internal/validation"
	"github.com/iudanet/minesync/pkg/api"
)

// TokenIssuer выпускает access token для пользователя
type TokenIssuer interface {
	GenerateAccessToken(userID string) (string, int64, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	users  storage.UserStorage
	tokens TokenIssuer
	base
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, users storage.UserStorage, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{
		base:   base{logger: logger},
		users:  users,
		tokens: tokens,
	}
}

// IssueToken обрабатывает POST /api/v1/auth/token
// Выдает токен сессии игроку, создавая запись пользователя при первом входе.
// Кошелек и подтверждение владения вне рамок сервера синхронизации.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode token request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUserID(req.UserID); err != nil {
		h.logger.WarnContext(ctx, "invalid user id", slog.String("user_id", req.UserID), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.users.EnsureUser(ctx, req.UserID); err != nil {
		h.storageError(w, r, "ensure user", err)
		return
	}

	token, expiresIn, err := h.tokens.GenerateAccessToken(req.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "session token issued", slog.String("user_id", req.UserID))

	h.sendJSON(w, api.TokenResponse{
		AccessToken: token,
		UserID:      req.UserID,
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}
