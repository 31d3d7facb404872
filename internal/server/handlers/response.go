package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iudanet/minesync/internal/server/storage"
	"github.com/iudanet/minesync/pkg/api"
)

// maxBodySize ограничение на размер тела запроса
const maxBodySize = 1 << 20

// base общие помощники ответа для всех handlers
type base struct {
	logger *slog.Logger
}

// sendJSON отправляет JSON ответ
func (b base) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (b base) sendError(w http.ResponseWriter, message string, statusCode int) {
	b.sendJSON(w, api.ErrorResponse{Error: message}, statusCode)
}

// decode читает JSON тело запроса
func (b base) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// userID достает user_id из контекста, при отсутствии отвечает 401
func (b base) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		b.logger.ErrorContext(r.Context(), "User ID not found in context")
		b.sendError(w, "unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}

// storageError отображает ошибку хранилища в HTTP статус и отправляет ответ
func (b base) storageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrStakeNotFound),
		errors.Is(err, storage.ErrGameDataNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrStakeExists),
		errors.Is(err, storage.ErrStakeNotActive),
		errors.Is(err, storage.ErrInsufficientBalance),
		errors.Is(err, storage.ErrBalanceChangeTooLarge):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrInvalidAmount):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		b.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
		b.sendError(w, "internal server error", status)
		return
	}

	b.logger.WarnContext(r.Context(), op+" rejected", slog.Any("error", err))
	b.sendError(w, err.Error(), status)
}

// idempotencyKey возвращает ID операции из заголовка
func idempotencyKey(r *http.Request) string {
	return r.Header.Get(api.IdempotencyKeyHeader)
}
