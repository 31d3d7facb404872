// Package auth управляет сессией клиента: получение токена, хранение, выход.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iudanet/minesync/internal/client/storage"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/validation"
)

// Service хранит сессию сервера в локальной БД
type Service struct {
	issuer    TokenIssuer
	store     storage.AuthStorage
	clock     clock.Clock
	logger    *slog.Logger
	serverURL string
}

// NewService создает сервис сессии
func NewService(issuer TokenIssuer, store storage.AuthStorage, serverURL string, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		issuer:    issuer,
		store:     store,
		clock:     clk,
		logger:    logger,
		serverURL: serverURL,
	}
}

// Login получает токен для userID и сохраняет его
func (s *Service) Login(ctx context.Context, userID string) (*storage.AuthData, error) {
	userID = strings.TrimSpace(userID)
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	tok, err := s.issuer.IssueToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	auth := &storage.AuthData{
		UserID:      tok.UserID,
		AccessToken: tok.AccessToken,
		ServerURL:   s.serverURL,
		ExpiresAt:   s.clock.Now().Unix() + tok.ExpiresIn,
	}

	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("Logged in", "user_id", auth.UserID, "expires_at", auth.ExpiresAt)
	return auth, nil
}

// Current возвращает действующую сессию.
// ErrNotLoggedIn если сессии нет, ErrSessionExpired если срок истек.
func (s *Service) Current(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if auth.ExpiresAt > 0 && s.clock.Now().Unix() >= auth.ExpiresAt {
		return nil, ErrSessionExpired
	}

	if auth.ServerURL != "" && auth.ServerURL != s.serverURL {
		s.logger.Warn("Session was issued by another server",
			"session_server", auth.ServerURL,
			"server", s.serverURL)
	}

	return auth, nil
}

// Logout удаляет сессию. Отсутствие сессии не ошибка.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
