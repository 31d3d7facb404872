package auth

import (
	"context"

	"github.com/iudanet/minesync/pkg/api"
)

//go:generate moq -out issuer_mock.go . TokenIssuer

// TokenIssuer выдает токен сессии для игрока.
// Реализуется api.Client.
type TokenIssuer interface {
	IssueToken(ctx context.Context, userID string) (*api.TokenResponse, error)
}
