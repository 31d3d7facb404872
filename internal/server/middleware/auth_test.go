package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/server/handlers"
	"github.com/iudanet/minesync/internal/server/jwt"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthMiddleware_Success(t *testing.T) {
	svc := jwt.NewService("test-secret-key", 15*time.Minute)
	token, _, err := svc.GenerateAccessToken("player_1")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.GetUserID(r.Context())
		require.True(t, ok, "user_id should be in context")
		assert.Equal(t, "player_1", userID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	svc := jwt.NewService("test-secret-key", 15*time.Minute)
	foreign, _, err := jwt.NewService("other-secret-key", time.Minute).GenerateAccessToken("player_1")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Handler should not be called")
	}))

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{name: "missing header", header: "", wantMsg: "missing token"},
		{name: "no Bearer prefix", header: "token123", wantMsg: "invalid token format"},
		{name: "wrong scheme", header: "Basic token123", wantMsg: "invalid token format"},
		{name: "only Bearer", header: "Bearer ", wantMsg: "invalid token format"},
		{name: "malformed token", header: "Bearer invalid.token.here", wantMsg: "invalid token"},
		{name: "foreign secret", header: "Bearer " + foreign, wantMsg: "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tt.wantMsg)
		})
	}
}
