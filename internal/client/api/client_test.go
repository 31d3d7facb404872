package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/pkg/api"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL)
	client.SetSession("user-1", "token-abc")
	return client
}

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_IssueToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/token", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req api.TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-1", req.UserID)

		_ = json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "tok", UserID: "user-1", ExpiresIn: 3600})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).IssueToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
}

func TestClient_UpdateUserBalance_SendsHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/users/me/balance", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "op-1", r.Header.Get(api.IdempotencyKeyHeader))

		var req api.BalanceUpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 150.0, req.Balance)
		assert.Equal(t, 200.0, req.TotalEarned)

		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateUserBalance(context.Background(), "user-1", 150, 200, "op-1")
	require.NoError(t, err)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		status  int
	}{
		{name: "bad request", status: http.StatusBadRequest, wantErr: remote.ErrRejected},
		{name: "conflict", status: http.StatusConflict, wantErr: remote.ErrRejected},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: remote.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantErr: remote.ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, wantErr: remote.ErrNotFound},
		{name: "too many requests", status: http.StatusTooManyRequests, wantErr: remote.ErrUnavailable},
		{name: "internal", status: http.StatusInternalServerError, wantErr: remote.ErrUnavailable},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: remote.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "nope", Message: "details"})
			})

			err := client.InsertStake(context.Background(), "user-1", models.Stake{ID: "s1"}, "op-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "nope: details")
		})
	}
}

func TestClient_NetworkErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(server.URL)
	client.SetSession("user-1", "tok")
	server.Close()

	_, err := client.GetUser(context.Background(), "user-1")
	assert.ErrorIs(t, err, remote.ErrUnavailable)
}

func TestClient_NoSession(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	_, err := client.GetUser(context.Background(), "user-1")
	assert.ErrorIs(t, err, remote.ErrUnauthorized)
}

func TestClient_SessionMismatch(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	client.SetSession("user-1", "tok")

	err := client.UpsertSynergy(context.Background(), "user-2", models.Synergy{"a": 1}, "op")
	assert.ErrorIs(t, err, ErrSessionMismatch)
	assert.ErrorIs(t, err, remote.ErrUnauthorized)
}

func TestClient_GetGameData(t *testing.T) {
	snap := models.DefaultSnapshot()
	snap.Balance = 42
	snap.LastUpdate = 1000
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/game-data", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.GameData{GameData: data, LastUpdated: 2000})
	})

	got, err := client.GetGameData(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.LastUpdated)
	assert.Equal(t, 42.0, got.Snapshot.Balance)
	assert.Equal(t, int64(1000), got.Snapshot.LastUpdate)
}

func TestClient_UpdateStakeAndClaimPaths(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	rewards := 3.5
	ctx := context.Background()
	require.NoError(t, client.UpdateStake(ctx, "user-1", models.StakeUpdatePayload{StakeID: "s1", AccumulatedRewards: &rewards}, "op-1"))
	require.NoError(t, client.ClaimReward(ctx, "user-1", "s1", 2, 100, "op-2"))

	assert.Equal(t, []string{"PATCH /api/v1/stakes/s1", "POST /api/v1/stakes/s1/claim"}, paths)
}

func TestClient_ListSecurityEvents(t *testing.T) {
	since := time.UnixMilli(1_700_000_000_000)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/security-events", r.URL.Path)
		assert.Equal(t, "1700000000000", r.URL.Query().Get("since"))
		assert.Equal(t, "high", r.URL.Query().Get("min_severity"))

		_ = json.NewEncoder(w).Encode(api.SecurityEventsResponse{Events: []api.SecurityEvent{
			{UserID: "user-1", EventType: models.EventSuspiciousBalance, Severity: "high", Timestamp: 1_700_000_000_500},
		}})
	})

	events, err := client.ListSecurityEvents(context.Background(), "user-1", since, models.SeverityHigh)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityHigh, events[0].Severity)
	assert.Equal(t, models.EventSuspiciousBalance, events[0].EventType)
}

func TestClient_Health(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok"})
	})

	assert.NoError(t, client.Health(context.Background()))
}
