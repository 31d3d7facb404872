package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/pkg/api"
)

// DefaultTimeout таймаут HTTP клиента, других таймаутов на операцию нет
const DefaultTimeout = 30 * time.Second

// ErrSessionMismatch токен выдан другому пользователю. Оборачивается вместе с remote.ErrUnauthorized.
var ErrSessionMismatch = errors.New("session belongs to another user")

// Client представляет HTTP клиент для взаимодействия с сервером.
// Реализует remote.Store поверх JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userID     string
	mu         sync.RWMutex
}

var _ remote.Store = (*Client)(nil)

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetSession устанавливает токен доступа для последующих запросов
func (c *Client) SetSession(userID, accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.token = accessToken
}

// IssueToken получает токен сессии для пользователя
func (c *Client) IssueToken(ctx context.Context, userID string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/token", "", api.TokenRequest{UserID: userID}, &resp)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", "", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("server status %q: %w", resp.Status, remote.ErrUnavailable)
	}
	return nil
}

// GetUser implements remote.Store
func (c *Client) GetUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}

	var resp api.UserResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/users/me", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("get user failed: %w", err)
	}

	return &models.UserAccount{
		ID:          resp.ID,
		Balance:     resp.Balance,
		TotalEarned: resp.TotalEarned,
		LastActive:  resp.LastActive,
	}, nil
}

// UpdateUserBalance implements remote.Store
func (c *Client) UpdateUserBalance(ctx context.Context, userID string, balance, totalEarned float64, opID string) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}

	req := api.BalanceUpdateRequest{Balance: balance, TotalEarned: totalEarned}
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/users/me/balance", opID, req, nil); err != nil {
		return fmt.Errorf("update balance failed: %w", err)
	}
	return nil
}

// InsertStake implements remote.Store
func (c *Client) InsertStake(ctx context.Context, userID string, stake models.Stake, opID string) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}

	req := api.StakeCreateRequest{
		ID:        stake.ID,
		Amount:    stake.Amount,
		Rate:      stake.Rate,
		StartedAt: stake.StartedAt,
		LockDays:  stake.LockDays,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/stakes", opID, req, nil); err != nil {
		return fmt.Errorf("insert stake failed: %w", err)
	}
	return nil
}

// UpdateStake implements remote.Store
func (c *Client) UpdateStake(ctx context.Context, userID string, update models.StakeUpdatePayload, opID string) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}

	req := api.StakeUpdateRequest{
		AccumulatedRewards: update.AccumulatedRewards,
		LastClaimAt:        update.LastClaimAt,
		Status:             string(update.Status),
	}
	path := "/api/v1/stakes/" + url.PathEscape(update.StakeID)
	if err := c.doRequest(ctx, http.MethodPatch, path, opID, req, nil); err != nil {
		return fmt.Errorf("update stake failed: %w", err)
	}
	return nil
}

// ClaimReward implements remote.Store
func (c *Client) ClaimReward(ctx context.Context, userID, stakeID string, amount float64, claimedAt int64, opID string) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}

	req := api.RewardClaimRequest{Amount: amount, ClaimedAt: claimedAt}
	path := "/api/v1/stakes/" + url.PathEscape(stakeID) + "/claim"
	if err := c.doRequest(ctx, http.MethodPost, path, opID, req, nil); err != nil {
		return fmt.Errorf("claim reward failed: %w", err)
	}
	return nil
}

// UpsertSynergy implements remote.Store
func (c *Client) UpsertSynergy(ctx context.Context, userID string, synergy models.Synergy, opID string) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}

	req := api.SynergyRequest{Synergy: synergy}
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/synergy", opID, req, nil); err != nil {
		return fmt.Errorf("upsert synergy failed: %w", err)
	}
	return nil
}

// GetGameData implements remote.Store
func (c *Client) GetGameData(ctx context.Context, userID string) (*models.RemoteSnapshot, error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}

	var resp api.GameData
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/game-data", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("get game data failed: %w", err)
	}

	out := &models.RemoteSnapshot{LastUpdated: resp.LastUpdated}
	if err := json.Unmarshal(resp.GameData, &out.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode game data: %w", err)
	}
	return out, nil
}

// UpsertGameData implements remote.Store
func (c *Client) UpsertGameData(ctx context.Context, userID string, snapshot models.Snapshot) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal game data: %w", err)
	}

	req := api.GameData{GameData: data, LastUpdated: snapshot.LastUpdate}
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/game-data", "", req, nil); err != nil {
		return fmt.Errorf("upsert game data failed: %w", err)
	}
	return nil
}

// RecordSecurityEvent implements remote.Store
func (c *Client) RecordSecurityEvent(ctx context.Context, event models.SecurityEvent) error {
	if err := c.checkUser(event.UserID); err != nil {
		return err
	}

	req := api.SecurityEvent{
		Details:   event.Details,
		EventType: event.EventType,
		Severity:  string(event.Severity),
		Timestamp: event.Timestamp,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/security-events", "", req, nil); err != nil {
		return fmt.Errorf("record security event failed: %w", err)
	}
	return nil
}

// ListSecurityEvents implements remote.Store
func (c *Client) ListSecurityEvents(ctx context.Context, userID string, since time.Time, minSeverity models.Severity) ([]models.SecurityEvent, error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("since", fmt.Sprintf("%d", since.UnixMilli()))
	if minSeverity != "" {
		q.Set("min_severity", string(minSeverity))
	}

	var resp api.SecurityEventsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/security-events?"+q.Encode(), "", nil, &resp); err != nil {
		return nil, fmt.Errorf("list security events failed: %w", err)
	}

	events := make([]models.SecurityEvent, 0, len(resp.Events))
	for _, e := range resp.Events {
		events = append(events, models.SecurityEvent{
			Details:   e.Details,
			UserID:    e.UserID,
			EventType: e.EventType,
			Severity:  models.Severity(e.Severity),
			Timestamp: e.Timestamp,
		})
	}
	return events, nil
}

// checkUser проверяет, что запрос идет от имени пользователя текущей сессии
func (c *Client) checkUser(userID string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" {
		return fmt.Errorf("no session: %w", remote.ErrUnauthorized)
	}
	if userID != c.userID {
		return fmt.Errorf("%w: %w: %s", remote.ErrUnauthorized, ErrSessionMismatch, userID)
	}
	return nil
}

// doRequest выполняет HTTP запрос и отображает статус ответа в ошибки remote
func (c *Client) doRequest(ctx context.Context, method, path, idempotencyKey string, body, result interface{}) error {
	fullURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if idempotencyKey != "" {
		req.Header.Set(api.IdempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Сетевые ошибки считаем временной недоступностью
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", remote.ErrUnavailable, err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			msg = errResp.Error
			if errResp.Message != "" {
				msg += ": " + errResp.Message
			}
		}
		return fmt.Errorf("%w: server error (%d): %s", statusError(resp.StatusCode), resp.StatusCode, msg)
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// statusError отображает HTTP статус в sentinel ошибку remote
func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return remote.ErrUnauthorized
	case status == http.StatusNotFound:
		return remote.ErrNotFound
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return remote.ErrUnavailable
	default:
		return remote.ErrRejected
	}
}
