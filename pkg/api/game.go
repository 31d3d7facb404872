package api

import "encoding/json"

// UserResponse числовые поля пользователя
type UserResponse struct {
	ID          string  `json:"id"`
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
	LastActive  int64   `json:"last_active"` // unix ms
}

// BalanceUpdateRequest запрос на запись баланса.
// Сервер отклоняет изменение больше своего MaxBalanceChange (409).
type BalanceUpdateRequest struct {
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
}

// StakeCreateRequest запрос на создание стейка
type StakeCreateRequest struct {
	ID        string  `json:"id"`
	Amount    float64 `json:"amount"`
	Rate      float64 `json:"rate"`
	StartedAt int64   `json:"started_at"` // unix ms
	LockDays  int     `json:"lock_days"`
}

// StakeUpdateRequest частичное обновление стейка, nil поля не меняются
type StakeUpdateRequest struct {
	AccumulatedRewards *float64 `json:"accumulated_rewards,omitempty"`
	LastClaimAt        *int64   `json:"last_claim_at,omitempty"`
	Status             string   `json:"status,omitempty"`
}

// StakeResponse стейк в ответах сервера
type StakeResponse struct {
	ID                 string  `json:"id"`
	Status             string  `json:"status"`
	Amount             float64 `json:"amount"`
	Rate               float64 `json:"rate"`
	AccumulatedRewards float64 `json:"accumulated_rewards"`
	ClaimedTotal       float64 `json:"claimed_total"`
	StartedAt          int64   `json:"started_at"`
	LastClaimAt        int64   `json:"last_claim_at"`
	LockDays           int     `json:"lock_days"`
}

// RewardClaimRequest запрос на получение награды со стейка
type RewardClaimRequest struct {
	Amount    float64 `json:"amount"`
	ClaimedAt int64   `json:"claimed_at"` // unix ms
}

// RewardClaimResponse балансы после получения награды
type RewardClaimResponse struct {
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
}

// SynergyRequest запрос на запись множителей синергии
type SynergyRequest struct {
	Synergy map[string]float64 `json:"synergy"`
}

// GameData сериализованный снапшот экономики с отметкой времени сервера
type GameData struct {
	GameData    json.RawMessage `json:"game_data"`
	LastUpdated int64           `json:"last_updated"` // unix ms
}

// SecurityEvent событие журнала безопасности
type SecurityEvent struct {
	Details   map[string]any `json:"details"`
	UserID    string         `json:"user_id,omitempty"` // заполняется сервером из токена
	EventType string         `json:"event_type"`
	Severity  string         `json:"severity"`
	Timestamp int64          `json:"timestamp"` // unix ms
}

// SecurityEventsResponse список событий
type SecurityEventsResponse struct {
	Events []SecurityEvent `json:"events"`
}
