package api

// TokenRequest представляет запрос на выдачу токена сессии
type TokenRequest struct {
	UserID string `json:"user_id"` // идентификатор игрока
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	UserID      string `json:"user_id"`      // идентификатор игрока из токена
	ExpiresIn   int64  `json:"expires_in"`   // время жизни access token в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse ответ health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// IdempotencyKeyHeader заголовок с ID операции для дедупликации на сервере
const IdempotencyKeyHeader = "Idempotency-Key"
