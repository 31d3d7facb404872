package models

import "time"

// Severity уровень серьезности события безопасности
type Severity string

// Уровни серьезности в порядке возрастания
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank возвращает порядковый номер уровня (0 для неизвестного)
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid сообщает, является ли уровень известным
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast сообщает, что s не ниже min
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// Типы событий безопасности
const (
	EventInvalidSignature     = "invalid_operation_signature"
	EventInvalidPayload       = "invalid_operation_payload"
	EventSuspiciousBalance    = "suspicious_balance_change"
	EventDataDiscrepancy      = "data_discrepancy"
	EventIntegrityViolation   = "data_integrity_violation"
	EventBalanceDivergence    = "balance_divergence"
	EventOperationBlocked     = "operation_blocked"
	EventOperationRejected    = "operation_rejected"
	EventRateLimitExceeded    = "rate_limit_exceeded"
	EventPermanentSyncFailure = "permanent_sync_failure"
)

// SecurityEvent запись журнала безопасности. Только добавление, хранится только удаленно.
type SecurityEvent struct {
	Details   map[string]any `json:"details"`
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Severity  Severity       `json:"severity"`
	Timestamp int64          `json:"timestamp"` // unix ms
}

// NewSecurityEvent создает событие с текущим временем at
func NewSecurityEvent(userID, eventType string, severity Severity, details map[string]any, at time.Time) SecurityEvent {
	if details == nil {
		details = map[string]any{}
	}
	return SecurityEvent{
		UserID:    userID,
		EventType: eventType,
		Severity:  severity,
		Details:   details,
		Timestamp: at.UnixMilli(),
	}
}
