package models

import (
	"encoding/json"
	"time"
)

// OperationType тип отложенной мутации
type OperationType string

// Типы операций offline очереди
const (
	OpStakeCreate    OperationType = "stake_create"
	OpStakeUpdate    OperationType = "stake_update"
	OpRewardClaim    OperationType = "reward_claim"
	OpUserDataUpdate OperationType = "user_data_update"
	OpSynergyUpdate  OperationType = "synergy_update"
)

// OperationTypes перечисляет все известные типы операций.
var OperationTypes = []OperationType{
	OpStakeCreate,
	OpStakeUpdate,
	OpRewardClaim,
	OpUserDataUpdate,
	OpSynergyUpdate,
}

// Valid сообщает, является ли тип известным.
func (t OperationType) Valid() bool {
	for _, known := range OperationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Operation представляет мутацию, ожидающую подтверждения удаленным хранилищем.
// Все поля неизменяемы после постановки в очередь, кроме RetryCount.
type Operation struct {
	ID         string          `json:"id"`          // ID уникальный идентификатор (UUID), он же ключ идемпотентности на сервере
	Type       OperationType   `json:"type"`        // Type тип операции
	UserID     string          `json:"user_id"`     // UserID владелец операции
	Payload    json.RawMessage `json:"payload"`     // Payload JSON тело операции, формат зависит от Type
	Signature  Signature       `json:"signature"`   // Signature подпись над (type, payload, user_id, timestamp)
	Seq        int64           `json:"seq"`         // Seq монотонный номер постановки, сохраняется при повторах
	Timestamp  int64           `json:"timestamp"`   // Timestamp время постановки (unix ms)
	RetryCount int             `json:"retry_count"` // RetryCount количество неудачных попыток, только растет
}

// EnqueuedAt возвращает время постановки в очередь.
func (o *Operation) EnqueuedAt() time.Time {
	return time.UnixMilli(o.Timestamp)
}

// Clone создает глубокую копию операции
func (o *Operation) Clone() Operation {
	payload := make(json.RawMessage, len(o.Payload))
	copy(payload, o.Payload)

	sig := o.Signature
	if sig.Value != nil {
		sig.Value = append([]byte(nil), o.Signature.Value...)
	}

	return Operation{
		ID:         o.ID,
		Type:       o.Type,
		UserID:     o.UserID,
		Payload:    payload,
		Signature:  sig,
		Seq:        o.Seq,
		Timestamp:  o.Timestamp,
		RetryCount: o.RetryCount,
	}
}

// StakeCreatePayload тело операции stake_create
type StakeCreatePayload struct {
	StakeID  string  `json:"stake_id"`
	Amount   float64 `json:"amount"`
	Rate     float64 `json:"rate"`
	LockDays int     `json:"lock_days"`
}

// StakeUpdatePayload тело операции stake_update.
// Nil поля не изменяются.
type StakeUpdatePayload struct {
	AccumulatedRewards *float64    `json:"accumulated_rewards,omitempty"`
	LastClaimAt        *int64      `json:"last_claim_at,omitempty"`
	Status             StakeStatus `json:"status,omitempty"`
	StakeID            string      `json:"stake_id"`
}

// RewardClaimPayload тело операции reward_claim
type RewardClaimPayload struct {
	StakeID string  `json:"stake_id"`
	Amount  float64 `json:"amount"`
}

// UserDataUpdatePayload тело операции user_data_update.
// Balance и TotalEarned абсолютные значения после изменения, Delta изменение баланса,
// которое их произвело.
type UserDataUpdatePayload struct {
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
	Delta       float64 `json:"delta"`
}

// SynergyUpdatePayload тело операции synergy_update
type SynergyUpdatePayload struct {
	Synergy Synergy `json:"synergy"`
}
