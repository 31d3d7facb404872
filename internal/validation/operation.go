package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/iudanet/minesync/internal/models"
)

// Limits границы, в которых операция считается допустимой
type Limits struct {
	MaxBalanceChange float64
	MinStakeAmount   float64
	MaxStakeAmount   float64
	MaxStakeRate     float64
	MaxLockDays      int
}

// DefaultLimits возвращает границы по умолчанию
func DefaultLimits() Limits {
	return Limits{
		MaxBalanceChange: 10000,
		MinStakeAmount:   1,
		MaxStakeAmount:   1_000_000,
		MaxStakeRate:     0.5,
		MaxLockDays:      365,
	}
}

// ErrBalanceChangeTooLarge изменение баланса превышает MaxBalanceChange
var ErrBalanceChangeTooLarge = errors.New("balance change exceeds allowed maximum")

// ErrInvalidPayload тело операции не соответствует своему типу или границам
var ErrInvalidPayload = errors.New("invalid operation payload")

// ValidateOperation проверяет тело операции заданного типа.
// Возвращает ошибку, оборачивающую ErrBalanceChangeTooLarge или ErrInvalidPayload.
func ValidateOperation(opType models.OperationType, payload json.RawMessage, limits Limits) error {
	switch opType {
	case models.OpStakeCreate:
		var p models.StakeCreatePayload
		if err := decode(payload, &p); err != nil {
			return err
		}
		return ValidateStakeCreate(p, limits)
	case models.OpStakeUpdate:
		var p models.StakeUpdatePayload
		if err := decode(payload, &p); err != nil {
			return err
		}
		return ValidateStakeUpdate(p)
	case models.OpRewardClaim:
		var p models.RewardClaimPayload
		if err := decode(payload, &p); err != nil {
			return err
		}
		return ValidateRewardClaim(p, limits)
	case models.OpUserDataUpdate:
		var p models.UserDataUpdatePayload
		if err := decode(payload, &p); err != nil {
			return err
		}
		return ValidateUserDataUpdate(p, limits)
	case models.OpSynergyUpdate:
		var p models.SynergyUpdatePayload
		if err := decode(payload, &p); err != nil {
			return err
		}
		return ValidateSynergy(p.Synergy)
	default:
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidPayload, opType)
	}
}

// ValidateBalanceChange проверяет |newValue - oldValue| <= MaxBalanceChange
func ValidateBalanceChange(oldValue, newValue float64, limits Limits) error {
	if !isFinite(oldValue) || !isFinite(newValue) {
		return fmt.Errorf("%w: balance must be a finite number", ErrInvalidPayload)
	}

	if delta := math.Abs(newValue - oldValue); delta > limits.MaxBalanceChange {
		return fmt.Errorf("%w: |%.2f - %.2f| = %.2f > %.2f",
			ErrBalanceChangeTooLarge, newValue, oldValue, delta, limits.MaxBalanceChange)
	}

	return nil
}

// ValidateUserDataUpdate проверяет обновление баланса
func ValidateUserDataUpdate(p models.UserDataUpdatePayload, limits Limits) error {
	if !isFinite(p.Balance) || !isFinite(p.TotalEarned) || !isFinite(p.Delta) {
		return fmt.Errorf("%w: values must be finite numbers", ErrInvalidPayload)
	}

	if p.Balance < 0 {
		return fmt.Errorf("%w: balance cannot be negative", ErrInvalidPayload)
	}

	if p.TotalEarned < 0 {
		return fmt.Errorf("%w: total earned cannot be negative", ErrInvalidPayload)
	}

	return ValidateBalanceChange(p.Balance-p.Delta, p.Balance, limits)
}

// ValidateStakeCreate проверяет сумму, ставку и срок нового стейка
func ValidateStakeCreate(p models.StakeCreatePayload, limits Limits) error {
	if p.StakeID == "" {
		return fmt.Errorf("%w: stake id cannot be empty", ErrInvalidPayload)
	}

	if !isFinite(p.Amount) || p.Amount < limits.MinStakeAmount || p.Amount > limits.MaxStakeAmount {
		return fmt.Errorf("%w: stake amount %.2f out of range [%.2f, %.2f]",
			ErrInvalidPayload, p.Amount, limits.MinStakeAmount, limits.MaxStakeAmount)
	}

	if !isFinite(p.Rate) || p.Rate <= 0 || p.Rate > limits.MaxStakeRate {
		return fmt.Errorf("%w: stake rate %.4f out of range (0, %.4f]",
			ErrInvalidPayload, p.Rate, limits.MaxStakeRate)
	}

	if p.LockDays < 0 || (limits.MaxLockDays > 0 && p.LockDays > limits.MaxLockDays) {
		return fmt.Errorf("%w: lock days %d out of range [0, %d]", ErrInvalidPayload, p.LockDays, limits.MaxLockDays)
	}

	return nil
}

// ValidateStakeUpdate проверяет обновление полей стейка
func ValidateStakeUpdate(p models.StakeUpdatePayload) error {
	if p.StakeID == "" {
		return fmt.Errorf("%w: stake id cannot be empty", ErrInvalidPayload)
	}

	if p.AccumulatedRewards == nil && p.LastClaimAt == nil && p.Status == "" {
		return fmt.Errorf("%w: stake update has no fields", ErrInvalidPayload)
	}

	if p.AccumulatedRewards != nil && (!isFinite(*p.AccumulatedRewards) || *p.AccumulatedRewards < 0) {
		return fmt.Errorf("%w: accumulated rewards must be non-negative", ErrInvalidPayload)
	}

	switch p.Status {
	case "", models.StakeActive, models.StakeCompleted, models.StakeCancelled:
	default:
		return fmt.Errorf("%w: unknown stake status %q", ErrInvalidPayload, p.Status)
	}

	return nil
}

// ValidateRewardClaim проверяет сумму получения награды
func ValidateRewardClaim(p models.RewardClaimPayload, limits Limits) error {
	if p.StakeID == "" {
		return fmt.Errorf("%w: stake id cannot be empty", ErrInvalidPayload)
	}

	if !isFinite(p.Amount) || p.Amount <= 0 {
		return fmt.Errorf("%w: claim amount must be positive", ErrInvalidPayload)
	}

	if p.Amount > limits.MaxBalanceChange {
		return fmt.Errorf("%w: claim of %.2f exceeds %.2f", ErrBalanceChangeTooLarge, p.Amount, limits.MaxBalanceChange)
	}

	return nil
}

// ValidateSynergy проверяет множители синергии
func ValidateSynergy(s models.Synergy) error {
	if len(s) == 0 {
		return fmt.Errorf("%w: synergy cannot be empty", ErrInvalidPayload)
	}

	for name, mult := range s {
		if name == "" {
			return fmt.Errorf("%w: synergy name cannot be empty", ErrInvalidPayload)
		}
		if !isFinite(mult) || mult < 0 {
			return fmt.Errorf("%w: synergy %q multiplier must be non-negative", ErrInvalidPayload, name)
		}
	}

	return nil
}

func decode(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload is empty", ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
