package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrStakeNotFound indicates that stake does not exist or belongs to another user
	ErrStakeNotFound = errors.New("stake not found")

	// ErrStakeExists indicates that stake with this ID already exists
	ErrStakeExists = errors.New("stake already exists")

	// ErrStakeNotActive indicates that rewards can't be claimed from a finished stake
	ErrStakeNotActive = errors.New("stake is not active")

	// ErrInsufficientBalance indicates that balance can't cover the stake amount
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBalanceChangeTooLarge indicates that balance update exceeds the allowed delta
	ErrBalanceChangeTooLarge = errors.New("balance change too large")

	// ErrInvalidAmount indicates non-positive or oversized amount
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrGameDataNotFound indicates that user has no saved game data
	ErrGameDataNotFound = errors.New("game data not found")
)
