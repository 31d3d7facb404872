package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrOffline очередь не обрабатывается без связи
	ErrOffline = errors.New("client is offline")

	// ErrSyncInProgress другой проход процессора уже выполняется
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInvalidSignature подпись операции не прошла проверку
	ErrInvalidSignature = errors.New("invalid operation signature")

	// ErrPermanentFailure операция исчерпала попытки и удалена из очереди
	ErrPermanentFailure = errors.New("operation permanently failed")

	// ErrBalanceDivergence новый баланс слишком далек от удаленного
	ErrBalanceDivergence = errors.New("balance diverges from remote")

	// ErrNotLoaded снапшот сессии еще не загружен
	ErrNotLoaded = errors.New("snapshot not loaded")

	// ErrInsufficientBalance на балансе недостаточно средств
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStakeNotFound стейк не найден в снапшоте
	ErrStakeNotFound = errors.New("stake not found")
)

// IntegrityError хеш кэшированного снапшота не совпал с сохраненным
type IntegrityError struct {
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("snapshot integrity check failed: expected hash %s, got %s", e.Expected, e.Actual)
}
