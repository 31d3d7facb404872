package queue

import (
	"errors"
	"fmt"

	"github.com/iudanet/minesync/internal/models"
)

var (
	// ErrRateLimited лимит операций данного типа за окно исчерпан
	ErrRateLimited = errors.New("operation rate limit exceeded")

	// ErrOperationNotFound операции с таким ID нет в очереди
	ErrOperationNotFound = errors.New("operation not found in queue")
)

// ValidationError операция отклонена доменной проверкой при постановке в очередь
type ValidationError struct {
	Err  error
	Type models.OperationType
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s operation: %v", e.Type, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
