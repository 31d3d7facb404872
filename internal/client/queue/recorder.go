package queue

import (
	"context"

	"github.com/iudanet/minesync/internal/models"
)

//go:generate moq -out recorder_mock.go . SecurityRecorder

// SecurityRecorder записывает события безопасности.
// Ошибки записи обрабатывает сама реализация.
type SecurityRecorder interface {
	Record(ctx context.Context, event models.SecurityEvent)
}
