// Package security записывает события безопасности в удаленный журнал.
package security

import (
	"context"
	"log/slog"

	"github.com/iudanet/minesync/internal/metrics"
	"github.com/iudanet/minesync/internal/models"
)

// EventSink хранилище журнала безопасности
type EventSink interface {
	RecordSecurityEvent(ctx context.Context, event models.SecurityEvent) error
}

// Recorder пишет события в удаленное хранилище.
// Если запись не удалась (offline), событие остается только в логе.
type Recorder struct {
	sink   EventSink
	logger *slog.Logger
}

// NewRecorder создает Recorder. sink может быть nil.
func NewRecorder(sink EventSink, logger *slog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Record записывает событие
func (r *Recorder) Record(ctx context.Context, event models.SecurityEvent) {
	metrics.SecurityEvents.WithLabelValues(event.EventType, string(event.Severity)).Inc()

	attrs := []any{
		"user_id", event.UserID,
		"event_type", event.EventType,
		"severity", event.Severity,
		"details", event.Details,
	}

	if event.Severity.AtLeast(models.SeverityHigh) {
		r.logger.Warn("Security event", attrs...)
	} else {
		r.logger.Info("Security event", attrs...)
	}

	if r.sink == nil {
		return
	}

	if err := r.sink.RecordSecurityEvent(ctx, event); err != nil {
		r.logger.Error("Failed to store security event",
			"user_id", event.UserID,
			"event_type", event.EventType,
			"error", err)
	}
}
