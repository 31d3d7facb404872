package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/minesync/internal/models"
)

// SaveSecurityEvent appends event to the audit log
func (s *Storage) SaveSecurityEvent(ctx context.Context, event models.SecurityEvent) error {
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	ts := event.Timestamp
	if ts <= 0 {
		ts = s.now().UnixMilli()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO security_events (user_id, event_type, severity, severity_rank, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.UserID, event.EventType, string(event.Severity), event.Severity.Rank(), string(detailsJSON), ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// ListSecurityEvents returns user events since the timestamp with severity not lower than minSeverity
func (s *Storage) ListSecurityEvents(ctx context.Context, userID string, since int64, minSeverity models.Severity) ([]models.SecurityEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, event_type, severity, details, timestamp
		FROM security_events
		WHERE user_id = ? AND timestamp >= ? AND severity_rank >= ?
		ORDER BY timestamp, id`,
		userID, since, minSeverity.Rank(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]models.SecurityEvent, 0)
	for rows.Next() {
		var (
			e        models.SecurityEvent
			severity string
			details  string
		)
		if err := rows.Scan(&e.UserID, &e.EventType, &severity, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		e.Severity = models.Severity(severity)
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate security events: %w", err)
	}

	return events, nil
}
