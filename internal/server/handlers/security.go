package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/server/storage"
	"github.com/iudanet/minesync/pkg/api"
)

// SecurityHandler обрабатывает журнал событий безопасности
type SecurityHandler struct {
	events storage.SecurityEventStorage
	base
}

// NewSecurityHandler создает handler журнала безопасности
func NewSecurityHandler(logger *slog.Logger, events storage.SecurityEventStorage) *SecurityHandler {
	return &SecurityHandler{
		base:   base{logger: logger},
		events: events,
	}
}

// Record обрабатывает POST /api/v1/security-events
// user_id берется из токена, а не из тела запроса.
func (h *SecurityHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.SecurityEvent
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	severity := models.Severity(req.Severity)
	if req.EventType == "" || !severity.Valid() {
		h.sendError(w, "event_type and a known severity are required", http.StatusBadRequest)
		return
	}

	event := models.SecurityEvent{
		Details:   req.Details,
		UserID:    userID,
		EventType: req.EventType,
		Severity:  severity,
		Timestamp: req.Timestamp,
	}
	if err := h.events.SaveSecurityEvent(r.Context(), event); err != nil {
		h.storageError(w, r, "save security event", err)
		return
	}

	if severity.AtLeast(models.SeverityHigh) {
		h.logger.WarnContext(r.Context(), "security event reported",
			slog.String("user_id", userID),
			slog.String("event_type", req.EventType),
			slog.String("severity", req.Severity))
	}
	w.WriteHeader(http.StatusCreated)
}

// List обрабатывает GET /api/v1/security-events?since=<unix ms>&min_severity=<level>
func (h *SecurityHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()

	var since int64
	if v := q.Get("since"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.sendError(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	minSeverity := models.Severity(q.Get("min_severity"))
	if minSeverity != "" && !minSeverity.Valid() {
		h.sendError(w, "invalid min_severity parameter", http.StatusBadRequest)
		return
	}

	events, err := h.events.ListSecurityEvents(r.Context(), userID, since, minSeverity)
	if err != nil {
		h.storageError(w, r, "list security events", err)
		return
	}

	resp := api.SecurityEventsResponse{Events: make([]api.SecurityEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, api.SecurityEvent{
			Details:   e.Details,
			UserID:    e.UserID,
			EventType: e.EventType,
			Severity:  string(e.Severity),
			Timestamp: e.Timestamp,
		})
	}
	h.sendJSON(w, resp, http.StatusOK)
}
