// Package metrics содержит prometheus метрики клиента и сервера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты обработки операции
const (
	ResultSuccess  = "success"
	ResultRetry    = "retry"
	ResultDropped  = "dropped"
	ResultRejected = "rejected"
	ResultBlocked  = "blocked"
	ResultInvalid  = "invalid_signature"
)

var (
	// QueueEnqueued операции, поставленные в очередь, по типу
	QueueEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minesync_queue_enqueued_total",
		Help: "Operations accepted into the offline queue by type",
	}, []string{"type"})

	// QueueRefused операции, не допущенные в очередь, по причине
	QueueRefused = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minesync_queue_refused_total",
		Help: "Operations refused at enqueue by reason",
	}, []string{"reason"})

	// QueueEvicted операции, вытесненные из переполненной очереди
	QueueEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minesync_queue_evicted_total",
		Help: "Operations evicted from the head of a full queue",
	})

	// OperationsProcessed результаты обработки операций процессором
	OperationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minesync_operations_processed_total",
		Help: "Operations handled by the queue processor by type and result",
	}, []string{"type", "result"})

	// DrainDuration длительность одного прохода процессора
	DrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "minesync_drain_duration_seconds",
		Help:    "Duration of a queue drain",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	// ReconcileCorrections поля, перезаписанные сверкой
	ReconcileCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minesync_reconcile_corrections_total",
		Help: "Cached numeric fields overwritten by the reconciler",
	}, []string{"field"})

	// SnapshotLoads источник снапшота при загрузке
	SnapshotLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minesync_snapshot_loads_total",
		Help: "Snapshot loads by winning source",
	}, []string{"source"})

	// IntegrityViolations снапшоты, не прошедшие проверку хеша
	IntegrityViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minesync_integrity_violations_total",
		Help: "Cached snapshots that failed hash validation",
	})

	// SecurityEvents записанные события безопасности
	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minesync_security_events_total",
		Help: "Security events by type and severity",
	}, []string{"event_type", "severity"})

	// HTTPRequests запросы к серверу
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minesync_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration длительность запросов к серверу
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minesync_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
