package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequests tracks intake responses by event type and status
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total number of webhook requests by event type and status",
		},
		[]string{"event", "status"},
	)

	// DispatchTotal tracks dispatcher outcomes by event type
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "Total number of dispatched webhook jobs by event type and outcome",
		},
		[]string{"event", "outcome"},
	)

	// RenderDuration tracks template render duration in seconds
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Duration of template renders in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"template", "engine", "status"},
	)

	// DeliveryTotal tracks chat deliveries by destination kind
	DeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_total",
			Help: "Total number of chat deliveries by destination kind and status",
		},
		[]string{"kind", "status"},
	)

	// QueueDepth tracks the number of jobs waiting for a worker
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of webhook jobs waiting in the dispatch queue",
		},
	)

	// RenderEngineErrors tracks render engine API errors by status code
	RenderEngineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_errors_total",
			Help: "Total number of render engine errors by type and status code",
		},
		[]string{"error_type", "status_code"},
	)
)

// RecordWebhookRequest records one intake response
func RecordWebhookRequest(event, status string) {
	if event == "" {
		event = "unknown"
	}
	WebhookRequests.WithLabelValues(event, status).Inc()
}

// RecordDispatch records the outcome of one dispatched job
func RecordDispatch(event, outcome string) {
	DispatchTotal.WithLabelValues(event, outcome).Inc()
}

// RecordRenderDuration records the duration of one render
func RecordRenderDuration(template, engine, status string, duration float64) {
	RenderDuration.WithLabelValues(template, engine, status).Observe(duration)
}

// RecordDelivery records one delivery attempt
func RecordDelivery(kind, status string) {
	DeliveryTotal.WithLabelValues(kind, status).Inc()
}

// SetQueueDepth records the current queue depth
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

// RecordRenderEngineError records a render engine error
func RecordRenderEngineError(errorType string, statusCode int) {
	RenderEngineErrors.WithLabelValues(errorType, strconv.Itoa(statusCode)).Inc()
}
