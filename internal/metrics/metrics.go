package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Payment metrics
	PaymentsTotal        *prometheus.CounterVec
	PaymentsSuccessTotal *prometheus.CounterVec
	PaymentsFailedTotal  *prometheus.CounterVec
	PaymentAmountTotal   *prometheus.CounterVec
	PaymentDuration      *prometheus.HistogramVec

	// Refund metrics
	RefundsTotal      *prometheus.CounterVec
	RefundAmountTotal *prometheus.CounterVec

	// Webhook delivery metrics
	WebhooksTotal       *prometheus.CounterVec
	WebhookRetriesTotal *prometheus.CounterVec
	WebhookDeadTotal    *prometheus.CounterVec
	WebhookDuration     *prometheus.HistogramVec
	WebhookQueueDepth   prometheus.Gauge

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payments_total",
				Help: "Total number of payments intaken",
			},
			[]string{"payment_method"},
		),
		PaymentsSuccessTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payments_success_total",
				Help: "Total number of payments that completed",
			},
			[]string{"payment_method"},
		),
		PaymentsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payments_failed_total",
				Help: "Total number of payments that failed processing",
			},
			[]string{"payment_method"},
		),
		PaymentAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payment_amount_total",
				Help: "Total payment amount processed, by currency",
			},
			[]string{"currency"},
		),
		PaymentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_payment_processing_duration_seconds",
				Help:    "Time taken for the processor to resolve a payment outcome",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome"},
		),

		RefundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_refunds_total",
				Help: "Total number of refund requests",
			},
			[]string{"status"},
		),
		RefundAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_refund_amount_total",
				Help: "Total refund amount processed, by currency",
			},
			[]string{"currency"},
		),

		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhooks_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"event_type", "outcome"},
		),
		WebhookRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhook_retries_total",
				Help: "Total number of webhook redeliveries after a failed attempt",
			},
			[]string{"event_type"},
		),
		WebhookDeadTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhook_dead_total",
				Help: "Total number of webhook events that exhausted all retries",
			},
			[]string{"event_type"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_webhook_delivery_duration_seconds",
				Help:    "Duration of outbound webhook HTTP calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"event_type"},
		),
		WebhookQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_webhook_queue_depth",
				Help: "Number of webhook events currently pending delivery",
			},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_rate_limit_hits_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"limit_type"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_db_connections_active",
				Help: "Number of active database connections",
			},
		),
	}
}

// ObservePaymentIntake records a newly accepted payment.
func (m *Metrics) ObservePaymentIntake(paymentMethod, currency string, amount float64) {
	m.PaymentsTotal.WithLabelValues(paymentMethod).Inc()
	m.PaymentAmountTotal.WithLabelValues(currency).Add(amount)
}

// ObservePaymentOutcome records the processor's resolution of a payment.
func (m *Metrics) ObservePaymentOutcome(paymentMethod string, success bool, duration time.Duration) {
	outcome := "failed"
	if success {
		outcome = "completed"
		m.PaymentsSuccessTotal.WithLabelValues(paymentMethod).Inc()
	} else {
		m.PaymentsFailedTotal.WithLabelValues(paymentMethod).Inc()
	}
	m.PaymentDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveRefund records a refund request outcome.
func (m *Metrics) ObserveRefund(status, currency string, amount float64) {
	m.RefundsTotal.WithLabelValues(status).Inc()
	if status == "processed" {
		m.RefundAmountTotal.WithLabelValues(currency).Add(amount)
	}
}

// ObserveWebhookAttempt records one webhook delivery attempt.
func (m *Metrics) ObserveWebhookAttempt(eventType string, success bool, duration time.Duration, retryCount int) {
	outcome := "failed"
	if success {
		outcome = "delivered"
	}
	m.WebhooksTotal.WithLabelValues(eventType, outcome).Inc()
	m.WebhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
	if retryCount > 0 {
		m.WebhookRetriesTotal.WithLabelValues(eventType).Inc()
	}
}

// ObserveWebhookExhausted records an event that ran out of retries.
func (m *Metrics) ObserveWebhookExhausted(eventType string) {
	m.WebhookDeadTotal.WithLabelValues(eventType).Inc()
}

// ObserveRateLimit records a rate limit rejection.
func (m *Metrics) ObserveRateLimit(limitType string) {
	m.RateLimitHitsTotal.WithLabelValues(limitType).Inc()
}

// ObserveDBQuery records a database query's duration.
func (m *Metrics) ObserveDBQuery(operation string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
