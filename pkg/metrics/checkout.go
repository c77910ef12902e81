package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts order writes and their failure codes.
type CheckoutMetrics struct {
	created          *prometheus.CounterVec
	failed           *prometheus.CounterVec
	sequenceFallback prometheus.Counter
}

// NewCheckoutMetrics registers checkout metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Orders written by checkout.",
	}, []string{"payment_method"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_failed_total",
		Help: "Checkout attempts rejected or rolled back, by error code.",
	}, []string{"code"})
	fallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_order_sequence_fallback_total",
		Help: "Order numbers allocated from the database because Redis was unavailable.",
	})
	reg.MustRegister(created, failed, fallback)
	return &CheckoutMetrics{created: created, failed: failed, sequenceFallback: fallback}
}

func (m *CheckoutMetrics) IncCreated(method string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *CheckoutMetrics) IncFailed(code string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *CheckoutMetrics) IncSequenceFallback() {
	if m == nil || m.sequenceFallback == nil {
		return
	}
	m.sequenceFallback.Inc()
}

// PaymentMetrics counts gateway outcomes per method.
type PaymentMetrics struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_operations_total",
		Help: "Payment gateway operations by method, operation, and resulting status.",
	}, []string{"method", "operation", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_duration_seconds",
		Help:    "Latency of payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "operation"})
	reg.MustRegister(outcomes, latency)
	return &PaymentMetrics{outcomes: outcomes, latency: latency}
}

func (m *PaymentMetrics) Observe(method, operation, status string, seconds float64) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(method), normalizeLabel(operation), normalizeLabel(status)).Inc()
	m.latency.WithLabelValues(normalizeLabel(method), normalizeLabel(operation)).Observe(seconds)
}
