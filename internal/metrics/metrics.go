// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatewayCalls        *prometheus.CounterVec
	gatewayDuration     *prometheus.HistogramVec
	statusTransitions   *prometheus.CounterVec
	paymentOutcomes     *prometheus.CounterVec
	operatorListDegrade prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nyasabox",
			Subsystem: "payment_gateway",
			Name:      "requests_total",
			Help:      "HTTP attempts made to the payment gateway.",
		}, []string{"operation", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nyasabox",
			Subsystem: "payment_gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of payment gateway attempts.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"operation"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nyasabox",
			Subsystem: "distribution",
			Name:      "status_transitions_total",
			Help:      "Distribution request status transitions.",
		}, []string{"from", "to"}),
		paymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nyasabox",
			Subsystem: "payments",
			Name:      "outcomes_total",
			Help:      "Terminal payment transaction outcomes.",
		}, []string{"status"}),
		operatorListDegrade: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nyasabox",
			Subsystem: "payments",
			Name:      "operator_list_degraded_total",
			Help:      "Times the operator list could not be fetched.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.gatewayCalls, m.gatewayDuration, m.statusTransitions, m.paymentOutcomes, m.operatorListDegrade)
	}
	return m
}

func (m *Metrics) ObserveGatewayCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(operation, outcome).Inc()
	m.gatewayDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) PaymentOutcome(status string) {
	if m == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) OperatorListDegraded() {
	if m == nil {
		return
	}
	m.operatorListDegrade.Inc()
}
