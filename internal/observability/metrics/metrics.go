package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking and webhook
// flows. All methods are nil-safe so handlers can run without metrics wired.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	webhookTotal       *prometheus.CounterVec
	webhookLatency     *prometheus.HistogramVec
	availabilityChecks prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "zoom",
			Name:      "webhook_total",
			Help:      "Total inbound Zoom webhooks",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "zoom",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Zoom webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		availabilityChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "appointments",
			Name:      "availability_checks_total",
			Help:      "Total availability day queries",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.webhookTotal, m.webhookLatency, m.availabilityChecks)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *SchedulingMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveAvailabilityCheck() {
	if m == nil {
		return
	}
	m.availabilityChecks.Inc()
}
