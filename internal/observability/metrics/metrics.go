package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	bookingLatency     *prometheus.HistogramVec
	slotsServed        prometheus.Counter
	sideEffectFailures *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of booking pipeline runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		slotsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "slot_listings_total",
			Help:      "Total availability listings served",
		}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "side_effect_failures_total",
			Help:      "Post-booking side effects that failed",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.slotsServed, m.sideEffectFailures)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveSlotListing() {
	if m == nil {
		return
	}
	m.slotsServed.Inc()
}

func (m *BookingMetrics) ObserveSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}
