package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for appointment flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	bookingLatency   *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Total booking attempts",
		}, []string{"status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Total appointment lifecycle transitions",
		}, []string{"transition"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "appointments",
			Name:      "booking_latency_seconds",
			Help:      "Latency of booking request processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.bookingLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveTransition(transition string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(transition).Inc()
}

func (m *BookingMetrics) ObserveBookingLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingLatency.WithLabelValues(status).Observe(seconds)
}
