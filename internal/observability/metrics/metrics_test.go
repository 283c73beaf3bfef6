package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("booked")
	m.ObserveBooking("booked")
	m.ObserveBooking("conflict")
	m.ObserveTransition("cancel")
	m.ObserveBookingLatency("booked", 0.2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.bookingsTotal.WithLabelValues("booked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingsTotal.WithLabelValues("conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitionsTotal.WithLabelValues("cancel")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	assert.NotPanics(t, func() {
		m.ObserveBooking("booked")
		m.ObserveTransition("cancel")
		m.ObserveBookingLatency("booked", 0.1)
	})
}
