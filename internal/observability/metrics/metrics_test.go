package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)

	m.ObserveRow("past")
	m.ObserveRow("past")
	m.ObserveRow("booked")
	m.ObserveBatch("ok", 1.2)
	m.ObserveBatch("no_credentials", 0)
	m.ObserveBookingCreated()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.rowsTotal.WithLabelValues("past")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rowsTotal.WithLabelValues("booked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingsCreated))

	count, err := testutil.GatherAndCount(reg,
		"importer_rows_total", "importer_batches_total", "importer_bookings_created_total")
	require.NoError(t, err)
	// Two outcome series, two status series, one plain counter.
	assert.Equal(t, 5, count)
}

func TestRefreshMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRefreshMetrics(reg)

	m.ObserveRefresh("ok", 0.4)
	m.ObserveRefresh("ok", 0.6)
	m.ObserveRefresh("error", 2.1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.refreshTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.refreshTotal.WithLabelValues("error")))
}

func TestMetricsNilSafe(t *testing.T) {
	var im *ImportMetrics
	im.ObserveRow("past")
	im.ObserveBatch("ok", 0.1)
	im.ObserveBookingCreated()

	var rm *RefreshMetrics
	rm.ObserveRefresh("ok", 0.1)
}
