package metrics

import "github.com/prometheus/client_golang/prometheus"

// ImportMetrics exposes counters/histograms for CSV import batches.
type ImportMetrics struct {
	rowsTotal       *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec
	bookingsCreated prometheus.Counter
	batchDuration   prometheus.Histogram
}

func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "importer",
			Name:      "rows_total",
			Help:      "Imported CSV rows by outcome",
		}, []string{"outcome"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "importer",
			Name:      "batches_total",
			Help:      "Import batches by terminal status",
		}, []string{"status"}),
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "importer",
			Name:      "bookings_created_total",
			Help:      "Remote bookings created from imported rows",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "importer",
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of one import batch",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.rowsTotal, m.batchesTotal, m.bookingsCreated, m.batchDuration)
	return m
}

// ObserveRow records one processed row. Outcomes: past, booked, no_mapping,
// mapping_error, remote_error, skipped.
func (m *ImportMetrics) ObserveRow(outcome string) {
	if m == nil {
		return
	}
	m.rowsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatch records one finished batch. Statuses: ok, validation_error,
// no_credentials.
func (m *ImportMetrics) ObserveBatch(status string, seconds float64) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.batchDuration.Observe(seconds)
	}
}

func (m *ImportMetrics) ObserveBookingCreated() {
	if m == nil {
		return
	}
	m.bookingsCreated.Inc()
}

// RefreshMetrics exposes counters/histograms for the token refresh worker.
type RefreshMetrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
}

func NewRefreshMetrics(reg prometheus.Registerer) *RefreshMetrics {
	m := &RefreshMetrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "importer",
			Subsystem: "token_refresh",
			Name:      "total",
			Help:      "Per-credential refresh attempts by status",
		}, []string{"status"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "importer",
			Subsystem: "token_refresh",
			Name:      "duration_seconds",
			Help:      "Duration of one credential refresh round trip",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.refreshTotal, m.refreshDuration)
	return m
}

// ObserveRefresh records one refresh attempt. Statuses: ok, error.
func (m *RefreshMetrics) ObserveRefresh(status string, seconds float64) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(status).Inc()
	m.refreshDuration.Observe(seconds)
}
