package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for a pipeline run.
// All helpers are safe to call on a nil *Metrics.
type Metrics struct {
	// Records leaving the validator by entity and outcome (accepted, rejected)
	RecordsProcessed *prometheus.CounterVec

	// Rejections by entity and reason code
	Rejections *prometheus.CounterVec

	// Fields replaced with null by entity and field name
	NulledFields *prometheus.CounterVec

	// Accepted bookings left out of temporal aggregation by cause
	ReferenceExclusions *prometheus.CounterVec

	// Batches flushed to a destination, by destination and result (ok, error)
	BatchWrites *prometheus.CounterVec

	// Wall clock duration of a complete run by command
	RunDuration *prometheus.HistogramVec

	// Rows in the latest aggregation snapshot
	AggregationRows prometheus.Gauge
}

// New creates the pipeline metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RecordsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_etl_records_processed_total",
			Help: "Records validated by entity and outcome",
		}, []string{"entity", "outcome"}),

		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_etl_rejections_total",
			Help: "Rejected records by entity and reason",
		}, []string{"entity", "reason"}),

		NulledFields: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_etl_nulled_fields_total",
			Help: "Fields nulled during validation by entity and field",
		}, []string{"entity", "field"}),

		ReferenceExclusions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_etl_reference_exclusions_total",
			Help: "Accepted bookings excluded from aggregation by cause",
		}, []string{"cause"}),

		BatchWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_etl_batch_writes_total",
			Help: "Batches flushed to a destination by result",
		}, []string{"destination", "result"}),

		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booking_etl_run_duration_seconds",
			Help:    "Duration of a complete pipeline run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"command"}),

		AggregationRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "booking_etl_aggregation_rows",
			Help: "Rows in the latest aggregation snapshot",
		}),
	}
}

// IncrementProcessed records a validated record
func (m *Metrics) IncrementProcessed(entity, outcome string) {
	if m != nil {
		m.RecordsProcessed.WithLabelValues(entity, outcome).Inc()
	}
}

// IncrementRejection records a rejection
func (m *Metrics) IncrementRejection(entity, reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(entity, reason).Inc()
	}
}

// IncrementNulled records a nulled field
func (m *Metrics) IncrementNulled(entity, field string) {
	if m != nil {
		m.NulledFields.WithLabelValues(entity, field).Inc()
	}
}

// IncrementExclusion records a reference exclusion
func (m *Metrics) IncrementExclusion(cause string) {
	if m != nil {
		m.ReferenceExclusions.WithLabelValues(cause).Inc()
	}
}

// IncrementBatchWrite records a flushed batch
func (m *Metrics) IncrementBatchWrite(destination string, err error) {
	if m != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.BatchWrites.WithLabelValues(destination, result).Inc()
	}
}

// ObserveRunDuration records how long a command took
func (m *Metrics) ObserveRunDuration(command string, d time.Duration) {
	if m != nil {
		m.RunDuration.WithLabelValues(command).Observe(d.Seconds())
	}
}

// SetAggregationRows records the size of the latest snapshot
func (m *Metrics) SetAggregationRows(n int) {
	if m != nil {
		m.AggregationRows.Set(float64(n))
	}
}
