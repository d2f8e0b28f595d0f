package tasks

import (
	"context"
	"log/slog"
	"time"

	"booking_etl/internal/metrics"
	"booking_etl/internal/models"
)

// RowSource provides the current aggregation table
type RowSource interface {
	Rows() []models.AggregationRow
	Total() int
}

// SnapshotTask periodically logs the running aggregation table.
// It implements scheduler.Task.
type SnapshotTask struct {
	source   RowSource
	interval time.Duration
	limit    int // rows written to the log per snapshot
	metrics  *metrics.Metrics
}

func NewSnapshotTask(source RowSource, interval time.Duration, m *metrics.Metrics) *SnapshotTask {
	return &SnapshotTask{source: source, interval: interval, limit: 20, metrics: m}
}

func (t *SnapshotTask) Name() string {
	return "aggregation_snapshot"
}

func (t *SnapshotTask) Interval() time.Duration {
	return t.interval
}

// Run logs the leading rows of the current snapshot
func (t *SnapshotTask) Run(ctx context.Context) error {
	rows := t.source.Rows()
	t.metrics.SetAggregationRows(len(rows))

	slog.Info("Aggregation snapshot", "rows", len(rows), "passenger_legs", t.source.Total())
	for i, r := range rows {
		if i >= t.limit || ctx.Err() != nil {
			break
		}
		slog.Info("Aggregation row",
			"season", r.Season,
			"weekday", r.Weekday,
			"destination_country", r.DestinationCountry,
			"passenger_count", r.PassengerCount,
		)
	}
	return nil
}
