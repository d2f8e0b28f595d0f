package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"booking_etl/internal/aggregate"
	"booking_etl/internal/events"
	"booking_etl/internal/metrics"
	"booking_etl/internal/models"
	"booking_etl/internal/parser"
	"booking_etl/internal/reference"
	"booking_etl/internal/source"
	"booking_etl/internal/tasks"
	"booking_etl/internal/temporal"
	"booking_etl/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options tunes the concurrency and batching of a run
type Options struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

// Sinks are the clean and quarantine destinations of both entities
type Sinks struct {
	Airports          tasks.BatchWriter[models.AirportRecord]
	AirportQuarantine tasks.BatchWriter[models.RejectedRecord]
	Bookings          tasks.BatchWriter[models.ValidatedBooking]
	BookingQuarantine tasks.BatchWriter[models.RejectedRecord]
}

// ReasonCounter is implemented by quarantine destinations that can report what they stored
type ReasonCounter interface {
	CountByReason() (map[models.ReasonCode]int, error)
}

// Result is what a completed batch run reports
type Result struct {
	RunID    string
	Summary  events.Summary
	Rows     []models.AggregationRow
	Airports int // distinct IATA codes in the reference lookup
	Duration time.Duration

	// Quarantined holds the stored rejections of this run per entity and reason,
	// for quarantine destinations implementing ReasonCounter
	Quarantined map[models.Entity]map[models.ReasonCode]int
}

// Runner wires parser, validator, router, joiner, bucketer and aggregator together
type Runner struct {
	opts     Options
	sinks    Sinks
	recorder *events.Recorder
	metrics  *metrics.Metrics
}

func NewRunner(opts Options, sinks Sinks, recorder *events.Recorder, m *metrics.Metrics) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{opts: opts, sinks: sinks, recorder: recorder, metrics: m}
}

// NewRunID returns the identifier stamped on every stored row of a run
func NewRunID() string {
	return uuid.NewString()
}

// Run processes all airports, then all bookings, and returns the aggregation table.
// Per-record problems never fail the run; source and sink errors do.
func (r *Runner) Run(ctx context.Context, runID string, airports, bookings source.Source, agg *aggregate.Aggregator) (*Result, error) {
	start := time.Now()
	slog.Info("Starting run", "run_id", runID, "workers", r.opts.Workers)

	lookup, err := r.LoadAirports(ctx, airports)
	if err != nil {
		return nil, err
	}

	if err := r.ProcessBookings(ctx, bookings, lookup, agg); err != nil {
		return nil, err
	}

	quarantined, err := r.storedRejections()
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       runID,
		Summary:     r.recorder.Summary(),
		Rows:        agg.Rows(),
		Airports:    lookup.Len(),
		Duration:    time.Since(start),
		Quarantined: quarantined,
	}
	r.metrics.ObserveRunDuration("run", res.Duration)
	r.metrics.SetAggregationRows(len(res.Rows))

	slog.Info("Run complete",
		"run_id", runID,
		"duration", res.Duration,
		"airports", res.Airports,
		"aggregation_rows", len(res.Rows),
		"passenger_legs", agg.Total(),
	)
	return res, nil
}

func (r *Runner) storedRejections() (map[models.Entity]map[models.ReasonCode]int, error) {
	out := make(map[models.Entity]map[models.ReasonCode]int)
	for entity, sink := range map[models.Entity]tasks.BatchWriter[models.RejectedRecord]{
		models.EntityAirport: r.sinks.AirportQuarantine,
		models.EntityBooking: r.sinks.BookingQuarantine,
	} {
		counter, ok := sink.(ReasonCounter)
		if !ok {
			continue
		}
		counts, err := counter.CountByReason()
		if err != nil {
			return nil, fmt.Errorf("failed to count quarantined %ss: %w", entity, err)
		}
		out[entity] = counts
	}
	return out, nil
}

// LoadAirports validates and stores every airport and builds the reference lookup.
// It returns only after all airports are processed.
func (r *Runner) LoadAirports(ctx context.Context, src source.Source) (*reference.Lookup, error) {
	var (
		mu       sync.Mutex
		accepted []models.AirportRecord
	)

	err := process(ctx, r, models.EntityAirport, src, validateAirportLine,
		r.sinks.Airports, r.sinks.AirportQuarantine,
		func(_ context.Context, a models.AirportRecord) error {
			mu.Lock()
			accepted = append(accepted, a)
			mu.Unlock()
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to process airports: %w", err)
	}

	lookup, err := reference.NewLookup(accepted)
	if err != nil {
		return nil, fmt.Errorf("failed to build airport lookup: %w", err)
	}
	slog.Info("Airport lookup ready", "accepted", len(accepted), "distinct_iata", lookup.Len())
	return lookup, nil
}

// ProcessBookings validates and stores every booking and feeds the accepted ones
// through the joiner and bucketer into the aggregator
func (r *Runner) ProcessBookings(ctx context.Context, src source.Source, lookup *reference.Lookup, agg *aggregate.Aggregator) error {
	err := process(ctx, r, models.EntityBooking, src, validateBookingLine,
		r.sinks.Bookings, r.sinks.BookingQuarantine,
		func(_ context.Context, b models.ValidatedBooking) error {
			Enrich(lookup, r.recorder, agg, b)
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to process bookings: %w", err)
	}
	return nil
}

// Enrich joins, buckets and aggregates one accepted booking.
// Bookings that cannot be placed in time are reported as exclusions.
func Enrich(lookup *reference.Lookup, emitter events.Emitter, agg *aggregate.Aggregator, b models.ValidatedBooking) (models.EnrichedBooking, bool) {
	e, cause, ok := lookup.Join(b)
	if !ok {
		emitter.Emit(models.Event{
			Kind:    models.EventExcluded,
			Entity:  models.EntityBooking,
			Reason:  string(cause),
			Message: fmt.Sprintf("destination %s of passenger %s", b.Destination, b.PassengerID),
		})
		return e, false
	}

	e = temporal.Bucket(e)
	agg.Add(&e)
	return e, true
}

func validateAirportLine(line string) []validation.Result[models.AirportRecord] {
	draft, failure := parser.ParseAirportLine(line)
	if failure != nil {
		return []validation.Result[models.AirportRecord]{validation.Malformed[models.AirportRecord](failure)}
	}
	return []validation.Result[models.AirportRecord]{validation.ValidateAirport(draft)}
}

func validateBookingLine(line string) []validation.Result[models.ValidatedBooking] {
	drafts, failure := parser.ParseBookingLine(line)
	if failure != nil {
		return []validation.Result[models.ValidatedBooking]{validation.Malformed[models.ValidatedBooking](failure)}
	}
	results := make([]validation.Result[models.ValidatedBooking], 0, len(drafts))
	for _, d := range drafts {
		results = append(results, validation.ValidateBooking(d))
	}
	return results
}

// process runs one entity through source, workers, router and the two collectors.
// onAccepted is called by the worker after the record was routed to the clean destination.
func process[T any](
	ctx context.Context,
	r *Runner,
	entity models.Entity,
	src source.Source,
	validate func(line string) []validation.Result[T],
	clean tasks.BatchWriter[T],
	quarantine tasks.BatchWriter[models.RejectedRecord],
	onAccepted func(ctx context.Context, record T) error,
) error {
	g, ctx := errgroup.WithContext(ctx)

	lines := make(chan string, r.opts.Workers*4)
	cleanChan := make(chan T, r.batchSize())
	quarantineChan := make(chan models.RejectedRecord, r.batchSize())

	g.Go(func() error {
		defer close(lines)
		return src.Lines(ctx, lines)
	})

	router := NewRouter[T](entity, cleanChan, quarantineChan, r.recorder)

	var workers sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for line := range lines {
				for _, res := range validate(line) {
					if err := router.Route(ctx, res); err != nil {
						return err
					}
					if res.Accepted != nil && onAccepted != nil {
						if err := onAccepted(ctx, *res.Accepted); err != nil {
							return err
						}
					}
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		workers.Wait()
		close(cleanChan)
		close(quarantineChan)
		return nil
	})

	cleanName := string(entity) + "s"
	g.Go(func() error {
		return tasks.NewCollectorWithConfig[T](cleanName, clean, cleanChan, r.opts.BatchSize, r.opts.FlushInterval).
			WithMetrics(r.metrics).Start(ctx)
	})
	g.Go(func() error {
		return tasks.NewCollectorWithConfig[models.RejectedRecord](cleanName+"_quarantine", quarantine, quarantineChan, r.opts.BatchSize, r.opts.FlushInterval).
			WithMetrics(r.metrics).Start(ctx)
	})

	return g.Wait()
}

func (r *Runner) batchSize() int {
	if r.opts.BatchSize > 0 {
		return r.opts.BatchSize
	}
	return 100
}
