package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"booking_etl/internal/aggregate"
	"booking_etl/internal/events"
	"booking_etl/internal/metrics"
	"booking_etl/internal/models"
	"booking_etl/internal/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource is an in-memory source.Source
type sliceSource []string

func (s sliceSource) Lines(ctx context.Context, out chan<- string) error {
	for _, l := range s {
		select {
		case out <- l:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// handoffSource sends its lines, reports that through sent and then waits for cancellation
type handoffSource struct {
	lines []string
	sent  chan struct{}
}

func (s handoffSource) Lines(ctx context.Context, out chan<- string) error {
	for _, l := range s.lines {
		select {
		case out <- l:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	close(s.sent)
	<-ctx.Done()
	return ctx.Err()
}

type failingSource struct{ err error }

func (s failingSource) Lines(ctx context.Context, out chan<- string) error { return s.err }

// memWriter is an in-memory tasks.BatchWriter
type memWriter[T any] struct {
	mu      sync.Mutex
	records []T
	err     error
	delay   time.Duration
}

func (w *memWriter[T]) InsertBatch(records []T) error {
	time.Sleep(w.delay)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, records...)
	return nil
}

func (w *memWriter[T]) all() []T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]T(nil), w.records...)
}

type memSinks struct {
	airports          *memWriter[models.AirportRecord]
	airportQuarantine *memWriter[models.RejectedRecord]
	bookings          *memWriter[models.ValidatedBooking]
	bookingQuarantine *memWriter[models.RejectedRecord]
}

func newMemSinks() memSinks {
	return memSinks{
		airports:          &memWriter[models.AirportRecord]{},
		airportQuarantine: &memWriter[models.RejectedRecord]{},
		bookings:          &memWriter[models.ValidatedBooking]{},
		bookingQuarantine: &memWriter[models.RejectedRecord]{},
	}
}

func (s memSinks) sinks() Sinks {
	return Sinks{
		Airports:          s.airports,
		AirportQuarantine: s.airportQuarantine,
		Bookings:          s.bookings,
		BookingQuarantine: s.bookingQuarantine,
	}
}

var testAirports = sliceSource{
	`580,"Schiphol","Amsterdam","Netherlands","AMS","EHAM",52.308601,4.76389,-11,1,"E","Europe/Amsterdam","airport","OurAirports"`,
	`1382,"Charles de Gaulle","Paris","France","CDG","LFPG",49.012798,2.55,392,1,"E","Europe/Paris","airport","OurAirports"`,
	`1386,"Orly","Paris","France","ORY","LFPO",48.7233333,2.3794444,291,1,"E",\N,"airport","OurAirports"`,
	`9999,"Broken","Nowhere","Nowhere","XX1",\N,0,0,0,\N,\N,\N,"airport","OurAirports"`,
	`not,enough,columns`,
}

func bookingLine(uci, destination, arrival string) string {
	return `{"timestamp":"2019-03-17T13:47:26.005Z","event":{"DataElement":{"travelrecord":{` +
		`"passengersList":[{"uci":"` + uci + `","age":200,"passengerType":"Adt"}],` +
		`"productsList":[{"bookingStatus":"CONFIRMED","flight":{"operatingAirline":"KL","originAirport":"AMS",` +
		`"destinationAirport":"` + destination + `","departureDate":"2019-04-15T08:00:00Z","arrivalDate":"` + arrival + `"}}]}}}}`
}

func testQuery(t *testing.T) aggregate.Query {
	q, err := aggregate.NewQuery("20190101", "20191231", aggregate.DefaultHomeCountry, aggregate.DefaultOperatingAirline)
	require.NoError(t, err)
	return q
}

func TestRunner_EndToEnd(t *testing.T) {
	bookings := sliceSource{
		// Two passengers to France on Monday 2019-04-15 (local), Spring
		bookingLine("P1", "CDG", "2019-04-15T10:00:00Z"),
		bookingLine("P2", "CDG", "2019-04-15T20:00:00.5Z"),
		// France again, but Orly has no timezone
		bookingLine("P3", "ORY", "2019-04-15T10:00:00Z"),
		// Destination not in the reference data
		bookingLine("P4", "ZZZ", "2019-04-15T10:00:00Z"),
		`{"broken json`,
	}

	m := metrics.New(prometheus.NewRegistry())
	recorder := events.NewRecorder(m)
	sinks := newMemSinks()
	runner := NewRunner(Options{Workers: 3, BatchSize: 2, FlushInterval: 10 * time.Millisecond}, sinks.sinks(), recorder, m)

	res, err := runner.Run(context.Background(), NewRunID(), testAirports, bookings, aggregate.New(testQuery(t)))
	require.NoError(t, err)

	require.Equal(t, []models.AggregationRow{
		{Season: models.SeasonSpring, Weekday: "Monday", DestinationCountry: "France", PassengerCount: 2},
	}, res.Rows)
	assert.Equal(t, 3, res.Airports)

	airports := res.Summary.Entity(models.EntityAirport)
	assert.Equal(t, 3, airports.Accepted)
	assert.Equal(t, 2, airports.TotalRejected())
	assert.Len(t, sinks.airports.all(), 3)
	assert.Len(t, sinks.airportQuarantine.all(), 2)

	summary := res.Summary.Entity(models.EntityBooking)
	assert.Equal(t, 4, summary.Accepted)
	assert.Equal(t, 1, summary.Rejected[string(models.ReasonMalformedInput)])
	assert.Equal(t, 4, summary.Nulled["age"])
	assert.Equal(t, 1, summary.Excluded[string(models.ExclusionMissingTimezone)])
	assert.Equal(t, 1, summary.Excluded[string(models.ExclusionUnknownDestination)])

	// excluded bookings are still clean records
	assert.Len(t, sinks.bookings.all(), 4)
	assert.Len(t, sinks.bookingQuarantine.all(), 1)
	for _, b := range sinks.bookings.all() {
		assert.Nil(t, b.Age)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AggregationRows))
	assert.Empty(t, res.Quarantined, "in-memory quarantine destinations do not count by reason")
}

func TestRunner_EveryRecordReachesExactlyOneDestination(t *testing.T) {
	var lines sliceSource
	for i := 0; i < 200; i++ {
		switch i % 4 {
		case 0:
			lines = append(lines, `{`)
		case 1:
			lines = append(lines, bookingLine("", "CDG", "2019-04-15T10:00:00Z"))
		default:
			lines = append(lines, bookingLine("P"+string(rune('A'+i%26))+string(rune('A'+i/26)), "CDG", "2019-04-15T10:00:00Z"))
		}
	}

	sinks := newMemSinks()
	recorder := events.NewRecorder(nil)
	runner := NewRunner(Options{Workers: 8, BatchSize: 7, FlushInterval: time.Millisecond}, sinks.sinks(), recorder, nil)

	_, err := runner.Run(context.Background(), NewRunID(), testAirports, lines, aggregate.New(testQuery(t)))
	require.NoError(t, err)

	clean, quarantined := len(sinks.bookings.all()), len(sinks.bookingQuarantine.all())
	assert.Equal(t, 100, clean)
	assert.Equal(t, 100, quarantined)
	assert.Equal(t, len(lines), clean+quarantined)

	s := recorder.Summary().Entity(models.EntityBooking)
	assert.Equal(t, clean, s.Accepted)
	assert.Equal(t, quarantined, s.TotalRejected())
}

func TestRunner_SinkFailureAbortsRun(t *testing.T) {
	writeErr := errors.New("database is locked")
	sinks := newMemSinks()
	sinks.bookings.err = writeErr

	runner := NewRunner(Options{Workers: 2, BatchSize: 1, FlushInterval: time.Millisecond}, sinks.sinks(), events.NewRecorder(nil), nil)
	_, err := runner.Run(context.Background(), NewRunID(), testAirports,
		sliceSource{bookingLine("P1", "CDG", "2019-04-15T10:00:00Z")}, aggregate.New(testQuery(t)))

	require.Error(t, err)
	assert.ErrorIs(t, err, writeErr)
	assert.Empty(t, sinks.bookingQuarantine.all(), "a failed clean write never diverts records to quarantine")
}

func TestRunner_CancellationStoresEveryCountedLeg(t *testing.T) {
	src := handoffSource{sent: make(chan struct{})}
	for i := 0; i < 60; i++ {
		src.lines = append(src.lines, bookingLine(fmt.Sprintf("P%02d", i), "CDG", "2019-04-15T10:00:00Z"))
	}

	sinks := newMemSinks()
	sinks.bookings.delay = 5 * time.Millisecond
	runner := NewRunner(Options{Workers: 2, BatchSize: 4, FlushInterval: time.Hour}, sinks.sinks(), events.NewRecorder(nil), nil)
	agg := aggregate.New(testQuery(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, NewRunID(), testAirports, src, agg)
		done <- err
	}()

	select {
	case <-src.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("bookings were not handed over")
	}
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	stored := len(sinks.bookings.all())
	assert.NotZero(t, stored)
	assert.Equal(t, agg.Total(), stored, "every leg in the running aggregation reached the clean destination")
}

func TestRunner_SourceFailureAbortsRun(t *testing.T) {
	readErr := errors.New("permission denied")
	runner := NewRunner(Options{}, newMemSinks().sinks(), events.NewRecorder(nil), nil)

	_, err := runner.Run(context.Background(), NewRunID(), failingSource{err: readErr}, sliceSource{}, aggregate.New(testQuery(t)))
	assert.ErrorIs(t, err, readErr)
}

type captureEmitter struct {
	mu     sync.Mutex
	events []models.Event
}

func (c *captureEmitter) Emit(ev models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func TestRouter_Route(t *testing.T) {
	clean := make(chan models.ValidatedBooking, 1)
	quarantine := make(chan models.RejectedRecord, 1)
	emitter := &captureEmitter{}
	router := NewRouter[models.ValidatedBooking](models.EntityBooking, clean, quarantine, emitter)

	accepted := validation.Result[models.ValidatedBooking]{Accepted: &models.ValidatedBooking{PassengerID: "P1"}}
	require.NoError(t, router.Route(context.Background(), accepted))
	assert.Len(t, clean, 1)
	assert.Len(t, quarantine, 0)

	rejected := validation.ValidateBooking(models.BookingDraft{Raw: "{}"})
	require.NotNil(t, rejected.Rejected)
	require.NoError(t, router.Route(context.Background(), rejected))
	assert.Len(t, clean, 1)
	assert.Len(t, quarantine, 1)

	require.Len(t, emitter.events, 2)
	assert.Equal(t, models.EventAccepted, emitter.events[0].Kind)
	assert.Equal(t, models.EventRejected, emitter.events[1].Kind)
}

func TestRouter_CancelledWhileBlocked(t *testing.T) {
	router := NewRouter[models.ValidatedBooking](models.EntityBooking, make(chan models.ValidatedBooking), make(chan models.RejectedRecord), &captureEmitter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := router.Route(ctx, validation.Result[models.ValidatedBooking]{Accepted: &models.ValidatedBooking{}})
	assert.ErrorIs(t, err, context.Canceled)
}
