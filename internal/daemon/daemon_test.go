package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking_etl/internal/aggregate"
	"booking_etl/internal/events"
	"booking_etl/internal/models"
	"booking_etl/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lines []string

func (l lines) Lines(ctx context.Context, out chan<- string) error {
	for _, s := range l {
		select {
		case out <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type failing struct{}

func (failing) Lines(ctx context.Context, out chan<- string) error {
	return errors.New("connection refused")
}

type discard[T any] struct{}

func (discard[T]) InsertBatch([]T) error { return nil }

func newRunner() *pipeline.Runner {
	return pipeline.NewRunner(pipeline.Options{Workers: 2, BatchSize: 10, FlushInterval: 10 * time.Millisecond}, pipeline.Sinks{
		Airports:          discard[models.AirportRecord]{},
		AirportQuarantine: discard[models.RejectedRecord]{},
		Bookings:          discard[models.ValidatedBooking]{},
		BookingQuarantine: discard[models.RejectedRecord]{},
	}, events.NewRecorder(nil), nil)
}

var airports = lines{
	`580,"Schiphol","Amsterdam","Netherlands","AMS","EHAM",52.308601,4.76389,-11,1,"E","Europe/Amsterdam","airport","OurAirports"`,
	`3797,"John F Kennedy","New York","United States","JFK","KJFK",40.63980103,-73.77890015,13,-5,"A","America/New_York","airport","OurAirports"`,
}

const booking = `{"timestamp":"2019-03-17T13:47:26Z","event":{"DataElement":{"travelrecord":{` +
	`"passengersList":[{"uci":"P1"},{"uci":"P2"}],` +
	`"productsList":[{"bookingStatus":"CONFIRMED","flight":{"operatingAirline":"KL","originAirport":"AMS",` +
	`"destinationAirport":"JFK","arrivalDate":"2019-04-15T18:00:00Z"}}]}}}}`

func TestDaemon_StreamsIntoRunningAggregation(t *testing.T) {
	q, err := aggregate.NewQuery("20190101", "20191231", "Netherlands", "KL")
	require.NoError(t, err)
	agg := aggregate.New(q)

	d, err := New(Config{
		Runner:           newRunner(),
		Airports:         airports,
		Bookings:         lines{booking},
		Aggregator:       agg,
		SnapshotInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, d.Start())

	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("booking stream did not finish")
	}
	require.NoError(t, d.Stop())

	assert.Equal(t, []models.AggregationRow{
		{Season: models.SeasonSpring, Weekday: "Monday", DestinationCountry: "United States", PassengerCount: 2},
	}, agg.Rows())
}

func TestDaemon_AirportFailurePreventsStart(t *testing.T) {
	q, err := aggregate.NewQuery("20190101", "20191231", "Netherlands", "")
	require.NoError(t, err)

	d, err := New(Config{Runner: newRunner(), Airports: failing{}, Bookings: lines{}, Aggregator: aggregate.New(q)})
	require.NoError(t, err)
	assert.Error(t, d.Start())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
