package report

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"booking_etl/internal/aggregate"
	"booking_etl/internal/database"
	"booking_etl/internal/events"
	"booking_etl/internal/models"
	"booking_etl/internal/pipeline"
	"booking_etl/internal/reference"
)

// Reporter answers aggregation queries over previously stored clean records
type Reporter struct {
	airports database.AirportRepository
	bookings database.BookingRepository
	emitter  events.Emitter
}

func NewReporter(airports database.AirportRepository, bookings database.BookingRepository, emitter events.Emitter) *Reporter {
	return &Reporter{airports: airports, bookings: bookings, emitter: emitter}
}

// Query rebuilds the airport lookup and replays every stored booking through
// the joiner, bucketer and aggregator. start and end are YYYYMMDD, inclusive.
func (r *Reporter) Query(start, end, homeCountry, airline string) ([]models.AggregationRow, error) {
	q, err := aggregate.NewQuery(start, end, homeCountry, airline)
	if err != nil {
		return nil, err
	}

	airports, err := r.airports.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load airports: %w", err)
	}
	lookup, err := reference.NewLookup(airports)
	if err != nil {
		return nil, fmt.Errorf("failed to build airport lookup: %w", err)
	}

	agg := aggregate.New(q)
	replayed := 0
	err = r.bookings.ForEach(func(b models.ValidatedBooking) error {
		replayed++
		pipeline.Enrich(lookup, r.emitter, agg, b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay bookings: %w", err)
	}

	rows := agg.Rows()
	slog.Info("Report ready",
		"start", q.Start,
		"end", q.End,
		"airports", lookup.Len(),
		"bookings", replayed,
		"passenger_legs", agg.Total(),
		"rows", len(rows),
	)
	return rows, nil
}

// WriteTable prints the rows as an aligned, tab separated table
func WriteTable(w io.Writer, rows []models.AggregationRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEASON\tWEEKDAY\tDESTINATION_COUNTRY\tPASSENGERS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Season, r.Weekday, r.DestinationCountry, r.PassengerCount)
	}
	return tw.Flush()
}
