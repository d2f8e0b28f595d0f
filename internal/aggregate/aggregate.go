package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"booking_etl/internal/models"
	"booking_etl/internal/temporal"
)

// Defaults applied by the CLI when no override is given
const (
	DefaultHomeCountry      = "Netherlands"
	DefaultOperatingAirline = "KL"
)

// ErrInvalidRange is returned when the start date is after the end date
var ErrInvalidRange = errors.New("invalid date range")

// seasonRank orders seasons by name, descending
var seasonRank = map[models.Season]int{
	models.SeasonWinter: 0,
	models.SeasonSummer: 1,
	models.SeasonSpring: 2,
	models.SeasonAutumn: 3,
}

// Query selects which enriched bookings are counted
type Query struct {
	Start            models.Date // inclusive, destination-local
	End              models.Date // inclusive, destination-local
	HomeCountry      string
	OperatingAirline string // empty matches any airline
}

// NewQuery parses YYYYMMDD bounds and validates the range
func NewQuery(start, end, homeCountry, airline string) (Query, error) {
	s, err := models.ParseDate(start)
	if err != nil {
		return Query{}, fmt.Errorf("start date: %w", err)
	}
	e, err := models.ParseDate(end)
	if err != nil {
		return Query{}, fmt.Errorf("end date: %w", err)
	}
	q := Query{Start: s, End: e, HomeCountry: homeCountry, OperatingAirline: airline}
	return q, q.Validate()
}

// Validate checks the query bounds
func (q Query) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRange)
	}
	if q.Start.Compare(q.End) > 0 {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, q.Start, q.End)
	}
	return nil
}

// Covers reports whether the passenger-leg falls within the query's origin country,
// airline and date range. The booking status is not considered.
func (q Query) Covers(e *models.EnrichedBooking) bool {
	if e.OriginCountry != q.HomeCountry {
		return false
	}
	if q.OperatingAirline != "" && e.OperatingAirline != q.OperatingAirline {
		return false
	}
	return e.LocalDate.Compare(q.Start) >= 0 && e.LocalDate.Compare(q.End) <= 0
}

// legState is the newest event seen for one passenger-leg
type legState struct {
	latest  models.ValidatedBooking // only EventTime and Status are kept
	key     models.AggregationKey
	counted bool
}

// Aggregator counts distinct passenger-legs per (season, weekday, destination country).
// Each leg is represented by its newest booking event, so a later cancellation
// withdraws a leg counted earlier. Add is safe for concurrent use; Rows returns a
// sorted snapshot at any time.
type Aggregator struct {
	query Query

	mu     sync.Mutex
	counts map[models.AggregationKey]int
	legs   map[models.LegKey]legState
	total  int
}

// New creates an aggregator for the given query
func New(q Query) *Aggregator {
	return &Aggregator{
		query:  q,
		counts: make(map[models.AggregationKey]int),
		legs:   make(map[models.LegKey]legState),
	}
}

// Add records the booking as the current state of its passenger-leg unless a newer
// event for that leg was already seen. It reports whether the leg is counted because of it.
func (a *Aggregator) Add(e *models.EnrichedBooking) bool {
	if !a.query.Covers(e) {
		return false
	}

	leg := e.LegKey()
	next := legState{
		latest:  models.ValidatedBooking{EventTime: e.EventTime, Status: e.Status},
		key:     models.AggregationKey{Season: e.Season, Weekday: e.Weekday, DestinationCountry: e.DestinationCountry},
		counted: e.Status == models.BookingStatusConfirmed,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, ok := a.legs[leg]; ok {
		if !next.latest.Supersedes(&prev.latest) {
			return false
		}
		if prev.counted {
			a.uncount(prev.key)
		}
	}
	a.legs[leg] = next
	if next.counted {
		a.counts[next.key]++
		a.total++
	}
	return next.counted
}

func (a *Aggregator) uncount(key models.AggregationKey) {
	a.total--
	a.counts[key]--
	if a.counts[key] <= 0 {
		delete(a.counts, key)
	}
}

// Total returns the number of counted passenger-legs
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Rows returns the current counts as sorted rows
func (a *Aggregator) Rows() []models.AggregationRow {
	a.mu.Lock()
	keys := make([]models.AggregationKey, 0, len(a.counts))
	counts := make(map[models.AggregationKey]int, len(a.counts))
	for k, n := range a.counts {
		keys = append(keys, k)
		counts[k] = n
	}
	a.mu.Unlock()

	sortKeys(keys, counts)

	rows := make([]models.AggregationRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, models.AggregationRow{
			Season:             k.Season,
			Weekday:            k.Weekday.String(),
			DestinationCountry: k.DestinationCountry,
			PassengerCount:     counts[k],
		})
	}
	return rows
}

// Aggregate counts the bookings in one pass and returns the sorted rows
func Aggregate(q Query, bookings []models.EnrichedBooking) []models.AggregationRow {
	a := New(q)
	for i := range bookings {
		a.Add(&bookings[i])
	}
	return a.Rows()
}

// sortKeys orders by season descending by name, weekday Monday first,
// passenger count descending and finally destination country.
func sortKeys(keys []models.AggregationKey, counts map[models.AggregationKey]int) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if ra, rb := seasonRank[a.Season], seasonRank[b.Season]; ra != rb {
			return ra < rb
		}
		if wa, wb := temporal.WeekdayRank(a.Weekday), temporal.WeekdayRank(b.Weekday); wa != wb {
			return wa < wb
		}
		if ca, cb := counts[a], counts[b]; ca != cb {
			return ca > cb
		}
		return a.DestinationCountry < b.DestinationCountry
	})
}
