package reference

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"booking_etl/internal/models"
)

// Airport is the reference view of one accepted airport
type Airport struct {
	ID       int64
	IATA     string
	Country  string
	Timezone string         // empty when the airport has no usable timezone
	Location *time.Location // nil when Timezone is empty
}

// Lookup maps IATA codes to airports. It is built once and never mutated,
// so it can be shared by all workers without locking.
type Lookup struct {
	airports map[string]Airport
}

// NewLookup builds the lookup from accepted airports.
// When two airports share an IATA code the one with the lowest airport_id wins.
func NewLookup(airports []models.AirportRecord) (*Lookup, error) {
	l := &Lookup{airports: make(map[string]Airport, len(airports))}

	for i := range airports {
		a := &airports[i]
		if existing, ok := l.airports[a.IATA]; ok {
			if existing.ID <= a.ID {
				slog.Debug("Skipping duplicate airport", "iata", a.IATA, "kept_id", existing.ID, "skipped_id", a.ID)
				continue
			}
			slog.Debug("Replacing duplicate airport", "iata", a.IATA, "kept_id", a.ID, "skipped_id", existing.ID)
		}

		entry := Airport{ID: a.ID, IATA: a.IATA, Country: a.Country}
		if a.Timezone != nil {
			loc, err := time.LoadLocation(*a.Timezone)
			if err != nil {
				return nil, fmt.Errorf("failed to load timezone %q of airport %s: %w", *a.Timezone, a.IATA, err)
			}
			entry.Timezone = *a.Timezone
			entry.Location = loc
		}
		l.airports[a.IATA] = entry
	}

	return l, nil
}

// Get returns the airport with the given IATA code
func (l *Lookup) Get(iata string) (Airport, bool) {
	a, ok := l.airports[iata]
	return a, ok
}

// Len returns the number of distinct IATA codes in the lookup
func (l *Lookup) Len() int {
	return len(l.airports)
}

// Join attaches origin country, destination country and destination timezone.
// When the booking cannot be placed in time it returns the exclusion cause and false;
// the partially enriched booking is still returned for inspection.
func (l *Lookup) Join(b models.ValidatedBooking) (models.EnrichedBooking, models.ExclusionCause, bool) {
	e := models.EnrichedBooking{ValidatedBooking: b}

	if origin, ok := l.airports[b.Origin]; ok {
		e.OriginCountry = origin.Country
	}

	dest, ok := l.airports[b.Destination]
	if !ok {
		return e, models.ExclusionUnknownDestination, false
	}
	e.DestinationCountry = dest.Country

	if dest.Location == nil {
		return e, models.ExclusionMissingTimezone, false
	}
	e.Timezone = dest.Timezone
	e.Location = dest.Location

	return e, "", true
}
