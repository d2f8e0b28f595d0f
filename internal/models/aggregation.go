package models

import (
	"errors"
	"fmt"
	"time"
)

// Season is a year-independent classification of a calendar day
type Season string

const (
	SeasonWinter Season = "Winter"
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonAutumn Season = "Autumn"
)

// ErrInvalidDate is returned when a date is not in YYYYMMDD form or does not exist
var ErrInvalidDate = errors.New("invalid date")

// Date is a civil calendar date without time or location
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYYMMDD date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("20060102", s)
	if err != nil || len(s) != 8 {
		return Date{}, fmt.Errorf("%w: %q (expected YYYYMMDD)", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the civil date of t in t's location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String formats the date as YYYYMMDD
func (d Date) String() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after other
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// Weekday returns the day of the week of the date
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// IsZero reports whether d is the zero date
func (d Date) IsZero() bool {
	return d == Date{}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// AggregationKey groups enriched bookings
type AggregationKey struct {
	Season             Season
	Weekday            time.Weekday
	DestinationCountry string
}

// AggregationRow is one row of the aggregation result table
type AggregationRow struct {
	Season             Season `json:"season"`
	Weekday            string `json:"weekday"`
	DestinationCountry string `json:"destination_country"`
	PassengerCount     int    `json:"passenger_count"`
}
