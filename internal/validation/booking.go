package validation

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"booking_etl/internal/models"
)

// Age bounds accepted for a passenger, inclusive
const (
	MinAge = 0
	MaxAge = 150
)

// ValidateBooking applies the booking rules in order and returns Accepted or Rejected.
// Required fields reject the record; age and passenger type are nulled with a warning.
func ValidateBooking(d models.BookingDraft) Result[models.ValidatedBooking] {
	c := newChecker(models.EntityBooking, d.Raw)
	b := models.ValidatedBooking{EventTime: d.EventTime}

	passengerID, ok := requiredString(c, d.PassengerID, "uci")
	if !ok {
		return finish(c, b)
	}
	b.PassengerID = passengerID

	b.Age = age(c, d.Age)
	b.PassengerType = passengerType(c, d.PassengerType)

	status, ok := requiredString(c, d.BookingStatus, "booking_status")
	if !ok {
		return finish(c, b)
	}
	if b.Status, ok = models.ParseBookingStatus(status); !ok {
		c.reject(models.ReasonUnknownStatus, "booking_status", "booking status %q is not a known status", status)
		return finish(c, b)
	}

	airline, ok := requiredString(c, d.OperatingAirline, "operating_airline")
	if !ok {
		return finish(c, b)
	}
	if !isCode(airline, 2, true) {
		c.reject(models.ReasonInvalidCode, "operating_airline", "operating airline %q is not a 2 character code", airline)
		return finish(c, b)
	}
	b.OperatingAirline = strings.ToUpper(airline)

	if b.Origin, ok = iataCode(c, d.Origin, "origin_airport"); !ok {
		return finish(c, b)
	}
	if b.Destination, ok = iataCode(c, d.Destination, "destination_airport"); !ok {
		return finish(c, b)
	}

	// Departure may be missing for cancelled flights, but a present value must parse
	if d.DepartureTimestamp != nil {
		s, ok := requiredString(c, d.DepartureTimestamp, "departure_date")
		if !ok {
			return finish(c, b)
		}
		departure, ok := timestamp(c, s, "departure_date")
		if !ok {
			return finish(c, b)
		}
		b.Departure = &departure
	}

	arrival, ok := requiredString(c, d.ArrivalTimestamp, "arrival_date")
	if !ok {
		return finish(c, b)
	}
	b.Arrival, _ = timestamp(c, arrival, "arrival_date")

	return finish(c, b)
}

// requiredString rejects absent, non-string and blank values
func requiredString(c *checker, v any, fieldName string) (string, bool) {
	if v == nil {
		c.reject(models.ReasonMissingField, fieldName, "missing %s", fieldName)
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		c.reject(models.ReasonInvalidType, fieldName, "%s is %T, expected string", fieldName, v)
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		c.reject(models.ReasonMissingField, fieldName, "empty %s", fieldName)
		return "", false
	}
	return s, true
}

func timestamp(c *checker, s, fieldName string) (time.Time, bool) {
	t, err := models.ParseTimestamp(s)
	if err != nil {
		c.reject(models.ReasonMalformedTimestamp, fieldName, "invalid %s: %v", fieldName, err)
		return time.Time{}, false
	}
	return t, true
}

func iataCode(c *checker, v any, fieldName string) (string, bool) {
	s, ok := requiredString(c, v, fieldName)
	if !ok {
		return "", false
	}
	if !isCode(s, 3, false) {
		c.reject(models.ReasonInvalidCode, fieldName, "%s %q is not a 3 letter IATA code", fieldName, s)
		return "", false
	}
	return strings.ToUpper(s), true
}

func age(c *checker, v any) *int {
	if v == nil {
		return nil
	}
	n, ok := asInt(v)
	if !ok {
		c.null(models.ReasonInvalidType, "age", "age %v is not an integer", v)
		return nil
	}
	if n < MinAge || n > MaxAge {
		c.null(models.ReasonOutOfRange, "age", "age %d should be: %d <= age <= %d", n, MinAge, MaxAge)
		return nil
	}
	return &n
}

func passengerType(c *checker, v any) *models.PassengerType {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		c.null(models.ReasonInvalidType, "passenger_type", "passenger type is %T, expected string", v)
		return nil
	}
	pt, ok := models.ParsePassengerType(s)
	if !ok {
		c.null(models.ReasonUnknownValue, "passenger_type", "passenger type %q is not one of [Adt, Chd]", s)
		return nil
	}
	return &pt
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil || i > math.MaxInt32 || i < math.MinInt32 {
			return 0, false
		}
		return int(i), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// isCode reports whether s is exactly n ASCII letters (and digits, if allowed)
func isCode(s string, n int, allowDigits bool) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case allowDigits && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
