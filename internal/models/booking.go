package models

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout accepts both whole and fractional seconds: when parsing, a
// fractional second after the seconds field is consumed even if the layout omits it.
const timestampLayout = "2006-01-02T15:04:05Z"

// ParseTimestamp parses a UTC booking timestamp such as 2019-03-17T13:47:26.005Z
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %s with optional fractional seconds", s, timestampLayout)
	}
	return t.UTC(), nil
}

// BookingStatus is the status of one booked flight leg
type BookingStatus string

const (
	BookingStatusConfirmed     BookingStatus = "CONFIRMED"
	BookingStatusCancelled     BookingStatus = "CANCELLED"
	BookingStatusWaitingList   BookingStatus = "WAITING_LIST"
	BookingStatusOnRequest     BookingStatus = "ON_REQUEST"
	BookingStatusSeatAvailable BookingStatus = "SEAT_AVAILABLE"
	BookingStatusUnaccepted    BookingStatus = "UNACCEPTED"
)

var bookingStatuses = map[string]BookingStatus{
	"confirmed":      BookingStatusConfirmed,
	"cancelled":      BookingStatusCancelled,
	"waiting_list":   BookingStatusWaitingList,
	"waitinglist":    BookingStatusWaitingList,
	"on_request":     BookingStatusOnRequest,
	"onrequest":      BookingStatusOnRequest,
	"seat_available": BookingStatusSeatAvailable,
	"seatavailable":  BookingStatusSeatAvailable,
	"unaccepted":     BookingStatusUnaccepted,
}

// ParseBookingStatus matches a status case-insensitively.
// Both the snake case form (WAITING_LIST) and the camel case form (WaitingList) are accepted.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	status, ok := bookingStatuses[strings.ToLower(strings.TrimSpace(s))]
	return status, ok
}

// PassengerType is the fare type of a passenger
type PassengerType string

const (
	PassengerTypeAdult PassengerType = "ADT"
	PassengerTypeChild PassengerType = "CHD"
)

// ParsePassengerType matches a passenger type case-insensitively
func ParsePassengerType(s string) (PassengerType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADT":
		return PassengerTypeAdult, true
	case "CHD":
		return PassengerTypeChild, true
	}
	return "", false
}

// BookingDraft holds the decoded but unvalidated fields of one passenger-leg.
// Values are kept as decoded from JSON (string, json.Number, bool, nil, ...) so that
// type errors can be reported by the validator. A nil value means the field was absent.
type BookingDraft struct {
	Raw                string // Source line the draft was decoded from
	Leg                int       // Position in the passenger x product cross product
	EventTime          time.Time // Creation time of the booking event, checked by the parser
	PassengerID        any       // uci
	Age                any
	PassengerType      any
	BookingStatus      any
	OperatingAirline   any
	Origin             any // IATA code of the departure airport
	Destination        any // IATA code of the arrival airport
	DepartureTimestamp any
	ArrivalTimestamp   any
}

// ValidatedBooking is an accepted passenger-leg. Required fields are always set;
// pointer fields are nil when absent or nulled by validation.
type ValidatedBooking struct {
	EventTime        time.Time      `json:"timestamp"`
	PassengerID      string         `json:"uci"`
	Age              *int           `json:"age"`
	PassengerType    *PassengerType `json:"passenger_type"`
	Status           BookingStatus  `json:"booking_status"`
	OperatingAirline string         `json:"operating_airline"`
	Origin           string         `json:"origin_airport"`
	Destination      string         `json:"destination_airport"`
	Departure        *time.Time     `json:"departure_date"`
	Arrival          time.Time      `json:"arrival_date"`
}

// LegKey identifies a passenger-leg: one passenger on one flight segment
type LegKey struct {
	PassengerID      string
	OperatingAirline string
	Origin           string
	Destination      string
	Arrival          int64 // unix seconds
}

// LegKey returns the passenger-leg identity of the booking
func (b *ValidatedBooking) LegKey() LegKey {
	return LegKey{
		PassengerID:      b.PassengerID,
		OperatingAirline: b.OperatingAirline,
		Origin:           b.Origin,
		Destination:      b.Destination,
		Arrival:          b.Arrival.Unix(),
	}
}

// Supersedes reports whether b replaces prev as the current state of the same
// passenger-leg. The newest event wins; on equal event times the greater status wins.
func (b *ValidatedBooking) Supersedes(prev *ValidatedBooking) bool {
	if !b.EventTime.Equal(prev.EventTime) {
		return b.EventTime.After(prev.EventTime)
	}
	return b.Status >= prev.Status
}

// EnrichedBooking is a validated booking joined with airport reference data and
// classified by destination-local arrival date.
type EnrichedBooking struct {
	ValidatedBooking

	OriginCountry      string
	DestinationCountry string
	Timezone           string
	Location           *time.Location `json:"-"`

	// Set by the temporal bucketer
	LocalArrival time.Time
	LocalDate    Date
	Weekday      time.Weekday
	Season       Season
}
