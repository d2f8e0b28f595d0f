package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"booking_etl/internal/models"
)

// Failure reports an input unit that could not be structurally decoded.
// It is routed to quarantine as MALFORMED_INPUT without passing through validation.
type Failure struct {
	Entity  models.Entity
	Raw     string
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("malformed %s input: %s", f.Entity, f.Message)
}

// Rejected converts the failure into a quarantine record
func (f *Failure) Rejected() models.RejectedRecord {
	return models.RejectedRecord{
		Entity:  f.Entity,
		Raw:     f.Raw,
		Reason:  models.ReasonMalformedInput,
		Message: f.Message,
	}
}

// bookingEvent mirrors the booking event JSON document
type bookingEvent struct {
	Timestamp any `json:"timestamp"`
	Event     *struct {
		DataElement *struct {
			TravelRecord *struct {
				Passengers []map[string]any `json:"passengersList"`
				Products   []map[string]any `json:"productsList"`
			} `json:"travelrecord"`
		} `json:"DataElement"`
	} `json:"event"`
}

// ParseBookingLine decodes one booking event and expands it into one draft per
// passenger and product (the cross product of passengersList and productsList).
func ParseBookingLine(line string) ([]models.BookingDraft, *Failure) {
	fail := func(format string, args ...any) *Failure {
		return &Failure{Entity: models.EntityBooking, Raw: line, Message: fmt.Sprintf(format, args...)}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(line)))
	dec.UseNumber()

	var ev bookingEvent
	if err := dec.Decode(&ev); err != nil {
		return nil, fail("invalid json: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fail("invalid json: trailing data after booking event")
	}

	if ev.Event == nil || ev.Event.DataElement == nil || ev.Event.DataElement.TravelRecord == nil {
		return nil, fail("missing event.DataElement.travelrecord")
	}
	record := ev.Event.DataElement.TravelRecord
	if len(record.Passengers) == 0 {
		return nil, fail("missing or empty list of passengers")
	}
	if len(record.Products) == 0 {
		return nil, fail("missing or empty list of products")
	}

	// Every leg shares the event timestamp, so a bad one rejects the event once
	ts, ok := ev.Timestamp.(string)
	if !ok || strings.TrimSpace(ts) == "" {
		return nil, fail("missing or non-string event timestamp")
	}
	eventTime, err := models.ParseTimestamp(strings.TrimSpace(ts))
	if err != nil {
		return nil, fail("invalid event timestamp: %v", err)
	}

	drafts := make([]models.BookingDraft, 0, len(record.Passengers)*len(record.Products))
	for _, passenger := range record.Passengers {
		if passenger == nil {
			return nil, fail("passenger entry is null")
		}
		for _, product := range record.Products {
			if product == nil {
				return nil, fail("product entry is null")
			}
			// A product without a flight object yields nil flight fields; the
			// validator rejects the leg with a field-specific reason.
			flight, _ := product["flight"].(map[string]any)

			drafts = append(drafts, models.BookingDraft{
				Raw:                line,
				Leg:                len(drafts),
				EventTime:          eventTime,
				PassengerID:        passenger["uci"],
				Age:                passenger["age"],
				PassengerType:      passenger["passengerType"],
				BookingStatus:      product["bookingStatus"],
				OperatingAirline:   flight["operatingAirline"],
				Origin:             flight["originAirport"],
				Destination:        flight["destinationAirport"],
				DepartureTimestamp: flight["departureDate"],
				ArrivalTimestamp:   flight["arrivalDate"],
			})
		}
	}

	return drafts, nil
}
