package parser

import (
	"encoding/csv"
	"fmt"
	"strings"

	"booking_etl/internal/models"
)

// AirportFields is the number of columns in an OpenFlights airports row
const AirportFields = 14

// ParseAirportLine decodes one CSV row of the OpenFlights airports file
func ParseAirportLine(line string) (models.AirportDraft, *Failure) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.LazyQuotes = true // Handle malformed quotes in names
	reader.FieldsPerRecord = AirportFields

	record, err := reader.Read()
	if err != nil {
		return models.AirportDraft{}, &Failure{
			Entity:  models.EntityAirport,
			Raw:     line,
			Message: fmt.Sprintf("invalid csv: %v", err),
		}
	}

	// A second record means the unit contained an embedded newline
	if _, err := reader.Read(); err == nil {
		return models.AirportDraft{}, &Failure{
			Entity:  models.EntityAirport,
			Raw:     line,
			Message: "invalid csv: more than one record in line",
		}
	}

	return models.AirportDraft{
		Raw:           line,
		ID:            field(record, 0),
		Name:          field(record, 1),
		City:          field(record, 2),
		Country:       field(record, 3),
		IATA:          field(record, 4),
		ICAO:          field(record, 5),
		Latitude:      field(record, 6),
		Longitude:     field(record, 7),
		Altitude:      field(record, 8),
		TimezoneHours: field(record, 9),
		DST:           field(record, 10),
		Timezone:      field(record, 11),
		Type:          field(record, 12),
		Source:        field(record, 13),
	}, nil
}

// field trims whitespace and stray quotes left over by LazyQuotes
func field(record []string, idx int) string {
	return strings.Trim(strings.TrimSpace(record[idx]), "'\"")
}
