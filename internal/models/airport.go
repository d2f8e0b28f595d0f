package models

// NullMarker is the OpenFlights encoding of a missing value
const NullMarker = `\N`

// AirportDraft represents one row of the OpenFlights airports file before validation.
// All fields correspond to columns of airports.dat, in file order.
type AirportDraft struct {
	Raw           string // Source line
	ID            string // Unique OpenFlights identifier
	Name          string // Name of airport
	City          string // Main city served by airport
	Country       string // Country or territory where airport is located
	IATA          string // 3-letter IATA code
	ICAO          string // 4-letter ICAO code
	Latitude      string // Decimal degrees
	Longitude     string // Decimal degrees
	Altitude      string // In feet
	TimezoneHours string // Hours offset from UTC
	DST           string // One of E, A, S, O, Z, N, U
	Timezone      string // IANA timezone identifier, e.g. Europe/Amsterdam
	Type          string // airport, station, port or unknown
	Source        string // OurAirports, Legacy or User
}

// AirportRecord is an accepted airport reference row. Nullable columns are pointers.
type AirportRecord struct {
	ID            int64    `json:"airport_id"`
	Name          string   `json:"name"`
	City          string   `json:"city"`
	Country       string   `json:"country"`
	IATA          string   `json:"iata"`
	ICAO          *string  `json:"icao"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Altitude      float64  `json:"altitude"`
	TimezoneHours *float64 `json:"timezone_hours"`
	DST           *string  `json:"dst"`
	Timezone      *string  `json:"timezone_string"`
	Type          string   `json:"type"`
	Source        string   `json:"source"`
}
