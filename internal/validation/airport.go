package validation

import (
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone checks must not depend on the host's zoneinfo

	"booking_etl/internal/models"
)

var (
	airportTypes   = map[string]bool{"airport": true, "station": true, "port": true, "unknown": true}
	airportSources = map[string]bool{"ourairports": true, "legacy": true, "user": true}
	dstCodes       = map[string]bool{"E": true, "A": true, "S": true, "O": true, "Z": true, "N": true, "U": true}
)

// ValidateAirport applies the airport rules in order. IATA code and country are
// required; an unresolvable timezone is nulled so the airport stays usable for
// country-level joins.
func ValidateAirport(d models.AirportDraft) Result[models.AirportRecord] {
	c := newChecker(models.EntityAirport, d.Raw)
	var a models.AirportRecord

	id, ok := requiredColumn(c, d.ID, "airport_id")
	if !ok {
		return finish(c, a)
	}
	if a.ID, ok = integerColumn(c, id, "airport_id"); !ok {
		return finish(c, a)
	}

	if a.Name, ok = requiredColumn(c, d.Name, "name"); !ok {
		return finish(c, a)
	}
	if a.City, ok = requiredColumn(c, d.City, "city"); !ok {
		return finish(c, a)
	}
	if a.Country, ok = requiredColumn(c, d.Country, "country"); !ok {
		return finish(c, a)
	}

	iata, ok := requiredColumn(c, d.IATA, "iata")
	if !ok {
		return finish(c, a)
	}
	if !isCode(iata, 3, false) {
		c.reject(models.ReasonInvalidCode, "iata", "iata %q is not a 3 letter code", iata)
		return finish(c, a)
	}
	a.IATA = strings.ToUpper(iata)

	if icao, present := optionalColumn(d.ICAO); present {
		if isCode(icao, 4, true) {
			icao = strings.ToUpper(icao)
			a.ICAO = &icao
		} else {
			c.null(models.ReasonInvalidCode, "icao", "icao %q is not a 4 character code", icao)
		}
	}

	if a.Latitude, ok = rangedColumn(c, d.Latitude, "latitude", -90, 90); !ok {
		return finish(c, a)
	}
	if a.Longitude, ok = rangedColumn(c, d.Longitude, "longitude", -180, 180); !ok {
		return finish(c, a)
	}
	if a.Altitude, ok = rangedColumn(c, d.Altitude, "altitude", -1641, 29528); !ok {
		return finish(c, a)
	}

	if hours, present := optionalColumn(d.TimezoneHours); present {
		v, err := strconv.ParseFloat(hours, 64)
		switch {
		case err != nil:
			c.null(models.ReasonInvalidType, "timezone_hours", "timezone_hours %q is not a number", hours)
		case v < -26 || v > 26:
			c.null(models.ReasonOutOfRange, "timezone_hours", "timezone_hours %v is not between -26 and 26", v)
		default:
			a.TimezoneHours = &v
		}
	}

	if dst, present := optionalColumn(d.DST); present {
		dst = strings.ToUpper(dst)
		if dstCodes[dst] {
			a.DST = &dst
		} else {
			c.null(models.ReasonUnknownValue, "dst", "dst %q is not one of [E, A, S, O, Z, N, U]", dst)
		}
	}

	if tz, present := optionalColumn(d.Timezone); present {
		if ValidTimezone(tz) {
			a.Timezone = &tz
		} else {
			c.null(models.ReasonUnknownValue, "timezone_string", "timezone_string %q is not a known IANA timezone", tz)
		}
	}

	typ, ok := requiredColumn(c, d.Type, "type")
	if !ok {
		return finish(c, a)
	}
	if a.Type = strings.ToLower(typ); !airportTypes[a.Type] {
		c.reject(models.ReasonUnknownValue, "type", "type %q is not one of [airport, station, port, unknown]", typ)
		return finish(c, a)
	}

	source, ok := requiredColumn(c, d.Source, "source")
	if !ok {
		return finish(c, a)
	}
	if a.Source = strings.ToLower(source); !airportSources[a.Source] {
		c.reject(models.ReasonUnknownValue, "source", "source %q is not one of [OurAirports, Legacy, User]", source)
	}

	return finish(c, a)
}

// ValidTimezone reports whether name is a loadable IANA timezone identifier.
// "Local" is refused since it depends on the host running the pipeline.
func ValidTimezone(name string) bool {
	if name == "" || name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// optionalColumn returns the column value unless it is empty or the null marker
func optionalColumn(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || v == models.NullMarker {
		return "", false
	}
	return v, true
}

func requiredColumn(c *checker, v, fieldName string) (string, bool) {
	s, ok := optionalColumn(v)
	if !ok {
		c.reject(models.ReasonMissingField, fieldName, "missing %s", fieldName)
	}
	return s, ok
}

func integerColumn(c *checker, v, fieldName string) (int64, bool) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		c.reject(models.ReasonInvalidType, fieldName, "%s %q is not an integer", fieldName, v)
		return 0, false
	}
	return n, true
}

func rangedColumn(c *checker, v, fieldName string, lo, hi float64) (float64, bool) {
	s, ok := requiredColumn(c, v, fieldName)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		c.reject(models.ReasonInvalidType, fieldName, "%s %q is not a number", fieldName, s)
		return 0, false
	}
	if f < lo || f > hi {
		c.reject(models.ReasonOutOfRange, fieldName, "%s %v is not between %v and %v", fieldName, f, lo, hi)
		return 0, false
	}
	return f, true
}
