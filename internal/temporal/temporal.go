package temporal

import (
	"time"

	"booking_etl/internal/models"
)

// SeasonOf classifies a calendar day by month and day only.
// The Winter boundary is the literal February 29th, independent of leap years.
func SeasonOf(month time.Month, day int) models.Season {
	md := int(month)*100 + day
	switch {
	case md >= 1201 || md <= 229:
		return models.SeasonWinter
	case md >= 301 && md <= 531:
		return models.SeasonSpring
	case md >= 601 && md <= 831:
		return models.SeasonSummer
	default:
		return models.SeasonAutumn
	}
}

// LocalArrival converts the UTC arrival instant to the destination's local time
func LocalArrival(arrival time.Time, loc *time.Location) time.Time {
	return arrival.In(loc)
}

// Bucket fills in the local arrival date, weekday and season of a joined booking.
// The booking must carry a resolved destination location.
func Bucket(e models.EnrichedBooking) models.EnrichedBooking {
	e.LocalArrival = LocalArrival(e.Arrival, e.Location)
	e.LocalDate = models.DateOf(e.LocalArrival)
	e.Weekday = e.LocalArrival.Weekday()
	e.Season = SeasonOf(e.LocalDate.Month, e.LocalDate.Day)
	return e
}

// WeekdayRank orders weekdays Monday first
func WeekdayRank(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
