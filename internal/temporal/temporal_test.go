package temporal

import (
	"testing"
	"time"
	_ "time/tzdata"

	"booking_etl/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeasonOf_Boundaries(t *testing.T) {
	tests := []struct {
		month time.Month
		day   int
		want  models.Season
	}{
		{time.February, 28, models.SeasonWinter},
		{time.February, 29, models.SeasonWinter},
		{time.March, 1, models.SeasonSpring},
		{time.May, 31, models.SeasonSpring},
		{time.June, 1, models.SeasonSummer},
		{time.August, 31, models.SeasonSummer},
		{time.September, 1, models.SeasonAutumn},
		{time.November, 30, models.SeasonAutumn},
		{time.December, 1, models.SeasonWinter},
		{time.January, 1, models.SeasonWinter},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SeasonOf(tt.month, tt.day), "%s %d", tt.month, tt.day)
	}
}

func TestWeekdayRank(t *testing.T) {
	assert.Equal(t, 0, WeekdayRank(time.Monday))
	assert.Equal(t, 5, WeekdayRank(time.Saturday))
	assert.Equal(t, 6, WeekdayRank(time.Sunday))
}

func TestBucket_UsesDestinationLocalDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	e := models.EnrichedBooking{
		ValidatedBooking: models.ValidatedBooking{
			// 01:30 UTC Tuesday is Monday evening in New York (EDT, UTC-4)
			Arrival: time.Date(2019, 4, 16, 1, 30, 0, 0, time.UTC),
		},
		Location: ny,
	}

	got := Bucket(e)
	assert.Equal(t, models.Date{Year: 2019, Month: time.April, Day: 15}, got.LocalDate)
	assert.Equal(t, time.Monday, got.Weekday)
	assert.Equal(t, models.SeasonSpring, got.Season)
	assert.Equal(t, 21, got.LocalArrival.Hour())
}

func TestBucket_DaylightSavingTransition(t *testing.T) {
	ams, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	// CET (UTC+1) before the switch on 2019-03-31, CEST (UTC+2) after it
	before := Bucket(models.EnrichedBooking{
		ValidatedBooking: models.ValidatedBooking{Arrival: time.Date(2019, 3, 30, 22, 30, 0, 0, time.UTC)},
		Location:         ams,
	})
	after := Bucket(models.EnrichedBooking{
		ValidatedBooking: models.ValidatedBooking{Arrival: time.Date(2019, 3, 31, 22, 30, 0, 0, time.UTC)},
		Location:         ams,
	})

	assert.Equal(t, models.Date{Year: 2019, Month: time.March, Day: 30}, before.LocalDate)
	assert.Equal(t, 23, before.LocalArrival.Hour())
	assert.Equal(t, models.Date{Year: 2019, Month: time.April, Day: 1}, after.LocalDate)
	assert.Equal(t, 0, after.LocalArrival.Hour())
	assert.Equal(t, time.Monday, after.Weekday)
}

func TestBucket_SeasonFollowsLocalDate(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on May 31st is already June 1st in Tokyo
	got := Bucket(models.EnrichedBooking{
		ValidatedBooking: models.ValidatedBooking{Arrival: time.Date(2019, 5, 31, 20, 0, 0, 0, time.UTC)},
		Location:         tokyo,
	})
	assert.Equal(t, models.SeasonSummer, got.Season)
	assert.Equal(t, time.Saturday, got.Weekday)
}
