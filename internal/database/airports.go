package database

import (
	"database/sql"
	"fmt"

	"booking_etl/internal/models"
)

type AirportRepository interface {
	InsertBatch(airports []models.AirportRecord) error
	IsTablePopulated() (bool, error)
	List() ([]models.AirportRecord, error)
}

type airportRepository struct {
	db    *sql.DB
	runID string
}

func NewAirportRepository(db *sql.DB, runID string) AirportRepository {
	return &airportRepository{db: db, runID: runID}
}

// InsertBatch upserts accepted airports in a single transaction.
// IATA codes are unique; on a clash the airport with the lowest airport_id is kept.
func (r *airportRepository) InsertBatch(airports []models.AirportRecord) error {
	if len(airports) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO airports (
		iata, run_id, airport_id, name, city, country, icao, latitude, longitude,
		altitude, timezone_hours, dst, timezone_string, type, source
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(iata) DO UPDATE SET
		run_id = excluded.run_id,
		airport_id = excluded.airport_id,
		name = excluded.name,
		city = excluded.city,
		country = excluded.country,
		icao = excluded.icao,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		altitude = excluded.altitude,
		timezone_hours = excluded.timezone_hours,
		dst = excluded.dst,
		timezone_string = excluded.timezone_string,
		type = excluded.type,
		source = excluded.source
	WHERE excluded.airport_id <= airports.airport_id`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range airports {
		a := &airports[i]
		if _, err := stmt.Exec(
			a.IATA, r.runID, a.ID, a.Name, a.City, a.Country, nullString(a.ICAO),
			a.Latitude, a.Longitude, a.Altitude, nullFloat(a.TimezoneHours),
			nullString(a.DST), nullString(a.Timezone), a.Type, a.Source,
		); err != nil {
			return fmt.Errorf("failed to insert airport: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *airportRepository) IsTablePopulated() (bool, error) {
	var ignored int
	err := r.db.QueryRow("SELECT 1 FROM airports LIMIT 1").Scan(&ignored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check airports table: %w", err)
	}
	return true, nil
}

// List returns all stored airports ordered by airport_id
func (r *airportRepository) List() ([]models.AirportRecord, error) {
	rows, err := r.db.Query(`SELECT airport_id, name, city, country, iata, icao, latitude,
		longitude, altitude, timezone_hours, dst, timezone_string, type, source
		FROM airports ORDER BY airport_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query airports: %w", err)
	}
	defer rows.Close()

	var airports []models.AirportRecord
	for rows.Next() {
		var (
			a             models.AirportRecord
			icao, dst, tz sql.NullString
			hours         sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.City, &a.Country, &a.IATA, &icao, &a.Latitude,
			&a.Longitude, &a.Altitude, &hours, &dst, &tz, &a.Type, &a.Source); err != nil {
			return nil, fmt.Errorf("failed to scan airport: %w", err)
		}
		a.ICAO = stringPtr(icao)
		a.DST = stringPtr(dst)
		a.Timezone = stringPtr(tz)
		if hours.Valid {
			h := hours.Float64
			a.TimezoneHours = &h
		}
		airports = append(airports, a)
	}

	return airports, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
