package database

import (
	"database/sql"
	"fmt"

	"booking_etl/internal/models"
)

type BookingRepository interface {
	InsertBatch(bookings []models.ValidatedBooking) error
	ForEach(fn func(b models.ValidatedBooking) error) error
}

type bookingRepository struct {
	db    *sql.DB
	runID string
}

func NewBookingRepository(db *sql.DB, runID string) BookingRepository {
	return &bookingRepository{db: db, runID: runID}
}

// InsertBatch stores accepted passenger-legs in a single transaction.
// A leg seen again keeps the values of the most recent booking event; on equal
// event times the greater status wins, matching ValidatedBooking.Supersedes.
func (r *bookingRepository) InsertBatch(bookings []models.ValidatedBooking) error {
	if len(bookings) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO bookings (
		run_id, timestamp, uci, age, passenger_type, booking_status, operating_airline,
		origin_airport, destination_airport, departure_date, arrival_date
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uci, operating_airline, origin_airport, destination_airport, arrival_date) DO UPDATE SET
		run_id = excluded.run_id,
		timestamp = excluded.timestamp,
		age = excluded.age,
		passenger_type = excluded.passenger_type,
		booking_status = excluded.booking_status,
		departure_date = excluded.departure_date
	WHERE excluded.timestamp > bookings.timestamp
		OR (excluded.timestamp = bookings.timestamp AND excluded.booking_status >= bookings.booking_status)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range bookings {
		b := &bookings[i]

		var age sql.NullInt64
		if b.Age != nil {
			age = sql.NullInt64{Int64: int64(*b.Age), Valid: true}
		}
		var passengerType sql.NullString
		if b.PassengerType != nil {
			passengerType = sql.NullString{String: string(*b.PassengerType), Valid: true}
		}

		if _, err := stmt.Exec(
			r.runID, formatTime(b.EventTime), b.PassengerID, age, passengerType,
			string(b.Status), b.OperatingAirline, b.Origin, b.Destination,
			formatOptionalTime(b.Departure), formatTime(b.Arrival),
		); err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ForEach streams every stored booking to fn in arrival order, stopping at the first error
func (r *bookingRepository) ForEach(fn func(b models.ValidatedBooking) error) error {
	rows, err := r.db.Query(`SELECT timestamp, uci, age, passenger_type, booking_status,
		operating_airline, origin_airport, destination_airport, departure_date, arrival_date
		FROM bookings ORDER BY arrival_date, id`)
	if err != nil {
		return fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b             models.ValidatedBooking
			eventTime     string
			age           sql.NullInt64
			passengerType sql.NullString
			status        string
			departure     sql.NullString
			arrival       string
		)
		if err := rows.Scan(&eventTime, &b.PassengerID, &age, &passengerType, &status,
			&b.OperatingAirline, &b.Origin, &b.Destination, &departure, &arrival); err != nil {
			return fmt.Errorf("failed to scan booking: %w", err)
		}

		if b.EventTime, err = parseTime(eventTime); err != nil {
			return err
		}
		if b.Arrival, err = parseTime(arrival); err != nil {
			return err
		}
		if departure.Valid {
			d, err := parseTime(departure.String)
			if err != nil {
				return err
			}
			b.Departure = &d
		}
		if age.Valid {
			n := int(age.Int64)
			b.Age = &n
		}
		if passengerType.Valid {
			pt := models.PassengerType(passengerType.String)
			b.PassengerType = &pt
		}
		b.Status = models.BookingStatus(status)

		if err := fn(b); err != nil {
			return err
		}
	}

	return rows.Err()
}
