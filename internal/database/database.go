package database

import (
	"database/sql"
	"fmt"
	"time"

	"booking_etl/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout stores instants as fixed width UTC text so that they sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB holds the SQLite connection shared by the clean and quarantine repositories
type DB struct {
	db *sql.DB
}

// New creates and initializes a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := optimizeSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to optimize database: %w", err)
	}

	database := &DB{db: db}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// optimizeSQLite tunes SQLite for many small batched writes
func optimizeSQLite(db *sql.DB) error {
	pragmas := []string{
		// WAL lets the report command read while a run is writing
		"PRAGMA journal_mode=WAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// BookingRepository returns the clean bookings store, stamping rows with runID
func (d *DB) BookingRepository(runID string) BookingRepository {
	return NewBookingRepository(d.db, runID)
}

// AirportRepository returns the clean airports store, stamping rows with runID
func (d *DB) AirportRepository(runID string) AirportRepository {
	return NewAirportRepository(d.db, runID)
}

// QuarantineRepository returns the quarantine store of one entity
func (d *DB) QuarantineRepository(entity models.Entity, runID string) QuarantineRepository {
	return NewQuarantineRepository(d.db, entity, runID)
}

// initSchema creates the database schema if it doesn't exist
func (d *DB) initSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			uci TEXT NOT NULL,
			age INTEGER,
			passenger_type TEXT,
			booking_status TEXT NOT NULL,
			operating_airline TEXT NOT NULL,
			origin_airport TEXT NOT NULL,
			destination_airport TEXT NOT NULL,
			departure_date TEXT,
			arrival_date TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(uci, operating_airline, origin_airport, destination_airport, arrival_date)
		);`,
		`CREATE TABLE IF NOT EXISTS airports (
			iata TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			airport_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			city TEXT NOT NULL,
			country TEXT NOT NULL,
			icao TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			altitude REAL NOT NULL,
			timezone_hours REAL,
			dst TEXT,
			timezone_string TEXT,
			type TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, entity := range []models.Entity{models.EntityBooking, models.EntityAirport} {
		tables = append(tables, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			raw TEXT NOT NULL,
			reason TEXT NOT NULL,
			field TEXT,
			message TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`, quarantineTable(entity)))
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_bookings_arrival_date ON bookings(arrival_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_run_id ON bookings(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_quarantine_reason ON bookings_quarantine(reason)`,
		`CREATE INDEX IF NOT EXISTS idx_airports_quarantine_reason ON airports_quarantine(reason)`,
	}

	for _, table := range tables {
		if _, err := d.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, idx := range indexes {
		if _, err := d.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}
