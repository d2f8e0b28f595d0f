package database

import (
	"database/sql"
	"fmt"

	"booking_etl/internal/models"
)

type QuarantineRepository interface {
	InsertBatch(records []models.RejectedRecord) error
	CountByReason() (map[models.ReasonCode]int, error)
}

type quarantineRepository struct {
	db    *sql.DB
	table string
	runID string
}

func NewQuarantineRepository(db *sql.DB, entity models.Entity, runID string) QuarantineRepository {
	return &quarantineRepository{db: db, table: quarantineTable(entity), runID: runID}
}

func quarantineTable(entity models.Entity) string {
	return string(entity) + "s_quarantine"
}

// InsertBatch stores rejected records with their raw input in a single transaction
func (r *quarantineRepository) InsertBatch(records []models.RejectedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s (
		run_id, raw, reason, field, message
	) VALUES (?, ?, ?, ?, ?)`, r.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		field := sql.NullString{String: rec.Field, Valid: rec.Field != ""}
		if _, err := stmt.Exec(r.runID, rec.Raw, string(rec.Reason), field, rec.Message); err != nil {
			return fmt.Errorf("failed to insert rejected record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CountByReason returns the rejections of the current run grouped by reason code
func (r *quarantineRepository) CountByReason() (map[models.ReasonCode]int, error) {
	rows, err := r.db.Query(fmt.Sprintf(`SELECT reason, COUNT(*) FROM %s WHERE run_id = ? GROUP BY reason`, r.table), r.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rejected records: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ReasonCode]int)
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("failed to scan reason count: %w", err)
		}
		counts[models.ReasonCode(reason)] = n
	}

	return counts, rows.Err()
}
