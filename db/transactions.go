package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/tank-controller/internal/events"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

func InsertEvent(db *sql.DB, e events.Event) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	if err := InsertEventWithTx(tx, e); err != nil {
		RollbackTransaction(tx)
		return err
	}
	return CommitTransaction(tx)
}

func InsertEventWithTx(tx *sql.Tx, e events.Event) error {
	_, err := tx.Exec(`INSERT INTO events (id, ts, kind, level, running, min_percent, max_percent, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Time.UTC().Format(tsLayout), string(e.Kind), e.Level, e.Running, e.Limits.MinPercent, e.Limits.MaxPercent, e.Source)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// PruneEvents deletes events older than the cutoff and returns how many went.
func PruneEvents(db *sql.DB, olderThan time.Time) (int64, error) {
	tx, err := StartTransaction(db)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`DELETE FROM events WHERE ts < ?`, olderThan.UTC().Format(tsLayout))
	if err != nil {
		RollbackTransaction(tx)
		return 0, fmt.Errorf("prune events: %w", err)
	}
	if err := CommitTransaction(tx); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EventStore records events into the history table.
type EventStore struct {
	DB *sql.DB
}

func (s *EventStore) Record(e events.Event) error {
	return InsertEvent(s.DB, e)
}
