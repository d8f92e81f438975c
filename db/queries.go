package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thatsimonsguy/tank-controller/internal/events"
)

// RecentEvents returns up to limit events, newest first.
func RecentEvents(db *sql.DB, limit int) ([]events.Event, error) {
	rows, err := db.Query(`SELECT id, ts, kind, level, running, min_percent, max_percent, source FROM events ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventsByKind returns events of one kind, newest first.
func EventsByKind(db *sql.DB, kind events.Kind, limit int) ([]events.Event, error) {
	rows, err := db.Query(`SELECT id, ts, kind, level, running, min_percent, max_percent, source FROM events WHERE kind = ? ORDER BY ts DESC LIMIT ?`, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s events: %w", kind, err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEventsByKind returns the number of stored events per kind.
func CountEventsByKind(db *sql.DB) (map[events.Kind]int, error) {
	rows, err := db.Query(`SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[events.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[events.Kind(kind)] = n
	}
	return counts, rows.Err()
}

func scanEvent(rows *sql.Rows) (events.Event, error) {
	var e events.Event
	var id, ts, kind string
	err := rows.Scan(&id, &ts, &kind, &e.Level, &e.Running, &e.Limits.MinPercent, &e.Limits.MaxPercent, &e.Source)
	if err != nil {
		return e, fmt.Errorf("failed to scan event: %w", err)
	}
	if e.ID, err = uuid.Parse(id); err != nil {
		return e, fmt.Errorf("bad event id %q: %w", id, err)
	}
	if e.Time, err = time.Parse(tsLayout, ts); err != nil {
		return e, fmt.Errorf("bad event time %q: %w", ts, err)
	}
	e.Kind = events.Kind(kind)
	return e, nil
}
