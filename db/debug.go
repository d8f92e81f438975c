package db

import (
	"database/sql"
	"time"

	"github.com/thatsimonsguy/tank-controller/internal/events"
)

func RecentEventsCLI(dbPath string, limit int, kind string) ([]events.Event, error) {
	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	defer dbConn.Close()
	if kind != "" {
		return EventsByKind(dbConn, events.Kind(kind), limit)
	}
	return RecentEvents(dbConn, limit)
}

func CountEventsCLI(dbPath string) (map[events.Kind]int, error) {
	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	defer dbConn.Close()
	return CountEventsByKind(dbConn)
}

func PruneEventsCLI(dbPath string, olderThan time.Duration) (int64, error) {
	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return 0, err
	}
	defer dbConn.Close()
	return PruneEvents(dbConn, time.Now().Add(-olderThan))
}
