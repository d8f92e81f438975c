package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id          TEXT PRIMARY KEY,
    ts          TEXT NOT NULL,
    kind        TEXT NOT NULL,
    level       INTEGER NOT NULL,
    running     BOOLEAN NOT NULL,
    min_percent INTEGER NOT NULL,
    max_percent INTEGER NOT NULL,
    source      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_ts ON events (ts);
CREATE INDEX IF NOT EXISTS events_kind ON events (kind);
`

// Open opens (creating if needed) the event history database and applies
// the schema. The history is an audit trail only; controller state is never
// restored from it.
func Open(dbPath string) (*sql.DB, error) {
	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; serialize through a single connection
	dbConn.SetMaxOpenConns(1)

	if err := ApplySchema(dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}
	log.Info().Str("path", dbPath).Msg("Event history database ready")
	return dbConn, nil
}

func ApplySchema(dbConn *sql.DB) error {
	if _, err := dbConn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// tsLayout is fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
