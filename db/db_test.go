package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/tank-controller/internal/events"
	"github.com/thatsimonsguy/tank-controller/internal/model"
)

func memDB(t *testing.T) *sql.DB {
	t.Helper()
	dbConn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	dbConn.SetMaxOpenConns(1)
	require.NoError(t, ApplySchema(dbConn))
	t.Cleanup(func() { dbConn.Close() })
	return dbConn
}

func event(kind events.Kind, at time.Time, level int) events.Event {
	e := events.New(kind, "pump", events.Snapshot{Level: level, Running: kind == events.PumpRunPulse, Limits: model.DefaultLimits()})
	e.Time = at
	return e
}

func TestInsertAndRecentEvents(t *testing.T) {
	dbConn := memDB(t)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	run := event(events.PumpRunPulse, base, 19)
	stop := event(events.PumpStopPulse, base.Add(time.Minute), 70)
	require.NoError(t, InsertEvent(dbConn, run))
	require.NoError(t, InsertEvent(dbConn, stop))

	got, err := RecentEvents(dbConn, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, stop.ID, got[0].ID, "newest first")
	assert.Equal(t, events.PumpStopPulse, got[0].Kind)
	assert.Equal(t, 70, got[0].Level)
	assert.False(t, got[0].Running)
	assert.True(t, got[1].Running)
	assert.Equal(t, model.Limits{MinPercent: 20, MaxPercent: 50}, got[1].Limits)
	assert.True(t, base.Equal(got[1].Time))

	limited, err := RecentEvents(dbConn, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInsertEvent_DuplicateIDRejected(t *testing.T) {
	dbConn := memDB(t)
	e := event(events.LimitsReset, time.Now(), 30)
	require.NoError(t, InsertEvent(dbConn, e))
	assert.Error(t, InsertEvent(dbConn, e))
}

func TestCountEventsByKindAndFilter(t *testing.T) {
	dbConn := memDB(t)
	now := time.Now().UTC()
	store := &EventStore{DB: dbConn}
	require.NoError(t, store.Record(event(events.PumpRunPulse, now, 19)))
	require.NoError(t, store.Record(event(events.PumpStopPulse, now.Add(time.Second), 70)))
	require.NoError(t, store.Record(event(events.PumpRunPulse, now.Add(2*time.Second), 10)))

	counts, err := CountEventsByKind(dbConn)
	require.NoError(t, err)
	assert.Equal(t, map[events.Kind]int{events.PumpRunPulse: 2, events.PumpStopPulse: 1}, counts)

	runs, err := EventsByKind(dbConn, events.PumpRunPulse, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 10, runs[0].Level)
}

func TestPruneEvents(t *testing.T) {
	dbConn := memDB(t)
	now := time.Now().UTC()
	require.NoError(t, InsertEvent(dbConn, event(events.PumpRunPulse, now.Add(-48*time.Hour), 19)))
	require.NoError(t, InsertEvent(dbConn, event(events.PumpStopPulse, now, 70)))

	n, err := PruneEvents(dbConn, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := RecentEvents(dbConn, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, events.PumpStopPulse, left[0].Kind)
}

func TestOpenAndCLIHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tank.db")
	dbConn, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, InsertEvent(dbConn, event(events.LimitsUpdated, time.Now().UTC(), 40)))
	dbConn.Close()

	got, err := RecentEventsCLI(path, 5, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = RecentEventsCLI(path, 5, string(events.PumpRunPulse))
	require.NoError(t, err)
	assert.Empty(t, got)

	counts, err := CountEventsCLI(path)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[events.LimitsUpdated])
}
