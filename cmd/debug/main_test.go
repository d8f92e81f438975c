package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/tank-controller/db"
	"github.com/thatsimonsguy/tank-controller/internal/events"
	"github.com/thatsimonsguy/tank-controller/internal/model"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tank.db")
	dbConn, err := db.Open(path)
	require.NoError(t, err)
	defer dbConn.Close()

	snap := events.Snapshot{Level: 19, Running: true, Limits: model.DefaultLimits()}
	old := events.New(events.PumpRunPulse, "pump", snap)
	old.Time = time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.InsertEvent(dbConn, old))
	require.NoError(t, db.InsertEvent(dbConn, events.New(events.PumpRunPulse, "pump", snap)))
	require.NoError(t, db.InsertEvent(dbConn, events.New(events.LimitsReset, "button", snap)))
	return path
}

func TestEventsCommand_FiltersByKind(t *testing.T) {
	path := seed(t)

	out, err := run(t, "events", "--db", path, "--kind", "limits_reset")
	require.NoError(t, err)
	assert.Contains(t, out, "limits_reset")
	assert.NotContains(t, out, "pump_run_pulse")
}

func TestCountsCommand(t *testing.T) {
	path := seed(t)

	out, err := run(t, "counts", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "limits_reset     1")
	assert.Contains(t, out, "pump_run_pulse   2")
}

func TestPruneCommand(t *testing.T) {
	path := seed(t)

	out, err := run(t, "prune", "--db", path, "--older-than", "24h")
	require.NoError(t, err)
	assert.Equal(t, "pruned 1 events\n", out)

	_, err = run(t, "prune", "--db", path, "--older-than", "0s")
	assert.Error(t, err)
}

func TestStatusAndLimitsCommands(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/estado":
			_, _ = w.Write([]byte(`{"bomba_agua":0,"nivel_agua":70,"limite_maximo":50,"limite_minimo":20}` + "\r\n"))
		case "/limites":
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			_, _ = w.Write([]byte("Limites atualizados"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := run(t, "status", "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"nivel_agua":70`)

	out, err = run(t, "limits", "--url", srv.URL, "--min", "30", "--max", "80")
	require.NoError(t, err)
	assert.Equal(t, "Limites atualizados\n", out)
	assert.Equal(t, `{"max":80,"min":30}`, gotBody)
}
