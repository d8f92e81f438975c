package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/tank-controller/internal/config"
	"github.com/thatsimonsguy/tank-controller/internal/controllers/pumpcontroller"
	"github.com/thatsimonsguy/tank-controller/internal/events"
	"github.com/thatsimonsguy/tank-controller/internal/gpio"
	"github.com/thatsimonsguy/tank-controller/internal/model"
	"github.com/thatsimonsguy/tank-controller/internal/queue"
	"github.com/thatsimonsguy/tank-controller/internal/state"
)

func setupServer(strict bool) (*Server, *state.ControlState, *events.Memory) {
	st := state.New()
	rec := &events.Memory{}
	return NewServer(st, rec, config.API{Addr: "127.0.0.1:0", StrictLimits: strict}), st, rec
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func assertFramed(t *testing.T, w *httptest.ResponseRecorder, contentType string) {
	t.Helper()
	assert.Equal(t, contentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "close", w.Header().Get("Connection"))
	assert.Equal(t, len(w.Body.Bytes()), atoi(t, w.Header().Get("Content-Length")))
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}

func TestPumpOverride(t *testing.T) {
	s, st, rec := setupServer(false)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/bomba/on", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MsgPumpOn, w.Body.String())
	assertFramed(t, w, "text/plain")
	assert.True(t, st.PumpState().Running)

	w = do(t, h, http.MethodGet, "/bomba/off", "")
	assert.Equal(t, MsgPumpOff, w.Body.String())
	assert.False(t, st.PumpState().Running)

	assert.Equal(t, []events.Kind{events.PumpOverride, events.PumpOverride}, rec.Kinds())
	assert.Equal(t, "api", rec.Events()[0].Source)
}

func TestStatus(t *testing.T) {
	s, st, _ := setupServer(false)
	st.SetLevel(42)
	st.SetPumpRunning(true)

	w := do(t, s.Handler(), http.MethodGet, "/estado", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assertFramed(t, w, "application/json")
	assert.Equal(t, `{"bomba_agua":1,"nivel_agua":42,"limite_maximo":50,"limite_minimo":20}`+"\r\n", w.Body.String())
}

func TestLimits(t *testing.T) {
	tests := []struct {
		name       string
		strict     bool
		body       string
		wantCode   int
		wantLimits model.Limits
		wantKind   events.Kind
	}{
		{"valid", false, `{"max":80,"min":30}`, 200, model.Limits{MinPercent: 30, MaxPercent: 80}, events.LimitsUpdated},
		{"boundaries", false, `{"max":100,"min":0}`, 200, model.Limits{MinPercent: 0, MaxPercent: 100}, events.LimitsUpdated},
		{"trailing content ignored", false, `{"max":70,"min":10,"extra":true}`, 200, model.Limits{MinPercent: 10, MaxPercent: 70}, events.LimitsUpdated},
		{"out of range acked", false, `{"max":101,"min":20}`, 200, model.DefaultLimits(), events.LimitsRejected},
		{"negative acked", false, `{"max":50,"min":-1}`, 200, model.DefaultLimits(), events.LimitsRejected},
		{"malformed acked", false, `{"min":10,"max":70}`, 200, model.DefaultLimits(), events.LimitsRejected},
		{"strict out of range", true, `{"max":101,"min":20}`, 400, model.DefaultLimits(), events.LimitsRejected},
		{"strict malformed", true, `max=70`, 400, model.DefaultLimits(), events.LimitsRejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, st, rec := setupServer(tc.strict)

			w := do(t, s.Handler(), http.MethodPost, "/limites", tc.body)

			assert.Equal(t, tc.wantCode, w.Code)
			if tc.wantCode == http.StatusOK {
				assert.Equal(t, MsgLimitsAccepted, w.Body.String())
				assertFramed(t, w, "text/plain")
			} else {
				assertFramed(t, w, "application/json")
			}
			assert.Equal(t, tc.wantLimits, st.Limits())
			assert.Equal(t, []events.Kind{tc.wantKind}, rec.Kinds())
		})
	}
}

func TestUnknownRoutesServePage(t *testing.T) {
	s, st, _ := setupServer(false)
	h := s.Handler()

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/favicon.ico"},
		{http.MethodPost, "/bomba/on"},
		{http.MethodGet, "/limites"},
	} {
		w := do(t, h, req.method, req.path, "")
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", req.method, req.path)
		assertFramed(t, w, "text/html")
		assert.Contains(t, w.Body.String(), "<html")
	}
	assert.False(t, st.PumpState().Running, "POST /bomba/on is not an override")
}

func TestStatusAfterControlSequence(t *testing.T) {
	s, st, _ := setupServer(false)
	relay := gpio.NewFakeRelay()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctrl := &pumpcontroller.Controller{
		State: st,
		Queue: queue.NewRing(5),
		Relay: relay,
		Now:   func() time.Time { return clock },
		Sleep: func(time.Duration) {},
	}

	for _, r := range []int{55, 45, 19, 70} {
		st.SetLevel(r)
		ctrl.Step(r)
		clock = clock.Add(100 * time.Millisecond)
	}

	w := do(t, s.Handler(), http.MethodGet, "/estado", "")
	var got StatusResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(w.Body.String())), &got))
	assert.Equal(t, StatusResponse{Pump: 0, Level: 70, MaxLimit: 50, MinLimit: 20}, got)
	assert.Equal(t, 2, relay.Pulses())
}

func TestServe_ClosesConnectionAndDropsOversizeBody(t *testing.T) {
	s, _, _ := setupServer(false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.serveListener(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/estado")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, resp.Close, "server closes after each response")
	assert.Equal(t, int64(len(body)), resp.ContentLength)

	big := `{"max":80,"min":30}` + strings.Repeat(" ", 4096)
	_, err = http.Post(base+"/limites", "application/json", strings.NewReader(big))
	assert.Error(t, err, "oversize body drops the connection")

	cancel()
	assert.NoError(t, <-done)
}

func TestStart_ReportsTransportFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	s := NewServer(state.New(), nil, config.API{Addr: busy.Addr().String()})
	failed := make(chan error, 1)
	s.OnTransportFailure = func(err error) { failed <- err }

	s.Start(context.Background())

	select {
	case err := <-failed:
		var te *TransportError
		assert.True(t, errors.As(err, &te))
		assert.Equal(t, busy.Addr().String(), te.Addr)
	case <-time.After(2 * time.Second):
		t.Fatal("transport failure not reported")
	}
}
