package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/config"
	"github.com/thatsimonsguy/tank-controller/internal/events"
	"github.com/thatsimonsguy/tank-controller/internal/metrics"
	"github.com/thatsimonsguy/tank-controller/internal/model"
	"github.com/thatsimonsguy/tank-controller/internal/state"
)

//go:embed page.html
var controlPage []byte

const (
	MsgPumpOn         = "Bomba Ligada"
	MsgPumpOff        = "Bomba Desligada"
	MsgLimitsAccepted = "Limites atualizados"

	// larger limits bodies drop the connection
	maxBodyBytes = 1024
)

type Server struct {
	state        *state.ControlState
	recorder     events.Recorder
	addr         string
	strictLimits bool

	// OnTransportFailure is called when the listener cannot be set up or
	// dies. The API goroutine ends afterwards; nothing else is affected.
	OnTransportFailure func(err error)
}

type StatusResponse struct {
	Pump     int `json:"bomba_agua"`
	Level    int `json:"nivel_agua"`
	MaxLimit int `json:"limite_maximo"`
	MinLimit int `json:"limite_minimo"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// TransportError wraps listen/serve failures.
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("control api on %s: %v", e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewServer(st *state.ControlState, rec events.Recorder, cfg config.API) *Server {
	return &Server{
		state:        st,
		recorder:     rec,
		addr:         cfg.Addr,
		strictLimits: cfg.StrictLimits,
	}
}

// Router builds the route table. Anything that is not one of the four
// control routes gets the control page.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/bomba/on", s.pumpOn).Methods(http.MethodGet)
	r.HandleFunc("/bomba/off", s.pumpOff).Methods(http.MethodGet)
	r.HandleFunc("/estado", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/limites", s.postLimits).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(s.page)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.page)

	return r
}

// Handler is the router with CORS and access logging applied.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(accessLog{}, cors(s.Router()))
}

// Serve listens on the configured address and blocks until ctx ends or the
// listener fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return &TransportError{Addr: s.addr, Err: err}
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxHeaderBytes:    8 << 10,
	}
	srv.SetKeepAlivesEnabled(false)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", ln.Addr().String()).Msg("Starting control API server")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return &TransportError{Addr: ln.Addr().String(), Err: err}
	}
	return nil
}

// Start runs Serve in its own goroutine and reports transport failures.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("Control API stopped")
			if s.OnTransportFailure != nil {
				s.OnTransportFailure(err)
			}
		}
	}()
}

func (s *Server) pumpOn(w http.ResponseWriter, r *http.Request) {
	s.override(w, true)
}

func (s *Server) pumpOff(w http.ResponseWriter, r *http.Request) {
	s.override(w, false)
}

// override sets the decided pump state; the next threshold crossing in the
// pump controller replaces it.
func (s *Server) override(w http.ResponseWriter, running bool) {
	route, msg := "bomba_off", MsgPumpOff
	if running {
		route, msg = "bomba_on", MsgPumpOn
	}
	metrics.IncAPIRequest(route)

	s.state.SetPumpRunning(running)
	log.Info().Bool("running", running).Msg("Pump state overridden via API")
	s.record(events.PumpOverride)

	writeText(w, http.StatusOK, "text/plain", []byte(msg))
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncAPIRequest("estado")

	limits := s.state.Limits()
	resp := StatusResponse{
		Level:    s.state.Level(),
		MaxLimit: limits.MaxPercent,
		MinLimit: limits.MinPercent,
	}
	if s.state.PumpState().Running {
		resp.Pump = 1
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeText(w, http.StatusOK, "application/json", append(body, '\r', '\n'))
}

func (s *Server) postLimits(w http.ResponseWriter, r *http.Request) {
	metrics.IncAPIRequest("limites")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			log.Warn().Int64("limit", tooBig.Limit).Msg("Limits request too large, dropping connection")
		} else {
			log.Warn().Err(err).Msg("Failed to read limits request, dropping connection")
		}
		panic(http.ErrAbortHandler)
	}

	limits, err := ParseLimits(body)
	if err == nil {
		err = s.state.WriteLimits(limits)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Int("min", limits.MinPercent).
			Int("max", limits.MaxPercent).
			Msg("Rejected limits update")
		s.recordLimits(events.LimitsRejected, limits)
		if s.strictLimits {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeText(w, http.StatusOK, "text/plain", []byte(MsgLimitsAccepted))
		return
	}

	log.Info().Int("min", limits.MinPercent).Int("max", limits.MaxPercent).Msg("Limits updated via API")
	s.record(events.LimitsUpdated)
	writeText(w, http.StatusOK, "text/plain", []byte(MsgLimitsAccepted))
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	metrics.IncAPIRequest("page")
	writeText(w, http.StatusOK, "text/html", controlPage)
}

func (s *Server) record(kind events.Kind) {
	s.recordLimits(kind, s.state.Limits())
}

func (s *Server) recordLimits(kind events.Kind, limits model.Limits) {
	if s.recorder == nil {
		return
	}
	snap := events.Snapshot{
		Level:   s.state.Level(),
		Running: s.state.PumpState().Running,
		Limits:  limits,
	}
	_ = s.recorder.Record(events.New(kind, "api", snap))
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	body, _ := json.Marshal(ErrorResponse{Error: message})
	writeText(w, statusCode, "application/json", body)
}

// writeText sends a complete response with an explicit length and asks the
// server to close the connection afterwards.
func writeText(w http.ResponseWriter, statusCode int, contentType string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Connection", "close")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// accessLog sends gorilla's access log lines to zerolog at debug level.
type accessLog struct{}

func (accessLog) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	log.Debug().Str("component", "api").Msg(string(p))
	return n, nil
}
