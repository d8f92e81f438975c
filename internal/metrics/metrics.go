package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/events"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	levelPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tank",
			Name:      "level_percent",
			Help:      "Last water level reading per source.",
		}, []string{"source"},
	)
	pumpRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tank",
			Name:      "pump_running",
			Help:      "Decided pump state (1 = running).",
		},
	)
	limitPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tank",
			Name:      "limit_percent",
			Help:      "Active hysteresis limits.",
		}, []string{"bound"},
	)
	pumpPulses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tank",
			Name:      "pump_pulses_total",
			Help:      "Relay pulses issued, by kind (run or stop).",
		}, []string{"kind"},
	)
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tank",
			Name:      "api_requests_total",
			Help:      "Control API requests by route.",
		}, []string{"route"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tank",
			Name:      "events_total",
			Help:      "Recorded controller events by kind.",
		}, []string{"kind"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{levelPercent, pumpRunning, limitPercent, pumpPulses, apiRequests, eventsTotal}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info().Str("addr", addr).Msg("Serving prometheus metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
}

// Helpers below no-op if Register hasn't been called.

func SetLevel(source string, percent int) {
	if regOK.Load() {
		levelPercent.WithLabelValues(source).Set(float64(percent))
	}
}

func SetPumpRunning(running bool) {
	if regOK.Load() {
		pumpRunning.Set(boolToFloat(running))
	}
}

func SetLimits(minPercent, maxPercent int) {
	if regOK.Load() {
		limitPercent.WithLabelValues("min").Set(float64(minPercent))
		limitPercent.WithLabelValues("max").Set(float64(maxPercent))
	}
}

func IncAPIRequest(route string) {
	if regOK.Load() {
		apiRequests.WithLabelValues(route).Inc()
	}
}

// Recorder feeds controller events into the collectors.
type Recorder struct{}

func (Recorder) Record(e events.Event) error {
	if !regOK.Load() {
		return nil
	}
	eventsTotal.WithLabelValues(string(e.Kind)).Inc()
	switch e.Kind {
	case events.PumpRunPulse:
		pumpPulses.WithLabelValues("run").Inc()
	case events.PumpStopPulse:
		pumpPulses.WithLabelValues("stop").Inc()
	}
	pumpRunning.Set(boolToFloat(e.Running))
	SetLimits(e.Limits.MinPercent, e.Limits.MaxPercent)
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
