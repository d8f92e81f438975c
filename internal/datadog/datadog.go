package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/env"
	"github.com/thatsimonsguy/tank-controller/internal/events"
)

// client is the subset of statsd.ClientInterface used here.
type client interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Incr(name string, tags []string, rate float64) error
}

var dogstatsd client

func InitMetrics() {
	c, err := statsd.New(env.Cfg.DDAgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	c.Namespace = env.Cfg.DDNamespace
	c.Tags = env.Cfg.DDTags
	dogstatsd = c

	log.Info().
		Str("addr", env.Cfg.DDAgentAddr).
		Str("namespace", env.Cfg.DDNamespace).
		Strs("tags", env.Cfg.DDTags).
		Msg("Datadog metrics initialized")
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Gauge(name, value, tags, 1)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

func Incr(name string, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Incr(name, tags, 1)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
		}
	}
}

// LevelObserver matches level.Observer.
func LevelObserver(source string, percent int) {
	Gauge("level_percent", float64(percent), "source:"+source)
}

// Recorder mirrors controller events as statsd metrics.
type Recorder struct{}

func (Recorder) Record(e events.Event) error {
	Incr("events", "kind:"+string(e.Kind))
	running := 0.0
	if e.Running {
		running = 1
	}
	Gauge("pump_running", running)
	Gauge("limit_percent", float64(e.Limits.MinPercent), "bound:min")
	Gauge("limit_percent", float64(e.Limits.MaxPercent), "bound:max")
	return nil
}
