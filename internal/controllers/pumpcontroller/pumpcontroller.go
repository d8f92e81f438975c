package pumpcontroller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/datadog"
	"github.com/thatsimonsguy/tank-controller/internal/events"
	"github.com/thatsimonsguy/tank-controller/internal/gate"
	"github.com/thatsimonsguy/tank-controller/internal/gpio"
	"github.com/thatsimonsguy/tank-controller/internal/metrics"
	"github.com/thatsimonsguy/tank-controller/internal/model"
	"github.com/thatsimonsguy/tank-controller/internal/presentation"
	"github.com/thatsimonsguy/tank-controller/internal/queue"
	"github.com/thatsimonsguy/tank-controller/internal/state"
)

const (
	DefaultCooldown  = 20 * time.Second
	DefaultPulseHold = 200 * time.Millisecond
)

type Pulse string

const (
	PulseNone Pulse = ""
	PulseRun  Pulse = "run"
	PulseStop Pulse = "stop"
)

// Decide applies the hysteresis band. The run rule is checked first, so an
// inverted band (min > max) still gives one answer per reading.
func Decide(reading int, limits model.Limits, running bool) bool {
	if reading <= limits.MinPercent {
		return true
	}
	if reading >= limits.MaxPercent {
		return false
	}
	return running
}

// nextPulse updates p for a decided running state and returns the pulse
// owed, if any. Stop pulses ignore the cooldown; run pulses wait for it.
func nextPulse(p *model.PumpState, now time.Time, cooldown time.Duration) Pulse {
	switch {
	case p.Running && !p.PendingSignal &&
		(p.LastActuation.IsZero() || now.Sub(p.LastActuation) >= cooldown):
		p.PendingSignal = true
		p.LastActuation = now
		return PulseRun
	case !p.Running && p.PendingSignal:
		p.PendingSignal = false
		p.LastActuation = now
		return PulseStop
	}
	return PulseNone
}

type Controller struct {
	State     *state.ControlState
	Queue     *queue.Ring
	Relay     gpio.Relay
	Indicator *presentation.PumpIndicator
	Recorder  events.Recorder
	Ready     *gate.Latch

	Cooldown  time.Duration
	PulseHold time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

type StepResult struct {
	Reading int
	Reset   bool
	Pump    model.PumpState
	Pulse   Pulse
	Err     error
}

// Start runs the controller loop in its own goroutine.
func (c *Controller) Start(ctx context.Context) {
	go func() {
		if err := c.Run(ctx); err != nil && !presentation.IsStopped(err) {
			log.Error().Err(err).Msg("Pump controller stopped")
		}
	}()
}

func (c *Controller) Run(ctx context.Context) error {
	if c.Ready != nil {
		if err := c.Ready.Wait(ctx); err != nil {
			return err
		}
	}
	log.Info().
		Dur("cooldown", c.cooldown()).
		Dur("pulse_hold", c.pulseHold()).
		Msg("Starting pump controller")

	for {
		reading, err := c.Queue.Receive(ctx)
		if err != nil {
			return err
		}
		c.Step(reading)
	}
}

// Step handles one reading: pending reset, hysteresis, at most one relay
// pulse, then the indicator.
func (c *Controller) Step(reading int) StepResult {
	res := StepResult{Reading: reading}

	if c.State.ConsumeResetIfPending() {
		c.State.ResetLimits()
		res.Reset = true
		log.Info().Msg("Limits reset to defaults")
		c.record(events.LimitsReset, "button", reading, c.State.PumpState().Running)
	}

	limits := c.State.Limits()
	now := c.now()

	var prev model.PumpState
	res.Pump = c.State.UpdatePump(func(p *model.PumpState) {
		prev = *p
		p.Running = Decide(reading, limits, p.Running)
		res.Pulse = nextPulse(p, now, c.cooldown())
	})

	if res.Pulse != PulseNone {
		res.Err = gpio.Pulse(c.Relay, c.pulseHold(), c.sleep())
		if res.Err != nil {
			log.Error().Err(res.Err).Str("pulse", string(res.Pulse)).Msg("Relay pulse failed")
			// keep the latch consistent with what the relay actually saw
			res.Pump = c.State.UpdatePump(func(p *model.PumpState) {
				p.PendingSignal = prev.PendingSignal
				p.LastActuation = prev.LastActuation
			})
		} else {
			kind := events.PumpRunPulse
			if res.Pulse == PulseStop {
				kind = events.PumpStopPulse
			}
			log.Info().Str("pulse", string(res.Pulse)).Int("percent", reading).Msg("Relay pulsed")
			c.record(kind, "pump", reading, res.Pump.Running)
		}
	}

	if c.Indicator != nil {
		c.Indicator.Update(res.Pump.Running)
	}

	metrics.SetPumpRunning(res.Pump.Running)
	running := 0.0
	if res.Pump.Running {
		running = 1
	}
	datadog.Gauge("pump_running", running)

	log.Debug().
		Int("percent", reading).
		Int("min", limits.MinPercent).
		Int("max", limits.MaxPercent).
		Time("last_actuation", res.Pump.LastActuation).
		Bool("running", res.Pump.Running).
		Bool("pending_signal", res.Pump.PendingSignal).
		Msg("Pump controller iteration")

	return res
}

func (c *Controller) record(kind events.Kind, source string, reading int, running bool) {
	if c.Recorder == nil {
		return
	}
	snap := events.Snapshot{Level: reading, Running: running, Limits: c.State.Limits()}
	_ = c.Recorder.Record(events.New(kind, source, snap))
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) sleep() func(time.Duration) {
	if c.Sleep != nil {
		return c.Sleep
	}
	return time.Sleep
}

func (c *Controller) cooldown() time.Duration {
	if c.Cooldown > 0 {
		return c.Cooldown
	}
	return DefaultCooldown
}

func (c *Controller) pulseHold() time.Duration {
	if c.PulseHold > 0 {
		return c.PulseHold
	}
	return DefaultPulseHold
}
