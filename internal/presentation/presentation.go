// Package presentation holds the read-only consumers that show the tank
// state: the status screen, the LED level matrix and the pump indicator.
// None of them mutate control state.
package presentation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/display"
	"github.com/thatsimonsguy/tank-controller/internal/gate"
	"github.com/thatsimonsguy/tank-controller/internal/model"
	"github.com/thatsimonsguy/tank-controller/internal/queue"
)

// DefaultMatrixInterval is the minimum time between matrix frame changes.
const DefaultMatrixInterval = 50 * time.Millisecond

// FrameIndex maps a level to one of the five matrix frames.
func FrameIndex(percent int) int {
	switch {
	case percent >= 80:
		return 4
	case percent >= 60:
		return 3
	case percent >= 40:
		return 2
	case percent >= 20:
		return 1
	default:
		return 0
	}
}

type StatusSource interface {
	Limits() model.Limits
	PumpState() model.PumpState
}

type LinkStatus interface {
	Connected() bool
}

type DisplayConsumer struct {
	Queue *queue.Ring
	State StatusSource
	Link  LinkStatus
	Panel *display.Panel
}

func (c *DisplayConsumer) Run(ctx context.Context) error {
	for {
		percent, err := c.Queue.Receive(ctx)
		if err != nil {
			return err
		}
		c.Render(percent)
	}
}

func (c *DisplayConsumer) Render(percent int) display.Status {
	status := display.Status{
		Level:  percent,
		Limits: c.State.Limits(),
		PumpOn: c.State.PumpState().Running,
		LinkUp: c.Link != nil && c.Link.Connected(),
	}
	if err := c.Panel.ShowStatus(status); err != nil {
		log.Warn().Err(err).Msg("Failed to draw status screen")
	}
	return status
}

type MatrixConsumer struct {
	Queue       *queue.Ring
	Matrix      display.Matrix
	Ready       *gate.Latch
	MinInterval time.Duration

	now   func() time.Time
	sleep func(time.Duration)

	shown      int
	hasShown   bool
	lastChange time.Time
}

func (c *MatrixConsumer) Run(ctx context.Context) error {
	if c.Ready != nil {
		if err := c.Ready.Wait(ctx); err != nil {
			return err
		}
	}
	for {
		percent, err := c.Queue.Receive(ctx)
		if err != nil {
			return err
		}
		c.Handle(percent)
	}
}

// Handle shows the frame for percent. A change arriving sooner than
// MinInterval after the previous one waits out the interval and then shows
// the newest queued reading instead.
func (c *MatrixConsumer) Handle(percent int) {
	now, sleep := c.clock()
	frame := FrameIndex(percent)
	if c.hasShown && frame == c.shown {
		return
	}

	if c.hasShown {
		if wait := c.MinInterval - now().Sub(c.lastChange); wait > 0 {
			sleep(wait)
			for {
				latest, ok := c.Queue.TryReceive()
				if !ok {
					break
				}
				percent = latest
			}
			frame = FrameIndex(percent)
			if frame == c.shown {
				return
			}
		}
	}

	if err := c.Matrix.ShowFrame(frame); err != nil {
		log.Warn().Err(err).Int("frame", frame).Msg("Failed to draw matrix frame")
		return
	}
	c.shown = frame
	c.hasShown = true
	c.lastChange = now()
}

func (c *MatrixConsumer) clock() (func() time.Time, func(time.Duration)) {
	now, sleep := c.now, c.sleep
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return now, sleep
}

// Indicator drives the LEDs and buzzer for a pump state.
type Indicator interface {
	IndicatePump(running bool)
}

// PumpIndicator forwards only changes of the running flag. The first
// update always goes through so the LEDs match from boot.
type PumpIndicator struct {
	Indicator Indicator

	last  bool
	known bool
}

func (p *PumpIndicator) Update(running bool) bool {
	if p.known && p.last == running {
		return false
	}
	p.last = running
	p.known = true
	if p.Indicator != nil {
		p.Indicator.IndicatePump(running)
	}
	return true
}

// IsStopped reports whether err is a normal consumer shutdown.
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
