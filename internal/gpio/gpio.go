// Package gpio wraps the board lines the controller touches: the pump relay,
// the indicator LEDs and buzzer, the push buttons and the ultrasonic ranger.
// The real implementation uses the Linux GPIO character device; the fakes
// in fake.go stand in for hardware in tests.
package gpio

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoEcho is returned when the ranging echo does not come back in time.
var ErrNoEcho = errors.New("gpio: no echo within timeout")

// Relay drives the optically isolated pump relay. Set(true) asserts it
// regardless of the line polarity.
type Relay interface {
	Set(asserted bool) error
	Close() error
}

// Pulse asserts the relay, holds it and releases it. The relay is released
// even when asserting fails half way.
func Pulse(r Relay, hold time.Duration, sleep func(time.Duration)) error {
	if err := r.Set(true); err != nil {
		_ = r.Set(false)
		return fmt.Errorf("assert relay: %w", err)
	}
	sleep(hold)
	if err := r.Set(false); err != nil {
		return fmt.Errorf("release relay: %w", err)
	}
	return nil
}

type Button int

const (
	ButtonA Button = iota
	ButtonB
	ButtonSW
)

func (b Button) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	case ButtonSW:
		return "SW"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

type ButtonEvent struct {
	Button Button
	Time   time.Time
}

// Buttons delivers debounced press events.
type Buttons interface {
	Events() <-chan ButtonEvent
	Close() error
}

// Ranger measures the echo pulse width of an ultrasonic sensor.
type Ranger interface {
	PulseWidth(timeout time.Duration) (time.Duration, error)
	Close() error
}

// Tone is one buzzer note followed by a silent gap.
type Tone struct {
	FreqHz int
	On     time.Duration
	Off    time.Duration
}

var (
	RunningPattern = []Tone{{FreqHz: 300, On: 250 * time.Millisecond}}
	StoppedPattern = []Tone{
		{FreqHz: 900, On: 150 * time.Millisecond, Off: 150 * time.Millisecond},
		{FreqHz: 900, On: 150 * time.Millisecond, Off: 150 * time.Millisecond},
	}
)

// relayLevel maps the logical relay state onto the physical line value.
func relayLevel(asserted, activeLow bool) int {
	if asserted != activeLow {
		return 1
	}
	return 0
}
