//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"
)

const buttonDebounce = 200 * time.Millisecond

// RealRelay drives the relay line. It starts released.
type RealRelay struct {
	line      *gpiocdev.Line
	activeLow bool
}

func NewRealRelay(chip string, pin int, activeLow bool) (*RealRelay, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(relayLevel(false, activeLow)))
	if err != nil {
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}
	return &RealRelay{line: line, activeLow: activeLow}, nil
}

func (r *RealRelay) Set(asserted bool) error {
	return r.line.SetValue(relayLevel(asserted, r.activeLow))
}

// Close releases the relay before handing the line back.
func (r *RealRelay) Close() error {
	if err := r.Set(false); err != nil {
		log.Warn().Err(err).Msg("Failed to release relay before close")
	}
	return r.line.Close()
}

// RealButtons watches the button lines for falling edges (buttons pull to
// ground) using the kernel debouncer.
type RealButtons struct {
	lines  []*gpiocdev.Line
	events chan ButtonEvent
}

func NewRealButtons(chip string, pins map[Button]int) (*RealButtons, error) {
	b := &RealButtons{events: make(chan ButtonEvent, 8)}

	for button, pin := range pins {
		button := button
		handler := func(evt gpiocdev.LineEvent) {
			select {
			case b.events <- ButtonEvent{Button: button, Time: time.Now()}:
			default:
				log.Warn().Str("button", button.String()).Msg("Button event dropped, consumer busy")
			}
		}
		line, err := gpiocdev.RequestLine(chip, pin,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(buttonDebounce),
			gpiocdev.WithEventHandler(handler))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request button %s pin %d: %w", button, pin, err)
		}
		b.lines = append(b.lines, line)
	}
	return b, nil
}

func (b *RealButtons) Events() <-chan ButtonEvent {
	return b.events
}

func (b *RealButtons) Close() error {
	var errs []error
	for _, l := range b.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.lines = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealRanger triggers an HC-SR04 style sensor and times the echo from the
// kernel edge timestamps.
type RealRanger struct {
	trig  *gpiocdev.Line
	echo  *gpiocdev.Line
	edges chan gpiocdev.LineEvent
	mu    sync.Mutex
}

func NewRealRanger(chip string, trigPin, echoPin int) (*RealRanger, error) {
	r := &RealRanger{edges: make(chan gpiocdev.LineEvent, 4)}

	trig, err := gpiocdev.RequestLine(chip, trigPin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request trig pin %d: %w", trigPin, err)
	}
	echo, err := gpiocdev.RequestLine(chip, echoPin,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			select {
			case r.edges <- evt:
			default:
			}
		}))
	if err != nil {
		trig.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", echoPin, err)
	}
	r.trig = trig
	r.echo = echo
	return r, nil
}

func (r *RealRanger) PulseWidth(timeout time.Duration) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// drop stale edges from a previous timed-out cycle
	for len(r.edges) > 0 {
		<-r.edges
	}

	if err := r.trig.SetValue(1); err != nil {
		return 0, fmt.Errorf("raise trig: %w", err)
	}
	time.Sleep(10 * time.Microsecond)
	if err := r.trig.SetValue(0); err != nil {
		return 0, fmt.Errorf("lower trig: %w", err)
	}

	deadline := time.After(timeout)
	var rising *gpiocdev.LineEvent
	for {
		select {
		case evt := <-r.edges:
			switch {
			case evt.Type == gpiocdev.LineEventRisingEdge:
				e := evt
				rising = &e
			case evt.Type == gpiocdev.LineEventFallingEdge && rising != nil:
				return evt.Timestamp - rising.Timestamp, nil
			}
		case <-deadline:
			return 0, ErrNoEcho
		}
	}
}

func (r *RealRanger) Close() error {
	r.echo.Close()
	return r.trig.Close()
}

// RealIndicator lights the green/yellow LEDs and plays buzzer patterns by
// toggling the buzzer line.
type RealIndicator struct {
	green  *gpiocdev.Line
	yellow *gpiocdev.Line
	buzzer *gpiocdev.Line
}

func NewRealIndicator(chip string, greenPin, yellowPin, buzzerPin int) (*RealIndicator, error) {
	ind := &RealIndicator{}
	var err error
	if ind.green, err = gpiocdev.RequestLine(chip, greenPin, gpiocdev.AsOutput(0)); err != nil {
		return nil, fmt.Errorf("request green led pin %d: %w", greenPin, err)
	}
	if ind.yellow, err = gpiocdev.RequestLine(chip, yellowPin, gpiocdev.AsOutput(0)); err != nil {
		ind.Close()
		return nil, fmt.Errorf("request yellow led pin %d: %w", yellowPin, err)
	}
	if ind.buzzer, err = gpiocdev.RequestLine(chip, buzzerPin, gpiocdev.AsOutput(0)); err != nil {
		ind.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", buzzerPin, err)
	}
	return ind, nil
}

func (ind *RealIndicator) IndicatePump(running bool) {
	green, yellow, pattern := 0, 1, StoppedPattern
	if running {
		green, yellow, pattern = 1, 0, RunningPattern
	}
	if err := ind.green.SetValue(green); err != nil {
		log.Warn().Err(err).Msg("Failed to set green led")
	}
	if err := ind.yellow.SetValue(yellow); err != nil {
		log.Warn().Err(err).Msg("Failed to set yellow led")
	}
	for _, tone := range pattern {
		ind.play(tone)
	}
}

func (ind *RealIndicator) play(t Tone) {
	if t.FreqHz > 0 {
		half := time.Second / time.Duration(2*t.FreqHz)
		end := time.Now().Add(t.On)
		level := 1
		for time.Now().Before(end) {
			_ = ind.buzzer.SetValue(level)
			level ^= 1
			time.Sleep(half)
		}
		_ = ind.buzzer.SetValue(0)
	}
	time.Sleep(t.Off)
}

func (ind *RealIndicator) Close() error {
	for _, l := range []*gpiocdev.Line{ind.green, ind.yellow, ind.buzzer} {
		if l != nil {
			_ = l.SetValue(0)
			l.Close()
		}
	}
	return nil
}
