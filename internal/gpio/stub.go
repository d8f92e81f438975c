//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

type RealRelay struct{}

func NewRealRelay(chip string, pin int, activeLow bool) (*RealRelay, error) {
	return nil, errUnsupported
}

func (r *RealRelay) Set(asserted bool) error { return errUnsupported }
func (r *RealRelay) Close() error           { return nil }

type RealButtons struct{}

func NewRealButtons(chip string, pins map[Button]int) (*RealButtons, error) {
	return nil, errUnsupported
}

func (b *RealButtons) Events() <-chan ButtonEvent { return nil }
func (b *RealButtons) Close() error               { return nil }

type RealRanger struct{}

func NewRealRanger(chip string, trigPin, echoPin int) (*RealRanger, error) {
	return nil, errUnsupported
}

func (r *RealRanger) PulseWidth(timeout time.Duration) (time.Duration, error) {
	return 0, errUnsupported
}
func (r *RealRanger) Close() error { return nil }

type RealIndicator struct{}

func NewRealIndicator(chip string, greenPin, yellowPin, buzzerPin int) (*RealIndicator, error) {
	return nil, errUnsupported
}

func (ind *RealIndicator) IndicatePump(running bool) {}
func (ind *RealIndicator) Close() error             { return nil }
