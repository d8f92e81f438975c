package level

import (
	"fmt"
	"time"

	"github.com/thatsimonsguy/tank-controller/internal/adc"
	"github.com/thatsimonsguy/tank-controller/internal/gpio"
	"github.com/thatsimonsguy/tank-controller/internal/model"
)

// Sampler produces one water-level percent per call.
type Sampler interface {
	Sample() (int, error)
}

// PotentiometerSampler averages a burst of ADC conversions from the float
// arm potentiometer and maps the mean onto the calibrated empty/full range.
type PotentiometerSampler struct {
	Reader   adc.Reader
	Samples  int
	EmptyRaw int
	FullRaw  int
}

func (p *PotentiometerSampler) Sample() (int, error) {
	n := p.Samples
	if n <= 0 {
		n = 1
	}
	sum := 0
	for i := 0; i < n; i++ {
		raw, err := p.Reader.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("potentiometer sample %d: %w", i, err)
		}
		sum += raw
	}
	return RawToPercent(sum/n, p.EmptyRaw, p.FullRaw), nil
}

// RawToPercent interpolates linearly and truncates toward zero before
// clamping to [0,100].
func RawToPercent(raw, emptyRaw, fullRaw int) int {
	if fullRaw == emptyRaw {
		return 0
	}
	pct := float64(raw-emptyRaw) / float64(fullRaw-emptyRaw) * 100
	return model.Clamp(int(pct))
}

// UltrasonicSampler ranges the water surface from above the tank. A closer
// surface means a fuller tank.
type UltrasonicSampler struct {
	Ranger  gpio.Ranger
	EmptyCM float64
	FullCM  float64
	Timeout time.Duration
}

func (u *UltrasonicSampler) Sample() (int, error) {
	width, err := u.Ranger.PulseWidth(u.Timeout)
	if err != nil {
		return 0, err
	}
	return DistanceToPercent(EchoToCM(width), u.EmptyCM, u.FullCM), nil
}

// EchoToCM converts an echo pulse width to distance (58 µs per cm round trip).
func EchoToCM(width time.Duration) float64 {
	return float64(width.Microseconds()) / 58.0
}

func DistanceToPercent(cm, emptyCM, fullCM float64) int {
	span := emptyCM - fullCM
	if span == 0 {
		return 0
	}
	pct := (emptyCM - cm) / span * 100
	return model.Clamp(int(pct))
}
