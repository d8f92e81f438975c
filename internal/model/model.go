package model

import (
	"fmt"
	"time"
)

const (
	DefaultMinPercent = 20
	DefaultMaxPercent = 50

	MinPercent = 0
	MaxPercent = 100
)

// Limits holds the hysteresis band. MinPercent > MaxPercent is tolerated.
type Limits struct {
	MinPercent int `json:"min"`
	MaxPercent int `json:"max"`
}

func DefaultLimits() Limits {
	return Limits{MinPercent: DefaultMinPercent, MaxPercent: DefaultMaxPercent}
}

// Inverted reports whether the band is empty because min sits above max.
func (l Limits) Inverted() bool {
	return l.MinPercent > l.MaxPercent
}

func (l Limits) Validate() error {
	if !InRange(l.MinPercent) {
		return &ValidationError{Field: "min", Value: l.MinPercent}
	}
	if !InRange(l.MaxPercent) {
		return &ValidationError{Field: "max", Value: l.MaxPercent}
	}
	return nil
}

type PumpState struct {
	Running       bool      `json:"running"`
	LastActuation time.Time `json:"last_actuation"`
	PendingSignal bool      `json:"pending_signal"` // run pulse issued, stop pulse still owed
}

type ValidationError struct {
	Field string
	Value int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s=%d outside [%d,%d]", e.Field, e.Value, MinPercent, MaxPercent)
}

func InRange(percent int) bool {
	return percent >= MinPercent && percent <= MaxPercent
}

// Clamp forces a computed percentage into [0,100].
func Clamp(percent int) int {
	if percent < MinPercent {
		return MinPercent
	}
	if percent > MaxPercent {
		return MaxPercent
	}
	return percent
}

type GPIOPin struct {
	Number     int
	ActiveHigh bool
}
