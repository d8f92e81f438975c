package state

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/model"
)

// ControlState is the process-wide block shared by producers, the pump
// controller, presentation consumers and the API. Each field group has its
// own lock and no lock is held across a blocking call.
type ControlState struct {
	limitsMu sync.RWMutex
	limits   model.Limits

	pumpMu sync.RWMutex
	pump   model.PumpState

	levelMu sync.RWMutex
	level   int

	resetPending atomic.Bool
}

func New() *ControlState {
	return &ControlState{limits: model.DefaultLimits()}
}

func (s *ControlState) Level() int {
	s.levelMu.RLock()
	defer s.levelMu.RUnlock()
	return s.level
}

func (s *ControlState) SetLevel(percent int) {
	s.levelMu.Lock()
	s.level = model.Clamp(percent)
	s.levelMu.Unlock()
}

func (s *ControlState) Limits() model.Limits {
	s.limitsMu.RLock()
	defer s.limitsMu.RUnlock()
	return s.limits
}

// WriteLimits commits both values or neither.
func (s *ControlState) WriteLimits(l model.Limits) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if l.Inverted() {
		log.Warn().
			Int("min", l.MinPercent).
			Int("max", l.MaxPercent).
			Msg("Accepting limits with min above max; hysteresis band is empty")
	}

	s.limitsMu.Lock()
	s.limits = l
	s.limitsMu.Unlock()
	return nil
}

func (s *ControlState) ResetLimits() {
	s.limitsMu.Lock()
	s.limits = model.DefaultLimits()
	s.limitsMu.Unlock()
}

func (s *ControlState) PumpState() model.PumpState {
	s.pumpMu.RLock()
	defer s.pumpMu.RUnlock()
	return s.pump
}

// SetPumpRunning overrides the decided state. The next evaluation may undo it.
func (s *ControlState) SetPumpRunning(running bool) {
	s.pumpMu.Lock()
	s.pump.Running = running
	s.pumpMu.Unlock()
}

// UpdatePump runs fn with the pump lock held and returns the resulting state.
// fn must not block.
func (s *ControlState) UpdatePump(fn func(p *model.PumpState)) model.PumpState {
	s.pumpMu.Lock()
	defer s.pumpMu.Unlock()
	fn(&s.pump)
	return s.pump
}

// RequestReset raises the reset flag. Raising it again before it is consumed
// has no extra effect.
func (s *ControlState) RequestReset() {
	s.resetPending.Store(true)
}

func (s *ControlState) ConsumeResetIfPending() bool {
	return s.resetPending.CompareAndSwap(true, false)
}
