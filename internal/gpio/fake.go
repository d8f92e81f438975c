package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeRelay records every Set call. Safe for concurrent use.
type FakeRelay struct {
	mu       sync.Mutex
	Calls    []bool
	asserted bool
	SetError error
	Closed   bool
}

func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

func (f *FakeRelay) Set(asserted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil && asserted {
		return f.SetError
	}
	f.Calls = append(f.Calls, asserted)
	f.asserted = asserted
	return nil
}

// Pulses counts complete assert/release pairs.
func (f *FakeRelay) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := 1; i < len(f.Calls); i++ {
		if f.Calls[i-1] && !f.Calls[i] {
			n++
		}
	}
	return n
}

func (f *FakeRelay) Asserted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asserted
}

func (f *FakeRelay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asserted = false
	f.Closed = true
	return nil
}

// FakeButtons lets tests inject presses.
type FakeButtons struct {
	events chan ButtonEvent
}

func NewFakeButtons() *FakeButtons {
	return &FakeButtons{events: make(chan ButtonEvent, 8)}
}

func (f *FakeButtons) Press(b Button) {
	f.events <- ButtonEvent{Button: b, Time: time.Now()}
}

func (f *FakeButtons) Events() <-chan ButtonEvent { return f.events }

func (f *FakeButtons) Close() error {
	close(f.events)
	return nil
}

// FakeRanger returns scripted pulse widths; a zero width means timeout.
// After the script runs out the last entry repeats.
type FakeRanger struct {
	mu     sync.Mutex
	Widths []time.Duration
	index  int
}

func NewFakeRanger(widths ...time.Duration) *FakeRanger {
	return &FakeRanger{Widths: widths}
}

func (f *FakeRanger) PulseWidth(timeout time.Duration) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Widths) == 0 {
		return 0, errors.New("no widths configured")
	}
	w := f.Widths[f.index]
	if f.index < len(f.Widths)-1 {
		f.index++
	}
	if w == 0 || w > timeout {
		return 0, ErrNoEcho
	}
	return w, nil
}

func (f *FakeRanger) Close() error { return nil }

// FakeIndicator records pump indications.
type FakeIndicator struct {
	mu    sync.Mutex
	Shown []bool
}

func (f *FakeIndicator) IndicatePump(running bool) {
	f.mu.Lock()
	f.Shown = append(f.Shown, running)
	f.mu.Unlock()
}

func (f *FakeIndicator) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.Shown...)
}
