// Package events describes the things worth remembering about the pump:
// relay pulses, manual overrides and limit changes. Events are delivered to
// any number of recorders (audit db, MQTT, metrics).
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/model"
)

type Kind string

const (
	PumpRunPulse   Kind = "pump_run_pulse"
	PumpStopPulse  Kind = "pump_stop_pulse"
	PumpOverride   Kind = "pump_override"
	LimitsUpdated  Kind = "limits_updated"
	LimitsRejected Kind = "limits_rejected"
	LimitsReset    Kind = "limits_reset"
)

type Event struct {
	ID      uuid.UUID    `json:"id"`
	Time    time.Time    `json:"time"`
	Kind    Kind         `json:"kind"`
	Level   int          `json:"level"`
	Running bool         `json:"running"`
	Limits  model.Limits `json:"limits"`
	Source  string       `json:"source"`
}

// Snapshot is the slice of control state copied into every event.
type Snapshot struct {
	Level   int
	Running bool
	Limits  model.Limits
}

var newID = uuid.New
var now = time.Now

func New(kind Kind, source string, snap Snapshot) Event {
	return Event{
		ID:      newID(),
		Time:    now().UTC(),
		Kind:    kind,
		Level:   snap.Level,
		Running: snap.Running,
		Limits:  snap.Limits,
		Source:  source,
	}
}

type Recorder interface {
	Record(e Event) error
}

// RecorderFunc adapts a plain function.
type RecorderFunc func(e Event) error

func (f RecorderFunc) Record(e Event) error { return f(e) }

// Fanout hands each event to every recorder in order. A failing recorder is
// logged and does not stop the others.
type Fanout struct {
	recorders map[string]Recorder
	order     []string
}

func NewFanout() *Fanout {
	return &Fanout{recorders: make(map[string]Recorder)}
}

// Add registers r under name. Call before the fanout is shared.
func (f *Fanout) Add(name string, r Recorder) *Fanout {
	if r == nil {
		return f
	}
	if _, ok := f.recorders[name]; !ok {
		f.order = append(f.order, name)
	}
	f.recorders[name] = r
	return f
}

func (f *Fanout) Record(e Event) error {
	if f == nil {
		return nil
	}
	for _, name := range f.order {
		if err := f.recorders[name].Record(e); err != nil {
			log.Warn().
				Err(err).
				Str("recorder", name).
				Str("kind", string(e.Kind)).
				Str("event_id", e.ID.String()).
				Msg("Failed to record event")
		}
	}
	return nil
}

// Memory keeps events in memory for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *Memory) Kinds() []Kind {
	var kinds []Kind
	for _, e := range m.Events() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
