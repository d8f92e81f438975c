// Package mqtt publishes controller events to the home broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/thatsimonsguy/tank-controller/internal/events"
)

// EventsTopic is appended to the configured prefix.
const EventsTopic = "events"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends one event. A failure is returned, never fatal.
	Publish(e events.Event) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the JSON body of an event message.
type Payload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source"`
	Level     int    `json:"nivel_agua"`
	Pump      int    `json:"bomba_agua"`
	Min       int    `json:"limite_minimo"`
	Max       int    `json:"limite_maximo"`
}

// FormatPayload renders an event using the same field names as /estado.
func FormatPayload(e events.Event) ([]byte, error) {
	pump := 0
	if e.Running {
		pump = 1
	}
	return json.Marshal(Payload{
		ID:        e.ID.String(),
		Timestamp: e.Time.UTC().Format(time.RFC3339),
		Event:     string(e.Kind),
		Source:    e.Source,
		Level:     e.Level,
		Pump:      pump,
		Min:       e.Limits.MinPercent,
		Max:       e.Limits.MaxPercent,
	})
}

func Topic(prefix string) string {
	if prefix == "" {
		return EventsTopic
	}
	return prefix + "/" + EventsTopic
}

// Recorder adapts a Publisher to events.Recorder.
func Recorder(p Publisher) events.Recorder {
	return events.RecorderFunc(p.Publish)
}
