package mqtt

import (
	"sync"

	"github.com/thatsimonsguy/tank-controller/internal/events"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all events that were published.
	Events []events.Event

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(e)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, e)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
