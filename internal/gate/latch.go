// Package gate holds the one-shot start-up barrier released once network
// bring-up has finished.
package gate

import (
	"context"
	"sync"
)

// Latch fires once. Every waiter passes it exactly once and never blocks
// on it again after it has opened.
type Latch struct {
	once sync.Once
	done chan struct{}
}

func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Open releases all current and future waiters. Extra calls are no-ops.
func (l *Latch) Open() {
	l.once.Do(func() { close(l.done) })
}

func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Latch) IsOpen() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
