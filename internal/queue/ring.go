// Package queue provides the bounded reading queues that connect level
// producers to their consumers.
package queue

import (
	"context"
	"sync"
)

// Ring is a fixed-capacity FIFO. Push never blocks: when full, the oldest
// entry is overwritten. Receive blocks until an entry is available.
type Ring struct {
	mu       sync.Mutex
	buf      []int
	capacity int
	head     int // next write position
	count    int
	dropped  uint64

	ready chan struct{}
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf:      make([]int, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

func (r *Ring) Push(v int) {
	r.mu.Lock()
	if r.count == r.capacity {
		r.dropped++
	} else {
		r.count++
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.capacity
	r.mu.Unlock()

	select {
	case r.ready <- struct{}{}:
	default:
	}
}

// TryReceive pops the oldest entry without blocking.
func (r *Ring) TryReceive() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return 0, false
	}
	start := (r.head - r.count + r.capacity) % r.capacity
	v := r.buf[start]
	r.count--
	return v, true
}

// Receive waits for the oldest entry. It only returns early when ctx ends.
func (r *Ring) Receive(ctx context.Context) (int, error) {
	for {
		if v, ok := r.TryReceive(); ok {
			return v, nil
		}
		select {
		case <-r.ready:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped counts entries overwritten before they were received.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
