package queue

import "sync"

// Bus fans every published reading out to one Ring per subscriber so a slow
// consumer only loses its own readings.
type Bus struct {
	mu    sync.RWMutex
	depth int
	subs  map[string]*Ring
}

func NewBus(depth int) *Bus {
	return &Bus{depth: depth, subs: make(map[string]*Ring)}
}

// Subscribe returns the ring for name, creating it on first use.
func (b *Bus) Subscribe(name string) *Ring {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.subs[name]; ok {
		return r
	}
	r := NewRing(b.depth)
	b.subs[name] = r
	return r
}

func (b *Bus) Publish(percent int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.subs {
		r.Push(percent)
	}
}
