package reschedule

import (
	"sync"
	"sync/atomic"
)

// Bus fans terminal outcomes out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the outcome and Dropped is bumped.
type Bus struct {
	mu      sync.RWMutex
	next    int
	subs    map[int]chan Outcome
	dropped atomic.Int64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Outcome)}
}

// Subscribe returns a channel of outcomes and a func that unsubscribes and
// closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Outcome, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Outcome, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(o Outcome) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- o:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
