package event

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// subscriberBuffer is how many events a subscriber may fall behind before
// it starts losing them.
const subscriberBuffer = 100

// InMemoryBus fans events out to every subscriber. Publish never blocks: a
// subscriber whose buffer is full misses the event, which is counted.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	dropped     atomic.Uint64
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{subscribers: make(map[string]chan Event)}
}

func (b *InMemoryBus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			slog.Warn("event dropped for slow subscriber", "subscriber", id, "type", e.Type, "user_id", e.UserID)
		}
	}
}

// Subscribe registers a new subscriber. The returned function closes the
// channel and is safe to call more than once.
func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}

// Dropped is the number of deliveries lost to full subscriber buffers.
func (b *InMemoryBus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
