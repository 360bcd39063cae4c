package events

import (
	"context"
	"sync"

	"clinic/internal/record/models"
)

// MemoryBus fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan models.RecordCreatedEvent
	nextID int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]chan models.RecordCreatedEvent)}
}

// Subscribe registers a buffered receiver on topic. The returned cancel
// function unregisters it and closes the channel.
func (b *MemoryBus) Subscribe(topic string, buffer int) (<-chan models.RecordCreatedEvent, func()) {
	ch := make(chan models.RecordCreatedEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan models.RecordCreatedEvent)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish never blocks. It returns ErrNoSubscribers when no subscriber
// accepted the event.
func (b *MemoryBus) Publish(_ context.Context, topic string, event models.RecordCreatedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	if delivered == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// Subscriber adapts one topic of the bus to the Subscriber interface.
func (b *MemoryBus) Subscriber(topic string, buffer int) Subscriber {
	return &memorySubscriber{bus: b, topic: topic, buffer: buffer}
}

type memorySubscriber struct {
	bus    *MemoryBus
	topic  string
	buffer int
}

func (s *memorySubscriber) Run(ctx context.Context, handle Handler) error {
	ch, cancel := s.bus.Subscribe(s.topic, s.buffer)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-ch:
			handle(ctx, event)
		}
	}
}
