package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-node development.
// Delivery is synchronous: Publish invokes every registered handler before
// returning.
type MemoryBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]Handler // channel -> sub id -> handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[string]map[int]Handler{}}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[channel]))
	for _, h := range b.subs[channel] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(channel, payload)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[channel] == nil {
		b.subs[channel] = map[int]Handler{}
	}
	b.nextID++
	id := b.nextID
	b.subs[channel][id] = h

	return &memorySubscription{bus: b, channel: channel, id: id}, nil
}

type memorySubscription struct {
	bus     *MemoryBus
	channel string
	id      int
	once    sync.Once
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		delete(s.bus.subs[s.channel], s.id)
		if len(s.bus.subs[s.channel]) == 0 {
			delete(s.bus.subs, s.channel)
		}
	})
	return nil
}
