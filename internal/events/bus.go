package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives events from the bus.
type Handler func(event *Event)

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	eventType EventType
	id        uint64
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe hub.
// Handlers run on the emitter's goroutine, so they must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscriber
	log    zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]subscriber),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], subscriber{id: b.nextID, handler: handler})
	return Subscription{eventType: eventType, id: b.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.eventType]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.eventType] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.eventType]) == 0 {
		delete(b.subs, sub.eventType)
	}
}

// SubscriberCount returns the number of handlers registered for eventType.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Emit delivers an event to every handler of its type.
// A panicking handler is logged and does not stop delivery to the others.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	b.mu.RLock()
	handlers := make([]subscriber, len(b.subs[eventType]))
	copy(handlers, b.subs[eventType])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	for _, s := range handlers {
		b.dispatch(s, event)
	}
}

func (b *Bus) dispatch(s subscriber, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	s.handler(event)
}
