// Package events provides the in-process event bus used on both sides of the
// realtime channel: the hub server publishes connection lifecycle events on
// it, and the SDK client re-emits every inbound frame through it.
package events

import (
	"encoding/json"
	"sync"
)

// Handler receives the raw JSON payload of an emitted event.
type Handler func(data json.RawMessage)

// Subscription identifies a registered handler so it can be removed again.
// Function values are not comparable in Go, so Off takes the handle returned
// by On rather than the handler itself.
type Subscription struct {
	event string
	id    uint64
}

type entry struct {
	id uint64
	fn Handler
}

// Bus is a multi-subscriber dispatcher mapping an event name to an ordered
// list of handlers. Emit calls handlers synchronously, in registration order.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]entry
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]entry)}
}

// On registers a handler for the named event and returns its subscription
// handle. Handlers for the same event run in the order they were added.
func (b *Bus) On(event string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[event] = append(b.handlers[event], entry{id: b.nextID, fn: fn})
	return Subscription{event: event, id: b.nextID}
}

// Off removes the handler identified by sub. Removing a subscription that is
// already gone is a no-op.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.event]
	for i, e := range list {
		if e.id == sub.id {
			b.handlers[sub.event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.handlers[sub.event]) == 0 {
		delete(b.handlers, sub.event)
	}
}

// Emit invokes every handler registered for the named event with data.
// Events with no handlers are dropped. Handlers run on the caller's
// goroutine; a handler may register or remove subscriptions reentrantly.
func (b *Bus) Emit(event string, data json.RawMessage) {
	b.mu.RLock()
	list := b.handlers[event]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	b.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(data)
	}
}

// HandlerCount reports how many handlers are registered for the named event.
func (b *Bus) HandlerCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}
