// Package events is the in-process change feed. Observers register a filter
// and a callback; Publish fans an event out to every matching observer.
package events

import (
	"log/slog"
	"sync"

	"github.com/corray333/frameshop/order/internal/service/models/event"
)

// Filter selects events by table and type. Empty fields match everything.
type Filter struct {
	Table event.Table
	Type  event.Type
}

func (f Filter) Matches(e event.Event) bool {
	return (f.Table == "" || f.Table == e.Table) && (f.Type == "" || f.Type == e.Type)
}

// Handler receives matching events. It must not block.
type Handler func(event.Event)

type subscription struct {
	filter  Filter
	handler Handler
}

// Broker is an observer registry. Delivery is best effort.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[uint64]subscription),
	}
}

// Subscribe registers handler for events matching filter and returns a func that removes it.
func (b *Broker) Subscribe(filter Filter, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{filter: filter, handler: handler}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every matching observer.
// A panicking observer is logged and does not affect the others.
func (b *Broker) Publish(e event.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter.Matches(e) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, e)
	}
}

// Subscribers returns the number of registered observers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

func deliver(h Handler, e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event observer panicked", "event_id", e.ID, "table", e.Table, "panic", r)
		}
	}()
	h(e)
}
