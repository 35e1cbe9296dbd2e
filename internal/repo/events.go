package repo

import (
	"slices"
	"sync"
)

// EventKind identifies a record lifecycle transition.
type EventKind string

const (
	EventLoaded  EventKind = "loaded"
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event is published after a record operation succeeds.
type Event struct {
	Kind EventKind
	Type string
	ID   string
	Data map[string]any // field snapshot; nil for EventDeleted
}

// Observer receives events synchronously on the emitting goroutine.
type Observer func(Event)

type bus struct {
	mu        sync.RWMutex
	observers map[int]Observer
	next      int
}

// Subscribe registers fn and returns a function that removes it.
func (r *Repository) Subscribe(fn Observer) (unsubscribe func()) {
	b := &r.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.observers == nil {
		b.observers = make(map[int]Observer)
	}
	id := b.next
	b.next++
	b.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers ev to every observer in subscription order.
func (r *Repository) Emit(ev Event) {
	b := &r.bus
	b.mu.RLock()
	ids := make([]int, 0, len(b.observers))
	for id := range b.observers {
		ids = append(ids, id)
	}
	fns := make([]Observer, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.observers[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
