package registry

import (
	"sync"
	"time"
)

// Registry holds named entries in registration order and notifies watchers of
// every change. Re-registering a name keeps its original position.
type Registry[T any] struct {
	entries  map[string]T
	order    []string
	mutex    sync.RWMutex
	watchers []chan Event[T]
}

// Event represents a change in the registry
type Event[T any] struct {
	Type      EventType
	Name      string
	Value     T
	Timestamp time.Time
}

// EventType represents the type of registry event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

// String returns the event type name
func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// New creates an empty registry
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries:  make(map[string]T),
		watchers: make([]chan Event[T], 0),
	}
}

// Register adds or updates an entry
func (r *Registry[T]) Register(name string, value T) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.entries[name]; exists {
		eventType = EventTypeUpdated
	} else {
		r.order = append(r.order, name)
	}
	r.entries[name] = value

	r.notify(Event[T]{Type: eventType, Name: name, Value: value, Timestamp: time.Now()})
}

// Get retrieves an entry by name
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	value, exists := r.entries[name]
	return value, exists
}

// Has reports whether name is registered
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered names in registration order
func (r *Registry[T]) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns a copy of every entry
func (r *Registry[T]) All() map[string]T {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string]T, len(r.entries))
	for name, value := range r.entries {
		result[name] = value
	}
	return result
}

// Remove removes an entry
func (r *Registry[T]) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	value, exists := r.entries[name]
	if !exists {
		return
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.notify(Event[T]{Type: EventTypeRemoved, Name: name, Value: value, Timestamp: time.Now()})
}

// notify must be called with the write lock held
func (r *Registry[T]) notify(event Event[T]) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Watch returns a channel that receives registry events
func (r *Registry[T]) Watch() <-chan Event[T] {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan Event[T], 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *Registry[T]) UnWatch(ch <-chan Event[T]) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered entries
func (r *Registry[T]) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}
