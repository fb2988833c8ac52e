// Package reactive holds the observable state primitives: a Record whose
// writes notify subscribers, and a Scheduler that defers work until the
// current synchronous work is done.
package reactive

import (
	"sort"
	"sync"
)

// Change describes a single write to a record
type Change struct {
	Key string
	Old any
	New any
}

type subscription struct {
	id uint64
	fn func(Change)
}

// Record is an observable string-keyed map with stable key order. Keys keep the
// order in which they were first written; initial keys are sorted.
type Record struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]any
	subs   []subscription
	nextID uint64
}

// NewRecord creates a record seeded with init without notifying anyone.
func NewRecord(init map[string]any) *Record {
	r := &Record{values: make(map[string]any, len(init))}
	keys := make([]string, 0, len(init))
	for k := range init {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.keys = append(r.keys, k)
		r.values[k] = init[k]
	}
	return r
}

// Get returns the value stored under key
func (r *Record) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok
}

// Lookup lets a record act as an expression scope.
func (r *Record) Lookup(name string) (any, bool) {
	return r.Get(name)
}

// Set stores value under key and notifies every subscriber, even when the value
// did not change.
func (r *Record) Set(key string, value any) {
	r.mu.Lock()
	old, exists := r.values[key]
	if !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	subs := make([]subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	change := Change{Key: key, Old: old, New: value}
	for _, s := range subs {
		s.fn(change)
	}
}

// Update writes several keys, in sorted key order.
func (r *Record) Update(values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Set(k, values[k])
	}
}

// Delete removes key and notifies subscribers when it existed.
func (r *Record) Delete(key string) {
	r.mu.Lock()
	old, exists := r.values[key]
	if !exists {
		r.mu.Unlock()
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
	subs := make([]subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		s.fn(Change{Key: key, Old: old})
	}
}

// Keys returns the keys in record order
func (r *Record) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Snapshot returns a shallow copy of the current values.
func (r *Record) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// OnChange subscribes fn to every write. The returned function cancels the
// subscription and is safe to call more than once.
func (r *Record) OnChange(fn func(Change)) (cancel func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscription{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of active subscriptions
func (r *Record) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
