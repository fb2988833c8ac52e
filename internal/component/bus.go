package component

import (
	"context"
	"sync"

	"github.com/conneroisu/melodi/internal/errors"
)

type busHandler struct {
	id uint64
	fn func(payload any)
}

// bus holds the event handlers registered on one instance.
type bus struct {
	mu       sync.Mutex
	handlers map[string][]busHandler
	nextID   uint64
}

func newBus() *bus {
	return &bus{handlers: make(map[string][]busHandler)}
}

func (b *bus) on(name string, fn func(payload any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], busHandler{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.handlers[name]
			for i, h := range list {
				if h.id == id {
					b.handlers[name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *bus) snapshot(name string) []busHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]busHandler, len(b.handlers[name]))
	copy(out, b.handlers[name])
	return out
}

func (b *bus) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]busHandler)
}

// On registers handler for events named name emitted by this instance or any
// descendant.
func (i *Instance) On(name string, handler func(payload any)) (unregister func()) {
	return i.bus.on(name, handler)
}

// Emit runs this instance's handlers for name in registration order, then each
// ancestor's, nearest first. Handler panics are logged and swallowed.
func (i *Instance) Emit(name string, payload any) {
	for cur := i; cur != nil; cur = cur.parent {
		for _, h := range cur.bus.snapshot(name) {
			fn := h.fn
			err := errors.Safely(func() error {
				fn(payload)
				return nil
			})
			if err != nil {
				i.app.errs.Handle(context.Background(),
					errors.NewHookError("event "+name, err).WithComponent(cur.tag))
			}
		}
	}
}
