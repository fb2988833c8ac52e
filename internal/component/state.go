package component

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/expr"
	"github.com/conneroisu/melodi/internal/reactive"
)

// State is the handle methods and hooks use to read and write an instance's
// reactive data. Every Set schedules a re-render.
type State struct {
	inst *Instance
}

// Get returns the value stored under key, or nil.
func (s *State) Get(key string) any {
	v, _ := s.inst.record.Get(key)
	return v
}

// Lookup returns the value stored under key and whether it exists.
func (s *State) Lookup(key string) (any, bool) {
	return s.inst.record.Get(key)
}

// Set writes key and schedules a render.
func (s *State) Set(key string, value any) {
	s.inst.record.Set(key, value)
}

// Update writes several keys.
func (s *State) Update(values map[string]any) {
	s.inst.record.Update(values)
}

// String returns key converted to a string.
func (s *State) String(key string) string {
	return expr.ToString(s.Get(key))
}

// Int returns key converted to an int.
func (s *State) Int(key string) int {
	return int(expr.ToNumber(s.Get(key)))
}

// Float returns key converted to a float64.
func (s *State) Float(key string) float64 {
	return expr.ToNumber(s.Get(key))
}

// Bool returns the truthiness of key.
func (s *State) Bool(key string) bool {
	return expr.Truthy(s.Get(key))
}

// Scope returns the instance scope layered with vars.
func (s *State) Scope(vars map[string]any) expr.Scope {
	return expr.Layered(s.inst.scope(), vars)
}

// Eval evaluates an expression against the instance scope, layered with vars.
func (s *State) Eval(src string, vars map[string]any) (any, error) {
	return expr.Try(src, s.Scope(vars))
}

// Call invokes another method of the same instance.
func (s *State) Call(method string, args ...any) (any, error) {
	fn, ok := s.inst.bound[method]
	if !ok {
		return nil, fmt.Errorf("component %s has no method %q", s.inst.tag, method)
	}
	return fn(args...)
}

// Emit publishes an event on this instance and its ancestors.
func (s *State) Emit(name string, payload any) {
	s.inst.Emit(name, payload)
}

// On subscribes to an event emitted on this instance or a descendant.
func (s *State) On(name string, handler func(payload any)) (unregister func()) {
	return s.inst.On(name, handler)
}

// Store returns the shared store, or nil.
func (s *State) Store() Store {
	return s.inst.app.store
}

// Dispatch runs a store action. It fails when the app has no store.
func (s *State) Dispatch(action string, payload any) error {
	if s.inst.app.store == nil {
		return fmt.Errorf("dispatch %q: no store installed", action)
	}
	return s.inst.app.store.Dispatch(context.Background(), action, payload)
}

// App returns the owning application.
func (s *State) App() *App { return s.inst.app }

// Document returns the host document.
func (s *State) Document() *dom.Document { return s.inst.app.doc }

// Host returns the custom element the instance is mounted on.
func (s *State) Host() *html.Node { return s.inst.host }

// Tag returns the component tag.
func (s *State) Tag() string { return s.inst.tag }

// Props returns the props read from the host at mount time.
func (s *State) Props() map[string]any { return s.inst.props }

// Record exposes the underlying reactive record.
func (s *State) Record() *reactive.Record { return s.inst.record }
