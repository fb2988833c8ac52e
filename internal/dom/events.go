package dom

import (
	"errors"

	"golang.org/x/net/html"
)

// ErrListenerNotFound is returned when removing a listener that is not registered
var ErrListenerNotFound = errors.New("event listener not found")

// ListenerID identifies a registered listener
type ListenerID uint64

// Listener handles a dispatched event
type Listener func(e *Event)

type listener struct {
	id    ListenerID
	event string
	fn    Listener
}

// Event is a dispatched UI event
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node
	Detail        any

	stopped bool
}

// StopPropagation prevents the event from reaching further ancestors.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// Stopped reports whether propagation was stopped
func (e *Event) Stopped() bool {
	return e.stopped
}

// AddEventListener registers fn for event on n and returns its id.
func (d *Document) AddEventListener(n *html.Node, event string, fn Listener) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.listeners[n] = append(d.listeners[n], listener{id: d.nextID, event: event, fn: fn})
	return d.nextID
}

// RemoveEventListener unregisters the listener id for event on n.
func (d *Document) RemoveEventListener(n *html.Node, event string, id ListenerID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.listeners[n]
	for i, l := range list {
		if l.id == id && l.event == event {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(d.listeners, n)
			} else {
				d.listeners[n] = list
			}
			return nil
		}
	}
	return ErrListenerNotFound
}

// ListenerCount returns the number of listeners registered on n
func (d *Document) ListenerCount(n *html.Node) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[n])
}

// TotalListeners returns the number of listeners registered anywhere.
func (d *Document) TotalListeners() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, list := range d.listeners {
		total += len(list)
	}
	return total
}

// HasListeners reports whether n has at least one listener.
func (d *Document) HasListeners(n *html.Node) bool {
	return d.ListenerCount(n) > 0
}

// Dispatch delivers e to its target and then to each ancestor until propagation
// is stopped. The propagation path is fixed before the first listener runs.
// Listeners run outside the document lock, so they may add or remove listeners
// and mutate the tree.
func (d *Document) Dispatch(target *html.Node, e *Event) {
	e.Target = target
	var path []*html.Node
	for n := target; n != nil; n = n.Parent {
		path = append(path, n)
	}
	for _, n := range path {
		if e.stopped {
			return
		}
		d.mu.RLock()
		var fns []Listener
		for _, l := range d.listeners[n] {
			if l.event == e.Type {
				fns = append(fns, l.fn)
			}
		}
		d.mu.RUnlock()

		e.CurrentTarget = n
		for _, fn := range fns {
			fn(e)
		}
	}
}

// Click dispatches a click on n
func (d *Document) Click(n *html.Node) {
	d.Dispatch(n, &Event{Type: "click"})
}

// Input sets the value of a form control and dispatches input then change.
func (d *Document) Input(n *html.Node, value string) {
	SetValue(n, value)
	d.Dispatch(n, &Event{Type: "input"})
	d.Dispatch(n, &Event{Type: "change"})
}

// SetChecked sets the checked state of a checkbox or radio and dispatches change.
func (d *Document) SetChecked(n *html.Node, checked bool) {
	SetChecked(n, checked)
	d.Dispatch(n, &Event{Type: "change"})
}
