package component

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/expr"
	"github.com/conneroisu/melodi/internal/logging"
	"github.com/conneroisu/melodi/internal/reactive"
)

// Phase is an instance's lifecycle state.
type Phase int

const (
	PhaseUnmounted Phase = iota
	PhaseMounting
	PhaseMounted
	PhaseUnmounting
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseMounting:
		return "mounting"
	case PhaseMounted:
		return "mounted"
	case PhaseUnmounting:
		return "unmounting"
	default:
		return "unmounted"
	}
}

type listenerRef struct {
	node  *html.Node
	event string
	id    dom.ListenerID
}

// Instance is one live occurrence of a component on a host element.
type Instance struct {
	app    *App
	def    *Definition
	tag    string
	host   *html.Node
	parent *Instance
	log    logging.Logger

	props      map[string]any
	record     *reactive.Record
	state      *State
	bound      map[string]expr.Callable
	methods    expr.MapScope
	builtins   expr.MapScope
	bus        *bus
	slotSource *html.Node
	listeners  []listenerRef
	children   []*Instance

	phase         Phase
	renderPending bool
	renders       int
	selectorTpl   *string
	cancelRecord  func()
}

// Tag returns the component tag
func (i *Instance) Tag() string { return i.tag }

// Host returns the host element
func (i *Instance) Host() *html.Node { return i.host }

// Parent returns the instance that mounted this one, or nil for root mounts.
func (i *Instance) Parent() *Instance { return i.parent }

// Children returns the instances mounted inside this instance's content.
func (i *Instance) Children() []*Instance {
	out := make([]*Instance, len(i.children))
	copy(out, i.children)
	return out
}

// State returns the state handle
func (i *Instance) State() *State { return i.state }

// Phase returns the lifecycle state
func (i *Instance) Phase() Phase { return i.phase }

// Renders returns how many render passes have completed.
func (i *Instance) Renders() int { return i.renders }

// Definition returns the component definition
func (i *Instance) Definition() *Definition { return i.def }

// mountInstance runs the mount sequence on host. pre holds template markup
// already fetched for this pass, keyed by URL.
func (a *App) mountInstance(ctx context.Context, host *html.Node, tag string, def *Definition, parent *Instance, pre map[string]string) (*Instance, error) {
	inst := &Instance{
		app:    a,
		def:    def,
		tag:    tag,
		host:   host,
		parent: parent,
		log:    a.logger.WithComponent(tag),
		bus:    newBus(),
		phase:  PhaseMounting,
	}
	inst.state = &State{inst: inst}

	a.doc.SetMounted(host, true)
	a.doc.SetOwner(host, inst)

	err := errors.Safely(func() error {
		inst.slotSource = dom.Fragment(dom.Children(host)...)

		props, present := readProps(host, def.Props)
		inst.props = props

		dataProps := make(map[string]any, len(props))
		for k, v := range props {
			dataProps[k] = v
		}
		defaults := make(map[string]any)
		for _, spec := range def.Props {
			if !present[spec.Name] && spec.Default != nil {
				defaults[spec.Name] = spec.defaultValue()
				dataProps[spec.Name] = defaults[spec.Name]
			}
		}

		data := map[string]any{}
		if def.Data != nil {
			for k, v := range def.Data(dataProps) {
				data[k] = v
			}
		}
		for k, v := range props {
			data[k] = v
		}
		for k, v := range defaults {
			data[k] = v
		}
		for k, v := range a.globals {
			data[k] = v
		}
		data["$store"] = a.store
		data["$app"] = a
		data["$root"] = a.doc
		data["$props"] = props

		inst.record = reactive.NewRecord(data)
		inst.cancelRecord = inst.record.OnChange(func(reactive.Change) { inst.requestRender() })
		inst.bindMethods()
		return nil
	})
	if err != nil {
		if inst.slotSource != nil {
			dom.ReplaceChildren(host, dom.Children(inst.slotSource)...)
		}
		a.doc.SetMounted(host, false)
		a.doc.SetOwner(host, nil)
		inst.phase = PhaseUnmounted
		return nil, errors.NewMountError(errors.ErrCodeMountFailed,
			fmt.Sprintf("mount %s", tag), err).WithComponent(tag)
	}

	a.mounted = append(a.mounted, inst)
	if parent != nil {
		parent.children = append(parent.children, inst)
	}

	inst.render(ctx, true, pre)
	if inst.phase == PhaseMounting {
		inst.phase = PhaseMounted
	}
	inst.log.Debug(ctx, "mounted", "renders", inst.renders)
	return inst, nil
}

// bindMethods wraps every method so expressions and event handlers can call it
// with the instance state bound.
func (i *Instance) bindMethods() {
	i.bound = make(map[string]expr.Callable, len(i.def.Methods))
	i.methods = make(expr.MapScope, len(i.def.Methods))
	for name, m := range i.def.Methods {
		m := m
		name := name
		i.bound[name] = func(args ...any) (any, error) {
			var out any
			err := errors.Safely(func() error {
				var err error
				out, err = m(i.state, args...)
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", name, err)
			}
			return out, nil
		}
		i.methods[name] = i.bound[name]
	}
	i.builtins = expr.MapScope{
		"$emit": expr.Callable(func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("$emit needs an event name")
			}
			var payload any
			if len(args) > 1 {
				payload = args[1]
			}
			i.Emit(expr.ToString(args[0]), payload)
			return nil, nil
		}),
		"$on": expr.Callable(func(args ...any) (any, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("$on needs an event name and a handler")
			}
			fn, ok := args[1].(expr.Callable)
			if !ok {
				return nil, fmt.Errorf("$on handler is not callable")
			}
			return i.On(expr.ToString(args[0]), func(payload any) { _, _ = fn(payload) }), nil
		}),
	}
}

// scope resolves record keys first, then bound methods, then the $emit and $on
// helpers.
func (i *Instance) scope() expr.Scope {
	return expr.Chain(i.record, i.methods, i.builtins)
}

// Unmount tears the instance down: the unmounted hook runs, listeners are
// removed, nested instances are unmounted and the host content is cleared.
func (i *Instance) Unmount() {
	if i.phase == PhaseUnmounted || i.phase == PhaseUnmounting {
		return
	}
	ctx := context.Background()
	i.phase = PhaseUnmounting

	i.runHook(ctx, "unmounted", i.def.Hooks.Unmounted)
	i.removeListeners(ctx)
	i.unmountChildren()
	i.bus.clear()
	if i.cancelRecord != nil {
		i.cancelRecord()
	}
	i.renderPending = false

	i.app.forget(i)
	if i.parent != nil {
		i.parent.dropChild(i)
	}
	i.app.doc.SetMounted(i.host, false)
	i.app.doc.SetOwner(i.host, nil)
	dom.RemoveChildren(i.host)
	i.phase = PhaseUnmounted
	i.log.Debug(ctx, "unmounted")
}

func (i *Instance) removeListeners(ctx context.Context) {
	for _, l := range i.listeners {
		if err := i.app.doc.RemoveEventListener(l.node, l.event, l.id); err != nil {
			i.app.errs.Handle(ctx, errors.NewBindingError(errors.ErrCodeListenerNotFound,
				"remove "+l.event+" listener", err).WithComponent(i.tag))
		}
	}
	i.listeners = nil
}

// unmountChildren unmounts every instance whose host is inside the current
// content, including ones mounted by other means.
func (i *Instance) unmountChildren() {
	var owned []*Instance
	for _, c := range dom.Children(i.host) {
		dom.Walk(c, func(n *html.Node) bool {
			if inst, ok := i.app.doc.Owner(n).(*Instance); ok && inst != i {
				owned = append(owned, inst)
				return false
			}
			return true
		})
	}
	for _, inst := range owned {
		inst.Unmount()
	}
	i.children = nil
}

func (i *Instance) dropChild(child *Instance) {
	for idx, c := range i.children {
		if c == child {
			i.children = append(i.children[:idx], i.children[idx+1:]...)
			return
		}
	}
}

func (i *Instance) runHook(ctx context.Context, name string, hook Hook) {
	if hook == nil {
		return
	}
	if err := errors.Safely(func() error { return hook(i.state) }); err != nil {
		i.app.errs.Handle(ctx, errors.NewHookError(name, err).WithComponent(i.tag))
	}
}
