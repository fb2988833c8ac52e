package manifest

import (
	"context"
	"fmt"
	"sort"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/expr"
	"github.com/conneroisu/melodi/internal/router"
	"github.com/conneroisu/melodi/internal/store"
)

// Hook names accepted under hooks.
const (
	HookBeforeMount  = "beforeMount"
	HookMounted      = "mounted"
	HookBeforeUpdate = "beforeUpdate"
	HookUpdated      = "updated"
	HookUnmounted    = "unmounted"
)

// HookNames lists the accepted hook names in lifecycle order.
var HookNames = []string{HookBeforeMount, HookMounted, HookBeforeUpdate, HookUpdated, HookUnmounted}

// Declaration is a built component definition and the tag it registers under.
type Declaration struct {
	Tag        string
	Definition *component.Definition
}

// Definitions builds a runtime definition for every top-level component, in
// file order.
func (m *Manifest) Definitions() ([]Declaration, error) {
	out := make([]Declaration, 0, m.Components.Len())
	for _, tag := range m.Components.Names() {
		spec, _ := m.Components.Get(tag)
		def, err := m.build(tag, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, Declaration{Tag: tag, Definition: def})
	}
	return out, nil
}

// Register builds every component and registers it on app.
func (m *Manifest) Register(app *component.App) error {
	decls, err := m.Definitions()
	if err != nil {
		return err
	}
	for _, d := range decls {
		app.Component(d.Tag, d.Definition)
	}
	return nil
}

// NewStore builds the declared store, seeded from persister when one is given.
// It returns nil when the manifest declares no store.
func (m *Manifest) NewStore(ctx context.Context, persister store.Persister) (*store.Store, error) {
	if m.Store == nil {
		return nil, nil
	}
	initial := m.Store.State
	actions := make(map[string]store.Action, len(m.Store.Actions))
	for name, steps := range m.Store.Actions {
		actions[name] = storeAction(steps)
	}
	return store.New(ctx, store.Options{
		State: func() map[string]any {
			state, _ := deepCopy(initial).(map[string]any)
			return state
		},
		Actions:   actions,
		Persister: persister,
	})
}

// Router returns a router over the declared routes, or nil when there are none.
func (m *Manifest) Router() *router.Router {
	if len(m.Routes) == 0 {
		return nil
	}
	return router.New(m.Routes...)
}

func (m *Manifest) build(tag string, spec *ComponentSpec) (*component.Definition, error) {
	tpl, err := m.template(spec.Template)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeManifestInvalid,
			"component template").WithComponent(tag).WithFile(m.Path)
	}

	def := &component.Definition{
		Template: tpl,
		Props:    props(spec.Props),
	}
	if spec.Data != nil {
		data := spec.Data
		def.Data = func(map[string]any) map[string]any {
			out, _ := deepCopy(data).(map[string]any)
			return out
		}
	}
	if len(spec.Methods) > 0 {
		def.Methods = make(map[string]component.Method, len(spec.Methods))
		for name, steps := range spec.Methods {
			def.Methods[name] = method(steps)
		}
	}
	for name, steps := range spec.Hooks {
		fn := hook(steps)
		switch name {
		case HookBeforeMount:
			def.Hooks.BeforeMount = fn
		case HookMounted:
			def.Hooks.Mounted = fn
		case HookBeforeUpdate:
			def.Hooks.BeforeUpdate = fn
		case HookUpdated:
			def.Hooks.Updated = fn
		case HookUnmounted:
			def.Hooks.Unmounted = fn
		default:
			return nil, errors.NewValidationError(errors.ErrCodeManifestInvalid,
				fmt.Sprintf("unknown hook %q", name)).WithComponent(tag).WithFile(m.Path)
		}
	}
	if spec.Components.Len() > 0 {
		def.Components = make(map[string]*component.Definition, spec.Components.Len())
		for _, child := range spec.Components.Names() {
			childSpec, _ := spec.Components.Get(child)
			d, err := m.build(child, childSpec)
			if err != nil {
				return nil, err
			}
			def.Components[child] = d
		}
	}
	return def, nil
}

// template picks the first given source: inline, file, selector, then URL.
func (m *Manifest) template(t TemplateSpec) (component.Template, error) {
	switch {
	case t.Inline != "":
		return component.InlineTemplate(t.Inline), nil
	case t.File != "":
		markup, err := m.readTemplateFile(t.File)
		if err != nil {
			return component.Template{}, err
		}
		return component.InlineTemplate(markup), nil
	case t.El != "":
		return component.SelectorTemplate(t.El), nil
	case t.URL != "":
		return component.URLTemplate(t.URL), nil
	default:
		return component.Template{}, nil
	}
}

func props(specs PropsSpec) []component.PropSpec {
	if len(specs) == 0 {
		return nil
	}
	out := make([]component.PropSpec, 0, len(specs))
	for _, p := range specs {
		spec := component.PropSpec{Name: p.Name, Type: component.ParsePropType(p.Type), Default: p.Default}
		switch p.Default.(type) {
		case map[string]any, []any:
			value := p.Default
			spec.Default = func() any { return deepCopy(value) }
		}
		out = append(out, spec)
	}
	return out
}

// stepVars builds the variables visible to step expressions of a method call.
func stepVars(args []any) map[string]any {
	vars := map[string]any{"$args": args, "$payload": nil, "$event": nil, "$value": nil}
	if len(args) > 0 {
		vars["$payload"] = args[0]
		if ev, ok := args[0].(*dom.Event); ok {
			vars["$event"] = ev
			vars["$value"] = dom.Value(ev.Target)
		}
	}
	return vars
}

func method(steps Steps) component.Method {
	return func(s *component.State, args ...any) (any, error) {
		return run(instanceTarget{s}, steps, stepVars(args))
	}
}

func hook(steps Steps) component.Hook {
	return func(s *component.State) error {
		_, err := run(instanceTarget{s}, steps, stepVars(nil))
		return err
	}
}

func storeAction(steps Steps) store.Action {
	return func(s *store.Store, payload any) error {
		_, err := run(storeTarget{s}, steps, map[string]any{"$payload": payload})
		return err
	}
}

// target is what declarative steps act on: a component instance or the store.
type target interface {
	scope(vars map[string]any) expr.Scope
	set(key string, value any)
	emit(event string, payload any) error
	dispatch(action string, payload any) error
}

type instanceTarget struct{ s *component.State }

func (t instanceTarget) scope(vars map[string]any) expr.Scope {
	return t.s.Scope(vars)
}

func (t instanceTarget) set(key string, value any) { t.s.Set(key, value) }

func (t instanceTarget) emit(event string, payload any) error {
	t.s.Emit(event, payload)
	return nil
}

func (t instanceTarget) dispatch(action string, payload any) error {
	return t.s.Dispatch(action, payload)
}

type storeTarget struct{ s *store.Store }

func (t storeTarget) scope(vars map[string]any) expr.Scope {
	return expr.Layered(t.s.State(), vars)
}

func (t storeTarget) set(key string, value any) { t.s.Set(key, value) }

func (storeTarget) emit(event string, _ any) error {
	return fmt.Errorf("emit %q: store actions cannot emit events", event)
}

func (t storeTarget) dispatch(action string, payload any) error {
	return t.s.Dispatch(context.Background(), action, payload)
}

// run executes steps in order. Within a step the fields run as if, set, call,
// emit, dispatch, return. All set values are evaluated before any is assigned.
func run(t target, steps Steps, vars map[string]any) (any, error) {
	for _, step := range steps {
		if step.If != "" {
			ok, err := expr.Try(step.If, t.scope(vars))
			if err != nil {
				return nil, err
			}
			if !expr.Truthy(ok) {
				continue
			}
		}

		if len(step.Set) > 0 {
			keys := make([]string, 0, len(step.Set))
			for k := range step.Set {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			sc := t.scope(vars)
			values := make([]any, len(keys))
			for idx, k := range keys {
				v, err := expr.Try(step.Set[k], sc)
				if err != nil {
					return nil, fmt.Errorf("set %s: %w", k, err)
				}
				values[idx] = v
			}
			for idx, k := range keys {
				t.set(k, values[idx])
			}
		}

		if step.Call != "" {
			if _, err := expr.Try(step.Call, t.scope(vars)); err != nil {
				return nil, fmt.Errorf("call: %w", err)
			}
		}

		if step.Emit != nil {
			payload, err := optional(step.Emit.Payload, t.scope(vars))
			if err != nil {
				return nil, fmt.Errorf("emit %s: %w", step.Emit.Event, err)
			}
			if err := t.emit(step.Emit.Event, payload); err != nil {
				return nil, err
			}
		}

		if step.Dispatch != nil {
			payload, err := optional(step.Dispatch.Payload, t.scope(vars))
			if err != nil {
				return nil, fmt.Errorf("dispatch %s: %w", step.Dispatch.Action, err)
			}
			if err := t.dispatch(step.Dispatch.Action, payload); err != nil {
				return nil, err
			}
		}

		if step.Return != "" {
			return expr.Try(step.Return, t.scope(vars))
		}
	}
	return nil, nil
}

func optional(src string, sc expr.Scope) (any, error) {
	if src == "" {
		return nil, nil
	}
	return expr.Try(src, sc)
}

// deepCopy copies the maps and slices YAML decoding produces.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
