package expr

// Scope resolves bare identifiers during evaluation
type Scope interface {
	Lookup(name string) (any, bool)
}

// Getter is implemented by record-like values that expose keyed properties to
// member access (for example reactive records and the shared store).
type Getter interface {
	Get(key string) (any, bool)
}

// Callable is the native function shape invoked by call expressions
type Callable func(args ...any) (any, error)

// MapScope is a flat scope over a map
type MapScope map[string]any

// Lookup implements Scope
func (m MapScope) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

type emptyScope struct{}

func (emptyScope) Lookup(string) (any, bool) { return nil, false }

// Empty is a scope that resolves nothing
var Empty Scope = emptyScope{}

type layered struct {
	parent Scope
	vars   map[string]any
}

// Layered returns a child scope whose vars shadow parent.
func Layered(parent Scope, vars map[string]any) Scope {
	if parent == nil {
		parent = Empty
	}
	return &layered{parent: parent, vars: vars}
}

func (l *layered) Lookup(name string) (any, bool) {
	if v, ok := l.vars[name]; ok {
		return v, true
	}
	return l.parent.Lookup(name)
}

// ScopeFunc adapts a function to the Scope interface
type ScopeFunc func(name string) (any, bool)

// Lookup implements Scope
func (f ScopeFunc) Lookup(name string) (any, bool) {
	return f(name)
}

// Chain resolves names through each scope in order, first hit wins.
func Chain(scopes ...Scope) Scope {
	return ScopeFunc(func(name string) (any, bool) {
		for _, s := range scopes {
			if s == nil {
				continue
			}
			if v, ok := s.Lookup(name); ok {
				return v, true
			}
		}
		return nil, false
	})
}
