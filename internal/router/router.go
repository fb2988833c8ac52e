// Package router maps paths to component tags and renders the matched
// component inside <router-view>.
package router

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/expr"
)

// ViewTag is the element the router renders into.
const ViewTag = "router-view"

// ErrNoRoute is returned by Navigate when no route matches. Match it with
// errors.Is.
var ErrNoRoute = errors.NewValidationError(errors.ErrCodeNoRoute, "no route matches")

// Route maps a path pattern to a component tag. Patterns use :name for one
// segment and a trailing * or :name* for the rest of the path.
type Route struct {
	Path string `yaml:"path" json:"path"`
	Tag  string `yaml:"tag" json:"tag"`
}

// Match is a resolved route
type Match struct {
	Route  Route
	Path   string
	Params map[string]string
}

type segment struct {
	literal  string
	param    string
	catchAll bool
}

type compiled struct {
	route    Route
	segments []segment
}

// Router holds routes and the current location.
type Router struct {
	mu      sync.Mutex
	routes  []compiled
	current *Match
	history []string
	views   []*component.State
}

// New creates a router. Routes are tried in order.
func New(routes ...Route) *Router {
	r := &Router{}
	for _, route := range routes {
		r.routes = append(r.routes, compiled{route: route, segments: compile(route.Path)})
	}
	return r
}

func compile(pattern string) []segment {
	var segs []segment
	for _, part := range split(pattern) {
		switch {
		case part == "*":
			segs = append(segs, segment{param: "*", catchAll: true})
		case strings.HasPrefix(part, ":") && strings.HasSuffix(part, "*"):
			segs = append(segs, segment{param: strings.TrimSuffix(part[1:], "*"), catchAll: true})
		case strings.HasPrefix(part, ":"):
			segs = append(segs, segment{param: part[1:]})
		default:
			segs = append(segs, segment{literal: part})
		}
	}
	return segs
}

// split drops the query, fragment and empty segments.
func split(path string) []string {
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Routes returns the configured routes
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	for i, c := range r.routes {
		out[i] = c.route
	}
	return out
}

// Match resolves path against the routes, first match wins.
func (r *Router) Match(path string) (Match, bool) {
	parts := split(path)
	for _, c := range r.routes {
		if params, ok := matchSegments(c.segments, parts); ok {
			return Match{Route: c.route, Path: "/" + strings.Join(parts, "/"), Params: params}, true
		}
	}
	return Match{}, false
}

func matchSegments(segs []segment, parts []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, seg := range segs {
		if seg.catchAll {
			params[seg.param] = strings.Join(parts[min(i, len(parts)):], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		if seg.param != "" {
			v, err := url.PathUnescape(parts[i])
			if err != nil {
				v = parts[i]
			}
			params[seg.param] = v
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	if len(parts) != len(segs) {
		return nil, false
	}
	return params, true
}

// Navigate moves to path and re-renders every router view.
func (r *Router) Navigate(path string) error {
	m, ok := r.Match(path)
	if !ok {
		return errors.NewValidationError(errors.ErrCodeNoRoute,
			fmt.Sprintf("no route matches %q", path)).WithComponent(ViewTag)
	}

	r.mu.Lock()
	r.current = &m
	r.history = append(r.history, m.Path)
	views := make([]*component.State, len(r.views))
	copy(views, r.views)
	r.mu.Unlock()

	for _, v := range views {
		v.Update(viewState(&m))
	}
	return nil
}

// Push is Navigate under the name templates use.
func (r *Router) Push(path string) error { return r.Navigate(path) }

// Back returns to the previous location. It is a no-op at the first entry.
func (r *Router) Back() error {
	r.mu.Lock()
	if len(r.history) < 2 {
		r.mu.Unlock()
		return nil
	}
	prev := r.history[len(r.history)-2]
	r.history = r.history[:len(r.history)-2]
	r.mu.Unlock()
	return r.Navigate(prev)
}

// Current returns the current location
func (r *Router) Current() (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Match{}, false
	}
	return *r.current, true
}

// Get exposes the router to expressions as $router.path, $router.params,
// $router.push(path) and $router.back().
func (r *Router) Get(key string) (any, bool) {
	switch key {
	case "path", "params", "tag":
		m, _ := r.Current()
		return viewState(&m)[key], true
	case "push":
		return expr.Callable(func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("push needs a path")
			}
			return nil, r.Push(expr.ToString(args[0]))
		}), true
	case "back":
		return expr.Callable(func(...any) (any, error) { return nil, r.Back() }), true
	}
	return nil, false
}

func viewState(m *Match) map[string]any {
	params := make(map[string]any, len(m.Params))
	for k, v := range m.Params {
		params[k] = v
	}
	return map[string]any{"path": m.Path, "params": params, "tag": m.Route.Tag}
}

// Install registers <router-view> and provides $router to every instance.
// Without a current location the router starts at "/" when a route matches it.
func (r *Router) Install(app *component.App) error {
	if _, ok := r.Current(); !ok {
		if m, found := r.Match("/"); found {
			r.mu.Lock()
			r.current = &m
			r.history = append(r.history, m.Path)
			r.mu.Unlock()
		}
	}
	app.Provide("$router", r)
	app.Component(ViewTag, r.view())
	return nil
}

// view builds the router-view definition: one v-if chain branch per routed
// tag, with route params passed as attributes.
func (r *Router) view() *component.Definition {
	var tags []string
	params := map[string]map[string]bool{}
	for _, c := range r.routes {
		tag := strings.ToLower(c.route.Tag)
		if _, seen := params[tag]; !seen {
			tags = append(tags, tag)
			params[tag] = map[string]bool{}
		}
		for _, seg := range c.segments {
			if seg.param != "" && seg.param != "*" {
				params[tag][seg.param] = true
			}
		}
	}

	var b strings.Builder
	for i, tag := range tags {
		directive := "v-else-if"
		if i == 0 {
			directive = "v-if"
		}
		fmt.Fprintf(&b, `<%s %s="tag == '%s'"`, tag, directive, tag)
		names := make([]string, 0, len(params[tag]))
		for name := range params[tag] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, ` %s="[[ params.%s ]]"`, name, name)
		}
		fmt.Fprintf(&b, `></%s>`, tag)
	}

	return &component.Definition{
		Template: component.InlineTemplate(b.String()),
		Data: func(map[string]any) map[string]any {
			m, _ := r.Current()
			return viewState(&m)
		},
		Hooks: component.Hooks{
			Mounted: func(s *component.State) error {
				r.mu.Lock()
				defer r.mu.Unlock()
				r.views = append(r.views, s)
				return nil
			},
			Unmounted: func(s *component.State) error {
				r.mu.Lock()
				defer r.mu.Unlock()
				for i, v := range r.views {
					if v == s {
						r.views = append(r.views[:i], r.views[i+1:]...)
						break
					}
				}
				return nil
			},
		},
	}
}
