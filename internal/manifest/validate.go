package manifest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/directive"
	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/expr"
	"github.com/conneroisu/melodi/internal/registry"
	"github.com/conneroisu/melodi/internal/router"
)

var handlerName = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

var propTypes = map[string]bool{
	"": true, "any": true, "string": true, "number": true, "int": true,
	"float": true, "bool": true, "boolean": true,
}

// validator accumulates issues for one manifest
type validator struct {
	m      *Manifest
	issues *errors.ErrorCollector
	graph  *registry.Graph
}

// Validate checks every expression in templates, steps and store actions,
// references to methods, actions, hooks and route tags, and component
// dependency cycles. It never stops at the first problem.
func (m *Manifest) Validate() *errors.ErrorCollector {
	v := &validator{m: m, issues: errors.NewErrorCollector(), graph: registry.NewGraph()}

	top := make(map[string]bool, m.Components.Len())
	for _, tag := range m.Components.Names() {
		top[tag] = true
	}
	for _, tag := range m.Components.Names() {
		spec, _ := m.Components.Get(tag)
		v.component(tag, tag, spec, top)
	}

	if m.Store != nil {
		for _, name := range sortedKeys(m.Store.Actions) {
			v.steps("store", "actions."+name, m.Store.Actions[name], nil, true)
		}
	}

	seen := make(map[string]bool, len(m.Routes))
	for idx, r := range m.Routes {
		field := fmt.Sprintf("routes[%d]", idx)
		switch {
		case r.Path == "":
			v.add("router", field, "", "route has no path", errors.ErrorSeverityError)
		case seen[r.Path]:
			v.add("router", field, "", fmt.Sprintf("path %s is declared twice; the first wins", r.Path),
				errors.ErrorSeverityWarning)
		}
		seen[r.Path] = true
		if !top[strings.ToLower(r.Tag)] {
			v.add("router", field, "", fmt.Sprintf("route tag %q is not a declared component", r.Tag),
				errors.ErrorSeverityError)
		}
	}

	for _, cycle := range v.graph.DetectCycles() {
		v.add(cycle[0], "components", "", "component cycle: "+strings.Join(cycle, " -> "),
			errors.ErrorSeverityError)
	}
	return v.issues
}

func (v *validator) add(comp, field, expression, message string, severity errors.ErrorSeverity) {
	v.issues.Add(errors.Issue{
		Component:  comp,
		File:       v.m.Path,
		Field:      field,
		Expression: expression,
		Message:    message,
		Severity:   severity,
	})
}

func (v *validator) compile(comp, field, src string) {
	if strings.TrimSpace(src) == "" {
		v.add(comp, field, src, "empty expression", errors.ErrorSeverityError)
		return
	}
	if _, err := expr.Compile(src); err != nil {
		v.add(comp, field, src, err.Error(), errors.ErrorSeverityError)
	}
}

// component checks one declaration. name is the display path, tag the
// element name; visible holds the tags the component's template can mount.
func (v *validator) component(name, tag string, spec *ComponentSpec, visible map[string]bool) {
	own := make(map[string]bool, len(visible)+spec.Components.Len())
	for t := range visible {
		own[t] = true
	}
	for _, child := range spec.Components.Names() {
		own[child] = true
	}

	sources := 0
	for _, s := range []string{spec.Template.Inline, spec.Template.File, spec.Template.El, spec.Template.URL} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		v.add(name, "template", "", "more than one template source; inline, file, el, url is the precedence",
			errors.ErrorSeverityWarning)
	}

	markup := spec.Template.Inline
	if markup == "" && spec.Template.File != "" {
		var err error
		if markup, err = v.m.readTemplateFile(spec.Template.File); err != nil {
			v.add(name, "template.file", "", err.Error(), errors.ErrorSeverityError)
		}
	}
	if markup != "" {
		v.template(name, tag, markup, spec, own)
	}

	for _, p := range spec.Props {
		if !propTypes[strings.ToLower(strings.TrimSpace(p.Type))] {
			v.add(name, "props."+p.Name, "", fmt.Sprintf("unknown prop type %q, treated as any", p.Type),
				errors.ErrorSeverityWarning)
		}
	}

	for _, method := range sortedKeys(spec.Methods) {
		v.steps(name, "methods."+method, spec.Methods[method], spec, false)
	}
	for _, hook := range sortedKeys(spec.Hooks) {
		if !isHook(hook) {
			v.add(name, "hooks."+hook, "", fmt.Sprintf("unknown hook %q", hook), errors.ErrorSeverityError)
			continue
		}
		v.steps(name, "hooks."+hook, spec.Hooks[hook], spec, false)
	}

	for _, child := range spec.Components.Names() {
		childSpec, _ := spec.Components.Get(child)
		v.component(name+" > "+child, child, childSpec, own)
	}
}

// template checks directive and placeholder expressions, event handlers, and
// records the custom elements the markup uses.
func (v *validator) template(name, tag, markup string, spec *ComponentSpec, known map[string]bool) {
	nodes, err := dom.ParseFragment(markup, nil)
	if err != nil {
		v.add(name, "template", "", "parse template: "+err.Error(), errors.ErrorSeverityError)
		return
	}

	var uses []string
	for _, n := range nodes {
		dom.Walk(n, func(el *html.Node) bool {
			switch el.Type {
			case html.TextNode:
				for _, src := range directive.Expressions(el.Data) {
					v.compile(name, "template", src)
				}
				return true
			case html.ElementNode:
			default:
				return true
			}

			if known[el.Data] || el.Data == tag {
				uses = append(uses, el.Data)
			}
			if el.Data == router.ViewTag && len(v.m.Routes) == 0 {
				v.add(name, "template", "", router.ViewTag+" is used but no routes are declared",
					errors.ErrorSeverityWarning)
			}
			if dom.HasAttr(el, directive.AttrPre) {
				return false
			}
			for _, a := range el.Attr {
				v.attribute(name, a, spec)
			}
			return true
		})
	}
	v.graph.Add(tag, uses...)
	if contains(uses, tag) {
		v.add(name, "template", "", "component renders itself", errors.ErrorSeverityError)
	}
}

func (v *validator) attribute(name string, a html.Attribute, spec *ComponentSpec) {
	field := "template@" + a.Key
	switch {
	case a.Key == directive.AttrIf || a.Key == directive.AttrElseIf || a.Key == directive.AttrShow:
		v.compile(name, field, a.Val)
	case a.Key == directive.AttrFor:
		_, _, source, ok := directive.ParseFor(a.Val)
		if !ok {
			v.add(name, field, a.Val, `v-for must read "item in expr" or "(item, index) in expr"`,
				errors.ErrorSeverityError)
			return
		}
		v.compile(name, field, source)
	case a.Key == "v-model" || a.Key == component.ModelAttr:
		if !handlerName.MatchString(strings.TrimSpace(a.Val)) {
			v.add(name, field, a.Val, "v-model must name a state key", errors.ErrorSeverityError)
		}
	case strings.HasPrefix(a.Key, "@") || strings.HasPrefix(a.Key, "v-on:") ||
		strings.HasPrefix(a.Key, component.EventAttrPrefix):
		handler := strings.TrimSpace(a.Val)
		if handlerName.MatchString(handler) {
			if _, ok := spec.Methods[handler]; !ok {
				v.add(name, field, handler, fmt.Sprintf("handler %q is not a declared method", handler),
					errors.ErrorSeverityWarning)
			}
			return
		}
		v.compile(name, field, handler)
	case strings.HasPrefix(a.Key, "v-") || strings.HasPrefix(a.Key, ":"):
	default:
		for _, src := range directive.Expressions(a.Val) {
			v.compile(name, field, src)
		}
	}
}

// steps checks declarative steps. spec is nil for store actions.
func (v *validator) steps(name, field string, steps Steps, spec *ComponentSpec, inStore bool) {
	for idx, step := range steps {
		f := fmt.Sprintf("%s[%d]", field, idx)
		if step.If != "" {
			v.compile(name, f+".if", step.If)
		}
		for _, key := range sortedKeys(step.Set) {
			v.compile(name, f+".set."+key, step.Set[key])
		}
		if step.Call != "" {
			v.compile(name, f+".call", step.Call)
		}
		if step.Emit != nil {
			switch {
			case inStore:
				v.add(name, f+".emit", "", "store actions cannot emit events", errors.ErrorSeverityError)
			case step.Emit.Event == "":
				v.add(name, f+".emit", "", "emit needs an event name", errors.ErrorSeverityError)
			}
			if step.Emit.Payload != "" {
				v.compile(name, f+".emit.payload", step.Emit.Payload)
			}
		}
		if step.Dispatch != nil {
			v.dispatch(name, f+".dispatch", step.Dispatch)
		}
		if step.Return != "" {
			v.compile(name, f+".return", step.Return)
		}
	}
}

func (v *validator) dispatch(name, field string, d *DispatchStep) {
	switch {
	case d.Action == "":
		v.add(name, field, "", "dispatch needs an action name", errors.ErrorSeverityError)
	case v.m.Store == nil:
		v.add(name, field, "", fmt.Sprintf("dispatch %q but no store is declared", d.Action),
			errors.ErrorSeverityError)
	default:
		if _, ok := v.m.Store.Actions[d.Action]; !ok {
			v.add(name, field, "", fmt.Sprintf("unknown store action %q", d.Action), errors.ErrorSeverityError)
		}
	}
	if d.Payload != "" {
		v.compile(name, field+".payload", d.Payload)
	}
}

func isHook(name string) bool {
	for _, h := range HookNames {
		if h == name {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
