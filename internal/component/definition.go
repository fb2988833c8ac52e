// Package component implements component instances and the application root
// that discovers custom elements in a headless document and mounts them.
package component

import (
	"sort"
	"strings"
)

// Template says where a component's markup comes from. Exactly one field is
// expected to be set; a zero Template renders the host's captured children.
type Template struct {
	// Inline markup.
	Inline string
	// Selector of an element whose inner markup is the template. It is read
	// once per instance and then reused.
	Selector string
	// URL fetched through the app's TemplateLoader on every render.
	URL string
}

// InlineTemplate returns a Template with inline markup.
func InlineTemplate(markup string) Template { return Template{Inline: markup} }

// SelectorTemplate returns a Template read from the element matching selector.
func SelectorTemplate(selector string) Template { return Template{Selector: selector} }

// URLTemplate returns a Template fetched from url.
func URLTemplate(url string) Template { return Template{URL: url} }

// IsZero reports whether no source is configured.
func (t Template) IsZero() bool {
	return t.Inline == "" && t.Selector == "" && t.URL == ""
}

// Method is a component method. It receives the instance state and the call
// arguments; event handlers receive the *dom.Event as the only argument.
type Method func(s *State, args ...any) (any, error)

// Hook is a lifecycle callback. Errors and panics are logged and swallowed.
type Hook func(s *State) error

// Hooks groups the lifecycle callbacks of a definition.
type Hooks struct {
	BeforeMount  Hook
	Mounted      Hook
	BeforeUpdate Hook
	Updated      Hook
	Unmounted    Hook
}

// PropType selects the coercion applied to a declared prop.
type PropType int

const (
	PropAny PropType = iota
	PropString
	PropNumber
	PropBoolean
)

// String returns the prop type name
func (t PropType) String() string {
	switch t {
	case PropString:
		return "string"
	case PropNumber:
		return "number"
	case PropBoolean:
		return "boolean"
	default:
		return "any"
	}
}

// ParsePropType maps a type name to a PropType; unknown names are PropAny.
func ParsePropType(name string) PropType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string":
		return PropString
	case "number", "int", "float":
		return PropNumber
	case "bool", "boolean":
		return PropBoolean
	default:
		return PropAny
	}
}

// PropSpec declares a prop. Default may be a func() any, which is called once
// per instance.
type PropSpec struct {
	Name    string
	Type    PropType
	Default any
}

func (p PropSpec) defaultValue() any {
	if fn, ok := p.Default.(func() any); ok {
		return fn()
	}
	return p.Default
}

// Definition is the immutable description of a component tag.
type Definition struct {
	Template Template
	// Data returns the initial state. It receives the props read from the
	// host element.
	Data    func(props map[string]any) map[string]any
	Methods map[string]Method
	// Props restricts which host attributes become props. When empty every
	// attribute does.
	Props      []PropSpec
	Hooks      Hooks
	Components map[string]*Definition
}

// MethodNames returns the method names sorted.
func (d *Definition) MethodNames() []string {
	names := make([]string, 0, len(d.Methods))
	for name := range d.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComponentTags returns the tags of nested definitions sorted.
func (d *Definition) ComponentTags() []string {
	tags := make([]string, 0, len(d.Components))
	for tag := range d.Components {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
