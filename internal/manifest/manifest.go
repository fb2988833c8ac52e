// Package manifest loads YAML declarations of components, the shared store and
// routes, and turns them into runtime definitions.
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/router"
)

// Manifest is a parsed manifest file
type Manifest struct {
	Components Components     `yaml:"components"`
	Store      *StoreSpec     `yaml:"store"`
	Routes     []router.Route `yaml:"routes"`

	// Path is the file the manifest was loaded from, empty for Parse.
	Path string `yaml:"-"`
}

// Components is an ordered set of component declarations. Order follows the
// file, which is the registration order.
type Components struct {
	order []string
	specs map[string]*ComponentSpec
}

// UnmarshalYAML keeps the mapping order
func (c *Components) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: components must be a mapping of tag to component", n.Line)
	}
	c.specs = make(map[string]*ComponentSpec, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		tag := strings.ToLower(n.Content[i].Value)
		spec := &ComponentSpec{Line: n.Content[i].Line}
		if err := n.Content[i+1].Decode(spec); err != nil {
			return fmt.Errorf("component %s: %w", tag, err)
		}
		if _, dup := c.specs[tag]; dup {
			return fmt.Errorf("line %d: component %s declared twice", n.Content[i].Line, tag)
		}
		c.order = append(c.order, tag)
		c.specs[tag] = spec
	}
	return nil
}

// Names returns the tags in file order
func (c Components) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Get returns the declaration for tag
func (c Components) Get(tag string) (*ComponentSpec, bool) {
	spec, ok := c.specs[tag]
	return spec, ok
}

// Len returns the number of declarations
func (c Components) Len() int { return len(c.order) }

// ComponentSpec declares one component
type ComponentSpec struct {
	Template   TemplateSpec     `yaml:"template"`
	Data       map[string]any   `yaml:"data"`
	Props      PropsSpec        `yaml:"props"`
	Methods    map[string]Steps `yaml:"methods"`
	Hooks      map[string]Steps `yaml:"hooks"`
	Components Components       `yaml:"components"`

	// Line is where the declaration starts in the manifest file.
	Line int `yaml:"-"`
}

// UnmarshalYAML accepts a bare string as an inline template
func (c *ComponentSpec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		c.Template.Inline = n.Value
		return nil
	}
	type plain ComponentSpec
	return n.Decode((*plain)(c))
}

// TemplateSpec is a template given inline, by selector, by URL or by a file
// relative to the manifest.
type TemplateSpec struct {
	Inline string `yaml:"inline"`
	El     string `yaml:"el"`
	URL    string `yaml:"url"`
	File   string `yaml:"file"`
}

// UnmarshalYAML accepts a plain string as inline markup
func (t *TemplateSpec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		t.Inline = n.Value
		return nil
	}
	type plain TemplateSpec
	return n.Decode((*plain)(t))
}

// PropsSpec declares props as a list of names or a mapping of name to
// {type, default}.
type PropsSpec []PropSpec

// PropSpec declares one prop
type PropSpec struct {
	Name    string `yaml:"-"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
}

// UnmarshalYAML accepts both prop forms
func (p *PropsSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := n.Decode(&names); err != nil {
			return err
		}
		for _, name := range names {
			*p = append(*p, PropSpec{Name: name})
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			var spec PropSpec
			name := n.Content[i].Value
			if n.Content[i+1].Kind == yaml.MappingNode {
				if err := n.Content[i+1].Decode(&spec); err != nil {
					return fmt.Errorf("prop %s: %w", name, err)
				}
			} else if n.Content[i+1].Tag != "!!null" {
				spec.Type = n.Content[i+1].Value
			}
			spec.Name = name
			*p = append(*p, spec)
		}
		return nil
	default:
		return fmt.Errorf("line %d: props must be a list or a mapping", n.Line)
	}
}

// Steps is a list of declarative steps. A single mapping is one step.
type Steps []Step

// UnmarshalYAML accepts a single step or a list
func (s *Steps) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		var step Step
		if err := n.Decode(&step); err != nil {
			return err
		}
		*s = Steps{step}
		return nil
	case yaml.SequenceNode:
		var steps []Step
		if err := n.Decode(&steps); err != nil {
			return err
		}
		*s = steps
		return nil
	default:
		return fmt.Errorf("line %d: steps must be a mapping or a list of mappings", n.Line)
	}
}

// Step is one declarative action. Fields run in this order: if, set, call,
// emit, dispatch, return.
type Step struct {
	If       string            `yaml:"if"`
	Set      map[string]string `yaml:"set"`
	Call     string            `yaml:"call"`
	Emit     *EmitStep         `yaml:"emit"`
	Dispatch *DispatchStep     `yaml:"dispatch"`
	Return   string            `yaml:"return"`
}

// EmitStep publishes an event with a payload expression
type EmitStep struct {
	Event   string `yaml:"event"`
	Payload string `yaml:"payload"`
}

// DispatchStep runs a store action with a payload expression
type DispatchStep struct {
	Action  string `yaml:"action"`
	Payload string `yaml:"payload"`
}

// StoreSpec declares the shared store
type StoreSpec struct {
	State   map[string]any   `yaml:"state"`
	Actions map[string]Steps `yaml:"actions"`
}

// Parse decodes a manifest. Unknown top-level keys are errors.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	m := &Manifest{}
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return m, nil
		}
		return nil, errors.NewValidationError(errors.ErrCodeManifestInvalid, "parse manifest: "+err.Error())
	}
	return m, nil
}

// Load reads and parses a manifest file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		var me *errors.MelodiError
		if errors.As(err, &me) {
			return nil, me.WithFile(path)
		}
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Dir returns the directory template files are resolved against
func (m *Manifest) Dir() string {
	if m.Path == "" {
		return "."
	}
	return filepath.Dir(m.Path)
}

// readTemplateFile reads a template file relative to the manifest. Paths that
// escape the manifest directory are rejected.
func (m *Manifest) readTemplateFile(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.NewValidationError(errors.ErrCodePathTraversal,
			fmt.Sprintf("template file %q escapes the manifest directory", name))
	}
	data, err := os.ReadFile(filepath.Join(m.Dir(), clean))
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}
	return string(data), nil
}
