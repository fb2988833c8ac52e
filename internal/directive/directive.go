// Package directive expands the structural template directives (v-if chains,
// v-for, v-show, v-pre) and [[ expr ]] interpolation against an expression scope.
//
// Expansion never mutates its input: every emitted node is a fresh clone, so a
// template tree can be expanded any number of times.
package directive

import (
	"html"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/expr"
)

// Directive attribute names
const (
	AttrIf     = "v-if"
	AttrElseIf = "v-else-if"
	AttrElse   = "v-else"
	AttrFor    = "v-for"
	AttrShow   = "v-show"
	AttrPre    = "v-pre"
)

var (
	placeholderPattern = regexp.MustCompile(`(?s)\[\[\s*(.+?)\s*\]\]`)
	forPattern         = regexp.MustCompile(`^\s*(?:\(\s*([\w$]+)\s*(?:,\s*([\w$]+)\s*)?\)|([\w$]+))\s+(?:in|of)\s+(.+?)\s*$`)
)

// Options controls expansion
type Options struct {
	// RawInterpolation splices interpolated values into text as markup instead
	// of inserting them as literal text.
	RawInterpolation bool
}

// Processor expands directives
type Processor struct {
	opts Options
}

// New creates a processor
func New(opts Options) *Processor {
	return &Processor{opts: opts}
}

// Process expands a template string and returns the resulting markup.
func (p *Processor) Process(template string, sc expr.Scope) (string, error) {
	nodes, err := dom.ParseFragment(template, nil)
	if err != nil {
		return "", err
	}
	return dom.Render(p.Expand(nodes, sc)...), nil
}

// Expand processes a sibling list and returns freshly cloned output nodes.
func (p *Processor) Expand(nodes []*nethtml.Node, sc expr.Scope) []*nethtml.Node {
	if sc == nil {
		sc = expr.Empty
	}
	var out []*nethtml.Node
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		switch n.Type {
		case nethtml.TextNode:
			out = append(out, p.text(n, sc)...)
		case nethtml.ElementNode:
			if dom.HasAttr(n, AttrIf) {
				var picked []*nethtml.Node
				picked, i = p.chain(nodes, i, sc)
				out = append(out, picked...)
				continue
			}
			out = append(out, p.element(n, sc)...)
		default:
			out = append(out, dom.Clone(n))
		}
	}
	return out
}

// chain evaluates the conditional run starting at nodes[start] and returns the
// expansion of the selected branch plus the index of the last consumed node.
// The run continues through every element sibling carrying v-if, v-else-if or
// v-else; the first truthy condition or the first v-else is picked.
func (p *Processor) chain(nodes []*nethtml.Node, start int, sc expr.Scope) ([]*nethtml.Node, int) {
	var picked *nethtml.Node
	last := start
	for j := start; j < len(nodes); j++ {
		sib := nodes[j]
		if dom.IsBlankText(sib) {
			continue
		}
		if sib.Type != nethtml.ElementNode || !isConditional(sib) {
			break
		}
		last = j
		if picked != nil {
			continue
		}

		if cond, ok := dom.LookupAttr(sib, AttrIf); ok {
			if expr.Test(cond, sc) {
				picked = sib
			}
		} else if cond, ok := dom.LookupAttr(sib, AttrElseIf); ok {
			if expr.Test(cond, sc) {
				picked = sib
			}
		} else {
			picked = sib
		}
	}
	return p.pick(picked, sc), last
}

func isConditional(n *nethtml.Node) bool {
	return dom.HasAttr(n, AttrIf) || dom.HasAttr(n, AttrElseIf) || dom.HasAttr(n, AttrElse)
}

func (p *Processor) pick(n *nethtml.Node, sc expr.Scope) []*nethtml.Node {
	if n == nil {
		return nil
	}
	clone := dom.Clone(n)
	dom.RemoveAttr(clone, AttrIf)
	dom.RemoveAttr(clone, AttrElseIf)
	dom.RemoveAttr(clone, AttrElse)
	return p.element(clone, sc)
}

func (p *Processor) element(n *nethtml.Node, sc expr.Scope) []*nethtml.Node {
	if spec, ok := dom.LookupAttr(n, AttrFor); ok {
		return p.repeat(n, spec, sc)
	}

	if dom.HasAttr(n, AttrPre) {
		clone := dom.Clone(n)
		dom.RemoveAttr(clone, AttrPre)
		return []*nethtml.Node{clone}
	}

	el := dom.CloneShallow(n)
	// stray chain members render as ordinary elements
	dom.RemoveAttr(el, AttrElseIf)
	dom.RemoveAttr(el, AttrElse)
	if cond, ok := dom.LookupAttr(el, AttrShow); ok {
		if !expr.Test(cond, sc) {
			hide(el)
		}
		dom.RemoveAttr(el, AttrShow)
	}
	p.attributes(el, sc)

	for _, c := range p.Expand(dom.Children(n), sc) {
		el.AppendChild(c)
	}
	return []*nethtml.Node{el}
}

func hide(el *nethtml.Node) {
	style := strings.TrimSpace(dom.Attr(el, "style"))
	switch {
	case style == "":
		style = "display:none"
	case strings.HasSuffix(style, ";"):
		style += "display:none"
	default:
		style += ";display:none"
	}
	dom.SetAttr(el, "style", style)
}

func (p *Processor) repeat(n *nethtml.Node, spec string, sc expr.Scope) []*nethtml.Node {
	itemName, indexName, source, ok := ParseFor(spec)
	if !ok {
		return nil
	}
	keys, items, ok := expr.Entries(expr.Evaluate(source, sc))
	if !ok {
		return nil
	}

	var out []*nethtml.Node
	for i, item := range items {
		vars := map[string]any{itemName: item}
		if indexName != "" {
			vars[indexName] = keys[i]
		}
		clone := dom.Clone(n)
		dom.RemoveAttr(clone, AttrFor)
		out = append(out, p.Expand([]*nethtml.Node{clone}, expr.Layered(sc, vars))...)
	}
	return out
}

// ParseFor splits a v-for value of the form "item in expr" or
// "(item, index) in expr".
func ParseFor(spec string) (item, index, source string, ok bool) {
	m := forPattern.FindStringSubmatch(spec)
	if m == nil {
		return "", "", "", false
	}
	if m[1] != "" {
		return m[1], m[2], m[4], true
	}
	return m[3], "", m[4], true
}

// attributes interpolates placeholders in plain attribute values. Directive
// and event attributes hold expressions and are left alone.
func (p *Processor) attributes(el *nethtml.Node, sc expr.Scope) {
	for i, a := range el.Attr {
		if strings.HasPrefix(a.Key, "v-") || strings.HasPrefix(a.Key, "@") || strings.HasPrefix(a.Key, ":") {
			continue
		}
		if strings.Contains(a.Val, "[[") {
			el.Attr[i].Val = Interpolate(a.Val, sc)
		}
	}
}

func (p *Processor) text(n *nethtml.Node, sc expr.Scope) []*nethtml.Node {
	if !strings.Contains(n.Data, "[[") {
		return []*nethtml.Node{dom.CloneShallow(n)}
	}
	if !p.opts.RawInterpolation || isRawTextParent(n.Parent) {
		out := dom.CloneShallow(n)
		out.Data = Interpolate(n.Data, sc)
		return []*nethtml.Node{out}
	}

	markup := InterpolateRaw(n.Data, sc)
	nodes, err := dom.ParseFragment(markup, nil)
	if err != nil {
		out := dom.CloneShallow(n)
		out.Data = Interpolate(n.Data, sc)
		return []*nethtml.Node{out}
	}
	return nodes
}

func isRawTextParent(n *nethtml.Node) bool {
	switch dom.TagName(n) {
	case "script", "style", "textarea", "title":
		return true
	}
	return false
}

// Interpolate replaces every [[ expr ]] in s with the stringified value.
func Interpolate(s string, sc expr.Scope) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		src := placeholderPattern.FindStringSubmatch(m)[1]
		return expr.ToString(expr.Evaluate(src, sc))
	})
}

// InterpolateRaw returns markup in which the literal parts of s are escaped
// and the interpolated values are inserted unescaped.
func InterpolateRaw(s string, sc expr.Scope) string {
	var sb strings.Builder
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(s, -1) {
		sb.WriteString(html.EscapeString(s[last:loc[0]]))
		sb.WriteString(expr.ToString(expr.Evaluate(s[loc[2]:loc[3]], sc)))
		last = loc[1]
	}
	sb.WriteString(html.EscapeString(s[last:]))
	return sb.String()
}

// HasPlaceholders reports whether s contains an interpolation placeholder
func HasPlaceholders(s string) bool {
	return placeholderPattern.MatchString(s)
}

// Expressions returns the source of every placeholder in s.
func Expressions(s string) []string {
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}
