package dom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// ParseFragment parses markup as the children of context. A nil context parses
// as body content.
func ParseFragment(markup string, context *html.Node) ([]*html.Node, error) {
	if context == nil || context.Type != html.ElementNode {
		context = bodyContext
	}
	return html.ParseFragment(strings.NewReader(markup), context)
}

// Fragment returns a detached container element holding the given nodes.
func Fragment(nodes ...*html.Node) *html.Node {
	container := &html.Node{Type: html.ElementNode, Data: "template", DataAtom: atom.Template}
	for _, n := range nodes {
		detach(n)
		container.AppendChild(n)
	}
	return container
}

// Clone returns a deep copy of n with no parent.
func Clone(n *html.Node) *html.Node {
	c := CloneShallow(n)
	if c == nil {
		return nil
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// CloneShallow copies n and its attributes but none of its children.
func CloneShallow(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	return c
}

// Children returns the direct children of n
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Render serializes nodes in order
func Render(nodes ...*html.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		_ = html.Render(&sb, n)
	}
	return sb.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	return Render(Children(n)...)
}

// OuterHTML serializes n itself
func OuterHTML(n *html.Node) string {
	return Render(n)
}

// SetInnerHTML replaces the children of n with parsed markup.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := ParseFragment(markup, n)
	if err != nil {
		return err
	}
	ReplaceChildren(n, nodes...)
	return nil
}

// ReplaceChildren removes every child of n and appends nodes.
func ReplaceChildren(n *html.Node, nodes ...*html.Node) {
	RemoveChildren(n)
	for _, c := range nodes {
		detach(c)
		n.AppendChild(c)
	}
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// ReplaceWith puts nodes where n was and detaches n.
func ReplaceWith(n *html.Node, nodes ...*html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for _, c := range nodes {
		detach(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// TextContent returns the concatenated text of n and its descendants.
func TextContent(n *html.Node) string {
	return htmlquery.InnerText(n)
}

// SetTextContent replaces the children of n with a single text node.
func SetTextContent(n *html.Node, text string) {
	RemoveChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// IsElement reports whether n is an element node
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TagName returns the lower-case tag name of an element, or "".
func TagName(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// IsBlankText reports whether n is a text node with only whitespace.
func IsBlankText(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	v, _ := LookupAttr(n, name)
	return v
}

// LookupAttr returns the named attribute and whether it is present
func LookupAttr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries the named attribute
func HasAttr(n *html.Node, name string) bool {
	_, ok := LookupAttr(n, name)
	return ok
}

// SetAttr sets or adds an attribute
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes an attribute if present.
func RemoveAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Value returns the current value of a form control: the value attribute for
// inputs, the text for textareas, the selected option for selects.
func Value(n *html.Node) string {
	switch TagName(n) {
	case "textarea":
		return TextContent(n)
	case "select":
		var first *html.Node
		var selected *html.Node
		Walk(n, func(c *html.Node) bool {
			if TagName(c) == "option" {
				if first == nil {
					first = c
				}
				if selected == nil && HasAttr(c, "selected") {
					selected = c
				}
			}
			return true
		})
		if selected == nil {
			selected = first
		}
		if selected == nil {
			return ""
		}
		return optionValue(selected)
	}
	return Attr(n, "value")
}

// SetValue sets the current value of a form control.
func SetValue(n *html.Node, value string) {
	switch TagName(n) {
	case "textarea":
		SetTextContent(n, value)
	case "select":
		Walk(n, func(c *html.Node) bool {
			if TagName(c) == "option" {
				if optionValue(c) == value {
					SetAttr(c, "selected", "")
				} else {
					RemoveAttr(c, "selected")
				}
			}
			return true
		})
	default:
		SetAttr(n, "value", value)
	}
}

func optionValue(opt *html.Node) string {
	if v, ok := LookupAttr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(TextContent(opt))
}

// Checked reports the checked state of a checkbox or radio
func Checked(n *html.Node) bool {
	return HasAttr(n, "checked")
}

// SetChecked sets the checked state of a checkbox or radio.
func SetChecked(n *html.Node, checked bool) {
	if checked {
		SetAttr(n, "checked", "")
		return
	}
	RemoveAttr(n, "checked")
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the children of the visited node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}
