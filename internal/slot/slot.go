// Package slot projects caller-provided content into <slot> placeholders.
package slot

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/dom"
)

// Attr marks source content destined for a named slot
const Attr = "slot"

// Project fills the <slot> placeholders of template with clones of the
// children of source. Templates without a placeholder are returned unchanged.
func Project(template string, source *html.Node) (string, error) {
	if !strings.Contains(template, "<slot") {
		return template, nil
	}
	nodes, err := dom.ParseFragment(template, nil)
	if err != nil {
		return "", err
	}
	return dom.Render(ProjectNodes(nodes, source)...), nil
}

// ProjectNodes fills placeholders in a parsed template. The nodes are moved
// into a container while projecting; the returned slice holds the top-level
// result nodes. source is never modified.
func ProjectNodes(nodes []*html.Node, source *html.Node) []*html.Node {
	container := dom.Fragment(nodes...)

	// placeholders are collected before anything is inserted so projected
	// content carrying its own <slot> elements is left alone
	for _, placeholder := range dom.QuerySelectorAll(container, "slot") {
		fill(placeholder, source)
	}
	return dom.Children(container)
}

func fill(placeholder, source *html.Node) {
	var content []*html.Node
	if name := dom.Attr(placeholder, "name"); name != "" {
		content = Named(source, name)
	} else {
		content = Default(source)
	}

	if !hasContent(content) {
		if fallback := dom.Children(placeholder); hasContent(fallback) {
			content = fallback
		} else {
			content = nil
		}
	} else {
		for i, n := range content {
			content[i] = dom.Clone(n)
		}
	}
	dom.ReplaceWith(placeholder, content...)
}

// Named returns the elements anywhere under source that target the named slot,
// in source order.
func Named(source *html.Node, name string) []*html.Node {
	if source == nil {
		return nil
	}
	var out []*html.Node
	for c := source.FirstChild; c != nil; c = c.NextSibling {
		dom.Walk(c, func(n *html.Node) bool {
			if dom.IsElement(n) && dom.Attr(n, Attr) == name {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// Default returns the top-level children of source that carry no slot
// attribute, text nodes included.
func Default(source *html.Node) []*html.Node {
	if source == nil {
		return nil
	}
	var out []*html.Node
	for c := source.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsElement(c) && dom.HasAttr(c, Attr) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasContent(nodes []*html.Node) bool {
	for _, n := range nodes {
		if n.Type == html.CommentNode || dom.IsBlankText(n) {
			continue
		}
		return true
	}
	return false
}
