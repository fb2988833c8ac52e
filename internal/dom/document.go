// Package dom provides the headless document the runtime renders into.
//
// A Document owns an html.Node tree and keeps the state a browser would attach
// to elements (event listeners, mounted flags, owning instances) in side tables
// keyed by node, so the tree itself stays a plain golang.org/x/net/html tree that
// can be serialized at any time.
package dom

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Document is a parsed page plus its per-element runtime state
type Document struct {
	root *html.Node

	mu        sync.RWMutex
	listeners map[*html.Node][]listener
	mounted   map[*html.Node]bool
	owners    map[*html.Node]any
	nextID    ListenerID
}

// New wraps an existing tree
func New(root *html.Node) *Document {
	return &Document{
		root:      root,
		listeners: make(map[*html.Node][]listener),
		mounted:   make(map[*html.Node]bool),
		owners:    make(map[*html.Node]any),
	}
}

// Parse reads a full HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return New(root), nil
}

// ParseString parses markup into a new document.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Root returns the document node
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or the root when the tree has none.
func (d *Document) Body() *html.Node {
	if body := d.QuerySelector("body"); body != nil {
		return body
	}
	return d.root
}

// Render serializes the whole document to w
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// HTML returns the serialized document.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// SetMounted marks or clears the mounted flag of an element.
func (d *Document) SetMounted(n *html.Node, mounted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mounted {
		d.mounted[n] = true
		return
	}
	delete(d.mounted, n)
}

// IsMounted reports whether an instance currently owns n
func (d *Document) IsMounted(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mounted[n]
}

// SetOwner records the instance mounted on n. A nil owner clears it.
func (d *Document) SetOwner(n *html.Node, owner any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if owner == nil {
		delete(d.owners, n)
		return
	}
	d.owners[n] = owner
}

// Owner returns the instance mounted on n, if any
func (d *Document) Owner(n *html.Node) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.owners[n]
}
