// Package expr implements the small expression language used inside templates.
//
// Expressions are parsed once into a typed tree (literals, identifiers, member
// access, calls, unary, binary and ternary operators, array and object literals)
// and evaluated against an explicit, layered Scope. The language deliberately
// has no assignment, statements, or ambient globals: a name either resolves
// through the Scope or the evaluation fails.
//
// Evaluate is the best-effort entry point used while rendering. It never returns
// an error; anything that goes wrong yields the empty string so that one broken
// expression cannot blank a whole render.
package expr

import (
	"strings"
	"sync"
)

var cache sync.Map // string -> cached

type cached struct {
	node Node
	err  error
}

// Compile parses src, reusing a previously parsed tree for the same source.
func Compile(src string) (Node, error) {
	src = strings.TrimSpace(src)
	if c, ok := cache.Load(src); ok {
		entry := c.(cached)
		return entry.node, entry.err
	}
	n, err := Parse(src)
	cache.Store(src, cached{node: n, err: err})
	return n, err
}

// Evaluate evaluates src against sc. Any failure yields "" and nil results are
// normalized to "".
func Evaluate(src string, sc Scope) any {
	v, err := Try(src, sc)
	if err != nil || v == nil {
		return ""
	}
	return v
}

// Try evaluates src against sc and reports failures instead of swallowing them.
func Try(src string, sc Scope) (any, error) {
	n, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return Eval(n, sc)
}

// Test evaluates src as a condition
func Test(src string, sc Scope) bool {
	return Truthy(Evaluate(src, sc))
}
