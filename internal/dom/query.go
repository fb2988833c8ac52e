package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// QuerySelector returns the first element in the document matching the CSS selector.
func (d *Document) QuerySelector(selector string) *html.Node {
	return QuerySelector(d.root, selector)
}

// QuerySelectorAll returns every element in the document matching the CSS selector.
func (d *Document) QuerySelectorAll(selector string) []*html.Node {
	return QuerySelectorAll(d.root, selector)
}

// QuerySelector returns the first descendant of n matching selector, or nil.
// Malformed selectors match nothing.
func QuerySelector(n *html.Node, selector string) *html.Node {
	if n == nil {
		return nil
	}
	found, err := htmlquery.Query(n, ToXPath(selector))
	if err != nil {
		return nil
	}
	return found
}

// QuerySelectorAll returns the descendants of n matching selector in document order.
func QuerySelectorAll(n *html.Node, selector string) []*html.Node {
	if n == nil {
		return nil
	}
	found, err := htmlquery.QueryAll(n, ToXPath(selector))
	if err != nil {
		return nil
	}
	return found
}

// ToXPath translates the supported CSS subset into a relative XPath expression:
// tag, #id, .class, [attr], [attr=value], descendant (space) and child (>)
// combinators. Input that already looks like XPath is returned unchanged.
func ToXPath(css string) string {
	css = strings.TrimSpace(css)
	if strings.HasPrefix(css, "/") || strings.HasPrefix(css, "./") || strings.HasPrefix(css, "(") {
		return css
	}

	var xpath strings.Builder
	xpath.WriteString(".")
	axis := "//"
	for _, part := range splitCompound(css) {
		if part == ">" {
			axis = "/"
			continue
		}
		xpath.WriteString(axis)
		xpath.WriteString(compoundToXPath(part))
		axis = "//"
	}
	return xpath.String()
}

// splitCompound splits a selector on whitespace and '>', keeping bracketed
// attribute values intact.
func splitCompound(css string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	var quote rune
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for _, r := range css {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case depth > 0 && (r == '"' || r == '\''):
			quote = r
			cur.WriteRune(r)
		case r == '[':
			depth++
			cur.WriteRune(r)
		case r == ']':
			depth--
			cur.WriteRune(r)
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		case depth == 0 && r == '>':
			flush()
			parts = append(parts, ">")
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}

func compoundToXPath(part string) string {
	tag := "*"
	var predicates []string

	i := 0
	for i < len(part) && part[i] != '#' && part[i] != '.' && part[i] != '[' {
		i++
	}
	if i > 0 {
		tag = strings.ToLower(part[:i])
	}

	for i < len(part) {
		switch part[i] {
		case '#', '.':
			kind := part[i]
			j := i + 1
			for j < len(part) && part[j] != '#' && part[j] != '.' && part[j] != '[' {
				j++
			}
			name := part[i+1 : j]
			if kind == '#' {
				predicates = append(predicates, fmt.Sprintf("@id=%s", literal(name)))
			} else {
				predicates = append(predicates,
					fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), %s)", literal(" "+name+" ")))
			}
			i = j
		case '[':
			j := strings.IndexByte(part[i:], ']')
			if j < 0 {
				j = len(part) - i
			}
			predicates = append(predicates, attrPredicate(part[i+1:i+j]))
			i += j + 1
		default:
			i++
		}
	}

	var sb strings.Builder
	sb.WriteString(tag)
	for _, p := range predicates {
		sb.WriteString("[")
		sb.WriteString(p)
		sb.WriteString("]")
	}
	return sb.String()
}

func attrPredicate(expr string) string {
	name, value, hasValue := strings.Cut(expr, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	if !hasValue {
		return "@" + name
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	return fmt.Sprintf("@%s=%s", name, literal(value))
}

// literal quotes s as an XPath string literal
func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
