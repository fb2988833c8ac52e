package component

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/expr"
)

// ignoredAttr reports whether a host attribute is directive or event syntax
// rather than a prop.
func ignoredAttr(key string) bool {
	return strings.HasPrefix(key, "v-") || strings.HasPrefix(key, "@") || strings.HasPrefix(key, ":")
}

// camelCase converts a kebab-case attribute name to a camelCase key.
func camelCase(s string) string {
	if !strings.Contains(s, "-") {
		return s
	}
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// infer turns "true", "false" and numeric attribute values into typed values.
func infer(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if looksNumeric(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

// looksNumeric rejects words ParseFloat would accept, such as "inf" and "nan".
func looksNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' && r != 'e' && r != 'E' {
			return false
		}
	}
	return s != ""
}

// coerce applies a declared prop type. A boolean prop is true only when the
// attribute is present without a value or set to "true".
func coerce(t PropType, raw string) any {
	switch t {
	case PropString:
		return raw
	case PropNumber:
		f := expr.ToNumber(raw)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case PropBoolean:
		return raw == "" || raw == "true"
	default:
		return infer(raw)
	}
}

// readProps collects props from the host attributes. present records which
// declared props were supplied, so defaults only apply to absent ones.
func readProps(host *html.Node, specs []PropSpec) (props map[string]any, present map[string]bool) {
	props = make(map[string]any)
	present = make(map[string]bool)

	attrs := make(map[string]string, len(host.Attr))
	for _, a := range host.Attr {
		if ignoredAttr(a.Key) {
			continue
		}
		attrs[a.Key] = a.Val
	}

	if len(specs) == 0 {
		for key, val := range attrs {
			name := camelCase(key)
			props[name] = infer(val)
			present[name] = true
		}
		return props, present
	}

	for _, spec := range specs {
		raw, ok := lookupProp(attrs, spec.Name)
		if !ok {
			continue
		}
		props[spec.Name] = coerce(spec.Type, raw)
		present[spec.Name] = true
	}
	return props, present
}

// lookupProp finds a declared prop by its exact, lower-cased or kebab-case
// attribute name. The HTML parser lower-cases attribute names.
func lookupProp(attrs map[string]string, name string) (string, bool) {
	for _, key := range []string{name, strings.ToLower(name), kebabCase(name)} {
		if v, ok := attrs[key]; ok {
			return v, true
		}
	}
	return "", false
}

func kebabCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
