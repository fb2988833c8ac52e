//go:build property

package directive

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/melodi/internal/expr"
)

// TestDirectiveProperties checks chain selection and repeat ordering over generated inputs
func TestDirectiveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	p := New(Options{})

	// Property: at most one branch renders and it is the first truthy one
	properties.Property("conditional chain picks first truthy branch", prop.ForAll(
		func(conds []bool, withElse bool) bool {
			if len(conds) == 0 {
				return true
			}
			var tpl strings.Builder
			vars := expr.MapScope{}
			for i, c := range conds {
				name := fmt.Sprintf("c%d", i)
				vars[name] = c
				attr := "v-else-if"
				if i == 0 {
					attr = "v-if"
				}
				fmt.Fprintf(&tpl, `<b %s="%s">%d</b> `, attr, name, i)
			}
			if withElse {
				tpl.WriteString(`<b v-else>else</b>`)
			}

			out, err := p.Process(tpl.String(), vars)
			if err != nil {
				return false
			}

			expected := ""
			for i, c := range conds {
				if c {
					expected = fmt.Sprintf("<b>%d</b>", i)
					break
				}
			}
			if expected == "" && withElse {
				expected = "<b>else</b>"
			}
			return strings.TrimSpace(out) == expected
		},
		gen.SliceOfN(5, gen.Bool()),
		gen.Bool(),
	))

	// Property: a repeat emits one node per item, in order
	properties.Property("repeat count and order follow the collection", prop.ForAll(
		func(items []int) bool {
			out, err := p.Process(`<i v-for="(x, n) in items">[[n]]:[[x]]</i>`, expr.MapScope{"items": items})
			if err != nil {
				return false
			}
			var expected strings.Builder
			for i, x := range items {
				fmt.Fprintf(&expected, "<i>%d:%d</i>", i, x)
			}
			return out == expected.String()
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	// Property: expansion is deterministic for the same scope
	properties.Property("expansion is idempotent", prop.ForAll(
		func(show bool, label string) bool {
			tpl := `<p v-show="show" title="[[label]]">[[label]]</p>`
			vars := expr.MapScope{"show": show, "label": label}
			first, err1 := p.Process(tpl, vars)
			second, err2 := p.Process(tpl, vars)
			return err1 == nil && err2 == nil && first == second
		},
		gen.Bool(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
