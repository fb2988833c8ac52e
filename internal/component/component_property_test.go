//go:build property

package component

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/reactive"
)

// TestComponentProperties checks store fan-out and two-way binding over generated inputs
func TestComponentProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	ctx := context.Background()

	// Property: every mounted instance renders exactly once per store batch
	properties.Property("store writes re-render every instance once", prop.ForAll(
		func(instances, writes int) bool {
			st := &fakeStore{Record: reactive.NewRecord(map[string]any{"v": 0})}
			var page strings.Builder
			for i := 0; i < instances; i++ {
				fmt.Fprintf(&page, "<h-%d></h-%d>", i, i)
			}
			doc, err := dom.ParseString(page.String())
			if err != nil {
				return false
			}
			a := New(WithDocument(doc), WithStore(st))
			for i := 0; i < instances; i++ {
				a.Component(fmt.Sprintf("h-%d", i), &Definition{Template: InlineTemplate(`[[ $store.v ]]`)})
			}
			if err := a.Mount(ctx, nil); err != nil || len(a.Instances()) != instances {
				return false
			}

			for w := 1; w <= writes; w++ {
				st.Set("v", w)
			}
			if err := a.Flush(ctx); err != nil {
				return false
			}
			for _, inst := range a.Instances() {
				if inst.Renders() != 2 || dom.TextContent(inst.Host()) != fmt.Sprint(writes) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 5),
	))

	// Property: state set to x shows x, user input y stores y and shows y
	properties.Property("binding round-trip", prop.ForAll(
		func(x, y string) bool {
			doc, err := dom.ParseString(`<h-in></h-in>`)
			if err != nil {
				return false
			}
			a := New(WithDocument(doc))
			a.Component("h-in", &Definition{
				Template: InlineTemplate(`<input v-model="v">`),
				Data:     func(map[string]any) map[string]any { return map[string]any{"v": ""} },
			})
			if err := a.Mount(ctx, nil); err != nil {
				return false
			}
			s := a.Instances()[0].State()

			s.Set("v", x)
			if a.Flush(ctx) != nil || dom.Value(doc.QuerySelector("h-in input")) != x {
				return false
			}
			doc.Input(doc.QuerySelector("h-in input"), y)
			if s.Get("v") != y || a.Flush(ctx) != nil {
				return false
			}
			return dom.Value(doc.QuerySelector("h-in input")) == y
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
