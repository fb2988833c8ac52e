package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/expr"
	"github.com/conneroisu/melodi/internal/store"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
		check   func(t *testing.T, m *Manifest)
	}{
		{
			name:  "empty document",
			input: "",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, 0, m.Components.Len())
				assert.Nil(t, m.Store)
			},
		},
		{
			name: "order and lowercase tags",
			input: `
components:
  H-Zeta: {template: "<p>z</p>"}
  h-alpha: "<p>a</p>"
`,
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, []string{"h-zeta", "h-alpha"}, m.Components.Names())
				alpha, ok := m.Components.Get("h-alpha")
				require.True(t, ok)
				assert.Equal(t, "<p>a</p>", alpha.Template.Inline)
			},
		},
		{
			name: "props as list and mapping",
			input: `
components:
  h-a:
    props: [title, size]
  h-b:
    props:
      open: boolean
      count: {type: number, default: 2}
      anything:
`,
			check: func(t *testing.T, m *Manifest) {
				a, _ := m.Components.Get("h-a")
				assert.Equal(t, PropsSpec{{Name: "title"}, {Name: "size"}}, a.Props)
				b, _ := m.Components.Get("h-b")
				assert.Equal(t, PropsSpec{
					{Name: "open", Type: "boolean"},
					{Name: "count", Type: "number", Default: 2},
					{Name: "anything"},
				}, b.Props)
			},
		},
		{
			name: "single step and step list",
			input: `
components:
  h-a:
    methods:
      one: {set: {n: "1"}}
      two:
        - call: "one()"
        - return: "n"
`,
			check: func(t *testing.T, m *Manifest) {
				a, _ := m.Components.Get("h-a")
				assert.Len(t, a.Methods["one"], 1)
				assert.Equal(t, Steps{{Call: "one()"}, {Return: "n"}}, a.Methods["two"])
			},
		},
		{
			name:    "unknown top-level key",
			input:   "widgets: {}",
			wantErr: "parse manifest",
		},
		{
			name: "duplicate component",
			input: `
components:
  h-a: "<p></p>"
  H-A: "<p></p>"
`,
			wantErr: "declared twice",
		},
		{
			name: "steps must be mappings",
			input: `
components:
  h-a:
    methods:
      go: "n + 1"
`,
			wantErr: "steps must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			tt.check(t, m)
		})
	}
}

func TestLoadRegisterAndRun(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "app.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "testdata", m.Dir())
	assert.False(t, m.Validate().HasErrors())

	ctx := context.Background()
	st, err := m.NewStore(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, []string{"increment", "reset"}, st.Actions())

	doc, err := dom.ParseString(`<h-counter label="clicks"></h-counter><h-card title="Hi">body</h-card>`)
	require.NoError(t, err)
	app := component.New(component.WithDocument(doc))
	require.NoError(t, app.Use(st))
	require.NoError(t, m.Register(app))
	assert.Equal(t, []string{"h-counter", "h-card"}, app.Tags())

	require.NoError(t, app.Mount(ctx, nil))
	require.NoError(t, app.Flush(ctx))

	button := doc.QuerySelector("h-counter button")
	assert.Equal(t, "clicks: 0", strings.TrimSpace(dom.TextContent(button)))
	assert.Equal(t, "Hi", dom.TextContent(doc.QuerySelector("h-card h2")))
	assert.Equal(t, "0", dom.TextContent(doc.QuerySelector("h-card h-badge em")))
	assert.Contains(t, dom.TextContent(doc.QuerySelector("h-card section")), "body")

	counter := app.InstanceOf(doc.QuerySelector("h-counter"))
	require.NotNil(t, counter)
	assert.Equal(t, true, counter.State().Get("ready"))

	var limits []any
	counter.State().On("limit", func(p any) { limits = append(limits, p) })

	for i := 0; i < 3; i++ {
		doc.Click(doc.QuerySelector("h-counter button"))
		require.NoError(t, app.Flush(ctx))
	}
	assert.Equal(t, "clicks: 3", strings.TrimSpace(dom.TextContent(doc.QuerySelector("h-counter button"))))
	assert.Equal(t, "3", dom.TextContent(doc.QuerySelector("h-card h-badge em")))
	require.Len(t, limits, 1)
	assert.EqualValues(t, 3, expr.ToNumber(limits[0]))

	require.NoError(t, st.Dispatch(ctx, "reset", nil))
	require.NoError(t, app.Flush(ctx))
	assert.Equal(t, "0", dom.TextContent(doc.QuerySelector("h-card h-badge em")))

	r := m.Router()
	require.NotNil(t, r)
	match, ok := r.Match("/cards/9")
	require.True(t, ok)
	assert.Equal(t, "h-card", match.Route.Tag)
	assert.Equal(t, "9", match.Params["id"])
}

func TestDataIsCopiedPerInstance(t *testing.T) {
	m, err := Parse([]byte(`
components:
  h-list:
    template: "<p>[[ items.join(',') ]]</p>"
    data: {items: [a]}
    methods:
      grow: {set: {items: "['a', 'b']"}}
`))
	require.NoError(t, err)
	decls, err := m.Definitions()
	require.NoError(t, err)
	require.Len(t, decls, 1)

	def := decls[0].Definition
	first := def.Data(nil)
	first["items"].([]any)[0] = "changed"
	assert.Equal(t, []any{"a"}, def.Data(nil)["items"])
}

func TestStepsReturnAndCondition(t *testing.T) {
	m, err := Parse([]byte(`
components:
  h-calc:
    template: "<p>[[ total ]]</p>"
    data: {total: 0}
    methods:
      add:
        - if: "$payload > 0"
          set: {total: "total + $payload", last: "total"}
        - return: "total * 2"
`))
	require.NoError(t, err)
	doc, err := dom.ParseString(`<h-calc></h-calc>`)
	require.NoError(t, err)
	app := component.New(component.WithDocument(doc))
	require.NoError(t, m.Register(app))
	ctx := context.Background()
	require.NoError(t, app.Mount(ctx, nil))

	s := app.Instances()[0].State()
	got, err := s.Call("add", 5)
	require.NoError(t, err)
	assert.EqualValues(t, 10, got)
	assert.EqualValues(t, 0, s.Get("last"))

	got, err = s.Call("add", -1)
	require.NoError(t, err)
	assert.EqualValues(t, 10, got)
	assert.EqualValues(t, 5, s.Get("total"))

	require.NoError(t, app.Flush(ctx))
	assert.Equal(t, "5", dom.TextContent(doc.QuerySelector("h-calc p")))
}

func TestStoreActionsAndPersistence(t *testing.T) {
	m, err := Parse([]byte(`
store:
  state: {count: 1}
  actions:
    double: {set: {count: "count * 2"}}
    twice:
      - dispatch: {action: double}
      - dispatch: {action: double}
    loud: {emit: {event: x}}
`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "state.yaml")
	p, err := store.NewFilePersister(path)
	require.NoError(t, err)

	ctx := context.Background()
	st, err := m.NewStore(ctx, p)
	require.NoError(t, err)
	require.NoError(t, st.Dispatch(ctx, "twice", nil))
	v, _ := st.Get("count")
	assert.EqualValues(t, 4, expr.ToNumber(v))
	assert.Error(t, st.Dispatch(ctx, "loud", nil))

	restored, err := m.NewStore(ctx, p)
	require.NoError(t, err)
	v, _ = restored.Get("count")
	assert.EqualValues(t, 4, expr.ToNumber(v))

	none, err := (&Manifest{}).NewStore(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Nil(t, (&Manifest{}).Router())
}

func TestTemplateFileTraversal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
components:
  h-a:
    template: {file: ../secret.html}
`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	_, err = m.Definitions()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewValidationError(errors.ErrCodePathTraversal, ""))

	issues := m.Validate()
	assert.True(t, issues.HasErrors())
}

func TestUnknownHookFailsBuild(t *testing.T) {
	m, err := Parse([]byte(`
components:
  h-a:
    hooks:
      created: {set: {x: "1"}}
`))
	require.NoError(t, err)
	_, err = m.Definitions()
	assert.ErrorContains(t, err, `unknown hook "created"`)
}

func TestValidate(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "invalid.yaml"))
	require.NoError(t, err)

	issues := m.Validate()
	require.True(t, issues.HasErrors())

	var errs, warnings []string
	for _, issue := range issues.Issues() {
		assert.Equal(t, filepath.Join("testdata", "invalid.yaml"), issue.File)
		switch issue.Severity {
		case errors.ErrorSeverityError:
			errs = append(errs, issue.Error())
		case errors.ErrorSeverityWarning:
			warnings = append(warnings, issue.Error())
		}
		assert.NotEqual(t, "ignored +", issue.Expression)
	}

	wantErrs := []string{
		`(in "n >")`,
		`(in "n +")`,
		`v-for must read`,
		`emit needs an event name`,
		`unknown store action "nowhere"`,
		`unknown hook "created"`,
		`store actions cannot emit events`,
		`route tag "h-none" is not a declared component`,
		`component cycle:`,
	}
	for _, want := range wantErrs {
		assert.True(t, containsSubstring(errs, want), "missing error %q in %v", want, errs)
	}

	wantWarnings := []string{
		`handler "missing" is not a declared method`,
		`unknown prop type "huge"`,
		`path / is declared twice`,
	}
	for _, want := range wantWarnings {
		assert.True(t, containsSubstring(warnings, want), "missing warning %q in %v", want, warnings)
	}

	assert.Error(t, issues.Err())
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestShorthandComponents(t *testing.T) {
	m, err := Parse([]byte(`
components:
  h-card:
    template: "<h-icon></h-icon>"
    components:
      h-icon: "<i>*</i>"
  h-plain: |
    <p>plain</p>
`))
	require.NoError(t, err)

	card, ok := m.Components.Get("h-card")
	require.True(t, ok)
	icon, ok := card.Components.Get("h-icon")
	require.True(t, ok)
	assert.Equal(t, "<i>*</i>", icon.Template.Inline)
	assert.Equal(t, 6, icon.Line)

	plain, ok := m.Components.Get("h-plain")
	require.True(t, ok)
	assert.Equal(t, "<p>plain</p>\n", plain.Template.Inline)
	assert.Empty(t, plain.Props)
}
