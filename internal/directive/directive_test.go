package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/expr"
	"github.com/conneroisu/melodi/internal/reactive"
)

func process(t *testing.T, opts Options, template string, vars map[string]any) string {
	t.Helper()
	out, err := New(opts).Process(template, expr.MapScope(vars))
	require.NoError(t, err)
	return out
}

func TestConditionalChain(t *testing.T) {
	const tpl = `<p v-if="n > 10">big</p>
<p v-else-if="n > 1">medium</p>
<p v-else>small</p>`

	tests := []struct {
		name     string
		n        int
		expected string
	}{
		{"if branch", 20, "<p>big</p>"},
		{"else-if branch", 5, "<p>medium</p>"},
		{"else branch", 0, "<p>small</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, process(t, Options{}, tpl, map[string]any{"n": tt.n}))
		})
	}
}

func TestConditionalChainWithoutMatch(t *testing.T) {
	out := process(t, Options{}, `<a v-if="false">a</a><b v-else-if="0">b</b><i>after</i>`, nil)
	assert.Equal(t, "<i>after</i>", out)
}

func TestConditionalChainEndsAtOtherNode(t *testing.T) {
	tpl := `<a v-if="ok">a</a> <span>x</span> <b v-else>b</b>`
	out := process(t, Options{}, tpl, map[string]any{"ok": true})
	assert.Equal(t, `<a>a</a> <span>x</span> <b>b</b>`, out, "a v-else after an unrelated node is not part of the chain")

	out = process(t, Options{}, `<a v-if="x">1</a><b v-if="!x">2</b>`, map[string]any{"x": false})
	assert.Equal(t, "<b>2</b>", out, "a later v-if in the run acts as another condition")
}

func TestConditionalChainConsumesWholeRun(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
		want string
	}{
		{"adjacent truthy v-if keeps the first", `<a v-if="true">A</a><b v-if="true">B</b>`, "<a>A</a>"},
		{"v-else-if after v-else is consumed", `<a v-if="false">A</a><b v-else>B</b><c v-else-if="true">C</c>`, "<b>B</b>"},
		{"whitespace between members", "<a v-if=\"false\">A</a>\n <b v-else>B</b>\n <c v-if=\"true\">C</c><i>i</i>", "<b>B</b><i>i</i>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, process(t, Options{}, tt.tpl, nil))
		})
	}
}

func TestConditionalFailureIsFalsy(t *testing.T) {
	out := process(t, Options{}, `<a v-if="missing.deep">a</a><b v-else>b</b>`, nil)
	assert.Equal(t, "<b>b</b>", out)
}

func TestRepeat(t *testing.T) {
	tests := []struct {
		name     string
		tpl      string
		vars     map[string]any
		expected string
	}{
		{
			name:     "slice with index",
			tpl:      `<li v-for="(item, i) in items">[[ i ]]:[[ item ]]</li>`,
			vars:     map[string]any{"items": []string{"a", "b", "c"}},
			expected: "<li>0:a</li><li>1:b</li><li>2:c</li>",
		},
		{
			name:     "item only",
			tpl:      `<li v-for="x in xs">[[x * 2]]</li>`,
			vars:     map[string]any{"xs": []any{1, 2}},
			expected: "<li>2</li><li>4</li>",
		},
		{
			name:     "plain map iterates sorted keys",
			tpl:      `<li v-for="(v, k) in m">[[k]]=[[v]]</li>`,
			vars:     map[string]any{"m": map[string]any{"b": 2, "a": 1}},
			expected: "<li>a=1</li><li>b=2</li>",
		},
		{
			name:     "record keeps insertion order",
			tpl:      `<li v-for="(v, k) in r">[[k]]</li>`,
			vars:     map[string]any{"r": recordOf("z", "a")},
			expected: "<li>z</li><li>a</li>",
		},
		{
			name:     "not iterable",
			tpl:      `<li v-for="x in n">[[x]]</li><p>end</p>`,
			vars:     map[string]any{"n": 3},
			expected: "<p>end</p>",
		},
		{
			name:     "malformed",
			tpl:      `<li v-for="items">x</li>`,
			vars:     map[string]any{"items": []int{1}},
			expected: "",
		},
		{
			name:     "nested loops see outer variables",
			tpl:      `<div v-for="row in rows"><span v-for="c in row.cells">[[row.name]][[c]]</span></div>`,
			vars:     map[string]any{"rows": []any{map[string]any{"name": "r", "cells": []int{1, 2}}}},
			expected: "<div><span>r1</span><span>r2</span></div>",
		},
		{
			name:     "attributes interpolate per item",
			tpl:      `<a v-for="id in ids" href="/item/[[id]]">go</a>`,
			vars:     map[string]any{"ids": []int{7}},
			expected: `<a href="/item/7">go</a>`,
		},
		{
			name:     "conditional inside repeat",
			tpl:      `<p v-for="n in ns"><b v-if="n % 2 == 0">even</b><i v-else>odd</i></p>`,
			vars:     map[string]any{"ns": []int{1, 2}},
			expected: "<p><i>odd</i></p><p><b>even</b></p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, process(t, Options{}, tt.tpl, tt.vars))
		})
	}
}

func recordOf(keys ...string) *reactive.Record {
	r := reactive.NewRecord(nil)
	for i, k := range keys {
		r.Set(k, i)
	}
	return r
}

func TestRepeatDoesNotLeakLoopVariables(t *testing.T) {
	out := process(t, Options{}, `<i v-for="x in xs">[[x]]</i><b>[[x]]</b>`, map[string]any{"xs": []int{1}, "x": "outer"})
	assert.Equal(t, "<i>1</i><b>outer</b>", out)
}

func TestShow(t *testing.T) {
	assert.Equal(t, `<p style="display:none">x</p>`,
		process(t, Options{}, `<p v-show="visible">x</p>`, map[string]any{"visible": false}))
	assert.Equal(t, `<p style="color:red;display:none">x</p>`,
		process(t, Options{}, `<p style="color:red" v-show="visible">x</p>`, map[string]any{"visible": 0}))
	assert.Equal(t, `<p style="color:red">x</p>`,
		process(t, Options{}, `<p style="color:red" v-show="visible">x</p>`, map[string]any{"visible": true}))
}

func TestPre(t *testing.T) {
	out := process(t, Options{}, `<code v-pre>[[ raw ]] <b v-if="false">kept</b></code>`, map[string]any{"raw": "x"})
	assert.Equal(t, `<code>[[ raw ]] <b v-if="false">kept</b></code>`, out)
}

func TestInterpolationEscaping(t *testing.T) {
	vars := map[string]any{"v": "<b>bold</b>", "n": nil}

	escaped := process(t, Options{}, `<p>[[ v ]] &amp; [[n]]</p>`, vars)
	assert.Equal(t, "<p>&lt;b&gt;bold&lt;/b&gt; &amp; </p>", escaped)

	raw := process(t, Options{RawInterpolation: true}, `<p>a &lt; [[ v ]]</p>`, vars)
	assert.Equal(t, "<p>a &lt; <b>bold</b></p>", raw)
}

func TestBrokenExpressionsRenderEmpty(t *testing.T) {
	out := process(t, Options{}, `<p>[[ 1 + ]]|[[ nope ]]|[[ 'ok' ]]</p>`, nil)
	assert.Equal(t, "<p>||ok</p>", out)
}

func TestStrayElseRendersAsElement(t *testing.T) {
	out := process(t, Options{}, `<p v-else>x</p>`, nil)
	assert.Equal(t, "<p>x</p>", out)
}

func TestExpandDoesNotMutateInput(t *testing.T) {
	nodes, err := dom.ParseFragment(`<ul><li v-for="x in xs" v-show="x">[[x]]</li></ul>`, nil)
	require.NoError(t, err)
	before := dom.Render(nodes...)

	p := New(Options{})
	first := dom.Render(p.Expand(nodes, expr.MapScope{"xs": []int{0, 1}})...)
	second := dom.Render(p.Expand(nodes, expr.MapScope{"xs": []int{2}})...)

	assert.Equal(t, before, dom.Render(nodes...))
	assert.Equal(t, `<ul><li style="display:none">0</li><li>1</li></ul>`, first)
	assert.Equal(t, `<ul><li>2</li></ul>`, second)
}

func TestParseFor(t *testing.T) {
	item, index, source, ok := ParseFor("(todo, i) in todos.filter")
	require.True(t, ok)
	assert.Equal(t, "todo", item)
	assert.Equal(t, "i", index)
	assert.Equal(t, "todos.filter", source)

	item, index, source, ok = ParseFor(" x of [1,2] ")
	require.True(t, ok)
	assert.Equal(t, "x", item)
	assert.Empty(t, index)
	assert.Equal(t, "[1,2]", source)

	_, _, _, ok = ParseFor("in things")
	assert.False(t, ok)
}

func TestExpressions(t *testing.T) {
	assert.Equal(t, []string{"a", "b.c"}, Expressions("x [[a]] y [[ b.c ]]"))
	assert.True(t, HasPlaceholders("[[x]]"))
	assert.False(t, HasPlaceholders("[x]"))
}
