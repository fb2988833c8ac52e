package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	Name string
	Age  int
}

func (u user) Greeting(prefix string) string {
	return prefix + " " + u.Name
}

type record map[string]any

func (r record) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

func testScope() Scope {
	return MapScope{
		"n":     2,
		"f":     1.5,
		"name":  "melodi",
		"items": []any{1, 2, 3},
		"tags":  []string{"a", "b"},
		"user":  user{Name: "Ada", Age: 36},
		"ptr":   &user{Name: "Bob"},
		"obj":   map[string]any{"nested": map[string]any{"x": 7}},
		"rec":   record{"k": "v"},
		"empty": "",
		"zero":  0,
		"nil":   nil,
		"double": Callable(func(args ...any) (any, error) {
			return ToNumber(args[0]) * 2, nil
		}),
		"plain": func(a, b int) int { return a + b },
		"fails": Callable(func(args ...any) (any, error) {
			return nil, errors.New("boom")
		}),
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		expected any
	}{
		{"integer literal", "42", 42},
		{"float literal", "1.25", 1.25},
		{"string literal", "'hi'", "hi"},
		{"double quoted escape", `"a\"b"`, `a"b`},
		{"identifier", "name", "melodi"},
		{"integer arithmetic stays integer", "n * 3 + 1", 7},
		{"division widens", "n / 4", 0.5},
		{"modulo", "7 % n", 1},
		{"precedence", "1 + 2 * 3", 7},
		{"parentheses", "(1 + 2) * 3", 9},
		{"string concatenation", "name + '-' + n", "melodi-2"},
		{"unary minus", "-n", -2},
		{"logical not", "!empty", true},
		{"and returns operand", "name && n", 2},
		{"or returns operand", "empty || 'fallback'", "fallback"},
		{"nullish", "nil ?? 'x'", "x"},
		{"nullish keeps zero", "zero ?? 5", 0},
		{"ternary", "n > 1 ? 'big' : 'small'", "big"},
		{"nested ternary", "n > 5 ? 'a' : n > 1 ? 'b' : 'c'", "b"},
		{"loose equality", "n == '2'", true},
		{"strict equality", "n === '2'", false},
		{"strict numeric across kinds", "n === 2.0", true},
		{"relational strings", "'a' < 'b'", true},
		{"member on map", "obj.nested.x", 7},
		{"computed member", "obj['nested']['x']", 7},
		{"getter member", "rec.k", "v"},
		{"struct field case-insensitive", "user.name", "Ada"},
		{"pointer struct field", "ptr.Name", "Bob"},
		{"struct method call", "user.greeting('hello')", "hello Ada"},
		{"slice length", "items.length", 3},
		{"slice index", "items[1]", 2},
		{"typed slice includes", "tags.includes('b')", true},
		{"slice join", "items.join('-')", "1-2-3"},
		{"string length", "name.length", 6},
		{"string method", "name.toUpperCase()", "MELODI"},
		{"callable", "double(n)", 4.0},
		{"reflected func", "plain(2, 3)", 5},
		{"array literal", "[1, 'a'][1]", "a"},
		{"object literal", "{a: 1, 'b c': 2}['b c']", 2},
		{"missing map key is nil", "obj.missing ?? 'none'", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Try(tt.expr, testScope())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluateNeverFails(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"undefined identifier", "missing + 1"},
		{"syntax error", "1 +"},
		{"unterminated string", "'abc"},
		{"member of nil", "nil.x"},
		{"call of non-function", "name()"},
		{"callable error", "fails()"},
		{"empty expression", "   "},
		{"unexpected token", "a b"},
		{"nil result", "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, "", Evaluate(tt.expr, testScope()))
			})
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(0.0))
	assert.False(t, Truthy(int64(0)))
	assert.False(t, Truthy(math.NaN()))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy("0"))
	assert.True(t, Truthy([]any{}))
	assert.True(t, Truthy(map[string]any{}))
	assert.True(t, Truthy(-1))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "2", ToString(2.0))
	assert.Equal(t, "2.5", ToString(2.5))
	assert.Equal(t, "NaN", ToString(math.NaN()))
	assert.Equal(t, "1,2,3", ToString([]int{1, 2, 3}))
	assert.Equal(t, "[object Object]", ToString(map[string]any{"a": 1}))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "7", ToString(uint8(7)))
}

func TestLayeredScope(t *testing.T) {
	parent := MapScope{"a": 1, "b": 2}
	child := Layered(parent, map[string]any{"b": 20, "c": 30})

	v, ok := child.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, _ = child.Lookup("b")
	assert.Equal(t, 20, v, "child binding shadows parent")

	_, ok = parent.Lookup("c")
	assert.False(t, ok, "child bindings never leak into the parent")

	assert.Equal(t, 21, Evaluate("a + b", child))
}

func TestChainScope(t *testing.T) {
	sc := Chain(nil, MapScope{"a": 1}, MapScope{"a": 2, "b": 3})
	assert.Equal(t, 4, Evaluate("a + b", sc))
	_, ok := sc.Lookup("z")
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("(1 + 2")
	require.Error(t, err)
	var syn *SyntaxError
	assert.ErrorAs(t, err, &syn)
	assert.Contains(t, syn.Error(), "expected")
}

func TestIdentifiers(t *testing.T) {
	n, err := Parse("user.name + count(items[idx]) + user.age")
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "count", "items", "idx"}, Identifiers(n))
}

func TestEntries(t *testing.T) {
	keys, items, ok := Entries([]string{"x", "y"})
	require.True(t, ok)
	assert.Equal(t, []any{0, 1}, keys)
	assert.Equal(t, []any{"x", "y"}, items)

	keys, items, ok = Entries(map[string]int{"b": 2, "a": 1})
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, keys)
	assert.Equal(t, []any{1, 2}, items)

	_, _, ok = Entries("not iterable")
	assert.False(t, ok)
	_, _, ok = Entries(5)
	assert.False(t, ok)
	_, _, ok = Entries(nil)
	assert.False(t, ok)
}

func TestMemberOf(t *testing.T) {
	v, err := MemberOf(map[string]any{"a": 1}, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = MemberOf("héllo", "length")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = MemberOf(user{Name: "ada"}, "Name")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	_, err = MemberOf(nil, "x")
	assert.ErrorIs(t, err, errNilMember)

	v, err = Try("u.Name", Layered(nil, map[string]any{"u": user{Name: "bo"}}))
	require.NoError(t, err)
	assert.Equal(t, "bo", v)
}
