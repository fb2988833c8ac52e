package expr

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Ordered is implemented by keyed collections that define their own key order,
// such as reactive records. v-for iterates them in Keys() order.
type Ordered interface {
	Getter
	Keys() []string
}

var errNilMember = errors.New("cannot read property of nil")

// Truthy reports whether v counts as true in a condition
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	}
	if f, ok := numeric(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// ToString renders v the way interpolation displays it. nil renders as "".
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	case Getter:
		return "[object Object]"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = ToString(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	case reflect.Func:
		return ""
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// numeric returns the float value of Go numeric kinds only
func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case float64:
		return t, true
	case nil, string, bool:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func isInteger(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// ToNumber coerces v the way arithmetic operators do
func ToNumber(v any) float64 {
	if f, ok := numeric(v); ok {
		return f
	}
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func add(a, b any) any {
	_, as := a.(string)
	_, bs := b.(string)
	if as || bs {
		return ToString(a) + ToString(b)
	}
	if isInteger(a) && isInteger(b) {
		return int(ToNumber(a)) + int(ToNumber(b))
	}
	return ToNumber(a) + ToNumber(b)
}

func arith(op string, a, b any) any {
	if isInteger(a) && isInteger(b) && op != "/" {
		x, y := int(ToNumber(a)), int(ToNumber(b))
		switch op {
		case "-":
			return x - y
		case "*":
			return x * y
		case "%":
			if y == 0 {
				return math.NaN()
			}
			return x % y
		}
	}
	x, y := ToNumber(a), ToNumber(b)
	switch op {
	case "-":
		return x - y
	case "*":
		return x * y
	case "/":
		return x / y
	case "%":
		return math.Mod(x, y)
	}
	return math.NaN()
}

// StrictEqual compares without coercion; numbers compare by value across Go kinds.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := numeric(a)
	bf, bok := numeric(b)
	if aok || bok {
		return aok && bok && af == bf
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// LooseEqual compares with number/string/bool coercion
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if StrictEqual(a, b) {
		return true
	}
	_, an := numeric(a)
	_, bn := numeric(b)
	_, as := a.(string)
	_, bs := b.(string)
	_, ab := a.(bool)
	_, bb := b.(bool)
	if (an || as || ab) && (bn || bs || bb) {
		if as && bs {
			return false
		}
		return ToNumber(a) == ToNumber(b)
	}
	return false
}

func compare(op string, a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch op {
		case "<":
			return as < bs
		case "<=":
			return as <= bs
		case ">":
			return as > bs
		case ">=":
			return as >= bs
		}
		return false
	}
	x, y := ToNumber(a), ToNumber(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	switch op {
	case "<":
		return x < y
	case "<=":
		return x <= y
	case ">":
		return x > y
	case ">=":
		return x >= y
	}
	return false
}

// MemberOf reads key from obj
func MemberOf(obj any, key any) (any, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", errNilMember, ToString(key))
	}
	name := ToString(key)

	switch o := obj.(type) {
	case Getter:
		v, _ := o.Get(name)
		return v, nil
	case map[string]any:
		return o[name], nil
	case string:
		if name == "length" {
			return utf8.RuneCountInString(o), nil
		}
		if idx, ok := index(key); ok {
			runes := []rune(o)
			if idx >= 0 && idx < len(runes) {
				return string(runes[idx]), nil
			}
			return nil, nil
		}
		if fn := stringMethod(o, name); fn != nil {
			return fn, nil
		}
		return nil, nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: %s", errNilMember, name)
		}
		if m := methodByName(rv, name); m.IsValid() {
			return m.Interface(), nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if name == "length" {
			return rv.Len(), nil
		}
		if idx, ok := index(key); ok {
			if idx >= 0 && idx < rv.Len() {
				return rv.Index(idx).Interface(), nil
			}
			return nil, nil
		}
		if fn := sliceMethod(rv, name); fn != nil {
			return fn, nil
		}
		return nil, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		if f := fieldByName(rv, name); f.IsValid() {
			return f.Interface(), nil
		}
		if m := methodByName(rv, name); m.IsValid() {
			return m.Interface(), nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("cannot read property %q of %T", name, obj)
}

func index(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, true
	case string:
		i, err := strconv.Atoi(k)
		return i, err == nil
	}
	if f, ok := numeric(key); ok && f == math.Trunc(f) {
		return int(f), true
	}
	return 0, false
}

func fieldByName(rv reflect.Value, name string) reflect.Value {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return rv.Field(i)
		}
	}
	return reflect.Value{}
}

func methodByName(rv reflect.Value, name string) reflect.Value {
	t := rv.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if m := t.Method(i); m.IsExported() && strings.EqualFold(m.Name, name) {
			return rv.Method(i)
		}
	}
	return reflect.Value{}
}

func stringMethod(s string, name string) Callable {
	switch name {
	case "toUpperCase":
		return func(...any) (any, error) { return strings.ToUpper(s), nil }
	case "toLowerCase":
		return func(...any) (any, error) { return strings.ToLower(s), nil }
	case "trim":
		return func(...any) (any, error) { return strings.TrimSpace(s), nil }
	case "includes":
		return func(args ...any) (any, error) { return strings.Contains(s, argString(args, 0)), nil }
	case "startsWith":
		return func(args ...any) (any, error) { return strings.HasPrefix(s, argString(args, 0)), nil }
	case "endsWith":
		return func(args ...any) (any, error) { return strings.HasSuffix(s, argString(args, 0)), nil }
	case "indexOf":
		return func(args ...any) (any, error) { return strings.Index(s, argString(args, 0)), nil }
	case "split":
		return func(args ...any) (any, error) {
			parts := strings.Split(s, argString(args, 0))
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		}
	}
	return nil
}

func sliceMethod(rv reflect.Value, name string) Callable {
	switch name {
	case "includes":
		return func(args ...any) (any, error) {
			return sliceIndex(rv, arg(args, 0)) >= 0, nil
		}
	case "indexOf":
		return func(args ...any) (any, error) {
			return sliceIndex(rv, arg(args, 0)), nil
		}
	case "join":
		return func(args ...any) (any, error) {
			sep := ","
			if len(args) > 0 {
				sep = ToString(args[0])
			}
			parts := make([]string, rv.Len())
			for i := range parts {
				parts[i] = ToString(rv.Index(i).Interface())
			}
			return strings.Join(parts, sep), nil
		}
	}
	return nil
}

func sliceIndex(rv reflect.Value, needle any) int {
	for i := 0; i < rv.Len(); i++ {
		if StrictEqual(rv.Index(i).Interface(), needle) {
			return i
		}
	}
	return -1
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argString(args []any, i int) string {
	return ToString(arg(args, i))
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Invoke calls fn with args. Callables are called directly, other Go funcs via reflection.
func Invoke(fn any, args []any) (any, error) {
	switch f := fn.(type) {
	case Callable:
		return f(args...)
	case func(...any) (any, error):
		return f(args...)
	case nil:
		return nil, errors.New("call of nil value")
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%T is not a function", fn)
	}
	ft := rv.Type()

	in := make([]reflect.Value, 0, len(args))
	for i, a := range args {
		var want reflect.Type
		switch {
		case ft.IsVariadic() && i >= ft.NumIn()-1:
			want = ft.In(ft.NumIn() - 1).Elem()
		case i < ft.NumIn():
			want = ft.In(i)
		default:
			continue // extra arguments are ignored
		}
		v, err := convertArg(a, want)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	for len(in) < ft.NumIn() && !(ft.IsVariadic() && len(in) == ft.NumIn()-1) {
		in = append(in, reflect.Zero(ft.In(len(in))))
	}

	out := rv.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if ft.Out(0) == errorType {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		if last := out[len(out)-1]; ft.Out(len(out)-1) == errorType && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return out[0].Interface(), nil
	}
}

func convertArg(a any, want reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(want), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if want.Kind() == reflect.String {
		return reflect.ValueOf(ToString(a)).Convert(want), nil
	}
	if _, ok := numeric(a); ok && v.Type().ConvertibleTo(want) {
		return v.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, want)
}

// Entries returns the iteration entries of a collection for v-for: sequences yield
// (index, item) pairs, keyed collections yield (key, item) pairs. ok is false when v
// is not iterable.
func Entries(v any) (keys []any, items []any, ok bool) {
	switch c := v.(type) {
	case nil:
		return nil, nil, false
	case Ordered:
		for _, k := range c.Keys() {
			item, _ := c.Get(k)
			keys = append(keys, k)
			items = append(items, item)
		}
		return keys, items, true
	case string:
		return nil, nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			keys = append(keys, i)
			items = append(items, rv.Index(i).Interface())
		}
		return keys, items, true
	case reflect.Map:
		mk := rv.MapKeys()
		sort.Slice(mk, func(i, j int) bool {
			return ToString(mk[i].Interface()) < ToString(mk[j].Interface())
		})
		for _, k := range mk {
			keys = append(keys, k.Interface())
			items = append(items, rv.MapIndex(k).Interface())
		}
		return keys, items, true
	}
	return nil, nil, false
}
