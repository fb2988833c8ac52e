package expr

import (
	"fmt"
	"math"
)

// Eval evaluates a parsed expression against sc.
func Eval(n Node, sc Scope) (result any, err error) {
	if sc == nil {
		sc = Empty
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("evaluation panic: %v", r)
		}
	}()
	return eval(n, sc)
}

func eval(n Node, sc Scope) (any, error) {
	switch v := n.(type) {
	case *Literal:
		return v.Value, nil

	case *Ident:
		val, ok := sc.Lookup(v.Name)
		if !ok {
			return nil, fmt.Errorf("%s is not defined", v.Name)
		}
		return val, nil

	case *Member:
		obj, err := eval(v.Object, sc)
		if err != nil {
			return nil, err
		}
		key, err := eval(v.Property, sc)
		if err != nil {
			return nil, err
		}
		return MemberOf(obj, key)

	case *Call:
		fn, err := eval(v.Callee, sc)
		if err != nil {
			return nil, err
		}
		args := make([]any, len(v.Args))
		for i, a := range v.Args {
			if args[i], err = eval(a, sc); err != nil {
				return nil, err
			}
		}
		return Invoke(fn, args)

	case *Unary:
		operand, err := eval(v.Operand, sc)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case "!":
			return !Truthy(operand), nil
		case "-":
			if isInteger(operand) {
				return -int(ToNumber(operand)), nil
			}
			return -ToNumber(operand), nil
		case "+":
			return ToNumber(operand), nil
		}
		return nil, fmt.Errorf("unknown unary operator %s", v.Op)

	case *Binary:
		return evalBinary(v, sc)

	case *Conditional:
		test, err := eval(v.Test, sc)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return eval(v.Then, sc)
		}
		return eval(v.Else, sc)

	case *ArrayLit:
		out := make([]any, len(v.Elements))
		for i, e := range v.Elements {
			val, err := eval(e, sc)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	case *ObjectLit:
		out := make(map[string]any, len(v.Keys))
		for i, k := range v.Keys {
			val, err := eval(v.Values[i], sc)
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown node %T", n)
}

func evalBinary(b *Binary, sc Scope) (any, error) {
	left, err := eval(b.Left, sc)
	if err != nil {
		return nil, err
	}

	// short-circuit operators return an operand, not a bool
	switch b.Op {
	case "&&":
		if !Truthy(left) {
			return left, nil
		}
		return eval(b.Right, sc)
	case "||":
		if Truthy(left) {
			return left, nil
		}
		return eval(b.Right, sc)
	case "??":
		if left != nil {
			return left, nil
		}
		return eval(b.Right, sc)
	}

	right, err := eval(b.Right, sc)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "+":
		return add(left, right), nil
	case "-", "*", "/", "%":
		return arith(b.Op, left, right), nil
	case "==":
		return LooseEqual(left, right), nil
	case "!=":
		return !LooseEqual(left, right), nil
	case "===":
		return StrictEqual(left, right), nil
	case "!==":
		return !StrictEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compare(b.Op, left, right), nil
	}
	return math.NaN(), fmt.Errorf("unknown operator %s", b.Op)
}
