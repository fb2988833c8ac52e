package expr

// Node is a parsed expression
type Node interface {
	node()
}

// Literal is a constant number, string, boolean or nil
type Literal struct {
	Value any
}

// Ident references a name resolved through the Scope
type Ident struct {
	Name string
}

// Member is property access, either dotted (obj.name) or computed (obj[expr])
type Member struct {
	Object   Node
	Property Node // *Literal holding the name for dotted access
	Computed bool
}

// Call invokes Callee with Args
type Call struct {
	Callee Node
	Args   []Node
}

// Unary applies a prefix operator
type Unary struct {
	Op      string
	Operand Node
}

// Binary applies an infix operator
type Binary struct {
	Op          string
	Left, Right Node
}

// Conditional is the ternary operator
type Conditional struct {
	Test, Then, Else Node
}

// ArrayLit builds a []any
type ArrayLit struct {
	Elements []Node
}

// ObjectLit builds a map[string]any
type ObjectLit struct {
	Keys   []string
	Values []Node
}

func (*Literal) node()     {}
func (*Ident) node()       {}
func (*Member) node()      {}
func (*Call) node()        {}
func (*Unary) node()       {}
func (*Binary) node()      {}
func (*Conditional) node() {}
func (*ArrayLit) node()    {}
func (*ObjectLit) node()   {}

// Identifiers returns the free identifier names referenced by n, in first-seen order.
func Identifiers(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *Ident:
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v.Name)
			}
		case *Member:
			walk(v.Object)
			if v.Computed {
				walk(v.Property)
			}
		case *Call:
			walk(v.Callee)
			for _, a := range v.Args {
				walk(a)
			}
		case *Unary:
			walk(v.Operand)
		case *Binary:
			walk(v.Left)
			walk(v.Right)
		case *Conditional:
			walk(v.Test)
			walk(v.Then)
			walk(v.Else)
		case *ArrayLit:
			for _, e := range v.Elements {
				walk(e)
			}
		case *ObjectLit:
			for _, e := range v.Values {
				walk(e)
			}
		}
	}
	walk(n)
	return out
}
