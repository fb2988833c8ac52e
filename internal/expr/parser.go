package expr

import (
	"fmt"
	"strconv"
)

// binding powers for infix operators, higher binds tighter
var infixPrecedence = map[string]int{
	"??":  2,
	"||":  3,
	"&&":  4,
	"==":  5,
	"!=":  5,
	"===": 5,
	"!==": 5,
	"<":   6,
	"<=":  6,
	">":   6,
	">=":  6,
	"+":   7,
	"-":   7,
	"*":   8,
	"/":   8,
	"%":   8,
}

const (
	precTernary = 1
	precUnary   = 9
)

// SyntaxError reports a malformed expression
type SyntaxError struct {
	Source string
	Pos    int
	Msg    string
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d in %q: %s", e.Pos, e.Source, e.Msg)
}

type parser struct {
	src    string
	tokens []Token
	pos    int
}

// Parse parses src into an expression tree.
func Parse(src string) (Node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, &SyntaxError{Source: src, Msg: err.Error()}
	}
	p := &parser{src: src, tokens: tokens}
	if p.peek().Kind == TokenEOF {
		return nil, p.errorf("empty expression")
	}
	n, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, p.errorf("unexpected %q", tok.Text)
	}
	return n, nil
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isPunct(text string) bool {
	tok := p.peek()
	return tok.Kind == TokenPunct && tok.Text == text
}

func (p *parser) expect(text string) error {
	if !p.isPunct(text) {
		tok := p.peek()
		if tok.Kind == TokenEOF {
			return p.errorf("expected %q, got end of expression", text)
		}
		return p.errorf("expected %q, got %q", text, tok.Text)
	}
	p.advance()
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Source: p.src, Pos: p.peek().Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expression(minPrec int) (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Kind != TokenPunct {
			return left, nil
		}

		if tok.Text == "?" {
			if precTernary < minPrec {
				return left, nil
			}
			p.advance()
			then, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			if err := p.expect(":"); err != nil {
				return nil, err
			}
			// right associative
			els, err := p.expression(precTernary)
			if err != nil {
				return nil, err
			}
			left = &Conditional{Test: left, Then: then, Else: els}
			continue
		}

		prec, ok := infixPrecedence[tok.Text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.expression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: tok.Text, Left: left, Right: right}
	}
}

func (p *parser) unary() (Node, error) {
	tok := p.peek()
	if tok.Kind == TokenPunct && (tok.Text == "!" || tok.Text == "-" || tok.Text == "+") {
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: tok.Text, Operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.isPunct("."):
			p.advance()
			name := p.advance()
			if name.Kind != TokenIdent {
				return nil, p.errorf("expected property name after '.'")
			}
			n = &Member{Object: n, Property: &Literal{Value: name.Text}}
		case p.isPunct("["):
			p.advance()
			prop, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = &Member{Object: n, Property: prop, Computed: true}
		case p.isPunct("("):
			p.advance()
			args, err := p.list(")")
			if err != nil {
				return nil, err
			}
			n = &Call{Callee: n, Args: args}
		default:
			return n, nil
		}
	}
}

func (p *parser) list(closing string) ([]Node, error) {
	var items []Node
	if p.isPunct(closing) {
		p.advance()
		return items, nil
	}
	for {
		item, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		if err := p.expect(closing); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func (p *parser) primary() (Node, error) {
	tok := p.advance()
	switch tok.Kind {
	case TokenNumber:
		if i, err := strconv.ParseInt(tok.Text, 10, 64); err == nil {
			return &Literal{Value: int(i)}, nil
		}
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, &SyntaxError{Source: p.src, Pos: tok.Pos, Msg: "invalid number " + tok.Text}
		}
		return &Literal{Value: f}, nil
	case TokenString:
		return &Literal{Value: tok.Value}, nil
	case TokenIdent:
		switch tok.Text {
		case "true":
			return &Literal{Value: true}, nil
		case "false":
			return &Literal{Value: false}, nil
		case "null", "undefined":
			return &Literal{Value: nil}, nil
		}
		return &Ident{Name: tok.Text}, nil
	case TokenPunct:
		switch tok.Text {
		case "(":
			n, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil
		case "[":
			elems, err := p.list("]")
			if err != nil {
				return nil, err
			}
			return &ArrayLit{Elements: elems}, nil
		case "{":
			return p.object()
		}
	case TokenEOF:
		return nil, &SyntaxError{Source: p.src, Pos: tok.Pos, Msg: "unexpected end of expression"}
	}
	return nil, &SyntaxError{Source: p.src, Pos: tok.Pos, Msg: fmt.Sprintf("unexpected %q", tok.Text)}
}

func (p *parser) object() (Node, error) {
	obj := &ObjectLit{}
	if p.isPunct("}") {
		p.advance()
		return obj, nil
	}
	for {
		key := p.advance()
		switch key.Kind {
		case TokenIdent, TokenNumber:
			obj.Keys = append(obj.Keys, key.Text)
		case TokenString:
			obj.Keys = append(obj.Keys, key.Value)
		default:
			return nil, &SyntaxError{Source: p.src, Pos: key.Pos, Msg: "expected object key"}
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		val, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		obj.Values = append(obj.Values, val)
		if p.isPunct(",") {
			p.advance()
			if p.isPunct("}") {
				p.advance()
				return obj, nil
			}
			continue
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		return obj, nil
	}
}
