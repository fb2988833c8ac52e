package expr

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind identifies a lexical token class
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNumber
	TokenString
	TokenIdent
	TokenPunct
)

// String returns the string representation of the token kind
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenIdent:
		return "identifier"
	case TokenPunct:
		return "punctuation"
	default:
		return "unknown"
	}
}

// Token is a single lexical unit of an expression
type Token struct {
	Kind  TokenKind
	Text  string
	Pos   int
	Value string // unescaped value for string tokens
}

// punctuators ordered longest first so the scanner is greedy
var punctuators = []string{
	"===", "!==",
	"==", "!=", "<=", ">=", "&&", "||", "??",
	"+", "-", "*", "/", "%", "<", ">", "!", "?", ":", ".", ",", "(", ")", "[", "]", "{", "}",
}

type lexer struct {
	src string
	pos int
}

func tokenize(src string) ([]Token, error) {
	l := &lexer{src: src}
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (Token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number(start)
	case c == '"' || c == '\'':
		return l.str(start, c)
	case isIdentStart(rune(c)):
		for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
			l.pos++
		}
		return Token{Kind: TokenIdent, Text: l.src[start:l.pos], Pos: start}, nil
	}

	for _, p := range punctuators {
		if strings.HasPrefix(l.src[l.pos:], p) {
			l.pos += len(p)
			return Token{Kind: TokenPunct, Text: p, Pos: start}, nil
		}
	}

	return Token{}, fmt.Errorf("unexpected character %q at %d", c, start)
}

func (l *lexer) number(start int) (Token, error) {
	seenDot := false
	seenExp := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isDigit(c):
			l.pos++
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
			l.pos++
		case (c == 'e' || c == 'E') && !seenExp:
			seenExp = true
			l.pos++
			if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
				l.pos++
			}
		default:
			return Token{Kind: TokenNumber, Text: l.src[start:l.pos], Pos: start}, nil
		}
	}
	return Token{Kind: TokenNumber, Text: l.src[start:l.pos], Pos: start}, nil
}

func (l *lexer) str(start int, quote byte) (Token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case quote:
			l.pos++
			return Token{Kind: TokenString, Text: l.src[start:l.pos], Value: sb.String(), Pos: start}, nil
		case '\\':
			l.pos++
			if l.pos >= len(l.src) {
				return Token{}, fmt.Errorf("unterminated escape at %d", l.pos)
			}
			switch e := l.src[l.pos]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(e)
			}
			l.pos++
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return Token{}, fmt.Errorf("unterminated string starting at %d", start)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
