// expr.go implements the boolean expressions accepted by #if and #elif.
package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a parsed conditional expression.
type Expr interface {
	Eval(st *SymbolTable) bool
	String() string
}

// Const is a numeric literal; any non-zero value is true.
type Const struct{ Value uint64 }

// SymbolRef evaluates to the symbol's truth value.
type SymbolRef struct{ Name string }

// Defined is defined(NAME) or defined NAME.
type Defined struct{ Name string }

// Not is !X.
type Not struct{ X Expr }

// And is L && R.
type And struct{ L, R Expr }

// Or is L || R.
type Or struct{ L, R Expr }

func (c Const) Eval(*SymbolTable) bool        { return c.Value != 0 }
func (s SymbolRef) Eval(st *SymbolTable) bool { return st.Lookup(s.Name).AsBool() }
func (d Defined) Eval(st *SymbolTable) bool   { return st.IsDefined(d.Name) }
func (n Not) Eval(st *SymbolTable) bool       { return !n.X.Eval(st) }

// Both operands are evaluated; evaluation has no side effects.
func (a And) Eval(st *SymbolTable) bool {
	l, r := a.L.Eval(st), a.R.Eval(st)
	return l && r
}

func (o Or) Eval(st *SymbolTable) bool {
	l, r := o.L.Eval(st), o.R.Eval(st)
	return l || r
}

func (c Const) String() string     { return strconv.FormatUint(c.Value, 10) }
func (s SymbolRef) String() string { return s.Name }
func (d Defined) String() string   { return "defined(" + d.Name + ")" }
func (n Not) String() string       { return "!" + n.X.String() }
func (a And) String() string       { return "(" + a.L.String() + " && " + a.R.String() + ")" }
func (o Or) String() string        { return "(" + o.L.String() + " || " + o.R.String() + ")" }

type exprTokenKind int

const (
	exEOF exprTokenKind = iota
	exIdent
	exNumber
	exPunct
)

type exprToken struct {
	kind exprTokenKind
	text string
}

// scanExpr splits directive text into identifiers, numbers and the
// operators ( ) ! && ||.
func scanExpr(text string) ([]exprToken, error) {
	var toks []exprToken
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '(' || c == ')' || c == '!':
			toks = append(toks, exprToken{exPunct, string(c)})
			i++
		case strings.HasPrefix(text[i:], "&&"), strings.HasPrefix(text[i:], "||"):
			toks = append(toks, exprToken{exPunct, text[i : i+2]})
			i += 2
		case '0' <= c && c <= '9':
			j := i
			for j < len(text) && '0' <= text[j] && text[j] <= '9' {
				j++
			}
			toks = append(toks, exprToken{exNumber, text[i:j]})
			i = j
		case c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
			j := i
			for j < len(text) && (text[j] == '_' || ('a' <= text[j] && text[j] <= 'z') ||
				('A' <= text[j] && text[j] <= 'Z') || ('0' <= text[j] && text[j] <= '9')) {
				j++
			}
			toks = append(toks, exprToken{exIdent, text[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q in expression", c)
		}
	}
	return toks, nil
}

// ParseExpr parses a conditional expression.
//
//	or      := and ('||' and)*
//	and     := unary ('&&' unary)*
//	unary   := '!' unary | primary
//	primary := '(' or ')' | 'defined' '(' IDENT ')' | 'defined' IDENT | NUMBER | IDENT
func ParseExpr(text string) (Expr, error) {
	toks, err := scanExpr(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	p := &exprParser{tokens: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("unexpected token after expression: %s", p.tokens[p.pos].text)
	}
	return e, nil
}

// exprParser parses preprocessor conditional expressions.
type exprParser struct {
	tokens []exprToken
	pos    int
}

func (p *exprParser) peek() exprToken {
	if p.pos >= len(p.tokens) {
		return exprToken{kind: exEOF}
	}
	return p.tokens[p.pos]
}

func (p *exprParser) advance() exprToken {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *exprParser) match(text string) bool {
	if tok := p.peek(); tok.kind == exPunct && tok.text == text {
		p.advance()
		return true
	}
	return false
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{L: left, R: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.match("&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{L: left, R: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (Expr, error) {
	if p.match("!") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (Expr, error) {
	tok := p.advance()
	switch tok.kind {
	case exPunct:
		if tok.text != "(" {
			return nil, fmt.Errorf("unexpected %q in expression", tok.text)
		}
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.match(")") {
			return nil, fmt.Errorf("expected ')'")
		}
		return e, nil
	case exNumber:
		v, err := strconv.ParseUint(tok.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %s", tok.text)
		}
		return Const{Value: v}, nil
	case exIdent:
		if tok.text != "defined" {
			return SymbolRef{Name: tok.text}, nil
		}
		paren := p.match("(")
		name := p.advance()
		if name.kind != exIdent {
			return nil, fmt.Errorf("defined requires an identifier")
		}
		if paren && !p.match(")") {
			return nil, fmt.Errorf("missing ) in defined()")
		}
		return Defined{Name: name.text}, nil
	}
	return nil, fmt.Errorf("unexpected end of expression")
}
