// Package lexer turns definition source text into a flat token stream.
package lexer

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// ErrorKind classifies lexical errors.
type ErrorKind int

const (
	UnterminatedString ErrorKind = iota
	UnterminatedComment
	UnexpectedCharacter
	NumberOutOfRange
)

func (k ErrorKind) String() string {
	switch k {
	case UnterminatedString:
		return "unterminated string"
	case UnterminatedComment:
		return "unterminated comment"
	case UnexpectedCharacter:
		return "unexpected character"
	case NumberOutOfRange:
		return "number out of range"
	}
	return "lexical error"
}

// Error is returned by Tokenize. Line is 1-based and points at the
// position where scanning failed.
type Error struct {
	Kind ErrorKind
	Char rune // offending character for UnexpectedCharacter
	Text string
	Line int
}

func (e *Error) Error() string {
	switch e.Kind {
	case UnexpectedCharacter:
		return fmt.Sprintf("line %d: unexpected character %q", e.Line, e.Char)
	case NumberOutOfRange:
		return fmt.Sprintf("line %d: number %s out of range", e.Line, e.Text)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Kind)
}

// Options controls optional lexer behaviour.
type Options struct {
	KeepComments bool // emit TokenComment instead of dropping comments
}

// Lexer tokenizes definition source code
type Lexer struct {
	input string
	pos   int // current position in input
	line  int
	opts  Options
}

// New creates a new Lexer for the given input
func New(input string, opts Options) *Lexer {
	return &Lexer{input: input, line: 1, opts: opts}
}

// Tokenize scans text with default options. The returned slice always ends
// with a TokenEOF token.
func Tokenize(text string) ([]Token, error) {
	return New(text, Options{}).Tokenize()
}

// Tokenize scans the whole input.
func (l *Lexer) Tokenize() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) peek(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.atEOF() {
			return Token{Type: TokenEOF, Line: l.line}, nil
		}
		if l.peek(0) == '/' && (l.peek(1) == '/' || l.peek(1) == '*') {
			tok, err := l.readComment()
			if err != nil {
				return Token{}, err
			}
			if l.opts.KeepComments {
				return tok, nil
			}
			continue
		}
		break
	}

	line := l.line
	ch := l.peek(0)
	switch {
	case ch == '#':
		start := l.pos
		for !l.atEOF() && l.peek(0) != '\n' {
			l.advance()
		}
		return Token{Type: TokenPreprocessor, Literal: l.input[start:l.pos], Line: line}, nil
	case ch == '"':
		s, err := l.readString()
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokenString, Literal: s, Line: line}, nil
	case isDigit(ch):
		lit := l.readWhile(isDigit)
		v, err := strconv.ParseUint(lit, 10, 32)
		if err != nil {
			return Token{}, &Error{Kind: NumberOutOfRange, Text: lit, Line: line}
		}
		return Token{Type: TokenNumber, Literal: lit, Value: uint32(v), Line: line}, nil
	case isLetter(ch):
		lit := l.readWhile(func(c byte) bool { return isLetter(c) || isDigit(c) })
		return Token{Type: LookupIdent(lit), Literal: lit, Line: line}, nil
	}

	if tt, ok := symbols[ch]; ok {
		l.advance()
		return Token{Type: tt, Literal: string(ch), Line: line}, nil
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return Token{}, &Error{Kind: UnexpectedCharacter, Char: r, Line: line}
}

var symbols = map[byte]TokenType{
	':': TokenColon,
	';': TokenSemicolon,
	',': TokenComma,
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	'=': TokenAssign,
	'*': TokenStar,
	'^': TokenCaret,
	'~': TokenTilde,
	'+': TokenPlus,
	'-': TokenMinus,
	'/': TokenSlash,
	'|': TokenPipe,
	'&': TokenAmpersand,
	'<': TokenLt,
	'>': TokenGt,
	'.': TokenDot,
}

func (l *Lexer) skipWhitespace() {
	for !l.atEOF() {
		switch l.peek(0) {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.advance()
		default:
			return
		}
	}
}

// readComment consumes a // or /* */ comment. Block comments do not nest:
// the first */ closes them.
func (l *Lexer) readComment() (Token, error) {
	start, line := l.pos, l.line
	if l.peek(1) == '/' {
		for !l.atEOF() && l.peek(0) != '\n' {
			l.advance()
		}
		return Token{Type: TokenComment, Literal: l.input[start:l.pos], Line: line}, nil
	}
	l.advance() // consume /
	l.advance() // consume *
	for {
		if l.atEOF() {
			return Token{}, &Error{Kind: UnterminatedComment, Line: l.line}
		}
		if l.peek(0) == '*' && l.peek(1) == '/' {
			l.advance()
			l.advance()
			return Token{Type: TokenComment, Literal: l.input[start:l.pos], Line: line}, nil
		}
		l.advance()
	}
}

func (l *Lexer) readWhile(pred func(byte) bool) string {
	start := l.pos
	for !l.atEOF() && pred(l.peek(0)) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readString() (string, error) {
	l.advance() // consume opening quote
	var buf []byte
	for {
		if l.atEOF() {
			return "", &Error{Kind: UnterminatedString, Line: l.line}
		}
		ch := l.peek(0)
		if ch == '"' {
			l.advance()
			return string(buf), nil
		}
		if ch == '\\' {
			l.advance()
			if l.atEOF() {
				return "", &Error{Kind: UnterminatedString, Line: l.line}
			}
			buf = append(buf, unescape(l.peek(0)))
			l.advance()
			continue
		}
		buf = append(buf, ch)
		l.advance()
	}
}

// unescape maps the character after a backslash to its value. Unknown
// escapes yield the character itself.
func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return ch
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
