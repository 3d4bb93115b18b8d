package lexer

import (
	"errors"
	"testing"
)

func TestNextToken(t *testing.T) {
	input := `subsystem test 1000;
routine add(in x:int32_t; out sum:int32_t);`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenSubsystem, "subsystem"},
		{TokenIdent, "test"},
		{TokenNumber, "1000"},
		{TokenSemicolon, ";"},
		{TokenRoutine, "routine"},
		{TokenIdent, "add"},
		{TokenLParen, "("},
		{TokenIn, "in"},
		{TokenIdent, "x"},
		{TokenColon, ":"},
		{TokenIdent, "int32_t"},
		{TokenSemicolon, ";"},
		{TokenOut, "out"},
		{TokenIdent, "sum"},
		{TokenColon, ":"},
		{TokenIdent, "int32_t"},
		{TokenRParen, ")"},
		{TokenSemicolon, ";"},
		{TokenEOF, ""},
	}

	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if len(toks) != len(tests) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(tests))
	}

	for i, tt := range tests {
		tok := toks[i]
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
	if toks[2].Value != 1000 {
		t.Errorf("number value = %d, want 1000", toks[2].Value)
	}
	if toks[4].Line != 2 {
		t.Errorf("routine line = %d, want 2", toks[4].Line)
	}
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	for _, word := range []string{"Routine", "ROUTINE", "routine", "rOuTiNe"} {
		if got := LookupIdent(word); got != TokenRoutine {
			t.Errorf("LookupIdent(%q) = %s, want routine", word, got)
		}
	}
	if got := LookupIdent("mach_port_t"); got != TokenIdent {
		t.Errorf("LookupIdent(mach_port_t) = %s, want IDENT", got)
	}
	if got := LookupIdent("C_String"); got != TokenCString {
		t.Errorf("LookupIdent(C_String) = %s, want c_string", got)
	}
}

func TestSymbols(t *testing.T) {
	input := `: ; , ( ) [ ] { } = * ^ ~ + - / | & < > .`
	want := []TokenType{
		TokenColon, TokenSemicolon, TokenComma, TokenLParen, TokenRParen,
		TokenLBracket, TokenRBracket, TokenLBrace, TokenRBrace, TokenAssign,
		TokenStar, TokenCaret, TokenTilde, TokenPlus, TokenMinus, TokenSlash,
		TokenPipe, TokenAmpersand, TokenLt, TokenGt, TokenDot, TokenEOF,
	}

	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("tests[%d] - got %s, want %s", i, toks[i].Type, tt)
		}
	}
}

func TestComments(t *testing.T) {
	input := `routine // comment
a /* block
comment */ ( /* a /* b */ )`

	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	want := []TokenType{TokenRoutine, TokenIdent, TokenLParen, TokenRParen, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens (%v), want %d", len(toks), toks, len(want))
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("tests[%d] - got %s, want %s", i, toks[i].Type, tt)
		}
	}
	if toks[3].Line != 3 {
		t.Errorf("line after block comment = %d, want 3", toks[3].Line)
	}
}

func TestKeepComments(t *testing.T) {
	toks, err := New("// hi\nskip;", Options{KeepComments: true}).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if toks[0].Type != TokenComment || toks[0].Literal != "// hi" {
		t.Errorf("first token = %v %q, want comment", toks[0].Type, toks[0].Literal)
	}
}

func TestPreprocessorLine(t *testing.T) {
	input := "#ifdef KERNEL_USER\nroutine a();\n#endif"
	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if toks[0].Type != TokenPreprocessor || toks[0].Literal != "#ifdef KERNEL_USER" {
		t.Errorf("first token = %v %q", toks[0].Type, toks[0].Literal)
	}
	last := toks[len(toks)-2]
	if last.Type != TokenPreprocessor || last.Literal != "#endif" || last.Line != 3 {
		t.Errorf("last directive = %v %q line %d", last.Type, last.Literal, last.Line)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"plain"`, "plain"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"q\"q"`, `q"q`},
		{`"s\'s"`, "s's"},
		{`"back\\slash"`, `back\slash`},
		{`"\q"`, "q"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize error: %v", err)
			}
			if toks[0].Type != TokenString || toks[0].Literal != tt.want {
				t.Errorf("got %v %q, want STRING %q", toks[0].Type, toks[0].Literal, tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ErrorKind
		line  int
		char  rune
	}{
		{"unterminated string", "type x = \"abc", UnterminatedString, 1, 0},
		{"unterminated comment", "skip;\n/* never\nends", UnterminatedComment, 3, 0},
		{"unexpected character", "skip;\n\nroutine @", UnexpectedCharacter, 3, '@'},
		{"unexpected unicode", "routine é", UnexpectedCharacter, 1, 'é'},
		{"number too large", "subsystem x 99999999999;", NumberOutOfRange, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var lexErr *Error
			if !errors.As(err, &lexErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if lexErr.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", lexErr.Kind, tt.kind)
			}
			if lexErr.Line != tt.line {
				t.Errorf("line = %d, want %d", lexErr.Line, tt.line)
			}
			if tt.char != 0 && lexErr.Char != tt.char {
				t.Errorf("char = %q, want %q", lexErr.Char, tt.char)
			}
		})
	}
}
