// Package preproc loads a definition file and resolves its conditional
// directives, producing the token stream the parser consumes.
package preproc

import (
	"fmt"
	"os"
	"strings"

	"github.com/raymyers/ralph-mig/pkg/cpp"
	"github.com/raymyers/ralph-mig/pkg/lexer"
)

// Options configures the preprocessing step
type Options struct {
	Defines   []string // -D symbols (NAME or NAME=VALUE)
	Undefines []string // -U symbols
}

// Symbols builds a fresh symbol table from the command line definitions.
// Every pipeline gets its own table.
func (o *Options) Symbols() (*cpp.SymbolTable, error) {
	st := cpp.NewSymbolTable()
	if o == nil {
		return st, nil
	}
	if err := st.ApplyCmdline(o.Defines, o.Undefines); err != nil {
		return nil, err
	}
	return st, nil
}

// Preprocess reads filename, tokenizes it and drops the tokens in
// inactive conditional regions. Directives that are accepted but suspect
// come back as warnings.
func Preprocess(filename string, opts *Options) ([]lexer.Token, []cpp.Warning, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, err
	}
	return PreprocessString(string(content), opts)
}

// PreprocessString is Preprocess on source held in memory.
func PreprocessString(source string, opts *Options) ([]lexer.Token, []cpp.Warning, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, nil, err
	}
	st, err := opts.Symbols()
	if err != nil {
		return nil, nil, err
	}
	return cpp.FilterWarn(toks, st)
}

// Format renders tokens back to source text, one logical line per input
// line, for the -E dump.
func Format(toks []lexer.Token) string {
	var b strings.Builder
	line := 0
	for _, t := range toks {
		if t.Type == lexer.TokenEOF {
			break
		}
		if line != 0 && t.Line != line {
			b.WriteByte('\n')
		} else if line != 0 {
			b.WriteByte(' ')
		}
		line = t.Line
		b.WriteString(tokenText(t))
	}
	if line != 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func tokenText(t lexer.Token) string {
	if t.Type == lexer.TokenString {
		return fmt.Sprintf("%q", t.Literal)
	}
	return t.Literal
}
