// filter.go drops tokens that sit in inactive conditional regions.
package cpp

import (
	"errors"

	"github.com/raymyers/ralph-mig/pkg/lexer"
)

// Filter resolves the conditional directives in tokens against symbols.
// Directive tokens are removed; every other token is kept iff every
// enclosing block is active. The trailing EOF token is always kept.
func Filter(tokens []lexer.Token, symbols *SymbolTable) ([]lexer.Token, error) {
	out, _, err := FilterWarn(tokens, symbols)
	return out, err
}

// FilterWarn is Filter that also returns the warnings raised by
// directives it accepted.
func FilterWarn(tokens []lexer.Token, symbols *SymbolTable) ([]lexer.Token, []Warning, error) {
	cp := NewConditionalProcessor(symbols)
	out := make([]lexer.Token, 0, len(tokens))

	for _, tok := range tokens {
		switch tok.Type {
		case lexer.TokenPreprocessor:
			seen := len(cp.warnings)
			if err := cp.ProcessDirective(tok.Literal); err != nil {
				return nil, nil, withLine(err, tok.Line)
			}
			for i := seen; i < len(cp.warnings); i++ {
				cp.warnings[i].Line = tok.Line
			}
		case lexer.TokenEOF:
			out = append(out, tok)
		default:
			if cp.IsActive() {
				out = append(out, tok)
			}
		}
	}

	if err := cp.CheckBalanced(); err != nil {
		return nil, nil, err
	}
	return out, cp.Warnings(), nil
}

func withLine(err error, line int) error {
	var ppErr *Error
	if errors.As(err, &ppErr) && ppErr.Line == 0 {
		ppErr.Line = line
	}
	return err
}
