// conditional.go implements conditional compilation (#if, #ifdef, etc.)
package cpp

import (
	"fmt"
	"strings"
)

// BlockState is the state of one #if level.
type BlockState int

const (
	// Active means tokens at this level are emitted.
	Active BlockState = iota
	// Inactive means no branch has been taken yet.
	Inactive
	// WasActive means an earlier branch was taken; later branches are dead.
	WasActive
)

func (s BlockState) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case WasActive:
		return "was-active"
	}
	return "?"
}

// ErrorKind classifies preprocessing errors.
type ErrorKind int

const (
	UnbalancedElse ErrorKind = iota
	UnbalancedEndif
	UnclosedBlock
	MalformedExpression
)

func (k ErrorKind) String() string {
	switch k {
	case UnbalancedElse:
		return "unbalanced #else"
	case UnbalancedEndif:
		return "unbalanced #endif"
	case UnclosedBlock:
		return "unclosed conditional block"
	case MalformedExpression:
		return "malformed expression"
	}
	return "preprocessor error"
}

// Error is returned by Filter and the ConditionalProcessor.
type Error struct {
	Kind   ErrorKind
	Count  int    // open blocks for UnclosedBlock
	Line   int    // line of the offending directive, 0 if unknown
	Detail string // directive text or parse failure
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case UnbalancedElse:
		msg = "#else without matching #if"
	case UnbalancedEndif:
		msg = "#endif without matching #if"
	case UnclosedBlock:
		msg = fmt.Sprintf("unterminated conditional directive, %d level(s) unclosed", e.Count)
	default:
		msg = e.Kind.String()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

// Warning flags a directive that is accepted but probably a mistake.
type Warning struct {
	Line int
	Msg  string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Msg)
	}
	return w.Msg
}

// ConditionalProcessor handles conditional compilation directives.
type ConditionalProcessor struct {
	symbols  *SymbolTable
	stack    []BlockState // stack of nested conditions
	elses    []int        // #else count per level
	warnings []Warning
}

// NewConditionalProcessor creates a new conditional processor.
func NewConditionalProcessor(symbols *SymbolTable) *ConditionalProcessor {
	if symbols == nil {
		symbols = NewSymbolTable()
	}
	return &ConditionalProcessor{symbols: symbols}
}

// IsActive returns true if the current location is active (should be included).
func (cp *ConditionalProcessor) IsActive() bool {
	return allActive(cp.stack)
}

// parentActive reports whether every level below the top is active.
func (cp *ConditionalProcessor) parentActive() bool {
	return allActive(cp.stack[:len(cp.stack)-1])
}

func allActive(stack []BlockState) bool {
	for _, state := range stack {
		if state != Active {
			return false
		}
	}
	return true
}

// Warnings returns the warnings recorded so far.
func (cp *ConditionalProcessor) Warnings() []Warning {
	return cp.warnings
}

// Depth returns the nesting depth of conditionals.
func (cp *ConditionalProcessor) Depth() int {
	return len(cp.stack)
}

// Top returns the state of the innermost block.
func (cp *ConditionalProcessor) Top() (BlockState, bool) {
	if len(cp.stack) == 0 {
		return Active, false
	}
	return cp.stack[len(cp.stack)-1], true
}

// push opens a new level. Under an inactive parent the level is forced
// inactive whatever the expression says.
func (cp *ConditionalProcessor) push(expr Expr) {
	cp.elses = append(cp.elses, 0)
	if cp.IsActive() && expr.Eval(cp.symbols) {
		cp.stack = append(cp.stack, Active)
		return
	}
	cp.stack = append(cp.stack, Inactive)
}

// ProcessIf handles #if directive.
func (cp *ConditionalProcessor) ProcessIf(text string) error {
	expr, err := ParseExpr(text)
	if err != nil {
		return &Error{Kind: MalformedExpression, Detail: "#if " + text + ": " + err.Error()}
	}
	cp.push(expr)
	return nil
}

// ProcessIfdef handles #ifdef directive.
func (cp *ConditionalProcessor) ProcessIfdef(name string) error {
	if !isIdent(name) {
		return &Error{Kind: MalformedExpression, Detail: "#ifdef requires an identifier"}
	}
	cp.push(Defined{Name: name})
	return nil
}

// ProcessIfndef handles #ifndef directive.
func (cp *ConditionalProcessor) ProcessIfndef(name string) error {
	if !isIdent(name) {
		return &Error{Kind: MalformedExpression, Detail: "#ifndef requires an identifier"}
	}
	cp.push(Not{X: Defined{Name: name}})
	return nil
}

// ProcessElif handles #elif directive.
func (cp *ConditionalProcessor) ProcessElif(text string) error {
	if len(cp.stack) == 0 {
		return &Error{Kind: UnbalancedElse, Detail: "#elif"}
	}
	expr, err := ParseExpr(text)
	if err != nil {
		return &Error{Kind: MalformedExpression, Detail: "#elif " + text + ": " + err.Error()}
	}
	top := &cp.stack[len(cp.stack)-1]
	switch *top {
	case Active:
		*top = WasActive
	case Inactive:
		if cp.parentActive() && expr.Eval(cp.symbols) {
			*top = Active
		}
	}
	return nil
}

// ProcessElse handles #else directive. A second #else in the same block
// is accepted with a warning: it flips an Active level to WasActive and
// leaves WasActive alone.
func (cp *ConditionalProcessor) ProcessElse() error {
	if len(cp.stack) == 0 {
		return &Error{Kind: UnbalancedElse}
	}
	n := len(cp.elses) - 1
	cp.elses[n]++
	if cp.elses[n] > 1 {
		cp.warnings = append(cp.warnings, Warning{Msg: "#else after #else in the same conditional"})
	}
	top := &cp.stack[len(cp.stack)-1]
	switch *top {
	case Active:
		*top = WasActive
	case Inactive:
		if cp.parentActive() {
			*top = Active
		}
	}
	return nil
}

// ProcessEndif handles #endif directive.
func (cp *ConditionalProcessor) ProcessEndif() error {
	if len(cp.stack) == 0 {
		return &Error{Kind: UnbalancedEndif}
	}
	cp.stack = cp.stack[:len(cp.stack)-1]
	cp.elses = cp.elses[:len(cp.elses)-1]
	return nil
}

// CheckBalanced returns an error if there are unclosed conditionals.
func (cp *ConditionalProcessor) CheckBalanced() error {
	if len(cp.stack) > 0 {
		return &Error{Kind: UnclosedBlock, Count: len(cp.stack)}
	}
	return nil
}

// ProcessDirective dispatches one raw directive line such as
// "#ifdef KERNEL_USER". Directives other than the conditional ones are
// ignored.
func (cp *ConditionalProcessor) ProcessDirective(line string) error {
	name, rest := splitDirective(line)
	switch name {
	case "if":
		return cp.ProcessIf(rest)
	case "ifdef":
		return cp.ProcessIfdef(rest)
	case "ifndef":
		return cp.ProcessIfndef(rest)
	case "elif":
		return cp.ProcessElif(rest)
	case "else":
		return cp.ProcessElse()
	case "endif":
		return cp.ProcessEndif()
	}
	return nil
}

// splitDirective strips the leading '#' and any comments, and splits the
// directive name from its argument text.
func splitDirective(line string) (string, string) {
	text := stripComments(strings.TrimPrefix(strings.TrimSpace(line), "#"))
	text = strings.TrimSpace(text)
	i := 0
	for i < len(text) && text[i] != ' ' && text[i] != '\t' && text[i] != '(' && text[i] != '!' {
		i++
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// stripComments removes /* */ spans and a trailing // comment.
func stripComments(s string) string {
	for {
		start := strings.Index(s, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(s[start+2:], "*/")
		if end < 0 {
			s = s[:start]
			break
		}
		s = s[:start] + " " + s[start+2+end+2:]
	}
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	return s
}
