package parser

import "fmt"

// ErrorKind classifies parse failures.
type ErrorKind int

const (
	UnexpectedEOF ErrorKind = iota
	UnexpectedToken
	InvalidSubsystem
	InvalidRoutine
	InvalidTypeSpec
	DuplicateDefinition
)

func (k ErrorKind) String() string {
	switch k {
	case UnexpectedEOF:
		return "unexpected end of input"
	case UnexpectedToken:
		return "unexpected token"
	case InvalidSubsystem:
		return "invalid subsystem declaration"
	case InvalidRoutine:
		return "invalid routine declaration"
	case InvalidTypeSpec:
		return "invalid type specification"
	case DuplicateDefinition:
		return "duplicate definition"
	}
	return "parse error"
}

// Error is returned by Parse. The parser stops at the first error.
type Error struct {
	Kind     ErrorKind
	Expected string // what the grammar wanted, if known
	Found    string // offending token text
	Name     string // routine, type or argument concerned
	Line     int
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Kind == DuplicateDefinition:
		msg = fmt.Sprintf("%s of %q", msg, e.Name)
	case e.Expected != "" && e.Found != "":
		msg = fmt.Sprintf("%s: expected %s, got %s", msg, e.Expected, e.Found)
	case e.Found != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Found)
	case e.Expected != "":
		msg = fmt.Sprintf("%s: expected %s", msg, e.Expected)
	}
	if e.Name != "" && e.Kind != DuplicateDefinition {
		msg = fmt.Sprintf("%s (in %s)", msg, e.Name)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}
