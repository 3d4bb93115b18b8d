package sema

import "fmt"

// ErrorKind classifies semantic errors.
type ErrorKind int

const (
	UndefinedType ErrorKind = iota
	TypeMismatch
	InvalidArrayBounds
	MessageTooLarge
	DuplicateRoutineNumber
	InvalidPortDisposition
)

func (k ErrorKind) String() string {
	switch k {
	case UndefinedType:
		return "undefined type"
	case TypeMismatch:
		return "type mismatch"
	case InvalidArrayBounds:
		return "invalid array bounds"
	case MessageTooLarge:
		return "message too large"
	case DuplicateRoutineNumber:
		return "duplicate routine number"
	case InvalidPortDisposition:
		return "invalid port disposition"
	}
	return "semantic error"
}

// Error is returned by Analyze. Analysis stops at the first error.
type Error struct {
	Kind     ErrorKind
	Routine  string // routine concerned, if any
	Argument string // argument or declared type concerned, if any
	Type     string // offending type name
	Size     uint32 // MessageTooLarge: computed size
	Max      uint32 // MessageTooLarge: configured limit
	Number   uint32 // DuplicateRoutineNumber
	Detail   string
	Line     int
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch e.Kind {
	case UndefinedType:
		msg = fmt.Sprintf("%s %q", msg, e.Type)
	case MessageTooLarge:
		msg = fmt.Sprintf("%s: %d bytes exceeds maximum of %d", msg, e.Size, e.Max)
	case DuplicateRoutineNumber:
		msg = fmt.Sprintf("%s %d", msg, e.Number)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	switch {
	case e.Routine != "" && e.Argument != "":
		msg = fmt.Sprintf("%s (routine %s, argument %s)", msg, e.Routine, e.Argument)
	case e.Routine != "":
		msg = fmt.Sprintf("%s (routine %s)", msg, e.Routine)
	case e.Argument != "":
		msg = fmt.Sprintf("%s (type %s)", msg, e.Argument)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}
