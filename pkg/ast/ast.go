// Package ast defines the abstract syntax tree for subsystem definition
// (.defs) files.
package ast

import "strings"

// Node is the base interface for all AST nodes
type Node interface {
	implNode()
}

// Statement is the interface for top-level statements following the
// subsystem header.
type Statement interface {
	Node
	implStatement()
}

// TypeSpec is the interface for type specifications. Nested specs are
// owned by their parent.
type TypeSpec interface {
	Node
	implTypeSpec()
}

// Modifier qualifies a subsystem.
type Modifier int

const (
	KernelUser Modifier = iota
	KernelServer
)

func (m Modifier) String() string {
	switch m {
	case KernelUser:
		return "KernelUser"
	case KernelServer:
		return "KernelServer"
	}
	return "?"
}

// Subsystem is the root of a parsed .defs file.
type Subsystem struct {
	Name       string
	Base       uint32
	Modifiers  []Modifier
	Statements []Statement
	Line       int
}

// HasModifier reports whether m was given in the subsystem header.
func (s *Subsystem) HasModifier(m Modifier) bool {
	for _, mod := range s.Modifiers {
		if mod == m {
			return true
		}
	}
	return false
}

// Routines returns the routine and simpleroutine statements in
// declaration order.
func (s *Subsystem) Routines() []Routine {
	var out []Routine
	for _, stmt := range s.Statements {
		if r, ok := stmt.(Routine); ok {
			out = append(out, r)
		}
	}
	return out
}

// TypeDecl is `type NAME = TYPESPEC;`.
type TypeDecl struct {
	Name string
	Type TypeSpec
	Line int
}

// RoutineKind distinguishes routines that expect a reply.
type RoutineKind int

const (
	KindRoutine RoutineKind = iota
	KindSimpleRoutine
)

func (k RoutineKind) String() string {
	if k == KindSimpleRoutine {
		return "simpleroutine"
	}
	return "routine"
}

// Routine is a routine or simpleroutine declaration.
type Routine struct {
	Name string
	Kind RoutineKind
	Args []Argument
	Line int
}

// IsSimple reports whether the routine is fire-and-forget.
func (r Routine) IsSimple() bool { return r.Kind == KindSimpleRoutine }

// ImportKind selects which generated side receives an import.
type ImportKind int

const (
	ImportBoth ImportKind = iota
	ImportUser
	ImportServer
)

func (k ImportKind) String() string {
	switch k {
	case ImportUser:
		return "uimport"
	case ImportServer:
		return "simport"
	}
	return "import"
}

// Import is `import "file";` or `import <file>;` and its u/s variants.
type Import struct {
	Kind   ImportKind
	File   string
	System bool // written with angle brackets
	Line   int
}

// Skip reserves a message number without declaring a routine.
type Skip struct {
	Line int
}

// PrefixKind selects the function-name prefix a PrefixDecl sets.
type PrefixKind int

const (
	ServerPrefix PrefixKind = iota
	UserPrefix
)

func (k PrefixKind) String() string {
	if k == UserPrefix {
		return "userprefix"
	}
	return "serverprefix"
}

// PrefixDecl is `serverprefix NAME;` or `userprefix NAME;`.
type PrefixDecl struct {
	Kind   PrefixKind
	Prefix string
	Line   int
}

// DemuxDecl is `serverdemux NAME;`.
type DemuxDecl struct {
	Name string
	Line int
}

func (TypeDecl) implNode()   {}
func (Routine) implNode()    {}
func (Import) implNode()     {}
func (Skip) implNode()       {}
func (PrefixDecl) implNode() {}
func (DemuxDecl) implNode()  {}

func (TypeDecl) implStatement()   {}
func (Routine) implStatement()    {}
func (Import) implStatement()     {}
func (Skip) implStatement()       {}
func (PrefixDecl) implStatement() {}
func (DemuxDecl) implStatement()  {}

// Direction classifies a routine argument.
type Direction int

const (
	In Direction = iota
	Out
	InOut
	RequestPort
	ReplyPort
	SReplyPort
	UReplyPort
	WaitTime
	MsgOption
	MsgSeqno
)

var directionNames = []string{
	"in", "out", "inout", "requestport", "replyport",
	"sreplyport", "ureplyport", "waittime", "msgoption", "msgseqno",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "?"
}

// ParseDirection maps a direction keyword (any case) to its Direction.
func ParseDirection(s string) (Direction, bool) {
	s = strings.ToLower(s)
	for i, name := range directionNames {
		if name == s {
			return Direction(i), true
		}
	}
	return 0, false
}

// IsPortRole reports whether the argument names a header port rather
// than a body field.
func (d Direction) IsPortRole() bool {
	switch d {
	case RequestPort, ReplyPort, SReplyPort, UReplyPort:
		return true
	}
	return false
}

// IsHeaderRole reports whether the argument is carried outside the
// message body (header ports and send/receive options).
func (d Direction) IsHeaderRole() bool {
	return d.IsPortRole() || d == WaitTime || d == MsgOption || d == MsgSeqno
}

// InRequest reports whether a body argument travels in the request.
func (d Direction) InRequest() bool { return d == In || d == InOut }

// InReply reports whether a body argument travels in the reply.
func (d Direction) InReply() bool { return d == Out || d == InOut }

// LongMode records islong/isnotlong.
type LongMode int

const (
	LongDefault LongMode = iota
	LongForced
	LongForbidden
)

// DeallocMode records dealloc/notdealloc.
type DeallocMode int

const (
	DeallocDefault DeallocMode = iota
	Dealloc
	NotDealloc
)

// IpcFlags are the comma-separated flags following an argument type.
type IpcFlags struct {
	Long       LongMode
	Dealloc    DeallocMode
	ServerCopy bool
	CountInOut bool
}

// IsZero reports whether no flag was given.
func (f IpcFlags) IsZero() bool { return f == IpcFlags{} }

// Argument is one routine parameter.
type Argument struct {
	Name      string
	Direction Direction
	Type      TypeSpec
	Flags     IpcFlags
	Line      int
}

// SizeKind classifies an array bound.
type SizeKind int

const (
	SizeFixed       SizeKind = iota // [N]
	SizeVariable                    // [] or [*]
	SizeVariableMax                 // [*:N]
)

// ArraySize is the bound written between brackets.
type ArraySize struct {
	Kind SizeKind
	N    uint32
}

// BasicType names another type.
type BasicType struct {
	Name string
}

// ArrayType is `array[size] of Elem`.
type ArrayType struct {
	Size ArraySize
	Elem TypeSpec
}

// PointerType is `^Elem`, an out-of-line unbounded array.
type PointerType struct {
	Elem TypeSpec
}

// Field is one member of an inline struct.
type Field struct {
	Name string
	Type TypeSpec
}

// StructType is `struct { name : T; ... }`.
type StructType struct {
	Fields []Field
}

// StructArrayType is `struct[Count] of Elem`.
type StructArrayType struct {
	Count uint32
	Elem  TypeSpec
}

// CStringType is `c_string[N]` or `c_string[*:N]`.
type CStringType struct {
	Max     uint32
	Varying bool
}

func (BasicType) implNode()       {}
func (ArrayType) implNode()       {}
func (PointerType) implNode()     {}
func (StructType) implNode()      {}
func (StructArrayType) implNode() {}
func (CStringType) implNode()     {}

func (BasicType) implTypeSpec()       {}
func (ArrayType) implTypeSpec()       {}
func (PointerType) implTypeSpec()     {}
func (StructType) implTypeSpec()      {}
func (StructArrayType) implTypeSpec() {}
func (CStringType) implTypeSpec()     {}
