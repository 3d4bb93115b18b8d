// Package cabs models the C declarations the stub generator emits: struct
// typedefs, function prototypes and static initializers.
package cabs

import "strings"

// Param is one function parameter. A Type ending in '*' is printed
// without a space before the name.
type Param struct {
	Type string
	Name string
}

func (p Param) String() string {
	if strings.HasSuffix(p.Type, "*") {
		return p.Type + p.Name
	}
	return p.Type + " " + p.Name
}

// Field is a struct member. Dim > 0 declares a fixed array.
type Field struct {
	Type string
	Name string
	Dim  uint32
}

// StructDef prints as typedef struct { ... } Name;
type StructDef struct {
	Name   string
	Fields []Field
}

// FunDecl is a function prototype, or the head of a definition.
type FunDecl struct {
	Storage    string // mig_external, mig_internal or empty
	ReturnType string
	Name       string
	Params     []Param
}

// InitItem is one member of a brace initializer. A non-nil Group nests a
// brace group instead of a value.
type InitItem struct {
	Label string
	Value string
	Group []InitItem
}

// VarDef declares a variable with an optional brace initializer.
type VarDef struct {
	Storage string
	Type    string
	Name    string
	Init    []InitItem
}
