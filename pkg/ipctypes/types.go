package ipctypes

import (
	"errors"
	"fmt"
	"sort"
)

// SizeKind classifies the size of a resolved type.
type SizeKind int

const (
	SizeFixed SizeKind = iota
	SizeVariable
	SizeIndefinite
)

// Size is Fixed(Bytes), Variable{Max} or Indefinite.
type Size struct {
	Kind  SizeKind
	Bytes uint32 // SizeFixed
	Max   uint32 // SizeVariable, in elements
}

// Fixed returns a fixed size of n bytes.
func Fixed(n uint32) Size { return Size{Kind: SizeFixed, Bytes: n} }

// Variable returns a variable size bounded by max elements.
func Variable(max uint32) Size { return Size{Kind: SizeVariable, Max: max} }

// Indefinite is an unbounded size.
var Indefinite = Size{Kind: SizeIndefinite}

func (s Size) String() string {
	switch s.Kind {
	case SizeFixed:
		return fmt.Sprintf("fixed(%d)", s.Bytes)
	case SizeVariable:
		return fmt.Sprintf("variable(max %d)", s.Max)
	}
	return "indefinite"
}

func (s Size) MarshalYAML() (interface{}, error) { return s.String(), nil }

// ArrayKind records how an array type was bounded.
type ArrayKind int

const (
	NotArray       ArrayKind = iota
	FixedArray               // array[N]
	BoundedArray             // array[*:N]
	UnboundedArray           // array[], array[*], ^T
)

func (k ArrayKind) String() string {
	switch k {
	case FixedArray:
		return "fixed"
	case BoundedArray:
		return "bounded"
	case UnboundedArray:
		return "unbounded"
	}
	return "none"
}

func (k ArrayKind) MarshalYAML() (interface{}, error) { return k.String(), nil }

// StructField is one member of a declared struct type.
type StructField struct {
	Name   string        `yaml:"name"`
	Type   *ResolvedType `yaml:"-"`
	Offset uint32        `yaml:"offset"`
}

// ResolvedType is a fully resolved named type. Values are never mutated
// once they are stored in a Table.
type ResolvedType struct {
	Name    string  `yaml:"name"`
	MsgType MsgType `yaml:"msg_type"`
	// CType and GoType spell the element type for arrays and the value
	// type otherwise.
	CType  string `yaml:"c_type"`
	GoType string `yaml:"go_type"`
	// Bits and Number are msgt_size and msgt_number for one element.
	Bits          uint32 `yaml:"bits"`
	Number        uint32 `yaml:"number"`
	Size          Size   `yaml:"size"`
	IsArray       bool   `yaml:"is_array"`
	IsPolymorphic bool   `yaml:"is_polymorphic,omitempty"`
	// Descriptor is the explicit policy for scalar uses: ports and
	// polymorphic values are described on the wire, plain data is not.
	// Arrays, strings and structs are always described.
	Descriptor  bool          `yaml:"descriptor"`
	Array       ArrayKind     `yaml:"array,omitempty"`
	MaxElements uint32        `yaml:"max_elements,omitempty"`
	OutOfLine   bool          `yaml:"out_of_line,omitempty"`
	IsString    bool          `yaml:"is_string,omitempty"`
	IsStruct    bool          `yaml:"is_struct,omitempty"`
	Fields      []StructField `yaml:"fields,omitempty"`
	Elem        *ResolvedType `yaml:"-"`
	Builtin     bool          `yaml:"-"`
}

// IsPort reports whether values of the type carry a port.
func (rt *ResolvedType) IsPort() bool { return rt.MsgType.IsPort() }

// ElemBytes is the byte size of one element.
func (rt *ResolvedType) ElemBytes() uint32 { return rt.Bits / 8 * rt.Number }

// Bounded reports whether the array has a compile-time maximum.
func (rt *ResolvedType) Bounded() bool {
	return rt.Array == FixedArray || rt.Array == BoundedArray
}

// InlineBytes is the number of inline body bytes a value occupies, before
// padding. Out-of-line arrays occupy none.
func (rt *ResolvedType) InlineBytes() uint32 {
	switch {
	case rt.OutOfLine:
		return 0
	case rt.IsArray:
		return rt.ElemBytes() * rt.MaxElements
	case rt.IsString:
		return rt.Number
	}
	return rt.ElemBytes()
}

// DescriptorNumber is the msgt_number of a fixed-capacity use.
func (rt *ResolvedType) DescriptorNumber() uint32 {
	if rt.IsArray {
		return rt.Number * rt.MaxElements
	}
	return rt.Number
}

// NeedsLongForm reports whether a short mach_msg_type_t cannot hold the
// descriptor for this type.
func (rt *ResolvedType) NeedsLongForm() bool {
	if rt.Bits > MaxShortSize || rt.MsgType > 0xff && rt.MsgType != TypePolymorphic {
		return true
	}
	// the element count of an unbounded array is only known at run time
	if rt.IsArray && rt.Array == UnboundedArray {
		return true
	}
	return rt.DescriptorNumber() > MaxShortNumber
}

// ErrFrozen is returned when defining into a shared table.
var ErrFrozen = errors.New("type table is read-only")

// Table maps type names to resolved types.
type Table struct {
	types  map[string]*ResolvedType
	frozen bool
}

// Lookup finds a type by name.
func (t *Table) Lookup(name string) (*ResolvedType, bool) {
	rt, ok := t.types[name]
	return rt, ok
}

// Define adds or replaces a named type. Builtin names may be redefined,
// as the standard definition files do.
func (t *Table) Define(rt *ResolvedType) error {
	if t.frozen {
		return ErrFrozen
	}
	t.types[rt.Name] = rt
	return nil
}

// Clone returns a writable copy. Entries are shared since they are
// immutable.
func (t *Table) Clone() *Table {
	c := &Table{types: make(map[string]*ResolvedType, len(t.types))}
	for k, v := range t.types {
		c.types[k] = v
	}
	return c
}

// Names returns every type name in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.types) }
