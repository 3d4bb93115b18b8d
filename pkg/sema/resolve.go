package sema

import (
	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
)

// resolver turns type specifications into resolved types against one
// file's table.
type resolver struct {
	table *ipctypes.Table
}

// declare resolves a type declaration and stores it under its name.
func (r *resolver) declare(decl ast.TypeDecl) (*ipctypes.ResolvedType, error) {
	rt, err := r.resolve(decl.Type, decl.Name)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Line == 0 {
			e.Line = decl.Line
		}
		return nil, err
	}
	if err := r.table.Define(rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// resolve resolves ts. name is the declared name, or "" for a type
// written inline in an argument.
func (r *resolver) resolve(ts ast.TypeSpec, name string) (*ipctypes.ResolvedType, error) {
	switch t := ts.(type) {
	case ast.BasicType:
		return r.resolveBasic(t, name)
	case ast.ArrayType:
		return r.resolveArray(t, name)
	case ast.PointerType:
		return r.resolvePointer(t, name)
	case ast.StructType:
		return r.resolveStruct(t, name)
	case ast.StructArrayType:
		return r.resolveStructArray(t, name)
	case ast.CStringType:
		return r.resolveCString(t, name)
	}
	return nil, &Error{Kind: TypeMismatch, Argument: name, Detail: "unknown type form " + ast.TypeString(ts)}
}

func (r *resolver) resolveBasic(t ast.BasicType, name string) (*ipctypes.ResolvedType, error) {
	base, ok := r.table.Lookup(t.Name)
	if !ok {
		return nil, &Error{Kind: UndefinedType, Type: t.Name, Argument: name}
	}
	if name == "" {
		return base, nil
	}
	alias := *base
	alias.Name = name
	alias.Builtin = false
	if alias.CType == "" {
		// a raw MACH_MSG_TYPE_* tag takes the C spelling of its alias
		alias.CType = name
	}
	return &alias, nil
}

// checkElem accepts scalars, ports and struct types as array elements.
func checkElem(elem *ipctypes.ResolvedType, name string) error {
	if elem.IsArray || elem.IsString {
		return &Error{Kind: TypeMismatch, Argument: name, Type: elem.Name,
			Detail: "array elements must be scalar or struct types"}
	}
	return nil
}

func nameOr(name string, ts ast.TypeSpec) string {
	if name != "" {
		return name
	}
	return ast.TypeString(ts)
}

func (r *resolver) resolveArray(t ast.ArrayType, name string) (*ipctypes.ResolvedType, error) {
	elem, err := r.resolve(t.Elem, "")
	if err != nil {
		return nil, err
	}
	if err := checkElem(elem, name); err != nil {
		return nil, err
	}

	rt := arrayOf(elem, nameOr(name, t))
	switch t.Size.Kind {
	case ast.SizeFixed:
		if t.Size.N == 0 {
			return nil, &Error{Kind: InvalidArrayBounds, Argument: name, Detail: "array[0] holds nothing"}
		}
		rt.Array = ipctypes.FixedArray
		rt.MaxElements = t.Size.N
	case ast.SizeVariableMax:
		if t.Size.N == 0 {
			return nil, &Error{Kind: InvalidArrayBounds, Argument: name, Detail: "array[*:0] holds nothing"}
		}
		rt.Array = ipctypes.BoundedArray
		rt.MaxElements = t.Size.N
	default:
		rt.Array = ipctypes.UnboundedArray
		rt.OutOfLine = true
	}
	return rt, nil
}

func arrayOf(elem *ipctypes.ResolvedType, name string) *ipctypes.ResolvedType {
	return &ipctypes.ResolvedType{
		Name:          name,
		MsgType:       elem.MsgType,
		CType:         elem.CType,
		GoType:        elem.GoType,
		Bits:          elem.Bits,
		Number:        elem.Number,
		Size:          ipctypes.Indefinite,
		IsArray:       true,
		IsPolymorphic: elem.IsPolymorphic,
		Descriptor:    true,
		Elem:          elem,
	}
}

// resolvePointer makes ^T an out-of-line array. A pointer to an array
// keeps the array's element and bound.
func (r *resolver) resolvePointer(t ast.PointerType, name string) (*ipctypes.ResolvedType, error) {
	inner, err := r.resolve(t.Elem, "")
	if err != nil {
		return nil, err
	}
	if inner.IsString {
		return nil, &Error{Kind: TypeMismatch, Argument: name, Type: inner.Name,
			Detail: "strings cannot be sent out of line"}
	}
	if inner.IsArray {
		rt := *inner
		rt.Name = nameOr(name, t)
		rt.Builtin = false
		rt.OutOfLine = true
		if rt.Array == ipctypes.FixedArray {
			rt.Array = ipctypes.BoundedArray
		}
		return &rt, nil
	}
	rt := arrayOf(inner, nameOr(name, t))
	rt.Array = ipctypes.UnboundedArray
	rt.OutOfLine = true
	return rt, nil
}

// alignOf is the natural C alignment of a value of rt.
func alignOf(rt *ipctypes.ResolvedType) uint32 {
	switch {
	case rt.IsStruct:
		a := uint32(1)
		for _, f := range rt.Fields {
			if fa := alignOf(f.Type); fa > a {
				a = fa
			}
		}
		return a
	case rt.IsArray && rt.Elem != nil:
		return alignOf(rt.Elem)
	case rt.IsString:
		return 1
	}
	a := rt.Bits / 8
	if a > 8 {
		a = 8
	}
	if a == 0 {
		a = 1
	}
	return a
}

func alignUp(n, a uint32) uint32 {
	return (n + a - 1) / a * a
}

// structWire picks the descriptor encoding of a struct of size bytes.
func structWire(rt *ipctypes.ResolvedType, size uint32) {
	if size%4 == 0 {
		rt.MsgType, rt.Bits, rt.Number = ipctypes.TypeInteger32, 32, size/4
	} else {
		rt.MsgType, rt.Bits, rt.Number = ipctypes.TypeByte, 8, size
	}
}

func (r *resolver) resolveStruct(t ast.StructType, name string) (*ipctypes.ResolvedType, error) {
	if name == "" {
		return nil, &Error{Kind: TypeMismatch, Detail: "struct types must be named by a type declaration"}
	}
	rt := &ipctypes.ResolvedType{
		Name:       name,
		CType:      name,
		GoType:     name,
		IsStruct:   true,
		Descriptor: true,
	}
	var off, maxAlign uint32 = 0, 1
	for _, f := range t.Fields {
		ft, err := r.resolve(f.Type, "")
		if err != nil {
			return nil, err
		}
		if ft.IsArray && (ft.Array != ipctypes.FixedArray || ft.OutOfLine) {
			return nil, &Error{Kind: TypeMismatch, Argument: name, Type: ft.Name,
				Detail: "struct field " + f.Name + " must have a fixed size"}
		}
		if ft.IsPort() {
			return nil, &Error{Kind: TypeMismatch, Argument: name, Type: ft.Name,
				Detail: "struct field " + f.Name + " cannot carry a port"}
		}
		a := alignOf(ft)
		if a > maxAlign {
			maxAlign = a
		}
		off = alignUp(off, a)
		rt.Fields = append(rt.Fields, ipctypes.StructField{Name: f.Name, Type: ft, Offset: off})
		off += ft.InlineBytes()
	}
	size := alignUp(off, maxAlign)
	if size == 0 {
		return nil, &Error{Kind: InvalidArrayBounds, Argument: name, Detail: "empty struct"}
	}
	structWire(rt, size)
	rt.Size = ipctypes.Fixed(size)
	return rt, nil
}

func (r *resolver) resolveStructArray(t ast.StructArrayType, name string) (*ipctypes.ResolvedType, error) {
	if name == "" {
		return nil, &Error{Kind: TypeMismatch, Detail: "struct types must be named by a type declaration"}
	}
	if t.Count == 0 {
		return nil, &Error{Kind: InvalidArrayBounds, Argument: name, Detail: "struct[0] holds nothing"}
	}
	elem, err := r.resolve(t.Elem, "")
	if err != nil {
		return nil, err
	}
	if err := checkElem(elem, name); err != nil {
		return nil, err
	}
	if elem.IsPort() {
		return nil, &Error{Kind: TypeMismatch, Argument: name, Type: elem.Name,
			Detail: "struct elements cannot carry ports"}
	}
	elts := arrayOf(elem, ast.TypeString(ast.ArrayType{
		Size: ast.ArraySize{Kind: ast.SizeFixed, N: t.Count}, Elem: t.Elem,
	}))
	elts.Array = ipctypes.FixedArray
	elts.MaxElements = t.Count

	return &ipctypes.ResolvedType{
		Name:       name,
		MsgType:    elem.MsgType,
		CType:      name,
		GoType:     name,
		Bits:       elem.Bits,
		Number:     elem.Number * t.Count,
		Size:       ipctypes.Fixed(elem.ElemBytes() * t.Count),
		IsStruct:   true,
		Descriptor: true,
		Fields:     []ipctypes.StructField{{Name: "elts", Type: elts}},
	}, nil
}

func (r *resolver) resolveCString(t ast.CStringType, name string) (*ipctypes.ResolvedType, error) {
	if t.Max == 0 {
		return nil, &Error{Kind: InvalidArrayBounds, Argument: name, Detail: "c_string needs a positive maximum length"}
	}
	size := ipctypes.Fixed(t.Max)
	if t.Varying {
		size = ipctypes.Variable(t.Max)
	}
	return &ipctypes.ResolvedType{
		Name:        nameOr(name, t),
		MsgType:     ipctypes.TypeStringC,
		CType:       "char",
		GoType:      "string",
		Bits:        8,
		Number:      t.Max,
		Size:        size,
		IsString:    true,
		Descriptor:  true,
		MaxElements: t.Max,
	}, nil
}
