// Package cgen generates C client and server stubs that marshal typed
// Mach messages through mach_msg.
package cgen

import (
	"fmt"
	"io"

	"github.com/raymyers/ralph-mig/pkg/cabs"
	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// Generator emits the legacy C artifacts of a subsystem.
type Generator struct{}

// New returns a C generator.
func New() *Generator { return &Generator{} }

var _ codegen.Generator = (*Generator)(nil)

// FileName returns the artifact name of one part.
func FileName(s *sema.Subsystem, p codegen.Part) string {
	switch p {
	case codegen.PartUserHeader:
		return s.Name + ".h"
	case codegen.PartUserImpl:
		return s.Name + "User.c"
	case codegen.PartServerHeader:
		return s.Name + "Server.h"
	}
	return s.Name + "Server.c"
}

// Files renders the selected parts into memory.
func (g *Generator) Files(s *sema.Subsystem, sel codegen.Selection) ([]codegen.Artifact, error) {
	if err := codegen.CheckSupported(s); err != nil {
		return nil, err
	}
	var out []codegen.Artifact
	for _, p := range []codegen.Part{codegen.PartUserHeader, codegen.PartUserImpl, codegen.PartServerHeader, codegen.PartServerImpl} {
		if !sel.Wants(p) {
			continue
		}
		data, err := codegen.Render(g, s, p)
		if err != nil {
			return nil, err
		}
		out = append(out, codegen.Artifact{Name: FileName(s, p), Data: data})
	}
	return out, nil
}

// emit runs body against a printer and reports the first write error.
func emit(w io.Writer, s *sema.Subsystem, body func(p *cabs.Printer)) error {
	if err := codegen.CheckSupported(s); err != nil {
		return err
	}
	ew := &codegen.ErrWriter{W: w}
	body(cabs.NewPrinter(ew))
	return ew.Err
}

func banner(p *cabs.Printer, s *sema.Subsystem, what string) {
	p.Raw("/* %s for subsystem %s, generated by ralph-mig. DO NOT EDIT. */", what, s.Name)
	p.Line("")
}

func boolC(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func typeNameC(t ipctypes.MsgType) string {
	if t == ipctypes.TypePolymorphic {
		return "((mach_msg_type_name_t) -1)"
	}
	return t.Macro()
}

// paramDecls is the C spelling of one routine parameter: the value, then
// its count for arrays, then its type name for polymorphic values.
func paramDecls(p sema.Param) []cabs.Param {
	rt := p.Type
	outbound := p.IsBody() && p.Direction.InReply()
	var ps []cabs.Param
	switch {
	case !p.IsBody():
		ps = append(ps, cabs.Param{Type: rt.CType, Name: p.Name})
	case rt.IsArray:
		switch {
		case !outbound:
			ps = append(ps,
				cabs.Param{Type: "const " + rt.CType + " *", Name: p.Name},
				cabs.Param{Type: "mach_msg_type_number_t", Name: p.Name + "Cnt"})
		case rt.OutOfLine:
			ps = append(ps,
				cabs.Param{Type: rt.CType + " **", Name: p.Name},
				cabs.Param{Type: "mach_msg_type_number_t *", Name: p.Name + "Cnt"})
		default:
			ps = append(ps,
				cabs.Param{Type: rt.CType + " *", Name: p.Name},
				cabs.Param{Type: "mach_msg_type_number_t *", Name: p.Name + "Cnt"})
		}
	case rt.IsString:
		if outbound {
			ps = append(ps, cabs.Param{Type: "char *", Name: p.Name})
		} else {
			ps = append(ps, cabs.Param{Type: "const char *", Name: p.Name})
		}
	case outbound:
		ps = append(ps, cabs.Param{Type: rt.CType + " *", Name: p.Name})
	default:
		ps = append(ps, cabs.Param{Type: rt.CType, Name: p.Name})
	}
	if rt.IsPolymorphic {
		if outbound {
			ps = append(ps, cabs.Param{Type: "mach_msg_type_name_t *", Name: p.Name + "Poly"})
		} else {
			ps = append(ps, cabs.Param{Type: "mach_msg_type_name_t", Name: p.Name + "Poly"})
		}
	}
	return ps
}

// userParams lists the client function's parameters.
func userParams(r *sema.Routine) []cabs.Param {
	var out []cabs.Param
	for _, p := range r.Params {
		if p.OnUserSide() {
			out = append(out, paramDecls(p)...)
		}
	}
	return out
}

// serverParams lists the parameters of the function the server author
// supplies.
func serverParams(r *sema.Routine) []cabs.Param {
	var out []cabs.Param
	for _, p := range r.Params {
		if p.OnServerSide() {
			out = append(out, paramDecls(p)...)
		}
	}
	return out
}

func userDecl(r *sema.Routine, storage string) cabs.FunDecl {
	return cabs.FunDecl{Storage: storage, ReturnType: "kern_return_t", Name: r.UserFunc, Params: userParams(r)}
}

func serverDecl(r *sema.Routine) cabs.FunDecl {
	return cabs.FunDecl{Storage: "extern", ReturnType: "kern_return_t", Name: r.ServerFunc, Params: serverParams(r)}
}

// messageStruct mirrors a layout field for field.
func messageStruct(name string, l sema.MessageLayout) cabs.StructDef {
	def := cabs.StructDef{Name: name, Fields: []cabs.Field{{Type: "mach_msg_header_t", Name: "Head"}}}
	for _, f := range l.Fields {
		def.Fields = append(def.Fields, fieldDecl(f))
	}
	return def
}

func fieldDecl(f sema.MessageField) cabs.Field {
	switch f.Kind {
	case sema.FieldDescriptor:
		if f.LongForm {
			return cabs.Field{Type: "mach_msg_type_long_t", Name: f.Name}
		}
		return cabs.Field{Type: "mach_msg_type_t", Name: f.Name}
	case sema.FieldRetCode, sema.FieldCount:
		return cabs.Field{Type: f.Type, Name: f.Name}
	}
	rt := f.Resolved
	switch {
	case !f.Inline:
		return cabs.Field{Type: rt.CType + " *", Name: f.Name}
	case rt.IsArray:
		return cabs.Field{Type: rt.CType, Name: f.Name, Dim: rt.MaxElements}
	case rt.IsString:
		return cabs.Field{Type: "char", Name: f.Name, Dim: rt.Number}
	}
	return cabs.Field{Type: rt.CType, Name: f.Name}
}

// structFieldDecl spells a member of a declared struct type.
func structFieldDecl(sf ipctypes.StructField) cabs.Field {
	ft := sf.Type
	switch {
	case ft.IsArray:
		return cabs.Field{Type: ft.CType, Name: sf.Name, Dim: ft.MaxElements}
	case ft.IsString:
		return cabs.Field{Type: "char", Name: sf.Name, Dim: ft.Number}
	}
	return cabs.Field{Type: ft.CType, Name: sf.Name}
}

// printStructTypes emits the declared struct types, guarded so the user
// and server headers can share a translation unit.
func printStructTypes(p *cabs.Printer, s *sema.Subsystem) {
	for _, st := range s.StructTypes() {
		guard := "_" + st.Name + "_defined"
		p.Raw("#ifndef %s", guard)
		p.Raw("#define %s", guard)
		def := cabs.StructDef{Name: st.Name}
		for _, sf := range st.Fields {
			def.Fields = append(def.Fields, structFieldDecl(sf))
		}
		p.PrintStruct(def)
		p.Raw("#endif /* %s */", guard)
		p.Line("")
	}
}

func printImports(p *cabs.Printer, s *sema.Subsystem, server bool) {
	n := 0
	for _, imp := range s.Imports {
		if server && !imp.ForServer() || !server && !imp.ForUser() {
			continue
		}
		if imp.System {
			p.Raw("#include <%s>", imp.File)
		} else {
			p.Raw("#include \"%s\"", imp.File)
		}
		n++
	}
	if n > 0 {
		p.Line("")
	}
}

// descriptorNumber is the msgt_number a descriptor carries at capacity.
func descriptorNumber(rt *ipctypes.ResolvedType) uint32 {
	if rt.IsArray && rt.Array == ipctypes.UnboundedArray {
		return 0
	}
	return rt.DescriptorNumber()
}

// variableNumber reports whether the descriptor's element count is set
// at run time from the array's count.
func variableNumber(rt *ipctypes.ResolvedType) bool {
	return rt.IsArray && rt.Array != ipctypes.FixedArray
}

// descriptorVar is the static initializer for a descriptor field, as the
// sender fills it in.
func descriptorVar(f sema.MessageField) cabs.VarDef {
	rt := f.Resolved
	v := cabs.VarDef{Storage: "static const", Name: f.Name}
	if !f.LongForm {
		v.Type = "mach_msg_type_t"
		v.Init = []cabs.InitItem{
			{Label: "msgt_name", Value: typeNameC(f.MsgType)},
			{Label: "msgt_size", Value: fmt.Sprint(rt.Bits)},
			{Label: "msgt_number", Value: fmt.Sprint(descriptorNumber(rt))},
			{Label: "msgt_inline", Value: boolC(f.Inline)},
			{Label: "msgt_longform", Value: "FALSE"},
			{Label: "msgt_deallocate", Value: boolC(f.Deallocate)},
			{Label: "msgt_unused", Value: "0"},
		}
		return v
	}
	v.Type = "mach_msg_type_long_t"
	v.Init = []cabs.InitItem{
		{Group: []cabs.InitItem{
			{Label: "msgt_name", Value: "0"},
			{Label: "msgt_size", Value: "0"},
			{Label: "msgt_number", Value: "0"},
			{Label: "msgt_inline", Value: boolC(f.Inline)},
			{Label: "msgt_longform", Value: "TRUE"},
			{Label: "msgt_deallocate", Value: boolC(f.Deallocate)},
			{Label: "msgt_unused", Value: "0"},
		}},
		{Label: "msgtl_name", Value: typeNameC(f.MsgType)},
		{Label: "msgtl_size", Value: fmt.Sprint(rt.Bits)},
		{Label: "msgtl_number", Value: fmt.Sprint(descriptorNumber(rt))},
	}
	return v
}

// desc names the members of a short or long descriptor.
type descFields struct {
	name, size, number, inline, longform string
}

func descMembers(long bool) descFields {
	if long {
		return descFields{"msgtl_name", "msgtl_size", "msgtl_number",
			"msgtl_header.msgt_inline", "msgtl_header.msgt_longform"}
	}
	return descFields{"msgt_name", "msgt_size", "msgt_number", "msgt_inline", "msgt_longform"}
}

// printDescriptorCheck validates a received descriptor. fail is the
// statement run on mismatch.
func printDescriptorCheck(p *cabs.Printer, ptr string, f sema.MessageField, fail string) {
	rt := f.Resolved
	m := descMembers(f.LongForm)
	at := ptr + "->" + f.Name + "."
	conds := []string{
		fmt.Sprintf("(%s%s != %s)", at, m.inline, boolC(f.Inline)),
		fmt.Sprintf("(%s%s != %s)", at, m.longform, boolC(f.LongForm)),
	}
	if !f.IsPolymorphic {
		conds = append(conds, fmt.Sprintf("(%s%s != %s)", at, m.name, typeNameC(f.MsgType.Received())))
	}
	conds = append(conds, fmt.Sprintf("(%s%s != %d)", at, m.size, rt.Bits))
	switch {
	case !variableNumber(rt):
		conds = append(conds, fmt.Sprintf("(%s%s != %d)", at, m.number, descriptorNumber(rt)))
	case rt.Bounded():
		conds = append(conds, fmt.Sprintf("(%s%s > %d)", at, m.number, descriptorNumber(rt)))
	}
	for i, c := range conds {
		switch {
		case len(conds) == 1:
			p.Line("if %s", c)
		case i == 0:
			p.Line("if (%s ||", c)
		case i == len(conds)-1:
			p.Line("    %s)", c)
		default:
			p.Line("    %s ||", c)
		}
	}
	p.In()
	p.Line("%s", fail)
	p.Out()
}

// countExpr scales an element count to a descriptor number.
func countExpr(cnt string, rt *ipctypes.ResolvedType) string {
	if rt.Number > 1 {
		return fmt.Sprintf("%s * %d", cnt, rt.Number)
	}
	return cnt
}
