package cgen

import (
	"io"
	"strings"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/cabs"
	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// errorReply names the error-only reply type of a subsystem.
func errorReply(s *sema.Subsystem) string {
	return s.Name + "_error_reply_t"
}

// ServerImpl writes <name>Server.c: one unpacking stub per routine and
// the demultiplexer.
func (g *Generator) ServerImpl(w io.Writer, s *sema.Subsystem) error {
	return emit(w, s, func(p *cabs.Printer) {
		banner(p, s, "Server stubs")
		p.Raw("#include \"%s\"", FileName(s, codegen.PartServerHeader))
		p.Raw("#include <string.h>")
		p.Raw("#include <mach/mach_types.h>")
		p.Raw("#include <mach/mig_errors.h>")
		p.Raw("#include <mach/mig_support.h>")
		p.Raw("#include <mach/msg_type.h>")
		if s.KernelServer {
			p.Raw("#include <kern/ipc_mig.h>")
		}
		p.Line("")
		p.Raw("#ifndef\tmig_internal")
		p.Raw("#define\tmig_internal\tstatic")
		p.Raw("#endif")
		p.Line("")
		p.Raw("#ifndef\tmig_external")
		p.Raw("#define mig_external")
		p.Raw("#endif")
		p.Line("")
		p.Raw("#define msgh_request_port\tmsgh_local_port")
		p.Raw("#define msgh_reply_port\t\tmsgh_remote_port")
		p.Line("")
		p.PrintStruct(cabs.StructDef{
			Name: errorReply(s),
			Fields: []cabs.Field{
				{Type: "mach_msg_header_t", Name: "Head"},
				{Type: "kern_return_t", Name: "RetCode"},
			},
		})
		p.Line("")
		for _, r := range s.Routines {
			st := &serverStub{p: p, s: s, r: r}
			st.print()
			p.Line("")
		}
		printDemux(p, s)
	})
}

type serverStub struct {
	p *cabs.Printer
	s *sema.Subsystem
	r *sema.Routine
}

func (st *serverStub) print() {
	p, r := st.p, st.r
	p.Comment("Routine " + r.Name)
	p.PrintFunHead(cabs.FunDecl{
		Storage:    "mig_internal",
		ReturnType: "void",
		Name:       "_X" + r.Name,
		Params: []cabs.Param{
			{Type: "mach_msg_header_t *", Name: "InHeadP"},
			{Type: "mach_msg_header_t *", Name: "OutHeadP"},
		},
	})
	p.Line("{")
	p.In()

	p.PrintStruct(messageStruct("Request", r.Request))
	p.Line("")
	if r.Reply != nil {
		p.PrintStruct(messageStruct("Reply", *r.Reply))
		p.Line("")
		p.Line("Request *In0P = (Request *) InHeadP;")
		p.Line("Reply *OutP = (Reply *) OutHeadP;")
	} else {
		p.Line("Request *In0P = (Request *) InHeadP;")
		p.Line("%s *OutP = (%s *) OutHeadP;", errorReply(st.s), errorReply(st.s))
	}
	for _, prm := range r.Params {
		if prm.IsBody() && prm.Direction.InReply() && prm.Type.IsPolymorphic {
			p.Line("mach_msg_type_name_t %sPoly;", prm.Name)
		}
	}
	p.Line("")
	if r.Reply != nil {
		for _, f := range r.Reply.Fields {
			if f.Kind == sema.FieldDescriptor {
				p.PrintVar(descriptorVar(f))
				p.Line("")
			}
		}
	}

	st.validate()
	st.prepareReply()
	st.call()
	if r.Reply != nil {
		st.packReply()
	}
	p.Out()
	p.Line("}")
}

func (st *serverStub) fail() string {
	return "{ OutP->RetCode = MIG_BAD_ARGUMENTS; return; }"
}

func (st *serverStub) validate() {
	p, r := st.p, st.r
	p.Line("if (In0P->Head.msgh_size != sizeof(Request))")
	p.In()
	p.Line("%s", st.fail())
	p.Out()
	for _, f := range r.Request.Fields {
		if f.Kind == sema.FieldDescriptor {
			printDescriptorCheck(p, "In0P", f, st.fail())
		}
	}
	for i, f := range r.Request.Fields {
		rt := f.Resolved
		if f.Kind != sema.FieldData || !rt.IsArray {
			continue
		}
		cnt, _ := r.Request.CountFor(i)
		if rt.Bounded() {
			p.Line("if (In0P->%s > %d)", cnt.Name, rt.MaxElements)
			p.In()
			p.Line("%s", st.fail())
			p.Out()
		}
		if desc, ok := r.Request.DescriptorFor(i); ok && variableNumber(rt) {
			p.Line("if (%s != In0P->%s.%s)", countExpr("In0P->"+cnt.Name, rt), desc.Name, descMembers(desc.LongForm).number)
			p.In()
			p.Line("%s", st.fail())
			p.Out()
		}
	}
	p.Line("")
}

// prepareReply sets up the reply fields the server function writes into:
// capacities for out arrays and initial values for inout arguments.
func (st *serverStub) prepareReply() {
	p, r := st.p, st.r
	if r.Reply == nil {
		return
	}
	n := 0
	for _, f := range r.Reply.Fields {
		if f.Kind != sema.FieldData {
			continue
		}
		prm, _ := r.Param(f.Arg)
		rt := f.Resolved
		if prm.Direction == ast.InOut {
			in, _ := r.Request.Field(f.Name)
			switch {
			case rt.IsArray && f.Inline:
				p.Line("(void) memcpy((char *) OutP->%s, (const char *) In0P->%s, sizeof(%s) * In0P->%sCnt);",
					f.Name, in.Name, rt.CType, prm.Name)
				p.Line("OutP->%sCnt = In0P->%sCnt;", prm.Name, prm.Name)
			case rt.IsArray:
				p.Line("OutP->%s = In0P->%s;", f.Name, in.Name)
				p.Line("OutP->%sCnt = In0P->%sCnt;", prm.Name, prm.Name)
			case rt.IsString:
				p.Line("(void) mig_strncpy(OutP->%s, In0P->%s, %d);", f.Name, in.Name, rt.Number)
			default:
				p.Line("OutP->%s = In0P->%s;", f.Name, in.Name)
			}
			if rt.IsPolymorphic {
				desc, _ := r.Request.Field(prm.Name + "Type")
				p.Line("%sPoly = In0P->%s.%s;", prm.Name, desc.Name, descMembers(desc.LongForm).name)
			}
			n++
			continue
		}
		if rt.IsArray && f.Inline {
			p.Line("OutP->%sCnt = %d;", prm.Name, rt.MaxElements)
			n++
		}
	}
	if n > 0 {
		p.Line("")
	}
}

// callArgs spells the server function's arguments in parameter order.
func (st *serverStub) callArgs() []string {
	r := st.r
	var args []string
	for _, prm := range r.Params {
		if !prm.OnServerSide() {
			continue
		}
		rt := prm.Type
		if !prm.IsBody() {
			field := "msgh_request_port"
			bits := "MACH_MSGH_BITS_LOCAL"
			if prm.Direction != ast.RequestPort {
				field = "msgh_reply_port"
				bits = "MACH_MSGH_BITS_REMOTE"
			}
			args = append(args, "In0P->Head."+field)
			if rt.IsPolymorphic {
				args = append(args, bits+"(In0P->Head.msgh_bits)")
			}
			continue
		}
		if !prm.Direction.InReply() {
			args = append(args, "In0P->"+prm.Name)
			if rt.IsArray {
				args = append(args, "In0P->"+prm.Name+"Cnt")
			}
			if rt.IsPolymorphic {
				desc, _ := r.Request.Field(prm.Name + "Type")
				args = append(args, "In0P->"+desc.Name+"."+descMembers(desc.LongForm).name)
			}
			continue
		}
		switch {
		case rt.IsArray && rt.OutOfLine:
			args = append(args, "&OutP->"+prm.Name, "&OutP->"+prm.Name+"Cnt")
		case rt.IsArray:
			args = append(args, "OutP->"+prm.Name, "&OutP->"+prm.Name+"Cnt")
		case rt.IsString:
			args = append(args, "OutP->"+prm.Name)
		default:
			args = append(args, "&OutP->"+prm.Name)
		}
		if rt.IsPolymorphic {
			args = append(args, "&"+prm.Name+"Poly")
		}
	}
	return args
}

func (st *serverStub) call() {
	p, r := st.p, st.r
	args := st.callArgs()
	call := r.ServerFunc + "(" + strings.Join(args, ", ") + ")"
	p.Line("OutP->RetCode = %s;", call)
	if r.Reply == nil {
		p.Line("if (OutP->RetCode == KERN_SUCCESS)")
		p.In()
		p.Line("OutP->RetCode = MIG_NO_REPLY;")
		p.Out()
		return
	}
	p.Line("if (OutP->RetCode != KERN_SUCCESS)")
	p.In()
	p.Line("return;")
	p.Out()
	p.Line("")
}

func (st *serverStub) packReply() {
	p, r := st.p, st.r
	n := 0
	for _, f := range r.Reply.Fields {
		if f.Kind != sema.FieldData || !f.Resolved.IsArray || f.Resolved.Array != ipctypes.BoundedArray {
			continue
		}
		p.Line("if (OutP->%sCnt > %d) {", f.Arg, f.Resolved.MaxElements)
		p.In()
		p.Line("OutP->RetCode = MIG_ARRAY_TOO_LARGE;")
		p.Line("return;")
		p.Out()
		p.Line("}")
		n++
	}
	if n > 0 {
		p.Line("")
	}
	for i, f := range r.Reply.Fields {
		if f.Kind != sema.FieldDescriptor {
			continue
		}
		prm, _ := r.Param(f.Arg)
		m := descMembers(f.LongForm)
		p.Line("OutP->%s = %s;", f.Name, f.Name)
		if f.IsPolymorphic {
			p.Line("OutP->%s.%s = %sPoly;", f.Name, m.name, prm.Name)
		}
		if variableNumber(f.Resolved) {
			if cnt, ok := r.Reply.CountFor(i + 1); ok {
				p.Line("OutP->%s.%s = %s;", f.Name, m.number, countExpr("OutP->"+cnt.Name, f.Resolved))
			}
		}
	}
	p.Line("OutP->Head.msgh_size = sizeof(Reply);")
}

// printDemux writes the dispatcher that routes a request by id.
func printDemux(p *cabs.Printer, s *sema.Subsystem) {
	p.Comment("Demultiplexer for subsystem " + s.Name)
	p.PrintFunHead(demuxDecl(s, "mig_external"))
	p.Line("{")
	p.In()
	p.Line("mach_msg_header_t *InP = InHeadP;")
	p.Line("%s *OutP = (%s *) OutHeadP;", errorReply(s), errorReply(s))
	p.Line("")
	p.Line("OutP->Head.msgh_bits = MACH_MSGH_BITS(MACH_MSGH_BITS_REMOTE(InP->msgh_bits), 0);")
	p.Line("OutP->Head.msgh_size = sizeof *OutP;")
	p.Line("OutP->Head.msgh_remote_port = InP->msgh_reply_port;")
	p.Line("OutP->Head.msgh_local_port = MACH_PORT_NULL;")
	p.Line("OutP->Head.msgh_id = InP->msgh_id + %d;", sema.ReplyOffset)
	p.Line("")
	p.Line("if ((InP->msgh_id < %d) || (InP->msgh_id >= %d)) {", s.Base, s.Base+s.MessageCount)
	p.In()
	p.Line("OutP->RetCode = MIG_BAD_ID;")
	p.Line("return FALSE;")
	p.Out()
	p.Line("}")
	p.Line("")
	p.Line("switch (InP->msgh_id - %d) {", s.Base)
	for _, r := range s.Routines {
		p.Line("case %d:", r.Number-s.Base)
		p.In()
		p.Line("_X%s(InP, &OutP->Head);", r.Name)
		p.Line("return TRUE;")
		p.Out()
	}
	p.Line("default:")
	p.In()
	p.Line("OutP->RetCode = MIG_BAD_ID;")
	p.Line("return FALSE;")
	p.Out()
	p.Line("}")
	p.Out()
	p.Line("}")
}
