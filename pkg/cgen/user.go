package cgen

import (
	"io"
	"strings"

	"github.com/raymyers/ralph-mig/pkg/cabs"
	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// UserImpl writes <name>User.c: client functions that pack a request,
// call mach_msg and unpack the reply.
func (g *Generator) UserImpl(w io.Writer, s *sema.Subsystem) error {
	return emit(w, s, func(p *cabs.Printer) {
		banner(p, s, "Client stubs")
		p.Raw("#include \"%s\"", FileName(s, codegen.PartUserHeader))
		p.Raw("#include <string.h>")
		p.Raw("#include <mach/mach_types.h>")
		p.Raw("#include <mach/mig_errors.h>")
		p.Raw("#include <mach/mig_support.h>")
		p.Raw("#include <mach/msg_type.h>")
		if s.KernelUser {
			p.Raw("#include <kern/ipc_mig.h>")
		}
		p.Line("")
		p.Raw("#ifndef\tmig_external")
		p.Raw("#define mig_external extern")
		p.Raw("#endif")
		p.Line("")
		p.Raw("#define msgh_request_port\tmsgh_remote_port")
		p.Raw("#define msgh_reply_port\t\tmsgh_local_port")
		p.Line("")
		for _, r := range s.Routines {
			u := &userStub{p: p, s: s, r: r}
			u.print()
			p.Line("")
		}
	})
}

type userStub struct {
	p *cabs.Printer
	s *sema.Subsystem
	r *sema.Routine
}

// ref spells a client parameter's value: inout scalars arrive by address.
func ref(p sema.Param, suffix string) string {
	if p.Direction.InReply() {
		return "*" + p.Name + suffix
	}
	return p.Name + suffix
}

func (u *userStub) print() {
	p, r := u.p, u.r
	kind := "Routine"
	if r.IsSimple {
		kind = "SimpleRoutine"
	}
	p.Comment(kind + " " + r.Name)
	p.PrintFunHead(userDecl(r, "mig_external"))
	p.Line("{")
	p.In()

	p.PrintStruct(messageStruct("Request", r.Request))
	p.Line("")
	if r.Reply != nil {
		p.PrintStruct(messageStruct("Reply", *r.Reply))
		p.Line("")
		p.Line("union {")
		p.In()
		p.Line("Request In;")
		p.Line("Reply Out;")
		p.Out()
		p.Line("} Mess;")
		p.Line("")
		p.Line("Request *InP = &Mess.In;")
		p.Line("Reply *OutP = &Mess.Out;")
	} else {
		p.Line("Request Mess;")
		p.Line("")
		p.Line("Request *InP = &Mess;")
	}
	if r.Reply != nil && !u.s.KernelUser {
		p.Line("mach_msg_return_t msg_result;")
	}
	p.Line("")

	for _, f := range r.Request.Fields {
		if f.Kind == sema.FieldDescriptor {
			p.PrintVar(descriptorVar(f))
			p.Line("")
		}
	}

	u.packRequest()
	u.header()
	u.send()
	if r.Reply != nil {
		u.unpackReply()
	}
	p.Out()
	p.Line("}")
}

func (u *userStub) packRequest() {
	p, r := u.p, u.r
	for _, f := range r.Request.Fields {
		param, _ := r.Param(f.Arg)
		rt := f.Resolved
		switch f.Kind {
		case sema.FieldDescriptor:
			p.Line("InP->%s = %s;", f.Name, f.Name)
			m := descMembers(f.LongForm)
			if f.IsPolymorphic {
				p.Line("InP->%s.%s = %s;", f.Name, m.name, ref(param, "Poly"))
			}
			if variableNumber(rt) {
				p.Line("InP->%s.%s = %s;", f.Name, m.number, countExpr(ref(param, "Cnt"), rt))
			}
		case sema.FieldCount:
			p.Line("InP->%s = %s;", f.Name, ref(param, "Cnt"))
		case sema.FieldData:
			u.packData(f, param)
		}
	}
	p.Line("")
}

func (u *userStub) packData(f sema.MessageField, param sema.Param) {
	p, rt := u.p, f.Resolved
	switch {
	case rt.IsArray:
		cnt := ref(param, "Cnt")
		if rt.Bounded() {
			p.Line("if (%s > %d)", cnt, rt.MaxElements)
			p.In()
			p.Line("return MIG_ARRAY_TOO_LARGE;")
			p.Out()
		}
		switch {
		case !f.Inline && param.Direction.InReply():
			p.Line("InP->%s = *%s;", f.Name, param.Name)
		case !f.Inline:
			p.Line("InP->%s = (%s *) %s;", f.Name, rt.CType, param.Name)
		default:
			p.Line("(void) memcpy((char *) InP->%s, (const char *) %s, sizeof(%s) * %s);",
				f.Name, param.Name, rt.CType, cnt)
		}
	case rt.IsString:
		p.Line("(void) mig_strncpy(InP->%s, %s, %d);", f.Name, param.Name, rt.Number)
	default:
		p.Line("InP->%s = %s;", f.Name, ref(param, ""))
	}
}

// disposition spells the transfer of a header port: a polymorphic port
// takes it from the matching Poly parameter.
func disposition(p sema.Param, def string) string {
	if p.Name == "" {
		return def
	}
	if p.Type.IsPolymorphic {
		return p.Name + "Poly"
	}
	return p.Type.MsgType.Macro()
}

func (u *userStub) replyPort() (sema.Param, bool) {
	if rp, ok := u.r.HeaderPort(u.r.ReplyPort); ok {
		return rp, true
	}
	return u.r.HeaderPort(u.r.UReplyPort)
}

// defaultReplyPort reports whether the stub allocates its own reply port.
func (u *userStub) defaultReplyPort() bool {
	_, explicit := u.replyPort()
	return !explicit && !u.r.IsSimple && !u.s.KernelUser
}

func (u *userStub) header() {
	p, r := u.p, u.r
	req, _ := r.HeaderPort(r.RequestPort)
	reply, explicit := u.replyPort()

	local := "0"
	replyName := "MACH_PORT_NULL"
	switch {
	case explicit:
		local = disposition(reply, "0")
		replyName = reply.Name
	case !r.IsSimple:
		local = ipctypes.TypeMakeSendOnce.Macro()
		if !u.s.KernelUser {
			replyName = "mig_get_reply_port()"
		}
	}
	p.Line("InP->Head.msgh_bits = MACH_MSGH_BITS(%s, %s);", disposition(req, "0"), local)
	p.Line("InP->Head.msgh_request_port = %s;", req.Name)
	p.Line("InP->Head.msgh_reply_port = %s;", replyName)
	p.Line("InP->Head.msgh_id = %d;", r.Number)
	p.Line("InP->Head.msgh_size = sizeof(Request);")
	p.Line("")
}

func (u *userStub) options(base string) (string, string) {
	r := u.r
	opts := []string{base}
	timeout := "MACH_MSG_TIMEOUT_NONE"
	if r.WaitTime != "" {
		timeout = r.WaitTime
		if r.IsSimple {
			opts = append(opts, "MACH_SEND_TIMEOUT")
		} else {
			opts = append(opts, "MACH_SEND_TIMEOUT", "MACH_RCV_TIMEOUT")
		}
	}
	if r.MsgOption != "" {
		opts = append(opts, r.MsgOption)
	}
	return strings.Join(opts, "|"), timeout
}

func (u *userStub) send() {
	p, r := u.p, u.r
	switch {
	case r.IsSimple && u.s.KernelUser:
		p.Line("return mach_msg_send_from_kernel(&InP->Head, sizeof(Request));")
	case r.IsSimple:
		opts, timeout := u.options("MACH_SEND_MSG")
		p.Line("return mach_msg(&InP->Head, %s, sizeof(Request), 0, MACH_PORT_NULL, %s, MACH_PORT_NULL);", opts, timeout)
	case u.s.KernelUser:
		p.Line("if (mach_msg_rpc_from_kernel(&InP->Head, sizeof(Request), sizeof(Reply)) != MACH_MSG_SUCCESS)")
		p.In()
		p.Line("return MIG_SERVER_DIED;")
		p.Out()
		p.Line("")
	default:
		opts, timeout := u.options("MACH_SEND_MSG|MACH_RCV_MSG")
		p.Line("msg_result = mach_msg(&InP->Head, %s, sizeof(Request), sizeof(Reply), InP->Head.msgh_reply_port, %s, MACH_PORT_NULL);",
			opts, timeout)
		p.Line("if (msg_result != MACH_MSG_SUCCESS) {")
		p.In()
		if u.defaultReplyPort() {
			p.Line("mig_dealloc_reply_port(InP->Head.msgh_reply_port);")
		}
		p.Line("return msg_result;")
		p.Out()
		p.Line("}")
		p.Line("")
	}
}

func (u *userStub) unpackReply() {
	p, r := u.p, u.r
	fail := "return MIG_TYPE_ERROR;"

	p.Line("if (OutP->Head.msgh_id != %d) {", r.ReplyNumber)
	p.In()
	p.Line("if (OutP->Head.msgh_id == MACH_NOTIFY_SEND_ONCE)")
	p.In()
	p.Line("return MIG_SERVER_DIED;")
	p.Out()
	p.Line("return MIG_REPLY_MISMATCH;")
	p.Out()
	p.Line("}")
	p.Line("")
	p.Line("if (OutP->RetCode != KERN_SUCCESS)")
	p.In()
	p.Line("return OutP->RetCode;")
	p.Out()
	p.Line("if (OutP->Head.msgh_size != sizeof(Reply))")
	p.In()
	p.Line("%s", fail)
	p.Out()
	p.Line("")

	for _, f := range r.Reply.Fields {
		if f.Kind == sema.FieldDescriptor {
			printDescriptorCheck(p, "OutP", f, fail)
		}
	}
	for i, f := range r.Reply.Fields {
		if f.Kind != sema.FieldData {
			continue
		}
		rt := f.Resolved
		if rt.IsArray && rt.Bounded() {
			cnt, _ := r.Reply.CountFor(i)
			p.Line("if (OutP->%s > %d)", cnt.Name, rt.MaxElements)
			p.In()
			p.Line("%s", fail)
			p.Out()
		}
	}
	p.Line("")

	for i, f := range r.Reply.Fields {
		param, _ := r.Param(f.Arg)
		switch f.Kind {
		case sema.FieldDescriptor:
			if f.IsPolymorphic {
				p.Line("*%sPoly = OutP->%s.%s;", param.Name, f.Name, descMembers(f.LongForm).name)
			}
		case sema.FieldCount:
			p.Line("*%sCnt = OutP->%s;", param.Name, f.Name)
		case sema.FieldData:
			u.copyBack(f, param, r.Reply, i)
		}
	}
	p.Line("return KERN_SUCCESS;")
}

func (u *userStub) copyBack(f sema.MessageField, param sema.Param, l *sema.MessageLayout, i int) {
	p, rt := u.p, f.Resolved
	switch {
	case rt.IsArray && !f.Inline:
		p.Line("*%s = OutP->%s;", param.Name, f.Name)
	case rt.IsArray:
		cnt, _ := l.CountFor(i)
		p.Line("if (OutP->%s > *%sCnt)", cnt.Name, param.Name)
		p.In()
		p.Line("return MIG_ARRAY_TOO_LARGE;")
		p.Out()
		p.Line("(void) memcpy((char *) %s, (const char *) OutP->%s, sizeof(%s) * OutP->%s);",
			param.Name, f.Name, rt.CType, cnt.Name)
	case rt.IsString:
		p.Line("(void) mig_strncpy(%s, OutP->%s, %d);", param.Name, f.Name, rt.Number)
	default:
		p.Line("*%s = OutP->%s;", param.Name, f.Name)
	}
}
