package gobind

import (
	"io"
	"strings"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// ServerHeader writes the Server interface.
func (g *Generator) ServerHeader(w io.Writer, s *sema.Subsystem) error {
	if err := g.check(s); err != nil {
		return err
	}
	e := g.emitter(s)
	e.printf("// Server is implemented by the receiving side of subsystem %s.\n", s.Name)
	e.printf("// A method returning an error answers with its return code; see\n")
	e.printf("// machabi.Code.\n")
	e.printf("type Server interface {\n")
	for _, r := range s.Routines {
		e.printf("\t%s%s\n", exported(r.Name), signature(serverArgs(r), results(r)))
	}
	e.printf("}\n\n")
	return e.flush(w)
}

// ServerImpl writes Dispatch and one unpacking function per routine.
func (g *Generator) ServerImpl(w io.Writer, s *sema.Subsystem) error {
	if err := g.check(s); err != nil {
		return err
	}
	e := g.emitter(s)
	e.printf("// Dispatch validates req, calls the matching method of srv and returns\n")
	e.printf("// the reply to send. It returns nil when no reply is due.\n")
	e.printf("func Dispatch(srv Server, req machabi.Message) machabi.Message {\n")
	e.printf("\tswitch req.Header().ID {\n")
	for _, r := range s.Routines {
		n := exported(r.Name)
		e.printf("\tcase %sID:\n", n)
		e.printf("\t\tm, ok := req.(*%sRequest)\n", n)
		e.printf("\t\tif !ok {\n\t\t\treturn machabi.NewErrorReply(req, machabi.MigBadArguments)\n\t\t}\n")
		e.printf("\t\treturn dispatch%s(srv, m)\n", n)
	}
	e.printf("\t}\n")
	e.printf("\treturn machabi.NewErrorReply(req, machabi.MigBadID)\n}\n\n")
	for _, r := range s.Routines {
		e.dispatchRoutine(r)
	}
	return e.flush(w)
}

// serverValue spells the argument Dispatch passes for one server
// parameter.
func serverValue(r *sema.Routine, p goParam, src sema.Param) string {
	poly := p.Poly
	switch src.Direction {
	case ast.RequestPort:
		if poly {
			return "machabi.MsgTypeName(req.Head.Bits & 0xff)"
		}
		return "req.Head.RemotePort"
	case ast.ReplyPort, ast.SReplyPort:
		if poly {
			return "machabi.MsgTypeName(req.Head.Bits >> 8 & 0xff)"
		}
		return "req.Head.LocalPort"
	}
	if poly {
		return "req." + exported(src.Name+"Type") + ".Name"
	}
	for i, f := range r.Request.Fields {
		if f.Kind == sema.FieldData && f.Arg == src.Name {
			return received("req", r.Request, i)
		}
	}
	return "req." + exported(src.Name)
}

func (e *emitter) serverCall(r *sema.Routine) []string {
	var vals []string
	for _, p := range r.Params {
		if !p.OnServerSide() {
			continue
		}
		var gps []goParam
		switch p.Direction {
		case ast.RequestPort, ast.ReplyPort, ast.SReplyPort:
			gps = portParams(p)
		default:
			if p.IsBody() && p.Direction.InRequest() {
				gps = bodyParams(p)
			}
		}
		for _, gp := range gps {
			vals = append(vals, serverValue(r, gp, p))
		}
	}
	return vals
}

func (e *emitter) dispatchRoutine(r *sema.Routine) {
	n := exported(r.Name)
	bad := func() { e.printf("\t\treturn machabi.NewErrorReply(req, machabi.MigBadArguments)\n\t}\n") }

	e.printf("func dispatch%s(srv Server, req *%sRequest) machabi.Message {\n", n, n)
	e.printf("\tif req.Head.Size != %sRequestSize {\n", n)
	bad()
	e.checkMessage("req", r.Request, bad)

	res := results(r)
	lhs := joinNames(append(append([]goParam(nil), res...), goParam{Name: "err"}))
	e.printf("\t%s := srv.%s(%s)\n", lhs, n, strings.Join(e.serverCall(r), ", "))
	e.printf("\tif err != nil {\n\t\treturn machabi.NewErrorReply(req, machabi.Code(err))\n\t}\n")
	if r.Reply == nil {
		e.printf("\treturn nil\n}\n\n")
		return
	}

	for _, f := range r.Reply.Fields {
		if f.Kind != sema.FieldData {
			continue
		}
		if max, ok := boundCheck(f.Resolved); ok {
			e.printf("\tif len(%s) > %d {\n", outName(f.Arg), max)
			e.printf("\t\treturn machabi.NewErrorReply(req, machabi.MigArrayTooLarge)\n\t}\n")
		}
	}
	e.printf("\treply := New%sReply(req)\n", n)
	for _, f := range r.Reply.Fields {
		v := outName(f.Arg)
		name := exported(f.Name)
		rt := f.Resolved
		switch f.Kind {
		case sema.FieldDescriptor:
			if f.IsPolymorphic {
				e.printf("\treply.%s.Name = %s\n", name, polyOutName(f.Arg))
			}
			if variableNumber(rt) {
				e.printf("\treply.%s.Number = %s\n", name, lenExpr(v, rt))
			}
		case sema.FieldCount:
			e.printf("\treply.%s = uint32(len(%s))\n", name, v)
		case sema.FieldData:
			if rt.IsArray && f.Inline {
				e.printf("\tcopy(reply.%s[:], %s)\n", name, v)
			} else {
				e.printf("\treply.%s = %s\n", name, v)
			}
		}
	}
	e.printf("\treturn reply\n}\n\n")
}
