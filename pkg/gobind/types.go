package gobind

import (
	"io"

	"github.com/raymyers/ralph-mig/pkg/ipctypes"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// UserHeader writes the message ids, the declared struct types and the
// request and reply messages with their constructors.
func (g *Generator) UserHeader(w io.Writer, s *sema.Subsystem) error {
	if err := g.check(s); err != nil {
		return err
	}
	e := g.emitter(s)
	e.printf("const (\n\tSubsystemBase = %d\n\tSubsystemCount = %d\n)\n\n", s.Base, s.MessageCount)
	for _, t := range s.StructTypes() {
		e.structType(t)
	}
	for _, r := range s.Routines {
		e.ids(r)
		e.message(r, "Request", r.Request)
		if r.Reply != nil {
			e.message(r, "Reply", *r.Reply)
		}
		e.newRequest(r)
		if r.Reply != nil {
			e.newReply(r)
		}
	}
	return e.flush(w)
}

func (e *emitter) structType(t *ipctypes.ResolvedType) {
	name := exported(t.Name)
	e.printf("// %s is the %s struct type.\n", name, t.Name)
	e.printf("type %s struct {\n", name)
	for _, f := range t.Fields {
		e.printf("\t%s %s\n", exported(f.Name), structFieldType(f.Type))
	}
	e.printf("}\n\n")
}

func (e *emitter) ids(r *sema.Routine) {
	n := exported(r.Name)
	e.printf("const (\n")
	e.printf("\t%sID = %d\n", n, r.Number)
	if r.Reply != nil {
		e.printf("\t%sReplyID = %d\n", n, r.ReplyNumber)
	}
	e.printf("\t%sRequestSize = %d\n", n, r.Request.FixedSize)
	if r.Reply != nil {
		e.printf("\t%sReplySize = %d\n", n, r.Reply.FixedSize)
	}
	e.printf(")\n\n")
}

func (e *emitter) message(r *sema.Routine, kind string, l sema.MessageLayout) {
	name := exported(r.Name) + kind
	e.printf("// %s is the %s message of %s.\n", name, lowerKind(kind), r.Name)
	e.printf("type %s struct {\n", name)
	e.printf("\tHead machabi.MsgHeader\n")
	for _, f := range l.Fields {
		e.printf("\t%s %s\n", exported(f.Name), fieldType(f))
	}
	e.printf("}\n\n")
	e.printf("func (m *%s) Header() *machabi.MsgHeader { return &m.Head }\n\n", name)
	if kind == "Reply" {
		e.printf("func (m *%s) Code() machabi.KernReturn { return m.RetCode }\n\n", name)
	}
}

func lowerKind(kind string) string {
	if kind == "Reply" {
		return "reply"
	}
	return "request"
}

// remoteDisposition is the disposition of the request port; a polymorphic
// port is sent as a copy unless the caller says otherwise.
func remoteDisposition(r *sema.Routine) string {
	p, _ := r.HeaderPort(r.RequestPort)
	if p.Type == nil || p.Type.IsPolymorphic {
		return msgTypeGo(ipctypes.TypeCopySend)
	}
	return msgTypeGo(p.Type.MsgType)
}

// replyPortParam returns the client's explicit reply port, if any.
func replyPortParam(r *sema.Routine) (sema.Param, bool) {
	if p, ok := r.HeaderPort(r.ReplyPort); ok {
		return p, true
	}
	return r.HeaderPort(r.UReplyPort)
}

func localDisposition(r *sema.Routine) string {
	p, explicit := replyPortParam(r)
	switch {
	case explicit && !p.Type.IsPolymorphic:
		return msgTypeGo(p.Type.MsgType)
	case explicit || !r.IsSimple:
		return msgTypeGo(ipctypes.TypeMakeSendOnce)
	}
	return "0"
}

func (e *emitter) descriptorInits(l sema.MessageLayout) {
	for _, f := range l.Fields {
		if f.Kind == sema.FieldDescriptor {
			e.printf("\t\t%s: %s,\n", exported(f.Name), descriptorLit(f))
		}
	}
}

func (e *emitter) newRequest(r *sema.Routine) {
	n := exported(r.Name)
	e.printf("// New%sRequest returns a request for %s addressed to remote, with\n", n, r.Name)
	e.printf("// its header and descriptors filled in.\n")
	e.printf("func New%sRequest(remote, reply machabi.Port) *%sRequest {\n", n, n)
	e.printf("\treturn &%sRequest{\n", n)
	e.printf("\t\tHead: machabi.MsgHeader{\n")
	e.printf("\t\t\tBits: machabi.MsgBits(%s, %s),\n", remoteDisposition(r), localDisposition(r))
	e.printf("\t\t\tSize: %sRequestSize,\n", n)
	e.printf("\t\t\tRemotePort: remote,\n")
	e.printf("\t\t\tLocalPort: reply,\n")
	e.printf("\t\t\tID: %sID,\n", n)
	e.printf("\t\t},\n")
	e.descriptorInits(r.Request)
	e.printf("\t}\n}\n\n")
}

func (e *emitter) newReply(r *sema.Routine) {
	n := exported(r.Name)
	e.printf("// New%sReply returns an empty successful reply to req.\n", n)
	e.printf("func New%sReply(req *%sRequest) *%sReply {\n", n, n, n)
	e.printf("\treturn &%sReply{\n", n)
	e.printf("\t\tHead: machabi.MsgHeader{\n")
	e.printf("\t\t\tBits: machabi.ReplyBits(&req.Head),\n")
	e.printf("\t\t\tSize: %sReplySize,\n", n)
	e.printf("\t\t\tRemotePort: req.Head.LocalPort,\n")
	e.printf("\t\t\tID: %sReplyID,\n", n)
	e.printf("\t\t},\n")
	e.descriptorInits(*r.Reply)
	e.printf("\t}\n}\n\n")
}
