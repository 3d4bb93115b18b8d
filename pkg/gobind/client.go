package gobind

import (
	"fmt"
	"io"
	"text/template"

	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

const clientTemplate = `// Client calls the routines of subsystem {{.}} over a Transport. Port is
// the default request port. A zero Timeout waits forever.
type Client struct {
	Transport machabi.Transport
	Port      machabi.Port
	Timeout   time.Duration
}

`

const asyncTemplate = `// {{.Method}}Result carries the results of {{.Method}}.
type {{.Method}}Result struct {
{{- range .Results}}
	{{.Field}} {{.Type}}
{{- end}}
	Err error
}

// {{.Method}}Async runs {{.Method}} in a goroutine. The channel receives
// exactly one result.
func (c *Client) {{.Method}}Async(ctx context.Context{{range .Args}}, {{.Name}} {{.Type}}{{end}}) <-chan {{.Method}}Result {
	ch := make(chan {{.Method}}Result, 1)
	go func() {
		var res {{.Method}}Result
		if res.Err = ctx.Err(); res.Err == nil {
			{{range .Results}}res.{{.Field}}, {{end}}res.Err = c.{{.Method}}({{range $i, $a := .Args}}{{if $i}}, {{end}}{{$a.Name}}{{end}})
		}
		ch <- res
	}()
	return ch
}

`

var (
	clientTmpl = template.Must(template.New("client").Parse(clientTemplate))
	asyncTmpl  = template.Must(template.New("async").Parse(asyncTemplate))
)

type asyncData struct {
	Method  string
	Args    []goParam
	Results []goParam
}

// UserImpl writes the Client type and one method per routine, plus the
// asynchronous wrappers when enabled.
func (g *Generator) UserImpl(w io.Writer, s *sema.Subsystem) error {
	if err := g.check(s); err != nil {
		return err
	}
	e := g.emitter(s)
	if err := clientTmpl.Execute(&e.out, s.Name); err != nil {
		return &codegen.Error{Kind: codegen.InvalidTemplate, Detail: "client", Err: err}
	}
	for _, r := range s.Routines {
		e.clientMethod(r)
		if !g.opts.Async {
			continue
		}
		data := asyncData{Method: exported(r.Name), Args: userArgs(r), Results: results(r)}
		if err := asyncTmpl.Execute(&e.out, data); err != nil {
			return &codegen.Error{Kind: codegen.InvalidTemplate, Routine: r.Name, Detail: "async", Err: err}
		}
	}
	return e.flush(w)
}

func (e *emitter) fail(code string) {
	e.printf("\t\terr = %s\n\t\treturn\n\t}\n", code)
}

func (e *emitter) clientMethod(r *sema.Routine) {
	n := exported(r.Name)
	res := results(r)
	e.printf("// %s sends %s", n, r.Name)
	if r.IsSimple {
		e.printf(" without waiting for a reply.\n")
	} else {
		e.printf(" and waits for the reply.\n")
	}
	e.printf("func (c *Client) %s%s {\n", n, signature(userArgs(r), res))

	remote := "c.Port"
	if p, _ := r.HeaderPort(r.RequestPort); !p.Implicit {
		remote = local(p.Name)
	}
	reply := "machabi.PortNull"
	rp, explicit := replyPortParam(r)
	switch {
	case explicit:
		reply = local(rp.Name)
	case !r.IsSimple:
		reply = "c.Transport.ReplyPort()"
	}

	e.clientBounds(r)
	e.printf("\treq := New%sRequest(%s, %s)\n", n, remote, reply)
	if p, _ := r.HeaderPort(r.RequestPort); p.Type.IsPolymorphic {
		e.printf("\treq.Head.Bits = machabi.MsgBits(%sPoly, machabi.MsgTypeName(req.Head.Bits>>8&0xff))\n", local(p.Name))
	}
	if explicit && rp.Type.IsPolymorphic {
		e.printf("\treq.Head.Bits = machabi.MsgBits(machabi.MsgTypeName(req.Head.Bits&0xff), %sPoly)\n", local(rp.Name))
	}
	e.packRequest(r)

	timeout := "c.Timeout"
	if r.WaitTime != "" {
		timeout = fmt.Sprintf("time.Duration(%s) * time.Millisecond", local(r.WaitTime))
	}
	opts := "machabi.SendOptions{Timeout: " + timeout
	if r.MsgOption != "" {
		opts += fmt.Sprintf(", Option: int32(%s)", local(r.MsgOption))
	}
	opts += "}"

	if r.IsSimple {
		e.printf("\terr = c.Transport.Send(req, %s)\n\treturn\n}\n\n", opts)
		return
	}
	e.printf("\treply := new(%sReply)\n", n)
	e.printf("\tif err = c.Transport.SendReceive(req, reply, %s); err != nil {\n\t\treturn\n\t}\n", opts)
	e.printf("\tif reply.Head.ID != %sReplyID {\n", n)
	e.fail("machabi.MigReplyMismatch")
	e.printf("\tif err = reply.RetCode.Err(); err != nil {\n\t\treturn\n\t}\n")
	e.checkMessage("reply", *r.Reply, func() { e.fail("machabi.MigTypeError") })
	e.copyBack(r)
	e.printf("\treturn\n}\n\n")
}

// clientBounds rejects caller values that do not fit their wire buffer
// before anything is copied.
func (e *emitter) clientBounds(r *sema.Routine) {
	for _, f := range r.Request.Fields {
		if f.Kind != sema.FieldData {
			continue
		}
		if max, ok := boundCheck(f.Resolved); ok {
			e.printf("\tif len(%s) > %d {\n", local(f.Arg), max)
			e.fail("machabi.ErrArrayTooLarge")
		}
	}
}

func (e *emitter) packRequest(r *sema.Routine) {
	for _, f := range r.Request.Fields {
		v := local(f.Arg)
		name := exported(f.Name)
		rt := f.Resolved
		switch f.Kind {
		case sema.FieldDescriptor:
			if f.IsPolymorphic {
				e.printf("\treq.%s.Name = %sPoly\n", name, v)
			}
			if variableNumber(rt) {
				e.printf("\treq.%s.Number = %s\n", name, lenExpr(v, rt))
			}
		case sema.FieldCount:
			e.printf("\treq.%s = uint32(len(%s))\n", name, v)
		case sema.FieldData:
			if rt.IsArray && f.Inline {
				e.printf("\tcopy(req.%s[:], %s)\n", name, v)
			} else {
				e.printf("\treq.%s = %s\n", name, v)
			}
		}
	}
}

// checkMessage validates the descriptors and counts of a received message
// held in variable m; bad calls onFail, which must return.
func (e *emitter) checkMessage(m string, l sema.MessageLayout, onFail func()) {
	for _, f := range l.Fields {
		if f.Kind == sema.FieldDescriptor {
			e.printf("\tif %s.%s.Check(%s, %t) != nil {\n", m, exported(f.Name), descriptorLit(f), variableNumber(f.Resolved))
			onFail()
		}
	}
	for i, f := range l.Fields {
		if f.Kind != sema.FieldData {
			continue
		}
		rt := f.Resolved
		v := m + "." + exported(f.Name)
		switch {
		case rt.IsArray:
			cnt, _ := l.CountFor(i)
			c := m + "." + exported(cnt.Name)
			if rt.Bounded() {
				e.printf("\tif %s > %d {\n", c, rt.MaxElements)
				onFail()
			}
			if !f.Inline {
				e.printf("\tif int(%s) != len(%s) {\n", c, v)
				onFail()
			}
		case rt.IsString:
			e.printf("\tif len(%s) > %d {\n", v, rt.Number)
			onFail()
		}
	}
}

// received spells the value a receiver hands on for the data field at i
// of layout l held in m.
func received(m string, l sema.MessageLayout, i int) string {
	f := l.Fields[i]
	v := m + "." + exported(f.Name)
	if f.Resolved.IsArray && f.Inline {
		cnt, _ := l.CountFor(i)
		return fmt.Sprintf("%s[:%s.%s]", v, m, exported(cnt.Name))
	}
	return v
}

func (e *emitter) copyBack(r *sema.Routine) {
	l := *r.Reply
	for i, f := range l.Fields {
		switch f.Kind {
		case sema.FieldDescriptor:
			if f.IsPolymorphic {
				e.printf("\t%s = reply.%s.Name\n", polyOutName(f.Arg), exported(f.Name))
			}
		case sema.FieldData:
			if f.Resolved.IsArray && f.Inline {
				e.printf("\t%s = append([]%s(nil), %s...)\n", outName(f.Arg), elemType(f.Resolved), received("reply", l, i))
			} else {
				e.printf("\t%s = %s\n", outName(f.Arg), received("reply", l, i))
			}
		}
	}
}
