package cgen

import (
	"io"

	"github.com/raymyers/ralph-mig/pkg/cabs"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

func openHeader(p *cabs.Printer, s *sema.Subsystem, guard string, server bool) {
	p.Raw("#ifndef\t%s", guard)
	p.Raw("#define\t%s", guard)
	p.Line("")
	p.Raw("/* Module %s */", s.Name)
	p.Line("")
	p.Raw("#include <mach/kern_return.h>")
	p.Raw("#include <mach/port.h>")
	p.Raw("#include <mach/message.h>")
	p.Line("")
	printImports(p, s, server)
	p.Raw("#ifdef __cplusplus")
	p.Raw("extern \"C\" {")
	p.Raw("#endif")
	p.Line("")
	printStructTypes(p, s)
}

func closeHeader(p *cabs.Printer, guard string) {
	p.Raw("#ifdef __cplusplus")
	p.Raw("}")
	p.Raw("#endif")
	p.Line("")
	p.Raw("#endif\t/* not defined(%s) */", guard)
}

// UserHeader writes <name>.h: one prototype per client function.
func (g *Generator) UserHeader(w io.Writer, s *sema.Subsystem) error {
	return emit(w, s, func(p *cabs.Printer) {
		guard := "_" + s.Name + "_user_"
		banner(p, s, "Client interface")
		openHeader(p, s, guard, false)
		for _, r := range s.Routines {
			kind := "Routine"
			if r.IsSimple {
				kind = "SimpleRoutine"
			}
			p.Comment(kind + " " + r.Name)
			p.PrintPrototype(userDecl(r, "extern"))
			p.Line("")
		}
		closeHeader(p, guard)
	})
}

// ServerHeader writes <name>Server.h: the server functions the user
// supplies and the demultiplexer.
func (g *Generator) ServerHeader(w io.Writer, s *sema.Subsystem) error {
	return emit(w, s, func(p *cabs.Printer) {
		guard := "_" + s.Name + "_server_"
		banner(p, s, "Server interface")
		openHeader(p, s, guard, true)
		for _, r := range s.Routines {
			p.Comment("Server function for " + r.Name)
			p.PrintPrototype(serverDecl(r))
			p.Line("")
		}
		p.Comment("Demultiplexer")
		p.PrintPrototype(demuxDecl(s, "extern"))
		p.Line("")
		closeHeader(p, guard)
	})
}

func demuxDecl(s *sema.Subsystem, storage string) cabs.FunDecl {
	return cabs.FunDecl{
		Storage:    storage,
		ReturnType: "boolean_t",
		Name:       s.ServerDemux,
		Params: []cabs.Param{
			{Type: "mach_msg_header_t *", Name: "InHeadP"},
			{Type: "mach_msg_header_t *", Name: "OutHeadP"},
		},
	}
}
