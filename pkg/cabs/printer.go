package cabs

import (
	"fmt"
	"io"
	"strings"
)

// Printer writes C source. Indentation is one tab per level.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new C printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// In and Out change the indentation level.
func (p *Printer) In() { p.indent++ }
func (p *Printer) Out() { p.indent-- }

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("\t", p.indent))
}

// Line prints one indented line.
func (p *Printer) Line(format string, args ...interface{}) {
	if format == "" {
		fmt.Fprintln(p.w)
		return
	}
	p.writeIndent()
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintln(p.w)
}

// Raw prints text without indentation, for preprocessor lines.
func (p *Printer) Raw(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintln(p.w)
}

// Comment prints a one-line block comment.
func (p *Printer) Comment(text string) {
	p.Line("/* %s */", text)
}

// PrintStruct prints a typedef'd struct.
func (p *Printer) PrintStruct(s StructDef) {
	p.Line("typedef struct {")
	p.In()
	for _, f := range s.Fields {
		if f.Dim > 0 {
			p.Line("%s %s[%d];", f.Type, f.Name, f.Dim)
		} else {
			p.Line("%s;", Param{Type: f.Type, Name: f.Name})
		}
	}
	p.Out()
	p.Line("} %s;", s.Name)
}

func (p *Printer) printHead(f FunDecl, end string) {
	if f.Storage != "" {
		p.Line("%s %s %s", f.Storage, f.ReturnType, f.Name)
	} else {
		p.Line("%s %s", f.ReturnType, f.Name)
	}
	if len(f.Params) == 0 {
		p.Line("(void)%s", end)
		return
	}
	p.Line("(")
	p.In()
	for i, param := range f.Params {
		sep := ","
		if i == len(f.Params)-1 {
			sep = ""
		}
		p.Line("%s%s", param, sep)
	}
	p.Out()
	p.Line(")%s", end)
}

// PrintPrototype prints a declaration ending in ';'.
func (p *Printer) PrintPrototype(f FunDecl) {
	p.printHead(f, ";")
}

// PrintFunHead prints the head of a definition; the caller prints the
// body.
func (p *Printer) PrintFunHead(f FunDecl) {
	p.printHead(f, "")
}

// PrintVar prints a variable definition.
func (p *Printer) PrintVar(v VarDef) {
	decl := Param{Type: v.Type, Name: v.Name}.String()
	if v.Storage != "" {
		decl = v.Storage + " " + decl
	}
	if v.Init == nil {
		p.Line("%s;", decl)
		return
	}
	p.Line("%s = {", decl)
	p.printInit(v.Init)
	p.Line("};")
}

func (p *Printer) printInit(items []InitItem) {
	p.In()
	for i, it := range items {
		sep := ","
		if i == len(items)-1 {
			sep = ""
		}
		if it.Group != nil {
			p.Line("{")
			p.printInit(it.Group)
			p.Line("}%s", sep)
			continue
		}
		if it.Label != "" {
			p.Line("/* %s = */ %s%s", it.Label, it.Value, sep)
		} else {
			p.Line("%s%s", it.Value, sep)
		}
	}
	p.Out()
}
