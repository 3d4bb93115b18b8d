// Package ast provides AST printing functionality
package ast

import (
	"fmt"
	"io"
	"strings"
)

// Printer re-emits an AST as .defs source text. Reparsing the output
// yields an equal tree, line numbers aside.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new AST printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("\t", p.indent))
}

// PrintSubsystem prints a complete subsystem
func (p *Printer) PrintSubsystem(s *Subsystem) {
	fmt.Fprint(p.w, "subsystem")
	for _, m := range s.Modifiers {
		fmt.Fprintf(p.w, " %s", m)
	}
	fmt.Fprintf(p.w, " %s %d;\n", s.Name, s.Base)

	for _, stmt := range s.Statements {
		fmt.Fprintln(p.w)
		p.printStatement(stmt)
	}
}

func (p *Printer) printStatement(stmt Statement) {
	switch st := stmt.(type) {
	case TypeDecl:
		fmt.Fprintf(p.w, "type %s = %s;\n", st.Name, TypeString(st.Type))
	case Routine:
		p.printRoutine(st)
	case Import:
		if st.System {
			fmt.Fprintf(p.w, "%s <%s>;\n", st.Kind, st.File)
		} else {
			fmt.Fprintf(p.w, "%s %s;\n", st.Kind, quote(st.File))
		}
	case Skip:
		fmt.Fprintln(p.w, "skip;")
	case PrefixDecl:
		fmt.Fprintf(p.w, "%s %s;\n", st.Kind, st.Prefix)
	case DemuxDecl:
		fmt.Fprintf(p.w, "serverdemux %s;\n", st.Name)
	default:
		fmt.Fprintf(p.w, "/* unknown statement %T */\n", stmt)
	}
}

func (p *Printer) printRoutine(r Routine) {
	if len(r.Args) == 0 {
		fmt.Fprintf(p.w, "%s %s();\n", r.Kind, r.Name)
		return
	}
	fmt.Fprintf(p.w, "%s %s(\n", r.Kind, r.Name)
	p.indent++
	for i, arg := range r.Args {
		p.writeIndent()
		fmt.Fprint(p.w, ArgumentString(arg))
		if i < len(r.Args)-1 {
			fmt.Fprintln(p.w, ";")
		}
	}
	p.indent--
	fmt.Fprintln(p.w, ");")
}

// ArgumentString renders one argument as it would appear in source.
func ArgumentString(arg Argument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-11s %s : %s", arg.Direction, arg.Name, TypeString(arg.Type))
	switch arg.Flags.Long {
	case LongForced:
		b.WriteString(", IsLong")
	case LongForbidden:
		b.WriteString(", IsNotLong")
	}
	switch arg.Flags.Dealloc {
	case Dealloc:
		b.WriteString(", Dealloc")
	case NotDealloc:
		b.WriteString(", NotDealloc")
	}
	if arg.Flags.ServerCopy {
		b.WriteString(", ServerCopy")
	}
	if arg.Flags.CountInOut {
		b.WriteString(", CountInOut")
	}
	return b.String()
}

// TypeString renders a type specification as source text.
func TypeString(t TypeSpec) string {
	switch ts := t.(type) {
	case BasicType:
		return ts.Name
	case ArrayType:
		return fmt.Sprintf("array[%s] of %s", sizeString(ts.Size), TypeString(ts.Elem))
	case PointerType:
		return "^" + TypeString(ts.Elem)
	case StructType:
		var b strings.Builder
		b.WriteString("struct {")
		for _, f := range ts.Fields {
			fmt.Fprintf(&b, " %s : %s;", f.Name, TypeString(f.Type))
		}
		b.WriteString(" }")
		return b.String()
	case StructArrayType:
		return fmt.Sprintf("struct[%d] of %s", ts.Count, TypeString(ts.Elem))
	case CStringType:
		switch {
		case ts.Varying && ts.Max == 0:
			return "c_string[*]"
		case ts.Varying:
			return fmt.Sprintf("c_string[*:%d]", ts.Max)
		}
		return fmt.Sprintf("c_string[%d]", ts.Max)
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", t)
}

func sizeString(s ArraySize) string {
	switch s.Kind {
	case SizeFixed:
		return fmt.Sprintf("%d", s.N)
	case SizeVariableMax:
		return fmt.Sprintf("*:%d", s.N)
	}
	return ""
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}
