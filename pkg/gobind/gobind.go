// Package gobind generates memory-safe Go bindings for a subsystem: typed
// message structs, a client whose methods check array bounds before
// copying, and optionally a server interface with a dispatcher.
package gobind

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"strings"

	mapset "github.com/deckarep/golang-set"

	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// DefaultRuntimeImport is the import path of the runtime package the
// bindings are written against.
const DefaultRuntimeImport = "github.com/raymyers/ralph-mig/pkg/machabi"

// Options configures the Go generator.
type Options struct {
	// Package overrides the package clause; the default is derived from
	// the subsystem name.
	Package string
	// RuntimeImport is the import path of the machabi runtime.
	RuntimeImport string
	// Async adds <Routine>Async wrappers returning a result channel.
	Async bool
	// ServerInterface adds the Server interface and Dispatch.
	ServerInterface bool
}

// Generator emits Go bindings.
type Generator struct {
	opts Options
}

// New returns a Go generator.
func New(opts Options) *Generator {
	if opts.RuntimeImport == "" {
		opts.RuntimeImport = DefaultRuntimeImport
	}
	return &Generator{opts: opts}
}

var _ codegen.Generator = (*Generator)(nil)

// FileName is the name of the single Go artifact.
func FileName(s *sema.Subsystem) string {
	return s.Name + "_bindings.go"
}

// File renders the complete bindings file: the client parts always, the
// server parts when enabled.
func (g *Generator) File(s *sema.Subsystem) (codegen.Artifact, error) {
	if err := g.check(s); err != nil {
		return codegen.Artifact{}, err
	}
	var buf bytes.Buffer
	g.preamble(&buf, s)
	parts := []codegen.Part{codegen.PartUserHeader, codegen.PartUserImpl}
	if g.opts.ServerInterface {
		parts = append(parts, codegen.PartServerHeader, codegen.PartServerImpl)
	}
	for _, p := range parts {
		data, err := codegen.Render(g, s, p)
		if err != nil {
			return codegen.Artifact{}, err
		}
		buf.Write(data)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return codegen.Artifact{}, &codegen.Error{Kind: codegen.InvalidTemplate, Detail: FileName(s), Err: err}
	}
	return codegen.Artifact{Name: FileName(s), Data: src}, nil
}

func (g *Generator) packageName(s *sema.Subsystem) string {
	if g.opts.Package != "" {
		return g.opts.Package
	}
	return packageName(s.Name)
}

func (g *Generator) preamble(w io.Writer, s *sema.Subsystem) {
	fmt.Fprintf(w, "// Code generated by ralph-mig from subsystem %s. DO NOT EDIT.\n\n", s.Name)
	fmt.Fprintf(w, "package %s\n\n", g.packageName(s))
	fmt.Fprintf(w, "import (\n")
	if g.opts.Async {
		fmt.Fprintf(w, "\t\"context\"\n")
	}
	fmt.Fprintf(w, "\t\"time\"\n\n")
	fmt.Fprintf(w, "\tmachabi %q\n", g.opts.RuntimeImport)
	fmt.Fprintf(w, ")\n\n")
}

// check rejects subsystems whose generated identifiers would collide.
func (g *Generator) check(s *sema.Subsystem) error {
	if err := codegen.CheckSupported(s); err != nil {
		return err
	}
	names := mapset.NewSetFromSlice([]interface{}{
		"Client", "Server", "Dispatch", "SubsystemBase", "SubsystemCount",
	})
	claim := func(routine, name string) error {
		if !names.Add(name) {
			return &codegen.Error{Kind: codegen.UnsupportedFeature, Routine: routine,
				Detail: "generated Go identifier " + name + " is already in use"}
		}
		return nil
	}
	for _, t := range s.StructTypes() {
		if err := claim("", exported(t.Name)); err != nil {
			return err
		}
	}
	for _, r := range s.Routines {
		n := exported(r.Name)
		for _, id := range []string{n + "ID", n + "ReplyID", n + "Request", n + "Reply",
			n + "RequestSize", n + "ReplySize", "New" + n + "Request", "New" + n + "Reply",
			n + "Async", n + "Result", "dispatch" + n} {
			if err := claim(r.Name, id); err != nil {
				return err
			}
		}
		layouts := []sema.MessageLayout{r.Request}
		if r.Reply != nil {
			layouts = append(layouts, *r.Reply)
		}
		for _, l := range layouts {
			fields := mapset.NewSet("Head")
			for _, f := range l.Fields {
				if !fields.Add(exported(f.Name)) {
					return &codegen.Error{Kind: codegen.UnsupportedFeature, Routine: r.Name,
						Detail: "message field " + f.Name + " maps to a Go field already in use"}
				}
			}
		}
	}
	return nil
}

// emitter accumulates one section of generated source.
type emitter struct {
	out  strings.Builder
	s    *sema.Subsystem
	opts Options
}

func (g *Generator) emitter(s *sema.Subsystem) *emitter {
	return &emitter{s: s, opts: g.opts}
}

func (e *emitter) printf(format string, args ...interface{}) {
	fmt.Fprintf(&e.out, format, args...)
}

func (e *emitter) flush(w io.Writer) error {
	if _, err := io.WriteString(w, e.out.String()); err != nil {
		return &codegen.Error{Kind: codegen.IO, Err: err}
	}
	return nil
}

var msgTypeNames = map[ipctypes.MsgType]string{
	ipctypes.TypeBoolean:      "TypeBoolean",
	ipctypes.TypeInteger16:    "TypeInteger16",
	ipctypes.TypeInteger32:    "TypeInteger32",
	ipctypes.TypeChar:         "TypeChar",
	ipctypes.TypeByte:         "TypeByte",
	ipctypes.TypeReal:         "TypeReal",
	ipctypes.TypeInteger64:    "TypeInteger64",
	ipctypes.TypeStringC:      "TypeStringC",
	ipctypes.TypePortName:     "TypePortName",
	ipctypes.TypeMoveReceive:  "TypeMoveReceive",
	ipctypes.TypeMoveSend:     "TypeMoveSend",
	ipctypes.TypeMoveSendOnce: "TypeMoveSendOnce",
	ipctypes.TypeCopySend:     "TypeCopySend",
	ipctypes.TypeMakeSend:     "TypeMakeSend",
	ipctypes.TypeMakeSendOnce: "TypeMakeSendOnce",
	ipctypes.TypePolymorphic:  "TypePolymorphic",
}

// msgTypeGo spells a tag as a runtime constant.
func msgTypeGo(t ipctypes.MsgType) string {
	if n, ok := msgTypeNames[t]; ok {
		return "machabi." + n
	}
	return fmt.Sprintf("machabi.MsgTypeName(%d)", uint32(t))
}

// valueType is the Go type of a non-array value.
func valueType(rt *ipctypes.ResolvedType) string {
	if rt.IsStruct {
		return exported(rt.GoType)
	}
	return rt.GoType
}

func elemType(rt *ipctypes.ResolvedType) string {
	if rt.Elem != nil {
		return valueType(rt.Elem)
	}
	return rt.GoType
}

// paramType is the Go type callers pass or receive for a value of rt.
func paramType(rt *ipctypes.ResolvedType) string {
	switch {
	case rt.IsArray:
		return "[]" + elemType(rt)
	case rt.IsString:
		return "string"
	}
	return valueType(rt)
}

// fieldType is the Go type of a message field.
func fieldType(f sema.MessageField) string {
	switch f.Kind {
	case sema.FieldDescriptor:
		return "machabi.TypeDescriptor"
	case sema.FieldRetCode:
		return "machabi.KernReturn"
	case sema.FieldCount:
		return "uint32"
	}
	rt := f.Resolved
	if rt.IsArray && f.Inline {
		return fmt.Sprintf("[%d]%s", rt.MaxElements, elemType(rt))
	}
	return paramType(rt)
}

// structFieldType is the Go type of a member of a declared struct.
func structFieldType(ft *ipctypes.ResolvedType) string {
	switch {
	case ft.IsArray:
		return fmt.Sprintf("[%d]%s", ft.MaxElements, elemType(ft))
	case ft.IsString:
		return fmt.Sprintf("[%d]byte", ft.Number)
	}
	return valueType(ft)
}

func descriptorNumber(rt *ipctypes.ResolvedType) uint32 {
	if rt.IsArray && rt.Array == ipctypes.UnboundedArray {
		return 0
	}
	return rt.DescriptorNumber()
}

func variableNumber(rt *ipctypes.ResolvedType) bool {
	return rt.IsArray && rt.Array != ipctypes.FixedArray
}

// descriptorLit spells the descriptor a sender attaches to f.
func descriptorLit(f sema.MessageField) string {
	rt := f.Resolved
	parts := []string{
		"Name: " + msgTypeGo(f.MsgType),
		fmt.Sprintf("Size: %d", rt.Bits),
		fmt.Sprintf("Number: %d", descriptorNumber(rt)),
	}
	if f.Inline {
		parts = append(parts, "Inline: true")
	}
	if f.LongForm {
		parts = append(parts, "LongForm: true")
	}
	if f.Deallocate {
		parts = append(parts, "Deallocate: true")
	}
	return "machabi.TypeDescriptor{" + strings.Join(parts, ", ") + "}"
}

// lenExpr scales a Go length to a descriptor number.
func lenExpr(v string, rt *ipctypes.ResolvedType) string {
	if rt.Number > 1 {
		return fmt.Sprintf("uint32(len(%s)) * %d", v, rt.Number)
	}
	return fmt.Sprintf("uint32(len(%s))", v)
}

// boundCheck reports whether a caller-supplied value needs a length check
// before it is copied into a message.
func boundCheck(rt *ipctypes.ResolvedType) (uint32, bool) {
	switch {
	case rt.IsArray && rt.Bounded():
		return rt.MaxElements, true
	case rt.IsString:
		return rt.Number, true
	}
	return 0, false
}
