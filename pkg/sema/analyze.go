// Package sema resolves the types of a parsed subsystem, numbers its
// routines and computes the request and reply layout of each routine.
package sema

import (
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
)

// ReplyOffset is added to a request id to form its reply id.
const ReplyOffset = 100

// Options configures analysis.
type Options struct {
	// MaxMessageSize rejects layouts whose fixed size exceeds it; 0
	// disables the check.
	MaxMessageSize uint32
	// Types is the builtin table to start from. It is cloned, never
	// written. Nil means ipctypes.NewBuiltinTable().
	Types *ipctypes.Table
}

// Import is an import statement carried through to the generators.
type Import struct {
	Kind   string `yaml:"kind"` // import, uimport or simport
	File   string `yaml:"file"`
	System bool   `yaml:"system,omitempty"`
}

// ForUser reports whether the client side includes the file.
func (i Import) ForUser() bool { return i.Kind != "simport" }

// ForServer reports whether the server side includes the file.
func (i Import) ForServer() bool { return i.Kind != "uimport" }

// Param is one parameter of the generated client or server function.
type Param struct {
	Name      string                 `yaml:"name"`
	Direction ast.Direction          `yaml:"-"`
	Dir       string                 `yaml:"direction"`
	TypeName  string                 `yaml:"type"`
	Type      *ipctypes.ResolvedType `yaml:"-"`
	Flags     ast.IpcFlags           `yaml:"-"`
	// Implicit marks the server_port parameter supplied when a routine
	// declares no requestport.
	Implicit bool `yaml:"implicit,omitempty"`
}

// OnUserSide reports whether the client function takes the parameter.
func (p Param) OnUserSide() bool {
	return p.Direction != ast.MsgSeqno && p.Direction != ast.SReplyPort
}

// OnServerSide reports whether the server function takes the parameter.
func (p Param) OnServerSide() bool {
	switch p.Direction {
	case ast.WaitTime, ast.MsgOption, ast.UReplyPort:
		return false
	}
	return true
}

// IsBody reports whether the parameter travels in the message body.
func (p Param) IsBody() bool { return !p.Direction.IsHeaderRole() }

// LongForm reports whether the parameter's descriptor is long-form.
func (p Param) LongForm() bool {
	switch p.Flags.Long {
	case ast.LongForced:
		return true
	case ast.LongForbidden:
		return false
	}
	return p.Type.NeedsLongForm()
}

// Deallocates reports whether the sender gives up the data.
func (p Param) Deallocates() bool { return p.Flags.Dealloc == ast.Dealloc }

// Routine is an analyzed routine or simpleroutine.
type Routine struct {
	Name        string         `yaml:"name"`
	Number      uint32         `yaml:"number"`
	ReplyNumber uint32         `yaml:"reply_number,omitempty"`
	IsSimple    bool           `yaml:"is_simple"`
	Params      []Param        `yaml:"params"`
	Request     MessageLayout  `yaml:"request"`
	Reply       *MessageLayout `yaml:"reply,omitempty"`
	UserFunc    string         `yaml:"user_func"`
	ServerFunc  string         `yaml:"server_func"`
	// Header-role parameter names. RequestPort is always set; the others
	// are empty when the runtime default applies.
	RequestPort string `yaml:"request_port"`
	ReplyPort   string `yaml:"reply_port,omitempty"`
	SReplyPort  string `yaml:"sreply_port,omitempty"`
	UReplyPort  string `yaml:"ureply_port,omitempty"`
	WaitTime    string `yaml:"wait_time,omitempty"`
	MsgOption   string `yaml:"msg_option,omitempty"`
	MsgSeqno    string `yaml:"msg_seqno,omitempty"`
	Line        int    `yaml:"-"`
}

// Param returns the parameter called name.
func (r *Routine) Param(name string) (Param, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// HeaderPort returns the parameter named by one of the header-role
// fields, if set.
func (r *Routine) HeaderPort(name string) (Param, bool) {
	if name == "" {
		return Param{}, false
	}
	return r.Param(name)
}

// Subsystem is the analyzed form of one definition file.
type Subsystem struct {
	Name         string `yaml:"name"`
	Base         uint32 `yaml:"base"`
	ServerPrefix string `yaml:"server_prefix,omitempty"`
	UserPrefix   string `yaml:"user_prefix,omitempty"`
	// ServerDemux is the demultiplexer's name, <name>_server by default.
	ServerDemux  string                   `yaml:"server_demux"`
	KernelUser   bool                     `yaml:"kernel_user,omitempty"`
	KernelServer bool                     `yaml:"kernel_server,omitempty"`
	Imports      []Import                 `yaml:"imports,omitempty"`
	Types        []*ipctypes.ResolvedType `yaml:"types,omitempty"`
	Routines     []*Routine               `yaml:"routines"`
	// MessageCount is the width of the id range, skips included.
	MessageCount uint32 `yaml:"message_count"`
}

// Routine returns the routine called name.
func (s *Subsystem) Routine(name string) (*Routine, bool) {
	for _, r := range s.Routines {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// StructTypes returns the declared struct types whose definitions the
// generators emit.
func (s *Subsystem) StructTypes() []*ipctypes.ResolvedType {
	var out []*ipctypes.ResolvedType
	for _, t := range s.Types {
		if t.IsStruct && t.CType == t.Name {
			out = append(out, t)
		}
	}
	return out
}

// Analyze resolves types, numbers routines and computes layouts. The
// input is not modified; the first error stops analysis.
func Analyze(s *ast.Subsystem, opts Options) (*Subsystem, error) {
	builtin := opts.Types
	if builtin == nil {
		builtin = ipctypes.NewBuiltinTable()
	}
	a := &analyzer{
		opts:    opts,
		res:     &resolver{table: builtin.Clone()},
		numbers: mapset.NewSet(),
		out: &Subsystem{
			Name:         s.Name,
			Base:         s.Base,
			ServerDemux:  s.Name + "_server",
			KernelUser:   s.HasModifier(ast.KernelUser),
			KernelServer: s.HasModifier(ast.KernelServer),
		},
	}
	if err := a.run(s); err != nil {
		return nil, err
	}
	return a.out, nil
}

type analyzer struct {
	opts    Options
	res     *resolver
	numbers mapset.Set
	out     *Subsystem
	index   uint32
}

func (a *analyzer) run(s *ast.Subsystem) error {
	// Types are folded first, in declaration order, so routines may use
	// any declared type.
	for _, stmt := range s.Statements {
		decl, ok := stmt.(ast.TypeDecl)
		if !ok {
			continue
		}
		rt, err := a.res.declare(decl)
		if err != nil {
			return err
		}
		a.out.Types = append(a.out.Types, rt)
	}

	for _, stmt := range s.Statements {
		switch st := stmt.(type) {
		case ast.Import:
			a.out.Imports = append(a.out.Imports, Import{Kind: st.Kind.String(), File: st.File, System: st.System})
		case ast.PrefixDecl:
			if st.Kind == ast.UserPrefix {
				a.out.UserPrefix = st.Prefix
			} else {
				a.out.ServerPrefix = st.Prefix
			}
		case ast.DemuxDecl:
			a.out.ServerDemux = st.Name
		case ast.Skip:
			if _, err := a.nextNumber(st.Line, ""); err != nil {
				return err
			}
		case ast.Routine:
			r, err := a.routine(st)
			if err != nil {
				return err
			}
			a.out.Routines = append(a.out.Routines, r)
		}
	}
	a.out.MessageCount = a.index
	return nil
}

// nextNumber hands out base+index. The demux range [base, base+count)
// must stay within 32 bits, so the last usable id is MaxUint32-1.
func (a *analyzer) nextNumber(line int, routine string) (uint32, error) {
	wide := uint64(a.out.Base) + uint64(a.index)
	if wide >= math.MaxUint32 {
		return 0, &Error{Kind: DuplicateRoutineNumber, Number: a.out.Base, Routine: routine, Line: line,
			Detail: fmt.Sprintf("base %d plus index %d overflows 32 bits", a.out.Base, a.index)}
	}
	n := uint32(wide)
	a.index++
	if a.numbers.Contains(n) {
		return 0, &Error{Kind: DuplicateRoutineNumber, Number: n, Routine: routine, Line: line}
	}
	a.numbers.Add(n)
	return n, nil
}

func (a *analyzer) routine(st ast.Routine) (*Routine, error) {
	num, err := a.nextNumber(st.Line, st.Name)
	if err != nil {
		return nil, err
	}
	r := &Routine{
		Name:       st.Name,
		Number:     num,
		IsSimple:   st.IsSimple(),
		UserFunc:   a.out.UserPrefix + st.Name,
		ServerFunc: a.out.ServerPrefix + st.Name + "_impl",
		Line:       st.Line,
	}
	if !r.IsSimple {
		if uint64(num)+ReplyOffset > math.MaxUint32 {
			return nil, &Error{Kind: DuplicateRoutineNumber, Number: num, Routine: st.Name, Line: st.Line,
				Detail: fmt.Sprintf("reply id %d+%d overflows 32 bits", num, ReplyOffset)}
		}
		r.ReplyNumber = num + ReplyOffset
	}

	for _, arg := range st.Args {
		p, err := a.param(st, arg)
		if err != nil {
			return nil, err
		}
		if err := a.bindHeaderRole(r, p, arg.Line); err != nil {
			return nil, err
		}
		r.Params = append(r.Params, p)
	}
	if r.RequestPort == "" {
		mp, _ := a.res.table.Lookup("mach_port_t")
		r.Params = append([]Param{{
			Name:      "server_port",
			Direction: ast.RequestPort,
			Dir:       ast.RequestPort.String(),
			TypeName:  mp.Name,
			Type:      mp,
			Implicit:  true,
		}}, r.Params...)
		r.RequestPort = "server_port"
	}

	var req layoutBuilder
	for _, p := range r.Params {
		if p.IsBody() && p.Direction.InRequest() {
			req.arg(p, false)
		}
	}
	r.Request = req.finish()
	if err := a.checkSize(r, r.Request); err != nil {
		return nil, err
	}

	if !r.IsSimple {
		var rep layoutBuilder
		kr, _ := a.res.table.Lookup("kern_return_t")
		rep.retCode(kr)
		for _, p := range r.Params {
			if p.IsBody() && p.Direction.InReply() {
				rep.arg(p, true)
			}
		}
		reply := rep.finish()
		if err := a.checkSize(r, reply); err != nil {
			return nil, err
		}
		r.Reply = &reply
	}
	return r, nil
}

func (a *analyzer) checkSize(r *Routine, l MessageLayout) error {
	if a.opts.MaxMessageSize > 0 && l.FixedSize > a.opts.MaxMessageSize {
		return &Error{Kind: MessageTooLarge, Routine: r.Name, Size: l.FixedSize, Max: a.opts.MaxMessageSize, Line: r.Line}
	}
	return nil
}

// param resolves one argument and checks its flags against its type.
func (a *analyzer) param(st ast.Routine, arg ast.Argument) (Param, error) {
	rt, err := a.res.resolve(arg.Type, "")
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Routine, e.Argument = st.Name, arg.Name
			if e.Line == 0 {
				e.Line = arg.Line
			}
		}
		return Param{}, err
	}
	p := Param{
		Name:      arg.Name,
		Direction: arg.Direction,
		Dir:       arg.Direction.String(),
		TypeName:  rt.Name,
		Type:      rt,
		Flags:     arg.Flags,
	}
	mismatch := func(detail string) error {
		return &Error{Kind: TypeMismatch, Routine: st.Name, Argument: arg.Name, Type: rt.Name, Detail: detail, Line: arg.Line}
	}

	switch {
	case arg.Direction.IsPortRole():
		if !rt.IsPort() || rt.IsArray {
			return p, &Error{Kind: InvalidPortDisposition, Routine: st.Name, Argument: arg.Name, Type: rt.Name,
				Detail: arg.Direction.String() + " must have a port type", Line: arg.Line}
		}
		if rt.MsgType == ipctypes.TypeMoveReceive {
			return p, &Error{Kind: InvalidPortDisposition, Routine: st.Name, Argument: arg.Name, Type: rt.Name,
				Detail: "a receive right cannot name a message header port", Line: arg.Line}
		}
	case arg.Direction.IsHeaderRole():
		if rt.IsArray || rt.IsString || rt.IsStruct || rt.IsPort() || rt.Size != ipctypes.Fixed(4) {
			return p, mismatch(arg.Direction.String() + " must be a 32-bit scalar")
		}
	}

	if st.IsSimple() && arg.Direction.InReply() {
		return p, mismatch("a simpleroutine has no reply to carry " + arg.Direction.String() + " arguments")
	}
	if arg.Flags.CountInOut && (!rt.IsArray || !arg.Direction.InReply()) {
		return p, mismatch("CountInOut applies to out or inout arrays")
	}
	if arg.Flags.ServerCopy && (!rt.IsArray || !arg.Direction.InRequest()) {
		return p, mismatch("ServerCopy applies to in or inout arrays")
	}
	if arg.Flags.Dealloc == ast.Dealloc && !rt.OutOfLine && !rt.MsgType.IsPortRight() {
		return p, mismatch("Dealloc applies to out-of-line data and port rights")
	}
	if arg.Flags.Long == ast.LongForbidden && rt.NeedsLongForm() {
		return p, mismatch(fmt.Sprintf("IsNotLong given but %s needs a long-form descriptor", rt.Name))
	}
	return p, nil
}

// bindHeaderRole records a header-role parameter on the routine.
func (a *analyzer) bindHeaderRole(r *Routine, p Param, line int) error {
	var slot *string
	switch p.Direction {
	case ast.RequestPort:
		slot = &r.RequestPort
	case ast.ReplyPort:
		slot = &r.ReplyPort
	case ast.SReplyPort:
		slot = &r.SReplyPort
	case ast.UReplyPort:
		slot = &r.UReplyPort
	case ast.WaitTime:
		slot = &r.WaitTime
	case ast.MsgOption:
		slot = &r.MsgOption
	case ast.MsgSeqno:
		slot = &r.MsgSeqno
	default:
		return nil
	}
	if *slot != "" {
		return &Error{Kind: InvalidPortDisposition, Routine: r.Name, Argument: p.Name,
			Detail: "more than one " + p.Direction.String() + " argument", Line: line}
	}
	*slot = p.Name
	return nil
}
