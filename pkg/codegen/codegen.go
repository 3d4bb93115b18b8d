// Package codegen defines the contract shared by the code generators.
package codegen

import (
	"bytes"
	"fmt"
	"io"

	"github.com/raymyers/ralph-mig/pkg/sema"
)

// Generator emits the four parts of a subsystem's bindings. Output is a
// pure function of the analyzed subsystem and the generator's options.
type Generator interface {
	UserHeader(w io.Writer, s *sema.Subsystem) error
	UserImpl(w io.Writer, s *sema.Subsystem) error
	ServerHeader(w io.Writer, s *sema.Subsystem) error
	ServerImpl(w io.Writer, s *sema.Subsystem) error
}

// Part names one of the Generator methods.
type Part int

const (
	PartUserHeader Part = iota
	PartUserImpl
	PartServerHeader
	PartServerImpl
)

func (p Part) String() string {
	switch p {
	case PartUserHeader:
		return "user header"
	case PartUserImpl:
		return "user implementation"
	case PartServerHeader:
		return "server header"
	case PartServerImpl:
		return "server implementation"
	}
	return "?"
}

// Selection picks which parts to generate.
type Selection struct {
	User   bool // client stubs
	Server bool // server stubs and demultiplexer
	Header bool // client header
}

// All selects every part.
var All = Selection{User: true, Server: true, Header: true}

// Wants reports whether p is selected.
func (s Selection) Wants(p Part) bool {
	switch p {
	case PartUserHeader:
		return s.Header
	case PartUserImpl:
		return s.User
	}
	return s.Server
}

// Artifact is one generated file, held in memory until every generator
// for the subsystem has succeeded.
type Artifact struct {
	Name string
	Data []byte
}

// Render runs one part of g into memory.
func Render(g Generator, s *sema.Subsystem, p Part) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch p {
	case PartUserHeader:
		err = g.UserHeader(&buf, s)
	case PartUserImpl:
		err = g.UserImpl(&buf, s)
	case PartServerHeader:
		err = g.ServerHeader(&buf, s)
	case PartServerImpl:
		err = g.ServerImpl(&buf, s)
	default:
		return nil, fmt.Errorf("unknown part %d", p)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrorKind classifies generation failures.
type ErrorKind int

const (
	UnresolvedType ErrorKind = iota
	UnsupportedFeature
	InvalidTemplate
	IO
)

func (k ErrorKind) String() string {
	switch k {
	case UnresolvedType:
		return "unresolved type"
	case UnsupportedFeature:
		return "unsupported feature"
	case InvalidTemplate:
		return "invalid template"
	case IO:
		return "I/O error"
	}
	return "codegen error"
}

// Error is returned by generators.
type Error struct {
	Kind    ErrorKind
	Routine string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Routine != "" {
		msg = fmt.Sprintf("%s (routine %s)", msg, e.Routine)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrWriter wraps an io.Writer and keeps the first write error, so
// emitters can print freely and check once at the end.
type ErrWriter struct {
	W   io.Writer
	Err error
}

func (w *ErrWriter) Write(p []byte) (int, error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err := w.W.Write(p)
	if err != nil {
		w.Err = &Error{Kind: IO, Err: err}
	}
	return n, err
}

// CheckSupported rejects constructs neither backend can express. msgseqno
// needs a sequence number in the message header, which the runtime header
// does not carry.
func CheckSupported(s *sema.Subsystem) error {
	for _, r := range s.Routines {
		if r.MsgSeqno != "" {
			return &Error{Kind: UnsupportedFeature, Routine: r.Name,
				Detail: "msgseqno argument " + r.MsgSeqno + ": the message header has no sequence number"}
		}
		for _, p := range r.Params {
			if p.Type == nil {
				return &Error{Kind: UnresolvedType, Routine: r.Name, Detail: "parameter " + p.Name}
			}
		}
	}
	return nil
}
