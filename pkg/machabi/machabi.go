// Package machabi is the runtime surface generated Go bindings are written
// against: port names, return codes, message headers, type descriptors and
// the transport that moves messages. It does not implement the kernel.
package machabi

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// Port is a mach_port_t.
type Port uint32

// PortNull is MACH_PORT_NULL.
const PortNull Port = 0

// Boolean is a boolean_t.
type Boolean int32

// MsgTypeName is a mach_msg_type_name_t.
type MsgTypeName uint32

const (
	TypeBoolean      MsgTypeName = 0
	TypeInteger16    MsgTypeName = 1
	TypeInteger32    MsgTypeName = 2
	TypeChar         MsgTypeName = 8
	TypeByte         MsgTypeName = 9
	TypeInteger8     MsgTypeName = 9
	TypeReal         MsgTypeName = 10
	TypeInteger64    MsgTypeName = 11
	TypeStringC      MsgTypeName = 12
	TypePortName     MsgTypeName = 15
	TypeMoveReceive  MsgTypeName = 16
	TypeMoveSend     MsgTypeName = 17
	TypeMoveSendOnce MsgTypeName = 18
	TypeCopySend     MsgTypeName = 19
	TypeMakeSend     MsgTypeName = 20
	TypeMakeSendOnce MsgTypeName = 21
	TypePolymorphic  MsgTypeName = ^MsgTypeName(0)
)

// Received returns the disposition a receiver observes for a right sent
// as n: make and copy operations arrive as moves.
func (n MsgTypeName) Received() MsgTypeName {
	switch n {
	case TypeCopySend, TypeMakeSend:
		return TypeMoveSend
	case TypeMakeSendOnce:
		return TypeMoveSendOnce
	}
	return n
}

// MsgBits builds msgh_bits from the remote and local dispositions.
func MsgBits(remote, local MsgTypeName) uint32 {
	return uint32(remote) | uint32(local)<<8
}

// MsgHeader is mach_msg_header_t.
type MsgHeader struct {
	Bits        uint32
	Size        uint32
	RemotePort  Port
	LocalPort   Port
	VoucherPort Port
	ID          int32
}

// HeaderSize is the wire size of MsgHeader.
const HeaderSize = 24

// TypeDescriptor is mach_msg_type_t, or mach_msg_type_long_t when LongForm
// is set.
type TypeDescriptor struct {
	Name       MsgTypeName
	Size       uint32 // bits per element
	Number     uint32
	Inline     bool
	LongForm   bool
	Deallocate bool
	Unused     bool
}

// Check compares a received descriptor with the one the sender declared.
// Port rights match in either their sent or received form. For a
// variable-length use want.Number is the maximum.
func (d TypeDescriptor) Check(want TypeDescriptor, variable bool) error {
	if want.Name != TypePolymorphic && d.Name.Received() != want.Name.Received() {
		return fmt.Errorf("%w: type name %d, want %d", MigTypeError, d.Name, want.Name)
	}
	if d.Size != want.Size || d.Inline != want.Inline || d.LongForm != want.LongForm {
		return fmt.Errorf("%w: descriptor shape mismatch", MigTypeError)
	}
	if variable {
		if want.Number > 0 && d.Number > want.Number {
			return fmt.Errorf("%w: %d elements, at most %d", MigTypeError, d.Number, want.Number)
		}
		return nil
	}
	if d.Number != want.Number {
		return fmt.Errorf("%w: %d elements, want %d", MigTypeError, d.Number, want.Number)
	}
	return nil
}

// Message is any typed request or reply.
type Message interface {
	Header() *MsgHeader
}

// SendOptions carries the per-call send and receive parameters. A zero
// Timeout waits forever.
type SendOptions struct {
	Timeout time.Duration
	Option  int32
}

// Transport moves messages between ports. SendReceive fills reply, a
// pointer to the expected reply type, with the message received.
// Received requests keep the sender's header: RemotePort is the request
// port and LocalPort the reply port.
type Transport interface {
	Send(msg Message, opts SendOptions) error
	Receive(msg Message, opts SendOptions) error
	SendReceive(req, reply Message, opts SendOptions) error
	ReplyPort() Port
}

// ErrorReply is a reply carrying only a return code, sent when a request
// fails before the server function runs or when the function fails.
type ErrorReply struct {
	Head    MsgHeader
	RetCode KernReturn
}

func (r *ErrorReply) Header() *MsgHeader { return &r.Head }

// ReplyOffset is added to a request id to form its reply id.
const ReplyOffset = 100

// ReplyBits is the msgh_bits of a reply to a request with header h: the
// reply right is used in the form it arrived in.
func ReplyBits(h *MsgHeader) uint32 {
	local := MsgTypeName(h.Bits >> 8 & 0xff)
	if local == 0 {
		local = TypeMoveSendOnce
	}
	return MsgBits(local.Received(), 0)
}

// NewErrorReply answers req with code.
func NewErrorReply(req Message, code KernReturn) *ErrorReply {
	h := req.Header()
	return &ErrorReply{
		Head: MsgHeader{
			Bits:       ReplyBits(h),
			Size:       HeaderSize + 4,
			RemotePort: h.LocalPort,
			ID:         h.ID + ReplyOffset,
		},
		RetCode: code,
	}
}

// ReplyCode extracts the return code of any reply produced by generated
// code.
func ReplyCode(m Message) (KernReturn, bool) {
	if r, ok := m.(interface{ Code() KernReturn }); ok {
		return r.Code(), true
	}
	return 0, false
}

func (r *ErrorReply) Code() KernReturn { return r.RetCode }

// ErrReplyType is returned when a transport cannot store a reply into the
// caller's message.
var ErrReplyType = errors.New("machabi: reply has unexpected type")

// Handler answers one request. A nil reply means no reply is sent.
type Handler func(req Message) Message

// Loopback is an in-process Transport that hands every request to a
// handler. Replies are copied into the caller's message by value.
type Loopback struct {
	Handler Handler
	Port    Port
}

func (l *Loopback) Send(msg Message, opts SendOptions) error {
	l.Handler(msg)
	return nil
}

func (l *Loopback) Receive(msg Message, opts SendOptions) error {
	return MigNoReply
}

func (l *Loopback) SendReceive(req, reply Message, opts SendOptions) error {
	req.Header().LocalPort = l.ReplyPort()
	got := l.Handler(req)
	if got == nil {
		return MigNoReply
	}
	dst := reflect.ValueOf(reply)
	src := reflect.ValueOf(got)
	if dst.Kind() != reflect.Ptr || src.Type() != dst.Type() {
		// an error-only reply stands in for any reply type
		if code, ok := ReplyCode(got); ok && code != KernSuccess {
			return code
		}
		return fmt.Errorf("%w: %T into %T", ErrReplyType, got, reply)
	}
	dst.Elem().Set(src.Elem())
	return nil
}

func (l *Loopback) ReplyPort() Port {
	if l.Port == PortNull {
		return Port(1)
	}
	return l.Port
}
