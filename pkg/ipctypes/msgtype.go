// Package ipctypes describes the wire types of typed Mach messages and the
// table of named types a definition file can refer to.
package ipctypes

import "fmt"

// MsgType is a mach_msg_type_name_t: the tag carried in msgt_name.
type MsgType uint32

// Tag values follow the Mach 3 numbering.
const (
	TypeBoolean      MsgType = 0
	TypeInteger16    MsgType = 1
	TypeInteger32    MsgType = 2
	TypeChar         MsgType = 8
	TypeByte         MsgType = 9
	TypeInteger8     MsgType = 9
	TypeReal         MsgType = 10
	TypeInteger64    MsgType = 11
	TypeString       MsgType = 12
	TypeStringC      MsgType = 12
	TypePortName     MsgType = 15
	TypeMoveReceive  MsgType = 16
	TypeMoveSend     MsgType = 17
	TypeMoveSendOnce MsgType = 18
	TypeCopySend     MsgType = 19
	TypeMakeSend     MsgType = 20
	TypeMakeSendOnce MsgType = 21

	// TypePolymorphic defers the disposition to a runtime argument.
	TypePolymorphic MsgType = ^MsgType(0)
)

var msgTypeMacros = map[MsgType]string{
	TypeBoolean:      "MACH_MSG_TYPE_BOOLEAN",
	TypeInteger16:    "MACH_MSG_TYPE_INTEGER_16",
	TypeInteger32:    "MACH_MSG_TYPE_INTEGER_32",
	TypeChar:         "MACH_MSG_TYPE_CHAR",
	TypeByte:         "MACH_MSG_TYPE_BYTE",
	TypeReal:         "MACH_MSG_TYPE_REAL",
	TypeInteger64:    "MACH_MSG_TYPE_INTEGER_64",
	TypeStringC:      "MACH_MSG_TYPE_STRING_C",
	TypePortName:     "MACH_MSG_TYPE_PORT_NAME",
	TypeMoveReceive:  "MACH_MSG_TYPE_MOVE_RECEIVE",
	TypeMoveSend:     "MACH_MSG_TYPE_MOVE_SEND",
	TypeMoveSendOnce: "MACH_MSG_TYPE_MOVE_SEND_ONCE",
	TypeCopySend:     "MACH_MSG_TYPE_COPY_SEND",
	TypeMakeSend:     "MACH_MSG_TYPE_MAKE_SEND",
	TypeMakeSendOnce: "MACH_MSG_TYPE_MAKE_SEND_ONCE",
	TypePolymorphic:  "MACH_MSG_TYPE_POLYMORPHIC",
}

// Macro returns the C constant naming the tag.
func (t MsgType) Macro() string {
	if m, ok := msgTypeMacros[t]; ok {
		return m
	}
	return fmt.Sprintf("%d", uint32(t))
}

func (t MsgType) String() string { return t.Macro() }

// IsPort reports whether the tag transfers or names a port right.
func (t MsgType) IsPort() bool {
	return (t >= TypePortName && t <= TypeMakeSendOnce) || t == TypePolymorphic
}

// IsPortRight reports whether the tag moves, copies or makes a right,
// as opposed to just naming a port.
func (t MsgType) IsPortRight() bool {
	return t >= TypeMoveReceive && t <= TypeMakeSendOnce
}

// Received returns the disposition the receiver observes for a right sent
// with tag t: make and copy operations arrive as moves.
func (t MsgType) Received() MsgType {
	switch t {
	case TypeCopySend, TypeMakeSend:
		return TypeMoveSend
	case TypeMakeSendOnce:
		return TypeMoveSendOnce
	}
	return t
}

// MarshalYAML renders the tag by its macro name.
func (t MsgType) MarshalYAML() (interface{}, error) {
	return t.Macro(), nil
}

// Short-form descriptor limits: msgt_size is 8 bits, msgt_number 12 bits.
const (
	MaxShortSize   = 255
	MaxShortNumber = 4095
)

// Wire sizes in bytes.
const (
	HeaderSize         = 24 // mach_msg_header_t
	ShortDescriptorLen = 4  // mach_msg_type_t
	LongDescriptorLen  = 12 // mach_msg_type_long_t
	CountLen           = 4  // mach_msg_type_number_t
)

// Pad4 rounds n up to a multiple of four.
func Pad4(n uint32) uint32 {
	return (n + 3) &^ 3
}
