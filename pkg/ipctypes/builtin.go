package ipctypes

func scalar(name string, tag MsgType, bits uint32, ctype, gotype string) *ResolvedType {
	return &ResolvedType{
		Name:       name,
		MsgType:    tag,
		CType:      ctype,
		GoType:     gotype,
		Bits:       bits,
		Number:     1,
		Size:       Fixed(bits / 8),
		Descriptor: tag.IsPort(),
		Builtin:    true,
	}
}

func port(name string, tag MsgType) *ResolvedType {
	return scalar(name, tag, 32, "mach_port_t", "machabi.Port")
}

// rawTags are the MACH_MSG_TYPE_* names standard definition files alias.
// Their C spelling is left empty and supplied by the aliasing type.
var rawTags = []struct {
	name   string
	tag    MsgType
	bits   uint32
	gotype string
}{
	{"MACH_MSG_TYPE_BOOLEAN", TypeBoolean, 32, "int32"},
	{"MACH_MSG_TYPE_INTEGER_16", TypeInteger16, 16, "int16"},
	{"MACH_MSG_TYPE_INTEGER_32", TypeInteger32, 32, "int32"},
	{"MACH_MSG_TYPE_INTEGER_64", TypeInteger64, 64, "int64"},
	{"MACH_MSG_TYPE_CHAR", TypeChar, 8, "byte"},
	{"MACH_MSG_TYPE_BYTE", TypeByte, 8, "byte"},
	{"MACH_MSG_TYPE_INTEGER_8", TypeInteger8, 8, "int8"},
	{"MACH_MSG_TYPE_REAL", TypeReal, 32, "float32"},
	{"MACH_MSG_TYPE_PORT_NAME", TypePortName, 32, "machabi.Port"},
	{"MACH_MSG_TYPE_MOVE_RECEIVE", TypeMoveReceive, 32, "machabi.Port"},
	{"MACH_MSG_TYPE_MOVE_SEND", TypeMoveSend, 32, "machabi.Port"},
	{"MACH_MSG_TYPE_MOVE_SEND_ONCE", TypeMoveSendOnce, 32, "machabi.Port"},
	{"MACH_MSG_TYPE_COPY_SEND", TypeCopySend, 32, "machabi.Port"},
	{"MACH_MSG_TYPE_MAKE_SEND", TypeMakeSend, 32, "machabi.Port"},
	{"MACH_MSG_TYPE_MAKE_SEND_ONCE", TypeMakeSendOnce, 32, "machabi.Port"},
}

// NewBuiltinTable returns a read-only table of the builtin types. It is
// safe to share between goroutines; call Clone for a writable copy.
func NewBuiltinTable() *Table {
	t := &Table{types: make(map[string]*ResolvedType)}
	add := func(rt *ResolvedType) { t.types[rt.Name] = rt }

	add(scalar("char", TypeChar, 8, "char", "byte"))
	add(scalar("short", TypeInteger16, 16, "short", "int16"))
	add(scalar("int", TypeInteger32, 32, "int", "int32"))
	add(scalar("int8_t", TypeInteger8, 8, "int8_t", "int8"))
	add(scalar("int16_t", TypeInteger16, 16, "int16_t", "int16"))
	add(scalar("int32_t", TypeInteger32, 32, "int32_t", "int32"))
	add(scalar("int64_t", TypeInteger64, 64, "int64_t", "int64"))
	add(scalar("uint8_t", TypeByte, 8, "uint8_t", "uint8"))
	add(scalar("uint16_t", TypeInteger16, 16, "uint16_t", "uint16"))
	add(scalar("uint32_t", TypeInteger32, 32, "uint32_t", "uint32"))
	add(scalar("uint64_t", TypeInteger64, 64, "uint64_t", "uint64"))
	add(scalar("unsigned", TypeInteger32, 32, "unsigned", "uint32"))
	add(scalar("unsigned8", TypeByte, 8, "uint8_t", "uint8"))
	add(scalar("unsigned16", TypeInteger16, 16, "uint16_t", "uint16"))
	add(scalar("unsigned32", TypeInteger32, 32, "uint32_t", "uint32"))
	add(scalar("unsigned64", TypeInteger64, 64, "uint64_t", "uint64"))
	add(scalar("boolean_t", TypeBoolean, 32, "boolean_t", "machabi.Boolean"))
	add(scalar("natural_t", TypeInteger32, 32, "natural_t", "uint32"))
	add(scalar("integer_t", TypeInteger32, 32, "integer_t", "int32"))

	add(port("mach_port_t", TypeCopySend))
	add(port("mach_port_move_receive_t", TypeMoveReceive))
	add(port("mach_port_copy_send_t", TypeCopySend))
	add(port("mach_port_make_send_t", TypeMakeSend))
	add(port("mach_port_move_send_t", TypeMoveSend))
	add(port("mach_port_make_send_once_t", TypeMakeSendOnce))
	add(port("mach_port_move_send_once_t", TypeMoveSendOnce))
	add(port("mach_port_receive_t", TypeMoveReceive))
	add(port("mach_port_send_t", TypeMoveSend))
	add(port("mach_port_send_once_t", TypeMoveSendOnce))
	add(port("mach_port_name_t", TypePortName))

	add(scalar("kern_return_t", TypeInteger32, 32, "kern_return_t", "machabi.KernReturn"))
	add(scalar("mach_msg_type_name_t", TypeInteger32, 32, "mach_msg_type_name_t", "uint32"))
	add(scalar("mach_msg_timeout_t", TypeInteger32, 32, "mach_msg_timeout_t", "uint32"))
	add(scalar("mach_msg_option_t", TypeInteger32, 32, "mach_msg_option_t", "int32"))
	add(scalar("mach_port_seqno_t", TypeInteger32, 32, "mach_port_seqno_t", "uint32"))
	add(scalar("mach_msg_type_number_t", TypeInteger32, 32, "mach_msg_type_number_t", "uint32"))

	poly := port("polymorphic", TypePolymorphic)
	poly.IsPolymorphic = true
	add(poly)

	for _, raw := range rawTags {
		rt := scalar(raw.name, raw.tag, raw.bits, "", raw.gotype)
		if raw.tag.IsPort() {
			rt.CType = "mach_port_t"
		}
		add(rt)
	}
	add(&ResolvedType{
		Name: "MACH_MSG_TYPE_POLYMORPHIC", MsgType: TypePolymorphic, CType: "mach_port_t",
		GoType: "machabi.Port", Bits: 32, Number: 1, Size: Fixed(4),
		IsPolymorphic: true, Descriptor: true, Builtin: true,
	})

	t.frozen = true
	return t
}
