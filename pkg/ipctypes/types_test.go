package ipctypes

import (
	"errors"
	"testing"
)

func TestBuiltinTable(t *testing.T) {
	tests := []struct {
		name       string
		tag        MsgType
		bytes      uint32
		ctype      string
		gotype     string
		descriptor bool
	}{
		{"char", TypeChar, 1, "char", "byte", false},
		{"short", TypeInteger16, 2, "short", "int16", false},
		{"int32_t", TypeInteger32, 4, "int32_t", "int32", false},
		{"int64_t", TypeInteger64, 8, "int64_t", "int64", false},
		{"unsigned8", TypeByte, 1, "uint8_t", "uint8", false},
		{"boolean_t", TypeBoolean, 4, "boolean_t", "machabi.Boolean", false},
		{"natural_t", TypeInteger32, 4, "natural_t", "uint32", false},
		{"kern_return_t", TypeInteger32, 4, "kern_return_t", "machabi.KernReturn", false},
		{"mach_port_t", TypeCopySend, 4, "mach_port_t", "machabi.Port", true},
		{"mach_port_receive_t", TypeMoveReceive, 4, "mach_port_t", "machabi.Port", true},
		{"mach_port_send_t", TypeMoveSend, 4, "mach_port_t", "machabi.Port", true},
		{"mach_port_send_once_t", TypeMoveSendOnce, 4, "mach_port_t", "machabi.Port", true},
		{"mach_port_make_send_once_t", TypeMakeSendOnce, 4, "mach_port_t", "machabi.Port", true},
		{"mach_port_name_t", TypePortName, 4, "mach_port_t", "machabi.Port", true},
		{"polymorphic", TypePolymorphic, 4, "mach_port_t", "machabi.Port", true},
		{"MACH_MSG_TYPE_INTEGER_32", TypeInteger32, 4, "", "int32", false},
		{"MACH_MSG_TYPE_MOVE_SEND", TypeMoveSend, 4, "mach_port_t", "machabi.Port", true},
	}

	table := NewBuiltinTable()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, ok := table.Lookup(tt.name)
			if !ok {
				t.Fatalf("%s not in builtin table", tt.name)
			}
			if rt.MsgType != tt.tag {
				t.Errorf("MsgType = %v, want %v", rt.MsgType, tt.tag)
			}
			if rt.Size != Fixed(tt.bytes) {
				t.Errorf("Size = %v, want fixed(%d)", rt.Size, tt.bytes)
			}
			if rt.CType != tt.ctype || rt.GoType != tt.gotype {
				t.Errorf("types = %q/%q, want %q/%q", rt.CType, rt.GoType, tt.ctype, tt.gotype)
			}
			if rt.Descriptor != tt.descriptor {
				t.Errorf("Descriptor = %v, want %v", rt.Descriptor, tt.descriptor)
			}
			if rt.IsArray {
				t.Error("builtin scalar marked as array")
			}
		})
	}
}

func TestTableFrozenAndClone(t *testing.T) {
	shared := NewBuiltinTable()
	if err := shared.Define(&ResolvedType{Name: "x"}); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Define on builtin table: got %v, want ErrFrozen", err)
	}

	a := shared.Clone()
	b := shared.Clone()
	if err := a.Define(&ResolvedType{Name: "buf_t"}); err != nil {
		t.Fatalf("Define on clone: %v", err)
	}
	if _, ok := b.Lookup("buf_t"); ok {
		t.Error("definition leaked between clones")
	}
	if _, ok := shared.Lookup("buf_t"); ok {
		t.Error("definition leaked into shared table")
	}
	if a.Len() != shared.Len()+1 {
		t.Errorf("clone len = %d, want %d", a.Len(), shared.Len()+1)
	}
}

func TestMsgType(t *testing.T) {
	if TypeInteger32.Macro() != "MACH_MSG_TYPE_INTEGER_32" {
		t.Errorf("Macro() = %s", TypeInteger32.Macro())
	}
	if !TypeMoveSend.IsPort() || !TypePortName.IsPort() || TypeInteger32.IsPort() {
		t.Error("IsPort classification is wrong")
	}
	if TypePortName.IsPortRight() || !TypeMakeSendOnce.IsPortRight() {
		t.Error("IsPortRight classification is wrong")
	}
	received := map[MsgType]MsgType{
		TypeCopySend:     TypeMoveSend,
		TypeMakeSend:     TypeMoveSend,
		TypeMakeSendOnce: TypeMoveSendOnce,
		TypeMoveReceive:  TypeMoveReceive,
	}
	for sent, want := range received {
		if got := sent.Received(); got != want {
			t.Errorf("%v.Received() = %v, want %v", sent, got, want)
		}
	}
}

func TestLongForm(t *testing.T) {
	elem := &ResolvedType{MsgType: TypeInteger32, Bits: 32, Number: 1}
	tests := []struct {
		name string
		rt   ResolvedType
		want bool
	}{
		{"scalar", *elem, false},
		{"small bounded", ResolvedType{MsgType: TypeInteger32, Bits: 32, Number: 1, IsArray: true, Array: BoundedArray, MaxElements: 64}, false},
		{"large bounded", ResolvedType{MsgType: TypeInteger32, Bits: 32, Number: 1, IsArray: true, Array: BoundedArray, MaxElements: 4096}, true},
		{"unbounded", ResolvedType{MsgType: TypeInteger32, Bits: 32, Number: 1, IsArray: true, Array: UnboundedArray, OutOfLine: true}, true},
		{"wide element", ResolvedType{MsgType: TypeInteger32, Bits: 512, Number: 1}, true},
	}
	for _, tt := range tests {
		if got := tt.rt.NeedsLongForm(); got != tt.want {
			t.Errorf("%s: NeedsLongForm() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPad4(t *testing.T) {
	for in, want := range map[uint32]uint32{0: 0, 1: 4, 4: 4, 5: 8, 130: 132} {
		if got := Pad4(in); got != want {
			t.Errorf("Pad4(%d) = %d, want %d", in, got, want)
		}
	}
}
