package ast

import (
	"bytes"
	"strings"
	"testing"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		name string
		ts   TypeSpec
		want string
	}{
		{"basic", BasicType{Name: "int32_t"}, "int32_t"},
		{"fixed array", ArrayType{Size: ArraySize{Kind: SizeFixed, N: 4}, Elem: BasicType{Name: "char"}}, "array[4] of char"},
		{"unbounded array", ArrayType{Size: ArraySize{Kind: SizeVariable}, Elem: BasicType{Name: "int"}}, "array[] of int"},
		{"bounded array", ArrayType{Size: ArraySize{Kind: SizeVariableMax, N: 64}, Elem: BasicType{Name: "int32_t"}}, "array[*:64] of int32_t"},
		{"pointer", PointerType{Elem: BasicType{Name: "int"}}, "^int"},
		{"nested", ArrayType{Size: ArraySize{Kind: SizeFixed, N: 2}, Elem: ArrayType{Size: ArraySize{Kind: SizeFixed, N: 3}, Elem: BasicType{Name: "short"}}}, "array[2] of array[3] of short"},
		{"struct", StructType{Fields: []Field{{Name: "a", Type: BasicType{Name: "int"}}, {Name: "b", Type: BasicType{Name: "char"}}}}, "struct { a : int; b : char; }"},
		{"struct array", StructArrayType{Count: 3, Elem: BasicType{Name: "int"}}, "struct[3] of int"},
		{"c_string", CStringType{Max: 128}, "c_string[128]"},
		{"varying c_string", CStringType{Max: 128, Varying: true}, "c_string[*:128]"},
		{"unbounded c_string", CStringType{Varying: true}, "c_string[*]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeString(tt.ts); got != tt.want {
				t.Errorf("TypeString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintSubsystem(t *testing.T) {
	s := &Subsystem{
		Name:      "test",
		Base:      1000,
		Modifiers: []Modifier{KernelUser},
		Statements: []Statement{
			Import{Kind: ImportUser, File: "mach/mach_types.h", System: true},
			Import{Kind: ImportBoth, File: "test_types.h"},
			PrefixDecl{Kind: ServerPrefix, Prefix: "do_"},
			TypeDecl{Name: "buf_t", Type: ArrayType{Size: ArraySize{Kind: SizeVariableMax, N: 64}, Elem: BasicType{Name: "int32_t"}}},
			Routine{Name: "add", Args: []Argument{
				{Name: "x", Direction: In, Type: BasicType{Name: "int32_t"}},
				{Name: "sum", Direction: Out, Type: BasicType{Name: "int32_t"}},
			}},
			Skip{},
			Routine{Name: "ping", Kind: KindSimpleRoutine},
			Routine{Name: "put", Kind: KindSimpleRoutine, Args: []Argument{
				{Name: "data", Direction: In, Type: BasicType{Name: "buf_t"}, Flags: IpcFlags{Dealloc: Dealloc, ServerCopy: true}},
			}},
		},
	}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintSubsystem(s)
	out := buf.String()

	expectOrder := []string{
		"subsystem KernelUser test 1000;",
		"uimport <mach/mach_types.h>;",
		`import "test_types.h";`,
		"serverprefix do_;",
		"type buf_t = array[*:64] of int32_t;",
		"routine add(\n\tin          x : int32_t;\n\tout         sum : int32_t);",
		"skip;",
		"simpleroutine ping();",
		"in          data : buf_t, Dealloc, ServerCopy);",
	}
	pos := 0
	for _, exp := range expectOrder {
		idx := strings.Index(out[pos:], exp)
		if idx < 0 {
			t.Fatalf("expected %q after offset %d in:\n%s", exp, pos, out)
		}
		pos += idx + len(exp)
	}
}

func TestSubsystemHelpers(t *testing.T) {
	s := &Subsystem{
		Modifiers: []Modifier{KernelServer},
		Statements: []Statement{
			Routine{Name: "a"},
			TypeDecl{Name: "t", Type: BasicType{Name: "int"}},
			Routine{Name: "b", Kind: KindSimpleRoutine},
		},
	}
	if !s.HasModifier(KernelServer) || s.HasModifier(KernelUser) {
		t.Errorf("HasModifier mismatch for %v", s.Modifiers)
	}
	rs := s.Routines()
	if len(rs) != 2 || rs[0].Name != "a" || rs[1].Name != "b" || !rs[1].IsSimple() {
		t.Errorf("Routines() = %+v", rs)
	}
}

func TestDirection(t *testing.T) {
	for i, name := range directionNames {
		d, ok := ParseDirection(strings.ToUpper(name))
		if !ok || d != Direction(i) {
			t.Errorf("ParseDirection(%q) = %v, %v", name, d, ok)
		}
	}
	if !RequestPort.IsPortRole() || WaitTime.IsPortRole() || !WaitTime.IsHeaderRole() || InOut.IsHeaderRole() {
		t.Error("direction role classification is wrong")
	}
	if !InOut.InRequest() || !InOut.InReply() || Out.InRequest() || In.InReply() {
		t.Error("direction message membership is wrong")
	}
}
