package cabs

import (
	"bytes"
	"testing"
)

func TestParamString(t *testing.T) {
	tests := []struct {
		param Param
		want  string
	}{
		{Param{"int32_t", "x"}, "int32_t x"},
		{Param{"const int32_t *", "data"}, "const int32_t *data"},
		{Param{"mach_msg_type_number_t *", "dataCnt"}, "mach_msg_type_number_t *dataCnt"},
	}
	for _, tt := range tests {
		if got := tt.param.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPrintPrototype(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintPrototype(FunDecl{
		ReturnType: "kern_return_t",
		Name:       "r",
		Params: []Param{
			{"mach_port_t", "server_port"},
			{"const int32_t *", "data"},
			{"mach_msg_type_number_t", "dataCnt"},
		},
	})
	want := "kern_return_t r\n(\n\tmach_port_t server_port,\n\tconst int32_t *data,\n\tmach_msg_type_number_t dataCnt\n);\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestPrintVoidPrototype(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintPrototype(FunDecl{Storage: "mig_external", ReturnType: "void", Name: "f"})
	want := "mig_external void f\n(void);\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintStruct(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.In()
	p.PrintStruct(StructDef{
		Name: "Request",
		Fields: []Field{
			{Type: "mach_msg_header_t", Name: "Head"},
			{Type: "int32_t", Name: "data", Dim: 64},
			{Type: "char *", Name: "ool"},
		},
	})
	want := "\ttypedef struct {\n\t\tmach_msg_header_t Head;\n\t\tint32_t data[64];\n\t\tchar *ool;\n\t} Request;\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestPrintVar(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintVar(VarDef{
		Storage: "static const",
		Type:    "mach_msg_type_long_t",
		Name:    "dataType",
		Init: []InitItem{
			{Group: []InitItem{{Label: "msgt_name", Value: "0"}, {Label: "msgt_longform", Value: "TRUE"}}},
			{Label: "msgtl_name", Value: "2"},
		},
	})
	want := "static const mach_msg_type_long_t dataType = {\n" +
		"\t{\n" +
		"\t\t/* msgt_name = */ 0,\n" +
		"\t\t/* msgt_longform = */ TRUE\n" +
		"\t},\n" +
		"\t/* msgtl_name = */ 2\n" +
		"};\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	p.PrintVar(VarDef{Type: "Request *", Name: "InP"})
	if buf.String() != "Request *InP;\n" {
		t.Errorf("got %q", buf.String())
	}
}
