package sema

import (
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
	"github.com/raymyers/ralph-mig/pkg/lexer"
	"github.com/raymyers/ralph-mig/pkg/parser"
)

// RoutineSpec is the expected shape of one analyzed routine.
type RoutineSpec struct {
	Name        string   `yaml:"name"`
	Number      uint32   `yaml:"number"`
	ReplyNumber uint32   `yaml:"reply_number"`
	Simple      bool     `yaml:"simple"`
	Request     []string `yaml:"request"`
	RequestSize uint32   `yaml:"request_size"`
	Reply       []string `yaml:"reply"`
	ReplySize   uint32   `yaml:"reply_size"`
}

// TestSpec represents a test case from analyze.yaml
type TestSpec struct {
	Name     string        `yaml:"name"`
	Input    string        `yaml:"input"`
	Routines []RoutineSpec `yaml:"routines"`
}

// ErrorSpec is an input that must fail analysis.
type ErrorSpec struct {
	Name           string `yaml:"name"`
	Input          string `yaml:"input"`
	MaxMessageSize uint32 `yaml:"max_message_size"`
	Kind           string `yaml:"kind"`
	Routine        string `yaml:"routine"`
	Argument       string `yaml:"argument"`
}

// TestFile represents the analyze.yaml file structure
type TestFile struct {
	Tests  []TestSpec  `yaml:"tests"`
	Errors []ErrorSpec `yaml:"errors"`
}

func parse(t *testing.T, input string) *ast.Subsystem {
	t.Helper()
	toks, err := lexer.Tokenize(input)
	require.NoError(t, err)
	s, err := parser.Parse(toks)
	require.NoError(t, err)
	return s
}

func analyze(t *testing.T, input string) *Subsystem {
	t.Helper()
	out, err := Analyze(parse(t, input), Options{})
	require.NoError(t, err)
	return out
}

func fieldNames(l *MessageLayout) []string {
	names := []string{}
	for _, f := range l.Fields {
		names = append(names, f.Name)
	}
	return names
}

func loadTestFile(t *testing.T) TestFile {
	t.Helper()
	data, err := os.ReadFile("../../testdata/analyze.yaml")
	require.NoError(t, err, "failed to read analyze.yaml")
	var testFile TestFile
	require.NoError(t, yaml.Unmarshal(data, &testFile), "failed to parse analyze.yaml")
	return testFile
}

func TestAnalyzeYAML(t *testing.T) {
	testFile := loadTestFile(t)

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			s := analyze(t, tc.Input)
			require.Len(t, s.Routines, len(tc.Routines))

			for i, want := range tc.Routines {
				got := s.Routines[i]
				assert.Equal(t, want.Name, got.Name)
				assert.Equal(t, want.Number, got.Number, "number of %s", got.Name)
				assert.Equal(t, want.ReplyNumber, got.ReplyNumber, "reply number of %s", got.Name)
				assert.Equal(t, want.Simple, got.IsSimple, "is_simple of %s", got.Name)

				if want.Request == nil {
					want.Request = []string{}
				}
				assert.Equal(t, want.Request, fieldNames(&got.Request), "request of %s", got.Name)
				assert.Equal(t, want.RequestSize, got.Request.FixedSize, "request size of %s", got.Name)

				if want.Simple {
					assert.Nil(t, got.Reply, "simple routine %s has a reply", got.Name)
					continue
				}
				require.NotNil(t, got.Reply, "routine %s has no reply", got.Name)
				assert.Equal(t, want.Reply, fieldNames(got.Reply), "reply of %s", got.Name)
				assert.Equal(t, want.ReplySize, got.Reply.FixedSize, "reply size of %s", got.Name)
			}
		})
	}
}

var kindNames = map[string]ErrorKind{
	"UndefinedType":          UndefinedType,
	"TypeMismatch":           TypeMismatch,
	"InvalidArrayBounds":     InvalidArrayBounds,
	"MessageTooLarge":        MessageTooLarge,
	"DuplicateRoutineNumber": DuplicateRoutineNumber,
	"InvalidPortDisposition": InvalidPortDisposition,
}

func TestAnalyzeErrorsYAML(t *testing.T) {
	testFile := loadTestFile(t)

	for _, tc := range testFile.Errors {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := Analyze(parse(t, tc.Input), Options{MaxMessageSize: tc.MaxMessageSize})
			require.Error(t, err)

			var sErr *Error
			require.True(t, errors.As(err, &sErr), "expected *Error, got %T", err)
			want, ok := kindNames[tc.Kind]
			require.True(t, ok, "unknown kind %q in fixture", tc.Kind)
			assert.Equal(t, want, sErr.Kind, "error: %v", err)
			if tc.Routine != "" {
				assert.Equal(t, tc.Routine, sErr.Routine)
			}
			if tc.Argument != "" {
				assert.Equal(t, tc.Argument, sErr.Argument)
			}
			assert.Positive(t, sErr.Line, "error carries no line: %v", err)
		})
	}
}

func TestScenarioAReplyStartsWithRetCode(t *testing.T) {
	s := analyze(t, "subsystem test 1000; routine add(in x:int32_t; in y:int32_t; out sum:int32_t);")
	r := s.Routines[0]

	require.NotNil(t, r.Reply)
	first := r.Reply.Fields[0]
	assert.Equal(t, FieldRetCode, first.Kind)
	assert.Equal(t, "kern_return_t", first.Type)
	assert.Equal(t, "sum", r.Reply.Fields[1].Name)
	assert.Equal(t, "int32_t", r.Reply.Fields[1].Type)
	assert.False(t, r.Reply.Fields[1].IsTypeDescriptor)

	assert.Equal(t, "add", r.UserFunc)
	assert.Equal(t, "add_impl", r.ServerFunc)
	assert.Equal(t, "server_port", r.RequestPort)
	require.NotEmpty(t, r.Params)
	assert.True(t, r.Params[0].Implicit)
	assert.Equal(t, "test_server", s.ServerDemux)
}

func TestScenarioBPortDescriptor(t *testing.T) {
	s := analyze(t, "subsystem p 3000; simpleroutine destroy_port(in target:mach_port_t);")
	r := s.Routines[0]

	assert.True(t, r.IsSimple)
	assert.Nil(t, r.Reply)
	assert.Zero(t, r.ReplyNumber)

	desc, data := r.Request.Fields[0], r.Request.Fields[1]
	assert.True(t, desc.IsTypeDescriptor)
	assert.Equal(t, ipctypes.TypeCopySend, desc.MsgType)
	assert.True(t, desc.Inline)
	assert.Equal(t, "target", data.Name)
	assert.Equal(t, "mach_port_t", data.Type)

	got, ok := r.Request.DescriptorFor(1)
	require.True(t, ok)
	assert.Equal(t, "targetType", got.Name)
}

func TestScenarioDBoundedArray(t *testing.T) {
	s := analyze(t, "subsystem d 100; type buf_t = array[*:64] of int32_t; routine r(in data:buf_t);")
	r := s.Routines[0]

	data, ok := r.Request.Field("data")
	require.True(t, ok)
	assert.True(t, data.IsArray)
	assert.Equal(t, uint32(64), data.MaxElements)
	assert.Equal(t, "int32_t", data.Type)

	cnt, ok := r.Request.CountFor(1)
	require.True(t, ok)
	assert.Equal(t, "dataCnt", cnt.Name)
	assert.False(t, cnt.CountByPointer)

	require.Len(t, s.Types, 1)
	bt := s.Types[0]
	assert.Equal(t, "buf_t", bt.Name)
	assert.True(t, bt.IsArray)
	assert.Equal(t, ipctypes.Indefinite, bt.Size)
	assert.Equal(t, ipctypes.BoundedArray, bt.Array)
}

func TestOutArrayCountByPointer(t *testing.T) {
	s := analyze(t, "subsystem o 1; routine get(out v : array[*:8] of int, CountInOut);")
	cnt, ok := s.Routines[0].Reply.Field("vCnt")
	require.True(t, ok)
	assert.True(t, cnt.IsCountField)
	assert.True(t, cnt.CountByPointer)
	p, ok := s.Routines[0].Param("v")
	require.True(t, ok)
	assert.True(t, p.Flags.CountInOut)
}

func TestEveryArrayHasOneCount(t *testing.T) {
	s := analyze(t, `subsystem c 1;
		type a_t = array[4] of int;
		type b_t = array[*:9] of char;
		type c_t = ^array[] of short;
		routine r(in a : a_t; inout b : b_t; out c : c_t; in d : int);`)
	r := s.Routines[0]
	for _, l := range []*MessageLayout{&r.Request, r.Reply} {
		for i, f := range l.Fields {
			if f.Kind != FieldData || !f.IsArray {
				continue
			}
			_, ok := l.CountFor(i)
			assert.True(t, ok, "array %s has no count", f.Name)
			_, ok = l.DescriptorFor(i)
			assert.True(t, ok, "array %s has no descriptor", f.Name)
		}
	}
}

func TestNumberingProperty(t *testing.T) {
	for _, n := range []int{0, 1, 5, 40} {
		src := "subsystem n 7000;\n"
		for i := 0; i < n; i++ {
			if i%3 == 0 {
				src += "simpleroutine "
			} else {
				src += "routine "
			}
			src += "r" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + "();\n"
		}
		s := analyze(t, src)
		require.Len(t, s.Routines, n)
		for i, r := range s.Routines {
			assert.Equal(t, uint32(7000+i), r.Number)
		}
		assert.Equal(t, uint32(n), s.MessageCount)
	}
}

func TestPrefixesApplyToLaterRoutines(t *testing.T) {
	s := analyze(t, `subsystem pre 1;
		routine before();
		serverprefix do_;
		userprefix u_;
		routine after();
		serverdemux pre_demux;`)
	before, _ := s.Routine("before")
	after, _ := s.Routine("after")
	assert.Equal(t, "before", before.UserFunc)
	assert.Equal(t, "before_impl", before.ServerFunc)
	assert.Equal(t, "u_after", after.UserFunc)
	assert.Equal(t, "do_after_impl", after.ServerFunc)
	assert.Equal(t, "pre_demux", s.ServerDemux)
}

func TestHeaderRolesRecorded(t *testing.T) {
	s := analyze(t, `subsystem h 1;
		routine call(requestport target : mach_port_t;
			replyport reply : mach_port_make_send_once_t;
			waittime timeout : natural_t;
			msgoption opts : mach_msg_option_t;
			msgseqno seq : mach_port_seqno_t;
			in value : int);`)
	r := s.Routines[0]
	assert.Equal(t, "target", r.RequestPort)
	assert.Equal(t, "reply", r.ReplyPort)
	assert.Equal(t, "timeout", r.WaitTime)
	assert.Equal(t, "opts", r.MsgOption)
	assert.Equal(t, "seq", r.MsgSeqno)
	assert.False(t, r.Params[0].Implicit)

	seq, _ := r.Param("seq")
	assert.False(t, seq.OnUserSide())
	assert.True(t, seq.OnServerSide())
	timeout, _ := r.Param("timeout")
	assert.True(t, timeout.OnUserSide())
	assert.False(t, timeout.OnServerSide())
}

func TestStructTypes(t *testing.T) {
	s := analyze(t, `subsystem st 1;
		type pair_t = struct { a : int; b : short; };
		type odd_t = struct { c : char; };
		type quad_t = struct[4] of int;
		type alias_t = pair_t;
		routine r(in p : pair_t; in q : quad_t; in o : odd_t);`)

	require.Len(t, s.StructTypes(), 3)
	pair := s.Types[0]
	assert.True(t, pair.IsStruct)
	assert.Equal(t, ipctypes.Fixed(8), pair.Size)
	assert.Equal(t, ipctypes.TypeInteger32, pair.MsgType)
	assert.Equal(t, uint32(2), pair.Number)
	assert.Equal(t, uint32(4), pair.Fields[1].Offset)

	odd := s.Types[1]
	assert.Equal(t, ipctypes.TypeByte, odd.MsgType)
	assert.Equal(t, uint32(1), odd.Number)

	quad := s.Types[2]
	assert.Equal(t, uint32(4), quad.Number)
	assert.Equal(t, ipctypes.Fixed(16), quad.Size)

	r := s.Routines[0]
	assert.Equal(t, []string{"pType", "p", "qType", "q", "oType", "o"}, fieldNames(&r.Request))
	assert.Equal(t, uint32(24+4+8+4+16+4+4), r.Request.FixedSize)
}

func TestAliasInheritsTagAndSize(t *testing.T) {
	s := analyze(t, `subsystem al 1;
		type int32 = MACH_MSG_TYPE_INTEGER_32;
		type port_t = mach_port_move_send_t;
		type my_int = int32;`)
	require.Len(t, s.Types, 3)
	assert.Equal(t, "int32", s.Types[0].CType)
	assert.Equal(t, ipctypes.TypeMoveSend, s.Types[1].MsgType)
	assert.True(t, s.Types[1].Descriptor)
	assert.Equal(t, ipctypes.TypeInteger32, s.Types[2].MsgType)
	assert.Equal(t, "int32", s.Types[2].CType)
	assert.Equal(t, ipctypes.Fixed(4), s.Types[2].Size)
}

func TestBoundsProperty(t *testing.T) {
	for _, m := range []uint32{1, 2, 64, 4095, 4096} {
		src := "subsystem b 1; routine r(in v : array[*:" + strconv.FormatUint(uint64(m), 10) + "] of int);"
		s := analyze(t, src)
		f, ok := s.Routines[0].Request.Field("v")
		require.True(t, ok)
		assert.Equal(t, m, f.MaxElements)
		desc, _ := s.Routines[0].Request.Field("vType")
		assert.Equal(t, m > ipctypes.MaxShortNumber, desc.LongForm, "long form for max %d", m)
	}

	s := analyze(t, "subsystem b 1; routine r(in v : array[] of int);")
	f, _ := s.Routines[0].Request.Field("v")
	assert.Zero(t, f.MaxElements)
	assert.False(t, f.Inline)
}

func TestAnalyzeDoesNotShareTables(t *testing.T) {
	shared := ipctypes.NewBuiltinTable()
	a, err := Analyze(parse(t, "subsystem a 1; type t = array[4] of int; routine r(in x : t);"), Options{Types: shared})
	require.NoError(t, err)
	require.NotNil(t, a)

	_, err = Analyze(parse(t, "subsystem b 1; routine r(in x : t);"), Options{Types: shared})
	var sErr *Error
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, UndefinedType, sErr.Kind)
}

func TestMessageTooLargeDetail(t *testing.T) {
	_, err := Analyze(parse(t, "subsystem d 100; type buf_t = array[*:64] of int32_t; routine r(in data:buf_t);"),
		Options{MaxMessageSize: 100})
	var sErr *Error
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, uint32(288), sErr.Size)
	assert.Equal(t, uint32(100), sErr.Max)
	assert.Contains(t, err.Error(), "288 bytes exceeds maximum of 100")
}
