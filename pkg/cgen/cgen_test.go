package cgen

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/lexer"
	"github.com/raymyers/ralph-mig/pkg/parser"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

func analyze(t *testing.T, src string) *sema.Subsystem {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	tree, err := parser.Parse(toks)
	require.NoError(t, err)
	s, err := sema.Analyze(tree, sema.Options{})
	require.NoError(t, err)
	return s
}

func render(t *testing.T, s *sema.Subsystem, p codegen.Part) string {
	t.Helper()
	data, err := codegen.Render(New(), s, p)
	require.NoError(t, err)
	return string(data)
}

const scenarioA = `subsystem test 1000;
routine add(in x : int32_t; in y : int32_t; out sum : int32_t);`

func TestScenarioDPrototype(t *testing.T) {
	s := analyze(t, `subsystem s 100;
type buf_t = array[*:64] of int32_t;
routine r(in data : buf_t);`)

	h := render(t, s, codegen.PartUserHeader)
	assert.Contains(t, h, "extern kern_return_t r\n(\n\tmach_port_t server_port,\n\tconst int32_t *data,\n\tmach_msg_type_number_t dataCnt\n);\n")

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "\tif (dataCnt > 64)\n\t\treturn MIG_ARRAY_TOO_LARGE;\n")
	assert.Contains(t, c, "\tInP->dataType.msgt_number = dataCnt;\n")
	assert.Contains(t, c, "\t\tint32_t data[64];\n")
}

func TestScenarioAUserStub(t *testing.T) {
	s := analyze(t, scenarioA)
	c := render(t, s, codegen.PartUserImpl)

	for _, want := range []string{
		"/* Routine add */\nmig_external kern_return_t add\n",
		"\tInP->x = x;\n",
		"\tInP->Head.msgh_bits = MACH_MSGH_BITS(MACH_MSG_TYPE_COPY_SEND, MACH_MSG_TYPE_MAKE_SEND_ONCE);\n",
		"\tInP->Head.msgh_reply_port = mig_get_reply_port();\n",
		"\tInP->Head.msgh_id = 1000;\n",
		"MACH_SEND_MSG|MACH_RCV_MSG, sizeof(Request), sizeof(Reply)",
		"\tif (OutP->Head.msgh_id != 1100) {\n",
		"\t*sum = OutP->sum;\n",
		"\t\tkern_return_t RetCode;\n",
	} {
		assert.Contains(t, c, want)
	}
	// plain integers travel without descriptors
	assert.NotContains(t, c, "xType")
}

func TestScenarioAServerStub(t *testing.T) {
	s := analyze(t, scenarioA)
	c := render(t, s, codegen.PartServerImpl)

	assert.Contains(t, c, "mig_internal void _Xadd\n")
	assert.Contains(t, c, "\tOutP->RetCode = add_impl(In0P->Head.msgh_request_port, In0P->x, In0P->y, &OutP->sum);\n")
	assert.Contains(t, c, "\tif (OutP->RetCode != KERN_SUCCESS)\n\t\treturn;\n")
	assert.Contains(t, c, "\tif ((InP->msgh_id < 1000) || (InP->msgh_id >= 1001)) {\n")
	assert.Contains(t, c, "\tcase 0:\n\t\t_Xadd(InP, &OutP->Head);\n\t\treturn TRUE;\n")
	assert.Contains(t, c, "\t\tOutP->RetCode = MIG_BAD_ID;\n")

	h := render(t, s, codegen.PartServerHeader)
	assert.Contains(t, h, "extern kern_return_t add_impl\n(\n\tmach_port_t server_port,\n\tint32_t x,\n\tint32_t y,\n\tint32_t *sum\n);\n")
	assert.Contains(t, h, "extern boolean_t test_server\n")
}

func TestScenarioBSimpleRoutine(t *testing.T) {
	s := analyze(t, `subsystem p 3000;
simpleroutine destroy_port(in target : mach_port_t);`)

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "\t\tmach_msg_type_t targetType;\n\t\tmach_port_t target;\n")
	assert.Contains(t, c, "\t/* msgt_name = */ MACH_MSG_TYPE_COPY_SEND,\n")
	assert.Contains(t, c, "\treturn mach_msg(&InP->Head, MACH_SEND_MSG, sizeof(Request), 0, MACH_PORT_NULL, MACH_MSG_TIMEOUT_NONE, MACH_PORT_NULL);\n")
	assert.NotContains(t, c, "Reply")

	srv := render(t, s, codegen.PartServerImpl)
	// a copied send right arrives as a moved one
	assert.Contains(t, srv, "(In0P->targetType.msgt_name != MACH_MSG_TYPE_MOVE_SEND)")
	assert.Contains(t, srv, "\t\tOutP->RetCode = MIG_NO_REPLY;\n")
}

func TestUnboundedArrayIsLongFormOutOfLine(t *testing.T) {
	s := analyze(t, `subsystem u 10;
type data_t = array[] of int32_t;
routine put(in data : data_t);
routine get(out data : data_t);`)

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "\t\tmach_msg_type_long_t dataType;\n\t\tint32_t *data;\n")
	assert.Contains(t, c, "\t/* msgtl_name = */ MACH_MSG_TYPE_INTEGER_32,\n")
	assert.Contains(t, c, "\tInP->data = (int32_t *) data;\n")
	assert.Contains(t, c, "\tInP->dataType.msgtl_number = dataCnt;\n")
	assert.Contains(t, c, "\t*data = OutP->data;\n")
	assert.NotContains(t, c, "MIG_ARRAY_TOO_LARGE")

	h := render(t, s, codegen.PartUserHeader)
	assert.Contains(t, h, "\tint32_t **data,\n\tmach_msg_type_number_t *dataCnt\n")
}

func TestOutArrayCopyBack(t *testing.T) {
	s := analyze(t, `subsystem o 10;
type buf_t = array[*:16] of char;
routine read(out data : buf_t);`)

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "\tif (OutP->dataCnt > *dataCnt)\n\t\treturn MIG_ARRAY_TOO_LARGE;\n")
	assert.Contains(t, c, "\t*dataCnt = OutP->dataCnt;\n")
	assert.Contains(t, c, "\t    (OutP->dataType.msgt_number > 16))\n")

	srv := render(t, s, codegen.PartServerImpl)
	assert.Contains(t, srv, "\tOutP->dataCnt = 16;\n")
	assert.Contains(t, srv, "read_impl(In0P->Head.msgh_request_port, OutP->data, &OutP->dataCnt)")
	assert.Contains(t, srv, "\tOutP->dataType.msgt_number = OutP->dataCnt;\n")
	assert.Contains(t, srv, "\tif (OutP->dataCnt > 16) {\n\t\tOutP->RetCode = MIG_ARRAY_TOO_LARGE;\n\t\treturn;\n\t}\n")
	assert.Less(t, strings.Index(srv, "read_impl("), strings.Index(srv, "OutP->dataCnt > 16"))
	assert.Less(t, strings.Index(srv, "OutP->dataCnt > 16"), strings.Index(srv, "msgt_number = OutP->dataCnt"))
}

func TestFixedOutArrayHasNoReplyBoundCheck(t *testing.T) {
	s := analyze(t, `subsystem f 10;
type quad_t = array[4] of int32_t;
routine get(out q : quad_t);`)

	srv := render(t, s, codegen.PartServerImpl)
	assert.NotContains(t, srv, "MIG_ARRAY_TOO_LARGE")
}

func TestKernelUser(t *testing.T) {
	s := analyze(t, `subsystem KernelUser k 10;
routine f(in x : int32_t);
simpleroutine g(in x : int32_t);`)

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "#include <kern/ipc_mig.h>\n")
	assert.Contains(t, c, "mach_msg_rpc_from_kernel(&InP->Head, sizeof(Request), sizeof(Reply))")
	assert.Contains(t, c, "return mach_msg_send_from_kernel(&InP->Head, sizeof(Request));")
	assert.NotContains(t, c, "mig_get_reply_port")
}

func TestHeaderRoles(t *testing.T) {
	s := analyze(t, `subsystem h 10;
routine f(requestport server : mach_port_t; replyport reply : mach_port_make_send_once_t;
	waittime timeout : mach_msg_timeout_t; msgoption opt : mach_msg_option_t; in x : int32_t);`)

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "\tInP->Head.msgh_request_port = server;\n")
	assert.Contains(t, c, "\tInP->Head.msgh_reply_port = reply;\n")
	assert.Contains(t, c, "MACH_SEND_MSG|MACH_RCV_MSG|MACH_SEND_TIMEOUT|MACH_RCV_TIMEOUT|opt")
	assert.Contains(t, c, "InP->Head.msgh_reply_port, timeout, MACH_PORT_NULL);")
	assert.NotContains(t, c, "mig_dealloc_reply_port")

	h := render(t, s, codegen.PartServerHeader)
	assert.NotContains(t, h, "timeout")
	assert.NotContains(t, h, "opt")
	assert.Contains(t, h, "\tmach_port_t reply,\n")
}

func TestPolymorphic(t *testing.T) {
	s := analyze(t, `subsystem poly 10;
routine give(in right : polymorphic);
routine take(out right : polymorphic);`)

	h := render(t, s, codegen.PartUserHeader)
	assert.Contains(t, h, "\tmach_port_t right,\n\tmach_msg_type_name_t rightPoly\n")
	assert.Contains(t, h, "\tmach_port_t *right,\n\tmach_msg_type_name_t *rightPoly\n")

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "\tInP->rightType.msgt_name = rightPoly;\n")
	assert.Contains(t, c, "\t*rightPoly = OutP->rightType.msgt_name;\n")

	srv := render(t, s, codegen.PartServerImpl)
	assert.Contains(t, srv, "give_impl(In0P->Head.msgh_request_port, In0P->right, In0P->rightType.msgt_name)")
	assert.Contains(t, srv, "\tmach_msg_type_name_t rightPoly;\n")
	assert.Contains(t, srv, "\tOutP->rightType.msgt_name = rightPoly;\n")
}

func TestStructTypesAndImports(t *testing.T) {
	s := analyze(t, `subsystem st 10;
import "types.h";
uimport <user.h>;
simport <server.h>;
type pair_t = struct { a : int; b : short; };
type name_t = c_string[32];
routine f(in p : pair_t; out n : name_t);`)

	h := render(t, s, codegen.PartUserHeader)
	assert.Contains(t, h, "#include \"types.h\"\n#include <user.h>\n")
	assert.NotContains(t, h, "server.h")
	assert.Contains(t, h, "#ifndef _pair_t_defined\n#define _pair_t_defined\ntypedef struct {\n\tint a;\n\tshort b;\n} pair_t;\n#endif")
	assert.Contains(t, h, "\tpair_t p,\n\tchar *n\n")

	sh := render(t, s, codegen.PartServerHeader)
	assert.Contains(t, sh, "#include <server.h>\n")
	assert.NotContains(t, sh, "user.h")

	c := render(t, s, codegen.PartUserImpl)
	assert.Contains(t, c, "\t\tchar n[32];\n")
	assert.Contains(t, c, "\t(void) mig_strncpy(n, OutP->n, 32);\n")
}

func TestPrefixesAndDemuxName(t *testing.T) {
	s := analyze(t, `subsystem pre 500;
userprefix u_;
serverprefix s_;
serverdemux pre_demux;
routine f(in x : int32_t);
skip;
routine g(in x : int32_t);`)

	h := render(t, s, codegen.PartUserHeader)
	assert.Contains(t, h, "extern kern_return_t u_f\n")

	srv := render(t, s, codegen.PartServerImpl)
	assert.Contains(t, srv, "s_f_impl(")
	assert.Contains(t, srv, "mig_external boolean_t pre_demux\n")
	assert.Contains(t, srv, "(InP->msgh_id >= 503)")
	assert.Contains(t, srv, "\tcase 2:\n\t\t_Xg(InP, &OutP->Head);\n")
	assert.NotContains(t, srv, "\tcase 1:\n")
}

func TestMsgSeqnoUnsupported(t *testing.T) {
	s := analyze(t, `subsystem q 10;
routine f(msgseqno seq : mach_port_seqno_t; in x : int32_t);`)

	_, err := New().Files(s, codegen.All)
	var cerr *codegen.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, codegen.UnsupportedFeature, cerr.Kind)
	assert.Equal(t, "f", cerr.Routine)
}

func TestFilesSelection(t *testing.T) {
	s := analyze(t, scenarioA)
	tests := []struct {
		sel  codegen.Selection
		want []string
	}{
		{codegen.All, []string{"test.h", "testUser.c", "testServer.h", "testServer.c"}},
		{codegen.Selection{User: true}, []string{"testUser.c"}},
		{codegen.Selection{Server: true}, []string{"testServer.h", "testServer.c"}},
		{codegen.Selection{Header: true}, []string{"test.h"}},
	}
	for _, tt := range tests {
		arts, err := New().Files(s, tt.sel)
		require.NoError(t, err)
		var names []string
		for _, a := range arts {
			names = append(names, a.Name)
			assert.NotEmpty(t, a.Data)
		}
		assert.Equal(t, tt.want, names)
	}
}

func TestGenerationIsIdempotent(t *testing.T) {
	src := `subsystem idem 10;
type buf_t = array[*:8] of int32_t;
type data_t = array[] of char;
routine f(in a : buf_t; inout b : int32_t; out c : data_t);
simpleroutine g(in p : mach_port_move_send_t);`
	first, err := New().Files(analyze(t, src), codegen.All)
	require.NoError(t, err)
	second, err := New().Files(analyze(t, src), codegen.All)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, bytes.Equal(first[i].Data, second[i].Data), first[i].Name)
	}
}

func TestHeaderGuardBalanced(t *testing.T) {
	s := analyze(t, scenarioA)
	for _, p := range []codegen.Part{codegen.PartUserHeader, codegen.PartServerHeader} {
		h := render(t, s, p)
		assert.Equal(t, strings.Count(h, "#ifndef")+strings.Count(h, "#ifdef"), strings.Count(h, "#endif"), p.String())
		assert.True(t, strings.HasSuffix(h, "*/\n"), p.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteErrorIsIO(t *testing.T) {
	err := New().UserImpl(failingWriter{}, analyze(t, scenarioA))
	var cerr *codegen.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, codegen.IO, cerr.Kind)
}
