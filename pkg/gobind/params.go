package gobind

import (
	"strings"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// goParam is one parameter or result of a generated function.
type goParam struct {
	Name  string
	Type  string
	Field string // result struct field, for async wrappers
	Poly  bool   // the disposition of the preceding port or value
}

const msgTypeNameGo = "machabi.MsgTypeName"

func portParams(p sema.Param) []goParam {
	out := []goParam{{Name: local(p.Name), Type: "machabi.Port"}}
	if p.Type.IsPolymorphic {
		out = append(out, goParam{Name: local(p.Name) + "Poly", Type: msgTypeNameGo, Poly: true})
	}
	return out
}

func bodyParams(p sema.Param) []goParam {
	out := []goParam{{Name: local(p.Name), Type: paramType(p.Type)}}
	if p.Type.IsPolymorphic {
		out = append(out, goParam{Name: local(p.Name) + "Poly", Type: msgTypeNameGo, Poly: true})
	}
	return out
}

// userArgs are the arguments of a client method. The implicit request
// port comes from the Client.
func userArgs(r *sema.Routine) []goParam {
	var out []goParam
	for _, p := range r.Params {
		if !p.OnUserSide() {
			continue
		}
		switch p.Direction {
		case ast.RequestPort:
			if !p.Implicit {
				out = append(out, portParams(p)...)
			}
		case ast.ReplyPort, ast.UReplyPort:
			out = append(out, portParams(p)...)
		case ast.WaitTime, ast.MsgOption:
			out = append(out, goParam{Name: local(p.Name), Type: valueType(p.Type)})
		default:
			if p.Direction.InRequest() {
				out = append(out, bodyParams(p)...)
			}
		}
	}
	return out
}

// serverArgs are the arguments of a Server method.
func serverArgs(r *sema.Routine) []goParam {
	var out []goParam
	for _, p := range r.Params {
		if !p.OnServerSide() {
			continue
		}
		switch p.Direction {
		case ast.RequestPort, ast.ReplyPort, ast.SReplyPort:
			out = append(out, portParams(p)...)
		default:
			if p.IsBody() && p.Direction.InRequest() {
				out = append(out, bodyParams(p)...)
			}
		}
	}
	return out
}

// results are the values a routine returns besides its error, on both
// sides.
func results(r *sema.Routine) []goParam {
	var out []goParam
	for _, p := range r.Params {
		if !p.IsBody() || !p.Direction.InReply() {
			continue
		}
		out = append(out, goParam{Name: outName(p.Name), Type: paramType(p.Type), Field: exported(p.Name)})
		if p.Type.IsPolymorphic {
			out = append(out, goParam{Name: polyOutName(p.Name), Type: msgTypeNameGo, Field: exported(p.Name) + "Poly", Poly: true})
		}
	}
	return out
}

func joinParams(ps []goParam) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Name + " " + p.Type
	}
	return strings.Join(parts, ", ")
}

func joinNames(ps []goParam) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Name
	}
	return strings.Join(parts, ", ")
}

// signature spells the parameter and named result lists of a method.
func signature(args, res []goParam) string {
	return "(" + joinParams(args) + ") (" + joinParams(append(append([]goParam(nil), res...), goParam{Name: "err", Type: "error"})) + ")"
}
