package gobind

import (
	"go/token"
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCase upper-cases the first letter of s. A Caser keeps state, so
// each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// exported turns a C identifier into an exported Go one:
// mach_port_t becomes MachPortT and dataCnt becomes DataCnt.
func exported(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(titleCase(part))
	}
	s := b.String()
	if s == "" || !unicode.IsLetter(rune(s[0])) {
		s = "X" + s
	}
	return s
}

// reserved holds names generated code uses for its own locals, and
// predeclared identifiers a parameter must not shadow.
var reserved = mapset.NewSetFromSlice([]interface{}{
	"c", "req", "reply", "err", "ctx", "ch", "res", "srv", "m", "opts",
	"len", "copy", "append", "make", "nil", "true", "false", "string", "byte",
	"int", "uint", "uintptr", "bool", "rune", "error",
	"int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64", "float32",
	"machabi", "time", "context",
})

// local turns a C identifier into an unexported Go one that is safe to use
// as a parameter: server_port becomes serverPort, and keywords and
// reserved names gain a trailing underscore.
func local(name string) string {
	s := camel(name)
	if token.IsKeyword(s) || reserved.Contains(s) {
		s += "_"
	}
	return s
}

// outName names the result carrying an out value of arg.
func outName(arg string) string { return camel(arg) + "Out" }

func polyOutName(arg string) string { return camel(arg) + "PolyOut" }

func camel(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(part)
		} else {
			b.WriteString(titleCase(part))
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}

// packageName derives a package clause from a subsystem name.
func packageName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || !unicode.IsLetter(rune(s[0])) {
		s = "mig" + s
	}
	if token.IsKeyword(s) {
		s += "mig"
	}
	return s
}
