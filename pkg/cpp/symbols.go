// Package cpp resolves conditional-compilation directives in a token
// stream. Symbols are supplied up front; #define and #undef inside the
// source do not change them.
package cpp

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolState is the value of a preprocessor symbol.
type SymbolState int

const (
	Undefined SymbolState = iota
	False
	True
)

func (s SymbolState) String() string {
	switch s {
	case False:
		return "false"
	case True:
		return "true"
	}
	return "undefined"
}

// AsBool reports the truth value used when the symbol appears in an
// expression. Undefined evaluates as false.
func (s SymbolState) AsBool() bool {
	return s == True
}

// SymbolTable maps symbol names to their state.
type SymbolTable struct {
	syms map[string]SymbolState
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{syms: make(map[string]SymbolState)}
}

// Define sets name to True or False.
func (st *SymbolTable) Define(name string, value bool) {
	if value {
		st.syms[name] = True
	} else {
		st.syms[name] = False
	}
}

// Undefine removes name from the table.
func (st *SymbolTable) Undefine(name string) {
	delete(st.syms, name)
}

// Lookup returns the state of name.
func (st *SymbolTable) Lookup(name string) SymbolState {
	if st == nil {
		return Undefined
	}
	return st.syms[name]
}

// IsDefined reports whether name has been given a value, true or false.
func (st *SymbolTable) IsDefined(name string) bool {
	return st.Lookup(name) != Undefined
}

// Names returns the defined symbol names in sorted order.
func (st *SymbolTable) Names() []string {
	names := make([]string, 0, len(st.syms))
	for name := range st.syms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the table.
func (st *SymbolTable) Clone() *SymbolTable {
	c := NewSymbolTable()
	for k, v := range st.syms {
		c.syms[k] = v
	}
	return c
}

// ParseDefine parses a command line definition of the form NAME or
// NAME=VALUE. VALUE may be 0, 1, false or true; a bare NAME is true.
func ParseDefine(def string) (string, bool, error) {
	name, value, hasValue := strings.Cut(def, "=")
	name = strings.TrimSpace(name)
	if !isIdent(name) {
		return "", false, fmt.Errorf("invalid symbol name %q", name)
	}
	if !hasValue {
		return name, true, nil
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "":
		return name, true, nil
	case "0", "false":
		return name, false, nil
	}
	return "", false, fmt.Errorf("invalid value %q for symbol %s (want 0, 1, true or false)", value, name)
}

// ApplyCmdline applies -D definitions followed by -U removals.
func (st *SymbolTable) ApplyCmdline(defines, undefines []string) error {
	for _, d := range defines {
		name, value, err := ParseDefine(d)
		if err != nil {
			return err
		}
		st.Define(name, value)
	}
	for _, u := range undefines {
		st.Undefine(strings.TrimSpace(u))
	}
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
