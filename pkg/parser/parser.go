// Package parser implements a recursive descent parser for subsystem
// definitions. It reads one token of lookahead and never backtracks.
package parser

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/lexer"
)

// Parser parses a filtered token stream into a Subsystem
type Parser struct {
	tokens    []lexer.Token
	pos       int
	curToken  lexer.Token
	peekToken lexer.Token
	types     mapset.Set // declared type names
	routines  mapset.Set // declared routine names
}

// New creates a new Parser over tokens. Comment and directive tokens are
// skipped; a missing trailing EOF is supplied.
func New(tokens []lexer.Token) *Parser {
	p := &Parser{
		tokens:   tokens,
		types:    mapset.NewSet(),
		routines: mapset.NewSet(),
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete subsystem definition.
func Parse(tokens []lexer.Token) (*ast.Subsystem, error) {
	return New(tokens).ParseSubsystem()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.read()
}

func (p *Parser) read() lexer.Token {
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		if tok.Type == lexer.TokenComment || tok.Type == lexer.TokenPreprocessor {
			continue
		}
		return tok
	}
	line := 0
	if n := len(p.tokens); n > 0 {
		line = p.tokens[n-1].Line
	}
	return lexer.Token{Type: lexer.TokenEOF, Line: line}
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

// errorAt builds an error for the current token. At end of input the kind
// becomes UnexpectedEOF whatever was asked for.
func (p *Parser) errorAt(kind ErrorKind, expected string) *Error {
	if p.curTokenIs(lexer.TokenEOF) {
		kind = UnexpectedEOF
	}
	return &Error{
		Kind:     kind,
		Expected: expected,
		Found:    describe(p.curToken),
		Line:     p.curToken.Line,
	}
}

func (p *Parser) expect(t lexer.TokenType) error {
	if p.curTokenIs(t) {
		p.nextToken()
		return nil
	}
	return p.errorAt(UnexpectedToken, "'"+t.String()+"'")
}

func (p *Parser) expectIdent(kind ErrorKind, what string) (string, error) {
	if !p.curTokenIs(lexer.TokenIdent) {
		return "", p.errorAt(kind, what)
	}
	name := p.curToken.Literal
	p.nextToken()
	return name, nil
}

func (p *Parser) expectNumber(kind ErrorKind, what string) (uint32, error) {
	if !p.curTokenIs(lexer.TokenNumber) {
		return 0, p.errorAt(kind, what)
	}
	v := p.curToken.Value
	p.nextToken()
	return v, nil
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokenEOF:
		return "end of input"
	case lexer.TokenString:
		return tok.String()
	}
	return "'" + tok.Literal + "'"
}

// ParseSubsystem parses the subsystem header followed by every statement.
func (p *Parser) ParseSubsystem() (*ast.Subsystem, error) {
	s := &ast.Subsystem{Line: p.curToken.Line}
	if !p.curTokenIs(lexer.TokenSubsystem) {
		return nil, p.errorAt(InvalidSubsystem, "'subsystem'")
	}
	p.nextToken()

	s.Modifiers = p.parseModifiers(s.Modifiers)
	name, err := p.expectIdent(InvalidSubsystem, "subsystem name")
	if err != nil {
		return nil, err
	}
	s.Name = name
	base, err := p.expectNumber(InvalidSubsystem, "subsystem base number")
	if err != nil {
		return nil, err
	}
	s.Base = base
	s.Modifiers = p.parseModifiers(s.Modifiers)
	if !p.curTokenIs(lexer.TokenSemicolon) {
		return nil, p.errorAt(InvalidSubsystem, "';'")
	}
	p.nextToken()

	for !p.curTokenIs(lexer.TokenEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		s.Statements = append(s.Statements, stmt)
	}
	return s, nil
}

func (p *Parser) parseModifiers(mods []ast.Modifier) []ast.Modifier {
	for {
		switch p.curToken.Type {
		case lexer.TokenKernelUser:
			mods = appendModifier(mods, ast.KernelUser)
		case lexer.TokenKernelServer:
			mods = appendModifier(mods, ast.KernelServer)
		default:
			return mods
		}
		p.nextToken()
	}
}

func appendModifier(mods []ast.Modifier, m ast.Modifier) []ast.Modifier {
	for _, have := range mods {
		if have == m {
			return mods
		}
	}
	return append(mods, m)
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.curToken.Type {
	case lexer.TokenType_:
		return p.parseTypeDecl()
	case lexer.TokenRoutine, lexer.TokenSimpleRoutine:
		return p.parseRoutine()
	case lexer.TokenImport, lexer.TokenUImport, lexer.TokenSImport:
		return p.parseImport()
	case lexer.TokenServerPrefix, lexer.TokenUserPrefix:
		return p.parsePrefix()
	case lexer.TokenServerDemux:
		line := p.curToken.Line
		p.nextToken()
		name, err := p.expectIdent(UnexpectedToken, "demux function name")
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		return ast.DemuxDecl{Name: name, Line: line}, nil
	case lexer.TokenSkip:
		line := p.curToken.Line
		p.nextToken()
		if err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		return ast.Skip{Line: line}, nil
	}
	return nil, p.errorAt(UnexpectedToken, "statement")
}

func (p *Parser) parseTypeDecl() (ast.Statement, error) {
	line := p.curToken.Line
	p.nextToken() // consume 'type'

	name, err := p.expectIdent(InvalidTypeSpec, "type name")
	if err != nil {
		return nil, err
	}
	if p.types.Contains(name) {
		return nil, &Error{Kind: DuplicateDefinition, Name: name, Line: line}
	}
	p.types.Add(name)

	if err := p.expect(lexer.TokenAssign); err != nil {
		return nil, err
	}
	ts, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}
	return ast.TypeDecl{Name: name, Type: ts, Line: line}, nil
}

func (p *Parser) parseImport() (ast.Statement, error) {
	imp := ast.Import{Line: p.curToken.Line}
	switch p.curToken.Type {
	case lexer.TokenUImport:
		imp.Kind = ast.ImportUser
	case lexer.TokenSImport:
		imp.Kind = ast.ImportServer
	}
	p.nextToken()

	switch {
	case p.curTokenIs(lexer.TokenString):
		imp.File = p.curToken.Literal
		p.nextToken()
	case p.curTokenIs(lexer.TokenLt):
		// <sys/file.h> arrives as a run of words and symbols
		p.nextToken()
		for !p.curTokenIs(lexer.TokenGt) {
			if p.curTokenIs(lexer.TokenEOF) || p.curTokenIs(lexer.TokenSemicolon) {
				return nil, p.errorAt(UnexpectedToken, "'>'")
			}
			imp.File += p.curToken.Literal
			p.nextToken()
		}
		p.nextToken()
		imp.System = true
	default:
		return nil, p.errorAt(UnexpectedToken, "file name")
	}

	if err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}
	return imp, nil
}

func (p *Parser) parsePrefix() (ast.Statement, error) {
	decl := ast.PrefixDecl{Line: p.curToken.Line}
	if p.curTokenIs(lexer.TokenUserPrefix) {
		decl.Kind = ast.UserPrefix
	}
	p.nextToken()

	prefix, err := p.expectIdent(UnexpectedToken, "prefix")
	if err != nil {
		return nil, err
	}
	decl.Prefix = prefix
	if err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseRoutine() (ast.Statement, error) {
	r := ast.Routine{Line: p.curToken.Line}
	if p.curTokenIs(lexer.TokenSimpleRoutine) {
		r.Kind = ast.KindSimpleRoutine
	}
	p.nextToken()

	name, err := p.expectIdent(InvalidRoutine, "routine name")
	if err != nil {
		return nil, err
	}
	if p.routines.Contains(name) {
		return nil, &Error{Kind: DuplicateDefinition, Name: name, Line: r.Line}
	}
	p.routines.Add(name)
	r.Name = name

	if !p.curTokenIs(lexer.TokenLParen) {
		return nil, withName(p.errorAt(InvalidRoutine, "'('"), name)
	}
	p.nextToken()

	args, err := p.parseArguments(name)
	if err != nil {
		return nil, err
	}
	r.Args = args

	if !p.curTokenIs(lexer.TokenRParen) {
		return nil, withName(p.errorAt(InvalidRoutine, "';' or ')'"), name)
	}
	p.nextToken()
	if err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, withName(err, name)
	}
	return r, nil
}

func withName(err error, name string) error {
	if e, ok := err.(*Error); ok && e.Name == "" {
		e.Name = name
	}
	return err
}

func (p *Parser) parseArguments(routine string) ([]ast.Argument, error) {
	var args []ast.Argument
	if p.curTokenIs(lexer.TokenRParen) {
		return args, nil
	}

	seen := mapset.NewSet()
	for {
		arg, err := p.parseArgument()
		if err != nil {
			return nil, withName(err, routine)
		}
		if seen.Contains(arg.Name) {
			return nil, &Error{Kind: DuplicateDefinition, Name: routine + "." + arg.Name, Line: arg.Line}
		}
		seen.Add(arg.Name)
		args = append(args, arg)

		if !p.curTokenIs(lexer.TokenSemicolon) {
			return args, nil
		}
		p.nextToken()
		// tolerate a trailing ';' before ')'
		if p.curTokenIs(lexer.TokenRParen) {
			return args, nil
		}
	}
}

func (p *Parser) parseArgument() (ast.Argument, error) {
	arg := ast.Argument{Line: p.curToken.Line, Direction: ast.In}
	if p.curToken.Type.IsDirection() {
		dir, _ := ast.ParseDirection(p.curToken.Literal)
		arg.Direction = dir
		p.nextToken()
	}

	name, err := p.expectIdent(InvalidRoutine, "argument name")
	if err != nil {
		return arg, err
	}
	arg.Name = name

	if err := p.expect(lexer.TokenColon); err != nil {
		return arg, err
	}
	ts, err := p.parseTypeSpec()
	if err != nil {
		return arg, err
	}
	arg.Type = ts

	for p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		if err := p.parseFlag(&arg.Flags); err != nil {
			return arg, err
		}
	}
	return arg, nil
}

func (p *Parser) parseFlag(f *ast.IpcFlags) error {
	switch p.curToken.Type {
	case lexer.TokenIsLong:
		f.Long = ast.LongForced
	case lexer.TokenIsNotLong:
		f.Long = ast.LongForbidden
	case lexer.TokenDealloc:
		f.Dealloc = ast.Dealloc
	case lexer.TokenNotDealloc:
		f.Dealloc = ast.NotDealloc
	case lexer.TokenServerCopy:
		f.ServerCopy = true
	case lexer.TokenCountInOut:
		f.CountInOut = true
	default:
		return p.errorAt(UnexpectedToken, "IPC flag")
	}
	p.nextToken()
	return nil
}
