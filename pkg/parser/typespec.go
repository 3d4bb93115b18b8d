package parser

import (
	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/lexer"
)

// parseTypeSpec parses
//
//	typespec := IDENT
//	          | 'array' '[' size ']' 'of' typespec
//	          | '^' typespec
//	          | 'struct' '{' {IDENT ':' typespec ';'} '}'
//	          | 'struct' '[' NUMBER ']' 'of' typespec
//	          | 'c_string' '[' size ']'
func (p *Parser) parseTypeSpec() (ast.TypeSpec, error) {
	switch p.curToken.Type {
	case lexer.TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		return ast.BasicType{Name: name}, nil

	case lexer.TokenArray:
		p.nextToken()
		size, err := p.parseBracketSize()
		if err != nil {
			return nil, err
		}
		elem, err := p.parseOf()
		if err != nil {
			return nil, err
		}
		return ast.ArrayType{Size: size, Elem: elem}, nil

	case lexer.TokenCaret:
		p.nextToken()
		elem, err := p.parseTypeSpec()
		if err != nil {
			return nil, err
		}
		return ast.PointerType{Elem: elem}, nil

	case lexer.TokenStruct:
		p.nextToken()
		if p.curTokenIs(lexer.TokenLBrace) {
			return p.parseStructBody()
		}
		if !p.curTokenIs(lexer.TokenLBracket) {
			return nil, p.errorAt(InvalidTypeSpec, "'{' or '[' after struct")
		}
		p.nextToken()
		count, err := p.expectNumber(InvalidTypeSpec, "struct element count")
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenRBracket); err != nil {
			return nil, err
		}
		elem, err := p.parseOf()
		if err != nil {
			return nil, err
		}
		return ast.StructArrayType{Count: count, Elem: elem}, nil

	case lexer.TokenCString:
		p.nextToken()
		size, err := p.parseBracketSize()
		if err != nil {
			return nil, err
		}
		return ast.CStringType{Max: size.N, Varying: size.Kind != ast.SizeFixed}, nil
	}
	return nil, p.errorAt(InvalidTypeSpec, "type")
}

// parseBracketSize parses '[' size ']' where size is empty, N, '*' or '*:N'.
func (p *Parser) parseBracketSize() (ast.ArraySize, error) {
	var size ast.ArraySize
	if !p.curTokenIs(lexer.TokenLBracket) {
		return size, p.errorAt(InvalidTypeSpec, "'['")
	}
	p.nextToken()

	switch p.curToken.Type {
	case lexer.TokenRBracket:
		size.Kind = ast.SizeVariable
	case lexer.TokenNumber:
		size = ast.ArraySize{Kind: ast.SizeFixed, N: p.curToken.Value}
		p.nextToken()
	case lexer.TokenStar:
		p.nextToken()
		size.Kind = ast.SizeVariable
		if p.curTokenIs(lexer.TokenColon) {
			p.nextToken()
			n, err := p.expectNumber(InvalidTypeSpec, "maximum element count")
			if err != nil {
				return size, err
			}
			size = ast.ArraySize{Kind: ast.SizeVariableMax, N: n}
		}
	default:
		return size, p.errorAt(InvalidTypeSpec, "array size")
	}

	if !p.curTokenIs(lexer.TokenRBracket) {
		return size, p.errorAt(InvalidTypeSpec, "']'")
	}
	p.nextToken()
	return size, nil
}

func (p *Parser) parseOf() (ast.TypeSpec, error) {
	if !p.curTokenIs(lexer.TokenOf) {
		return nil, p.errorAt(InvalidTypeSpec, "'of'")
	}
	p.nextToken()
	return p.parseTypeSpec()
}

func (p *Parser) parseStructBody() (ast.TypeSpec, error) {
	p.nextToken() // consume '{'
	st := ast.StructType{}
	for !p.curTokenIs(lexer.TokenRBrace) {
		name, err := p.expectIdent(InvalidTypeSpec, "field name")
		if err != nil {
			return nil, err
		}
		for _, f := range st.Fields {
			if f.Name == name {
				return nil, &Error{Kind: DuplicateDefinition, Name: name, Line: p.curToken.Line}
			}
		}
		if err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		ft, err := p.parseTypeSpec()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		st.Fields = append(st.Fields, ast.Field{Name: name, Type: ft})
	}
	p.nextToken() // consume '}'
	return st, nil
}
