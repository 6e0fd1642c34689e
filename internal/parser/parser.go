// Package parser implements the recursive-descent parser that turns a
// token slice into an *ast.Unit.
//
// Grounded on pkg/compiler/parser.go: a Parser struct wrapping a flat
// token slice with peek/peekNext/advance/expect helpers, a parse method
// per precedence level (parseLogicalOr, parseLogicalAnd, ... parsePrimary
// in the teacher; parseOr, parseAndXor, ... parsePrimary here), and errors
// that quote the offending line the way the teacher's fmtError does.
package parser

import (
	"fmt"
	"strings"

	"actionz80/internal/ast"
	"actionz80/internal/diag"
	"actionz80/internal/token"
	"actionz80/internal/types"
)

// Parser consumes a flat token slice produced by the lexer and builds an
// *ast.Unit.
type Parser struct {
	tokens []token.Token
	pos    int
	lines  []string
}

// New returns a Parser over tokens. rawSource is used only to quote the
// offending source line inside error messages.
func New(tokens []token.Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, lines: strings.Split(rawSource, "\n")}
}

func (p *Parser) errorf(tok token.Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	snippet := ""
	if idx := tok.Line - 1; idx >= 0 && idx < len(p.lines) {
		snippet = strings.TrimSpace(p.lines[idx])
	}
	if snippet != "" {
		msg = fmt.Sprintf("%s\n  |> %s", msg, snippet)
	}
	return diag.New(diag.KindParse, tok.Line, tok.Column, "%s", msg)
}

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt token.Type) (token.Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.errorf(tok, "expected %s, found %s %q", tt, tok.Type, tok.Lexeme)
	}
	return p.advance(), nil
}

func isTypeKeyword(tt token.Type) bool {
	switch tt {
	case token.BYTE, token.CARD, token.INTTYPE, token.CHARTYPE:
		return true
	default:
		return false
	}
}

func baseType(tt token.Type) types.Type {
	switch tt {
	case token.BYTE:
		return types.TByte
	case token.CARD:
		return types.TCard
	case token.INTTYPE:
		return types.TInt
	case token.CHARTYPE:
		return types.TChar
	default:
		return types.TVoid
	}
}

// Parse parses a complete translation unit from an already-lexed token
// slice.
func Parse(tokens []token.Token, rawSource string) (*ast.Unit, error) {
	p := New(tokens, rawSource)
	return p.parseUnit()
}

func (p *Parser) parseUnit() (*ast.Unit, error) {
	unit := &ast.Unit{}
	for p.peek().Type != token.EOF {
		switch p.peek().Type {
		case token.PROC:
			routine, err := p.parseProc()
			if err != nil {
				return nil, err
			}
			unit.Routines = append(unit.Routines, routine)
		case token.FUNC:
			routine, err := p.parseFunc()
			if err != nil {
				return nil, err
			}
			unit.Routines = append(unit.Routines, routine)
		default:
			if !isTypeKeyword(p.peek().Type) {
				return nil, p.errorf(p.peek(), "expected a declaration, found %s %q", p.peek().Type, p.peek().Lexeme)
			}
			decls, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			unit.Globals = append(unit.Globals, decls...)
		}
	}
	return unit, nil
}

// parseVarDecl parses one declaration line:
//
//	typename ident ("," ident)*
//	typename "ARRAY" ident "(" INT ")"
//
// and can produce more than one VarDecl (the comma-list form).
func (p *Parser) parseVarDecl() ([]ast.VarDecl, error) {
	typeTok := p.advance()
	base := baseType(typeTok.Type)

	if p.peek().Type == token.ARRAY {
		p.advance()
		nameTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		lenTok, err := p.expect(token.INT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		var arrType types.Type
		switch base.Kind {
		case types.Byte, types.Char:
			arrType = types.NewByteArray(int(lenTok.IntVal))
		case types.Card, types.Int:
			arrType = types.NewCardArray(int(lenTok.IntVal))
		}
		return []ast.VarDecl{{Name: nameTok.Lexeme, Type: arrType, Line: typeTok.Line}}, nil
	}

	var decls []ast.VarDecl
	for {
		nameTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		decls = append(decls, ast.VarDecl{Name: nameTok.Lexeme, Type: base, Line: typeTok.Line})
		if p.peek().Type != token.COMMA {
			break
		}
		p.advance()
	}
	return decls, nil
}

// parseParams parses an optional comma-separated `typename ident` list.
func (p *Parser) parseParams() ([]ast.Param, error) {
	var params []ast.Param
	if p.peek().Type == token.RPAREN {
		return params, nil
	}
	for {
		if !isTypeKeyword(p.peek().Type) {
			return nil, p.errorf(p.peek(), "expected a parameter type, found %s %q", p.peek().Type, p.peek().Lexeme)
		}
		typeTok := p.advance()
		nameTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: nameTok.Lexeme, Type: baseType(typeTok.Type)})
		if p.peek().Type != token.COMMA {
			break
		}
		p.advance()
	}
	return params, nil
}

// parseBody parses `localvars* stmt*` up to (but not including) one of the
// caller-supplied terminator tokens.
func (p *Parser) parseBody(terminators ...token.Type) ([]ast.VarDecl, []ast.Stmt, error) {
	var locals []ast.VarDecl
	for isTypeKeyword(p.peek().Type) {
		decls, err := p.parseVarDecl()
		if err != nil {
			return nil, nil, err
		}
		locals = append(locals, decls...)
	}

	var stmts []ast.Stmt
	for {
		tt := p.peek().Type
		for _, term := range terminators {
			if tt == term {
				return locals, stmts, nil
			}
		}
		if tt == token.EOF {
			return nil, nil, p.errorf(p.peek(), "unexpected end of input inside a block")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (p *Parser) parseProc() (*ast.RoutineDecl, error) {
	line := p.advance().Line // "PROC"
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	locals, stmts, err := p.parseBody(token.RETURN)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RETURN); err != nil {
		return nil, err
	}
	return &ast.RoutineDecl{
		Name:       nameTok.Lexeme,
		IsFunc:     false,
		Params:     params,
		Locals:     locals,
		Body:       stmts,
		ReturnType: types.TVoid,
		Line:       line,
	}, nil
}

func (p *Parser) parseFunc() (*ast.RoutineDecl, error) {
	line := p.advance().Line // "FUNC"
	if !isTypeKeyword(p.peek().Type) {
		return nil, p.errorf(p.peek(), "expected a return type after FUNC, found %s %q", p.peek().Type, p.peek().Lexeme)
	}
	retType := baseType(p.advance().Type)
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	// A FUNC body has no trailing RETURN keyword of its own: the routine
	// ends when the next PROC/FUNC/EOF begins, since RETURN(expr) is a
	// statement inside the body, not a body terminator (unlike PROC).
	locals, stmts, err := p.parseBody(token.PROC, token.FUNC, token.EOF)
	if err != nil {
		return nil, err
	}
	return &ast.RoutineDecl{
		Name:       nameTok.Lexeme,
		IsFunc:     true,
		Params:     params,
		Locals:     locals,
		Body:       stmts,
		ReturnType: retType,
		Line:       line,
	}, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.peek().Type {
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.UNTIL:
		return p.parseUntil()
	case token.RETURN:
		return p.parseReturn()
	case token.IDENT:
		return p.parseAssignOrCall()
	default:
		return nil, p.errorf(p.peek(), "unexpected token %s %q at start of statement", p.peek().Type, p.peek().Lexeme)
	}
}

func (p *Parser) parseAssignOrCall() (ast.Stmt, error) {
	nameTok := p.advance()
	if p.peek().Type != token.LPAREN {
		if _, err := p.expect(token.ASSIGN); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		target := &ast.Ident{Name: nameTok.Lexeme, Line: nameTok.Line, Column: nameTok.Column}
		return &ast.AssignStmt{Target: target, Value: value, Line: nameTok.Line}, nil
	}

	p.advance() // "("
	var args []ast.Expr
	if p.peek().Type != token.RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Type != token.COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	ioc := &ast.IndexOrCall{Name: nameTok.Lexeme, Args: args, Line: nameTok.Line, Column: nameTok.Column}

	if p.peek().Type == token.ASSIGN {
		p.advance()
		if len(args) != 1 {
			return nil, p.errorf(nameTok, "array index assignment takes exactly one index, got %d", len(args))
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		target := &ast.IndexExpr{Array: &ast.Ident{Name: nameTok.Lexeme, Line: nameTok.Line, Column: nameTok.Column}, Index: args[0], Line: nameTok.Line, Column: nameTok.Column}
		return &ast.AssignStmt{Target: target, Value: value, Line: nameTok.Line}, nil
	}

	return &ast.CallStmt{Call: ioc, Line: nameTok.Line}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	line := p.advance().Line // "IF"
	stmt := &ast.IfStmt{Line: line}

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.THEN); err != nil {
		return nil, err
	}
	_, body, err := p.parseBody(token.ELSEIF, token.ELSE, token.FI)
	if err != nil {
		return nil, err
	}
	stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})

	for p.peek().Type == token.ELSEIF {
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		_, body, err := p.parseBody(token.ELSEIF, token.ELSE, token.FI)
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})
	}

	if p.peek().Type == token.ELSE {
		p.advance()
		_, body, err := p.parseBody(token.FI)
		if err != nil {
			return nil, err
		}
		stmt.Else = body
	}

	if _, err := p.expect(token.FI); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	line := p.advance().Line // "WHILE"
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DO); err != nil {
		return nil, err
	}
	_, body, err := p.parseBody(token.OD)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.OD); err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body, Line: line}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	line := p.advance().Line // "FOR"
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	start, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TO); err != nil {
		return nil, err
	}
	end, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	var step ast.Expr
	if p.peek().Type == token.STEP {
		p.advance()
		step, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.DO); err != nil {
		return nil, err
	}
	_, body, err := p.parseBody(token.OD)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.OD); err != nil {
		return nil, err
	}
	return &ast.ForStmt{
		Var:   &ast.Ident{Name: nameTok.Lexeme, Line: nameTok.Line, Column: nameTok.Column},
		Start: start, End: end, Step: step, Body: body, Line: line,
	}, nil
}

func (p *Parser) parseUntil() (ast.Stmt, error) {
	line := p.advance().Line // "UNTIL"
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DO); err != nil {
		return nil, err
	}
	_, body, err := p.parseBody(token.OD)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.OD); err != nil {
		return nil, err
	}
	return &ast.UntilStmt{Cond: cond, Body: body, Line: line}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	line := p.advance().Line // "RETURN"
	if p.peek().Type != token.LPAREN {
		return &ast.ReturnStmt{Line: line}, nil
	}
	p.advance()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Expr: expr, Line: line}, nil
}

// Expression grammar, lowest to highest precedence:
//
//	OR
//	AND, XOR
//	comparison (= <> < > <= >=), with NOT parsed one level inside it
//	  (binds tighter than comparison, looser than arithmetic: "NOT a+b"
//	  is "NOT (a+b)", and "a = NOT b" compares a against the negation)
//	additive (+ -)
//	multiplicative (* / MOD)
//	bitwise (& % !)
//	unary (- ^ @)
//	primary

func (p *Parser) parseExpression() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAndXor()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.OR {
		opTok := p.advance()
		right, err := p.parseAndXor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Type, Left: left, Right: right, Line: opTok.Line, Column: opTok.Column}
	}
	return left, nil
}

func (p *Parser) parseAndXor() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.AND || p.peek().Type == token.XOR {
		opTok := p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Type, Left: left, Right: right, Line: opTok.Line, Column: opTok.Column}
	}
	return left, nil
}

func isComparisonOp(tt token.Type) bool {
	switch tt {
	case token.ASSIGN, token.NOTEQ, token.LT, token.GT, token.LE, token.GE:
		return true
	default:
		return false
	}
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseNotLevel()
	if err != nil {
		return nil, err
	}
	for isComparisonOp(p.peek().Type) {
		opTok := p.advance()
		right, err := p.parseNotLevel()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Type, Left: left, Right: right, Line: opTok.Line, Column: opTok.Column}
	}
	return left, nil
}

func (p *Parser) parseNotLevel() (ast.Expr, error) {
	if p.peek().Type == token.NOT {
		opTok := p.advance()
		operand, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: token.NOT, Operand: operand, Line: opTok.Line, Column: opTok.Column}, nil
	}
	return p.parseAdditive()
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.PLUS || p.peek().Type == token.MINUS {
		opTok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Type, Left: left, Right: right, Line: opTok.Line, Column: opTok.Column}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseBitwise()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.STAR || p.peek().Type == token.SLASH || p.peek().Type == token.MOD {
		opTok := p.advance()
		right, err := p.parseBitwise()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Type, Left: left, Right: right, Line: opTok.Line, Column: opTok.Column}
	}
	return left, nil
}

func (p *Parser) parseBitwise() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.BITAND || p.peek().Type == token.BITOR || p.peek().Type == token.BITXOR {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Type, Left: left, Right: right, Line: opTok.Line, Column: opTok.Column}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.peek().Type {
	case token.MINUS, token.CARET, token.AT:
		opTok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: opTok.Type, Operand: operand, Line: opTok.Line, Column: opTok.Column}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case token.INT:
		p.advance()
		return &ast.IntLiteral{Value: tok.IntVal, Line: tok.Line, Column: tok.Column}, nil
	case token.CHARLIT:
		p.advance()
		return &ast.CharLiteral{Value: byte(tok.IntVal), Line: tok.Line, Column: tok.Column}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLiteral{Value: tok.Bytes, Line: tok.Line, Column: tok.Column}, nil
	case token.LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	case token.IDENT:
		p.advance()
		if p.peek().Type != token.LPAREN {
			return &ast.Ident{Name: tok.Lexeme, Line: tok.Line, Column: tok.Column}, nil
		}
		p.advance()
		var args []ast.Expr
		if p.peek().Type != token.RPAREN {
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().Type != token.COMMA {
					break
				}
				p.advance()
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.IndexOrCall{Name: tok.Lexeme, Args: args, Line: tok.Line, Column: tok.Column}, nil
	default:
		return nil, p.errorf(tok, "expected an expression, found %s %q", tok.Type, tok.Lexeme)
	}
}
