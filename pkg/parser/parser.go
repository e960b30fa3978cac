// Package parser implements the parser (A2): recursive-descent with Pratt
// expression parsing, producing the pkg/ast tree that pkg/semcheck (C7)
// annotates. Syntax errors are reported into a pkg/reporter.Reporter and
// recovered from by skipping to the next statement boundary, so one bad
// statement does not abort the whole parse.
package parser

import (
	"fmt"
	"strconv"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/lexer"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

// Precedence levels, lowest to highest.
const (
	precLowest     = iota
	precRange      // ..
	precEquality   // == !=
	precRelational // < <= > >=
	precAdditive   // + -
	precMultiplicative
	precUnary
	precPostfix // [ ] . (
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenDotDot:   precRange,
	lexer.TokenEq:       precEquality,
	lexer.TokenNe:       precEquality,
	lexer.TokenLt:       precRelational,
	lexer.TokenLe:       precRelational,
	lexer.TokenGt:       precRelational,
	lexer.TokenGe:       precRelational,
	lexer.TokenPlus:     precAdditive,
	lexer.TokenMinus:    precAdditive,
	lexer.TokenStar:     precMultiplicative,
	lexer.TokenSlash:    precMultiplicative,
	lexer.TokenLBracket: precPostfix,
	lexer.TokenDot:      precPostfix,
}

// Parser turns a token stream into an *ast.Program. It keeps two tokens of
// lookahead (current and peek), which this grammar's disambiguation never
// needs to exceed.
type Parser struct {
	l   *lexer.Lexer
	rep *reporter.Reporter
	reg *types.Registry

	curToken  lexer.Token
	peekToken lexer.Token

	curFunc string // enclosing function name, for diagnostic scope; "global" outside one
}

// New creates a Parser over l, reporting syntax errors into rep and
// interning annotation types through reg. reg must be the same registry
// later handed to the semantic checker's context, or annotated types will
// fail to compare equal against inferred ones (types.Equal is pointer
// identity).
func New(l *lexer.Lexer, rep *reporter.Reporter, reg *types.Registry) *Parser {
	p := &Parser{l: l, rep: rep, reg: reg, curFunc: "global"}
	p.nextToken()
	p.nextToken()
	return p
}

// ParseProgram parses a whole translation unit.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.curTokenIs(lexer.TokenEOF) {
		if !p.curTokenIs(lexer.TokenFn) {
			p.errorf("expected %s, got %s", lexer.TokenFn, p.curToken.Type)
			p.syncToFn()
			continue
		}
		fn := p.parseFunction()
		if fn != nil {
			prog.Functions = append(prog.Functions, fn)
		}
		p.nextToken()
	}
	return prog
}

// syncToFn recovers from a malformed top-level declaration by skipping
// tokens until the next `fn` or end of input.
func (p *Parser) syncToFn() {
	for !p.curTokenIs(lexer.TokenFn) && !p.curTokenIs(lexer.TokenEOF) {
		p.nextToken()
	}
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return precLowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return precLowest
}

// expectPeek advances past peekToken if it has type t, reporting a syntax
// error and leaving the cursor in place otherwise.
func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.peekToken.Type)
	return false
}

func (p *Parser) tokenPos(tok lexer.Token) ast.Position {
	return ast.Position{Line: tok.Line, Col: tok.Column}
}

func (p *Parser) errorf(format string, args ...any) {
	p.rep.Report(reporter.Diagnostic{
		Severity: reporter.SeverityParser,
		Kind:     reporter.KindUnexpectedToken,
		Cause:    fmt.Sprintf(format, args...),
		Scope:    p.curFunc,
		Pos:      reporter.Position{Line: p.curToken.Line, Col: p.curToken.Column},
	})
}

// ---- Functions ----

func (p *Parser) parseFunction() *ast.Function {
	pos := p.tokenPos(p.curToken) // 'fn'
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	name := p.curToken.Literal
	p.curFunc = name

	if !p.expectPeek(lexer.TokenLParen) {
		return nil
	}
	var params []ast.Param
	if !p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		params = append(params, p.parseParam())
		for p.peekTokenIs(lexer.TokenComma) {
			p.nextToken()
			p.nextToken()
			params = append(params, p.parseParam())
		}
	}
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}

	retType := types.UnitT
	if p.peekTokenIs(lexer.TokenArrow) {
		p.nextToken()
		p.nextToken()
		retType = p.parseType()
	}

	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	body := p.parseBlockExpr()

	fn := &ast.Function{Name: name, Params: params, Return: retType, Body: body, Pos: pos}
	p.curFunc = "global"
	return fn
}

func (p *Parser) parseParam() ast.Param {
	pos := p.tokenPos(p.curToken)
	mutable := false
	if p.curTokenIs(lexer.TokenMut) {
		mutable = true
		p.nextToken()
	}
	name := p.curToken.Literal
	if !p.expectPeek(lexer.TokenColon) {
		return ast.Param{Name: name, Type: types.Unknown, Mutable: mutable, Pos: pos}
	}
	p.nextToken()
	t := p.parseType()
	return ast.Param{Name: name, Type: t, Mutable: mutable, Pos: pos}
}

// parseType parses a type annotation. curToken is the first token of the
// type on entry and the last token of it on return.
func (p *Parser) parseType() types.Type {
	switch p.curToken.Type {
	case lexer.TokenI32:
		return types.Int32T
	case lexer.TokenBool:
		return types.BoolT
	case lexer.TokenLBracket:
		p.nextToken()
		elem := p.parseType()
		if !p.expectPeek(lexer.TokenSemicolon) {
			return types.Unknown
		}
		if !p.expectPeek(lexer.TokenInt) {
			return types.Unknown
		}
		size, err := strconv.Atoi(p.curToken.Literal)
		if err != nil {
			p.errorf("invalid array size %q", p.curToken.Literal)
			size = 0
		}
		if !p.expectPeek(lexer.TokenRBracket) {
			return types.Unknown
		}
		return p.reg.Array(size, elem)
	case lexer.TokenLParen:
		if p.peekTokenIs(lexer.TokenRParen) {
			p.nextToken()
			return types.UnitT
		}
		p.nextToken()
		elems := []types.Type{p.parseType()}
		for p.peekTokenIs(lexer.TokenComma) {
			p.nextToken()
			if p.peekTokenIs(lexer.TokenRParen) {
				break
			}
			p.nextToken()
			elems = append(elems, p.parseType())
		}
		if !p.expectPeek(lexer.TokenRParen) {
			return types.Unknown
		}
		return p.reg.Tuple(elems)
	default:
		p.errorf("expected a type, got %s", p.curToken.Type)
		return types.Unknown
	}
}

// ---- Statements ----

func (p *Parser) parseBlockExpr() *ast.StmtBlockExpr {
	pos := p.tokenPos(p.curToken) // '{'
	p.nextToken()
	var stmts []ast.Stmt
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		stmt := p.parseStmt()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.nextToken()
	}
	return &ast.StmtBlockExpr{Stmts: stmts, Pos: pos}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.curToken.Type {
	case lexer.TokenLet:
		return p.parseLetStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLetStmt() ast.Stmt {
	pos := p.tokenPos(p.curToken) // 'let'
	mutable := false
	if p.peekTokenIs(lexer.TokenMut) {
		p.nextToken()
		mutable = true
	}
	if !p.expectPeek(lexer.TokenIdent) {
		p.syncToStmtEnd()
		return nil
	}
	name := p.curToken.Literal

	var ann types.Type
	if p.peekTokenIs(lexer.TokenColon) {
		p.nextToken()
		p.nextToken()
		ann = p.parseType()
	}

	if !p.expectPeek(lexer.TokenAssign) {
		p.syncToStmtEnd()
		return nil
	}
	p.nextToken()
	value := p.parseExpression(precLowest)
	if value == nil {
		p.syncToStmtEnd()
		return nil
	}

	if !p.expectPeek(lexer.TokenSemicolon) {
		p.syncToStmtEnd()
	}
	return &ast.LetStmt{Name: name, Mutable: mutable, Ann: ann, Value: value, Pos: pos}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	expr := p.parseExpression(precLowest)
	if expr == nil {
		p.syncToStmtEnd()
		return nil
	}
	if p.peekTokenIs(lexer.TokenAssign) {
		pos := p.tokenPos(p.peekToken)
		p.nextToken()
		p.nextToken()
		rval := p.parseExpression(precLowest)
		expr = &ast.AssignExpr{LVal: expr, RVal: rval, Pos: pos}
	}
	hasSemi := false
	if p.peekTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		hasSemi = true
	}
	return &ast.ExprStmt{X: expr, HasSemi: hasSemi}
}

// syncToStmtEnd recovers from a malformed statement by skipping to the next
// ';' or block boundary, so later statements in the same block still parse.
func (p *Parser) syncToStmtEnd() {
	for !p.curTokenIs(lexer.TokenSemicolon) && !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		p.nextToken()
	}
}

// ---- Expressions ----

func (p *Parser) parseExpression(precedence int) ast.Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for precedence < p.peekPrecedence() {
		switch p.peekToken.Type {
		case lexer.TokenPlus, lexer.TokenMinus, lexer.TokenStar, lexer.TokenSlash:
			p.nextToken()
			left = p.parseAriExpr(left)
		case lexer.TokenEq, lexer.TokenNe, lexer.TokenLt, lexer.TokenLe, lexer.TokenGt, lexer.TokenGe:
			p.nextToken()
			left = p.parseCmpExpr(left)
		case lexer.TokenDotDot:
			p.nextToken()
			left = p.parseRangeExpr(left)
		case lexer.TokenLBracket:
			p.nextToken()
			left = p.parseArrAcc(left)
		case lexer.TokenDot:
			p.nextToken()
			left = p.parseTupAcc(left)
		default:
			return left
		}
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenInt:
		return p.parseNumber()
	case lexer.TokenTrue, lexer.TokenFalse:
		return p.parseBool()
	case lexer.TokenIdent:
		return p.parseIdentOrCall()
	case lexer.TokenMinus:
		return p.parseUnaryMinus()
	case lexer.TokenLParen:
		return p.parseParenOrTuple()
	case lexer.TokenLBracket:
		return p.parseArrElems()
	case lexer.TokenLBrace:
		return p.parseBlockExpr()
	case lexer.TokenIf:
		return p.parseIfExpr()
	case lexer.TokenWhile:
		return p.parseWhileExpr()
	case lexer.TokenFor:
		return p.parseForExpr()
	case lexer.TokenLoop:
		return p.parseLoopExpr()
	case lexer.TokenReturn:
		return p.parseRetExpr()
	case lexer.TokenBreak:
		return p.parseBreakExpr()
	case lexer.TokenContinue:
		return &ast.ContinueExpr{Pos: p.tokenPos(p.curToken)}
	default:
		p.errorf("unexpected token %s", p.curToken.Type)
		return nil
	}
}

func (p *Parser) parseNumber() ast.Expr {
	pos := p.tokenPos(p.curToken)
	v, err := strconv.ParseInt(p.curToken.Literal, 10, 32)
	if err != nil {
		p.errorf("invalid integer literal %q", p.curToken.Literal)
	}
	return &ast.Number{Value: int32(v), Pos: pos}
}

func (p *Parser) parseBool() ast.Expr {
	return &ast.Bool{Value: p.curTokenIs(lexer.TokenTrue), Pos: p.tokenPos(p.curToken)}
}

func (p *Parser) parseIdentOrCall() ast.Expr {
	pos := p.tokenPos(p.curToken)
	name := p.curToken.Literal
	if !p.peekTokenIs(lexer.TokenLParen) {
		return &ast.Variable{Name: name, Pos: pos}
	}
	p.nextToken() // '('
	var argv []ast.Expr
	if !p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		argv = append(argv, p.parseExpression(precLowest))
		for p.peekTokenIs(lexer.TokenComma) {
			p.nextToken()
			p.nextToken()
			argv = append(argv, p.parseExpression(precLowest))
		}
	}
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}
	return &ast.CallExpr{Callee: name, Argv: argv, Pos: pos}
}

func (p *Parser) parseUnaryMinus() ast.Expr {
	pos := p.tokenPos(p.curToken)
	p.nextToken()
	operand := p.parseExpression(precUnary)
	if operand == nil {
		return nil
	}
	return &ast.AriExpr{Op: ast.AriSub, Lhs: &ast.Number{Value: 0, Pos: pos}, Rhs: operand, Pos: pos}
}

// parseParenOrTuple disambiguates `(E)` grouping from `(e1, e2, ...)` tuple
// literals, and `()` from a one-element tuple (which needs a trailing comma,
// same as the source language's own tuple syntax).
func (p *Parser) parseParenOrTuple() ast.Expr {
	pos := p.tokenPos(p.curToken)
	if p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		return &ast.BracketExpr{Inner: nil, Pos: pos}
	}
	p.nextToken()
	first := p.parseExpression(precLowest)
	if first == nil {
		return nil
	}
	if !p.peekTokenIs(lexer.TokenComma) {
		if !p.expectPeek(lexer.TokenRParen) {
			return nil
		}
		return &ast.BracketExpr{Inner: first, Pos: pos}
	}
	elems := []ast.Expr{first}
	for p.peekTokenIs(lexer.TokenComma) {
		p.nextToken()
		if p.peekTokenIs(lexer.TokenRParen) {
			break
		}
		p.nextToken()
		elems = append(elems, p.parseExpression(precLowest))
	}
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}
	return &ast.TupElems{Elems: elems, Pos: pos}
}

func (p *Parser) parseArrElems() ast.Expr {
	pos := p.tokenPos(p.curToken)
	var elems []ast.Expr
	if !p.peekTokenIs(lexer.TokenRBracket) {
		p.nextToken()
		elems = append(elems, p.parseExpression(precLowest))
		for p.peekTokenIs(lexer.TokenComma) {
			p.nextToken()
			if p.peekTokenIs(lexer.TokenRBracket) {
				break
			}
			p.nextToken()
			elems = append(elems, p.parseExpression(precLowest))
		}
	}
	if !p.expectPeek(lexer.TokenRBracket) {
		return nil
	}
	return &ast.ArrElems{Elems: elems, Pos: pos}
}

func (p *Parser) parseAriExpr(left ast.Expr) ast.Expr {
	op := p.curToken
	prec := p.curPrecedence()
	pos := p.tokenPos(op)
	p.nextToken()
	right := p.parseExpression(prec)
	if right == nil {
		return nil
	}
	return &ast.AriExpr{Op: ariOpFor(op.Type), Lhs: left, Rhs: right, Pos: pos}
}

func ariOpFor(t lexer.TokenType) ast.AriOp {
	switch t {
	case lexer.TokenPlus:
		return ast.AriAdd
	case lexer.TokenMinus:
		return ast.AriSub
	case lexer.TokenStar:
		return ast.AriMul
	default:
		return ast.AriDiv
	}
}

func (p *Parser) parseCmpExpr(left ast.Expr) ast.Expr {
	op := p.curToken
	prec := p.curPrecedence()
	pos := p.tokenPos(op)
	p.nextToken()
	right := p.parseExpression(prec)
	if right == nil {
		return nil
	}
	return &ast.CmpExpr{Op: cmpOpFor(op.Type), Lhs: left, Rhs: right, Pos: pos}
}

func cmpOpFor(t lexer.TokenType) ast.CmpOp {
	switch t {
	case lexer.TokenEq:
		return ast.CmpEq
	case lexer.TokenNe:
		return ast.CmpNeq
	case lexer.TokenLt:
		return ast.CmpLt
	case lexer.TokenLe:
		return ast.CmpLeq
	case lexer.TokenGt:
		return ast.CmpGt
	default:
		return ast.CmpGeq
	}
}

func (p *Parser) parseRangeExpr(left ast.Expr) ast.Expr {
	pos := p.tokenPos(p.curToken) // '..'
	p.nextToken()
	right := p.parseExpression(precRange)
	if right == nil {
		return nil
	}
	return &ast.RangeExpr{Start: left, End: right, Pos: pos}
}

func (p *Parser) parseArrAcc(left ast.Expr) ast.Expr {
	pos := p.tokenPos(p.curToken) // '['
	p.nextToken()
	idx := p.parseExpression(precLowest)
	if idx == nil {
		return nil
	}
	if !p.expectPeek(lexer.TokenRBracket) {
		return nil
	}
	return &ast.ArrAcc{Base: left, Idx: idx, Pos: pos}
}

func (p *Parser) parseTupAcc(left ast.Expr) ast.Expr {
	pos := p.tokenPos(p.curToken) // '.'
	if !p.expectPeek(lexer.TokenInt) {
		return nil
	}
	n, err := strconv.ParseInt(p.curToken.Literal, 10, 32)
	if err != nil {
		p.errorf("invalid tuple index %q", p.curToken.Literal)
	}
	idx := &ast.Number{Value: int32(n), Pos: p.tokenPos(p.curToken)}
	return &ast.TupAcc{Base: left, Idx: idx, Pos: pos}
}

func (p *Parser) parseIfExpr() ast.Expr {
	pos := p.tokenPos(p.curToken) // 'if'
	p.nextToken()
	cond := p.parseExpression(precLowest)
	if cond == nil {
		return nil
	}
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	body := p.parseBlockExpr()
	ifExpr := &ast.IfExpr{Cond: cond, Body: body, Pos: pos}

	for p.peekTokenIs(lexer.TokenElse) {
		p.nextToken() // 'else'
		if p.peekTokenIs(lexer.TokenIf) {
			p.nextToken() // 'if'
			elsePos := p.tokenPos(p.curToken)
			p.nextToken()
			elCond := p.parseExpression(precLowest)
			if elCond == nil || !p.expectPeek(lexer.TokenLBrace) {
				return ifExpr
			}
			elBody := p.parseBlockExpr()
			ifExpr.Elses = append(ifExpr.Elses, &ast.IfExpr{Cond: elCond, Body: elBody, Pos: elsePos})
			continue
		}
		if !p.expectPeek(lexer.TokenLBrace) {
			return ifExpr
		}
		ifExpr.Else = p.parseBlockExpr()
		break
	}
	return ifExpr
}

func (p *Parser) parseWhileExpr() ast.Expr {
	pos := p.tokenPos(p.curToken) // 'while'
	p.nextToken()
	cond := p.parseExpression(precLowest)
	if cond == nil {
		return nil
	}
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	body := p.parseBlockExpr()
	return &ast.WhileLoopExpr{Cond: cond, Body: body, Pos: pos}
}

func (p *Parser) parseForExpr() ast.Expr {
	pos := p.tokenPos(p.curToken) // 'for'
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	iter := p.curToken.Literal
	if !p.expectPeek(lexer.TokenIn) {
		return nil
	}
	p.nextToken()
	sourcePos := p.tokenPos(p.curToken)
	sourceExpr := p.parseExpression(precLowest)
	if sourceExpr == nil {
		return nil
	}
	var source ast.Expr
	if rng, ok := sourceExpr.(*ast.RangeExpr); ok {
		source = rng
	} else {
		source = &ast.IterableVal{Value: sourceExpr, Pos: sourcePos}
	}
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	body := p.parseBlockExpr()
	return &ast.ForLoopExpr{Iter: iter, Source: source, Body: body, Pos: pos}
}

func (p *Parser) parseLoopExpr() ast.Expr {
	pos := p.tokenPos(p.curToken) // 'loop'
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	body := p.parseBlockExpr()
	return &ast.LoopExpr{Body: body, Pos: pos}
}

func (p *Parser) parseRetExpr() ast.Expr {
	pos := p.tokenPos(p.curToken) // 'return'
	var value ast.Expr
	if !p.peekTokenIs(lexer.TokenSemicolon) && !p.peekTokenIs(lexer.TokenRBrace) {
		p.nextToken()
		value = p.parseExpression(precLowest)
	}
	return &ast.RetExpr{Value: value, Pos: pos}
}

func (p *Parser) parseBreakExpr() ast.Expr {
	pos := p.tokenPos(p.curToken) // 'break'
	var value ast.Expr
	if !p.peekTokenIs(lexer.TokenSemicolon) && !p.peekTokenIs(lexer.TokenRBrace) {
		p.nextToken()
		value = p.parseExpression(precLowest)
	}
	return &ast.BreakExpr{Value: value, Pos: pos}
}

// Errors reports whether any syntax error has been reported so far.
func (p *Parser) Errors() bool { return p.rep.HasErrors() }
