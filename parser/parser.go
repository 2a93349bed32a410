// Package parser is a recursive-descent parser over vesper's token
// stream, producing the tagged-union ast.Node tree the resolver and
// codegen consume. It is an external collaborator of the codegen core
// (spec §1): built far enough to drive and exercise the core end to
// end, not to be a fully hardened front end.
package parser

import (
	"fmt"

	"vesper/ast"
	"vesper/token"
)

// Parser walks a flat token slice one token ahead of the token it is
// currently deciding about, mirroring the teacher's position/peek/
// previous/advance scheme.
type Parser struct {
	tokens   []token.Token
	position int
}

func Make(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() token.Token     { return p.tokens[p.position] }
func (p *Parser) previous() token.Token { return p.tokens[p.position-1] }

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.position++
	}
	return p.previous()
}

func (p *Parser) isFinished() bool { return p.peek().TokenType == token.EOF }

func (p *Parser) checkType(tt token.TokenType) bool {
	if p.isFinished() {
		return tt == token.EOF
	}
	return p.peek().TokenType == tt
}

func (p *Parser) isMatch(types ...token.TokenType) bool {
	for _, tt := range types {
		if p.checkType(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(tt token.TokenType, message string) (token.Token, error) {
	if p.checkType(tt) {
		return p.advance(), nil
	}
	cur := p.peek()
	return token.Token{}, CreateSyntaxError(cur.Line, cur.Column, message)
}

func (p *Parser) pos() (int32, int) {
	tok := p.peek()
	return tok.Line, tok.Column
}

// Parse parses the whole token stream into top-level statements,
// collecting as many errors as possible: a failed top-level statement
// is skipped token-by-token up to the next statement boundary so one
// syntax error does not hide the rest.
func (p *Parser) Parse() ([]ast.Node, []error) {
	var stmts []ast.Node
	var errs []error

	for !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			errs = append(errs, err)
			p.synchronize()
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts, errs
}

// synchronize discards tokens until a plausible statement boundary, so
// Parse can keep collecting further errors after one bad statement.
func (p *Parser) synchronize() {
	for !p.isFinished() {
		switch p.peek().TokenType {
		case token.VAR, token.CONST, token.FUNC, token.CLASS, token.IF, token.WHILE,
			token.FOR, token.DO, token.WITH, token.RETURN, token.RAISE, token.IMPORT:
			return
		}
		p.advance()
	}
}

func (p *Parser) declaration() (ast.Node, error) {
	switch {
	case p.isMatch(token.VAR):
		return p.varDecl(false)
	case p.isMatch(token.CONST):
		return p.varDecl(true)
	case p.isMatch(token.PARALLEL, token.NOPARALLEL, token.DEPRECATED):
		return p.funcDeclWithModifiers()
	case p.isMatch(token.FUNC):
		return p.funcDecl()
	case p.isMatch(token.CLASS):
		return p.classDecl()
	case p.isMatch(token.IMPORT):
		return p.importDecl()
	default:
		return p.statement()
	}
}

func (p *Parser) varDecl(isConst bool) (ast.Node, error) {
	line, col := p.pos()
	name, err := p.consume(token.IDENTIFIER, "expected a variable name")
	if err != nil {
		return nil, err
	}
	var init ast.Node
	if p.isMatch(token.ASSIGN) {
		init, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	return ast.NewVarDef(line, col, name.Lexeme, init, isConst), nil
}

func (p *Parser) importDecl() (ast.Node, error) {
	line, col := p.pos()
	path, err := p.consume(token.IDENTIFIER, "expected a module path after 'import'")
	if err != nil {
		return nil, err
	}
	alias := ""
	if p.isMatch(token.AS) {
		aliasTok, err := p.consume(token.IDENTIFIER, "expected an identifier after 'as'")
		if err != nil {
			return nil, err
		}
		alias = aliasTok.Lexeme
	}
	return ast.NewImport(line, col, path.Lexeme, alias), nil
}

// funcDeclWithModifiers parses the leading run of `parallel`/
// `noparallel`/`deprecated` keywords that may precede a `fn`
// declaration, in any combination, then the declaration itself.
func (p *Parser) funcDeclWithModifiers() (ast.Node, error) {
	parallel, noParallel, deprecated := false, false, false
	switch p.previous().TokenType {
	case token.PARALLEL:
		parallel = true
	case token.NOPARALLEL:
		noParallel = true
	case token.DEPRECATED:
		deprecated = true
	}
	for p.isMatch(token.PARALLEL, token.NOPARALLEL, token.DEPRECATED) {
		switch p.previous().TokenType {
		case token.PARALLEL:
			parallel = true
		case token.NOPARALLEL:
			noParallel = true
		case token.DEPRECATED:
			deprecated = true
		}
	}
	if _, err := p.consume(token.FUNC, "expected 'fn' after function modifiers"); err != nil {
		return nil, err
	}
	fd, err := p.funcDecl()
	if err != nil {
		return nil, err
	}
	fn := fd.(*ast.FuncDef)
	fn.Parallel, fn.NoParallel, fn.Deprecated = parallel, noParallel, deprecated
	return fn, nil
}

func (p *Parser) funcDecl() (ast.Node, error) {
	line, col := p.pos()
	nameTok, err := p.consume(token.IDENTIFIER, "expected a function name")
	if err != nil {
		return nil, err
	}
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.LCUR, "expected '{' to start function body"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return ast.NewFuncDef(line, col, nameTok.Lexeme, params, body), nil
}

func (p *Parser) paramList() ([]ast.Param, error) {
	if _, err := p.consume(token.LPA, "expected '(' after function name"); err != nil {
		return nil, err
	}
	var params []ast.Param
	if !p.checkType(token.RPA) {
		for {
			nameTok, err := p.consume(token.IDENTIFIER, "expected a parameter name")
			if err != nil {
				return nil, err
			}
			var def ast.Node
			if p.isMatch(token.ASSIGN) {
				def, err = p.expression()
				if err != nil {
					return nil, err
				}
			}
			params = append(params, ast.Param{Name: nameTok.Lexeme, Default: def})
			if !p.isMatch(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after parameters"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) classDecl() (ast.Node, error) {
	line, col := p.pos()
	nameTok, err := p.consume(token.IDENTIFIER, "expected a class name")
	if err != nil {
		return nil, err
	}
	var base ast.Node
	if p.isMatch(token.COLON) {
		baseTok, err := p.consume(token.IDENTIFIER, "expected a base class name")
		if err != nil {
			return nil, err
		}
		bl, bc := baseTok.Line, baseTok.Column
		base = ast.NewIdentifierRef(bl, bc, baseTok.Lexeme)
	}
	if _, err := p.consume(token.LCUR, "expected '{' to start class body"); err != nil {
		return nil, err
	}
	cd := ast.NewClassDef(line, col, nameTok.Lexeme, base)
	for !p.checkType(token.RCUR) && !p.isFinished() {
		switch {
		case p.isMatch(token.VAR):
			va, err := p.varDecl(false)
			if err != nil {
				return nil, err
			}
			cd.VarAttrs = append(cd.VarAttrs, va.(*ast.VarDef))
		case p.isMatch(token.CONST):
			va, err := p.varDecl(true)
			if err != nil {
				return nil, err
			}
			cd.VarAttrs = append(cd.VarAttrs, va.(*ast.VarDef))
		case p.isMatch(token.FUNC):
			fn, err := p.funcDecl()
			if err != nil {
				return nil, err
			}
			cd.FuncAttrs = append(cd.FuncAttrs, fn.(*ast.FuncDef))
		default:
			cur := p.peek()
			return nil, CreateSyntaxError(cur.Line, cur.Column, "expected a var/const attribute or a method inside a class body")
		}
	}
	if _, err := p.consume(token.RCUR, "expected '}' to close class body"); err != nil {
		return nil, err
	}
	return cd, nil
}

// statement parses one statement, delegating a bare expression to
// expressionStatement which decides between CallStmt and a plain
// expression-evaluated-for-effect.
func (p *Parser) statement() (ast.Node, error) {
	switch {
	case p.isMatch(token.LCUR):
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return wrapBlock(body), nil
	case p.isMatch(token.IF):
		return p.ifStmt()
	case p.isMatch(token.WHILE):
		return p.whileStmt()
	case p.isMatch(token.FOR):
		return p.forStmt()
	case p.isMatch(token.DO):
		return p.doStmt()
	case p.isMatch(token.WITH):
		return p.withStmt()
	case p.isMatch(token.RETURN):
		return p.returnStmt()
	case p.isMatch(token.RAISE):
		return p.raiseStmt()
	case p.isMatch(token.BREAK):
		line, col := p.previous().Line, p.previous().Column
		return ast.NewBreak(line, col), nil
	case p.isMatch(token.CONTINUE):
		line, col := p.previous().Line, p.previous().Column
		return ast.NewContinue(line, col), nil
	default:
		return p.expressionStatement()
	}
}

// wrapBlock flattens a bare `{ ... }` block used as a statement into
// its statement list: this grammar has no separate "block" node kind,
// matching If/While/For/Do which all carry []Node bodies directly.
func wrapBlock(body []ast.Node) ast.Node {
	if len(body) == 1 {
		return body[0]
	}
	// Multiple bare-block statements collapse into a synthetic If with
	// an always-true clause, reusing If's []Node body carrier rather
	// than introducing a dedicated Block node kind.
	line, col := int32(0), 0
	if len(body) > 0 {
		line, col = body[0].Pos()
	}
	return ast.NewIf(line, col, []*ast.IfClause{{
		Cond: ast.NewLiteral(line, col, ast.ConstBool, true),
		Body: body,
	}})
}

func (p *Parser) block() ([]ast.Node, error) {
	var stmts []ast.Node
	for !p.checkType(token.RCUR) && !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.consume(token.RCUR, "expected '}' to close block"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) stmtOrBlock() ([]ast.Node, error) {
	if p.isMatch(token.LCUR) {
		return p.block()
	}
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	return []ast.Node{stmt}, nil
}

func (p *Parser) ifStmt() (ast.Node, error) {
	line, col := p.pos()
	var clauses []*ast.IfClause
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.stmtOrBlock()
	if err != nil {
		return nil, err
	}
	clauses = append(clauses, &ast.IfClause{Cond: cond, Body: body})

	for p.isMatch(token.ELIF) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		body, err := p.stmtOrBlock()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, &ast.IfClause{Cond: cond, Body: body})
	}
	if p.isMatch(token.ELSE) {
		body, err := p.stmtOrBlock()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, &ast.IfClause{Cond: nil, Body: body})
	}
	return ast.NewIf(line, col, clauses), nil
}

func (p *Parser) whileStmt() (ast.Node, error) {
	line, col := p.pos()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.stmtOrBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(line, col, cond, body), nil
}

func (p *Parser) forStmt() (ast.Node, error) {
	line, col := p.pos()
	nameTok, err := p.consume(token.IDENTIFIER, "expected a loop variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.IN, "expected 'in' after loop variable"); err != nil {
		return nil, err
	}
	container, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.stmtOrBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFor(line, col, nameTok.Lexeme, container, body), nil
}

func (p *Parser) doStmt() (ast.Node, error) {
	line, col := p.pos()
	if _, err := p.consume(token.LCUR, "expected '{' to start a do block"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	do := ast.NewDo(line, col)
	do.Body = body

	if p.isMatch(token.RESCUE) {
		for {
			errTok, err := p.consume(token.IDENTIFIER, "expected an error type name")
			if err != nil {
				return nil, err
			}
			do.ErrorTypes = append(do.ErrorTypes, ast.NewIdentifierRef(errTok.Line, errTok.Column, errTok.Lexeme))
			if !p.isMatch(token.COMMA) {
				break
			}
		}
		if p.isMatch(token.AS) {
			nameTok, err := p.consume(token.IDENTIFIER, "expected a name after 'as'")
			if err != nil {
				return nil, err
			}
			do.RescueName = nameTok.Lexeme
		}
		if _, err := p.consume(token.LCUR, "expected '{' to start rescue body"); err != nil {
			return nil, err
		}
		do.RescueBody, err = p.block()
		if err != nil {
			return nil, err
		}
	}
	if p.isMatch(token.FINALLY) {
		if _, err := p.consume(token.LCUR, "expected '{' to start finally body"); err != nil {
			return nil, err
		}
		do.HasFinally = true
		do.FinallyBody, err = p.block()
		if err != nil {
			return nil, err
		}
	}
	return do, nil
}

func (p *Parser) withStmt() (ast.Node, error) {
	line, col := p.pos()
	var clauses []*ast.WithClause
	for {
		clauseLine, clauseCol := p.pos()
		resource, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.AS, "expected 'as' in with clause"); err != nil {
			return nil, err
		}
		nameTok, err := p.consume(token.IDENTIFIER, "expected a name after 'as'")
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, &ast.WithClause{
			Base:     &ast.Base{NodeKind: ast.KWithClause, Line: clauseLine, Column: clauseCol, Storage: ast.StorageRef{EvalTempID: -1}},
			Name:     nameTok.Lexeme,
			Resource: resource,
		})
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	if _, err := p.consume(token.LCUR, "expected '{' to start with body"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return ast.NewWith(line, col, clauses, body), nil
}

func (p *Parser) returnStmt() (ast.Node, error) {
	line, col := p.previous().Line, p.previous().Column
	if p.checkType(token.RCUR) || p.isFinished() {
		return ast.NewReturn(line, col, nil), nil
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return ast.NewReturn(line, col, value), nil
}

// raiseStmt parses `raise <unary expression>`, normally
// `raise new ErrorClass(args...)`. It does not check that shape;
// codegen's lowerRaise rejects any Expr that is not a UnaryOp{Op: OpNew}
// wrapping a Call.
func (p *Parser) raiseStmt() (ast.Node, error) {
	line, col := p.pos()
	expr, err := p.unary()
	if err != nil {
		return nil, err
	}
	return ast.NewRaise(line, col, expr), nil
}

func (p *Parser) expressionStatement() (ast.Node, error) {
	line, col := p.pos()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if call, ok := expr.(*ast.Call); ok {
		return ast.NewCallStmt(line, col, call), nil
	}
	return expr, nil
}

// --- expressions, by ascending precedence ---

func (p *Parser) expression() (ast.Node, error) { return p.assignment() }

func (p *Parser) assignment() (ast.Node, error) {
	expr, err := p.given()
	if err != nil {
		return nil, err
	}
	switch {
	case p.isMatch(token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.MULT_ASSIGN, token.DIV_ASSIGN):
		opTok := p.previous()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		if !isAssignable(expr) {
			return nil, CreateSyntaxError(opTok.Line, opTok.Column, "invalid assignment target")
		}
		line, col := expr.Pos()
		return ast.NewAssign(line, col, expr, value, ast.AssignOpFromToken(opTok.TokenType)), nil
	}
	return expr, nil
}

func isAssignable(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.IdentifierRef:
		return true
	case *ast.BinaryOp:
		return v.Op == ast.OpAttr || v.Op == ast.OpIndex
	}
	return false
}

// given parses the ternary `given Cond then Yes else No`.
func (p *Parser) given() (ast.Node, error) {
	if p.isMatch(token.GIVEN) {
		line, col := p.previous().Line, p.previous().Column
		cond, err := p.or()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.THEN, "expected 'then' after 'given' condition"); err != nil {
			return nil, err
		}
		yes, err := p.or()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.ELSE, "expected 'else' in 'given' expression"); err != nil {
			return nil, err
		}
		no, err := p.or()
		if err != nil {
			return nil, err
		}
		return ast.NewGiven(line, col, cond, yes, no), nil
	}
	return p.or()
}

func (p *Parser) or() (ast.Node, error) {
	expr, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isMatch(token.OR) {
		line, col := p.previous().Line, p.previous().Column
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		expr = ast.NewBinaryOp(line, col, ast.OpOr, expr, right)
	}
	return expr, nil
}

func (p *Parser) and() (ast.Node, error) {
	expr, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.isMatch(token.AND) {
		line, col := p.previous().Line, p.previous().Column
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		expr = ast.NewBinaryOp(line, col, ast.OpAnd, expr, right)
	}
	return expr, nil
}

var equalityOps = map[token.TokenType]ast.BinOp{token.EQUAL_EQUAL: ast.OpEqual, token.NOT_EQUAL: ast.OpNotEqual}
var comparisonOps = map[token.TokenType]ast.BinOp{
	token.LESS: ast.OpLess, token.LESS_EQUAL: ast.OpLessEqual,
	token.LARGER: ast.OpGreater, token.LARGER_EQUAL: ast.OpGreaterEqual,
}
var bitOrOps = map[token.TokenType]ast.BinOp{token.BIT_OR: ast.OpBitOr}
var bitXorOps = map[token.TokenType]ast.BinOp{token.BIT_XOR: ast.OpBitXor}
var bitAndOps = map[token.TokenType]ast.BinOp{token.BIT_AND: ast.OpBitAnd}
var termOps = map[token.TokenType]ast.BinOp{token.ADD: ast.OpAdd, token.SUB: ast.OpSub}
var factorOps = map[token.TokenType]ast.BinOp{token.MULT: ast.OpMul, token.DIV: ast.OpDiv, token.MODULO: ast.OpMod}

func (p *Parser) binaryLevel(next func() (ast.Node, error), ops map[token.TokenType]ast.BinOp) (ast.Node, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.peek().TokenType]
		if !ok {
			return expr, nil
		}
		opTok := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		expr = ast.NewBinaryOp(opTok.Line, opTok.Column, op, expr, right)
	}
}

func (p *Parser) equality() (ast.Node, error)   { return p.binaryLevel(p.comparison, equalityOps) }
func (p *Parser) comparison() (ast.Node, error) { return p.binaryLevel(p.bitOr, comparisonOps) }
func (p *Parser) bitOr() (ast.Node, error)      { return p.binaryLevel(p.bitXor, bitOrOps) }
func (p *Parser) bitXor() (ast.Node, error)     { return p.binaryLevel(p.bitAnd, bitXorOps) }
func (p *Parser) bitAnd() (ast.Node, error)     { return p.binaryLevel(p.term, bitAndOps) }
func (p *Parser) term() (ast.Node, error)       { return p.binaryLevel(p.factor, termOps) }
func (p *Parser) factor() (ast.Node, error)     { return p.binaryLevel(p.unary, factorOps) }

func (p *Parser) unary() (ast.Node, error) {
	switch {
	case p.isMatch(token.BANG, token.NOT):
		line, col := p.previous().Line, p.previous().Column
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(line, col, ast.OpNot, operand), nil
	case p.isMatch(token.SUB):
		line, col := p.previous().Line, p.previous().Column
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(line, col, ast.OpNeg, operand), nil
	case p.isMatch(token.NEW):
		line, col := p.previous().Line, p.previous().Column
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if _, ok := operand.(*ast.Call); !ok {
			return nil, CreateSyntaxError(line, col, "'new' requires a call expression, e.g. new Foo(...)")
		}
		return ast.NewUnaryOp(line, col, ast.OpNew, operand), nil
	case p.isMatch(token.AWAIT):
		line, col := p.previous().Line, p.previous().Column
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.NewAwait(line, col, operand), nil
	}
	return p.postfix()
}

// postfix parses call/index/attribute-access suffixes, left to right,
// after a primary expression.
func (p *Parser) postfix() (ast.Node, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isMatch(token.LPA):
			expr, err = p.finishCall(expr)
			if err != nil {
				return nil, err
			}
		case p.isMatch(token.DOT):
			nameTok, err := p.consume(token.IDENTIFIER, "expected an attribute name after '.'")
			if err != nil {
				return nil, err
			}
			line, col := expr.Pos()
			expr = ast.NewAttrAccess(line, col, expr, nameTok.Lexeme)
		case p.isMatch(token.LBRACKET):
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.RBRACKET, "expected ']' after index expression"); err != nil {
				return nil, err
			}
			line, col := expr.Pos()
			expr = ast.NewBinaryOp(line, col, ast.OpIndex, expr, idx)
		default:
			return expr, nil
		}
	}
}

// finishCall parses a call's argument list after the opening '(' has
// already been consumed. Keyword arguments (`name = value`) may follow
// positional ones, matching §4.4's call-emission ordering.
func (p *Parser) finishCall(callee ast.Node) (ast.Node, error) {
	line, col := callee.Pos()
	var pos []ast.Node
	var kw []ast.KwArg
	unpack := false

	if !p.checkType(token.RPA) {
		for {
			if p.checkType(token.IDENTIFIER) && p.tokens[p.position+1].TokenType == token.ASSIGN {
				nameTok := p.advance()
				p.advance() // '='
				value, err := p.expression()
				if err != nil {
					return nil, err
				}
				kw = append(kw, ast.KwArg{Name: nameTok.Lexeme, Value: value})
			} else {
				arg, err := p.expression()
				if err != nil {
					return nil, err
				}
				if p.isMatch(token.MULT) {
					unpack = true
				}
				pos = append(pos, arg)
			}
			if !p.isMatch(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after call arguments"); err != nil {
		return nil, err
	}
	call := ast.NewCall(line, col, callee, pos, kw)
	call.Unpack = unpack
	return call, nil
}

func (p *Parser) primary() (ast.Node, error) {
	line, col := p.pos()
	switch {
	case p.isMatch(token.FALSE):
		return ast.NewLiteral(line, col, ast.ConstBool, false), nil
	case p.isMatch(token.TRUE):
		return ast.NewLiteral(line, col, ast.ConstBool, true), nil
	case p.isMatch(token.NULL):
		return ast.NewLiteral(line, col, ast.ConstNull, nil), nil
	case p.isMatch(token.INT):
		return ast.NewLiteral(line, col, ast.ConstInt, p.previous().Literal), nil
	case p.isMatch(token.FLOAT):
		return ast.NewLiteral(line, col, ast.ConstFloat, p.previous().Literal), nil
	case p.isMatch(token.STRING):
		lit := ast.NewLiteral(line, col, ast.ConstString, p.previous().Literal)
		lit.RawUTF8 = []byte(p.previous().Literal.(string))
		lit.RuneCount = len([]rune(p.previous().Literal.(string)))
		return lit, nil
	case p.isMatch(token.HAS_ATTR):
		return p.hasAttrCall(line, col)
	case p.isMatch(token.IDENTIFIER):
		return ast.NewIdentifierRef(line, col, p.previous().Lexeme), nil
	case p.isMatch(token.LPA):
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "expected ')' after grouped expression"); err != nil {
			return nil, err
		}
		return expr, nil
	case p.isMatch(token.LBRACKET):
		return p.listLiteral(line, col)
	case p.isMatch(token.LCUR):
		return p.setOrMapLiteral(line, col)
	}
	cur := p.peek()
	return nil, CreateSyntaxError(cur.Line, cur.Column, fmt.Sprintf("unrecognised expression starting at %q", cur.Lexeme))
}

// hasAttrCall recreates has_attr's keyword token as the plain
// identifier-callee Call shape codegen's lowerer recognises (§4.4
// "has_attr intrinsic"): the keyword only affects tokenising, not the
// tree shape.
func (p *Parser) hasAttrCall(line int32, col int) (ast.Node, error) {
	callee := ast.NewIdentifierRef(line, col, "has_attr")
	if _, err := p.consume(token.LPA, "expected '(' after has_attr"); err != nil {
		return nil, err
	}
	return p.finishCall(callee)
}

func (p *Parser) listLiteral(line int32, col int) (ast.Node, error) {
	var elems []ast.Node
	if !p.checkType(token.RBRACKET) {
		for {
			elem, err := p.expression()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if !p.isMatch(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RBRACKET, "expected ']' after list elements"); err != nil {
		return nil, err
	}
	return ast.NewList(line, col, elems), nil
}

// setOrMapLiteral disambiguates `{a, b}` (Set) from `{a: 1, b: 2}`
// (Map) by checking, after the first element, whether a ':' follows.
func (p *Parser) setOrMapLiteral(line int32, col int) (ast.Node, error) {
	if p.isMatch(token.RCUR) {
		return ast.NewSet(line, col, nil), nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.isMatch(token.COLON) {
		firstVal, err := p.expression()
		if err != nil {
			return nil, err
		}
		entries := []ast.MapEntry{{Key: first, Value: firstVal}}
		for p.isMatch(token.COMMA) {
			k, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.COLON, "expected ':' in map entry"); err != nil {
				return nil, err
			}
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.MapEntry{Key: k, Value: v})
		}
		if _, err := p.consume(token.RCUR, "expected '}' after map entries"); err != nil {
			return nil, err
		}
		return ast.NewMap(line, col, entries), nil
	}

	elems := []ast.Node{first}
	for p.isMatch(token.COMMA) {
		elem, err := p.expression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	if _, err := p.consume(token.RCUR, "expected '}' after set elements"); err != nil {
		return nil, err
	}
	return ast.NewSet(line, col, elems), nil
}
