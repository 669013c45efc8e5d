// Package parser implements NanoC's recursive-descent parser.
//
// Statements and declarations are parsed by straight recursive descent;
// expressions use precedence climbing over the levels, low to high:
// logical-or, logical-and, equality, relational, additive,
// multiplicative, unary, postfix, primary. All binary operators are
// left-associative. Assignment is parsed as a statement, never as an
// expression.
//
// The parser follows panic-mode error handling: the first ParseError
// it hits is returned immediately and parsing stops — there is no
// resynchronization.
package parser

import (
	"fmt"

	"nanoc/ast"
	"nanoc/token"
)

// Parser holds a token stream and a single-token lookahead cursor.
type Parser struct {
	tokens []token.Token
	pos    int
}

// Make constructs a Parser over a token stream produced by the lexer.
func Make(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) previous() token.Token {
	return p.tokens[p.pos-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().TokenType == token.EOF
}

func (p *Parser) check(tt token.TokenType) bool {
	if p.isAtEnd() {
		return tt == token.EOF
	}
	return p.peek().TokenType == tt
}

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

// match consumes and returns true if the current token is one of tt.
func (p *Parser) match(tt ...token.TokenType) bool {
	for _, k := range tt {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

// consume advances past the current token if it matches tt, otherwise
// produces a ParseError describing what was expected.
func (p *Parser) consume(tt token.TokenType, context string) (token.Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	found := p.peek()
	return token.Token{}, ParseError{
		Expected: []string{string(tt)},
		Found:    string(found.TokenType),
		Line:     found.Line,
		Col:      found.Col,
		Msg:      fmt.Sprintf("expected %s %s, found %q", tt, context, found.Lexeme),
	}
}

func posOf(tok token.Token) ast.Pos { return ast.Pos{Line: tok.Line, Col: tok.Col} }

// Parse parses the whole token stream into a list of top-level
// declarations. It returns on the first error.
func (p *Parser) Parse() ([]ast.Decl, error) {
	var decls []ast.Decl
	for !p.isAtEnd() {
		decl, err := p.topLevelDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

var typeTokens = map[token.TokenType]ast.Type{
	token.KW_INT:  ast.TypeInt,
	token.KW_BOOL: ast.TypeBool,
	token.KW_VOID: ast.TypeVoid,
}

// parseType consumes one of the type keywords.
func (p *Parser) parseType() (ast.Type, error) {
	tok := p.peek()
	ty, ok := typeTokens[tok.TokenType]
	if !ok {
		return "", ParseError{Found: string(tok.TokenType), Line: tok.Line, Col: tok.Col,
			Msg: fmt.Sprintf("expected a type, found %q", tok.Lexeme)}
	}
	p.advance()
	return ty, nil
}

// topLevelDecl parses a single top-level declaration: a function or a
// global variable. Both start with `['const'] type IDENT`; the parser
// disambiguates by peeking for '(' after the name.
func (p *Parser) topLevelDecl() (ast.Decl, error) {
	startTok := p.peek()
	isConst := p.match(token.KW_CONST)

	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}

	nameTok, err := p.consume(token.IDENT, "after type")
	if err != nil {
		return nil, err
	}

	if p.check(token.LPA) {
		if isConst {
			return nil, ParseError{Line: startTok.Line, Col: startTok.Col,
				Msg: "functions cannot be declared const"}
		}
		return p.finishFuncDecl(startTok, ty, nameTok.Lexeme)
	}

	return p.finishVarDecl(startTok, ty, nameTok.Lexeme, isConst)
}

func (p *Parser) finishFuncDecl(startTok token.Token, returnType ast.Type, name string) (ast.Decl, error) {
	if _, err := p.consume(token.LPA, "to start parameter list"); err != nil {
		return nil, err
	}
	var params []ast.Param
	if !p.check(token.RPA) {
		for {
			pty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			pname, err := p.consume(token.IDENT, "as parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, ast.Param{Type: pty, Name: pname.Lexeme})
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "to close parameter list"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.LCUR, "to start function body"); err != nil {
		return nil, err
	}
	body, err := p.finishBlock(startTok)
	if err != nil {
		return nil, err
	}
	return ast.FuncDecl{
		Pos:        posOf(startTok),
		ReturnType: returnType,
		Name:       name,
		Params:     params,
		Body:       body,
	}, nil
}

// finishVarDecl parses the remainder of `['const'] type IDENT` through
// the optional array size, optional initializer, and terminating ';'.
func (p *Parser) finishVarDecl(startTok token.Token, ty ast.Type, name string, isConst bool) (ast.Decl, error) {
	var arraySize ast.Expr
	if p.match(token.LBRACKET) {
		size, err := p.expression()
		if err != nil {
			return nil, err
		}
		arraySize = size
		if _, err := p.consume(token.RBRACKET, "to close array size"); err != nil {
			return nil, err
		}
	}

	var init ast.Expr
	if p.match(token.ASSIGN) {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		init = value
	}

	if _, err := p.consume(token.SEMI, "to terminate declaration"); err != nil {
		return nil, err
	}

	return ast.VarDecl{
		Pos:       posOf(startTok),
		Type:      ty,
		Name:      name,
		IsConst:   isConst,
		Init:      init,
		ArraySize: arraySize,
	}, nil
}

// --- Statements ---

func (p *Parser) statement() (ast.Stmt, error) {
	tok := p.peek()
	switch tok.TokenType {
	case token.KW_CONST, token.KW_INT, token.KW_BOOL, token.KW_VOID:
		decl, err := p.localVarDecl()
		if err != nil {
			return nil, err
		}
		return decl, nil
	case token.LCUR:
		p.advance()
		return p.finishBlock(tok)
	case token.KW_IF:
		p.advance()
		return p.ifStatement(tok)
	case token.KW_WHILE:
		p.advance()
		return p.whileStatement(tok)
	case token.KW_FOR:
		p.advance()
		return p.forStatement(tok)
	case token.KW_RETURN:
		p.advance()
		return p.returnStatement(tok)
	case token.KW_BREAK:
		p.advance()
		if _, err := p.consume(token.SEMI, "after break"); err != nil {
			return nil, err
		}
		return ast.Break{Pos: posOf(tok)}, nil
	case token.KW_CONTINUE:
		p.advance()
		if _, err := p.consume(token.SEMI, "after continue"); err != nil {
			return nil, err
		}
		return ast.Continue{Pos: posOf(tok)}, nil
	case token.KW_PRINT:
		p.advance()
		return p.printStatement(tok)
	default:
		return p.simpleStatement(true)
	}
}

// localVarDecl parses a var_decl used as a statement, sharing the
// post-type logic with topLevelDecl via finishVarDecl.
func (p *Parser) localVarDecl() (ast.Stmt, error) {
	startTok := p.peek()
	isConst := p.match(token.KW_CONST)
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.consume(token.IDENT, "after type")
	if err != nil {
		return nil, err
	}
	decl, err := p.finishVarDecl(startTok, ty, nameTok.Lexeme, isConst)
	if err != nil {
		return nil, err
	}
	return decl.(ast.VarDecl), nil
}

func (p *Parser) finishBlock(openBrace token.Token) (ast.Block, error) {
	var stmts []ast.Stmt
	for !p.check(token.RCUR) && !p.isAtEnd() {
		stmt, err := p.statement()
		if err != nil {
			return ast.Block{}, err
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.consume(token.RCUR, "to close block"); err != nil {
		return ast.Block{}, err
	}
	return ast.Block{Pos: posOf(openBrace), Stmts: stmts}, nil
}

func (p *Parser) ifStatement(ifTok token.Token) (ast.Stmt, error) {
	if _, err := p.consume(token.LPA, "after if"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "after if condition"); err != nil {
		return nil, err
	}
	then, err := p.statement()
	if err != nil {
		return nil, err
	}
	var elseStmt ast.Stmt
	if p.match(token.KW_ELSE) {
		elseStmt, err = p.statement()
		if err != nil {
			return nil, err
		}
	}
	return ast.If{Pos: posOf(ifTok), Cond: cond, Then: then, Else: elseStmt}, nil
}

func (p *Parser) whileStatement(whileTok token.Token) (ast.Stmt, error) {
	if _, err := p.consume(token.LPA, "after while"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "after while condition"); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return ast.While{Pos: posOf(whileTok), Cond: cond, Body: body}, nil
}

func (p *Parser) forStatement(forTok token.Token) (ast.Stmt, error) {
	if _, err := p.consume(token.LPA, "after for"); err != nil {
		return nil, err
	}

	var init ast.Stmt
	switch {
	case p.match(token.SEMI):
		// no init clause
	case p.check(token.KW_CONST) || p.check(token.KW_INT) || p.check(token.KW_BOOL) || p.check(token.KW_VOID):
		decl, err := p.localVarDecl()
		if err != nil {
			return nil, err
		}
		init = decl
	default:
		stmt, err := p.simpleStatement(true)
		if err != nil {
			return nil, err
		}
		init = stmt
	}

	var cond ast.Expr
	if !p.check(token.SEMI) {
		c, err := p.expression()
		if err != nil {
			return nil, err
		}
		cond = c
	}
	if _, err := p.consume(token.SEMI, "after for condition"); err != nil {
		return nil, err
	}

	var update ast.Stmt
	if !p.check(token.RPA) {
		u, err := p.simpleStatement(false)
		if err != nil {
			return nil, err
		}
		update = u
	}
	if _, err := p.consume(token.RPA, "after for clauses"); err != nil {
		return nil, err
	}

	body, err := p.statement()
	if err != nil {
		return nil, err
	}

	return ast.For{Pos: posOf(forTok), Init: init, Cond: cond, Update: update, Body: body}, nil
}

func (p *Parser) returnStatement(retTok token.Token) (ast.Stmt, error) {
	var value ast.Expr
	if !p.check(token.SEMI) {
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		value = v
	}
	if _, err := p.consume(token.SEMI, "after return"); err != nil {
		return nil, err
	}
	return ast.Return{Pos: posOf(retTok), Value: value}, nil
}

func (p *Parser) printStatement(printTok token.Token) (ast.Stmt, error) {
	if _, err := p.consume(token.LPA, "after print"); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "after print argument"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.SEMI, "after print statement"); err != nil {
		return nil, err
	}
	return ast.Print{Pos: posOf(printTok), Expr: expr}, nil
}

// simpleStatement parses an expression statement, possibly converting
// it into an Assign or ArrayStore when '=' follows. When requireSemi is
// false (for-loop update clause), no terminating ';' is consumed.
func (p *Parser) simpleStatement(requireSemi bool) (ast.Stmt, error) {
	startTok := p.peek()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}

	var stmt ast.Stmt
	if p.match(token.ASSIGN) {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		switch target := expr.(type) {
		case ast.Ident:
			stmt = ast.Assign{Pos: posOf(startTok), Target: target.Name, Value: value}
		case ast.ArrayLoad:
			stmt = ast.ArrayStore{Pos: posOf(startTok), Name: target.Name, Index: target.Index, Value: value}
		default:
			return nil, ParseError{Line: startTok.Line, Col: startTok.Col,
				Msg: "left-hand side of assignment must be a variable or array element"}
		}
	} else {
		stmt = ast.ExprStmt{Pos: posOf(startTok), Expr: expr}
	}

	if requireSemi {
		if _, err := p.consume(token.SEMI, "after statement"); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// --- Expressions ---

func (p *Parser) expression() (ast.Expr, error) {
	return p.logicalOr()
}

func (p *Parser) logicalOr() (ast.Expr, error) {
	left, err := p.logicalAnd()
	if err != nil {
		return nil, err
	}
	for p.check(token.OR_OR) {
		opTok := p.advance()
		right, err := p.logicalAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Pos: posOf(opTok), Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) logicalAnd() (ast.Expr, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.check(token.AND_AND) {
		opTok := p.advance()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Pos: posOf(opTok), Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

var equalityOps = map[token.TokenType]ast.BinaryOp{
	token.EQUAL_EQUAL: ast.OpEq,
	token.NOT_EQUAL:   ast.OpNeq,
}

func (p *Parser) equality() (ast.Expr, error) {
	left, err := p.relational()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := equalityOps[p.peek().TokenType]
		if !ok {
			return left, nil
		}
		opTok := p.advance()
		right, err := p.relational()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Pos: posOf(opTok), Op: op, Left: left, Right: right}
	}
}

var relationalOps = map[token.TokenType]ast.BinaryOp{
	token.LESS:         ast.OpLt,
	token.LARGER:       ast.OpGt,
	token.LESS_EQUAL:   ast.OpLe,
	token.LARGER_EQUAL: ast.OpGe,
}

func (p *Parser) relational() (ast.Expr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := relationalOps[p.peek().TokenType]
		if !ok {
			return left, nil
		}
		opTok := p.advance()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Pos: posOf(opTok), Op: op, Left: left, Right: right}
	}
}

var additiveOps = map[token.TokenType]ast.BinaryOp{
	token.PLUS:  ast.OpAdd,
	token.MINUS: ast.OpSub,
}

func (p *Parser) additive() (ast.Expr, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := additiveOps[p.peek().TokenType]
		if !ok {
			return left, nil
		}
		opTok := p.advance()
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Pos: posOf(opTok), Op: op, Left: left, Right: right}
	}
}

var multiplicativeOps = map[token.TokenType]ast.BinaryOp{
	token.STAR:    ast.OpMul,
	token.SLASH:   ast.OpDiv,
	token.PERCENT: ast.OpMod,
}

func (p *Parser) multiplicative() (ast.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := multiplicativeOps[p.peek().TokenType]
		if !ok {
			return left, nil
		}
		opTok := p.advance()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Pos: posOf(opTok), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) unary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.TokenType {
	case token.BANG:
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Pos: posOf(tok), Op: ast.OpNot, Operand: operand}, nil
	case token.MINUS:
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Pos: posOf(tok), Op: ast.OpNeg, Operand: operand}, nil
	case token.PLUS_PLUS, token.MINUS_MINUS:
		p.advance()
		name, err := p.consume(token.IDENT, "after ++/--")
		if err != nil {
			return nil, err
		}
		op := ast.PreInc
		if tok.TokenType == token.MINUS_MINUS {
			op = ast.PreDec
		}
		return ast.IncDec{Pos: posOf(tok), Op: op, Target: name.Lexeme}, nil
	default:
		return p.postfix()
	}
}

func (p *Parser) postfix() (ast.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.check(token.PLUS_PLUS) || p.check(token.MINUS_MINUS) {
		ident, ok := expr.(ast.Ident)
		if !ok {
			tok := p.peek()
			return nil, ParseError{Line: tok.Line, Col: tok.Col, Msg: "++/-- may only be applied to a variable"}
		}
		tok := p.advance()
		op := ast.PostInc
		if tok.TokenType == token.MINUS_MINUS {
			op = ast.PostDec
		}
		return ast.IncDec{Pos: posOf(tok), Op: op, Target: ident.Name}, nil
	}
	return expr, nil
}

func (p *Parser) primary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.TokenType {
	case token.INT:
		p.advance()
		return ast.IntLit{Pos: posOf(tok), Value: tok.Literal.(int64)}, nil
	case token.KW_TRUE:
		p.advance()
		return ast.BoolLit{Pos: posOf(tok), Value: true}, nil
	case token.KW_FALSE:
		p.advance()
		return ast.BoolLit{Pos: posOf(tok), Value: false}, nil
	case token.KW_READINT:
		p.advance()
		if _, err := p.consume(token.LPA, "after readInt"); err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "after readInt("); err != nil {
			return nil, err
		}
		return ast.ReadInt{Pos: posOf(tok)}, nil
	case token.LPA:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "to close grouping"); err != nil {
			return nil, err
		}
		return inner, nil
	case token.IDENT:
		p.advance()
		if p.match(token.LPA) {
			return p.finishCall(tok)
		}
		if p.match(token.LBRACKET) {
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.RBRACKET, "to close array index"); err != nil {
				return nil, err
			}
			return ast.ArrayLoad{Pos: posOf(tok), Name: tok.Lexeme, Index: index}, nil
		}
		return ast.Ident{Pos: posOf(tok), Name: tok.Lexeme}, nil
	default:
		return nil, ParseError{Found: string(tok.TokenType), Line: tok.Line, Col: tok.Col,
			Msg: fmt.Sprintf("expected an expression, found %q", tok.Lexeme)}
	}
}

func (p *Parser) finishCall(nameTok token.Token) (ast.Expr, error) {
	var args []ast.Expr
	if !p.check(token.RPA) {
		for {
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "to close call arguments"); err != nil {
		return nil, err
	}
	return ast.Call{Pos: posOf(nameTok), Name: nameTok.Lexeme, Args: args}, nil
}
