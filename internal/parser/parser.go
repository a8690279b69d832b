package parser

import (
	"fmt"
	"strconv"

	"vonktaal/internal/ast"
	"vonktaal/internal/lexer"
	"vonktaal/internal/token"
)

const (
	_ int = iota
	LOWEST
	OR          // ||
	AND         // &&
	EQUALS      // == !=
	LESSGREATER // < > <= >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -x !x
	CALL        // fn(x)
	INDEX       // arr[x]
	MEMBER      // x.y
)

var precedences = map[token.TokenType]int{
	token.OR:       OR,
	token.AND:      AND,
	token.EQ:       EQUALS,
	token.NEQ:      EQUALS,
	token.LT:       LESSGREATER,
	token.GT:       LESSGREATER,
	token.LTE:      LESSGREATER,
	token.GTE:      LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.STAR:     PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   CALL,
	token.LBRACKET: INDEX,
	token.DOT:      MEMBER,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser is a Pratt parser over the Vonktaal token stream, producing the
// AST that the compiler walks.
type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	errors []string

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.IDENTIFIER, p.parseIdentifier)
	p.registerPrefix(token.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.WAAR, p.parseBoolean)
	p.registerPrefix(token.VALS, p.parseBoolean)
	p.registerPrefix(token.NIL, p.parseNilLiteral)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.LBRACKET, p.parseListLiteral)
	p.registerPrefix(token.FN, p.parseFunctionLiteral)
	p.registerPrefix(token.AS, p.parseIfExpression)
	p.registerPrefix(token.PAS, p.parseMatchExpression)
	p.registerPrefix(token.GEVAL, p.parseMatchExpression)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for _, tt := range []token.TokenType{token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE, token.AND, token.OR} {
		p.registerInfix(tt, p.parseInfixExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)
	p.registerInfix(token.DOT, p.parseMemberAccessExpression)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(tt token.TokenType, fn prefixParseFn) { p.prefixParseFns[tt] = fn }
func (p *Parser) registerInfix(tt token.TokenType, fn infixParseFn)   { p.infixParseFns[tt] = fn }

func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(tt token.TokenType) bool  { return p.curToken.Type == tt }
func (p *Parser) peekTokenIs(tt token.TokenType) bool { return p.peekToken.Type == tt }

func (p *Parser) expectPeek(tt token.TokenType) bool {
	if p.peekTokenIs(tt) {
		p.nextToken()
		return true
	}
	p.peekError(tt)
	return false
}

func (p *Parser) peekError(tt token.TokenType) {
	msg := fmt.Sprintf("reël %d: verwag %s maar het %s gekry", p.peekToken.Line, tt.Display(), p.peekToken.Type.Display())
	p.errors = append(p.errors, msg)
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("reël %d: %s", p.curToken.Line, fmt.Sprintf(format, args...)))
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseProgram parses the whole token stream into a Program.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for !p.curTokenIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LAAT:
		return p.parseLetStatement()
	case token.UITVOER:
		return p.parseExportVarDeclStatement()
	case token.DRUK:
		return p.parsePrintStatement()
	case token.TERWYL:
		return p.parseWhileStatement()
	case token.FUNKSIE:
		return p.parseFunctionStatement()
	case token.TIPE:
		return p.parseTypeDeclStatement()
	case token.GEBRUIK:
		return p.parseImportStatement()
	case token.GEE:
		return p.parseReturnStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	case token.AS:
		return p.parseIfStatementOrExpressionStmt()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLetStatement() ast.Statement {
	stmt := &ast.LetStmt{Token: p.curToken}

	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()

	stmt.Initializer = p.parseExpression(LOWEST)
	return stmt
}

func (p *Parser) parseExportVarDeclStatement() ast.Statement {
	tok := p.curToken
	if !p.expectPeek(token.LAAT) {
		return nil
	}
	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()

	value := p.parseExpression(LOWEST)
	return &ast.ExportVarDeclStmt{Token: tok, Name: name, Initializer: value}
}

func (p *Parser) parsePrintStatement() ast.Statement {
	stmt := &ast.PrintStmt{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement().(*ast.BlockStatement)
	return stmt
}

func (p *Parser) parseFunctionStatement() ast.Statement {
	stmt := &ast.FunctionStatement{Token: p.curToken}
	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	stmt.Name = p.curToken.Literal

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	stmt.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement().(*ast.BlockStatement)
	return stmt
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	identifiers := []*ast.Identifier{}

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return identifiers
	}

	p.nextToken()
	identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	return identifiers
}

func (p *Parser) parseTypeDeclStatement() ast.Statement {
	stmt := &ast.TypeDeclStmt{Token: p.curToken}
	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	stmt.Name = p.curToken.Literal

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		ctor := p.parseConstructorDef()
		if ctor != nil {
			stmt.Constructors = append(stmt.Constructors, ctor)
		}
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		}
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseConstructorDef() *ast.ConstructorDef {
	if !p.curTokenIs(token.IDENTIFIER) {
		p.errorf("verwag konstruktornaam maar het %s gekry", p.curToken.Type.Display())
		return nil
	}
	ctor := &ast.ConstructorDef{Name: p.curToken.Literal}

	if p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		if p.peekTokenIs(token.RPAREN) {
			p.nextToken()
			return ctor
		}
		p.nextToken()
		ctor.Fields = append(ctor.Fields, p.curToken.Literal)
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			ctor.Fields = append(ctor.Fields, p.curToken.Literal)
		}
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
	}

	return ctor
}

func (p *Parser) parseImportStatement() ast.Statement {
	stmt := &ast.ImportStmt{Token: p.curToken}
	if !p.expectPeek(token.STRING) {
		return nil
	}
	stmt.Path = p.curToken.Literal

	if !p.expectPeek(token.AS) {
		return nil
	}
	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	stmt.Alias = p.curToken.Literal
	return stmt
}

// parseReturnStatement handles both the plain 'gee value' form and the
// guard-clause 'gee value as condition [anders elseValue]' form. The
// dispatch happens only after the value expression has been parsed, since
// 'as' is never a general infix operator.
func (p *Parser) parseReturnStatement() ast.Statement {
	tok := p.curToken

	if p.peekTokenIs(token.RBRACE) || p.peekTokenIs(token.EOF) {
		return &ast.ReturnStmt{Token: tok}
	}

	p.nextToken()
	value := p.parseExpression(LOWEST)

	if !p.peekTokenIs(token.AS) {
		return &ast.ReturnStmt{Token: tok, ReturnValue: value}
	}

	p.nextToken() // consume 'as'
	p.nextToken()
	condition := p.parseExpression(LOWEST)

	stmt := &ast.ReturnIfStmt{Token: tok, Value: value, Condition: condition}

	if p.peekTokenIs(token.ANDERS) {
		p.nextToken()
		p.nextToken()
		stmt.ElseValue = p.parseExpression(LOWEST)
	}

	return stmt
}

func (p *Parser) parseBlockStatement() ast.Statement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

// parseIfStatementOrExpressionStmt disambiguates the 'as' keyword at
// statement position: a '{' after the condition means a block-bodied if
// statement, otherwise it's a bare ternary-style if expression standing
// alone as a statement.
func (p *Parser) parseIfStatementOrExpressionStmt() ast.Statement {
	tok := p.curToken

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	condition := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	if p.peekTokenIs(token.LBRACE) {
		p.nextToken()
		stmt := &ast.IfStatement{Token: tok, Condition: condition}
		stmt.Consequence = p.parseBlockStatement().(*ast.BlockStatement)

		if p.peekTokenIs(token.ANDERS) {
			p.nextToken()
			if !p.expectPeek(token.LBRACE) {
				return nil
			}
			stmt.Alternative = p.parseBlockStatement().(*ast.BlockStatement)
		}
		return stmt
	}

	p.nextToken()
	then := p.parseExpression(LOWEST)
	var elseExpr ast.Expression
	if p.peekTokenIs(token.ANDERS) {
		p.nextToken()
		p.nextToken()
		elseExpr = p.parseExpression(LOWEST)
	}
	return &ast.ExpressionStmt{Token: tok, Expression: &ast.IfExpression{Token: tok, Condition: condition, Then: then, Else: elseExpr}}
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStmt{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf("onverwagte token in uitdrukking: %s", p.curToken.Type.Display())
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(token.EOF) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	lit := &ast.NumberLiteral{Token: p.curToken}
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.errorf("kon nie '%s' as getal ontleed nie", p.curToken.Literal)
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.Boolean{Token: p.curToken, Value: p.curTokenIs(token.WAAR)}
}

func (p *Parser) parseNilLiteral() ast.Expression {
	return &ast.NilLiteral{Token: p.curToken}
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	tok := p.curToken
	p.nextToken()
	inner := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return &ast.GroupingExpression{Token: tok, Inner: inner}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Token: p.curToken, Operator: p.curToken.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseListLiteral() ast.Expression {
	lit := &ast.ListLiteral{Token: p.curToken}
	lit.Elements = p.parseExpressionList(token.RBRACKET)
	return lit
}

func (p *Parser) parseExpressionList(end token.TokenType) []ast.Expression {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	lit.Parameters = p.parseFunctionParameters()

	if p.peekTokenIs(token.ARROW) {
		p.nextToken()
		p.nextToken()
		lit.Body = ast.LambdaBody{Expr: p.parseExpression(LOWEST)}
		return lit
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	lit.Body = ast.LambdaBody{Block: p.parseBlockStatement().(*ast.BlockStatement)}
	return lit
}

func (p *Parser) parseCallExpression(fn ast.Expression) ast.Expression {
	expr := &ast.CallExpression{Token: p.curToken, Function: fn}
	expr.Arguments = p.parseExpressionList(token.RPAREN)
	return expr
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

func (p *Parser) parseMemberAccessExpression(left ast.Expression) ast.Expression {
	expr := &ast.MemberAccessExpression{Token: p.curToken, Left: left}
	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	expr.Member = p.curToken.Literal
	return expr
}

// parseIfExpression is the prefix parse fn for 'as' encountered in
// expression position: a bare ternary, never block-bodied.
func (p *Parser) parseIfExpression() ast.Expression {
	tok := p.curToken
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	condition := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	p.nextToken()
	then := p.parseExpression(LOWEST)

	var elseExpr ast.Expression
	if p.peekTokenIs(token.ANDERS) {
		p.nextToken()
		p.nextToken()
		elseExpr = p.parseExpression(LOWEST)
	}

	return &ast.IfExpression{Token: tok, Condition: condition, Then: then, Else: elseExpr}
}

func (p *Parser) parseMatchExpression() ast.Expression {
	tok := p.curToken
	if p.curTokenIs(token.PAS) {
		if !p.expectPeek(token.LPAREN) {
			return nil
		}
		p.nextToken()
	} else {
		// A bare 'geval' chain without an enclosing 'pas (...)' is not
		// supported; this branch only exists so stray 'geval' tokens
		// produce a sensible parse error instead of a nil dereference.
		p.errorf("'geval' buite 'n 'pas'-uitdrukking")
		return nil
	}

	value := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	match := &ast.MatchExpression{Token: tok, Value: value}

	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		if !p.curTokenIs(token.GEVAL) {
			p.errorf("verwag 'geval' maar het %s gekry", p.curToken.Type.Display())
			return nil
		}
		p.nextToken()

		pattern := p.parsePattern()
		if !p.expectPeek(token.ARROW) {
			return nil
		}
		p.nextToken()
		body := p.parseExpression(LOWEST)

		match.Arms = append(match.Arms, &ast.MatchArm{Pattern: pattern, Body: body})

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		}
		p.nextToken()
	}

	return match
}

// parsePattern parses one match-arm pattern. Identifiers starting with an
// uppercase letter name a type constructor; any other identifier binds.
func (p *Parser) parsePattern() ast.Pattern {
	switch p.curToken.Type {
	case token.UNDERSCORE:
		return &ast.WildcardPattern{Token: p.curToken}
	case token.NUMBER:
		return &ast.LiteralPattern{Token: p.curToken, Value: p.parseNumberLiteral()}
	case token.STRING:
		return &ast.LiteralPattern{Token: p.curToken, Value: p.parseStringLiteral()}
	case token.WAAR, token.VALS:
		return &ast.LiteralPattern{Token: p.curToken, Value: p.parseBoolean()}
	case token.NIL:
		return &ast.LiteralPattern{Token: p.curToken, Value: p.parseNilLiteral()}
	case token.IDENTIFIER:
		if isUpper(p.curToken.Literal) {
			return p.parseConstructorPattern()
		}
		return &ast.VariablePattern{Token: p.curToken, Name: p.curToken.Literal}
	default:
		p.errorf("onverwagte token in patroon: %s", p.curToken.Type.Display())
		return nil
	}
}

func (p *Parser) parseConstructorPattern() ast.Pattern {
	cp := &ast.ConstructorPattern{Token: p.curToken, Name: p.curToken.Literal}

	if !p.peekTokenIs(token.LPAREN) {
		return cp
	}
	p.nextToken()

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return cp
	}

	p.nextToken()
	cp.Fields = append(cp.Fields, p.parsePattern())

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		cp.Fields = append(cp.Fields, p.parsePattern())
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	return cp
}

func isUpper(s string) bool {
	if s == "" {
		return false
	}
	return s[0] >= 'A' && s[0] <= 'Z'
}
