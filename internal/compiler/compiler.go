package compiler

import (
	"fmt"

	"vonktaal/internal/ast"
	"vonktaal/internal/chunk"
	"vonktaal/internal/value"
)

// Hidden hand-compiled locals used to lower match expressions. The '$'
// prefix keeps them apart from every identifier the lexer can produce.
const (
	matchScrutinee = "$match"
	ctorHiddenLocal = "$ctor"
)

type functionType int

const (
	funcTypeScript functionType = iota
	funcTypeFunction
)

// local tracks one stack slot reserved for a lexically scoped name.
type local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// functionCompiler holds the compile-time state for one function body (or
// the top-level script). Enclosing chains back to the compiler that was
// compiling when this one started, forming the scope-resolution chain for
// upvalue capture.
type functionCompiler struct {
	Name       string
	Type       functionType
	Arity      int
	Chunk      *chunk.Chunk
	Locals     []local
	ScopeDepth int
	Upvalues   []chunk.UpvalueDescriptor
	Enclosing  *functionCompiler
}

func newFunctionCompiler(name string, ftype functionType, arity int, enclosing *functionCompiler, fileName string) *functionCompiler {
	fc := &functionCompiler{
		Name:      name,
		Type:      ftype,
		Arity:     arity,
		Chunk:     chunk.New(fileName),
		Enclosing: enclosing,
	}
	if ftype == funcTypeFunction {
		// Slot 0 holds the callee itself (the calling convention pushes
		// the function/closure value before its arguments).
		fc.Locals = append(fc.Locals, local{Name: "", Depth: 0})
	}
	return fc
}

// Compiler walks a parsed program and lowers it to bytecode. It keeps a
// flat function-chunk table (Functions) so compiled Function values can
// reference their chunk by index instead of embedding a pointer.
type Compiler struct {
	current         *functionCompiler
	functions       []*chunk.Chunk
	exportedSymbols map[string]bool
	fileName        string
	line            int
}

func New(fileName string) *Compiler {
	c := &Compiler{
		functions:       []*chunk.Chunk{},
		exportedSymbols: map[string]bool{},
		fileName:        fileName,
	}
	c.current = newFunctionCompiler("<script>", funcTypeScript, 0, nil, fileName)
	return c
}

// Compile lowers a full program into the main script chunk plus the table
// of function chunks referenced from it (and from each other).
func (c *Compiler) Compile(program *ast.Program) (*chunk.Chunk, []*chunk.Chunk, error) {
	for _, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, nil, err
		}
	}
	c.emitConstant(value.NewNil())
	c.emitOp(chunk.OP_RETURN)
	return c.current.Chunk, c.functions, nil
}

// ExportedSymbols returns the set of names declared with 'uitvoer', for a
// module loader to pull out of the resulting globals table.
func (c *Compiler) ExportedSymbols() map[string]bool { return c.exportedSymbols }

func (c *Compiler) emitOp(op chunk.OpCode) {
	c.current.Chunk.WriteOp(op, c.line)
}

func (c *Compiler) emitByte(b byte) {
	c.current.Chunk.Write(b, c.line)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.current.Chunk.EmitConstant(v, c.line)
}

func (c *Compiler) emitJump(op chunk.OpCode) int {
	return c.current.Chunk.EmitJump(op, c.line)
}

func (c *Compiler) patchJump(offset int) {
	c.current.Chunk.PatchJump(offset)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.current.Chunk.EmitLoop(loopStart, c.line)
}

func (c *Compiler) emitNamedOp(op chunk.OpCode, name string) {
	idx := c.current.Chunk.AddConstant(value.NewString(name))
	c.emitOp(op)
	c.emitByte(byte(idx))
}

func (c *Compiler) emitGetLocal(slot int) {
	c.emitOp(chunk.OP_GET_LOCAL)
	c.emitByte(byte(slot))
}

func (c *Compiler) emitSetLocal(slot int) {
	c.emitOp(chunk.OP_SET_LOCAL)
	c.emitByte(byte(slot))
}

// beginScope/endScope manage ordinary lexical scopes (blocks, if/while
// bodies, function bodies). Match-arm scopes are closed by hand instead,
// since they need precise control over what sits on the stack.
func (c *Compiler) beginScope() {
	c.current.ScopeDepth++
}

func (c *Compiler) endScope() {
	c.current.ScopeDepth--
	for len(c.current.Locals) > 0 && c.current.Locals[len(c.current.Locals)-1].Depth > c.current.ScopeDepth {
		last := c.current.Locals[len(c.current.Locals)-1]
		if last.IsCaptured {
			c.emitOp(chunk.OP_CLOSE_UPVALUE)
		} else {
			c.emitOp(chunk.OP_POP)
		}
		c.current.Locals = c.current.Locals[:len(c.current.Locals)-1]
	}
}

func (c *Compiler) addLocal(name string) (int, error) {
	for i := len(c.current.Locals) - 1; i >= 0; i-- {
		l := c.current.Locals[i]
		if l.Depth < c.current.ScopeDepth {
			break
		}
		if l.Name == name {
			return 0, fmt.Errorf("reël %d: '%s' is reeds in hierdie omvang gedefinieer", c.line, name)
		}
	}
	c.current.Locals = append(c.current.Locals, local{Name: name, Depth: c.current.ScopeDepth})
	return len(c.current.Locals) - 1, nil
}

func resolveLocal(fc *functionCompiler, name string) int {
	for i := len(fc.Locals) - 1; i >= 0; i-- {
		if fc.Locals[i].Name == name {
			return i
		}
	}
	return -1
}

func addUpvalue(fc *functionCompiler, index int, isLocal bool) int {
	for i, uv := range fc.Upvalues {
		if int(uv.Index) == index && uv.IsLocal == isLocal {
			return i
		}
	}
	fc.Upvalues = append(fc.Upvalues, chunk.UpvalueDescriptor{Index: byte(index), IsLocal: isLocal})
	return len(fc.Upvalues) - 1
}

func resolveUpvalue(fc *functionCompiler, name string) int {
	if fc.Enclosing == nil {
		return -1
	}
	if local := resolveLocal(fc.Enclosing, name); local != -1 {
		fc.Enclosing.Locals[local].IsCaptured = true
		return addUpvalue(fc, local, true)
	}
	if up := resolveUpvalue(fc.Enclosing, name); up != -1 {
		return addUpvalue(fc, up, false)
	}
	return -1
}

// emitGetVariable implements the local/upvalue/global lookup ladder used
// everywhere an identifier is read.
func (c *Compiler) emitGetVariable(name string) {
	if slot := resolveLocal(c.current, name); slot != -1 {
		c.emitGetLocal(slot)
		return
	}
	if slot := resolveUpvalue(c.current, name); slot != -1 {
		c.emitOp(chunk.OP_GET_UPVALUE)
		c.emitByte(byte(slot))
		return
	}
	c.emitNamedOp(chunk.OP_GET_GLOBAL, name)
}

// compileCallable compiles one function body (named function, lambda, or
// the implicit wrapper a guard clause never needs) in a fresh
// functionCompiler, then restores the caller's compiler and appends the
// finished chunk to the flat function table.
func (c *Compiler) compileCallable(name string, params []*ast.Identifier, compileBody func() error) (int, int, []chunk.UpvalueDescriptor, error) {
	fc := newFunctionCompiler(name, funcTypeFunction, len(params), c.current, c.fileName)
	c.current = fc
	c.beginScope()

	for _, p := range params {
		if _, err := c.addLocal(p.Value); err != nil {
			return 0, 0, nil, err
		}
	}

	if err := compileBody(); err != nil {
		return 0, 0, nil, err
	}

	c.emitConstant(value.NewNil())
	c.emitOp(chunk.OP_RETURN)

	finished := c.current
	c.current = finished.Enclosing

	chunkIndex := len(c.functions)
	c.functions = append(c.functions, finished.Chunk)

	return chunkIndex, len(params), finished.Upvalues, nil
}

// defineFunctionValue adds the already-compiled function as a constant in
// the enclosing chunk and pushes it (as a bare constant or a closure, if
// it captured anything).
func (c *Compiler) defineFunctionValue(name string, arity, chunkIndex int, upvalues []chunk.UpvalueDescriptor) {
	fn := &value.Function{Name: name, Arity: arity, ChunkIndex: chunkIndex, UpvalueCount: len(upvalues)}
	constIdx := c.current.Chunk.AddConstant(value.NewFunction(fn))

	if len(upvalues) == 0 {
		c.current.Chunk.EmitConstantRef(constIdx, c.line)
		return
	}

	c.emitOp(chunk.OP_CLOSURE)
	c.emitByte(byte(constIdx))
	c.emitByte(byte(len(upvalues)))
	for _, uv := range upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.Index)
	}
}

// compileReturnValue compiles an expression in "tail position": a bare
// call becomes a tail call (the VM reuses the current frame instead of
// recursing), anything else is compiled normally and followed by an
// explicit OP_RETURN.
func (c *Compiler) compileReturnValue(expr ast.Expression) error {
	if call, ok := expr.(*ast.CallExpression); ok {
		return c.compileTailCall(call)
	}
	if err := c.compileExpr(expr); err != nil {
		return err
	}
	c.emitOp(chunk.OP_RETURN)
	return nil
}

func (c *Compiler) compileTailCall(call *ast.CallExpression) error {
	if err := c.compileExpr(call.Function); err != nil {
		return err
	}
	for _, arg := range call.Arguments {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	c.emitOp(chunk.OP_TAIL_CALL)
	c.emitByte(byte(len(call.Arguments)))
	return nil
}

// statementLine pulls the source line off whichever token the statement
// was built from, for error messages and the chunk's line table.
func statementLine(stmt ast.Statement) int {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		return s.Token.Line
	case *ast.PrintStmt:
		return s.Token.Line
	case *ast.LetStmt:
		return s.Token.Line
	case *ast.ExportVarDeclStmt:
		return s.Token.Line
	case *ast.BlockStatement:
		return s.Token.Line
	case *ast.IfStatement:
		return s.Token.Line
	case *ast.WhileStatement:
		return s.Token.Line
	case *ast.FunctionStatement:
		return s.Token.Line
	case *ast.ReturnStmt:
		return s.Token.Line
	case *ast.ReturnIfStmt:
		return s.Token.Line
	case *ast.TypeDeclStmt:
		return s.Token.Line
	case *ast.ImportStmt:
		return s.Token.Line
	default:
		return 0
	}
}

// ---- statements ----

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	c.line = statementLine(stmt)
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		if err := c.compileExpr(s.Expression); err != nil {
			return err
		}
		c.emitOp(chunk.OP_POP)
		return nil
	case *ast.PrintStmt:
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		c.emitOp(chunk.OP_PRINT)
		return nil
	case *ast.LetStmt:
		return c.compileVarDecl(s.Name.Value, s.Initializer)
	case *ast.ExportVarDeclStmt:
		c.exportedSymbols[s.Name.Value] = true
		if err := c.compileExpr(s.Initializer); err != nil {
			return err
		}
		c.emitNamedOp(chunk.OP_DEFINE_GLOBAL, s.Name.Value)
		return nil
	case *ast.BlockStatement:
		c.beginScope()
		for _, inner := range s.Statements {
			if err := c.compileStatement(inner); err != nil {
				return err
			}
		}
		c.endScope()
		return nil
	case *ast.IfStatement:
		return c.compileIfStatement(s)
	case *ast.WhileStatement:
		return c.compileWhileStatement(s)
	case *ast.FunctionStatement:
		return c.compileFunctionStatement(s)
	case *ast.ReturnStmt:
		return c.compileReturnStatement(s)
	case *ast.ReturnIfStmt:
		return c.compileReturnIfStatement(s)
	case *ast.TypeDeclStmt:
		return c.compileTypeDecl(s)
	case *ast.ImportStmt:
		pathIdx := c.current.Chunk.AddConstant(value.NewString(s.Path))
		aliasIdx := c.current.Chunk.AddConstant(value.NewString(s.Alias))
		c.emitOp(chunk.OP_LOAD_MODULE)
		c.emitByte(byte(pathIdx))
		c.emitByte(byte(aliasIdx))
		c.emitNamedOp(chunk.OP_DEFINE_GLOBAL, s.Alias)
		return nil
	default:
		return fmt.Errorf("reël %d: onbekende stelling %T", c.line, stmt)
	}
}

func (c *Compiler) compileVarDecl(name string, initializer ast.Expression) error {
	if err := c.compileExpr(initializer); err != nil {
		return err
	}
	if c.current.ScopeDepth > 0 {
		_, err := c.addLocal(name)
		return err
	}
	c.emitNamedOp(chunk.OP_DEFINE_GLOBAL, name)
	return nil
}

func (c *Compiler) compileIfStatement(s *ast.IfStatement) error {
	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	thenJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	c.emitOp(chunk.OP_POP)

	if err := c.compileStatement(s.Consequence); err != nil {
		return err
	}

	if s.Alternative != nil {
		elseJump := c.emitJump(chunk.OP_JUMP)
		c.patchJump(thenJump)
		c.emitOp(chunk.OP_POP)
		if err := c.compileStatement(s.Alternative); err != nil {
			return err
		}
		c.patchJump(elseJump)
	} else {
		c.patchJump(thenJump)
		c.emitOp(chunk.OP_POP)
	}
	return nil
}

func (c *Compiler) compileWhileStatement(s *ast.WhileStatement) error {
	loopStart := c.current.Chunk.Offset()
	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	exitJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	c.emitOp(chunk.OP_POP)

	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OP_POP)
	return nil
}

func (c *Compiler) compileFunctionStatement(s *ast.FunctionStatement) error {
	isLocal := c.current.ScopeDepth > 0
	if isLocal {
		if _, err := c.addLocal(s.Name); err != nil {
			return err
		}
	}

	chunkIndex, arity, upvalues, err := c.compileCallable(s.Name, s.Parameters, func() error {
		for _, inner := range s.Body.Statements {
			if err := c.compileStatement(inner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.defineFunctionValue(s.Name, arity, chunkIndex, upvalues)

	if !isLocal {
		c.emitNamedOp(chunk.OP_DEFINE_GLOBAL, s.Name)
	}
	return nil
}

func (c *Compiler) compileReturnStatement(s *ast.ReturnStmt) error {
	if c.current.Type == funcTypeScript {
		return fmt.Errorf("reël %d: kan nie buite 'n funksie terugkeer nie", c.line)
	}
	if s.ReturnValue == nil {
		c.emitConstant(value.NewNil())
		c.emitOp(chunk.OP_RETURN)
		return nil
	}
	return c.compileReturnValue(s.ReturnValue)
}

func (c *Compiler) compileReturnIfStatement(s *ast.ReturnIfStmt) error {
	if c.current.Type == funcTypeScript {
		return fmt.Errorf("reël %d: kan nie buite 'n funksie terugkeer nie", c.line)
	}
	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	skipJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	c.emitOp(chunk.OP_POP)
	if err := c.compileReturnValue(s.Value); err != nil {
		return err
	}
	c.patchJump(skipJump)
	c.emitOp(chunk.OP_POP)

	if s.ElseValue != nil {
		return c.compileReturnValue(s.ElseValue)
	}
	return nil
}

func (c *Compiler) compileTypeDecl(s *ast.TypeDeclStmt) error {
	for _, ctor := range s.Constructors {
		tc := &value.TypeConstructorDef{TypeName: s.Name, ConstructorName: ctor.Name, Arity: len(ctor.Fields)}
		c.emitConstant(value.NewTypeConstructor(tc))
		c.emitNamedOp(chunk.OP_DEFINE_GLOBAL, ctor.Name)
	}
	return nil
}

// ---- expressions ----

func (c *Compiler) compileExpr(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		c.emitConstant(value.NewNumber(e.Value))
	case *ast.StringLiteral:
		c.emitConstant(value.NewString(e.Value))
	case *ast.Boolean:
		c.emitConstant(value.NewBool(e.Value))
	case *ast.NilLiteral:
		c.emitConstant(value.NewNil())
	case *ast.Identifier:
		c.emitGetVariable(e.Value)
	case *ast.GroupingExpression:
		return c.compileExpr(e.Inner)
	case *ast.PrefixExpression:
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		switch e.Operator {
		case "-":
			c.emitOp(chunk.OP_NEGATE)
		case "!":
			c.emitOp(chunk.OP_NOT)
		default:
			return fmt.Errorf("reël %d: onbekende unêre operator '%s'", c.line, e.Operator)
		}
	case *ast.InfixExpression:
		return c.compileInfix(e)
	case *ast.CallExpression:
		if err := c.compileExpr(e.Function); err != nil {
			return err
		}
		for _, arg := range e.Arguments {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		c.emitOp(chunk.OP_CALL)
		c.emitByte(byte(len(e.Arguments)))
	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(e)
	case *ast.ListLiteral:
		for _, elem := range e.Elements {
			if err := c.compileExpr(elem); err != nil {
				return err
			}
		}
		c.emitOp(chunk.OP_MAKE_LIST)
		c.emitByte(byte(len(e.Elements) >> 8))
		c.emitByte(byte(len(e.Elements)))
	case *ast.IndexExpression:
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		if err := c.compileExpr(e.Index); err != nil {
			return err
		}
		c.emitOp(chunk.OP_GET_INDEX)
	case *ast.MemberAccessExpression:
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		c.emitNamedOp(chunk.OP_GET_MEMBER, e.Member)
	case *ast.IfExpression:
		return c.compileIfExpression(e)
	case *ast.MatchExpression:
		return c.compileMatchExpression(e)
	default:
		return fmt.Errorf("reël %d: onbekende uitdrukking %T", c.line, expr)
	}
	return nil
}

func (c *Compiler) compileInfix(e *ast.InfixExpression) error {
	if e.Operator == "&&" {
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		endJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
		c.emitOp(chunk.OP_POP)
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.patchJump(endJump)
		return nil
	}
	if e.Operator == "||" {
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		elseJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
		endJump := c.emitJump(chunk.OP_JUMP)
		c.patchJump(elseJump)
		c.emitOp(chunk.OP_POP)
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.patchJump(endJump)
		return nil
	}

	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	switch e.Operator {
	case "+":
		c.emitOp(chunk.OP_ADD)
	case "-":
		c.emitOp(chunk.OP_SUBTRACT)
	case "*":
		c.emitOp(chunk.OP_MULTIPLY)
	case "/":
		c.emitOp(chunk.OP_DIVIDE)
	case "%":
		c.emitOp(chunk.OP_MODULO)
	case "==":
		c.emitOp(chunk.OP_EQUAL)
	case "!=":
		c.emitOp(chunk.OP_NOT_EQUAL)
	case "<":
		c.emitOp(chunk.OP_LESS)
	case "<=":
		c.emitOp(chunk.OP_LESS_EQUAL)
	case ">":
		c.emitOp(chunk.OP_GREATER)
	case ">=":
		c.emitOp(chunk.OP_GREATER_EQUAL)
	default:
		return fmt.Errorf("reël %d: onbekende binêre operator '%s'", c.line, e.Operator)
	}
	return nil
}

func (c *Compiler) compileFunctionLiteral(lit *ast.FunctionLiteral) error {
	chunkIndex, arity, upvalues, err := c.compileCallable("<lambda>", lit.Parameters, func() error {
		if lit.Body.Expr != nil {
			return c.compileReturnValue(lit.Body.Expr)
		}
		for _, inner := range lit.Body.Block.Statements {
			if err := c.compileStatement(inner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.defineFunctionValue("<lambda>", arity, chunkIndex, upvalues)
	return nil
}

func (c *Compiler) compileIfExpression(e *ast.IfExpression) error {
	if err := c.compileExpr(e.Condition); err != nil {
		return err
	}
	elseJump := c.emitJump(chunk.OP_JUMP_IF_FALSE)
	c.emitOp(chunk.OP_POP)

	if err := c.compileExpr(e.Then); err != nil {
		return err
	}
	endJump := c.emitJump(chunk.OP_JUMP)

	c.patchJump(elseJump)
	c.emitOp(chunk.OP_POP)
	if e.Else != nil {
		if err := c.compileExpr(e.Else); err != nil {
			return err
		}
	} else {
		c.emitConstant(value.NewNil())
	}
	c.patchJump(endJump)
	return nil
}

// compileMatchExpression lowers 'pas (value) { geval pattern => body ... }'.
// The scrutinee and per-arm bindings live in hand-tracked hidden locals
// ($match, $ctor) because the cleanup at the end of each arm needs more
// precise control over the stack than begin_scope/end_scope gives: the
// arm's result value ends up sitting exactly where $match used to be.
func (c *Compiler) compileMatchExpression(e *ast.MatchExpression) error {
	if len(e.Arms) == 0 {
		return fmt.Errorf("reël %d: 'pas'-uitdrukking het geen gevalle nie", c.line)
	}

	c.beginScope()
	if err := c.compileExpr(e.Value); err != nil {
		return err
	}
	scrutineeSlot, err := c.addLocal(matchScrutinee)
	if err != nil {
		return err
	}

	var endJumps []int

	for _, arm := range e.Arms {
		c.emitGetLocal(scrutineeSlot)
		c.beginScope()

		failJump, err := c.compilePattern(arm.Pattern, true)
		if err != nil {
			return err
		}

		if err := c.compileExpr(arm.Body); err != nil {
			return err
		}

		c.emitSetLocal(scrutineeSlot)
		c.emitOp(chunk.OP_POP)

		armDepth := c.current.ScopeDepth
		for len(c.current.Locals) > 0 && c.current.Locals[len(c.current.Locals)-1].Depth == armDepth {
			c.current.Locals = c.current.Locals[:len(c.current.Locals)-1]
			c.emitOp(chunk.OP_POP)
		}
		c.current.ScopeDepth--

		endJumps = append(endJumps, c.emitJump(chunk.OP_JUMP))

		if failJump != nil {
			c.patchJump(*failJump)
			c.emitOp(chunk.OP_POP) // boolean/equality result
			c.emitOp(chunk.OP_POP) // this arm's scrutinee copy
		}
	}

	// Every arm's pattern failed: raise the runtime error rather than
	// falling through with nothing on the stack.
	c.emitOp(chunk.OP_MATCH_FAIL)

	for _, j := range endJumps {
		c.patchJump(j)
	}

	// Close the outer scope by hand: the result value is sitting exactly
	// where $match was, so it must not be popped.
	c.current.Locals = c.current.Locals[:len(c.current.Locals)-1]
	c.current.ScopeDepth--

	return nil
}

// compilePattern compiles one pattern and, if it can fail, returns the
// offset of its JUMP_IF_FALSE placeholder for the caller to patch once
// the failure target is known. Patterns nested inside a constructor's
// fields are never independently refutable: a constructor pattern only
// gates on its own tag and arity, then unconditionally destructures and
// binds (or re-checks and discards, for a nested literal) its fields.
func (c *Compiler) compilePattern(pattern ast.Pattern, canFail bool) (*int, error) {
	switch p := pattern.(type) {
	case *ast.WildcardPattern:
		c.emitOp(chunk.OP_POP)
		return nil, nil

	case *ast.VariablePattern:
		if _, err := c.addLocal(p.Name); err != nil {
			return nil, err
		}
		return nil, nil

	case *ast.LiteralPattern:
		c.emitOp(chunk.OP_DUP)
		if err := c.compileExpr(p.Value); err != nil {
			return nil, err
		}
		c.emitOp(chunk.OP_EQUAL)
		var failJump *int
		if canFail {
			j := c.emitJump(chunk.OP_JUMP_IF_FALSE)
			failJump = &j
		}
		c.emitOp(chunk.OP_POP) // boolean
		c.emitOp(chunk.OP_POP) // scrutinee copy; literals never bind
		return failJump, nil

	case *ast.ConstructorPattern:
		constIdx := c.current.Chunk.AddConstant(value.NewString(p.Name))
		c.emitOp(chunk.OP_CHECK_CONSTRUCTOR)
		c.emitByte(byte(constIdx))
		c.emitByte(byte(len(p.Fields)))

		var failJump *int
		if canFail {
			j := c.emitJump(chunk.OP_JUMP_IF_FALSE)
			failJump = &j
		}
		c.emitOp(chunk.OP_POP) // boolean

		if len(p.Fields) == 0 {
			c.emitOp(chunk.OP_POP) // nothing to bind
			return failJump, nil
		}

		ctorSlot, err := c.addLocal(ctorHiddenLocal)
		if err != nil {
			return nil, err
		}
		for i, field := range p.Fields {
			c.emitGetLocal(ctorSlot)
			c.emitOp(chunk.OP_GET_FIELD_POP)
			c.emitByte(byte(i))
			if _, err := c.compilePattern(field, false); err != nil {
				return nil, err
			}
		}
		return failJump, nil

	default:
		return nil, fmt.Errorf("reël %d: onbekende patroon %T", c.line, pattern)
	}
}
