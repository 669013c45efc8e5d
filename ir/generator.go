package ir

import (
	"fmt"

	"nanoc/ast"
)

// loopLabels is the break/continue target pair for one enclosing loop.
type loopLabels struct {
	continueLabel Operand
	breakLabel    Operand
}

// Generator is the explicit state threaded through lowering: temp and
// label counters, a scope stack for shadow disambiguation, and a loop
// stack for break/continue. It is a struct passed by pointer, never a
// package-level global, so two programs can be lowered concurrently
// without interfering.
type Generator struct {
	insts      []Instruction
	nextTemp   int
	nextLabel  int
	scopes     []map[string]string
	nameSeq    map[string]int
	constVals  map[string]Operand
	loops      []loopLabels
	returnType map[string]ast.Type
}

// Generate lowers a fully checked program into a flat instruction
// list. decls must already have passed sema.Analyzer.Analyze — this
// function does not re-check types or names.
func Generate(decls []ast.Decl) []Instruction {
	g := &Generator{
		scopes:     []map[string]string{{}},
		nameSeq:    map[string]int{},
		constVals:  map[string]Operand{},
		returnType: map[string]ast.Type{},
	}
	for _, d := range decls {
		if fn, ok := d.(ast.FuncDecl); ok {
			g.returnType[fn.Name] = fn.ReturnType
		}
	}
	for _, d := range decls {
		switch d := d.(type) {
		case ast.VarDecl:
			g.lowerGlobalVarDecl(d)
		case ast.FuncDecl:
			g.lowerFuncDecl(d)
		}
	}
	return g.insts
}

func (g *Generator) emit(i Instruction) { g.insts = append(g.insts, i) }

func (g *Generator) newTemp() Operand {
	t := Temp(g.nextTemp)
	g.nextTemp++
	return t
}

func (g *Generator) newLabel(prefix string) Operand {
	l := Label(fmt.Sprintf("%s_%d", prefix, g.nextLabel))
	g.nextLabel++
	return l
}

func (g *Generator) pushScope() { g.scopes = append(g.scopes, map[string]string{}) }
func (g *Generator) popScope()  { g.scopes = g.scopes[:len(g.scopes)-1] }

// declareName mints a mangled name for srcName in the innermost scope.
// Each distinct declaration of the same source name (across sibling or
// nested scopes, i.e. shadowing) gets a distinct numeric suffix, so two
// variables named x in unrelated scopes never collide once flattened
// into one global instruction list.
func (g *Generator) declareName(srcName string) string {
	n := g.nameSeq[srcName]
	g.nameSeq[srcName] = n + 1
	mangled := fmt.Sprintf("%s_%d", srcName, n)
	g.scopes[len(g.scopes)-1][srcName] = mangled
	return mangled
}

func (g *Generator) resolveName(srcName string) string {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if mangled, ok := g.scopes[i][srcName]; ok {
			return mangled
		}
	}
	return srcName
}

// literalConst returns the constant operand for a literal initializer,
// or a zero Operand when init is not a literal.
func literalConst(init ast.Expr) (Operand, bool) {
	switch e := init.(type) {
	case ast.IntLit:
		return Const(e.Value), true
	case ast.BoolLit:
		return boolConst(e.Value), true
	}
	return Operand{}, false
}

func (g *Generator) lowerGlobalVarDecl(v ast.VarDecl) {
	if v.IsArray() {
		mangled := g.declareName(v.Name)
		size := v.ArraySize.(ast.IntLit).Value
		g.emit(Instruction{Op: OpArrayAlloca, Dst: Name(mangled), Src1: Const(size)})
		return
	}
	// A const scalar with a literal initializer needs no storage at
	// all: every read of it becomes the literal itself, so no MOV ever
	// targets a const name in the generated IR.
	if v.IsConst && v.Init != nil {
		if c, ok := literalConst(v.Init); ok {
			g.constVals[g.declareName(v.Name)] = c
			return
		}
	}
	mangled := g.declareName(v.Name)
	g.emit(Instruction{Op: OpAlloca, Dst: Name(mangled)})
	if v.Init != nil {
		val := g.lowerExpr(v.Init)
		g.emit(Instruction{Op: OpMov, Dst: Name(mangled), Src1: val})
	}
}

func (g *Generator) lowerFuncDecl(fn ast.FuncDecl) {
	// Temp and label counters are per-function: reset at each function
	// boundary so generated names stay small and readable.
	// Loop/if labels are emitted by codegen as NASM local labels scoped
	// to the enclosing function, so resetting the counter never
	// produces a cross-function symbol collision.
	g.nextTemp = 0
	g.nextLabel = 0
	g.pushScope()
	params := make([]Operand, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = Name(g.declareName(p.Name))
	}
	g.emit(Instruction{Op: OpFuncBegin, Dst: Name(fn.Name), Params: params})
	for _, s := range fn.Body.Stmts {
		g.lowerStmt(s)
	}
	g.emit(Instruction{Op: OpFuncEnd, Dst: Name(fn.Name)})
	g.popScope()
}

func (g *Generator) lowerStmt(s ast.Stmt) {
	switch s := s.(type) {
	case ast.VarDecl:
		g.lowerLocalVarDecl(s)
	case ast.Block:
		g.pushScope()
		for _, stmt := range s.Stmts {
			g.lowerStmt(stmt)
		}
		g.popScope()
	case ast.If:
		g.lowerIf(s)
	case ast.While:
		g.lowerWhile(s)
	case ast.For:
		g.lowerFor(s)
	case ast.Return:
		if s.Value == nil {
			g.emit(Instruction{Op: OpReturn})
			return
		}
		val := g.lowerExpr(s.Value)
		g.emit(Instruction{Op: OpReturn, Src1: val})
	case ast.Break:
		top := g.loops[len(g.loops)-1]
		g.emit(Instruction{Op: OpJmp, Src1: top.breakLabel})
	case ast.Continue:
		top := g.loops[len(g.loops)-1]
		g.emit(Instruction{Op: OpJmp, Src1: top.continueLabel})
	case ast.ExprStmt:
		g.lowerExpr(s.Expr)
	case ast.Print:
		val := g.lowerExpr(s.Expr)
		g.emit(Instruction{Op: OpPrint, Src1: val})
	case ast.Assign:
		val := g.lowerExpr(s.Value)
		g.emit(Instruction{Op: OpMov, Dst: Name(g.resolveName(s.Target)), Src1: val})
	case ast.ArrayStore:
		idx := g.lowerExpr(s.Index)
		val := g.lowerExpr(s.Value)
		g.emit(Instruction{Op: OpAStore, Src1: Name(g.resolveName(s.Name)), Src2: idx, Src3: val})
	}
}

func (g *Generator) lowerLocalVarDecl(v ast.VarDecl) {
	if v.IsArray() {
		mangled := g.declareName(v.Name)
		size := v.ArraySize.(ast.IntLit).Value
		g.emit(Instruction{Op: OpArrayAlloca, Dst: Name(mangled), Src1: Const(size)})
		return
	}
	if v.IsConst && v.Init != nil {
		if c, ok := literalConst(v.Init); ok {
			g.constVals[g.declareName(v.Name)] = c
			return
		}
	}
	var val Operand
	hasInit := v.Init != nil
	if hasInit {
		val = g.lowerExpr(v.Init)
	}
	mangled := g.declareName(v.Name)
	g.emit(Instruction{Op: OpAlloca, Dst: Name(mangled)})
	if hasInit {
		g.emit(Instruction{Op: OpMov, Dst: Name(mangled), Src1: val})
	}
}

func (g *Generator) lowerIf(s ast.If) {
	falseLabel := g.newLabel("Lelse")
	cond := g.lowerExpr(s.Cond)
	g.emit(Instruction{Op: OpJmpIfFalse, Src1: cond, Src2: falseLabel})
	g.lowerStmt(s.Then)
	if s.Else == nil {
		g.emit(Instruction{Op: OpLabel, Src1: falseLabel})
		return
	}
	endLabel := g.newLabel("Lendif")
	g.emit(Instruction{Op: OpJmp, Src1: endLabel})
	g.emit(Instruction{Op: OpLabel, Src1: falseLabel})
	g.lowerStmt(s.Else)
	g.emit(Instruction{Op: OpLabel, Src1: endLabel})
}

func (g *Generator) lowerWhile(s ast.While) {
	startLabel := g.newLabel("Lwhile")
	endLabel := g.newLabel("Lendwhile")
	g.emit(Instruction{Op: OpLabel, Src1: startLabel})
	cond := g.lowerExpr(s.Cond)
	g.emit(Instruction{Op: OpJmpIfFalse, Src1: cond, Src2: endLabel})
	g.loops = append(g.loops, loopLabels{continueLabel: startLabel, breakLabel: endLabel})
	g.lowerStmt(s.Body)
	g.loops = g.loops[:len(g.loops)-1]
	g.emit(Instruction{Op: OpJmp, Src1: startLabel})
	g.emit(Instruction{Op: OpLabel, Src1: endLabel})
}

func (g *Generator) lowerFor(s ast.For) {
	g.pushScope()
	defer g.popScope()
	if s.Init != nil {
		g.lowerStmt(s.Init)
	}
	startLabel := g.newLabel("Lfor")
	updateLabel := g.newLabel("Lforupdate")
	endLabel := g.newLabel("Lendfor")
	g.emit(Instruction{Op: OpLabel, Src1: startLabel})
	if s.Cond != nil {
		cond := g.lowerExpr(s.Cond)
		g.emit(Instruction{Op: OpJmpIfFalse, Src1: cond, Src2: endLabel})
	}
	g.loops = append(g.loops, loopLabels{continueLabel: updateLabel, breakLabel: endLabel})
	g.lowerStmt(s.Body)
	g.loops = g.loops[:len(g.loops)-1]
	g.emit(Instruction{Op: OpLabel, Src1: updateLabel})
	if s.Update != nil {
		g.lowerStmt(s.Update)
	}
	g.emit(Instruction{Op: OpJmp, Src1: startLabel})
	g.emit(Instruction{Op: OpLabel, Src1: endLabel})
}

var binaryOpcodes = map[ast.BinaryOp]Opcode{
	ast.OpAdd: OpAdd, ast.OpSub: OpSub, ast.OpMul: OpMul, ast.OpDiv: OpDiv, ast.OpMod: OpMod,
	ast.OpLt: OpLt, ast.OpGt: OpGt, ast.OpLe: OpLe, ast.OpGe: OpGe,
	ast.OpEq: OpEq, ast.OpNeq: OpNeq,
}

func boolConst(b bool) Operand {
	if b {
		return Const(1)
	}
	return Const(0)
}

func (g *Generator) lowerExpr(e ast.Expr) Operand {
	switch e := e.(type) {
	case ast.IntLit:
		return Const(e.Value)
	case ast.BoolLit:
		return boolConst(e.Value)
	case ast.Ident:
		mangled := g.resolveName(e.Name)
		if c, ok := g.constVals[mangled]; ok {
			return c
		}
		return Name(mangled)
	case ast.ArrayLoad:
		idx := g.lowerExpr(e.Index)
		dst := g.newTemp()
		g.emit(Instruction{Op: OpALoad, Dst: dst, Src1: Name(g.resolveName(e.Name)), Src2: idx})
		return dst
	case ast.ReadInt:
		dst := g.newTemp()
		g.emit(Instruction{Op: OpReadInt, Dst: dst})
		return dst
	case ast.Unary:
		val := g.lowerExpr(e.Operand)
		dst := g.newTemp()
		if e.Op == ast.OpNeg {
			g.emit(Instruction{Op: OpNeg, Dst: dst, Src1: val})
		} else {
			g.emit(Instruction{Op: OpNot, Dst: dst, Src1: val})
		}
		return dst
	case ast.IncDec:
		return g.lowerIncDec(e)
	case ast.Binary:
		return g.lowerBinary(e)
	case ast.Call:
		return g.lowerCall(e)
	}
	panic(fmt.Sprintf("ir: unhandled expression node %T", e))
}

func (g *Generator) lowerBinary(e ast.Binary) Operand {
	if e.Op == ast.OpAnd {
		return g.lowerShortCircuit(e, false)
	}
	if e.Op == ast.OpOr {
		return g.lowerShortCircuit(e, true)
	}
	left := g.lowerExpr(e.Left)
	right := g.lowerExpr(e.Right)
	dst := g.newTemp()
	g.emit(Instruction{Op: binaryOpcodes[e.Op], Dst: dst, Src1: left, Src2: right})
	return dst
}

// lowerShortCircuit lowers && (shortOnTrue=false) and || (shortOnTrue=true).
// && only evaluates Right when Left is true; || only evaluates Right
// when Left is false.
func (g *Generator) lowerShortCircuit(e ast.Binary, shortOnTrue bool) Operand {
	result := g.newTemp()
	left := g.lowerExpr(e.Left)
	shortLabel := g.newLabel("Lshort")
	doneLabel := g.newLabel("Lshortdone")
	if shortOnTrue {
		g.emit(Instruction{Op: OpJmpIfTrue, Src1: left, Src2: shortLabel})
	} else {
		g.emit(Instruction{Op: OpJmpIfFalse, Src1: left, Src2: shortLabel})
	}
	right := g.lowerExpr(e.Right)
	g.emit(Instruction{Op: OpMov, Dst: result, Src1: right})
	g.emit(Instruction{Op: OpJmp, Src1: doneLabel})
	g.emit(Instruction{Op: OpLabel, Src1: shortLabel})
	g.emit(Instruction{Op: OpMov, Dst: result, Src1: boolConst(shortOnTrue)})
	g.emit(Instruction{Op: OpLabel, Src1: doneLabel})
	return result
}

func (g *Generator) lowerIncDec(e ast.IncDec) Operand {
	name := Name(g.resolveName(e.Target))
	switch e.Op {
	case ast.PreInc:
		g.emit(Instruction{Op: OpAdd, Dst: name, Src1: name, Src2: Const(1)})
		return name
	case ast.PreDec:
		g.emit(Instruction{Op: OpSub, Dst: name, Src1: name, Src2: Const(1)})
		return name
	case ast.PostInc:
		old := g.newTemp()
		g.emit(Instruction{Op: OpMov, Dst: old, Src1: name})
		g.emit(Instruction{Op: OpAdd, Dst: name, Src1: name, Src2: Const(1)})
		return old
	default: // ast.PostDec
		old := g.newTemp()
		g.emit(Instruction{Op: OpMov, Dst: old, Src1: name})
		g.emit(Instruction{Op: OpSub, Dst: name, Src1: name, Src2: Const(1)})
		return old
	}
}

// lowerCall evaluates arguments left-to-right into temporaries (so
// side effects happen in source order) then emits PARAM instructions
// right-to-left, matching the internal calling convention's push order.
func (g *Generator) lowerCall(e ast.Call) Operand {
	argVals := make([]Operand, len(e.Args))
	for i, a := range e.Args {
		argVals[i] = g.lowerExpr(a)
	}
	for i := len(argVals) - 1; i >= 0; i-- {
		g.emit(Instruction{Op: OpParam, Src1: argVals[i]})
	}
	var dst Operand
	if g.returnType[e.Name] != ast.TypeVoid {
		dst = g.newTemp()
	}
	g.emit(Instruction{Op: OpCall, Dst: dst, Src1: Name(e.Name), Src2: Const(int64(len(e.Args)))})
	return dst
}
