package sema

import (
	"strconv"

	"nanoc/ast"
)

// Analyzer walks a parsed program and enforces NanoC's static checks:
// name resolution, type checking, const enforcement, array size
// literalness, call arity/types, structural return coverage, and
// break/continue nesting.
//
// It runs in two subpasses: Analyze first hoists every function's
// signature into the symbol table's global functions frame so calls
// may forward-reference functions declared later in the file, then
// walks global declarations and function bodies in source order.
type Analyzer struct {
	table       *SymbolTable
	loopDepth   int
	currentFunc *Symbol
}

// NewAnalyzer constructs an Analyzer with a fresh symbol table.
func NewAnalyzer() *Analyzer {
	return &Analyzer{table: NewSymbolTable()}
}

// Analyze checks decls and returns the first error encountered, per
// NanoC's panic-mode diagnostic policy. On success it returns the
// populated SymbolTable so callers (tests, tooling) can inspect
// resolved signatures; the IR generator does not reuse this table and
// builds its own scope state instead.
func (a *Analyzer) Analyze(decls []ast.Decl) (*SymbolTable, error) {
	for _, d := range decls {
		fn, ok := d.(ast.FuncDecl)
		if !ok {
			continue
		}
		paramTypes := make([]ast.Type, len(fn.Params))
		for i, p := range fn.Params {
			paramTypes[i] = p.Type
		}
		sym := Symbol{Name: fn.Name, ReturnType: fn.ReturnType, ParamTypes: paramTypes}
		if _, declared := a.table.DeclareFunc(sym); !declared {
			pos := fn.Position()
			return nil, NameError{Name: fn.Name, Line: pos.Line, Col: pos.Col,
				Msg: "function \"" + fn.Name + "\" redeclared"}
		}
	}

	if _, ok := a.table.LookupFunc("main"); !ok {
		return nil, NameError{Name: "main", Line: 1, Col: 1, Msg: "program has no \"main\" function"}
	}
	if main, _ := a.table.LookupFunc("main"); len(main.ParamTypes) != 0 ||
		(main.ReturnType != ast.TypeVoid && main.ReturnType != ast.TypeInt) {
		return nil, TypeError{Line: 1, Col: 1,
			Msg: "\"main\" must be declared as \"void main()\" or \"int main()\""}
	}

	for _, d := range decls {
		switch d := d.(type) {
		case ast.VarDecl:
			if err := a.checkVarDecl(d); err != nil {
				return nil, err
			}
		case ast.FuncDecl:
			if err := a.checkFuncDecl(d); err != nil {
				return nil, err
			}
		}
	}
	return a.table, nil
}

func (a *Analyzer) checkFuncDecl(fn ast.FuncDecl) error {
	sym, _ := a.table.LookupFunc(fn.Name)
	a.currentFunc = &sym

	a.table.PushScope()
	defer a.table.PopScope()
	pos := fn.Position()
	for _, p := range fn.Params {
		if p.Type == ast.TypeVoid {
			return TypeError{Line: pos.Line, Col: pos.Col,
				Msg: "parameter \"" + p.Name + "\" of \"" + fn.Name + "\" cannot have type void"}
		}
		if _, ok := a.table.Declare(Symbol{Name: p.Name, Type: p.Type, Kind: KindVar}); !ok {
			return NameError{Name: p.Name, Line: pos.Line, Col: pos.Col,
				Msg: "parameter \"" + p.Name + "\" redeclared in \"" + fn.Name + "\""}
		}
	}

	if err := a.checkBlock(fn.Body); err != nil {
		return err
	}

	// main may end without a return; codegen then exits with 0.
	if fn.ReturnType != ast.TypeVoid && fn.Name != "main" && !terminates(fn.Body) {
		return ReturnError{Func: fn.Name, Line: pos.Line, Col: pos.Col,
			Msg: "function \"" + fn.Name + "\" does not return a value on every path"}
	}
	a.currentFunc = nil
	return nil
}

func (a *Analyzer) checkVarDecl(v ast.VarDecl) error {
	pos := v.Position()
	if v.Type == ast.TypeVoid {
		return TypeError{Line: pos.Line, Col: pos.Col, Msg: "variable \"" + v.Name + "\" cannot have type void"}
	}
	if v.IsArray() {
		lit, ok := v.ArraySize.(ast.IntLit)
		if !ok || lit.Value <= 0 {
			return TypeError{Line: pos.Line, Col: pos.Col,
				Msg: "array size must be a positive integer literal"}
		}
		if v.Init != nil {
			return TypeError{Line: pos.Line, Col: pos.Col,
				Msg: "array \"" + v.Name + "\" cannot have an initializer; assign elements individually"}
		}
		if _, ok := a.table.Declare(Symbol{Name: v.Name, Type: v.Type, Kind: KindArray, IsConst: v.IsConst, ArraySize: lit.Value}); !ok {
			return NameError{Name: v.Name, Line: pos.Line, Col: pos.Col,
				Msg: "\"" + v.Name + "\" redeclared in this scope"}
		}
		return nil
	}

	if v.Init != nil {
		t, err := a.checkExpr(v.Init)
		if err != nil {
			return err
		}
		if t != v.Type {
			return TypeError{Line: pos.Line, Col: pos.Col,
				Msg: "cannot initialize " + string(v.Type) + " \"" + v.Name + "\" with " + string(t) + " value"}
		}
	}
	if _, ok := a.table.Declare(Symbol{Name: v.Name, Type: v.Type, Kind: KindVar, IsConst: v.IsConst}); !ok {
		return NameError{Name: v.Name, Line: pos.Line, Col: pos.Col,
			Msg: "\"" + v.Name + "\" redeclared in this scope"}
	}
	return nil
}

func (a *Analyzer) checkBlock(b ast.Block) error {
	a.table.PushScope()
	defer a.table.PopScope()
	for _, s := range b.Stmts {
		if err := a.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkStmt(s ast.Stmt) error {
	switch s := s.(type) {
	case ast.VarDecl:
		return a.checkVarDecl(s)
	case ast.Block:
		return a.checkBlock(s)
	case ast.If:
		if err := a.requireBool(s.Cond); err != nil {
			return err
		}
		if err := a.checkStmt(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			return a.checkStmt(s.Else)
		}
		return nil
	case ast.While:
		if err := a.requireBool(s.Cond); err != nil {
			return err
		}
		a.loopDepth++
		err := a.checkStmt(s.Body)
		a.loopDepth--
		return err
	case ast.For:
		a.table.PushScope()
		defer a.table.PopScope()
		if s.Init != nil {
			if err := a.checkStmt(s.Init); err != nil {
				return err
			}
		}
		if s.Cond != nil {
			if err := a.requireBool(s.Cond); err != nil {
				return err
			}
		}
		if s.Update != nil {
			if err := a.checkStmt(s.Update); err != nil {
				return err
			}
		}
		a.loopDepth++
		err := a.checkStmt(s.Body)
		a.loopDepth--
		return err
	case ast.Return:
		pos := s.Position()
		if a.currentFunc.ReturnType == ast.TypeVoid {
			if s.Value != nil {
				return TypeError{Line: pos.Line, Col: pos.Col, Msg: "void function must not return a value"}
			}
			return nil
		}
		if s.Value == nil {
			return TypeError{Line: pos.Line, Col: pos.Col,
				Msg: "function \"" + a.currentFunc.Name + "\" must return a " + string(a.currentFunc.ReturnType) + " value"}
		}
		t, err := a.checkExpr(s.Value)
		if err != nil {
			return err
		}
		if t != a.currentFunc.ReturnType {
			return TypeError{Line: pos.Line, Col: pos.Col,
				Msg: "returning " + string(t) + " value from function declared to return " + string(a.currentFunc.ReturnType)}
		}
		return nil
	case ast.Break:
		if a.loopDepth == 0 {
			pos := s.Position()
			return ControlFlowError{Line: pos.Line, Col: pos.Col, Msg: "\"break\" outside any loop"}
		}
		return nil
	case ast.Continue:
		if a.loopDepth == 0 {
			pos := s.Position()
			return ControlFlowError{Line: pos.Line, Col: pos.Col, Msg: "\"continue\" outside any loop"}
		}
		return nil
	case ast.ExprStmt:
		_, err := a.checkExpr(s.Expr)
		return err
	case ast.Print:
		return a.requireInt(s.Expr)
	case ast.Assign:
		return a.checkAssign(s)
	case ast.ArrayStore:
		return a.checkArrayStore(s)
	}
	return nil
}

func (a *Analyzer) checkAssign(s ast.Assign) error {
	pos := s.Position()
	sym, ok := a.table.Resolve(s.Target)
	if !ok {
		return NameError{Name: s.Target, Line: pos.Line, Col: pos.Col, Msg: "\"" + s.Target + "\" is not declared"}
	}
	if sym.IsConst {
		return NameError{Name: s.Target, Line: pos.Line, Col: pos.Col, Msg: "cannot assign to const " + s.Target}
	}
	if sym.Kind == KindArray {
		return TypeError{Line: pos.Line, Col: pos.Col, Msg: "\"" + s.Target + "\" is an array; use an index to assign an element"}
	}
	t, err := a.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if t != sym.Type {
		return TypeError{Line: pos.Line, Col: pos.Col,
			Msg: "cannot assign " + string(t) + " value to " + string(sym.Type) + " variable \"" + s.Target + "\""}
	}
	return nil
}

func (a *Analyzer) checkArrayStore(s ast.ArrayStore) error {
	pos := s.Position()
	sym, ok := a.table.Resolve(s.Name)
	if !ok {
		return NameError{Name: s.Name, Line: pos.Line, Col: pos.Col, Msg: "\"" + s.Name + "\" is not declared"}
	}
	if sym.Kind != KindArray {
		return TypeError{Line: pos.Line, Col: pos.Col, Msg: "\"" + s.Name + "\" is not an array"}
	}
	if sym.IsConst {
		return NameError{Name: s.Name, Line: pos.Line, Col: pos.Col, Msg: "cannot assign to const " + s.Name}
	}
	if err := a.requireInt(s.Index); err != nil {
		return err
	}
	t, err := a.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if t != sym.Type {
		return TypeError{Line: pos.Line, Col: pos.Col,
			Msg: "cannot store " + string(t) + " value into " + string(sym.Type) + " array \"" + s.Name + "\""}
	}
	return nil
}

func (a *Analyzer) requireBool(e ast.Expr) error {
	t, err := a.checkExpr(e)
	if err != nil {
		return err
	}
	if t != ast.TypeBool {
		pos := e.Position()
		return TypeError{Line: pos.Line, Col: pos.Col, Msg: "expected bool expression, found " + string(t)}
	}
	return nil
}

func (a *Analyzer) requireInt(e ast.Expr) error {
	t, err := a.checkExpr(e)
	if err != nil {
		return err
	}
	if t != ast.TypeInt {
		pos := e.Position()
		return TypeError{Line: pos.Line, Col: pos.Col, Msg: "expected int expression, found " + string(t)}
	}
	return nil
}

var arithmeticOps = map[ast.BinaryOp]bool{ast.OpAdd: true, ast.OpSub: true, ast.OpMul: true, ast.OpDiv: true, ast.OpMod: true}
var relationalOps = map[ast.BinaryOp]bool{ast.OpLt: true, ast.OpGt: true, ast.OpLe: true, ast.OpGe: true}
var equalityOps = map[ast.BinaryOp]bool{ast.OpEq: true, ast.OpNeq: true}
var logicalOps = map[ast.BinaryOp]bool{ast.OpAnd: true, ast.OpOr: true}

func (a *Analyzer) checkExpr(e ast.Expr) (ast.Type, error) {
	pos := e.Position()
	switch e := e.(type) {
	case ast.IntLit:
		return ast.TypeInt, nil
	case ast.BoolLit:
		return ast.TypeBool, nil
	case ast.ReadInt:
		return ast.TypeInt, nil
	case ast.Ident:
		sym, ok := a.table.Resolve(e.Name)
		if !ok {
			return "", NameError{Name: e.Name, Line: pos.Line, Col: pos.Col, Msg: "\"" + e.Name + "\" is not declared"}
		}
		if sym.Kind == KindArray {
			return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "\"" + e.Name + "\" is an array; use an index to read an element"}
		}
		return sym.Type, nil
	case ast.ArrayLoad:
		sym, ok := a.table.Resolve(e.Name)
		if !ok {
			return "", NameError{Name: e.Name, Line: pos.Line, Col: pos.Col, Msg: "\"" + e.Name + "\" is not declared"}
		}
		if sym.Kind != KindArray {
			return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "\"" + e.Name + "\" is not an array"}
		}
		if err := a.requireInt(e.Index); err != nil {
			return "", err
		}
		return sym.Type, nil
	case ast.Unary:
		t, err := a.checkExpr(e.Operand)
		if err != nil {
			return "", err
		}
		switch e.Op {
		case ast.OpNeg:
			if t != ast.TypeInt {
				return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "unary \"-\" requires an int operand"}
			}
			return ast.TypeInt, nil
		case ast.OpNot:
			if t != ast.TypeBool {
				return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "\"!\" requires a bool operand"}
			}
			return ast.TypeBool, nil
		}
		return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "unknown unary operator"}
	case ast.IncDec:
		sym, ok := a.table.Resolve(e.Target)
		if !ok {
			return "", NameError{Name: e.Target, Line: pos.Line, Col: pos.Col, Msg: "\"" + e.Target + "\" is not declared"}
		}
		if sym.IsConst {
			return "", NameError{Name: e.Target, Line: pos.Line, Col: pos.Col, Msg: "cannot assign to const " + e.Target}
		}
		if sym.Kind == KindArray || sym.Type != ast.TypeInt {
			return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "\"++\"/\"--\" require an int variable"}
		}
		return ast.TypeInt, nil
	case ast.Binary:
		lt, err := a.checkExpr(e.Left)
		if err != nil {
			return "", err
		}
		rt, err := a.checkExpr(e.Right)
		if err != nil {
			return "", err
		}
		switch {
		case arithmeticOps[e.Op]:
			if lt != ast.TypeInt || rt != ast.TypeInt {
				return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "operator \"" + string(e.Op) + "\" requires int operands"}
			}
			return ast.TypeInt, nil
		case relationalOps[e.Op]:
			if lt != ast.TypeInt || rt != ast.TypeInt {
				return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "operator \"" + string(e.Op) + "\" requires int operands"}
			}
			return ast.TypeBool, nil
		case equalityOps[e.Op]:
			if lt != rt {
				return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "operator \"" + string(e.Op) + "\" requires operands of the same type"}
			}
			return ast.TypeBool, nil
		case logicalOps[e.Op]:
			if lt != ast.TypeBool || rt != ast.TypeBool {
				return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "operator \"" + string(e.Op) + "\" requires bool operands"}
			}
			return ast.TypeBool, nil
		}
		return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "unknown binary operator " + string(e.Op)}
	case ast.Call:
		sig, ok := a.table.LookupFunc(e.Name)
		if !ok {
			return "", NameError{Name: e.Name, Line: pos.Line, Col: pos.Col, Msg: "call to undeclared function \"" + e.Name + "\""}
		}
		if len(e.Args) != len(sig.ParamTypes) {
			return "", ArityError{Name: e.Name, Line: pos.Line, Col: pos.Col,
				Msg: "\"" + e.Name + "\" expects " + strconv.Itoa(len(sig.ParamTypes)) + " argument(s), got " + strconv.Itoa(len(e.Args))}
		}
		for i, arg := range e.Args {
			t, err := a.checkExpr(arg)
			if err != nil {
				return "", err
			}
			if t != sig.ParamTypes[i] {
				return "", ArityError{Name: e.Name, Line: pos.Line, Col: pos.Col,
					Msg: "argument " + strconv.Itoa(i+1) + " to \"" + e.Name + "\" must be " + string(sig.ParamTypes[i]) + ", got " + string(t)}
			}
		}
		return sig.ReturnType, nil
	}
	return "", TypeError{Line: pos.Line, Col: pos.Col, Msg: "unknown expression node"}
}

// terminates reports whether s is guaranteed to execute a return on
// every control path through it. The check is structural, not
// flow-sensitive: loops are conservatively treated as not guaranteed
// to execute.
func terminates(s ast.Stmt) bool {
	switch s := s.(type) {
	case ast.Return:
		return true
	case ast.Block:
		for _, stmt := range s.Stmts {
			if terminates(stmt) {
				return true
			}
		}
		return false
	case ast.If:
		return s.Else != nil && terminates(s.Then) && terminates(s.Else)
	default:
		return false
	}
}

