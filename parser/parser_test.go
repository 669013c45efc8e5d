package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nanoc/ast"
	"nanoc/lexer"
)

func parseSource(t *testing.T, src string) []ast.Decl {
	t.Helper()
	tokens, err := lexer.New(src).Scan()
	require.NoError(t, err)
	decls, err := Make(tokens).Parse()
	require.NoError(t, err)
	return decls
}

func TestParseVarDecl(t *testing.T) {
	decls := parseSource(t, "const int x = 5;")
	require.Len(t, decls, 1)
	v := decls[0].(ast.VarDecl)
	require.Equal(t, ast.TypeInt, v.Type)
	require.True(t, v.IsConst)
	require.Equal(t, "x", v.Name)
	require.Equal(t, ast.IntLit{Pos: v.Init.Position(), Value: 5}, v.Init)
}

func TestParseArrayDecl(t *testing.T) {
	decls := parseSource(t, "int a[10];")
	v := decls[0].(ast.VarDecl)
	require.True(t, v.IsArray())
	require.Equal(t, ast.IntLit{Pos: v.ArraySize.Position(), Value: 10}, v.ArraySize)
}

func TestParseFuncDeclWithParams(t *testing.T) {
	decls := parseSource(t, "int add(int a, int b) { return a+b; }")
	fn := decls[0].(ast.FuncDecl)
	require.Equal(t, "add", fn.Name)
	require.Equal(t, ast.TypeInt, fn.ReturnType)
	require.Equal(t, []ast.Param{{Type: ast.TypeInt, Name: "a"}, {Type: ast.TypeInt, Name: "b"}}, fn.Params)
	require.Len(t, fn.Body.Stmts, 1)
	ret := fn.Body.Stmts[0].(ast.Return)
	bin := ret.Value.(ast.Binary)
	require.Equal(t, ast.OpAdd, bin.Op)
}

func TestParseExpressionPrecedence(t *testing.T) {
	decls := parseSource(t, "int main(){ int x = 1 + 2 * 3; }")
	fn := decls[0].(ast.FuncDecl)
	v := fn.Body.Stmts[0].(ast.VarDecl)
	top := v.Init.(ast.Binary)
	require.Equal(t, ast.OpAdd, top.Op)
	require.Equal(t, ast.IntLit{Pos: top.Left.Position(), Value: 1}, top.Left)
	mul := top.Right.(ast.Binary)
	require.Equal(t, ast.OpMul, mul.Op)
}

func TestParseLogicalShortCircuitPrecedence(t *testing.T) {
	decls := parseSource(t, "int main(){ int x = 1 < 2 && 3 > 4 || 5 == 5; }")
	fn := decls[0].(ast.FuncDecl)
	v := fn.Body.Stmts[0].(ast.VarDecl)
	top := v.Init.(ast.Binary)
	require.Equal(t, ast.OpOr, top.Op)
	left := top.Left.(ast.Binary)
	require.Equal(t, ast.OpAnd, left.Op)
}

func TestParseIfElse(t *testing.T) {
	decls := parseSource(t, "void main(){ if (1) print(1); else print(0); }")
	fn := decls[0].(ast.FuncDecl)
	ifStmt := fn.Body.Stmts[0].(ast.If)
	require.NotNil(t, ifStmt.Then)
	require.NotNil(t, ifStmt.Else)
}

func TestParseWhileLoop(t *testing.T) {
	decls := parseSource(t, "void main(){ int i=0; while(i<3){ print(i); ++i; } }")
	fn := decls[0].(ast.FuncDecl)
	w := fn.Body.Stmts[1].(ast.While)
	cond := w.Cond.(ast.Binary)
	require.Equal(t, ast.OpLt, cond.Op)
	block := w.Body.(ast.Block)
	require.Len(t, block.Stmts, 2)
	inc := block.Stmts[1].(ast.ExprStmt).Expr.(ast.IncDec)
	require.Equal(t, ast.PreInc, inc.Op)
}

func TestParseForLoop(t *testing.T) {
	decls := parseSource(t, "void main(){ for(int i=0;i<5;++i) print(i); }")
	fn := decls[0].(ast.FuncDecl)
	f := fn.Body.Stmts[0].(ast.For)
	require.NotNil(t, f.Init)
	require.NotNil(t, f.Cond)
	require.NotNil(t, f.Update)
}

func TestParseArrayStoreAndLoad(t *testing.T) {
	decls := parseSource(t, "void main(){ int a[3]; a[0]=1; print(a[0]); }")
	fn := decls[0].(ast.FuncDecl)
	store := fn.Body.Stmts[1].(ast.ArrayStore)
	require.Equal(t, "a", store.Name)
	printStmt := fn.Body.Stmts[2].(ast.Print)
	load := printStmt.Expr.(ast.ArrayLoad)
	require.Equal(t, "a", load.Name)
}

func TestParsePostAndPreIncDec(t *testing.T) {
	decls := parseSource(t, "void main(){ int i=0; i++; --i; }")
	fn := decls[0].(ast.FuncDecl)
	post := fn.Body.Stmts[1].(ast.ExprStmt).Expr.(ast.IncDec)
	require.Equal(t, ast.PostInc, post.Op)
	pre := fn.Body.Stmts[2].(ast.ExprStmt).Expr.(ast.IncDec)
	require.Equal(t, ast.PreDec, pre.Op)
}

func TestParseBreakContinue(t *testing.T) {
	decls := parseSource(t, "void main(){ while(true){ break; continue; } }")
	fn := decls[0].(ast.FuncDecl)
	w := fn.Body.Stmts[0].(ast.While)
	block := w.Body.(ast.Block)
	require.IsType(t, ast.Break{}, block.Stmts[0])
	require.IsType(t, ast.Continue{}, block.Stmts[1])
}

func TestParseCallExpression(t *testing.T) {
	decls := parseSource(t, "int main(){ return add(1,2); }")
	fn := decls[0].(ast.FuncDecl)
	ret := fn.Body.Stmts[0].(ast.Return)
	call := ret.Value.(ast.Call)
	require.Equal(t, "add", call.Name)
	require.Len(t, call.Args, 2)
}

func TestParseErrorOnMismatchedToken(t *testing.T) {
	tokens, err := lexer.New("int main( { }").Scan()
	require.NoError(t, err)
	_, err = Make(tokens).Parse()
	require.Error(t, err)
	var perr ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseErrorHaltsAtFirstMismatch(t *testing.T) {
	tokens, err := lexer.New("int main() { int x = ; }").Scan()
	require.NoError(t, err)
	_, err = Make(tokens).Parse()
	require.Error(t, err)
}

func TestParseAssignmentRequiresLvalue(t *testing.T) {
	tokens, err := lexer.New("void main(){ 1 = 2; }").Scan()
	require.NoError(t, err)
	_, err = Make(tokens).Parse()
	require.Error(t, err)
}
