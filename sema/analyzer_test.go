package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nanoc/lexer"
	"nanoc/parser"
)

func analyze(t *testing.T, src string) error {
	t.Helper()
	tokens, err := lexer.New(src).Scan()
	require.NoError(t, err)
	decls, err := parser.Make(tokens).Parse()
	require.NoError(t, err)
	_, err = NewAnalyzer().Analyze(decls)
	return err
}

func TestAnalyzeAcceptsValidProgram(t *testing.T) {
	err := analyze(t, `
		int add(int a, int b) { return a + b; }
		void main() { print(add(1, 2)); }
	`)
	require.NoError(t, err)
}

func TestAnalyzeRejectsUndeclaredIdentifier(t *testing.T) {
	err := analyze(t, `void main() { print(x); }`)
	require.Error(t, err)
	var nerr NameError
	require.ErrorAs(t, err, &nerr)
}

func TestAnalyzeRejectsRedeclarationInSameScope(t *testing.T) {
	err := analyze(t, `void main() { int x = 1; int x = 2; }`)
	require.Error(t, err)
	var nerr NameError
	require.ErrorAs(t, err, &nerr)
}

func TestAnalyzeAllowsShadowingInNestedScope(t *testing.T) {
	err := analyze(t, `void main() { int x = 1; { int x = 2; print(x); } print(x); }`)
	require.NoError(t, err)
}

func TestAnalyzeRejectsConstReassignment(t *testing.T) {
	err := analyze(t, `void main() { const int x = 1; x = 2; }`)
	require.Error(t, err)
	var nerr NameError
	require.ErrorAs(t, err, &nerr)
}

func TestAnalyzeRejectsTypeMismatchInArithmetic(t *testing.T) {
	err := analyze(t, `void main() { int x = 1 + true; }`)
	require.Error(t, err)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestAnalyzeRejectsNonBoolIfCondition(t *testing.T) {
	err := analyze(t, `void main() { if (1) print(1); }`)
	require.Error(t, err)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestAnalyzeRejectsNonPositiveArraySize(t *testing.T) {
	err := analyze(t, `void main() { int a[0]; }`)
	require.Error(t, err)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestAnalyzeRejectsArityMismatch(t *testing.T) {
	err := analyze(t, `
		int add(int a, int b) { return a + b; }
		void main() { print(add(1)); }
	`)
	require.Error(t, err)
	var aerr ArityError
	require.ErrorAs(t, err, &aerr)
}

func TestAnalyzeRejectsArgumentTypeMismatch(t *testing.T) {
	err := analyze(t, `
		int add(int a, int b) { return a + b; }
		void main() { print(add(1, true)); }
	`)
	require.Error(t, err)
	var aerr ArityError
	require.ErrorAs(t, err, &aerr)
}

func TestAnalyzeRejectsMissingReturnOnSomePath(t *testing.T) {
	err := analyze(t, `
		int choose(bool b) { if (b) { return 1; } }
		void main() { print(choose(true)); }
	`)
	require.Error(t, err)
	var rerr ReturnError
	require.ErrorAs(t, err, &rerr)
}

func TestAnalyzeAcceptsReturnOnEveryPathViaElse(t *testing.T) {
	err := analyze(t, `
		int choose(bool b) { if (b) { return 1; } else { return 0; } }
		void main() { print(choose(true)); }
	`)
	require.NoError(t, err)
}

func TestAnalyzeRejectsBreakOutsideLoop(t *testing.T) {
	err := analyze(t, `void main() { break; }`)
	require.Error(t, err)
	var cerr ControlFlowError
	require.ErrorAs(t, err, &cerr)
}

func TestAnalyzeAllowsBreakInsideLoop(t *testing.T) {
	err := analyze(t, `void main() { while (true) { break; } }`)
	require.NoError(t, err)
}

func TestAnalyzeRejectsMissingMain(t *testing.T) {
	err := analyze(t, `int add(int a, int b) { return a + b; }`)
	require.Error(t, err)
	var nerr NameError
	require.ErrorAs(t, err, &nerr)
}

func TestAnalyzeRejectsFunctionRedeclaration(t *testing.T) {
	err := analyze(t, `
		int f() { return 1; }
		int f() { return 2; }
		void main() { print(f()); }
	`)
	require.Error(t, err)
	var nerr NameError
	require.ErrorAs(t, err, &nerr)
}

func TestAnalyzeRejectsArrayUsedAsScalar(t *testing.T) {
	err := analyze(t, `void main() { int a[3]; print(a); }`)
	require.Error(t, err)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestAnalyzeAcceptsArrayStoreAndLoad(t *testing.T) {
	err := analyze(t, `void main() { int a[3]; a[0] = 5; print(a[0]); }`)
	require.NoError(t, err)
}

func TestAnalyzeRejectsArrayWithInitializer(t *testing.T) {
	err := analyze(t, `void main() { int a[3] = 5; }`)
	require.Error(t, err)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestAnalyzeRejectsConstArrayElementStore(t *testing.T) {
	err := analyze(t, `void main() { const int a[3]; a[0] = 5; }`)
	require.Error(t, err)
	var nerr NameError
	require.ErrorAs(t, err, &nerr)
}

func TestAnalyzeRejectsVoidVariable(t *testing.T) {
	err := analyze(t, `void main() { void x; }`)
	require.Error(t, err)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestAnalyzeRejectsIncDecOnArrayName(t *testing.T) {
	err := analyze(t, `void main() { int a[3]; ++a; }`)
	require.Error(t, err)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}
