// Package compiler wires the lexer, parser, semantic analyzer,
// IR generator, optimizer and code generator into the single entry
// point the CLI and REPL call.
package compiler

import (
	"nanoc/ast"
	"nanoc/codegen"
	"nanoc/ir"
	"nanoc/lexer"
	"nanoc/optimize"
	"nanoc/parser"
	"nanoc/sema"
	"nanoc/token"
)

// Target names a compilation backend. NASM is the only one NanoC
// implements; the type exists so Options reads the same way it would
// if a second backend were ever added, rather than hard-coding "asm"
// as a magic string through the rest of the package.
type Target string

const TargetNASMx86_64 Target = "nasm-x86_64"

// Options configures one call to Compile.
type Options struct {
	// Target selects the code generation backend. The zero value
	// resolves to TargetNASMx86_64.
	Target Target

	// EmitPhases, if non-nil, receives a callback after every pipeline
	// stage completes successfully, before the next stage runs. It is
	// used by CompileStreaming and by CLI flags that dump intermediate
	// representations for debugging.
	EmitPhases func(phase string, payload any)
}

// Result carries every intermediate artifact produced while compiling
// one program, not just the final assembly — useful for tooling (a
// "-S" style flag, golden-file tests) that wants to inspect a specific
// stage's output.
type Result struct {
	Tokens      []token.Token
	AST         []ast.Decl
	Symbols     *sema.SymbolTable
	IR          []ir.Instruction
	OptimizedIR []ir.Instruction
	Asm         string
}

func (o Options) target() Target {
	if o.Target == "" {
		return TargetNASMx86_64
	}
	return o.Target
}

func (o Options) emit(phase string, payload any) {
	if o.EmitPhases != nil {
		o.EmitPhases(phase, payload)
	}
}

// Compile runs the full pipeline over source and returns every
// intermediate artifact alongside the final assembly. It returns on
// the first error any stage reports — lexing, parsing and semantic
// analysis are all panic-mode — wrapped as a Diagnostic
// so callers can format it uniformly regardless of which stage failed.
func Compile(source string, opts Options) (Result, error) {
	var result Result

	tokens, err := lexer.New(source).Scan()
	if err != nil {
		return result, wrapDiagnostic(err)
	}
	result.Tokens = tokens
	opts.emit("tokens", tokens)

	decls, err := parser.Make(tokens).Parse()
	if err != nil {
		return result, wrapDiagnostic(err)
	}
	result.AST = decls
	opts.emit("ast", decls)

	symbols, err := sema.NewAnalyzer().Analyze(decls)
	if err != nil {
		return result, wrapDiagnostic(err)
	}
	result.Symbols = symbols
	opts.emit("sema", symbols)

	instructions := ir.Generate(decls)
	result.IR = instructions
	opts.emit("ir", instructions)

	optimized := optimize.Run(instructions)
	result.OptimizedIR = optimized
	opts.emit("optimized_ir", optimized)

	switch opts.target() {
	case TargetNASMx86_64:
		asm := codegen.Generate(optimized)
		result.Asm = asm
		opts.emit("asm", asm)
	default:
		return result, Diagnostic{Kind: "InternalError", Msg: "unknown target: " + string(opts.target())}
	}

	return result, nil
}

// CompileStreaming is Compile with opts.EmitPhases guaranteed non-nil:
// onPhase is invoked after each stage instead of being an optional
// configuration field, which is the shape the REPL wants (it always
// cares about every intermediate stage, never none of them).
func CompileStreaming(source string, opts Options, onPhase func(phase string, payload any)) (Result, error) {
	opts.EmitPhases = onPhase
	return Compile(source, opts)
}
