package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"nanoc/compiler"
	"nanoc/ir"
)

// compileCmd implements the "compile" subcommand: read a .nc file, run
// the full pipeline, and write the resulting NASM text next to it (or
// to -o). -S dumps every intermediate phase to stdout as it completes,
// the way a "-S"-style compiler flag would, without needing a second
// code path through the pipeline.
//
// Exit codes distinguish what went wrong: 0 success, 1 compilation
// error, 2 I/O error.
type compileCmd struct {
	out        string
	emitPhases bool
}

const exitIOError = subcommands.ExitStatus(2)

func (*compileCmd) Name() string     { return "compile" }
func (*compileCmd) Synopsis() string { return "Compile a .nc source file to x86-64 NASM assembly" }
func (*compileCmd) Usage() string {
	return `compile [-o out.asm] [-S] <file.nc>:
  Compile a NanoC source file to x86-64 assembly.
`
}

func (c *compileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "output assembly file path (default: <input>.asm)")
	f.BoolVar(&c.emitPhases, "S", false, "dump every pipeline phase to stdout as it completes")
}

func (c *compileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "compile: no input file\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile: %v\n", err)
		return exitIOError
	}

	opts := compiler.Options{}
	if c.emitPhases {
		opts.EmitPhases = dumpPhase
	}

	result, err := compiler.Compile(string(data), opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	outPath := c.out
	if outPath == "" {
		outPath = strings.TrimSuffix(filename, ".nc") + ".asm"
	}
	if err := os.WriteFile(outPath, []byte(result.Asm), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "compile: failed to write %s: %v\n", outPath, err)
		return exitIOError
	}

	fmt.Printf("wrote %s\n", outPath)
	return subcommands.ExitSuccess
}

// dumpPhase prints the artifact produced by one pipeline stage to
// stdout, in whatever form is most useful for a human reading along:
// tokens and AST as Go values, IR as one instruction per line, and the
// final assembly as-is.
func dumpPhase(phase string, payload any) {
	fmt.Printf("--- %s ---\n", phase)
	switch phase {
	case "ir", "optimized_ir":
		for _, inst := range payload.([]ir.Instruction) {
			fmt.Println(inst.String())
		}
	case "asm":
		fmt.Println(payload.(string))
	default:
		fmt.Printf("%v\n", payload)
	}
	fmt.Println()
}
