package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"nanoc/compiler"
	"nanoc/ir"
	"nanoc/token"
)

// replCmd implements the "repl" subcommand: an interactive session
// that echoes every pipeline phase for each program the user types,
// buffering lines until braces balance so multi-line function and
// block bodies can be entered incrementally.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive NanoC REPL" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive session that compiles and echoes every pipeline
  phase for each program entered.
`
}
func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (*replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "repl: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	fmt.Println("NanoC REPL — type a program; it compiles once its braces balance. Ctrl-D to quit.")
	repl(rl)
	return subcommands.ExitSuccess
}

func repl(rl *readline.Instance) {
	var buf strings.Builder

	for {
		if buf.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "exit" && buf.Len() == 0 {
			return
		}

		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)
		source := buf.String()

		if !inputReady(source) {
			continue
		}
		buf.Reset()

		result, err := compiler.CompileStreaming(source, compiler.Options{}, echoPhase)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		_ = result
	}
}

// inputReady reports whether source looks like a syntactically
// complete program worth feeding to the compiler yet: every brace
// opened is closed. Anything unbalanced means the user is still
// typing a multi-line function or block, so the REPL should keep
// reading lines instead of reporting a misleading ParseError for
// input that was never finished.
func inputReady(source string) bool {
	depth := 0
	for _, r := range source {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth <= 0
}

// echoPhase prints each pipeline stage's artifact as it completes,
// mirroring cmd_compile's -S dump so the REPL always shows its work.
func echoPhase(phase string, payload any) {
	switch phase {
	case "tokens":
		toks := payload.([]token.Token)
		fmt.Printf("tokens: %d scanned\n", len(toks))
	case "ir", "optimized_ir":
		fmt.Printf("%s:\n", phase)
		for _, inst := range payload.([]ir.Instruction) {
			fmt.Println("  " + inst.String())
		}
	case "asm":
		fmt.Println("asm:")
		fmt.Println(payload.(string))
	default:
		fmt.Printf("%s: %v\n", phase, payload)
	}
}
