// Command nanoc is the command-line driver for the NanoC compiler: it
// selects between one-shot file compilation and an interactive REPL,
// and shells out to nothing else — the core package does all the
// lexing, parsing, analysis, IR generation, optimization and codegen.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&compileCmd{}, "")
	subcommands.Register(&replCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
