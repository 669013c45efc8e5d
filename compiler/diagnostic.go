package compiler

import (
	"fmt"

	"nanoc/lexer"
	"nanoc/parser"
	"nanoc/sema"
)

// Diagnostic is the single error shape Compile ever returns, whatever
// pass actually produced it. Each pass keeps its own concrete error
// type (lexer.LexError, parser.ParseError, sema.NameError, ...) for
// precise handling inside that package's own tests; wrapDiagnostic
// flattens whichever one comes back into this common shape so the CLI
// and REPL only need to format one thing.
type Diagnostic struct {
	Kind string
	Msg  string
	Line int
	Col  int

	cause error
}

func (d Diagnostic) Error() string {
	if d.Line == 0 && d.Col == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Msg)
	}
	return fmt.Sprintf("%s: %s at line %d, col %d", d.Kind, d.Msg, d.Line, d.Col)
}

// Unwrap lets callers use errors.As to recover the original
// pass-specific error type if they need more than Diagnostic exposes.
func (d Diagnostic) Unwrap() error { return d.cause }

func wrapDiagnostic(err error) Diagnostic {
	d := diagnosticFrom(err)
	d.cause = err
	return d
}

func diagnosticFrom(err error) Diagnostic {
	switch e := err.(type) {
	case lexer.LexError:
		return Diagnostic{Kind: "LexError", Msg: lexMessage(e), Line: e.Line, Col: e.Col}
	case parser.ParseError:
		return Diagnostic{Kind: "ParseError", Msg: parseMessage(e), Line: e.Line, Col: e.Col}
	case sema.NameError:
		return Diagnostic{Kind: "NameError", Msg: e.Msg, Line: e.Line, Col: e.Col}
	case sema.TypeError:
		return Diagnostic{Kind: "TypeError", Msg: e.Msg, Line: e.Line, Col: e.Col}
	case sema.ArityError:
		return Diagnostic{Kind: "ArityError", Msg: e.Msg, Line: e.Line, Col: e.Col}
	case sema.ReturnError:
		return Diagnostic{Kind: "ReturnError", Msg: e.Msg, Line: e.Line, Col: e.Col}
	case sema.ControlFlowError:
		return Diagnostic{Kind: "ControlFlowError", Msg: e.Msg, Line: e.Line, Col: e.Col}
	default:
		return Diagnostic{Kind: "InternalError", Msg: err.Error()}
	}
}

func lexMessage(e lexer.LexError) string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("unexpected character %q", e.Char)
}

func parseMessage(e parser.ParseError) string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("expected %v, found %q", e.Expected, e.Found)
}
