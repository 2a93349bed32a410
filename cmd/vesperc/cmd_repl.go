package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"vesper/interpreter"
	"vesper/lexer"
	"vesper/parser"
)

// replCmd runs the tree-walking interpreter interactively, the
// uncompiled sibling of replCompiledCmd — grounded on the teacher's
// cmd_repl.go, one statement at a time with no persistent bytecode.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive tree-walking REPL session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive REPL session.
`
}
func (r *replCmd) SetFlags(f *flag.FlagSet) {}

func repl(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	interp := interpreter.Make()

	for {
		fmt.Fprintf(out, ">>> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "exit" {
			return
		}
		lex := lexer.New(line)
		tokens, err := lex.Scan()
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		p := parser.Make(tokens)
		stmts, errs := p.Parse()
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(out, e)
			}
			continue
		}
		interp.Interpret(stmts)
	}
}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\nWelcome to vesper!")
	repl(os.Stdin, os.Stdout)
	return subcommands.ExitSuccess
}
