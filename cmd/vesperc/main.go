// Command vesperc is the vesper compiler/runner CLI, grounded on the
// teacher's main.go + cmd_*.go split — one subcommand per execution
// path (tree-walking vs. compiled) instead of main.go's single
// hard-wired REPL loop.
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
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&replCmd{}, "")
	subcommands.Register(&replCompiledCmd{}, "")
	subcommands.Register(&emitCmd{}, "")
	subcommands.Register(&disasmCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
