package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"vesper/vm"
)

// runCmd compiles a file straight to bytecode and executes it on the
// register VM, the compiled-execution sibling of cmd_run_compiled.go.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Compile and execute a vesper source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile and execute vesper code.
`
}
func (r *runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	result, err := compileFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	machine := vm.New(result.prog, result.link)
	value, runErr := machine.Run(result.initID, nil)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, formatRunError(result.prog, runErr))
		return subcommands.ExitFailure
	}
	if value != nil {
		fmt.Println(vm.FormatValue(value))
	}
	return subcommands.ExitSuccess
}
