package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// disasmCmd compiles a file and prints its disassembly straight to
// stdout, the quick-look counterpart of emitCmd (which writes to
// disk): both share disassembleProgram, only the sink differs.
type disasmCmd struct{}

func (*disasmCmd) Name() string     { return "disasm" }
func (*disasmCmd) Synopsis() string { return "Print a file's compiled bytecode disassembly" }
func (*disasmCmd) Usage() string {
	return `disasm <file>:
  Compile vesper code and print its disassembly.
`
}
func (*disasmCmd) SetFlags(f *flag.FlagSet) {}

func (cmd *disasmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	text, err := disassembleProgram(result.prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 disassemble error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Print(text)
	return subcommands.ExitSuccess
}
