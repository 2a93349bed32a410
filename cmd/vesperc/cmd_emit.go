package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"vesper/codegen"
)

// emitCmd compiles a file and writes its disassembly to a sibling
// `.dis` file, the bytecode-dumping half of the teacher's
// cmd_emit_bytecode.go (which wrote a `.nic`/disassembly pair next to
// the source file under compile).
type emitCmd struct {
	out string
}

func (*emitCmd) Name() string { return "emit" }
func (*emitCmd) Synopsis() string {
	return "Compile a file and write its bytecode disassembly to disk"
}
func (*emitCmd) Usage() string {
	return `emit <file>:
  Compile vesper code and write its disassembly to a .dis file.
`
}

func (cmd *emitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.out, "out", "", "output path (defaults to <file> with a .dis extension)")
}

func (cmd *emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	outPath := cmd.out
	if outPath == "" {
		outPath = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".dis"
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to write %s: %v\n", outPath, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("wrote %s\n", outPath)
	return subcommands.ExitSuccess
}

// disassembleProgram renders every function in prog, global-init first
// and the rest ordered by id for a stable, diffable listing.
func disassembleProgram(prog *codegen.Program) (string, error) {
	ids := make([]int, 0, len(prog.Functions))
	for id := range prog.Functions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		text, err := codegen.Disassemble(prog.Functions[id])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "-- func %d --\n%s\n", id, text)
	}
	return b.String(), nil
}
