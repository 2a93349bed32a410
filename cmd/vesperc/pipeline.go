package main

import (
	"fmt"
	"os"

	"vesper/ast"
	"vesper/codegen"
	"vesper/lexer"
	"vesper/parser"
	"vesper/resolver"
	"vesper/vm"
)

// compileResult is everything run/emit/disasm need after a successful
// compile: the lowered program, the VM's shape tables, and the file's
// global-init function id (what a top-level `run` actually executes).
type compileResult struct {
	prog   *codegen.Program
	link   *vm.LinkResult
	initID int
}

// compileFile runs one source file through lex -> parse -> resolve ->
// lower, diagnosing at every stage in the teacher's emoji-prefixed
// style (cmd_run.go, cmd_emit_bytecode.go) and stopping at the first
// stage that fails.
//
// Resolution finishes completely (assigning every class/function id in
// the file) before codegen.Program.SetBuiltinClassBase reserves ids for
// built-in error classes above the resolver's final count, which in
// turn must happen before lowering begins: RAISE's class_id operand
// carries either id space untagged, so they must never overlap
// (codegen/program.go's SetBuiltinClassBase doc comment).
func compileFile(path string) (*compileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("💥 failed to read file: %w", err)
	}
	return compileSource(string(data), "file://"+path)
}

// compileSource is compileFile's body factored out so the compiled-mode
// REPL (cmd_repl_compiled.go) can recompile a buffered line without
// going through the filesystem.
func compileSource(source, uri string) (*compileResult, error) {
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		return nil, fmt.Errorf("💥 SyntaxError: %w", err)
	}
	for _, w := range lex.Warnings() {
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", w)
	}

	psr := parser.Make(tokens)
	stmts, errs := psr.Parse()
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "💥 SyntaxError: %v\n", e)
		}
		return nil, fmt.Errorf("💥 SyntaxError: parsing failed with %d error(s)", len(errs))
	}

	for _, d := range resolver.CheckObviousMistakes(stmts) {
		fmt.Fprintf(os.Stderr, "⚠️  %s (%d:%d)\n", d.Message, d.Line, d.Column)
	}

	globals := resolver.NewGlobals()
	res := resolver.New(globals)
	if err := res.ResolveFile(stmts); err != nil {
		return nil, fmt.Errorf("🤖 DeveloperError: %w", err)
	}
	hadError := false
	for _, d := range res.Diagnostics {
		if d.Severity == "error" {
			hadError = true
			fmt.Fprintf(os.Stderr, "💥 SemanticError: %s (%d:%d)\n", d.Message, d.Line, d.Column)
		} else {
			fmt.Fprintf(os.Stderr, "⚠️  %s (%d:%d)\n", d.Message, d.Line, d.Column)
		}
	}
	if hadError {
		return nil, fmt.Errorf("💥 SemanticError: name resolution failed")
	}

	prog := codegen.NewProgram(uri)
	prog.SetBuiltinClassBase(globals.ClassCount())

	diags := codegen.NewDiagnostics()
	lw := codegen.NewLowerer(prog, diags, prog.URI)
	lw.LowerFile(res.GlobalInitFuncID, stmts)

	for _, item := range diags.Items {
		prefix := "⚠️ "
		if item.Severity == "error" {
			prefix = "💥"
		}
		fmt.Fprintf(os.Stderr, "%s %s: %s (%d:%d)\n", prefix, item.Category, item.Message, item.Line, item.Column)
	}
	if diags.HadError {
		return nil, fmt.Errorf("💥 SemanticError: code generation failed")
	}

	for _, fu := range prog.Functions {
		if err := codegen.Finalize(prog, fu); err != nil {
			return nil, fmt.Errorf("💥 DeveloperError: finalising bytecode: %w", err)
		}
	}

	link := vm.Link(prog, [][]ast.Node{stmts})

	return &compileResult{prog: prog, link: link, initID: res.GlobalInitFuncID}, nil
}

// formatRunError renders a value returned as an error from vm.Run in
// the teacher's "💥 RuntimeError: ..." style, naming the raised class
// when it is one of the VM's own built-ins.
func formatRunError(prog *codegen.Program, err error) string {
	verr, ok := err.(*vm.VesperError)
	if !ok {
		return fmt.Sprintf("💥 RuntimeError: %v", err)
	}
	if name, ok := prog.BuiltinClassName(verr.ClassID); ok {
		return fmt.Sprintf("💥 %s: %v", name, verr.Message)
	}
	return fmt.Sprintf("💥 uncaught error (class %d): %v", verr.ClassID, verr.Message)
}
