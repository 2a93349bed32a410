package main

import (
	"strings"
	"testing"

	"vesper/lexer"
	"vesper/token"
	"vesper/vm"
)

func TestCompileSourceRunsTopLevelReturn(t *testing.T) {
	source := `
fn add(a, b) {
	return a + b
}

var result = add(2, 3)
return result
`
	result, err := compileSource(source, "test://main.vsp")
	if err != nil {
		t.Fatalf("compileSource: %v", err)
	}

	machine := vm.New(result.prog, result.link)
	value, runErr := machine.Run(result.initID, nil)
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if value != int64(5) {
		t.Fatalf("got %v (%T), want int64(5)", value, value)
	}
}

func TestCompileSourceReportsSyntaxError(t *testing.T) {
	if _, err := compileSource("fn (", "test://bad.vsp"); err == nil {
		t.Fatalf("expected a syntax error, got nil")
	}
}

func TestCompileSourceReadingUndeclaredGlobalReturnsNone(t *testing.T) {
	result, err := compileSource("return missing\n", "test://undefined.vsp")
	if err != nil {
		t.Fatalf("compileSource: %v", err)
	}

	machine := vm.New(result.prog, result.link)
	value, runErr := machine.Run(result.initID, nil)
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if value != nil {
		t.Fatalf("got %v, want none for a never-assigned global", value)
	}
}

func TestFormatRunErrorNamesBuiltinClass(t *testing.T) {
	result, err := compileSource("return 1\n", "test://ok.vsp")
	if err != nil {
		t.Fatalf("compileSource: %v", err)
	}
	id := result.prog.BuiltinClassID("ArgumentError")
	msg := formatRunError(result.prog, &vm.VesperError{ClassID: id, Message: "bad arg"})
	if !strings.Contains(msg, "ArgumentError") || !strings.Contains(msg, "bad arg") {
		t.Fatalf("formatRunError = %q, want it to name ArgumentError and include the message", msg)
	}
}

func TestIsInputReadyWaitsOnUnbalancedBraces(t *testing.T) {
	tokens := scanOrFatal(t, "fn f() {")
	if isInputReady(tokens) {
		t.Fatalf("expected isInputReady to be false for an unbalanced brace")
	}
}

func TestIsInputReadyAcceptsCompleteEntry(t *testing.T) {
	tokens := scanOrFatal(t, "var x = 1")
	if !isInputReady(tokens) {
		t.Fatalf("expected isInputReady to be true for a complete entry")
	}
}

func TestIsInputReadyWaitsOnTrailingOperator(t *testing.T) {
	tokens := scanOrFatal(t, "var x = 1 +")
	if isInputReady(tokens) {
		t.Fatalf("expected isInputReady to be false after a trailing '+'")
	}
}

func TestDisassembleProgramListsEveryFunction(t *testing.T) {
	result, err := compileSource("fn f(a) { return a }\n", "test://f.vsp")
	if err != nil {
		t.Fatalf("compileSource: %v", err)
	}
	text, err := disassembleProgram(result.prog)
	if err != nil {
		t.Fatalf("disassembleProgram: %v", err)
	}
	if !strings.Contains(text, "RETURN_VALUE") {
		t.Fatalf("expected disassembly to mention RETURN_VALUE, got:\n%s", text)
	}
}

func scanOrFatal(t *testing.T, source string) []token.Token {
	t.Helper()
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return tokens
}
