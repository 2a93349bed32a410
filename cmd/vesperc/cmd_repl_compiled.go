package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
	"vesper/codegen"
	"vesper/lexer"
	"vesper/parser"
	"vesper/token"
	"vesper/vm"
)

// replCompiledCmd is the compiled-bytecode sibling of replCmd, grounded
// on the teacher's cmd_repl_compiled.go: buffer lines until the input
// looks complete (balanced braces, no trailing operator), recompile the
// whole buffer through the real pipeline, and run it on a fresh VM each
// time. chzyer/readline replaces the teacher's bufio.Scanner, giving the
// session real history and line-editing instead of a one-shot read.
type replCompiledCmd struct {
	disasm bool
}

func (*replCompiledCmd) Name() string { return "crepl" }
func (*replCompiledCmd) Synopsis() string {
	return "Start a REPL session backed by the bytecode VM"
}
func (*replCompiledCmd) Usage() string {
	return `crepl:
  Start a REPL session that compiles and runs each entry on the VM.
`
}

func (cmd *replCompiledCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disasm, "disasm", false, "print the disassembly of each compiled entry")
}

func (cmd *replCompiledCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Printf("💥 failed to start line editor: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	fmt.Println("\nWelcome to the vesper programming language!")

	var buffer strings.Builder
	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buffer.Reset()
			continue
		}
		if err == io.EOF {
			return subcommands.ExitSuccess
		}
		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		lex := lexer.New(source)
		tokens, lexErr := lex.Scan()
		if lexErr != nil {
			fmt.Println(lexErr)
			buffer.Reset()
			continue
		}
		if !isInputReady(tokens) {
			continue
		}

		p := parser.Make(tokens)
		_, parseErrs := p.Parse()
		if len(parseErrs) > 0 {
			if allParseErrorsAtEOF(parseErrs, tokens[len(tokens)-1]) {
				continue
			}
			for _, pErr := range parseErrs {
				fmt.Printf("Parse error: %v\n", pErr)
			}
			buffer.Reset()
			continue
		}

		result, compErr := compileSource(source, "repl://entry")
		if compErr != nil {
			fmt.Println(compErr)
			buffer.Reset()
			continue
		}

		if cmd.disasm {
			for id, fu := range result.prog.Functions {
				text, dErr := codegen.Disassemble(fu)
				if dErr != nil {
					fmt.Println(dErr)
					continue
				}
				fmt.Printf("-- func %d --\n%s", id, text)
			}
		}

		machine := vm.New(result.prog, result.link)
		value, runErr := machine.Run(result.initID, nil)
		if runErr != nil {
			fmt.Println(formatRunError(result.prog, runErr))
			buffer.Reset()
			continue
		}
		if value != nil {
			fmt.Println(vm.FormatValue(value))
		}
		buffer.Reset()
	}
}

// isInputReady reports whether tokens looks like a complete entry: no
// unbalanced `{`, and the last non-EOF token isn't an operator or
// keyword that expects more input. Grounded on the teacher's own
// isInputReady (cmd_repl_compiled.go), generalised from nilan's token
// set to vesper's.
func isInputReady(tokens []token.Token) bool {
	braceBalance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		}
	}
	if braceBalance > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.TokenType {
	case token.ASSIGN, token.ADD, token.SUB, token.MULT, token.DIV,
		token.COMMA, token.LPA, token.LCUR,
		token.IF, token.ELIF, token.ELSE, token.WHILE, token.FOR,
		token.FUNC, token.RETURN, token.VAR, token.CONST,
		token.AND, token.OR:
		return false
	}
	return true
}

func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].TokenType != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}

// allParseErrorsAtEOF reports whether every parse error sits at the
// EOF token's own position — the REPL's signal that the user simply
// hasn't finished typing, not a real syntax error.
func allParseErrorsAtEOF(parseErrs []error, eof token.Token) bool {
	for _, parseErr := range parseErrs {
		syntaxErr, ok := parseErr.(parser.SyntaxError)
		if !ok {
			return false
		}
		if syntaxErr.Line != eof.Line || syntaxErr.Column != eof.Column {
			return false
		}
	}
	return len(parseErrs) > 0
}
