package codegen

import (
	"fmt"
	"strings"
)

// Disassemble renders fu's finalized code as one line per instruction,
// generalising the teacher's ASTCompiler.DiassembleBytecode
// (compiler/ast_compiler.go) from a fixed three-byte-instruction
// assumption to this opcode table's variable operand widths: every
// instruction's offset, mnemonic, and decoded operands are printed
// uniformly instead of switching on each opcode by hand.
func Disassemble(fu *FuncUnit) (string, error) {
	var b strings.Builder
	code := fu.Code
	ip := 0
	for ip < len(code) {
		op := Opcode(code[ip])
		def, err := Get(op)
		if err != nil {
			return "", fmt.Errorf("codegen: disassemble func %d at offset %d: %w", fu.FuncID, ip, err)
		}
		operands := make([]int, len(def.OperandWidths))
		pos := ip + 1
		for i, w := range def.OperandWidths {
			operands[i] = ReadOperand(code, pos, w)
			pos += w
		}
		fmt.Fprintf(&b, "%04d %-22s", ip, def.Name)
		for _, v := range operands {
			fmt.Fprintf(&b, " %d", v)
		}
		b.WriteString("\n")
		ip = pos
	}
	return b.String(), nil
}
