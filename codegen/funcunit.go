package codegen

import (
	"encoding/binary"

	"vesper/ast"
)

// FuncUnit is the per-function emission state of §9: "byte buffer,
// slot allocator, label allocator, region-id allocator, loop stack...
// a single owned struct; lowering is a method on that struct plus a
// reference to the shared program and diagnostics."
type FuncUnit struct {
	FuncID int
	Info   *ast.FuncStorageInfo
	Code   Instructions

	// Finalized is set by Finalize on its first pass over this unit, so
	// a second call is a no-op rather than misreading already-resolved
	// jump offsets as unresolved label ids (§8 "Idempotent finalisation").
	Finalized bool

	regionStack []int
	loopStack   []loopLabels
}

type loopLabels struct{ start, end int }

// NewFuncUnit creates emission state for a function whose storage info
// has already been built by the resolver.
func NewFuncUnit(funcID int, info *ast.FuncStorageInfo) *FuncUnit {
	return &FuncUnit{FuncID: funcID, Info: info}
}

// emit appends an instruction and returns the byte offset it starts at.
func (fu *FuncUnit) emit(op Opcode, operands ...int) int {
	offset := len(fu.Code)
	fu.Code = append(fu.Code, MakeInstruction(op, operands...)...)
	return offset
}

// patchOperand rewrites the operandIndex-th operand of the instruction
// starting at offset, in place. This is safe only because instruction
// sizes are fixed per opcode (§4.4's "Call-argument settop fixup" note).
func (fu *FuncUnit) patchOperand(offset, operandIndex, value int) {
	def, err := Get(Opcode(fu.Code[offset]))
	if err != nil {
		return
	}
	pos := offset + 1
	for i, width := range def.OperandWidths {
		if i == operandIndex {
			switch width {
			case 1:
				fu.Code[pos] = byte(value)
			case 2:
				binary.BigEndian.PutUint16(fu.Code[pos:], uint16(int16(value)))
			}
			return
		}
		pos += width
	}
}
