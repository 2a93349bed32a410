// Package codegen is the bytecode code generator core of this
// repository (spec §1): the Slot Allocator, Jump-Label Table,
// Error-Region Stack, Instruction Emitter, Expression Lowerer, and
// Finaliser.
package codegen

import (
	"encoding/binary"
	"fmt"
)

// Opcode is a single instruction's tag byte.
type Opcode byte

// Instructions is a function's raw, variable-length byte buffer.
type Instructions []byte

const (
	SET_CONST Opcode = iota
	VALUECOPY
	GET_GLOBAL
	SET_GLOBAL
	GET_FUNC
	GET_CLASS
	GET_ATTRIBUTE_BY_NAME
	GET_ATTRIBUTE_BY_IDX
	SET_BY_ATTRIBUTE_NAME
	SET_BY_ATTRIBUTE_IDX
	SET_BY_INDEX_EXPR
	NEW_LIST
	NEW_SET
	NEW_MAP
	NEW_VECTOR
	NEW_ITERATOR
	ITERATE
	NEW_INSTANCE
	NEW_INSTANCE_BY_REF
	GET_CONSTRUCTOR
	CALL
	CALL_IGNORE_IF_NONE
	CALL_SETTOP
	RETURN_VALUE
	BINOP
	UNOP
	JUMP
	CONDJUMP
	CONDJUMPEX
	HASATTRJUMP
	PUSH_RESCUE_FRAME
	POP_RESCUE_FRAME
	ADD_RESCUE_TYPE
	ADD_RESCUE_TYPE_BY_REF
	JUMP_TO_FINALLY
	RAISE
	RAISE_BY_REF
	AWAIT_ITEM
	// JUMP_TARGET is a pseudo-op: a label marker spliced out by the
	// Finaliser (§4.5), never present in the final bytecode.
	JUMP_TARGET
)

// OpCodeDefinition records an opcode's human-readable name and the
// byte width of each of its operands, in emission order, mirroring
// the teacher's compiler/code.go OpCodeDefinition/Get/MakeInstruction
// trio with a full table instead of a single OP_CONSTANT entry.
//
// Field widths, per SPEC_FULL.md §6: 2 bytes for slots/ids/jump
// offsets/label ids, 1 byte for small counts and flag bytes.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	SET_CONST:             {"SET_CONST", []int{2, 2}},             // dest, const_id
	VALUECOPY:             {"VALUECOPY", []int{2, 2}},             // dest, src
	GET_GLOBAL:            {"GET_GLOBAL", []int{2, 2}},            // dest, global_id
	SET_GLOBAL:            {"SET_GLOBAL", []int{2, 2}},            // global_id, src
	GET_FUNC:              {"GET_FUNC", []int{2, 2}},              // dest, func_id
	GET_CLASS:             {"GET_CLASS", []int{2, 2}},             // dest, class_id
	GET_ATTRIBUTE_BY_NAME:  {"GET_ATTRIBUTE_BY_NAME", []int{2, 2, 2}},  // dest, obj, name_id
	GET_ATTRIBUTE_BY_IDX:   {"GET_ATTRIBUTE_BY_IDX", []int{2, 2, 2}},   // dest, obj, idx
	SET_BY_ATTRIBUTE_NAME:  {"SET_BY_ATTRIBUTE_NAME", []int{2, 2, 2}},  // obj, name_id, value
	SET_BY_ATTRIBUTE_IDX:   {"SET_BY_ATTRIBUTE_IDX", []int{2, 2, 2}},   // obj, idx, value
	SET_BY_INDEX_EXPR:      {"SET_BY_INDEX_EXPR", []int{2, 2, 2}},      // container, index, value
	NEW_LIST:              {"NEW_LIST", []int{2}},                 // dest
	NEW_SET:               {"NEW_SET", []int{2}},                  // dest
	NEW_MAP:               {"NEW_MAP", []int{2}},                  // dest
	NEW_VECTOR:            {"NEW_VECTOR", []int{2}},               // dest
	NEW_ITERATOR:          {"NEW_ITERATOR", []int{2, 2}},          // iter, container
	ITERATE:               {"ITERATE", []int{2, 2, 2}},            // iter, loop_var, end_label
	NEW_INSTANCE:          {"NEW_INSTANCE", []int{2, 2}},          // class_id, out
	NEW_INSTANCE_BY_REF:   {"NEW_INSTANCE_BY_REF", []int{2, 2}},   // class_value_slot, out
	GET_CONSTRUCTOR:       {"GET_CONSTRUCTOR", []int{2, 2}},       // dest, obj
	CALL:                  {"CALL", []int{2, 2, 1, 1, 1}},         // callee, return_slot, pos_count, kw_count, flags
	CALL_IGNORE_IF_NONE:   {"CALL_IGNORE_IF_NONE", []int{2, 2, 1, 1, 1}},
	CALL_SETTOP:           {"CALL_SETTOP", []int{2}},              // top
	RETURN_VALUE:          {"RETURN_VALUE", []int{2}},             // slot
	BINOP:                 {"BINOP", []int{1, 2, 2, 2}},           // op, dest, left, right
	UNOP:                  {"UNOP", []int{1, 2, 2}},               // op, dest, operand
	JUMP:                  {"JUMP", []int{2}},                     // label
	CONDJUMP:              {"CONDJUMP", []int{2, 2}},              // cond_slot, label
	CONDJUMPEX:            {"CONDJUMPEX", []int{2, 1, 2}},         // cond_slot, polarity, label
	HASATTRJUMP:           {"HASATTRJUMP", []int{2, 2, 2}},        // obj, name_id, label
	PUSH_RESCUE_FRAME:     {"PUSH_RESCUE_FRAME", []int{2, 1, 2, 2, 2}}, // region_id, mode, rescue_label, finally_label, error_slot
	POP_RESCUE_FRAME:      {"POP_RESCUE_FRAME", []int{2}},         // region_id
	ADD_RESCUE_TYPE:       {"ADD_RESCUE_TYPE", []int{2, 2}},       // region_id, class_id
	ADD_RESCUE_TYPE_BY_REF: {"ADD_RESCUE_TYPE_BY_REF", []int{2, 2}}, // region_id, class_slot
	JUMP_TO_FINALLY:       {"JUMP_TO_FINALLY", []int{2}},          // region_id
	RAISE:                 {"RAISE", []int{2, 2}},                 // class_id, msg_slot
	RAISE_BY_REF:          {"RAISE_BY_REF", []int{2, 2}},          // class_slot, msg_slot
	AWAIT_ITEM:            {"AWAIT_ITEM", []int{2}},               // slot
	JUMP_TARGET:           {"JUMP_TARGET", []int{2}},              // label id
}

// Get returns op's definition, or an error if op is not a recognised opcode.
func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("codegen: opcode %d undefined", op)
	}
	return def, nil
}

// instructionWidth returns 1 (the opcode byte) plus the sum of def's
// operand widths.
func instructionWidth(def *OpCodeDefinition) int {
	width := 1
	for _, w := range def.OperandWidths {
		width += w
	}
	return width
}

// MakeInstruction encodes op and its operands as a big-endian byte
// record, mirroring the teacher's MakeInstruction. Operand widths of
// 1 truncate to a single byte; widths of 2 use binary.BigEndian.
func MakeInstruction(op Opcode, operands ...int) []byte {
	def, err := Get(op)
	if err != nil {
		return nil
	}
	instr := make([]byte, instructionWidth(def))
	instr[0] = byte(op)

	offset := 1
	for i, width := range def.OperandWidths {
		value := 0
		if i < len(operands) {
			value = operands[i]
		}
		switch width {
		case 1:
			instr[offset] = byte(value)
		case 2:
			binary.BigEndian.PutUint16(instr[offset:], uint16(int16(value)))
		}
		offset += width
	}
	return instr
}

// ReadOperand decodes the operand at instr[offset:] given its byte width.
func ReadOperand(instr Instructions, offset, width int) int {
	switch width {
	case 1:
		return int(instr[offset])
	case 2:
		return int(int16(binary.BigEndian.Uint16(instr[offset:])))
	default:
		return 0
	}
}
