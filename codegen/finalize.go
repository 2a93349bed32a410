package codegen

import "encoding/binary"

// jumpOperandIndex identifies, for each jump-bearing opcode, which
// operand index carries a label id the Finaliser must resolve to a
// relative byte offset (§4.5, step 2). PUSH_RESCUE_FRAME is handled
// separately: its rescue_label/finally_label fields only carry a real
// label id when the corresponding JumpOnRescue/JumpOnFinally mode bit
// is set, so resolving them unconditionally would chase an id that was
// never emitted as a label (0 is both "no label" and a legitimate
// label id).
var jumpOperandIndexes = map[Opcode][]int{
	JUMP:        {0},
	CONDJUMP:    {1},
	CONDJUMPEX:  {2},
	HASATTRJUMP: {2},
	ITERATE:     {2},
}

// Finalize implements §4.5: strip JUMP_TARGET pseudo-ops, rewrite every
// jump-bearing instruction's label operand to a signed relative byte
// offset, and append a default `return none` if control may fall off
// the function's end. It mutates fu.Code in place. A resolved relative
// offset is indistinguishable from an unresolved label id, so a second
// pass would misread already-resolved operands; Finalize instead
// guards on fu.Finalized and is a no-op past the first run (§8
// "Idempotent finalisation").
func Finalize(prog *Program, fu *FuncUnit) error {
	if fu.Finalized {
		return nil
	}
	labels, code, err := stripLabels(fu.Code)
	if err != nil {
		return err
	}
	if err := resolveJumps(code, labels); err != nil {
		return err
	}
	code = appendImplicitReturn(prog, code)
	fu.Code = code
	fu.Finalized = true
	return nil
}

func stripLabels(src Instructions) (map[int]int, Instructions, error) {
	labels := make(map[int]int)
	out := make(Instructions, 0, len(src))
	offset := 0
	for offset < len(src) {
		op := Opcode(src[offset])
		def, err := Get(op)
		if err != nil {
			return nil, nil, DeveloperError{Message: "finaliser: unknown opcode in byte buffer"}
		}
		width := instructionWidth(def)
		if op == JUMP_TARGET {
			id := ReadOperand(src, offset+1, 2)
			labels[id] = len(out)
		} else {
			out = append(out, src[offset:offset+width]...)
		}
		offset += width
	}
	return labels, out, nil
}

func resolveJumps(code Instructions, labels map[int]int) error {
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		def, err := Get(op)
		if err != nil {
			return DeveloperError{Message: "finaliser: unknown opcode in byte buffer"}
		}
		width := instructionWidth(def)
		if op == PUSH_RESCUE_FRAME {
			if err := resolveRescueFrameJumps(code, offset, labels); err != nil {
				return err
			}
		} else if indexes, ok := jumpOperandIndexes[op]; ok {
			if err := resolveInstructionJumps(code, offset, def, indexes, labels); err != nil {
				return err
			}
		}
		offset += width
	}
	return nil
}

// resolveRescueFrameJumps resolves PUSH_RESCUE_FRAME's rescue_label
// (operand 2) only if JumpOnRescue is set in mode (operand 1), and
// finally_label (operand 3) only if JumpOnFinally is set.
func resolveRescueFrameJumps(code Instructions, instrOffset int, labels map[int]int) error {
	def, _ := Get(PUSH_RESCUE_FRAME)
	mode := ReadOperand(code, instrOffset+1+def.OperandWidths[0], def.OperandWidths[1])
	var indexes []int
	if mode&JumpOnRescue != 0 {
		indexes = append(indexes, 2)
	}
	if mode&JumpOnFinally != 0 {
		indexes = append(indexes, 3)
	}
	if len(indexes) == 0 {
		return nil
	}
	return resolveInstructionJumps(code, instrOffset, def, indexes, labels)
}

func resolveInstructionJumps(code Instructions, instrOffset int, def *OpCodeDefinition, operandIndexes []int, labels map[int]int) error {
	pos := instrOffset + 1
	for i, width := range def.OperandWidths {
		if contains(operandIndexes, i) {
			labelID := ReadOperand(code, pos, width)
			labelOffset, ok := labels[labelID]
			if !ok {
				return errUnresolvedLabel
			}
			rel := labelOffset - instrOffset
			if rel == 0 {
				return errZeroJumpOffset
			}
			if rel < -65535 || rel > 65535 {
				return errJumpTooFar
			}
			binary.BigEndian.PutUint16(code[pos:], uint16(int16(rel)))
		}
		pos += width
	}
	return nil
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// appendImplicitReturn covers §4.5 step 3: a function whose byte buffer
// does not end in RETURN_VALUE falls off the end, so the VM needs an
// explicit `return none` to land on. Slot 0 is safe to clobber here
// even when it holds a named param or self: these two instructions run
// only on the fall-off-the-end path, immediately before the function
// returns, so nothing reads slot 0's prior value afterward.
func appendImplicitReturn(prog *Program, code Instructions) Instructions {
	if endsInReturn(code) {
		return code
	}
	noneID := prog.InternConstant(nil)
	code = append(code, MakeInstruction(SET_CONST, 0, noneID)...)
	code = append(code, MakeInstruction(RETURN_VALUE, 0)...)
	return code
}

func endsInReturn(code Instructions) bool {
	if len(code) == 0 {
		return false
	}
	offset := 0
	last := -1
	for offset < len(code) {
		op := Opcode(code[offset])
		def, err := Get(op)
		if err != nil {
			return false
		}
		last = offset
		offset += instructionWidth(def)
	}
	if last < 0 {
		return false
	}
	return Opcode(code[last]) == RETURN_VALUE
}
