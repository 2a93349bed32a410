// Package vm is the register-based bytecode interpreter: the external
// collaborator that executes what codegen lowers and Link shapes. It
// is built only far enough to drive and exercise the codegen core end
// to end, not as a complete, optimised object runtime: arithmetic is
// done directly in Go interface{} values, collections are slice/map
// backed, and exception handling implements the documented
// finally-without-re-raise simplification (see tryHandleInFrame).
package vm

import (
	"fmt"

	"vesper/ast"
	"vesper/codegen"
)

// VM executes one codegen.Program against the shape tables Link built
// for it, generalising the teacher's stack-machine VM's shape
// (New/Run, a debug flag) to a frame stack instead of a value stack.
type VM struct {
	prog    *codegen.Program
	link    *LinkResult
	stack   FrameStack
	globals map[int]any
	debug   bool
}

func New(prog *codegen.Program, link *LinkResult) *VM {
	return &VM{prog: prog, link: link}
}

// Run executes funcID (typically a program's global-init function)
// with the given positional arguments and returns its RETURN_VALUE,
// or the first uncaught VesperError/RuntimeError.
func (vm *VM) Run(funcID int, args []any) (any, error) {
	frame, err := vm.makeFrame(funcID, nil, args, nil, -1)
	if err != nil {
		return nil, err
	}
	vm.stack = nil
	vm.stack.Push(frame)
	return vm.drain(&vm.stack)
}

// drain executes stack until it empties, returning the value written
// by the outermost frame's RETURN_VALUE.
func (vm *VM) drain(stack *FrameStack) (any, error) {
	var result any
	for {
		frame, ok := stack.Peek()
		if !ok {
			return result, nil
		}
		if frame.IP >= len(frame.Code) {
			stack.Pop()
			continue
		}
		op, operands, width, derr := decode(frame.Code, frame.IP)
		if derr != nil {
			return nil, RuntimeError{Message: derr.Error()}
		}
		instrOffset := frame.IP
		frame.IP += width

		val, returned, verr, err := vm.exec(stack, frame, op, operands, instrOffset)
		if err != nil {
			return nil, err
		}
		if verr != nil {
			if !vm.raise(stack, verr) {
				return nil, verr
			}
			continue
		}
		if returned {
			stack.Pop()
			if next, ok := stack.Peek(); ok {
				if frame.ReturnSlot >= 0 {
					next.set(frame.ReturnSlot, val)
				}
			} else {
				result = val
			}
		}
	}
}

// raise unwinds stack looking for a handler, per tryHandleInFrame's
// documented rescue/finally simplification, returning false if no
// frame on stack handles verr.
func (vm *VM) raise(stack *FrameStack, verr *VesperError) bool {
	for {
		frame, ok := stack.Peek()
		if !ok {
			return false
		}
		if tryHandleInFrame(frame, verr) {
			return true
		}
		stack.Pop()
	}
}

// tryHandleInFrame matches §4.3's rescue semantics for a real catch: a
// JumpOnRescue region whose registered types include verr's class
// binds the error and jumps to the rescue body, discarding every
// region nested inside it. When nothing catches, a JumpOnFinally
// region still gets its cleanup to run, but — since this VM has no
// pending-exception slot that survives across frames — execution
// simply continues after the finally block rather than re-raising past
// it. This is a deliberate, bounded simplification of real vesper
// programs, which expect the error to keep propagating once an outer
// finally that didn't catch it has run.
func tryHandleInFrame(frame *Frame, verr *VesperError) bool {
	for i := len(frame.Regions) - 1; i >= 0; i-- {
		r := frame.Regions[i]
		if r.Mode&codegen.JumpOnRescue != 0 && r.catches(verr.ClassID) {
			frame.set(r.ErrorSlot, verr)
			frame.IP = r.RescueIP
			frame.Regions = frame.Regions[:i]
			return true
		}
	}
	for i := len(frame.Regions) - 1; i >= 0; i-- {
		r := frame.Regions[i]
		if r.Mode&codegen.JumpOnFinally != 0 {
			frame.set(r.ErrorSlot, verr)
			frame.IP = r.FinallyIP
			frame.Regions = frame.Regions[:i]
			return true
		}
	}
	return false
}

func decode(code codegen.Instructions, ip int) (codegen.Opcode, []int, int, error) {
	op := codegen.Opcode(code[ip])
	def, err := codegen.Get(op)
	if err != nil {
		return 0, nil, 0, err
	}
	operands := make([]int, len(def.OperandWidths))
	pos := ip + 1
	for i, w := range def.OperandWidths {
		operands[i] = codegen.ReadOperand(code, pos, w)
		pos += w
	}
	return op, operands, pos - ip, nil
}

// makeFrame builds a Frame for funcID, binding self (if any) and
// positional/keyword arguments per the calling convention §4.4 "Calls"
// describes: self (if present) at slot 0, positional args filling the
// following slots in declaration order, then keyword args bound by
// name through FuncMeta.ParamSlots, with every unsupplied optional
// param left as codegen.Unspecified{} so the function's own
// default-argument prologue (lowerFuncDef) fires.
func (vm *VM) makeFrame(funcID int, self *Instance, pos []any, kw map[string]any, returnSlot int) (*Frame, error) {
	fu := vm.prog.Functions[funcID]
	if fu == nil {
		return nil, RuntimeError{Message: fmt.Sprintf("call to unregistered function %d", funcID)}
	}
	meta := vm.link.Funcs[funcID]
	frame := newFrame(funcID, fu, meta, returnSlot)

	base := 0
	if self != nil {
		frame.set(0, self)
		base = 1
	}
	if meta != nil {
		for _, slot := range meta.ParamSlots {
			frame.set(slot, codegen.Unspecified{})
		}
	}
	for i, v := range pos {
		frame.set(base+i, v)
	}
	if meta != nil {
		for name, v := range kw {
			slot, ok := meta.ParamSlots[name]
			if !ok {
				return nil, &VesperError{ClassID: vm.prog.BuiltinClassID("ArgumentError"), Message: "unknown keyword argument: " + name}
			}
			frame.set(slot, v)
		}
	}
	return frame, nil
}

// exec runs one instruction. Its results are: a RETURN_VALUE payload
// (when returned is true), a raised error to unwind with, or a hard VM
// error that aborts the whole run.
func (vm *VM) exec(stack *FrameStack, frame *Frame, op codegen.Opcode, ops []int, instrOffset int) (val any, returned bool, verr *VesperError, err error) {
	switch op {
	case codegen.SET_CONST:
		frame.set(ops[0], vm.prog.Constants[ops[1]])

	case codegen.VALUECOPY:
		frame.set(ops[0], frame.get(ops[1]))

	case codegen.GET_GLOBAL:
		frame.set(ops[0], vm.globals[ops[1]])

	case codegen.SET_GLOBAL:
		if vm.globals == nil {
			vm.globals = make(map[int]any)
		}
		vm.globals[ops[0]] = frame.get(ops[1])

	case codegen.GET_FUNC:
		frame.set(ops[0], &Function{FuncID: ops[1]})

	case codegen.GET_CLASS:
		frame.set(ops[0], &Class{Meta: vm.link.Classes[ops[1]]})

	case codegen.GET_ATTRIBUTE_BY_NAME:
		name, _ := vm.prog.AttrName(ops[2])
		got, gerr := vm.getAttr(frame.get(ops[1]), name)
		if gerr != nil {
			return nil, false, gerr, nil
		}
		frame.set(ops[0], got)

	case codegen.GET_ATTRIBUTE_BY_IDX:
		name, aerr := vm.varInitAttrName(frame, ops[2])
		if aerr != nil {
			return nil, false, aerr, nil
		}
		got, gerr := vm.getAttr(frame.get(ops[1]), name)
		if gerr != nil {
			return nil, false, gerr, nil
		}
		frame.set(ops[0], got)

	case codegen.SET_BY_ATTRIBUTE_NAME:
		name, _ := vm.prog.AttrName(ops[1])
		if serr := vm.setAttr(frame.get(ops[0]), name, frame.get(ops[2])); serr != nil {
			return nil, false, serr, nil
		}

	case codegen.SET_BY_ATTRIBUTE_IDX:
		name, aerr := vm.varInitAttrName(frame, ops[1])
		if aerr != nil {
			return nil, false, aerr, nil
		}
		if serr := vm.setAttr(frame.get(ops[0]), name, frame.get(ops[2])); serr != nil {
			return nil, false, serr, nil
		}

	case codegen.SET_BY_INDEX_EXPR:
		if serr := vm.setIndex(frame.get(ops[0]), frame.get(ops[1]), frame.get(ops[2])); serr != nil {
			return nil, false, serr, nil
		}

	case codegen.NEW_LIST:
		frame.set(ops[0], &ListVal{})
	case codegen.NEW_SET:
		frame.set(ops[0], &SetVal{})
	case codegen.NEW_MAP:
		frame.set(ops[0], &MapVal{})
	case codegen.NEW_VECTOR:
		frame.set(ops[0], &VectorVal{})

	case codegen.NEW_ITERATOR:
		it, ierr := vm.newIterator(frame.get(ops[1]))
		if ierr != nil {
			return nil, false, ierr, nil
		}
		frame.set(ops[0], it)

	case codegen.ITERATE:
		it, _ := frame.get(ops[0]).(*Iterator)
		if it == nil || it.Index >= len(it.Elems) {
			frame.IP = instrOffset + ops[2]
		} else {
			frame.set(ops[1], it.Elems[it.Index])
			it.Index++
		}

	case codegen.NEW_INSTANCE:
		classMeta := vm.link.Classes[ops[0]]
		if classMeta == nil {
			return nil, false, vm.builtinErr("ArgumentError", "unknown class"), nil
		}
		inst := NewInstance(classMeta)
		if ierr := vm.runVarInitChain(inst, classMeta); ierr != nil {
			return nil, false, ierr, nil
		}
		frame.set(ops[1], inst)

	case codegen.NEW_INSTANCE_BY_REF:
		cls, _ := frame.get(ops[0]).(*Class)
		if cls == nil {
			return nil, false, vm.builtinErr("ArgumentError", "not a class"), nil
		}
		inst := NewInstance(cls.Meta)
		if ierr := vm.runVarInitChain(inst, cls.Meta); ierr != nil {
			return nil, false, ierr, nil
		}
		frame.set(ops[1], inst)

	case codegen.GET_CONSTRUCTOR:
		inst, _ := frame.get(ops[1]).(*Instance)
		if inst == nil {
			frame.set(ops[0], nil)
		} else if funcID, ok := inst.LookupMethod("constructor"); ok {
			frame.set(ops[0], &BoundMethod{FuncID: funcID, Self: inst})
		} else {
			frame.set(ops[0], nil)
		}

	case codegen.CALL, codegen.CALL_IGNORE_IF_NONE:
		cerr := vm.execCall(stack, frame, ops, op == codegen.CALL_IGNORE_IF_NONE)
		if cerr != nil {
			return nil, false, cerr, nil
		}

	case codegen.CALL_SETTOP:
		frame.Settop = ops[0]

	case codegen.RETURN_VALUE:
		return frame.get(ops[0]), true, nil, nil

	case codegen.BINOP:
		got, berr := vm.binop(ast.BinOp(ops[0]), frame.get(ops[2]), frame.get(ops[3]))
		if berr != nil {
			return nil, false, berr, nil
		}
		frame.set(ops[1], got)

	case codegen.UNOP:
		got, uerr := vm.unop(ast.UnOp(ops[0]), frame.get(ops[2]))
		if uerr != nil {
			return nil, false, uerr, nil
		}
		frame.set(ops[1], got)

	case codegen.JUMP:
		frame.IP = instrOffset + ops[0]

	case codegen.CONDJUMP:
		if !isTruthy(frame.get(ops[0])) {
			frame.IP = instrOffset + ops[1]
		}

	case codegen.CONDJUMPEX:
		cond := isTruthy(frame.get(ops[0]))
		takeJump := cond
		if ops[1] == 1 {
			takeJump = !cond
		}
		if takeJump {
			frame.IP = instrOffset + ops[2]
		}

	case codegen.HASATTRJUMP:
		name, _ := vm.prog.AttrName(ops[1])
		if !vm.hasAttr(frame.get(ops[0]), name) {
			frame.IP = instrOffset + ops[2]
		}

	case codegen.PUSH_RESCUE_FRAME:
		r := &region{RegionID: ops[0], Mode: ops[1], ErrorSlot: ops[4]}
		if r.Mode&codegen.JumpOnRescue != 0 {
			r.RescueIP = instrOffset + ops[2]
		}
		if r.Mode&codegen.JumpOnFinally != 0 {
			r.FinallyIP = instrOffset + ops[3]
		}
		frame.pushRegion(r)

	case codegen.POP_RESCUE_FRAME:
		frame.popRegion(ops[0])

	case codegen.ADD_RESCUE_TYPE:
		if r := frame.findRegion(ops[0]); r != nil {
			r.CatchClassIDs = append(r.CatchClassIDs, ops[1])
		}

	case codegen.ADD_RESCUE_TYPE_BY_REF:
		if r := frame.findRegion(ops[0]); r != nil {
			if cls, ok := frame.get(ops[1]).(*Class); ok {
				r.CatchClassIDs = append(r.CatchClassIDs, cls.Meta.ID)
			}
		}

	case codegen.JUMP_TO_FINALLY:
		if r := frame.findRegion(ops[0]); r != nil {
			frame.IP = r.FinallyIP
		}

	case codegen.RAISE:
		return nil, false, &VesperError{ClassID: ops[0], Message: frame.get(ops[1])}, nil

	case codegen.RAISE_BY_REF:
		cls, _ := frame.get(ops[0]).(*Class)
		classID := -1
		if cls != nil {
			classID = cls.Meta.ID
		}
		return nil, false, &VesperError{ClassID: classID, Message: frame.get(ops[1])}, nil

	case codegen.AWAIT_ITEM:
		// No concurrency runtime is in scope; the awaited value is
		// already the result, so AWAIT_ITEM is a pass-through.

	default:
		return nil, false, nil, RuntimeError{Message: fmt.Sprintf("unhandled opcode %d", op)}
	}
	return nil, false, nil, nil
}

func (vm *VM) varInitAttrName(frame *Frame, idx int) (string, *VesperError) {
	if frame.Meta == nil || idx < 0 || idx >= len(frame.Meta.VarInitAttrNames) {
		return "", vm.builtinErr("AttributeError", "attribute index has no name in this context")
	}
	return frame.Meta.VarInitAttrNames[idx], nil
}

func (vm *VM) builtinErr(class, message string) *VesperError {
	return &VesperError{ClassID: vm.prog.BuiltinClassID(class), Message: message}
}

func (vm *VM) getAttr(obj any, name string) (any, *VesperError) {
	switch o := obj.(type) {
	case *Instance:
		if v, ok := o.Attrs[name]; ok {
			return v, nil
		}
		if funcID, ok := o.LookupMethod(name); ok {
			return &BoundMethod{FuncID: funcID, Self: o}, nil
		}
	case *ListVal:
		if name == "add" {
			return &NativeMethod{Receiver: o, Name: name}, nil
		}
	case *SetVal:
		if name == "add" {
			return &NativeMethod{Receiver: o, Name: name}, nil
		}
	}
	return nil, vm.builtinErr("AttributeError", "no such attribute: "+name)
}

func (vm *VM) hasAttr(obj any, name string) bool {
	_, err := vm.getAttr(obj, name)
	return err == nil
}

func (vm *VM) setAttr(obj any, name string, value any) *VesperError {
	inst, ok := obj.(*Instance)
	if !ok {
		return vm.builtinErr("AttributeError", "no such attribute: "+name)
	}
	inst.Attrs[name] = value
	return nil
}

func (vm *VM) setIndex(container, index, value any) *VesperError {
	switch c := container.(type) {
	case *MapVal:
		c.set(index, value)
		return nil
	case *VectorVal:
		i, ok := toInt(index)
		if !ok {
			return vm.builtinErr("IndexError", "vector index must be an integer")
		}
		for i >= len(c.Elems) {
			c.Elems = append(c.Elems, nil)
		}
		c.Elems[i] = value
		return nil
	case *ListVal:
		i, ok := toInt(index)
		if !ok || i < 0 || i >= len(c.Elems) {
			return vm.builtinErr("IndexError", "list index out of range")
		}
		c.Elems[i] = value
		return nil
	}
	return vm.builtinErr("IndexError", "value does not support index assignment")
}

func (vm *VM) getIndex(container, index any) (any, *VesperError) {
	switch c := container.(type) {
	case *MapVal:
		if v, ok := c.get(index); ok {
			return v, nil
		}
		return nil, vm.builtinErr("IndexError", "key not found")
	case *ListVal:
		i, ok := toInt(index)
		if !ok || i < 0 || i >= len(c.Elems) {
			return nil, vm.builtinErr("IndexError", "list index out of range")
		}
		return c.Elems[i], nil
	case *VectorVal:
		i, ok := toInt(index)
		if !ok || i < 0 || i >= len(c.Elems) {
			return nil, vm.builtinErr("IndexError", "vector index out of range")
		}
		return c.Elems[i], nil
	case string:
		i, ok := toInt(index)
		if !ok || i < 0 || i >= len(c) {
			return nil, vm.builtinErr("IndexError", "string index out of range")
		}
		return string(c[i]), nil
	}
	return nil, vm.builtinErr("IndexError", "value does not support indexing")
}

func (vm *VM) newIterator(container any) (*Iterator, *VesperError) {
	switch c := container.(type) {
	case *ListVal:
		return &Iterator{Elems: append([]any{}, c.Elems...)}, nil
	case *SetVal:
		return &Iterator{Elems: append([]any{}, c.Elems...)}, nil
	case *VectorVal:
		return &Iterator{Elems: append([]any{}, c.Elems...)}, nil
	case *MapVal:
		return &Iterator{Elems: append([]any{}, c.Keys...)}, nil
	}
	return nil, vm.builtinErr("ArgumentError", "value is not iterable")
}

// runVarInitChain runs a freshly allocated instance's var-init
// functions from its most distant base class down to its own class,
// each on its own isolated frame stack so NEW_INSTANCE's caller
// doesn't need to re-enter the main dispatch loop.
func (vm *VM) runVarInitChain(inst *Instance, classMeta *ClassMeta) *VesperError {
	var chain []*ClassMeta
	for c := classMeta; c != nil; c = c.Base {
		chain = append(chain, c)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		if c.VarInitFuncID < 0 {
			continue
		}
		if _, err := vm.callSync(c.VarInitFuncID, inst, nil, nil); err != nil {
			return vm.asVesperErr(err)
		}
	}
	return nil
}

// callSync runs funcID to completion on a fresh, isolated frame stack
// and returns its result, used by call sites that cannot themselves
// suspend back into the main dispatch loop (currently just var-init
// chains).
func (vm *VM) callSync(funcID int, self *Instance, pos []any, kw map[string]any) (any, error) {
	frame, err := vm.makeFrame(funcID, self, pos, kw, -1)
	if err != nil {
		return nil, err
	}
	var stack FrameStack
	stack.Push(frame)
	return vm.drain(&stack)
}

// execCall implements CALL/CALL_IGNORE_IF_NONE: resolve the callee
// value in calleeSlot, gather the arguments already pushed using the
// settop/pos_count/kw_count args-base protocol codegen/lower.go's
// emitCallFromSlots establishes, and either push a new user-function
// frame (left for the main loop to drain) or run a native method
// inline.
func (vm *VM) execCall(stack *FrameStack, frame *Frame, ops []int, ignoreIfNone bool) *VesperError {
	calleeSlot, returnSlot, posCount, kwCount, flags := ops[0], ops[1], ops[2], ops[3], ops[4]
	calleeVal := frame.get(calleeSlot)
	if calleeVal == nil {
		if ignoreIfNone {
			if returnSlot >= 0 {
				frame.set(returnSlot, nil)
			}
			return nil
		}
		return vm.builtinErr("AttributeError", "call target is none")
	}

	argsBase := frame.Settop - posCount - 2*kwCount
	pos := make([]any, posCount)
	for i := 0; i < posCount; i++ {
		pos[i] = frame.get(argsBase + i)
	}
	kw := make(map[string]any, kwCount)
	kwBase := argsBase + posCount
	for i := 0; i < kwCount; i++ {
		nameID, _ := frame.get(kwBase + i*2).(int)
		value := frame.get(kwBase + i*2 + 1)
		name, _ := vm.prog.AttrName(nameID)
		kw[name] = value
	}
	if flags&codegen.FlagUnpackLastPosArg != 0 && len(pos) > 0 {
		if elems, ok := asElemSlice(pos[len(pos)-1]); ok {
			pos = append(pos[:len(pos)-1], elems...)
		}
	}

	switch callee := calleeVal.(type) {
	case *Function:
		newFrame, err := vm.makeFrame(callee.FuncID, nil, pos, kw, returnSlot)
		if err != nil {
			return vm.asVesperErr(err)
		}
		stack.Push(newFrame)
		return nil
	case *BoundMethod:
		newFrame, err := vm.makeFrame(callee.FuncID, callee.Self, pos, kw, returnSlot)
		if err != nil {
			return vm.asVesperErr(err)
		}
		stack.Push(newFrame)
		return nil
	case *NativeMethod:
		result := nativeCall(callee.Receiver, callee.Name, pos)
		if returnSlot >= 0 {
			frame.set(returnSlot, result)
		}
		return nil
	default:
		return vm.builtinErr("ArgumentError", "value is not callable")
	}
}

func (vm *VM) asVesperErr(err error) *VesperError {
	if verr, ok := err.(*VesperError); ok {
		return verr
	}
	return vm.builtinErr("RuntimeError", err.Error())
}

func nativeCall(receiver any, name string, args []any) any {
	switch r := receiver.(type) {
	case *ListVal:
		if name == "add" && len(args) > 0 {
			r.Elems = append(r.Elems, args[0])
		}
	case *SetVal:
		if name == "add" && len(args) > 0 {
			r.add(args[0])
		}
	}
	return nil
}

func asElemSlice(v any) ([]any, bool) {
	switch c := v.(type) {
	case *ListVal:
		return c.Elems, true
	case *VectorVal:
		return c.Elems, true
	case *SetVal:
		return c.Elems, true
	}
	return nil, false
}

// isTruthy mirrors interpreter.isTrue's notion of truthiness: none and
// false are the only falsy values.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toNumber(v any) (float64, bool, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true, true
	case float64:
		return n, false, true
	}
	return 0, false, false
}

// binop implements the BINOP opcode's operator table: arithmetic
// preserves int64 when both sides are int64 and falls back to float64
// otherwise, matching the teacher's own float-first evaluator
// (interpreter.applyArith) generalised to keep integers integral where
// it can. OpIndex (container indexing) is folded in here too, since
// lowerIndexAccess/lowerAssignIndex route it through BINOP rather than
// a dedicated opcode.
func (vm *VM) binop(op ast.BinOp, left, right any) (any, *VesperError) {
	switch op {
	case ast.OpEqual:
		return valuesEqual(left, right), nil
	case ast.OpNotEqual:
		return !valuesEqual(left, right), nil
	case ast.OpAnd:
		return isTruthy(left) && isTruthy(right), nil
	case ast.OpOr:
		return isTruthy(left) || isTruthy(right), nil
	case ast.OpIndex:
		val, err := vm.getIndex(left, right)
		return val, err
	}

	if ls, ok := left.(string); ok && op == ast.OpAdd {
		if rs, ok := right.(string); ok {
			return ls + rs, nil
		}
	}

	lf, lInt, lok := toNumber(left)
	rf, rInt, rok := toNumber(right)
	if !lok || !rok {
		return nil, vm.builtinErr("ArgumentError", "operand is not a number")
	}
	bothInt := lInt && rInt

	switch op {
	case ast.OpAdd:
		if bothInt {
			return left.(int64) + right.(int64), nil
		}
		return lf + rf, nil
	case ast.OpSub:
		if bothInt {
			return left.(int64) - right.(int64), nil
		}
		return lf - rf, nil
	case ast.OpMul:
		if bothInt {
			return left.(int64) * right.(int64), nil
		}
		return lf * rf, nil
	case ast.OpDiv:
		if rf == 0 {
			return nil, vm.builtinErr("ArgumentError", "division by zero")
		}
		return lf / rf, nil
	case ast.OpMod:
		li, ri := int64(lf), int64(rf)
		if ri == 0 {
			return nil, vm.builtinErr("ArgumentError", "division by zero")
		}
		if bothInt {
			return li % ri, nil
		}
		return float64(li % ri), nil
	case ast.OpLess:
		return lf < rf, nil
	case ast.OpLessEqual:
		return lf <= rf, nil
	case ast.OpGreater:
		return lf > rf, nil
	case ast.OpGreaterEqual:
		return lf >= rf, nil
	case ast.OpBitAnd:
		return int64(lf) & int64(rf), nil
	case ast.OpBitOr:
		return int64(lf) | int64(rf), nil
	case ast.OpBitXor:
		return int64(lf) ^ int64(rf), nil
	}
	return nil, vm.builtinErr("ArgumentError", "unsupported operator")
}

func (vm *VM) unop(op ast.UnOp, operand any) (any, *VesperError) {
	switch op {
	case ast.OpNot:
		return !isTruthy(operand), nil
	case ast.OpNeg:
		switch n := operand.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, vm.builtinErr("ArgumentError", "operand is not a number")
	case ast.OpBitNot:
		i, ok := toInt(operand)
		if !ok {
			return nil, vm.builtinErr("ArgumentError", "operand is not a number")
		}
		return int64(^i), nil
	}
	return nil, vm.builtinErr("ArgumentError", "unsupported operator")
}

func valuesEqual(left, right any) bool {
	lf, _, lok := toNumber(left)
	rf, _, rok := toNumber(right)
	if lok && rok {
		return lf == rf
	}
	return left == right
}
