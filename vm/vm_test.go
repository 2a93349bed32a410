package vm

import (
	"testing"

	"vesper/ast"
	"vesper/codegen"
)

// buildProgram assembles a tiny hand-written program (no lexer/parser/
// resolver involved) so the execution loop can be exercised directly
// against known bytecode, the same way the teacher's VM tests drive
// compiler.Bytecode values by hand.
func buildProgram() (*codegen.Program, *LinkResult) {
	prog := codegen.NewProgram("test://main.vsp")

	// add(a, b): return a + b -- params in slots 0,1, one result temp.
	addFu := codegen.NewFuncUnit(1, &ast.FuncStorageInfo{LowestGuaranteedFreeTemp: 2, MaxExtraStack: 1})
	addFu.Code = append(addFu.Code, codegen.MakeInstruction(codegen.BINOP, int(ast.OpAdd), 2, 0, 1)...)
	addFu.Code = append(addFu.Code, codegen.MakeInstruction(codegen.RETURN_VALUE, 2)...)
	prog.RegisterFunction(1, addFu)

	// main(): calls add(2, 3) and returns the result.
	mainFu := codegen.NewFuncUnit(0, &ast.FuncStorageInfo{LowestGuaranteedFreeTemp: 1, MaxExtraStack: 5})
	code := mainFu.Code
	code = append(code, codegen.MakeInstruction(codegen.GET_FUNC, 1, 1)...)         // slot1 = add
	code = append(code, codegen.MakeInstruction(codegen.CALL_SETTOP, 2)...)          // settop=2
	code = append(code, codegen.MakeInstruction(codegen.SET_CONST, 2, prog.InternConstant(int64(2)))...)
	code = append(code, codegen.MakeInstruction(codegen.CALL_SETTOP, 3)...)
	code = append(code, codegen.MakeInstruction(codegen.SET_CONST, 3, prog.InternConstant(int64(3)))...)
	code = append(code, codegen.MakeInstruction(codegen.CALL_SETTOP, 4)...)
	code = append(code, codegen.MakeInstruction(codegen.CALL, 1, 0, 2, 0, 0)...) // callee=slot1, ret=slot0, pos=2, kw=0
	code = append(code, codegen.MakeInstruction(codegen.RETURN_VALUE, 0)...)
	mainFu.Code = code
	prog.RegisterFunction(0, mainFu)

	link := &LinkResult{
		Classes: map[int]*ClassMeta{},
		Funcs: map[int]*FuncMeta{
			1: {FuncID: 1, ParamSlots: map[string]int{"a": 0, "b": 1}, ParamCount: 2},
		},
	}
	return prog, link
}

func TestRunCallsUserFunction(t *testing.T) {
	prog, link := buildProgram()
	machine := New(prog, link)

	result, err := machine.Run(0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum, ok := result.(int64)
	if !ok || sum != 5 {
		t.Fatalf("got %v, want int64(5)", result)
	}
}

func TestBinopArithmeticAndComparison(t *testing.T) {
	machine := New(codegen.NewProgram("test://x.vsp"), &LinkResult{Classes: map[int]*ClassMeta{}, Funcs: map[int]*FuncMeta{}})

	sum, err := machine.binop(ast.OpAdd, int64(2), int64(3))
	if err != nil || sum != int64(5) {
		t.Fatalf("OpAdd: got %v, %v", sum, err)
	}
	mixed, err := machine.binop(ast.OpAdd, int64(2), 1.5)
	if err != nil || mixed != 3.5 {
		t.Fatalf("OpAdd mixed: got %v, %v", mixed, err)
	}
	less, err := machine.binop(ast.OpLess, int64(2), int64(3))
	if err != nil || less != true {
		t.Fatalf("OpLess: got %v, %v", less, err)
	}
	concat, err := machine.binop(ast.OpAdd, "foo", "bar")
	if err != nil || concat != "foobar" {
		t.Fatalf("string concat: got %v, %v", concat, err)
	}
	_, err = machine.binop(ast.OpDiv, int64(1), int64(0))
	if err == nil {
		t.Fatalf("expected division-by-zero error")
	}
}

func TestInstanceAttributesAreNameKeyed(t *testing.T) {
	machine := New(codegen.NewProgram("test://x.vsp"), &LinkResult{})
	base := &ClassMeta{ID: 0, Name: "Base", Methods: map[string]int{}, VarInitFuncID: -1}
	sub := &ClassMeta{ID: 1, Name: "Sub", Base: base, Methods: map[string]int{}, VarInitFuncID: -1}

	inst := NewInstance(sub)
	if err := machine.setAttr(inst, "x", int64(1)); err != nil {
		t.Fatalf("setAttr base-shaped name: %v", err)
	}
	if err := machine.setAttr(inst, "y", int64(2)); err != nil {
		t.Fatalf("setAttr: %v", err)
	}
	got, err := machine.getAttr(inst, "x")
	if err != nil || got != int64(1) {
		t.Fatalf("getAttr x: got %v, %v", got, err)
	}
	got, err = machine.getAttr(inst, "y")
	if err != nil || got != int64(2) {
		t.Fatalf("getAttr y: got %v, %v", got, err)
	}
	if _, err := machine.getAttr(inst, "z"); err == nil {
		t.Fatalf("expected AttributeError for missing attribute")
	}
}

func TestMethodLookupWalksBaseChain(t *testing.T) {
	base := &ClassMeta{ID: 0, Name: "Base", Methods: map[string]int{"greet": 7}, VarInitFuncID: -1}
	sub := &ClassMeta{ID: 1, Name: "Sub", Base: base, Methods: map[string]int{}, VarInitFuncID: -1}
	inst := NewInstance(sub)

	funcID, ok := inst.LookupMethod("greet")
	if !ok || funcID != 7 {
		t.Fatalf("LookupMethod: got (%d, %v), want (7, true)", funcID, ok)
	}
	if _, ok := inst.LookupMethod("missing"); ok {
		t.Fatalf("LookupMethod found an unregistered method")
	}
}

func TestRescueRegionCatchesMatchingClass(t *testing.T) {
	prog := codegen.NewProgram("test://x.vsp")
	raiseClassID := 42

	fu := codegen.NewFuncUnit(0, &ast.FuncStorageInfo{LowestGuaranteedFreeTemp: 2, MaxExtraStack: 0})

	// PUSH_RESCUE_FRAME (10 bytes) + ADD_RESCUE_TYPE (5 bytes) + RAISE
	// (5 bytes) separate the region-open instruction from the rescue
	// body; codegen/finalize.go resolves a jump label to a signed
	// offset measured from the START of the jump instruction itself,
	// so rescue_label here is 20, not 10.
	const rescueLabelOffset = 20

	code := fu.Code
	code = append(code, codegen.MakeInstruction(codegen.PUSH_RESCUE_FRAME, 0, codegen.JumpOnRescue, rescueLabelOffset, 0, 1)...)
	code = append(code, codegen.MakeInstruction(codegen.ADD_RESCUE_TYPE, 0, raiseClassID)...)
	code = append(code, codegen.MakeInstruction(codegen.RAISE, raiseClassID, 0)...)
	code = append(code, codegen.MakeInstruction(codegen.SET_CONST, 0, prog.InternConstant(int64(99)))...)
	code = append(code, codegen.MakeInstruction(codegen.RETURN_VALUE, 0)...)
	fu.Code = code

	prog.RegisterFunction(0, fu)
	link := &LinkResult{Classes: map[int]*ClassMeta{}, Funcs: map[int]*FuncMeta{}}
	machine := New(prog, link)

	result, err := machine.Run(0, nil)
	if err != nil {
		t.Fatalf("unexpected propagated error: %v", err)
	}
	if result != int64(99) {
		t.Fatalf("got %v, want int64(99) from the rescue body", result)
	}
}
