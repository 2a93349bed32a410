package codegen

import (
	"errors"
	"testing"

	"vesper/ast"
)

func freshFuncUnit() *FuncUnit {
	return NewFuncUnit(0, &ast.FuncStorageInfo{})
}

func TestFinalizeUnresolvedLabel(t *testing.T) {
	fu := freshFuncUnit()
	fu.emit(JUMP, 42) // label 42 is never emitted
	prog := NewProgram("t")
	err := Finalize(prog, fu)
	if !errors.Is(err, errUnresolvedLabel) {
		t.Fatalf("err = %v, want errUnresolvedLabel", err)
	}
}

func TestFinalizeZeroJumpOffset(t *testing.T) {
	fu := freshFuncUnit()
	lbl := fu.NewLabel()
	fu.EmitLabel(lbl)
	fu.emit(JUMP, lbl) // jumps to its own position: rel offset 0
	prog := NewProgram("t")
	err := Finalize(prog, fu)
	if !errors.Is(err, errZeroJumpOffset) {
		t.Fatalf("err = %v, want errZeroJumpOffset", err)
	}
}

func TestFinalizeJumpTooFar(t *testing.T) {
	fu := freshFuncUnit()
	lbl := fu.NewLabel()
	fu.emit(JUMP, lbl)
	// SET_CONST is 5 bytes; pad past the +-65535 relative-offset bound.
	for i := 0; i < 13200; i++ {
		fu.emit(SET_CONST, 0, 0)
	}
	fu.EmitLabel(lbl)
	prog := NewProgram("t")
	err := Finalize(prog, fu)
	if !errors.Is(err, errJumpTooFar) {
		t.Fatalf("err = %v, want errJumpTooFar", err)
	}
}

func TestFinalizeAppendsImplicitReturn(t *testing.T) {
	fu := freshFuncUnit()
	fu.emit(SET_CONST, 0, 0)
	prog := NewProgram("t")
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	ops := decodeOps(t, fu.Code)
	if len(ops) != 3 || ops[0] != SET_CONST || ops[1] != SET_CONST || ops[2] != RETURN_VALUE {
		t.Fatalf("ops = %v, want [SET_CONST SET_CONST RETURN_VALUE]", ops)
	}
}

func TestFinalizeOmitsReturnWhenAlreadyPresent(t *testing.T) {
	fu := freshFuncUnit()
	fu.emit(SET_CONST, 0, 0)
	fu.emit(RETURN_VALUE, 0)
	prog := NewProgram("t")
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	ops := decodeOps(t, fu.Code)
	if len(ops) != 2 {
		t.Fatalf("ops = %v, want exactly [SET_CONST RETURN_VALUE]", ops)
	}
}

// Idempotent finalisation (§8): running Finalize twice is a no-op
// beyond the first pass.
func TestFinalizeIsIdempotent(t *testing.T) {
	fu := freshFuncUnit()
	start := fu.NewLabel()
	end := fu.NewLabel()
	fu.EmitLabel(start)
	fu.emit(SET_CONST, 0, 0)
	fu.emit(CONDJUMP, 0, end)
	fu.emit(JUMP, start)
	fu.EmitLabel(end)
	prog := NewProgram("t")

	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	first := append(Instructions(nil), fu.Code...)

	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if len(fu.Code) != len(first) {
		t.Fatalf("second Finalize changed code length: got %d, want %d", len(fu.Code), len(first))
	}
	for i := range first {
		if fu.Code[i] != first[i] {
			t.Fatalf("second Finalize mutated byte %d: got %d, want %d", i, fu.Code[i], first[i])
		}
	}
}

// Region nesting: closing regions out of LIFO order panics.
func TestCloseRegionOutOfOrderPanics(t *testing.T) {
	fu := freshFuncUnit()
	outer, err := fu.PushRegion(JumpOnFinally, 0, 0, fu.NewMultiLine())
	if err != nil {
		t.Fatalf("PushRegion outer: %v", err)
	}
	inner, err := fu.PushRegion(JumpOnFinally, 0, 0, fu.NewMultiLine())
	if err != nil {
		t.Fatalf("PushRegion inner: %v", err)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic closing regions out of LIFO order")
		}
	}()
	fu.CloseRegion(outer)
	_ = inner
}

// Nested regions close cleanly in proper LIFO order.
func TestCloseRegionProperNesting(t *testing.T) {
	fu := freshFuncUnit()
	outer, err := fu.PushRegion(JumpOnFinally, 0, 0, fu.NewMultiLine())
	if err != nil {
		t.Fatalf("PushRegion outer: %v", err)
	}
	inner, err := fu.PushRegion(JumpOnFinally, 0, 0, fu.NewMultiLine())
	if err != nil {
		t.Fatalf("PushRegion inner: %v", err)
	}
	fu.CloseRegion(inner)
	fu.CloseRegion(outer)
}

// PUSH_RESCUE_FRAME's rescue/finally label fields are only resolved
// when the corresponding mode bit is set; a region with neither set
// must not spuriously demand a label 0 was emitted.
func TestPushRescueFrameWithNoModeBitsNeedsNoLabels(t *testing.T) {
	fu := freshFuncUnit()
	region, err := fu.PushRegion(0, 0, 0, fu.NewMultiLine())
	if err != nil {
		t.Fatalf("PushRegion: %v", err)
	}
	fu.EmitPopRescueFrame(region)
	fu.CloseRegion(region)
	prog := NewProgram("t")
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

// Slot liveness: single-line temporaries are freed at each statement
// boundary, so repeating a statement many times does not grow the
// function's peak extra-stack usage.
func TestSingleLineSlotsReusedAcrossStatements(t *testing.T) {
	fDef := ast.NewFuncDef(1, 0, "f", nil, nil)
	var body []ast.Node
	for i := 0; i < 50; i++ {
		body = append(body, callStmt(2, 0, "f"))
	}
	runner := ast.NewFuncDef(2, 0, "runner", nil, body)

	prog, _, diags := compile(t, []ast.Node{fDef, runner})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[runner.BytecodeFuncID]
	if fu.Info.MaxExtraStack > 3 {
		t.Fatalf("MaxExtraStack = %d after 50 repeated calls, want a small bounded value", fu.Info.MaxExtraStack)
	}
}
