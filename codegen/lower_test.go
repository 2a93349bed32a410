package codegen

import (
	"testing"

	"vesper/ast"
	"vesper/resolver"
)

// compile resolves stmts, lowers them into a fresh Program, and returns
// both so callers can finalize whichever FuncUnit they need.
func compile(t *testing.T, stmts []ast.Node) (*Program, *resolver.Resolver, *Diagnostics) {
	t.Helper()
	r := resolver.New(nil)
	if err := r.ResolveFile(stmts); err != nil {
		t.Fatalf("ResolveFile: %v", err)
	}
	prog := NewProgram("test.vsp")
	diags := NewDiagnostics()
	lw := NewLowerer(prog, diags, "test.vsp")
	lw.LowerFile(r.GlobalInitFuncID, stmts)
	return prog, r, diags
}

func decodeOps(t *testing.T, code Instructions) []Opcode {
	t.Helper()
	var ops []Opcode
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		def, err := Get(op)
		if err != nil {
			t.Fatalf("undecodable opcode at byte %d: %v", offset, err)
		}
		ops = append(ops, op)
		offset += instructionWidth(def)
	}
	return ops
}

func assertOps(t *testing.T, code Instructions, want []Opcode) {
	t.Helper()
	got := decodeOps(t, code)
	if len(got) != len(want) {
		t.Fatalf("op count = %d, want %d\n got:  %v\n want: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op[%d] = %v, want %v\n got:  %v\n want: %v", i, got[i], want[i], got, want)
		}
	}
}

func intLit(line int32, col int, v int64) *ast.Literal {
	return ast.NewLiteral(line, col, ast.ConstInt, v)
}

func strLit(line int32, col int, v string) *ast.Literal {
	return ast.NewLiteral(line, col, ast.ConstString, v)
}

// Seed scenario 1: var x = 1 + 2.
func TestSeedVarDefSum(t *testing.T) {
	stmts := []ast.Node{
		ast.NewVarDef(1, 0, "x", ast.NewBinaryOp(1, 0, ast.OpAdd, intLit(1, 4, 1), intLit(1, 8, 2)), false),
	}
	prog, r, diags := compile(t, stmts)
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[r.GlobalInitFuncID]
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	assertOps(t, fu.Code, []Opcode{SET_CONST, SET_CONST, BINOP, SET_GLOBAL, SET_CONST, RETURN_VALUE})
}

// Seed scenario 2: while a < 10 { a = a + 1 }, inside a function so a
// is a stack slot and the assignment lowers to VALUECOPY.
func TestSeedWhileLoop(t *testing.T) {
	cond := ast.NewBinaryOp(2, 0, ast.OpLess, ast.NewIdentifierRef(2, 6, "a"), intLit(2, 10, 10))
	assign := ast.NewAssign(3, 2,
		ast.NewIdentifierRef(3, 2, "a"),
		ast.NewBinaryOp(3, 6, ast.OpAdd, ast.NewIdentifierRef(3, 6, "a"), intLit(3, 10, 1)),
		ast.AssignPlain)
	whileStmt := ast.NewWhile(2, 0, cond, []ast.Node{assign})
	fn := ast.NewFuncDef(1, 0, "loop", []ast.Param{{Name: "a"}}, []ast.Node{whileStmt})

	prog, _, diags := compile(t, []ast.Node{fn})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[fn.BytecodeFuncID]
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	assertOps(t, fu.Code, []Opcode{
		SET_CONST, BINOP, CONDJUMP, SET_CONST, BINOP, VALUECOPY, JUMP,
		SET_CONST, RETURN_VALUE, // fall-off-the-end return appended by the finaliser
	})
}

func callStmt(line int32, col int, calleeName string, args ...ast.Node) *ast.CallStmt {
	call := ast.NewCall(line, col, ast.NewIdentifierRef(line, col, calleeName), args, nil)
	return ast.NewCallStmt(line, col, call)
}

// Seed scenario 3: do { f() } rescue AnyError as e { g(e) } finally { h() }.
func TestSeedDoRescueFinally(t *testing.T) {
	errClass := ast.NewClassDef(1, 0, "AnyError", nil)
	fDef := ast.NewFuncDef(2, 0, "f", nil, nil)
	gDef := ast.NewFuncDef(3, 0, "g", []ast.Param{{Name: "x"}}, nil)
	hDef := ast.NewFuncDef(4, 0, "h", nil, nil)

	doStmt := ast.NewDo(5, 0)
	doStmt.Body = []ast.Node{callStmt(5, 2, "f")}
	doStmt.ErrorTypes = []ast.Node{ast.NewIdentifierRef(6, 10, "AnyError")}
	doStmt.RescueName = "e"
	doStmt.RescueBody = []ast.Node{callStmt(6, 2, "g", ast.NewIdentifierRef(6, 4, "e"))}
	doStmt.HasFinally = true
	doStmt.FinallyBody = []ast.Node{callStmt(7, 2, "h")}

	runner := ast.NewFuncDef(5, 0, "runner", nil, []ast.Node{doStmt})

	prog, _, diags := compile(t, []ast.Node{errClass, fDef, gDef, hDef, runner})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[runner.BytecodeFuncID]
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	assertOps(t, fu.Code, []Opcode{
		PUSH_RESCUE_FRAME,
		ADD_RESCUE_TYPE,
		GET_FUNC, CALL_SETTOP, CALL, // f()
		JUMP_TO_FINALLY,
		VALUECOPY, // bind caught error to e
		GET_FUNC, CALL_SETTOP, VALUECOPY, CALL, // g(e)
		JUMP_TO_FINALLY,
		GET_FUNC, CALL_SETTOP, CALL, // h()
		POP_RESCUE_FRAME,
		SET_CONST, RETURN_VALUE,
	})
}

// Seed scenario 4: f(1, named=2).
func TestSeedKeywordArgCall(t *testing.T) {
	fDef := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "x"}, {Name: "named"}}, nil)
	call := ast.NewCall(2, 0, ast.NewIdentifierRef(2, 0, "f"), []ast.Node{intLit(2, 2, 1)},
		[]ast.KwArg{{Name: "named", Value: intLit(2, 12, 2)}})
	stmt := ast.NewCallStmt(2, 0, call)

	prog, r, diags := compile(t, []ast.Node{fDef, stmt})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[r.GlobalInitFuncID]
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	assertOps(t, fu.Code, []Opcode{
		GET_FUNC,
		SET_CONST, SET_CONST, // evaluate positional arg 1, then keyword value 2
		CALL_SETTOP,
		VALUECOPY,           // positional arg pushed
		SET_CONST, VALUECOPY, // keyword name id, then keyword value
		CALL,
		SET_CONST, RETURN_VALUE,
	})
}

// Seed scenario 5: new E("msg").
func TestSeedNewExpression(t *testing.T) {
	classE := ast.NewClassDef(1, 0, "E", nil)
	newExpr := ast.NewUnaryOp(2, 0, ast.OpNew,
		ast.NewCall(2, 4, ast.NewIdentifierRef(2, 4, "E"), []ast.Node{strLit(2, 6, "msg")}, nil))
	varY := ast.NewVarDef(2, 0, "y", newExpr, false)

	prog, r, diags := compile(t, []ast.Node{classE, varY})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[r.GlobalInitFuncID]
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	assertOps(t, fu.Code, []Opcode{
		SET_CONST, // "msg"
		NEW_INSTANCE,
		GET_CONSTRUCTOR,
		CALL_SETTOP, VALUECOPY, CALL_IGNORE_IF_NONE,
		SET_GLOBAL,
		SET_CONST, RETURN_VALUE,
	})
}

// Seed scenario 6: a bare return; the finaliser must not append a
// second return after it.
func TestSeedBareReturn(t *testing.T) {
	fn := ast.NewFuncDef(1, 0, "f", nil, []ast.Node{ast.NewReturn(1, 2, nil)})
	prog, _, diags := compile(t, []ast.Node{fn})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[fn.BytecodeFuncID]
	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	assertOps(t, fu.Code, []Opcode{SET_CONST, RETURN_VALUE})
}

// Short-circuit ordering: `a and b` must not evaluate b's BINOP unless
// the regular path is taken; the fast path writes a constant instead.
func TestShortCircuitAndSkipsRHSOnFastPath(t *testing.T) {
	fn := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "a"}, {Name: "b"}}, []ast.Node{
		ast.NewReturn(1, 0, ast.NewBinaryOp(1, 0, ast.OpAnd,
			ast.NewIdentifierRef(1, 0, "a"), ast.NewIdentifierRef(1, 0, "b"))),
	})
	prog, _, diags := compile(t, []ast.Node{fn})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[fn.BytecodeFuncID]
	ops := decodeOps(t, fu.Code)
	// CONDJUMPEX branches to the "regular" path; only that path may
	// contain a BINOP combining both operands.
	foundCondJumpEx := false
	for _, op := range ops {
		if op == CONDJUMPEX {
			foundCondJumpEx = true
		}
	}
	if !foundCondJumpEx {
		t.Fatalf("expected a CONDJUMPEX for short-circuit and, got %v", ops)
	}
	// The fast path runs from the CONDJUMPEX to the JUMP that skips the
	// regular path; the combining BINOP must come after that JUMP.
	condIdx, jumpIdx, binopIdx := -1, -1, -1
	for i, op := range ops {
		switch {
		case op == CONDJUMPEX && condIdx < 0:
			condIdx = i
		case op == JUMP && condIdx >= 0 && jumpIdx < 0:
			jumpIdx = i
		case op == BINOP && binopIdx < 0:
			binopIdx = i
		}
	}
	if jumpIdx < 0 {
		t.Fatalf("expected a JUMP ending the short-circuit fast path, got %v", ops)
	}
	if binopIdx < jumpIdx {
		t.Fatalf("BINOP at op %d is missing or on the fast path (CONDJUMPEX at %d, JUMP at %d): %v", binopIdx, condIdx, jumpIdx, ops)
	}
}

// Keyword args sorted: after lowering, SET_CONST name-id operands for a
// call's keyword arguments appear in strictly ascending attribute-id order.
func TestKeywordArgsSortedAscending(t *testing.T) {
	fDef := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "zeta"}, {Name: "alpha"}, {Name: "mid"}}, nil)
	call := ast.NewCall(2, 0, ast.NewIdentifierRef(2, 0, "f"), nil, []ast.KwArg{
		{Name: "zeta", Value: intLit(2, 0, 1)},
		{Name: "alpha", Value: intLit(2, 0, 2)},
		{Name: "mid", Value: intLit(2, 0, 3)},
	})
	stmt := ast.NewCallStmt(2, 0, call)

	prog, r, diags := compile(t, []ast.Node{fDef, stmt})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[r.GlobalInitFuncID]

	zetaID, _ := prog.LookupAttrName("zeta")
	alphaID, _ := prog.LookupAttrName("alpha")
	midID, _ := prog.LookupAttrName("mid")
	ids := []int{zetaID, alphaID, midID}

	// Walk the raw code looking for SET_CONST instructions whose constant
	// is one of the three name ids, in emission order.
	var seenNameConstOrder []int
	offset := 0
	for offset < len(fu.Code) {
		op := Opcode(fu.Code[offset])
		def, err := Get(op)
		if err != nil {
			t.Fatalf("bad opcode: %v", err)
		}
		if op == SET_CONST {
			constID := ReadOperand(fu.Code, offset+1+def.OperandWidths[0], def.OperandWidths[1])
			if constID >= 0 && constID < len(prog.Constants) {
				if nameID, ok := prog.Constants[constID].(int); ok {
					for _, id := range ids {
						if id == nameID {
							seenNameConstOrder = append(seenNameConstOrder, nameID)
						}
					}
				}
			}
		}
		offset += instructionWidth(def)
	}
	if len(seenNameConstOrder) != 3 {
		t.Fatalf("expected 3 keyword name-id constants emitted, got %v", seenNameConstOrder)
	}
	for i := 1; i < len(seenNameConstOrder); i++ {
		if seenNameConstOrder[i-1] >= seenNameConstOrder[i] {
			t.Fatalf("keyword name ids not strictly ascending: %v", seenNameConstOrder)
		}
	}
}

// Attribute guards suppress warnings: has_attr(x, "name") must not warn
// even though "name" was never declared as a class attribute anywhere.
func TestHasAttrDoesNotWarnOnUnknownName(t *testing.T) {
	fn := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "x"}}, []ast.Node{
		ast.NewReturn(1, 0, ast.NewCall(1, 0, ast.NewIdentifierRef(1, 0, "has_attr"),
			[]ast.Node{ast.NewIdentifierRef(1, 0, "x"), strLit(1, 0, "ghost")}, nil)),
	})
	_, _, diags := compile(t, []ast.Node{fn})
	for _, d := range diags.Items {
		if d.Category == "unknown-attribute" {
			t.Fatalf("has_attr probe produced an unknown-attribute warning: %v", d)
		}
	}
}

// Unknown attribute access (outside a has_attr guard) does warn and
// lowers to a guard raise instead of GET_ATTRIBUTE_BY_NAME.
func TestUnknownAttributeWarnsAndGuards(t *testing.T) {
	fn := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "x"}}, []ast.Node{
		ast.NewReturn(1, 0, ast.NewAttrAccess(1, 0, ast.NewIdentifierRef(1, 0, "x"), "ghost")),
	})
	prog, _, diags := compile(t, []ast.Node{fn})
	sawWarning := false
	for _, d := range diags.Items {
		if d.Category == "unknown-attribute" {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Fatalf("expected an unknown-attribute warning")
	}
	fu := prog.Functions[fn.BytecodeFuncID]
	ops := decodeOps(t, fu.Code)
	for _, op := range ops {
		if op == GET_ATTRIBUTE_BY_NAME {
			t.Fatalf("unknown attribute access must not emit GET_ATTRIBUTE_BY_NAME, got %v", ops)
		}
	}
	sawRaise := false
	for _, op := range ops {
		if op == RAISE {
			sawRaise = true
		}
	}
	if !sawRaise {
		t.Fatalf("expected a guard RAISE in place of the unknown attribute access, got %v", ops)
	}
}

// Attribute guards suppress warnings for real: `x.name` nested inside
// `if has_attr(x, "name") { ... }` must not warn even though "name" is
// never declared as a class attribute anywhere, and must still emit a
// GET_ATTRIBUTE_BY_NAME rather than a guard raise.
func TestAttrAccessInsideHasAttrGuardDoesNotWarn(t *testing.T) {
	hasAttrProbe := ast.NewCall(1, 0, ast.NewIdentifierRef(1, 0, "has_attr"),
		[]ast.Node{ast.NewIdentifierRef(1, 0, "x"), strLit(1, 0, "ghost")}, nil)
	guarded := ast.NewIf(1, 0, []*ast.IfClause{
		{Cond: hasAttrProbe, Body: []ast.Node{
			ast.NewReturn(1, 0, ast.NewAttrAccess(1, 0, ast.NewIdentifierRef(1, 0, "x"), "ghost")),
		}},
	})
	fn := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "x"}}, []ast.Node{guarded})

	prog, _, diags := compile(t, []ast.Node{fn})
	for _, d := range diags.Items {
		if d.Category == "unknown-attribute" {
			t.Fatalf("guarded attribute access produced an unknown-attribute warning: %v", d)
		}
	}
	fu := prog.Functions[fn.BytecodeFuncID]
	ops := decodeOps(t, fu.Code)
	sawGet := false
	for _, op := range ops {
		if op == GET_ATTRIBUTE_BY_NAME {
			sawGet = true
		}
		if op == RAISE {
			t.Fatalf("guarded attribute access must not lower to a guard RAISE, got %v", ops)
		}
	}
	if !sawGet {
		t.Fatalf("expected the guarded access to emit GET_ATTRIBUTE_BY_NAME, got %v", ops)
	}
}

// An access to the same unknown name outside the guard's body (a
// sibling statement after the if, not nested inside it) must still
// warn: the guard only vouches for the block it actually encloses.
func TestAttrAccessAfterHasAttrGuardStillWarns(t *testing.T) {
	hasAttrProbe := ast.NewCall(1, 0, ast.NewIdentifierRef(1, 0, "has_attr"),
		[]ast.Node{ast.NewIdentifierRef(1, 0, "x"), strLit(1, 0, "ghost")}, nil)
	guarded := ast.NewIf(1, 0, []*ast.IfClause{
		{Cond: hasAttrProbe, Body: nil},
	})
	fn := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "x"}}, []ast.Node{
		guarded,
		ast.NewReturn(2, 0, ast.NewAttrAccess(2, 0, ast.NewIdentifierRef(2, 0, "x"), "ghost")),
	})

	_, _, diags := compile(t, []ast.Node{fn})
	sawWarning := false
	for _, d := range diags.Items {
		if d.Category == "unknown-attribute" {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Fatalf("expected an unknown-attribute warning for an access outside the guard's body")
	}
}

// Candidate #1 of §4.2's "is_primary" rule: a var-def's initialiser
// lowers its top-level result straight into the var's own stack slot
// when that slot is eligible, instead of computing into a fresh temp
// and VALUECOPY-ing it over. Checked on a function-local var (unlike
// TestSeedVarDefSum's global, whose GlobalVarSlot storage never offers
// a stack-slot candidate at all).
func TestVarDefReusesOwnSlotForBinOpResult(t *testing.T) {
	fn := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "a"}}, []ast.Node{
		ast.NewVarDef(2, 0, "x",
			ast.NewBinaryOp(2, 8, ast.OpAdd, ast.NewIdentifierRef(2, 8, "a"), intLit(2, 12, 1)), false),
		ast.NewReturn(3, 0, ast.NewIdentifierRef(3, 0, "x")),
	})
	prog, _, diags := compile(t, []ast.Node{fn})
	if diags.HadError {
		t.Fatalf("unexpected errors: %v", diags.Items)
	}
	fu := prog.Functions[fn.BytecodeFuncID]

	var xSlot = -1
	for _, stmt := range fn.Body {
		if vd, ok := stmt.(*ast.VarDef); ok && vd.Name == "x" {
			xSlot = vd.Storage.ID
		}
	}
	if xSlot < 0 {
		t.Fatalf("could not find x's resolved stack slot")
	}

	if err := Finalize(prog, fu); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	offset := 0
	foundDirectBinop := false
	for offset < len(fu.Code) {
		op := Opcode(fu.Code[offset])
		def, err := Get(op)
		if err != nil {
			t.Fatalf("bad opcode: %v", err)
		}
		if op == BINOP {
			dest := ReadOperand(fu.Code, offset+1+def.OperandWidths[0], def.OperandWidths[1])
			if dest == xSlot {
				foundDirectBinop = true
			}
		}
		offset += instructionWidth(def)
	}
	if !foundDirectBinop {
		t.Fatalf("expected the BINOP computing x's initialiser to write directly into x's own slot %d", xSlot)
	}
}
