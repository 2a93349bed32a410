package resolver

import (
	"testing"

	"vesper/ast"
)

func TestResolveFileAssignsGlobalVarSlot(t *testing.T) {
	v := ast.NewVarDef(1, 0, "x", ast.NewLiteral(1, 0, ast.ConstInt, int64(1)), false)
	r := New(nil)
	if err := r.ResolveFile([]ast.Node{v}); err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if v.Storage.Kind != ast.GlobalVarSlot || !v.Storage.Resolved {
		t.Errorf("VarDef.Storage = %+v, want resolved GlobalVarSlot", v.Storage)
	}
}

func TestResolveFileAssignsFunctionBytecodeID(t *testing.T) {
	fn := ast.NewFuncDef(1, 0, "f", nil, nil)
	r := New(nil)
	if err := r.ResolveFile([]ast.Node{fn}); err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if fn.BytecodeFuncID < 0 {
		t.Errorf("fn.BytecodeFuncID = %d, want >= 0", fn.BytecodeFuncID)
	}
	if fn.StorageInfo == nil {
		t.Fatalf("fn.StorageInfo = nil, want a populated side table")
	}
}

func TestResolveParamsGetStackSlots(t *testing.T) {
	body := ast.NewIdentifierRef(1, 0, "a")
	fn := ast.NewFuncDef(1, 0, "f", []ast.Param{{Name: "a"}, {Name: "b"}}, []ast.Node{ast.NewReturn(1, 0, body)})
	r := New(nil)
	if err := r.ResolveFile([]ast.Node{fn}); err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if body.Storage.Kind != ast.StackSlot {
		t.Errorf("param reference Storage.Kind = %v, want StackSlot", body.Storage.Kind)
	}
	if fn.StorageInfo.LowestGuaranteedFreeTemp != 2 {
		t.Errorf("LowestGuaranteedFreeTemp = %d, want 2 (two params)", fn.StorageInfo.LowestGuaranteedFreeTemp)
	}
}

func TestResolveClassAssignsClassIDAndVarAttrSlots(t *testing.T) {
	varAttr := ast.NewVarDef(1, 0, "count", nil, false)
	cls := ast.NewClassDef(1, 0, "Widget", nil)
	cls.VarAttrs = []*ast.VarDef{varAttr}

	r := New(nil)
	if err := r.ResolveFile([]ast.Node{cls}); err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if cls.ClassID < 0 {
		t.Errorf("cls.ClassID = %d, want >= 0", cls.ClassID)
	}
	if varAttr.Storage.Kind != ast.VarAttrSlot {
		t.Errorf("varAttr.Storage.Kind = %v, want VarAttrSlot", varAttr.Storage.Kind)
	}
}

func TestResolveClassWithInitialisedVarAttrGetsVarInitFuncID(t *testing.T) {
	varAttr := ast.NewVarDef(1, 0, "count", ast.NewLiteral(1, 0, ast.ConstInt, int64(0)), false)
	cls := ast.NewClassDef(1, 0, "Widget", nil)
	cls.VarAttrs = []*ast.VarDef{varAttr}

	r := New(nil)
	_ = r.ResolveFile([]ast.Node{cls})

	if cls.VarInitFuncID < 0 {
		t.Errorf("cls.VarInitFuncID = %d, want a real function id once a var attr has an initialiser", cls.VarInitFuncID)
	}
}

func TestResolveForDeclaresLoopVar(t *testing.T) {
	loopVarRef := ast.NewIdentifierRef(1, 0, "item")
	forNode := ast.NewFor(1, 0, "item", ast.NewIdentifierRef(1, 0, "items"),
		[]ast.Node{ast.NewCallStmt(1, 0, ast.NewCall(1, 0, loopVarRef, nil, nil))})

	r := New(nil)
	if err := r.ResolveFile([]ast.Node{forNode}); err != nil {
		t.Fatalf("ResolveFile() error = %v", err)
	}
	if loopVarRef.Storage.Kind != ast.StackSlot {
		t.Errorf("loop var reference Storage.Kind = %v, want StackSlot", loopVarRef.Storage.Kind)
	}
}

func TestSharedGlobalsAcrossTwoFiles(t *testing.T) {
	globals := NewGlobals()
	fileOne := New(globals)
	fn := ast.NewFuncDef(1, 0, "shared", nil, nil)
	_ = fileOne.ResolveFile([]ast.Node{fn})

	fileTwo := New(globals)
	ref := ast.NewIdentifierRef(2, 0, "shared")
	_ = fileTwo.ResolveFile([]ast.Node{ast.NewCallStmt(2, 0, ast.NewCall(2, 0, ref, nil, nil))})

	if ref.Storage.Kind != ast.GlobalFuncSlot || ref.Storage.ID != fn.BytecodeFuncID {
		t.Errorf("cross-file ref.Storage = %+v, want GlobalFuncSlot id %d", ref.Storage, fn.BytecodeFuncID)
	}
}
