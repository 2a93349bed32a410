package vm

import (
	"vesper/ast"
	"vesper/codegen"
)

// LinkResult is the VM-side shape table codegen.Program doesn't keep:
// class layouts and per-function parameter-slot maps, both needed only
// at call time (attribute lookup, keyword-argument binding) and never
// by the lowerer itself.
type LinkResult struct {
	Classes map[int]*ClassMeta
	Funcs   map[int]*FuncMeta
}

// classRaw holds a ClassMeta still being built, before inherited
// methods and the Base pointer are resolved (a class may reference a
// base declared later in the same file, or in a different file of the
// same project).
type classRaw struct {
	meta    *ClassMeta
	baseID  int
	hasBase bool
}

type linkState struct {
	prog    *codegen.Program
	classes map[int]*classRaw
	funcs   map[int]*FuncMeta
}

// Link builds a LinkResult by walking every file's resolved top-level
// statements, the same tree codegen.LowerFile consumed. It must run
// after resolution (so ClassDef.ClassID/FuncDef.BytecodeFuncID/
// Param.Slot are all populated) and can run either before or after
// lowering, since it never reads bytecode.
func Link(prog *codegen.Program, files [][]ast.Node) *LinkResult {
	st := &linkState{
		prog:    prog,
		classes: make(map[int]*classRaw),
		funcs:   make(map[int]*FuncMeta),
	}
	for _, stmts := range files {
		for _, stmt := range stmts {
			_ = ast.Walk(stmt, st.pre, nil, nil, struct{}{})
		}
	}
	return st.finish()
}

func (st *linkState) pre(n ast.Node, parent ast.Node, _ struct{}) error {
	switch v := n.(type) {
	case *ast.ClassDef:
		st.addClass(v)
	case *ast.FuncDef:
		st.addFunc(v, parent)
	}
	return nil
}

func (st *linkState) addClass(cd *ast.ClassDef) {
	meta := &ClassMeta{
		ID:            cd.ClassID,
		Name:          cd.Name,
		Methods:       make(map[string]int),
		VarInitFuncID: cd.VarInitFuncID,
	}
	for _, fa := range cd.FuncAttrs {
		meta.Methods[fa.Name] = fa.BytecodeFuncID
	}
	raw := &classRaw{meta: meta}
	if ref, ok := cd.BaseClass.(*ast.IdentifierRef); ok {
		storage := ref.GetStorage()
		if storage.Kind == ast.GlobalClassSlot {
			raw.baseID = storage.ID
			raw.hasBase = true
		}
	}
	st.classes[cd.ClassID] = raw

	if cd.VarInitFuncID >= 0 {
		names := make([]string, len(cd.VarAttrs))
		for i, va := range cd.VarAttrs {
			names[i] = va.Name
		}
		st.funcs[cd.VarInitFuncID] = &FuncMeta{
			FuncID:           cd.VarInitFuncID,
			ParamSlots:       map[string]int{},
			HasSelf:          true,
			VarInitAttrNames: names,
		}
	}
}

func (st *linkState) addFunc(fd *ast.FuncDef, parent ast.Node) {
	meta := &FuncMeta{
		FuncID:     fd.BytecodeFuncID,
		ParamSlots: make(map[string]int, len(fd.Params)),
		ParamCount: len(fd.Params),
	}
	if parent != nil && parent.Kind() == ast.KClassDef {
		meta.HasSelf = true
	}
	for _, p := range fd.Params {
		meta.ParamSlots[p.Name] = p.Slot
	}
	st.funcs[fd.BytecodeFuncID] = meta
}

// finish resolves each class's Base pointer and folds in inherited
// methods (a subclass method of the same name shadows its parent's),
// then drops the scaffolding classRaw wrapper.
func (st *linkState) finish() *LinkResult {
	result := &LinkResult{
		Classes: make(map[int]*ClassMeta, len(st.classes)),
		Funcs:   st.funcs,
	}
	for id, raw := range st.classes {
		result.Classes[id] = raw.meta
	}
	for _, raw := range st.classes {
		if !raw.hasBase {
			continue
		}
		baseRaw, ok := st.classes[raw.baseID]
		if !ok {
			continue
		}
		raw.meta.Base = baseRaw.meta
	}
	for _, raw := range st.classes {
		inherited := map[string]int{}
		for base := raw.meta.Base; base != nil; base = base.Base {
			for name, id := range base.Methods {
				if _, shadowed := inherited[name]; !shadowed {
					inherited[name] = id
				}
			}
		}
		for name, id := range inherited {
			if _, own := raw.meta.Methods[name]; !own {
				raw.meta.Methods[name] = id
			}
		}
	}
	return result
}
