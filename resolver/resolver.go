// Package resolver annotates a parsed tree with storage references,
// assigns bytecode class/function ids, and builds each function's
// storage-info side table — the external collaborator that hands
// codegen a fully resolved tree, per spec §6 "Input tree (from the
// resolver)".
package resolver

import (
	"fmt"

	"vesper/ast"
)

// Diagnostic mirrors codegen.Diagnostic's shape (severity/message/line/
// column) without importing codegen, since the resolver runs first.
type Diagnostic struct {
	Severity string // "error" or "warning"
	Message  string
	Line     int32
	Column   int
}

// scope is one level of a function's lexical nesting. slots are
// assigned sequentially starting at the scope's base, mirroring the
// teacher's declareLocal/resolveLocal bookkeeping in
// compiler/ast_compiler.go generalized from "always inline in one
// compiler pass" to "a separate annotation pass".
type scope struct {
	parent *scope
	names  map[string]int
	next   int
}

func newScope(parent *scope, base int) *scope {
	return &scope{parent: parent, names: make(map[string]int), next: base}
}

func (s *scope) declare(name string) int {
	slot := s.next
	s.names[name] = slot
	s.next++
	return slot
}

func (s *scope) resolve(name string) (int, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if slot, ok := cur.names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// Globals is the cross-function symbol table: every top-level var,
// function and class name maps to a bytecode id, assigned once and
// shared by every file resolved with the same Globals (see New).
type Globals struct {
	Vars    map[string]int
	Funcs   map[string]int
	Classes map[string]int
	nextVar, nextFunc, nextClass int
}

func NewGlobals() *Globals {
	return &Globals{
		Vars:    make(map[string]int),
		Funcs:   make(map[string]int),
		Classes: make(map[string]int),
	}
}

func (g *Globals) internVar(name string) int {
	if id, ok := g.Vars[name]; ok {
		return id
	}
	id := g.nextVar
	g.nextVar++
	g.Vars[name] = id
	return id
}

func (g *Globals) internFunc(name string) int {
	if id, ok := g.Funcs[name]; ok {
		return id
	}
	id := g.NewFuncID()
	g.Funcs[name] = id
	return id
}

// NewFuncID allocates a bytecode function id from the one counter
// shared by every named function, method, inline function, and fake
// init function (global-init, per-class var-init) — codegen.Program
// registers fake init functions under ids taken from here, so its own
// function-id space never collides with the resolver's.
func (g *Globals) NewFuncID() int {
	id := g.nextFunc
	g.nextFunc++
	return id
}

// ClassCount returns the number of distinct classes interned so far,
// i.e. the next class id that would be assigned. cmd/vesperc uses this
// as the base codegen.Program.SetBuiltinClassBase reserves built-in
// error-class ids from, once every file's classes have been resolved.
func (g *Globals) ClassCount() int {
	return g.nextClass
}

func (g *Globals) internClass(name string) int {
	if id, ok := g.Classes[name]; ok {
		return id
	}
	id := g.nextClass
	g.nextClass++
	g.Classes[name] = id
	return id
}

// Resolver walks a tree once, in source order, to annotate storage and
// assign bytecode ids. It does not itself build bytecode.
type Resolver struct {
	Globals     *Globals
	Diagnostics []Diagnostic
	cur         *scope

	// GlobalInitFuncID is this file's fake global-init function id,
	// reserved by ResolveFile regardless of whether the file has any
	// top-level statement that needs one (§4.4 "Fake init functions").
	GlobalInitFuncID int
}

func New(globals *Globals) *Resolver {
	if globals == nil {
		globals = NewGlobals()
	}
	return &Resolver{Globals: globals}
}

func (r *Resolver) errorf(n ast.Node, format string, args ...any) {
	line, col := n.Pos()
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Severity: "error", Message: fmt.Sprintf(format, args...), Line: line, Column: col,
	})
}

func (r *Resolver) warnf(n ast.Node, format string, args ...any) {
	line, col := n.Pos()
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Severity: "warning", Message: fmt.Sprintf(format, args...), Line: line, Column: col,
	})
}

// ResolveFile annotates every top-level statement's tree, in place.
// Top-level VarDefs become globals; FuncDef/ClassDef get bytecode ids
// and their StorageInfo side tables built.
func (r *Resolver) ResolveFile(stmts []ast.Node) error {
	r.cur = nil
	r.GlobalInitFuncID = r.Globals.NewFuncID()
	for _, stmt := range stmts {
		r.resolveTopLevel(stmt)
	}
	return nil
}

func (r *Resolver) resolveTopLevel(n ast.Node) {
	switch v := n.(type) {
	case *ast.VarDef:
		id := r.Globals.internVar(v.Name)
		v.Storage = ast.StorageRef{Resolved: true, Kind: ast.GlobalVarSlot, ID: id, EvalTempID: -1}
		if v.Init != nil {
			r.resolveExpr(v.Init)
		}
	case *ast.FuncDef:
		r.resolveFuncDef(v, false)
	case *ast.ClassDef:
		r.resolveClassDef(v)
	default:
		r.resolveStmt(n)
	}
}

func (r *Resolver) resolveFuncDef(fn *ast.FuncDef, isMethod bool) {
	if fn.Name != "" {
		fn.BytecodeFuncID = r.Globals.internFunc(fn.Name)
	} else {
		fn.BytecodeFuncID = r.Globals.NewFuncID()
	}

	base := 0
	if isMethod {
		base = 1 // slot 0 reserved for self
	}

	funcScope := newScope(r.cur, base)
	for i := range fn.Params {
		fn.Params[i].Slot = funcScope.declare(fn.Params[i].Name)
	}

	savedScope := r.cur
	r.cur = funcScope
	for _, p := range fn.Params {
		if p.Default != nil {
			r.resolveExpr(p.Default)
		}
	}
	for _, stmt := range fn.Body {
		r.resolveStmt(stmt)
	}
	r.cur = savedScope

	fn.StorageInfo = &ast.FuncStorageInfo{
		LowestGuaranteedFreeTemp: funcScope.next,
		ClosureWithSelf:          isMethod,
		ArgCount:                 len(fn.Params),
	}
}

func (r *Resolver) resolveClassDef(cls *ast.ClassDef) {
	cls.ClassID = r.Globals.internClass(cls.Name)
	if cls.BaseClass != nil {
		r.resolveExpr(cls.BaseClass)
	}
	hasVarInit := false
	for i, va := range cls.VarAttrs {
		if va.Init != nil {
			hasVarInit = true
			r.resolveExpr(va.Init)
		}
		va.Storage = ast.StorageRef{Resolved: true, Kind: ast.VarAttrSlot, ID: i, EvalTempID: -1}
	}
	if hasVarInit {
		cls.VarInitFuncID = r.Globals.NewFuncID()
	}
	for _, method := range cls.FuncAttrs {
		r.resolveFuncDef(method, true)
	}
}

func (r *Resolver) resolveStmt(n ast.Node) {
	switch v := n.(type) {
	case *ast.VarDef:
		if v.Init != nil {
			r.resolveExpr(v.Init)
		}
		if r.cur != nil {
			slot := r.cur.declare(v.Name)
			v.Storage = ast.StorageRef{Resolved: true, Kind: ast.StackSlot, ID: slot, EvalTempID: -1}
		} else {
			id := r.Globals.internVar(v.Name)
			v.Storage = ast.StorageRef{Resolved: true, Kind: ast.GlobalVarSlot, ID: id, EvalTempID: -1}
		}
	case *ast.Assign:
		r.resolveExpr(v.Target)
		r.resolveExpr(v.Value)
	case *ast.FuncDef:
		r.resolveFuncDef(v, false)
	case *ast.ClassDef:
		r.resolveClassDef(v)
	case *ast.If:
		for _, clause := range v.Clauses {
			if clause.Cond != nil {
				r.resolveExpr(clause.Cond)
			}
			r.withScope(func() {
				for _, s := range clause.Body {
					r.resolveStmt(s)
				}
			})
		}
	case *ast.While:
		r.resolveExpr(v.Cond)
		r.withScope(func() {
			for _, s := range v.Body {
				r.resolveStmt(s)
			}
		})
	case *ast.For:
		r.resolveExpr(v.Container)
		r.withScope(func() {
			v.LoopVarSlot = r.cur.declare(v.LoopVar)
			for _, s := range v.Body {
				r.resolveStmt(s)
			}
		})
	case *ast.Do:
		r.withScope(func() {
			for _, s := range v.Body {
				r.resolveStmt(s)
			}
		})
		for _, et := range v.ErrorTypes {
			r.resolveExpr(et)
		}
		r.withScope(func() {
			if v.RescueName != "" {
				v.RescueNameSlot = r.cur.declare(v.RescueName)
			}
			for _, s := range v.RescueBody {
				r.resolveStmt(s)
			}
		})
		if v.HasFinally {
			r.withScope(func() {
				for _, s := range v.FinallyBody {
					r.resolveStmt(s)
				}
			})
		}
	case *ast.With:
		r.withScope(func() {
			for _, c := range v.Clauses {
				r.resolveExpr(c.Resource)
				slot := r.cur.declare(c.Name)
				c.Storage = ast.StorageRef{Resolved: true, Kind: ast.StackSlot, ID: slot, EvalTempID: -1}
			}
			for _, s := range v.Body {
				r.resolveStmt(s)
			}
		})
	case *ast.Raise:
		r.resolveExpr(v.Expr)
	case *ast.Return:
		if v.Value != nil {
			r.resolveExpr(v.Value)
		}
	case *ast.Break, *ast.Continue:
		// no payload to resolve
	case *ast.Await:
		r.resolveExpr(v.Expr)
	case *ast.Import:
		// resolved by vfs/import handling, not storage
	case *ast.CallStmt:
		r.resolveExpr(v.Call)
	default:
		r.resolveExpr(n)
	}
}

func (r *Resolver) withScope(body func()) {
	base := 0
	if r.cur != nil {
		base = r.cur.next
	}
	saved := r.cur
	inner := newScope(saved, base)
	r.cur = inner
	body()
	r.cur = saved
	// Slots claimed inside the block stay claimed in the enclosing
	// scope, so a function's floor ends up above its block locals too.
	if saved != nil && inner.next > saved.next {
		saved.next = inner.next
	}
}

func (r *Resolver) resolveExpr(n ast.Node) {
	switch v := n.(type) {
	case *ast.IdentifierRef:
		if r.cur != nil {
			if slot, ok := r.cur.resolve(v.Name); ok {
				v.Storage = ast.StorageRef{Resolved: true, Kind: ast.StackSlot, ID: slot, EvalTempID: -1}
				return
			}
		}
		if id, ok := r.Globals.Funcs[v.Name]; ok {
			v.Storage = ast.StorageRef{Resolved: true, Kind: ast.GlobalFuncSlot, ID: id, EvalTempID: -1}
			return
		}
		if id, ok := r.Globals.Classes[v.Name]; ok {
			v.Storage = ast.StorageRef{Resolved: true, Kind: ast.GlobalClassSlot, ID: id, EvalTempID: -1}
			return
		}
		id := r.Globals.internVar(v.Name)
		v.Storage = ast.StorageRef{Resolved: true, Kind: ast.GlobalVarSlot, ID: id, EvalTempID: -1}
	case *ast.Literal:
		v.Known = ast.KnownValue{Known: true, Kind: v.ValueKind, Value: v.Value}
	case *ast.BinaryOp:
		r.resolveExpr(v.Left)
		if v.Op != ast.OpAttr {
			r.resolveExpr(v.Right)
		}
	case *ast.UnaryOp:
		r.resolveExpr(v.Operand)
	case *ast.Call:
		r.resolveExpr(v.Callee)
		for _, a := range v.PosArgs {
			r.resolveExpr(a)
		}
		for _, kw := range v.KwArgs {
			r.resolveExpr(kw.Value)
		}
	case *ast.List:
		for _, e := range v.Elems {
			r.resolveExpr(e)
		}
	case *ast.Set:
		for _, e := range v.Elems {
			r.resolveExpr(e)
		}
	case *ast.Vector:
		for _, e := range v.Elems {
			r.resolveExpr(e)
		}
	case *ast.Map:
		for _, e := range v.Entries {
			r.resolveExpr(e.Key)
			r.resolveExpr(e.Value)
		}
	case *ast.Given:
		r.resolveExpr(v.Cond)
		r.resolveExpr(v.Yes)
		r.resolveExpr(v.No)
	case *ast.FuncDef:
		r.resolveFuncDef(v, false)
	case nil:
	default:
		r.errorf(n, "resolver: unhandled expression kind %v", n.Kind())
	}
}
