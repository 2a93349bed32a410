package codegen

import (
	"sort"

	"vesper/ast"
)

// Call-flags byte (CALL/CALL_IGNORE_IF_NONE's final operand), per §4.4
// "Calls": the last positional argument expands (`f(*args)`), or the
// call is an awaited call (ASYNC).
const (
	FlagUnpackLastPosArg = 1 << 0
	FlagAsync            = 1 << 1
)

// Unspecified is the sentinel value a parameter slot holds when the
// caller omitted it, per §4.4 "Function definition": every default
// expression is guarded by a comparison against this value rather than
// evaluated unconditionally.
type Unspecified struct{}

// Lowerer is the Expression Lowerer of §4.4: it walks a resolved tree
// and emits bytecode into the current FuncUnit, switching fu whenever
// it descends into a FuncDef or a class's var-init function.
type Lowerer struct {
	Prog  *Program
	Diags *Diagnostics
	URI   string

	fu *FuncUnit

	// attrGuards is a stack of "known-safe (object, attribute)" sets,
	// one pushed per `if` clause whose condition is (or and-combines)
	// a `has_attr(obj, "name")` probe — see §8 "Attribute guards
	// suppress warnings". lowerAttrAccess/lowerAssignAttr consult it
	// before warning on a name absent from Prog's attribute table.
	attrGuards []map[string]bool
}

func NewLowerer(prog *Program, diags *Diagnostics, uri string) *Lowerer {
	return &Lowerer{Prog: prog, Diags: diags, URI: uri}
}

func (lw *Lowerer) errorf(n ast.Node, category, format string, args ...any) {
	line, col := n.Pos()
	lw.Diags.Errorf(lw.URI, line, col, category, format, args...)
}

func (lw *Lowerer) warnf(n ast.Node, category, format string, args ...any) {
	line, col := n.Pos()
	lw.Diags.Warnf(lw.URI, line, col, category, format, args...)
}

// LowerFile lowers every top-level statement into the program's fake
// global-init function, switching into per-function FuncUnits for
// FuncDef/ClassDef bodies along the way (§4.4 "Fake init functions").
func (lw *Lowerer) LowerFile(globalInitFuncID int, stmts []ast.Node) {
	lw.internTopLevelNames(stmts)
	lw.fu = lw.Prog.GlobalInit(globalInitFuncID)
	for _, s := range stmts {
		lw.lowerTopLevelStmt(s)
		lw.fu.FreeSingleLine()
	}
}

// internTopLevelNames pre-registers every top-level function's
// parameter names and every class's attribute names in the program's
// attribute-name index before any lowering happens. A keyword argument
// addresses a parameter by name using that same index (this language
// has no separate parameter-name namespace), so without this pass a
// call to a function declared later in the file would see its keyword
// arguments as "unknown" purely due to source order.
func (lw *Lowerer) internTopLevelNames(stmts []ast.Node) {
	for _, s := range stmts {
		switch v := s.(type) {
		case *ast.FuncDef:
			for _, p := range v.Params {
				lw.Prog.InternAttrName(p.Name)
			}
		case *ast.ClassDef:
			for _, va := range v.VarAttrs {
				lw.Prog.InternAttrName(va.Name)
			}
			for _, fn := range v.FuncAttrs {
				lw.Prog.InternAttrName(fn.Name)
				for _, p := range fn.Params {
					lw.Prog.InternAttrName(p.Name)
				}
			}
		}
	}
}

func (lw *Lowerer) lowerTopLevelStmt(n ast.Node) {
	switch v := n.(type) {
	case *ast.FuncDef:
		lw.lowerFuncDef(v)
	case *ast.ClassDef:
		lw.lowerClassDef(v)
	default:
		lw.lowerStmt(n)
	}
}

func (lw *Lowerer) lowerStmtListBody(stmts []ast.Node) {
	for _, s := range stmts {
		lw.lowerStmt(s)
		lw.fu.FreeSingleLine()
	}
}

// ---- statements ----

func (lw *Lowerer) lowerStmt(n ast.Node) {
	switch v := n.(type) {
	case *ast.VarDef:
		lw.lowerVarDef(v)
	case *ast.Assign:
		lw.lowerAssign(v)
	case *ast.FuncDef:
		lw.lowerFuncDef(v)
	case *ast.ClassDef:
		lw.lowerClassDef(v)
	case *ast.If:
		lw.lowerIf(v)
	case *ast.While:
		lw.lowerWhile(v)
	case *ast.For:
		lw.lowerFor(v)
	case *ast.Do:
		lw.lowerDo(v)
	case *ast.With:
		lw.lowerWith(v)
	case *ast.Raise:
		lw.lowerRaise(v)
	case *ast.Return:
		lw.lowerReturn(v)
	case *ast.Break:
		lw.lowerBreak(v)
	case *ast.Continue:
		lw.lowerContinue(v)
	case *ast.Await:
		slot := lw.lowerExpr(v.Expr)
		lw.fu.emit(AWAIT_ITEM, slot)
	case *ast.Import:
		// Lowered by the vfs/import external collaborator, not codegen.
	case *ast.CallStmt:
		lw.lowerCall(v.Call, false)
	default:
		lw.errorf(n, "lowerer", "unhandled statement kind %v", n.Kind())
	}
}

func (lw *Lowerer) lowerVarDef(v *ast.VarDef) {
	if v.Init == nil {
		return
	}
	target := noTargetHint
	if v.Storage.Kind == ast.StackSlot {
		target = v.Storage.ID
	}
	valSlot := lw.lowerExprInto(v.Init, target)
	switch v.Storage.Kind {
	case ast.StackSlot:
		lw.fu.emit(VALUECOPY, v.Storage.ID, valSlot)
	case ast.GlobalVarSlot:
		lw.fu.emit(SET_GLOBAL, v.Storage.ID, valSlot)
	default:
		lw.errorf(v, "lowerer", "var %q has unresolved storage", v.Name)
	}
}

func (lw *Lowerer) lowerAssign(n *ast.Assign) {
	switch target := n.Target.(type) {
	case *ast.IdentifierRef:
		lw.lowerAssignDirect(n, target)
	case *ast.BinaryOp:
		switch target.Op {
		case ast.OpAttr:
			lw.lowerAssignAttr(n, target)
		case ast.OpIndex:
			lw.lowerAssignIndex(n, target)
		default:
			lw.errorf(n, "semantic", "invalid assignment target")
		}
	default:
		lw.errorf(n, "semantic", "invalid assignment target")
	}
}

func (lw *Lowerer) lowerAssignDirect(n *ast.Assign, target *ast.IdentifierRef) {
	if target.Storage.Kind == ast.GlobalFuncSlot || target.Storage.Kind == ast.GlobalClassSlot {
		lw.errorf(n, "semantic", "cannot assign to function or class %q", target.Name)
		return
	}
	targetHint := noTargetHint
	if target.Storage.Kind == ast.StackSlot {
		targetHint = target.Storage.ID
	}
	valueSlot := lw.lowerAssignValue(n, targetHint, func() int { return lw.loadIdentifierCurrent(target) })
	switch target.Storage.Kind {
	case ast.StackSlot:
		lw.fu.emit(VALUECOPY, target.Storage.ID, valueSlot)
	case ast.GlobalVarSlot:
		lw.fu.emit(SET_GLOBAL, target.Storage.ID, valueSlot)
	default:
		lw.errorf(n, "lowerer", "assignment target %q has unresolved storage", target.Name)
	}
}

func (lw *Lowerer) loadIdentifierCurrent(target *ast.IdentifierRef) int {
	switch target.Storage.Kind {
	case ast.StackSlot:
		return target.Storage.ID
	case ast.GlobalVarSlot:
		slot := lw.fu.NewSingleLine()
		lw.fu.emit(GET_GLOBAL, slot, target.Storage.ID)
		return slot
	default:
		return lw.fu.NewSingleLine()
	}
}

// lowerAssignValue implements the compound-vs-plain half of §4.4's
// "Assignment" rule shared by all three lvalue forms: loadCurrent is
// called only for compound forms, after the new value has NOT yet been
// evaluated (current-value-first, matching left-to-right evaluation).
// target, when not noTargetHint, is the assignment's own lvalue slot —
// offered as reuse candidate #1 ahead of curSlot (candidate #2) for the
// compound form, and threaded straight into the RHS for the plain form.
func (lw *Lowerer) lowerAssignValue(n *ast.Assign, target int, loadCurrent func() int) int {
	if n.Op == ast.AssignPlain {
		return lw.lowerExprInto(n.Value, target)
	}
	curSlot := loadCurrent()
	rhs := lw.lowerExpr(n.Value)
	dest := lw.newSingleLineFor(target, curSlot)
	lw.fu.emit(BINOP, int(ast.BinOpForAssign(n.Op)), dest, curSlot, rhs)
	return dest
}

func (lw *Lowerer) lowerAssignAttr(n *ast.Assign, target *ast.BinaryOp) {
	objSlot := lw.lowerExpr(target.Left)
	nameID, ok := lw.Prog.LookupAttrName(target.AttrName)
	if !ok {
		if lw.attrIsGuarded(target.Left, target.AttrName) {
			nameID = lw.Prog.InternAttrName(target.AttrName)
		} else {
			lw.warnf(n, "unknown-attribute", "assignment to unknown attribute %q", target.AttrName)
			lw.emitGuardRaise(n, "AttributeError", "no such attribute: "+target.AttrName)
			return
		}
	}
	valueSlot := lw.lowerAssignValue(n, noTargetHint, func() int {
		slot := lw.fu.NewSingleLine()
		lw.fu.emit(GET_ATTRIBUTE_BY_NAME, slot, objSlot, nameID)
		return slot
	})
	lw.fu.emit(SET_BY_ATTRIBUTE_NAME, objSlot, nameID, valueSlot)
}

func (lw *Lowerer) lowerAssignIndex(n *ast.Assign, target *ast.BinaryOp) {
	objSlot := lw.lowerExpr(target.Left)
	idxSlot := lw.lowerExpr(target.Right)
	valueSlot := lw.lowerAssignValue(n, noTargetHint, func() int {
		slot := lw.fu.NewSingleLine()
		lw.fu.emit(BINOP, int(ast.OpIndex), slot, objSlot, idxSlot)
		return slot
	})
	lw.fu.emit(SET_BY_INDEX_EXPR, objSlot, idxSlot, valueSlot)
}

// emitGuardRaise emits the literal-message RAISE a failed compile-time
// attribute/kwarg guard produces instead of the store/call it replaces.
func (lw *Lowerer) emitGuardRaise(n ast.Node, className, message string) {
	msgSlot := lw.fu.NewSingleLine()
	lw.fu.emit(SET_CONST, msgSlot, lw.Prog.InternConstant(message))
	lw.fu.emit(RAISE, lw.Prog.BuiltinClassID(className), msgSlot)
}

func (lw *Lowerer) lowerReturn(n *ast.Return) {
	var slot int
	if n.Value == nil {
		slot = lw.fu.NewSingleLine()
		lw.fu.emit(SET_CONST, slot, lw.Prog.InternConstant(nil))
	} else {
		slot = lw.lowerExpr(n.Value)
	}
	lw.fu.emit(RETURN_VALUE, slot)
}

func (lw *Lowerer) lowerRaise(n *ast.Raise) {
	unary, ok := n.Expr.(*ast.UnaryOp)
	if !ok || unary.Op != ast.OpNew {
		lw.errorf(n, "semantic", "raise requires a 'new ErrorClass(...)' expression")
		return
	}
	call, ok := unary.Operand.(*ast.Call)
	if !ok {
		lw.errorf(n, "semantic", "raise requires a 'new ErrorClass(...)' expression")
		return
	}
	var msgSlot int
	if len(call.PosArgs) > 0 {
		msgSlot = lw.lowerExpr(call.PosArgs[0])
	} else {
		msgSlot = lw.fu.NewSingleLine()
		lw.fu.emit(SET_CONST, msgSlot, lw.Prog.InternConstant(""))
	}
	if callee, ok := call.Callee.(*ast.IdentifierRef); ok && callee.Storage.Kind == ast.GlobalClassSlot {
		lw.fu.emit(RAISE, callee.Storage.ID, msgSlot)
		return
	}
	classSlot := lw.lowerExpr(call.Callee)
	lw.fu.emit(RAISE_BY_REF, classSlot, msgSlot)
}

func (lw *Lowerer) lowerBreak(n *ast.Break) {
	loop, ok := lw.fu.CurrentLoop()
	if !ok {
		lw.errorf(n, "semantic", "break outside of a loop")
		return
	}
	lw.fu.emit(JUMP, loop.end)
}

func (lw *Lowerer) lowerContinue(n *ast.Continue) {
	loop, ok := lw.fu.CurrentLoop()
	if !ok {
		lw.errorf(n, "semantic", "continue outside of a loop")
		return
	}
	lw.fu.emit(JUMP, loop.start)
}

func (lw *Lowerer) lowerIf(n *ast.If) {
	end := lw.fu.NewLabel()
	for i, clause := range n.Clauses {
		isLast := i == len(n.Clauses)-1
		nextLabel := end
		if !isLast {
			nextLabel = lw.fu.NewLabel()
		}
		if clause.Cond != nil {
			condSlot := lw.lowerExpr(clause.Cond)
			lw.fu.emit(CONDJUMP, condSlot, nextLabel)
		}
		lw.pushAttrGuards(clause.Cond)
		lw.lowerStmtListBody(clause.Body)
		lw.popAttrGuards()
		if !isLast {
			lw.fu.emit(JUMP, end)
			lw.fu.EmitLabel(nextLabel)
		}
	}
	lw.fu.EmitLabel(end)
}

// attrGuardKey names one (object, attribute) pair a has_attr probe has
// vouched for, keyed by the object's identifier name since that is the
// only stable per-object identity available without a temp-slot-based
// alias analysis.
func attrGuardKey(objName, attrName string) string {
	return objName + "\x00" + attrName
}

// collectAttrGuards walks cond looking for `has_attr(obj, "name")`
// probes, recursing into `and` so `if has_attr(x, "n") and x.n > 0`
// still guards the right-hand reference. `or` does not guard (either
// side may run without the probe having been true) and is not
// descended into.
func collectAttrGuards(cond ast.Node, into map[string]bool) {
	switch v := cond.(type) {
	case *ast.BinaryOp:
		if v.Op == ast.OpAnd {
			collectAttrGuards(v.Left, into)
			collectAttrGuards(v.Right, into)
		}
	case *ast.Call:
		callee, ok := v.Callee.(*ast.IdentifierRef)
		if !ok || callee.Name != "has_attr" || len(v.PosArgs) != 2 {
			return
		}
		obj, ok := v.PosArgs[0].(*ast.IdentifierRef)
		if !ok {
			return
		}
		lit, ok := v.PosArgs[1].(*ast.Literal)
		if !ok || lit.ValueKind != ast.ConstString {
			return
		}
		name, _ := lit.Value.(string)
		into[attrGuardKey(obj.Name, name)] = true
	}
}

// pushAttrGuards enters a guarded block, always pushing a (possibly
// empty) set so popAttrGuards stays balanced with lowerIf's clause
// loop regardless of whether cond carried any has_attr probe.
func (lw *Lowerer) pushAttrGuards(cond ast.Node) {
	guards := make(map[string]bool)
	if cond != nil {
		collectAttrGuards(cond, guards)
	}
	lw.attrGuards = append(lw.attrGuards, guards)
}

func (lw *Lowerer) popAttrGuards() {
	lw.attrGuards = lw.attrGuards[:len(lw.attrGuards)-1]
}

// attrIsGuarded reports whether some enclosing has_attr probe already
// vouches for obj.attrName, per §8 "Attribute guards suppress warnings".
func (lw *Lowerer) attrIsGuarded(objExpr ast.Node, attrName string) bool {
	obj, ok := objExpr.(*ast.IdentifierRef)
	if !ok {
		return false
	}
	key := attrGuardKey(obj.Name, attrName)
	for _, guards := range lw.attrGuards {
		if guards[key] {
			return true
		}
	}
	return false
}

func (lw *Lowerer) lowerWhile(n *ast.While) {
	start := lw.fu.NewLabel()
	end := lw.fu.NewLabel()
	lw.fu.PushLoop(start, end)
	lw.fu.EmitLabel(start)
	condSlot := lw.lowerExpr(n.Cond)
	lw.fu.emit(CONDJUMP, condSlot, end)
	lw.lowerStmtListBody(n.Body)
	lw.fu.emit(JUMP, start)
	lw.fu.EmitLabel(end)
	lw.fu.PopLoop()
}

func (lw *Lowerer) lowerFor(n *ast.For) {
	start := lw.fu.NewLabel()
	end := lw.fu.NewLabel()
	iter := lw.fu.NewMultiLine()
	containerSlot := lw.lowerExpr(n.Container)
	lw.fu.emit(NEW_ITERATOR, iter, containerSlot)
	lw.fu.PushLoop(start, end)
	lw.fu.EmitLabel(start)
	lw.fu.emit(ITERATE, iter, n.LoopVarSlot, end)
	lw.lowerStmtListBody(n.Body)
	lw.fu.emit(JUMP, start)
	lw.fu.EmitLabel(end)
	lw.fu.PopLoop()
	lw.fu.ReleaseMultiLine(iter)
}

// lowerDo implements §4.4's "Do / Rescue / Finally" rule. Bookkeeping
// (CloseRegion) happens exactly once regardless of how many runtime
// paths emit POP_RESCUE_FRAME, see labels.go's EmitPopRescueFrame/
// CloseRegion split.
func (lw *Lowerer) lowerDo(n *ast.Do) {
	hasRescue := n.RescueName != "" || len(n.ErrorTypes) > 0 || len(n.RescueBody) > 0
	mode := 0
	var rescueLabel, finallyLabel int
	if hasRescue {
		rescueLabel = lw.fu.NewLabel()
		mode |= JumpOnRescue
	}
	if n.HasFinally {
		finallyLabel = lw.fu.NewLabel()
		mode |= JumpOnFinally
	}
	end := lw.fu.NewLabel()
	errorSlot := lw.fu.NewMultiLine()

	regionID, err := lw.fu.PushRegion(mode, rescueLabel, finallyLabel, errorSlot)
	if err != nil {
		lw.errorf(n, "lowerer", "%s", err.Error())
		return
	}
	for _, et := range n.ErrorTypes {
		if ref, ok := et.(*ast.IdentifierRef); ok && ref.Storage.Kind == ast.GlobalClassSlot {
			lw.fu.AddRescueType(regionID, ref.Storage.ID)
		} else {
			classSlot := lw.lowerExpr(et)
			lw.fu.AddRescueTypeByRef(regionID, classSlot)
		}
	}

	lw.lowerStmtListBody(n.Body)
	switch {
	case n.HasFinally:
		lw.fu.JumpToFinally(regionID)
	case hasRescue:
		lw.fu.EmitPopRescueFrame(regionID)
		lw.fu.emit(JUMP, end)
	default:
		lw.fu.EmitPopRescueFrame(regionID)
	}

	if hasRescue {
		lw.fu.EmitLabel(rescueLabel)
		if n.RescueName != "" {
			lw.fu.emit(VALUECOPY, n.RescueNameSlot, errorSlot)
		}
		lw.lowerStmtListBody(n.RescueBody)
		if n.HasFinally {
			lw.fu.JumpToFinally(regionID)
		} else {
			lw.fu.EmitPopRescueFrame(regionID)
			lw.fu.emit(JUMP, end)
		}
	}

	if n.HasFinally {
		lw.fu.EmitLabel(finallyLabel)
		lw.lowerStmtListBody(n.FinallyBody)
		lw.fu.EmitPopRescueFrame(regionID)
	}

	lw.fu.CloseRegion(regionID)
	lw.fu.EmitLabel(end)
	lw.fu.ReleaseMultiLine(errorSlot)
}

// lowerWith implements §4.4's "With" rule: each bound resource gets its
// own nested cleanup sub-region inside the outer body's finally, so one
// resource's close() raising does not skip closing the others.
func (lw *Lowerer) lowerWith(n *ast.With) {
	resourceSlots := make([]int, len(n.Clauses))
	for i, c := range n.Clauses {
		resourceSlots[i] = c.Storage.ID
		lw.fu.emit(SET_CONST, resourceSlots[i], lw.Prog.InternConstant(nil))
	}

	finallyLabel := lw.fu.NewLabel()
	end := lw.fu.NewLabel()
	errorSlot := lw.fu.NewMultiLine()
	regionID, err := lw.fu.PushRegion(JumpOnFinally, 0, finallyLabel, errorSlot)
	if err != nil {
		lw.errorf(n, "lowerer", "%s", err.Error())
		return
	}

	for i, c := range n.Clauses {
		resSlot := lw.lowerExpr(c.Resource)
		lw.fu.emit(VALUECOPY, resourceSlots[i], resSlot)
	}
	lw.lowerStmtListBody(n.Body)
	lw.fu.JumpToFinally(regionID)

	lw.fu.EmitLabel(finallyLabel)
	closeID := lw.Prog.InternAttrName("close")
	for _, slot := range resourceSlots {
		lw.lowerResourceCleanup(slot, closeID)
	}
	lw.fu.EmitPopRescueFrame(regionID)
	lw.fu.CloseRegion(regionID)
	lw.fu.EmitLabel(end)
	lw.fu.ReleaseMultiLine(errorSlot)
}

func (lw *Lowerer) lowerResourceCleanup(resourceSlot, closeID int) {
	skip := lw.fu.NewLabel()
	innerFinally := lw.fu.NewLabel()
	innerEnd := lw.fu.NewLabel()
	innerErrSlot := lw.fu.NewMultiLine()
	innerRegion, err := lw.fu.PushRegion(JumpOnFinally, 0, innerFinally, innerErrSlot)
	if err != nil {
		lw.fu.ReleaseMultiLine(innerErrSlot)
		return
	}
	lw.fu.emit(HASATTRJUMP, resourceSlot, closeID, skip)
	closeSlot := lw.fu.NewSingleLine()
	lw.fu.emit(GET_ATTRIBUTE_BY_NAME, closeSlot, resourceSlot, closeID)
	lw.emitCallFromSlots(closeSlot, -1, nil, nil, false, false, false)
	lw.fu.EmitLabel(skip)
	lw.fu.JumpToFinally(innerRegion)
	lw.fu.EmitLabel(innerFinally)
	lw.fu.EmitPopRescueFrame(innerRegion)
	lw.fu.CloseRegion(innerRegion)
	lw.fu.EmitLabel(innerEnd)
	lw.fu.ReleaseMultiLine(innerErrSlot)
}

// lowerFuncDef switches the current FuncUnit to fn's own function
// record, lowers its default-argument prologue, then its body, and
// restores the caller's FuncUnit (§4.4 "Function definition").
func (lw *Lowerer) lowerFuncDef(fn *ast.FuncDef) {
	savedFU := lw.fu
	newFU := NewFuncUnit(fn.BytecodeFuncID, fn.StorageInfo)
	lw.Prog.RegisterFunction(fn.BytecodeFuncID, newFU)
	lw.fu = newFU

	for _, p := range fn.Params {
		if p.Default == nil {
			continue
		}
		sentinelSlot := lw.fu.NewSingleLine()
		lw.fu.emit(SET_CONST, sentinelSlot, lw.Prog.InternConstant(Unspecified{}))
		cmpSlot := lw.fu.NewSingleLine()
		lw.fu.emit(BINOP, int(ast.OpEqual), cmpSlot, p.Slot, sentinelSlot)
		past := lw.fu.NewLabel()
		lw.fu.emit(CONDJUMP, cmpSlot, past)
		defaultSlot := lw.lowerExpr(p.Default)
		lw.fu.emit(VALUECOPY, p.Slot, defaultSlot)
		lw.fu.EmitLabel(past)
		lw.fu.FreeSingleLine()
	}

	lw.lowerStmtListBody(fn.Body)
	lw.fu = savedFU
}

// lowerClassDef lowers var-attribute initialisers with non-trivial
// expressions into the class's fake var-init function; other top-level
// statements around the class keep landing in the enclosing FuncUnit
// (global-init, or an enclosing function, unreachable per grammar but
// harmless if it ever occurs). Methods lower like any other function.
func (lw *Lowerer) lowerClassDef(cls *ast.ClassDef) {
	if cls.VarInitFuncID >= 0 {
		savedFU := lw.fu
		lw.fu = lw.Prog.ClassInit(cls.ClassID, cls.VarInitFuncID)
		for _, va := range cls.VarAttrs {
			if va.Init == nil {
				continue
			}
			valSlot := lw.lowerExpr(va.Init)
			lw.fu.emit(SET_BY_ATTRIBUTE_IDX, 0, va.Storage.ID, valSlot)
			lw.fu.FreeSingleLine()
		}
		lw.fu = savedFU
	}
	for _, method := range cls.FuncAttrs {
		lw.lowerFuncDef(method)
	}
}

// ---- expressions ----

// lowerExpr lowers n and returns the slot holding its result, recording
// it on the node via SetEvalTemp per §3's scratch-field invariant.
// noTargetHint marks "no enclosing assignment/var-def target slot
// available" for lowerExprInto's target parameter.
const noTargetHint = -1

func (lw *Lowerer) lowerExpr(n ast.Node) int {
	return lw.lowerExprInto(n, noTargetHint)
}

// lowerExprInto lowers n like lowerExpr, but additionally offers
// target (when not noTargetHint) as n's own result-slot reuse
// candidate #1, per §4.2's is_primary rule: the enclosing assignment
// or var-def's target slot, if itself a stack slot, is tried before
// candidate #2 (an operand's already-live slot). target is only ever
// a candidate for n's own top-level result — subexpressions (operands,
// call arguments, container elements, ...) are lowered through the
// plain lowerExpr and never see it, since reusing the outer target for
// an inner operand would make that operand alias a slot the statement
// hasn't finished reading from yet.
func (lw *Lowerer) lowerExprInto(n ast.Node, target int) int {
	slot := lw.lowerExprNoRecord(n, target)
	n.SetEvalTemp(slot)
	return slot
}

func (lw *Lowerer) lowerExprNoRecord(n ast.Node, target int) int {
	switch v := n.(type) {
	case *ast.Literal:
		return lw.lowerLiteral(v, target)
	case *ast.IdentifierRef:
		return lw.lowerIdentifierRef(v, target)
	case *ast.BinaryOp:
		return lw.lowerBinaryOp(v, target)
	case *ast.UnaryOp:
		return lw.lowerUnaryOp(v, target)
	case *ast.Call:
		return lw.lowerCallIntrinsicOrPlain(v)
	case *ast.List:
		return lw.lowerList(v)
	case *ast.Set:
		return lw.lowerSet(v)
	case *ast.Map:
		return lw.lowerMap(v)
	case *ast.Vector:
		return lw.lowerVector(v)
	case *ast.Given:
		return lw.lowerGiven(v)
	case *ast.Await:
		slot := lw.lowerExpr(v.Expr)
		lw.fu.emit(AWAIT_ITEM, slot)
		return slot
	case *ast.FuncDef:
		lw.lowerFuncDef(v)
		slot := lw.fu.NewSingleLine()
		lw.fu.emit(GET_FUNC, slot, v.BytecodeFuncID)
		return slot
	default:
		lw.errorf(n, "lowerer", "unhandled expression kind %v", n.Kind())
		return lw.fu.NewSingleLine()
	}
}

func (lw *Lowerer) lowerLiteral(n *ast.Literal, target int) int {
	slot := lw.newSingleLineFor(target)
	lw.fu.emit(SET_CONST, slot, lw.Prog.InternConstant(n.Value))
	return slot
}

func (lw *Lowerer) lowerIdentifierRef(n *ast.IdentifierRef, target int) int {
	switch n.Storage.Kind {
	case ast.StackSlot:
		return n.Storage.ID
	case ast.GlobalVarSlot:
		slot := lw.newSingleLineFor(target)
		lw.fu.emit(GET_GLOBAL, slot, n.Storage.ID)
		return slot
	case ast.GlobalFuncSlot:
		slot := lw.newSingleLineFor(target)
		lw.fu.emit(GET_FUNC, slot, n.Storage.ID)
		return slot
	case ast.GlobalClassSlot:
		slot := lw.newSingleLineFor(target)
		lw.fu.emit(GET_CLASS, slot, n.Storage.ID)
		return slot
	default:
		lw.errorf(n, "lowerer", "identifier %q is unresolved", n.Name)
		return lw.fu.NewSingleLine()
	}
}

// newSingleLineFor allocates n's own result slot, offering target (if
// given) as reuse candidate #1 ahead of any operand candidates. An
// operand candidate below the guaranteed-free floor is a named param or
// local's own slot, so it is not offered: the result must not overwrite
// a variable the expression merely read.
func (lw *Lowerer) newSingleLineFor(target int, operandCandidates ...int) int {
	floor := lw.fu.Info.LowestGuaranteedFreeTemp
	candidates := make([]int, 0, len(operandCandidates)+1)
	if target != noTargetHint {
		candidates = append(candidates, target)
	}
	for _, c := range operandCandidates {
		if c >= floor {
			candidates = append(candidates, c)
		}
	}
	return lw.fu.NewSingleLine(candidates...)
}

func (lw *Lowerer) lowerBinaryOp(n *ast.BinaryOp, target int) int {
	switch n.Op {
	case ast.OpAttr:
		return lw.lowerAttrAccess(n, target)
	case ast.OpIndex:
		return lw.lowerIndexAccess(n, target)
	case ast.OpAnd, ast.OpOr:
		return lw.lowerShortCircuit(n, target)
	default:
		left := lw.lowerExpr(n.Left)
		right := lw.lowerExpr(n.Right)
		slot := lw.newSingleLineFor(target, left, right)
		lw.fu.emit(BINOP, int(n.Op), slot, left, right)
		return slot
	}
}

func (lw *Lowerer) lowerAttrAccess(n *ast.BinaryOp, target int) int {
	objSlot := lw.lowerExpr(n.Left)
	id, ok := lw.Prog.LookupAttrName(n.AttrName)
	if !ok {
		if lw.attrIsGuarded(n.Left, n.AttrName) {
			id = lw.Prog.InternAttrName(n.AttrName)
			slot := lw.newSingleLineFor(target, objSlot)
			lw.fu.emit(GET_ATTRIBUTE_BY_NAME, slot, objSlot, id)
			return slot
		}
		lw.warnf(n, "unknown-attribute", "unknown attribute %q", n.AttrName)
		slot := lw.newSingleLineFor(target, objSlot)
		lw.emitGuardRaise(n, "AttributeError", "no such attribute: "+n.AttrName)
		return slot
	}
	slot := lw.newSingleLineFor(target, objSlot)
	lw.fu.emit(GET_ATTRIBUTE_BY_NAME, slot, objSlot, id)
	return slot
}

func (lw *Lowerer) lowerIndexAccess(n *ast.BinaryOp, target int) int {
	objSlot := lw.lowerExpr(n.Left)
	idxSlot := lw.lowerExpr(n.Right)
	slot := lw.newSingleLineFor(target, objSlot, idxSlot)
	lw.fu.emit(BINOP, int(ast.OpIndex), slot, objSlot, idxSlot)
	return slot
}

// lowerShortCircuit implements §4.4's and/or rule: evaluate the LHS,
// branch on its truthiness with CONDJUMPEX, write the short-circuit
// boolean under one path or evaluate+combine the RHS under the other.
func (lw *Lowerer) lowerShortCircuit(n *ast.BinaryOp, target int) int {
	lhs := lw.lowerExpr(n.Left)
	slot := lw.newSingleLineFor(target, lhs)
	regular := lw.fu.NewLabel()
	end := lw.fu.NewLabel()

	// `and` takes the short-circuit path (polarity 0) when LHS is
	// false; `or` takes it (polarity 1) when LHS is true.
	polarity := 0
	if n.Op == ast.OpOr {
		polarity = 1
	}
	lw.fu.emit(CONDJUMPEX, lhs, polarity, regular)

	scValue := n.Op == ast.OpOr
	lw.fu.emit(SET_CONST, slot, lw.Prog.InternConstant(scValue))
	lw.fu.emit(JUMP, end)

	lw.fu.EmitLabel(regular)
	rhs := lw.lowerExpr(n.Right)
	lw.fu.emit(BINOP, int(n.Op), slot, lhs, rhs)
	lw.fu.EmitLabel(end)
	return slot
}

func (lw *Lowerer) lowerUnaryOp(n *ast.UnaryOp, target int) int {
	if n.Op == ast.OpNew {
		return lw.lowerNewExpr(n)
	}
	operand := lw.lowerExpr(n.Operand)
	slot := lw.newSingleLineFor(target, operand)
	lw.fu.emit(UNOP, int(n.Op), slot, operand)
	return slot
}

// lowerNewExpr implements §4.4's "new on a call expression" rule:
// constructor arguments evaluate first, then NEW_INSTANCE(_BY_REF),
// then GET_CONSTRUCTOR, then a call-ignore-if-none on the constructor.
func (lw *Lowerer) lowerNewExpr(n *ast.UnaryOp) int {
	call, ok := n.Operand.(*ast.Call)
	if !ok {
		lw.errorf(n, "semantic", "'new' requires a call expression")
		return lw.fu.NewSingleLine()
	}
	prepared, ok := lw.prepareCallArgs(call)

	var outSlot int
	if callee, isIdent := call.Callee.(*ast.IdentifierRef); isIdent && callee.Storage.Kind == ast.GlobalClassSlot {
		outSlot = lw.fu.NewSingleLine()
		lw.fu.emit(NEW_INSTANCE, callee.Storage.ID, outSlot)
	} else {
		classSlot := lw.lowerExpr(call.Callee)
		outSlot = lw.fu.NewSingleLine()
		lw.fu.emit(NEW_INSTANCE_BY_REF, classSlot, outSlot)
	}

	ctorSlot := lw.fu.NewSingleLine()
	lw.fu.emit(GET_CONSTRUCTOR, ctorSlot, outSlot)
	if ok {
		lw.emitCallFromSlots(ctorSlot, -1, prepared.pos, prepared.kw, true, false, call.Unpack)
	} else {
		lw.emitGuardRaise(call, "ArgumentError", "unknown keyword argument to constructor")
	}
	return outSlot
}

// preparedKwArg is a keyword argument already lowered to a value slot,
// tagged with its interned attribute-name id so it can be sorted.
type preparedKwArg struct {
	nameID int
	slot   int
}

type preparedCall struct {
	pos []int
	kw  []preparedKwArg
}

// prepareCallArgs lowers every positional and keyword argument of call
// and sorts the keyword arguments by attribute-name id (§4.4 "Calls").
// The second return is false if an unknown keyword argument name was
// used, in which case callers substitute a guard raise for the call.
func (lw *Lowerer) prepareCallArgs(call *ast.Call) (preparedCall, bool) {
	pos := make([]int, len(call.PosArgs))
	for i, a := range call.PosArgs {
		pos[i] = lw.lowerExpr(a)
	}
	ok := true
	var kw []preparedKwArg
	for _, k := range call.KwArgs {
		id, known := lw.Prog.LookupAttrName(k.Name)
		if !known {
			lw.warnf(call, "unknown-kwarg", "unknown keyword argument %q", k.Name)
			ok = false
			continue
		}
		valSlot := lw.lowerExpr(k.Value)
		kw = append(kw, preparedKwArg{nameID: id, slot: valSlot})
	}
	sort.Slice(kw, func(i, j int) bool { return kw[i].nameID < kw[j].nameID })
	return preparedCall{pos: pos, kw: kw}, ok
}

// emitCallFromSlots implements §4.4's "Calls" rule on already-lowered
// argument slots: CALL_SETTOP establishes the argument floor, then
// alternating VALUECOPY (positional) / SET_CONST+VALUECOPY (keyword,
// name id then value) push arguments upward, each followed by a
// settop-operand fixup since the floor moves as arguments are pushed.
func (lw *Lowerer) emitCallFromSlots(calleeSlot, returnSlot int, pos []int, kw []preparedKwArg, ignoreIfNone, async, unpackLast bool) {
	top := lw.fu.CurrentTop()
	settopOffset := lw.fu.emit(CALL_SETTOP, top)
	cur := top

	for _, s := range pos {
		dst := cur
		lw.fu.emit(VALUECOPY, dst, s)
		cur++
		lw.fu.patchOperand(settopOffset, 0, cur)
	}
	for _, k := range kw {
		nameSlot := cur
		lw.fu.emit(SET_CONST, nameSlot, lw.Prog.InternConstant(k.nameID))
		cur++
		lw.fu.patchOperand(settopOffset, 0, cur)
		valueSlot := cur
		lw.fu.emit(VALUECOPY, valueSlot, k.slot)
		cur++
		lw.fu.patchOperand(settopOffset, 0, cur)
	}

	flags := 0
	if unpackLast {
		flags |= FlagUnpackLastPosArg
	}
	if async {
		flags |= FlagAsync
	}
	op := CALL
	if ignoreIfNone {
		op = CALL_IGNORE_IF_NONE
	}
	lw.fu.emit(op, calleeSlot, returnSlot, len(pos), len(kw), flags)
}

// lowerCallIntrinsicOrPlain recognises has_attr(obj, "name") — a
// compile-time intrinsic per §4.4 — before falling back to a plain call.
func (lw *Lowerer) lowerCallIntrinsicOrPlain(n *ast.Call) int {
	if callee, ok := n.Callee.(*ast.IdentifierRef); ok && callee.Name == "has_attr" &&
		callee.Storage.Kind == ast.GlobalVarSlot && len(n.PosArgs) == 2 {
		if lit, ok := n.PosArgs[1].(*ast.Literal); ok && lit.ValueKind == ast.ConstString {
			return lw.lowerHasAttr(n, lit)
		}
	}
	return lw.lowerCall(n, true)
}

func (lw *Lowerer) lowerHasAttr(n *ast.Call, nameLit *ast.Literal) int {
	name, _ := nameLit.Value.(string)
	resultSlot := lw.fu.NewSingleLine()
	id, ok := lw.Prog.LookupAttrName(name)
	if !ok {
		lw.fu.emit(SET_CONST, resultSlot, lw.Prog.InternConstant(false))
		return resultSlot
	}
	objSlot := lw.lowerExpr(n.PosArgs[0])
	lw.fu.emit(SET_CONST, resultSlot, lw.Prog.InternConstant(false))
	past := lw.fu.NewLabel()
	lw.fu.emit(HASATTRJUMP, objSlot, id, past)
	lw.fu.emit(SET_CONST, resultSlot, lw.Prog.InternConstant(true))
	lw.fu.EmitLabel(past)
	return resultSlot
}

// lowerCall implements §4.4's "Calls" rule. wantValue controls whether
// a return slot is reserved; a CallStmt lowers with wantValue=false.
func (lw *Lowerer) lowerCall(n *ast.Call, wantValue bool) int {
	calleeSlot := lw.lowerExpr(n.Callee)
	prepared, ok := lw.prepareCallArgs(n)

	returnSlot := -1
	if wantValue {
		returnSlot = lw.fu.NewSingleLine()
	}
	if !ok {
		lw.emitGuardRaise(n, "ArgumentError", "unknown keyword argument")
		return returnSlot
	}
	lw.emitCallFromSlots(calleeSlot, returnSlot, prepared.pos, prepared.kw, false, n.Async, n.Unpack)
	return returnSlot
}

func (lw *Lowerer) lowerList(n *ast.List) int {
	slot := lw.fu.NewSingleLine()
	lw.fu.emit(NEW_LIST, slot)
	if len(n.Elems) > 0 {
		addID := lw.Prog.InternAttrName("add")
		for _, e := range n.Elems {
			elemSlot := lw.lowerExpr(e)
			addSlot := lw.fu.NewSingleLine()
			lw.fu.emit(GET_ATTRIBUTE_BY_NAME, addSlot, slot, addID)
			lw.emitCallFromSlots(addSlot, -1, []int{elemSlot}, nil, false, false, false)
		}
	}
	return slot
}

func (lw *Lowerer) lowerSet(n *ast.Set) int {
	slot := lw.fu.NewSingleLine()
	lw.fu.emit(NEW_SET, slot)
	if len(n.Elems) > 0 {
		addID := lw.Prog.InternAttrName("add")
		for _, e := range n.Elems {
			elemSlot := lw.lowerExpr(e)
			addSlot := lw.fu.NewSingleLine()
			lw.fu.emit(GET_ATTRIBUTE_BY_NAME, addSlot, slot, addID)
			lw.emitCallFromSlots(addSlot, -1, []int{elemSlot}, nil, false, false, false)
		}
	}
	return slot
}

func (lw *Lowerer) lowerMap(n *ast.Map) int {
	slot := lw.fu.NewSingleLine()
	lw.fu.emit(NEW_MAP, slot)
	for _, e := range n.Entries {
		keySlot := lw.lowerExpr(e.Key)
		valSlot := lw.lowerExpr(e.Value)
		lw.fu.emit(SET_BY_INDEX_EXPR, slot, keySlot, valSlot)
	}
	return slot
}

func (lw *Lowerer) lowerVector(n *ast.Vector) int {
	slot := lw.fu.NewSingleLine()
	lw.fu.emit(NEW_VECTOR, slot)
	for i, e := range n.Elems {
		idxSlot := lw.fu.NewSingleLine()
		lw.fu.emit(SET_CONST, idxSlot, lw.Prog.InternConstant(int64(i)))
		valSlot := lw.lowerExpr(e)
		lw.fu.emit(SET_BY_INDEX_EXPR, slot, idxSlot, valSlot)
	}
	return slot
}

func (lw *Lowerer) lowerGiven(n *ast.Given) int {
	resultSlot := lw.fu.NewSingleLine()
	falseLabel := lw.fu.NewLabel()
	end := lw.fu.NewLabel()
	condSlot := lw.lowerExpr(n.Cond)
	lw.fu.emit(CONDJUMP, condSlot, falseLabel)
	yesSlot := lw.lowerExpr(n.Yes)
	lw.fu.emit(VALUECOPY, resultSlot, yesSlot)
	lw.fu.emit(JUMP, end)
	lw.fu.EmitLabel(falseLabel)
	noSlot := lw.lowerExpr(n.No)
	lw.fu.emit(VALUECOPY, resultSlot, noSlot)
	lw.fu.EmitLabel(end)
	return resultSlot
}
