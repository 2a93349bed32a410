package codegen

// Region mode bits for PUSH_RESCUE_FRAME (§4.3).
const (
	JumpOnRescue  = 1 << 0
	JumpOnFinally = 1 << 1
)

// NewLabel allocates a symbolic jump-label id from the function's
// jump_targets_used pool (§4.3).
func (fu *FuncUnit) NewLabel() int {
	id := fu.Info.JumpTargetsUsed
	fu.Info.JumpTargetsUsed++
	return id
}

// EmitLabel marks the current position with a JUMP_TARGET pseudo-op,
// later removed by the Finaliser.
func (fu *FuncUnit) EmitLabel(id int) {
	fu.emit(JUMP_TARGET, id)
}

// NewRegionID allocates a numeric error-region id, per §3's invariant
// that this allocator must not exceed 32767.
func (fu *FuncUnit) NewRegionID() (int, error) {
	id := fu.Info.DoStmtsUsed
	if id >= 32767 {
		return 0, errTooManyRegions
	}
	fu.Info.DoStmtsUsed++
	return id, nil
}

// PushRegion opens an error region and pushes it on the region stack,
// per §4.3. mode is a bitwise OR of JumpOnRescue/JumpOnFinally.
func (fu *FuncUnit) PushRegion(mode, rescueLabel, finallyLabel, errorSlot int) (int, error) {
	id, err := fu.NewRegionID()
	if err != nil {
		return 0, err
	}
	fu.emit(PUSH_RESCUE_FRAME, id, mode, rescueLabel, finallyLabel, errorSlot)
	fu.regionStack = append(fu.regionStack, id)
	return id, nil
}

// EmitPopRescueFrame emits POP_RESCUE_FRAME for regionID without
// touching the bookkeeping stack. A region with both a rescue and a
// finally path closes along two different runtime paths (success and
// rescue) that both funnel into the same finally block, so this may be
// emitted more than once per region; CloseRegion, which validates LIFO
// nesting, must still be called exactly once.
func (fu *FuncUnit) EmitPopRescueFrame(regionID int) {
	fu.emit(POP_RESCUE_FRAME, regionID)
}

// CloseRegion pops regionID off the bookkeeping stack, once, after all
// of its POP_RESCUE_FRAME sites have been emitted. Regions must close
// in strict LIFO order (§3's "Error regions are strictly nested").
func (fu *FuncUnit) CloseRegion(regionID int) {
	if len(fu.regionStack) == 0 {
		return
	}
	top := fu.regionStack[len(fu.regionStack)-1]
	fu.regionStack = fu.regionStack[:len(fu.regionStack)-1]
	if top != regionID {
		panic("codegen: error regions closed out of LIFO order")
	}
}

func (fu *FuncUnit) AddRescueType(regionID, classID int) {
	fu.emit(ADD_RESCUE_TYPE, regionID, classID)
}

func (fu *FuncUnit) AddRescueTypeByRef(regionID, classSlot int) {
	fu.emit(ADD_RESCUE_TYPE_BY_REF, regionID, classSlot)
}

// JumpToFinally is always emitted before reaching a finally label,
// even when it immediately follows the protected region, so the
// runtime can distinguish fall-through entry from uncaught-error entry.
func (fu *FuncUnit) JumpToFinally(regionID int) {
	fu.emit(JUMP_TO_FINALLY, regionID)
}

// PushLoop/PopLoop/CurrentLoop back Break/Continue lowering: a jump to
// the top loop stack's end/start label respectively.
func (fu *FuncUnit) PushLoop(start, end int) {
	fu.loopStack = append(fu.loopStack, loopLabels{start, end})
}

func (fu *FuncUnit) PopLoop() {
	if len(fu.loopStack) > 0 {
		fu.loopStack = fu.loopStack[:len(fu.loopStack)-1]
	}
}

func (fu *FuncUnit) CurrentLoop() (loopLabels, bool) {
	if len(fu.loopStack) == 0 {
		return loopLabels{}, false
	}
	return fu.loopStack[len(fu.loopStack)-1], true
}
