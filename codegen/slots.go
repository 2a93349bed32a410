package codegen

// Slot Allocator (§4.2): a per-function temporary-slot pool with two
// lifetimes, line-scoped and multi-line, bottomed at
// LowestGuaranteedFreeTemp. Slots are tracked as an offset into
// Info.ExtraUsed/ExtraDeletePastLine, indexed from that floor.

// NewSingleLine returns a slot that may be freed at the next statement
// boundary. Callers pass candidate slots to reuse first (§4.2's
// "is_primary" rule: the enclosing assignment/var-def target, or an
// operand's result slot) — the first non-negative candidate is reused
// as-is; otherwise a fresh slot is allocated.
//
// A candidate below the guaranteed-free floor is a permanent binding
// (a parameter or local var's own stack slot, not one of this pool's
// extras) rather than a tracked temp, so reusing it skips ExtraUsed
// bookkeeping entirely — it was never "allocated" from this pool and
// never needs to be freed. The lowerer (lower.go's newSingleLineFor)
// passes a below-floor candidate only for the enclosing assignment/
// var-def target, filtering out below-floor operand slots: writing
// straight into the destination slot instead of computing into a temp
// and VALUECOPY-ing it over. A negative candidate (no hint available)
// is skipped.
func (fu *FuncUnit) NewSingleLine(reuseCandidates ...int) int {
	for _, c := range reuseCandidates {
		if c >= 0 {
			return c
		}
	}
	return fu.allocExtra(true)
}

// NewMultiLine allocates a slot that persists across statements (used
// for loop iterators) until explicitly released with ReleaseMultiLine.
func (fu *FuncUnit) NewMultiLine() int {
	return fu.allocExtra(false)
}

func (fu *FuncUnit) allocExtra(deletePastLine bool) int {
	floor := fu.Info.LowestGuaranteedFreeTemp
	for i, used := range fu.Info.ExtraUsed {
		if !used {
			fu.Info.ExtraUsed[i] = true
			fu.Info.ExtraDeletePastLine[i] = deletePastLine
			fu.updatePeak()
			return floor + i
		}
	}
	fu.Info.ExtraUsed = append(fu.Info.ExtraUsed, true)
	fu.Info.ExtraDeletePastLine = append(fu.Info.ExtraDeletePastLine, deletePastLine)
	slot := floor + len(fu.Info.ExtraUsed) - 1
	fu.updatePeak()
	return slot
}

// ReleaseMultiLine marks a multi-line slot free for reuse.
func (fu *FuncUnit) ReleaseMultiLine(slot int) {
	idx := slot - fu.Info.LowestGuaranteedFreeTemp
	if idx >= 0 && idx < len(fu.Info.ExtraUsed) {
		fu.Info.ExtraUsed[idx] = false
	}
}

// FreeSingleLine releases every slot whose lifetime ends at a
// statement boundary; called by the lowerer after each statement.
func (fu *FuncUnit) FreeSingleLine() {
	for i := range fu.Info.ExtraUsed {
		if fu.Info.ExtraUsed[i] && fu.Info.ExtraDeletePastLine[i] {
			fu.Info.ExtraUsed[i] = false
		}
	}
}

// CurrentTop is the one-past-last live slot, used as the argument
// floor for calls (§4.4 "Calls": CALL_SETTOP establishes the argument
// floor above the current live set).
func (fu *FuncUnit) CurrentTop() int {
	floor := fu.Info.LowestGuaranteedFreeTemp
	top := floor
	for i, used := range fu.Info.ExtraUsed {
		if used {
			top = floor + i + 1
		}
	}
	return top
}

func (fu *FuncUnit) updatePeak() {
	extra := fu.CurrentTop() - fu.Info.LowestGuaranteedFreeTemp
	if extra > fu.Info.MaxExtraStack {
		fu.Info.MaxExtraStack = extra
	}
}

// FrameSize is the function's final stack frame size: parameters plus
// closure bindings plus self (already folded into
// LowestGuaranteedFreeTemp by the resolver) plus peak extra usage.
func (fu *FuncUnit) FrameSize() int {
	return fu.Info.LowestGuaranteedFreeTemp + fu.Info.MaxExtraStack
}
