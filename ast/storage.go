package ast

// FuncStorageInfo is the per-function side table of §3 "Function
// storage-info side table". One is allocated per FuncDef (including
// the fake init functions codegen synthesises) by the resolver, then
// mutated only by the Slot Allocator and Label/Region allocators
// during lowering.
type FuncStorageInfo struct {
	LowestGuaranteedFreeTemp int

	// ExtraUsed[slot] is true while slot is live. ExtraDeletePastLine[slot]
	// is true when the slot's lifetime ends at the next statement boundary.
	ExtraUsed           []bool
	ExtraDeletePastLine []bool

	MaxExtraStack int

	// DoStmtsUsed allocates numeric error-region ids; must stay <= 32767.
	DoStmtsUsed int
	// JumpTargetsUsed allocates symbolic jump-label ids.
	JumpTargetsUsed int

	ClosureWithSelf       bool
	ClosureBoundVarsCount int
	ArgCount              int
}
