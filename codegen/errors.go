package codegen

import (
	"errors"
	"fmt"
)

// SemanticError is a user program error: the source asked for
// something the language forbids (raising a non-`new` expression,
// assigning to a global function/class, an unknown attribute without
// a has_attr/is_a guard). Recorded as a Diagnostic; compilation
// continues where it safely can.
type SemanticError struct {
	Message string
}

func (e SemanticError) Error() string {
	return fmt.Sprintf("💥 SemanticError: %s", e.Message)
}

// DeveloperError is a hard-fatal compiler-internal failure: an
// invariant the lowerer or finaliser relies on was violated. Aborts
// compilation (§7 "Hard fatal").
type DeveloperError struct {
	Message string
}

func (e DeveloperError) Error() string {
	return fmt.Sprintf("🤖 DeveloperError: %s", e.Message)
}

var (
	errTooManyRegions = DeveloperError{Message: "more than 32767 error regions in one function"}
	errUnresolvedLabel = DeveloperError{Message: "jump targets a label that was never emitted"}
	errZeroJumpOffset  = DeveloperError{Message: "jump offset resolved to zero"}
	errJumpTooFar      = DeveloperError{Message: "jump too far: offset exceeds signed 16-bit range"}
)

// errors.Is support: every DeveloperError of the same Message compares
// equal, since these are used as sentinel-style fatal conditions.
func (e DeveloperError) Is(target error) bool {
	var other DeveloperError
	if errors.As(target, &other) {
		return e.Message == other.Message
	}
	return false
}
