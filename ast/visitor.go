package ast

import "errors"

// ErrStopWalk is returned by a pre callback to abort traversal
// deliberately, distinct from a real failure. Callers use errors.Is to
// tell the two apart (DESIGN.md Open Question #3); Walk itself treats
// both identically — the first non-nil error unwinds the whole walk,
// leaving whatever annotations were already written in place, per
// §4.1's failure model.
var ErrStopWalk = errors.New("ast: walk stopped")

// PreFunc runs before a node's children are visited. Returning
// ErrStopWalk aborts the walk deliberately; any other non-nil error
// aborts it as a failure.
type PreFunc[S any] func(n Node, parent Node, state S) error

// PostFunc runs after a node's children (or immediately after pre, if
// descent was skipped).
type PostFunc[S any] func(n Node, parent Node, state S) error

// SkipFunc reports whether n's children should be skipped. Post still
// runs for n even when this returns true.
type SkipFunc[S any] func(n Node, state S) bool

// Walk performs the generic pre/post traversal of §4.1. Children are
// visited in the exact per-variant order Children documents; Walk
// additionally links each visited child's parent pointer to n, so a
// builder need not set Base.Parent by hand.
func Walk[S any](n Node, pre PreFunc[S], post PostFunc[S], skip SkipFunc[S], state S) error {
	if n == nil {
		return nil
	}
	if pre != nil {
		if err := pre(n, n.GetParent(), state); err != nil {
			return err
		}
	}
	descend := skip == nil || !skip(n, state)
	if descend {
		for _, child := range Children(n) {
			if child == nil {
				continue
			}
			child.SetParent(n)
			if err := Walk(child, pre, post, skip, state); err != nil {
				return err
			}
		}
	}
	if post != nil {
		if err := post(n, n.GetParent(), state); err != nil {
			return err
		}
	}
	return nil
}

// Children enumerates n's direct children in source order, per §4.1:
// "conditions before statements for If; iterated container before loop
// body for For; do-stmts, rescue-types, rescue-stmts, finally-stmts in
// that order for Do; with-clauses then body for With; operands
// left-to-right for binary operators; callee then args for calls."
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Literal, *IdentifierRef, *Break, *Continue, *Import:
		return nil

	case *VarDef:
		if v.Init != nil {
			return []Node{v.Init}
		}
		return nil

	case *Assign:
		return []Node{v.Target, v.Value}

	case *FuncDef:
		var out []Node
		for _, p := range v.Params {
			if p.Default != nil {
				out = append(out, p.Default)
			}
		}
		out = append(out, v.Body...)
		return out

	case *ClassDef:
		var out []Node
		if v.BaseClass != nil {
			out = append(out, v.BaseClass)
		}
		for _, va := range v.VarAttrs {
			out = append(out, va)
		}
		for _, fa := range v.FuncAttrs {
			out = append(out, fa)
		}
		return out

	case *If:
		var out []Node
		for _, clause := range v.Clauses {
			if clause.Cond != nil {
				out = append(out, clause.Cond)
			}
			out = append(out, clause.Body...)
		}
		return out

	case *While:
		out := []Node{v.Cond}
		return append(out, v.Body...)

	case *For:
		out := []Node{v.Container}
		return append(out, v.Body...)

	case *Do:
		var out []Node
		out = append(out, v.Body...)
		out = append(out, v.ErrorTypes...)
		out = append(out, v.RescueBody...)
		out = append(out, v.FinallyBody...)
		return out

	case *WithClause:
		if v.Resource != nil {
			return []Node{v.Resource}
		}
		return nil

	case *With:
		var out []Node
		for _, c := range v.Clauses {
			out = append(out, c)
		}
		out = append(out, v.Body...)
		return out

	case *Raise:
		return []Node{v.Expr}

	case *Return:
		if v.Value != nil {
			return []Node{v.Value}
		}
		return nil

	case *Await:
		return []Node{v.Expr}

	case *Call:
		out := []Node{v.Callee}
		out = append(out, v.PosArgs...)
		for _, kw := range v.KwArgs {
			out = append(out, kw.Value)
		}
		return out

	case *CallStmt:
		return []Node{v.Call}

	case *BinaryOp:
		if v.Op == OpAttr {
			return []Node{v.Left}
		}
		return []Node{v.Left, v.Right}

	case *UnaryOp:
		return []Node{v.Operand}

	case *List:
		return append([]Node{}, v.Elems...)

	case *Set:
		return append([]Node{}, v.Elems...)

	case *Vector:
		return append([]Node{}, v.Elems...)

	case *Map:
		var out []Node
		for _, e := range v.Entries {
			out = append(out, e.Key, e.Value)
		}
		return out

	case *Given:
		return []Node{v.Cond, v.Yes, v.No}

	default:
		return nil
	}
}
