// Package interpreter is a tree-walking fallback evaluator over
// ast.Node, used by the immediate-mode REPL subcommand for expressions
// and statements that don't need a compiled class/object runtime. It
// does not model classes, attributes, or iteration over vesper's
// collection types — those require the real object/class runtime the
// bytecode VM provides, which is this repo's actual deliverable.
package interpreter

import (
	"fmt"

	"vesper/ast"
)

// TreeWalkInterpreter executes parsed statements and evaluates
// expressions directly against the ast.Node tree.
type TreeWalkInterpreter struct {
	environment *Environment
}

func Make() *TreeWalkInterpreter {
	return &TreeWalkInterpreter{environment: MakeEnvironment()}
}

// breakSignal, continueSignal and returnSignal unwind the Go call
// stack via panic/recover to implement break/continue/return, mirroring
// the teacher's panic-based error propagation for control flow that
// has no natural expression as a return value.
type breakSignal struct{}
type continueSignal struct{}
type returnSignal struct{ value any }

// Interpret executes a list of top-level statements, printing a
// runtime error (if any) instead of crashing the REPL.
func (i *TreeWalkInterpreter) Interpret(statements []ast.Node) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(returnSignal); ok {
				return
			}
			fmt.Println(r)
		}
	}()
	i.executeStatements(statements)
}

func (i *TreeWalkInterpreter) executeStatements(statements []ast.Node) {
	for _, s := range statements {
		i.execute(s)
	}
}

func (i *TreeWalkInterpreter) execute(stmt ast.Node) {
	switch s := stmt.(type) {
	case *ast.VarDef:
		var value any
		if s.Init != nil {
			value = i.evaluate(s.Init)
		}
		i.environment.define(s.Name, value)
	case *ast.CallStmt:
		i.evaluate(s.Call)
	case *ast.If:
		i.executeIf(s)
	case *ast.While:
		i.executeWhile(s)
	case *ast.For:
		i.executeFor(s)
	case *ast.Return:
		var value any
		if s.Value != nil {
			value = i.evaluate(s.Value)
		}
		panic(returnSignal{value: value})
	case *ast.Break:
		panic(breakSignal{})
	case *ast.Continue:
		panic(continueSignal{})
	case *ast.FuncDef, *ast.ClassDef, *ast.Import, *ast.Do, *ast.With, *ast.Raise:
		line, col := stmt.Pos()
		panic(CreateRuntimeError(line, col, fmt.Sprintf("%s is not supported by the tree-walking interpreter", stmt.Kind())))
	default:
		// A bare expression statement, evaluated for its side effects.
		i.evaluate(stmt)
	}
}

func (i *TreeWalkInterpreter) executeIf(stmt *ast.If) {
	for _, clause := range stmt.Clauses {
		if clause.Cond == nil || isTrue(i.evaluate(clause.Cond)) {
			i.executeBlock(clause.Body)
			return
		}
	}
}

func (i *TreeWalkInterpreter) executeWhile(stmt *ast.While) {
	for isTrue(i.evaluate(stmt.Cond)) {
		if i.runLoopBody(stmt.Body) {
			break
		}
	}
}

// executeFor only drives over a Go-native []any at the interpreter
// level (any other container value, a string included, is a runtime
// error); vesper's real iterator protocol (NEW_ITERATOR/
// ITERATE) is a VM concept with no tree-walking equivalent here.
func (i *TreeWalkInterpreter) executeFor(stmt *ast.For) {
	container := i.evaluate(stmt.Container)
	items, ok := container.([]any)
	if !ok {
		line, col := stmt.Pos()
		panic(CreateRuntimeError(line, col, "for-in requires a list value in the tree-walking interpreter"))
	}
	for _, item := range items {
		i.environment.define(stmt.LoopVar, item)
		if i.runLoopBody(stmt.Body) {
			break
		}
	}
}

// runLoopBody executes one iteration of a loop body, reporting whether
// the loop should stop (a break was hit). continueSignal is absorbed
// here so it only skips the rest of the current iteration.
func (i *TreeWalkInterpreter) runLoopBody(body []ast.Node) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case breakSignal:
				stop = true
			case continueSignal:
				stop = false
			default:
				panic(r)
			}
		}
	}()
	i.executeBlock(body)
	return false
}

func (i *TreeWalkInterpreter) executeBlock(body []ast.Node) {
	previous := i.environment
	i.environment = MakeNestedEnvironment(previous)
	defer func() { i.environment = previous }()
	i.executeStatements(body)
}

func (i *TreeWalkInterpreter) evaluate(expr ast.Node) any {
	switch e := expr.(type) {
	case *ast.Literal:
		return e.Value
	case *ast.IdentifierRef:
		line, col := e.Pos()
		value, err := i.environment.get(e.Name, line, col)
		if err != nil {
			panic(err)
		}
		return value
	case *ast.Assign:
		return i.evaluateAssign(e)
	case *ast.BinaryOp:
		return i.evaluateBinary(e)
	case *ast.UnaryOp:
		return i.evaluateUnary(e)
	case *ast.Given:
		if isTrue(i.evaluate(e.Cond)) {
			return i.evaluate(e.Yes)
		}
		return i.evaluate(e.No)
	case *ast.List:
		items := make([]any, len(e.Elems))
		for idx, elem := range e.Elems {
			items[idx] = i.evaluate(elem)
		}
		return items
	case *ast.Call:
		line, col := e.Pos()
		panic(CreateRuntimeError(line, col, "function calls are not supported by the tree-walking interpreter"))
	default:
		line, col := expr.Pos()
		panic(CreateRuntimeError(line, col, fmt.Sprintf("%s is not supported by the tree-walking interpreter", expr.Kind())))
	}
}

func (i *TreeWalkInterpreter) evaluateAssign(assign *ast.Assign) any {
	target, ok := assign.Target.(*ast.IdentifierRef)
	if !ok {
		line, col := assign.Pos()
		panic(CreateRuntimeError(line, col, "only plain variable assignment is supported by the tree-walking interpreter"))
	}
	value := i.evaluate(assign.Value)
	if assign.Op != ast.AssignPlain {
		line, col := target.Pos()
		current, err := i.environment.get(target.Name, line, col)
		if err != nil {
			panic(err)
		}
		value = applyArith(ast.BinOpForAssign(assign.Op), current, value, line, col)
	}
	line, col := target.Pos()
	if err := i.environment.assign(target.Name, value, line, col); err != nil {
		panic(err)
	}
	return value
}

func (i *TreeWalkInterpreter) evaluateBinary(b *ast.BinaryOp) any {
	line, col := b.Pos()
	if b.Op == ast.OpAttr || b.Op == ast.OpIndex {
		panic(CreateRuntimeError(line, col, "attribute/index access requires the object runtime, not supported by the tree-walking interpreter"))
	}
	left := i.evaluate(b.Left)
	if b.Op == ast.OpAnd {
		if !isTrue(left) {
			return false
		}
		return isTrue(i.evaluate(b.Right))
	}
	if b.Op == ast.OpOr {
		if isTrue(left) {
			return true
		}
		return isTrue(i.evaluate(b.Right))
	}
	right := i.evaluate(b.Right)
	switch b.Op {
	case ast.OpEqual:
		return left == right
	case ast.OpNotEqual:
		return left != right
	case ast.OpAdd:
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs
			}
		}
		return applyArith(b.Op, left, right, line, col)
	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		return applyArith(b.Op, left, right, line, col)
	case ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		return applyCompare(b.Op, left, right, line, col)
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		return applyBitwise(b.Op, left, right, line, col)
	default:
		panic(CreateRuntimeError(line, col, "operator not supported by the tree-walking interpreter"))
	}
}

func (i *TreeWalkInterpreter) evaluateUnary(u *ast.UnaryOp) any {
	line, col := u.Pos()
	switch u.Op {
	case ast.OpNeg:
		value := toFloat(i.evaluate(u.Operand), line, col)
		return -value
	case ast.OpNot:
		return !isTrue(i.evaluate(u.Operand))
	default:
		panic(CreateRuntimeError(line, col, "operator not supported by the tree-walking interpreter"))
	}
}

func isTrue(value any) bool {
	if value == nil {
		return false
	}
	if b, ok := value.(bool); ok {
		return b
	}
	return true
}

func toFloat(value any, line int32, col int) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		panic(CreateRuntimeError(line, col, fmt.Sprintf("expected a numeric value, got %v", value)))
	}
}

func applyArith(op ast.BinOp, left, right any, line int32, col int) float64 {
	l, r := toFloat(left, line, col), toFloat(right, line, col)
	switch op {
	case ast.OpAdd:
		return l + r
	case ast.OpSub:
		return l - r
	case ast.OpMul:
		return l * r
	case ast.OpDiv:
		if r == 0 {
			panic(CreateRuntimeError(line, col, "division by zero"))
		}
		return l / r
	case ast.OpMod:
		li, ri := int64(l), int64(r)
		if ri == 0 {
			panic(CreateRuntimeError(line, col, "division by zero"))
		}
		return float64(li % ri)
	default:
		panic(CreateRuntimeError(line, col, "not an arithmetic operator"))
	}
}

func applyCompare(op ast.BinOp, left, right any, line int32, col int) bool {
	l, r := toFloat(left, line, col), toFloat(right, line, col)
	switch op {
	case ast.OpLess:
		return l < r
	case ast.OpLessEqual:
		return l <= r
	case ast.OpGreater:
		return l > r
	case ast.OpGreaterEqual:
		return l >= r
	default:
		panic(CreateRuntimeError(line, col, "not a comparison operator"))
	}
}

func applyBitwise(op ast.BinOp, left, right any, line int32, col int) int64 {
	l, r := int64(toFloat(left, line, col)), int64(toFloat(right, line, col))
	switch op {
	case ast.OpBitAnd:
		return l & r
	case ast.OpBitOr:
		return l | r
	case ast.OpBitXor:
		return l ^ r
	default:
		panic(CreateRuntimeError(line, col, "not a bitwise operator"))
	}
}
