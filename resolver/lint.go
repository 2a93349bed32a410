package resolver

import "vesper/ast"

// CheckObviousMistakes is a small pre-codegen advisory pass flagging
// always-true/always-false conditions on compile-time-known literals
// and self-assignment (`x = x`). It never blocks codegen — findings
// are warnings only, grounded on original_source/horse64's
// astobviousmistakes.c pre-codegen advisory pass over the resolved tree.
func CheckObviousMistakes(stmts []ast.Node) []Diagnostic {
	var diags []Diagnostic
	for _, stmt := range stmts {
		checkNode(stmt, &diags)
	}
	return diags
}

func checkNode(n ast.Node, diags *[]Diagnostic) {
	if n == nil {
		return
	}

	switch v := n.(type) {
	case *ast.Assign:
		if isSameIdentifier(v.Target, v.Value) {
			line, col := v.Pos()
			*diags = append(*diags, Diagnostic{
				Severity: "warning",
				Message:  "self-assignment has no effect",
				Line:     line, Column: col,
			})
		}
	case *ast.If:
		for _, clause := range v.Clauses {
			checkConstantCondition(clause.Cond, diags)
		}
	case *ast.While:
		checkConstantCondition(v.Cond, diags)
	}

	for _, child := range ast.Children(n) {
		checkNode(child, diags)
	}
}

func checkConstantCondition(cond ast.Node, diags *[]Diagnostic) {
	lit, ok := cond.(*ast.Literal)
	if !ok {
		return
	}
	line, col := lit.Pos()
	if lit.ValueKind == ast.ConstBool {
		value, _ := lit.Value.(bool)
		verdict := "always false"
		if value {
			verdict = "always true"
		}
		*diags = append(*diags, Diagnostic{
			Severity: "warning",
			Message:  "condition is " + verdict,
			Line:     line, Column: col,
		})
	}
}

func isSameIdentifier(a, b ast.Node) bool {
	left, ok := a.(*ast.IdentifierRef)
	if !ok {
		return false
	}
	right, ok := b.(*ast.IdentifierRef)
	if !ok {
		return false
	}
	return left.Name == right.Name
}
