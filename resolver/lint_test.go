package resolver

import (
	"testing"

	"vesper/ast"
)

func TestCheckObviousMistakesFlagsSelfAssignment(t *testing.T) {
	target := ast.NewIdentifierRef(3, 1, "x")
	value := ast.NewIdentifierRef(3, 1, "x")
	assign := ast.NewAssign(3, 1, target, value, ast.AssignPlain)

	diags := CheckObviousMistakes([]ast.Node{assign})
	if len(diags) != 1 || diags[0].Severity != "warning" {
		t.Fatalf("diags = %+v, want one self-assignment warning", diags)
	}
}

func TestCheckObviousMistakesFlagsAlwaysTrueCondition(t *testing.T) {
	cond := ast.NewLiteral(5, 2, ast.ConstBool, true)
	ifNode := ast.NewIf(5, 2, []*ast.IfClause{{Cond: cond, Body: nil}})

	diags := CheckObviousMistakes([]ast.Node{ifNode})
	if len(diags) != 1 {
		t.Fatalf("diags = %+v, want one always-true warning", diags)
	}
}

func TestCheckObviousMistakesIgnoresNormalAssignment(t *testing.T) {
	assign := ast.NewAssign(1, 0, ast.NewIdentifierRef(1, 0, "x"), ast.NewIdentifierRef(1, 0, "y"), ast.AssignPlain)
	diags := CheckObviousMistakes([]ast.Node{assign})
	if len(diags) != 0 {
		t.Errorf("diags = %+v, want none", diags)
	}
}

func TestCheckObviousMistakesIgnoresNonLiteralCondition(t *testing.T) {
	ifNode := ast.NewIf(1, 0, []*ast.IfClause{{Cond: ast.NewIdentifierRef(1, 0, "flag"), Body: nil}})
	diags := CheckObviousMistakes([]ast.Node{ifNode})
	if len(diags) != 0 {
		t.Errorf("diags = %+v, want none for a non-literal condition", diags)
	}
}
