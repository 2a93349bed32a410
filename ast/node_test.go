package ast

import (
	"testing"

	"vesper/token"
)

func TestNewNodeEvalTempIDDefaultsToMinusOne(t *testing.T) {
	n := NewIdentifierRef(1, 0, "x")
	if n.Storage.EvalTempID != -1 {
		t.Errorf("EvalTempID = %d, want -1", n.Storage.EvalTempID)
	}
}

func TestKindStringCoversEveryVariant(t *testing.T) {
	kinds := []Kind{
		KLiteral, KIdentifierRef, KVarDef, KAssign, KFuncDef, KClassDef, KIf,
		KWhile, KFor, KDo, KWith, KRaise, KReturn, KBreak, KContinue, KAwait,
		KImport, KCall, KCallStmt, KBinaryOp, KUnaryOp, KList, KSet, KMap,
		KVector, KWithClause, KGiven,
	}
	for _, k := range kinds {
		if k.String() == "Unknown" {
			t.Errorf("Kind(%d).String() = Unknown, want a real name", k)
		}
	}
}

func TestAssignOpFromToken(t *testing.T) {
	tests := []struct {
		tt   token.TokenType
		want AssignOp
	}{
		{token.PLUS_ASSIGN, AssignAdd},
		{token.MINUS_ASSIGN, AssignSub},
		{token.MULT_ASSIGN, AssignMul},
		{token.DIV_ASSIGN, AssignDiv},
		{token.ASSIGN, AssignPlain},
	}
	for _, tt := range tests {
		if got := AssignOpFromToken(tt.tt); got != tt.want {
			t.Errorf("AssignOpFromToken(%v) = %v, want %v", tt.tt, got, tt.want)
		}
	}
}

func TestBinOpForAssign(t *testing.T) {
	tests := []struct {
		op   AssignOp
		want BinOp
	}{
		{AssignAdd, OpAdd},
		{AssignSub, OpSub},
		{AssignMul, OpMul},
		{AssignDiv, OpDiv},
	}
	for _, tt := range tests {
		if got := BinOpForAssign(tt.op); got != tt.want {
			t.Errorf("BinOpForAssign(%v) = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func TestBinOpForAssignPanicsOnPlain(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("BinOpForAssign(AssignPlain) did not panic")
		}
	}()
	BinOpForAssign(AssignPlain)
}

func TestParentLinkageRoundTrip(t *testing.T) {
	child := NewLiteral(1, 0, ConstInt, int64(1))
	parent := NewReturn(1, 0, child)
	child.SetParent(parent)
	if child.GetParent() != Node(parent) {
		t.Errorf("GetParent() = %v, want parent", child.GetParent())
	}
}
