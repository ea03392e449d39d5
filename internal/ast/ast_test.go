package ast

import (
	"testing"

	"github.com/cwbudde/go-lift/internal/errors"
	"github.com/cwbudde/go-lift/internal/types"
)

func TestConstructorsBuildExpectedShape(t *testing.T) {
	prog := Prog(
		LetVal("x", Int(5)),
		LetVar("y", Int(10)),
		BinOp("*", Id("x"), Id("y")),
	)
	if len(prog.Body) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(prog.Body))
	}
	let, ok := prog.Body[0].(*Let)
	if !ok || let.Mutable {
		t.Errorf("first statement should be an immutable Let, got %#v", prog.Body[0])
	}
	varLet, ok := prog.Body[1].(*Let)
	if !ok || !varLet.Mutable {
		t.Errorf("second statement should be a mutable Let, got %#v", prog.Body[1])
	}
}

func TestUnitSentinelDistinctFromNil(t *testing.T) {
	ifExpr := IfThen(Bool(true), Int(42))
	if _, ok := ifExpr.FinalElse.(*Unit); !ok {
		t.Errorf("expected FinalElse to be the Unit sentinel, got %#v", ifExpr.FinalElse)
	}
}

func TestPosReturnsSpan(t *testing.T) {
	lit := &IntLit{Value: 1, Span: errors.Span{Line: 4, Column: 2}}
	if lit.Pos() != (errors.Span{Line: 4, Column: 2}) {
		t.Errorf("Pos() = %+v", lit.Pos())
	}
}

func TestStructLiteralFieldOrder(t *testing.T) {
	lit := StructLit("Point", map[string]Expr{"x": Int(1), "y": Int(2)}, "x", "y")
	if len(lit.FieldOrder) != 2 || lit.FieldOrder[0] != "x" {
		t.Errorf("unexpected field order: %v", lit.FieldOrder)
	}
}

func TestListLiteralDefaultsToUnsolved(t *testing.T) {
	lit := ListLit(Int(1), Int(2))
	if _, ok := lit.ElemType.(types.Unsolved); !ok {
		t.Errorf("expected Unsolved element type by default, got %v", lit.ElemType)
	}
}
