package semantic

import (
	"testing"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

func bindAndCheck(t *testing.T, tree ast.Expr) (ast.Expr, types.Type, *symbols.Table) {
	t.Helper()
	table := symbols.NewTable()
	bound, err := Bind(tree, table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	typ, err := Check(bound, table)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return bound, typ, table
}

func TestArithmeticPromotion(t *testing.T) {
	_, typ, _ := bindAndCheck(t, ast.Prog(ast.BinOp("+", ast.Int(5), ast.Int(3))))
	if !types.Equals(typ, types.Int{}) {
		t.Errorf("5 + 3 : %v, want Int", typ)
	}

	_, typ, _ = bindAndCheck(t, ast.Prog(ast.BinOp("-", ast.Flt(10.5), ast.Flt(3.5))))
	if !types.Equals(typ, types.Flt{}) {
		t.Errorf("10.5 - 3.5 : %v, want Flt", typ)
	}

	_, typ, _ = bindAndCheck(t, ast.Prog(ast.BinOp("+", ast.Int(1), ast.Flt(2.0))))
	if !types.Equals(typ, types.Flt{}) {
		t.Errorf("Int + Flt : %v, want Flt (promotion)", typ)
	}
}

func TestStringConcatAndEquality(t *testing.T) {
	_, typ, _ := bindAndCheck(t, ast.Prog(ast.BinOp("+", ast.Str("Hello"), ast.Str(" World"))))
	if !types.Equals(typ, types.Str{}) {
		t.Errorf("Str + Str : %v, want Str", typ)
	}

	_, typ, _ = bindAndCheck(t, ast.Prog(ast.BinOp("=", ast.Str("a"), ast.Str("a"))))
	if !types.Equals(typ, types.Bool{}) {
		t.Errorf("Str = Str : %v, want Bool", typ)
	}
}

func TestLetAndMutableAssign(t *testing.T) {
	prog := ast.Prog(
		ast.LetVal("x", ast.Int(5)),
		ast.LetVal("y", ast.Int(10)),
		ast.BinOp("*", ast.Id("x"), ast.Id("y")),
	)
	_, typ, _ := bindAndCheck(t, prog)
	if !types.Equals(typ, types.Int{}) {
		t.Errorf("x * y : %v, want Int", typ)
	}

	mutProg := ast.Prog(
		ast.LetVar("z", ast.Int(5)),
		ast.AssignTo("z", ast.Int(10)),
		ast.Id("z"),
	)
	_, typ, _ = bindAndCheck(t, mutProg)
	if !types.Equals(typ, types.Int{}) {
		t.Errorf("z after assign : %v, want Int", typ)
	}
}

func TestImmutableAssignIsRejected(t *testing.T) {
	prog := ast.Prog(
		ast.LetVal("z", ast.Int(5)),
		ast.AssignTo("z", ast.Int(10)),
	)
	table := symbols.NewTable()
	bound, err := Bind(prog, table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := Check(bound, table); err == nil {
		t.Error("expected assignment to immutable binding to be rejected")
	}
}

func TestRecursiveFunctionAndUFCSCall(t *testing.T) {
	// function sum(n: Int): Int { if n <= 0 { 0 } else { n + sum(n: n - 1) } }
	// sum(n: 3)
	body := ast.IfElse(
		ast.BinOp("<=", ast.Id("n"), ast.Int(0)),
		ast.Int(0),
		ast.BinOp("+", ast.Id("n"), ast.CallFnLabeled("sum", "n", ast.BinOp("-", ast.Id("n"), ast.Int(1)))),
	)
	fn := ast.DefFn("sum", ast.Fn([]ast.Param{ast.P("n", types.Int{})}, types.Int{}, body))
	prog := ast.Prog(fn, ast.CallFnLabeled("sum", "n", ast.Int(3)))

	_, typ, _ := bindAndCheck(t, prog)
	if !types.Equals(typ, types.Int{}) {
		t.Errorf("sum(n: 3) : %v, want Int", typ)
	}
}

func TestListIndexAndMapIndex(t *testing.T) {
	listIdx := ast.Idx(ast.ListLit(ast.Int(10), ast.Int(20), ast.Int(30)), ast.Int(1))
	_, typ, _ := bindAndCheck(t, ast.Prog(listIdx))
	if !types.Equals(typ, types.Int{}) {
		t.Errorf("[10,20,30][1] : %v, want Int", typ)
	}

	mapLit := ast.MapLit(types.Int{}, types.Str{},
		[]ast.Expr{ast.Int(1), ast.Int(2)},
		[]ast.Expr{ast.Str("one"), ast.Str("two")},
	)
	_, typ, _ = bindAndCheck(t, ast.Prog(ast.Idx(mapLit, ast.Int(2))))
	if !types.Equals(typ, types.Str{}) {
		t.Errorf("map[2] : %v, want Str", typ)
	}
}

func TestFltMapKeyRejected(t *testing.T) {
	mapLit := ast.MapLit(types.Flt{}, types.Str{},
		[]ast.Expr{ast.Flt(1.0)},
		[]ast.Expr{ast.Str("one")},
	)
	table := symbols.NewTable()
	bound, err := Bind(ast.Prog(mapLit), table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := Check(bound, table); err == nil {
		t.Error("expected Flt map key to be rejected")
	}
}

func TestEmptyListWithoutAnnotationFailsInference(t *testing.T) {
	table := symbols.NewTable()
	bound, err := Bind(ast.Prog(ast.ListLit()), table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := Check(bound, table); err == nil {
		t.Error("expected empty list literal without annotation to fail")
	}
}

func TestTypeAliasRoundTrip(t *testing.T) {
	prog := ast.Prog(
		ast.DefType("Age", types.Int{}),
		ast.LetTyped("a", types.TypeRef{Name: "Age"}, ast.Int(25)),
		ast.Id("a"),
	)
	_, typ, _ := bindAndCheck(t, prog)
	if !types.Equals(typ, types.TypeRef{Name: "Age"}) {
		t.Errorf("a : %v, want TypeRef{Age}", typ)
	}
}

func TestElseIfChain(t *testing.T) {
	// if 85 >= 90 { 'A' } else if 85 >= 80 { 'B' } else { 'C' }
	expr := ast.IfElse(
		ast.BinOp(">=", ast.Int(85), ast.Int(90)),
		ast.Str("A"),
		ast.IfElse(
			ast.BinOp(">=", ast.Int(85), ast.Int(80)),
			ast.Str("B"),
			ast.Str("C"),
		),
	)
	_, typ, _ := bindAndCheck(t, ast.Prog(expr))
	if !types.Equals(typ, types.Str{}) {
		t.Errorf("if-else-if chain : %v, want Str", typ)
	}
}

func TestIfWithoutElseFailsInferenceInValuePosition(t *testing.T) {
	// `let x = if true { 42 }` has no annotation, so pass 1 must infer x's
	// type from the if-expression — which has no value because it has no
	// else branch.
	prog := ast.Prog(ast.LetVal("x", ast.IfThen(ast.Bool(true), ast.Int(42))))
	table := symbols.NewTable()
	if _, err := Bind(prog, table); err == nil {
		t.Error("expected if-without-else in value position to fail inference")
	}
}

func TestStructLiteralFieldValidation(t *testing.T) {
	point := types.Struct{Name: "Point", Fields: []types.Field{
		{Name: "x", Type: types.Int{}},
		{Name: "y", Type: types.Int{}},
	}}
	prog := ast.Prog(
		ast.DefType("Point", point),
		ast.CallFnLabeled("Point", "x", ast.Int(1), "y", ast.Int(2)),
	)
	_, typ, _ := bindAndCheck(t, prog)
	if !types.Equals(typ, types.TypeRef{Name: "Point"}) {
		t.Errorf("Point(x: 1, y: 2) : %v, want TypeRef{Point}", typ)
	}
}

func TestStructLiteralMissingFieldErrors(t *testing.T) {
	point := types.Struct{Name: "Point", Fields: []types.Field{
		{Name: "x", Type: types.Int{}},
		{Name: "y", Type: types.Int{}},
	}}
	prog := ast.Prog(
		ast.DefType("Point", point),
		ast.CallFnLabeled("Point", "x", ast.Int(1)),
	)
	table := symbols.NewTable()
	bound, err := Bind(prog, table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := Check(bound, table); err == nil {
		t.Error("expected missing struct field to error")
	}
}

func TestMethodCallAndUFCSAgree(t *testing.T) {
	ageRef := types.TypeRef{Name: "Age"}
	doubleBody := ast.BinOp("*", ast.Id("self"), ast.Int(2))

	methodProg := ast.Prog(
		ast.DefType("Age", types.Int{}),
		ast.DefFn("double", ast.Method(ageRef, nil, types.Int{}, doubleBody)),
		ast.Blk(
			ast.LetTyped("a", ageRef, ast.Int(5)),
			ast.CallMethod(ast.Id("a"), "double"),
		),
	)
	_, methodType, _ := bindAndCheck(t, methodProg)

	ufcsProg := ast.Prog(
		ast.DefType("Age", types.Int{}),
		ast.DefFn("double", ast.Method(ageRef, nil, types.Int{}, doubleBody)),
		ast.Blk(
			ast.LetTyped("b", ageRef, ast.Int(5)),
			ast.CallFnLabeled("double", "self", ast.Id("b")),
		),
	)
	_, ufcsType, _ := bindAndCheck(t, ufcsProg)

	if !types.Equals(methodType, ufcsType) {
		t.Errorf("method call type %v != UFCS call type %v", methodType, ufcsType)
	}
}

func TestBuiltinUpperLowerFirstLast(t *testing.T) {
	_, typ, _ := bindAndCheck(t, ast.Prog(ast.CallMethod(ast.Str("hi"), "upper")))
	if !types.Equals(typ, types.Str{}) {
		t.Errorf("'hi'.upper() : %v, want Str", typ)
	}

	_, typ, _ = bindAndCheck(t, ast.Prog(ast.CallMethod(ast.ListLit(ast.Int(1), ast.Int(2)), "first")))
	if !types.Equals(typ, types.Int{}) {
		t.Errorf("[1,2].first() : %v, want Int", typ)
	}
}

func TestDuplicateDeclarationInSameScopeIsNameError(t *testing.T) {
	prog := ast.Prog(ast.LetVal("x", ast.Int(1)), ast.LetVal("x", ast.Int(2)))
	table := symbols.NewTable()
	if _, err := Bind(prog, table); err == nil {
		t.Error("expected duplicate declaration to be a bind-time error")
	}
}
