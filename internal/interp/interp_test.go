package interp

import (
	"testing"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/semantic"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

func run(t *testing.T, tree ast.Expr) (Value, string) {
	t.Helper()
	table := symbols.NewTable()
	bound, err := semantic.Bind(tree, table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := semantic.Check(bound, table); err != nil {
		t.Fatalf("Check: %v", err)
	}
	v, out, err := New(table).Run(bound)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v, out
}

func TestArithmetic(t *testing.T) {
	v, _ := run(t, ast.Prog(ast.BinOp("+", ast.Int(2), ast.BinOp("*", ast.Int(3), ast.Int(4)))))
	if iv, ok := v.(IntVal); !ok || iv != 14 {
		t.Fatalf("got %v, want IntVal(14)", v)
	}
}

func TestFltPromotion(t *testing.T) {
	v, _ := run(t, ast.Prog(ast.BinOp("+", ast.Int(1), ast.Flt(2.5))))
	if fv, ok := v.(FltVal); !ok || fv != 3.5 {
		t.Fatalf("got %v, want FltVal(3.5)", v)
	}
}

func TestIfElse(t *testing.T) {
	v, _ := run(t, ast.Prog(ast.IfElse(ast.BinOp("<", ast.Int(1), ast.Int(2)), ast.Int(10), ast.Int(20))))
	if iv, ok := v.(IntVal); !ok || iv != 10 {
		t.Fatalf("got %v, want IntVal(10)", v)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	prog := ast.Prog(
		ast.LetVar("i", ast.Int(0)),
		ast.LetVar("total", ast.Int(0)),
		ast.WhileLoop(
			ast.BinOp("<", ast.Id("i"), ast.Int(5)),
			ast.Blk(
				ast.AssignTo("total", ast.BinOp("+", ast.Id("total"), ast.Id("i"))),
				ast.AssignTo("i", ast.BinOp("+", ast.Id("i"), ast.Int(1))),
			),
		),
		ast.Id("total"),
	)
	v, _ := run(t, prog)
	if iv, ok := v.(IntVal); !ok || iv != 10 {
		t.Fatalf("got %v, want IntVal(10) (0+1+2+3+4)", v)
	}
}

func TestRecursiveFactorial(t *testing.T) {
	body := ast.IfElse(
		ast.BinOp("<=", ast.Id("n"), ast.Int(0)),
		ast.Int(1),
		ast.BinOp("*", ast.Id("n"), ast.CallFnLabeled("fact", "n", ast.BinOp("-", ast.Id("n"), ast.Int(1)))),
	)
	fn := ast.DefFn("fact", ast.Fn([]ast.Param{ast.P("n", types.Int{})}, types.Int{}, body))
	prog := ast.Prog(fn, ast.CallFnLabeled("fact", "n", ast.Int(5)))

	v, _ := run(t, prog)
	if iv, ok := v.(IntVal); !ok || iv != 120 {
		t.Fatalf("fact(5) = %v, want IntVal(120)", v)
	}
}

func TestRecursiveFactorialBaseCase(t *testing.T) {
	body := ast.IfElse(
		ast.BinOp("<=", ast.Id("n"), ast.Int(0)),
		ast.Int(1),
		ast.BinOp("*", ast.Id("n"), ast.CallFnLabeled("fact", "n", ast.BinOp("-", ast.Id("n"), ast.Int(1)))),
	)
	fn := ast.DefFn("fact", ast.Fn([]ast.Param{ast.P("n", types.Int{})}, types.Int{}, body))
	prog := ast.Prog(fn, ast.CallFnLabeled("fact", "n", ast.Int(0)))

	v, _ := run(t, prog)
	if iv, ok := v.(IntVal); !ok || iv != 1 {
		t.Fatalf("fact(0) = %v, want IntVal(1)", v)
	}
}

func TestListIndexAndLength(t *testing.T) {
	prog := ast.Prog(
		ast.LetVar("xs", ast.ListLit(ast.Int(10), ast.Int(20), ast.Int(30))),
		ast.BinOp("+", ast.Len(ast.Id("xs")), ast.Idx(ast.Id("xs"), ast.Int(1))),
	)
	v, _ := run(t, prog)
	if iv, ok := v.(IntVal); !ok || iv != 23 {
		t.Fatalf("got %v, want IntVal(23) (len=3 + xs[1]=20)", v)
	}
}

func TestListIndexOutOfRangeErrors(t *testing.T) {
	table := symbols.NewTable()
	prog := ast.Prog(ast.Idx(ast.ListLit(ast.Int(1)), ast.Int(5)))
	bound, err := semantic.Bind(prog, table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := semantic.Check(bound, table); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if _, _, err := New(table).Run(bound); err == nil {
		t.Error("expected an out-of-range error")
	}
}

func TestMapGetAndSet(t *testing.T) {
	prog := ast.Prog(
		ast.LetVar("m", ast.MapLit(types.Str{}, types.Int{}, []ast.Expr{ast.Str("a"), ast.Str("b")}, []ast.Expr{ast.Int(1), ast.Int(2)})),
		ast.Idx(ast.Id("m"), ast.Str("b")),
	)
	v, _ := run(t, prog)
	if iv, ok := v.(IntVal); !ok || iv != 2 {
		t.Fatalf("got %v, want IntVal(2)", v)
	}
}

func TestOutputDispatchesByType(t *testing.T) {
	_, out := run(t, ast.Prog(ast.Out(ast.Int(1), ast.Str("x"), ast.Bool(true))))
	if out != "1xtrue" {
		t.Fatalf("output = %q, want %q", out, "1xtrue")
	}
}

func TestStringConcatAndUpper(t *testing.T) {
	_, out := run(t, ast.Prog(ast.Out(ast.BinOp("+", ast.Str("hi "), ast.CallFnLabeled("upper", "", ast.Str("there"))))))
	if out != "hi THERE" {
		t.Fatalf("output = %q, want %q", out, "hi THERE")
	}
}
