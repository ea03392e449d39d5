package lower

import (
	"testing"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/ir"
	"github.com/cwbudde/go-lift/internal/semantic"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

func lowerProgram(t *testing.T, tree ast.Expr) *ir.Module {
	t.Helper()
	table := symbols.NewTable()
	bound, err := semantic.Bind(tree, table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := semantic.Check(bound, table); err != nil {
		t.Fatalf("Check: %v", err)
	}
	mod, err := Lower(bound, table)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return mod
}

func mainFunc(mod *ir.Module) *ir.Func {
	for _, fn := range mod.Funcs {
		if fn.Name == "main" {
			return fn
		}
	}
	return nil
}

func TestLowerArithmeticProducesI64Add(t *testing.T) {
	mod := lowerProgram(t, ast.Prog(ast.BinOp("+", ast.Int(2), ast.Int(3))))
	main := mainFunc(mod)
	found := false
	for _, in := range main.Body {
		if in.Op == ir.OpI64Add {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an OpI64Add in main body, got %+v", main.Body)
	}
}

func TestLowerFltPromotionConvertsIntOperand(t *testing.T) {
	mod := lowerProgram(t, ast.Prog(ast.BinOp("+", ast.Int(1), ast.Flt(2.5))))
	main := mainFunc(mod)
	sawConvert, sawAdd := false, false
	for _, in := range main.Body {
		if in.Op == ir.OpF64ConvertI64S {
			sawConvert = true
		}
		if in.Op == ir.OpF64Add {
			sawAdd = true
		}
	}
	if !sawConvert || !sawAdd {
		t.Errorf("expected Int->Flt conversion and F64Add, got %+v", main.Body)
	}
}

func TestLowerStringLiteralInternsAndCallsStrConst(t *testing.T) {
	mod := lowerProgram(t, ast.Prog(ast.Str("hi")))
	if len(mod.Strings) != 1 || mod.Strings[0] != "hi" {
		t.Fatalf("Strings = %v, want [\"hi\"]", mod.Strings)
	}
	main := mainFunc(mod)
	found := false
	for _, in := range main.Body {
		if in.Op == ir.OpCall && in.Callee == "lift_str_const" {
			found = true
		}
	}
	if !found {
		t.Error("expected a call to lift_str_const")
	}
}

func TestLowerIfElseProducesStructuredIf(t *testing.T) {
	mod := lowerProgram(t, ast.Prog(ast.IfElse(ast.Bool(true), ast.Int(1), ast.Int(2))))
	main := mainFunc(mod)
	found := false
	for _, in := range main.Body {
		if in.Op == ir.OpIf {
			found = true
			if len(in.Else) == 0 {
				t.Error("expected a non-empty else branch")
			}
		}
	}
	if !found {
		t.Error("expected an OpIf in main body")
	}
}

func TestLowerWhileProducesLoopWithBackwardBranch(t *testing.T) {
	prog := ast.Prog(
		ast.LetVar("i", ast.Int(0)),
		ast.WhileLoop(ast.BinOp("<", ast.Id("i"), ast.Int(3)), ast.AssignTo("i", ast.BinOp("+", ast.Id("i"), ast.Int(1)))),
	)
	mod := lowerProgram(t, prog)
	main := mainFunc(mod)
	found := false
	for _, in := range main.Body {
		if in.Op == ir.OpLoop {
			found = true
		}
	}
	if !found {
		t.Error("expected an OpLoop in main body")
	}
}

func TestLowerRecursiveFunctionCreatesCallableFunc(t *testing.T) {
	body := ast.IfElse(
		ast.BinOp("<=", ast.Id("n"), ast.Int(0)),
		ast.Int(0),
		ast.BinOp("+", ast.Id("n"), ast.CallFnLabeled("sum", "n", ast.BinOp("-", ast.Id("n"), ast.Int(1)))),
	)
	fn := ast.DefFn("sum", ast.Fn([]ast.Param{ast.P("n", types.Int{})}, types.Int{}, body))
	prog := ast.Prog(fn, ast.CallFnLabeled("sum", "n", ast.Int(3)))

	mod := lowerProgram(t, prog)
	if len(mod.Funcs) != 2 {
		t.Fatalf("expected 2 funcs (sum + main), got %d", len(mod.Funcs))
	}
	main := mainFunc(mod)
	sawCall := false
	for _, in := range main.Body {
		if in.Op == ir.OpCall && in.Callee != "" && in.Callee != "lift_str_const" {
			sawCall = true
		}
	}
	if !sawCall {
		t.Error("expected main to call the lowered sum function")
	}
}

func TestLowerListLiteralPushesEachElement(t *testing.T) {
	mod := lowerProgram(t, ast.Prog(ast.ListLit(ast.Int(1), ast.Int(2), ast.Int(3))))
	main := mainFunc(mod)
	count := 0
	for _, in := range main.Body {
		if in.Op == ir.OpCall && in.Callee == "lift_list_push" {
			count++
		}
	}
	if count != 3 {
		t.Errorf("expected 3 lift_list_push calls, got %d", count)
	}
}

func TestLowerOutputDispatchesByType(t *testing.T) {
	mod := lowerProgram(t, ast.Prog(ast.Out(ast.Int(1), ast.Str("x"), ast.Bool(true))))
	main := mainFunc(mod)
	var callees []string
	for _, in := range main.Body {
		if in.Op == ir.OpCall {
			callees = append(callees, in.Callee)
		}
	}
	want := map[string]bool{"lift_print_int": true, "lift_print_str": true, "lift_print_bool": true, "lift_str_const": true}
	for _, c := range callees {
		if !want[c] {
			t.Errorf("unexpected callee %q", c)
		}
	}
}
