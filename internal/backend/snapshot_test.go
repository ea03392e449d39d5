package backend

import (
	"context"
	"fmt"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/lower"
	"github.com/cwbudde/go-lift/internal/semantic"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

// runProgram binds, checks, lowers, and JIT-compiles tree, then runs the
// result and returns what main returned plus everything it wrote via
// output. Every seed scenario below goes through this exact pipeline, so
// a snapshot mismatch means either the IR lowering or the wazero-backed
// runtime changed what a bound program actually produces.
func runProgram(t *testing.T, tree ast.Expr) (int64, string) {
	t.Helper()
	table := symbols.NewTable()
	bound, err := semantic.Bind(tree, table)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := semantic.Check(bound, table); err != nil {
		t.Fatalf("Check: %v", err)
	}
	mod, err := lower.Lower(bound, table)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	ctx := context.Background()
	driver := NewDriver(ctx)
	defer driver.Close(ctx)

	program, err := driver.Compile(ctx, mod)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result, output, err := program.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result, output
}

// TestSeedScenariosAreDeterministic snapshots the output stream of every
// spec.md §8 seed scenario end to end through the JIT, the same
// regression-harness shape as the teacher's fixture-based snapshot
// suite, scaled down to this module's handful of built-in programs
// since there is no parser here to replay a fixture corpus through.
func TestSeedScenariosAreDeterministic(t *testing.T) {
	scenarios := map[string]func() ast.Expr{
		"arithmetic": func() ast.Expr {
			return ast.Prog(ast.Out(ast.BinOp("+", ast.Int(5), ast.Int(3))))
		},
		"strings": func() ast.Expr {
			return ast.Prog(ast.Out(ast.BinOp("+", ast.Str("Hello"), ast.Str(" World"))))
		},
		"mutable_local": func() ast.Expr {
			return ast.Prog(
				ast.LetVar("z", ast.Int(5)),
				ast.AssignTo("z", ast.Int(10)),
				ast.Out(ast.Id("z")),
			)
		},
		"recursive_sum": func() ast.Expr {
			body := ast.IfElse(
				ast.BinOp("<=", ast.Id("n"), ast.Int(0)),
				ast.Int(0),
				ast.BinOp("+", ast.Id("n"), ast.CallFnLabeled("sum", "n", ast.BinOp("-", ast.Id("n"), ast.Int(1)))),
			)
			fn := ast.DefFn("sum", ast.Fn([]ast.Param{ast.P("n", types.Int{})}, types.Int{}, body))
			return ast.Prog(fn, ast.Out(ast.CallFnLabeled("sum", "n", ast.Int(3))))
		},
		"list_index": func() ast.Expr {
			return ast.Prog(ast.Out(ast.Idx(ast.ListLit(ast.Int(10), ast.Int(20), ast.Int(30)), ast.Int(1))))
		},
		"map_index": func() ast.Expr {
			keys := []ast.Expr{ast.Int(1), ast.Int(2)}
			values := []ast.Expr{ast.Str("one"), ast.Str("two")}
			return ast.Prog(ast.Out(ast.Idx(ast.MapLit(types.Int{}, types.Str{}, keys, values), ast.Int(2))))
		},
		"bool_list_output": func() ast.Expr {
			return ast.Prog(ast.Out(ast.ListLit(ast.Bool(true), ast.Bool(false))))
		},
		"flt_list_output": func() ast.Expr {
			return ast.Prog(ast.Out(ast.ListLit(ast.Flt(1.5), ast.Flt(2.5))))
		},
		"range_output": func() ast.Expr {
			return ast.Prog(ast.Out(ast.RangeOf(ast.Int(1), ast.Int(5))))
		},
	}

	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	for _, name := range names {
		build := scenarios[name]
		t.Run(name, func(t *testing.T) {
			result, output := runProgram(t, build())
			snaps.MatchSnapshot(t, fmt.Sprintf("%s_result", name), result)
			snaps.MatchSnapshot(t, fmt.Sprintf("%s_output", name), output)
		})
	}
}
