package cmd

import (
	"sort"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/types"
)

// programs is the built-in registry `lift run`/`lift compile` select
// from by name, in place of reading source files from disk. Each entry
// is one of spec.md §8's seed scenarios, built directly with
// internal/ast's testutil constructors the same way this module's own
// test suite does — the only way to produce an ast.Expr without a
// parser.
var programs = map[string]func() ast.Expr{
	"arithmetic": func() ast.Expr {
		return ast.Prog(ast.Out(ast.BinOp("+", ast.Int(5), ast.Int(3))))
	},
	"strings": func() ast.Expr {
		return ast.Prog(ast.Out(ast.BinOp("+", ast.Str("Hello"), ast.Str(" World"))))
	},
	"mutable-local": func() ast.Expr {
		return ast.Prog(
			ast.LetVar("z", ast.Int(5)),
			ast.AssignTo("z", ast.Int(10)),
			ast.Out(ast.Id("z")),
		)
	},
	"recursive-sum": func() ast.Expr {
		body := ast.IfElse(
			ast.BinOp("<=", ast.Id("n"), ast.Int(0)),
			ast.Int(0),
			ast.BinOp("+", ast.Id("n"), ast.CallFnLabeled("sum", "n", ast.BinOp("-", ast.Id("n"), ast.Int(1)))),
		)
		fn := ast.DefFn("sum", ast.Fn([]ast.Param{ast.P("n", types.Int{})}, types.Int{}, body))
		return ast.Prog(fn, ast.Out(ast.CallFnLabeled("sum", "n", ast.Int(3))))
	},
	"list-index": func() ast.Expr {
		return ast.Prog(ast.Out(ast.Idx(ast.ListLit(ast.Int(10), ast.Int(20), ast.Int(30)), ast.Int(1))))
	},
	"map-index": func() ast.Expr {
		keys := []ast.Expr{ast.Int(1), ast.Int(2)}
		values := []ast.Expr{ast.Str("one"), ast.Str("two")}
		return ast.Prog(ast.Out(ast.Idx(ast.MapLit(types.Int{}, types.Str{}, keys, values), ast.Int(2))))
	},
	"type-alias": func() ast.Expr {
		return ast.Prog(
			ast.DefType("Age", types.Int{}),
			ast.LetTyped("a", types.TypeRef{Name: "Age"}, ast.Int(25)),
			ast.Out(ast.Id("a")),
		)
	},
	"else-if-chain": func() ast.Expr {
		grade := ast.IfElse(
			ast.BinOp(">=", ast.Int(85), ast.Int(90)),
			ast.Str("A"),
			ast.IfElse(ast.BinOp(">=", ast.Int(85), ast.Int(80)), ast.Str("B"), ast.Str("C")),
		)
		return ast.Prog(ast.Out(grade))
	},
}

// programNames returns every registered program name, sorted for
// stable --help/listing output.
func programNames() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
