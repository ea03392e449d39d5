// Package lower translates a bound, checked syntax tree into the typed
// IR internal/backend compiles. It performs every rule spec.md
// §4.4.1-§4.4.3 describes: literal and heap-allocation lowering,
// type-directed arithmetic dispatch, variable load/store through a
// (scope,slot)-to-local map, structured if/while control flow, and
// call/method-call marshaling against the runtime's C-linkage-shaped
// functions.
package lower

import (
	"fmt"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/ir"
	"github.com/cwbudde/go-lift/internal/semantic"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

// runtimeImports is the fixed set of host functions internal/runtime
// implements and internal/backend registers under the "env" module.
// Lowering references these purely by name; resolution to a module
// function index happens at encode time.
var runtimeImports = []ir.Import{
	{Name: "lift_abort", Params: []ir.Type{ir.I64, ir.I64}},
	{Name: "lift_str_const", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_str_concat", Params: []ir.Type{ir.I64, ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_str_eq", Params: []ir.Type{ir.I64, ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_str_len", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_str_upper", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_str_lower", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_list_new", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_list_push", Params: []ir.Type{ir.I64, ir.I64}},
	{Name: "lift_list_len", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_list_get", Params: []ir.Type{ir.I64, ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_list_set", Params: []ir.Type{ir.I64, ir.I64, ir.I64}},
	{Name: "lift_list_first", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_list_last", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_map_new", Params: []ir.Type{ir.I64, ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_map_set", Params: []ir.Type{ir.I64, ir.I64, ir.I64}},
	{Name: "lift_map_get", Params: []ir.Type{ir.I64, ir.I64}, Results: []ir.Type{ir.I64, ir.I64}},
	{Name: "lift_map_len", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_range_new", Params: []ir.Type{ir.I64, ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_struct_new", Params: []ir.Type{ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_struct_set_field", Params: []ir.Type{ir.I64, ir.I64, ir.I64}},
	{Name: "lift_struct_get_field", Params: []ir.Type{ir.I64, ir.I64}, Results: []ir.Type{ir.I64}},
	{Name: "lift_print_int", Params: []ir.Type{ir.I64}},
	{Name: "lift_print_flt", Params: []ir.Type{ir.I64}},
	{Name: "lift_print_bool", Params: []ir.Type{ir.I64}},
	{Name: "lift_print_str", Params: []ir.Type{ir.I64}},
	{Name: "lift_print_list", Params: []ir.Type{ir.I64}},
	{Name: "lift_print_map", Params: []ir.Type{ir.I64}},
	{Name: "lift_print_range", Params: []ir.Type{ir.I64}},
	{Name: "lift_print_struct", Params: []ir.Type{ir.I64}},
}

// typeTag maps a resolved, concrete element/key/value type to the Tag
// byte spec.md §3.4 requires collections to carry, in the exact order
// internal/runtime.Tag enumerates it (Int, Flt, Bool, Str, List, Map,
// Range, Struct). Lists and maps record this at construction
// (lift_list_new/lift_map_new) so nested-element printing can dispatch
// by the collection's own static type instead of guessing from whatever
// heap object the raw element handle happens to alias.
func typeTag(t types.Type) (int64, error) {
	switch t.(type) {
	case types.Int:
		return 0, nil
	case types.Flt:
		return 1, nil
	case types.Bool:
		return 2, nil
	case types.Str:
		return 3, nil
	case types.List:
		return 4, nil
	case types.Map:
		return 5, nil
	case types.Range:
		return 6, nil
	case types.Struct:
		return 7, nil
	default:
		return 0, fmt.Errorf("lower: %s has no runtime type tag", t)
	}
}

const (
	abortOutOfRange = 1
	abortMissingKey = 2
)

// funcBuilder accumulates the locals a single IR function needs as its
// body is lowered. Params occupy local indices 0..len(Params)-1;
// everything declared by a Let, anywhere in the function's body (across
// nested Block/If/While), gets the next free index the first time it is
// seen.
type funcBuilder struct {
	params  map[symbols.Index]int
	locals  map[symbols.Index]int
	kinds   []ir.Type // one entry per local beyond the params
	nParams int
}

func newFuncBuilder(lambdaScope int, params []ast.Param, table *symbols.Table) *funcBuilder {
	fb := &funcBuilder{params: map[symbols.Index]int{}, locals: map[symbols.Index]int{}}
	for i, p := range params {
		idx, ok := table.FindIndexReachable(p.Name, lambdaScope)
		if !ok {
			idx = symbols.Index{Scope: lambdaScope, Slot: i}
		}
		fb.params[idx] = i
	}
	fb.nParams = len(params)
	return fb
}

func (fb *funcBuilder) localFor(idx symbols.Index, vt ir.Type) int {
	if l, ok := fb.params[idx]; ok {
		return l
	}
	if l, ok := fb.locals[idx]; ok {
		return l
	}
	l := fb.nParams + len(fb.kinds)
	fb.locals[idx] = l
	fb.kinds = append(fb.kinds, vt)
	return l
}

type lowerer struct {
	table *symbols.Table
	mod   *ir.Module
}

// Lower compiles tree (already bound and checked) into an *ir.Module
// whose "main" function is the program entry point spec.md §6.3
// describes: a nullary function returning i64.
func Lower(tree ast.Expr, table *symbols.Table) (*ir.Module, error) {
	mod := &ir.Module{Imports: append([]ir.Import(nil), runtimeImports...)}
	lw := &lowerer{table: table, mod: mod}

	prog, ok := tree.(*ast.Program)
	if !ok {
		return nil, fmt.Errorf("lower: expected *ast.Program at the root, got %T", tree)
	}

	fb := newFuncBuilder(0, nil, table)
	body, resultType, err := lw.lowerBody(prog.Body, fb, 0)
	if err != nil {
		return nil, err
	}
	if resultType == ir.Void {
		body = append(body, ir.Instr{Op: ir.OpI64Const, I64Const: 0})
	} else if resultType != ir.I64 {
		body = coerce(body, resultType, ir.I64)
	}
	mod.Funcs = append(mod.Funcs, &ir.Func{
		Name:    "main",
		Results: []ir.Type{ir.I64},
		Locals:  fb.kinds,
		Body:    body,
	})
	return mod, nil
}

// lowerBody lowers the statements of a Program or Block. Type
// definitions contribute nothing at run time. A DefineFunction is
// compiled into its own *ir.Func (appended to the module) rather than
// contributing instructions to the caller's body.
func (lw *lowerer) lowerBody(stmts []ast.Expr, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	var out []ir.Instr
	last := ir.Void
	for i, stmt := range stmts {
		switch n := stmt.(type) {
		case *ast.DefineType:
			continue
		case *ast.DefineFunction:
			if err := lw.lowerFunction(n); err != nil {
				return nil, ir.Void, err
			}
			last = ir.Void
			continue
		}
		instrs, vt, err := lw.lowerExpr(stmt, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		out = append(out, instrs...)
		if i < len(stmts)-1 && vt != ir.Void {
			out = append(out, ir.Instr{Op: ir.OpDrop})
		}
		last = vt
	}
	return out, last, nil
}

func (lw *lowerer) lowerFunction(n *ast.DefineFunction) error {
	fn := n.Fn
	name := funcIRName(*n.Index)
	fb := newFuncBuilder(fn.Scope, fn.Params, lw.table)

	body, bodyType, err := lw.lowerExpr(fn.Body, fb, fn.Scope)
	if err != nil {
		return err
	}

	var results []ir.Type
	if fn.ReturnType != nil {
		want := irTypeOf(fn.ReturnType, lw.table, fn.Scope)
		body = coerce(body, bodyType, want)
		results = []ir.Type{want}
	}

	params := make([]ir.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = irTypeOf(p.Type, lw.table, fn.Scope)
	}

	lw.mod.Funcs = append(lw.mod.Funcs, &ir.Func{
		Name:    name,
		Params:  params,
		Results: results,
		Locals:  fb.kinds,
		Body:    body,
	})
	return nil
}

func funcIRName(idx symbols.Index) string {
	return fmt.Sprintf("fn$%d_%d", idx.Scope, idx.Slot)
}

// lowerExpr is the single recursive entry point for every expression
// kind. It returns the instructions that compute the expression's
// value (possibly none, for a Unit-yielding node) and the IR type of
// that value (ir.Void standing in for Unit).
func (lw *lowerer) lowerExpr(e ast.Expr, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	switch n := e.(type) {
	case *ast.Unit:
		return nil, ir.Void, nil

	case *ast.IntLit:
		return []ir.Instr{{Op: ir.OpI64Const, I64Const: n.Value}}, ir.I64, nil

	case *ast.FltLit:
		return []ir.Instr{{Op: ir.OpF64Const, F64Const: n.Value}}, ir.F64, nil

	case *ast.BoolLit:
		v := int64(0)
		if n.Value {
			v = 1
		}
		return []ir.Instr{{Op: ir.OpI64Const, I64Const: v}}, ir.I64, nil

	case *ast.StrLit:
		id := lw.mod.InternString(n.Value)
		return []ir.Instr{
			{Op: ir.OpI64Const, I64Const: id},
			{Op: ir.OpCall, Callee: "lift_str_const"},
		}, ir.I64, nil

	case *ast.Var:
		vt := irTypeOf(lw.table.GetSymbolType(*n.Index), lw.table, scope)
		local := fb.localFor(*n.Index, vt)
		return []ir.Instr{{Op: ir.OpLocalGet, Local: local}}, vt, nil

	case *ast.Bin:
		return lw.lowerBin(n, fb, scope)

	case *ast.Un:
		return lw.lowerUn(n, fb, scope)

	case *ast.Let:
		value, vt, err := lw.lowerExpr(n.Value, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		declared := n.Annotation
		if declared == nil {
			declared = lw.table.GetSymbolType(*n.Index)
		}
		want := irTypeOf(declared, lw.table, scope)
		value = coerce(value, vt, want)
		local := fb.localFor(*n.Index, want)
		return append(value, ir.Instr{Op: ir.OpLocalTee, Local: local}), want, nil

	case *ast.Assign:
		value, vt, err := lw.lowerExpr(n.Value, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		want := irTypeOf(lw.table.GetSymbolType(*n.Index), lw.table, scope)
		value = coerce(value, vt, want)
		local := fb.localFor(*n.Index, want)
		return append(value, ir.Instr{Op: ir.OpLocalTee, Local: local}), want, nil

	case *ast.FieldAccess:
		target, _, err := lw.lowerExpr(n.Target, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		fieldType, _ := semantic.Infer(n, lw.table, scope)
		nameID := lw.mod.InternString(n.Field)
		instrs := append(target, ir.Instr{Op: ir.OpI64Const, I64Const: nameID}, ir.Instr{Op: ir.OpCall, Callee: "lift_struct_get_field"})
		want := irTypeOf(fieldType, lw.table, scope)
		if want == ir.F64 {
			instrs = append(instrs, ir.Instr{Op: ir.OpF64ReinterpretI64})
		}
		return instrs, want, nil

	case *ast.FieldAssign:
		v := n.Target.(*ast.Var)
		target := []ir.Instr{{Op: ir.OpLocalGet, Local: fb.localFor(*v.Index, ir.I64)}}
		value, vt, err := lw.lowerExpr(n.Value, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		if vt == ir.F64 {
			value = append(value, ir.Instr{Op: ir.OpI64ReinterpretF64})
		}
		nameID := lw.mod.InternString(n.Field)
		instrs := append(target, ir.Instr{Op: ir.OpI64Const, I64Const: nameID})
		instrs = append(instrs, value...)
		instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_struct_set_field"})
		return instrs, vt, nil

	case *ast.If:
		return lw.lowerIf(n, fb, scope)

	case *ast.While:
		return lw.lowerWhile(n, fb, scope)

	case *ast.Block:
		return lw.lowerBody(n.Body, fb, n.Scope)

	case *ast.Program:
		return lw.lowerBody(n.Body, fb, 0)

	case *ast.Call:
		return lw.lowerCall(n, fb, scope)

	case *ast.MethodCall:
		return lw.lowerMethodCall(n, fb, scope)

	case *ast.StructLiteral:
		return lw.lowerStructLiteral(n, fb, scope)

	case *ast.ListLiteral:
		return lw.lowerListLiteral(n, fb, scope)

	case *ast.MapLiteral:
		return lw.lowerMapLiteral(n, fb, scope)

	case *ast.RangeLit:
		start, _, err := lw.lowerExpr(n.Start, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		end, _, err := lw.lowerExpr(n.End, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		instrs := append(start, end...)
		instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_range_new"})
		return instrs, ir.I64, nil

	case *ast.Index:
		return lw.lowerIndex(n, fb, scope)

	case *ast.Length:
		return lw.lowerLength(n, fb, scope)

	case *ast.Output:
		return lw.lowerOutput(n, fb, scope)

	case *ast.Return:
		value, vt, err := lw.lowerExpr(n.Value, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		return append(value, ir.Instr{Op: ir.OpReturn}), vt, nil

	default:
		return nil, ir.Void, fmt.Errorf("lower: unhandled node type %T", e)
	}
}

func (lw *lowerer) lowerBin(n *ast.Bin, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	if n.Op == ".." {
		start, _, err := lw.lowerExpr(n.Left, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		end, _, err := lw.lowerExpr(n.Right, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		instrs := append(start, end...)
		instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_range_new"})
		return instrs, ir.I64, nil
	}

	leftType, _ := semantic.Infer(n.Left, lw.table, scope)
	rightType, _ := semantic.Infer(n.Right, lw.table, scope)
	_, leftIsStr := resolveAlias(leftType, lw.table, scope).(types.Str)
	_, rightIsStr := resolveAlias(rightType, lw.table, scope).(types.Str)

	left, lvt, err := lw.lowerExpr(n.Left, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	right, rvt, err := lw.lowerExpr(n.Right, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}

	if leftIsStr || rightIsStr {
		instrs := append(left, right...)
		switch n.Op {
		case "+":
			return append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_str_concat"}), ir.I64, nil
		case "=":
			return append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_str_eq"}), ir.I64, nil
		case "<>":
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_str_eq"})
			return append(instrs, ir.Instr{Op: ir.OpI64Eqz}), ir.I64, nil
		}
		return nil, ir.Void, fmt.Errorf("lower: operator %q is not defined for Str", n.Op)
	}

	resultKind := ir.I64
	if lvt == ir.F64 || rvt == ir.F64 {
		resultKind = ir.F64
	}
	left = coerce(left, lvt, resultKind)
	right = coerce(right, rvt, resultKind)
	instrs := append(left, right...)

	op, boolResult, err := binOpcode(n.Op, resultKind)
	if err != nil {
		return nil, ir.Void, err
	}
	instrs = append(instrs, ir.Instr{Op: op})
	if boolResult {
		return instrs, ir.I64, nil
	}
	return instrs, resultKind, nil
}

func binOpcode(op string, kind ir.Type) (ir.Op, bool, error) {
	isF64 := kind == ir.F64
	switch op {
	case "+":
		if isF64 {
			return ir.OpF64Add, false, nil
		}
		return ir.OpI64Add, false, nil
	case "-":
		if isF64 {
			return ir.OpF64Sub, false, nil
		}
		return ir.OpI64Sub, false, nil
	case "*":
		if isF64 {
			return ir.OpF64Mul, false, nil
		}
		return ir.OpI64Mul, false, nil
	case "/":
		if isF64 {
			return ir.OpF64Div, false, nil
		}
		return ir.OpI64DivS, false, nil
	case "<":
		if isF64 {
			return ir.OpF64Lt, true, nil
		}
		return ir.OpI64LtS, true, nil
	case "<=":
		if isF64 {
			return ir.OpF64Le, true, nil
		}
		return ir.OpI64LeS, true, nil
	case ">":
		if isF64 {
			return ir.OpF64Gt, true, nil
		}
		return ir.OpI64GtS, true, nil
	case ">=":
		if isF64 {
			return ir.OpF64Ge, true, nil
		}
		return ir.OpI64GeS, true, nil
	case "=":
		if isF64 {
			return ir.OpF64Eq, true, nil
		}
		return ir.OpI64Eq, true, nil
	case "<>":
		if isF64 {
			return ir.OpF64Ne, true, nil
		}
		return ir.OpI64Ne, true, nil
	case "and":
		return ir.OpI64And, true, nil
	case "or":
		return ir.OpI64Or, true, nil
	}
	return 0, false, fmt.Errorf("lower: unknown binary operator %q", op)
}

func (lw *lowerer) lowerUn(n *ast.Un, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	operand, vt, err := lw.lowerExpr(n.Operand, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	switch n.Op {
	case "not":
		return append(operand, ir.Instr{Op: ir.OpI64Eqz}), ir.I64, nil
	case "-":
		if vt == ir.F64 {
			instrs := append([]ir.Instr{{Op: ir.OpF64Const, F64Const: 0}}, operand...)
			return append(instrs, ir.Instr{Op: ir.OpF64Sub}), ir.F64, nil
		}
		instrs := append([]ir.Instr{{Op: ir.OpI64Const, I64Const: 0}}, operand...)
		return append(instrs, ir.Instr{Op: ir.OpI64Sub}), ir.I64, nil
	}
	return nil, ir.Void, fmt.Errorf("lower: unknown unary operator %q", n.Op)
}

func (lw *lowerer) lowerIf(n *ast.If, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	cond, _, err := lw.lowerExpr(n.Cond, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	then, thenType, err := lw.lowerExpr(n.Then, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}

	if _, isUnit := n.FinalElse.(*ast.Unit); isUnit {
		instrs := append(cond, ir.Instr{Op: ir.OpIf, Result: ir.Void, Body: then})
		return instrs, ir.Void, nil
	}

	els, elseType, err := lw.lowerExpr(n.FinalElse, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	result := thenType
	if thenType == ir.I64 && elseType == ir.F64 {
		result = ir.F64
	}
	then = coerce(then, thenType, result)
	els = coerce(els, elseType, result)

	instrs := append(cond, ir.Instr{Op: ir.OpIf, Result: result, Body: then, Else: els})
	return instrs, result, nil
}

func (lw *lowerer) lowerWhile(n *ast.While, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	cond, _, err := lw.lowerExpr(n.Cond, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	body, bodyType, err := lw.lowerExpr(n.Body, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	if bodyType != ir.Void {
		body = append(body, ir.Instr{Op: ir.OpDrop})
	}
	// loop { if !cond { br 1 }; body; br 0 }
	exitCheck := append(cond, ir.Instr{Op: ir.OpI64Eqz}, ir.Instr{Op: ir.OpIf, Result: ir.Void, Body: []ir.Instr{{Op: ir.OpBr, Depth: 1}}})
	loopBody := append(exitCheck, body...)
	loopBody = append(loopBody, ir.Instr{Op: ir.OpBr, Depth: 0})
	return []ir.Instr{{Op: ir.OpLoop, Result: ir.Void, Body: loopBody}}, ir.Void, nil
}

func (lw *lowerer) lowerIndex(n *ast.Index, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	collType, _ := semantic.Infer(n.Collection, lw.table, scope)
	coll, _, err := lw.lowerExpr(n.Collection, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	key, _, err := lw.lowerExpr(n.Key, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}

	collLocal := fb.localFor(indexTemp(n, 0), ir.I64)
	keyLocal := fb.localFor(indexTemp(n, 1), ir.I64)
	prelude := append(coll, ir.Instr{Op: ir.OpLocalSet, Local: collLocal})
	prelude = append(prelude, key...)
	prelude = append(prelude, ir.Instr{Op: ir.OpLocalSet, Local: keyLocal})

	switch c := resolveAlias(collType, lw.table, scope).(type) {
	case types.List:
		want := irTypeOf(c.Elem, lw.table, scope)
		msgID := lw.mod.InternString("list index out of range")
		outOfRange := []ir.Instr{
			{Op: ir.OpLocalGet, Local: keyLocal},
			{Op: ir.OpI64Const, I64Const: 0},
			{Op: ir.OpI64LtS},
			{Op: ir.OpLocalGet, Local: keyLocal},
			{Op: ir.OpLocalGet, Local: collLocal},
			{Op: ir.OpCall, Callee: "lift_list_len"},
			{Op: ir.OpI64GeS},
			{Op: ir.OpI64Or},
		}
		abort := []ir.Instr{
			{Op: ir.OpI64Const, I64Const: abortOutOfRange},
			{Op: ir.OpI64Const, I64Const: msgID},
			{Op: ir.OpCall, Callee: "lift_abort"},
			zeroOf(want),
		}
		get := []ir.Instr{
			{Op: ir.OpLocalGet, Local: collLocal},
			{Op: ir.OpLocalGet, Local: keyLocal},
			{Op: ir.OpCall, Callee: "lift_list_get"},
		}
		if want == ir.F64 {
			get = append(get, ir.Instr{Op: ir.OpF64ReinterpretI64})
		}
		instrs := append(prelude, outOfRange...)
		instrs = append(instrs, ir.Instr{Op: ir.OpIf, Result: want, Body: abort, Else: get})
		return instrs, want, nil

	case types.Map:
		want := irTypeOf(c.Value, lw.table, scope)
		msgID := lw.mod.InternString("key not found")
		valueLocal := fb.localFor(indexTemp(n, 2), want)
		foundLocal := fb.localFor(indexTemp(n, 3), ir.I64)
		lookup := []ir.Instr{
			{Op: ir.OpLocalGet, Local: collLocal},
			{Op: ir.OpLocalGet, Local: keyLocal},
			{Op: ir.OpCall, Callee: "lift_map_get"},
			{Op: ir.OpLocalSet, Local: foundLocal},
		}
		if want == ir.F64 {
			lookup = append(lookup, ir.Instr{Op: ir.OpF64ReinterpretI64})
		}
		lookup = append(lookup, ir.Instr{Op: ir.OpLocalSet, Local: valueLocal})
		abort := []ir.Instr{
			{Op: ir.OpI64Const, I64Const: abortMissingKey},
			{Op: ir.OpI64Const, I64Const: msgID},
			{Op: ir.OpCall, Callee: "lift_abort"},
			zeroOf(want),
		}
		getValue := []ir.Instr{{Op: ir.OpLocalGet, Local: valueLocal}}
		instrs := append(prelude, lookup...)
		instrs = append(instrs, ir.Instr{Op: ir.OpLocalGet, Local: foundLocal}, ir.Instr{Op: ir.OpI64Eqz})
		instrs = append(instrs, ir.Instr{Op: ir.OpIf, Result: want, Body: abort, Else: getValue})
		return instrs, want, nil
	}
	return nil, ir.Void, fmt.Errorf("lower: %s is not indexable", collType)
}

func zeroOf(t ir.Type) ir.Instr {
	if t == ir.F64 {
		return ir.Instr{Op: ir.OpF64Const, F64Const: 0}
	}
	return ir.Instr{Op: ir.OpI64Const, I64Const: 0}
}

// indexTemp synthesizes a scratch-local symbols.Index for one Index
// expression's collection/key/value/found temporaries, keyed by source
// span and a slot discriminator (n may need several distinct locals).
func indexTemp(n *ast.Index, which int) symbols.Index {
	return symbols.Index{Scope: -4000 - n.Span.Line, Slot: n.Span.Column*10 + which}
}

func (lw *lowerer) lowerLength(n *ast.Length, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	targetType, _ := semantic.Infer(n.Target, lw.table, scope)
	target, _, err := lw.lowerExpr(n.Target, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	switch resolveAlias(targetType, lw.table, scope).(type) {
	case types.Str:
		return append(target, ir.Instr{Op: ir.OpCall, Callee: "lift_str_len"}), ir.I64, nil
	case types.List:
		return append(target, ir.Instr{Op: ir.OpCall, Callee: "lift_list_len"}), ir.I64, nil
	case types.Map:
		return append(target, ir.Instr{Op: ir.OpCall, Callee: "lift_map_len"}), ir.I64, nil
	}
	return nil, ir.Void, fmt.Errorf("lower: length is not defined for %s", targetType)
}

func (lw *lowerer) lowerOutput(n *ast.Output, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	var instrs []ir.Instr
	for _, a := range n.Args {
		argType, _ := semantic.Infer(a, lw.table, scope)
		arg, vt, err := lw.lowerExpr(a, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		instrs = append(instrs, arg...)
		switch resolveAlias(argType, lw.table, scope).(type) {
		case types.Int:
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_int"})
		case types.Flt:
			if vt == ir.F64 {
				instrs = append(instrs, ir.Instr{Op: ir.OpI64ReinterpretF64})
			}
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_flt"})
		case types.Bool:
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_bool"})
		case types.Str:
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_str"})
		case types.List:
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_list"})
		case types.Map:
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_map"})
		case types.Range:
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_range"})
		case types.Struct:
			instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_print_struct"})
		default:
			return nil, ir.Void, fmt.Errorf("lower: output is not defined for %s", argType)
		}
	}
	return instrs, ir.Void, nil
}

func (lw *lowerer) lowerListLiteral(n *ast.ListLiteral, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	elemTag, err := typeTag(resolveAlias(n.ElemType, lw.table, scope))
	if err != nil {
		return nil, ir.Void, err
	}
	instrs := []ir.Instr{
		{Op: ir.OpI64Const, I64Const: elemTag},
		{Op: ir.OpCall, Callee: "lift_list_new"},
	}
	handleLocal := fb.localFor(listLiteralTemp(n), ir.I64)
	instrs = append(instrs, ir.Instr{Op: ir.OpLocalSet, Local: handleLocal})
	for _, el := range n.Elems {
		value, vt, err := lw.lowerExpr(el, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		if vt == ir.F64 {
			value = append(value, ir.Instr{Op: ir.OpI64ReinterpretF64})
		}
		instrs = append(instrs, ir.Instr{Op: ir.OpLocalGet, Local: handleLocal})
		instrs = append(instrs, value...)
		instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_list_push"})
	}
	instrs = append(instrs, ir.Instr{Op: ir.OpLocalGet, Local: handleLocal})
	return instrs, ir.I64, nil
}

func (lw *lowerer) lowerMapLiteral(n *ast.MapLiteral, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	keyTag, err := typeTag(resolveAlias(n.KeyType, lw.table, scope))
	if err != nil {
		return nil, ir.Void, err
	}
	valueTag, err := typeTag(resolveAlias(n.ValueType, lw.table, scope))
	if err != nil {
		return nil, ir.Void, err
	}
	instrs := []ir.Instr{
		{Op: ir.OpI64Const, I64Const: keyTag},
		{Op: ir.OpI64Const, I64Const: valueTag},
		{Op: ir.OpCall, Callee: "lift_map_new"},
	}
	handleLocal := fb.localFor(mapLiteralTemp(n), ir.I64)
	instrs = append(instrs, ir.Instr{Op: ir.OpLocalSet, Local: handleLocal})
	for i := range n.Keys {
		key, kvt, err := lw.lowerExpr(n.Keys[i], fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		if kvt == ir.F64 {
			key = append(key, ir.Instr{Op: ir.OpI64ReinterpretF64})
		}
		val, vvt, err := lw.lowerExpr(n.Values[i], fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		if vvt == ir.F64 {
			val = append(val, ir.Instr{Op: ir.OpI64ReinterpretF64})
		}
		instrs = append(instrs, ir.Instr{Op: ir.OpLocalGet, Local: handleLocal})
		instrs = append(instrs, key...)
		instrs = append(instrs, val...)
		instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_map_set"})
	}
	instrs = append(instrs, ir.Instr{Op: ir.OpLocalGet, Local: handleLocal})
	return instrs, ir.I64, nil
}

func (lw *lowerer) lowerStructLiteral(n *ast.StructLiteral, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	typeNameID := lw.mod.InternString(n.TypeName)
	instrs := []ir.Instr{
		{Op: ir.OpI64Const, I64Const: typeNameID},
		{Op: ir.OpCall, Callee: "lift_struct_new"},
	}
	handleLocal := fb.localFor(structLiteralTemp(n), ir.I64)
	instrs = append(instrs, ir.Instr{Op: ir.OpLocalSet, Local: handleLocal})
	for _, name := range n.FieldOrder {
		value, vt, err := lw.lowerExpr(n.Fields[name], fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		if vt == ir.F64 {
			value = append(value, ir.Instr{Op: ir.OpI64ReinterpretF64})
		}
		nameID := lw.mod.InternString(name)
		instrs = append(instrs, ir.Instr{Op: ir.OpLocalGet, Local: handleLocal})
		instrs = append(instrs, ir.Instr{Op: ir.OpI64Const, I64Const: nameID})
		instrs = append(instrs, value...)
		instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: "lift_struct_set_field"})
	}
	instrs = append(instrs, ir.Instr{Op: ir.OpLocalGet, Local: handleLocal})
	return instrs, ir.I64, nil
}

// listLiteralTemp, mapLiteralTemp and structLiteralTemp synthesize a
// unique symbols.Index to back the scratch local a composite literal
// needs while it is being built up — these literals have no symbol
// table entry of their own, so the index is derived from the node's
// source span instead, which is stable across the one lowering pass
// that ever looks it up.
func listLiteralTemp(n *ast.ListLiteral) symbols.Index {
	return symbols.Index{Scope: -1000 - n.Span.Line, Slot: n.Span.Column}
}

func mapLiteralTemp(n *ast.MapLiteral) symbols.Index {
	return symbols.Index{Scope: -2000 - n.Span.Line, Slot: n.Span.Column}
}

func structLiteralTemp(n *ast.StructLiteral) symbols.Index {
	return symbols.Index{Scope: -3000 - n.Span.Line, Slot: n.Span.Column}
}

func (lw *lowerer) lowerCall(n *ast.Call, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	if isBuiltinCall(n.Name, *n.Index) {
		return lw.lowerBuiltinCall(n.Name, n.Args, fb, scope)
	}
	def := lw.table.GetSymbolValue(*n.Index).(*ast.DefineFunction)
	return lw.lowerUserCall(def, argValues(n.Args), fb, scope)
}

func (lw *lowerer) lowerMethodCall(n *ast.MethodCall, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	args := append([]ast.Expr{n.Receiver}, argValues(n.Args)...)
	if isBuiltinCall(n.Method, *n.Index) {
		return lw.lowerBuiltinCall(n.Method, toArgs(args), fb, scope)
	}
	def := lw.table.GetSymbolValue(*n.Index).(*ast.DefineFunction)
	return lw.lowerUserCall(def, args, fb, scope)
}

// isBuiltinCall reports whether a call names a built-in method. Pass 1
// binds built-ins to the index (0,0), which is also the index of the
// first symbol declared in the global scope, so the name must match too.
func isBuiltinCall(name string, idx symbols.Index) bool {
	switch name {
	case "upper", "lower", "first", "last":
		return idx.Scope == 0 && idx.Slot == 0
	}
	return false
}

func argValues(args []ast.Arg) []ast.Expr {
	out := make([]ast.Expr, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}

func toArgs(exprs []ast.Expr) []ast.Arg {
	out := make([]ast.Arg, len(exprs))
	for i, e := range exprs {
		out[i] = ast.Arg{Value: e}
	}
	return out
}

func (lw *lowerer) lowerUserCall(def *ast.DefineFunction, args []ast.Expr, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	var instrs []ir.Instr
	for i, a := range args {
		value, vt, err := lw.lowerExpr(a, fb, scope)
		if err != nil {
			return nil, ir.Void, err
		}
		want := irTypeOf(def.Fn.Params[i].Type, lw.table, scope)
		instrs = append(instrs, coerce(value, vt, want)...)
	}
	instrs = append(instrs, ir.Instr{Op: ir.OpCall, Callee: funcIRName(*def.Index)})
	if def.Fn.ReturnType == nil {
		return instrs, ir.Void, nil
	}
	return instrs, irTypeOf(def.Fn.ReturnType, lw.table, scope), nil
}

func (lw *lowerer) lowerBuiltinCall(name string, args []ast.Arg, fb *funcBuilder, scope int) ([]ir.Instr, ir.Type, error) {
	if len(args) == 0 {
		return nil, ir.Void, fmt.Errorf("lower: built-in %q requires a receiver", name)
	}
	recv, _, err := lw.lowerExpr(args[0].Value, fb, scope)
	if err != nil {
		return nil, ir.Void, err
	}
	recvType, _ := semantic.Infer(args[0].Value, lw.table, scope)
	switch name {
	case "upper":
		return append(recv, ir.Instr{Op: ir.OpCall, Callee: "lift_str_upper"}), ir.I64, nil
	case "lower":
		return append(recv, ir.Instr{Op: ir.OpCall, Callee: "lift_str_lower"}), ir.I64, nil
	case "first":
		lst := resolveAlias(recvType, lw.table, scope).(types.List)
		want := irTypeOf(lst.Elem, lw.table, scope)
		instrs := append(recv, ir.Instr{Op: ir.OpCall, Callee: "lift_list_first"})
		if want == ir.F64 {
			instrs = append(instrs, ir.Instr{Op: ir.OpF64ReinterpretI64})
		}
		return instrs, want, nil
	case "last":
		lst := resolveAlias(recvType, lw.table, scope).(types.List)
		want := irTypeOf(lst.Elem, lw.table, scope)
		instrs := append(recv, ir.Instr{Op: ir.OpCall, Callee: "lift_list_last"})
		if want == ir.F64 {
			instrs = append(instrs, ir.Instr{Op: ir.OpF64ReinterpretI64})
		}
		return instrs, want, nil
	}
	return nil, ir.Void, fmt.Errorf("lower: unknown built-in %q", name)
}

// coerce appends a numeric conversion when from and to disagree; the
// only legal mismatch at this point is Int flowing into a Flt-declared
// slot (assignable's widening rule) or an if-expression unifying an
// Int-typed branch with a Flt-typed one.
func coerce(instrs []ir.Instr, from, to ir.Type) []ir.Instr {
	if from == to || to == ir.Void {
		return instrs
	}
	if from == ir.I64 && to == ir.F64 {
		return append(instrs, ir.Instr{Op: ir.OpF64ConvertI64S})
	}
	return instrs
}

func irTypeOf(t types.Type, table *symbols.Table, scope int) ir.Type {
	switch resolveAlias(t, table, scope).(type) {
	case types.Flt:
		return ir.F64
	default:
		return ir.I64
	}
}

// resolveAlias mirrors internal/semantic's own alias-following helper;
// duplicated here (rather than exported from semantic) because it is a
// three-line total function over an already-closed type algebra, not a
// checking rule lowering should depend on semantic to evolve.
func resolveAlias(t types.Type, table *symbols.Table, scope int) types.Type {
	ref, ok := t.(types.TypeRef)
	if !ok {
		return t
	}
	def, ok := table.LookupType(ref.Name, scope)
	if !ok {
		return t
	}
	return resolveAlias(def, table, scope)
}
