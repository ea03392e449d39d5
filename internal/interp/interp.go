package interp

import (
	"fmt"
	"strings"

	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

// frame is one function activation's storage: every Let/param binding
// touched during that call lives here, keyed by its stable (scope,
// slot) symbols.Index. A fresh frame is pushed per call so recursive
// invocations of the same function — which reuse the very same Index
// values, since a lambda's scope is assigned once at bind time, not
// once per call — never see each other's locals.
type frame map[symbols.Index]Value

// Interp walks a bound, checked syntax tree directly, maintaining its
// own call stack of frames rather than internal/lower's local-index
// bookkeeping. It exists purely as a parity oracle for the JIT path
// (internal/backend), so every dispatch below mirrors internal/lower's
// own switch over ast.Expr node by node.
type Interp struct {
	table  *symbols.Table
	frames []frame
	out    strings.Builder
}

// New returns an Interp with its global frame ready.
func New(table *symbols.Table) *Interp {
	return &Interp{table: table, frames: []frame{{}}}
}

// returnSignal unwinds the Go call stack back to the nearest function
// call boundary, carrying the value a `return` expression produced.
// Using Go's own error-propagation path for this means every ordinary
// sequencing point (lowerBody's equivalent here) short-circuits for
// free — no extra plumbing is needed beyond checking err != nil.
type returnSignal struct{ value Value }

func (returnSignal) Error() string { return "return" }

// Run evaluates tree (expected to be a *ast.Program) to completion and
// returns its final value together with everything written via
// `output`.
func (ip *Interp) Run(tree ast.Expr) (Value, string, error) {
	v, err := ip.eval(tree)
	if err != nil {
		if rs, ok := err.(returnSignal); ok {
			return rs.value, ip.out.String(), nil
		}
		return nil, ip.out.String(), err
	}
	return v, ip.out.String(), nil
}

func (ip *Interp) top() frame { return ip.frames[len(ip.frames)-1] }

// get walks the frame stack innermost-out, matching ordinary call-stack
// variable resolution: a name not found in the current activation
// falls back to an enclosing one (the global frame, chiefly).
func (ip *Interp) get(idx symbols.Index) (Value, bool) {
	for i := len(ip.frames) - 1; i >= 0; i-- {
		if v, ok := ip.frames[i][idx]; ok {
			return v, true
		}
	}
	return nil, false
}

// declare binds idx in the current activation only, the way a Let
// introduces a brand-new local.
func (ip *Interp) declare(idx symbols.Index, v Value) { ip.top()[idx] = v }

// assign updates an existing binding wherever in the stack it lives,
// the way `name := value` mutates the variable a Let already declared.
func (ip *Interp) assign(idx symbols.Index, v Value) {
	for i := len(ip.frames) - 1; i >= 0; i-- {
		if _, ok := ip.frames[i][idx]; ok {
			ip.frames[i][idx] = v
			return
		}
	}
	ip.declare(idx, v)
}

func (ip *Interp) eval(e ast.Expr) (Value, error) {
	switch n := e.(type) {
	case *ast.Unit:
		return UnitVal{}, nil

	case *ast.IntLit:
		return IntVal(n.Value), nil

	case *ast.FltLit:
		return FltVal(n.Value), nil

	case *ast.BoolLit:
		return BoolVal(n.Value), nil

	case *ast.StrLit:
		return StrVal(n.Value), nil

	case *ast.Var:
		v, ok := ip.get(*n.Index)
		if !ok {
			return nil, fmt.Errorf("interp: %q read before assignment", n.Name)
		}
		return v, nil

	case *ast.Bin:
		return ip.evalBin(n)

	case *ast.Un:
		return ip.evalUn(n)

	case *ast.Let:
		v, err := ip.eval(n.Value)
		if err != nil {
			return nil, err
		}
		v = coerceVal(v, n.Annotation)
		ip.declare(*n.Index, v)
		return v, nil

	case *ast.Assign:
		v, err := ip.eval(n.Value)
		if err != nil {
			return nil, err
		}
		v = coerceVal(v, ip.table.GetSymbolType(*n.Index))
		ip.assign(*n.Index, v)
		return v, nil

	case *ast.FieldAccess:
		target, err := ip.eval(n.Target)
		if err != nil {
			return nil, err
		}
		sv, ok := target.(StructVal)
		if !ok {
			return nil, fmt.Errorf("interp: %T is not a struct", target)
		}
		v, ok := (*sv.Fields)[n.Field]
		if !ok {
			return nil, fmt.Errorf("interp: struct %s has no field %q", sv.Name, n.Field)
		}
		return v, nil

	case *ast.FieldAssign:
		v := n.Target.(*ast.Var)
		target, ok := ip.get(*v.Index)
		if !ok {
			return nil, fmt.Errorf("interp: %q read before assignment", v.Name)
		}
		sv, ok := target.(StructVal)
		if !ok {
			return nil, fmt.Errorf("interp: %T is not a struct", target)
		}
		value, err := ip.eval(n.Value)
		if err != nil {
			return nil, err
		}
		(*sv.Fields)[n.Field] = value
		return value, nil

	case *ast.If:
		return ip.evalIf(n)

	case *ast.While:
		return ip.evalWhile(n)

	case *ast.Block:
		return ip.evalBody(n.Body)

	case *ast.Program:
		return ip.evalBody(n.Body)

	case *ast.Call:
		return ip.evalCall(n)

	case *ast.MethodCall:
		return ip.evalMethodCall(n)

	case *ast.StructLiteral:
		return ip.evalStructLiteral(n)

	case *ast.ListLiteral:
		elems := make([]Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := ip.eval(el)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return NewList(elems), nil

	case *ast.MapLiteral:
		m := NewMap()
		for i := range n.Keys {
			k, err := ip.eval(n.Keys[i])
			if err != nil {
				return nil, err
			}
			v, err := ip.eval(n.Values[i])
			if err != nil {
				return nil, err
			}
			m.Set(k, v)
		}
		return m, nil

	case *ast.RangeLit:
		lo, err := ip.eval(n.Start)
		if err != nil {
			return nil, err
		}
		hi, err := ip.eval(n.End)
		if err != nil {
			return nil, err
		}
		return RangeVal{Lo: int64(lo.(IntVal)), Hi: int64(hi.(IntVal))}, nil

	case *ast.Index:
		return ip.evalIndex(n)

	case *ast.Length:
		return ip.evalLength(n)

	case *ast.Output:
		for _, a := range n.Args {
			v, err := ip.eval(a)
			if err != nil {
				return nil, err
			}
			ip.out.WriteString(v.String())
		}
		return UnitVal{}, nil

	case *ast.Return:
		v, err := ip.eval(n.Value)
		if err != nil {
			return nil, err
		}
		return v, returnSignal{value: v}

	case *ast.DefineType:
		return UnitVal{}, nil

	case *ast.DefineFunction:
		return UnitVal{}, nil

	default:
		return nil, fmt.Errorf("interp: unhandled node type %T", e)
	}
}

// evalBody runs a Program's or Block's statement list in order,
// returning the last statement's value (Unit for an empty list or one
// that ends in a definition), short-circuiting the moment any
// statement's evaluation returns a non-nil error — including a
// returnSignal working its way up from a nested `return`.
func (ip *Interp) evalBody(stmts []ast.Expr) (Value, error) {
	var last Value = UnitVal{}
	for _, stmt := range stmts {
		v, err := ip.eval(stmt)
		if err != nil {
			return v, err
		}
		last = v
	}
	return last, nil
}

func (ip *Interp) evalBin(n *ast.Bin) (Value, error) {
	if n.Op == ".." {
		lo, err := ip.eval(n.Left)
		if err != nil {
			return nil, err
		}
		hi, err := ip.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return RangeVal{Lo: int64(lo.(IntVal)), Hi: int64(hi.(IntVal))}, nil
	}

	left, err := ip.eval(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := ip.eval(n.Right)
	if err != nil {
		return nil, err
	}

	if ls, ok := left.(StrVal); ok {
		rs := right.(StrVal)
		switch n.Op {
		case "+":
			return StrVal(string(ls) + string(rs)), nil
		case "=":
			return BoolVal(ls == rs), nil
		case "<>":
			return BoolVal(ls != rs), nil
		}
		return nil, fmt.Errorf("interp: operator %q is not defined for Str", n.Op)
	}

	lf, lIsFlt := left.(FltVal)
	rf, rIsFlt := right.(FltVal)
	if lIsFlt || rIsFlt {
		if !lIsFlt {
			lf = FltVal(left.(IntVal))
		}
		if !rIsFlt {
			rf = FltVal(right.(IntVal))
		}
		return evalFltBin(n.Op, float64(lf), float64(rf))
	}

	if lb, ok := left.(BoolVal); ok {
		rb := right.(BoolVal)
		switch n.Op {
		case "and":
			return BoolVal(lb && rb), nil
		case "or":
			return BoolVal(lb || rb), nil
		case "=":
			return BoolVal(lb == rb), nil
		case "<>":
			return BoolVal(lb != rb), nil
		}
	}

	li := left.(IntVal)
	ri := right.(IntVal)
	return evalIntBin(n.Op, int64(li), int64(ri))
}

func evalIntBin(op string, l, r int64) (Value, error) {
	switch op {
	case "+":
		return IntVal(l + r), nil
	case "-":
		return IntVal(l - r), nil
	case "*":
		return IntVal(l * r), nil
	case "/":
		return IntVal(l / r), nil
	case "<":
		return BoolVal(l < r), nil
	case "<=":
		return BoolVal(l <= r), nil
	case ">":
		return BoolVal(l > r), nil
	case ">=":
		return BoolVal(l >= r), nil
	case "=":
		return BoolVal(l == r), nil
	case "<>":
		return BoolVal(l != r), nil
	case "and":
		return BoolVal(l != 0 && r != 0), nil
	case "or":
		return BoolVal(l != 0 || r != 0), nil
	}
	return nil, fmt.Errorf("interp: unknown binary operator %q", op)
}

func evalFltBin(op string, l, r float64) (Value, error) {
	switch op {
	case "+":
		return FltVal(l + r), nil
	case "-":
		return FltVal(l - r), nil
	case "*":
		return FltVal(l * r), nil
	case "/":
		return FltVal(l / r), nil
	case "<":
		return BoolVal(l < r), nil
	case "<=":
		return BoolVal(l <= r), nil
	case ">":
		return BoolVal(l > r), nil
	case ">=":
		return BoolVal(l >= r), nil
	case "=":
		return BoolVal(l == r), nil
	case "<>":
		return BoolVal(l != r), nil
	}
	return nil, fmt.Errorf("interp: unknown binary operator %q for Flt", op)
}

func (ip *Interp) evalUn(n *ast.Un) (Value, error) {
	v, err := ip.eval(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "not":
		return BoolVal(!bool(v.(BoolVal))), nil
	case "-":
		if f, ok := v.(FltVal); ok {
			return FltVal(-float64(f)), nil
		}
		return IntVal(-int64(v.(IntVal))), nil
	}
	return nil, fmt.Errorf("interp: unknown unary operator %q", n.Op)
}

func (ip *Interp) evalIf(n *ast.If) (Value, error) {
	cond, err := ip.eval(n.Cond)
	if err != nil {
		return nil, err
	}
	if bool(cond.(BoolVal)) {
		return ip.eval(n.Then)
	}
	return ip.eval(n.FinalElse)
}

func (ip *Interp) evalWhile(n *ast.While) (Value, error) {
	for {
		cond, err := ip.eval(n.Cond)
		if err != nil {
			return nil, err
		}
		if !bool(cond.(BoolVal)) {
			return UnitVal{}, nil
		}
		if _, err := ip.eval(n.Body); err != nil {
			return nil, err
		}
	}
}

func (ip *Interp) evalIndex(n *ast.Index) (Value, error) {
	coll, err := ip.eval(n.Collection)
	if err != nil {
		return nil, err
	}
	key, err := ip.eval(n.Key)
	if err != nil {
		return nil, err
	}
	switch c := coll.(type) {
	case ListVal:
		i := int64(key.(IntVal))
		if i < 0 || i >= int64(len(*c.Elems)) {
			return nil, fmt.Errorf("interp: list index out of range")
		}
		return (*c.Elems)[i], nil
	case MapVal:
		v, ok := c.Get(key)
		if !ok {
			return nil, fmt.Errorf("interp: key not found")
		}
		return v, nil
	}
	return nil, fmt.Errorf("interp: %T is not indexable", coll)
}

func (ip *Interp) evalLength(n *ast.Length) (Value, error) {
	v, err := ip.eval(n.Target)
	if err != nil {
		return nil, err
	}
	switch c := v.(type) {
	case StrVal:
		return IntVal(len([]rune(string(c)))), nil
	case ListVal:
		return IntVal(len(*c.Elems)), nil
	case MapVal:
		return IntVal(len(*c.Entries)), nil
	}
	return nil, fmt.Errorf("interp: length is not defined for %T", v)
}

func (ip *Interp) evalStructLiteral(n *ast.StructLiteral) (Value, error) {
	sv := NewStruct(n.TypeName)
	for _, name := range n.FieldOrder {
		v, err := ip.eval(n.Fields[name])
		if err != nil {
			return nil, err
		}
		(*sv.Fields)[name] = v
	}
	return sv, nil
}

func (ip *Interp) evalCall(n *ast.Call) (Value, error) {
	if isBuiltinCall(n.Name, *n.Index) {
		args, err := ip.evalArgs(argValues(n.Args))
		if err != nil {
			return nil, err
		}
		return ip.evalBuiltin(n.Name, args)
	}
	def := ip.table.GetSymbolValue(*n.Index).(*ast.DefineFunction)
	args, err := ip.evalArgs(argValues(n.Args))
	if err != nil {
		return nil, err
	}
	return ip.callFunction(def, args)
}

func (ip *Interp) evalMethodCall(n *ast.MethodCall) (Value, error) {
	recv, err := ip.eval(n.Receiver)
	if err != nil {
		return nil, err
	}
	rest, err := ip.evalArgs(argValues(n.Args))
	if err != nil {
		return nil, err
	}
	args := append([]Value{recv}, rest...)
	if isBuiltinCall(n.Method, *n.Index) {
		return ip.evalBuiltin(n.Method, args)
	}
	def := ip.table.GetSymbolValue(*n.Index).(*ast.DefineFunction)
	return ip.callFunction(def, args)
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

func (ip *Interp) evalArgs(exprs []ast.Expr) ([]Value, error) {
	out := make([]Value, len(exprs))
	for i, e := range exprs {
		v, err := ip.eval(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// callFunction pushes a fresh activation frame, binds def's parameters
// positionally (the same order bind.go registers them in the lambda's
// own scope, self first for a method), evaluates the body, and pops
// the frame on the way out — the isolation a recursive call needs,
// since def.Fn.Scope is the very same scope id for every invocation.
func (ip *Interp) callFunction(def *ast.DefineFunction, args []Value) (Value, error) {
	ip.frames = append(ip.frames, frame{})
	defer func() { ip.frames = ip.frames[:len(ip.frames)-1] }()

	for i, p := range def.Fn.Params {
		idx, ok := ip.table.FindIndexReachable(p.Name, def.Fn.Scope)
		if !ok {
			return nil, fmt.Errorf("interp: parameter %q has no binding", p.Name)
		}
		ip.declare(idx, coerceVal(args[i], p.Type))
	}

	v, err := ip.eval(def.Fn.Body)
	if err != nil {
		if rs, ok := err.(returnSignal); ok {
			return rs.value, nil
		}
		return nil, err
	}
	return v, nil
}

func (ip *Interp) evalBuiltin(name string, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("interp: built-in %q requires a receiver", name)
	}
	switch name {
	case "upper":
		return StrVal(strings.ToUpper(string(args[0].(StrVal)))), nil
	case "lower":
		return StrVal(strings.ToLower(string(args[0].(StrVal)))), nil
	case "first":
		l := args[0].(ListVal)
		return (*l.Elems)[0], nil
	case "last":
		l := args[0].(ListVal)
		return (*l.Elems)[len(*l.Elems)-1], nil
	}
	return nil, fmt.Errorf("interp: unknown built-in %q", name)
}

// coerceVal applies lift's only implicit conversion, Int flowing into a
// Flt-annotated slot, mirroring internal/semantic's assignable widening
// rule and internal/lower's coerce helper. declared may be nil (no
// annotation at all) in which case v passes through unchanged.
func coerceVal(v Value, declared types.Type) Value {
	if declared == nil {
		return v
	}
	if _, ok := declared.(types.Flt); ok {
		if i, ok := v.(IntVal); ok {
			return FltVal(float64(i))
		}
	}
	return v
}

// Parity checks a JIT run's (result, output) pair against this
// interpreter's own evaluation of the same tree, the direct use
// spec.md §8 calls for: both backends compiling and running the same
// bound program must agree.
func Parity(ip *Interp, tree ast.Expr, jitResult int64, jitOutput string) error {
	v, out, err := ip.Run(tree)
	if err != nil {
		return fmt.Errorf("interp: %w", err)
	}
	if out != jitOutput {
		return fmt.Errorf("interp: output mismatch: jit=%q interp=%q", jitOutput, out)
	}
	if iv, ok := v.(IntVal); ok && int64(iv) != jitResult {
		return fmt.Errorf("interp: result mismatch: jit=%d interp=%d", jitResult, int64(iv))
	}
	return nil
}
