// Package semantic implements the two compiler passes that turn a bare
// syntax tree into one ready for lowering: pass 1 (this file) binds every
// name-bearing node to a (scope, slot) index, and pass 2 (typecheck.go)
// computes and validates a type for every expression.
package semantic

import (
	"fmt"

	"github.com/cwbudde/go-lift/internal/ast"
	cerrors "github.com/cwbudde/go-lift/internal/errors"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

// builtinMethods are intrinsics recognized by name rather than through the
// symbol table. A MethodCall or UFCS Call resolving to one of these gets
// the sentinel index (0,0) — there is no real declaration backing it.
var builtinMethods = map[string]bool{
	"upper": true,
	"lower": true,
	"first": true,
	"last":  true,
}

var builtinSlot = symbols.Index{Scope: 0, Slot: 0}

// Bind runs pass 1 over tree, mutating it in place and returning the
// (possibly rewritten) root. A Call node whose name resolves to a type is
// replaced by a *ast.StructLiteral; every other node is annotated in
// place, so callers should use the returned Expr rather than assuming the
// argument was mutated in full.
func Bind(tree ast.Expr, table *symbols.Table) (ast.Expr, error) {
	return bindExpr(tree, table, 0)
}

func bindExpr(e ast.Expr, table *symbols.Table, scope int) (ast.Expr, error) {
	switch n := e.(type) {
	case *ast.Unit, *ast.IntLit, *ast.FltLit, *ast.BoolLit, *ast.StrLit:
		return e, nil

	case *ast.Var:
		idx, ok := table.FindIndexReachable(n.Name, scope)
		if !ok {
			return nil, nameErr(n.Span, "undeclared identifier '%s'", n.Name)
		}
		n.Index = &idx
		return n, nil

	case *ast.Bin:
		left, err := bindExpr(n.Left, table, scope)
		if err != nil {
			return nil, err
		}
		right, err := bindExpr(n.Right, table, scope)
		if err != nil {
			return nil, err
		}
		n.Left, n.Right = left, right
		return n, nil

	case *ast.Un:
		operand, err := bindExpr(n.Operand, table, scope)
		if err != nil {
			return nil, err
		}
		n.Operand = operand
		return n, nil

	case *ast.Let:
		value, err := bindExpr(n.Value, table, scope)
		if err != nil {
			return nil, err
		}
		n.Value = value
		declType := n.Annotation
		if declType == nil {
			inferred, ok := Infer(value, table, scope)
			if !ok {
				return nil, typeErr(n.Span, "cannot infer type of '%s'", n.Name)
			}
			declType = inferred
		}
		idx, err := table.AddSymbol(scope, n.Name, n, declType, n.Mutable)
		if err != nil {
			return nil, nameErr(n.Span, "%s", err.Error())
		}
		n.Index = &idx
		return n, nil

	case *ast.Assign:
		idx, ok := table.FindIndexReachable(n.Name, scope)
		if !ok {
			return nil, nameErr(n.Span, "undeclared identifier '%s'", n.Name)
		}
		value, err := bindExpr(n.Value, table, scope)
		if err != nil {
			return nil, err
		}
		n.Value = value
		n.Index = &idx
		return n, nil

	case *ast.FieldAccess:
		target, err := bindExpr(n.Target, table, scope)
		if err != nil {
			return nil, err
		}
		n.Target = target
		return n, nil

	case *ast.FieldAssign:
		if _, ok := n.Target.(*ast.Var); !ok {
			return nil, structureErr(n.Span, "field-assignment target must be a variable")
		}
		target, err := bindExpr(n.Target, table, scope)
		if err != nil {
			return nil, err
		}
		value, err := bindExpr(n.Value, table, scope)
		if err != nil {
			return nil, err
		}
		n.Target, n.Value = target, value
		return n, nil

	case *ast.If:
		cond, err := bindExpr(n.Cond, table, scope)
		if err != nil {
			return nil, err
		}
		then, err := bindExpr(n.Then, table, scope)
		if err != nil {
			return nil, err
		}
		els, err := bindExpr(n.FinalElse, table, scope)
		if err != nil {
			return nil, err
		}
		n.Cond, n.Then, n.FinalElse = cond, then, els
		return n, nil

	case *ast.While:
		cond, err := bindExpr(n.Cond, table, scope)
		if err != nil {
			return nil, err
		}
		body, err := bindExpr(n.Body, table, scope)
		if err != nil {
			return nil, err
		}
		n.Cond, n.Body = cond, body
		return n, nil

	case *ast.Block:
		child := table.CreateScope(scope)
		bound, err := bindBlockBody(n.Body, table, child)
		if err != nil {
			return nil, err
		}
		n.Body = bound
		n.Scope = child
		return n, nil

	case *ast.Program:
		bound, err := bindBlockBody(n.Body, table, 0)
		if err != nil {
			return nil, err
		}
		n.Body = bound
		return n, nil

	case *ast.DefineType:
		if err := table.AddType(scope, n.Name, n.Definition); err != nil {
			return nil, nameErr(n.Span, "%s", err.Error())
		}
		return n, nil

	case *ast.DefineFunction:
		return bindDefineFunction(n, table, scope, nil)

	case *ast.Lambda:
		return bindLambda(n, table, scope)

	case *ast.Call:
		return bindCall(n, table, scope)

	case *ast.MethodCall:
		return bindMethodCall(n, table, scope)

	case *ast.StructLiteral:
		for _, name := range n.FieldOrder {
			bound, err := bindExpr(n.Fields[name], table, scope)
			if err != nil {
				return nil, err
			}
			n.Fields[name] = bound
		}
		return n, nil

	case *ast.ListLiteral:
		for i, el := range n.Elems {
			bound, err := bindExpr(el, table, scope)
			if err != nil {
				return nil, err
			}
			n.Elems[i] = bound
		}
		return n, nil

	case *ast.MapLiteral:
		for i := range n.Keys {
			k, err := bindExpr(n.Keys[i], table, scope)
			if err != nil {
				return nil, err
			}
			v, err := bindExpr(n.Values[i], table, scope)
			if err != nil {
				return nil, err
			}
			n.Keys[i], n.Values[i] = k, v
		}
		return n, nil

	case *ast.RangeLit:
		start, err := bindExpr(n.Start, table, scope)
		if err != nil {
			return nil, err
		}
		end, err := bindExpr(n.End, table, scope)
		if err != nil {
			return nil, err
		}
		n.Start, n.End = start, end
		return n, nil

	case *ast.Index:
		coll, err := bindExpr(n.Collection, table, scope)
		if err != nil {
			return nil, err
		}
		key, err := bindExpr(n.Key, table, scope)
		if err != nil {
			return nil, err
		}
		n.Collection, n.Key = coll, key
		return n, nil

	case *ast.Length:
		target, err := bindExpr(n.Target, table, scope)
		if err != nil {
			return nil, err
		}
		n.Target = target
		return n, nil

	case *ast.Output:
		for i, a := range n.Args {
			bound, err := bindExpr(a, table, scope)
			if err != nil {
				return nil, err
			}
			n.Args[i] = bound
		}
		return n, nil

	case *ast.Return:
		value, err := bindExpr(n.Value, table, scope)
		if err != nil {
			return nil, err
		}
		n.Value = value
		return n, nil

	default:
		return nil, structureErr(e.Pos(), "bind: unhandled node type %T", e)
	}
}

// bindBlockBody binds the statements of a Program or Block. Type
// definitions are bound first so aliases and struct names are visible
// throughout the body regardless of declaration order; every
// DefineFunction at this level is then pre-registered with a placeholder
// before any body is walked, so mutually recursive functions can resolve
// one another the same way a function resolves itself.
func bindBlockBody(body []ast.Expr, table *symbols.Table, scope int) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(body))
	copy(out, body)

	for i, stmt := range out {
		if def, ok := stmt.(*ast.DefineType); ok {
			bound, err := bindExpr(def, table, scope)
			if err != nil {
				return nil, err
			}
			out[i] = bound
		}
	}

	placeholders := make(map[int]symbols.Index, len(out))
	for i, stmt := range out {
		def, ok := stmt.(*ast.DefineFunction)
		if !ok {
			continue
		}
		idx, err := declareFunctionSlot(def, table, scope)
		if err != nil {
			return nil, err
		}
		placeholders[i] = idx
	}

	for i, stmt := range out {
		if _, ok := stmt.(*ast.DefineType); ok {
			continue
		}
		if def, ok := stmt.(*ast.DefineFunction); ok {
			idx := placeholders[i]
			bound, err := bindDefineFunction(def, table, scope, &idx)
			if err != nil {
				return nil, err
			}
			out[i] = bound
			continue
		}
		bound, err := bindExpr(stmt, table, scope)
		if err != nil {
			return nil, err
		}
		out[i] = bound
	}
	return out, nil
}

// declareFunctionSlot inserts the (possibly qualified) function name with
// a Unit placeholder value, ahead of binding any function body in the
// enclosing block — this is what lets forward and mutual recursion
// resolve by name before the real lambda exists.
func declareFunctionSlot(n *ast.DefineFunction, table *symbols.Table, scope int) (symbols.Index, error) {
	qualified, err := qualifiedFunctionName(n, table, scope)
	if err != nil {
		return symbols.Index{}, err
	}
	idx, err := table.AddSymbol(scope, qualified, &ast.Unit{Span: n.Span}, n.Fn.ReturnType, false)
	if err != nil {
		return symbols.Index{}, nameErr(n.Span, "%s", err.Error())
	}
	return idx, nil
}

func qualifiedFunctionName(n *ast.DefineFunction, table *symbols.Table, scope int) (string, error) {
	if n.Fn.Receiver == nil {
		return n.Name, nil
	}
	recvName, ok := typeName(n.Fn.Receiver)
	if !ok {
		return "", structureErr(n.Span, "method receiver type has no name to qualify '%s' by", n.Name)
	}
	return recvName + "." + n.Name, nil
}

// bindDefineFunction binds the body of a function definition and
// back-patches its placeholder slot with the DefineFunction node. idx is non-nil
// when the caller already pre-registered the placeholder (the normal
// path, via bindBlockBody); it is nil only when a DefineFunction is bound
// outside of a block body, in which case it is declared here instead.
func bindDefineFunction(n *ast.DefineFunction, table *symbols.Table, scope int, idx *symbols.Index) (ast.Expr, error) {
	var slot symbols.Index
	if idx != nil {
		slot = *idx
	} else {
		declared, err := declareFunctionSlot(n, table, scope)
		if err != nil {
			return nil, err
		}
		slot = declared
	}

	bound, err := bindLambda(n.Fn, table, scope)
	if err != nil {
		return nil, err
	}
	n.Fn = bound
	table.UpdateCompileTimeSymbolValue(slot, n)
	n.Index = &slot
	return n, nil
}

// bindLambda binds a function literal: it allocates the lambda's own
// scope, synthesizes a `self` parameter for methods, registers every
// parameter, then binds the body within that scope.
func bindLambda(n *ast.Lambda, table *symbols.Table, parentScope int) (*ast.Lambda, error) {
	lambdaScope := table.CreateScope(parentScope)

	params := n.Params
	if n.Receiver != nil {
		self := ast.Param{Name: "self", Type: n.Receiver, Copy: false}
		params = append([]ast.Param{self}, params...)
	}
	for _, p := range params {
		if _, err := table.AddSymbol(lambdaScope, p.Name, nil, p.Type, p.Copy); err != nil {
			return nil, nameErr(n.Span, "parameter %s: %s", p.Name, err.Error())
		}
	}
	n.Params = params

	body, err := bindExpr(n.Body, table, lambdaScope)
	if err != nil {
		return nil, err
	}
	n.Body = body
	n.Scope = lambdaScope
	return n, nil
}

// bindCall resolves a Call in three steps: rewrite to a struct literal
// when the name is a type, a direct function lookup, then UFCS against
// the first argument's type.
func bindCall(n *ast.Call, table *symbols.Table, scope int) (ast.Expr, error) {
	if def, ok := table.LookupType(n.Name, scope); ok {
		return bindCallAsStructLiteral(n, def, table, scope)
	}

	if idx, ok := table.FindIndexReachable(n.Name, scope); ok {
		for i, a := range n.Args {
			bound, err := bindExpr(a.Value, table, scope)
			if err != nil {
				return nil, err
			}
			n.Args[i].Value = bound
		}
		n.Index = &idx
		return n, nil
	}

	if len(n.Args) == 0 {
		return nil, nameErr(n.Span, "undeclared function '%s'", n.Name)
	}

	receiver, err := bindExpr(n.Args[0].Value, table, scope)
	if err != nil {
		return nil, err
	}
	n.Args[0].Value = receiver

	receiverType, ok := Infer(receiver, table, scope)
	accepted := false
	if ok {
		if typeName, hasName := typeName(receiverType); hasName {
			if idx, found := table.FindIndexReachable(typeName+"."+n.Name, scope); found {
				n.Index = &idx
				accepted = true
			}
		}
	}
	if !accepted && builtinMethods[n.Name] {
		idx := builtinSlot
		n.Index = &idx
		accepted = true
	}
	if !accepted {
		return nil, nameErr(n.Span, "undeclared function '%s'", n.Name)
	}

	for i := 1; i < len(n.Args); i++ {
		bound, err := bindExpr(n.Args[i].Value, table, scope)
		if err != nil {
			return nil, err
		}
		n.Args[i].Value = bound
	}
	return n, nil
}

func bindCallAsStructLiteral(n *ast.Call, def types.Type, table *symbols.Table, scope int) (ast.Expr, error) {
	fields := make(map[string]ast.Expr, len(n.Args))
	order := make([]string, 0, len(n.Args))
	for _, a := range n.Args {
		if a.Label == "" {
			return nil, structureErr(n.Span, "struct literal '%s' requires named fields", n.Name)
		}
		if _, dup := fields[a.Label]; dup {
			return nil, typeErr(n.Span, "duplicate field '%s' in struct literal '%s'", a.Label, n.Name)
		}
		fields[a.Label] = a.Value
		order = append(order, a.Label)
	}
	lit := &ast.StructLiteral{TypeName: n.Name, FieldOrder: order, Fields: fields, Span: n.Span}
	bound, err := bindExpr(lit, table, scope)
	if err != nil {
		return nil, err
	}
	_ = def
	return bound, nil
}

// bindMethodCall resolves receiver.method(args): if the receiver's
// inferred type is a TypeRef, the alias name is tried first before the
// resolved underlying type, preserving alias-qualified method
// associations.
func bindMethodCall(n *ast.MethodCall, table *symbols.Table, scope int) (ast.Expr, error) {
	receiver, err := bindExpr(n.Receiver, table, scope)
	if err != nil {
		return nil, err
	}
	n.Receiver = receiver

	receiverType, ok := Infer(receiver, table, scope)
	accepted := false
	if ok {
		candidates := candidateTypeNames(receiverType, table, scope)
		for _, name := range candidates {
			if idx, found := table.FindIndexReachable(name+"."+n.Method, scope); found {
				n.Index = &idx
				accepted = true
				break
			}
		}
	}
	if !accepted && builtinMethods[n.Method] {
		idx := builtinSlot
		n.Index = &idx
		accepted = true
	}
	if !accepted {
		return nil, nameErr(n.Span, "unknown method '%s'", n.Method)
	}

	for i, a := range n.Args {
		bound, err := bindExpr(a.Value, table, scope)
		if err != nil {
			return nil, err
		}
		n.Args[i].Value = bound
	}
	return n, nil
}

// candidateTypeNames returns the ordered list of qualifying names to try
// for method lookup: the alias name first (if receiverType is a TypeRef),
// then the resolved underlying type's name.
func candidateTypeNames(receiverType types.Type, table *symbols.Table, scope int) []string {
	var names []string
	if ref, ok := receiverType.(types.TypeRef); ok {
		names = append(names, ref.Name)
		if resolved, found := table.LookupType(ref.Name, scope); found {
			if name, ok := typeName(resolved); ok {
				names = append(names, name)
			}
		}
		return names
	}
	if name, ok := typeName(receiverType); ok {
		names = append(names, name)
	}
	return names
}

// typeName returns the name under which methods of t are qualified in the
// symbol table ("Str.upper", "Age.double", "Point.magnitude"), or false
// for types that cannot carry methods (Map, Range, Optional, ...).
func typeName(t types.Type) (string, bool) {
	switch v := t.(type) {
	case types.Int:
		return "Int", true
	case types.Flt:
		return "Flt", true
	case types.Bool:
		return "Bool", true
	case types.Str:
		return "Str", true
	case types.List:
		return "List", true
	case types.Struct:
		return v.Name, true
	case types.TypeRef:
		return v.Name, true
	default:
		return "", false
	}
}

func nameErr(span cerrors.Span, format string, a ...any) error {
	return cerrors.New(cerrors.Name, fmt.Sprintf(format, a...), span)
}

func typeErr(span cerrors.Span, format string, a ...any) error {
	return cerrors.New(cerrors.Type, fmt.Sprintf(format, a...), span)
}

func structureErr(span cerrors.Span, format string, a ...any) error {
	return cerrors.New(cerrors.Structure, fmt.Sprintf(format, a...), span)
}
