package semantic

import (
	"github.com/cwbudde/go-lift/internal/ast"
	cerrors "github.com/cwbudde/go-lift/internal/errors"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

// Check runs pass 2 over an already-bound tree, returning the type of the
// tree's final expression (nil stands for Unit — there is no Unit variant
// in the type algebra, by design) or the first CompileError encountered.
func Check(tree ast.Expr, table *symbols.Table) (types.Type, error) {
	return checkExpr(tree, table, 0)
}

func checkExpr(e ast.Expr, table *symbols.Table, scope int) (types.Type, error) {
	switch n := e.(type) {
	case *ast.Unit:
		return nil, nil
	case *ast.IntLit:
		return types.Int{}, nil
	case *ast.FltLit:
		return types.Flt{}, nil
	case *ast.BoolLit:
		return types.Bool{}, nil
	case *ast.StrLit:
		return types.Str{}, nil

	case *ast.Var:
		return table.GetSymbolType(*n.Index), nil

	case *ast.Bin:
		return checkBin(n, table, scope)

	case *ast.Un:
		operand, err := checkExpr(n.Operand, table, scope)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "not":
			if !types.Equals(operand, types.Bool{}) {
				return nil, typeErr(n.Span, "'not' requires Bool, got %s", operand)
			}
			return types.Bool{}, nil
		case "-":
			if !types.IsNumeric(operand) {
				return nil, typeErr(n.Span, "unary '-' requires a numeric operand, got %s", operand)
			}
			return operand, nil
		}
		return nil, structureErr(n.Span, "unknown unary operator '%s'", n.Op)

	case *ast.Let:
		valType, err := checkExpr(n.Value, table, scope)
		if err != nil {
			return nil, err
		}
		declared := n.Annotation
		if declared == nil {
			declared = table.GetSymbolType(*n.Index)
		} else if !emptyCollectionLiteral(n.Value) {
			if !assignable(declared, valType, table, scope) {
				return nil, typeErr(n.Span, "'%s' declared as %s but initialized with %s", n.Name, declared, valType)
			}
		}
		table.SetSymbolType(*n.Index, declared)
		return declared, nil

	case *ast.Assign:
		if !table.IsMutable(*n.Index) {
			return nil, typeErr(n.Span, "cannot assign to immutable binding '%s'", n.Name)
		}
		valType, err := checkExpr(n.Value, table, scope)
		if err != nil {
			return nil, err
		}
		declared := table.GetSymbolType(*n.Index)
		if !assignable(declared, valType, table, scope) {
			return nil, typeErr(n.Span, "cannot assign %s to '%s' of type %s", valType, n.Name, declared)
		}
		return declared, nil

	case *ast.FieldAccess:
		targetType, err := checkExpr(n.Target, table, scope)
		if err != nil {
			return nil, err
		}
		st, ok := resolveStruct(targetType, table, scope)
		if !ok {
			return nil, typeErr(n.Span, "%s is not a struct type", targetType)
		}
		fieldType, ok := st.FieldType(n.Field)
		if !ok {
			return nil, nameErr(n.Span, "unknown field '%s' on %s", n.Field, targetType)
		}
		return fieldType, nil

	case *ast.FieldAssign:
		v, ok := n.Target.(*ast.Var)
		if !ok {
			return nil, structureErr(n.Span, "field-assignment target must be a variable")
		}
		if !table.IsMutable(*v.Index) {
			return nil, typeErr(n.Span, "cannot assign field on immutable binding '%s'", v.Name)
		}
		targetType := table.GetSymbolType(*v.Index)
		st, ok := resolveStruct(targetType, table, scope)
		if !ok {
			return nil, typeErr(n.Span, "%s is not a struct type", targetType)
		}
		fieldType, ok := st.FieldType(n.Field)
		if !ok {
			return nil, nameErr(n.Span, "unknown field '%s' on %s", n.Field, targetType)
		}
		valType, err := checkExpr(n.Value, table, scope)
		if err != nil {
			return nil, err
		}
		if !assignable(fieldType, valType, table, scope) {
			return nil, typeErr(n.Span, "cannot assign %s to field '%s' of type %s", valType, n.Field, fieldType)
		}
		return fieldType, nil

	case *ast.If:
		condType, err := checkExpr(n.Cond, table, scope)
		if err != nil {
			return nil, err
		}
		if !types.Equals(condType, types.Bool{}) {
			return nil, typeErr(n.Span, "if condition must be Bool, got %s", condType)
		}
		thenType, err := checkExpr(n.Then, table, scope)
		if err != nil {
			return nil, err
		}
		if _, isUnit := n.FinalElse.(*ast.Unit); isUnit {
			return nil, nil
		}
		elseType, err := checkExpr(n.FinalElse, table, scope)
		if err != nil {
			return nil, err
		}
		if !compatibleResolved(thenType, elseType, table, scope) {
			return nil, typeErr(n.Span, "if branches have incompatible types: %s vs %s", thenType, elseType)
		}
		return unify(thenType, elseType), nil

	case *ast.While:
		condType, err := checkExpr(n.Cond, table, scope)
		if err != nil {
			return nil, err
		}
		if !types.Equals(condType, types.Bool{}) {
			return nil, typeErr(n.Span, "while condition must be Bool, got %s", condType)
		}
		if _, err := checkExpr(n.Body, table, scope); err != nil {
			return nil, err
		}
		return nil, nil

	case *ast.Block:
		return checkBody(n.Body, table, n.Scope)

	case *ast.Program:
		return checkBody(n.Body, table, 0)

	case *ast.DefineType:
		return nil, nil

	case *ast.DefineFunction:
		if err := checkFunctionBody(n.Fn, table); err != nil {
			return nil, err
		}
		return nil, nil

	case *ast.Lambda:
		if err := checkFunctionBody(n, table); err != nil {
			return nil, err
		}
		return n.ReturnType, nil

	case *ast.Call:
		return checkCall(n, table, scope)

	case *ast.MethodCall:
		return checkMethodCall(n, table, scope)

	case *ast.StructLiteral:
		return checkStructLiteral(n, table, scope)

	case *ast.ListLiteral:
		return checkListLiteral(n, table, scope)

	case *ast.MapLiteral:
		return checkMapLiteral(n, table, scope)

	case *ast.RangeLit:
		startType, err := checkExpr(n.Start, table, scope)
		if err != nil {
			return nil, err
		}
		if !types.Equals(startType, types.Int{}) {
			return nil, typeErr(n.Span, "range bounds must be Int, got %s", startType)
		}
		endType, err := checkExpr(n.End, table, scope)
		if err != nil {
			return nil, err
		}
		if !types.Equals(endType, types.Int{}) {
			return nil, typeErr(n.Span, "range bounds must be Int, got %s", endType)
		}
		return types.Range{}, nil

	case *ast.Index:
		collType, err := checkExpr(n.Collection, table, scope)
		if err != nil {
			return nil, err
		}
		keyType, err := checkExpr(n.Key, table, scope)
		if err != nil {
			return nil, err
		}
		switch c := resolveAlias(collType, table, scope).(type) {
		case types.List:
			if !types.Equals(keyType, types.Int{}) {
				return nil, typeErr(n.Span, "list index must be Int, got %s", keyType)
			}
			return c.Elem, nil
		case types.Map:
			if _, isFlt := keyType.(types.Flt); isFlt {
				return nil, typeErr(n.Span, "Flt may not be used as a map key")
			}
			if !compatibleResolved(c.Key, keyType, table, scope) {
				return nil, typeErr(n.Span, "map key must be %s, got %s", c.Key, keyType)
			}
			return c.Value, nil
		default:
			return nil, typeErr(n.Span, "%s is not indexable", collType)
		}

	case *ast.Length:
		targetType, err := checkExpr(n.Target, table, scope)
		if err != nil {
			return nil, err
		}
		switch resolveAlias(targetType, table, scope).(type) {
		case types.Str, types.List, types.Map:
			return types.Int{}, nil
		default:
			return nil, typeErr(n.Span, "length is not defined for %s", targetType)
		}

	case *ast.Output:
		for _, a := range n.Args {
			if _, err := checkExpr(a, table, scope); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case *ast.Return:
		if _, err := checkExpr(n.Value, table, scope); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, structureErr(e.Pos(), "typecheck: unhandled node type %T", e)
	}
}

func checkBody(stmts []ast.Expr, table *symbols.Table, scope int) (types.Type, error) {
	var last types.Type
	for _, s := range stmts {
		t, err := checkExpr(s, table, scope)
		if err != nil {
			return nil, err
		}
		last = t
	}
	return last, nil
}

func checkBin(n *ast.Bin, table *symbols.Table, scope int) (types.Type, error) {
	left, err := checkExpr(n.Left, table, scope)
	if err != nil {
		return nil, err
	}
	right, err := checkExpr(n.Right, table, scope)
	if err != nil {
		return nil, err
	}
	left, right = resolveAlias(left, table, scope), resolveAlias(right, table, scope)

	switch n.Op {
	case "+", "-", "*", "/":
		_, leftStr := left.(types.Str)
		_, rightStr := right.(types.Str)
		if leftStr || rightStr {
			if n.Op != "+" || !leftStr || !rightStr {
				return nil, typeErr(n.Span, "operator '%s' is not defined for %s and %s", n.Op, left, right)
			}
			return types.Str{}, nil
		}
		if !types.IsNumeric(left) || !types.IsNumeric(right) {
			return nil, typeErr(n.Span, "operator '%s' requires numeric operands, got %s and %s", n.Op, left, right)
		}
		return unify(left, right), nil

	case "<", "<=", ">", ">=":
		if !types.IsNumeric(left) || !types.IsNumeric(right) {
			return nil, typeErr(n.Span, "comparison requires numeric operands, got %s and %s", left, right)
		}
		return types.Bool{}, nil

	case "=", "<>":
		if !compatibleResolved(left, right, table, scope) {
			return nil, typeErr(n.Span, "'%s' and '%s' are not comparable", left, right)
		}
		return types.Bool{}, nil

	case "and", "or":
		if !types.Equals(left, types.Bool{}) || !types.Equals(right, types.Bool{}) {
			return nil, typeErr(n.Span, "'%s' requires Bool operands, got %s and %s", n.Op, left, right)
		}
		return types.Bool{}, nil

	case "..":
		if !types.Equals(left, types.Int{}) || !types.Equals(right, types.Int{}) {
			return nil, typeErr(n.Span, "range bounds must be Int, got %s and %s", left, right)
		}
		return types.Range{}, nil
	}
	return nil, structureErr(n.Span, "unknown binary operator '%s'", n.Op)
}

// checkFunctionBody validates that fn's body type is assignable to its
// declared return type. A nil ReturnType means the function declares no
// return value (Unit), so any body is accepted.
func checkFunctionBody(fn *ast.Lambda, table *symbols.Table) error {
	bodyType, err := checkExpr(fn.Body, table, fn.Scope)
	if err != nil {
		return err
	}
	if fn.ReturnType == nil {
		return nil
	}
	if !assignable(fn.ReturnType, bodyType, table, fn.Scope) {
		return typeErr(fn.Span, "function body produces %s but return type is %s", bodyType, fn.ReturnType)
	}
	return nil
}

func checkCall(n *ast.Call, table *symbols.Table, scope int) (types.Type, error) {
	if builtinMethods[n.Name] {
		return checkBuiltinCall(n.Name, n.Args, n.Span, table, scope)
	}
	def, ok := table.GetSymbolValue(*n.Index).(*ast.DefineFunction)
	if !ok {
		return nil, structureErr(n.Span, "'%s' does not resolve to a function", n.Name)
	}
	return checkArgsAgainstParams(n.Name, def.Fn, n.Args, n.Span, table, scope)
}

func checkMethodCall(n *ast.MethodCall, table *symbols.Table, scope int) (types.Type, error) {
	allArgs := append([]ast.Arg{{Value: n.Receiver}}, n.Args...)
	if builtinMethods[n.Method] {
		return checkBuiltinCall(n.Method, allArgs, n.Span, table, scope)
	}
	def, ok := table.GetSymbolValue(*n.Index).(*ast.DefineFunction)
	if !ok {
		return nil, structureErr(n.Span, "'%s' does not resolve to a method", n.Method)
	}
	return checkArgsAgainstParams(n.Method, def.Fn, allArgs, n.Span, table, scope)
}

func checkArgsAgainstParams(name string, fn *ast.Lambda, args []ast.Arg, span cerrors.Span, table *symbols.Table, scope int) (types.Type, error) {
	if len(args) != len(fn.Params) {
		return nil, typeErr(span, "'%s' expects %d argument(s), got %d", name, len(fn.Params), len(args))
	}
	for i, a := range args {
		argType, err := checkExpr(a.Value, table, scope)
		if err != nil {
			return nil, err
		}
		if !assignable(fn.Params[i].Type, argType, table, scope) {
			label := "argument"
			if i == 0 && fn.Receiver != nil {
				label = "receiver (self)"
			}
			return nil, typeErr(span, "%s %d of '%s' expects %s, got %s", label, i, name, fn.Params[i].Type, argType)
		}
	}
	return fn.ReturnType, nil
}

func checkBuiltinCall(name string, args []ast.Arg, span cerrors.Span, table *symbols.Table, scope int) (types.Type, error) {
	if len(args) == 0 {
		return nil, typeErr(span, "'%s' requires a receiver", name)
	}
	recvType, err := checkExpr(args[0].Value, table, scope)
	if err != nil {
		return nil, err
	}
	switch name {
	case "upper", "lower":
		if !types.Equals(recvType, types.Str{}) {
			return nil, typeErr(span, "'%s' requires a Str receiver, got %s", name, recvType)
		}
		return types.Str{}, nil
	case "first", "last":
		lst, ok := resolveAlias(recvType, table, scope).(types.List)
		if !ok {
			return nil, typeErr(span, "'%s' requires a List receiver, got %s", name, recvType)
		}
		return lst.Elem, nil
	}
	return nil, structureErr(span, "unknown built-in '%s'", name)
}

func checkStructLiteral(n *ast.StructLiteral, table *symbols.Table, scope int) (types.Type, error) {
	def, ok := table.LookupType(n.TypeName, scope)
	if !ok {
		return nil, nameErr(n.Span, "undeclared type '%s'", n.TypeName)
	}
	st, ok := resolveStruct(def, table, scope)
	if !ok {
		return nil, structureErr(n.Span, "'%s' is not a struct type", n.TypeName)
	}

	seen := make(map[string]bool, len(n.FieldOrder))
	for _, name := range n.FieldOrder {
		if seen[name] {
			return nil, typeErr(n.Span, "duplicate field '%s' in struct literal '%s'", name, n.TypeName)
		}
		seen[name] = true
		fieldType, ok := st.FieldType(name)
		if !ok {
			return nil, typeErr(n.Span, "'%s' has no field '%s'", n.TypeName, name)
		}
		valType, err := checkExpr(n.Fields[name], table, scope)
		if err != nil {
			return nil, err
		}
		if !assignable(fieldType, valType, table, scope) {
			return nil, typeErr(n.Span, "field '%s' expects %s, got %s", name, fieldType, valType)
		}
	}
	for _, f := range st.Fields {
		if !seen[f.Name] {
			return nil, typeErr(n.Span, "missing field '%s' in struct literal '%s'", f.Name, n.TypeName)
		}
	}
	return types.TypeRef{Name: n.TypeName}, nil
}

func checkListLiteral(n *ast.ListLiteral, table *symbols.Table, scope int) (types.Type, error) {
	elemType := n.ElemType
	if isUnsolved(elemType) {
		if len(n.Elems) == 0 {
			return nil, typeErr(n.Span, "cannot infer type of empty list literal without annotation")
		}
		first, err := checkExpr(n.Elems[0], table, scope)
		if err != nil {
			return nil, err
		}
		elemType = first
	}
	for _, el := range n.Elems {
		t, err := checkExpr(el, table, scope)
		if err != nil {
			return nil, err
		}
		if !compatibleResolved(elemType, t, table, scope) {
			return nil, typeErr(n.Span, "list element %s is incompatible with element type %s", t, elemType)
		}
	}
	n.ElemType = elemType
	return types.List{Elem: elemType}, nil
}

func checkMapLiteral(n *ast.MapLiteral, table *symbols.Table, scope int) (types.Type, error) {
	keyType, valType := n.KeyType, n.ValueType
	if isUnsolved(keyType) || isUnsolved(valType) {
		if len(n.Keys) == 0 {
			return nil, typeErr(n.Span, "cannot infer type of empty map literal without annotation")
		}
		k, err := checkExpr(n.Keys[0], table, scope)
		if err != nil {
			return nil, err
		}
		v, err := checkExpr(n.Values[0], table, scope)
		if err != nil {
			return nil, err
		}
		keyType, valType = k, v
	}
	if !types.IsValidMapKey(resolveAlias(keyType, table, scope)) {
		return nil, typeErr(n.Span, "%s is not a valid map key type", keyType)
	}
	for i := range n.Keys {
		k, err := checkExpr(n.Keys[i], table, scope)
		if err != nil {
			return nil, err
		}
		if !compatibleResolved(keyType, k, table, scope) {
			return nil, typeErr(n.Span, "map key %s is incompatible with key type %s", k, keyType)
		}
		v, err := checkExpr(n.Values[i], table, scope)
		if err != nil {
			return nil, err
		}
		if !compatibleResolved(valType, v, table, scope) {
			return nil, typeErr(n.Span, "map value %s is incompatible with value type %s", v, valType)
		}
	}
	n.KeyType, n.ValueType = keyType, valType
	return types.Map{Key: keyType, Value: valType}, nil
}

// resolveAlias follows a TypeRef to its underlying definition, recursively.
// Non-TypeRef types are returned unchanged.
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

// compatibleResolved is types.Compatible after resolving any TypeRef alias
// on either side to its underlying type.
func compatibleResolved(a, b types.Type, table *symbols.Table, scope int) bool {
	return types.Compatible(resolveAlias(a, table, scope), resolveAlias(b, table, scope))
}

// assignable is the exactness-sensitive relation used for Let/Assign/
// field/argument compatibility: unlike types.Compatible, Int does not
// satisfy a Flt declaration in reverse, and vice versa is the only
// numeric widening allowed (an Int value into a Flt-declared slot).
func assignable(want, have types.Type, table *symbols.Table, scope int) bool {
	rw, rh := resolveAlias(want, table, scope), resolveAlias(have, table, scope)
	if _, isUnsolved := rw.(types.Unsolved); isUnsolved {
		return true
	}
	if _, isUnsolved := rh.(types.Unsolved); isUnsolved {
		return true
	}
	if _, wantFlt := rw.(types.Flt); wantFlt {
		if _, haveInt := rh.(types.Int); haveInt {
			return true
		}
	}
	return types.Equals(rw, rh)
}

// unify picks the representative type of two numerically compatible
// operands: Flt if either side is Flt, otherwise the left side.
func unify(a, b types.Type) types.Type {
	if _, ok := a.(types.Flt); ok {
		return a
	}
	if _, ok := b.(types.Flt); ok {
		return b
	}
	return a
}

func emptyCollectionLiteral(e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.ListLiteral:
		return len(v.Elems) == 0
	case *ast.MapLiteral:
		return len(v.Keys) == 0
	}
	return false
}
