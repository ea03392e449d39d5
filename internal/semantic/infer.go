package semantic

import (
	"github.com/cwbudde/go-lift/internal/ast"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

// Infer is a best-effort, non-failing variant of type checking. Pass 1
// uses it to determine a receiver's type ahead of UFCS/method resolution,
// before the tree is fully checked; lowering uses it to pick runtime
// entry points by operand type. It returns (nil, false), never an error,
// when there isn't enough information yet — e.g. an if-without-else used
// in value position.
func Infer(e ast.Expr, table *symbols.Table, scope int) (types.Type, bool) {
	switch n := e.(type) {
	case *ast.Unit:
		return nil, false
	case *ast.IntLit:
		return types.Int{}, true
	case *ast.FltLit:
		return types.Flt{}, true
	case *ast.BoolLit:
		return types.Bool{}, true
	case *ast.StrLit:
		return types.Str{}, true

	case *ast.Var:
		if n.Index == nil {
			return nil, false
		}
		return table.GetSymbolType(*n.Index), true

	case *ast.Bin:
		return inferBin(n, table, scope)

	case *ast.Un:
		switch n.Op {
		case "not":
			return types.Bool{}, true
		case "-":
			return Infer(n.Operand, table, scope)
		}
		return nil, false

	case *ast.Let:
		if n.Annotation != nil {
			return n.Annotation, true
		}
		return Infer(n.Value, table, scope)

	case *ast.Assign:
		return Infer(n.Value, table, scope)

	case *ast.FieldAccess:
		target, ok := Infer(n.Target, table, scope)
		if !ok {
			return nil, false
		}
		st, ok := resolveStruct(target, table, scope)
		if !ok {
			return nil, false
		}
		return st.FieldType(n.Field)

	case *ast.FieldAssign:
		return Infer(n.Value, table, scope)

	case *ast.If:
		if _, isUnit := n.FinalElse.(*ast.Unit); isUnit {
			return nil, false
		}
		return Infer(n.Then, table, scope)

	case *ast.While:
		return nil, false

	case *ast.Block:
		if len(n.Body) == 0 {
			return nil, false
		}
		return Infer(n.Body[len(n.Body)-1], table, scope)

	case *ast.Program:
		if len(n.Body) == 0 {
			return nil, false
		}
		return Infer(n.Body[len(n.Body)-1], table, scope)

	case *ast.Lambda:
		return n.ReturnType, true

	case *ast.Call:
		return inferCall(n, table, scope)

	case *ast.MethodCall:
		return inferMethodCall(n, table, scope)

	case *ast.StructLiteral:
		if def, ok := table.LookupType(n.TypeName, scope); ok {
			return def, true
		}
		return types.TypeRef{Name: n.TypeName}, true

	case *ast.ListLiteral:
		if !isUnsolved(n.ElemType) {
			return types.List{Elem: n.ElemType}, true
		}
		if len(n.Elems) == 0 {
			return nil, false
		}
		elem, ok := Infer(n.Elems[0], table, scope)
		if !ok {
			return nil, false
		}
		return types.List{Elem: elem}, true

	case *ast.MapLiteral:
		if !isUnsolved(n.KeyType) && !isUnsolved(n.ValueType) {
			return types.Map{Key: n.KeyType, Value: n.ValueType}, true
		}
		if len(n.Keys) == 0 {
			return nil, false
		}
		key, ok := Infer(n.Keys[0], table, scope)
		if !ok {
			return nil, false
		}
		val, ok := Infer(n.Values[0], table, scope)
		if !ok {
			return nil, false
		}
		return types.Map{Key: key, Value: val}, true

	case *ast.RangeLit:
		return types.Range{}, true

	case *ast.Index:
		coll, ok := Infer(n.Collection, table, scope)
		if !ok {
			return nil, false
		}
		switch c := coll.(type) {
		case types.List:
			return c.Elem, true
		case types.Map:
			return c.Value, true
		}
		return nil, false

	case *ast.Length:
		return types.Int{}, true

	case *ast.Output:
		return nil, false

	case *ast.Return:
		return Infer(n.Value, table, scope)

	default:
		return nil, false
	}
}

func inferBin(n *ast.Bin, table *symbols.Table, scope int) (types.Type, bool) {
	switch n.Op {
	case "<", "<=", ">", ">=", "=", "<>", "and", "or":
		return types.Bool{}, true
	case "..":
		return types.Range{}, true
	}
	left, lok := Infer(n.Left, table, scope)
	right, rok := Infer(n.Right, table, scope)
	if !lok || !rok {
		return nil, false
	}
	if _, isStr := left.(types.Str); isStr {
		return types.Str{}, true
	}
	if _, isFlt := left.(types.Flt); isFlt {
		return types.Flt{}, true
	}
	if _, isFlt := right.(types.Flt); isFlt {
		return types.Flt{}, true
	}
	return types.Int{}, true
}

// inferCall handles a Call already resolved by pass 1 (n.Index set). For
// the UFCS built-ins (upper/lower/first/last) it applies the method
// return-type substitution described in the design notes: an Unsolved or
// List{Unsolved} declared return type is replaced by the receiver's
// concrete element type.
func inferCall(n *ast.Call, table *symbols.Table, scope int) (types.Type, bool) {
	if builtinMethods[n.Name] {
		return inferBuiltinMethod(n.Name, n.Args, table, scope)
	}
	if n.Index == nil {
		return nil, false
	}
	return substituteReturnType(table.GetSymbolType(*n.Index), n.Args, table, scope)
}

func inferMethodCall(n *ast.MethodCall, table *symbols.Table, scope int) (types.Type, bool) {
	if builtinMethods[n.Method] {
		recvArg := ast.Arg{Value: n.Receiver}
		return inferBuiltinMethod(n.Method, append([]ast.Arg{recvArg}, n.Args...), table, scope)
	}
	if n.Index == nil {
		return nil, false
	}
	recvArg := ast.Arg{Value: n.Receiver}
	return substituteReturnType(table.GetSymbolType(*n.Index), append([]ast.Arg{recvArg}, n.Args...), table, scope)
}

func inferBuiltinMethod(name string, args []ast.Arg, table *symbols.Table, scope int) (types.Type, bool) {
	if len(args) == 0 {
		return nil, false
	}
	recv, ok := Infer(args[0].Value, table, scope)
	if !ok {
		return nil, false
	}
	switch name {
	case "upper", "lower":
		if _, ok := recv.(types.Str); ok {
			return types.Str{}, true
		}
		return nil, false
	case "first", "last":
		if lst, ok := recv.(types.List); ok {
			return lst.Elem, true
		}
		return nil, false
	}
	return nil, false
}

// substituteReturnType implements the hand-rolled generics substitution:
// when declared is Unsolved or List{Unsolved}, replace the Unsolved part
// with the first argument's list element type.
func substituteReturnType(declared types.Type, args []ast.Arg, table *symbols.Table, scope int) (types.Type, bool) {
	if len(args) == 0 {
		return declared, true
	}
	switch d := declared.(type) {
	case types.Unsolved:
		recv, ok := Infer(args[0].Value, table, scope)
		if !ok {
			return nil, false
		}
		if lst, ok := recv.(types.List); ok {
			return lst.Elem, true
		}
		return nil, false
	case types.List:
		if isUnsolved(d.Elem) {
			recv, ok := Infer(args[0].Value, table, scope)
			if !ok {
				return nil, false
			}
			if lst, ok := recv.(types.List); ok {
				return types.List{Elem: lst.Elem}, true
			}
			return nil, false
		}
	}
	return declared, true
}

func isUnsolved(t types.Type) bool {
	if t == nil {
		return true
	}
	_, ok := t.(types.Unsolved)
	return ok
}

// resolveStruct resolves t (following a TypeRef alias if necessary) to a
// types.Struct definition.
func resolveStruct(t types.Type, table *symbols.Table, scope int) (types.Struct, bool) {
	switch v := t.(type) {
	case types.Struct:
		return v, true
	case types.TypeRef:
		resolved, ok := table.LookupType(v.Name, scope)
		if !ok {
			return types.Struct{}, false
		}
		return resolveStruct(resolved, table, scope)
	}
	return types.Struct{}, false
}
