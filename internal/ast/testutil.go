package ast

import "github.com/cwbudde/go-lift/internal/types"

// This file provides zero-span constructor helpers for building trees by
// hand, used throughout this module's own test suite in place of driving
// an actual parser (which, per the design, is an external collaborator
// this module does not implement). Mirrors the shape of a hand-written
// parser's node construction without the grammar.

func Int(v int64) *IntLit   { return &IntLit{Value: v} }
func Flt(v float64) *FltLit { return &FltLit{Value: v} }
func Bool(v bool) *BoolLit  { return &BoolLit{Value: v} }
func Str(v string) *StrLit  { return &StrLit{Value: v} }

func Id(name string) *Var { return &Var{Name: name} }

func BinOp(op string, left, right Expr) *Bin { return &Bin{Op: op, Left: left, Right: right} }
func UnOp(op string, operand Expr) *Un       { return &Un{Op: op, Operand: operand} }

func LetVal(name string, value Expr) *Let {
	return &Let{Name: name, Value: value}
}

func LetVar(name string, value Expr) *Let {
	return &Let{Name: name, Mutable: true, Value: value}
}

func LetTyped(name string, annotation types.Type, value Expr) *Let {
	return &Let{Name: name, Annotation: annotation, Value: value}
}

func AssignTo(name string, value Expr) *Assign { return &Assign{Name: name, Value: value} }

func Field(target Expr, field string) *FieldAccess {
	return &FieldAccess{Target: target, Field: field}
}

func FieldSet(target Expr, field string, value Expr) *FieldAssign {
	return &FieldAssign{Target: target, Field: field, Value: value}
}

func IfElse(cond, then, els Expr) *If { return &If{Cond: cond, Then: then, FinalElse: els} }
func IfThen(cond, then Expr) *If      { return &If{Cond: cond, Then: then, FinalElse: &Unit{}} }

func WhileLoop(cond, body Expr) *While { return &While{Cond: cond, Body: body} }

func Blk(body ...Expr) *Block { return &Block{Body: body} }

func Prog(body ...Expr) *Program { return &Program{Body: body} }

func P(name string, typ types.Type) Param     { return Param{Name: name, Type: typ} }
func CopyP(name string, typ types.Type) Param { return Param{Name: name, Type: typ, Copy: true} }

func Fn(params []Param, ret types.Type, body Expr) *Lambda {
	return &Lambda{Params: params, ReturnType: ret, Body: body}
}

func Method(receiver types.Type, params []Param, ret types.Type, body Expr) *Lambda {
	return &Lambda{Receiver: receiver, Params: params, ReturnType: ret, Body: body}
}

func DefFn(name string, fn *Lambda) *DefineFunction {
	return &DefineFunction{Name: name, Fn: fn}
}

func DefType(name string, def types.Type) *DefineType {
	return &DefineType{Name: name, Definition: def}
}

func CallFn(name string, args ...Expr) *Call { return &Call{Name: name, Args: wrapArgs(args)} }

func CallMethod(receiver Expr, method string, args ...Expr) *MethodCall {
	return &MethodCall{Receiver: receiver, Method: method, Args: wrapArgs(args)}
}

// CallFnLabeled and CallMethodLabeled build calls with named arguments
// (`sum(n: 3)`), alternating label/value pairs.
func CallFnLabeled(name string, labelsAndArgs ...any) *Call {
	return &Call{Name: name, Args: labeledArgs(labelsAndArgs)}
}

func CallMethodLabeled(receiver Expr, method string, labelsAndArgs ...any) *MethodCall {
	return &MethodCall{Receiver: receiver, Method: method, Args: labeledArgs(labelsAndArgs)}
}

func wrapArgs(args []Expr) []Arg {
	out := make([]Arg, len(args))
	for i, a := range args {
		out[i] = Arg{Value: a}
	}
	return out
}

func labeledArgs(labelsAndArgs []any) []Arg {
	out := make([]Arg, 0, len(labelsAndArgs)/2)
	for i := 0; i+1 < len(labelsAndArgs); i += 2 {
		out = append(out, Arg{Label: labelsAndArgs[i].(string), Value: labelsAndArgs[i+1].(Expr)})
	}
	return out
}

func StructLit(typeName string, fields map[string]Expr, order ...string) *StructLiteral {
	return &StructLiteral{TypeName: typeName, Fields: fields, FieldOrder: order}
}

func ListLit(elems ...Expr) *ListLiteral {
	return &ListLiteral{ElemType: types.Unsolved{}, Elems: elems}
}

func ListLitOf(elemType types.Type, elems ...Expr) *ListLiteral {
	return &ListLiteral{ElemType: elemType, Elems: elems}
}

func MapLit(keyType, valueType types.Type, keys, values []Expr) *MapLiteral {
	return &MapLiteral{KeyType: keyType, ValueType: valueType, Keys: keys, Values: values}
}

func RangeOf(start, end Expr) *RangeLit { return &RangeLit{Start: start, End: end} }

func Idx(collection, key Expr) *Index { return &Index{Collection: collection, Key: key} }

func Len(target Expr) *Length { return &Length{Target: target} }

func Out(args ...Expr) *Output { return &Output{Args: args} }

func Ret(value Expr) *Return { return &Return{Value: value} }
