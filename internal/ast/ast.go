// Package ast defines the syntax tree the compiler consumes. The tree is
// produced by an external parser (out of scope for this module — only its
// shape matters here); test fixtures build trees directly with the
// constructor helpers in this package, the same way a hand-written parser
// would.
package ast

import (
	"github.com/cwbudde/go-lift/internal/errors"
	"github.com/cwbudde/go-lift/internal/symbols"
	"github.com/cwbudde/go-lift/internal/types"
)

// Expr is the sum type of every node in the tree. Every variant is a
// distinct Go type implementing this interface; there is no single
// "kind" tag field to switch on — callers type-switch on the concrete
// type, which is the idiomatic Go rendering of the algebraic sum type the
// design calls for.
type Expr interface {
	Pos() errors.Span
	exprNode()
}

// Unit is the distinguished "no value" expression. If-statements without
// an else branch, and while loops, yield Unit. It is a dedicated node
// rather than a nil Expr or an Optional wrapper, per the design's
// explicit guidance to treat Unit as its own variant.
type Unit struct {
	Span errors.Span
}

func (u *Unit) Pos() errors.Span { return u.Span }
func (*Unit) exprNode()          {}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	Span  errors.Span
}

func (l *IntLit) Pos() errors.Span { return l.Span }
func (*IntLit) exprNode()          {}

// FltLit is a floating-point literal.
type FltLit struct {
	Value float64
	Span  errors.Span
}

func (l *FltLit) Pos() errors.Span { return l.Span }
func (*FltLit) exprNode()          {}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
	Span  errors.Span
}

func (l *BoolLit) Pos() errors.Span { return l.Span }
func (*BoolLit) exprNode()          {}

// StrLit is a string literal.
type StrLit struct {
	Value string
	Span  errors.Span
}

func (l *StrLit) Pos() errors.Span { return l.Span }
func (*StrLit) exprNode()          {}

// Var is a name reference. Index is filled in by pass 1; nil until then.
type Var struct {
	Name  string
	Index *symbols.Index
	Span  errors.Span
}

func (v *Var) Pos() errors.Span { return v.Span }
func (*Var) exprNode()          {}

// Bin is a binary operator expression. Op is one of:
// "+" "-" "*" "/" "<" "<=" ">" ">=" "=" "<>" "and" "or" "..".
type Bin struct {
	Op    string
	Left  Expr
	Right Expr
	Span  errors.Span
}

func (b *Bin) Pos() errors.Span { return b.Span }
func (*Bin) exprNode()          {}

// Un is a unary operator expression. Op is "-" or "not".
type Un struct {
	Op      string
	Operand Expr
	Span    errors.Span
}

func (u *Un) Pos() errors.Span { return u.Span }
func (*Un) exprNode()          {}

// Let is a binding: `let [var] name[: Type] = value`.
type Let struct {
	Name       string
	Mutable    bool
	Annotation types.Type // nil if no `: Type` was written
	Value      Expr
	Index      *symbols.Index
	Span       errors.Span
}

func (l *Let) Pos() errors.Span { return l.Span }
func (*Let) exprNode()          {}

// Assign is `name := value`.
type Assign struct {
	Name  string
	Value Expr
	Index *symbols.Index
	Span  errors.Span
}

func (a *Assign) Pos() errors.Span { return a.Span }
func (*Assign) exprNode()          {}

// FieldAccess is `target.field`.
type FieldAccess struct {
	Target Expr
	Field  string
	Span   errors.Span
}

func (f *FieldAccess) Pos() errors.Span { return f.Span }
func (*FieldAccess) exprNode()          {}

// FieldAssign is `target.field := value`. Target must be a *Var; any other
// target shape is a Structure error at bind time.
type FieldAssign struct {
	Target Expr
	Field  string
	Value  Expr
	Span   errors.Span
}

func (f *FieldAssign) Pos() errors.Span { return f.Span }
func (*FieldAssign) exprNode()          {}

// If is `if cond { then } [else { else }]`. FinalElse is *Unit when there
// is no else branch — in that case the If may not appear in value
// position.
type If struct {
	Cond      Expr
	Then      Expr
	FinalElse Expr
	Span      errors.Span
}

func (i *If) Pos() errors.Span { return i.Span }
func (*If) exprNode()          {}

// While is `while cond { body }`. Always yields Unit.
type While struct {
	Cond Expr
	Body Expr
	Span errors.Span
}

func (w *While) Pos() errors.Span { return w.Span }
func (*While) exprNode()          {}

// Block is `{ stmt; stmt; ... }`. It is the only node other than Lambda
// that introduces a new scope; Scope is filled in by pass 1.
type Block struct {
	Body  []Expr
	Scope int
	Span  errors.Span
}

func (b *Block) Pos() errors.Span { return b.Span }
func (*Block) exprNode()          {}

// Program is the top-level block. Its scope is always 0.
type Program struct {
	Body []Expr
	Span errors.Span
}

func (p *Program) Pos() errors.Span { return p.Span }
func (*Program) exprNode()          {}

// Param is one function or method parameter. Copy marks a `copy`-keyword
// parameter, which is bound mutable (by value); other parameters are
// immutable references.
type Param struct {
	Name string
	Type types.Type
	Copy bool
}

// Lambda is a function literal: `function(params): ReturnType { body }` or
// a bare anonymous lambda. If Receiver is non-nil, this lambda is a
// method and pass 1 synthesizes a `self` parameter of that type at
// position 0. Scope is filled in by pass 1 (lambdas, like blocks, create
// their own scope).
type Lambda struct {
	Receiver   types.Type // nil for a free function
	Params     []Param
	ReturnType types.Type
	Body       Expr
	Scope      int
	Span       errors.Span
}

func (l *Lambda) Pos() errors.Span { return l.Span }
func (*Lambda) exprNode()          {}

// DefineFunction binds Fn under Name in the enclosing scope, with its own
// name visible inside its body (recursion) via pass 1's placeholder /
// back-patch sequence.
type DefineFunction struct {
	Name  string
	Fn    *Lambda
	Index *symbols.Index
	Span  errors.Span
}

func (d *DefineFunction) Pos() errors.Span { return d.Span }
func (*DefineFunction) exprNode()           {}

// DefineType registers an alias (`type Age = Int`) or a struct definition
// in the current scope's type namespace.
type DefineType struct {
	Name       string
	Definition types.Type
	Span       errors.Span
}

func (d *DefineType) Pos() errors.Span { return d.Span }
func (*DefineType) exprNode()          {}

// Arg is one call argument. Label is the parameter name written at the
// call site (`sum(n: 3)`); it is empty for an unlabeled positional
// argument. Matching against a callee's parameters is positional — Label
// is carried through for diagnostics and because it becomes the field
// name when a Call is rewritten to a StructLiteral.
type Arg struct {
	Label string
	Value Expr
}

// Call is `name(args...)`. Pass 1 may rewrite this in place (the binder
// returns a replacement node) to a *StructLiteral when name resolves to a
// type, or resolve it via UFCS when a direct function lookup fails.
type Call struct {
	Name  string
	Args  []Arg
	Index *symbols.Index
	Span  errors.Span
}

func (c *Call) Pos() errors.Span { return c.Span }
func (*Call) exprNode()          {}

// MethodCall is `receiver.method(args...)`.
type MethodCall struct {
	Receiver Expr
	Method   string
	Args     []Arg
	Index    *symbols.Index
	Span     errors.Span
}

func (m *MethodCall) Pos() errors.Span { return m.Span }
func (*MethodCall) exprNode()          {}

// StructLiteral is `TypeName(field: value, ...)`. FieldOrder preserves
// source order for left-to-right evaluation; Fields maps each name to its
// value expression.
type StructLiteral struct {
	TypeName   string
	FieldOrder []string
	Fields     map[string]Expr
	Span       errors.Span
}

func (s *StructLiteral) Pos() errors.Span { return s.Span }
func (*StructLiteral) exprNode()          {}

// ListLiteral is `[e0, e1, ...]`. ElemType is Unsolved until inference
// fills it in (from an enclosing annotation or the first element).
type ListLiteral struct {
	ElemType types.Type
	Elems    []Expr
	Span     errors.Span
}

func (l *ListLiteral) Pos() errors.Span { return l.Span }
func (*ListLiteral) exprNode()          {}

// MapLiteral is `#{k0: v0, k1: v1, ...}`.
type MapLiteral struct {
	KeyType   types.Type
	ValueType types.Type
	Keys      []Expr
	Values    []Expr
	Span      errors.Span
}

func (m *MapLiteral) Pos() errors.Span { return m.Span }
func (*MapLiteral) exprNode()          {}

// RangeLit is `start..end`.
type RangeLit struct {
	Start Expr
	End   Expr
	Span  errors.Span
}

func (r *RangeLit) Pos() errors.Span { return r.Span }
func (*RangeLit) exprNode()          {}

// Index is `collection[key]`.
type Index struct {
	Collection Expr
	Key        Expr
	Span       errors.Span
}

func (i *Index) Pos() errors.Span { return i.Span }
func (*Index) exprNode()          {}

// Length is `len(target)` (surfaced in source as the `length` operator
// form the design names).
type Length struct {
	Target Expr
	Span   errors.Span
}

func (l *Length) Pos() errors.Span { return l.Span }
func (*Length) exprNode()          {}

// Output is `output(args...)`.
type Output struct {
	Args []Expr
	Span errors.Span
}

func (o *Output) Pos() errors.Span { return o.Span }
func (*Output) exprNode()          {}

// Return is `return value`.
type Return struct {
	Value Expr
	Span  errors.Span
}

func (r *Return) Pos() errors.Span { return r.Span }
func (*Return) exprNode()          {}
