// Package types defines the language's static type algebra (DataType in the
// original design) and the compatibility rules type checking is built on.
package types

import (
	"fmt"
	"strings"
)

// Type is the sum type of every value a lift program can have at compile
// time. It is a closed algebra: Int, Flt, Bool, Str, List, Map, Set, Range,
// Optional, Enum, Struct, TypeRef, Unsolved.
type Type interface {
	String() string
	isType()
}

// Int is the 64-bit signed integer type.
type Int struct{}

// Flt is the IEEE-754 double type.
type Flt struct{}

// Bool is the boolean type.
type Bool struct{}

// Str is the heap-allocated string type.
type Str struct{}

func (Int) isType()  {}
func (Flt) isType()  {}
func (Bool) isType() {}
func (Str) isType()  {}

func (Int) String() string  { return "Int" }
func (Flt) String() string  { return "Flt" }
func (Bool) String() string { return "Bool" }
func (Str) String() string  { return "Str" }

// List is a homogeneous, heap-allocated, dynamically sized sequence.
type List struct{ Elem Type }

func (List) isType() {}
func (l List) String() string {
	elem := "?"
	if l.Elem != nil {
		elem = l.Elem.String()
	}
	return fmt.Sprintf("List{%s}", elem)
}

// Map is a homogeneous key/value hash map. Key is restricted (after
// resolution) to Int, Bool, or Str.
type Map struct{ Key, Value Type }

func (Map) isType() {}
func (m Map) String() string {
	key, val := "?", "?"
	if m.Key != nil {
		key = m.Key.String()
	}
	if m.Value != nil {
		val = m.Value.String()
	}
	return fmt.Sprintf("Map{%s, %s}", key, val)
}

// Set is carried in the type algebra for completeness with the original
// design; no surface construct in this language's Expr produces one.
type Set struct{ Elem Type }

func (Set) isType() {}
func (s Set) String() string {
	elem := "?"
	if s.Elem != nil {
		elem = s.Elem.String()
	}
	return fmt.Sprintf("Set{%s}", elem)
}

// Range is the type of an integer range expression (`a..b`). Ranges are
// always over Int bounds, so the type carries no further parameters.
type Range struct{}

func (Range) isType()        {}
func (Range) String() string { return "Range" }

// Optional wraps another type to mark it nullable.
type Optional struct{ Inner Type }

func (Optional) isType() {}
func (o Optional) String() string {
	inner := "?"
	if o.Inner != nil {
		inner = o.Inner.String()
	}
	return fmt.Sprintf("Optional{%s}", inner)
}

// Enum is carried in the type algebra for completeness with the original
// design (DataType::Enum in the source this was distilled from); no
// surface construct in this language's Expr currently produces one.
type Enum struct{ Variants []string }

func (Enum) isType() {}
func (e Enum) String() string {
	return fmt.Sprintf("Enum{%s}", strings.Join(e.Variants, ", "))
}

// Field is one named, typed member of a Struct.
type Field struct {
	Name string
	Type Type
}

// Struct is a user-defined record type: an ordered set of named fields.
type Struct struct {
	Name   string
	Fields []Field
}

func (Struct) isType() {}
func (s Struct) String() string {
	if s.Name != "" {
		return s.Name
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return "Struct{" + strings.Join(parts, ", ") + "}"
}

// FieldType returns the declared type of the named field and true, or
// (nil, false) if the struct has no such field.
func (s Struct) FieldType(name string) (Type, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// TypeRef is a named reference to a type alias or struct definition. It is
// preserved on variable declarations so that methods defined on the alias
// name (`Alias.m`) stay reachable even when the alias resolves to a
// primitive; resolution to the underlying type happens on demand wherever
// compatibility or codegen needs the concrete shape.
type TypeRef struct{ Name string }

func (TypeRef) isType()        {}
func (t TypeRef) String() string { return t.Name }

// Unsolved is the placeholder type assigned before inference runs. It must
// never reach code generation.
type Unsolved struct{}

func (Unsolved) isType()        {}
func (Unsolved) String() string { return "Unsolved" }

// IsNumeric reports whether t is Int or Flt.
func IsNumeric(t Type) bool {
	switch t.(type) {
	case Int, Flt:
		return true
	default:
		return false
	}
}

// Equals reports structural equality between two types. TypeRef compares
// by name only (per the alias-preservation design, two TypeRefs are equal
// iff they name the same alias — this does NOT resolve through to the
// underlying type; callers that need resolved comparison must resolve
// first). Unsolved is equal only to Unsolved (use Compatible for the
// permissive relation used during checking).
func Equals(a, b Type) bool {
	switch av := a.(type) {
	case Int:
		_, ok := b.(Int)
		return ok
	case Flt:
		_, ok := b.(Flt)
		return ok
	case Bool:
		_, ok := b.(Bool)
		return ok
	case Str:
		_, ok := b.(Str)
		return ok
	case Range:
		_, ok := b.(Range)
		return ok
	case Unsolved:
		_, ok := b.(Unsolved)
		return ok
	case List:
		bv, ok := b.(List)
		return ok && Equals(av.Elem, bv.Elem)
	case Map:
		bv, ok := b.(Map)
		return ok && Equals(av.Key, bv.Key) && Equals(av.Value, bv.Value)
	case Set:
		bv, ok := b.(Set)
		return ok && Equals(av.Elem, bv.Elem)
	case Optional:
		bv, ok := b.(Optional)
		return ok && Equals(av.Inner, bv.Inner)
	case Enum:
		bv, ok := b.(Enum)
		return ok && strings.Join(av.Variants, ",") == strings.Join(bv.Variants, ",")
	case Struct:
		bv, ok := b.(Struct)
		if !ok || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i, f := range av.Fields {
			if f.Name != bv.Fields[i].Name || !Equals(f.Type, bv.Fields[i].Type) {
				return false
			}
		}
		return true
	case TypeRef:
		bv, ok := b.(TypeRef)
		return ok && av.Name == bv.Name
	default:
		return false
	}
}

// Compatible implements the `types_compatible` relation used throughout
// type checking. It differs from Equals in two ways: Unsolved is
// compatible with anything (so placeholder parameter types in generic
// built-ins accept any argument), and Int/Flt are interchangeable here —
// this relation is used for arithmetic, comparison, and equality checks,
// never for exact-match contexts like assignment, which callers must check
// with Equals (or the dedicated assignability check) instead.
func Compatible(a, b Type) bool {
	if _, ok := a.(Unsolved); ok {
		return true
	}
	if _, ok := b.(Unsolved); ok {
		return true
	}
	if IsNumeric(a) && IsNumeric(b) {
		return true
	}
	switch av := a.(type) {
	case List:
		bv, ok := b.(List)
		return ok && Compatible(av.Elem, bv.Elem)
	case Map:
		bv, ok := b.(Map)
		return ok && Compatible(av.Key, bv.Key) && Compatible(av.Value, bv.Value)
	case Set:
		bv, ok := b.(Set)
		return ok && Compatible(av.Elem, bv.Elem)
	case Optional:
		bv, ok := b.(Optional)
		return ok && Compatible(av.Inner, bv.Inner)
	case Struct:
		bv, ok := b.(Struct)
		if !ok || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i, f := range av.Fields {
			if f.Name != bv.Fields[i].Name || !Compatible(f.Type, bv.Fields[i].Type) {
				return false
			}
		}
		return true
	case TypeRef:
		bv, ok := b.(TypeRef)
		return ok && av.Name == bv.Name
	default:
		return Equals(a, b)
	}
}

// IsValidMapKey reports whether t is a legal map key type after alias
// resolution: Int, Bool, or Str. Flt keys are rejected.
func IsValidMapKey(t Type) bool {
	switch t.(type) {
	case Int, Bool, Str:
		return true
	default:
		return false
	}
}
