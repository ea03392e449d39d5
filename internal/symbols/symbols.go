// Package symbols implements the symbol table: a forest of lexically
// nested scopes identified by integer IDs, each holding a densely indexed
// slot table. Name-bearing syntax nodes are bound to a (scope, slot) index
// by semantic pass 1 and never change scope again; scopes are created
// during binding and are never destroyed, so every index stays addressable
// for the lifetime of a compilation (and, for methods dispatched
// dynamically at run time, for the lifetime of the process).
package symbols

import (
	"fmt"

	"github.com/cwbudde/go-lift/internal/types"
)

// Index is the stable, densely-packed address of a binding: the scope it
// lives in and its slot within that scope's entry list.
type Index struct {
	Scope int
	Slot  int
}

// Valid reports whether idx refers to a real binding. The index
// (0, -1) is never produced by AddSymbol, so it doubles as "unbound".
func (idx Index) Valid() bool { return idx.Slot >= 0 }

// Unbound is the sentinel index carried by a node before pass 1 resolves
// it.
var Unbound = Index{Scope: 0, Slot: -1}

// entry is one symbol binding within a scope.
type entry struct {
	name    string
	typ     types.Type
	value   any // compile-time value: the declaring AST node, opaque to this package
	mutable bool
}

// Scope is one lexical region: a dense list of entries, a name→slot map
// for ordinary symbols, and a separate name→type map for aliases and
// struct definitions (spec: "separate namespace for type aliases and
// struct definitions").
type Scope struct {
	id      int
	parent  int // -1 for the global scope
	names   map[string]int
	entries []entry
	types   map[string]types.Type
}

// Table is the forest of scopes built during semantic pass 1. Scope 0 is
// always the global scope, created by NewTable.
type Table struct {
	scopes []*Scope
}

// NewTable creates a symbol table with the global scope (ID 0, no parent)
// already present.
func NewTable() *Table {
	t := &Table{}
	t.CreateScope(-1)
	return t
}

// CreateScope allocates a new scope with the given parent ID (-1 for none)
// and returns its ID.
func (t *Table) CreateScope(parent int) int {
	id := len(t.scopes)
	t.scopes = append(t.scopes, &Scope{
		id:     id,
		parent: parent,
		names:  make(map[string]int),
		types:  make(map[string]types.Type),
	})
	return id
}

func (t *Table) scope(id int) *Scope {
	if id < 0 || id >= len(t.scopes) {
		panic(fmt.Sprintf("symbols: scope %d does not exist", id))
	}
	return t.scopes[id]
}

// AddSymbol declares a new symbol in the given scope and returns its
// index. It errors if name is already declared in that exact scope
// (shadowing an outer scope's symbol is fine; redeclaring in the same
// scope is not).
func (t *Table) AddSymbol(scope int, name string, value any, typ types.Type, mutable bool) (Index, error) {
	s := t.scope(scope)
	if _, exists := s.names[name]; exists {
		return Unbound, fmt.Errorf("'%s' is already declared in this scope", name)
	}
	slot := len(s.entries)
	s.entries = append(s.entries, entry{name: name, typ: typ, value: value, mutable: mutable})
	s.names[name] = slot
	return Index{Scope: scope, Slot: slot}, nil
}

// AddType registers a type alias or struct definition by name in the
// given scope's type namespace. It errors if the name is already defined
// as a type in that exact scope.
func (t *Table) AddType(scope int, name string, def types.Type) error {
	s := t.scope(scope)
	if _, exists := s.types[name]; exists {
		return fmt.Errorf("type '%s' is already declared in this scope", name)
	}
	s.types[name] = def
	return nil
}

// FindIndexReachable walks from scope up through parents looking for name,
// returning its index and true, or the zero value and false.
func (t *Table) FindIndexReachable(name string, scope int) (Index, bool) {
	for id := scope; id != -1; {
		s := t.scope(id)
		if slot, ok := s.names[name]; ok {
			return Index{Scope: id, Slot: slot}, true
		}
		id = s.parent
	}
	return Unbound, false
}

// LookupType walks from scope up through parents looking for a type
// definition named name.
func (t *Table) LookupType(name string, scope int) (types.Type, bool) {
	for id := scope; id != -1; {
		s := t.scope(id)
		if def, ok := s.types[name]; ok {
			return def, true
		}
		id = s.parent
	}
	return nil, false
}

// GetSymbolType returns the declared/inferred type of the binding at idx.
func (t *Table) GetSymbolType(idx Index) types.Type {
	return t.scope(idx.Scope).entries[idx.Slot].typ
}

// SetSymbolType updates the type recorded for idx. Used once pass 2 (or
// inference) resolves a type pass 1 could only leave Unsolved.
func (t *Table) SetSymbolType(idx Index, typ types.Type) {
	t.scope(idx.Scope).entries[idx.Slot].typ = typ
}

// GetSymbolValue returns the compile-time value recorded for idx: for a
// Let binding this is the whole Let node (so both its type and its
// declared mutability stay reachable through the symbol); for a function
// it is the *ast.DefineFunction node (a Unit placeholder until pass 1
// back-patches it); a parameter records nil.
func (t *Table) GetSymbolValue(idx Index) any {
	return t.scope(idx.Scope).entries[idx.Slot].value
}

// UpdateCompileTimeSymbolValue replaces the value recorded for idx. This
// is how pass 1 back-patches a function's placeholder Unit value with its
// real body once the body has been bound (enabling recursion: the name is
// resolvable, by index, while its own body is still being walked).
func (t *Table) UpdateCompileTimeSymbolValue(idx Index, value any) {
	t.scope(idx.Scope).entries[idx.Slot].value = value
}

// IsMutable reports whether the binding at idx may be assigned to (a `var`
// let, or a `copy`-marked parameter).
func (t *Table) IsMutable(idx Index) bool {
	return t.scope(idx.Scope).entries[idx.Slot].mutable
}

// IsDeclaredInScope reports whether name is declared directly in scope,
// ignoring parents.
func (t *Table) IsDeclaredInScope(scope int, name string) bool {
	_, ok := t.scope(scope).names[name]
	return ok
}

// Parent returns the parent scope ID, or -1 if scope is the global scope.
func (t *Table) Parent(scope int) int {
	return t.scope(scope).parent
}
