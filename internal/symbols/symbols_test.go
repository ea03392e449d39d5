package symbols

import (
	"testing"

	"github.com/cwbudde/go-lift/internal/types"
)

func TestGlobalScopeIsZero(t *testing.T) {
	tbl := NewTable()
	idx, err := tbl.AddSymbol(0, "x", nil, types.Int{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Scope != 0 || idx.Slot != 0 {
		t.Errorf("first global symbol got %+v, want {0 0}", idx)
	}
}

func TestDuplicateInSameScopeErrors(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.AddSymbol(0, "x", nil, types.Int{}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddSymbol(0, "x", nil, types.Int{}, false); err == nil {
		t.Error("expected duplicate declaration to error")
	}
}

func TestShadowingInChildScopeIsFine(t *testing.T) {
	tbl := NewTable()
	tbl.AddSymbol(0, "x", nil, types.Int{}, false)
	child := tbl.CreateScope(0)
	idx, err := tbl.AddSymbol(child, "x", nil, types.Str{}, false)
	if err != nil {
		t.Fatalf("shadowing in child scope should be allowed: %v", err)
	}
	if idx.Scope != child {
		t.Errorf("expected index in child scope %d, got %d", child, idx.Scope)
	}
}

func TestFindIndexReachableWalksParents(t *testing.T) {
	tbl := NewTable()
	outer, _ := tbl.AddSymbol(0, "g", nil, types.Int{}, false)
	child := tbl.CreateScope(0)
	grandchild := tbl.CreateScope(child)

	idx, ok := tbl.FindIndexReachable("g", grandchild)
	if !ok || idx != outer {
		t.Errorf("FindIndexReachable(g) = %+v, %v, want %+v, true", idx, ok, outer)
	}

	if _, ok := tbl.FindIndexReachable("nope", grandchild); ok {
		t.Error("expected lookup of undeclared name to fail")
	}
}

func TestTypeNamespaceIsSeparateFromValueNamespace(t *testing.T) {
	tbl := NewTable()
	tbl.AddSymbol(0, "Age", nil, types.Int{}, false) // value binding named Age
	if err := tbl.AddType(0, "Age", types.TypeRef{Name: "Int"}); err != nil {
		t.Fatalf("type namespace should not collide with value namespace: %v", err)
	}
	def, ok := tbl.LookupType("Age", 0)
	if !ok || !types.Equals(def, types.TypeRef{Name: "Int"}) {
		t.Errorf("LookupType(Age) = %v, %v", def, ok)
	}
}

func TestRecursionBackPatch(t *testing.T) {
	tbl := NewTable()
	idx, _ := tbl.AddSymbol(0, "fact", nil, types.Unsolved{}, false)
	// Body bound while "fact" still resolves to the placeholder.
	if _, ok := tbl.FindIndexReachable("fact", 0); !ok {
		t.Fatal("function name must be resolvable before its body is back-patched")
	}
	tbl.UpdateCompileTimeSymbolValue(idx, "the-real-lambda-node")
	if got := tbl.GetSymbolValue(idx); got != "the-real-lambda-node" {
		t.Errorf("GetSymbolValue after back-patch = %v", got)
	}
}

func TestMutability(t *testing.T) {
	tbl := NewTable()
	immut, _ := tbl.AddSymbol(0, "a", nil, types.Int{}, false)
	mut, _ := tbl.AddSymbol(0, "b", nil, types.Int{}, true)
	if tbl.IsMutable(immut) {
		t.Error("a should be immutable")
	}
	if !tbl.IsMutable(mut) {
		t.Error("b should be mutable")
	}
}
