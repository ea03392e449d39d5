package types

import "testing"

func TestEqualsPrimitives(t *testing.T) {
	if !Equals(Int{}, Int{}) {
		t.Error("Int should equal Int")
	}
	if Equals(Int{}, Flt{}) {
		t.Error("Int should not equal Flt under Equals (only Compatible)")
	}
}

func TestEqualsCollections(t *testing.T) {
	a := List{Elem: Int{}}
	b := List{Elem: Int{}}
	c := List{Elem: Str{}}
	if !Equals(a, b) {
		t.Error("List{Int} should equal List{Int}")
	}
	if Equals(a, c) {
		t.Error("List{Int} should not equal List{Str}")
	}
}

func TestCompatibleNumericPromotion(t *testing.T) {
	if !Compatible(Int{}, Flt{}) || !Compatible(Flt{}, Int{}) {
		t.Error("Int and Flt should be compatible in both directions")
	}
}

func TestCompatibleUnsolvedIsUniversal(t *testing.T) {
	if !Compatible(Unsolved{}, Struct{Name: "Point"}) {
		t.Error("Unsolved should be compatible with everything")
	}
	if !Compatible(List{Elem: Unsolved{}}, List{Elem: Unsolved{}}) {
		t.Error("nested Unsolved should be compatible")
	}
}

func TestCompatibleStructFieldOrderMatters(t *testing.T) {
	a := Struct{Name: "P", Fields: []Field{{"x", Int{}}, {"y", Int{}}}}
	b := Struct{Name: "P", Fields: []Field{{"y", Int{}}, {"x", Int{}}}}
	if Compatible(a, b) {
		t.Error("structs with fields in different order should not be compatible")
	}
}

func TestTypeRefCompatibleByNameOnly(t *testing.T) {
	if !Compatible(TypeRef{Name: "Age"}, TypeRef{Name: "Age"}) {
		t.Error("same-named TypeRefs should be compatible")
	}
	if Compatible(TypeRef{Name: "Age"}, TypeRef{Name: "Weight"}) {
		t.Error("differently-named TypeRefs should not be compatible")
	}
}

func TestIsValidMapKey(t *testing.T) {
	for _, tc := range []struct {
		typ   Type
		valid bool
	}{
		{Int{}, true},
		{Str{}, true},
		{Bool{}, true},
		{Flt{}, false},
		{List{Elem: Int{}}, false},
	} {
		if got := IsValidMapKey(tc.typ); got != tc.valid {
			t.Errorf("IsValidMapKey(%s) = %v, want %v", tc.typ, got, tc.valid)
		}
	}
}

func TestFieldType(t *testing.T) {
	s := Struct{Name: "Point", Fields: []Field{{"x", Int{}}, {"y", Int{}}}}
	ty, ok := s.FieldType("y")
	if !ok || !Equals(ty, Int{}) {
		t.Errorf("FieldType(y) = %v, %v, want Int, true", ty, ok)
	}
	if _, ok := s.FieldType("z"); ok {
		t.Error("FieldType(z) should not be found")
	}
}
