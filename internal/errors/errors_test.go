package errors

import "testing"

func TestFormatWithoutSource(t *testing.T) {
	err := New(Name, "undeclared identifier 'x'", Span{Line: 3, Column: 5})
	got := err.Error()
	want := "name error at 3:5\nundeclared identifier 'x'"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFormatWithSourceCaret(t *testing.T) {
	err := &CompileError{
		Kind:    Type,
		Message: "cannot add Int and Bool",
		Span:    Span{Line: 2, Column: 7},
		Source:  "let x = 1\nlet y = x + true",
		File:    "prog.lift",
	}

	got := err.Format(false)
	want := "type error in prog.lift:2:7\n" +
		"   2 | let y = x + true\n" +
		"             ^\n" +
		"cannot add Int and Bool"
	if got != want {
		t.Errorf("Format() =\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatErrorsSingle(t *testing.T) {
	err := New(Structure, "field-assignment target must be a variable", Span{Line: 1, Column: 1})
	if got := FormatErrors([]*CompileError{err}, false); got != err.Format(false) {
		t.Errorf("FormatErrors single = %q, want %q", got, err.Format(false))
	}
}

func TestFormatErrorsMultiple(t *testing.T) {
	errs := []*CompileError{
		New(Name, "undeclared identifier 'a'", Span{Line: 1, Column: 1}),
		New(Type, "cannot infer type of empty list", Span{Line: 2, Column: 1}),
	}
	got := FormatErrors(errs, false)
	if got == "" {
		t.Fatal("expected non-empty formatted output")
	}
	if got == errs[0].Format(false) {
		t.Error("expected combined output to differ from single error format")
	}
}
