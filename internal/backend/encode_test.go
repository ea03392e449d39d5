package backend

import (
	"bytes"
	"testing"

	"github.com/cwbudde/go-lift/internal/ir"
)

func TestEncodeModuleHeader(t *testing.T) {
	mod := &ir.Module{
		Funcs: []*ir.Func{{
			Name:    "main",
			Results: []ir.Type{ir.I64},
			Body:    []ir.Instr{{Op: ir.OpI64Const, I64Const: 42}},
		}},
	}
	out, err := encodeModule(mod)
	if err != nil {
		t.Fatalf("encodeModule: %v", err)
	}
	want := []byte("\x00asm\x01\x00\x00\x00")
	if !bytes.HasPrefix(out, want) {
		t.Fatalf("missing WASM magic/version header, got % x", out[:8])
	}
}

func TestEncodeModuleWithImportsAndCall(t *testing.T) {
	mod := &ir.Module{
		Imports: []ir.Import{
			{Name: "lift_print_int", Params: []ir.Type{ir.I64}},
		},
		Funcs: []*ir.Func{{
			Name: "main",
			Body: []ir.Instr{
				{Op: ir.OpI64Const, I64Const: 7},
				{Op: ir.OpCall, Callee: "lift_print_int"},
			},
		}},
	}
	out, err := encodeModule(mod)
	if err != nil {
		t.Fatalf("encodeModule: %v", err)
	}
	if len(out) < 8 {
		t.Fatalf("output too short: %d bytes", len(out))
	}
}

func TestEncodeModuleUnknownCalleeErrors(t *testing.T) {
	mod := &ir.Module{
		Funcs: []*ir.Func{{
			Name: "main",
			Body: []ir.Instr{{Op: ir.OpCall, Callee: "does_not_exist"}},
		}},
	}
	if _, err := encodeModule(mod); err == nil {
		t.Error("expected an error for a call to an unregistered function")
	}
}

func TestGroupLocalsCompressesRuns(t *testing.T) {
	groups := groupLocals([]ir.Type{ir.I64, ir.I64, ir.F64, ir.I64})
	if len(groups) != 3 {
		t.Fatalf("groupLocals: got %d groups, want 3", len(groups))
	}
	if groups[0].typ != ir.I64 || groups[0].count != 2 {
		t.Errorf("group 0 = %+v, want {I64 2}", groups[0])
	}
	if groups[1].typ != ir.F64 || groups[1].count != 1 {
		t.Errorf("group 1 = %+v, want {F64 1}", groups[1])
	}
}

func TestWriteU32EncodesLEB128(t *testing.T) {
	var buf bytes.Buffer
	writeU32(&buf, 300)
	if got, want := buf.Bytes(), []byte{0xAC, 0x02}; !bytes.Equal(got, want) {
		t.Fatalf("writeU32(300) = % x, want % x", got, want)
	}
}
