// Package ir defines the typed low-level intermediate representation that
// internal/lower produces and internal/backend consumes. Its shape tracks
// WebAssembly's own structured-control-flow stack machine deliberately:
// spec.md's "basic blocks" for if/while lowering and "stack slots" for
// variables map directly onto WASM's block/loop/if instructions and
// local variables, which is exactly what the backend encodes this IR
// into (see internal/backend/encode.go). This keeps lowering decisions
// (spec-governed, testable without a backend) separate from bytecode
// emission (the backend's concern).
package ir

import "fmt"

// Type is the IR-level encoding of the uniform value representation in
// spec.md §3.4.
type Type int

const (
	I64   Type = iota // Int, and every heap pointer (Str/List/Map/Range/Struct)
	F64               // Flt
	I8                // Bool, only at an ABI boundary (import/export signature)
	Void              // no value — used for Block/Loop/If result arity and for statement-only instructions
)

func (t Type) String() string {
	switch t {
	case I64:
		return "i64"
	case F64:
		return "f64"
	case I8:
		return "i8"
	case Void:
		return "void"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Op is an IR instruction opcode.
type Op int

const (
	OpI64Const Op = iota
	OpF64Const
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpDrop

	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64DivS
	OpI64LtS
	OpI64LeS
	OpI64GtS
	OpI64GeS
	OpI64Eq
	OpI64Ne
	OpI64And
	OpI64Or
	OpI64Eqz
	OpI64ExtendI32U // sign-agnostic widen used after a 0/1 truthy test

	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div
	OpF64Lt
	OpF64Le
	OpF64Gt
	OpF64Ge
	OpF64Eq
	OpF64Ne
	OpF64ConvertI64S // Int -> Flt widening

	OpI32WrapI64 // narrow an i64 0/1 to i32, ABI boundary for Bool args
	OpI64ExtendI32S

	OpF64ReinterpretI64 // bit-cast, not a numeric conversion: reading a Flt back out of a generic i64 heap slot
	OpI64ReinterpretF64 // the reverse, used to box a Flt into a generic i64 heap slot or print-by-bits call

	OpCall // call either a module-local function or an imported runtime symbol, by name

	OpBlock
	OpLoop
	OpIf
	OpBr
	OpBrIf
	OpReturn
)

// Instr is one IR instruction. Only the fields relevant to Op are
// populated; this mirrors a tagged union the way the teacher's own
// instruction types (see internal/bytecode/instruction.go in the
// teacher) carry a single opcode plus a handful of typed operand slots
// rather than one struct type per opcode.
type Instr struct {
	Op Op

	I64Const int64
	F64Const float64
	Local    int
	Callee   string

	// Block/Loop/If nested bodies. If has a non-empty Else when the
	// source If carried a real else branch; Block/Loop use Body only.
	Body   []Instr
	Else   []Instr
	Result Type // result type of the block/loop/if construct (Void if none)

	// Br/BrIf target a structured label by nesting depth (0 = innermost
	// enclosing block/loop), WASM's own addressing scheme.
	Depth int
}

// Func is one compiled function: the module-level Program function (a
// nullary function returning I64) or a user DefineFunction lowering.
type Func struct {
	Name    string
	Params  []Type
	Results []Type // 0 or 1 entries in this module's usage
	Locals  []Type // additional locals beyond params; indices continue after the params
	Body    []Instr
}

// Import is a runtime symbol the module calls as an external function —
// "registers every runtime symbol with the backend's symbol table"
// (spec.md §4.5 point 1).
type Import struct {
	Name    string
	Params  []Type
	Results []Type
}

// Module is the complete lowering of one compilation: the runtime
// symbols it calls, the Program entry function, every user-defined
// function, and the string constant pool string literals are lowered
// against (spec.md §4.6's string objects are heap-allocated from this
// pool each time "lift_str_const" runs; it looks an entry up by index
// rather than re-encoding bytes inline at every use site).
type Module struct {
	Imports []Import
	Funcs   []*Func
	Strings []string
}

// InternString returns the constant-pool index for s, appending a new
// entry if s has not been interned yet in this module.
func (m *Module) InternString(s string) int64 {
	for i, existing := range m.Strings {
		if existing == s {
			return int64(i)
		}
	}
	m.Strings = append(m.Strings, s)
	return int64(len(m.Strings) - 1)
}

// FuncIndex returns the module-wide function index of name, counting
// imports first (WASM numbers imported functions before module-defined
// ones), or -1 if no such function exists.
func (m *Module) FuncIndex(name string) int {
	for i, imp := range m.Imports {
		if imp.Name == name {
			return i
		}
	}
	for i, fn := range m.Funcs {
		if fn.Name == name {
			return len(m.Imports) + i
		}
	}
	return -1
}
