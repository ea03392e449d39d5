package backend

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cwbudde/go-lift/internal/ir"
)

// WASM value-type and section-id bytes, per the binary format's own
// fixed encoding (no library in the example pack encodes a
// hand-rolled IR into WASM bytecode; wazero's own compiler consumes
// this format rather than producing it, so this file is a from-scratch
// encoder grounded only on the spec format itself, not on any example
// repo).
const (
	valI32 = 0x7F
	valI64 = 0x7E
	valF32 = 0x7D
	valF64 = 0x7C

	secType     = 1
	secImport   = 2
	secFunction = 3
	secExport   = 7
	secCode     = 10

	exportFunc = 0x00
	importFunc = 0x00
)

// encodeModule serializes mod into a binary WASM module exporting every
// module-defined function by name (spec.md §6.3 relies on "main" being
// reachable by export name).
func encodeModule(mod *ir.Module) ([]byte, error) {
	var out bytes.Buffer
	out.WriteString("\x00asm")
	out.Write([]byte{0x01, 0x00, 0x00, 0x00})

	types, funcTypeIdx, err := buildTypeSection(mod)
	if err != nil {
		return nil, err
	}
	writeSection(&out, secType, types)
	writeSection(&out, secImport, buildImportSection(mod, funcTypeIdx))
	writeSection(&out, secFunction, buildFunctionSection(mod, funcTypeIdx))
	writeSection(&out, secExport, buildExportSection(mod))

	code, err := buildCodeSection(mod)
	if err != nil {
		return nil, err
	}
	writeSection(&out, secCode, code)

	return out.Bytes(), nil
}

func writeSection(out *bytes.Buffer, id byte, body []byte) {
	if len(body) == 0 && id != secType {
		return
	}
	out.WriteByte(id)
	writeU32(out, uint32(len(body)))
	out.Write(body)
}

// buildTypeSection collects one function type per distinct (params,
// results) signature across imports and module functions, and returns
// the type index assigned to each import/func in declaration order
// (imports first, matching ir.Module.FuncIndex's own numbering).
func buildTypeSection(mod *ir.Module) ([]byte, []uint32, error) {
	var sigs [][2][]ir.Type
	indexOf := func(params, results []ir.Type) uint32 {
		for i, s := range sigs {
			if typesEqual(s[0], params) && typesEqual(s[1], results) {
				return uint32(i)
			}
		}
		sigs = append(sigs, [2][]ir.Type{params, results})
		return uint32(len(sigs) - 1)
	}

	idx := make([]uint32, 0, len(mod.Imports)+len(mod.Funcs))
	for _, imp := range mod.Imports {
		idx = append(idx, indexOf(imp.Params, imp.Results))
	}
	for _, fn := range mod.Funcs {
		idx = append(idx, indexOf(fn.Params, fn.Results))
	}

	var body bytes.Buffer
	writeU32(&body, uint32(len(sigs)))
	for _, s := range sigs {
		body.WriteByte(0x60) // functype tag
		writeU32(&body, uint32(len(s[0])))
		for _, p := range s[0] {
			valByte, err := valType(p)
			if err != nil {
				return nil, nil, err
			}
			body.WriteByte(valByte)
		}
		writeU32(&body, uint32(len(s[1])))
		for _, r := range s[1] {
			valByte, err := valType(r)
			if err != nil {
				return nil, nil, err
			}
			body.WriteByte(valByte)
		}
	}
	return body.Bytes(), idx, nil
}

func typesEqual(a, b []ir.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func buildImportSection(mod *ir.Module, typeIdx []uint32) []byte {
	var body bytes.Buffer
	writeU32(&body, uint32(len(mod.Imports)))
	for i, imp := range mod.Imports {
		writeName(&body, "env")
		writeName(&body, imp.Name)
		body.WriteByte(importFunc)
		writeU32(&body, typeIdx[i])
	}
	return body.Bytes()
}

func buildFunctionSection(mod *ir.Module, typeIdx []uint32) []byte {
	var body bytes.Buffer
	writeU32(&body, uint32(len(mod.Funcs)))
	for i := range mod.Funcs {
		writeU32(&body, typeIdx[len(mod.Imports)+i])
	}
	return body.Bytes()
}

func buildExportSection(mod *ir.Module) []byte {
	var body bytes.Buffer
	writeU32(&body, uint32(len(mod.Funcs)))
	for i, fn := range mod.Funcs {
		writeName(&body, fn.Name)
		body.WriteByte(exportFunc)
		writeU32(&body, uint32(len(mod.Imports)+i))
	}
	return body.Bytes()
}

func buildCodeSection(mod *ir.Module) ([]byte, error) {
	var body bytes.Buffer
	writeU32(&body, uint32(len(mod.Funcs)))
	for _, fn := range mod.Funcs {
		fnBody, err := encodeFunctionBody(mod, fn)
		if err != nil {
			return nil, fmt.Errorf("encode func %q: %w", fn.Name, err)
		}
		writeU32(&body, uint32(len(fnBody)))
		body.Write(fnBody)
	}
	return body.Bytes(), nil
}

// encodeFunctionBody emits one code-section entry: a run-length
// compressed locals declaration followed by the instruction stream and
// a trailing `end` (0x0B).
func encodeFunctionBody(mod *ir.Module, fn *ir.Func) ([]byte, error) {
	var out bytes.Buffer

	groups := groupLocals(fn.Locals)
	writeU32(&out, uint32(len(groups)))
	for _, g := range groups {
		writeU32(&out, g.count)
		vb, err := valType(g.typ)
		if err != nil {
			return nil, err
		}
		out.WriteByte(vb)
	}

	if err := encodeInstrs(&out, mod, fn.Body); err != nil {
		return nil, err
	}
	out.WriteByte(0x0B) // end
	return out.Bytes(), nil
}

type localGroup struct {
	typ   ir.Type
	count uint32
}

func groupLocals(locals []ir.Type) []localGroup {
	var groups []localGroup
	for _, t := range locals {
		if len(groups) > 0 && groups[len(groups)-1].typ == t {
			groups[len(groups)-1].count++
			continue
		}
		groups = append(groups, localGroup{typ: t, count: 1})
	}
	return groups
}

func valType(t ir.Type) (byte, error) {
	switch t {
	case ir.I64:
		return valI64, nil
	case ir.F64:
		return valF64, nil
	case ir.I8:
		return valI32, nil // I8 only ever appears at an ABI boundary, narrowed into an i32 slot
	default:
		return 0, fmt.Errorf("encode: value type %v has no WASM representation", t)
	}
}

func encodeInstrs(out *bytes.Buffer, mod *ir.Module, instrs []ir.Instr) error {
	for _, in := range instrs {
		if err := encodeInstr(out, mod, in); err != nil {
			return err
		}
	}
	return nil
}

func encodeInstr(out *bytes.Buffer, mod *ir.Module, in ir.Instr) error {
	switch in.Op {
	case ir.OpI64Const:
		out.WriteByte(0x42)
		writeI64(out, in.I64Const)
	case ir.OpF64Const:
		out.WriteByte(0x44)
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(in.F64Const))
		out.Write(buf[:])
	case ir.OpLocalGet:
		out.WriteByte(0x20)
		writeU32(out, uint32(in.Local))
	case ir.OpLocalSet:
		out.WriteByte(0x21)
		writeU32(out, uint32(in.Local))
	case ir.OpLocalTee:
		out.WriteByte(0x22)
		writeU32(out, uint32(in.Local))
	case ir.OpDrop:
		out.WriteByte(0x1A)

	case ir.OpI64Add:
		out.WriteByte(0x7C)
	case ir.OpI64Sub:
		out.WriteByte(0x7D)
	case ir.OpI64Mul:
		out.WriteByte(0x7E)
	case ir.OpI64DivS:
		out.WriteByte(0x7F)
	case ir.OpI64Eq:
		out.WriteByte(0x51)
	case ir.OpI64Ne:
		out.WriteByte(0x52)
	case ir.OpI64LtS:
		out.WriteByte(0x53)
	case ir.OpI64GtS:
		out.WriteByte(0x55)
	case ir.OpI64LeS:
		out.WriteByte(0x57)
	case ir.OpI64GeS:
		out.WriteByte(0x59)
	case ir.OpI64Eqz:
		out.WriteByte(0x50)
	case ir.OpI64And:
		out.WriteByte(0x83)
	case ir.OpI64Or:
		out.WriteByte(0x84)
	case ir.OpI64ExtendI32U:
		out.WriteByte(0xAD)
	case ir.OpI64ExtendI32S:
		out.WriteByte(0xAC)

	case ir.OpF64Add:
		out.WriteByte(0xA0)
	case ir.OpF64Sub:
		out.WriteByte(0xA1)
	case ir.OpF64Mul:
		out.WriteByte(0xA2)
	case ir.OpF64Div:
		out.WriteByte(0xA3)
	case ir.OpF64Eq:
		out.WriteByte(0x61)
	case ir.OpF64Ne:
		out.WriteByte(0x62)
	case ir.OpF64Lt:
		out.WriteByte(0x63)
	case ir.OpF64Gt:
		out.WriteByte(0x64)
	case ir.OpF64Le:
		out.WriteByte(0x65)
	case ir.OpF64Ge:
		out.WriteByte(0x66)
	case ir.OpF64ConvertI64S:
		out.WriteByte(0xB9)

	case ir.OpI32WrapI64:
		out.WriteByte(0xA7)
	case ir.OpF64ReinterpretI64:
		out.WriteByte(0xBF)
	case ir.OpI64ReinterpretF64:
		out.WriteByte(0xBD)

	case ir.OpCall:
		idx := mod.FuncIndex(in.Callee)
		if idx < 0 {
			return fmt.Errorf("encode: call to unknown function %q", in.Callee)
		}
		out.WriteByte(0x10)
		writeU32(out, uint32(idx))

	case ir.OpBlock, ir.OpLoop, ir.OpIf:
		return encodeStructured(out, mod, in)

	case ir.OpBr:
		out.WriteByte(0x0C)
		writeU32(out, uint32(in.Depth))
	case ir.OpBrIf:
		out.WriteByte(0x0D)
		writeU32(out, uint32(in.Depth))
	case ir.OpReturn:
		out.WriteByte(0x0F)

	default:
		return fmt.Errorf("encode: unhandled opcode %v", in.Op)
	}
	return nil
}

func encodeStructured(out *bytes.Buffer, mod *ir.Module, in ir.Instr) error {
	blockType, err := blockTypeByte(in.Result)
	if err != nil {
		return err
	}
	switch in.Op {
	case ir.OpBlock:
		out.WriteByte(0x02)
		out.WriteByte(blockType)
		if err := encodeInstrs(out, mod, in.Body); err != nil {
			return err
		}
	case ir.OpLoop:
		out.WriteByte(0x03)
		out.WriteByte(blockType)
		if err := encodeInstrs(out, mod, in.Body); err != nil {
			return err
		}
	case ir.OpIf:
		out.WriteByte(0x04)
		out.WriteByte(blockType)
		if err := encodeInstrs(out, mod, in.Body); err != nil {
			return err
		}
		if len(in.Else) > 0 {
			out.WriteByte(0x05)
			if err := encodeInstrs(out, mod, in.Else); err != nil {
				return err
			}
		}
	}
	out.WriteByte(0x0B) // end
	return nil
}

func blockTypeByte(t ir.Type) (byte, error) {
	if t == ir.Void {
		return 0x40, nil
	}
	return valType(t)
}

// --- LEB128 -----------------------------------------------------------

func writeU32(out *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			out.WriteByte(b | 0x80)
			continue
		}
		out.WriteByte(b)
		return
	}
}

func writeI64(out *bytes.Buffer, v int64) {
	more := true
	for more {
		b := byte(v & 0x7F)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out.WriteByte(b)
	}
}

func writeName(out *bytes.Buffer, s string) {
	writeU32(out, uint32(len(s)))
	out.WriteString(s)
}
