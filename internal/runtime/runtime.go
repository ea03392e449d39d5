// Package runtime is the managed runtime backing a compiled lift
// program: an append-only heap of tagged objects addressed by uint64
// handles (slice indices standing in for the 64-bit pointers spec.md
// §3.4 describes), and the C-linkage-shaped functions spec.md §4.6
// requires (lift_str_const, lift_list_new, lift_map_new, ...). Every
// exported method here is registered as a WASM host import by
// internal/backend's driver, the same "env" module pattern the
// cue-lang-cue wasm interpreter uses to bridge a compiled module back
// into host-side object management.
package runtime

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Tag identifies the shape of the object a heap handle points to.
// Ordered to match spec.md §4.6's tag byte enumeration.
type Tag byte

const (
	TagInt Tag = iota
	TagFlt
	TagBool
	TagStr
	TagList
	TagMap
	TagRange
	TagStruct
)

// Object is one heap-resident value. Only the fields matching Tag are
// populated; Int/Flt/Bool values never actually need a heap object
// under this ABI (they travel as raw i64/f64), but Range and Struct
// values do, and List/Map/Str always do.
type Object struct {
	Tag      Tag
	Str      string
	Items    []uint64 // List elements, or Struct field values in declaration order
	Keys     []uint64 // Map keys
	Values   []uint64 // Map values, parallel to Keys
	Lo, Hi   int64    // Range bounds
	Fields   []string // Struct field names, parallel to Items
	Name     string   // Struct: declared type name
	ElemTag  Tag      // List: static element type tag, carried per spec.md §3.4
	KeyTag   Tag      // Map: static key type tag
	ValueTag Tag      // Map: static value type tag
}

// Heap is the process-scoped, append-only object store. There is no
// garbage collector: a compiled program's lifetime is one Run, and the
// heap is dropped with the Runtime when that run completes.
type Heap struct {
	objects []*Object
}

func (h *Heap) alloc(o *Object) uint64 {
	h.objects = append(h.objects, o)
	return uint64(len(h.objects) - 1)
}

func (h *Heap) get(handle uint64) *Object {
	if handle >= uint64(len(h.objects)) {
		panic(fmt.Sprintf("runtime: invalid heap handle %d", handle))
	}
	return h.objects[handle]
}

// Runtime holds one compilation's heap and string constant pool, and
// implements every host function internal/backend registers under the
// "env" module name. Output is captured in a strings.Builder so a
// Driver can assert on byte-identical program output without touching
// process stdout (spec.md §8's determinism property).
type Runtime struct {
	Heap    Heap
	Strings []string // the module's interned string constant pool, copied in at instantiation
	Out     strings.Builder
}

// New returns a Runtime ready to back one Program execution. strs is
// the ir.Module's string constant pool, copied so lift_str_const can
// materialize a literal's heap object without re-encoding bytes at
// every use site.
func New(strs []string) *Runtime {
	return &Runtime{Strings: strs}
}

// --- lift_abort -------------------------------------------------------

// Abort is the runtime's diagnostic escape hatch: a lowered bounds
// check or missing-map-key lookup calls it before trapping. The code
// distinguishes the failure kind; message is an index into the string
// pool as lift_str_const argument so the call stays within the i64-only
// ABI boundary.
type AbortError struct {
	Code    int64
	Message string
}

func (e *AbortError) Error() string { return e.Message }

func (rt *Runtime) LiftAbort(_ context.Context, _ api.Module, code uint64, msgID uint64) {
	msg := "runtime error"
	if int(msgID) < len(rt.Strings) {
		msg = rt.Strings[msgID]
	}
	panic(&AbortError{Code: int64(code), Message: msg})
}

// --- strings ------------------------------------------------------------

func (rt *Runtime) LiftStrConst(_ context.Context, _ api.Module, id uint64) uint64 {
	return rt.Heap.alloc(&Object{Tag: TagStr, Str: rt.Strings[id]})
}

func (rt *Runtime) LiftStrConcat(_ context.Context, _ api.Module, a, b uint64) uint64 {
	sa, sb := rt.Heap.get(a), rt.Heap.get(b)
	return rt.Heap.alloc(&Object{Tag: TagStr, Str: sa.Str + sb.Str})
}

func (rt *Runtime) LiftStrEq(_ context.Context, _ api.Module, a, b uint64) uint64 {
	if rt.Heap.get(a).Str == rt.Heap.get(b).Str {
		return 1
	}
	return 0
}

func (rt *Runtime) LiftStrLen(_ context.Context, _ api.Module, handle uint64) uint64 {
	return uint64(len([]rune(rt.Heap.get(handle).Str)))
}

func (rt *Runtime) LiftStrUpper(_ context.Context, _ api.Module, handle uint64) uint64 {
	return rt.Heap.alloc(&Object{Tag: TagStr, Str: strings.ToUpper(rt.Heap.get(handle).Str)})
}

func (rt *Runtime) LiftStrLower(_ context.Context, _ api.Module, handle uint64) uint64 {
	return rt.Heap.alloc(&Object{Tag: TagStr, Str: strings.ToLower(rt.Heap.get(handle).Str)})
}

// --- lists ----------------------------------------------------------------

// LiftListNew allocates an empty list tagged with the static element
// type its elements all share (spec.md §3.4's type-tag byte), so later
// printing through this handle never has to guess a nested element's
// shape from heap-object aliasing.
func (rt *Runtime) LiftListNew(_ context.Context, _ api.Module, elemTag uint64) uint64 {
	return rt.Heap.alloc(&Object{Tag: TagList, ElemTag: Tag(elemTag)})
}

func (rt *Runtime) LiftListPush(_ context.Context, _ api.Module, handle, value uint64) {
	o := rt.Heap.get(handle)
	o.Items = append(o.Items, value)
}

func (rt *Runtime) LiftListLen(_ context.Context, _ api.Module, handle uint64) uint64 {
	return uint64(len(rt.Heap.get(handle).Items))
}

// LiftListGet returns the element at index without a bounds check of
// its own — lowering emits the bounds check inline (spec.md's "out-of-range index" edge case is a lowered branch,
// not a silent host-side clamp) and only calls this once the index is
// known valid.
func (rt *Runtime) LiftListGet(_ context.Context, _ api.Module, handle, index uint64) uint64 {
	return rt.Heap.get(handle).Items[index]
}

func (rt *Runtime) LiftListSet(_ context.Context, _ api.Module, handle, index, value uint64) {
	rt.Heap.get(handle).Items[index] = value
}

func (rt *Runtime) LiftListFirst(_ context.Context, _ api.Module, handle uint64) uint64 {
	return rt.Heap.get(handle).Items[0]
}

func (rt *Runtime) LiftListLast(_ context.Context, _ api.Module, handle uint64) uint64 {
	items := rt.Heap.get(handle).Items
	return items[len(items)-1]
}

// --- maps -----------------------------------------------------------------

// LiftMapNew allocates an empty map tagged with its static key and
// value types, the same carried-tag discipline LiftListNew applies.
func (rt *Runtime) LiftMapNew(_ context.Context, _ api.Module, keyTag, valueTag uint64) uint64 {
	return rt.Heap.alloc(&Object{Tag: TagMap, KeyTag: Tag(keyTag), ValueTag: Tag(valueTag)})
}

func (rt *Runtime) LiftMapSet(_ context.Context, _ api.Module, handle, key, value uint64) {
	o := rt.Heap.get(handle)
	for i, k := range o.Keys {
		if rt.keysEqual(k, key) {
			o.Values[i] = value
			return
		}
	}
	o.Keys = append(o.Keys, key)
	o.Values = append(o.Values, value)
}

// LiftMapGet returns the stored value, or 0 with found=0 when the key is
// absent; lowering branches on found before trusting the value, the
// same pattern as list bounds checking.
func (rt *Runtime) LiftMapGet(_ context.Context, _ api.Module, handle, key uint64) (value uint64, found uint64) {
	o := rt.Heap.get(handle)
	for i, k := range o.Keys {
		if rt.keysEqual(k, key) {
			return o.Values[i], 1
		}
	}
	return 0, 0
}

// keysEqual compares two map keys as raw i64 (the Int/Bool case) unless
// both happen to address a live Str heap object, in which case string
// content decides equality — Str keys are handles, not values, so two
// equal strings interned separately must still compare equal.
func (rt *Runtime) keysEqual(a, b uint64) bool {
	if a == b {
		return true
	}
	ao, aok := rt.strAt(a)
	bo, bok := rt.strAt(b)
	return aok && bok && ao == bo
}

func (rt *Runtime) strAt(handle uint64) (string, bool) {
	if handle >= uint64(len(rt.Heap.objects)) {
		return "", false
	}
	o := rt.Heap.objects[handle]
	if o == nil || o.Tag != TagStr {
		return "", false
	}
	return o.Str, true
}

func (rt *Runtime) LiftMapLen(_ context.Context, _ api.Module, handle uint64) uint64 {
	return uint64(len(rt.Heap.get(handle).Keys))
}

// --- ranges -----------------------------------------------------------------

func (rt *Runtime) LiftRangeNew(_ context.Context, _ api.Module, lo, hi uint64) uint64 {
	return rt.Heap.alloc(&Object{Tag: TagRange, Lo: int64(lo), Hi: int64(hi)})
}

// LiftPrintRange formats a range as `start..end`, matching
// internal/interp's RangeVal.String oracle.
func (rt *Runtime) LiftPrintRange(_ context.Context, _ api.Module, handle uint64) {
	o := rt.Heap.get(handle)
	fmt.Fprintf(&rt.Out, "%d..%d", o.Lo, o.Hi)
}

// --- structs ------------------------------------------------------------

// LiftStructNew allocates an empty struct tagged with its declared
// type name, so a later print of this handle (directly, or nested
// inside a list/map element) can render the name without needing the
// static type available at that print site.
func (rt *Runtime) LiftStructNew(_ context.Context, _ api.Module, nameID uint64) uint64 {
	return rt.Heap.alloc(&Object{Tag: TagStruct, Name: rt.Strings[nameID]})
}

func (rt *Runtime) LiftStructSetField(_ context.Context, _ api.Module, handle, nameID, value uint64) {
	o := rt.Heap.get(handle)
	name := rt.Strings[nameID]
	for i, f := range o.Fields {
		if f == name {
			o.Items[i] = value
			return
		}
	}
	o.Fields = append(o.Fields, name)
	o.Items = append(o.Items, value)
}

func (rt *Runtime) LiftStructGetField(_ context.Context, _ api.Module, handle, nameID uint64) uint64 {
	o := rt.Heap.get(handle)
	name := rt.Strings[nameID]
	for i, f := range o.Fields {
		if f == name {
			return o.Items[i]
		}
	}
	panic(fmt.Sprintf("runtime: struct has no field %q", name))
}

// LiftPrintStruct writes the struct's declared type name, matching
// internal/interp's StructVal.String oracle.
func (rt *Runtime) LiftPrintStruct(_ context.Context, _ api.Module, handle uint64) {
	rt.Out.WriteString(rt.Heap.get(handle).Name)
}

// --- output ---------------------------------------------------------------
//
// Every typed print function formats its argument and appends it to the
// Runtime's captured output buffer; internal/lower dispatches `output`
// calls to the one matching the static type of each argument, exactly
// the way spec.md §4.4.3 describes output lowering.

func (rt *Runtime) LiftPrintInt(_ context.Context, _ api.Module, v uint64) {
	fmt.Fprintf(&rt.Out, "%d", int64(v))
}

func (rt *Runtime) LiftPrintFlt(_ context.Context, _ api.Module, bits uint64) {
	fmt.Fprintf(&rt.Out, "%g", math.Float64frombits(bits))
}

func (rt *Runtime) LiftPrintBool(_ context.Context, _ api.Module, v uint64) {
	if v != 0 {
		rt.Out.WriteString("true")
	} else {
		rt.Out.WriteString("false")
	}
}

func (rt *Runtime) LiftPrintStr(_ context.Context, _ api.Module, handle uint64) {
	rt.Out.WriteString(rt.Heap.get(handle).Str)
}

func (rt *Runtime) LiftPrintList(_ context.Context, _ api.Module, handle uint64) {
	rt.Out.WriteByte('[')
	o := rt.Heap.get(handle)
	for i, item := range o.Items {
		if i > 0 {
			rt.Out.WriteString(", ")
		}
		rt.printTagged(o.ElemTag, item)
	}
	rt.Out.WriteByte(']')
}

// LiftPrintMap formats entries sorted by each key's printed text for
// determinism — insertion order from a host-side map iteration is not
// reproducible, and spec.md §8 requires byte-identical output across
// runs. This is the same order internal/interp's MapVal.String uses.
func (rt *Runtime) LiftPrintMap(_ context.Context, _ api.Module, handle uint64) {
	o := rt.Heap.get(handle)
	type kv struct {
		k, v uint64
	}
	pairs := make([]kv, len(o.Keys))
	for i := range o.Keys {
		pairs[i] = kv{o.Keys[i], o.Values[i]}
	}
	keyText := func(k uint64) string {
		switch o.KeyTag {
		case TagStr:
			return rt.Heap.get(k).Str
		case TagBool:
			if k != 0 {
				return "true"
			}
			return "false"
		}
		return fmt.Sprintf("%d", int64(k))
	}
	sort.Slice(pairs, func(i, j int) bool { return keyText(pairs[i].k) < keyText(pairs[j].k) })
	rt.Out.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			rt.Out.WriteString(", ")
		}
		rt.printTagged(o.KeyTag, p.k)
		rt.Out.WriteString(": ")
		rt.printTagged(o.ValueTag, p.v)
	}
	rt.Out.WriteByte('}')
}

// printTagged formats a raw list/map element by its collection's
// carried static type tag (spec.md §3.4), rather than guessing the
// element's shape from whatever heap object its handle happens to
// alias — Int/Bool/Flt elements never allocate a heap object at all,
// so a tag-blind formatter would misread their raw bit pattern as a
// handle into an unrelated object.
func (rt *Runtime) printTagged(tag Tag, value uint64) {
	switch tag {
	case TagInt:
		fmt.Fprintf(&rt.Out, "%d", int64(value))
	case TagFlt:
		fmt.Fprintf(&rt.Out, "%g", math.Float64frombits(value))
	case TagBool:
		if value != 0 {
			rt.Out.WriteString("true")
		} else {
			rt.Out.WriteString("false")
		}
	case TagStr:
		rt.Out.WriteString(rt.Heap.get(value).Str)
	case TagList:
		rt.LiftPrintList(context.Background(), nil, value)
	case TagMap:
		rt.LiftPrintMap(context.Background(), nil, value)
	case TagRange:
		rt.LiftPrintRange(context.Background(), nil, value)
	case TagStruct:
		rt.LiftPrintStruct(context.Background(), nil, value)
	default:
		fmt.Fprintf(&rt.Out, "%d", int64(value))
	}
}
