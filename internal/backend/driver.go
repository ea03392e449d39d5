// Package backend drives the JIT: it encodes an *ir.Module into a
// binary WASM module (encode.go) and hands it to wazero's ahead-of-time
// compiler engine, registering internal/runtime's managed-heap
// functions as the "env" host module every compiled function calls
// into. The wiring pattern — a runtime/module/instance wrapper with a
// host module supplying typed Go functions — is grounded on the
// cue-lang-cue project's cue/interpreter/wasm package, the one example
// in the pack that embeds wazero this same way.
package backend

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/cwbudde/go-lift/internal/ir"
	"github.com/cwbudde/go-lift/internal/runtime"
)

// Driver owns one wazero runtime instance, configured for ahead-of-time
// compilation (spec.md §1's "JIT backend" requirement maps onto
// wazero's compiler engine, which machine-code-compiles a module at
// Compile time rather than interpreting it).
type Driver struct {
	runtime wazero.Runtime
}

// NewDriver constructs a Driver. Callers must call Close when done to
// release the compiler engine's native resources.
func NewDriver(ctx context.Context) *Driver {
	cfg := wazero.NewRuntimeConfigCompiler()
	return &Driver{runtime: wazero.NewRuntimeWithConfig(ctx, cfg)}
}

func (d *Driver) Close(ctx context.Context) error {
	return d.runtime.Close(ctx)
}

// Program is one compiled module ready to run. Each Run gets a fresh
// internal/runtime.Runtime (fresh heap, fresh output buffer) instantiated
// against the same compiled bytecode, so repeated runs never see stale
// heap state from a previous one.
type Program struct {
	driver   *Driver
	compiled wazero.CompiledModule
	strings  []string
}

// Compile encodes mod to WASM and ahead-of-time compiles the result.
// The runtime host module is registered by each Run, not here. The
// returned Program can be Run any number of times.
func (d *Driver) Compile(ctx context.Context, mod *ir.Module) (*Program, error) {
	wasmBytes, err := encodeModule(mod)
	if err != nil {
		return nil, fmt.Errorf("backend: encode module: %w", err)
	}

	compiled, err := d.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("backend: compile module: %w", err)
	}

	return &Program{driver: d, compiled: compiled, strings: mod.Strings}, nil
}

// Run instantiates a fresh env host module bound to a new
// runtime.Runtime, instantiates the compiled module against it, calls
// its exported "main" function, and returns main's i64 result
// (spec.md §6.3: "no particular value should be relied upon" for a
// Unit-yielding program, but the slot is always populated) plus every
// byte the program wrote via `output`.
func (p *Program) Run(ctx context.Context) (result int64, output string, err error) {
	rt := runtime.New(p.strings)

	env, err := registerRuntimeHostModule(ctx, p.driver.runtime, rt)
	if err != nil {
		return 0, "", fmt.Errorf("backend: register env module: %w", err)
	}
	defer env.Close(ctx)

	modCfg := wazero.NewModuleConfig().WithName("")
	instance, err := p.driver.runtime.InstantiateModule(ctx, p.compiled, modCfg)
	if err != nil {
		return 0, "", fmt.Errorf("backend: instantiate module: %w", err)
	}
	defer instance.Close(ctx)

	main := instance.ExportedFunction("main")
	if main == nil {
		return 0, "", fmt.Errorf("backend: module has no exported \"main\" function")
	}

	results, callErr := main.Call(ctx)
	if callErr != nil {
		if ae, ok := asAbort(callErr); ok {
			return 0, rt.Out.String(), ae
		}
		return 0, rt.Out.String(), fmt.Errorf("backend: main trapped: %w", callErr)
	}
	if len(results) != 1 {
		return 0, rt.Out.String(), fmt.Errorf("backend: main returned %d values, want 1", len(results))
	}
	return int64(results[0]), rt.Out.String(), nil
}

// asAbort unwraps a wazero trap back to the *runtime.AbortError a
// lift_abort host call panicked with, if that's what caused it.
func asAbort(err error) (*runtime.AbortError, bool) {
	var ae *runtime.AbortError
	for e := err; e != nil; e = unwrap(e) {
		if a, ok := e.(*runtime.AbortError); ok {
			ae = a
			return ae, true
		}
	}
	return nil, false
}

func unwrap(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}

// registerRuntimeHostModule binds every internal/runtime.Runtime method
// as a host function under the "env" module name, the symbol namespace
// internal/lower's OpCall instructions reference by name.
func registerRuntimeHostModule(ctx context.Context, r wazero.Runtime, rt *runtime.Runtime) (api.Closer, error) {
	builder := r.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().WithFunc(rt.LiftAbort).Export("lift_abort")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStrConst).Export("lift_str_const")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStrConcat).Export("lift_str_concat")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStrEq).Export("lift_str_eq")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStrLen).Export("lift_str_len")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStrUpper).Export("lift_str_upper")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStrLower).Export("lift_str_lower")
	builder.NewFunctionBuilder().WithFunc(rt.LiftListNew).Export("lift_list_new")
	builder.NewFunctionBuilder().WithFunc(rt.LiftListPush).Export("lift_list_push")
	builder.NewFunctionBuilder().WithFunc(rt.LiftListLen).Export("lift_list_len")
	builder.NewFunctionBuilder().WithFunc(rt.LiftListGet).Export("lift_list_get")
	builder.NewFunctionBuilder().WithFunc(rt.LiftListSet).Export("lift_list_set")
	builder.NewFunctionBuilder().WithFunc(rt.LiftListFirst).Export("lift_list_first")
	builder.NewFunctionBuilder().WithFunc(rt.LiftListLast).Export("lift_list_last")
	builder.NewFunctionBuilder().WithFunc(rt.LiftMapNew).Export("lift_map_new")
	builder.NewFunctionBuilder().WithFunc(rt.LiftMapSet).Export("lift_map_set")
	builder.NewFunctionBuilder().WithFunc(rt.LiftMapGet).Export("lift_map_get")
	builder.NewFunctionBuilder().WithFunc(rt.LiftMapLen).Export("lift_map_len")
	builder.NewFunctionBuilder().WithFunc(rt.LiftRangeNew).Export("lift_range_new")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStructNew).Export("lift_struct_new")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStructSetField).Export("lift_struct_set_field")
	builder.NewFunctionBuilder().WithFunc(rt.LiftStructGetField).Export("lift_struct_get_field")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintInt).Export("lift_print_int")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintFlt).Export("lift_print_flt")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintBool).Export("lift_print_bool")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintStr).Export("lift_print_str")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintList).Export("lift_print_list")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintMap).Export("lift_print_map")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintRange).Export("lift_print_range")
	builder.NewFunctionBuilder().WithFunc(rt.LiftPrintStruct).Export("lift_print_struct")

	return builder.Instantiate(ctx)
}
