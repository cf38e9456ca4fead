package lagonlike

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytecodealliance/wasmtime-go"
)

// WasmModule is a compiled guest program. Compilation happens once;
// each invocation links a fresh wasm instance against a per-request
// guest state, since the ABI is designed around a single
// request/response pair per instance.
type WasmModule struct {
	mu     sync.Mutex
	store  *wasmtime.Store
	wasi   *wasmtime.WasiInstance
	module *wasmtime.Module
}

// CompileWasm compiles the supplied wasm bytes into a reusable module.
func CompileWasm(wasm []byte) (*WasmModule, error) {
	config := wasmtime.NewConfig()
	config.SetDebugInfo(true)
	config.SetWasmMultiValue(true)

	store := wasmtime.NewStore(wasmtime.NewEngineWithConfig(config))
	module, err := wasmtime.NewModule(store, wasm)
	if err != nil {
		return nil, fmt.Errorf("compiling wasm: %w", err)
	}

	wasi, err := newWasi(store)
	if err != nil {
		return nil, err
	}

	return &WasmModule{store: store, wasi: wasi, module: module}, nil
}

// CompileWasmFile is CompileWasm reading the program from disk.
func CompileWasmFile(path string) (*WasmModule, error) {
	config := wasmtime.NewConfig()
	config.SetDebugInfo(true)
	config.SetWasmMultiValue(true)

	store := wasmtime.NewStore(wasmtime.NewEngineWithConfig(config))
	module, err := wasmtime.NewModuleFromFile(store, path)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}

	wasi, err := newWasi(store)
	if err != nil {
		return nil, err
	}

	return &WasmModule{store: store, wasi: wasi, module: module}, nil
}

// newWasi configures a wasi instance that lets the guest write to our
// stdout/stderr.
func newWasi(store *wasmtime.Store) (*wasmtime.WasiInstance, error) {
	wasicfg := wasmtime.NewWasiConfig()
	wasicfg.InheritStdout()
	wasicfg.InheritStderr()

	wasi, err := wasmtime.NewWasiInstance(store, wasicfg, "wasi_snapshot_preview1")
	if err != nil {
		return nil, fmt.Errorf("configuring wasi: %w", err)
	}
	return wasi, nil
}

// Handler adapts the module into the runtime's Handler type: each call
// instantiates the guest, links the ABI against per-request state, and
// runs the guest's entrypoint to completion.
//
// Linking cannot be shared across invocations: the host functions close
// over the request's guest state, so a generic linker would have no way
// to route a call back to the response it belongs to. Linking is cheap
// enough that this is not worth working around.
func (m *WasmModule) Handler() Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		g := newGuest(ctx, req)

		m.mu.Lock()
		linker := wasmtime.NewLinker(m.store)
		err := linker.DefineWasi(m.wasi)
		if err == nil {
			err = g.link(linker)
		}
		var inst *wasmtime.Instance
		if err == nil {
			inst, err = linker.Instantiate(m.module)
		}
		m.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("instantiating guest: %w", err)
		}

		mem := inst.GetExport("memory")
		if mem == nil || mem.Memory() == nil {
			return nil, errors.New("guest exports no memory")
		}
		g.memory = &Memory{&wasmMemory{mem: mem.Memory()}}

		entry := inst.GetExport("_start")
		if entry == nil || entry.Func() == nil {
			return nil, errors.New("guest exports no _start")
		}

		if _, err := entry.Func().Call(); err != nil {
			return nil, fmt.Errorf("running guest: %w", err)
		}

		return g.response(), nil
	}
}
