package lagonlike

import (
	"io"
	"log"
	"net/http"
)

// Runtime carries a registered handler and the options applied to every
// instance created from it. A Runtime is reusable and safe for
// concurrent use; the per-request state lives on the Instance.
type Runtime struct {
	handler Handler
	opts    []Option
}

// New returns a Runtime that serves the given handler.
func New(handler Handler, opts ...Option) *Runtime {
	return &Runtime{handler: handler, opts: opts}
}

// NewFromWasm returns a Runtime whose handler is a wasm guest program,
// compiled from the supplied wasm bytes.
func NewFromWasm(wasm []byte, opts ...Option) (*Runtime, error) {
	mod, err := CompileWasm(wasm)
	if err != nil {
		return nil, err
	}
	return New(mod.Handler(), opts...), nil
}

// NewFromWasmFile is NewFromWasm reading the program from disk.
func NewFromWasmFile(path string, opts ...Option) (*Runtime, error) {
	mod, err := CompileWasmFile(path)
	if err != nil {
		return nil, err
	}
	return New(mod.Handler(), opts...), nil
}

// Instantiate returns a new Instance ready to serve a single request.
// This must be called per request: the bridge is designed around one
// request/response pair per instance. Options given here apply after,
// and can override, the Runtime-level options.
func (rt *Runtime) Instantiate(opts ...Option) *Instance {
	i := &Instance{
		handler: rt.handler,
		host:    NopHost{},
		log:     log.New(io.Discard, "lagonlike: ", log.LstdFlags),
		abilog:  log.New(io.Discard, "abi: ", log.LstdFlags),
	}

	for _, o := range rt.opts {
		o(i)
	}
	for _, o := range opts {
		o(i)
	}

	return i
}

// ServeHTTP instantiates and serves, making Runtime mountable as an
// http.Handler.
func (rt *Runtime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.Instantiate().ServeHTTP(w, r)
}
