// Package lagonlike is a Go host runtime for serverless JavaScript-style
// functions.
//
// It implements an http.Handler that bridges incoming HTTP requests to a
// registered handler function, which may be native Go or a WebAssembly
// program speaking the lagon_* ABI. Each incoming request is handled by a
// fresh Instance, as the stream bridge is designed around a single
// request/response pair per instance.
//
// The main entry points are:
//   - New(): creates a Runtime from a native Handler
//   - NewFromWasmFile(): creates a Runtime from a compiled wasm program
//   - Runtime.ServeHTTP(): handles HTTP requests using the handler
//
// Handlers receive a Request and return a Response whose body is empty,
// text, raw bytes, or a ReadableStream. The bridge normalizes bytes to
// text and drives streamed bodies through the host's PullStream callback
// one chunk at a time, in production order.
//
// HOSTS
//
// Everything a handler needs from its environment arrives through the
// Host interface: logging, outbound fetch, and stream delivery. The HTTP
// front end installs a host that writes stream chunks straight to the
// response writer; tests substitute recording hosts. Handlers reach the
// host through their context via HostFrom.
//
// WASM ABI
//
// The lagon_* ABI is the interface between a wasm function and this
// runtime. ABI functions are implemented in abi.go and linked against
// each instantiation via guest.link(). Each function intentionally
// follows C-style signatures (addresses and sizes in, a status code out,
// results written into guest-provided buffers).
package lagonlike
