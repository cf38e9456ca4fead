package lagonlike

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Host bundles the capabilities the embedding runtime supplies to a
// handler: a diagnostic log sink, an outbound fetch primitive, and the
// pump callback used to stream response chunks out of the sandbox.
//
// The original embedding exposed these as a mutable global; here they
// are an explicit dependency injected per instance (see WithHost), so
// tests can substitute their own.
type Host interface {
	// Log writes one diagnostic message to the host's sink.
	Log(message string)

	// Fetch performs an outbound request on the handler's behalf. The
	// result body is pinned to a string by the host contract.
	Fetch(resource string, init FetchInit) (FetchResult, error)

	// PullStream is invoked once per produced chunk with done=false,
	// and exactly once more with done=true (and no chunk) when the
	// stream completes.
	PullStream(done bool, chunk []byte) error
}

// FetchInit carries the optional fields of an outbound fetch.
type FetchInit struct {
	Method  string
	Headers Headers
	Body    []byte
}

// FetchResult is the fixed return shape of the host fetch primitive.
type FetchResult struct {
	Status  int
	Headers Headers
	Body    string
}

// NopHost is a Host that discards logs and chunks and refuses outbound
// fetches. It is the default for instances created without WithHost.
type NopHost struct{}

func (NopHost) Log(string) {}

func (NopHost) Fetch(resource string, _ FetchInit) (FetchResult, error) {
	return FetchResult{}, fmt.Errorf("fetch %q: no outbound fetch configured", resource)
}

func (NopHost) PullStream(bool, []byte) error { return nil }

// HTTPHost is a Host whose fetch primitive is backed by a real HTTP
// client and whose log sink is an io.Writer. Its pump callback is a
// no-op; front ends that deliver streams (ServeHTTP) wrap the host and
// supply their own.
type HTTPHost struct {
	// Client issues outbound fetches. http.DefaultClient when nil.
	Client *http.Client
	// Logs receives one line per Log call. Discarded when nil.
	Logs io.Writer
}

func (h *HTTPHost) Log(message string) {
	if h.Logs == nil {
		return
	}
	_, _ = LineWriter{h.Logs}.Write([]byte(message))
}

func (h *HTTPHost) Fetch(resource string, init FetchInit) (FetchResult, error) {
	method := init.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequest(method, resource, bytes.NewReader(init.Body))
	if err != nil {
		return FetchResult{}, err
	}

	for _, name := range init.Headers.Names() {
		for _, value := range init.Headers.Values(name) {
			req.Header.Add(name, value)
		}
	}
	// Mark the hop so a fetch that loops back into us is caught by the
	// front end's loop detection.
	req.Header.Add("cdn-loop", loopToken)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, err
	}

	headers := NewHeaders()
	for name, values := range resp.Header {
		for _, value := range values {
			headers.Add(name, value)
		}
	}

	return FetchResult{Status: resp.StatusCode, Headers: headers, Body: string(body)}, nil
}

func (h *HTTPHost) PullStream(bool, []byte) error { return nil }

type ctxKey int

const (
	hostKey ctxKey = iota
	instanceKey
)

// ContextWithHost returns a context carrying h, making it visible to
// Fetch and any handler that calls HostFrom.
func ContextWithHost(ctx context.Context, h Host) context.Context {
	return context.WithValue(ctx, hostKey, h)
}

// HostFrom returns the Host carried by ctx, or NopHost if there is
// none. Handlers receive a context populated by the bridge, so inside
// a handler this is never nil.
func HostFrom(ctx context.Context) Host {
	if h, ok := ctx.Value(hostKey).(Host); ok {
		return h
	}
	return NopHost{}
}

func contextWithInstance(ctx context.Context, i *Instance) context.Context {
	return context.WithValue(ctx, instanceKey, i)
}

func instanceFrom(ctx context.Context) *Instance {
	i, _ := ctx.Value(instanceKey).(*Instance)
	return i
}

// EnvFrom returns the lookup function for the named environment store
// registered on the running instance, or nil if there is none.
func EnvFrom(ctx context.Context, store string) LookupFunc {
	i := instanceFrom(ctx)
	if i == nil {
		return nil
	}
	handle := i.getEnvStoreHandle(store)
	if handle == HandleInvalid {
		return nil
	}
	return i.getEnvStore(handle)
}
