package lagonlike

import (
	"io"
	"os"
	"time"
)

// Option is a functional option applied to an Instance at creation
// time, either on the Runtime (applies to every instance) or passed to
// Instantiate directly.
type Option func(*Instance)

// WithHost injects the capability bundle the handler runs against.
// Instances default to NopHost, which discards logs and refuses
// outbound fetches.
func WithHost(h Host) Option {
	return func(i *Instance) {
		i.host = h
	}
}

// WithExecutionTimeout bounds how long the handler may run before the
// invocation is abandoned with ErrTimeout. Zero means no deadline.
func WithExecutionTimeout(d time.Duration) Option {
	return func(i *Instance) {
		i.timeout = d
	}
}

// WithEvents registers a callback receiving one ResponseEvent per
// completed invocation, carrying byte counts, elapsed time and the
// terminating error if any.
func WithEvents(fn EventFunc) Option {
	return func(i *Instance) {
		i.events = fn
	}
}

// WithEnvStore registers a named environment store with a
// corresponding lookup function, reachable from handlers via EnvFrom
// and from wasm guests via the env ABI call.
func WithEnvStore(name string, fn LookupFunc) Option {
	return func(i *Instance) {
		i.addEnvStore(name, fn)
	}
}

// WithLogEndpoint registers a named log endpoint usable from a guest.
// If w is also an io.Closer it is closed with the instance.
func WithLogEndpoint(name string, w io.Writer) Option {
	return func(i *Instance) {
		i.addLogTarget(name, w)
		if c, ok := w.(io.Closer); ok {
			i.addCloser(c)
		}
	}
}

// WithDefaultLogEndpoint sets a fallback for log endpoints not
// registered with WithLogEndpoint. The function receives the endpoint
// name and returns the writer to use for it.
func WithDefaultLogEndpoint(fn func(name string) io.Writer) Option {
	return func(i *Instance) {
		i.defaultLog = fn
	}
}

// WithVerbosity controls host-side diagnostics.
//   - 0 (default): nothing
//   - 1: system-level logs to stderr
//   - 2: additionally, every guest ABI call to stderr
func WithVerbosity(v int) Option {
	return func(i *Instance) {
		if v >= 2 {
			i.abilog.SetOutput(os.Stderr)
		}
		if v >= 1 {
			i.log.SetOutput(os.Stderr)
		}
	}
}
