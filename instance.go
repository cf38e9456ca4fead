package lagonlike

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.uber.org/multierr"
)

// Handler is the user-registered entry point: it receives the inbound
// request and produces a response. The context carries the instance's
// Host (see HostFrom) and is cancelled when the execution deadline
// expires.
type Handler func(ctx context.Context, req *Request) (*Response, error)

var (
	// ErrNoHandler is returned by Handle when the instance has no
	// registered handler to invoke.
	ErrNoHandler = errors.New("no handler registered")

	// ErrTimeout is returned by Handle when the handler does not
	// produce a response within the configured execution deadline.
	ErrTimeout = errors.New("execution timed out")
)

// ResponseEvent summarizes one completed invocation: how many body
// bytes were produced, how long the invocation ran, and the error that
// terminated it, if any. For streamed responses the event fires when
// the pump finishes, not when Handle returns.
type ResponseEvent struct {
	Bytes   int
	Elapsed time.Duration
	Err     error
}

// EventFunc receives ResponseEvents. Registered with WithEvents.
type EventFunc func(ResponseEvent)

// Instance executes exactly one handler invocation. Instances are
// created by Runtime.Instantiate and are not safe to reuse: the stream
// bridge state they hold has the lifetime of a single response body.
type Instance struct {
	handler Handler
	host    Host

	timeout time.Duration
	events  EventFunc

	envs       []envStore
	logTargets []logTarget
	defaultLog func(name string) io.Writer

	// log carries host-side diagnostics, abilog traces guest ABI
	// calls. Both discard unless raised via WithVerbosity.
	log    *log.Logger
	abilog *log.Logger

	closers []io.Closer
}

type handlerResult struct {
	resp *Response
	err  error
}

// Handle is the host ↔ handler bridge. It invokes the registered
// handler with req and normalizes the response body for the host:
//
//   - a stream body is re-exposed as a fresh outward stream driven by
//     the pump, which forwards every chunk to the host's PullStream
//     before enqueueing it, one read in flight at a time;
//   - a raw byte body is decoded to text, for hosts that cannot accept
//     raw bytes;
//   - text and empty bodies pass through untouched.
//
// Status and headers are never modified. Handler errors, panics and
// deadline expiry surface as errors rather than being swallowed.
func (i *Instance) Handle(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	if i.handler == nil {
		return nil, ErrNoHandler
	}

	ctx = ContextWithHost(ctx, i.host)
	ctx = contextWithInstance(ctx, i)

	cancel := context.CancelFunc(func() {})
	if i.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
	}

	resp, err := i.invoke(ctx, req)
	if err != nil {
		cancel()
		i.log.Printf("handle: %v", err)
		i.emit(ResponseEvent{Elapsed: time.Since(start), Err: err})
		return nil, err
	}
	if resp == nil {
		resp = NewResponse(200, nil, EmptyBody())
	}

	switch resp.Body.Kind() {
	case BodyStream:
		out := NewReadableStream(nil)
		reader := resp.Body.Stream().GetReader()
		go func() {
			defer cancel()
			i.pump(ctx, start, reader, out.Controller())
		}()
		return &Response{Status: resp.Status, Headers: resp.Headers, Body: StreamBody(out)}, nil

	case BodyBytes:
		cancel()
		raw := resp.Body.Bytes()
		text, _ := TextDecoder{}.Decode(raw)
		i.emit(ResponseEvent{Bytes: len(raw), Elapsed: time.Since(start)})
		return &Response{Status: resp.Status, Headers: resp.Headers, Body: TextBody(text)}, nil

	default:
		cancel()
		i.emit(ResponseEvent{Bytes: len(resp.Body.Text()), Elapsed: time.Since(start)})
		return resp, nil
	}
}

// invoke runs the handler under the instance deadline. The handler
// goroutine cannot be preempted; on expiry it keeps running until it
// observes its context, but its eventual result is dropped.
func (i *Instance) invoke(ctx context.Context, req *Request) (*Response, error) {
	ch := make(chan handlerResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- handlerResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		resp, err := i.handler(ctx, req)
		if err != nil {
			err = fmt.Errorf("handler: %w", err)
		}
		ch <- handlerResult{resp: resp, err: err}
	}()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, i.timeout)
		}
		return nil, ctx.Err()
	}
}

// pump is the stream bridge: an explicit single-consumer loop that
// pulls one chunk at a time from reader, forwards it to the host pump
// callback, then enqueues it into the outward stream. The next read
// only starts after the current chunk has been both forwarded and
// enqueued, so the host observes chunks in production order with no
// duplicates and nothing in flight concurrently.
func (i *Instance) pump(ctx context.Context, start time.Time, reader *StreamReader, out *StreamController) {
	var total int

	for {
		chunk, err := reader.Read(ctx)
		if err != nil {
			i.log.Printf("pump: read error: %v", err)
			out.Fail(err)
			// Release the host-side consumer; it would otherwise wait
			// for a completion that is never coming.
			_ = i.host.PullStream(true, nil)
			i.emit(ResponseEvent{Bytes: total, Elapsed: time.Since(start), Err: err})
			return
		}

		if chunk.Done {
			err := i.host.PullStream(true, nil)
			if err != nil {
				i.log.Printf("pump: completion signal: %v", err)
			}
			_ = out.Close()
			i.emit(ResponseEvent{Bytes: total, Elapsed: time.Since(start), Err: err})
			return
		}

		if err := i.host.PullStream(false, chunk.Value); err != nil {
			i.log.Printf("pump: forward error: %v", err)
			out.Fail(err)
			i.emit(ResponseEvent{Bytes: total, Elapsed: time.Since(start), Err: err})
			return
		}
		_ = out.Enqueue(chunk.Value)
		total += len(chunk.Value)
	}
}

func (i *Instance) emit(ev ResponseEvent) {
	if i.events != nil {
		i.events(ev)
	}
}

func (i *Instance) addCloser(c io.Closer) {
	i.closers = append(i.closers, c)
}

// Close releases every resource registered on the instance, collecting
// all failures rather than stopping at the first.
func (i *Instance) Close() error {
	var err error
	for _, c := range i.closers {
		err = multierr.Append(err, c.Close())
	}
	i.closers = nil
	return err
}
