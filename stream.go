package lagonlike

import (
	"context"
	"errors"
	"sync"
)

// ErrStreamClosed is returned when enqueueing into or closing a stream
// that has already been closed.
var ErrStreamClosed = errors.New("stream closed")

// Chunk is one read result from a StreamReader. Done marks the end of
// the stream; a done chunk never carries a value.
type Chunk struct {
	Done  bool
	Value []byte
}

type readResult struct {
	chunk Chunk
	err   error
}

// StreamController is the producer side of a ReadableStream. Enqueue
// never blocks and never applies backpressure: chunks accumulate in an
// unbounded buffer until a reader drains them. That is a deliberate
// limitation of this emulation, not an oversight.
type StreamController struct {
	mu      sync.Mutex
	buf     [][]byte
	waiters []chan readResult
	closed  bool
	failed  error
}

// Enqueue appends a chunk to the stream. The first waiting reader, if
// any, receives it directly; otherwise it is buffered. Enqueueing into
// a closed stream returns ErrStreamClosed.
func (c *StreamController) Enqueue(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrStreamClosed
	}

	if len(c.waiters) > 0 {
		w := c.waiters[0]
		c.waiters = c.waiters[1:]
		w <- readResult{chunk: Chunk{Value: chunk}}
		return nil
	}

	c.buf = append(c.buf, chunk)
	return nil
}

// Close marks the stream complete. Buffered chunks remain readable;
// waiting and subsequent reads observe a done chunk.
func (c *StreamController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrStreamClosed
	}
	c.closed = true

	for _, w := range c.waiters {
		w <- readResult{chunk: Chunk{Done: true}}
	}
	c.waiters = nil
	return nil
}

// Fail terminates the stream with an error. Waiting and subsequent
// reads observe err. Failing an already-terminated stream is a no-op.
func (c *StreamController) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.failed = err

	for _, w := range c.waiters {
		w <- readResult{err: err}
	}
	c.waiters = nil
}

// ReadableStream is a minimal pull stream: a producer feeds it through
// the controller handed to the start callback, and a single consumer
// drains it through a reader. There is no multi-reader broadcast; all
// readers share the same underlying cursor.
type ReadableStream struct {
	ctl StreamController
}

// NewReadableStream constructs a stream. When start is non-nil it is
// invoked exactly once, before NewReadableStream returns, with the
// stream's controller.
func NewReadableStream(start func(*StreamController)) *ReadableStream {
	s := &ReadableStream{}
	if start != nil {
		start(&s.ctl)
	}
	return s
}

// Controller returns the stream's producer handle. Exposed so that
// drivers which produce asynchronously (the stream bridge, the wasm
// ABI) can feed a stream they did not start.
func (s *ReadableStream) Controller() *StreamController {
	return &s.ctl
}

// GetReader returns a reader over the stream.
func (s *ReadableStream) GetReader() *StreamReader {
	return &StreamReader{ctl: &s.ctl}
}

// StreamReader consumes a ReadableStream one chunk at a time.
type StreamReader struct {
	ctl *StreamController
}

// Read returns the next chunk, blocking until one is available, the
// stream completes, the stream fails, or ctx is done. Concurrent reads
// are serviced strictly in the order they were issued: buffered chunks
// drain under the controller lock, and outstanding reads join a FIFO
// waiter queue.
func (r *StreamReader) Read(ctx context.Context) (Chunk, error) {
	c := r.ctl
	c.mu.Lock()

	if len(c.buf) > 0 {
		chunk := c.buf[0]
		c.buf = c.buf[1:]
		c.mu.Unlock()
		return Chunk{Value: chunk}, nil
	}

	if c.failed != nil {
		c.mu.Unlock()
		return Chunk{}, c.failed
	}

	if c.closed {
		c.mu.Unlock()
		return Chunk{Done: true}, nil
	}

	w := make(chan readResult, 1)
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case res := <-w:
		return res.chunk, res.err
	case <-ctx.Done():
		c.abandon(w)
		return Chunk{}, ctx.Err()
	}
}

// abandon removes w from the waiter queue after a cancelled read. The
// producer may have raced us and already delivered into w; that chunk
// is dropped with the read that requested it.
func (c *StreamController) abandon(w chan readResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cand := range c.waiters {
		if cand == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
