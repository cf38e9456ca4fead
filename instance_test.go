package lagonlike_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lagonlike.dev"
)

// recordHost records every capability call a handler or the stream
// bridge makes against it.
type recordHost struct {
	mu    sync.Mutex
	logs  []string
	pulls []pull

	pullErr error
	fetchFn func(resource string, init lagonlike.FetchInit) (lagonlike.FetchResult, error)
}

type pull struct {
	done  bool
	chunk string
}

func (h *recordHost) Log(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, message)
}

func (h *recordHost) Fetch(resource string, init lagonlike.FetchInit) (lagonlike.FetchResult, error) {
	if h.fetchFn != nil {
		return h.fetchFn(resource, init)
	}
	return lagonlike.FetchResult{}, errors.New("no fetch configured")
}

func (h *recordHost) PullStream(done bool, chunk []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pullErr != nil {
		return h.pullErr
	}
	h.pulls = append(h.pulls, pull{done: done, chunk: string(chunk)})
	return nil
}

func (h *recordHost) recorded() []pull {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pull(nil), h.pulls...)
}

func TestHandle(t *testing.T) {
	t.Parallel()

	t.Run("text-passthrough", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			headers := lagonlike.NewHeaders()
			headers.Set("content-type", "text/plain")
			return lagonlike.NewResponse(418, headers, lagonlike.TextBody("short and stout")), nil
		}

		i := lagonlike.New(handler, lagonlike.WithHost(&recordHost{})).Instantiate()
		resp, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{Method: "GET"}))
		if err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		if resp.Status != 418 {
			st.Errorf("Expected status 418, got %d", resp.Status)
		}
		if resp.Headers.Get("content-type") != "text/plain" {
			st.Errorf("Expected content-type passthrough, got %q", resp.Headers.Get("content-type"))
		}
		if resp.Body.Kind() != lagonlike.BodyText || resp.Body.Text() != "short and stout" {
			st.Errorf("Expected text body passthrough, got kind=%v text=%q", resp.Body.Kind(), resp.Body.Text())
		}
	})

	t.Run("bytes-normalized-to-text", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			return lagonlike.NewResponse(200, nil, lagonlike.BytesBody([]byte("caf\xc3\xa9"))), nil
		}

		i := lagonlike.New(handler, lagonlike.WithHost(&recordHost{})).Instantiate()
		resp, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{}))
		if err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		if resp.Body.Kind() != lagonlike.BodyText {
			st.Errorf("Expected bytes normalized to text, got kind=%v", resp.Body.Kind())
		}
		if resp.Body.Text() != "café" {
			st.Errorf("Expected decoded text, got %q", resp.Body.Text())
		}
	})

	t.Run("invalid-bytes-replaced", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			return lagonlike.NewResponse(200, nil, lagonlike.BytesBody([]byte{0x68, 0x69, 0xff})), nil
		}

		i := lagonlike.New(handler, lagonlike.WithHost(&recordHost{})).Instantiate()
		resp, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{}))
		if err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		if resp.Body.Text() != "hi�" {
			st.Errorf("Expected replacement decoding, got %q", resp.Body.Text())
		}
	})

	t.Run("request-passthrough", func(st *testing.T) {
		st.Parallel()
		var seen *lagonlike.Request
		handler := func(_ context.Context, req *lagonlike.Request) (*lagonlike.Response, error) {
			seen = req
			return nil, nil
		}

		headers := lagonlike.NewHeaders()
		headers.Set("X-Custom", "value")
		req := lagonlike.NewRequest("https://example.com/path?q=1", lagonlike.RequestInit{
			Method:  "POST",
			Headers: headers,
			Body:    []byte("payload"),
		})

		i := lagonlike.New(handler, lagonlike.WithHost(&recordHost{})).Instantiate()
		if _, err := i.Handle(context.Background(), req); err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		if seen.Input != "https://example.com/path?q=1" {
			st.Errorf("Expected input passthrough, got %q", seen.Input)
		}
		if seen.Method != "POST" {
			st.Errorf("Expected method passthrough, got %q", seen.Method)
		}
		if seen.Headers.Get("x-custom") != "value" {
			st.Errorf("Expected header passthrough, got %q", seen.Headers.Get("x-custom"))
		}
		if string(seen.Body) != "payload" {
			st.Errorf("Expected body passthrough, got %q", seen.Body)
		}
	})

	t.Run("stream-bridge-order", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			s := lagonlike.NewReadableStream(func(c *lagonlike.StreamController) {
				_ = c.Enqueue([]byte("alpha"))
				_ = c.Enqueue([]byte("beta"))
				_ = c.Enqueue([]byte("gamma"))
				_ = c.Close()
			})
			return lagonlike.NewResponse(200, nil, lagonlike.StreamBody(s)), nil
		}

		host := &recordHost{}
		i := lagonlike.New(handler, lagonlike.WithHost(host)).Instantiate()
		resp, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{}))
		if err != nil {
			st.Fatalf("Handle failed: %v", err)
		}
		if resp.Body.Kind() != lagonlike.BodyStream {
			st.Fatalf("Expected stream body, got kind=%v", resp.Body.Kind())
		}

		// Drain the outward stream; the bridge must mirror every chunk.
		reader := resp.Body.Stream().GetReader()
		var got []string
		for {
			chunk, err := reader.Read(context.Background())
			if err != nil {
				st.Fatalf("Read failed: %v", err)
			}
			if chunk.Done {
				break
			}
			got = append(got, string(chunk.Value))
		}
		if strings.Join(got, ",") != "alpha,beta,gamma" {
			st.Errorf("Expected mirrored chunks in order, got %v", got)
		}

		want := []pull{
			{done: false, chunk: "alpha"},
			{done: false, chunk: "beta"},
			{done: false, chunk: "gamma"},
			{done: true},
		}
		pulls := host.recorded()
		if len(pulls) != len(want) {
			st.Fatalf("Expected %d pump calls, got %d: %v", len(want), len(pulls), pulls)
		}
		for j := range want {
			if pulls[j] != want[j] {
				st.Errorf("Pump call %d: expected %+v, got %+v", j, want[j], pulls[j])
			}
		}
	})

	t.Run("empty-stream-signals-done-only", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			s := lagonlike.NewReadableStream(func(c *lagonlike.StreamController) {
				_ = c.Close()
			})
			return lagonlike.NewResponse(204, nil, lagonlike.StreamBody(s)), nil
		}

		host := &recordHost{}
		i := lagonlike.New(handler, lagonlike.WithHost(host)).Instantiate()
		resp, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{}))
		if err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		chunk, err := resp.Body.Stream().GetReader().Read(context.Background())
		if err != nil {
			st.Fatalf("Read failed: %v", err)
		}
		if !chunk.Done {
			st.Errorf("Expected immediate done, got %q", chunk.Value)
		}

		pulls := host.recorded()
		if len(pulls) != 1 || !pulls[0].done {
			st.Errorf("Expected a single done pump call, got %v", pulls)
		}
	})

	t.Run("pump-failure-fails-outward-stream", func(st *testing.T) {
		st.Parallel()
		boom := errors.New("sink gone")
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			s := lagonlike.NewReadableStream(func(c *lagonlike.StreamController) {
				_ = c.Enqueue([]byte("chunk"))
				_ = c.Close()
			})
			return lagonlike.NewResponse(200, nil, lagonlike.StreamBody(s)), nil
		}

		host := &recordHost{pullErr: boom}
		i := lagonlike.New(handler, lagonlike.WithHost(host)).Instantiate()
		resp, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{}))
		if err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		if _, err := resp.Body.Stream().GetReader().Read(context.Background()); !errors.Is(err, boom) {
			st.Errorf("Expected sink error on outward stream, got %v", err)
		}
	})

	t.Run("no-handler", func(st *testing.T) {
		st.Parallel()
		i := lagonlike.New(nil).Instantiate()
		if _, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{})); !errors.Is(err, lagonlike.ErrNoHandler) {
			st.Errorf("Expected ErrNoHandler, got %v", err)
		}
	})

	t.Run("handler-error", func(st *testing.T) {
		st.Parallel()
		boom := errors.New("broken")
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			return nil, boom
		}

		i := lagonlike.New(handler).Instantiate()
		if _, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{})); !errors.Is(err, boom) {
			st.Errorf("Expected handler error surfaced, got %v", err)
		}
	})

	t.Run("handler-panic", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			panic("unreachable code reached")
		}

		i := lagonlike.New(handler).Instantiate()
		_, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{}))
		if err == nil || !strings.Contains(err.Error(), "handler panic") {
			st.Errorf("Expected panic surfaced as error, got %v", err)
		}
	})

	t.Run("timeout", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			time.Sleep(500 * time.Millisecond)
			return nil, nil
		}

		i := lagonlike.New(handler, lagonlike.WithExecutionTimeout(10*time.Millisecond)).Instantiate()
		if _, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{})); !errors.Is(err, lagonlike.ErrTimeout) {
			st.Errorf("Expected ErrTimeout, got %v", err)
		}
	})

	t.Run("host-from-context", func(st *testing.T) {
		st.Parallel()
		handler := func(ctx context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			lagonlike.HostFrom(ctx).Log("hello from the handler")
			return nil, nil
		}

		host := &recordHost{}
		i := lagonlike.New(handler, lagonlike.WithHost(host)).Instantiate()
		if _, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{})); err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		host.mu.Lock()
		defer host.mu.Unlock()
		if len(host.logs) != 1 || host.logs[0] != "hello from the handler" {
			st.Errorf("Expected log delivered to host, got %v", host.logs)
		}
	})

	t.Run("env-from-context", func(st *testing.T) {
		st.Parallel()
		handler := func(ctx context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			get := lagonlike.EnvFrom(ctx, "config")
			if get == nil {
				return nil, errors.New("store not found")
			}
			return lagonlike.NewResponse(200, nil, lagonlike.TextBody(get("region"))), nil
		}

		i := lagonlike.New(handler, lagonlike.WithEnvStore("config", func(key string) string {
			if key == "region" {
				return "us-east-1"
			}
			return ""
		})).Instantiate()

		resp, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{}))
		if err != nil {
			st.Fatalf("Handle failed: %v", err)
		}
		if resp.Body.Text() != "us-east-1" {
			st.Errorf("Expected env store value, got %q", resp.Body.Text())
		}
	})

	t.Run("events", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			return lagonlike.NewResponse(200, nil, lagonlike.TextBody("four")), nil
		}

		events := make(chan lagonlike.ResponseEvent, 1)
		i := lagonlike.New(handler, lagonlike.WithEvents(func(ev lagonlike.ResponseEvent) {
			events <- ev
		})).Instantiate()

		if _, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{})); err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		ev := <-events
		if ev.Bytes != 4 {
			st.Errorf("Expected 4 body bytes reported, got %d", ev.Bytes)
		}
		if ev.Err != nil {
			st.Errorf("Expected no event error, got %v", ev.Err)
		}
	})

	t.Run("stream-event-counts-bytes", func(st *testing.T) {
		st.Parallel()
		handler := func(_ context.Context, _ *lagonlike.Request) (*lagonlike.Response, error) {
			s := lagonlike.NewReadableStream(func(c *lagonlike.StreamController) {
				_ = c.Enqueue([]byte("12345"))
				_ = c.Enqueue([]byte("678"))
				_ = c.Close()
			})
			return lagonlike.NewResponse(200, nil, lagonlike.StreamBody(s)), nil
		}

		events := make(chan lagonlike.ResponseEvent, 1)
		i := lagonlike.New(handler,
			lagonlike.WithHost(&recordHost{}),
			lagonlike.WithEvents(func(ev lagonlike.ResponseEvent) { events <- ev }),
		).Instantiate()

		if _, err := i.Handle(context.Background(), lagonlike.NewRequest("http://localhost/", lagonlike.RequestInit{})); err != nil {
			st.Fatalf("Handle failed: %v", err)
		}

		ev := <-events
		if ev.Bytes != 8 {
			st.Errorf("Expected 8 streamed bytes reported, got %d", ev.Bytes)
		}
	})
}
