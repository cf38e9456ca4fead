package lagonlike

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// loopToken marks requests that have already passed through this
// runtime, so a handler fetching itself is caught instead of looping.
const loopToken = "lagonlike"

// ServeHTTP adapts an incoming HTTP request into the bridge: it builds
// the host request, runs Handle, and delivers the response downstream.
// Streamed bodies are written chunk by chunk as the pump forwards
// them, flushing after every chunk. This is not safe to call twice on
// the same instance.
func (i *Instance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := i.Close(); err != nil {
			i.log.Printf("close: %v", err)
		}
	}()

	if strings.Contains(strings.Join(r.Header.Values("cdn-loop"), "\x00"), loopToken) {
		w.WriteHeader(http.StatusLoopDetected)
		_, _ = w.Write([]byte("Loop detected! This request has already come through this runtime.\n"))
		return
	}

	reqID := r.Header.Get("x-request-id")
	if reqID == "" {
		reqID = uuid.NewString()
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "error reading request body", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	input := scheme + "://" + r.Host + r.URL.RequestURI()

	headers := NewHeaders()
	for name, values := range r.Header {
		for _, value := range values {
			headers.Add(name, value)
		}
	}
	headers.Set("x-request-id", reqID)

	var reqBody []byte
	if len(body) > 0 {
		reqBody = body
	}
	req := NewRequest(input, RequestInit{
		Method:  r.Method,
		Headers: headers,
		Body:    reqBody,
	})

	// Wrap the configured host so the pump callback delivers chunks to
	// this response writer. Log and Fetch still go to the original.
	hh := &pumpToHTTP{Host: i.host, w: w, ready: make(chan struct{}), done: make(chan struct{})}
	i.host = hh

	resp, err := i.Handle(r.Context(), req)
	if err != nil {
		i.writeError(w, err)
		return
	}

	for _, name := range resp.Headers.Names() {
		for _, value := range resp.Headers.Values(name) {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set("x-request-id", reqID)
	w.WriteHeader(resp.Status)

	switch resp.Body.Kind() {
	case BodyStream:
		// Headers are on the wire; let the pump through and wait for
		// its completion signal.
		close(hh.ready)
		<-hh.done
	case BodyEmpty:
	default:
		_, _ = w.Write(resp.Body.Bytes())
	}
}

func (i *Instance) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoHandler):
		writePage(w, http.StatusNotFound, page404)
	case errors.Is(err, ErrTimeout):
		writePage(w, http.StatusBadGateway, page502)
	default:
		writePage(w, http.StatusInternalServerError, page500)
	}
}

func writePage(w http.ResponseWriter, status int, page string) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, page)
}

// pumpToHTTP is the per-request host the HTTP front end installs: it
// delegates Log and Fetch to the configured host and turns PullStream
// into chunked writes on the response writer.
type pumpToHTTP struct {
	Host
	w http.ResponseWriter

	// ready gates chunk delivery until status and headers are written;
	// done closes when the stream has fully terminated.
	ready chan struct{}
	done  chan struct{}

	doneOnce sync.Once
}

func (h *pumpToHTTP) PullStream(done bool, chunk []byte) error {
	<-h.ready

	if done {
		h.finish()
		return nil
	}

	if _, err := h.w.Write(chunk); err != nil {
		// The pump stops on our error and will not signal completion;
		// release the waiter ourselves.
		h.finish()
		return err
	}
	if f, ok := h.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (h *pumpToHTTP) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}
