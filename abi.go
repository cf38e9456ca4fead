package lagonlike

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/bytecodealliance/wasmtime-go"
)

// guest holds the per-request state the ABI functions operate on: the
// inbound request rendered for the guest, and the response the guest
// builds up through status/header/body calls. The interchange format
// is JSON; byte fields ride base64 inside it.
type guest struct {
	inst *Instance
	host Host
	req  *Request

	memory *Memory

	wireReq   []byte
	lastFetch []byte

	status    int
	headers   Headers
	body      bytes.Buffer
	stream    *ReadableStream
	streaming bool
}

type wireRequest struct {
	Input   string              `json:"input"`
	Method  string              `json:"method"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    []byte              `json:"body,omitempty"`
}

type wireFetchInit struct {
	Method  string              `json:"method,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    []byte              `json:"body,omitempty"`
}

type wireFetchResult struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    string              `json:"body"`
}

func newGuest(ctx context.Context, req *Request) *guest {
	return &guest{
		inst:    instanceFrom(ctx),
		host:    HostFrom(ctx),
		req:     req,
		headers: NewHeaders(),
	}
}

func (g *guest) abilog() *log.Logger {
	if g.inst != nil {
		return g.inst.abilog
	}
	return log.New(io.Discard, "", 0)
}

// link defines the host side of the guest ABI. Each function follows
// the C-style convention of the embedding boundary: int32 addresses
// and sizes in, an AbiStatus out, results written into guest-provided
// buffers.
func (g *guest) link(linker *wasmtime.Linker) error {
	for name, fn := range map[string]interface{}{
		"lagon_request_length":   g.abiRequestLength,
		"lagon_request_read":     g.abiRequestRead,
		"lagon_log":              g.abiLog,
		"lagon_log_endpoint_get": g.abiLogEndpointGet,
		"lagon_log_write":        g.abiLogWrite,
		"lagon_env_get":          g.abiEnvGet,
		"lagon_fetch":            g.abiFetch,
		"lagon_fetch_read":       g.abiFetchRead,
		"lagon_response_status":  g.abiResponseStatus,
		"lagon_response_header":  g.abiResponseHeader,
		"lagon_body_write":       g.abiBodyWrite,
		"lagon_stream_push":      g.abiStreamPush,
		"lagon_stream_done":      g.abiStreamDone,
	} {
		if err := linker.DefineFunc("env", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (g *guest) readBytes(addr, size int32) []byte {
	buf := make([]byte, size)
	_, _ = g.memory.ReadAt(buf, int64(addr))
	return buf
}

// renderRequest marshals the inbound request once per guest.
func (g *guest) renderRequest() []byte {
	if g.wireReq != nil {
		return g.wireReq
	}
	g.wireReq, _ = json.Marshal(wireRequest{
		Input:   g.req.Input,
		Method:  g.req.Method,
		Headers: g.req.Headers,
		Body:    g.req.Body,
	})
	return g.wireReq
}

func (g *guest) abiRequestLength() int32 {
	n := len(g.renderRequest())
	g.abilog().Printf("request_length: %d", n)
	return int32(n)
}

func (g *guest) abiRequestRead(addr int32) AbiStatus {
	g.abilog().Printf("request_read: addr=%d", addr)
	if _, err := g.memory.WriteAt(g.renderRequest(), int64(addr)); err != nil {
		return AbiError
	}
	return AbiOK
}

func (g *guest) abiLog(addr, size int32) AbiStatus {
	message := string(g.readBytes(addr, size))
	g.abilog().Printf("log: %q", message)
	g.host.Log(message)
	return AbiOK
}

func (g *guest) abiLogEndpointGet(nameAddr, nameSize, handleOut int32) AbiStatus {
	if g.inst == nil {
		return AbiErrUnsupported
	}

	name := string(g.readBytes(nameAddr, nameSize))
	handle := g.inst.getLogTargetHandle(name)
	g.abilog().Printf("log_endpoint_get: name=%s handle=%d", name, handle)

	g.memory.PutUint32(uint32(handle), int64(handleOut))
	return AbiOK
}

func (g *guest) abiLogWrite(handle, addr, size int32) AbiStatus {
	if g.inst == nil {
		return AbiErrUnsupported
	}

	g.abilog().Printf("log_write: handle=%d size=%d", handle, size)

	target := g.inst.getLogTarget(int(handle))
	if target == nil {
		return AbiErrInvalidHandle
	}

	if _, err := target.Write(g.readBytes(addr, size)); err != nil {
		return AbiError
	}
	return AbiOK
}

func (g *guest) abiEnvGet(storeAddr, storeSize, keyAddr, keySize, valueAddr, valueMaxlen, nwrittenOut int32) AbiStatus {
	if g.inst == nil {
		return AbiErrUnsupported
	}

	store := string(g.readBytes(storeAddr, storeSize))
	key := string(g.readBytes(keyAddr, keySize))
	g.abilog().Printf("env_get: store=%s key=%s", store, key)

	handle := g.inst.getEnvStoreHandle(store)
	if handle == HandleInvalid {
		return AbiErrInvalidHandle
	}

	value := []byte(g.inst.getEnvStore(handle)(key))
	if len(value) > int(valueMaxlen) {
		return AbiErrBufferLength
	}

	nwritten, err := g.memory.WriteAt(value, int64(valueAddr))
	if err != nil {
		return AbiError
	}
	g.memory.PutUint32(uint32(nwritten), int64(nwrittenOut))
	return AbiOK
}

func (g *guest) abiFetch(resourceAddr, resourceSize, initAddr, initSize, resultLenOut int32) AbiStatus {
	resource := string(g.readBytes(resourceAddr, resourceSize))
	g.abilog().Printf("fetch: resource=%s", resource)

	var init wireFetchInit
	if initSize > 0 {
		if err := json.Unmarshal(g.readBytes(initAddr, initSize), &init); err != nil {
			return AbiErrInvalidArgument
		}
	}

	result, err := g.host.Fetch(resource, FetchInit{
		Method:  init.Method,
		Headers: Headers(init.Headers),
		Body:    init.Body,
	})
	if err != nil {
		g.abilog().Printf("fetch: error: %v", err)
		return AbiError
	}

	g.lastFetch, _ = json.Marshal(wireFetchResult{
		Status:  result.Status,
		Headers: result.Headers,
		Body:    result.Body,
	})
	g.memory.PutUint32(uint32(len(g.lastFetch)), int64(resultLenOut))
	return AbiOK
}

func (g *guest) abiFetchRead(addr int32) AbiStatus {
	g.abilog().Printf("fetch_read: addr=%d size=%d", addr, len(g.lastFetch))
	if g.lastFetch == nil {
		return AbiErrInvalidHandle
	}
	if _, err := g.memory.WriteAt(g.lastFetch, int64(addr)); err != nil {
		return AbiError
	}
	return AbiOK
}

func (g *guest) abiResponseStatus(status int32) AbiStatus {
	g.abilog().Printf("response_status: %d", status)
	g.status = int(status)
	return AbiOK
}

func (g *guest) abiResponseHeader(nameAddr, nameSize, valueAddr, valueSize int32) AbiStatus {
	name := string(g.readBytes(nameAddr, nameSize))
	value := string(g.readBytes(valueAddr, valueSize))
	g.abilog().Printf("response_header: %s=%q", name, value)
	g.headers.Add(name, value)
	return AbiOK
}

func (g *guest) abiBodyWrite(addr, size int32) AbiStatus {
	g.abilog().Printf("body_write: size=%d", size)
	if g.streaming {
		// A body is one representation or the other, never both.
		return AbiErrUnsupported
	}
	g.body.Write(g.readBytes(addr, size))
	return AbiOK
}

func (g *guest) abiStreamPush(addr, size int32) AbiStatus {
	g.abilog().Printf("stream_push: size=%d", size)
	if g.body.Len() > 0 {
		return AbiErrUnsupported
	}
	if !g.streaming {
		g.streaming = true
		g.stream = NewReadableStream(nil)
	}
	if err := g.stream.Controller().Enqueue(g.readBytes(addr, size)); err != nil {
		return AbiError
	}
	return AbiOK
}

func (g *guest) abiStreamDone() AbiStatus {
	g.abilog().Printf("stream_done")
	if !g.streaming {
		return AbiErrUnsupported
	}
	if err := g.stream.Controller().Close(); err != nil {
		return AbiError
	}
	return AbiOK
}

// response assembles the Response the guest described. A streaming
// guest that never called stream_done has its stream closed here, on
// the grounds that a finished guest cannot produce more chunks.
func (g *guest) response() *Response {
	body := EmptyBody()
	switch {
	case g.streaming:
		_ = g.stream.Controller().Close()
		body = StreamBody(g.stream)
	case g.body.Len() > 0:
		body = BytesBody(g.body.Bytes())
	}
	return NewResponse(g.status, g.headers, body)
}
