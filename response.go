package lagonlike

// BodyKind discriminates the representations a response body can take.
// A body is exactly one of these at any time; the bridge normalizes
// byte bodies to text before returning control to the host.
type BodyKind int

const (
	// BodyEmpty is a response with no body at all.
	BodyEmpty BodyKind = iota
	// BodyText is a finite body held as a string.
	BodyText
	// BodyBytes is a finite body held as raw bytes.
	BodyBytes
	// BodyStream is a lazy byte-producing body backed by a ReadableStream.
	BodyStream
)

func (k BodyKind) String() string {
	switch k {
	case BodyEmpty:
		return "empty"
	case BodyText:
		return "text"
	case BodyBytes:
		return "bytes"
	case BodyStream:
		return "stream"
	}
	return "unknown"
}

// Body is a tagged variant over the representations a response body can
// take. The zero value is the empty body.
type Body struct {
	kind   BodyKind
	text   string
	raw    []byte
	stream *ReadableStream
}

// EmptyBody returns a body with no content.
func EmptyBody() Body {
	return Body{}
}

// TextBody returns a finite text body.
func TextBody(text string) Body {
	return Body{kind: BodyText, text: text}
}

// BytesBody returns a finite raw byte body.
func BytesBody(raw []byte) Body {
	return Body{kind: BodyBytes, raw: raw}
}

// StreamBody returns a lazy body backed by stream.
func StreamBody(stream *ReadableStream) Body {
	return Body{kind: BodyStream, stream: stream}
}

// Kind returns the body's discriminant.
func (b Body) Kind() BodyKind {
	return b.kind
}

// Text returns the text content of a BodyText body, or "" otherwise.
func (b Body) Text() string {
	return b.text
}

// Bytes returns the content of a finite body as bytes. Stream and
// empty bodies return nil.
func (b Body) Bytes() []byte {
	switch b.kind {
	case BodyText:
		return []byte(b.text)
	case BodyBytes:
		return b.raw
	}
	return nil
}

// Stream returns the backing stream of a BodyStream body, or nil.
func (b Body) Stream() *ReadableStream {
	return b.stream
}

// Response is the outbound half of a handler invocation. Construction
// passes status, headers and body through untouched; only the handler
// that builds a Response mutates it.
type Response struct {
	Status  int
	Headers Headers
	Body    Body
}

// NewResponse constructs a Response from the given fields, verbatim.
// A zero status is carried as 200 so a Response{} literal from a guest
// still renders; headers default to an empty set.
func NewResponse(status int, headers Headers, body Body) *Response {
	if status == 0 {
		status = 200
	}
	if headers == nil {
		headers = NewHeaders()
	}
	return &Response{Status: status, Headers: headers, Body: body}
}
