package lagonlike

// RequestInit carries the optional fields used to construct a Request.
// Every field is passed through verbatim; no validation is applied.
type RequestInit struct {
	Method  string
	Headers Headers
	Body    []byte
}

// Request is the inbound half of a handler invocation: the originating
// input descriptor (a URL string), the method, the headers and an
// optional body. A nil Body means the request carried none.
//
// Requests are immutable once constructed. Handlers that need to
// derive a new request should build one with NewRequest.
type Request struct {
	Input   string
	Method  string
	Headers Headers
	Body    []byte
}

// NewRequest constructs a Request from host-supplied fields. Fields are
// carried over exactly as given, matching the construction contract of
// the embedding boundary: shape-matching only, no normalization beyond
// the case folding Headers itself performs.
func NewRequest(input string, init RequestInit) *Request {
	headers := init.Headers
	if headers == nil {
		headers = NewHeaders()
	}
	return &Request{
		Input:   input,
		Method:  init.Method,
		Headers: headers,
		Body:    init.Body,
	}
}

// Text returns the request body decoded as text. Invalid UTF-8 is
// replaced, never rejected; use a TextDecoder directly for fatal
// decoding.
func (r *Request) Text() string {
	text, _ := TextDecoder{}.Decode(r.Body)
	return text
}

// URL parses the request's input descriptor.
func (r *Request) URL() (*URL, error) {
	return ParseURL(r.Input)
}
