package lagonlike

import (
	"errors"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by a fatal TextDecoder for input that is
// not well-formed UTF-8.
var ErrInvalidUTF8 = errors.New("invalid utf-8 sequence")

// TextEncoder encodes text to UTF-8 bytes.
type TextEncoder struct{}

// Encode returns the UTF-8 encoding of text.
func (TextEncoder) Encode(text string) []byte {
	return []byte(text)
}

// TextDecoder decodes UTF-8 bytes to text. The zero value substitutes
// U+FFFD for malformed sequences; with Fatal set, malformed input is
// rejected instead.
type TextDecoder struct {
	Fatal bool
}

// Decode returns the text content of p. Valid input round-trips
// exactly; for invalid input the behavior depends on Fatal.
func (d TextDecoder) Decode(p []byte) (string, error) {
	if utf8.Valid(p) {
		return string(p), nil
	}

	if d.Fatal {
		return "", ErrInvalidUTF8
	}

	out := make([]rune, 0, len(p))
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		out = append(out, r)
		p = p[size:]
	}
	return string(out), nil
}
