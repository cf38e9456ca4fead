package lagonlike

import (
	"sort"
	"strings"
)

// Headers is a case-insensitive mapping of header names to values.
// Names are folded to lower case on every access, so "Content-Type",
// "content-type" and "CONTENT-TYPE" address the same entry.
type Headers map[string][]string

// NewHeaders returns an empty Headers ready for use.
func NewHeaders() Headers {
	return Headers{}
}

// Add appends value to the values stored under name.
func (h Headers) Add(name, value string) {
	key := strings.ToLower(name)
	h[key] = append(h[key], value)
}

// Set replaces any values stored under name with a single value.
func (h Headers) Set(name, value string) {
	h[strings.ToLower(name)] = []string{value}
}

// Get returns the first value stored under name, or "" if there is none.
func (h Headers) Get(name string) string {
	values := h[strings.ToLower(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Values returns all values stored under name.
func (h Headers) Values(name string) []string {
	return h[strings.ToLower(name)]
}

// Has reports whether at least one value is stored under name.
func (h Headers) Has(name string) bool {
	return len(h[strings.ToLower(name)]) > 0
}

// Del removes all values stored under name.
func (h Headers) Del(name string) {
	delete(h, strings.ToLower(name))
}

// Names returns the stored header names in sorted order.
func (h Headers) Names() []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of h. A nil Headers clones to nil.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for name, values := range h {
		out[name] = append([]string(nil), values...)
	}
	return out
}
