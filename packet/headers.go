package packet

import (
	"iter"
	"math"
	"strconv"
)

// Kind identifies the type carried by a header Value.
type Kind uint8

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	default:
		return "String"
	}
}

// Value is a typed header value: Integer, Float, Boolean or String.
// There is no null kind; the zero Value is the empty String.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

func Int(v int64) Value     { return Value{kind: KindInteger, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value     { return Value{kind: KindBoolean, b: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

func (v Value) Kind() Kind { return v.kind }

// Int returns the integer and true when v is an Integer.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInteger }

// Float returns the float and true when v is a Float.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Bool returns the boolean and true when v is a Boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBoolean }

// Str returns the string and true when v is a String.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// String returns the canonical literal text of v, unquoted.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBoolean:
		if v.b {
			return literalTrue
		}
		return literalFalse
	default:
		return v.s
	}
}

// GoString renders v with its kind, for logs and error messages.
func (v Value) GoString() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.kind.String() + "(" + v.String() + ")"
}

// Equal reports whether v and o have the same kind and value.
// Two NaN floats are considered equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		if math.IsNaN(v.f) && math.IsNaN(o.f) {
			return true
		}
		return v.f == o.f
	case KindBoolean:
		return v.b == o.b
	default:
		return v.s == o.s
	}
}

// formatFloat renders f so that it reads back as a Float, never an Integer.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E', 'n', 'N':
			return s
		}
	}
	return s + ".0"
}

// Header is one named value of a header set.
type Header struct {
	Name  string
	Value Value
}

// Headers is an ordered set of uniquely named header values.
//
// The zero value is ready to use. Insertion order only matters for encoding;
// lookups are by exact, case-sensitive name.
type Headers struct {
	entries []Header
	index   map[string]int
}

// NewHeaders builds a header set from name/value pairs, in order.
func NewHeaders(headers ...Header) *Headers {
	h := &Headers{}
	for _, hdr := range headers {
		h.Set(hdr.Name, hdr.Value)
	}
	return h
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Set adds a header, or replaces the value of an existing one in place.
func (h *Headers) Set(name string, v Value) {
	if i, ok := h.index[name]; ok {
		h.entries[i].Value = v
		return
	}
	if h.index == nil {
		h.index = make(map[string]int)
	}
	h.index[name] = len(h.entries)
	h.entries = append(h.entries, Header{Name: name, Value: v})
}

func (h *Headers) SetInt(name string, v int64)     { h.Set(name, Int(v)) }
func (h *Headers) SetFloat(name string, v float64) { h.Set(name, Float(v)) }
func (h *Headers) SetBool(name string, v bool)     { h.Set(name, Bool(v)) }
func (h *Headers) SetString(name, v string)        { h.Set(name, String(v)) }

// Get returns the value of the named header.
func (h *Headers) Get(name string) (Value, bool) {
	if h == nil {
		return Value{}, false
	}
	i, ok := h.index[name]
	if !ok {
		return Value{}, false
	}
	return h.entries[i].Value, true
}

// Has reports whether the named header is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// GetInt returns the named header when it is present and an Integer.
func (h *Headers) GetInt(name string) (int64, bool) {
	v, ok := h.Get(name)
	if !ok {
		return 0, false
	}
	return v.Int()
}

// GetBool returns the named header when it is present and a Boolean.
func (h *Headers) GetBool(name string) (bool, bool) {
	v, ok := h.Get(name)
	if !ok {
		return false, false
	}
	return v.Bool()
}

// GetString returns the named header when it is present and a String.
func (h *Headers) GetString(name string) (string, bool) {
	v, ok := h.Get(name)
	if !ok {
		return "", false
	}
	return v.Str()
}

// Del removes the named header.
func (h *Headers) Del(name string) {
	i, ok := h.index[name]
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	delete(h.index, name)
	for j := i; j < len(h.entries); j++ {
		h.index[h.entries[j].Name] = j
	}
}

// All iterates over the headers in insertion order.
func (h *Headers) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if h == nil {
			return
		}
		for _, e := range h.entries {
			if !yield(e.Name, e.Value) {
				return
			}
		}
	}
}

// Names returns the header names in insertion order.
func (h *Headers) Names() []string {
	names := make([]string, 0, h.Len())
	for name := range h.All() {
		names = append(names, name)
	}
	return names
}

// Clone returns an independent copy of h.
func (h *Headers) Clone() *Headers {
	c := &Headers{}
	for name, v := range h.All() {
		c.Set(name, v)
	}
	return c
}

// Equal reports whether h and o hold the same names with equal values,
// regardless of order.
func (h *Headers) Equal(o *Headers) bool {
	if h.Len() != o.Len() {
		return false
	}
	for name, v := range h.All() {
		ov, ok := o.Get(name)
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
