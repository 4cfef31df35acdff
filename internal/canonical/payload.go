// Package canonical builds the exact byte sequences that are encrypted and signed.
//
// The bank's gateway serialises JSON compactly (no spaces), as UTF-8 with non-ASCII
// characters left unescaped, and keeps object keys in insertion order. Go maps have no
// order, so business payloads are held in Payload, an insertion ordered object.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// Payload is an insertion ordered JSON object.
//
// Values are strings, json.Number, bool, nil, *Payload (nested objects), []any (arrays)
// or any other value encoding/json can marshal. Decoded numbers keep their literal text.
// The zero value is an empty payload ready to use. A Payload is not safe for concurrent mutation.
type Payload struct {
	keys   []string
	values map[string]any
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{values: make(map[string]any)}
}

// Set sets key to value. A new key is appended; an existing key keeps its position.
func (p *Payload) Set(key string, value any) *Payload {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// SetDefault sets key to value unless key is already present with a non-empty value.
// Empty means nil or "".
func (p *Payload) SetDefault(key string, value any) *Payload {
	if v, ok := p.Get(key); ok && !isEmpty(v) {
		return p
	}
	return p.Set(key, value)
}

// Get returns the value stored under key.
func (p *Payload) Get(key string) (any, bool) {
	if p == nil || p.values == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// GetString returns the value under key rendered as a string.
// Strings and numbers are returned as-is, booleans as "true"/"false";
// objects, arrays, nil and missing keys give "".
func (p *Payload) GetString(key string) string {
	v, ok := p.Get(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// GetPayload returns the nested object stored under key.
func (p *Payload) GetPayload(key string) (*Payload, bool) {
	v, ok := p.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := v.(*Payload)
	return nested, ok
}

// GetList returns the array stored under key.
func (p *Payload) GetList(key string) ([]any, bool) {
	v, ok := p.Get(key)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

// Has reports whether key is present.
func (p *Payload) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete removes key.
func (p *Payload) Delete(key string) {
	if p == nil || p.values == nil {
		return
	}
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	p.keys = slices.DeleteFunc(p.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order.
func (p *Payload) Keys() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.keys)
}

// Len returns the number of keys.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a deep copy of nested payloads and arrays. Other values are copied shallowly.
func (p *Payload) Clone() *Payload {
	out := NewPayload()
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Set(k, cloneValue(p.values[k]))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Payload:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// Canonical returns the compact UTF-8 JSON encoding of the payload in the given profile.
func (p *Payload) Canonical(profile Profile) ([]byte, error) {
	if p == nil {
		return profile.apply([]byte("{}"))
	}
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return profile.apply(b)
}

// Decode unmarshals the payload into v (typically a struct with json tags).
func (p *Payload) Decode(v any) error {
	if p == nil {
		return fmt.Errorf("payload is nil")
	}
	b, err := p.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// MarshalJSON writes the payload compactly, in insertion order, without HTML escaping.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Payload) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, p.values[k]); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case *Payload:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		return t.writeTo(buf)
	case Payload:
		return t.writeTo(buf)
	case []any:
		buf.WriteByte('[')
		for i := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, t[i]); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case string:
		return writeString(buf, t)
	case json.Number:
		if !json.Valid([]byte(t)) {
			return fmt.Errorf("invalid number literal %q", string(t))
		}
		buf.WriteString(string(t))
		return nil
	default:
		return encodeCompact(buf, v)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	return encodeCompact(buf, s)
}

// encodeCompact appends the JSON encoding of v without HTML escaping or a trailing newline.
func encodeCompact(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// UnmarshalJSON decodes a JSON object, keeping key order and number literals.
// Duplicate keys keep the first position and the last value.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	parsed, err := decodeObject(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON object")
	}
	*p = *parsed
	return nil
}

// ParsePayload decodes a JSON object into a Payload.
func ParsePayload(data []byte) (*Payload, error) {
	p := NewPayload()
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

// PayloadFrom converts v (a struct with json tags, a map or a Payload) into a Payload.
// Struct fields keep their declaration order; map keys are sorted by encoding/json.
func PayloadFrom(v any) (*Payload, error) {
	switch t := v.(type) {
	case *Payload:
		return t.Clone(), nil
	case Payload:
		return t.Clone(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ParsePayload(b)
}

// decodeObject reads an object whose opening brace has been consumed.
func decodeObject(dec *json.Decoder) (*Payload, error) {
	p := NewPayload()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		p.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		return decodeObject(dec)
	case '[':
		list := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", d)
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}
