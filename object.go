// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reserved keys of the descriptor wire format.
const (
	KeyID        = "$id"        // stable instance identifier (UUID)
	KeyHash      = "$hash"      // version tag of the current contents (ETag)
	KeyRef       = "$ref"       // canonical URL of the object
	KeyType      = "$type"      // type name or list of names, most-derived first
	KeyPrototype = "$prototype" // schema descriptor of an instance
	KeyArgs      = "$args"      // declared argument names of a method
	KeyPath      = "$path"      // location of the payload in a method response

	// KeyStatusCode is added by a Transport to report the HTTP status of the
	// response the object was decoded from.
	KeyStatusCode = "_statusCode"
)

// FunctionType is the $type tag of a method descriptor.
const FunctionType = "Function"

// An Object is a JSON object that remembers the order of its keys.
//
// Decoding an Object from JSON preserves the key order of the document.
// Nested objects decode as *Object, arrays as []any, and numbers as
// json.Number. The zero value is an empty object ready for use.
//
// An Object is not safe for concurrent use without external synchronization.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject returns a new empty object.
func NewObject() *Object { return &Object{vals: make(map[string]any)} }

// ParseObject decodes data as a JSON object.
func ParseObject(data []byte) (*Object, error) {
	o := new(Object)
	if err := o.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return o, nil
}

// ObjectFromMap converts m to an Object. Go maps are unordered, so the keys
// of the result are sorted. Nested maps are converted recursively.
func ObjectFromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	o := NewObject()
	for _, k := range keys {
		o.Set(k, fromGo(m[k]))
	}
	return o
}

func fromGo(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return ObjectFromMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromGo(e)
		}
		return out
	default:
		return v
	}
}

// Len reports the number of keys in o.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the keys of o in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Has reports whether key is present in o.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.vals[key]
	return ok
}

// Get returns the value of key and whether it was present.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// String returns the value of key if it is a string, otherwise "".
func (o *Object) String(key string) string {
	v, _ := o.Get(key)
	s, _ := v.(string)
	return s
}

// Object returns the value of key if it is an object, otherwise nil.
func (o *Object) Object(key string) *Object {
	v, _ := o.Get(key)
	obj, _ := v.(*Object)
	return obj
}

// StatusCode returns the HTTP status recorded in o by a Transport, or 0.
func (o *Object) StatusCode() int {
	v, _ := o.Get(KeyStatusCode)
	n, ok := toInt64(v)
	if !ok {
		return 0
	}
	return int(n)
}

// Set sets key to v. A new key is added at the end; an existing key keeps its
// position.
func (o *Object) Set(key string, v any) {
	if o.vals == nil {
		o.vals = make(map[string]any)
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Delete removes key from o, if present.
func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := &Object{
		keys: append([]string(nil), o.keys...),
		vals: make(map[string]any, len(o.vals)),
	}
	for k, v := range o.vals {
		c.vals[k] = deepCopy(v)
	}
	return c
}

// Map converts o to a plain map, recursively.
func (o *Object) Map() map[string]any {
	if o == nil {
		return nil
	}
	m := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		m[k] = toGo(o.vals[k])
	}
	return m
}

func toGo(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toGo(e)
		}
		return out
	default:
		return v
	}
}

// deepCopy copies the JSON value v so that the result shares no mutable
// structure with v. Scalars are returned as-is.
func deepCopy(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON implements the json.Marshaler interface. Keys are written in
// the order of o.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. The previous
// contents of o are discarded.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err == nil {
		return errors.New("unexpected data after JSON object")
	}
	obj, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("%w: got %s", ErrNotObject, jsonKind(v))
	}
	*o = *obj
	return nil
}

// decodeValue reads one complete JSON value from dec.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil // string, json.Number, bool, or nil
	}
	switch d {
	case '{':
		obj := NewObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("invalid object key %v", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil { // '}'
			return nil, err
		}
		return obj, nil

	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil { // ']'
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", d)
}

// jsonKind names the JSON kind of a decoded value, for diagnostics.
func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Object, map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// lookupPath resolves a path such as "a.b[1].c" through objects and arrays.
func lookupPath(v any, path string) (any, bool) {
	for _, part := range splitPath(path) {
		switch t := v.(type) {
		case *Object:
			next, ok := t.Get(part)
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			v = t[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// splitPath splits a path into its keys. Each dot-separated segment may end
// in bracketed indices, so "a.list[1][0]" yields a, list, 1, 0. A segment
// with unbalanced brackets is taken literally.
func splitPath(path string) []string {
	var parts []string
	for _, seg := range strings.Split(path, ".") {
		keys, ok := splitIndex(seg)
		if !ok {
			keys = []string{seg}
		}
		parts = append(parts, keys...)
	}
	return parts
}

func splitIndex(seg string) ([]string, bool) {
	name, rest, found := strings.Cut(seg, "[")
	if !found {
		return []string{seg}, true
	}
	var out []string
	if name != "" {
		out = append(out, name)
	}
	for {
		idx, tail, ok := strings.Cut(rest, "]")
		if !ok {
			return nil, false
		}
		out = append(out, idx)
		if tail == "" {
			return out, true
		} else if tail[0] != '[' {
			return nil, false
		}
		rest = tail[1:]
	}
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case float64:
		return int64(t), true
	case float32:
		return int64(t), true
	}
	return 0, false
}
