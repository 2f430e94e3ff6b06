// Package document provides a schema-less JSON value tree for documents whose
// shape is not known at compile time.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON value. The zero Value is null.
//
// Numbers keep their literal text so that decimals such as 419.4589 survive a
// decode/encode cycle unchanged. Objects keep property insertion order.
//
// Like maps and slices, copies of an array or object Value share storage.
// Clone a value before modifying it if other copies must stay untouched.
type Value struct {
	kind   Kind
	b      bool
	num    json.Number
	str    string
	arr    []Value
	keys   []string
	fields map[string]Value
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'f', -1, 64))}
}

// Int returns an integral numeric value.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))}
}

// Decimal returns a numeric value from its literal text, e.g. "985.018".
func Decimal(lit string) (Value, error) {
	var n json.Number
	if err := json.Unmarshal([]byte(lit), &n); err != nil || n.String() != lit {
		return Value{}, fmt.Errorf("document: invalid number %q", lit)
	}
	return Value{kind: KindNumber, num: json.Number(lit)}, nil
}

// Time returns t as an RFC 3339 string value, the way the service stores dates.
func Time(t time.Time) Value {
	return String(t.UTC().Format(time.RFC3339Nano))
}

// Array returns an array value.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Field is a name/value pair used to build objects.
type Field struct {
	Name  string
	Value Value
}

// F builds a Field.
func F(name string, v Value) Field { return Field{Name: name, Value: v} }

// Object returns an object value with fields in the given order.
// A repeated name keeps its first position and its last value.
func Object(fields ...Field) Value {
	v := Value{kind: KindObject, fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		v.Set(f.Name, f.Value)
	}
	return v
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string and whether v is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsFloat returns the number as float64 and whether v is a number.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	return f, err == nil
}

// AsInt returns the number as int64 and whether v is an integral number.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := v.num.Int64()
	return i, err == nil
}

// Len returns the element count of arrays and the property count of objects.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.keys)
	default:
		return 0
	}
}

// Index returns the i-th array element, or null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Null()
	}
	return v.arr[i]
}

// Items returns the array elements.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Keys returns object property names in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Field returns the named property and whether it exists.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	f, ok := v.fields[name]
	return f, ok
}

// Get walks a property path from v. Missing steps yield (null, false).
func (v Value) Get(path ...string) (Value, bool) {
	cur := v
	for _, name := range path {
		next, ok := cur.Field(name)
		if !ok {
			return Null(), false
		}
		cur = next
	}
	return cur, true
}

// Set adds or replaces a property. Setting on a null value turns it into an
// object; setting on any other non-object kind panics.
func (v *Value) Set(name string, val Value) {
	switch v.kind {
	case KindNull:
		*v = Value{kind: KindObject, fields: map[string]Value{}}
	case KindObject:
		if v.fields == nil {
			v.fields = map[string]Value{}
		}
	default:
		panic("document: Set on " + v.kind.String())
	}
	if _, exists := v.fields[name]; !exists {
		v.keys = append(v.keys, name)
	}
	v.fields[name] = val
}

// Delete removes a property if present.
func (v *Value) Delete(name string) {
	if v.kind != KindObject {
		return
	}
	if _, ok := v.fields[name]; !ok {
		return
	}
	delete(v.fields, name)
	for i, k := range v.keys {
		if k == name {
			v.keys = append(v.keys[:i:i], v.keys[i+1:]...)
			break
		}
	}
}

// ID returns the "id" property when it is a string.
func (v Value) ID() string {
	id, _ := v.Field("id")
	s, _ := id.AsString()
	return s
}

// Prune removes, at every depth, object properties whose value is null or the
// empty string. Empty arrays and objects are kept.
func (v *Value) Prune() {
	switch v.kind {
	case KindArray:
		for i := range v.arr {
			v.arr[i].Prune()
		}
	case KindObject:
		kept := make([]string, 0, len(v.keys))
		for _, k := range v.keys {
			f := v.fields[k]
			if f.kind == KindNull || (f.kind == KindString && f.str == "") {
				delete(v.fields, k)
				continue
			}
			f.Prune()
			v.fields[k] = f
			kept = append(kept, k)
		}
		v.keys = kept
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, item := range v.arr {
			arr[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: arr}
	case KindObject:
		out := Value{kind: KindObject, keys: make([]string, len(v.keys)), fields: make(map[string]Value, len(v.keys))}
		copy(out.keys, v.keys)
		for k, f := range v.fields {
			out.fields[k] = f.Clone()
		}
		return out
	default:
		return v
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.num.String())
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := v.fields[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("document: cannot encode %s", v.kind)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("document: trailing data after value")
	}
	*v = parsed
	return nil
}

// Decode reads a single JSON value from r.
func Decode(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return decodeValue(dec)
}

// Parse decodes a JSON document held in memory.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

// FromGo converts any JSON-marshalable Go value into a Value.
func FromGo(x any) (Value, error) {
	data, err := json.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("document: marshal: %w", err)
	}
	return Parse(data)
}

// Into decodes v into the Go value pointed to by out.
func (v Value) Into(out any) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("document: decode: %w", err)
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Value{kind: KindNumber, num: t}, nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("document: decode: %w", err)
			}
			return Array(arr...), nil
		case '{':
			obj := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("document: decode: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("document: object key is %T", keyTok)
				}
				field, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, field)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("document: decode: %w", err)
			}
			return obj, nil
		}
	}
	return Value{}, fmt.Errorf("document: unexpected token %v", tok)
}
