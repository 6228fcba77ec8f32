package types

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Record is an ordered mapping of field name to scalar value. Field order is
// the order in which fields were first set; it drives column order when a
// table schema is inferred from a record.
//
// Values are string, bool, signed or unsigned integers, floats, or nil. Rows
// read back from the store hold int64, float64, string or nil.
//
// The zero Record is empty and ready to use. Copies share storage; use Clone
// before mutating a record owned by someone else.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord builds a record from alternating name, value arguments.
// It panics when a name is not a string or the argument count is odd.
func NewRecord(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("types.NewRecord: odd number of arguments")
	}
	var r Record
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("types.NewRecord: field name at %d is %T, not string", i, pairs[i]))
		}
		r.Set(name, pairs[i+1])
	}
	return r
}

// Set assigns value to name, appending name to the field order when new.
func (r *Record) Set(name string, value any) *Record {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
	return r
}

// Delete removes name from the record.
func (r *Record) Delete(name string) {
	if _, ok := r.values[name]; !ok {
		return
	}
	delete(r.values, name)
	for i, k := range r.keys {
		if k == name {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Get returns the value stored under name and whether the field exists.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value stored under name, or nil.
func (r Record) Value(name string) any {
	return r.values[name]
}

// Has reports whether the record has a field called name.
func (r Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Keys returns the field names in order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Each calls fn for every field in order.
func (r Record) Each(fn func(name string, value any)) {
	for _, k := range r.keys {
		fn(k, r.values[k])
	}
}

// Clone returns a copy that does not share storage with r.
func (r Record) Clone() Record {
	var c Record
	r.Each(func(name string, value any) { c.Set(name, value) })
	return c
}

// Text returns the field formatted as text. Missing and nil fields yield "".
func (r Record) Text(name string) string {
	switch v := r.values[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the field as an int64 when it holds an integral number or a
// numeric string.
func (r Record) Int(name string) (int64, bool) {
	switch v := r.values[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// Bool reports whether the field holds a truthy value: true, a non-zero
// number, or a string other than "", "0" and "false".
func (r Record) Bool(name string) bool {
	switch v := r.values[name].(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "0" && v != "false"
	case nil:
		return false
	}
	n, ok := r.Int(name)
	return ok && n != 0
}

// LocalID returns the synthetic _localId of a stored row.
func (r Record) LocalID() (int64, bool) {
	return r.Int(LocalIDField)
}

// MarshalJSON encodes the record as a JSON object keeping field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the field order of the input.
// Integral numbers decode to int64, other numbers to float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object")
	}

	var out Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected field name, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("record field %s: %w", name, err)
		}
		if n, ok := v.(json.Number); ok {
			v = decodeNumber(n)
		}
		out.Set(name, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

func decodeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
