// Package domain defines the catalog record shapes shared by the index
// builders, the HTTP adapters and the import/export codecs.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// UnknownKey is the placeholder group key for records lacking the grouping field.
const UnknownKey = "Unknown"

// Record is one row of a flat table catalog. Field order from the source
// document is retained so encoding a decoded record reproduces its layout.
type Record struct {
	fields []string
	values map[string]any
}

// NewRecord builds a record from alternating name/value pairs.
func NewRecord(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("domain: NewRecord requires name/value pairs")
	}
	r := Record{}
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("domain: field name at %d is %T, want string", i, pairs[i]))
		}
		r.Set(name, pairs[i+1])
	}
	return r
}

// Fields returns the field names in document order.
func (r Record) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Len reports the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Get returns the raw value for name.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Set assigns value to name, appending the field when it is new.
func (r *Record) Set(name string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[name]; !exists {
		r.fields = append(r.fields, name)
	}
	r.values[name] = value
}

// Text renders the value of name the way a browser template would print it.
// Missing fields render as the empty string.
func (r Record) Text(name string) string {
	v, ok := r.values[name]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// GroupKey returns the grouping value for name, falling back to UnknownKey
// for missing or falsy values (null, "", 0, false).
func (r Record) GroupKey(name string) string {
	v, ok := r.values[name]
	if !ok || IsFalsy(v) {
		return UnknownKey
	}
	return FormatValue(v)
}

// Equal reports whether both records carry the same fields in the same order
// with the same values.
func (r Record) Equal(other Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i, name := range r.fields {
		if other.fields[i] != name {
			return false
		}
		if !reflect.DeepEqual(r.values[name], other.values[name]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as an object preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalLiteral(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalLiteral(r.values[name])
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalLiteral encodes v without escaping &, < and >.
func marshalLiteral(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes a JSON object, recording field order. Numbers are
// kept as json.Number so their textual form survives a round trip.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}
	out := Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode field %q: %w", name, err)
		}
		out.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// IsFalsy mirrors the truthiness rules the catalogs were authored against.
func IsFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	}
	return false
}

// FormatValue renders a JSON value as display text. Arrays are joined with
// commas and null renders empty, matching string interpolation in the
// original catalog pages.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		var buf bytes.Buffer
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(FormatValue(item))
		}
		return buf.String()
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(t)
	}
}
