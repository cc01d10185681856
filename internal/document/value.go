package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

// Kind identifies the JSON type held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON name of the kind
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
		return "unknown"
	}
}

// Value is a parsed JSON node. The zero value is JSON null.
// Objects remember the order their keys appeared in the source text.
type Value struct {
	kind Kind
	b    bool
	num  float64
	raw  string
	str  string
	arr  []Value
	obj  map[string]Value
	keys []string
}

// Null returns a null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f, raw: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Int wraps an integer
func Int(i int64) Value {
	return Value{kind: KindNumber, num: float64(i), raw: strconv.FormatInt(i, 10)}
}

// String wraps a string
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array wraps a list of values
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Parse decodes JSON text into a Value tree
func Parse(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		*v = Value{}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = Value{kind: KindArray, arr: items}
	case '{':
		var members map[string]Value
		if err := json.Unmarshal(data, &members); err != nil {
			return err
		}
		keys, err := objectKeys(data)
		if err != nil {
			return err
		}
		*v = Value{kind: KindObject, obj: members, keys: keys}
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", data, err)
		}
		*v = Value{kind: KindNumber, num: f, raw: string(data)}
	}
	return nil
}

// objectKeys returns the top-level keys of a JSON object in source order
func objectKeys(data []byte) ([]string, error) {
	var keys []string
	seen := make(map[string]bool)

	depth := 0
	inString := false
	escaped := false
	start := -1
	expectKey := false

	for i, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				if depth == 1 && expectKey {
					var key string
					if err := json.Unmarshal(data[start:i+1], &key); err != nil {
						return nil, err
					}
					if !seen[key] {
						seen[key] = true
						keys = append(keys, key)
					}
					expectKey = false
				}
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			start = i
		case '{', '[':
			depth++
			if depth == 1 && c == '{' {
				expectKey = true
			}
		case '}', ']':
			depth--
		case ',':
			if depth == 1 {
				expectKey = true
			}
		}
	}
	return keys, nil
}

// Kind returns the JSON type of the value
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is JSON null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Len returns the number of array items or object members
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.keys)
	}
	return 0
}

// Keys returns object keys in source order
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.keys
}

// Get looks up an object member
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	m, ok := v.obj[key]
	return m, ok
}

// Field returns an object member or an error if it is missing
func (v Value) Field(key string) (Value, error) {
	if v.kind != KindObject {
		return Value{}, fmt.Errorf("cannot read %q from %s", key, v.kind)
	}
	m, ok := v.obj[key]
	if !ok {
		return Value{}, fmt.Errorf("missing key %q", key)
	}
	return m, nil
}

// ArrayField returns an object member that must be an array
func (v Value) ArrayField(key string) ([]Value, error) {
	m, err := v.Field(key)
	if err != nil {
		return nil, err
	}
	items, err := m.AsArray()
	if err != nil {
		return nil, fmt.Errorf("%q: %w", key, err)
	}
	return items, nil
}

// ObjectField returns an object member that must be an object
func (v Value) ObjectField(key string) (Value, error) {
	m, err := v.Field(key)
	if err != nil {
		return Value{}, err
	}
	if m.kind != KindObject {
		return Value{}, fmt.Errorf("%q: expected object, got %s", key, m.kind)
	}
	return m, nil
}

// StringField returns an object member that must be a string
func (v Value) StringField(key string) (string, error) {
	m, err := v.Field(key)
	if err != nil {
		return "", err
	}
	s, err := m.AsString()
	if err != nil {
		return "", fmt.Errorf("%q: %w", key, err)
	}
	return s, nil
}

// AsArray returns the items of an array value
func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, fmt.Errorf("expected array, got %s", v.kind)
	}
	return v.arr, nil
}

// AsString returns the contents of a string value
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("expected string, got %s", v.kind)
	}
	return v.str, nil
}

// AsBool returns the contents of a boolean value
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("expected bool, got %s", v.kind)
	}
	return v.b, nil
}

// AsFloat returns a number value as float64
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("expected number, got %s", v.kind)
	}
	return v.num, nil
}

// AsInt returns a number value as int64. Fractional numbers are rejected.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("expected number, got %s", v.kind)
	}
	if i, err := strconv.ParseInt(v.raw, 10, 64); err == nil {
		return i, nil
	}
	if v.num != math.Trunc(v.num) || math.IsInf(v.num, 0) {
		return 0, fmt.Errorf("expected integer, got %s", v.raw)
	}
	return int64(v.num), nil
}

// Float3 reads a three-element numeric array
func (v Value) Float3() ([3]float64, error) {
	var out [3]float64
	items, err := v.AsArray()
	if err != nil {
		return out, err
	}
	if len(items) != 3 {
		return out, fmt.Errorf("expected 3 numbers, got %d", len(items))
	}
	for i, item := range items {
		f, err := item.AsFloat()
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}

// Int3 reads a three-element integer array
func (v Value) Int3() ([3]int64, error) {
	var out [3]int64
	items, err := v.AsArray()
	if err != nil {
		return out, err
	}
	if len(items) != 3 {
		return out, fmt.Errorf("expected 3 integers, got %d", len(items))
	}
	for i, item := range items {
		n, err := item.AsInt()
		if err != nil {
			return out, err
		}
		out[i] = n
	}
	return out, nil
}

// Interface converts the value to plain Go types: nil, bool, int64 or float64,
// string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if i, err := strconv.ParseInt(v.raw, 10, 64); err == nil {
			return i
		}
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, m := range v.obj {
			out[k] = m.Interface()
		}
		return out
	}
	return nil
}
