package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Unmarshal decodes a single JSON document into a Value.
// Integral numbers become Int; numbers with a fraction or exponent become Float.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return FromGo(raw)
}

// UnmarshalObject decodes a JSON document that must be an object.
func UnmarshalObject(data []byte) (Object, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("expected object, got %s", TypeName(v))
	}
	return obj, nil
}

// FromGo converts decoded Go values (encoding/json, yaml.v3, CUE Decode)
// into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return Int(val), nil
	case float32:
		return NumberValue(float64(val)), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite number: %v", val)
		}
		return NumberValue(val), nil
	case json.Number:
		return numberFromJSON(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", ks, err)
			}
			obj[ks] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func numberFromJSON(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// ToGo converts a Value back into plain Go values (map[string]any, []any,
// string, int64, float64, bool, nil).
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// Marshal encodes v as JSON with RFC 8785 key order. Strings are not NFC
// normalized; use MarshalCanonical for content hashing.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) { return Marshal(f) }

// MarshalJSON implements json.Marshaler with sorted keys.
func (obj Object) MarshalJSON() ([]byte, error) { return Marshal(obj) }

// MarshalJSON implements json.Marshaler.
func (arr Array) MarshalJSON() ([]byte, error) { return Marshal(arr) }

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	decoded, err := UnmarshalObject(data)
	if err != nil {
		return err
	}
	*obj = decoded
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	decoded, ok := v.(Array)
	if !ok {
		return fmt.Errorf("expected array, got %s", TypeName(v))
	}
	*arr = decoded
	return nil
}
