package value

import (
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the dynamic value types.
// Only Null, String, Int, Float, Bool, Array and Object implement it.
type Value interface {
	value() // Sealed
}

// Null represents an explicit JSON null.
type Null struct{}

func (Null) value() {}

// String is a string value.
type String string

func (String) value() {}

// Int is an integral number.
type Int int64

func (Int) value() {}

// Float is a non-integral number.
type Float float64

func (Float) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Array is an ordered sequence of values.
type Array []Value

func (Array) value() {}

// Object maps field names to values. A Record is an Object.
type Object map[string]Value

func (Object) value() {}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// AsObject returns v as an Object when it is one.
func AsObject(v Value) (Object, bool) {
	obj, ok := v.(Object)
	return obj, ok
}

// AsArray returns v as an Array when it is one.
func AsArray(v Value) (Array, bool) {
	arr, ok := v.(Array)
	return arr, ok
}

// Number returns the numeric value of an Int or Float.
func Number(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// NumberValue returns Int when f is integral and fits int64, Float otherwise.
func NumberValue(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<63 {
		return Int(int64(f))
	}
	return Float(f)
}

// TypeName names the variant of v for diagnostics.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case Null:
		return "null"
	case String:
		return "string"
	case Int, Float:
		return "number"
	case Bool:
		return "boolean"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Clone returns a deep copy of obj. A nil Object clones to nil.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = Clone(v)
	}
	return out
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Clone deep-copies containers. Scalars are returned as-is.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		if val == nil {
			return Array(nil)
		}
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		return val.Clone()
	default:
		return v
	}
}

// Equal reports strict structural equality. Int(1) and Float(1) are equal;
// Int(1) and String("1") are not (see Key for loose comparison).
func Equal(a, b Value) bool {
	if an, ok := Number(a); ok {
		bn, ok := Number(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !Equal(x, y) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
