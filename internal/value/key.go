package value

import (
	"strconv"
	"strings"
)

// KeySeparator joins the components of a composite primary key.
const KeySeparator = "_"

// Key returns the table-key form of a scalar. Keys compare loosely:
// Int(10), Float(10) and String("10") share the key "10".
// Null, Array and Object are never keys.
func Key(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Int:
		return strconv.FormatInt(int64(val), 10), true
	case Float:
		s, err := formatFloat(float64(val))
		return s, err == nil
	case Bool:
		return strconv.FormatBool(bool(val)), true
	default:
		return "", false
	}
}

// MustKey is Key for callers that have already checked v is a scalar.
// Non-key values yield the empty string.
func MustKey(v Value) string {
	k, _ := Key(v)
	return k
}

// JoinKey joins composite key components.
func JoinKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// SameKey reports whether a and b are both keys with the same key form.
func SameKey(a, b Value) bool {
	ka, ok := Key(a)
	if !ok {
		return false
	}
	kb, ok := Key(b)
	return ok && ka == kb
}

// KeySet is a set of key strings preserving first-insertion order.
type KeySet struct {
	seen  map[string]struct{}
	order []Value
}

// NewKeySet creates an empty set.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add inserts v if it is a key not yet present.
func (s *KeySet) Add(v Value) {
	k, ok := Key(v)
	if !ok {
		return
	}
	if _, dup := s.seen[k]; dup {
		return
	}
	s.seen[k] = struct{}{}
	s.order = append(s.order, v)
}

// Has reports membership by key form.
func (s *KeySet) Has(v Value) bool {
	k, ok := Key(v)
	if !ok {
		return false
	}
	_, found := s.seen[k]
	return found
}

// Values returns members in insertion order.
func (s *KeySet) Values() []Value {
	return s.order
}

// Len returns the number of members.
func (s *KeySet) Len() int {
	return len(s.order)
}
