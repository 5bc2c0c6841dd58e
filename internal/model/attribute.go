package model

import (
	"strconv"
	"strings"

	"github.com/roach88/relstore/internal/value"
)

// Attribute is one declared field of a model.
//
// A nil raw value means the field is missing from the record; Null{} is an
// explicit null. Fill never fails: irregular input is coerced or defaulted.
type Attribute interface {
	Kind() Kind

	// Fill normalizes a raw field value for storage.
	Fill(raw value.Value) value.Value

	// Make produces the field value of a made record. owner is the record
	// being made. Scalars return value.Value; relations return
	// *Instance/[]*Instance, or value.Value when plain is set.
	Make(raw value.Value, owner value.Object, field string, plain bool) any
}

// Mutator transforms a filled value.
type Mutator func(value.Value) value.Value

// Default supplies the value of a missing field.
type Default struct {
	literal  value.Value
	producer func() value.Value
}

// Literal is a fixed default. Containers are deep-copied on every use, so
// records never share a default array or object.
func Literal(v value.Value) Default {
	return Default{literal: v}
}

// Producer is a default computed on every use.
func Producer(fn func() value.Value) Default {
	return Default{producer: fn}
}

// Get returns the default value. The zero Default yields Null.
func (d Default) Get() value.Value {
	if d.producer != nil {
		return d.producer()
	}
	if d.literal == nil {
		return value.Null{}
	}
	return value.Clone(d.literal)
}

// toDefault accepts a Default, a producer func, a Value or a plain Go value.
func toDefault(def any) Default {
	switch d := def.(type) {
	case Default:
		return d
	case func() value.Value:
		return Producer(d)
	case nil:
		return Default{}
	default:
		v, err := value.FromGo(def)
		if err != nil {
			return Default{}
		}
		return Literal(v)
	}
}

// scalar carries what every non-relation attribute shares.
type scalar struct {
	def     Default
	mutator Mutator
}

func (s *scalar) mutate(v value.Value) value.Value {
	if s.mutator != nil {
		return s.mutator(v)
	}
	return v
}

func (s *scalar) hasMutator() bool { return s.mutator != nil }

// mutable is implemented by attributes that accept a mutator.
type mutable interface {
	hasMutator() bool
}

// AttrField accepts any value.
type AttrField struct{ scalar }

// Attr declares a field of any type. def may be a Go value, a Value, a
// Default or a func() value.Value.
func Attr(def any) *AttrField {
	return &AttrField{scalar{def: toDefault(def)}}
}

// WithMutator sets the field's mutator.
func (a *AttrField) WithMutator(fn Mutator) *AttrField { a.mutator = fn; return a }

func (a *AttrField) Kind() Kind { return KindAttr }

func (a *AttrField) Fill(raw value.Value) value.Value {
	if raw == nil {
		return a.mutate(a.def.Get())
	}
	return a.mutate(raw)
}

func (a *AttrField) Make(raw value.Value, _ value.Object, _ string, _ bool) any {
	return a.Fill(raw)
}

// StringField coerces values to strings.
type StringField struct{ scalar }

// String declares a string field.
func String(def any) *StringField {
	return &StringField{scalar{def: toDefault(def)}}
}

// WithMutator sets the field's mutator.
func (s *StringField) WithMutator(fn Mutator) *StringField { s.mutator = fn; return s }

func (s *StringField) Kind() Kind { return KindString }

func (s *StringField) Fill(raw value.Value) value.Value {
	switch v := raw.(type) {
	case nil, value.Null:
		return s.mutate(s.def.Get())
	case value.String:
		return s.mutate(v)
	case value.Int, value.Float, value.Bool:
		return s.mutate(value.String(value.MustKey(v)))
	default:
		text, err := value.Marshal(v)
		if err != nil {
			return s.mutate(s.def.Get())
		}
		return s.mutate(value.String(text))
	}
}

func (s *StringField) Make(raw value.Value, _ value.Object, _ string, _ bool) any {
	return s.Fill(raw)
}

// NumberField coerces values to numbers.
type NumberField struct{ scalar }

// Number declares a numeric field.
func Number(def any) *NumberField {
	return &NumberField{scalar{def: toDefault(def)}}
}

// WithMutator sets the field's mutator.
func (n *NumberField) WithMutator(fn Mutator) *NumberField { n.mutator = fn; return n }

func (n *NumberField) Kind() Kind { return KindNumber }

func (n *NumberField) Fill(raw value.Value) value.Value {
	switch v := raw.(type) {
	case nil, value.Null:
		return n.mutate(n.def.Get())
	case value.Int, value.Float:
		return n.mutate(v)
	case value.String:
		return n.mutate(parseNumber(string(v)))
	case value.Bool:
		if v {
			return n.mutate(value.Int(1))
		}
		return n.mutate(value.Int(0))
	default:
		return n.mutate(value.Int(0))
	}
}

func (n *NumberField) Make(raw value.Value, _ value.Object, _ string, _ bool) any {
	return n.Fill(raw)
}

// parseNumber reads an integer, then a float, and falls back to 0.
func parseNumber(s string) value.Value {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.NumberValue(f)
	}
	return value.Int(0)
}

// BooleanField coerces values to booleans.
type BooleanField struct{ scalar }

// Boolean declares a boolean field.
func Boolean(def any) *BooleanField {
	return &BooleanField{scalar{def: toDefault(def)}}
}

// WithMutator sets the field's mutator.
func (b *BooleanField) WithMutator(fn Mutator) *BooleanField { b.mutator = fn; return b }

func (b *BooleanField) Kind() Kind { return KindBoolean }

func (b *BooleanField) Fill(raw value.Value) value.Value {
	switch v := raw.(type) {
	case nil, value.Null:
		return b.mutate(b.def.Get())
	case value.Bool:
		return b.mutate(v)
	case value.String:
		if v == "" {
			return b.mutate(value.Bool(false))
		}
		if n, ok := value.Number(parseNumber(string(v))); ok && looksNumeric(string(v)) {
			return b.mutate(value.Bool(n != 0))
		}
		return b.mutate(value.Bool(true))
	case value.Int, value.Float:
		n, _ := value.Number(v)
		return b.mutate(value.Bool(n != 0))
	default:
		return b.mutate(value.Bool(false))
	}
}

func (b *BooleanField) Make(raw value.Value, _ value.Object, _ string, _ bool) any {
	return b.Fill(raw)
}

func looksNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// IncrementField is an auto-incrementing numeric key. The attribute never
// generates values itself: a non-numeric fill yields Null, which the insert
// pipeline replaces with the next value.
type IncrementField struct{}

// Increment declares an auto-incrementing field.
func Increment() *IncrementField {
	return &IncrementField{}
}

func (i *IncrementField) Kind() Kind { return KindIncrement }

func (i *IncrementField) Fill(raw value.Value) value.Value {
	switch v := raw.(type) {
	case value.Int:
		return v
	case value.Float:
		return value.NumberValue(float64(v))
	default:
		return value.Null{}
	}
}

func (i *IncrementField) Make(raw value.Value, _ value.Object, _ string, _ bool) any {
	return i.Fill(raw)
}
