package model

import (
	"fmt"

	"github.com/roach88/relstore/internal/value"
)

// MetaID is the meta field holding a record's table key.
const MetaID = "$id"

// DefaultKeep lists the non-declared fields Fix and Hydrate preserve.
var DefaultKeep = []string{MetaID}

// FieldDef pairs a field name with its attribute.
type FieldDef struct {
	Name      string
	Attribute Attribute
}

// Model declares one entity.
type Model struct {
	entity     string
	primaryKey []string
	order      []string
	fields     map[string]Attribute
	mutators   map[string]Mutator
	registry   *Registry
}

// Option configures a Model.
type Option func(*Model)

// WithPrimaryKey sets the primary key. More than one field makes a
// composite key whose components are joined with "_".
func WithPrimaryKey(fields ...string) Option {
	return func(m *Model) {
		if len(fields) > 0 {
			m.primaryKey = append([]string(nil), fields...)
		}
	}
}

// New creates a model for entity with primary key "id" unless overridden.
func New(entity string, opts ...Option) *Model {
	m := &Model{
		entity:     entity,
		primaryKey: []string{"id"},
		fields:     make(map[string]Attribute),
		mutators:   make(map[string]Mutator),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Field declares a field. Redeclaring a name replaces the attribute but
// keeps its original position.
func (m *Model) Field(name string, attr Attribute) *Model {
	if _, exists := m.fields[name]; !exists {
		m.order = append(m.order, name)
	}
	m.fields[name] = attr
	return m
}

// Mutator registers a model-level mutator, applied to fields whose
// attribute has none.
func (m *Model) Mutator(field string, fn Mutator) *Model {
	m.mutators[field] = fn
	return m
}

// Entity returns the entity name.
func (m *Model) Entity() string { return m.entity }

// PrimaryKey returns the primary key fields.
func (m *Model) PrimaryKey() []string { return append([]string(nil), m.primaryKey...) }

// Composite reports whether the primary key has more than one field.
func (m *Model) Composite() bool { return len(m.primaryKey) > 1 }

// Registry returns the registry the model belongs to, or nil.
func (m *Model) Registry() *Registry { return m.registry }

// Fields returns all fields in declaration order.
func (m *Model) Fields() []FieldDef {
	out := make([]FieldDef, len(m.order))
	for i, name := range m.order {
		out[i] = FieldDef{Name: name, Attribute: m.fields[name]}
	}
	return out
}

// Attribute returns the named field's attribute.
func (m *Model) Attribute(name string) (Attribute, bool) {
	a, ok := m.fields[name]
	return a, ok
}

// Relation returns the named field when it is a relation.
func (m *Model) Relation(name string) (Relation, bool) {
	rel, ok := m.fields[name].(Relation)
	return rel, ok
}

// Relations returns the relation fields in declaration order.
func (m *Model) Relations() []FieldDef {
	var out []FieldDef
	for _, f := range m.Fields() {
		if _, ok := f.Attribute.(Relation); ok {
			out = append(out, f)
		}
	}
	return out
}

// FieldsOf returns the fields of the named attribute kind.
func (m *Model) FieldsOf(kind string) ([]FieldDef, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.entity, err)
	}
	var out []FieldDef
	for _, f := range m.Fields() {
		if f.Attribute.Kind() == k {
			out = append(out, f)
		}
	}
	return out, nil
}

// IncrementFields returns the names of increment fields.
func (m *Model) IncrementFields() []string {
	var names []string
	for _, f := range m.Fields() {
		if f.Attribute.Kind() == KindIncrement {
			names = append(names, f.Name)
		}
	}
	return names
}

// HasIncrementFields reports whether any field is an increment.
func (m *Model) HasIncrementFields() bool {
	return len(m.IncrementFields()) > 0
}

// PivotFields returns the names of relations backed by a pivot entity.
func (m *Model) PivotFields() []string {
	var names []string
	for _, f := range m.Fields() {
		if _, ok := f.Attribute.(PivotRelation); ok {
			names = append(names, f.Name)
		}
	}
	return names
}

// HasPivotFields reports whether any relation uses a pivot entity.
func (m *Model) HasPivotFields() bool {
	return len(m.PivotFields()) > 0
}

// LocalKey returns key, or the default local key: the primary key field
// when it is single, "id" when it is composite.
func (m *Model) LocalKey(key string) string {
	if key != "" {
		return key
	}
	if len(m.primaryKey) == 1 {
		return m.primaryKey[0]
	}
	return "id"
}

// ID returns the primary key value of record. A composite key joins the
// component key forms with "_". Missing components yield Null.
func (m *Model) ID(record value.Object) value.Value {
	if len(m.primaryKey) == 1 {
		v := record[m.primaryKey[0]]
		if v == nil {
			return value.Null{}
		}
		return v
	}
	k, ok := m.Key(record)
	if !ok {
		return value.Null{}
	}
	return value.String(k)
}

// Key returns the table key of record.
func (m *Model) Key(record value.Object) (string, bool) {
	parts := make([]string, len(m.primaryKey))
	for i, field := range m.primaryKey {
		k, ok := value.Key(record[field])
		if !ok {
			return "", false
		}
		parts[i] = k
	}
	return value.JoinKey(parts...), true
}

// fillField fills one declared field, applying a model-level mutator when
// the attribute has none of its own.
func (m *Model) fillField(name string, attr Attribute, raw value.Value) value.Value {
	v := attr.Fill(raw)
	if mu, ok := attr.(mutable); ok && !mu.hasMutator() {
		if fn := m.mutators[name]; fn != nil {
			v = fn(v)
		}
	}
	return v
}

func (m *Model) String() string {
	return m.entity
}
