// Package schema describes how nested records decompose into entity tables.
//
// An Entity lists, for each relation field, the node the field's nested
// value follows: another Entity (to-one), Many (to-many) or Union
// (polymorphic, resolved from a discriminator field of the owner record).
// Scalar fields are absent from the schema; the normalizer copies them.
//
// Builder memoizes entities by name and registers each one before defining
// its fields, so mutually recursive models (users have posts, posts belong
// to users) produce a finite, cyclic graph instead of infinite recursion.
package schema

import (
	"fmt"
	"slices"
)

// Node is a sealed interface over schema nodes.
type Node interface {
	schemaNode() // Sealed
}

// Entity is the schema of one entity.
type Entity struct {
	Name   string
	Fields map[string]Node
}

func (*Entity) schemaNode() {}

// Many is a to-many node. Pivot names the intermediate entity of
// many-to-many relations; empty otherwise.
type Many struct {
	Of    Node
	Pivot string
}

func (Many) schemaNode() {}

// Union is a polymorphic to-one node. The concrete entity is read from the
// owner record's TypeField.
type Union struct {
	TypeField string
}

func (Union) schemaNode() {}

// Definer supplies the relation nodes of one entity.
type Definer interface {
	DefineFields(b *Builder) (map[string]Node, error)
}

// Resolver looks up the Definer for an entity name.
type Resolver func(entity string) (Definer, error)

// Builder builds and caches entity schemas. Not safe for concurrent use;
// create one per normalization.
type Builder struct {
	resolve Resolver
	built   map[string]*Entity
}

// NewBuilder creates a Builder that resolves entities through resolve.
func NewBuilder(resolve Resolver) *Builder {
	return &Builder{
		resolve: resolve,
		built:   make(map[string]*Entity),
	}
}

// Entity returns the schema for name, building it on first use.
//
// CRITICAL: the entity is cached before its fields are defined. A relation
// pointing back to an entity under construction receives the same pointer.
func (b *Builder) Entity(name string) (*Entity, error) {
	if e, ok := b.built[name]; ok {
		return e, nil
	}

	def, err := b.resolve(name)
	if err != nil {
		return nil, err
	}

	e := &Entity{Name: name, Fields: map[string]Node{}}
	b.built[name] = e

	fields, err := def.DefineFields(b)
	if err != nil {
		delete(b.built, name)
		return nil, fmt.Errorf("define %s: %w", name, err)
	}
	if fields != nil {
		e.Fields = fields
	}
	return e, nil
}

// One returns the to-one node for an entity.
func (b *Builder) One(name string) (Node, error) {
	return b.Entity(name)
}

// Many returns the to-many node for an entity.
func (b *Builder) Many(name string) (Node, error) {
	e, err := b.Entity(name)
	if err != nil {
		return nil, err
	}
	return Many{Of: e}, nil
}

// ManyThrough returns a to-many node whose records are joined by pivot.
func (b *Builder) ManyThrough(name, pivot string) (Node, error) {
	e, err := b.Entity(name)
	if err != nil {
		return nil, err
	}
	if _, err := b.Entity(pivot); err != nil {
		return nil, err
	}
	return Many{Of: e, Pivot: pivot}, nil
}

// Union returns a polymorphic node keyed by typeField.
func (b *Builder) Union(typeField string) Node {
	return Union{TypeField: typeField}
}

// Built returns the names of every entity built so far, sorted.
func (b *Builder) Built() []string {
	names := make([]string, 0, len(b.built))
	for name := range b.built {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
