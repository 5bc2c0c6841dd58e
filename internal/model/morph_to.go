package model

import (
	"context"
	"strings"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// MorphTo links the owner to one record of the entity named in its type
// field, keyed by its id field.
type MorphTo struct {
	relationBase
	id  string
	typ string
}

// MorphTo declares a polymorphic to-one relation.
func (m *Model) MorphTo(id, typ string) *MorphTo {
	return &MorphTo{relationBase: relationBase{owner: m}, id: id, typ: typ}
}

// TypeField is the owner field naming the target entity.
func (r *MorphTo) TypeField() string { return r.typ }

// IDField is the owner field holding the target's key.
func (r *MorphTo) IDField() string { return r.id }

func (r *MorphTo) Define(b *schema.Builder) (schema.Node, error) {
	return b.Union(r.typ), nil
}

func (r *MorphTo) Attach(key value.Value, record value.Object, _ store.Tables) error {
	if _, defined := record[r.id]; defined {
		return nil
	}
	if _, ok := value.Key(key); ok {
		record[r.id] = key
	}
	return nil
}

func (r *MorphTo) Fill(raw value.Value) value.Value { return fillOne(raw) }

func (r *MorphTo) Make(raw value.Value, owner value.Object, _ string, plain bool) any {
	var related *Model
	if typ, ok := owner[r.typ].(value.String); ok {
		related = resolveOrNil(r.owner, string(typ))
	}
	return makeOne(related, raw, plain)
}

// Load groups the collection by type and issues one select per target
// entity. Nested relations in with are passed on only to targets
// declaring them.
func (r *MorphTo) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	var types []string
	ids := make(map[string]*value.KeySet)
	for _, rec := range collection {
		typ, ok := rec[r.typ].(value.String)
		if !ok {
			continue
		}
		set, seen := ids[string(typ)]
		if !seen {
			set = value.NewKeySet()
			ids[string(typ)] = set
			types = append(types, string(typ))
		}
		set.Add(rec[r.id])
	}

	byType := make(map[string]map[string]value.Object, len(types))
	for _, typ := range types {
		target, err := resolve(r.owner, typ)
		if err != nil {
			return err
		}
		key := target.LocalKey("")
		rows, err := src.Select(ctx, queryir.Select{
			From:   typ,
			Filter: keyIn(r.owner, typ, key, ids[typ]),
		}, withFor(target, with))
		if err != nil {
			return err
		}
		byType[typ] = indexOwn(rows, key)
	}

	for _, rec := range collection {
		typ, _ := rec[r.typ].(value.String)
		idx, ok := byType[string(typ)]
		if !ok {
			rec[field] = value.Null{}
			continue
		}
		rec[field] = lookupOne(idx, rec[r.id])
	}
	return nil
}

// withFor keeps the eager-load paths whose first segment is a relation of m.
func withFor(m *Model, with []string) []string {
	var out []string
	for _, path := range with {
		head, _, _ := strings.Cut(path, ".")
		if _, ok := m.Relation(head); ok {
			out = append(out, path)
		}
	}
	return out
}
