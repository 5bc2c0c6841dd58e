package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// morphInverse holds what MorphOne and MorphMany share: related records
// carry the owner's key in id and the owner's entity name in typ.
type morphInverse struct {
	relationBase
	related  string
	id       string
	typ      string
	localKey string
}

func (r *morphInverse) LocalKey() string { return r.owner.LocalKey(r.localKey) }

func (r *morphInverse) Attach(key value.Value, record value.Object, data store.Tables) error {
	local := keyOf(record, r.LocalKey())
	for _, k := range keysOf(key) {
		child := relatedRecord(data, r.related, k)
		if child == nil {
			continue
		}
		if _, defined := child[r.id]; !defined && local != nil {
			child[r.id] = local
		}
		if _, defined := child[r.typ]; !defined {
			child[r.typ] = value.String(r.owner.entity)
		}
	}
	return nil
}

func (r *morphInverse) selectRelated(ctx context.Context, src Source, collection []value.Object, with []string) ([]value.Object, error) {
	if _, err := resolve(r.owner, r.related); err != nil {
		return nil, err
	}
	return src.Select(ctx, queryir.Select{
		From: r.related,
		Filter: queryir.All(
			queryir.InKeys(r.id, ownKeys(collection, r.LocalKey())),
			queryir.Eq(r.typ, value.String(r.owner.entity)),
		),
	}, with)
}

// MorphOne links the owner to one related record of a polymorphic relation.
type MorphOne struct {
	morphInverse
}

// MorphOne declares the to-one inverse of a MorphTo on related.
func (m *Model) MorphOne(related, id, typ string, localKey ...string) *MorphOne {
	return &MorphOne{morphInverse{
		relationBase: relationBase{owner: m},
		related:      related,
		id:           id,
		typ:          typ,
		localKey:     optional(localKey),
	}}
}

func (r *MorphOne) Define(b *schema.Builder) (schema.Node, error) {
	return b.One(r.related)
}

func (r *MorphOne) Fill(raw value.Value) value.Value { return fillOne(raw) }

func (r *MorphOne) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeOne(resolveOrNil(r.owner, r.related), raw, plain)
}

func (r *MorphOne) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	rows, err := r.selectRelated(ctx, src, collection, with)
	if err != nil {
		return err
	}
	idx := indexOne(rows, r.id)
	localKey := r.LocalKey()
	for _, rec := range collection {
		rec[field] = lookupOne(idx, keyOf(rec, localKey))
	}
	return nil
}
