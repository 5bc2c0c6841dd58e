package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// HasOne links the owner to one related record holding the owner's local
// key in foreignKey.
type HasOne struct {
	relationBase
	related    string
	foreignKey string
	localKey   string
}

// HasOne declares a has-one relation. localKey defaults to the owner's
// local key.
func (m *Model) HasOne(related, foreignKey string, localKey ...string) *HasOne {
	return &HasOne{
		relationBase: relationBase{owner: m},
		related:      related,
		foreignKey:   foreignKey,
		localKey:     optional(localKey),
	}
}

func (r *HasOne) LocalKey() string { return r.owner.LocalKey(r.localKey) }

func (r *HasOne) Define(b *schema.Builder) (schema.Node, error) {
	return b.One(r.related)
}

func (r *HasOne) Attach(key value.Value, record value.Object, data store.Tables) error {
	child := relatedRecord(data, r.related, key)
	if child == nil {
		return nil
	}
	if _, defined := child[r.foreignKey]; defined {
		return nil
	}
	if v := keyOf(record, r.LocalKey()); v != nil {
		child[r.foreignKey] = v
	}
	return nil
}

func (r *HasOne) Fill(raw value.Value) value.Value { return fillOne(raw) }

func (r *HasOne) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeOne(resolveOrNil(r.owner, r.related), raw, plain)
}

func (r *HasOne) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	if _, err := resolve(r.owner, r.related); err != nil {
		return err
	}
	localKey := r.LocalKey()
	rows, err := src.Select(ctx, queryir.Select{
		From:   r.related,
		Filter: queryir.InKeys(r.foreignKey, ownKeys(collection, localKey)),
	}, with)
	if err != nil {
		return err
	}
	idx := indexOne(rows, r.foreignKey)
	for _, rec := range collection {
		rec[field] = lookupOne(idx, keyOf(rec, localKey))
	}
	return nil
}

// optional returns the first element of an optional argument list.
func optional(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// optionalAt returns args[i] when present.
func optionalAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
