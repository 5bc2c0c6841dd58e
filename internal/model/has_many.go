package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// HasMany links the owner to every related record holding the owner's
// local key in foreignKey.
type HasMany struct {
	relationBase
	related    string
	foreignKey string
	localKey   string
}

// HasMany declares a has-many relation. localKey defaults to the owner's
// local key.
func (m *Model) HasMany(related, foreignKey string, localKey ...string) *HasMany {
	return &HasMany{
		relationBase: relationBase{owner: m},
		related:      related,
		foreignKey:   foreignKey,
		localKey:     optional(localKey),
	}
}

func (r *HasMany) LocalKey() string { return r.owner.LocalKey(r.localKey) }

func (r *HasMany) Define(b *schema.Builder) (schema.Node, error) {
	return b.Many(r.related)
}

func (r *HasMany) Attach(key value.Value, record value.Object, data store.Tables) error {
	local := keyOf(record, r.LocalKey())
	if local == nil {
		return nil
	}
	for _, k := range keysOf(key) {
		child := relatedRecord(data, r.related, k)
		if child == nil {
			continue
		}
		if _, defined := child[r.foreignKey]; defined {
			continue
		}
		child[r.foreignKey] = local
	}
	return nil
}

func (r *HasMany) Fill(raw value.Value) value.Value { return fillMany(raw) }

func (r *HasMany) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeMany(resolveOrNil(r.owner, r.related), raw, plain)
}

func (r *HasMany) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
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
	idx := indexMany(rows, r.foreignKey)
	for _, rec := range collection {
		rec[field] = lookupMany(idx, keyOf(rec, localKey))
	}
	return nil
}
