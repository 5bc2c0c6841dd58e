package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// HasManyThrough links the owner to related records via an intermediate
// entity: owner.localKey = through.firstKey and
// through.secondLocalKey = related.secondKey.
type HasManyThrough struct {
	relationBase
	related        string
	through        string
	firstKey       string
	secondKey      string
	localKey       string
	secondLocalKey string
}

// HasManyThrough declares a has-many-through relation. keys optionally
// holds localKey and secondLocalKey, defaulting to the owner's and the
// intermediate entity's local keys.
func (m *Model) HasManyThrough(related, through, firstKey, secondKey string, keys ...string) *HasManyThrough {
	return &HasManyThrough{
		relationBase:   relationBase{owner: m},
		related:        related,
		through:        through,
		firstKey:       firstKey,
		secondKey:      secondKey,
		localKey:       optionalAt(keys, 0),
		secondLocalKey: optionalAt(keys, 1),
	}
}

func (r *HasManyThrough) LocalKey() string { return r.owner.LocalKey(r.localKey) }

// SecondLocalKey returns the intermediate field matched against secondKey.
func (r *HasManyThrough) SecondLocalKey() (string, error) {
	if r.secondLocalKey != "" {
		return r.secondLocalKey, nil
	}
	through, err := resolve(r.owner, r.through)
	if err != nil {
		return "", err
	}
	return through.LocalKey(""), nil
}

func (r *HasManyThrough) Define(b *schema.Builder) (schema.Node, error) {
	return b.Many(r.related)
}

// Attach is a no-op: the intermediate records carry the links.
func (r *HasManyThrough) Attach(value.Value, value.Object, store.Tables) error {
	return nil
}

func (r *HasManyThrough) Fill(raw value.Value) value.Value { return fillMany(raw) }

func (r *HasManyThrough) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeMany(resolveOrNil(r.owner, r.related), raw, plain)
}

func (r *HasManyThrough) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	secondLocalKey, err := r.SecondLocalKey()
	if err != nil {
		return err
	}
	if _, err := resolve(r.owner, r.related); err != nil {
		return err
	}
	localKey := r.LocalKey()

	throughRows, err := src.Select(ctx, queryir.Select{
		From:   r.through,
		Filter: queryir.InKeys(r.firstKey, ownKeys(collection, localKey)),
	}, nil)
	if err != nil {
		return err
	}

	relatedRows, err := src.Select(ctx, queryir.Select{
		From:   r.related,
		Filter: queryir.InKeys(r.secondKey, ownKeys(throughRows, secondLocalKey)),
	}, with)
	if err != nil {
		return err
	}

	throughByOwner := indexMany(throughRows, r.firstKey)
	relatedByThrough := indexMany(relatedRows, r.secondKey)
	for _, rec := range collection {
		out := value.Array{}
		for _, t := range lookupMany(throughByOwner, keyOf(rec, localKey)) {
			out = append(out, lookupMany(relatedByThrough, keyOf(t.(value.Object), secondLocalKey))...)
		}
		rec[field] = out
	}
	return nil
}
