package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// BelongsToMany links owner and related records through pivot records
// holding foreignPivotKey (owner side) and relatedPivotKey (related side).
type BelongsToMany struct {
	relationBase
	related         string
	pivot           string
	foreignPivotKey string
	relatedPivotKey string
	parentKey       string
	relatedKey      string
}

// BelongsToMany declares a many-to-many relation. keys optionally holds
// parentKey and relatedKey, defaulting to each side's local key.
func (m *Model) BelongsToMany(related, pivot, foreignPivotKey, relatedPivotKey string, keys ...string) *BelongsToMany {
	return &BelongsToMany{
		relationBase:    relationBase{owner: m},
		related:         related,
		pivot:           pivot,
		foreignPivotKey: foreignPivotKey,
		relatedPivotKey: relatedPivotKey,
		parentKey:       optionalAt(keys, 0),
		relatedKey:      optionalAt(keys, 1),
	}
}

func (r *BelongsToMany) Pivot() string { return r.pivot }

func (r *BelongsToMany) ParentKey() string { return r.owner.LocalKey(r.parentKey) }

// RelatedKey returns the related field stored in relatedPivotKey.
func (r *BelongsToMany) RelatedKey() (string, error) {
	if r.relatedKey != "" {
		return r.relatedKey, nil
	}
	related, err := resolve(r.owner, r.related)
	if err != nil {
		return "", err
	}
	return related.LocalKey(""), nil
}

func (r *BelongsToMany) Define(b *schema.Builder) (schema.Node, error) {
	return b.ManyThrough(r.related, r.pivot)
}

// Attach writes one pivot record per related key.
func (r *BelongsToMany) Attach(key value.Value, record value.Object, data store.Tables) error {
	parent := keyOf(record, r.ParentKey())
	if parent == nil {
		return nil
	}
	pivot, err := resolve(r.owner, r.pivot)
	if err != nil {
		return err
	}
	relatedKey, err := r.RelatedKey()
	if err != nil {
		return err
	}
	for _, k := range keysOf(key) {
		far := farKey(data, r.related, relatedKey, k)
		rec := value.Object{
			r.foreignPivotKey: parent,
			r.relatedPivotKey: far,
		}
		putPivot(data, pivot, rec, parent, far)
	}
	return nil
}

func (r *BelongsToMany) Fill(raw value.Value) value.Value { return fillMany(raw) }

func (r *BelongsToMany) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeMany(resolveOrNil(r.owner, r.related), raw, plain)
}

func (r *BelongsToMany) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	relatedKey, err := r.RelatedKey()
	if err != nil {
		return err
	}
	parentKey := r.ParentKey()

	pivots, err := src.Select(ctx, queryir.Select{
		From:   r.pivot,
		Filter: queryir.InKeys(r.foreignPivotKey, ownKeys(collection, parentKey)),
	}, nil)
	if err != nil {
		return err
	}
	rows, err := src.Select(ctx, queryir.Select{
		From:   r.related,
		Filter: keyIn(r.owner, r.related, relatedKey, collectKeys(pivots, r.relatedPivotKey)),
	}, with)
	if err != nil {
		return err
	}

	throughPivots(collection, field, parentKey,
		indexMany(pivots, r.foreignPivotKey), r.relatedPivotKey,
		indexOwn(rows, relatedKey))
	return nil
}

// farKey returns the value a pivot stores for the related side: the
// related record's key field when it was normalized into data, the raw
// key otherwise.
func farKey(data store.Tables, entity, field string, key value.Value) value.Value {
	if child := relatedRecord(data, entity, key); child != nil {
		if v := keyOf(child, field); v != nil {
			return v
		}
	}
	return key
}

// throughPivots sets field on each record to the related rows reached via
// its pivots, in pivot order.
func throughPivots(collection []value.Object, field, localKey string, pivots map[string][]value.Object, farField string, related map[string]value.Object) {
	for _, rec := range collection {
		out := value.Array{}
		for _, p := range lookupMany(pivots, keyOf(rec, localKey)) {
			if match, ok := lookupOne(related, p.(value.Object)[farField]).(value.Object); ok {
				out = append(out, match)
			}
		}
		rec[field] = out
	}
}
