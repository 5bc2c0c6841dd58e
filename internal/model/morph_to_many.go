package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// morphPivot holds what MorphToMany and MorphedByMany share. Pivot records
// carry relatedID, id and typ, where typ names the entity on the id side.
type morphPivot struct {
	relationBase
	related    string
	pivot      string
	relatedID  string
	id         string
	typ        string
	parentKey  string
	relatedKey string
}

func newMorphPivot(m *Model, related, pivot, relatedID, id, typ string, keys []string) morphPivot {
	return morphPivot{
		relationBase: relationBase{owner: m},
		related:      related,
		pivot:        pivot,
		relatedID:    relatedID,
		id:           id,
		typ:          typ,
		parentKey:    optionalAt(keys, 0),
		relatedKey:   optionalAt(keys, 1),
	}
}

func (r *morphPivot) Pivot() string { return r.pivot }

func (r *morphPivot) ParentKey() string { return r.owner.LocalKey(r.parentKey) }

func (r *morphPivot) RelatedKey() (string, error) {
	if r.relatedKey != "" {
		return r.relatedKey, nil
	}
	related, err := resolve(r.owner, r.related)
	if err != nil {
		return "", err
	}
	return related.LocalKey(""), nil
}

func (r *morphPivot) Define(b *schema.Builder) (schema.Node, error) {
	return b.ManyThrough(r.related, r.pivot)
}

func (r *morphPivot) Fill(raw value.Value) value.Value { return fillMany(raw) }

func (r *morphPivot) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeMany(resolveOrNil(r.owner, r.related), raw, plain)
}

// attach writes a pivot record per related key. build returns the record
// and key parts for one (parent, related) pair.
func (r *morphPivot) attach(key value.Value, record value.Object, data store.Tables, build func(parent, far value.Value) (value.Object, []value.Value)) error {
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
		rec, parts := build(parent, farKey(data, r.related, relatedKey, k))
		putPivot(data, pivot, rec, parts...)
	}
	return nil
}

// load selects pivots whose near field holds a collection key and whose
// typ equals typeName, then the related rows named by far.
func (r *morphPivot) load(ctx context.Context, src Source, collection []value.Object, field string, with []string, near, far, typeName string) error {
	relatedKey, err := r.RelatedKey()
	if err != nil {
		return err
	}
	parentKey := r.ParentKey()

	pivots, err := src.Select(ctx, queryir.Select{
		From: r.pivot,
		Filter: queryir.All(
			queryir.InKeys(near, ownKeys(collection, parentKey)),
			queryir.Eq(r.typ, value.String(typeName)),
		),
	}, nil)
	if err != nil {
		return err
	}
	rows, err := src.Select(ctx, queryir.Select{
		From:   r.related,
		Filter: keyIn(r.owner, r.related, relatedKey, collectKeys(pivots, far)),
	}, with)
	if err != nil {
		return err
	}

	throughPivots(collection, field, parentKey, indexMany(pivots, near), far, indexOwn(rows, relatedKey))
	return nil
}

// MorphToMany links the owner to related records through polymorphic pivot
// records typed with the owner's entity.
type MorphToMany struct {
	morphPivot
}

// MorphToMany declares a polymorphic many-to-many relation. keys
// optionally holds parentKey and relatedKey.
func (m *Model) MorphToMany(related, pivot, relatedID, id, typ string, keys ...string) *MorphToMany {
	return &MorphToMany{newMorphPivot(m, related, pivot, relatedID, id, typ, keys)}
}

func (r *MorphToMany) Attach(key value.Value, record value.Object, data store.Tables) error {
	owner := value.String(r.owner.entity)
	return r.attach(key, record, data, func(parent, far value.Value) (value.Object, []value.Value) {
		rec := value.Object{r.relatedID: far, r.id: parent, r.typ: owner}
		return rec, []value.Value{parent, far, owner}
	})
}

func (r *MorphToMany) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	return r.load(ctx, src, collection, field, with, r.id, r.relatedID, r.owner.entity)
}
