package model

import (
	"context"

	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// MorphedByMany is the inverse of MorphToMany: the owner sits on the
// relatedID side of pivot records typed with the related entity.
type MorphedByMany struct {
	morphPivot
}

// MorphedByMany declares the inverse polymorphic many-to-many relation.
// keys optionally holds parentKey and relatedKey.
func (m *Model) MorphedByMany(related, pivot, relatedID, id, typ string, keys ...string) *MorphedByMany {
	return &MorphedByMany{newMorphPivot(m, related, pivot, relatedID, id, typ, keys)}
}

func (r *MorphedByMany) Attach(key value.Value, record value.Object, data store.Tables) error {
	related := value.String(r.related)
	return r.attach(key, record, data, func(parent, far value.Value) (value.Object, []value.Value) {
		rec := value.Object{r.relatedID: parent, r.id: far, r.typ: related}
		return rec, []value.Value{far, parent, related}
	})
}

func (r *MorphedByMany) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	return r.load(ctx, src, collection, field, with, r.relatedID, r.id, r.related)
}
