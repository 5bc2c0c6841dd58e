package model

import (
	"context"

	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/value"
)

// MorphMany links the owner to every related record of a polymorphic
// relation whose type names the owner's entity.
type MorphMany struct {
	morphInverse
}

// MorphMany declares the to-many inverse of a MorphTo on related.
func (m *Model) MorphMany(related, id, typ string, localKey ...string) *MorphMany {
	return &MorphMany{morphInverse{
		relationBase: relationBase{owner: m},
		related:      related,
		id:           id,
		typ:          typ,
		localKey:     optional(localKey),
	}}
}

func (r *MorphMany) Define(b *schema.Builder) (schema.Node, error) {
	return b.Many(r.related)
}

func (r *MorphMany) Fill(raw value.Value) value.Value { return fillMany(raw) }

func (r *MorphMany) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeMany(resolveOrNil(r.owner, r.related), raw, plain)
}

func (r *MorphMany) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	rows, err := r.selectRelated(ctx, src, collection, with)
	if err != nil {
		return err
	}
	idx := indexMany(rows, r.id)
	localKey := r.LocalKey()
	for _, rec := range collection {
		rec[field] = lookupMany(idx, keyOf(rec, localKey))
	}
	return nil
}
