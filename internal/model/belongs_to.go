package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// BelongsTo links the owner to the parent record whose ownerKey equals the
// owner's foreignKey.
type BelongsTo struct {
	relationBase
	parent     string
	foreignKey string
	ownerKey   string
}

// BelongsTo declares a belongs-to relation. ownerKey defaults to the
// parent's local key, resolved when the relation is used.
func (m *Model) BelongsTo(parent, foreignKey string, ownerKey ...string) *BelongsTo {
	return &BelongsTo{
		relationBase: relationBase{owner: m},
		parent:       parent,
		foreignKey:   foreignKey,
		ownerKey:     optional(ownerKey),
	}
}

// OwnerKey returns the parent field matched against the foreign key.
func (r *BelongsTo) OwnerKey() (string, error) {
	if r.ownerKey != "" {
		return r.ownerKey, nil
	}
	parent, err := resolve(r.owner, r.parent)
	if err != nil {
		return "", err
	}
	return parent.LocalKey(""), nil
}

func (r *BelongsTo) Define(b *schema.Builder) (schema.Node, error) {
	return b.One(r.parent)
}

func (r *BelongsTo) Attach(key value.Value, record value.Object, _ store.Tables) error {
	if _, defined := record[r.foreignKey]; defined {
		return nil
	}
	if _, ok := value.Key(key); ok {
		record[r.foreignKey] = key
	}
	return nil
}

func (r *BelongsTo) Fill(raw value.Value) value.Value { return fillOne(raw) }

func (r *BelongsTo) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeOne(resolveOrNil(r.owner, r.parent), raw, plain)
}

func (r *BelongsTo) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	ownerKey, err := r.OwnerKey()
	if err != nil {
		return err
	}
	rows, err := src.Select(ctx, queryir.Select{
		From:   r.parent,
		Filter: keyIn(r.owner, r.parent, ownerKey, collectKeys(collection, r.foreignKey)),
	}, with)
	if err != nil {
		return err
	}
	idx := indexOwn(rows, ownerKey)
	for _, rec := range collection {
		rec[field] = lookupOne(idx, rec[r.foreignKey])
	}
	return nil
}
